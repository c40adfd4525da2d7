package domain

// Collection names as laid out in the realtime database.
const (
	CollectionClients       = "clients"
	CollectionProjects      = "projects"
	CollectionInvoices      = "invoices"
	CollectionTeamMembers   = "teamMembers"
	CollectionNotifications = "notifications"
	CollectionAccessCodes   = "accessCodes"
)

// ChangeOp is the kind of write that produced a Change.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// Change describes one successful write to the record store. Owner is the
// user id the record belongs to (a client id, or AdminUserID for admin
// notifications); it is empty for records shared across users.
type Change struct {
	Collection string   `json:"collection"`
	Op         ChangeOp `json:"op"`
	ID         string   `json:"id"`
	Owner      string   `json:"owner,omitempty"`
	At         int64    `json:"at"`
}

// VisibleTo reports whether the change concerns a record actor may see.
// Clients only learn about their own projects, invoices and notifications.
func (c Change) VisibleTo(actor Actor) bool {
	switch {
	case actor.IsAdmin():
		return true
	case !actor.IsClient():
		return false
	}
	switch c.Collection {
	case CollectionProjects, CollectionInvoices, CollectionNotifications:
		return c.Owner == actor.UserID()
	}
	return false
}
