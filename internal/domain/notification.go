package domain

// NotificationType classifies notifications for icons and filtering.
type NotificationType string

const (
	NotifyProjectUpdate   NotificationType = "project_update"
	NotifyApprovalRequest NotificationType = "approval_request"
	NotifyPayment         NotificationType = "payment"
	NotifySystem          NotificationType = "system"
	NotifyAlert           NotificationType = "alert"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyProjectUpdate, NotifyApprovalRequest, NotifyPayment, NotifySystem, NotifyAlert:
		return true
	}
	return false
}

// Notification is addressed to UserID: AdminUserID or a client id.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   int64            `json:"createdAt"`
}

// BelongsTo reports whether the notification is addressed to a.
func (n Notification) BelongsTo(a Actor) bool {
	return a.UserID() != "" && n.UserID == a.UserID()
}
