package domain

import "fmt"

// AdminUserID is the userId under which admin notifications are stored.
const AdminUserID = "admin"

type actorKind int

const (
	actorNone actorKind = iota
	actorAdmin
	actorClient
)

// Actor identifies who performs an action or receives a notification:
// either the admin or one specific client. The zero value is anonymous.
type Actor struct {
	kind     actorKind
	clientID string
}

// AdminActor returns the admin actor.
func AdminActor() Actor {
	return Actor{kind: actorAdmin}
}

// ClientActor returns the actor for a client id. The id may not collide with
// the admin sentinel.
func ClientActor(clientID string) (Actor, error) {
	if clientID == "" {
		return Actor{}, &ErrValidation{Field: "clientId", Message: "required"}
	}
	if clientID == AdminUserID {
		return Actor{}, &ErrValidation{Field: "clientId", Message: fmt.Sprintf("%q is reserved", AdminUserID)}
	}
	return Actor{kind: actorClient, clientID: clientID}, nil
}

// ActorFromUserID maps a stored notification userId back to an Actor.
func ActorFromUserID(userID string) (Actor, error) {
	if userID == AdminUserID {
		return AdminActor(), nil
	}
	return ClientActor(userID)
}

func (a Actor) IsAdmin() bool     { return a.kind == actorAdmin }
func (a Actor) IsClient() bool    { return a.kind == actorClient }
func (a Actor) IsAnonymous() bool { return a.kind == actorNone }

// ClientID returns the client id, or "" for non-client actors.
func (a Actor) ClientID() string { return a.clientID }

// UserID is the notification recipient key for this actor.
func (a Actor) UserID() string {
	switch a.kind {
	case actorAdmin:
		return AdminUserID
	case actorClient:
		return a.clientID
	}
	return ""
}

// Role is the token role claim for this actor.
func (a Actor) Role() string {
	switch a.kind {
	case actorAdmin:
		return "admin"
	case actorClient:
		return "client"
	}
	return ""
}

func (a Actor) String() string {
	switch a.kind {
	case actorAdmin:
		return "admin"
	case actorClient:
		return "client:" + a.clientID
	}
	return "anonymous"
}
