package notes

import "strings"

const (
	userKeyPrefix  = "user:"
	guestKeyPrefix = "guest:"
)

// GuestScope is the single context a guest token grants access to.
type GuestScope struct {
	Kind      Kind
	ContextID string
}

// Actor is an already-authenticated caller. Registered users carry a UserID;
// guests carry a Scope proven by a signed invite token.
type Actor struct {
	Key         string
	UserID      string
	GuestID     string
	DisplayName string
	Scope       *GuestScope
}

func UserActor(userID string, displayName string) Actor {
	id := strings.TrimSpace(userID)
	return Actor{
		Key:         userKeyPrefix + id,
		UserID:      id,
		DisplayName: strings.TrimSpace(displayName),
	}
}

func GuestActor(guestID string, displayName string, kind Kind, contextID string) Actor {
	id := strings.TrimSpace(guestID)
	return Actor{
		Key:         guestKeyPrefix + id,
		GuestID:     id,
		DisplayName: strings.TrimSpace(displayName),
		Scope:       &GuestScope{Kind: kind, ContextID: strings.TrimSpace(contextID)},
	}
}

func (a Actor) IsUser() bool {
	return a.UserID != "" && strings.HasPrefix(a.Key, userKeyPrefix)
}

func (a Actor) IsGuest() bool {
	return a.GuestID != "" && a.Scope != nil
}

// Authenticated reports whether the actor carries a usable identity.
func (a Actor) Authenticated() bool {
	return a.IsUser() || a.IsGuest()
}

// ScopedTo reports whether a guest token covers the given context.
func (a Actor) ScopedTo(kind Kind, contextID string) bool {
	if a.Scope == nil {
		return false
	}
	return a.Scope.Kind == kind && a.Scope.ContextID == contextID
}

// Label is the name shown in reports and rosters.
func (a Actor) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Key
}

// UserIDFromKey extracts the user id from a "user:<id>" actor key.
func UserIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, userKeyPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(key, userKeyPrefix))
	return id, id != ""
}
