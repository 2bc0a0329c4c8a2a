package ports

import (
	"context"

	"pdfrealm/internal/domain/notes"
)

// MembershipDirectory answers role questions about registered users in a
// collaboration context.
type MembershipDirectory interface {
	IsMember(ctx context.Context, kind notes.Kind, contextID string, userID string) (bool, error)
	IsOwner(ctx context.Context, kind notes.Kind, contextID string, userID string) (bool, error)
}

// GuestVerifier turns a signed invite token into a context-scoped actor.
type GuestVerifier interface {
	VerifyGuest(ctx context.Context, kind notes.Kind, token string) (notes.Actor, error)
}
