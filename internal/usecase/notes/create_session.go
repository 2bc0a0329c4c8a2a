package notes

import (
	"context"
	"log/slog"
	"strings"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

type CreateSessionInput struct {
	Kind      string
	ContextID string
	Title     string
}

// CreateSession opens a consent-gated session on a context the actor owns.
// The owner joins the roster and consents implicitly.
func (s *Service) CreateSession(ctx context.Context, actor domain.Actor, input CreateSessionInput) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}

	kind, err := domain.ParseKind(input.Kind)
	if err != nil {
		return domain.Session{}, err
	}
	contextID := strings.TrimSpace(input.ContextID)
	if contextID == "" {
		return domain.Session{}, domain.ErrContextRequired
	}
	if !actor.Authenticated() {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if !actor.IsUser() || s.members == nil {
		return domain.Session{}, domain.ErrNotContextOwner
	}

	isOwner, err := s.members.IsOwner(ctx, kind, contextID, actor.UserID)
	if err != nil {
		return domain.Session{}, errs.Wrap(err, "check context owner")
	}
	if !isOwner {
		return domain.Session{}, domain.ErrNotContextOwner
	}

	now := s.now()
	session := domain.Session{
		ID:        s.newID(),
		CreatedBy: actor.Key,
		Kind:      kind,
		ContextID: contextID,
		Title:     strings.TrimSpace(input.Title),
		Status:    domain.StatusConsentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateSession(txCtx, session); err != nil {
			return err
		}
		if err := s.register(txCtx, session.ID, actor, now); err != nil {
			return err
		}
		return s.repo.AppendConsent(txCtx, domain.ConsentEvent{
			SessionID: session.ID,
			ActorKey:  actor.Key,
			Consent:   true,
			CreatedAt: now,
		})
	}); err != nil {
		return domain.Session{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"notes session created",
		slog.String("session_id", session.ID),
		slog.String("kind", string(kind)),
		slog.String("context_id", contextID),
	)
	return session, nil
}
