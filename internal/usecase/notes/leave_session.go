package notes

import (
	"context"
	"log/slog"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
)

// LeaveSession soft-closes the caller's roster entry. A departed participant
// no longer counts toward unanimity, but an earlier decline still stands.
func (s *Service) LeaveSession(ctx context.Context, actor domain.Actor, sessionID string) (domain.Tally, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Tally{}, err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Tally{}, err
	}
	if err := s.authorizeMember(ctx, actor, session.Kind, session.ContextID); err != nil {
		return domain.Tally{}, err
	}

	var tally domain.Tally
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		left, err := s.repo.LeaveParticipant(txCtx, session.ID, actor.Key, s.now())
		if err != nil {
			return err
		}
		if !left {
			return domain.ErrNotParticipant
		}
		tally, _, err = s.tally(txCtx, session.ID)
		return err
	})
	if err != nil {
		return domain.Tally{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"participant left",
		slog.String("session_id", session.ID),
		slog.String("actor", actor.Key),
	)
	return tally, nil
}
