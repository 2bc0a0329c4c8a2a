package notes

import (
	"context"
	"log/slog"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

// SubmitConsent appends a consent decision for the caller. A single decline
// fails the session for everyone.
func (s *Service) SubmitConsent(ctx context.Context, actor domain.Actor, sessionID string, consent bool) (domain.Tally, error) {
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
		current, err := s.repo.GetSession(txCtx, session.ID)
		if err != nil {
			return err
		}
		if err := domain.CheckConsent(current); err != nil {
			return err
		}

		now := s.now()
		if err := s.register(txCtx, current.ID, actor, now); err != nil {
			return err
		}
		if err := s.repo.AppendConsent(txCtx, domain.ConsentEvent{
			SessionID: current.ID,
			ActorKey:  actor.Key,
			Consent:   consent,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		tally, _, err = s.tally(txCtx, current.ID)
		if err != nil {
			return err
		}
		if !tally.AnyDeclined {
			return nil
		}
		_, err = s.repo.TransitionSession(txCtx, ports.SessionTransition{
			SessionID:  current.ID,
			From:       domain.LiveStatuses,
			To:         domain.StatusFailed,
			At:         now,
			SetEndedAt: true,
		})
		return err
	})
	if err != nil {
		return domain.Tally{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notes"))
	if tally.AnyDeclined {
		logging.Warn(logCtx, "consent declined, session failed",
			slog.String("session_id", session.ID),
			slog.String("actor", actor.Key),
		)
	} else {
		logging.Info(logCtx, "consent recorded",
			slog.String("session_id", session.ID),
			slog.String("actor", actor.Key),
			slog.Bool("consent", consent),
			slog.Bool("all_consented", tally.AllConsented),
		)
	}
	return tally, nil
}
