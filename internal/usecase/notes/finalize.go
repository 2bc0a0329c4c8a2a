package notes

import (
	"context"
	"log/slog"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

const queuedProgress = "Queued"

// FinalizeSession closes capture and enqueues a processing job.
func (s *Service) FinalizeSession(ctx context.Context, actor domain.Actor, sessionID string) (domain.Job, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Job{}, err
	}
	if err := requireUser(actor); err != nil {
		return domain.Job{}, err
	}

	var job domain.Job
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		session, err := s.loadSession(txCtx, sessionID)
		if err != nil {
			return err
		}
		tally, _, err := s.tally(txCtx, session.ID)
		if err != nil {
			return err
		}
		if err := domain.CheckFinalize(session, actor, tally); err != nil {
			return err
		}

		now := s.now()
		ok, err := s.repo.TransitionSession(txCtx, ports.SessionTransition{
			SessionID:  session.ID,
			From:       domain.FinalizeStatuses,
			To:         domain.StatusFinalizing,
			At:         now,
			SetEndedAt: true,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}

		job = domain.Job{
			ID:        s.newID(),
			SessionID: session.ID,
			Status:    domain.JobQueued,
			Progress:  queuedProgress,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.CreateJob(txCtx, job)
	})
	if err != nil {
		return domain.Job{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"notes job queued",
		slog.String("session_id", job.SessionID),
		slog.String("job_id", job.ID),
	)
	return job, nil
}
