package notes

import (
	"context"
	"log/slog"
	"os"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

// DeleteSession removes a session with its stored artifacts. Owner only.
func (s *Service) DeleteSession(ctx context.Context, actor domain.Actor, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireUser(actor); err != nil {
		return err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.OwnedBy(actor) {
		return domain.ErrNotOwner
	}
	if err := s.deleteSessionArtifacts(ctx, session.ID); err != nil {
		return err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"notes session deleted",
		slog.String("session_id", session.ID),
	)
	return nil
}

// deleteSessionArtifacts drops vault objects, the working directory and the
// session row with its children, in that order. Objects already gone are not
// an error.
func (s *Service) deleteSessionArtifacts(ctx context.Context, sessionID string) error {
	keys := make([]string, 0, 3)
	if report, found, err := s.repo.GetReport(ctx, sessionID); err != nil {
		return err
	} else if found {
		keys = append(keys, report.StorageKey)
	}
	if transcript, found, err := s.repo.GetTranscriptArtifact(ctx, sessionID); err != nil {
		return err
	} else if found {
		keys = append(keys, transcript.StorageKey)
	}
	if recording, found, err := s.repo.GetRecording(ctx, sessionID); err != nil {
		return err
	} else if found {
		keys = append(keys, recording.StorageKey)
	}

	for _, key := range keys {
		if key == "" || s.vault == nil {
			continue
		}
		if err := s.vault.Delete(ctx, key); err != nil && errs.KindOf(err) != errs.KindNotFound {
			return errs.Wrapf(err, "delete vault object %s", key)
		}
	}

	if s.opts.WorkDir != "" {
		if err := os.RemoveAll(s.SessionDir(sessionID)); err != nil {
			return errs.Wrap(err, "remove session dir")
		}
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteSession(txCtx, sessionID)
	})
}
