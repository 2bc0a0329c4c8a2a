package notes

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const maxChunkSeq = 999999

type UploadChunkInput struct {
	Seq      int
	MimeType string
	Data     []byte
}

// StartCapture moves a unanimously consented session into RECORDING.
func (s *Service) StartCapture(ctx context.Context, actor domain.Actor, sessionID string) (domain.Session, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Session{}, err
	}
	if err := requireUser(actor); err != nil {
		return domain.Session{}, err
	}

	var session domain.Session
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		session, err = s.gateCapture(txCtx, actor, sessionID)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"capture started",
		slog.String("session_id", session.ID),
	)
	return s.repo.GetSession(ctx, session.ID)
}

// UploadChunk stores one audio chunk under its zero-padded sequence name.
// Stitch order follows the names, never arrival order.
func (s *Service) UploadChunk(ctx context.Context, actor domain.Actor, sessionID string, input UploadChunkInput) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	if err := requireUser(actor); err != nil {
		return "", err
	}
	if input.Seq < 0 || input.Seq > maxChunkSeq {
		return "", domain.ErrInvalidSequence
	}
	if len(input.Data) == 0 {
		return "", domain.ErrEmptyChunk
	}
	if int64(len(input.Data)) > s.opts.MaxChunkBytes {
		return "", domain.ErrChunkTooLarge
	}

	var session domain.Session
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		session, err = s.gateCapture(txCtx, actor, sessionID)
		return err
	}); err != nil {
		return "", err
	}

	chunksDir := filepath.Join(s.SessionDir(session.ID), domain.ChunksDir)
	if err := os.MkdirAll(chunksDir, 0o755); err != nil {
		return "", errs.Wrap(err, "create chunks dir")
	}
	name := domain.ChunkFileName(input.Seq, chunkExt(input.MimeType))
	if err := os.WriteFile(filepath.Join(chunksDir, name), input.Data, 0o600); err != nil {
		return "", errs.Wrapf(err, "write chunk %s", name)
	}

	logging.Debug(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"chunk stored",
		slog.String("session_id", session.ID),
		slog.String("chunk", name),
		slog.Int("bytes", len(input.Data)),
	)
	return name, nil
}

// gateCapture re-checks owner, tally and status, then flips the session to
// RECORDING. Must run inside a transaction.
func (s *Service) gateCapture(ctx context.Context, actor domain.Actor, sessionID string) (domain.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !session.OwnedBy(actor) {
		return domain.Session{}, domain.ErrNotOwner
	}
	tally, _, err := s.tally(ctx, session.ID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := domain.CheckCapture(session, actor, tally); err != nil {
		return domain.Session{}, err
	}

	ok, err := s.repo.TransitionSession(ctx, ports.SessionTransition{
		SessionID:    session.ID,
		From:         domain.CaptureStatuses,
		To:           domain.StatusRecording,
		At:           s.now(),
		SetStartedAt: true,
	})
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, domain.ErrInvalidTransition
	}
	return session, nil
}

func chunkExt(mimeType string) string {
	if strings.Contains(strings.ToLower(mimeType), "ogg") {
		return ".ogg"
	}
	return ".webm"
}
