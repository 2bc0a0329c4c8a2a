package notes

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

// UploadChatTranscript stores the owner-decrypted chat log that replaces
// audio for chat sessions. The last upload wins.
func (s *Service) UploadChatTranscript(ctx context.Context, actor domain.Actor, sessionID string, payload []byte) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	if int64(len(payload)) > s.opts.MaxChatTranscriptBytes {
		return 0, domain.ErrChatTooLarge
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := domain.CheckChatTranscript(session, actor); err != nil {
		return 0, err
	}
	chat, err := domain.ParseChatTranscript(payload)
	if err != nil {
		return 0, err
	}

	dir := s.SessionDir(session.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errs.Wrap(err, "create session dir")
	}
	if err := os.WriteFile(filepath.Join(dir, chatTranscriptFile), payload, 0o600); err != nil {
		return 0, errs.Wrap(err, "write chat transcript")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "usecase.notes")),
		"chat transcript stored",
		slog.String("session_id", session.ID),
		slog.Int("messages", len(chat.Messages)),
	)
	return len(chat.Messages), nil
}
