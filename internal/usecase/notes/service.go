package notes

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const (
	chatTranscriptFile = "chat_transcript.json"
	transcriptFile     = "transcript.json"

	defaultMaxChunkBytes = 25 * 1024 * 1024
	defaultMaxChatBytes  = 5 * 1024 * 1024
)

// Options tunes the session state machine.
type Options struct {
	WorkDir                string
	MaxChunkBytes          int64
	MaxChatTranscriptBytes int64
}

// Service owns the session lifecycle: roster, consent ledger, capture gating
// and job enqueueing.
type Service struct {
	repo    ports.NotesRepository
	uow     ports.UnitOfWork
	members ports.MembershipDirectory
	vault   ports.Vault
	opts    Options

	now   func() time.Time
	newID func() string
}

func NewService(repo ports.NotesRepository, uow ports.UnitOfWork, members ports.MembershipDirectory, vault ports.Vault, opts Options) *Service {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = defaultMaxChunkBytes
	}
	if opts.MaxChatTranscriptBytes <= 0 {
		opts.MaxChatTranscriptBytes = defaultMaxChatBytes
	}
	return &Service{
		repo:    repo,
		uow:     uow,
		members: members,
		vault:   vault,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// SessionDir is the per-session working directory for chunks and
// intermediate files.
func (s *Service) SessionDir(sessionID string) string {
	return filepath.Join(s.opts.WorkDir, sessionID)
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("notes repository is required")
	}
	if s.uow == nil {
		return errors.New("notes unit of work is required")
	}
	return nil
}

// authorizeMember checks that actor may see sessions of the given context.
// Guests prove membership with the scope of their token.
func (s *Service) authorizeMember(ctx context.Context, actor domain.Actor, kind domain.Kind, contextID string) error {
	if !actor.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if actor.IsGuest() {
		if actor.ScopedTo(kind, contextID) {
			return nil
		}
		return domain.ErrNotMember
	}
	if s.members == nil {
		return errors.New("membership directory is required")
	}

	ok, err := s.members.IsMember(ctx, kind, contextID, actor.UserID)
	if err != nil {
		return errs.Wrap(err, "check membership")
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}

// requireUser rejects guests for owner-only operations.
func requireUser(actor domain.Actor) error {
	if !actor.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !actor.IsUser() {
		return domain.ErrNotOwner
	}
	return nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.repo.GetSession(ctx, id)
}

func (s *Service) tally(ctx context.Context, sessionID string) (domain.Tally, map[string]bool, error) {
	participants, err := s.repo.ListParticipants(ctx, sessionID)
	if err != nil {
		return domain.Tally{}, nil, err
	}
	latest, err := s.repo.LatestConsents(ctx, sessionID)
	if err != nil {
		return domain.Tally{}, nil, err
	}
	return domain.ComputeTally(participants, latest), latest, nil
}

// register adds the actor to the roster, re-activating a previous row.
func (s *Service) register(ctx context.Context, sessionID string, actor domain.Actor, at time.Time) error {
	return s.repo.UpsertParticipant(ctx, domain.Participant{
		SessionID:   sessionID,
		ActorKey:    actor.Key,
		DisplayName: actor.DisplayName,
		JoinedAt:    at,
	})
}
