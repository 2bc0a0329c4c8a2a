package ports

import (
	"context"
	"time"

	"pdfrealm/internal/domain/notes"
)

// SessionTransition moves a session to To only when its current status is in
// From. Started/ended timestamps are set only when still empty.
type SessionTransition struct {
	SessionID    string
	From         []notes.Status
	To           notes.Status
	At           time.Time
	SetStartedAt bool
	SetEndedAt   bool
}

type JobFilter struct {
	SessionID string
	Statuses  []notes.JobStatus
	Limit     int
}

type NotesReadRepository interface {
	GetSession(ctx context.Context, sessionID string) (notes.Session, error)
	LatestSessionForContext(ctx context.Context, kind notes.Kind, contextID string) (notes.Session, error)
	ListSessionsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]notes.Session, error)
	ListParticipants(ctx context.Context, sessionID string) ([]notes.Participant, error)
	ListConsentEvents(ctx context.Context, sessionID string) ([]notes.ConsentEvent, error)
	LatestConsents(ctx context.Context, sessionID string) (map[string]bool, error)
	GetJob(ctx context.Context, jobID string) (notes.Job, error)
	LatestJobForSession(ctx context.Context, sessionID string) (notes.Job, bool, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]notes.Job, error)
	GetRecording(ctx context.Context, sessionID string) (notes.Recording, bool, error)
	GetTranscriptArtifact(ctx context.Context, sessionID string) (notes.TranscriptArtifact, bool, error)
	GetReport(ctx context.Context, sessionID string) (notes.ReportArtifact, bool, error)
}

type NotesRepository interface {
	NotesReadRepository
	CreateSession(ctx context.Context, session notes.Session) error
	TransitionSession(ctx context.Context, transition SessionTransition) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) error

	UpsertParticipant(ctx context.Context, participant notes.Participant) error
	LeaveParticipant(ctx context.Context, sessionID string, actorKey string, at time.Time) (bool, error)
	AppendConsent(ctx context.Context, event notes.ConsentEvent) error

	CreateJob(ctx context.Context, job notes.Job) error
	ClaimNextQueuedJob(ctx context.Context, progress string, at time.Time) (notes.Job, bool, error)
	UpdateJobProgress(ctx context.Context, jobID string, progress string, at time.Time) error
	FinishJob(ctx context.Context, jobID string, status notes.JobStatus, progress string, errText *string, at time.Time) error

	UpsertRecording(ctx context.Context, recording notes.Recording) error
	UpsertTranscriptArtifact(ctx context.Context, transcript notes.TranscriptArtifact) error
	UpsertReport(ctx context.Context, report notes.ReportArtifact) error
}
