package notes

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a notes session.
type Status string

const (
	StatusConsentPending Status = "CONSENT_PENDING"
	StatusRecording      Status = "RECORDING"
	StatusFinalizing     Status = "FINALIZING"
	StatusProcessing     Status = "PROCESSING"
	StatusReady          Status = "READY"
	StatusFailed         Status = "FAILED"
)

// Terminal reports whether no transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusFailed
}

// Kind is the collaboration context a session is attached to.
type Kind string

const (
	KindVideo Kind = "video"
	KindVoice Kind = "voice"
	KindChat  Kind = "chat"
)

// ParseKind accepts the canonical kinds plus the legacy "voip" alias.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "video":
		return KindVideo, nil
	case "voice", "voip":
		return KindVoice, nil
	case "chat":
		return KindChat, nil
	default:
		return "", ErrInvalidKind
	}
}

type JobStatus string

const (
	JobQueued  JobStatus = "QUEUED"
	JobRunning JobStatus = "RUNNING"
	JobReady   JobStatus = "READY"
	JobFailed  JobStatus = "FAILED"
)

func (s JobStatus) Done() bool {
	return s == JobReady || s == JobFailed
}

type Session struct {
	ID        string
	CreatedBy string
	Kind      Kind
	ContextID string
	Title     string
	Status    Status
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether actor created the session.
func (s Session) OwnedBy(actor Actor) bool {
	return actor.Key != "" && s.CreatedBy == actor.Key
}

type Participant struct {
	SessionID   string
	ActorKey    string
	DisplayName string
	JoinedAt    time.Time
	LeftAt      *time.Time
}

func (p Participant) Active() bool {
	return p.LeftAt == nil
}

type ConsentEvent struct {
	ID        uint64
	SessionID string
	ActorKey  string
	Consent   bool
	CreatedAt time.Time
}

type Job struct {
	ID        string
	SessionID string
	Status    JobStatus
	Progress  string
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Recording struct {
	SessionID   string
	StorageKey  string
	MimeType    string
	SizeBytes   int64
	DurationSec *float64
	CreatedAt   time.Time
}

type TranscriptArtifact struct {
	SessionID  string
	StorageKey string
	Language   string
	Diarized   bool
	CreatedAt  time.Time
}

type ReportArtifact struct {
	SessionID  string
	StorageKey string
	SizeBytes  int64
	Notes      Notes
	CreatedAt  time.Time
}
