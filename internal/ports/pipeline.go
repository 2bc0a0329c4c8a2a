package ports

import (
	"context"
	"time"

	"pdfrealm/internal/domain/notes"
)

type StitchResult struct {
	CombinedPath string
	WavPath      string
	ChunkCount   int
}

// Stitcher joins the chunk files of a session working directory.
type Stitcher interface {
	Stitch(ctx context.Context, sessionDir string) (StitchResult, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string, language string) (notes.Transcript, error)
}

// SessionMeta is the context handed to providers and the renderer.
type SessionMeta struct {
	ID        string
	Kind      notes.Kind
	ContextID string
	Title     string
	StartedAt *time.Time
	EndedAt   *time.Time
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript notes.Transcript, meta SessionMeta) (notes.Notes, error)
}

type ReportInput struct {
	Session           SessionMeta
	Participants      []string
	Notes             notes.Notes
	Transcript        notes.Transcript
	IncludeTranscript bool
	GeneratedAt       time.Time
}

type ReportRenderer interface {
	Render(input ReportInput) ([]byte, error)
}
