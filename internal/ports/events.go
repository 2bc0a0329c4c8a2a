package ports

import (
	"context"
	"time"

	"pdfrealm/internal/domain/notes"
)

type JobEvent struct {
	JobID         string          `json:"jobId"`
	SessionID     string          `json:"sessionId"`
	Status        notes.JobStatus `json:"status"`
	Progress      string          `json:"progress"`
	Error         string          `json:"error,omitempty"`
	SessionStatus notes.Status    `json:"sessionStatus"`
	At            time.Time       `json:"at"`
}

// JobEventPublisher fans job progress out to other processes. Publishing is
// best-effort and never fails a job.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event JobEvent) error
}
