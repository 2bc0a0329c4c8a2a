package notes

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

const (
	defaultRetentionDays     = 7
	defaultRetentionInterval = 24 * time.Hour
	defaultRetentionDelay    = 10 * time.Second
	defaultRetentionBatch    = 200
)

type RetentionOptions struct {
	Days         int
	Interval     time.Duration
	InitialDelay time.Duration
	Batch        int
}

type SweepResult struct {
	Deleted int
	Failed  int
}

// Sweeper purges sessions older than the retention window through the same
// deletion routine the owner uses.
type Sweeper struct {
	service *Service
	opts    RetentionOptions

	mu sync.Mutex
	// failing holds sessions whose deletion failed in an earlier sweep. They
	// are retried after every other expired session.
	failing map[string]struct{}
}

func NewSweeper(service *Service, opts RetentionOptions) *Sweeper {
	if opts.Days <= 0 {
		opts.Days = defaultRetentionDays
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRetentionInterval
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultRetentionDelay
	}
	if opts.Batch <= 0 {
		opts.Batch = defaultRetentionBatch
	}
	return &Sweeper{service: service, opts: opts, failing: make(map[string]struct{})}
}

// SweepOnce deletes expired sessions. Per-session failures are logged and
// counted; the sweep keeps going.
func (w *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	if w == nil || w.service == nil {
		return SweepResult{}, errors.New("notes service is required")
	}
	if err := w.service.ready(ctx); err != nil {
		return SweepResult{}, err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notes.retention"))
	cutoff := w.service.now().Add(-time.Duration(w.opts.Days) * 24 * time.Hour)

	w.mu.Lock()
	defer w.mu.Unlock()

	sessions, err := w.service.repo.ListSessionsCreatedBefore(ctx, cutoff, w.opts.Batch+len(w.failing))
	if err != nil {
		return SweepResult{}, err
	}

	ordered := make([]domain.Session, 0, len(sessions))
	var retries []domain.Session
	for _, session := range sessions {
		if _, failed := w.failing[session.ID]; failed {
			retries = append(retries, session)
			continue
		}
		ordered = append(ordered, session)
	}
	ordered = append(ordered, retries...)
	if len(ordered) > w.opts.Batch {
		ordered = ordered[:w.opts.Batch]
	}

	var result SweepResult
	for _, session := range ordered {
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(err, "check context")
		}
		if err := w.service.deleteSessionArtifacts(ctx, session.ID); err != nil {
			result.Failed++
			w.failing[session.ID] = struct{}{}
			logging.Warn(logCtx, "retention delete failed",
				slog.String("session_id", session.ID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		delete(w.failing, session.ID)
		result.Deleted++
	}

	if result.Deleted > 0 || result.Failed > 0 {
		logging.Info(logCtx, "retention sweep finished",
			slog.Int("deleted", result.Deleted),
			slog.Int("failed", result.Failed),
			slog.Time("cutoff", cutoff),
		)
	}
	return result, nil
}

// Run sweeps once after the initial delay, then on every interval until ctx
// is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notes.retention"))

	timer := time.NewTimer(w.opts.InitialDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Error(logCtx, "retention sweep failed", slog.Any("err", errs.Loggable(err)))
		}
		timer.Reset(w.opts.Interval)
	}
}
