package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

const (
	progressStarting   = "Starting…"
	progressLoading    = "Loading inputs…"
	progressChat       = "Reading chat transcript…"
	progressStitching  = "Stitching audio chunks…"
	progressTranscribe = "Transcribing audio…"
	progressSummarize  = "Summarizing transcript…"
	progressRender     = "Rendering PDF report…"
	progressStore      = "Storing artifacts in Vault…"
	progressDone       = "Done."
	progressFailed     = "Failed."

	defaultVaultFolder    = "Secure AI Notes"
	defaultMaxJobErrorLen = 2000
	defaultPollInterval   = 2 * time.Second
	defaultPollFirstTick  = 500 * time.Millisecond
	recordingMimeType     = "audio/webm"
	transcriptBundleMime  = "application/json"
	reportMimeType        = "application/pdf"
	recoverBatch          = 50
)

var errJobInterrupted = errors.New("job interrupted before completion")

type RunnerOptions struct {
	WorkDir           string
	VaultFolder       string
	Language          string
	IncludeTranscript bool
	MaxJobErrorChars  int
	PollInterval      time.Duration
	PollInitialDelay  time.Duration
}

type RunnerDeps struct {
	Repo        ports.NotesRepository
	UOW         ports.UnitOfWork
	Vault       ports.Vault
	Stitcher    ports.Stitcher
	Transcriber ports.Transcriber
	Summarizer  ports.Summarizer
	Renderer    ports.ReportRenderer
	Events      ports.JobEventPublisher
}

// JobRunner drains the job queue one job at a time. A tick that finds the
// runner busy does nothing.
type JobRunner struct {
	deps    RunnerDeps
	opts    RunnerOptions
	running atomic.Bool
	now     func() time.Time
}

func NewJobRunner(deps RunnerDeps, opts RunnerOptions) *JobRunner {
	if opts.VaultFolder == "" {
		opts.VaultFolder = defaultVaultFolder
	}
	if opts.MaxJobErrorChars <= 0 {
		opts.MaxJobErrorChars = defaultMaxJobErrorLen
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PollInitialDelay <= 0 {
		opts.PollInitialDelay = defaultPollFirstTick
	}
	return &JobRunner{
		deps: deps,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until ctx is cancelled.
func (r *JobRunner) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notes.runner"))
	logging.Info(logCtx, "job runner started", slog.Duration("poll_interval", r.opts.PollInterval))

	if _, err := r.RecoverInterrupted(ctx); err != nil {
		logging.Error(logCtx, "recover interrupted jobs failed", slog.Any("err", errs.Loggable(err)))
	}

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(r.opts.PollInitialDelay):
	}

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := r.Tick(ctx); err != nil {
			logging.Error(logCtx, "job runner tick failed", slog.Any("err", errs.Loggable(err)))
		}
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "job runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick claims the oldest queued job and runs it to completion. It reports
// whether a job was processed.
func (r *JobRunner) Tick(ctx context.Context) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}
	if !r.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer r.running.Store(false)

	job, found, err := r.deps.Repo.ClaimNextQueuedJob(ctx, progressStarting, r.now())
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	r.publish(ctx, job.ID, job.SessionID, domain.JobRunning, progressStarting, "", domain.StatusFinalizing)

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.notes.runner"),
		slog.String("job_id", job.ID),
		slog.String("session_id", job.SessionID),
	)
	logging.Info(logCtx, "job claimed")

	// A claimed job runs to completion even when ctx is cancelled by shutdown.
	jobCtx := context.WithoutCancel(logCtx)
	if err := r.runSafely(jobCtx, job); err != nil {
		logging.Error(logCtx, "job failed", slog.Any("err", errs.Loggable(err)))
		if failErr := r.fail(jobCtx, job, err); failErr != nil {
			return true, failErr
		}
		return true, nil
	}
	logging.Info(logCtx, "job done")
	return true, nil
}

// RecoverInterrupted fails RUNNING jobs left behind by a process that died
// mid-job, so their sessions leave PROCESSING. Only call it while no runner
// is active.
func (r *JobRunner) RecoverInterrupted(ctx context.Context) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}
	if !r.running.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer r.running.Store(false)

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.notes.runner"))
	recovered := 0
	for {
		stranded, err := r.deps.Repo.ListJobs(ctx, ports.JobFilter{
			Statuses: []domain.JobStatus{domain.JobRunning},
			Limit:    recoverBatch,
		})
		if err != nil {
			return recovered, err
		}
		for _, job := range stranded {
			if err := r.fail(ctx, job, errJobInterrupted); err != nil {
				return recovered, err
			}
			recovered++
			logging.Warn(logCtx, "interrupted job marked failed",
				slog.String("job_id", job.ID),
				slog.String("session_id", job.SessionID),
			)
		}
		if len(stranded) < recoverBatch {
			return recovered, nil
		}
	}
}

func (r *JobRunner) runSafely(ctx context.Context, job domain.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.WithStack(fmt.Errorf("job panicked: %v", rec))
		}
	}()
	return r.process(ctx, job)
}

func (r *JobRunner) process(ctx context.Context, job domain.Job) error {
	repo := r.deps.Repo

	session, err := repo.GetSession(ctx, job.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return errors.New("session not found for job")
		}
		return err
	}
	moved, err := repo.TransitionSession(ctx, ports.SessionTransition{
		SessionID: session.ID,
		From:      []domain.Status{domain.StatusFinalizing, domain.StatusProcessing},
		To:        domain.StatusProcessing,
		At:        r.now(),
	})
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("session %s is %s, expected FINALIZING", session.ID, session.Status)
	}
	session.Status = domain.StatusProcessing

	if err := r.progress(ctx, job, progressLoading); err != nil {
		return err
	}
	sessionDir := filepath.Join(r.opts.WorkDir, session.ID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return errs.Wrap(err, "create session dir")
	}
	participants, err := repo.ListParticipants(ctx, session.ID)
	if err != nil {
		return err
	}
	latest, err := repo.LatestConsents(ctx, session.ID)
	if err != nil {
		return err
	}
	tally := domain.ComputeTally(participants, latest)
	ownerID, ok := domain.UserIDFromKey(session.CreatedBy)
	if !ok {
		return errors.New("session created_by is invalid")
	}

	var (
		transcript   domain.Transcript
		combinedPath string
	)
	if session.Kind == domain.KindChat {
		if err := r.progress(ctx, job, progressChat); err != nil {
			return err
		}
		transcript, err = readChatTranscript(sessionDir)
		if err != nil {
			return err
		}
	} else {
		if err := r.progress(ctx, job, progressStitching); err != nil {
			return err
		}
		stitched, err := r.deps.Stitcher.Stitch(ctx, sessionDir)
		if err != nil {
			return err
		}
		combinedPath = stitched.CombinedPath

		if err := r.progress(ctx, job, progressTranscribe); err != nil {
			return err
		}
		transcript, err = r.deps.Transcriber.Transcribe(ctx, stitched.WavPath, r.opts.Language)
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(sessionDir, transcriptFile), transcript); err != nil {
			return err
		}
	}

	meta := ports.SessionMeta{
		ID:        session.ID,
		Kind:      session.Kind,
		ContextID: session.ContextID,
		Title:     session.Title,
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}

	if err := r.progress(ctx, job, progressSummarize); err != nil {
		return err
	}
	summary, err := r.deps.Summarizer.Summarize(ctx, transcript, meta)
	if err != nil {
		return err
	}
	summary = summary.Normalize()

	if err := r.progress(ctx, job, progressRender); err != nil {
		return err
	}
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, participantLabel(p))
	}
	pdf, err := r.deps.Renderer.Render(ports.ReportInput{
		Session:           meta,
		Participants:      names,
		Notes:             summary,
		Transcript:        transcript,
		IncludeTranscript: r.opts.IncludeTranscript,
		GeneratedAt:       r.now(),
	})
	if err != nil {
		return errs.Wrap(err, "render report")
	}

	if err := r.progress(ctx, job, progressStore); err != nil {
		return err
	}
	bundle, err := json.MarshalIndent(newTranscriptBundle(session, participants, tally, transcript, summary), "", "  ")
	if err != nil {
		return errs.Wrap(err, "marshal transcript bundle")
	}
	if err := r.storeArtifacts(ctx, session, ownerID, transcript.Language, bundle, pdf, summary, combinedPath); err != nil {
		return err
	}

	if err := r.deps.UOW.WithTx(ctx, func(txCtx context.Context) error {
		if err := repo.FinishJob(txCtx, job.ID, domain.JobReady, progressDone, nil, r.now()); err != nil {
			return err
		}
		_, err := repo.TransitionSession(txCtx, ports.SessionTransition{
			SessionID: session.ID,
			From:      []domain.Status{domain.StatusProcessing},
			To:        domain.StatusReady,
			At:        r.now(),
		})
		return err
	}); err != nil {
		return err
	}
	r.publish(ctx, job.ID, session.ID, domain.JobReady, progressDone, "", domain.StatusReady)
	return nil
}

// storeArtifacts writes each object to the vault and then upserts its row.
// A crash between the two leaves an orphan object; nothing rolls it back.
func (r *JobRunner) storeArtifacts(ctx context.Context, session domain.Session, ownerID string, language string, bundle []byte, pdf []byte, summary domain.Notes, combinedPath string) error {
	repo := r.deps.Repo
	vault := r.deps.Vault
	folder := r.opts.VaultFolder

	transcriptObj, err := vault.Put(ctx, ports.VaultPutInput{
		OwnerID:    ownerID,
		FolderPath: folder,
		FileName:   session.ID + "_transcript.json",
		MimeType:   transcriptBundleMime,
		Data:       bundle,
	})
	if err != nil {
		return errs.Wrap(err, "store transcript")
	}
	previousTranscript, _, err := repo.GetTranscriptArtifact(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := repo.UpsertTranscriptArtifact(ctx, domain.TranscriptArtifact{
		SessionID:  session.ID,
		StorageKey: transcriptObj.Key,
		Language:   language,
		Diarized:   false,
		CreatedAt:  r.now(),
	}); err != nil {
		return err
	}
	r.dropReplaced(ctx, previousTranscript.StorageKey, transcriptObj.Key)

	reportObj, err := vault.Put(ctx, ports.VaultPutInput{
		OwnerID:    ownerID,
		FolderPath: folder,
		FileName:   session.ID + "_report.pdf",
		MimeType:   reportMimeType,
		Data:       pdf,
	})
	if err != nil {
		return errs.Wrap(err, "store report")
	}
	previousReport, _, err := repo.GetReport(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := repo.UpsertReport(ctx, domain.ReportArtifact{
		SessionID:  session.ID,
		StorageKey: reportObj.Key,
		SizeBytes:  int64(len(pdf)),
		Notes:      summary,
		CreatedAt:  r.now(),
	}); err != nil {
		return err
	}
	r.dropReplaced(ctx, previousReport.StorageKey, reportObj.Key)

	if combinedPath == "" {
		return nil
	}
	if _, err := os.Stat(combinedPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(err, "stat combined audio")
	}
	audioObj, err := vault.PutFile(ctx, ports.VaultPutFileInput{
		OwnerID:    ownerID,
		FolderPath: folder,
		FileName:   session.ID + "_audio.webm",
		MimeType:   recordingMimeType,
		Path:       combinedPath,
	})
	if err != nil {
		return errs.Wrap(err, "store recording")
	}
	previousRecording, _, err := repo.GetRecording(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := repo.UpsertRecording(ctx, domain.Recording{
		SessionID:  session.ID,
		StorageKey: audioObj.Key,
		MimeType:   recordingMimeType,
		SizeBytes:  audioObj.SizeBytes,
		CreatedAt:  r.now(),
	}); err != nil {
		return err
	}
	r.dropReplaced(ctx, previousRecording.StorageKey, audioObj.Key)
	return nil
}

// dropReplaced removes the object a re-finalized session no longer points at.
func (r *JobRunner) dropReplaced(ctx context.Context, previous string, current string) {
	if previous == "" || previous == current {
		return
	}
	if err := r.deps.Vault.Delete(ctx, previous); err != nil {
		logging.Warn(ctx, "failed to delete replaced artifact",
			slog.String("key", previous),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func (r *JobRunner) progress(ctx context.Context, job domain.Job, progress string) error {
	if err := r.deps.Repo.UpdateJobProgress(ctx, job.ID, progress, r.now()); err != nil {
		return err
	}
	logging.Debug(ctx, "job progress", slog.String("progress", progress))
	r.publish(ctx, job.ID, job.SessionID, domain.JobRunning, progress, "", domain.StatusProcessing)
	return nil
}

func (r *JobRunner) fail(ctx context.Context, job domain.Job, cause error) error {
	ctx = context.WithoutCancel(ctx)
	message := truncateRunes(cause.Error(), r.opts.MaxJobErrorChars)
	err := r.deps.UOW.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.deps.Repo.FinishJob(txCtx, job.ID, domain.JobFailed, progressFailed, &message, r.now()); err != nil {
			return err
		}
		_, err := r.deps.Repo.TransitionSession(txCtx, ports.SessionTransition{
			SessionID: job.SessionID,
			From:      domain.LiveStatuses,
			To:        domain.StatusFailed,
			At:        r.now(),
		})
		return err
	})
	if err != nil {
		return errs.Wrap(err, "record job failure")
	}
	r.publish(ctx, job.ID, job.SessionID, domain.JobFailed, progressFailed, message, domain.StatusFailed)
	return nil
}

func (r *JobRunner) publish(ctx context.Context, jobID string, sessionID string, status domain.JobStatus, progress string, errText string, sessionStatus domain.Status) {
	if r.deps.Events == nil {
		return
	}
	err := r.deps.Events.PublishJobEvent(ctx, ports.JobEvent{
		JobID:         jobID,
		SessionID:     sessionID,
		Status:        status,
		Progress:      progress,
		Error:         errText,
		SessionStatus: sessionStatus,
		At:            r.now(),
	})
	if err != nil {
		logging.Warn(ctx, "publish job event failed", slog.Any("err", errs.Loggable(err)))
	}
}

func readChatTranscript(sessionDir string) (domain.Transcript, error) {
	raw, err := os.ReadFile(filepath.Join(sessionDir, chatTranscriptFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Transcript{}, domain.ErrChatTranscriptMissing
		}
		return domain.Transcript{}, errs.Wrap(err, "read chat transcript")
	}
	chat, err := domain.ParseChatTranscript(raw)
	if err != nil {
		return domain.Transcript{}, err
	}
	return chat.Transcript(), nil
}

func writeJSON(path string, value any) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errs.Wrapf(err, "marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return errs.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}

func participantLabel(p domain.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ActorKey
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

type bundleSession struct {
	ID          string        `json:"id"`
	SessionType domain.Kind   `json:"sessionType"`
	ContextID   string        `json:"contextId"`
	Title       string        `json:"title"`
	Status      domain.Status `json:"status"`
	StartedAt   *time.Time    `json:"startedAt"`
	EndedAt     *time.Time    `json:"endedAt"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type bundleParticipant struct {
	ActorKey    string     `json:"actorKey"`
	DisplayName string     `json:"displayName"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt"`
}

// transcriptBundle is the JSON document stored next to the report.
type transcriptBundle struct {
	Session      bundleSession       `json:"session"`
	Participants []bundleParticipant `json:"participants"`
	Consent      domain.Tally        `json:"consent"`
	Transcript   domain.Transcript   `json:"transcript"`
	Summary      domain.Notes        `json:"summary"`
}

func newTranscriptBundle(session domain.Session, participants []domain.Participant, tally domain.Tally, transcript domain.Transcript, summary domain.Notes) transcriptBundle {
	out := transcriptBundle{
		Session: bundleSession{
			ID:          session.ID,
			SessionType: session.Kind,
			ContextID:   session.ContextID,
			Title:       session.Title,
			Status:      session.Status,
			StartedAt:   session.StartedAt,
			EndedAt:     session.EndedAt,
			CreatedAt:   session.CreatedAt,
		},
		Participants: make([]bundleParticipant, 0, len(participants)),
		Consent:      tally,
		Transcript:   transcript,
		Summary:      summary,
	}
	for _, p := range participants {
		out.Participants = append(out.Participants, bundleParticipant{
			ActorKey:    p.ActorKey,
			DisplayName: p.DisplayName,
			JoinedAt:    p.JoinedAt,
			LeftAt:      p.LeftAt,
		})
	}
	return out
}
