package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/persistence/gormdb/model"
	"pdfrealm/internal/ports"
)

type NotesRepository struct {
	db *gorm.DB
}

var _ ports.NotesRepository = (*NotesRepository)(nil)

func NewNotesRepository(db *gorm.DB) *NotesRepository {
	return &NotesRepository{db: db}
}

func (r *NotesRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *NotesRepository) CreateSession(ctx context.Context, session notes.Session) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Session{
		ID:        session.ID,
		CreatedBy: session.CreatedBy,
		Kind:      string(session.Kind),
		ContextID: session.ContextID,
		Title:     session.Title,
		Status:    string(session.Status),
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		CreatedAt: session.CreatedAt.UTC(),
		UpdatedAt: session.UpdatedAt.UTC(),
	}
	if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert session")
	}
	return nil
}

func (r *NotesRepository) GetSession(ctx context.Context, sessionID string) (notes.Session, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Session{}, err
	}

	var row model.Session
	if err := db.Where("id = ?", sessionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notes.Session{}, notes.ErrSessionNotFound
		}
		return notes.Session{}, errs.Wrap(err, "query session")
	}
	return mapSession(row), nil
}

func (r *NotesRepository) LatestSessionForContext(ctx context.Context, kind notes.Kind, contextID string) (notes.Session, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Session{}, err
	}

	var row model.Session
	err = db.Where("session_type = ? AND context_id = ?", string(kind), contextID).
		Order("created_at desc").
		Order("id desc").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notes.Session{}, notes.ErrSessionNotFound
		}
		return notes.Session{}, errs.Wrap(err, "query latest session")
	}
	return mapSession(row), nil
}

func (r *NotesRepository) ListSessionsCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]notes.Session, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}

	var rows []model.Session
	if err := db.Where("created_at < ?", cutoff.UTC()).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query expired sessions")
	}

	items := make([]notes.Session, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapSession(row))
	}
	return items, nil
}

func (r *NotesRepository) TransitionSession(ctx context.Context, transition ports.SessionTransition) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	at := transition.At.UTC()
	updates := map[string]any{
		"status":     string(transition.To),
		"updated_at": at,
	}
	if transition.SetStartedAt {
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", at)
	}
	if transition.SetEndedAt {
		updates["ended_at"] = gorm.Expr("COALESCE(ended_at, ?)", at)
	}

	query := db.Model(&model.Session{}).Where("id = ?", transition.SessionID)
	if len(transition.From) > 0 {
		query = query.Where("status IN ?", statusStrings(transition.From))
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "update session status")
	}
	return result.RowsAffected > 0, nil
}

// DeleteSession removes children explicitly so drivers without foreign key
// enforcement end up in the same state.
func (r *NotesRepository) DeleteSession(ctx context.Context, sessionID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	children := []any{
		&model.Participant{},
		&model.ConsentEvent{},
		&model.Job{},
		&model.Recording{},
		&model.Transcript{},
		&model.Report{},
	}
	for _, child := range children {
		if err := db.Where("session_id = ?", sessionID).Delete(child).Error; err != nil {
			return errs.Wrapf(err, "delete %T rows", child)
		}
	}

	if err := db.Where("id = ?", sessionID).Delete(&model.Session{}).Error; err != nil {
		return errs.Wrap(err, "delete session")
	}
	return nil
}

func (r *NotesRepository) UpsertParticipant(ctx context.Context, participant notes.Participant) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Participant{
		SessionID:   participant.SessionID,
		ActorKey:    participant.ActorKey,
		DisplayName: strings.TrimSpace(participant.DisplayName),
		JoinedAt:    participant.JoinedAt.UTC(),
	}

	updates := map[string]any{"left_at": nil}
	if row.DisplayName != "" {
		updates["display_name"] = row.DisplayName
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "actor_key"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert participant")
	}
	return nil
}

func (r *NotesRepository) LeaveParticipant(ctx context.Context, sessionID string, actorKey string, at time.Time) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.Participant{}).
		Where("session_id = ? AND actor_key = ? AND left_at IS NULL", sessionID, actorKey).
		Update("left_at", at.UTC())
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "mark participant left")
	}
	return result.RowsAffected > 0, nil
}

func (r *NotesRepository) ListParticipants(ctx context.Context, sessionID string) ([]notes.Participant, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Participant
	if err := db.Where("session_id = ?", sessionID).
		Order("joined_at asc").
		Order("actor_key asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query participants")
	}

	items := make([]notes.Participant, 0, len(rows))
	for _, row := range rows {
		items = append(items, notes.Participant{
			SessionID:   row.SessionID,
			ActorKey:    row.ActorKey,
			DisplayName: row.DisplayName,
			JoinedAt:    row.JoinedAt,
			LeftAt:      row.LeftAt,
		})
	}
	return items, nil
}

func (r *NotesRepository) AppendConsent(ctx context.Context, event notes.ConsentEvent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ConsentEvent{
		SessionID: event.SessionID,
		ActorKey:  event.ActorKey,
		Consent:   event.Consent,
		CreatedAt: event.CreatedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert consent event")
	}
	return nil
}

// ListConsentEvents returns the log oldest first. The autoincrement id breaks
// ties between events written in the same instant.
func (r *NotesRepository) ListConsentEvents(ctx context.Context, sessionID string) ([]notes.ConsentEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.ConsentEvent
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at asc").
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query consent events")
	}

	items := make([]notes.ConsentEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, notes.ConsentEvent{
			ID:        row.ID,
			SessionID: row.SessionID,
			ActorKey:  row.ActorKey,
			Consent:   row.Consent,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *NotesRepository) LatestConsents(ctx context.Context, sessionID string) (map[string]bool, error) {
	events, err := r.ListConsentEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return notes.LatestConsents(events), nil
}

func (r *NotesRepository) CreateJob(ctx context.Context, job notes.Job) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Job{
		ID:        job.ID,
		SessionID: job.SessionID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC(),
		UpdatedAt: job.UpdatedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert job")
	}
	return nil
}

func (r *NotesRepository) GetJob(ctx context.Context, jobID string) (notes.Job, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Job{}, err
	}

	var row model.Job
	if err := db.Where("id = ?", jobID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notes.Job{}, notes.ErrJobNotFound
		}
		return notes.Job{}, errs.Wrap(err, "query job")
	}
	return mapJob(row), nil
}

func (r *NotesRepository) LatestJobForSession(ctx context.Context, sessionID string) (notes.Job, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Job{}, false, err
	}

	var rows []model.Job
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at desc").
		Order("id desc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return notes.Job{}, false, errs.Wrap(err, "query latest job")
	}
	if len(rows) == 0 {
		return notes.Job{}, false, nil
	}
	return mapJob(rows[0]), true, nil
}

func (r *NotesRepository) ListJobs(ctx context.Context, filter ports.JobFilter) ([]notes.Job, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Job{})
	if sessionID := strings.TrimSpace(filter.SessionID); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		query = query.Where("status IN ?", statuses)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []model.Job
	if err := query.Order("created_at desc").Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query jobs")
	}

	items := make([]notes.Job, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapJob(row))
	}
	return items, nil
}

// ClaimNextQueuedJob flips the oldest QUEUED job to RUNNING. The conditional
// update makes a concurrent claim of the same row lose cleanly.
func (r *NotesRepository) ClaimNextQueuedJob(ctx context.Context, progress string, at time.Time) (notes.Job, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Job{}, false, err
	}

	var rows []model.Job
	if err := db.Where("status = ?", string(notes.JobQueued)).
		Order("created_at asc").
		Order("id asc").
		Limit(1).
		Find(&rows).Error; err != nil {
		return notes.Job{}, false, errs.Wrap(err, "query queued job")
	}
	if len(rows) == 0 {
		return notes.Job{}, false, nil
	}

	row := rows[0]
	result := db.Model(&model.Job{}).
		Where("id = ? AND status = ?", row.ID, string(notes.JobQueued)).
		Updates(map[string]any{
			"status":     string(notes.JobRunning),
			"progress":   progress,
			"updated_at": at.UTC(),
		})
	if result.Error != nil {
		return notes.Job{}, false, errs.Wrap(result.Error, "claim queued job")
	}
	if result.RowsAffected == 0 {
		return notes.Job{}, false, nil
	}

	row.Status = string(notes.JobRunning)
	row.Progress = progress
	row.UpdatedAt = at.UTC()
	return mapJob(row), true, nil
}

func (r *NotesRepository) UpdateJobProgress(ctx context.Context, jobID string, progress string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]any{
		"progress":   progress,
		"updated_at": at.UTC(),
	}).Error; err != nil {
		return errs.Wrap(err, "update job progress")
	}
	return nil
}

func (r *NotesRepository) FinishJob(ctx context.Context, jobID string, status notes.JobStatus, progress string, errText *string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]any{
		"status":     string(status),
		"progress":   progress,
		"error":      errText,
		"updated_at": at.UTC(),
	}).Error; err != nil {
		return errs.Wrap(err, "finish job")
	}
	return nil
}

func (r *NotesRepository) UpsertRecording(ctx context.Context, recording notes.Recording) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Recording{
		SessionID:   recording.SessionID,
		StorageKey:  recording.StorageKey,
		MimeType:    recording.MimeType,
		SizeBytes:   recording.SizeBytes,
		DurationSec: recording.DurationSec,
		CreatedAt:   recording.CreatedAt.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"storage_key":  row.StorageKey,
			"mime_type":    row.MimeType,
			"size_bytes":   row.SizeBytes,
			"duration_sec": row.DurationSec,
			"created_at":   row.CreatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert recording")
	}
	return nil
}

func (r *NotesRepository) UpsertTranscriptArtifact(ctx context.Context, transcript notes.TranscriptArtifact) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Transcript{
		SessionID:  transcript.SessionID,
		StorageKey: transcript.StorageKey,
		Language:   transcript.Language,
		Diarized:   transcript.Diarized,
		CreatedAt:  transcript.CreatedAt.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"storage_key": row.StorageKey,
			"language":    row.Language,
			"diarized":    row.Diarized,
			"created_at":  row.CreatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert transcript")
	}
	return nil
}

func (r *NotesRepository) UpsertReport(ctx context.Context, report notes.ReportArtifact) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	summary, err := json.Marshal(report.Notes)
	if err != nil {
		return errs.Wrap(err, "encode report summary")
	}

	row := model.Report{
		SessionID:   report.SessionID,
		StorageKey:  report.StorageKey,
		SizeBytes:   report.SizeBytes,
		SummaryJSON: summary,
		CreatedAt:   report.CreatedAt.UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"storage_key":  row.StorageKey,
			"size_bytes":   row.SizeBytes,
			"summary_json": row.SummaryJSON,
			"created_at":   row.CreatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert report")
	}
	return nil
}

func (r *NotesRepository) GetRecording(ctx context.Context, sessionID string) (notes.Recording, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.Recording{}, false, err
	}

	var rows []model.Recording
	if err := db.Where("session_id = ?", sessionID).Limit(1).Find(&rows).Error; err != nil {
		return notes.Recording{}, false, errs.Wrap(err, "query recording")
	}
	if len(rows) == 0 {
		return notes.Recording{}, false, nil
	}
	row := rows[0]
	return notes.Recording{
		SessionID:   row.SessionID,
		StorageKey:  row.StorageKey,
		MimeType:    row.MimeType,
		SizeBytes:   row.SizeBytes,
		DurationSec: row.DurationSec,
		CreatedAt:   row.CreatedAt,
	}, true, nil
}

func (r *NotesRepository) GetTranscriptArtifact(ctx context.Context, sessionID string) (notes.TranscriptArtifact, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.TranscriptArtifact{}, false, err
	}

	var rows []model.Transcript
	if err := db.Where("session_id = ?", sessionID).Limit(1).Find(&rows).Error; err != nil {
		return notes.TranscriptArtifact{}, false, errs.Wrap(err, "query transcript")
	}
	if len(rows) == 0 {
		return notes.TranscriptArtifact{}, false, nil
	}
	row := rows[0]
	return notes.TranscriptArtifact{
		SessionID:  row.SessionID,
		StorageKey: row.StorageKey,
		Language:   row.Language,
		Diarized:   row.Diarized,
		CreatedAt:  row.CreatedAt,
	}, true, nil
}

func (r *NotesRepository) GetReport(ctx context.Context, sessionID string) (notes.ReportArtifact, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return notes.ReportArtifact{}, false, err
	}

	var rows []model.Report
	if err := db.Where("session_id = ?", sessionID).Limit(1).Find(&rows).Error; err != nil {
		return notes.ReportArtifact{}, false, errs.Wrap(err, "query report")
	}
	if len(rows) == 0 {
		return notes.ReportArtifact{}, false, nil
	}

	row := rows[0]
	report := notes.ReportArtifact{
		SessionID:  row.SessionID,
		StorageKey: row.StorageKey,
		SizeBytes:  row.SizeBytes,
		CreatedAt:  row.CreatedAt,
	}
	if len(row.SummaryJSON) > 0 {
		if err := json.Unmarshal(row.SummaryJSON, &report.Notes); err != nil {
			return notes.ReportArtifact{}, false, errs.Wrap(err, "decode report summary")
		}
	}
	return report, true, nil
}

func mapSession(row model.Session) notes.Session {
	return notes.Session{
		ID:        row.ID,
		CreatedBy: row.CreatedBy,
		Kind:      notes.Kind(row.Kind),
		ContextID: row.ContextID,
		Title:     row.Title,
		Status:    notes.Status(row.Status),
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func mapJob(row model.Job) notes.Job {
	return notes.Job{
		ID:        row.ID,
		SessionID: row.SessionID,
		Status:    notes.JobStatus(row.Status),
		Progress:  row.Progress,
		Error:     row.Error,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func statusStrings(statuses []notes.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
