package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"pdfrealm/internal/bootstrap/database"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/infrastructure/persistence/gormdb/model"
	"pdfrealm/internal/infrastructure/persistence/gormdb/uow"
	"pdfrealm/internal/ports"
)

func setupRepository(t *testing.T) (*NotesRepository, *gorm.DB) {
	t.Helper()

	dsn := database.SQLiteDSN(filepath.Join(t.TempDir(), "notes.sqlite"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewNotesRepository(db), db
}

func seedSession(t *testing.T, repo *NotesRepository, id string, createdAt time.Time) notes.Session {
	t.Helper()

	session := notes.Session{
		ID:        id,
		CreatedBy: "user:owner",
		Kind:      notes.KindVideo,
		ContextID: "room-1",
		Title:     "Weekly sync",
		Status:    notes.StatusConsentPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return session
}

func TestUpsertParticipantIsIdempotent(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	if err := repo.UpsertParticipant(ctx, notes.Participant{SessionID: "s1", ActorKey: "user:a", DisplayName: "Ana", JoinedAt: now}); err != nil {
		t.Fatalf("UpsertParticipant() error = %v", err)
	}
	if _, err := repo.LeaveParticipant(ctx, "s1", "user:a", now.Add(time.Minute)); err != nil {
		t.Fatalf("LeaveParticipant() error = %v", err)
	}
	if err := repo.UpsertParticipant(ctx, notes.Participant{SessionID: "s1", ActorKey: "user:a", DisplayName: "Ana B.", JoinedAt: now.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("UpsertParticipant(again) error = %v", err)
	}

	var count int64
	if err := db.Model(&model.Participant{}).Where("session_id = ?", "s1").Count(&count).Error; err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if count != 1 {
		t.Fatalf("participant rows = %d, want 1", count)
	}

	items, err := repo.ListParticipants(ctx, "s1")
	if err != nil {
		t.Fatalf("ListParticipants() error = %v", err)
	}
	if items[0].DisplayName != "Ana B." || items[0].LeftAt != nil {
		t.Fatalf("participant = %+v", items[0])
	}
}

func TestUpsertParticipantKeepsNameWhenEmpty(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	_ = repo.UpsertParticipant(ctx, notes.Participant{SessionID: "s1", ActorKey: "guest:g", DisplayName: "Guest", JoinedAt: now})
	if err := repo.UpsertParticipant(ctx, notes.Participant{SessionID: "s1", ActorKey: "guest:g", JoinedAt: now}); err != nil {
		t.Fatalf("UpsertParticipant() error = %v", err)
	}

	items, _ := repo.ListParticipants(ctx, "s1")
	if len(items) != 1 || items[0].DisplayName != "Guest" {
		t.Fatalf("participants = %+v", items)
	}
}

func TestConsentLogKeepsEveryRowAndLatestWins(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	same := now.Add(time.Second)
	for _, consent := range []bool{true, false} {
		if err := repo.AppendConsent(ctx, notes.ConsentEvent{SessionID: "s1", ActorKey: "user:a", Consent: consent, CreatedAt: same}); err != nil {
			t.Fatalf("AppendConsent() error = %v", err)
		}
	}

	events, err := repo.ListConsentEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ListConsentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	latest, err := repo.LatestConsents(ctx, "s1")
	if err != nil {
		t.Fatalf("LatestConsents() error = %v", err)
	}
	if latest["user:a"] {
		t.Fatalf("latest consent should be false after decline")
	}
}

func TestTransitionSessionHonorsFromSet(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	ok, err := repo.TransitionSession(ctx, ports.SessionTransition{
		SessionID:    "s1",
		From:         notes.CaptureStatuses,
		To:           notes.StatusRecording,
		At:           now,
		SetStartedAt: true,
	})
	if err != nil || !ok {
		t.Fatalf("TransitionSession(start) = %v, %v", ok, err)
	}

	later := now.Add(time.Hour)
	if _, err := repo.TransitionSession(ctx, ports.SessionTransition{
		SessionID: "s1", From: notes.CaptureStatuses, To: notes.StatusRecording, At: later, SetStartedAt: true,
	}); err != nil {
		t.Fatalf("TransitionSession(again) error = %v", err)
	}

	session, _ := repo.GetSession(ctx, "s1")
	if session.StartedAt == nil || !session.StartedAt.Equal(now) {
		t.Fatalf("StartedAt = %v, want coalesced %v", session.StartedAt, now)
	}

	ok, err = repo.TransitionSession(ctx, ports.SessionTransition{
		SessionID: "s1", From: []notes.Status{notes.StatusFinalizing}, To: notes.StatusProcessing, At: later,
	})
	if err != nil {
		t.Fatalf("TransitionSession(mismatch) error = %v", err)
	}
	if ok {
		t.Fatalf("TransitionSession() should not apply outside the From set")
	}
}

func TestClaimNextQueuedJobTakesOldest(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)
	seedSession(t, repo, "s2", now)

	_ = repo.CreateJob(ctx, notes.Job{ID: "j-new", SessionID: "s2", Status: notes.JobQueued, Progress: "Queued", CreatedAt: now.Add(time.Second), UpdatedAt: now})
	_ = repo.CreateJob(ctx, notes.Job{ID: "j-old", SessionID: "s1", Status: notes.JobQueued, Progress: "Queued", CreatedAt: now, UpdatedAt: now})

	job, ok, err := repo.ClaimNextQueuedJob(ctx, "Starting…", now)
	if err != nil || !ok {
		t.Fatalf("ClaimNextQueuedJob() = %v, %v", ok, err)
	}
	if job.ID != "j-old" || job.Status != notes.JobRunning {
		t.Fatalf("claimed = %+v", job)
	}

	job, ok, _ = repo.ClaimNextQueuedJob(ctx, "Starting…", now)
	if !ok || job.ID != "j-new" {
		t.Fatalf("second claim = %+v, %v", job, ok)
	}
	if _, ok, _ := repo.ClaimNextQueuedJob(ctx, "Starting…", now); ok {
		t.Fatalf("queue should be empty")
	}
}

func TestFinishJobAndLatestJob(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	_ = repo.CreateJob(ctx, notes.Job{ID: "j1", SessionID: "s1", Status: notes.JobQueued, CreatedAt: now, UpdatedAt: now})
	_ = repo.CreateJob(ctx, notes.Job{ID: "j2", SessionID: "s1", Status: notes.JobQueued, CreatedAt: now.Add(time.Minute), UpdatedAt: now})

	msg := "boom"
	if err := repo.FinishJob(ctx, "j2", notes.JobFailed, "Failed.", &msg, now); err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}

	job, ok, err := repo.LatestJobForSession(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("LatestJobForSession() = %v, %v", ok, err)
	}
	if job.ID != "j2" || job.Status != notes.JobFailed || job.Error == nil || *job.Error != "boom" {
		t.Fatalf("latest job = %+v", job)
	}

	if _, err := repo.GetJob(ctx, "missing"); !errors.Is(err, notes.ErrJobNotFound) {
		t.Fatalf("GetJob(missing) error = %v", err)
	}
}

func TestArtifactUpsertOverwrites(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	first := notes.ReportArtifact{SessionID: "s1", StorageKey: "local/owner/a.pdf", SizeBytes: 10, Notes: notes.Notes{Summary: "v1"}, CreatedAt: now}
	second := notes.ReportArtifact{SessionID: "s1", StorageKey: "local/owner/b.pdf", SizeBytes: 20, Notes: notes.Notes{Summary: "v2"}, CreatedAt: now}
	for _, report := range []notes.ReportArtifact{first, second} {
		if err := repo.UpsertReport(ctx, report); err != nil {
			t.Fatalf("UpsertReport() error = %v", err)
		}
	}

	got, ok, err := repo.GetReport(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("GetReport() = %v, %v", ok, err)
	}
	if got.StorageKey != "local/owner/b.pdf" || got.Notes.Summary != "v2" {
		t.Fatalf("report = %+v", got)
	}

	if err := repo.UpsertRecording(ctx, notes.Recording{SessionID: "s1", StorageKey: "k1", MimeType: "audio/webm", CreatedAt: now}); err != nil {
		t.Fatalf("UpsertRecording() error = %v", err)
	}
	if err := repo.UpsertTranscriptArtifact(ctx, notes.TranscriptArtifact{SessionID: "s1", StorageKey: "k2", CreatedAt: now}); err != nil {
		t.Fatalf("UpsertTranscriptArtifact() error = %v", err)
	}
}

func TestDeleteSessionRemovesChildren(t *testing.T) {
	repo, db := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "s1", now)

	_ = repo.UpsertParticipant(ctx, notes.Participant{SessionID: "s1", ActorKey: "user:owner", JoinedAt: now})
	_ = repo.AppendConsent(ctx, notes.ConsentEvent{SessionID: "s1", ActorKey: "user:owner", Consent: true, CreatedAt: now})
	_ = repo.CreateJob(ctx, notes.Job{ID: "j1", SessionID: "s1", Status: notes.JobQueued, CreatedAt: now, UpdatedAt: now})

	tx := uow.NewUnitOfWork(db)
	if err := tx.WithTx(ctx, func(ctx context.Context) error {
		return repo.DeleteSession(ctx, "s1")
	}); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	if _, err := repo.GetSession(ctx, "s1"); !errors.Is(err, notes.ErrSessionNotFound) {
		t.Fatalf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
	for _, table := range []any{&model.Participant{}, &model.ConsentEvent{}, &model.Job{}} {
		var count int64
		if err := db.Model(table).Count(&count).Error; err != nil {
			t.Fatalf("count %T: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("%T rows = %d after delete", table, count)
		}
	}
}

func TestListSessionsCreatedBefore(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedSession(t, repo, "old", now.Add(-10*24*time.Hour))
	seedSession(t, repo, "new", now)

	items, err := repo.ListSessionsCreatedBefore(ctx, now.Add(-7*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListSessionsCreatedBefore() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != "old" {
		t.Fatalf("expired sessions = %+v", items)
	}
}
