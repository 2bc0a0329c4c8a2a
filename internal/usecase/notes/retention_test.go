package notes

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

func TestSweepOnceDeletesExpiredSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	realNow := h.svc.now
	h.svc.now = func() time.Time { return realNow().Add(-10 * 24 * time.Hour) }
	old := h.videoSession(t)
	if _, err := h.svc.UploadChunk(ctx, owner, old.ID, UploadChunkInput{Seq: 0, Data: []byte("a")}); err != nil {
		t.Fatalf("UploadChunk() error = %v", err)
	}
	h.svc.now = realNow

	fresh, err := h.svc.CreateSession(ctx, owner, CreateSessionInput{Kind: "video", ContextID: roomID})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sweeper := NewSweeper(h.svc, RetentionOptions{Days: 7})
	result, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if result.Deleted != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	if _, err := h.repo.GetSession(ctx, old.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("old session error = %v, want ErrSessionNotFound", err)
	}
	if _, err := os.Stat(h.svc.SessionDir(old.ID)); !os.IsNotExist(err) {
		t.Fatalf("old session dir still exists: %v", err)
	}
	if _, err := h.repo.GetSession(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session error = %v", err)
	}

	again, err := sweeper.SweepOnce(ctx)
	if err != nil || again.Deleted != 0 {
		t.Fatalf("second sweep = %+v, %v", again, err)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, RetentionOptions{InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not stop after cancel")
	}
}

type stuckVault struct {
	ports.Vault
	stuckKey string
}

func (v stuckVault) Delete(ctx context.Context, key string) error {
	if key == v.stuckKey {
		return errors.New("storage unavailable")
	}
	return v.Vault.Delete(ctx, key)
}

func TestNegativeRetentionFallsBackToDefault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	fresh, err := h.svc.CreateSession(ctx, owner, CreateSessionInput{Kind: "video", ContextID: roomID})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sweeper := NewSweeper(h.svc, RetentionOptions{Days: -3})
	if sweeper.opts.Days != defaultRetentionDays {
		t.Fatalf("Days = %d, want %d", sweeper.opts.Days, defaultRetentionDays)
	}
	result, err := sweeper.SweepOnce(ctx)
	if err != nil || result.Deleted != 0 {
		t.Fatalf("SweepOnce() = %+v, %v", result, err)
	}
	if _, err := h.repo.GetSession(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session error = %v", err)
	}
}

func TestSweepRetriesFailingSessionsLast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.vault = stuckVault{Vault: h.svc.vault, stuckKey: "local/olivia/stuck.webm"}

	realNow := h.svc.now
	h.svc.now = func() time.Time { return realNow().Add(-12 * 24 * time.Hour) }
	stuck := h.videoSession(t)
	h.svc.now = func() time.Time { return realNow().Add(-10 * 24 * time.Hour) }
	expired, err := h.svc.CreateSession(ctx, owner, CreateSessionInput{Kind: "video", ContextID: roomID})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	h.svc.now = realNow

	if err := h.repo.UpsertRecording(ctx, domain.Recording{
		SessionID:  stuck.ID,
		StorageKey: "local/olivia/stuck.webm",
		MimeType:   "audio/webm",
		CreatedAt:  realNow(),
	}); err != nil {
		t.Fatalf("UpsertRecording() error = %v", err)
	}

	sweeper := NewSweeper(h.svc, RetentionOptions{Days: 7, Batch: 1})

	first, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if first.Deleted != 0 || first.Failed != 1 {
		t.Fatalf("first sweep = %+v, want the oldest session to fail", first)
	}

	second, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if second.Deleted != 1 || second.Failed != 0 {
		t.Fatalf("second sweep = %+v, want the newer expired session deleted", second)
	}
	if _, err := h.repo.GetSession(ctx, expired.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expired session error = %v, want ErrSessionNotFound", err)
	}
	if _, err := h.repo.GetSession(ctx, stuck.ID); err != nil {
		t.Fatalf("stuck session error = %v", err)
	}

	third, err := sweeper.SweepOnce(ctx)
	if err != nil || third.Failed != 1 {
		t.Fatalf("third sweep = %+v, %v", third, err)
	}
}
