package notes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"pdfrealm/internal/bootstrap/database"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/persistence/gormdb/model"
	"pdfrealm/internal/infrastructure/persistence/gormdb/repository"
	"pdfrealm/internal/infrastructure/persistence/gormdb/uow"
	"pdfrealm/internal/infrastructure/vault"
	"pdfrealm/internal/ports"
)

type fakeDirectory struct {
	owners  map[string]bool
	members map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{owners: map[string]bool{}, members: map[string]bool{}}
}

func directoryKey(kind domain.Kind, contextID string, userID string) string {
	return string(kind) + "|" + contextID + "|" + userID
}

func (d *fakeDirectory) addOwner(kind domain.Kind, contextID string, userID string) {
	d.owners[directoryKey(kind, contextID, userID)] = true
}

func (d *fakeDirectory) addMember(kind domain.Kind, contextID string, userID string) {
	d.members[directoryKey(kind, contextID, userID)] = true
}

func (d *fakeDirectory) IsMember(_ context.Context, kind domain.Kind, contextID string, userID string) (bool, error) {
	key := directoryKey(kind, contextID, userID)
	return d.owners[key] || d.members[key], nil
}

func (d *fakeDirectory) IsOwner(_ context.Context, kind domain.Kind, contextID string, userID string) (bool, error) {
	return d.owners[directoryKey(kind, contextID, userID)], nil
}

type harness struct {
	svc     *Service
	repo    *repository.NotesRepository
	uow     *uow.UnitOfWork
	vault   *vault.Local
	dir     *fakeDirectory
	workDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	dsn := database.SQLiteDSN(filepath.Join(root, "notes.sqlite"))
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

	h := &harness{
		repo:    repository.NewNotesRepository(db),
		uow:     uow.NewUnitOfWork(db),
		vault:   vault.NewLocal(filepath.Join(root, "vault"), ""),
		dir:     newFakeDirectory(),
		workDir: filepath.Join(root, "work"),
	}
	h.svc = NewService(h.repo, h.uow, h.dir, h.vault, Options{WorkDir: h.workDir})
	return h
}

var (
	owner  = domain.UserActor("olivia", "Olivia")
	ben    = domain.UserActor("ben", "Ben")
	cara   = domain.UserActor("cara", "Cara")
	sam    = domain.UserActor("sam", "Stranger Sam")
	roomID = "room-1"
)

// videoSession creates a video session in roomID where ben and cara are
// members.
func (h *harness) videoSession(t *testing.T) domain.Session {
	t.Helper()

	h.dir.addOwner(domain.KindVideo, roomID, owner.UserID)
	h.dir.addMember(domain.KindVideo, roomID, ben.UserID)
	h.dir.addMember(domain.KindVideo, roomID, cara.UserID)

	session, err := h.svc.CreateSession(context.Background(), owner, CreateSessionInput{
		Kind:      "video",
		ContextID: roomID,
		Title:     "Weekly sync",
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return session
}

func (h *harness) join(t *testing.T, actor domain.Actor) ActiveView {
	t.Helper()

	view, err := h.svc.ActiveSession(context.Background(), actor, "video", roomID)
	if err != nil {
		t.Fatalf("ActiveSession(%s) error = %v", actor.Key, err)
	}
	return view
}

func (h *harness) consent(t *testing.T, actor domain.Actor, sessionID string, accept bool) domain.Tally {
	t.Helper()

	tally, err := h.svc.SubmitConsent(context.Background(), actor, sessionID, accept)
	if err != nil {
		t.Fatalf("SubmitConsent(%s) error = %v", actor.Key, err)
	}
	return tally
}

func (h *harness) status(t *testing.T, sessionID string) domain.Status {
	t.Helper()

	session, err := h.repo.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	return session.Status
}

func (h *harness) jobCount(t *testing.T, sessionID string) int {
	t.Helper()

	jobs, err := h.repo.ListJobs(context.Background(), ports.JobFilter{SessionID: sessionID})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	return len(jobs)
}

func TestCreateSessionRequiresContextOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.dir.addOwner(domain.KindVideo, roomID, owner.UserID)
	h.dir.addMember(domain.KindVideo, roomID, ben.UserID)

	input := CreateSessionInput{Kind: "video", ContextID: roomID}
	if _, err := h.svc.CreateSession(ctx, ben, input); !errors.Is(err, domain.ErrNotContextOwner) {
		t.Fatalf("CreateSession(member) error = %v, want ErrNotContextOwner", err)
	}
	guest := domain.GuestActor("g-1", "Guest", domain.KindVideo, roomID)
	if _, err := h.svc.CreateSession(ctx, guest, input); !errors.Is(err, domain.ErrNotContextOwner) {
		t.Fatalf("CreateSession(guest) error = %v, want ErrNotContextOwner", err)
	}
	if _, err := h.svc.CreateSession(ctx, domain.Actor{}, input); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("CreateSession(anonymous) error = %v, want ErrUnauthenticated", err)
	}
	if _, err := h.svc.CreateSession(ctx, owner, CreateSessionInput{Kind: "fax", ContextID: roomID}); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("CreateSession(fax) error = %v, want ErrInvalidKind", err)
	}

	session, err := h.svc.CreateSession(ctx, owner, input)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.Status != domain.StatusConsentPending || session.CreatedBy != owner.Key {
		t.Fatalf("session = %+v", session)
	}

	participants, err := h.repo.ListParticipants(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListParticipants() error = %v", err)
	}
	if len(participants) != 1 || participants[0].DisplayName != "Olivia" {
		t.Fatalf("participants = %+v", participants)
	}
	latest, err := h.repo.LatestConsents(ctx, session.ID)
	if err != nil {
		t.Fatalf("LatestConsents() error = %v", err)
	}
	if !latest[owner.Key] {
		t.Fatalf("owner consent should be recorded as true")
	}
}

func TestCreateSessionAcceptsVoipAlias(t *testing.T) {
	h := newHarness(t)
	h.dir.addOwner(domain.KindVoice, "line-7", owner.UserID)

	session, err := h.svc.CreateSession(context.Background(), owner, CreateSessionInput{Kind: "voip", ContextID: "line-7"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.Kind != domain.KindVoice {
		t.Fatalf("Kind = %q, want voice", session.Kind)
	}
}

func TestActiveSessionRegistersCallerAndReportsConsent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty, err := h.svc.ActiveSession(ctx, owner, "video", roomID)
	if err != nil {
		t.Fatalf("ActiveSession(no session) error = %v", err)
	}
	if empty.Active {
		t.Fatalf("expected no active session before creation")
	}

	session := h.videoSession(t)

	view := h.join(t, ben)
	if !view.Active || view.Session.ID != session.ID {
		t.Fatalf("view = %+v", view)
	}
	if !view.NeedsConsent {
		t.Fatalf("ben should need consent")
	}
	if view.Tally.Required != 2 || view.Tally.Accepted != 1 || view.Tally.AllConsented {
		t.Fatalf("tally = %+v", view.Tally)
	}
	if view.ReportReady || view.Job != nil {
		t.Fatalf("fresh session should have no report or job: %+v", view)
	}

	ownerView := h.join(t, owner)
	if ownerView.NeedsConsent {
		t.Fatalf("owner consented at creation")
	}

	if _, err := h.svc.ActiveSession(ctx, sam, "video", roomID); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("ActiveSession(stranger) error = %v, want ErrNotMember", err)
	}
	if _, err := h.svc.ActiveSession(ctx, ben, "video", ""); !errors.Is(err, domain.ErrContextRequired) {
		t.Fatalf("ActiveSession(no context) error = %v, want ErrContextRequired", err)
	}
}

func TestGuestAccessIsScopedToItsContext(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)

	guest := domain.GuestActor("g-1", "Visitor", domain.KindVideo, roomID)
	view, err := h.svc.ActiveSession(ctx, guest, "video", roomID)
	if err != nil {
		t.Fatalf("ActiveSession(guest) error = %v", err)
	}
	if view.Session.ID != session.ID || view.Tally.Required != 2 {
		t.Fatalf("guest view = %+v", view)
	}

	elsewhere := domain.GuestActor("g-2", "Visitor", domain.KindVideo, "room-2")
	if _, err := h.svc.SubmitConsent(ctx, elsewhere, session.ID, true); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("SubmitConsent(foreign guest) error = %v, want ErrNotMember", err)
	}
	if _, err := h.svc.StartCapture(ctx, guest, session.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("StartCapture(guest) error = %v, want ErrNotOwner", err)
	}
}

func TestConsentLastWriteWinsAndDeclineFailsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)

	if tally := h.consent(t, ben, session.ID, true); !tally.AllConsented {
		t.Fatalf("tally after ben accepts = %+v", tally)
	}
	tally := h.consent(t, ben, session.ID, false)
	if !tally.AnyDeclined || tally.AllConsented {
		t.Fatalf("tally after ben declines = %+v", tally)
	}

	events, err := h.repo.ListConsentEvents(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListConsentEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("consent events = %d, want 3 (append-only)", len(events))
	}

	failed, err := h.repo.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if failed.Status != domain.StatusFailed || failed.EndedAt == nil {
		t.Fatalf("session = %+v, want FAILED with ended_at", failed)
	}

	if _, err := h.svc.SubmitConsent(ctx, ben, session.ID, true); !errors.Is(err, domain.ErrSessionFailed) {
		t.Fatalf("SubmitConsent(after FAILED) error = %v, want ErrSessionFailed", err)
	}
}

func TestCaptureRequiresUnanimousConsent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)
	h.join(t, ben)

	if _, err := h.svc.StartCapture(ctx, owner, session.ID); !errors.Is(err, domain.ErrConsentPending) {
		t.Fatalf("StartCapture(pending) error = %v, want ErrConsentPending", err)
	}
	if _, err := h.svc.UploadChunk(ctx, owner, session.ID, UploadChunkInput{Seq: 0, Data: []byte("a")}); !errors.Is(err, domain.ErrConsentPending) {
		t.Fatalf("UploadChunk(pending) error = %v, want ErrConsentPending", err)
	}
	if got := h.status(t, session.ID); got != domain.StatusConsentPending {
		t.Fatalf("status = %s, want CONSENT_PENDING", got)
	}

	h.consent(t, ben, session.ID, true)
	started, err := h.svc.StartCapture(ctx, owner, session.ID)
	if err != nil {
		t.Fatalf("StartCapture() error = %v", err)
	}
	if started.Status != domain.StatusRecording || started.StartedAt == nil {
		t.Fatalf("started = %+v", started)
	}
	firstStart := *started.StartedAt

	again, err := h.svc.StartCapture(ctx, owner, session.ID)
	if err != nil {
		t.Fatalf("StartCapture(again) error = %v", err)
	}
	if !again.StartedAt.Equal(firstStart) {
		t.Fatalf("started_at moved from %v to %v", firstStart, *again.StartedAt)
	}
}

func TestOwnerOnlyOperationsRejectMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)
	h.consent(t, ben, session.ID, true)

	if _, err := h.svc.StartCapture(ctx, ben, session.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("StartCapture(member) error = %v", err)
	}
	if _, err := h.svc.UploadChunk(ctx, ben, session.ID, UploadChunkInput{Seq: 1, Data: []byte("x")}); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("UploadChunk(member) error = %v", err)
	}
	if _, err := h.svc.FinalizeSession(ctx, ben, session.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("FinalizeSession(member) error = %v", err)
	}
	if err := h.svc.DeleteSession(ctx, ben, session.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("DeleteSession(member) error = %v", err)
	}

	if got := h.status(t, session.ID); got != domain.StatusConsentPending {
		t.Fatalf("status = %s, want CONSENT_PENDING", got)
	}
	if n := h.jobCount(t, session.ID); n != 0 {
		t.Fatalf("jobs = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(h.svc.SessionDir(session.ID), domain.ChunksDir)); !os.IsNotExist(err) {
		t.Fatalf("chunks dir should not exist, stat error = %v", err)
	}
}

func TestDeclineBeforeStartBlocksEverything(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)
	h.consent(t, ben, session.ID, true)
	h.consent(t, cara, session.ID, false)

	if got := h.status(t, session.ID); got != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got)
	}

	_, err := h.svc.FinalizeSession(ctx, owner, session.ID)
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("FinalizeSession() error = %v, want conflict", err)
	}
	if _, err := h.svc.StartCapture(ctx, owner, session.ID); errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("StartCapture() error = %v, want conflict", err)
	}
	if _, err := h.svc.UploadChunk(ctx, owner, session.ID, UploadChunkInput{Seq: 0, Data: []byte("x")}); errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("UploadChunk() error = %v, want conflict", err)
	}
	if n := h.jobCount(t, session.ID); n != 0 {
		t.Fatalf("jobs = %d, want 0", n)
	}
	if got := h.status(t, session.ID); got != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got)
	}

	view := h.join(t, ben)
	if view.NeedsConsent || view.Session.Status != domain.StatusFailed {
		t.Fatalf("view = %+v", view)
	}
}

func TestUploadChunkValidation(t *testing.T) {
	h := newHarness(t)
	h.svc.opts.MaxChunkBytes = 8
	ctx := context.Background()
	session := h.videoSession(t)

	testCases := []struct {
		name  string
		input UploadChunkInput
		want  error
	}{
		{"negative seq", UploadChunkInput{Seq: -1, Data: []byte("a")}, domain.ErrInvalidSequence},
		{"seq overflow", UploadChunkInput{Seq: 1000000, Data: []byte("a")}, domain.ErrInvalidSequence},
		{"empty", UploadChunkInput{Seq: 1}, domain.ErrEmptyChunk},
		{"too large", UploadChunkInput{Seq: 1, Data: []byte("123456789")}, domain.ErrChunkTooLarge},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.svc.UploadChunk(ctx, owner, session.ID, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("UploadChunk() error = %v, want %v", err, tc.want)
			}
		})
	}

	name, err := h.svc.UploadChunk(ctx, owner, session.ID, UploadChunkInput{Seq: 3, MimeType: "audio/ogg;codecs=opus", Data: []byte("ogg")})
	if err != nil {
		t.Fatalf("UploadChunk(ogg) error = %v", err)
	}
	if name != "chunk_000003.ogg" {
		t.Fatalf("chunk name = %q", name)
	}
	if got := h.status(t, session.ID); got != domain.StatusRecording {
		t.Fatalf("status = %s, want RECORDING", got)
	}
}

func TestUploadChatTranscriptValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	video := h.videoSession(t)

	payload := []byte(`{"messages":[{"who":"Ana","text":"hi"}]}`)
	if _, err := h.svc.UploadChatTranscript(ctx, owner, video.ID, payload); !errors.Is(err, domain.ErrNotChatSession) {
		t.Fatalf("UploadChatTranscript(video) error = %v, want ErrNotChatSession", err)
	}

	h.dir.addOwner(domain.KindChat, "thread-1", owner.UserID)
	chat, err := h.svc.CreateSession(ctx, owner, CreateSessionInput{Kind: "chat", ContextID: "thread-1"})
	if err != nil {
		t.Fatalf("CreateSession(chat) error = %v", err)
	}
	if _, err := h.svc.UploadChatTranscript(ctx, owner, chat.ID, []byte(`{"lines":[]}`)); !errors.Is(err, domain.ErrInvalidChat) {
		t.Fatalf("UploadChatTranscript(no messages) error = %v, want ErrInvalidChat", err)
	}

	h.svc.opts.MaxChatTranscriptBytes = 10
	if _, err := h.svc.UploadChatTranscript(ctx, owner, chat.ID, payload); !errors.Is(err, domain.ErrChatTooLarge) {
		t.Fatalf("UploadChatTranscript(large) error = %v, want ErrChatTooLarge", err)
	}
	h.svc.opts.MaxChatTranscriptBytes = defaultMaxChatBytes

	n, err := h.svc.UploadChatTranscript(ctx, owner, chat.ID, payload)
	if err != nil {
		t.Fatalf("UploadChatTranscript() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(h.svc.SessionDir(chat.ID), chatTranscriptFile)); err != nil {
		t.Fatalf("chat transcript not written: %v", err)
	}
}

func TestLeaveSessionDropsParticipantFromUnanimity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)
	h.join(t, ben)
	h.join(t, cara)
	h.consent(t, cara, session.ID, true)

	tally, err := h.svc.LeaveSession(ctx, ben, session.ID)
	if err != nil {
		t.Fatalf("LeaveSession() error = %v", err)
	}
	if !tally.AllConsented || tally.Required != 2 {
		t.Fatalf("tally = %+v", tally)
	}
	if _, err := h.svc.LeaveSession(ctx, ben, session.ID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("LeaveSession(again) error = %v, want ErrNotParticipant", err)
	}

	rejoined := h.join(t, ben)
	if rejoined.Tally.Required != 3 || rejoined.Tally.AllConsented {
		t.Fatalf("tally after rejoin = %+v", rejoined.Tally)
	}
}

func TestFinalizeQueuesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.videoSession(t)

	job, err := h.svc.FinalizeSession(ctx, owner, session.ID)
	if err != nil {
		t.Fatalf("FinalizeSession() error = %v", err)
	}
	if job.Status != domain.JobQueued || job.Progress != "Queued" {
		t.Fatalf("job = %+v", job)
	}

	finalized, err := h.repo.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if finalized.Status != domain.StatusFinalizing || finalized.EndedAt == nil {
		t.Fatalf("session = %+v", finalized)
	}

	if _, err := h.svc.FinalizeSession(ctx, owner, session.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("FinalizeSession(twice) error = %v, want ErrInvalidTransition", err)
	}

	view, err := h.svc.JobStatus(ctx, ben, job.ID)
	if err != nil {
		t.Fatalf("JobStatus(member) error = %v", err)
	}
	if view.SessionStatus != domain.StatusFinalizing || view.Title != "Weekly sync" {
		t.Fatalf("job view = %+v", view)
	}
	if _, err := h.svc.JobStatus(ctx, sam, job.ID); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("JobStatus(stranger) error = %v, want ErrNotMember", err)
	}
	if _, err := h.svc.JobStatus(ctx, ben, "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("JobStatus(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestOpenReportBeforeReady(t *testing.T) {
	h := newHarness(t)
	session := h.videoSession(t)

	if _, err := h.svc.OpenReport(context.Background(), ben, session.ID); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("OpenReport() error = %v, want ErrReportNotFound", err)
	}
}

func TestServiceRejectsNilContext(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.ActiveSession(nil, owner, "video", roomID); err == nil {
		t.Fatalf("expected error for nil context")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.svc.FinalizeSession(ctx, owner, "any"); !errors.Is(err, context.Canceled) {
		t.Fatalf("FinalizeSession(cancelled) error = %v", err)
	}
}

func TestInspectSession(t *testing.T) {
	h := newHarness(t)
	session := h.videoSession(t)
	h.consent(t, ben, session.ID, true)

	detail, err := h.svc.InspectSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("InspectSession() error = %v", err)
	}
	if len(detail.Participants) != 2 || !detail.Tally.AllConsented || detail.ReportReady {
		t.Fatalf("detail = %+v", detail)
	}
	if _, err := h.svc.InspectSession(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("InspectSession(missing) error = %v", err)
	}
}
