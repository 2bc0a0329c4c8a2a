package jobconsole

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
	"pdfrealm/internal/usecase/notes"
)

type stubSource struct {
	jobs    []domain.Job
	filters []ports.JobFilter
	details map[string]notes.SessionDetail
}

func (s *stubSource) ListJobs(_ context.Context, filter ports.JobFilter) ([]domain.Job, error) {
	s.filters = append(s.filters, filter)
	return s.jobs, nil
}

func (s *stubSource) InspectSession(_ context.Context, sessionID string) (notes.SessionDetail, error) {
	return s.details[sessionID], nil
}

func runCmd(t *testing.T, model tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	if cmd == nil {
		return model
	}
	next, _ := model.Update(cmd())
	return next
}

func TestFilterCycle(t *testing.T) {
	source := &stubSource{}
	model := NewJobsModel(context.Background(), source, Options{StatusFilter: "failed", Limit: 5}).(*jobsModel)

	filter := model.filter()
	if len(filter.Statuses) != 1 || filter.Statuses[0] != domain.JobFailed || filter.Limit != 5 {
		t.Fatalf("filter = %+v", filter)
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if statusFilters[model.filterIndex] != "all" {
		t.Fatalf("filter after cycle = %s, want all (wraps)", statusFilters[model.filterIndex])
	}
	runCmd(t, model, cmd)
	if got := source.filters[len(source.filters)-1]; len(got.Statuses) != 0 {
		t.Fatalf("all filter should not restrict statuses: %+v", got)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if got := model.filter().Statuses; len(got) != 2 {
		t.Fatalf("active filter statuses = %v", got)
	}
}

func TestViewShowsSelectedSession(t *testing.T) {
	errText := "command failed: ffmpeg\nlong tail"
	source := &stubSource{
		jobs: []domain.Job{
			{ID: "job-aaaaaaaaaa", SessionID: "sess-1111111", Status: domain.JobReady, Progress: "Done.", UpdatedAt: time.Now()},
			{ID: "job-bbbbbbbbbb", SessionID: "sess-2222222", Status: domain.JobFailed, Progress: "Failed.", Error: &errText, UpdatedAt: time.Now()},
		},
		details: map[string]notes.SessionDetail{
			"sess-1111111": {
				Session: domain.Session{ID: "sess-1111111", Title: "Weekly sync", Kind: domain.KindVideo, ContextID: "room-1", Status: domain.StatusReady},
				Participants: []domain.Participant{
					{ActorKey: "user:1", DisplayName: "Olivia"},
					{ActorKey: "guest:g", DisplayName: ""},
				},
				Tally:       domain.Tally{Required: 2, Accepted: 2, AllConsented: true},
				ReportReady: true,
			},
			"sess-2222222": {
				Session: domain.Session{ID: "sess-2222222", Kind: domain.KindChat, ContextID: "t-1", Status: domain.StatusFailed},
			},
		},
	}
	model := NewJobsModel(context.Background(), source, Options{}).(*jobsModel)

	next, cmd := model.Update(jobsLoadedMsg{items: source.jobs})
	next = runCmd(t, next, cmd)
	view := next.View()
	for _, want := range []string{"job-aaaa [READY]", "Weekly sync", "video/room-1", "2/2 accepted", "Report: yes", "guest:g"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	next, cmd = next.Update(tea.KeyMsg{Type: tea.KeyDown})
	next = runCmd(t, next, cmd)
	view = next.View()
	if !strings.Contains(view, "Error: command failed: ffmpeg") || strings.Contains(view, "long tail") {
		t.Fatalf("failed job detail not rendered:\n%s", view)
	}
}

func TestEmptyQueue(t *testing.T) {
	model := NewJobsModel(context.Background(), &stubSource{}, Options{})
	next, _ := model.Update(jobsLoadedMsg{})
	if view := next.View(); !strings.Contains(view, "queue is empty") {
		t.Fatalf("view = %s", view)
	}
}
