package jobconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
	"pdfrealm/internal/usecase/notes"
)

const (
	defaultLimit      = 50
	maxShownRoster    = 8
	defaultRefreshGap = 2 * time.Second
)

// statusFilters is the cycle order of the "f" key.
var statusFilters = []string{"all", "active", "QUEUED", "RUNNING", "READY", "FAILED"}

// JobSource is what the console reads. *notes.Service satisfies it.
type JobSource interface {
	ListJobs(ctx context.Context, filter ports.JobFilter) ([]domain.Job, error)
	InspectSession(ctx context.Context, sessionID string) (notes.SessionDetail, error)
}

type Options struct {
	SessionID       string
	StatusFilter    string
	Limit           int
	RefreshInterval time.Duration
}

type jobsModel struct {
	ctx             context.Context
	source          JobSource
	sessionID       string
	filterIndex     int
	limit           int
	refreshInterval time.Duration

	jobs          []domain.Job
	selectedIndex int
	detail        notes.SessionDetail
	hasDetail     bool
	status        string
}

type jobsLoadedMsg struct {
	items []domain.Job
	err   error
}

type detailLoadedMsg struct {
	sessionID string
	detail    notes.SessionDetail
	err       error
}

type tickMsg struct{}

func NewJobsModel(ctx context.Context, source JobSource, options Options) tea.Model {
	limit := options.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshGap
	}

	return &jobsModel{
		ctx:             ctx,
		source:          source,
		sessionID:       strings.TrimSpace(options.SessionID),
		filterIndex:     filterIndexOf(options.StatusFilter),
		limit:           limit,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *jobsModel) Init() tea.Cmd {
	return tea.Batch(m.loadJobsCmd(), m.tickCmd())
}

func (m *jobsModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadJobsCmd(), m.tickCmd())
	case jobsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.jobs = msg.items
		if len(m.jobs) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "queue is empty"
			return m, nil
		}
		if m.selectedIndex >= len(m.jobs) {
			m.selectedIndex = len(m.jobs) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d jobs", len(m.jobs))
		return m, m.loadDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selectedJob()
		if !ok || selected.SessionID != msg.sessionID {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadJobsCmd()
		case "f":
			m.filterIndex = (m.filterIndex + 1) % len(statusFilters)
			m.selectedIndex = 0
			m.status = "filter " + statusFilters[m.filterIndex]
			return m, m.loadJobsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.jobs)-1 {
				m.selectedIndex++
				return m, m.loadDetailCmd()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *jobsModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Secure AI Notes · Jobs"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"filter=%s session=%s limit=%d refresh=%s",
		statusFilters[m.filterIndex],
		firstNonEmpty(m.sessionID, "all"),
		m.limit,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.jobs) == 0 {
		builder.WriteString(dimStyle.Render("- no jobs"))
		builder.WriteString("\n\n")
	} else {
		for index, job := range m.jobs {
			line := formatJobLine(job)
			switch {
			case index == m.selectedIndex:
				builder.WriteString(selectedStyle.Render("> " + line))
			case job.Status == domain.JobFailed:
				builder.WriteString(failedStyle.Render("  " + line))
			default:
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Session"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		s := m.detail.Session
		builder.WriteString(fmt.Sprintf("ID: %s\n", s.ID))
		builder.WriteString(fmt.Sprintf("Title: %s\n", firstNonEmpty(s.Title, "-")))
		builder.WriteString(fmt.Sprintf("Context: %s/%s\n", s.Kind, s.ContextID))
		builder.WriteString(fmt.Sprintf("Status: %s\n", s.Status))
		builder.WriteString(fmt.Sprintf("Consent: %d/%d accepted, %d declined\n",
			m.detail.Tally.Accepted, m.detail.Tally.Required, m.detail.Tally.Declined))
		builder.WriteString(fmt.Sprintf("Report: %s\n", yesNo(m.detail.ReportReady)))
		if job, ok := m.selectedJob(); ok && job.Error != nil {
			builder.WriteString(failedStyle.Render("Error: " + firstLine(*job.Error)))
			builder.WriteString("\n")
		}
		builder.WriteString("\nParticipants:\n")
		roster := m.detail.Participants
		if len(roster) == 0 {
			builder.WriteString("- none\n")
		}
		for i, p := range roster {
			if i == maxShownRoster {
				builder.WriteString(fmt.Sprintf("- … %d more\n", len(roster)-maxShownRoster))
				break
			}
			state := "active"
			if !p.Active() {
				state = "left"
			}
			builder.WriteString(fmt.Sprintf("- %s (%s) %s\n", firstNonEmpty(p.DisplayName, p.ActorKey), p.ActorKey, state))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  f filter  g refresh  q quit"))
	return builder.String()
}

func (m *jobsModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *jobsModel) loadJobsCmd() tea.Cmd {
	filter := m.filter()
	return func() tea.Msg {
		items, err := m.source.ListJobs(m.ctx, filter)
		if err != nil {
			logging.Warn(m.ctx, "jobs console refresh failed", slog.Any("err", errs.Loggable(err)))
			return jobsLoadedMsg{err: err}
		}
		return jobsLoadedMsg{items: items}
	}
}

func (m *jobsModel) loadDetailCmd() tea.Cmd {
	selected, ok := m.selectedJob()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		detail, err := m.source.InspectSession(m.ctx, selected.SessionID)
		return detailLoadedMsg{sessionID: selected.SessionID, detail: detail, err: err}
	}
}

func (m *jobsModel) filter() ports.JobFilter {
	filter := ports.JobFilter{SessionID: m.sessionID, Limit: m.limit}
	switch name := statusFilters[m.filterIndex]; name {
	case "all":
	case "active":
		filter.Statuses = []domain.JobStatus{domain.JobQueued, domain.JobRunning}
	default:
		filter.Statuses = []domain.JobStatus{domain.JobStatus(name)}
	}
	return filter
}

func (m *jobsModel) selectedJob() (domain.Job, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.jobs) {
		return domain.Job{}, false
	}
	return m.jobs[m.selectedIndex], true
}

func formatJobLine(job domain.Job) string {
	return fmt.Sprintf("%s [%s] session=%s progress=%s updated=%s",
		shortID(job.ID),
		job.Status,
		shortID(job.SessionID),
		firstNonEmpty(job.Progress, "-"),
		job.UpdatedAt.Local().Format("15:04:05"),
	)
}

func filterIndexOf(raw string) int {
	needle := strings.TrimSpace(raw)
	for i, name := range statusFilters {
		if strings.EqualFold(name, needle) {
			return i
		}
	}
	return 0
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
