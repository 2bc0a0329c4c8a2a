package notes

import (
	"context"
	"strings"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
)

type JobView struct {
	Job           domain.Job
	SessionStatus domain.Status
	Title         string
}

// JobStatus returns a job snapshot to any member of the session's context.
func (s *Service) JobStatus(ctx context.Context, actor domain.Actor, jobID string) (JobView, error) {
	if err := s.ready(ctx); err != nil {
		return JobView{}, err
	}
	id := strings.TrimSpace(jobID)
	if id == "" {
		return JobView{}, domain.ErrJobNotFound
	}

	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	session, err := s.repo.GetSession(ctx, job.SessionID)
	if err != nil {
		return JobView{}, err
	}
	if err := s.authorizeMember(ctx, actor, session.Kind, session.ContextID); err != nil {
		return JobView{}, err
	}
	return JobView{Job: job, SessionStatus: session.Status, Title: session.Title}, nil
}

// ListJobs is the operator view used by the CLI; it bypasses membership.
func (s *Service) ListJobs(ctx context.Context, filter ports.JobFilter) ([]domain.Job, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListJobs(ctx, filter)
}

// SessionDetail is the operator view of one session.
type SessionDetail struct {
	Session      domain.Session
	Participants []domain.Participant
	Tally        domain.Tally
	ReportReady  bool
}

// InspectSession loads a session with its roster for operator tooling.
func (s *Service) InspectSession(ctx context.Context, sessionID string) (SessionDetail, error) {
	if err := s.ready(ctx); err != nil {
		return SessionDetail{}, err
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	participants, err := s.repo.ListParticipants(ctx, session.ID)
	if err != nil {
		return SessionDetail{}, err
	}
	latest, err := s.repo.LatestConsents(ctx, session.ID)
	if err != nil {
		return SessionDetail{}, err
	}
	_, hasReport, err := s.repo.GetReport(ctx, session.ID)
	if err != nil {
		return SessionDetail{}, err
	}
	return SessionDetail{
		Session:      session,
		Participants: participants,
		Tally:        domain.ComputeTally(participants, latest),
		ReportReady:  hasReport && session.Status == domain.StatusReady,
	}, nil
}
