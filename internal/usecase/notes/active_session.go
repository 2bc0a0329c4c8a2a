package notes

import (
	"context"
	"errors"
	"strings"

	domain "pdfrealm/internal/domain/notes"
)

// ActiveView is what a participant's client polls to render the consent
// banner and download button.
type ActiveView struct {
	Active       bool
	Session      domain.Session
	Tally        domain.Tally
	NeedsConsent bool
	ReportReady  bool
	Job          *domain.Job
}

// ActiveSession returns the latest session of a context and registers the
// caller as a participant.
func (s *Service) ActiveSession(ctx context.Context, actor domain.Actor, rawKind string, contextID string) (ActiveView, error) {
	if err := s.ready(ctx); err != nil {
		return ActiveView{}, err
	}

	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		return ActiveView{}, err
	}
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return ActiveView{}, domain.ErrContextRequired
	}
	if err := s.authorizeMember(ctx, actor, kind, contextID); err != nil {
		return ActiveView{}, err
	}

	var view ActiveView
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		session, err := s.repo.LatestSessionForContext(txCtx, kind, contextID)
		if err != nil {
			return err
		}
		view.Active = true
		view.Session = session

		if session.Status != domain.StatusFailed {
			if err := s.register(txCtx, session.ID, actor, s.now()); err != nil {
				return err
			}
		}

		tally, latest, err := s.tally(txCtx, session.ID)
		if err != nil {
			return err
		}
		view.Tally = tally
		_, decided := latest[actor.Key]
		view.NeedsConsent = !decided && session.Status != domain.StatusFailed

		_, hasReport, err := s.repo.GetReport(txCtx, session.ID)
		if err != nil {
			return err
		}
		view.ReportReady = hasReport && session.Status == domain.StatusReady

		job, found, err := s.repo.LatestJobForSession(txCtx, session.ID)
		if err != nil {
			return err
		}
		if found {
			view.Job = &job
		}
		return nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return ActiveView{Active: false}, nil
	}
	if err != nil {
		return ActiveView{}, err
	}
	return view, nil
}
