package notes

import (
	"context"
	"errors"
	"io"

	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
)

type ReportDownload struct {
	Body      io.ReadCloser
	FileName  string
	MimeType  string
	SizeBytes int64
}

// OpenReport opens the stored PDF for any member of the session's context.
// The caller closes Body.
func (s *Service) OpenReport(ctx context.Context, actor domain.Actor, sessionID string) (ReportDownload, error) {
	if err := s.ready(ctx); err != nil {
		return ReportDownload{}, err
	}
	if s.vault == nil {
		return ReportDownload{}, errors.New("vault is required")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return ReportDownload{}, err
	}
	if err := s.authorizeMember(ctx, actor, session.Kind, session.ContextID); err != nil {
		return ReportDownload{}, err
	}

	report, found, err := s.repo.GetReport(ctx, session.ID)
	if err != nil {
		return ReportDownload{}, err
	}
	if !found {
		return ReportDownload{}, domain.ErrReportNotFound
	}

	body, object, err := s.vault.Open(ctx, report.StorageKey)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return ReportDownload{}, domain.ErrReportNotFound
		}
		return ReportDownload{}, errs.Wrap(err, "open report")
	}
	size := object.SizeBytes
	if size <= 0 {
		size = report.SizeBytes
	}
	return ReportDownload{
		Body:      body,
		FileName:  "secure_ai_report_" + session.ID + ".pdf",
		MimeType:  "application/pdf",
		SizeBytes: size,
	}, nil
}
