package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	domain "pdfrealm/internal/domain/notes"
	usecase "pdfrealm/internal/usecase/notes"
)

type jobSnapshot struct {
	Status   domain.JobStatus `json:"status"`
	Progress string           `json:"progress"`
	Error    *string          `json:"error"`
}

type activeResponse struct {
	Active       bool          `json:"active"`
	SessionID    string        `json:"sessionId,omitempty"`
	SessionType  domain.Kind   `json:"sessionType,omitempty"`
	ContextID    string        `json:"contextId,omitempty"`
	Title        string        `json:"title,omitempty"`
	Status       domain.Status `json:"status,omitempty"`
	AllConsented bool          `json:"allConsented"`
	AnyDeclined  bool          `json:"anyDeclined"`
	NeedsConsent bool          `json:"needsConsent"`
	ReportReady  bool          `json:"reportReady"`
	Consent      *domain.Tally `json:"consent,omitempty"`
	Job          *jobSnapshot  `json:"job"`
}

type jobResponse struct {
	JobID         string           `json:"jobId"`
	SessionID     string           `json:"sessionId"`
	Status        domain.JobStatus `json:"status"`
	Progress      string           `json:"progress"`
	Error         *string          `json:"error"`
	SessionStatus domain.Status    `json:"sessionStatus"`
	Title         string           `json:"title"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func newJobResponse(view usecase.JobView) jobResponse {
	return jobResponse{
		JobID:         view.Job.ID,
		SessionID:     view.Job.SessionID,
		Status:        view.Job.Status,
		Progress:      view.Job.Progress,
		Error:         view.Job.Error,
		SessionStatus: view.SessionStatus,
		Title:         view.Title,
		UpdatedAt:     view.Job.UpdatedAt,
	}
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		SessionType string `json:"sessionType"`
		ContextID   string `json:"contextId"`
		Title       string `json:"title"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		badRequest(ctx, w, "invalid JSON body")
		return
	}

	preferred, _ := domain.ParseKind(body.SessionType)
	actor := a.actorFromRequest(ctx, r, preferred)
	session, err := a.notes.CreateSession(ctx, actor, usecase.CreateSessionInput{
		Kind:      body.SessionType,
		ContextID: body.ContextID,
		Title:     body.Title,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID})
}

func (a *API) handleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	sessionType := query.Get("sessionType")
	contextID := query.Get("contextId")

	preferred, _ := domain.ParseKind(sessionType)
	actor := a.actorFromRequest(ctx, r, preferred)
	view, err := a.notes.ActiveSession(ctx, actor, sessionType, contextID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !view.Active {
		writeJSON(w, http.StatusOK, activeResponse{Active: false})
		return
	}

	resp := activeResponse{
		Active:       true,
		SessionID:    view.Session.ID,
		SessionType:  view.Session.Kind,
		ContextID:    view.Session.ContextID,
		Title:        view.Session.Title,
		Status:       view.Session.Status,
		AllConsented: view.Tally.AllConsented,
		AnyDeclined:  view.Tally.AnyDeclined,
		NeedsConsent: view.NeedsConsent,
		ReportReady:  view.ReportReady,
		Consent:      &view.Tally,
	}
	if view.Job != nil {
		resp.Job = &jobSnapshot{Status: view.Job.Status, Progress: view.Job.Progress, Error: view.Job.Error}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Consent *bool `json:"consent"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil || body.Consent == nil {
		badRequest(ctx, w, "consent must be a boolean")
		return
	}

	actor := a.actorFromRequest(ctx, r, "")
	tally, err := a.notes.SubmitConsent(ctx, actor, mux.Vars(r)["id"], *body.Consent)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"allConsented": tally.AllConsented,
		"anyDeclined":  tally.AnyDeclined,
	})
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	session, err := a.notes.StartCapture(ctx, actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": session.Status})
}

func (a *API) handleChunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Multipart framing gets a little headroom over the chunk limit.
	limit := a.opts.MaxChunkBytes + (1 << 20)
	if r.ContentLength > limit {
		writeError(ctx, w, domain.ErrChunkTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, w, domain.ErrChunkTooLarge)
			return
		}
		badRequest(ctx, w, "invalid multipart body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	seq, err := strconv.Atoi(strings.TrimSpace(r.FormValue("seq")))
	if err != nil {
		writeError(ctx, w, domain.ErrInvalidSequence)
		return
	}
	file, header, err := r.FormFile("chunk")
	if err != nil {
		badRequest(ctx, w, "chunk file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, a.opts.MaxChunkBytes+1))
	if err != nil {
		badRequest(ctx, w, "failed to read chunk")
		return
	}

	mimeType := r.FormValue("mimeType")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	actor := a.actorFromRequest(ctx, r, "")
	name, err := a.notes.UploadChunk(ctx, actor, mux.Vars(r)["id"], usecase.UploadChunkInput{
		Seq:      seq,
		MimeType: mimeType,
		Data:     data,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "seq": seq, "file": name})
}

func (a *API) handleChatTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.opts.MaxChatTranscriptBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, w, domain.ErrChatTooLarge)
			return
		}
		badRequest(ctx, w, "failed to read body")
		return
	}

	actor := a.actorFromRequest(ctx, r, domain.KindChat)
	count, err := a.notes.UploadChatTranscript(ctx, actor, mux.Vars(r)["id"], payload)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "messages": count})
}

func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	job, err := a.notes.FinalizeSession(ctx, actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": job.ID})
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	tally, err := a.notes.LeaveSession(ctx, actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"allConsented": tally.AllConsented,
		"anyDeclined":  tally.AnyDeclined,
	})
}

func (a *API) handleJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	view, err := a.notes.JobStatus(ctx, actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(view))
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	download, err := a.notes.OpenReport(ctx, actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	defer download.Body.Close()

	w.Header().Set("Content-Type", download.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+download.FileName+`"`)
	if download.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(download.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, download.Body)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")

	if err := a.notes.DeleteSession(ctx, actor, mux.Vars(r)["id"]); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
