package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	domain "pdfrealm/internal/domain/notes"
	"pdfrealm/internal/ports"
	usecase "pdfrealm/internal/usecase/notes"
)

// NotesService is the session state machine as seen by the HTTP layer.
type NotesService interface {
	CreateSession(ctx context.Context, actor domain.Actor, input usecase.CreateSessionInput) (domain.Session, error)
	ActiveSession(ctx context.Context, actor domain.Actor, kind string, contextID string) (usecase.ActiveView, error)
	SubmitConsent(ctx context.Context, actor domain.Actor, sessionID string, consent bool) (domain.Tally, error)
	StartCapture(ctx context.Context, actor domain.Actor, sessionID string) (domain.Session, error)
	UploadChunk(ctx context.Context, actor domain.Actor, sessionID string, input usecase.UploadChunkInput) (string, error)
	UploadChatTranscript(ctx context.Context, actor domain.Actor, sessionID string, payload []byte) (int, error)
	FinalizeSession(ctx context.Context, actor domain.Actor, sessionID string) (domain.Job, error)
	LeaveSession(ctx context.Context, actor domain.Actor, sessionID string) (domain.Tally, error)
	JobStatus(ctx context.Context, actor domain.Actor, jobID string) (usecase.JobView, error)
	OpenReport(ctx context.Context, actor domain.Actor, sessionID string) (usecase.ReportDownload, error)
	DeleteSession(ctx context.Context, actor domain.Actor, sessionID string) error
}

var _ NotesService = (*usecase.Service)(nil)

type Options struct {
	AllowedOrigins         []string
	MaxChunkBytes          int64
	MaxChatTranscriptBytes int64
	JobPollInterval        time.Duration
	// StreamPingInterval paces websocket pings; a client that misses two
	// in a row is dropped.
	StreamPingInterval time.Duration
	StreamMaxLifetime  time.Duration
}

type API struct {
	notes    NotesService
	guests   ports.GuestVerifier
	health   func(ctx context.Context) error
	opts     Options
	upgrader websocket.Upgrader
}

func NewAPI(notes NotesService, guests ports.GuestVerifier, health func(ctx context.Context) error, opts Options) *API {
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = 25 << 20
	}
	if opts.MaxChatTranscriptBytes <= 0 {
		opts.MaxChatTranscriptBytes = 5 << 20
	}
	if opts.JobPollInterval <= 0 {
		opts.JobPollInterval = time.Second
	}
	if opts.StreamPingInterval <= 0 {
		opts.StreamPingInterval = 30 * time.Second
	}
	if opts.StreamMaxLifetime <= 0 {
		opts.StreamMaxLifetime = 30 * time.Minute
	}
	api := &API{notes: notes, guests: guests, health: health, opts: opts}
	api.upgrader = websocket.Upgrader{CheckOrigin: api.checkOrigin}
	return api
}

// Handler wires the routes behind CORS and request logging.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/secure-ai").Subrouter()
	api.HandleFunc("/session", a.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/active", a.handleActive).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}/consent", a.handleConsent).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/start", a.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/chunk", a.handleChunk).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/chat-transcript", a.handleChatTranscript).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/finalize", a.handleFinalize).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/leave", a.handleLeave).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}/report", a.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/session/{id}", a.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/job/{id}", a.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/job/{id}/ws", a.handleJobStream).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(a.origins()),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", headerUserID, headerUserName, headerGuestToken}),
		handlers.AllowCredentials(),
	)
	return cors(r)
}

// NewServer builds the http.Server with the configured timeouts.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func (a *API) origins() []string {
	if len(a.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return a.opts.AllowedOrigins
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.origins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logging.WithTelemetry(r.Context(), uuid.NewString(), "")
		ctx = logging.WithAttrs(ctx, slog.String("component", "transport.httpapi"))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logging.Debug(ctx, "request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}
