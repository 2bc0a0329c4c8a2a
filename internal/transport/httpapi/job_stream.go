package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
)

const streamWriteTimeout = 10 * time.Second

// handleJobStream pushes the job snapshot whenever it changes and closes the
// socket once the job is done. Authorization happens before the upgrade so
// failures still surface as plain HTTP errors.
func (a *API) handleJobStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := a.actorFromRequest(ctx, r, "")
	jobID := mux.Vars(r)["id"]

	view, err := a.notes.JobStatus(ctx, actor, jobID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	defer conn.Close()

	pongWait := 2 * a.opts.StreamPingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine notices client closes and missed pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(a.opts.JobPollInterval)
	defer ticker.Stop()
	pings := time.NewTicker(a.opts.StreamPingInterval)
	defer pings.Stop()
	lifetime := time.NewTimer(a.opts.StreamMaxLifetime)
	defer lifetime.Stop()

	var last jobResponse
	first := true
	for {
		current := newJobResponse(view)
		if first || current.Status != last.Status || current.Progress != last.Progress || current.SessionStatus != last.SessionStatus {
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(current); err != nil {
				return
			}
			last = current
			first = false
		}
		if view.Job.Status.Done() {
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
				time.Now().Add(streamWriteTimeout),
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-lifetime.C:
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream lifetime reached"),
				time.Now().Add(streamWriteTimeout),
			)
			return
		case <-pings.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
			continue
		case <-ticker.C:
		}

		view, err = a.notes.JobStatus(ctx, actor, jobID)
		if err != nil {
			logging.Warn(ctx, "job stream lookup failed", slog.Any("err", errs.Loggable(err)))
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, publicMessage(err)),
				time.Now().Add(streamWriteTimeout),
			)
			return
		}
	}
}
