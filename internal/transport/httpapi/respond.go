package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error kind to a status and returns {"error": msg}.
// Internal errors are logged and never echoed.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := kind.HTTPStatus()
	message := publicMessage(err)

	if kind == errs.KindInternal {
		logging.Error(ctx, "request failed", slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Debug(ctx, "request rejected", slog.String("kind", kind.String()), slog.String("error", message))
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func publicMessage(err error) string {
	var kinded *errs.KindError
	if errors.As(err, &kinded) {
		return kinded.Error()
	}
	return "internal server error"
}

func badRequest(ctx context.Context, w http.ResponseWriter, msg string) {
	writeError(ctx, w, errs.New(errs.KindInvalid, msg))
}
