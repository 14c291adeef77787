package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrms.org/internal/auth"
	"hrms.org/internal/obs"
)

// statusFor is the single mapping from error kind to HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindInvalidCredentials, auth.KindInvalidToken:
		return http.StatusUnauthorized
	case auth.KindAccountLocked:
		return http.StatusLocked
	case auth.KindPermissionDenied:
		return http.StatusForbidden
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err using its kind. Internal errors are logged and their
// detail is withheld from the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := auth.KindOf(err)
	code := statusFor(kind)
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	if kind == auth.KindInternal {
		obs.Logger().ErrorContext(r.Context(), "request failed",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, r, code, "internal error")
		return
	}
	var authErr *auth.Error
	msg := err.Error()
	if errors.As(err, &authErr) && authErr.Msg != "" {
		msg = authErr.Msg
	}
	writeError(w, r, code, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return auth.Validation("request body is required")
		}
		return auth.Validationf("invalid request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return auth.Validation("unexpected data after JSON body")
	}
	return nil
}

// pathID parses the {id} route parameter as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, auth.Validation("id must be a positive integer")
	}
	return id, nil
}

func parseNonNegativeInt(raw string, def int, name string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, auth.Validationf("%s must be a non-negative integer", name)
	}
	return val, nil
}
