package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ateria/internal/core"
	"ateria/internal/storage"
)

// roleHeader carries the caller's role as set by the auth proxy in front of
// the service. It is opaque here: echoed in responses, never interpreted.
const roleHeader = "X-Auth-Role"

// envelope is the uniform response body: a timestamp, the caller's role and
// the payload.
type envelope struct {
	TS   int64  `json:"ts"`
	Role string `json:"role"`
	Data any    `json:"data"`
}

type failure struct {
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.MarshalIndent(envelope{
		TS:   time.Now().UnixMilli(),
		Role: r.Header.Get(roleHeader),
		Data: data,
	}, "", "  ")
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondFailure reports an operation failure. Validation problems keep
// their message; everything else is logged and replaced by a generic one so
// internals never leak to the caller.
func respondFailure(w http.ResponseWriter, r *http.Request, err error, generic string) {
	switch {
	case isInvalidInput(err):
		respond(w, r, http.StatusUnprocessableEntity, failure{Message: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		respond(w, r, http.StatusNotFound, failure{Message: "not found"})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "path", r.URL.Path)
		respond(w, r, http.StatusInternalServerError, failure{Message: generic})
	}
}

func isInvalidInput(err error) bool {
	for _, target := range []error{
		core.ErrInvalidUserID,
		core.ErrInvalidSlot,
		core.ErrInvalidCategory,
		core.ErrInvalidCount,
		core.ErrInvalidMonth,
		core.ErrInvalidDay,
		core.ErrInvalidAmount,
		core.ErrInvalidDateRange,
		core.ErrEmptyName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

// pathInt parses one numeric path segment.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, err
	}
	return v, nil
}
