package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joescharf/issuetracker/internal/tracker"
)

// Result strings returned on success.
const (
	ResultUpdated = "successfully updated"
	ResultDeleted = "successfully deleted"
)

// Error strings returned when an issue cannot be resolved.
const (
	ErrCouldNotUpdate = "could not update"
	ErrCouldNotDelete = "could not delete"
)

// Result is the payload of update and delete, and of every validation
// failure.
type Result struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     string `json:"_id,omitempty"`
}

// Responder writes API responses. In the default mode every logical
// outcome is HTTP 200 and failures are signalled only by Result.Error.
// With Strict set, the same payloads carry 400 or 404 instead.
type Responder struct {
	Strict bool
	Log    *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Result{Error: msg})
}

// OK writes v with status 200.
func (rs *Responder) OK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

// Failure writes err. Validation outcomes become Result payloads; anything
// else is an internal error and is logged.
func (rs *Responder) Failure(w http.ResponseWriter, r *http.Request, err error) {
	var te *tracker.Error
	if !errors.As(err, &te) {
		rs.Log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg, status := failureMessage(te)
	if !rs.Strict {
		status = http.StatusOK
	}
	writeJSON(w, status, Result{Error: msg, ID: te.ID})
}

// failureMessage maps a validation outcome to its wire message and the
// status used in strict mode.
func failureMessage(te *tracker.Error) (string, int) {
	switch {
	case errors.Is(te.Err, tracker.ErrNotFound):
		if te.Op == tracker.OpDelete {
			return ErrCouldNotDelete, http.StatusNotFound
		}
		return ErrCouldNotUpdate, http.StatusNotFound
	default:
		return te.Err.Error(), http.StatusBadRequest
	}
}
