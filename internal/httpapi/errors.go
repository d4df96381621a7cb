package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ocrd/internal/engine"
	"ocrd/internal/manager"
	"ocrd/internal/queue"
	"ocrd/internal/tts"
	"ocrd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Status: "error", Message: msg, Code: status})
}

// writeServiceError maps well-known service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case manager.IsLoadTimeout(err):
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
	case queue.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case queue.IsTooBusy(err):
		IncrementBackpressure("queue")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case engine.IsUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, tts.ErrEmptyText):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
