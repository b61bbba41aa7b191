package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/dispatch"
	"inferd/internal/loader"
	"inferd/internal/registry"
	"inferd/pkg/types"
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
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case registry.IsNotFound(err), registry.IsNoCandidates(err):
		return http.StatusNotFound
	case registry.IsAlreadyRegistered(err):
		return http.StatusConflict
	case dispatch.IsInvalidRequest(err):
		return http.StatusBadRequest
	case dispatch.IsTimeout(err):
		return http.StatusGatewayTimeout
	case loader.IsLoadError(err), dispatch.IsInvocationError(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError maps err and writes the JSON payload.
func writeServiceError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusForError(err), err.Error())
}
