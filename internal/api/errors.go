package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"pathplanner/pkg/link"
	"pathplanner/pkg/pathstore"
)

// errNoLink is returned by link endpoints when no vehicle link is configured.
var errNoLink = errors.New("no vehicle link")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pathstore.ErrInvalidInput), errors.Is(err, pathstore.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, pathstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pathstore.ErrDuplicateName), errors.Is(err, pathstore.ErrLastPathProtected):
		return http.StatusConflict
	case errors.Is(err, link.ErrTransport), errors.Is(err, link.ErrClosed):
		return http.StatusBadGateway
	case errors.Is(err, errNoLink):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("API: request failed", "error", err, "status", status)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeBody reads a JSON body into v. Malformed bodies are invalid input.
func decodeBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", pathstore.ErrInvalidInput, err)
	}
	return nil
}
