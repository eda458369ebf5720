package api

import (
	"errors"
	"net/http"

	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/snapshot"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var patternErr *privacy.PatternError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &patternErr),
		errors.Is(err, privacy.ErrInvalidMatcher),
		errors.Is(err, privacy.ErrInvalidLabel),
		errors.Is(err, privacy.ErrInvalidKey),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, privacy.ErrUnknownRule),
		errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")
