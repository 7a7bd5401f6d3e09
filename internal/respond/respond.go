// Package respond is the single place where errors become HTTP responses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/rs/zerolog/log"
)

// ErrorBody is the error envelope
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Status maps an error kind to its HTTP status
func Status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as {"detail": message}. Errors without a kind are
// logged and reported generically.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	msg := apperr.Message(err, "Internal server error")

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Unclassified error")
	} else if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	JSON(w, status, ErrorBody{Detail: msg})
}

// Detail writes a literal error message with status
func Detail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Detail: msg})
}
