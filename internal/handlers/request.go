package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"github.com/otcheredev/roadservice-api/internal/auth"
	"github.com/otcheredev/roadservice-api/internal/models"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = apperr.Validation("Request body is required")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperr.Wrap(apperr.ErrValidation, "Invalid request body", err)
	}
	return nil
}

// identity returns the caller attached by the authenticator. Routes using
// it are never mounted without authentication.
func identity(r *http.Request) (models.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return models.Identity{}, auth.ErrMissingToken
	}
	return id, nil
}

// page reads offset and limit query parameters
func page(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(q.Get("limit"))
	return offset, limit
}

type message struct {
	Message string `json:"message"`
}
