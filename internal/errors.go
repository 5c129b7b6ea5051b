package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"envanter/internal/apperr"
	"envanter/internal/auth"
	"envanter/internal/store"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		auth.SendErrorResponse(w, fmt.Sprintf("invalid JSON: %v", err), "INVALID_JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, err error) {
	auth.SendErrorResponse(w, err.Error(), "VALIDATION_FAILED", http.StatusBadRequest)
}

// writeError maps store, auth and validation errors onto the JSON error
// envelope. Anything unrecognised is logged and reported as a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsKind(err, apperr.KindValidation):
		var ae *apperr.Error
		errors.As(err, &ae)
		msg := ae.Message
		if ae.Err != nil {
			msg = ae.Err.Error()
		}
		auth.SendErrorResponse(w, msg, "VALIDATION_FAILED", http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidCredentials):
		auth.SendErrorResponse(w, "Invalid login credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized)
	case errors.Is(err, store.ErrNotFound):
		auth.SendErrorResponse(w, "not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, store.ErrInsufficientStock):
		auth.SendErrorResponse(w, "insufficient stock", "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.Is(err, store.ErrConflict):
		auth.SendErrorResponse(w, "conflicts with an existing or referenced record", "CONFLICT", http.StatusConflict)
	default:
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		auth.SendErrorResponse(w, "internal error", "INTERNAL", http.StatusInternalServerError)
	}
}
