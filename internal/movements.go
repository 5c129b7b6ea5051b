package internal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"envanter/internal/auth"
	"envanter/internal/models"
)

// parseMovementFilter reads item_id (repeatable or comma-separated), type,
// from and to. Dates are RFC 3339 or YYYY-MM-DD; a bare "to" date covers the
// whole day.
func parseMovementFilter(r *http.Request) (models.MovementFilter, error) {
	values := r.URL.Query()
	var f models.MovementFilter

	for _, v := range values["item_id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.ItemIDs = append(f.ItemIDs, id)
			}
		}
	}

	if t := values.Get("type"); t != "" {
		typ, err := models.ParseMovementType(t)
		if err != nil {
			return f, err
		}
		f.Type = typ
	}

	if v := values.Get("from"); v != "" {
		from, _, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
		f.From = &from
	}
	if v := values.Get("to"); v != "" {
		to, dateOnly, err := parseDate(v)
		if err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}
	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q", s)
	}
	return t, true, nil
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	filter, err := parseMovementFilter(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	moves, total, err := s.Store.ListMovements(r.Context(), filter, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, moves, total, params)
}

// createMovement records a movement; the store adjusts the item's quantity in
// the same step and the response carries the resulting quantity.
func (s *Server) createMovement(w http.ResponseWriter, r *http.Request) {
	var in models.CreateMovementRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	in.Actor = auth.UserIDFromContext(r.Context())

	res, err := s.Store.CreateMovement(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Metrics.RecordMovement(string(in.Type), in.Quantity)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) deleteMovement(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteMovement(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
