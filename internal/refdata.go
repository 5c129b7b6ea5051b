package internal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"envanter/internal/models"
)

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var in models.NamedRequest
	if !decodeJSON(w, r, &in) {
		return "", false
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		badRequest(w, errors.New("name is required"))
		return "", false
	}
	return name, true
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Store.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	c, err := s.Store.CreateCategory(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.Store.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if locs == nil {
		locs = []models.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	l, err := s.Store.CreateLocation(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
