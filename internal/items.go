package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"envanter/internal/auth"
	"envanter/internal/models"
)

// LIST with search, sort & pagination
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	items, total, err := s.Store.ListItems(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sendListResponse(w, items, total, params)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.Store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var in models.CreateItemRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	in.CreatedBy = auth.UserIDFromContext(r.Context())

	it, err := s.Store.CreateItem(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var patch models.ItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		badRequest(w, err)
		return
	}

	it, err := s.Store.UpdateItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type deleteItemResponse struct {
	ID               string `json:"id"`
	MovementsRemoved int    `json:"movements_removed"`
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.Store.DeleteItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("item deleted", "item_id", id, "movements_removed", removed, "by", auth.UserIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, deleteItemResponse{ID: id, MovementsRemoved: removed})
}
