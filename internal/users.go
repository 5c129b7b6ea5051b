package internal

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"envanter/internal/auth"
	"envanter/internal/models"
)

// signIn exchanges an email/password pair for an access token
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.Auth.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.Metrics.RecordLogin("invalid")
	case err != nil:
		s.Metrics.RecordLogin("error")
	default:
		s.Metrics.RecordLogin("success")
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := s.Auth.SignOut(r.Context(), claims); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionUser returns the principal behind the bearer token
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.Auth.User(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionUser{ID: u.ID, Email: u.Email})
}

// authEvents upgrades to a websocket carrying this session's auth events
func (s *Server) authEvents(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	s.Events.ServeWS(w, r, claims.UserID, claims.ID)
}

// getProfile returns a user's profile; users see their own, admins anyone's
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := auth.ClaimsFromContext(r.Context())
	if id != claims.UserID && !claims.HasRole(models.RoleAdmin) {
		auth.SendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
		return
	}

	u, err := s.Store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}

// lookupEmail resolves a username to its sign-in email
func (s *Server) lookupEmail(w http.ResponseWriter, r *http.Request) {
	var req models.LookupEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := s.Auth.LookupEmail(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LookupEmailResponse{Email: email})
}

// listUsers returns full user rows to admins and public profiles to everyone else
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.Store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if auth.ClaimsFromContext(r.Context()).HasRole(models.RoleAdmin) {
		if users == nil {
			users = []models.User{}
		}
		writeJSON(w, http.StatusOK, users)
		return
	}
	profiles := make([]models.Profile, 0, len(users))
	for i := range users {
		if users[i].IsActive {
			profiles = append(profiles, users[i].Profile())
		}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Auth.CreateUser(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("user created", "user_id", u.ID, "role", u.Role, "by", auth.UserIDFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch models.UserPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		badRequest(w, err)
		return
	}
	u, err := s.Auth.UpdateUser(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
