package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRoles defines the available roles in the system
var ValidRoles = []string{RoleAdmin, RoleUser}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	for _, validRole := range ValidRoles {
		if role == validRole {
			return true
		}
	}
	return false
}

// User represents a user row on the server
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username,omitempty"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	FullName     *string    `json:"full_name,omitempty"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Profile returns the public part of the user.
func (u *User) Profile() Profile {
	p := Profile{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	return p
}

// Profile is the identity the client holds after authentication.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// DisplayName returns the user's display name
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}

// CreateUserRequest represents the request body for creating a new user
type CreateUserRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username,omitempty"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
	Role     string  `json:"role"`
}

// Normalize trims identifiers and lower-cases the email.
func (r *CreateUserRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

// TokenRequest represents the request body for password sign-in
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LookupEmailRequest is the body of the lookup_email RPC.
type LookupEmailRequest struct {
	Username string `json:"username"`
}

// LookupEmailResponse is the result of the lookup_email RPC.
type LookupEmailResponse struct {
	Email string `json:"email"`
}

// SessionUser is the authenticated principal behind a session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is issued by a successful sign-in.
type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        SessionUser `json:"user"`
}

// AuthEventType names a change on the auth service.
type AuthEventType string

const (
	AuthSignedIn    AuthEventType = "SIGNED_IN"
	AuthSignedOut   AuthEventType = "SIGNED_OUT"
	AuthUserUpdated AuthEventType = "USER_UPDATED"
)

// AuthEvent is pushed to subscribers of a user's session stream. An event
// with a SessionID only reaches that session.
type AuthEvent struct {
	Type      AuthEventType `json:"type"`
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id,omitempty"`
	At        time.Time     `json:"at"`
}

// UserPatch is an admin update of a user; nil fields are left untouched.
type UserPatch struct {
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Validate rejects empty patches and unknown roles.
func (p UserPatch) Validate() error {
	if p.FullName == nil && p.Role == nil && p.IsActive == nil {
		return errors.New("no fields to update")
	}
	if p.Role != nil && !IsValidRole(*p.Role) {
		return fmt.Errorf("invalid role %q", *p.Role)
	}
	return nil
}
