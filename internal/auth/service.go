package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"envanter/internal/apperr"
	"envanter/internal/models"
	"envanter/internal/store"
)

// ErrInvalidCredentials covers unknown accounts, inactive accounts and wrong
// passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Publisher receives auth events for fan-out to subscribers.
type Publisher interface {
	Publish(ev models.AuthEvent)
}

// Service signs users in and out and keeps the session table that makes
// tokens revocable.
type Service struct {
	store  store.Store
	jwt    *JWTManager
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Service. events may be nil.
func NewService(st store.Store, jm *JWTManager, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, jwt: jm, events: events, logger: logger, now: time.Now}
}

func (s *Service) publish(typ models.AuthEventType, userID, sessionID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.AuthEvent{Type: typ, UserID: userID, SessionID: sessionID, At: s.now()})
}

// SignIn checks an email/password pair and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.jwt.GenerateToken(u.ID, u.Email, u.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	if err := s.store.CreateSession(ctx, store.SessionRecord{
		ID:        sessionID,
		UserID:    u.ID,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.store.TouchLastLogin(ctx, u.ID); err != nil {
		s.logger.Warn("update last login failed", "user_id", u.ID, "error", err)
	}

	s.logger.Info("user signed in", "user_id", u.ID)
	s.publish(models.AuthSignedIn, u.ID, sessionID)
	return &models.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        models.SessionUser{ID: u.ID, Email: u.Email},
	}, nil
}

// SignOut revokes the session behind claims.
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	if err := s.store.RevokeSession(ctx, claims.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info("user signed out", "user_id", claims.UserID)
	s.publish(models.AuthSignedOut, claims.UserID, claims.ID)
	return nil
}

// SessionActive implements SessionChecker.
func (s *Service) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.Active(s.now()), nil
}

// Authenticate validates token and checks that its session is still live.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	active, err := s.SessionActive(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// User returns the active user behind a token's subject.
func (s *Service) User(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// LookupEmail resolves a username to the email used for sign-in.
func (s *Service) LookupEmail(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", store.ErrNotFound
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// CreateUser hashes the password and stores a new account.
func (s *Service) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" {
		return nil, apperr.Validation("auth.CreateUser", errors.New("email and password are required"))
	}
	if !models.IsValidRole(req.Role) {
		return nil, apperr.Validation("auth.CreateUser", fmt.Errorf("invalid role %q", req.Role))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
	})
}

// UpdateUser applies an admin patch and tells the user's clients to refresh.
func (s *Service) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	u, err := s.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(models.AuthUserUpdated, u.ID, "")
	return u, nil
}

// PurgeExpired drops sessions that are expired or revoked.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.store.PurgeExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged sessions", "count", n)
	}
	return n, nil
}
