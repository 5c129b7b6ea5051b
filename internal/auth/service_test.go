package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal/apperr"
	"envanter/internal/models"
	"envanter/internal/store"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (r *recordedEvents) Publish(ev models.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []models.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuthEventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newTestService(t *testing.T) (*Service, *JWTManager, *recordedEvents) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))
	jm := NewJWTManager("test-secret-key-that-is-long-enough-for-testing", "test-issuer", "test-audience", time.Hour)
	ev := &recordedEvents{}
	return NewService(st, jm, ev, nil), jm, ev
}

func TestServiceSignIn(t *testing.T) {
	svc, jm, ev := newTestService(t)
	ctx := context.Background()

	sess, err := svc.SignIn(ctx, "Admin@Example.com", store.SeedAdminPassword)
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.Equal(t, store.SeedAdminEmail, sess.User.Email)

	claims, err := jm.ValidateToken(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	active, err := svc.SessionActive(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []models.AuthEventType{models.AuthSignedIn}, ev.types())
}

func TestServiceSignInRejects(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, store.SeedAdminEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestServiceSignOutRevokes(t *testing.T) {
	svc, jm, ev := newTestService(t)
	ctx := context.Background()

	sess, err := svc.SignIn(ctx, store.SeedUserEmail, store.SeedUserPassword)
	require.NoError(t, err)
	claims, err := jm.ValidateToken(sess.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, claims))
	active, err := svc.SessionActive(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, active)

	// signing out twice is harmless
	require.NoError(t, svc.SignOut(ctx, claims))
	assert.Equal(t, models.AuthSignedOut, ev.types()[1])

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceDeactivatedUserCannotSignIn(t *testing.T) {
	svc, _, ev := newTestService(t)
	ctx := context.Background()

	u, err := svc.store.GetUserByEmail(ctx, store.SeedUserEmail)
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateUser(ctx, u.ID, models.UserPatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, []models.AuthEventType{models.AuthUserUpdated}, ev.types())

	_, err = svc.SignIn(ctx, store.SeedUserEmail, store.SeedUserPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.User(ctx, u.ID)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestServiceLookupEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	email, err := svc.LookupEmail(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, store.SeedAdminEmail, email)

	_, err = svc.LookupEmail(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceCreateUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, models.CreateUserRequest{Email: " New@Example.com ", Username: "yeni", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err = svc.SignIn(ctx, "new@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, models.CreateUserRequest{Email: "x@example.com", Password: "p", Role: "root"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = svc.CreateUser(ctx, models.CreateUserRequest{Email: "new@example.com", Password: "p"})
	assert.ErrorIs(t, err, store.ErrConflict)
}
