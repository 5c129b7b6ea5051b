package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal"
	"envanter/internal/apperr"
	"envanter/internal/config"
	"envanter/internal/models"
	"envanter/internal/store"
)

const testAnonKey = "anon-test-key"

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))
	cfg := &config.Config{
		Environment:        "test",
		JWTSecret:          "client-test-secret-that-is-long-enough",
		JWTIssuer:          "envanter",
		JWTAudience:        "envanter",
		JWTExpiry:          time.Hour,
		Store:              config.StoreMemory,
		AnonKey:            testAnonKey,
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	}
	s, err := internal.NewServer(st, cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router)
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close(context.Background())
	})
	return ts
}

// session signs in and returns a client carrying the resulting token.
func session(t *testing.T, baseURL, username, password string) (*Client, *models.Session) {
	t.Helper()
	var token string
	c := New(baseURL, WithAnonKey(testAnonKey), WithTokenSource(func() string { return token }))
	ctx := context.Background()

	email, err := c.LookupEmail(ctx, username)
	require.NoError(t, err)
	sess, err := c.SignIn(ctx, email, password)
	require.NoError(t, err)
	token = sess.AccessToken
	return c, sess
}

func TestSignInFlow(t *testing.T) {
	ts := newAPI(t)
	c, sess := session(t, ts.URL, store.SeedAdminUsername, store.SeedAdminPassword)
	ctx := context.Background()

	u, err := c.GetUser(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, store.SeedAdminEmail, u.Email)

	p, err := c.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "Admin Kullanıcı", p.DisplayName())

	require.NoError(t, c.SignOut(ctx, sess.AccessToken))
	_, err = c.GetUser(ctx, sess.AccessToken)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentials))
}

func TestSignInErrors(t *testing.T) {
	ts := newAPI(t)
	ctx := context.Background()

	c := New(ts.URL, WithAnonKey(testAnonKey))
	_, err := c.SignIn(ctx, store.SeedAdminEmail, "wrong")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentials))
	assert.Equal(t, apperr.MsgInvalidCredentials, apperr.Message(err))

	_, err = c.LookupEmail(ctx, "nobody")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	noKey := New(ts.URL)
	_, err = noKey.SignIn(ctx, store.SeedAdminEmail, store.SeedAdminPassword)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentials))
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.SignIn(context.Background(), "a@b.c", "x")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.Equal(t, apperr.MsgTransport, apperr.Message(err))
}

func TestRowOperations(t *testing.T) {
	ts := newAPI(t)
	c, _ := session(t, ts.URL, store.SeedAdminUsername, store.SeedAdminPassword)
	ctx := context.Background()

	items, err := c.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 6)

	cats, err := c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 7)

	cat, err := c.InsertCategory(ctx, "Sahne")
	require.NoError(t, err)
	_, err = c.InsertCategory(ctx, "Sahne")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	loc, err := c.InsertLocation(ctx, "Depo 2")
	require.NoError(t, err)

	it, err := c.InsertItem(ctx, models.CreateItemRequest{
		Name:       "Truss",
		CategoryID: cat.ID,
		LocationID: loc.ID,
		Barcode:    "TRS-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sahne", it.CategoryName)
	assert.Equal(t, "Depo 2", it.LocationName)
	assert.Equal(t, 0, it.Quantity)

	name := "Alüminyum Truss"
	it, err = c.UpdateItem(ctx, it.ID, models.ItemPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, it.Name)

	_, err = c.UpdateItem(ctx, it.ID, models.ItemPatch{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	res, err := c.InsertMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementIn, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, res.ItemQuantity)
	assert.Equal(t, name, res.Movement.ItemName)

	res, err = c.InsertMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementOut, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ItemQuantity)

	_, err = c.InsertMovement(ctx, models.CreateMovementRequest{ItemID: it.ID, Type: models.MovementOut, Quantity: 4})
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientStock))

	_, err = c.InsertMovement(ctx, models.CreateMovementRequest{ItemID: "missing", Type: models.MovementIn, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	moves, err := c.ListMovements(ctx, models.MovementFilter{ItemIDs: []string{it.ID}})
	require.NoError(t, err)
	assert.Len(t, moves, 2)

	outs, err := c.ListMovements(ctx, models.MovementFilter{Type: models.MovementOut})
	require.NoError(t, err)
	for _, m := range outs {
		assert.Equal(t, models.MovementOut, m.Type)
	}

	// Still referenced by the item.
	assert.True(t, apperr.IsKind(c.DeleteCategory(ctx, cat.ID), apperr.KindConflict))

	removed, err := c.DeleteItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	require.NoError(t, c.DeleteCategory(ctx, cat.ID))
	require.NoError(t, c.DeleteLocation(ctx, loc.ID))
	assert.True(t, apperr.IsKind(c.DeleteLocation(ctx, loc.ID), apperr.KindNotFound))
}

func TestNonAdminIsForbidden(t *testing.T) {
	ts := newAPI(t)
	c, _ := session(t, ts.URL, store.SeedUserUsername, store.SeedUserPassword)
	ctx := context.Background()

	items, err := c.ListItems(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	_, err = c.DeleteItem(ctx, items[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPermission))

	_, err = c.InsertCategory(ctx, "Yeni")
	assert.True(t, apperr.IsKind(err, apperr.KindPermission))
}

func TestSubscribe(t *testing.T) {
	ts := newAPI(t)
	c, sess := session(t, ts.URL, store.SeedAdminUsername, store.SeedAdminPassword)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.Subscribe(ctx, sess.AccessToken)
	require.NoError(t, err)

	require.NoError(t, c.SignOut(context.Background(), sess.AccessToken))
	select {
	case ev, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, models.AuthSignedOut, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no auth event")
	}

	cancel()
	for range ch {
	}
}

func TestSubscribeRejectsBadToken(t *testing.T) {
	ts := newAPI(t)
	c := New(ts.URL)
	_, err := c.Subscribe(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentials))
}

func TestUserDirectory(t *testing.T) {
	ts := newAPI(t)
	ctx := context.Background()
	admin, _ := session(t, ts.URL, store.SeedAdminUsername, store.SeedAdminPassword)
	clerk, _ := session(t, ts.URL, store.SeedUserUsername, store.SeedUserPassword)

	name := "Işık Teknisyeni"
	u, err := admin.CreateUser(ctx, models.CreateUserRequest{
		Email:    "isik@example.com",
		Username: "isik",
		Password: "isik12345",
		FullName: &name,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, u.IsActive)

	_, err = admin.CreateUser(ctx, models.CreateUserRequest{Email: "isik@example.com", Password: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	_, err = clerk.CreateUser(ctx, models.CreateUserRequest{Email: "baska@example.com", Password: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindPermission))

	users, err := clerk.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	role := models.RoleAdmin
	promoted, err := admin.UpdateUser(ctx, u.ID, models.UserPatch{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	off := false
	_, err = admin.UpdateUser(ctx, u.ID, models.UserPatch{IsActive: &off})
	require.NoError(t, err)
	users, err = clerk.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2, "inactive accounts are hidden from non-admins")

	_, err = admin.UpdateUser(ctx, u.ID, models.UserPatch{})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = admin.UpdateUser(ctx, "missing", models.UserPatch{Role: &role})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
