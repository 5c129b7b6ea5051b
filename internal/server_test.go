package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal/config"
	"envanter/internal/listing"
	"envanter/internal/models"
	"envanter/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "test",
		JWTSecret:          "test-secret-key-that-is-long-enough-for-hs256",
		JWTIssuer:          "envanter",
		JWTAudience:        "envanter-clients",
		JWTExpiry:          time.Hour,
		Store:              config.StoreMemory,
		LoginRatePerMinute: 600,
		LoginBurst:         100,
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, store.Seed(context.Background(), st))

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := NewServer(st, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func signIn(t *testing.T, s *Server, email, password string) string {
	t.Helper()
	w := do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.AccessToken)
	return sess.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Code string `json:"code"`
	}](t, w).Code
}

func findItem(t *testing.T, s *Server, token, barcode string) models.Item {
	t.Helper()
	w := do(t, s, "GET", "/items?q="+barcode, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listing.Response[models.Item]](t, w)
	require.Len(t, resp.Data, 1)
	return resp.Data[0]
}

func TestHealthAndPing(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = do(t, s, "GET", "/dbping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSignInAndListItems(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)

	w := do(t, s, "GET", "/items?limit=2&sort=-quantity", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listing.Response[models.Item]](t, w)
	assert.Equal(t, listing.Meta{Total: 6, Limit: 2, Offset: 0}, resp.Meta)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "LED Par Işık", resp.Data[0].Name)
	assert.Equal(t, 11, resp.Data[0].Quantity)
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: store.SeedAdminEmail, Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))

	w = do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, "GET", "/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_AUTH_HEADER", errorCode(t, w))
}

func TestLookupEmail(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/rpc/lookup_email", "", models.LookupEmailRequest{Username: store.SeedAdminUsername})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.SeedAdminEmail, decode[models.LookupEmailResponse](t, w).Email)

	w = do(t, s, "POST", "/rpc/lookup_email", "", models.LookupEmailRequest{Username: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestAnonKeyRequired(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AnonKey = "anon-123" })

	w := do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: store.SeedAdminEmail, Password: store.SeedAdminPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_API_KEY", errorCode(t, w))

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(models.TokenRequest{Email: store.SeedAdminEmail, Password: store.SeedAdminPassword}))
	req := httptest.NewRequest("POST", "/auth/token", &buf)
	req.Header.Set("apikey", "anon-123")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.LoginRatePerMinute = 1
		c.LoginBurst = 2
	})

	body := models.TokenRequest{Email: store.SeedAdminEmail, Password: "wrong"}
	assert.Equal(t, http.StatusUnauthorized, do(t, s, "POST", "/auth/token", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, "POST", "/auth/token", "", body).Code)

	w := do(t, s, "POST", "/auth/token", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestSessionEndpointsAndLogout(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	w := do(t, s, "GET", "/auth/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[models.SessionUser](t, w)
	assert.Equal(t, store.SeedUserEmail, user.Email)

	w = do(t, s, "GET", "/profiles/"+user.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.Profile](t, w)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.Equal(t, "Depo Sorumlusu", profile.FullName)

	w = do(t, s, "POST", "/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, "GET", "/auth/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_REVOKED", errorCode(t, w))
}

func TestProfileOfAnotherUser(t *testing.T) {
	s := newTestServer(t)
	admin, err := s.Store.GetUserByEmail(context.Background(), store.SeedAdminEmail)
	require.NoError(t, err)

	userToken := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)
	w := do(t, s, "GET", "/profiles/"+admin.ID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)
	w = do(t, s, "GET", "/profiles/"+admin.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	w := do(t, s, "POST", "/items", token, models.CreateItemRequest{Name: "Sis Makinesi", Brand: "Antari"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Item](t, w)
	assert.Regexp(t, `^INV\d{14}$`, created.Barcode)
	assert.Equal(t, models.StatusInStock, created.Status)
	assert.NotEmpty(t, created.CreatedBy)

	w = do(t, s, "POST", "/items", token, models.CreateItemRequest{Name: "Kopya", Barcode: created.Barcode})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))

	w = do(t, s, "POST", "/items", token, models.CreateItemRequest{Name: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, w))

	status := models.StatusRented
	w = do(t, s, "PATCH", "/items/"+created.ID, token, models.ItemPatch{Status: &status})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusRented, decode[models.Item](t, w).Status)

	w = do(t, s, "PATCH", "/items/"+created.ID, token, models.ItemPatch{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "GET", "/items/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// deleting is for admins
	w = do(t, s, "DELETE", "/items/"+created.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteItemCascades(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)
	mic := findItem(t, s, token, "MIKSHUSM58-001")

	w := do(t, s, "DELETE", "/items/"+mic.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[deleteItemResponse](t, w)
	assert.Equal(t, 1, resp.MovementsRemoved)

	w = do(t, s, "GET", "/movements?item_id="+mic.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[listing.Response[models.Movement]](t, w).Meta.Total)
}

func TestMovementsAdjustQuantity(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	w := do(t, s, "POST", "/items", token, models.CreateItemRequest{Name: "Hoparlör Standı", Barcode: "STD-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	item := decode[models.Item](t, w)

	w = do(t, s, "POST", "/movements", token, models.CreateMovementRequest{ItemID: item.ID, Type: models.MovementIn, Quantity: 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[models.MovementResult](t, w)
	assert.Equal(t, 5, res.ItemQuantity)
	assert.Equal(t, "Depo Sorumlusu", res.Movement.ActorName)

	w = do(t, s, "POST", "/movements", token, models.CreateMovementRequest{ItemID: item.ID, Type: models.MovementOut, Quantity: 2})
	require.Equal(t, http.StatusCreated, w.Code)
	res = decode[models.MovementResult](t, w)
	assert.Equal(t, 3, res.ItemQuantity)

	w = do(t, s, "POST", "/movements", token, models.CreateMovementRequest{ItemID: item.ID, Type: models.MovementOut, Quantity: 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, w))

	w = do(t, s, "POST", "/movements", token, models.CreateMovementRequest{ItemID: "missing", Type: models.MovementIn, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, "POST", "/movements", token, models.CreateMovementRequest{ItemID: item.ID, Type: models.MovementIn, Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 3, findItem(t, s, token, "STD-1").Quantity)

	w = do(t, s, "GET", "/movements?item_id="+item.ID+"&type=out", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listing.Response[models.Movement]](t, w)
	require.Equal(t, 1, list.Meta.Total)

	w = do(t, s, "DELETE", "/movements/"+list.Data[0].ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	// removing the record leaves the quantity alone
	assert.Equal(t, 3, findItem(t, s, token, "STD-1").Quantity)
}

func TestListMovementsDateFilter(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)

	w := do(t, s, "GET", "/movements?from=2024-03-05&to=2024-03-10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[listing.Response[models.Movement]](t, w).Meta.Total)

	w = do(t, s, "GET", "/movements?from=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "GET", "/movements?type=sideways", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferenceData(t *testing.T) {
	s := newTestServer(t)
	admin := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)
	user := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	w := do(t, s, "GET", "/categories", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Category](t, w), 7)

	w = do(t, s, "POST", "/categories", user, models.NamedRequest{Name: "Sehpalar"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, "POST", "/categories", admin, models.NamedRequest{Name: "Sehpalar"})
	require.Equal(t, http.StatusCreated, w.Code)
	cat := decode[models.Category](t, w)

	w = do(t, s, "POST", "/categories", admin, models.NamedRequest{Name: "Sehpalar"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, "DELETE", "/categories/"+cat.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	mic := findItem(t, s, admin, "MIKSHUSM58-001")
	w = do(t, s, "DELETE", "/locations/"+mic.LocationID, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, "POST", "/locations", admin, models.NamedRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "GET", "/locations", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Location](t, w), 4)
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t)
	admin := signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)
	user := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	w := do(t, s, "POST", "/users", user, models.CreateUserRequest{Email: "yeni@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, "POST", "/users", admin, models.CreateUserRequest{Email: "Yeni@Example.com", Username: "yeni", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.User](t, w)
	assert.Equal(t, "yeni@example.com", created.Email)
	assert.Equal(t, models.RoleUser, created.Role)

	w = do(t, s, "POST", "/users", admin, models.CreateUserRequest{Email: "bad@example.com", Password: "x", Role: "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "GET", "/users", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Profile](t, w), 3)

	inactive := false
	w = do(t, s, "PATCH", "/users/"+created.ID, admin, models.UserPatch{IsActive: &inactive})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: "yeni@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsMountedWhenEnabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.EnableMetrics = true })
	signIn(t, s, store.SeedAdminEmail, store.SeedAdminPassword)

	w := do(t, s, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `envanter_logins_total{result="success"} 1`)
	assert.Contains(t, w.Body.String(), `path="/auth/token"`)

	off := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, off, "GET", "/metrics", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.CORSOrigins = []string{"http://localhost:5173"} })

	req := httptest.NewRequest("OPTIONS", "/items", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerRejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "short"
	_, err := NewServer(store.NewMemory(), cfg, nil)
	assert.Error(t, err)
}

func TestNewServerRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SessionPurgeSchedule = "every now and then"
	_, err := NewServer(store.NewMemory(), cfg, nil)
	assert.Error(t, err)
}
