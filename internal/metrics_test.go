package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envanter/internal/config"
	"envanter/internal/models"
	"envanter/internal/store"
)

func TestMetricsUseRoutePatterns(t *testing.T) {
	m := NewMetrics()
	router := chi.NewRouter()
	router.Use(m.Middleware())
	router.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"5b2f0c1e-3d1a-4c55-9a51-6f0e2a7d8c10", "0b8e6a52-6c0b-4a3c-8f1d-2f8d61c1c0a4"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "/items/{id}", "Not Found")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.reqTotal), "one series per route, not per id")
}

func TestMetricsCountLoginsAndMovements(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.EnableMetrics = true })

	w := do(t, s, "POST", "/auth/token", "", models.TokenRequest{Email: store.SeedUserEmail, Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	token := signIn(t, s, store.SeedUserEmail, store.SeedUserPassword)

	it := findItem(t, s, token, "ISIADJDMX-006")
	for _, req := range []models.CreateMovementRequest{
		{ItemID: it.ID, Type: models.MovementIn, Quantity: 4},
		{ItemID: it.ID, Type: models.MovementOut, Quantity: 2},
		{ItemID: it.ID, Type: models.MovementIn, Quantity: 1},
		{ItemID: it.ID, Type: models.MovementOut, Quantity: 100},
	} {
		do(t, s, "POST", "/movements", token, req)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.logins.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.movements.WithLabelValues("in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.movements.WithLabelValues("out")), "rejected movements are not counted")
	assert.Equal(t, 5.0, testutil.ToFloat64(s.Metrics.units.WithLabelValues("in")))

	w = do(t, s, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `envanter_movement_units_total{type="out"} 2`)
	assert.Contains(t, w.Body.String(), `path="/movements"`)
}

func TestStatusRecorderHijack(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), code: http.StatusOK}
	_, _, err := rec.Hijack()
	assert.Error(t, err, "httptest.ResponseRecorder cannot be hijacked")
}
