package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"envanter/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishRoutesByUserAndSession(t *testing.T) {
	h := NewHub(nil)
	a1 := h.Subscribe("alice", "s1")
	a2 := h.Subscribe("alice", "s2")
	b := h.Subscribe("bob", "s3")
	defer a1.Close()
	defer a2.Close()
	defer b.Close()

	h.Publish(models.AuthEvent{Type: models.AuthUserUpdated, UserID: "alice"})
	h.Publish(models.AuthEvent{Type: models.AuthSignedOut, UserID: "alice", SessionID: "s2"})

	assert.Equal(t, models.AuthUserUpdated, (<-a1.C).Type)
	assert.Equal(t, models.AuthUserUpdated, (<-a2.C).Type)
	assert.Equal(t, models.AuthSignedOut, (<-a2.C).Type)
	assert.Empty(t, a1.C)
	assert.Empty(t, b.C)
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe("alice", "s1")
	assert.Equal(t, 1, h.Count("alice"))

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Count("alice"))
	_, ok := <-s.C
	assert.False(t, ok)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe("alice", "s1")
	h.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	late := h.Subscribe("alice", "s2")
	_, ok = <-late.C
	assert.False(t, ok)
	late.Close()
}

func TestPublishDropsWhenFull(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe("alice", "s1")
	defer s.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(models.AuthEvent{Type: models.AuthUserUpdated, UserID: "alice"})
	}
	assert.Len(t, s.C, subscriberBuffer)
}

func TestServeWSStreamsEvents(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "alice", "s1")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Count("alice") == 1 }, time.Second, 10*time.Millisecond)

	h.Publish(models.AuthEvent{Type: models.AuthSignedOut, UserID: "alice", SessionID: "s1"})

	var ev models.AuthEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.AuthSignedOut, ev.Type)

	h.Close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.Count("alice") == 0 }, time.Second, 10*time.Millisecond)
}
