// Package events fans auth-state changes out to the sessions watching them.
package events

import (
	"log/slog"
	"sync"

	"envanter/internal/models"
)

const subscriberBuffer = 16

// Hub routes AuthEvents to subscriptions keyed by user and session.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{} // userID -> subscriptions
	closed bool
	logger *slog.Logger
}

// NewHub returns an empty hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), logger: logger}
}

// Subscription receives the events for one session on C. C is closed when
// the subscription or the hub is closed.
type Subscription struct {
	C <-chan models.AuthEvent

	ch        chan models.AuthEvent
	hub       *Hub
	userID    string
	sessionID string
	once      sync.Once
}

// Subscribe registers a session of userID.
func (h *Hub) Subscribe(userID, sessionID string) *Subscription {
	ch := make(chan models.AuthEvent, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, hub: h, userID: userID, sessionID: sessionID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][s] = struct{}{}
	return s
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		if set := s.hub.subs[s.userID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.userID)
			}
		}
		close(s.ch)
	})
}

// Publish delivers ev to the user's subscriptions, or only to the named
// session when ev.SessionID is set. A subscriber whose buffer is full misses
// the event.
func (h *Hub) Publish(ev models.AuthEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[ev.UserID] {
		if ev.SessionID != "" && ev.SessionID != s.sessionID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("auth event dropped", "user_id", ev.UserID, "type", ev.Type)
		}
	}
}

// Count returns how many subscriptions userID has.
func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for s := range set {
			s.closeLocked()
		}
	}
}
