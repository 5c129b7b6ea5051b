// Package identity holds the one authenticated identity of a client.
//
// Authentication is delegated to remote.Auth: the holder never sees a
// password hash and never compares credentials. It keeps the access token,
// persists it under localstore.KeyAuthToken and exposes the signed-in
// profile to the rest of the client.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"envanter/internal/apperr"
	"envanter/internal/auth"
	"envanter/internal/localstore"
	"envanter/internal/models"
	"envanter/internal/remote"
)

// State is where the holder is in the sign-in lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "unauthenticated"
}

// SessionStorage is durable client storage keyed by fixed strings.
// *localstore.Store implements it.
type SessionStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Change describes one state transition. Profile is set when the holder
// ends up Authenticated.
type Change struct {
	From    State
	To      State
	Profile *models.Profile
}

type listener struct {
	id int
	fn func(Change)
}

// Holder tracks at most one authenticated identity. Remote calls run outside
// the lock; their results are applied under it.
type Holder struct {
	auth    remote.Auth
	store   remote.Store
	storage SessionStorage
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	state     State
	profile   *models.Profile
	token     string
	listeners []listener
	nextID    int
}

// Option configures a Holder.
type Option func(*Holder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Holder) { h.logger = l }
}

// New returns an Unauthenticated holder. storage may be nil, in which case
// the token lives only in memory.
func New(auth remote.Auth, st remote.Store, storage SessionStorage, opts ...Option) *Holder {
	h := &Holder{
		auth:    auth,
		store:   st,
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnChange registers fn for every transition and returns a func that
// removes it. Listeners run synchronously, in registration order.
func (h *Holder) OnChange(fn func(Change)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l.id == id {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// Current returns the signed-in profile.
func (h *Holder) Current() (models.Profile, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != Authenticated || h.profile == nil {
		return models.Profile{}, false
	}
	return *h.profile, true
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Holder) IsAuthenticated() bool {
	return h.State() == Authenticated
}

func (h *Holder) IsAdmin() bool {
	p, ok := h.Current()
	return ok && p.IsAdmin()
}

// AccessToken returns the bearer token of the current session, or "".
// Suitable as an httpclient token source.
func (h *Holder) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// UserID returns the signed-in user's id, or "".
func (h *Holder) UserID() string {
	p, _ := h.Current()
	return p.ID
}

func (h *Holder) set(state State, profile *models.Profile, token string) {
	h.mu.Lock()
	from := h.state
	h.state, h.profile, h.token = state, profile, token
	ls := make([]listener, len(h.listeners))
	copy(ls, h.listeners)
	h.mu.Unlock()

	ch := Change{From: from, To: state}
	if profile != nil {
		p := *profile
		ch.Profile = &p
	}
	for _, l := range ls {
		l.fn(ch)
	}
}

// Login signs in with an email or a username. A username is resolved to its
// email through the lookup_email RPC; an unknown username fails exactly like
// a wrong password.
func (h *Holder) Login(ctx context.Context, identifier, credential string) (models.Profile, error) {
	const op = "identity.Login"

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || credential == "" {
		return models.Profile{}, apperr.New(apperr.KindCredentials, op, errors.New("identifier and credential are required"))
	}

	// A new login replaces whatever session was there, including one only
	// present in storage.
	_ = h.endSession(ctx)
	h.set(Authenticating, nil, "")

	email := identifier
	if !strings.Contains(identifier, "@") {
		var err error
		email, err = h.store.LookupEmail(ctx, identifier)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return h.failLogin(op, apperr.New(apperr.KindCredentials, op, err))
		}
		if err != nil {
			return h.failLogin(op, apperr.WithOp(op, err))
		}
	}

	sess, err := h.auth.SignIn(ctx, email, credential)
	if err != nil {
		return h.failLogin(op, apperr.WithOp(op, err))
	}

	// Row-level calls need the token before the profile can be read.
	h.mu.Lock()
	h.token = sess.AccessToken
	h.mu.Unlock()

	profile, err := h.store.GetProfile(ctx, sess.User.ID)
	if err != nil {
		if serr := h.auth.SignOut(ctx, sess.AccessToken); serr != nil {
			h.logger.Warn("sign out after failed profile fetch", "error", serr)
		}
		return h.failLogin(op, profileError(op, err))
	}

	if h.storage != nil {
		if err := h.storage.Set(ctx, localstore.KeyAuthToken, sess.AccessToken); err != nil {
			h.logger.Warn("persist session token", "error", err)
		}
	}
	h.set(Authenticated, profile, sess.AccessToken)
	h.logger.Info("signed in", "user_id", profile.ID, "role", profile.Role)
	return *profile, nil
}

func (h *Holder) failLogin(op string, err error) (models.Profile, error) {
	h.set(Unauthenticated, nil, "")
	h.logger.Warn("sign in failed", "op", op, "kind", apperr.KindOf(err), "error", err)
	return models.Profile{}, err
}

func profileError(op string, err error) error {
	return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Message: apperr.MsgProfileUnavailable, Err: err}
}

// Logout ends the remote session best-effort and always clears the local
// identity and the persisted token.
func (h *Holder) Logout(ctx context.Context) error {
	err := h.endSession(ctx)
	h.set(Unauthenticated, nil, "")
	return err
}

// endSession signs out the in-memory token, or failing that the persisted
// one, and deletes the persisted token. The remote sign-out is best-effort.
func (h *Holder) endSession(ctx context.Context) error {
	token := h.AccessToken()
	if token == "" && h.storage != nil {
		if stored, ok, err := h.storage.Get(ctx, localstore.KeyAuthToken); err == nil && ok {
			token = stored
		}
	}
	if token != "" {
		if err := h.auth.SignOut(ctx, token); err != nil {
			h.logger.Warn("remote sign out failed", "error", err)
		}
	}
	return h.dropPersisted(ctx)
}

func (h *Holder) dropPersisted(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	if err := h.storage.Delete(ctx, localstore.KeyAuthToken); err != nil {
		h.logger.Warn("clear persisted token", "error", err)
		return apperr.Transport("identity.Logout", err)
	}
	return nil
}

func (h *Holder) clear(ctx context.Context) error {
	h.set(Unauthenticated, nil, "")
	return h.dropPersisted(ctx)
}

// Init reconciles with the persisted session at startup.
func (h *Holder) Init(ctx context.Context) error {
	return h.Refresh(ctx)
}

// Refresh re-validates the current (or persisted) session and re-fetches
// the profile. Any failure leaves the holder Unauthenticated. A session that
// is gone is cleared from storage and is not an error. A failed remote call
// is returned and keeps the persisted token, so a later Refresh can restore
// the session once the backend is reachable.
func (h *Holder) Refresh(ctx context.Context) error {
	const op = "identity.Refresh"

	token := h.AccessToken()
	if token == "" && h.storage != nil {
		stored, ok, err := h.storage.Get(ctx, localstore.KeyAuthToken)
		if err != nil {
			h.logger.Warn("read persisted token", "error", err)
		}
		if ok {
			token = stored
		}
	}
	if token == "" {
		if h.State() != Unauthenticated {
			h.set(Unauthenticated, nil, "")
		}
		return nil
	}
	if h.expired(token) {
		h.logger.Info("persisted session expired")
		_ = h.clear(ctx)
		return nil
	}

	if h.State() == Unauthenticated {
		h.set(Authenticating, nil, token)
	}

	profile, err := h.reconcile(ctx, op, token)
	if err != nil {
		h.logger.Info("session not restored", "kind", apperr.KindOf(err), "error", err)
		if apperr.IsKind(err, apperr.KindTransport) {
			h.set(Unauthenticated, nil, "")
			return err
		}
		_ = h.clear(ctx)
		return nil
	}
	if h.storage != nil {
		if err := h.storage.Set(ctx, localstore.KeyAuthToken, token); err != nil {
			h.logger.Warn("persist session token", "error", err)
		}
	}
	h.set(Authenticated, profile, token)
	return nil
}

// reconcile asks the auth service who owns token and loads that profile.
func (h *Holder) reconcile(ctx context.Context, op, token string) (*models.Profile, error) {
	u, err := h.auth.GetUser(ctx, token)
	if err != nil {
		return nil, apperr.WithOp(op, err)
	}
	profile, err := h.store.GetProfile(ctx, u.ID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindTransport) {
			return nil, apperr.WithOp(op, err)
		}
		return nil, profileError(op, err)
	}
	return profile, nil
}

// expired reports whether token's exp claim has passed. A token without a
// readable expiry counts as expired.
func (h *Holder) expired(token string) bool {
	exp, err := auth.ExpiresAt(token)
	return err != nil || !h.now().Before(exp)
}

// Watch follows the auth change stream of the current session until ctx is
// cancelled, the stream ends, or the session is signed out. SIGNED_OUT
// clears the identity; USER_UPDATED re-reads the user and profile.
func (h *Holder) Watch(ctx context.Context) error {
	const op = "identity.Watch"

	token := h.AccessToken()
	if token == "" {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := h.auth.Subscribe(ctx, token)
	if err != nil {
		return apperr.WithOp(op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if h.AccessToken() != token {
				// A different session took over; this stream is stale.
				return nil
			}
			switch ev.Type {
			case models.AuthSignedOut:
				h.logger.Info("session signed out remotely", "user_id", ev.UserID)
				return h.clear(ctx)
			case models.AuthUserUpdated:
				profile, err := h.reconcile(ctx, op, token)
				if err != nil {
					h.logger.Info("identity dropped after update", "kind", apperr.KindOf(err), "error", err)
					return h.clear(ctx)
				}
				h.set(Authenticated, profile, token)
			}
		}
	}
}
