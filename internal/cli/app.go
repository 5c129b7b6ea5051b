package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/internal/config"
	"envanter/internal/identity"
	"envanter/internal/inventory"
	"envanter/internal/localstore"
	"envanter/internal/remote/httpclient"
)

// app holds what one command invocation needs. Everything past the flags is
// built by open and released by close.
type app struct {
	output  string
	offline bool
	verbose bool

	cfg    *config.ClientConfig
	out    io.Writer
	in     io.Reader
	logger *slog.Logger

	state  *localstore.Store
	client *httpclient.Client
	holder *identity.Holder
	cache  *inventory.Cache
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) open() error {
	st, err := localstore.Open(a.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	a.state = st

	var h *identity.Holder
	a.client = httpclient.New(a.cfg.APIURL,
		httpclient.WithAnonKey(a.cfg.AnonKey),
		httpclient.WithTimeout(a.cfg.Timeout),
		httpclient.WithTokenSource(func() string { return h.AccessToken() }),
		httpclient.WithLogger(a.logger),
	)
	h = identity.New(a.client, a.client, st, identity.WithLogger(a.logger))
	a.holder = h
	a.cache = inventory.New(a.client,
		inventory.WithSnapshots(st),
		inventory.WithActor(h.UserID),
		inventory.WithLogger(a.logger),
	)
	return nil
}

func (a *app) close() {
	if a.state != nil {
		if err := a.state.Close(); err != nil {
			a.logger.Warn("close local state", "error", err)
		}
		a.state = nil
	}
}

// run wraps a command body with open/close of the app.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(); err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), cmd, args)
	}
}

var errNoSession = &apperr.Error{
	Kind:    apperr.KindCredentials,
	Op:      "cli",
	Message: "Oturum açık değil, önce 'envanter login' çalıştırın",
	Err:     errors.New("no active session"),
}

var errOffline = &apperr.Error{
	Kind:    apperr.KindValidation,
	Op:      "cli",
	Message: "Çevrimdışı modda değişiklik yapılamaz",
	Err:     errors.New("offline mode is read-only"),
}

// session restores the persisted session. Offline it is skipped; the
// snapshot is readable without one.
func (a *app) session(ctx context.Context) error {
	if a.offline {
		return nil
	}
	if err := a.holder.Init(ctx); err != nil {
		return err
	}
	if !a.holder.IsAuthenticated() {
		return errNoSession
	}
	return nil
}

// load fills the cache from the API, or from the snapshot when offline.
func (a *app) load(ctx context.Context) error {
	if err := a.session(ctx); err != nil {
		return err
	}
	if !a.offline {
		return a.cache.LoadAll(ctx)
	}
	ok, err := a.cache.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &apperr.Error{
			Kind:    apperr.KindNotFound,
			Op:      "cli",
			Message: "Kayıtlı çevrimdışı veri yok, önce çevrimiçi bir liste komutu çalıştırın",
			Err:     errors.New("no inventory snapshot"),
		}
	}
	if a.output != "json" {
		fmt.Fprintf(a.out, "# çevrimdışı veri: %s\n", a.cache.LoadedAt().Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// mutable loads the cache for a change. Changes always go to the API.
func (a *app) mutable(ctx context.Context) error {
	if a.offline {
		return errOffline
	}
	return a.load(ctx)
}
