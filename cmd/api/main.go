package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"envanter/internal"
	"envanter/internal/config"
	"envanter/internal/store"
)

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Store error: %v", err)
	}

	if cfg.SeedDemo {
		if err := store.Seed(ctx, st); err != nil {
			log.Fatalf("Seeding demo data: %v", err)
		}
		log.Println("Demo data seeded (admin / admin123)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	srv, err := internal.NewServer(st, cfg, logger)
	if err != nil {
		st.Close()
		log.Fatalf("Server error: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Println("Starting envanter API server...")
	log.Printf("Store: %s", cfg.Store)
	log.Printf("JWT Issuer: %s", cfg.JWTIssuer)
	log.Printf("JWT Audience: %s", cfg.JWTAudience)
	log.Printf("JWT Expiry: %v", cfg.JWTExpiry)
	log.Printf("Listening on :%s", cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := srv.Close(shutdownCtx); err != nil {
		log.Printf("Server close: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(pg.DB); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
