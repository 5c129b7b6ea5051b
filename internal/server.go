package internal

import (
	"context"
	"embed"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"envanter/internal/auth"
	"envanter/internal/config"
	"envanter/internal/events"
	"envanter/internal/handlers"
	"envanter/internal/models"
	"envanter/internal/store"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Store      store.Store
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Auth       *auth.Service
	Events     *events.Hub
	Metrics    *Metrics
	Logger     *slog.Logger

	cfg     *config.Config
	cron    *cron.Cron
	limiter *loginLimiter
}

// NewServer wires the HTTP API on top of st. The caller owns st until Close.
func NewServer(st store.Store, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, err
	}

	hub := events.NewHub(logger)
	s := &Server{
		Store:      st,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Auth:       auth.NewService(st, jwtManager, hub, logger),
		Events:     hub,
		Metrics:    NewMetrics(),
		Logger:     logger,
		cfg:        cfg,
		limiter:    newLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
	}

	if err := s.startCron(); err != nil {
		hub.Close()
		return nil, err
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "apikey"},
			ExposedHeaders:   []string{"X-Token-Expires-At", "X-Token-Expires-In", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Public routes
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	s.Router.Group(func(r chi.Router) {
		r.Use(s.requireAnonKey)
		r.With(s.limiter.Middleware).Post("/auth/token", s.signIn)
		r.Post("/rpc/lookup_email", s.lookupEmail)
	})
	if cfg.EnableSwagger {
		s.mountDocs(s.Router)
	}

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager, s.Auth))
		if cfg.RLSEnabled {
			if binder, ok := st.(store.SessionBinder); ok {
				r.Use(withRLSSession(binder))
			} else {
				logger.Warn("RLS requested but the store cannot scope sessions", "store", cfg.Store)
			}
		}
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// startCron schedules the expired-session purge.
func (s *Server) startCron() error {
	if s.cfg.SessionPurgeSchedule == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.SessionPurgeSchedule, func() {
		if _, err := s.Auth.PurgeExpired(context.Background()); err != nil {
			s.Logger.Error("session purge failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Close stops background work, disconnects event subscribers and closes the
// store.
func (s *Server) Close(ctx context.Context) error {
	if s.cron != nil {
		stopped := s.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}
	s.Events.Close()
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.Logger.Error("store ping failed", "error", err)
		http.Error(w, "db: unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// requireAnonKey checks the apikey header on public auth calls when an anon
// key is configured.
func (s *Server) requireAnonKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AnonKey != "" && r.Header.Get("apikey") != s.cfg.AnonKey {
			auth.SendErrorResponse(w, "Invalid API key", "INVALID_API_KEY", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mountDocs serves the OpenAPI document and Swagger UI
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(swaggerPage))
	})
}

const swaggerPage = `<!doctype html>
<html lang="tr">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Envanter API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
    <style>
        body { margin: 0; background: #f7f7f7; }
        .swagger-ui .topbar { background: #1f2937; border-bottom: 3px solid #3b82f6; }
        .swagger-ui .topbar .download-url-wrapper { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.presets.standalone],
                plugins: [SwaggerUIBundle.plugins.DownloadUrl],
                layout: "StandaloneLayout",
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`

// mountProtectedRoutes mounts all protected routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	admin := auth.MustRole(models.RoleAdmin)

	// Session
	r.Get("/auth/user", s.sessionUser)
	r.Post("/auth/logout", s.signOut)
	r.Get("/auth/events", s.authEvents)
	r.Get("/profiles/{id}", s.getProfile)

	// Items - anyone signed in may add and edit, only admins delete
	r.Get("/items", s.listItems)
	r.Get("/items/{id}", s.getItem)
	r.Post("/items", s.createItem)
	r.Patch("/items/{id}", s.updateItem)
	r.Put("/items/{id}", s.updateItem)
	r.With(admin).Delete("/items/{id}", s.deleteItem)

	// Movements
	r.Get("/movements", s.listMovements)
	r.Post("/movements", s.createMovement)
	r.Delete("/movements/{id}", s.deleteMovement)

	// Reference data - admins maintain it
	r.Get("/categories", s.listCategories)
	r.With(admin).Post("/categories", s.createCategory)
	r.With(admin).Delete("/categories/{id}", s.deleteCategory)
	r.Get("/locations", s.listLocations)
	r.With(admin).Post("/locations", s.createLocation)
	r.With(admin).Delete("/locations/{id}", s.deleteLocation)

	// Excel import
	importsHandler := handlers.NewImportsHandler(s.Store, s.Logger)
	r.With(admin).Post("/imports/excel", importsHandler.UploadExcel)

	// User management
	r.Get("/users", s.listUsers)
	r.With(admin).Post("/users", s.createUser)
	r.With(admin).Patch("/users/{id}", s.updateUser)
}
