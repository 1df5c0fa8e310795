package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/ember/internal/api/handler"
	"github.com/albapepper/ember/internal/checkin"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/metrics"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
// rec may be nil, in which case /metrics is not mounted.
func NewRouter(svc *checkin.Service, store handler.Store, rec *metrics.Recorder, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Request-Id", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// --- Handler dependencies ---
	h := handler.New(svc, store, cfg, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks and metrics are not rate limited.
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/store", h.HealthCheckStore)
	})
	if rec != nil {
		r.Method(http.MethodGet, "/metrics", rec.Handler())
	}

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	r.Group(func(r chi.Router) {
		if cfg.RateLimitEnabled {
			r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		// Ingest
		r.Post("/sync", h.Sync)
		r.Post("/webhook/inbound", h.InboundReply)
		r.Post("/webhook/telegram", h.TelegramUpdate)

		// API v1 routes
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/users/{identity}/state", h.GetState)
			r.Get("/users/{identity}/baseline", h.GetBaseline)
		})
	})

	return r
}
