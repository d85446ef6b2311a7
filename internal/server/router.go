package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klbk90/creative-optimizer-sub001/internal/handler"
	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Health  *handler.HealthHandler
	UTM     *handler.UTMHandler
	Webhook *handler.WebhookHandler
	Landing *handler.LandingHandler
	Catalog *handler.CatalogHandler
}

// RouterConfig holds the middleware configuration for NewRouter.
type RouterConfig struct {
	Logger        *slog.Logger
	Recorder      metrics.Recorder
	Authenticator middleware.Authenticator
	Limiter       middleware.Limiter

	// AuthMinDuration is the response floor for failed authentication.
	AuthMinDuration time.Duration

	IsDevelopment  bool
	AllowedOrigins []string
	MaxBodySize    int64

	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewNoop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Trace)
	r.Use(middleware.Logger(cfg.Logger, cfg.Recorder))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.IsDevelopment))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	rl := middleware.RateLimitConfig{
		Logger:  cfg.Logger,
		Limiter: cfg.Limiter,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	}
	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:        cfg.Logger,
		Authenticator: cfg.Authenticator,
		MinDuration:   cfg.AuthMinDuration,
	})

	r.With(middleware.RateLimitIP(rl, "redirect")).Get("/r/{utm_id}", h.UTM.Redirect)

	r.Route("/utm", func(r chi.Router) {
		// Public tracking
		r.With(middleware.RateLimitIP(rl, "click")).Post("/track/click", h.UTM.TrackClick)
		r.With(middleware.RateLimitIP(rl, "webhook")).Post("/webhook/conversion", h.Webhook.Conversion)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(middleware.RequireWrite()).Post("/generate", h.UTM.Generate)
			r.With(middleware.RequireTrack()).Post("/track/conversion", h.UTM.TrackConversion)
			r.With(middleware.RequireRead()).Get("/sources", h.UTM.ListSources)
			r.With(middleware.RequireRead()).Get("/sources/{utm_id}", h.UTM.GetSource)
			r.With(middleware.RequireRead()).Get("/conversions", h.UTM.ListConversions)
		})
	})

	r.Route("/landings", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(middleware.RequireRead()).Get("/", h.Landing.List)
			r.With(middleware.RequireRead()).Get("/preview/{id}", h.Landing.Preview)
			r.With(middleware.RequireWrite()).Post("/create", h.Landing.Create)
			r.With(middleware.RequireWrite()).Post("/deploy", h.Landing.Deploy)
			r.With(middleware.RequireWrite()).Put("/{id}", h.Landing.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", h.Landing.Delete)
			r.With(middleware.RequireWrite()).Post("/{id}/status", h.Landing.SetStatus)
		})

		// Public page, same path shape as the management routes above.
		r.With(middleware.RateLimitIP(rl, "landing")).Get("/{slug_or_id}", h.Landing.Render)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Route("/creatives", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.Catalog.ListCreatives)
			r.With(middleware.RequireRead()).Get("/{id}", h.Catalog.GetCreative)
			r.With(middleware.RequireWrite()).Post("/", h.Catalog.CreateCreative)
			r.With(middleware.RequireWrite()).Delete("/{id}", h.Catalog.ArchiveCreative)
		})

		r.Route("/influencers", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.Catalog.ListInfluencers)
			r.With(middleware.RequireWrite()).Post("/", h.Catalog.CreateInfluencer)
			r.With(middleware.RequireWrite()).Patch("/{id}/status", h.Catalog.UpdateInfluencerStatus)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
