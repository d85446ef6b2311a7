// Package main is the entrypoint for the creative optimizer API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/cache"
	"github.com/klbk90/creative-optimizer-sub001/internal/config"
	"github.com/klbk90/creative-optimizer-sub001/internal/events"
	"github.com/klbk90/creative-optimizer-sub001/internal/geoip"
	"github.com/klbk90/creative-optimizer-sub001/internal/handler"
	"github.com/klbk90/creative-optimizer-sub001/internal/metrics"
	"github.com/klbk90/creative-optimizer-sub001/internal/render"
	"github.com/klbk90/creative-optimizer-sub001/internal/repository"
	"github.com/klbk90/creative-optimizer-sub001/internal/server"
	"github.com/klbk90/creative-optimizer-sub001/internal/service"
	"github.com/klbk90/creative-optimizer-sub001/internal/tracing"
	"github.com/klbk90/creative-optimizer-sub001/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint, cfg.TraceSampleRatio, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdle,
	})
	if err != nil {
		repo.Close()
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	var geo geoip.Resolver = geoip.Noop{}
	var geoDB *geoip.MaxMind
	if cfg.GeoIPDBPath != "" {
		geoDB, err = geoip.Open(cfg.GeoIPDBPath, cfg.GeoIPTimeout, logger)
		if err != nil {
			logger.Warn("geoip disabled", "path", cfg.GeoIPDBPath, "error", err)
		} else {
			geo = geoDB
		}
	}

	recorder := metrics.NewPrometheus()
	dispatcher := events.NewDispatcher(newPublisher(cfg, cacheClient, logger), cfg.EventPublishTimeout, cfg.EventMaxInFlight, logger, recorder)

	renderer, err := render.New()
	if err != nil {
		logger.Error("failed to load landing templates", "error", err)
		os.Exit(1)
	}

	attribution := service.NewAttributionService(repo, geo, dispatcher, service.AttributionConfig{
		LandingBaseURL: cfg.LandingLinkBase(),
		BotUsername:    cfg.BotUsername,
	}, logger, recorder)
	landings := service.NewLandingService(repo, renderer, geo, dispatcher, cfg.BotUsername, logger, recorder)
	catalog := service.NewCatalogService(repo, logger)

	router := server.NewRouter(server.RouterConfig{
		Logger:           logger,
		Recorder:         recorder,
		Authenticator:    auth.NewAuthenticator(repo, cacheClient, logger),
		Limiter:          cacheClient,
		IsDevelopment:    cfg.IsDevelopment(),
		AllowedOrigins:   cfg.GetCORSAllowedOrigins(),
		MaxBodySize:      cfg.MaxRequestBodySize,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		Metrics:          recorder.Handler(),
	}, server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"database": repo,
			"redis":    cacheClient,
		}),
		UTM:     handler.NewUTMHandler(attribution, logger),
		Webhook: handler.NewWebhookHandler(attribution, webhook.NewVerifier(cfg.WebhookSecret, cfg.WebhookTolerance), logger),
		Landing: handler.NewLandingHandler(landings, logger),
		Catalog: handler.NewCatalogHandler(catalog, logger),
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Stopped in reverse order.
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
	if geoDB != nil {
		srv.OnShutdown("geoip", func(context.Context) error { return geoDB.Close() })
	}
	srv.OnShutdown("tracing", server.ShutdownFunc(shutdownTracing))
	srv.OnShutdown("events", func(context.Context) error { return dispatcher.Close() })

	logger.Info("starting server",
		"port", cfg.AppPort,
		"public_base_url", cfg.PublicBaseURL,
		"landing_base_url", cfg.LandingLinkBase(),
		"env", cfg.AppEnv,
		"webhook_signing", cfg.WebhookSecret != "",
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newPublisher selects the event backend: Kafka, then a Redis stream,
// otherwise events are dropped.
func newPublisher(cfg *config.Config, cacheClient *cache.Cache, logger *slog.Logger) events.Publisher {
	switch {
	case cfg.KafkaBrokers != "":
		logger.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case cfg.EventsRedisStream != "":
		logger.Info("publishing events to redis stream", "stream", cfg.EventsRedisStream)
		return events.NewStreamPublisher(cacheClient.Client(), cfg.EventsRedisStream)
	default:
		logger.Info("event publishing disabled")
		return events.Noop{}
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError replaces connection secrets inside err's message.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
