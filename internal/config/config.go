// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	AppPort     int    `env:"APP_PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"creative-optimizer"`

	DatabaseURL   string `env:"DATABASE_URL,required"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"50"`
	RedisMinIdle  int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"10"`

	// PublicBaseURL is where this service is reachable from the internet.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	// LandingBaseURL prefixes landing-type tracking links. Defaults to
	// {PUBLIC_BASE_URL}/r.
	LandingBaseURL string `env:"LANDING_BASE_URL"`
	BotUsername    string `env:"BOT_USERNAME"`

	GeoIPDBPath  string        `env:"GEOIP_DB_PATH"`
	GeoIPTimeout time.Duration `env:"GEOIP_TIMEOUT" envDefault:"1s"`

	// WebhookSecret enables HMAC verification of conversion webhooks.
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`

	// Event stream. Kafka is used when brokers are set, otherwise a Redis
	// stream when EVENTS_REDIS_STREAM is set; events are dropped otherwise.
	KafkaBrokers        string        `env:"KAFKA_BROKERS"`
	KafkaTopic          string        `env:"KAFKA_TOPIC" envDefault:"attribution-events"`
	EventsRedisStream   string        `env:"EVENTS_REDIS_STREAM"`
	EventPublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" envDefault:"2s"`
	EventMaxInFlight    int           `env:"EVENT_MAX_IN_FLIGHT" envDefault:"256"`

	JaegerEndpoint   string  `env:"JAEGER_ENDPOINT"`
	TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Per-IP rate limit on public tracking endpoints.
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Comma-separated list of allowed origins for the management API.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// LandingLinkBase returns the prefix for landing-type links.
func (c *Config) LandingLinkBase() string {
	if c.LandingBaseURL != "" {
		return strings.TrimSuffix(c.LandingBaseURL, "/")
	}
	return strings.TrimSuffix(c.PublicBaseURL, "/") + "/r"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TraceSampleRatio < 0 || cfg.TraceSampleRatio > 1 {
		return nil, fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1, got %v", cfg.TraceSampleRatio)
	}
	return cfg, nil
}
