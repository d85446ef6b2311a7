package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// minAuthDuration is the minimum time spent on a failed authentication so
// that outcomes cannot be distinguished by latency.
const minAuthDuration = 200 * time.Millisecond

// Authenticator resolves a plaintext API key.
type Authenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*model.AuthContext, bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator

	// MinDuration overrides minAuthDuration; tests set it to a small value.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests and injects
// the caller's auth context. The key owner becomes the owner of every
// resource the request touches.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	floor := cfg.MinDuration
	if floor == 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fail := func(reason string, err error) {
				attrs := []any{
					slog.String("reason", reason),
					slog.String("ip", ClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if err != nil {
					cfg.Logger.Error("authentication error", append(attrs, slog.String("error", err.Error()))...)
				} else {
					cfg.Logger.Warn("authentication failed", attrs...)
				}
				if elapsed := time.Since(start); elapsed < floor {
					time.Sleep(floor - elapsed)
				}
				writeAuthError(w)
			}

			key := extractAPIKey(r)
			if key == "" {
				fail("missing_key", nil)
				return
			}

			authCtx, cacheHit, err := cfg.Authenticator.Authenticate(r.Context(), key)
			if errors.Is(err, auth.ErrUnauthenticated) {
				fail("invalid_key", nil)
				return
			}
			if err != nil {
				fail("lookup_failed", err)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), authCtx)))
		})
	}
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeAuthError uses one message for every failure to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing API key")
}
