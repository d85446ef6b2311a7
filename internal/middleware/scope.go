package middleware

import (
	"net/http"

	"github.com/klbk90/creative-optimizer-sub001/internal/auth"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// RequireScope enforces scope requirements after Auth. Holding any one of
// the required scopes is sufficient; admin holds them all.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.FromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			for _, s := range required {
				if authCtx.HasScope(s) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions, required scope: "+required[0])
		})
	}
}

// RequireRead guards listing endpoints.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite guards link generation and landing/catalog management.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireTrack guards server-to-server conversion recording.
func RequireTrack() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeTrack, model.ScopeWrite)
}
