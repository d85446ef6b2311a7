package auth

import (
	"context"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

type contextKey struct{}

// WithAuth adds the authenticated caller to ctx.
func WithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the authenticated caller, or nil.
func FromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return ac
}

// UserID returns the owner id of the authenticated caller, or "".
func UserID(ctx context.Context) string {
	if ac := FromContext(ctx); ac != nil {
		return ac.UserID
	}
	return ""
}
