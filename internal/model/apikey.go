// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// API key scopes.
const (
	ScopeRead  = "read"  // list sources, conversions, landings
	ScopeWrite = "write" // generate links, manage landings and catalog
	ScopeTrack = "track" // record conversions server-to-server
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeTrack, ScopeAdmin}

// IsValidScope reports whether s is a known scope.
func IsValidScope(s string) bool {
	return slices.Contains(ValidScopes, s)
}

// APIKey is a hashed credential owned by a user. The plaintext is shown once
// at creation and never stored.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// AuthContext is what the auth middleware injects into the request context.
// UserID is the owner every authenticated query is scoped to.
type AuthContext struct {
	KeyID     string   `json:"key_id"`
	KeyPrefix string   `json:"key_prefix"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
}

// HasScope checks if the auth context has a specific scope.
// Admin implies every other scope.
func (a *AuthContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
