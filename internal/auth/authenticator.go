package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klbk90/creative-optimizer-sub001/internal/model"
)

// ErrUnauthenticated is returned for any credential that does not resolve
// to an active key. The reason is logged, never returned to callers.
var ErrUnauthenticated = errors.New("invalid or missing API key")

// KeyStore is the persistence the Authenticator needs.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// ContextCache caches resolved auth contexts by CacheKey.
type ContextCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, ac *model.AuthContext) error
}

// Authenticator resolves plaintext API keys to an AuthContext.
type Authenticator struct {
	keys   KeyStore
	cache  ContextCache
	logger *slog.Logger
}

// NewAuthenticator creates an Authenticator. cache may be nil.
func NewAuthenticator(keys KeyStore, cache ContextCache, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{keys: keys, cache: cache, logger: logger.With("component", "auth")}
}

// Authenticate verifies plaintext and returns the caller identity.
// The second return value reports whether the result came from cache.
func (a *Authenticator) Authenticate(ctx context.Context, plaintext string) (*model.AuthContext, bool, error) {
	parsed, err := ParseKey(plaintext)
	if err != nil {
		return nil, false, ErrUnauthenticated
	}

	cacheKey := CacheKey(plaintext)
	if a.cache != nil {
		cached, err := a.cache.GetAuthContext(ctx, cacheKey)
		if err != nil {
			a.logger.Warn("auth cache read failed", "error", err)
		}
		if cached != nil {
			return cached, true, nil
		}
	}

	candidates, err := a.keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, false, fmt.Errorf("lookup api keys: %w", err)
	}

	// Several keys may share a prefix; the hash decides.
	var matched *model.APIKey
	for _, k := range candidates {
		ok, err := Verify(plaintext, k.KeyHash)
		if err != nil {
			a.logger.Warn("stored key hash unreadable", "key_id", k.ID, "error", err)
			continue
		}
		if ok {
			matched = k
			break
		}
	}
	if matched == nil || matched.IsRevoked() {
		return nil, false, ErrUnauthenticated
	}

	ac := &model.AuthContext{
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		UserID:    matched.UserID,
		Scopes:    matched.Scopes,
	}

	if a.cache != nil {
		if err := a.cache.SetAuthContext(ctx, cacheKey, ac); err != nil {
			a.logger.Warn("auth cache write failed", "error", err)
		}
	}

	// Detached from the request so it survives the response.
	go func(id string) {
		if err := a.keys.UpdateAPIKeyLastUsed(context.WithoutCancel(ctx), id); err != nil {
			a.logger.Warn("update last_used_at failed", "key_id", id, "error", err)
		}
	}(matched.ID)

	return ac, false, nil
}

// IssuedKey is a freshly generated key with its storage hash.
type IssuedKey struct {
	Plaintext string
	Prefix    string
	Hash      string
}

// Issue generates a new key for env and hashes it with p.
func Issue(env string, p Params) (*IssuedKey, error) {
	key, err := NewKey(env)
	if err != nil {
		return nil, err
	}
	plaintext := key.String()
	hash, err := p.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}
	return &IssuedKey{Plaintext: plaintext, Prefix: key.Prefix, Hash: hash}, nil
}
