// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klbk90/creative-optimizer-sub001/internal/model"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731052

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// Migrations returns the migration files with the given suffix
// ("up.sql" or "down.sql") in apply order. Down migrations are reversed.
func Migrations(suffix string) ([]string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(root, "migrations", "*."+suffix))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	if strings.HasPrefix(suffix, "down") {
		slices.Reverse(files)
	}
	return files, nil
}

// ResetSchema drops every table by applying all down migrations, then
// recreates the schema from the up migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, suffix := range []string{"down.sql", "up.sql"} {
		files, err := Migrations(suffix)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := ApplyMigration(ctx, pool, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyMigration executes a single migration file.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestTrafficSource creates a direct traffic source with zero counters.
func NewTestTrafficSource(t testing.TB, userID, utmID string) *model.TrafficSource {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.TrafficSource{
		ID:          ulid.Make().String(),
		UserID:      userID,
		UTMSource:   "tiktok",
		UTMMedium:   "video",
		UTMCampaign: "test_campaign",
		UTMID:       utmID,
		TargetURL:   "https://shop.example.com/product",
		LinkType:    model.LinkTypeDirect,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestLandingPage creates an active landing page.
func NewTestLandingPage(t testing.TB, userID string) *model.LandingPage {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.LandingPage{
		ID:          ulid.Make().String(),
		UserID:      userID,
		Name:        "Spring Promo",
		Template:    model.TemplateProductShowcase,
		Slug:        UniqueID("spring-promo"),
		Config:      map[string]any{"headline": "Spring Sale"},
		UTMSource:   "instagram",
		UTMMedium:   "story",
		UTMCampaign: "spring",
		Status:      model.LandingStatusActive,
		IsPublished: true,
		PublishedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestCreative creates an active video creative.
func NewTestCreative(t testing.TB, userID string) *model.Creative {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Creative{
		ID:           ulid.Make().String(),
		UserID:       userID,
		Name:         "Unboxing hook",
		CreativeType: model.CreativeVideo,
		Hook:         "You won't believe what's inside",
		Status:       model.CreativeStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	return &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    userID,
		KeyHash:   UniqueID("hash"),
		KeyPrefix: "abc123",
		Scopes:    []string{model.ScopeRead, model.ScopeWrite},
		Name:      "Test Key",
		CreatedAt: time.Now().UTC(),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
