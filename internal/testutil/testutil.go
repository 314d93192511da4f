package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/migrations"
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

const advisoryLockID int64 = 420420

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

// ResetSchema rolls every migration back and applies them again, leaving
// empty tables behind.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return migrations.Reset(ctx, db)
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults.
func NewTestUser(t testing.TB, identifier int64) *model.User {
	t.Helper()
	return &model.User{
		Identifier: identifier,
		Surname:    fmt.Sprintf("Guard%d", identifier),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestEntry creates a journal entry for the user on the given date.
func NewTestEntry(t testing.TB, user *model.User, date string) *model.JournalEntry {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.JournalEntry{
		ID:         UniqueID("entry"),
		Identifier: user.Identifier,
		Surname:    user.Surname,
		Date:       date,
		Rounds:     []string{"10:10-10:20", "12:25-12:35"},
		Events:     []model.Event{{Time: "11:00", Description: "Проверка ворот"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
