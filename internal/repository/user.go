package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/guardlog/guardlog/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("user already exists")
	ErrUserCapReached = errors.New("user cap reached")
)

// userCapLockID serializes registrations so the cap check and the insert
// see the same row count.
const userCapLockID int64 = 7340001

// CreateUserCapped inserts a user only while fewer than maxUsers rows exist.
func (r *Repository) CreateUserCapped(ctx context.Context, user *model.User, maxUsers int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin user insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userCapLockID); err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}

	query := `
		INSERT INTO users (identifier, surname, created_at)
		SELECT $1, $2, $3
		WHERE (SELECT COUNT(*) FROM users) < $4
	`

	result, err := tx.Exec(ctx, query,
		user.Identifier,
		user.Surname,
		user.CreatedAt,
		maxUsers,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserCapReached
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user insert: %w", err)
	}

	return nil
}

// GetUser retrieves a user by Telegram identifier.
func (r *Repository) GetUser(ctx context.Context, identifier int64) (*model.User, error) {
	query := `
		SELECT identifier, surname, created_at
		FROM users
		WHERE identifier = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, identifier).Scan(
		&user.Identifier,
		&user.Surname,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUserSurname changes a user's surname. Existing journal rows keep
// the surname they were written with.
func (r *Repository) UpdateUserSurname(ctx context.Context, identifier int64, surname string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET surname = $2 WHERE identifier = $1`,
		identifier, surname,
	)
	if err != nil {
		return fmt.Errorf("failed to update user surname: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// CountUsers returns the number of registered users.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
