package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/guardlog/guardlog/internal/model"
)

// Common errors for journal repository operations.
var (
	ErrEntryNotFound = errors.New("journal entry not found")
	ErrEntryExists   = errors.New("journal entry already exists for this date")
)

const journalColumns = `
	id, identifier, surname, to_char(entry_date, 'YYYY-MM-DD'),
	rounds, events, created_at, updated_at
`

// CreateEntry inserts a new journal entry. Returns ErrEntryExists if the
// owner already has an entry for that date.
func (r *Repository) CreateEntry(ctx context.Context, entry *model.JournalEntry) error {
	events, err := encodeEvents(entry.Events)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO journal_entries (id, identifier, surname, entry_date, rounds, events, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6::jsonb, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.Identifier,
		entry.Surname,
		entry.Date,
		pq.Array(nonNilRounds(entry.Rounds)),
		events,
		entry.CreatedAt,
		entry.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("failed to create journal entry: %w", err)
	}

	return nil
}

// GetEntry retrieves the entry for (identifier, date).
func (r *Repository) GetEntry(ctx context.Context, identifier int64, date string) (*model.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE identifier = $1 AND entry_date = $2::date
	`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, identifier, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	return entry, nil
}

// UpdateEntry overwrites the given fields of the entry identified by
// entry.ID. With no fields, both rounds and events are written.
func (r *Repository) UpdateEntry(ctx context.Context, entry *model.JournalEntry, fields ...model.Field) error {
	if len(fields) == 0 {
		fields = []model.Field{model.FieldRounds, model.FieldEvents}
	}

	sets := []string{"updated_at = $2"}
	args := []any{entry.ID, entry.UpdatedAt}

	for _, f := range fields {
		switch f {
		case model.FieldRounds:
			args = append(args, pq.Array(nonNilRounds(entry.Rounds)))
			sets = append(sets, fmt.Sprintf("rounds = $%d", len(args)))
		case model.FieldEvents:
			events, err := encodeEvents(entry.Events)
			if err != nil {
				return err
			}
			args = append(args, events)
			sets = append(sets, fmt.Sprintf("events = $%d::jsonb", len(args)))
		default:
			return fmt.Errorf("unknown journal field %q", f)
		}
	}

	query := `UPDATE journal_entries SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update journal entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}

	return nil
}

// DeleteEntry removes the entry for (identifier, date) and reports how many
// rows were removed. Zero rows is not an error.
func (r *Repository) DeleteEntry(ctx context.Context, identifier int64, date string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM journal_entries WHERE identifier = $1 AND entry_date = $2::date`,
		identifier, date,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete journal entry: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListEntriesByUser returns the owner's entries, newest date first.
func (r *Repository) ListEntriesByUser(ctx context.Context, identifier int64, limit int) ([]*model.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE identifier = $1
		ORDER BY entry_date DESC, created_at DESC
		LIMIT $2
	`

	return r.queryEntries(ctx, query, identifier, limit)
}

// ListRecentEntries returns the most recent entries across all users,
// newest date first.
func (r *Repository) ListRecentEntries(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM journal_entries
		ORDER BY entry_date DESC, created_at DESC
		LIMIT $1
	`

	return r.queryEntries(ctx, query, limit)
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]*model.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.JournalEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}

	return entries, nil
}

// scanEntry scans a single row into a JournalEntry. Rounds are scanned into
// the []string directly: pgx reads text[] in binary format, which
// pq.StringArray cannot parse. pq.Array is used for writes only.
func scanEntry(row pgx.Row) (*model.JournalEntry, error) {
	var (
		entry  model.JournalEntry
		events []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.Identifier,
		&entry.Surname,
		&entry.Date,
		&entry.Rounds,
		&events,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(events, &entry.Events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	entry.Rounds = nonNilRounds(entry.Rounds)
	if entry.Events == nil {
		entry.Events = []model.Event{}
	}

	return &entry, nil
}

func encodeEvents(events []model.Event) (string, error) {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to encode events: %w", err)
	}
	return string(data), nil
}

func nonNilRounds(rounds []string) []string {
	if rounds == nil {
		return []string{}
	}
	return rounds
}
