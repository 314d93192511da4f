package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/guardlog/guardlog/internal/metrics"
	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/repository"
)

// JournalStore is the persistence contract for journal entries.
type JournalStore interface {
	GetEntry(ctx context.Context, identifier int64, date string) (*model.JournalEntry, error)
	CreateEntry(ctx context.Context, entry *model.JournalEntry) error
	UpdateEntry(ctx context.Context, entry *model.JournalEntry, fields ...model.Field) error
	DeleteEntry(ctx context.Context, identifier int64, date string) (int64, error)
	ListEntriesByUser(ctx context.Context, identifier int64, limit int) ([]*model.JournalEntry, error)
	ListRecentEntries(ctx context.Context, limit int) ([]*model.JournalEntry, error)
}

// FieldExtractor re-extracts a single journal field from free text.
type FieldExtractor interface {
	ExtractRounds(ctx context.Context, text string) ([]string, error)
	ExtractEvents(ctx context.Context, text string) ([]model.Event, error)
}

// RecentJournalCache caches read-API pages.
type RecentJournalCache interface {
	GetRecentJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error)
	SetRecentJournal(ctx context.Context, limit int, entries []*model.JournalEntry, ttl time.Duration) error
	InvalidateRecentJournal(ctx context.Context) error
}

// UpsertOutcome tells whether UpsertEntry inserted or replaced a row.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdated
)

// String returns a log-friendly name for the outcome.
func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	}
	return "unknown"
}

// EntryInput is one extracted submission. Rounds hold start times.
type EntryInput struct {
	Identifier int64
	Surname    string
	Date       string
	Rounds     []string
	Events     []model.Event
}

// JournalConfig tunes JournalService.
type JournalConfig struct {
	// ListLimit bounds /list and the range of 1-based entry indexes.
	ListLimit int
	// CacheTTL is how long a read-API page stays cached.
	CacheTTL time.Duration
}

// JournalService decides insert vs. replace vs. partial overwrite for a
// guard's daily entry.
type JournalService struct {
	store     JournalStore
	extractor FieldExtractor
	recent    RecentJournalCache
	metrics   metrics.Recorder
	cfg       JournalConfig
	now       func() time.Time
}

// NewJournalService creates a new JournalService. recent may be nil, in
// which case the read API always hits the store.
func NewJournalService(store JournalStore, extractor FieldExtractor, recent RecentJournalCache, recorder metrics.Recorder, cfg JournalConfig) *JournalService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 10
	}
	return &JournalService{
		store:     store,
		extractor: extractor,
		recent:    recent,
		metrics:   recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// UpsertEntry writes a submission for (identifier, date). A missing row is
// inserted; an existing row has its rounds and events replaced wholesale.
// A submission with neither rounds nor events is rejected with
// ErrNothingExtracted and nothing is written.
func (s *JournalService) UpsertEntry(ctx context.Context, in EntryInput) (*model.JournalEntry, UpsertOutcome, error) {
	rounds := NormalizeRounds(in.Rounds)
	events := nonNilEvents(in.Events)
	if len(rounds) == 0 && len(events) == 0 {
		return nil, 0, ErrNothingExtracted
	}

	existing, err := s.store.GetEntry(ctx, in.Identifier, in.Date)
	switch {
	case err == nil:
		entry, err := s.replace(ctx, existing, rounds, events)
		return entry, UpsertUpdated, err
	case !errors.Is(err, repository.ErrEntryNotFound):
		return nil, 0, fmt.Errorf("failed to look up entry: %w", err)
	}

	now := s.now().UTC()
	entry := &model.JournalEntry{
		ID:         ulid.Make().String(),
		Identifier: in.Identifier,
		Surname:    in.Surname,
		Date:       in.Date,
		Rounds:     rounds,
		Events:     events,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		if !errors.Is(err, repository.ErrEntryExists) {
			return nil, 0, fmt.Errorf("failed to create entry: %w", err)
		}
		// A concurrent submission for the same day won the insert.
		existing, err := s.store.GetEntry(ctx, in.Identifier, in.Date)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to look up entry: %w", err)
		}
		entry, err := s.replace(ctx, existing, rounds, events)
		return entry, UpsertUpdated, err
	}

	s.metrics.IncJournalCreated()
	s.invalidateRecent(ctx)

	return entry, UpsertCreated, nil
}

func (s *JournalService) replace(ctx context.Context, entry *model.JournalEntry, rounds []string, events []model.Event) (*model.JournalEntry, error) {
	entry.Rounds = rounds
	entry.Events = events
	if err := s.save(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyPartialEdit re-extracts only field from rawText and overwrites that
// field on the existing entry for (identifier, date). The other field is
// left untouched.
func (s *JournalService) ApplyPartialEdit(ctx context.Context, identifier int64, date string, field model.Field, rawText string) (*model.JournalEntry, error) {
	if !field.IsValid() {
		return nil, fmt.Errorf("%w: unknown field %q", ErrMalformedCommand, field)
	}

	entry, err := s.getEntry(ctx, identifier, date)
	if err != nil {
		return nil, err
	}

	switch field {
	case model.FieldRounds:
		starts, err := s.extractor.ExtractRounds(ctx, rawText)
		if err != nil {
			return nil, err
		}
		entry.Rounds = NormalizeRounds(starts)
	case model.FieldEvents:
		events, err := s.extractor.ExtractEvents(ctx, rawText)
		if err != nil {
			return nil, err
		}
		entry.Events = nonNilEvents(events)
	}

	if err := s.save(ctx, entry, field); err != nil {
		return nil, err
	}

	return entry, nil
}

// DeleteEntry removes the entry for (identifier, date). deleted is false
// when there was nothing to delete; that is not an error.
func (s *JournalService) DeleteEntry(ctx context.Context, identifier int64, date string) (bool, error) {
	n, err := s.store.DeleteEntry(ctx, identifier, date)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.metrics.IncJournalDeleted()
	s.invalidateRecent(ctx)

	return true, nil
}

// ListEntries returns the guard's entries, newest date first. A
// non-positive limit uses the configured list size.
func (s *JournalService) ListEntries(ctx context.Context, identifier int64, limit int) ([]*model.JournalEntry, error) {
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}

	entries, err := s.store.ListEntriesByUser(ctx, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return entries, nil
}

// EntryByIndex resolves a 1-based index into the guard's entry list as
// shown by ListEntries.
func (s *JournalService) EntryByIndex(ctx context.Context, identifier int64, index int) (*model.JournalEntry, error) {
	if index < 1 || index > s.cfg.ListLimit {
		return nil, ErrEntryNotFound
	}

	entries, err := s.ListEntries(ctx, identifier, 0)
	if err != nil {
		return nil, err
	}
	if index > len(entries) {
		return nil, ErrEntryNotFound
	}

	return entries[index-1], nil
}

// ApplyEdit applies an interpreted edit to the indexed entry.
// Add appends, skipping values already present; remove drops rounds by
// start time and events by time (and description, when given); replace
// overwrites the field. A remove that matches nothing returns
// ErrNothingToRemove and leaves the entry untouched.
func (s *JournalService) ApplyEdit(ctx context.Context, identifier int64, index int, action model.EditAction, rounds []string, events []model.Event) (*model.JournalEntry, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedCommand, action)
	}

	entry, err := s.EntryByIndex(ctx, identifier, index)
	if err != nil {
		return nil, err
	}

	switch action {
	case model.ActionAddRounds:
		entry.Rounds = addRounds(entry.Rounds, NormalizeRounds(rounds))
	case model.ActionRemoveRounds:
		kept := removeRounds(entry.Rounds, rounds)
		if len(kept) == len(entry.Rounds) {
			return nil, ErrNothingToRemove
		}
		entry.Rounds = kept
	case model.ActionReplaceRounds:
		entry.Rounds = NormalizeRounds(rounds)
	case model.ActionAddEvents:
		entry.Events = addEvents(entry.Events, events)
	case model.ActionRemoveEvents:
		kept := removeEvents(entry.Events, events)
		if len(kept) == len(entry.Events) {
			return nil, ErrNothingToRemove
		}
		entry.Events = kept
	case model.ActionReplaceEvents:
		entry.Events = nonNilEvents(events)
	}

	if err := s.save(ctx, entry, action.Field()); err != nil {
		return nil, err
	}

	return entry, nil
}

// DeleteByIndex deletes the indexed entry and returns it.
func (s *JournalService) DeleteByIndex(ctx context.Context, identifier int64, index int) (*model.JournalEntry, error) {
	entry, err := s.EntryByIndex(ctx, identifier, index)
	if err != nil {
		return nil, err
	}

	deleted, err := s.DeleteEntry(ctx, identifier, entry.Date)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, ErrEntryNotFound
	}

	return entry, nil
}

// RecentEntries returns the most recent entries across all guards for the
// read API, newest date first.
func (s *JournalService) RecentEntries(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	if s.recent != nil {
		// Any cache error, miss or otherwise, falls through to the store.
		if entries, err := s.recent.GetRecentJournal(ctx, limit); err == nil {
			return entries, nil
		}
	}

	entries, err := s.store.ListRecentEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}

	if s.recent != nil && s.cfg.CacheTTL > 0 {
		_ = s.recent.SetRecentJournal(ctx, limit, entries, s.cfg.CacheTTL)
	}

	return entries, nil
}

func (s *JournalService) getEntry(ctx context.Context, identifier int64, date string) (*model.JournalEntry, error) {
	entry, err := s.store.GetEntry(ctx, identifier, date)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (s *JournalService) save(ctx context.Context, entry *model.JournalEntry, fields ...model.Field) error {
	entry.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEntry(ctx, entry, fields...); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("failed to update entry: %w", err)
	}

	s.metrics.IncJournalUpdated()
	s.invalidateRecent(ctx)

	return nil
}

// invalidateRecent drops cached read-API pages. Failures are ignored; the
// page TTL bounds staleness.
func (s *JournalService) invalidateRecent(ctx context.Context) {
	if s.recent == nil {
		return
	}
	_ = s.recent.InvalidateRecentJournal(ctx)
}

func addRounds(existing, added []string) []string {
	out := append([]string{}, existing...)
	for _, r := range added {
		if !containsRoundStart(out, roundStart(r)) {
			out = append(out, r)
		}
	}
	return out
}

func removeRounds(existing, removed []string) []string {
	out := make([]string, 0, len(existing))
	for _, r := range existing {
		if !containsRoundStart(removed, roundStart(r)) {
			out = append(out, r)
		}
	}
	return out
}

func containsRoundStart(rounds []string, start string) bool {
	for _, r := range rounds {
		if roundStart(r) == start {
			return true
		}
	}
	return false
}

func addEvents(existing, added []model.Event) []model.Event {
	out := append([]model.Event{}, existing...)
	for _, e := range added {
		dup := false
		for _, have := range out {
			if have == e {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, e)
		}
	}
	return out
}

func removeEvents(existing, removed []model.Event) []model.Event {
	out := make([]model.Event, 0, len(existing))
	for _, e := range existing {
		if !matchesAnyEvent(e, removed) {
			out = append(out, e)
		}
	}
	return out
}

func matchesAnyEvent(e model.Event, patterns []model.Event) bool {
	for _, p := range patterns {
		if p.Time != e.Time {
			continue
		}
		if p.Description == "" || p.Description == e.Description {
			return true
		}
	}
	return false
}

func nonNilEvents(events []model.Event) []model.Event {
	if events == nil {
		return []model.Event{}
	}
	return events
}
