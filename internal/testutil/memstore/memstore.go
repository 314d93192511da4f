// Package memstore provides an in-memory store for service and dispatcher
// tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/repository"
)

// Store is an in-memory implementation of the user and journal
// persistence contracts with the same errors as the Postgres repository.
type Store struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	entries map[string]*model.JournalEntry

	createConflict *model.JournalEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[int64]*model.User),
		entries: make(map[string]*model.JournalEntry),
	}
}

func entryKey(identifier int64, date string) string {
	return fmt.Sprintf("%d/%s", identifier, date)
}

func cloneEntry(e *model.JournalEntry) *model.JournalEntry {
	c := *e
	c.Rounds = append([]string{}, e.Rounds...)
	c.Events = append([]model.Event{}, e.Events...)
	return &c
}

func (s *Store) GetUser(_ context.Context, identifier int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[identifier]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (s *Store) CreateUserCapped(_ context.Context, user *model.User, maxUsers int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Identifier]; ok {
		return repository.ErrUserExists
	}
	if len(s.users) >= maxUsers {
		return repository.ErrUserCapReached
	}
	c := *user
	s.users[user.Identifier] = &c
	return nil
}

func (s *Store) UpdateUserSurname(_ context.Context, identifier int64, surname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[identifier]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Surname = surname
	return nil
}

func (s *Store) GetEntry(_ context.Context, identifier int64, date string) (*model.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey(identifier, date)]
	if !ok {
		return nil, repository.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (s *Store) CreateEntry(_ context.Context, entry *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createConflict != nil {
		s.entries[entryKey(s.createConflict.Identifier, s.createConflict.Date)] = s.createConflict
		s.createConflict = nil
	}
	key := entryKey(entry.Identifier, entry.Date)
	if _, ok := s.entries[key]; ok {
		return repository.ErrEntryExists
	}
	s.entries[key] = cloneEntry(entry)
	return nil
}

func (s *Store) UpdateEntry(_ context.Context, entry *model.JournalEntry, fields ...model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(fields) == 0 {
		fields = []model.Field{model.FieldRounds, model.FieldEvents}
	}
	for _, stored := range s.entries {
		if stored.ID != entry.ID {
			continue
		}
		for _, f := range fields {
			switch f {
			case model.FieldRounds:
				stored.Rounds = append([]string{}, entry.Rounds...)
			case model.FieldEvents:
				stored.Events = append([]model.Event{}, entry.Events...)
			}
		}
		stored.UpdatedAt = entry.UpdatedAt
		return nil
	}
	return repository.ErrEntryNotFound
}

func (s *Store) DeleteEntry(_ context.Context, identifier int64, date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(identifier, date)
	if _, ok := s.entries[key]; !ok {
		return 0, nil
	}
	delete(s.entries, key)
	return 1, nil
}

func (s *Store) ListEntriesByUser(_ context.Context, identifier int64, limit int) ([]*model.JournalEntry, error) {
	return s.list(func(e *model.JournalEntry) bool { return e.Identifier == identifier }, limit), nil
}

func (s *Store) ListRecentEntries(_ context.Context, limit int) ([]*model.JournalEntry, error) {
	return s.list(func(*model.JournalEntry) bool { return true }, limit), nil
}

func (s *Store) list(match func(*model.JournalEntry) bool, limit int) []*model.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.JournalEntry, 0)
	for _, e := range s.entries {
		if match(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CountEntries returns the number of stored entries.
func (s *Store) CountEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SetCreateConflict makes the next CreateEntry behave as if a concurrent
// request had inserted entry first.
func (s *Store) SetCreateConflict(entry *model.JournalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createConflict = entry
}
