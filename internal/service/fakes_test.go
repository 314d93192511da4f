package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guardlog/guardlog/internal/model"
)

// fakeExtractor answers every extraction with fixed values.
type fakeExtractor struct {
	rounds []string
	events []model.Event
	intent *model.CommandIntent
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractRounds(context.Context, string) ([]string, error) {
	f.calls++
	return f.rounds, f.err
}

func (f *fakeExtractor) ExtractEvents(context.Context, string) ([]model.Event, error) {
	f.calls++
	return f.events, f.err
}

func (f *fakeExtractor) ExtractCommandIntent(context.Context, string) (*model.CommandIntent, error) {
	f.calls++
	return f.intent, f.err
}

// fakeRecentCache records cache traffic.
type fakeRecentCache struct {
	mu          sync.Mutex
	pages       map[int][]*model.JournalEntry
	invalidated int
}

func newFakeRecentCache() *fakeRecentCache {
	return &fakeRecentCache{pages: make(map[int][]*model.JournalEntry)}
}

func (c *fakeRecentCache) GetRecentJournal(_ context.Context, limit int) ([]*model.JournalEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[limit]
	if !ok {
		return nil, errCacheMiss
	}
	return page, nil
}

func (c *fakeRecentCache) SetRecentJournal(_ context.Context, limit int, entries []*model.JournalEntry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[limit] = entries
	return nil
}

func (c *fakeRecentCache) InvalidateRecentJournal(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[int][]*model.JournalEntry)
	c.invalidated++
	return nil
}

var errCacheMiss = errors.New("cache miss")
