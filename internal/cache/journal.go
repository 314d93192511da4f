package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardlog/guardlog/internal/model"
)

// recentJournalPrefix keys cached read-API pages by limit.
const recentJournalPrefix = "journal:recent:"

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetRecentJournal returns the cached most-recent page for limit.
// Returns ErrCacheMiss if not cached.
func (c *Cache) GetRecentJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	data, err := c.client.Get(ctx, recentJournalKey(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entries []*model.JournalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt value is treated as absent; the caller refills it.
		return nil, ErrCacheMiss
	}

	return entries, nil
}

// SetRecentJournal caches a most-recent page for ttl.
func (c *Cache) SetRecentJournal(ctx context.Context, limit int, entries []*model.JournalEntry, ttl time.Duration) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode journal page: %w", err)
	}

	if err := c.client.Set(ctx, recentJournalKey(limit), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache journal page: %w", err)
	}

	return nil
}

// InvalidateRecentJournal drops every cached page. Called after any write.
func (c *Cache) InvalidateRecentJournal(ctx context.Context) error {
	keys, err := c.scanKeys(ctx, recentJournalPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate journal pages: %w", err)
	}

	return nil
}

// scanKeys collects all keys matching pattern.
func (c *Cache) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var scanKeys []string
		var err error

		scanKeys, cursor, err = c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, scanKeys...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func recentJournalKey(limit int) string {
	return recentJournalPrefix + strconv.Itoa(limit)
}
