package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guardlog/guardlog/internal/metrics"
	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/testutil/memstore"
)

func newTestJournalService(store *memstore.Store, extractor *fakeExtractor) (*JournalService, *metrics.InMemoryRecorder) {
	recorder := metrics.NewInMemory()
	svc := NewJournalService(store, extractor, nil, recorder, JournalConfig{ListLimit: 10})
	clock := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, recorder
}

func TestJournalService_UpsertCreates(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc, recorder := newTestJournalService(store, &fakeExtractor{})

	entry, outcome, err := svc.UpsertEntry(context.Background(), EntryInput{
		Identifier: 42,
		Surname:    "Иванов",
		Date:       "2025-01-02",
		Rounds:     []string{"10:10", "12:25"},
	})
	if err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	if outcome != UpsertCreated {
		t.Errorf("outcome = %s, want created", outcome)
	}

	want := []string{"10:10-10:20", "12:25-12:35"}
	assertRounds(t, entry.Rounds, want)
	if entry.Events == nil || len(entry.Events) != 0 {
		t.Errorf("events = %#v, want empty", entry.Events)
	}
	if entry.ID == "" {
		t.Error("entry should get an id")
	}

	stored, err := store.GetEntry(context.Background(), 42, "2025-01-02")
	if err != nil {
		t.Fatalf("stored entry: %v", err)
	}
	assertRounds(t, stored.Rounds, want)

	if got := recorder.Snapshot().JournalCreated; got != 1 {
		t.Errorf("JournalCreated = %d", got)
	}
}

func TestJournalService_UpsertReplacesNotAppends(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc, _ := newTestJournalService(store, &fakeExtractor{})
	ctx := context.Background()

	_, _, err := svc.UpsertEntry(ctx, EntryInput{
		Identifier: 42, Surname: "Иванов", Date: "2025-01-02",
		Rounds: []string{"10:10"},
		Events: []model.Event{{Time: "11:00", Description: "A"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	entry, outcome, err := svc.UpsertEntry(ctx, EntryInput{
		Identifier: 42, Surname: "Петров", Date: "2025-01-02",
		Rounds: []string{"14:00"},
		Events: []model.Event{{Time: "15:00", Description: "B"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != UpsertUpdated {
		t.Errorf("outcome = %s, want updated", outcome)
	}

	if store.CountEntries() != 1 {
		t.Fatalf("expected exactly one row, got %d", store.CountEntries())
	}
	stored, _ := store.GetEntry(ctx, 42, "2025-01-02")
	assertRounds(t, stored.Rounds, []string{"14:00-14:10"})
	if len(stored.Events) != 1 || stored.Events[0].Description != "B" {
		t.Errorf("events = %+v, want only B", stored.Events)
	}
	if entry.Surname != "Иванов" {
		t.Errorf("surname snapshot should be kept, got %q", entry.Surname)
	}
}

func TestJournalService_UpsertConcurrentInsertFallsBack(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	store.SetCreateConflict(&model.JournalEntry{
		ID: "other", Identifier: 42, Surname: "Иванов", Date: "2025-01-02",
		Rounds: []string{"08:00-08:10"}, Events: []model.Event{},
	})
	svc, _ := newTestJournalService(store, &fakeExtractor{})

	entry, outcome, err := svc.UpsertEntry(context.Background(), EntryInput{
		Identifier: 42, Surname: "Иванов", Date: "2025-01-02", Rounds: []string{"09:00"},
	})
	if err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	if outcome != UpsertUpdated || entry.ID != "other" {
		t.Errorf("expected update of the concurrent row, got %s on %s", outcome, entry.ID)
	}
	assertRounds(t, entry.Rounds, []string{"09:00-09:10"})
}

func TestJournalService_UpsertNothingExtracted(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc, _ := newTestJournalService(store, &fakeExtractor{})

	_, _, err := svc.UpsertEntry(context.Background(), EntryInput{Identifier: 42, Date: "2025-01-02"})
	if !errors.Is(err, ErrNothingExtracted) {
		t.Fatalf("expected ErrNothingExtracted, got %v", err)
	}
	if store.CountEntries() != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestJournalService_PartialEditRoundsOnly(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	extractor := &fakeExtractor{rounds: []string{"09:00", "15:00"}}
	svc, _ := newTestJournalService(store, extractor)
	ctx := context.Background()

	events := []model.Event{{Time: "11:00", Description: "Проверка ворот"}}
	if _, _, err := svc.UpsertEntry(ctx, EntryInput{
		Identifier: 42, Surname: "Иванов", Date: "2025-01-02",
		Rounds: []string{"10:10"}, Events: events,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ApplyPartialEdit(ctx, 42, "2025-01-02", model.FieldRounds, "rounds: 09:00, 15:00"); err != nil {
		t.Fatalf("ApplyPartialEdit: %v", err)
	}

	stored, _ := store.GetEntry(ctx, 42, "2025-01-02")
	assertRounds(t, stored.Rounds, []string{"09:00-09:10", "15:00-15:10"})
	if len(stored.Events) != 1 || stored.Events[0] != events[0] {
		t.Errorf("events changed: %+v", stored.Events)
	}
}

func TestJournalService_PartialEditEvents(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	extractor := &fakeExtractor{events: []model.Event{{Time: "23:40", Description: "Открыты ворота"}}}
	svc, _ := newTestJournalService(store, extractor)
	ctx := context.Background()

	if _, _, err := svc.UpsertEntry(ctx, EntryInput{
		Identifier: 42, Date: "2025-01-02", Rounds: []string{"10:10"},
	}); err != nil {
		t.Fatal(err)
	}

	entry, err := svc.ApplyPartialEdit(ctx, 42, "2025-01-02", model.FieldEvents, "events: 23:40 открыты ворота")
	if err != nil {
		t.Fatalf("ApplyPartialEdit: %v", err)
	}
	assertRounds(t, entry.Rounds, []string{"10:10-10:20"})
	if len(entry.Events) != 1 || entry.Events[0].Time != "23:40" {
		t.Errorf("events = %+v", entry.Events)
	}
}

func TestJournalService_PartialEditMissingEntry(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{rounds: []string{"09:00"}}
	svc, _ := newTestJournalService(memstore.New(), extractor)

	_, err := svc.ApplyPartialEdit(context.Background(), 42, "2025-01-02", model.FieldRounds, "rounds: 09:00")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if extractor.calls != 0 {
		t.Error("extraction should not run for a missing entry")
	}
}

func TestJournalService_DeleteIdempotent(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc, recorder := newTestJournalService(store, &fakeExtractor{})
	ctx := context.Background()

	deleted, err := svc.DeleteEntry(ctx, 42, "2025-01-02")
	if err != nil || deleted {
		t.Fatalf("delete of missing entry = (%v, %v), want (false, nil)", deleted, err)
	}

	if _, _, err := svc.UpsertEntry(ctx, EntryInput{Identifier: 42, Date: "2025-01-02", Rounds: []string{"10:00"}}); err != nil {
		t.Fatal(err)
	}

	deleted, err = svc.DeleteEntry(ctx, 42, "2025-01-02")
	if err != nil || !deleted {
		t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = svc.DeleteEntry(ctx, 42, "2025-01-02")
	if err != nil || deleted {
		t.Fatalf("second delete = (%v, %v), want (false, nil)", deleted, err)
	}

	if got := recorder.Snapshot().JournalDeleted; got != 1 {
		t.Errorf("JournalDeleted = %d, want 1", got)
	}
}

func TestJournalService_ApplyEdit(t *testing.T) {
	t.Parallel()

	base := EntryInput{
		Identifier: 42,
		Date:       "2025-01-02",
		Rounds:     []string{"10:10", "12:25"},
		Events: []model.Event{
			{Time: "11:00", Description: "A"},
			{Time: "13:00", Description: "B"},
		},
	}

	tests := []struct {
		name       string
		action     model.EditAction
		rounds     []string
		events     []model.Event
		wantRounds []string
		wantEvents int
	}{
		{
			name:       "add rounds skips duplicates",
			action:     model.ActionAddRounds,
			rounds:     []string{"12:25", "16:00"},
			wantRounds: []string{"10:10-10:20", "12:25-12:35", "16:00-16:10"},
			wantEvents: 2,
		},
		{
			name:       "remove rounds by start",
			action:     model.ActionRemoveRounds,
			rounds:     []string{"10:10"},
			wantRounds: []string{"12:25-12:35"},
			wantEvents: 2,
		},
		{
			name:       "replace rounds",
			action:     model.ActionReplaceRounds,
			rounds:     []string{"18:00"},
			wantRounds: []string{"18:00-18:10"},
			wantEvents: 2,
		},
		{
			name:       "add events",
			action:     model.ActionAddEvents,
			events:     []model.Event{{Time: "14:00", Description: "C"}, {Time: "11:00", Description: "A"}},
			wantRounds: []string{"10:10-10:20", "12:25-12:35"},
			wantEvents: 3,
		},
		{
			name:       "remove events by time",
			action:     model.ActionRemoveEvents,
			events:     []model.Event{{Time: "11:00"}},
			wantRounds: []string{"10:10-10:20", "12:25-12:35"},
			wantEvents: 1,
		},
		{
			name:       "replace events",
			action:     model.ActionReplaceEvents,
			events:     []model.Event{},
			wantRounds: []string{"10:10-10:20", "12:25-12:35"},
			wantEvents: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := memstore.New()
			svc, _ := newTestJournalService(store, &fakeExtractor{})
			ctx := context.Background()

			if _, _, err := svc.UpsertEntry(ctx, base); err != nil {
				t.Fatal(err)
			}

			entry, err := svc.ApplyEdit(ctx, 42, 1, tt.action, tt.rounds, tt.events)
			if err != nil {
				t.Fatalf("ApplyEdit: %v", err)
			}
			assertRounds(t, entry.Rounds, tt.wantRounds)
			if len(entry.Events) != tt.wantEvents {
				t.Errorf("events = %+v, want %d", entry.Events, tt.wantEvents)
			}

			stored, _ := store.GetEntry(ctx, 42, "2025-01-02")
			assertRounds(t, stored.Rounds, tt.wantRounds)
		})
	}
}

func TestJournalService_ApplyEditRemoveWithoutMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action model.EditAction
		rounds []string
		events []model.Event
	}{
		{"round not present", model.ActionRemoveRounds, []string{"16:00"}, nil},
		{"event description differs", model.ActionRemoveEvents, nil, []model.Event{{Time: "11:00", Description: "other"}}},
		{"event time not present", model.ActionRemoveEvents, nil, []model.Event{{Time: "14:00"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := memstore.New()
			svc, _ := newTestJournalService(store, &fakeExtractor{})
			ctx := context.Background()

			in := EntryInput{
				Identifier: 42,
				Date:       "2025-01-02",
				Rounds:     []string{"10:10"},
				Events:     []model.Event{{Time: "11:00", Description: "A"}},
			}
			if _, _, err := svc.UpsertEntry(ctx, in); err != nil {
				t.Fatal(err)
			}

			_, err := svc.ApplyEdit(ctx, 42, 1, tt.action, tt.rounds, tt.events)
			if !errors.Is(err, ErrNothingToRemove) {
				t.Fatalf("expected ErrNothingToRemove, got %v", err)
			}

			stored, _ := store.GetEntry(ctx, 42, "2025-01-02")
			if len(stored.Rounds) != 1 || len(stored.Events) != 1 {
				t.Errorf("entry changed: %+v", stored)
			}
		})
	}
}

func TestJournalService_IndexResolution(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc, _ := newTestJournalService(store, &fakeExtractor{})
	ctx := context.Background()

	for _, date := range []string{"2025-01-01", "2025-01-03", "2025-01-02"} {
		if _, _, err := svc.UpsertEntry(ctx, EntryInput{Identifier: 42, Date: date, Rounds: []string{"10:00"}}); err != nil {
			t.Fatal(err)
		}
	}

	entry, err := svc.EntryByIndex(ctx, 42, 1)
	if err != nil || entry.Date != "2025-01-03" {
		t.Fatalf("index 1 = %+v, %v; want newest", entry, err)
	}

	for _, index := range []int{0, 4, 11} {
		if _, err := svc.EntryByIndex(ctx, 42, index); !errors.Is(err, ErrEntryNotFound) {
			t.Errorf("index %d: expected ErrEntryNotFound, got %v", index, err)
		}
	}

	deleted, err := svc.DeleteByIndex(ctx, 42, 2)
	if err != nil {
		t.Fatalf("DeleteByIndex: %v", err)
	}
	if deleted.Date != "2025-01-02" {
		t.Errorf("deleted %s, want 2025-01-02", deleted.Date)
	}
	if store.CountEntries() != 2 {
		t.Errorf("expected 2 entries left, got %d", store.CountEntries())
	}
}

func TestJournalService_RecentEntriesCache(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	recent := newFakeRecentCache()
	svc := NewJournalService(store, &fakeExtractor{}, recent, nil, JournalConfig{CacheTTL: time.Minute})
	ctx := context.Background()

	for _, date := range []string{"2025-01-01", "2025-01-02"} {
		if _, _, err := svc.UpsertEntry(ctx, EntryInput{Identifier: 42, Date: date, Rounds: []string{"10:00"}}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := svc.RecentEntries(ctx, 50)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].Date != "2025-01-02" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if _, ok := recent.pages[50]; !ok {
		t.Error("page should be cached")
	}

	if _, err := svc.DeleteEntry(ctx, 42, "2025-01-02"); err != nil {
		t.Fatal(err)
	}
	if len(recent.pages) != 0 {
		t.Error("writes should invalidate cached pages")
	}

	entries, err = svc.RecentEntries(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected fresh page with 1 entry, got %d", len(entries))
	}
}

func assertRounds(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("rounds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rounds[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
