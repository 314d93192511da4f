package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	JournalCreated uint64
	JournalUpdated uint64
	JournalDeleted uint64
	RateLimited    uint64

	// Keyed by route / extraction operation.
	UpdatesHandled            map[string]uint64
	ExtractionFailures        map[string]uint64
	ExtractionDurationCount   map[string]uint64
	ExtractionDurationTotalNs map[string]int64
}

// InMemoryRecorder stores metrics in memory. It backs /metrics and tests.
type InMemoryRecorder struct {
	journalCreated uint64
	journalUpdated uint64
	journalDeleted uint64
	rateLimited    uint64

	mu                 sync.Mutex
	updatesHandled     map[string]uint64
	extractionFailures map[string]uint64
	extractionCount    map[string]uint64
	extractionTotalNs  map[string]int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		updatesHandled:     make(map[string]uint64),
		extractionFailures: make(map[string]uint64),
		extractionCount:    make(map[string]uint64),
		extractionTotalNs:  make(map[string]int64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		JournalCreated:            atomic.LoadUint64(&m.journalCreated),
		JournalUpdated:            atomic.LoadUint64(&m.journalUpdated),
		JournalDeleted:            atomic.LoadUint64(&m.journalDeleted),
		RateLimited:               atomic.LoadUint64(&m.rateLimited),
		UpdatesHandled:            copyCounts(m.updatesHandled),
		ExtractionFailures:        copyCounts(m.extractionFailures),
		ExtractionDurationCount:   copyCounts(m.extractionCount),
		ExtractionDurationTotalNs: copyCounts(m.extractionTotalNs),
	}
}

// IncJournalCreated increments the journal created counter.
func (m *InMemoryRecorder) IncJournalCreated() {
	atomic.AddUint64(&m.journalCreated, 1)
}

// IncJournalUpdated increments the journal updated counter.
func (m *InMemoryRecorder) IncJournalUpdated() {
	atomic.AddUint64(&m.journalUpdated, 1)
}

// IncJournalDeleted increments the journal deleted counter.
func (m *InMemoryRecorder) IncJournalDeleted() {
	atomic.AddUint64(&m.journalDeleted, 1)
}

// IncRateLimited counts a request rejected by the per-user window.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncUpdateHandled counts a webhook update by the route it took.
func (m *InMemoryRecorder) IncUpdateHandled(route string) {
	m.mu.Lock()
	m.updatesHandled[route]++
	m.mu.Unlock()
}

// IncExtractionFailure counts a failed model call by operation.
func (m *InMemoryRecorder) IncExtractionFailure(op string) {
	m.mu.Lock()
	m.extractionFailures[op]++
	m.mu.Unlock()
}

// ObserveExtractionDuration records model call latency by operation.
func (m *InMemoryRecorder) ObserveExtractionDuration(op string, duration time.Duration) {
	m.mu.Lock()
	m.extractionCount[op]++
	m.extractionTotalNs[op] += duration.Nanoseconds()
	m.mu.Unlock()
}

// SortedKeys returns the keys of a snapshot map in stable order.
func SortedKeys[V uint64 | int64](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyCounts[V uint64 | int64](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
