// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Journal metrics
	IncJournalCreated()
	IncJournalUpdated()
	IncJournalDeleted()

	// Pipeline metrics
	IncUpdateHandled(route string)
	IncRateLimited()
	IncExtractionFailure(op string)
	ObserveExtractionDuration(op string, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
