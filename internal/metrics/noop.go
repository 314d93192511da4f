package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncJournalCreated is a no-op.
func (n *NoopRecorder) IncJournalCreated() {}

// IncJournalUpdated is a no-op.
func (n *NoopRecorder) IncJournalUpdated() {}

// IncJournalDeleted is a no-op.
func (n *NoopRecorder) IncJournalDeleted() {}

// IncUpdateHandled is a no-op.
func (n *NoopRecorder) IncUpdateHandled(route string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// IncExtractionFailure is a no-op.
func (n *NoopRecorder) IncExtractionFailure(op string) {}

// ObserveExtractionDuration is a no-op.
func (n *NoopRecorder) ObserveExtractionDuration(op string, duration time.Duration) {}
