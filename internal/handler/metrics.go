package handler

import (
	"fmt"
	"net/http"

	"github.com/guardlog/guardlog/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "guardlog_journal_entries_total{outcome=\"created\"} %d\n", snap.JournalCreated)
	writeMetric(w, "guardlog_journal_entries_total{outcome=\"updated\"} %d\n", snap.JournalUpdated)
	writeMetric(w, "guardlog_journal_entries_total{outcome=\"deleted\"} %d\n", snap.JournalDeleted)
	writeMetric(w, "guardlog_rate_limited_total %d\n", snap.RateLimited)

	for _, route := range metrics.SortedKeys(snap.UpdatesHandled) {
		writeMetric(w, "guardlog_updates_total{route=%q} %d\n", route, snap.UpdatesHandled[route])
	}
	for _, op := range metrics.SortedKeys(snap.ExtractionFailures) {
		writeMetric(w, "guardlog_extraction_failures_total{op=%q} %d\n", op, snap.ExtractionFailures[op])
	}
	for _, op := range metrics.SortedKeys(snap.ExtractionDurationCount) {
		writeMetric(w, "guardlog_extraction_duration_seconds_count{op=%q} %d\n", op, snap.ExtractionDurationCount[op])
		writeMetric(w, "guardlog_extraction_duration_seconds_sum{op=%q} %.6f\n", op, float64(snap.ExtractionDurationTotalNs[op])/1e9)
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
