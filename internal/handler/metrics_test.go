package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guardlog/guardlog/internal/metrics"
)

func TestMetricsHandler_Metrics(t *testing.T) {
	recorder := metrics.NewInMemory()
	recorder.IncJournalCreated()
	recorder.IncJournalUpdated()
	recorder.IncJournalUpdated()
	recorder.IncRateLimited()
	recorder.IncUpdateHandled("voice")
	recorder.IncExtractionFailure("journal")
	recorder.ObserveExtractionDuration("journal", 1500*time.Millisecond)

	rec := httptest.NewRecorder()
	NewMetricsHandler(recorder).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		`guardlog_journal_entries_total{outcome="created"} 1`,
		`guardlog_journal_entries_total{outcome="updated"} 2`,
		`guardlog_rate_limited_total 1`,
		`guardlog_updates_total{route="voice"} 1`,
		`guardlog_extraction_failures_total{op="journal"} 1`,
		`guardlog_extraction_duration_seconds_sum{op="journal"} 1.500000`,
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
