package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/guardlog/guardlog/internal/handler/dto"
	"github.com/guardlog/guardlog/internal/model"
)

// RecentLister returns the newest entries across all guards.
type RecentLister interface {
	RecentEntries(ctx context.Context, limit int) ([]*model.JournalEntry, error)
}

// JournalHandler serves the read-only dashboard API.
type JournalHandler struct {
	svc          RecentLister
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

// NewJournalHandler creates a new JournalHandler.
func NewJournalHandler(svc RecentLister, logger *slog.Logger, defaultLimit, maxLimit int) *JournalHandler {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(50, maxLimit)
	}
	return &JournalHandler{
		svc:          svc,
		logger:       logger.With("handler", "journal"),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// List handles GET /api/journal.
// An unparsable or non-positive limit falls back to the default; larger
// values are clamped to the maximum.
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, h.maxLimit)
		}
	}

	entries, err := h.svc.RecentEntries(r.Context(), limit)
	if err != nil {
		h.logger.Error("list_journal_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToJournalListResponse(entries))
}
