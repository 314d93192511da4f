package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler processes one Telegram update.
type UpdateHandler interface {
	Handle(ctx context.Context, update tgbotapi.Update) error
}

// WebhookHandler receives Telegram updates.
type WebhookHandler struct {
	updates UpdateHandler
	secret  string
	maxBody int64
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. The secret must match the
// last path segment; an empty secret accepts any segment.
func NewWebhookHandler(updates UpdateHandler, secret string, maxBody int64, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		updates: updates,
		secret:  secret,
		maxBody: maxBody,
		logger:  logger.With("handler", "webhook"),
	}
}

// Receive handles POST /webhook/{secret}.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if !h.secretMatches(chi.URLParam(r, "secret")) {
		h.logger.Warn("webhook_secret_mismatch", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "FORBIDDEN", "forbidden")
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("webhook_invalid_update", "error", err)
		writeError(w, http.StatusBadRequest, "INVALID_UPDATE", "Invalid update body")
		return
	}

	if err := h.updates.Handle(r.Context(), update); err != nil {
		h.logger.Error("webhook_update_failed", "update_id", update.UpdateID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WebhookHandler) secretMatches(got string) bool {
	if h.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
