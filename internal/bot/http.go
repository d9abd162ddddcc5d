// ABOUTME: HTTP surface for the bot: the Bot Framework webhook endpoint
// ABOUTME: Validates the inbound bearer token before handing off to the turn loop

package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hiredesk/gateway/internal/activity"
)

// Validator checks the Authorization header on inbound webhook calls
type Validator interface {
	Validate(ctx context.Context, authorizationHeader string) error
}

// Handler serves POST /api/messages, the single endpoint the channel
// connector delivers activities to.
type Handler struct {
	bot       *Bot
	validator Validator
	logger    *slog.Logger
}

// NewHandler builds the webhook handler. validator may be nil to disable
// token checks, which only makes sense for local development.
func NewHandler(b *Bot, validator Validator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bot:       b,
		validator: validator,
		logger:    logger.With("component", "webhook"),
	}
}

// Routes registers the handler's endpoints on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/messages", h.handleMessages)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if h.validator != nil {
		if err := h.validator.Validate(r.Context(), r.Header.Get("Authorization")); err != nil {
			h.logger.Warn("rejecting webhook call", "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var act activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		h.logger.Warn("malformed activity payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	h.bot.Process(r.Context(), &act)
	w.WriteHeader(http.StatusOK)
}
