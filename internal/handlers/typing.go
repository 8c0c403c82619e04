package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pratik11500/Nest/internal/api/middleware"
	"github.com/pratik11500/Nest/internal/metrics"
)

// TypingRequest represents the typing signal request.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// Typing records that the caller started or stopped composing. The broadcast
// to other connections is the only side effect; the response is a bare ack.
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.typing.SetTyping(claims.Username, req.IsTyping)
	metrics.TypingSignals.Inc()
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
