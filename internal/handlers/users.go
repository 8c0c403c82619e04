package handlers

import (
	"net/http"

	"github.com/pratik11500/Nest/internal/api/middleware"
)

// OnlineUsers lists users active within the presence window, most recent
// first. Presence is inferred from last_active, not from open connections.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListOnlineUsers(r.Context(), h.presenceWindow)
	if err != nil {
		h.logger.Error().Err(err).Msg("list online users failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	h.JSON(w, http.StatusOK, users)
}

// Heartbeat refreshes the caller's last_active timestamp.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.store.TouchLastActive(r.Context(), claims.UserID); err != nil {
		h.logger.Error().Err(err).Int64("user_id", claims.UserID).Msg("heartbeat failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
