package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pratik11500/Nest/internal/api/middleware"
	"github.com/pratik11500/Nest/internal/metrics"
	"github.com/pratik11500/Nest/internal/models"
	"github.com/pratik11500/Nest/internal/store"
)

// CreateMessageRequest represents the post message request.
type CreateMessageRequest struct {
	Text            string `json:"text"`
	ParentMessageID *int64 `json:"parent_message_id,omitempty"`
}

// EditMessageRequest represents the edit message request.
type EditMessageRequest struct {
	Text string `json:"text"`
}

// ListMessages handles fetching messages. With since_id it is the resync
// read: every message with id > since_id, ascending, uncapped. Without it,
// anonymous callers get the recent page and authenticated callers the full
// history.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sinceStr := r.URL.Query().Get("since_id")

	var messages []models.Message
	var err error
	if sinceStr != "" {
		sinceID, parseErr := strconv.ParseInt(sinceStr, 10, 64)
		if parseErr != nil || sinceID < 0 {
			h.Error(w, http.StatusBadRequest, "invalid since_id")
			return
		}
		messages, err = h.store.ListMessages(r.Context(), sinceID, 0, 0)
	} else if middleware.GetClaimsFromContext(r.Context()) != nil {
		messages, err = h.store.ListMessages(r.Context(), 0, 0, 0)
	} else {
		messages, err = h.store.ListMessages(r.Context(), 0, 0, h.recentPageSize)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("list messages failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, messages)
}

// CreateMessage handles posting a new message (authenticated). The created
// message is not published to the hub: each push connection picks it up from
// its next store poll, and the author's own client renders it from this
// response.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), claims.UserID, req.Text, req.ParentMessageID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyText):
			h.Error(w, http.StatusBadRequest, "text is required")
		case errors.Is(err, store.ErrParentNotFound):
			h.Error(w, http.StatusUnprocessableEntity, "parent message not found")
		default:
			h.logger.Error().Err(err).Msg("create message failed")
			h.Error(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}

	metrics.MessagesPosted.Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// EditMessage handles editing an existing message (authenticated, author
// only). The updated message is republished to every open push connection,
// the editor's included, so all sessions replace their local copy.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.store.EditMessage(r.Context(), messageID, claims.UserID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyText):
			h.Error(w, http.StatusBadRequest, "text is required")
		case errors.Is(err, store.ErrMessageNotFound):
			h.Error(w, http.StatusNotFound, "message not found")
		case errors.Is(err, store.ErrNotAuthor):
			h.Error(w, http.StatusForbidden, "not the author of this message")
		default:
			h.logger.Error().Err(err).Int64("message_id", messageID).Msg("edit message failed")
			h.Error(w, http.StatusInternalServerError, "failed to edit message")
		}
		return
	}

	h.hub.Publish(models.EventMessageUpdated, msg, "")
	metrics.MessagesEdited.Inc()
	h.JSON(w, http.StatusOK, msg)
}

// ClearChat deletes all messages authored by the caller.
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	deleted, err := h.store.DeleteMessagesByAuthor(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("clear chat failed")
		h.Error(w, http.StatusInternalServerError, "failed to clear chat")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"message": "chat cleared", "deleted": deleted})
}
