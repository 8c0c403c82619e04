package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pratik11500/Nest/internal/auth"
	"github.com/pratik11500/Nest/internal/metrics"
	"github.com/pratik11500/Nest/internal/models"
)

// Stream is the push subscribe endpoint: a long-lived SSE connection carrying
// tagged events (message-created, message-updated, typing, heartbeat).
//
// Two independent tickers drive each connection: a short one polling the
// store for messages past the connection's cursor, and a long one emitting
// keepalives. Store polls run in a helper goroutine behind an in-flight
// guard so a slow query never delays the heartbeat; all transport writes
// stay on this goroutine. The cursor only moves forward, so delivery within
// a connection is in strictly increasing id order with no gaps.
//
// EventSource cannot set headers, so the JWT arrives as a query parameter.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ParseJWT(h.jwtSecret, r.URL.Query().Get("token"))
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	var cursor int64
	if sinceStr := r.URL.Query().Get("since_id"); sinceStr != "" {
		cursor, err = strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || cursor < 0 {
			h.Error(w, http.StatusBadRequest, "invalid since_id")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	// Insert-on-open, remove-on-close. Close runs exactly once however the
	// connection ends.
	sub := h.hub.Subscribe(claims.Username)
	defer sub.Close()

	metrics.SSEConnections.Inc()
	defer metrics.SSEConnections.Dec()

	pollTicker := time.NewTicker(h.pollInterval)
	defer pollTicker.Stop()
	heartbeatTicker := time.NewTicker(h.heartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	polls := make(chan []models.Message, 1)
	inflight := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-pollTicker.C:
			if inflight {
				// Previous poll still running; it will re-arm on delivery.
				continue
			}
			inflight = true
			go func(since int64) {
				msgs, err := h.store.ListMessages(ctx, since, claims.UserID, 0)
				if err != nil {
					// Transient store failure: retry on the next tick.
					metrics.StorePollFailures.Inc()
					h.logger.Warn().Err(err).
						Str("username", claims.Username).
						Int64("cursor", since).
						Msg("push poll failed")
					msgs = nil
				}
				select {
				case polls <- msgs:
				case <-ctx.Done():
				}
			}(cursor)

		case msgs := <-polls:
			inflight = false
			for i := range msgs {
				ev := models.Event{
					ID:      ulid.Make().String(),
					Type:    models.EventMessageCreated,
					Payload: msgs[i],
				}
				if !h.writeEvent(w, ev) {
					return
				}
				cursor = msgs[i].ID
			}
			if len(msgs) > 0 {
				flusher.Flush()
			}

		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if !h.writeEvent(w, ev) {
				return
			}
			flusher.Flush()

		case <-heartbeatTicker.C:
			ev := models.Event{ID: ulid.Make().String(), Type: models.EventHeartbeat}
			if !h.writeEvent(w, ev) {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE frame. Returns false when the transport is gone.
func (h *Handler) writeEvent(w http.ResponseWriter, ev models.Event) bool {
	data := []byte("{}")
	if ev.Payload != nil {
		var err error
		data, err = json.Marshal(ev.Payload)
		if err != nil {
			h.logger.Error().Err(err).Str("event_type", ev.Type).Msg("marshal event payload failed")
			return true
		}
	}

	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
		return false
	}
	metrics.SSEEventsSent.WithLabelValues(ev.Type).Inc()
	return true
}
