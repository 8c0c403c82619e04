// Package hub owns the in-process live broadcast channel: an explicit
// registry of open push connections with insert-on-open and remove-on-close,
// exposed only through Subscribe/Publish. New messages reach clients through
// the push loop's store polling; the hub carries the out-of-band events
// (typing, message updates) that polling cannot see.
package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/pratik11500/Nest/internal/models"
)

// subscriberBuffer bounds each connection's event queue. Events to a full
// queue are dropped; typing is latest-wins and a missed message-updated frame
// is recovered on the client's next full reload.
const subscriberBuffer = 64

// Hub maintains the set of open push connections.
type Hub struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// New creates an empty hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Subscription is one connection's view of the hub. Close is safe to call
// multiple times and from either side of the connection; teardown runs once.
type Subscription struct {
	ID       uuid.UUID
	Username string

	hub  *Hub
	ch   chan models.Event
	once sync.Once
}

// Subscribe registers a new connection for the given user.
func (h *Hub) Subscribe(username string) *Subscription {
	sub := &Subscription{
		ID:       uuid.New(),
		Username: username,
		hub:      h,
		ch:       make(chan models.Event, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	h.logger.Debug().
		Str("connection_id", sub.ID.String()).
		Str("username", username).
		Msg("push connection subscribed")
	return sub
}

// Events returns the connection's event stream. The channel is closed when
// the subscription is closed.
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// Close removes the subscription from the hub and closes its event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.ID)
		close(s.ch)
		s.hub.mu.Unlock()

		s.hub.logger.Debug().
			Str("connection_id", s.ID.String()).
			Str("username", s.Username).
			Msg("push connection unsubscribed")
	})
}

// ConnectionCount returns the number of open push connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers an event to every open connection, skipping connections
// owned by exceptUser when it is non-empty. Delivery is best-effort: a full
// subscriber queue drops the event rather than blocking the publisher.
func (h *Hub) Publish(eventType string, payload any, exceptUser string) {
	ev := models.Event{
		ID:      ulid.Make().String(),
		Type:    eventType,
		Payload: payload,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if exceptUser != "" && sub.Username == exceptUser {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn().
				Str("connection_id", sub.ID.String()).
				Str("username", sub.Username).
				Str("event_type", eventType).
				Msg("subscriber queue full, event dropped")
		}
	}
}
