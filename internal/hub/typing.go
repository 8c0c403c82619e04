package hub

import (
	"sync"
	"time"

	"github.com/pratik11500/Nest/internal/models"
)

// DefaultTypingTTL is the quiet period after which a user's typing state
// auto-clears without an explicit stop signal.
const DefaultTypingTTL = 3 * time.Second

// TypingTracker records which users are currently composing. State is
// in-memory only; each user owns a single expiry timer and rapid refreshes
// coalesce into it.
type TypingTracker struct {
	hub *Hub
	ttl time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTypingTracker creates a tracker publishing to the given hub. A
// non-positive ttl falls back to DefaultTypingTTL.
func NewTypingTracker(h *Hub, ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		hub:    h,
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// SetTyping records that a user started or stopped composing and broadcasts
// the change to all other connected users. A true signal (re)arms the user's
// expiry timer; false clears it immediately.
func (t *TypingTracker) SetTyping(username string, isTyping bool) {
	t.mu.Lock()
	if timer, ok := t.timers[username]; ok {
		timer.Stop()
		delete(t.timers, username)
	}
	if isTyping {
		t.timers[username] = time.AfterFunc(t.ttl, func() {
			t.expire(username)
		})
	}
	t.mu.Unlock()

	t.hub.Publish(models.EventTyping, models.TypingEvent{Username: username, IsTyping: isTyping}, username)
}

// expire clears a user's typing state after the quiet period, exactly as an
// explicit stop signal would.
func (t *TypingTracker) expire(username string) {
	t.mu.Lock()
	delete(t.timers, username)
	t.mu.Unlock()

	t.hub.Publish(models.EventTyping, models.TypingEvent{Username: username, IsTyping: false}, username)
}
