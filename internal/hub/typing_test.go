package hub

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pratik11500/Nest/internal/models"
)

func recvTyping(t *testing.T, sub *Subscription) models.TypingEvent {
	t.Helper()
	ev := recvEvent(t, sub)
	if ev.Type != models.EventTyping {
		t.Fatalf("expected typing event, got %q", ev.Type)
	}
	te, ok := ev.Payload.(models.TypingEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", ev.Payload)
	}
	return te
}

func TestTypingBroadcastExcludesOriginator(t *testing.T) {
	h := New(zerolog.Nop())
	tracker := NewTypingTracker(h, time.Minute)
	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")
	defer alice.Close()
	defer bob.Close()

	tracker.SetTyping("alice", true)

	te := recvTyping(t, bob)
	if te.Username != "alice" || !te.IsTyping {
		t.Fatalf("unexpected typing event: %+v", te)
	}
	assertNoEvent(t, alice, 50*time.Millisecond)
}

func TestTypingAutoExpires(t *testing.T) {
	h := New(zerolog.Nop())
	tracker := NewTypingTracker(h, 30*time.Millisecond)
	bob := h.Subscribe("bob")
	defer bob.Close()

	tracker.SetTyping("alice", true)

	if te := recvTyping(t, bob); !te.IsTyping {
		t.Fatalf("expected typing=true first, got %+v", te)
	}
	// Without any further signal the state clears after the quiet period.
	te := recvTyping(t, bob)
	if te.Username != "alice" || te.IsTyping {
		t.Fatalf("expected auto-expiry typing=false, got %+v", te)
	}
}

func TestTypingRefreshCoalesces(t *testing.T) {
	h := New(zerolog.Nop())
	tracker := NewTypingTracker(h, 200*time.Millisecond)
	bob := h.Subscribe("bob")
	defer bob.Close()

	tracker.SetTyping("alice", true)
	time.Sleep(50 * time.Millisecond)
	tracker.SetTyping("alice", true) // refresh before expiry

	if te := recvTyping(t, bob); !te.IsTyping {
		t.Fatalf("expected typing=true, got %+v", te)
	}
	if te := recvTyping(t, bob); !te.IsTyping {
		t.Fatalf("expected refreshed typing=true, got %+v", te)
	}

	// Exactly one expiry fires, from the refreshed timer.
	if te := recvTyping(t, bob); te.IsTyping {
		t.Fatalf("expected typing=false after expiry, got %+v", te)
	}
	assertNoEvent(t, bob, 400*time.Millisecond)
}

func TestTypingExplicitStop(t *testing.T) {
	h := New(zerolog.Nop())
	tracker := NewTypingTracker(h, 40*time.Millisecond)
	bob := h.Subscribe("bob")
	defer bob.Close()

	tracker.SetTyping("alice", true)
	tracker.SetTyping("alice", false)

	if te := recvTyping(t, bob); !te.IsTyping {
		t.Fatalf("expected typing=true, got %+v", te)
	}
	if te := recvTyping(t, bob); te.IsTyping {
		t.Fatalf("expected explicit typing=false, got %+v", te)
	}
	// The stop cancelled the timer; no stale expiry arrives later.
	assertNoEvent(t, bob, 100*time.Millisecond)
}

func TestTypingStopWithoutStart(t *testing.T) {
	h := New(zerolog.Nop())
	tracker := NewTypingTracker(h, time.Minute)
	bob := h.Subscribe("bob")
	defer bob.Close()

	// A stop for a user who never signalled start is harmless and still
	// broadcast; clients treat it as a no-op.
	tracker.SetTyping("alice", false)

	if te := recvTyping(t, bob); te.IsTyping {
		t.Fatalf("expected typing=false, got %+v", te)
	}
}
