package models

// Stream event types emitted on the SSE channel.
const (
	EventMessageCreated = "message-created"
	EventMessageUpdated = "message-updated"
	EventTyping         = "typing"
	EventHeartbeat      = "heartbeat"
)

// Event is a single frame on the live broadcast channel. ID is a ULID unique
// per frame; only message events participate in the cursor contract, typing
// and heartbeat frames are fire-and-forget.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// TypingEvent is the payload of a typing frame.
type TypingEvent struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}
