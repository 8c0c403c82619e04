package models

import "time"

// Message represents a chat message. ID is assigned by the store's serial
// sequence and doubles as the resync cursor: ids are monotonic, never reused,
// and their order reflects creation order.
type Message struct {
	ID              int64              `json:"id"`
	AuthorID        int64              `json:"author_id"`
	Author          string             `json:"author"` // username, joined at read time
	Text            string             `json:"text"`
	CreatedAt       time.Time          `json:"created_at"`
	LastEditedAt    *time.Time         `json:"last_edited_at"`
	ParentMessageID *int64             `json:"parent_message_id,omitempty"` // threading
	EditHistory     []EditHistoryEntry `json:"edit_history"`
}

// EditHistoryEntry holds one superseded version of a message's text. Entries
// are append-only; the message's current text is never stored as an entry.
type EditHistoryEntry struct {
	OldText  string    `json:"old_text"`
	EditedAt time.Time `json:"edited_at"`
}
