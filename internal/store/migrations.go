package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// schema is applied idempotently at startup. Message ids come from a serial
// sequence so id order reflects creation order and ids are never reused.
// Deleting a user cascades to their messages and edit history; deleting a
// message (only via that cascade) nulls out replies' parent references.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	email TEXT,
	bio TEXT,
	profile_picture TEXT,
	last_active TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_edited_at TIMESTAMPTZ,
	parent_message_id BIGINT REFERENCES messages(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS edit_history (
	id BIGSERIAL PRIMARY KEY,
	message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	old_text TEXT NOT NULL,
	edited_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id);
CREATE INDEX IF NOT EXISTS idx_edit_history_message ON edit_history(message_id);
CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
