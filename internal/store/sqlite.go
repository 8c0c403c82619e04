package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pratik11500/Nest/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs development and
// tests; write transactions open immediately so concurrent edits of the same
// message serialize at the database level.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/nest.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/nest.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		email TEXT DEFAULT '',
		bio TEXT DEFAULT '',
		profile_picture TEXT DEFAULT '',
		last_active DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_edited_at DATETIME,
		parent_message_id INTEGER REFERENCES messages(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS edit_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		old_text TEXT NOT NULL,
		edited_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id);
	CREATE INDEX IF NOT EXISTS idx_edit_history_message ON edit_history(message_id);
	CREATE INDEX IF NOT EXISTS idx_users_last_active ON users(last_active);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	return errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)
	`, username, passwordHash, now)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lastActive sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Bio,
		&user.ProfilePicture,
		&lastActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if lastActive.Valid {
		user.LastActive = &lastActive.Time
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password, email, bio, profile_picture, last_active, created_at
		FROM users WHERE username = ?
	`, username))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password, email, bio, profile_picture, last_active, created_at
		FROM users WHERE id = ?
	`, id))
}

// TouchLastActive updates the user's presence timestamp.
func (s *SQLiteStore) TouchLastActive(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_active = ? WHERE id = ?
	`, time.Now().UTC(), userID)
	return err
}

// ListOnlineUsers returns users active within the given window, most recent first.
func (s *SQLiteStore) ListOnlineUsers(ctx context.Context, window time.Duration) ([]models.OnlineUser, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, last_active
		FROM users
		WHERE last_active > ?
		ORDER BY last_active DESC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.OnlineUser{}
	for rows.Next() {
		var u models.OnlineUser
		if err := rows.Scan(&u.Username, &u.LastActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdatePassword replaces the user's password hash.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return s.updateUserColumn(ctx, `UPDATE users SET password = ? WHERE id = ?`, passwordHash, userID)
}

// UpdateEmail replaces the user's email address.
func (s *SQLiteStore) UpdateEmail(ctx context.Context, userID int64, email string) error {
	return s.updateUserColumn(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, userID)
}

// UpdateProfile replaces the user's bio and profile picture.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, userID int64, bio, profilePicture string) error {
	return s.updateUserColumn(ctx, `UPDATE users SET bio = ?, profile_picture = ? WHERE id = ?`, bio, profilePicture, userID)
}

func (s *SQLiteStore) updateUserColumn(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. Messages and edit history cascade.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID int64) error {
	return s.updateUserColumn(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

// CreateMessage inserts a new message and touches the author's presence
// timestamp.
func (s *SQLiteStore) CreateMessage(ctx context.Context, authorID int64, text string, parentID *int64) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if parentID != nil {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id = ?`, *parentID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, ErrParentNotFound
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (author_id, text, created_at, parent_message_id)
		VALUES (?, ?, ?, ?)
	`, authorID, text, now, parentID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, now, authorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}

// ListMessages returns hydrated messages with id > sinceID in ascending order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sinceID, excludeAuthorID int64, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.author_id, u.username, m.text, m.created_at, m.last_edited_at, m.parent_message_id
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id > ? AND (? = 0 OR m.author_id <> ?)
		ORDER BY m.id`
	args := []any{sinceID, excludeAuthorID, excludeAuthorID}
	if limit > 0 {
		query += ` DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 {
		reverseMessages(messages)
	}

	if err := s.hydrateHistory(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage returns one hydrated message.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.author_id, u.username, m.text, m.created_at, m.last_edited_at, m.parent_message_id
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id = ?
	`, id)

	msg := &models.Message{EditHistory: []models.EditHistoryEntry{}}
	var lastEdited sql.NullTime
	var parentID sql.NullInt64
	err := row.Scan(&msg.ID, &msg.AuthorID, &msg.Author, &msg.Text, &msg.CreatedAt, &lastEdited, &parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if lastEdited.Valid {
		msg.LastEditedAt = &lastEdited.Time
	}
	if parentID.Valid {
		msg.ParentMessageID = &parentID.Int64
	}

	msgs := []models.Message{*msg}
	if err := s.hydrateHistory(ctx, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// EditMessage archives the current text into edit_history and replaces it
// with newText, atomically.
func (s *SQLiteStore) EditMessage(ctx context.Context, messageID, requesterID int64, newText string) (*models.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, ErrEmptyText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var authorID int64
	var oldText string
	err = tx.QueryRowContext(ctx, `
		SELECT author_id, text FROM messages WHERE id = ?
	`, messageID).Scan(&authorID, &oldText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if authorID != requesterID {
		return nil, ErrNotAuthor
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edit_history (message_id, old_text, edited_at) VALUES (?, ?, ?)
	`, messageID, oldText, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET text = ?, last_edited_at = ? WHERE id = ?
	`, newText, now, messageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, messageID)
}

// DeleteMessagesByAuthor removes all messages authored by the given user and
// returns how many were deleted.
func (s *SQLiteStore) DeleteMessagesByAuthor(ctx context.Context, authorID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE author_id = ?`, authorID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// hydrateHistory attaches edit history entries to the given messages.
func (s *SQLiteStore) hydrateHistory(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	placeholders := make([]string, len(messages))
	args := make([]any, len(messages))
	byID := make(map[int64]*models.Message, len(messages))
	for i := range messages {
		placeholders[i] = "?"
		args[i] = messages[i].ID
		byID[messages[i].ID] = &messages[i]
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, old_text, edited_at
		FROM edit_history
		WHERE message_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY message_id, edited_at
	`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var msgID int64
		var entry models.EditHistoryEntry
		if err := rows.Scan(&msgID, &entry.OldText, &entry.EditedAt); err != nil {
			return err
		}
		if msg, ok := byID[msgID]; ok {
			msg.EditHistory = append(msg.EditHistory, entry)
		}
	}
	return rows.Err()
}

func scanSQLiteMessage(rows *sql.Rows) (*models.Message, error) {
	msg := &models.Message{EditHistory: []models.EditHistoryEntry{}}
	var lastEdited sql.NullTime
	var parentID sql.NullInt64
	err := rows.Scan(
		&msg.ID,
		&msg.AuthorID,
		&msg.Author,
		&msg.Text,
		&msg.CreatedAt,
		&lastEdited,
		&parentID,
	)
	if err != nil {
		return nil, err
	}
	if lastEdited.Valid {
		msg.LastEditedAt = &lastEdited.Time
	}
	if parentID.Valid {
		msg.ParentMessageID = &parentID.Int64
	}
	return msg, nil
}
