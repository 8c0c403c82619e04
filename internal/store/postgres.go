package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pratik11500/Nest/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password)
		VALUES ($1, $2)
		RETURNING id, username, password, COALESCE(email, ''), COALESCE(bio, ''), COALESCE(profile_picture, ''), last_active, created_at
	`, username, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Bio,
		&user.ProfilePicture,
		&user.LastActive,
		&user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&user.Bio,
		&user.ProfilePicture,
		&user.LastActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password, COALESCE(email, ''), COALESCE(bio, ''), COALESCE(profile_picture, ''), last_active, created_at
		FROM users WHERE username = $1
	`, username))
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password, COALESCE(email, ''), COALESCE(bio, ''), COALESCE(profile_picture, ''), last_active, created_at
		FROM users WHERE id = $1
	`, id))
}

// TouchLastActive updates the user's presence timestamp.
func (s *PostgresStore) TouchLastActive(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET last_active = NOW() WHERE id = $1
	`, userID)
	return err
}

// ListOnlineUsers returns users active within the given window, most recent first.
func (s *PostgresStore) ListOnlineUsers(ctx context.Context, window time.Duration) ([]models.OnlineUser, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, last_active
		FROM users
		WHERE last_active > NOW() - make_interval(secs => $1)
		ORDER BY last_active DESC
	`, window.Seconds())
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
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password = $1 WHERE id = $2
	`, passwordHash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateEmail replaces the user's email address.
func (s *PostgresStore) UpdateEmail(ctx context.Context, userID int64, email string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET email = $1 WHERE id = $2
	`, email, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile replaces the user's bio and profile picture.
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID int64, bio, profilePicture string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET bio = $1, profile_picture = $2 WHERE id = $3
	`, bio, profilePicture, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. The user's messages and their edit history are
// removed by foreign key cascade.
func (s *PostgresStore) DeleteUser(ctx context.Context, userID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateMessage inserts a new message and touches the author's presence
// timestamp. The serial id sequence guarantees creation order.
func (s *PostgresStore) CreateMessage(ctx context.Context, authorID int64, text string, parentID *int64) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if parentID != nil {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, *parentID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrParentNotFound
		}
	}

	msg := &models.Message{AuthorID: authorID, Text: text, ParentMessageID: parentID, EditHistory: []models.EditHistoryEntry{}}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (author_id, text, parent_message_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, (SELECT username FROM users WHERE id = $1)
	`, authorID, text, parentID).Scan(&msg.ID, &msg.CreatedAt, &msg.Author)
	if err != nil {
		return nil, err
	}

	// Sending a message is a presence signal.
	if _, err := tx.Exec(ctx, `UPDATE users SET last_active = NOW() WHERE id = $1`, authorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns hydrated messages with id > sinceID in ascending order.
func (s *PostgresStore) ListMessages(ctx context.Context, sinceID, excludeAuthorID int64, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.author_id, u.username, m.text, m.created_at, m.last_edited_at, m.parent_message_id
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id > $1 AND ($2::bigint = 0 OR m.author_id <> $2)
		ORDER BY m.id`
	args := []any{sinceID, excludeAuthorID}
	if limit > 0 {
		// Most recent page, returned ascending.
		query += ` DESC LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessageRows(rows)
	if err != nil {
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
func (s *PostgresStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	msg := &models.Message{EditHistory: []models.EditHistoryEntry{}}
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.author_id, u.username, m.text, m.created_at, m.last_edited_at, m.parent_message_id
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id = $1
	`, id).Scan(&msg.ID, &msg.AuthorID, &msg.Author, &msg.Text, &msg.CreatedAt, &msg.LastEditedAt, &msg.ParentMessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	msgs := []models.Message{*msg}
	if err := s.hydrateHistory(ctx, msgs); err != nil {
		return nil, err
	}
	return &msgs[0], nil
}

// EditMessage archives the current text into edit_history and replaces it with
// newText, atomically. The row lock serializes concurrent edits of the same
// message; edits of different messages proceed in parallel.
func (s *PostgresStore) EditMessage(ctx context.Context, messageID, requesterID int64, newText string) (*models.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil, ErrEmptyText
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var authorID int64
	var oldText string
	err = tx.QueryRow(ctx, `
		SELECT author_id, text FROM messages WHERE id = $1 FOR UPDATE
	`, messageID).Scan(&authorID, &oldText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if authorID != requesterID {
		return nil, ErrNotAuthor
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO edit_history (message_id, old_text, edited_at) VALUES ($1, $2, $3)
	`, messageID, oldText, now); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE messages SET text = $1, last_edited_at = $2 WHERE id = $3
	`, newText, now, messageID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, messageID)
}

// DeleteMessagesByAuthor removes all messages authored by the given user and
// returns how many were deleted. Edit history rows cascade.
func (s *PostgresStore) DeleteMessagesByAuthor(ctx context.Context, authorID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// hydrateHistory attaches edit history entries to the given messages.
func (s *PostgresStore) hydrateHistory(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int64, len(messages))
	byID := make(map[int64]*models.Message, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		byID[messages[i].ID] = &messages[i]
	}

	rows, err := s.pool.Query(ctx, `
		SELECT message_id, old_text, edited_at
		FROM edit_history
		WHERE message_id = ANY($1)
		ORDER BY message_id, edited_at
	`, ids)
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

// scanMessageRows scans message rows without history hydration.
func scanMessageRows(rows pgx.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		msg := models.Message{EditHistory: []models.EditHistoryEntry{}}
		err := rows.Scan(
			&msg.ID,
			&msg.AuthorID,
			&msg.Author,
			&msg.Text,
			&msg.CreatedAt,
			&msg.LastEditedAt,
			&msg.ParentMessageID,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
