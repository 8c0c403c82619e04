package store

import (
	"context"
	"time"

	"github.com/pratik11500/Nest/internal/models"
)

// DataStore defines the interface for persistent storage of users, messages,
// and message edit history. Both PostgresStore and SQLiteStore implement it.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	TouchLastActive(ctx context.Context, userID int64) error
	ListOnlineUsers(ctx context.Context, window time.Duration) ([]models.OnlineUser, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateEmail(ctx context.Context, userID int64, email string) error
	UpdateProfile(ctx context.Context, userID int64, bio, profilePicture string) error
	DeleteUser(ctx context.Context, userID int64) error

	// Message operations. ListMessages returns messages with id > sinceID in
	// strictly ascending id order, each hydrated with its author's username
	// and full edit history. excludeAuthorID > 0 drops that author's messages
	// (the push loop's self-filter); limit > 0 caps the result to the most
	// recent limit messages, still ascending.
	CreateMessage(ctx context.Context, authorID int64, text string, parentID *int64) (*models.Message, error)
	ListMessages(ctx context.Context, sinceID, excludeAuthorID int64, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	EditMessage(ctx context.Context, messageID, requesterID int64, newText string) (*models.Message, error)
	DeleteMessagesByAuthor(ctx context.Context, authorID int64) (int64, error)
}
