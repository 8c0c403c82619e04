package store

import "errors"

// Typed store outcomes. Handlers match these with errors.Is and map them to
// HTTP statuses; anything else is treated as a transient store failure.
var (
	ErrUserExists      = errors.New("username already taken")
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrParentNotFound  = errors.New("parent message not found")
	ErrNotAuthor       = errors.New("requester is not the message author")
	ErrEmptyText       = errors.New("message text is empty")
)
