package models

import "time"

// User represents a registered chat user.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	Email          string     `json:"email,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	LastActive     *time.Time `json:"last_active,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// OnlineUser is the presence view of a user: anyone whose last_active
// timestamp falls inside the presence window.
type OnlineUser struct {
	Username   string    `json:"username"`
	LastActive time.Time `json:"last_active"`
}
