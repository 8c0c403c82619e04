package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/pratik11500/Nest/internal/hub"
	"github.com/pratik11500/Nest/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store     store.DataStore
	hub       *hub.Hub
	typing    *hub.TypingTracker
	logger    zerolog.Logger
	jwtSecret []byte

	// Push connection timing. Defaults suit production; tests shorten them.
	pollInterval      time.Duration
	heartbeatInterval time.Duration

	// How recently a user must have been active to count as online.
	presenceWindow time.Duration

	// Page size for the anonymous initial message load.
	recentPageSize int
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(ds store.DataStore, h *hub.Hub, typing *hub.TypingTracker, logger zerolog.Logger, jwtSecret []byte) *Handler {
	return &Handler{
		store:             ds,
		hub:               h,
		typing:            typing,
		logger:            logger,
		jwtSecret:         jwtSecret,
		pollInterval:      time.Second,
		heartbeatInterval: 15 * time.Second,
		presenceWindow:    5 * time.Minute,
		recentPageSize:    100,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
