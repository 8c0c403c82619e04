package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pratik11500/Nest/internal/auth"
	"github.com/pratik11500/Nest/internal/metrics"
	"github.com/pratik11500/Nest/internal/models"
	"github.com/pratik11500/Nest/internal/store"
)

const tokenTTL = 24 * time.Hour

// AuthRequest represents the register/login request body.
type AuthRequest struct {
	Action   string `json:"action"` // "register" or "login"
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents a successful register/login response.
type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// AuthUser is the identity echoed back on register/login.
type AuthUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Auth handles registration and login on a single endpoint, dispatched by the
// action field.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Action == "" || req.Username == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "missing fields")
		return
	}

	switch req.Action {
	case "register":
		h.register(w, r, req)
	case "login":
		h.login(w, r, req)
	default:
		h.Error(w, http.StatusBadRequest, "invalid action")
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, req AuthRequest) {
	if len(req.Username) < 3 || len(req.Password) < 6 {
		h.Error(w, http.StatusBadRequest, "invalid username or password length")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, string(hash))
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			h.Error(w, http.StatusBadRequest, "username already taken")
			return
		}
		h.logger.Error().Err(err).Msg("create user failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	token, err := auth.SignJWT(h.jwtSecret, user.ID, user.Username, tokenTTL)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	if err := h.store.TouchLastActive(r.Context(), user.ID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("touch last_active failed")
	}

	metrics.UsersRegistered.Inc()
	h.JSON(w, http.StatusCreated, AuthResponse{
		Token: token,
		User:  AuthUser{ID: user.ID, Username: user.Username},
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, req AuthRequest) {
	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.Error(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error().Err(err).Msg("user lookup failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.SignJWT(h.jwtSecret, user.ID, user.Username, tokenTTL)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sign token")
		return
	}

	if err := h.store.TouchLastActive(r.Context(), user.ID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("touch last_active failed")
	}

	h.JSON(w, http.StatusOK, AuthResponse{
		Token: token,
		User:  AuthUser{ID: user.ID, Username: user.Username},
	})
}

// verifyPassword re-checks the caller's current password before sensitive
// account changes.
func (h *Handler) verifyPassword(r *http.Request, userID int64, password string) (*models.User, bool, error) {
	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, false, err
	}
	ok := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	return user, ok, nil
}
