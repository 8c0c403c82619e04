package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pratik11500/Nest/internal/api/middleware"
	"github.com/pratik11500/Nest/internal/store"
)

// MeResponse represents the caller's own profile.
type MeResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	Bio            string `json:"bio,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// UpdateAccountRequest carries account changes; currentPassword is always
// required. Field names mirror the browser client.
type UpdateAccountRequest struct {
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword,omitempty"`
	NewEmail        string  `json:"newEmail,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	ProfilePicture  *string `json:"profilePicture,omitempty"`
}

// DeleteAccountRequest confirms account deletion with the current password.
type DeleteAccountRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Msg("profile lookup failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	h.JSON(w, http.StatusOK, MeResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Bio:            user.Bio,
		ProfilePicture: user.ProfilePicture,
	})
}

// UpdateAccount changes the caller's password, email, or profile fields after
// verifying the current password.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" {
		h.Error(w, http.StatusBadRequest, "current password is required")
		return
	}

	_, ok, err := h.verifyPassword(r, claims.UserID, req.CurrentPassword)
	if err != nil {
		h.logger.Error().Err(err).Msg("account lookup failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		h.Error(w, http.StatusUnauthorized, "incorrect current password")
		return
	}

	switch {
	case req.NewPassword != "":
		if len(req.NewPassword) < 6 {
			h.Error(w, http.StatusBadRequest, "new password must be at least 6 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		if err := h.store.UpdatePassword(r.Context(), claims.UserID, string(hash)); err != nil {
			h.logger.Error().Err(err).Msg("password update failed")
			h.Error(w, http.StatusInternalServerError, "server error")
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"message": "password updated"})

	case req.NewEmail != "":
		if !isValidEmail(req.NewEmail) {
			h.Error(w, http.StatusBadRequest, "invalid email format")
			return
		}
		if err := h.store.UpdateEmail(r.Context(), claims.UserID, req.NewEmail); err != nil {
			h.logger.Error().Err(err).Msg("email update failed")
			h.Error(w, http.StatusInternalServerError, "server error")
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"message": "email updated"})

	case req.Bio != nil || req.ProfilePicture != nil:
		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "server error")
			return
		}
		bio, picture := user.Bio, user.ProfilePicture
		if req.Bio != nil {
			bio = *req.Bio
		}
		if req.ProfilePicture != nil {
			picture = *req.ProfilePicture
		}
		if err := h.store.UpdateProfile(r.Context(), claims.UserID, bio, picture); err != nil {
			h.logger.Error().Err(err).Msg("profile update failed")
			h.Error(w, http.StatusInternalServerError, "server error")
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"message": "profile updated"})

	default:
		h.Error(w, http.StatusBadRequest, "no valid update provided")
	}
}

// DeleteAccount removes the caller's account. Their messages and edit history
// go with it via foreign key cascade.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" {
		h.Error(w, http.StatusBadRequest, "current password is required")
		return
	}

	_, ok, err := h.verifyPassword(r, claims.UserID, req.CurrentPassword)
	if err != nil {
		h.logger.Error().Err(err).Msg("account lookup failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		h.Error(w, http.StatusUnauthorized, "incorrect current password")
		return
	}

	if err := h.store.DeleteUser(r.Context(), claims.UserID); err != nil {
		h.logger.Error().Err(err).Msg("account deletion failed")
		h.Error(w, http.StatusInternalServerError, "server error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
