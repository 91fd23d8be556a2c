package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Nowon11/Infinity-Cubes/internal/auth"
	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"github.com/Nowon11/Infinity-Cubes/internal/storage"
)

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a new account and seeds its save document
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if !validUsername(body.Username) {
		writeError(w, http.StatusBadRequest, "username must be 3-20 characters")
		return
	}
	if len(body.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if err := r.store.CreateUser(req.Context(), body.Username, hash); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	// New players start from the default gameplay document
	if err := r.store.SaveDocument(req.Context(), body.Username, domain.DefaultSaveDocument()); err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Registration successful!",
	})
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates a player and returns a session token
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := r.store.GetUserByUsername(req.Context(), body.Username)
	if err != nil || !auth.CheckPassword(body.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	isAdmin := user.Username == r.adminUsername
	token, err := r.auth.GenerateToken(user.ID, user.Username, isAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	r.store.UpdateUserLastLogin(req.Context(), user.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Login successful",
		"token":    token,
		"username": user.Username,
		"isAdmin":  isAdmin,
	})
}

// ChangePasswordRequest is the request body for password changes
type ChangePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleChangePassword verifies the current password and replaces it
func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	var body ChangePasswordRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || body.CurrentPassword == "" || body.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "all fields required")
		return
	}
	if len(body.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "new password must be at least 6 characters")
		return
	}

	user, err := r.store.GetUserByUsername(req.Context(), body.Username)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if !auth.CheckPassword(body.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}

	if err := r.store.UpdateUserPassword(req.Context(), body.Username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed successfully",
	})
}

// handleDeleteAccount removes an account and its save document
func (r *Router) handleDeleteAccount(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	if err := r.store.DeleteUser(req.Context(), body.Username); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "account deletion failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Account deleted successfully",
	})
}

// handleAccountInfo returns account metadata for a username
func (r *Router) handleAccountInfo(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" {
		writeError(w, http.StatusBadRequest, "username required")
		return
	}

	user, err := r.store.GetUserByUsername(req.Context(), body.Username)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"createdAt": user.CreatedAt,
		"lastLogin": user.LastLogin,
	})
}

// requireAdmin is middleware gating every privileged operation behind the
// single configured admin account. Non-admin callers get a 403 and the
// handler never runs, so no state changes and nothing is broadcast.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims := r.getAuthClaims(req)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.IsAdmin || claims.Username != r.adminUsername {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, req)
	}
}

// getAuthClaims extracts and validates the JWT from the Authorization header
func (r *Router) getAuthClaims(req *http.Request) *auth.Claims {
	authHeader := req.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil
	}

	return claims
}
