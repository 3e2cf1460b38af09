// ABOUTME: HTTP API handlers for user registration, login and the current user
// ABOUTME: Issues JWTs on login; passwords are stored as bcrypt hashes

package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Beykus-Y/beykusaysite/internal/auth"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

// RegisterRequest is the JSON request body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the JSON request body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the JSON form of a user.
type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResponse is the JSON response for POST /api/auth/login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// handleRegister handles POST /api/auth/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := g.validate.decode(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if len([]rune(req.Name)) < 2 {
		g.sendJSONError(w, http.StatusBadRequest, "name must be at least 2 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.logger.Error("failed to hash password", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &store.User{Name: req.Name, Email: strings.TrimSpace(req.Email), PasswordHash: hash}
	err = g.store.CreateUser(r.Context(), user)
	if errors.Is(err, store.ErrDuplicateEmail) {
		g.sendJSONError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		g.logger.Error("failed to create user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]UserResponse{"user": userResponse(user)})
}

// handleLogin handles POST /api/auth/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := g.validate.decode(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := g.store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		g.logger.Error("failed to look up user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := g.tokens.Generate(user.ID, g.config.Auth.TokenTTL)
	if err != nil {
		g.logger.Error("failed to generate token", "error", err, "user_id", user.ID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: userResponse(user)})
}

// handleMe handles GET /api/auth/me.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	a := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, UserResponse{ID: a.UserID, Name: a.Name, Email: a.Email})
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}
