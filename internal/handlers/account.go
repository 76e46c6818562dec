package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/quicktask/internal/db"
	"github.com/chepyr/quicktask/internal/models"
)

const (
	minPasswordLength = 6
	// bcrypt rejects longer input
	maxPasswordLength = 72
	maxUsernameLength = 50
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.logger().Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
		sendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)

	switch {
	case input.Username == "":
		sendError(w, "Username is required", http.StatusBadRequest)
		return
	case len(input.Username) > maxUsernameLength:
		sendError(w, "Username too long", http.StatusBadRequest)
		return
	case !emailPattern.MatchString(input.Email):
		sendError(w, "Invalid email", http.StatusBadRequest)
		return
	case len(input.Password) < minPasswordLength:
		sendError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	case len(input.Password) > maxPasswordLength:
		sendError(w, "Password must be at most 72 bytes long", http.StatusBadRequest)
		return
	}

	hash, err := h.Passwords.Hash(input.Password)
	if err != nil {
		h.logger().Error("hash password", "error", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := h.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			sendError(w, "User already exists", http.StatusConflict)
			return
		}
		h.logger().Error("create user", "error", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger().Info("user registered", "user_id", user.ID)
	h.sendAccount(w, http.StatusCreated, user)
}

// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(ip) {
		h.logger().Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
		sendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" || input.Password == "" {
		sendError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		h.logger().Error("get user by email", "error", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil || !h.Passwords.Compare(user.PasswordHash, input.Password) {
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.logger().Info("user logged in", "user_id", user.ID)
	h.sendAccount(w, http.StatusOK, user)
}

// GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	user, err := h.UserRepo.GetByID(ctx, UserIDFromContext(r.Context()))
	if errors.Is(err, db.ErrNotFound) {
		sendError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger().Error("get user by id", "error", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) sendAccount(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.logger().Error("issue token", "error", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, accountResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
