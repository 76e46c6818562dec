package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/quicktask/internal/auth"
	"github.com/chepyr/quicktask/internal/db"
	"github.com/chepyr/quicktask/internal/tasks"
)

const (
	maxBodyBytes          = 1 << 20 // 1MB
	defaultRequestTimeout = 5 * time.Second
)

type Handler struct {
	Tasks          *tasks.Service
	UserRepo       db.UserRepositoryInterface
	Tokens         *auth.TokenManager
	Passwords      *auth.PasswordHasher
	RateLimiter    *RateLimiter
	Logger         *slog.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func (h *Handler) timeout() time.Duration {
	if h.RequestTimeout > 0 {
		return h.RequestTimeout
	}
	return defaultRequestTimeout
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type errorResponse struct {
	Error string `json:"error"`
}

func sendError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps task service errors to HTTP responses. Store
// failures are logged and reported with a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *tasks.ValidationError
	switch {
	case errors.As(err, &verr):
		sendError(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, tasks.ErrNotFound):
		sendError(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, tasks.ErrUnauthorized):
		sendError(w, "User not authorized", http.StatusUnauthorized)
	default:
		h.logger().Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}

// decodeJSON enforces the JSON content type and body size limit before
// decoding into dst. It writes the error response itself and reports false
// on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}
