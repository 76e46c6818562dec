package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/chepyr/quicktask/internal/tasks"
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	d, err := h.Tasks.Dashboard(ctx, UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	stats, err := h.Tasks.CompletionStats(ctx, UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /stats/productivity?days=N
func (h *Handler) Productivity(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, fmt.Sprintf("days must be between 1 and %d", tasks.MaxProductivityDays), http.StatusBadRequest)
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	report, err := h.Tasks.Productivity(ctx, UserIDFromContext(r.Context()), days)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	if err := h.Tasks.Ping(ctx); err != nil {
		h.logger().Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
