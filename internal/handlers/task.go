package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chepyr/quicktask/internal/tasks"
	"github.com/gorilla/mux"
)

// GET /tasks?status=&priority=&search=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	q := r.URL.Query()
	list, err := h.Tasks.List(ctx, UserIDFromContext(r.Context()), tasks.ListOptions{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Status      string `json:"status"`
		DueDate     string `json:"dueDate"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	task, err := h.Tasks.Create(ctx, UserIDFromContext(r.Context()), tasks.CreateInput{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+task.ID)
	writeJSON(w, http.StatusCreated, task)
}

// GET /tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	task, err := h.Tasks.Get(ctx, UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// PUT/PATCH /tasks/{id}. Absent fields are left unchanged; "dueDate": null
// clears the due date.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Priority    *string         `json:"priority"`
		Status      *string         `json:"status"`
		DueDate     json.RawMessage `json:"dueDate"`
	}
	if !decodeJSON(w, r, &input) {
		return
	}

	update := tasks.UpdateInput{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
	}
	if len(input.DueDate) > 0 {
		if string(input.DueDate) == "null" {
			update.ClearDueDate = true
		} else {
			var due string
			if err := json.Unmarshal(input.DueDate, &due); err != nil {
				sendError(w, "dueDate must be a string or null", http.StatusBadRequest)
				return
			}
			update.DueDate = &due
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	task, err := h.Tasks.Update(ctx, UserIDFromContext(r.Context()), mux.Vars(r)["id"], update)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DELETE /tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	id, err := h.Tasks.Delete(ctx, UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
