package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route at the root and again under /api.
func (h *Handler) NewRouter() http.Handler {
	router := mux.NewRouter()
	h.registerRoutes(router)
	h.registerRoutes(router.PathPrefix("/api").Subrouter())
	return h.loggingMiddleware(h.corsMiddleware(router))
}

func (h *Handler) registerRoutes(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.AuthMiddleware(h.Me)).Methods(http.MethodGet)

	r.HandleFunc("/tasks", h.AuthMiddleware(h.ListTasks)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.AuthMiddleware(h.CreateTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.GetTask)).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.UpdateTask)).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.DeleteTask)).Methods(http.MethodDelete)

	r.HandleFunc("/dashboard", h.AuthMiddleware(h.Dashboard)).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.AuthMiddleware(h.Stats)).Methods(http.MethodGet)
	r.HandleFunc("/stats/productivity", h.AuthMiddleware(h.Productivity)).Methods(http.MethodGet)
}
