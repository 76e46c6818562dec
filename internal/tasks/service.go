// Package tasks implements per-user task management: ownership checks, CRUD,
// the dashboard aggregate and completion analytics.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chepyr/quicktask/internal/db"
	"github.com/chepyr/quicktask/internal/models"
	"golang.org/x/sync/singleflight"
)

// DashboardCache stores computed dashboards between mutations.
type DashboardCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo    db.TaskRepositoryInterface
	cache   DashboardCache
	logger  *slog.Logger
	now     func() time.Time
	sfGroup singleflight.Group

	// userID -> *atomic.Uint64, bumped on every task mutation
	generations sync.Map
}

type Option func(*Service)

func WithCache(c DashboardCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used for createdAt and completedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo db.TaskRepositoryInterface, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamps are kept at millisecond precision, the coarsest of the stores
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// List returns the requester's tasks, most recently created first.
func (s *Service) List(ctx context.Context, requesterID string, opts ListOptions) ([]*models.Task, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	status, err := parseOptionalStatus(opts.Status)
	if err != nil {
		return nil, err
	}
	priority, err := parseOptionalPriority(opts.Priority)
	if err != nil {
		return nil, err
	}

	list, err := s.repo.ListByOwner(ctx, requesterID, models.TaskFilter{
		Status:   status,
		Priority: priority,
		Search:   opts.Search,
	})
	if err != nil {
		return nil, storeError("list", err)
	}
	if list == nil {
		list = []*models.Task{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, requesterID, taskID string) (*models.Task, error) {
	return s.authorize(ctx, requesterID, taskID)
}

func (s *Service) Create(ctx context.Context, requesterID string, in CreateInput) (*models.Task, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return nil, err
	}
	priority, err := parseOptionalPriority(in.Priority)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	status, err := parseOptionalStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = models.TaskStatusTodo
	}
	dueDate, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	task := &models.Task{
		Title:       title,
		Description: desc,
		Priority:    priority,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		Owner:       requesterID,
	}
	if status == models.TaskStatusCompleted {
		task.CompletedAt = &now
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, storeError("create", err)
	}
	s.invalidateDashboard(ctx, requesterID)
	s.logger.Debug("task created", "task_id", task.ID, "owner", requesterID)
	return task, nil
}

// Update applies the supplied fields to an owned task. Every field is
// validated before anything is written.
func (s *Service) Update(ctx context.Context, requesterID, taskID string, in UpdateInput) (*models.Task, error) {
	existing, err := s.authorize(ctx, requesterID, taskID)
	if err != nil {
		return nil, err
	}
	updated := *existing

	if in.Title != nil {
		if updated.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if updated.Description, err = validateDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	if in.Priority != nil {
		priority, ok := ParsePriority(*in.Priority)
		if !ok {
			return nil, invalid("priority", "Invalid priority value")
		}
		updated.Priority = priority
	}
	if in.Status != nil {
		status, ok := ParseStatus(*in.Status)
		if !ok {
			return nil, invalid("status", "Invalid status value")
		}
		updated.Status = status
	}
	switch {
	case in.ClearDueDate:
		updated.DueDate = nil
	case in.DueDate != nil:
		if updated.DueDate, err = parseDueDate(*in.DueDate); err != nil {
			return nil, err
		}
	}

	if updated.Status != existing.Status {
		if updated.Status == models.TaskStatusCompleted {
			now := s.timestamp()
			updated.CompletedAt = &now
		} else {
			updated.CompletedAt = nil
		}
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// deleted between lookup and write
			return nil, ErrNotFound
		}
		return nil, storeError("update", err)
	}
	s.invalidateDashboard(ctx, requesterID)
	return &updated, nil
}

// Delete removes an owned task and returns its id.
func (s *Service) Delete(ctx context.Context, requesterID, taskID string) (string, error) {
	if _, err := s.authorize(ctx, requesterID, taskID); err != nil {
		return "", err
	}
	if err := s.repo.Delete(ctx, taskID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", storeError("delete", err)
	}
	s.invalidateDashboard(ctx, requesterID)
	return taskID, nil
}

// authorize loads a task and checks that requesterID owns it. Existence is
// checked first: a missing id is ErrNotFound for every caller.
func (s *Service) authorize(ctx context.Context, requesterID, taskID string) (*models.Task, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	task, err := s.repo.GetByID(ctx, taskID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError("get", err)
	}
	if task.Owner != requesterID {
		return nil, ErrUnauthorized
	}
	return task, nil
}
