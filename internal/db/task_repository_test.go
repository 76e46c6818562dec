package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/quicktask/internal/models"
	"github.com/google/uuid"
)

func newTask(owner, title string, createdAt time.Time) *models.Task {
	return &models.Task{
		Owner:       owner,
		Title:       title,
		Description: "Task description",
		Priority:    models.PriorityMedium,
		Status:      models.TaskStatusTodo,
		CreatedAt:   createdAt,
	}
}

func TestTaskRepository_Create_Get_Update_Delete(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()

	owner := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)
	due := now.Add(48 * time.Hour)
	task := newTask(owner, "First task", now)
	task.DueDate = &due

	// Create
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("TaskRepository.Create: %v", err)
	}
	if _, err := uuid.Parse(task.ID); err != nil {
		t.Fatalf("Create should assign a uuid, got %q", task.ID)
	}

	// GetByID
	got, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskRepository.GetByID: %v", err)
	}
	if got.ID != task.ID || got.Title != "First task" || got.Owner != owner ||
		got.Status != models.TaskStatusTodo || got.Priority != models.PriorityMedium {
		t.Errorf("GetByID mismatch: %#v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("DueDate = %v, want %v", got.DueDate, due)
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt should be nil, got %v", got.CompletedAt)
	}

	// Update
	completed := now.Add(time.Hour)
	got.Title = "Updated"
	got.Status = models.TaskStatusCompleted
	got.CompletedAt = &completed
	got.DueDate = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("TaskRepository.Update: %v", err)
	}
	after, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("TaskRepository.GetByID after update: %v", err)
	}
	if after.Title != "Updated" || after.Status != models.TaskStatusCompleted {
		t.Errorf("Update not applied: %#v", after)
	}
	if after.DueDate != nil {
		t.Errorf("DueDate should be cleared, got %v", after.DueDate)
	}
	if after.CompletedAt == nil || !after.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", after.CompletedAt, completed)
	}

	// Delete
	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("TaskRepository.Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on GetByID after delete, got %v", err)
	}
}

func TestTaskRepository_NonExistent(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()
	missing := uuid.New().String()

	if _, err := repo.GetByID(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
	task := newTask(uuid.New().String(), "Non-existent", time.Now().UTC())
	task.ID = missing
	if err := repo.Update(ctx, task); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepository_ListByOwner_OrderAndIsolation(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()

	owner := uuid.New().String()
	other := uuid.New().String()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	titles := []struct {
		title string
		at    time.Time
	}{
		{"oldest", base},
		{"tie-first", base.Add(time.Hour)},
		{"tie-second", base.Add(time.Hour)},
		{"newest", base.Add(2 * time.Hour)},
	}
	for _, tt := range titles {
		if err := repo.Create(ctx, newTask(owner, tt.title, tt.at)); err != nil {
			t.Fatalf("create %s: %v", tt.title, err)
		}
	}
	if err := repo.Create(ctx, newTask(other, "foreign", base.Add(3*time.Hour))); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	list, err := repo.ListByOwner(ctx, owner, models.TaskFilter{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	want := []string{"newest", "tie-first", "tie-second", "oldest"}
	if len(list) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(list))
	}
	for i, title := range want {
		if list[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, list[i].Title, title)
		}
		if list[i].Owner != owner {
			t.Errorf("position %d: foreign task leaked: %+v", i, list[i])
		}
	}
}

func TestTaskRepository_ListByOwner_Empty(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))

	list, err := repo.ListByOwner(context.Background(), uuid.New().String(), models.TaskFilter{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", list)
	}
}

func TestTaskRepository_ListByOwner_Filter(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New().String()
	now := time.Now().UTC()

	milk := newTask(owner, "Buy milk", now)
	milk.Priority = models.PriorityHigh
	report := newTask(owner, "Write report", now.Add(time.Second))
	report.Description = "quarterly MILK numbers"
	report.Status = models.TaskStatusInProgress
	gym := newTask(owner, "Gym", now.Add(2*time.Second))
	percent := newTask(owner, "100% done", now.Add(3*time.Second))
	for _, task := range []*models.Task{milk, report, gym, percent} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   []string
	}{
		{"by status", models.TaskFilter{Status: models.TaskStatusInProgress}, []string{"Write report"}},
		{"by priority", models.TaskFilter{Priority: models.PriorityHigh}, []string{"Buy milk"}},
		{"search title and description", models.TaskFilter{Search: "milk"}, []string{"Write report", "Buy milk"}},
		{"combined", models.TaskFilter{Search: "milk", Priority: models.PriorityHigh}, []string{"Buy milk"}},
		{"no match", models.TaskFilter{Search: "nothing"}, []string{}},
		{"underscore is literal", models.TaskFilter{Search: "_"}, []string{}},
		{"percent is literal", models.TaskFilter{Search: "%"}, []string{"100% done"}},
		{"percent inside text", models.TaskFilter{Search: "0% d"}, []string{"100% done"}},
		{"backslash is literal", models.TaskFilter{Search: `\`}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.ListByOwner(ctx, owner, tt.filter)
			if err != nil {
				t.Fatalf("ListByOwner: %v", err)
			}
			if len(list) != len(tt.want) {
				t.Fatalf("got %d tasks, want %d", len(list), len(tt.want))
			}
			for i := range tt.want {
				if list[i].Title != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, list[i].Title, tt.want[i])
				}
			}
		})
	}
}

func TestTaskRepository_Aggregates(t *testing.T) {
	repo := NewTaskRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)

	counts, err := repo.CountByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("CountByOwner on empty: %v", err)
	}
	if counts.Total != 0 || counts.Completed != 0 {
		t.Errorf("expected zero counts, got %+v", counts)
	}

	done := newTask(owner, "done", now)
	done.Status = models.TaskStatusCompleted
	done.Priority = models.PriorityHigh
	done.CompletedAt = &now
	oldDone := newTask(owner, "old done", now)
	oldDone.Status = models.TaskStatusCompleted
	longAgo := now.AddDate(0, 0, -30)
	oldDone.CompletedAt = &longAgo
	open := newTask(owner, "open", now)
	for _, task := range []*models.Task{done, oldDone, open, newTask(uuid.New().String(), "foreign", now)} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	counts, err = repo.CountByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("CountByOwner: %v", err)
	}
	if counts.Total != 3 || counts.Completed != 2 {
		t.Errorf("counts = %+v, want total 3 completed 2", counts)
	}

	stats, err := repo.PriorityDistribution(ctx, owner)
	if err != nil {
		t.Fatalf("PriorityDistribution: %v", err)
	}
	byPriority := map[models.Priority]int64{}
	for _, s := range stats {
		byPriority[s.Priority] = s.Count
	}
	if len(byPriority) != 2 || byPriority[models.PriorityHigh] != 1 || byPriority[models.PriorityMedium] != 2 {
		t.Errorf("unexpected distribution: %+v", stats)
	}

	times, err := repo.CompletedSince(ctx, owner, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("CompletedSince: %v", err)
	}
	if len(times) != 1 || !times[0].Equal(now) {
		t.Errorf("CompletedSince = %v, want [%v]", times, now)
	}
}
