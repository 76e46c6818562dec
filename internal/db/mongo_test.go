package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/chepyr/quicktask/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// setupMongo connects to MONGODB_TEST_URI and returns a throwaway database.
// Tests are skipped when no server is configured.
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, database, err := ConnectMongo(ctx, uri, "quicktask_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	if err := EnsureMongoIndexes(ctx, database); err != nil {
		t.Fatalf("EnsureMongoIndexes: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return database
}

func TestMongoTaskRepository_CRUD(t *testing.T) {
	database := setupMongo(t)
	repo := NewMongoTaskRepository(database)
	ctx := context.Background()
	owner := primitive.NewObjectID().Hex()
	now := time.Now().UTC().Truncate(time.Millisecond)

	task := newTask(owner, "Buy milk", now)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !primitive.IsValidObjectID(task.ID) {
		t.Fatalf("Create should assign an ObjectID, got %q", task.ID)
	}

	got, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Buy milk" || got.Owner != owner || !got.CreatedAt.Equal(now) {
		t.Errorf("GetByID mismatch: %+v", got)
	}

	got.Status = models.TaskStatusCompleted
	got.CompletedAt = &now
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	counts, err := repo.CountByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("CountByOwner: %v", err)
	}
	if counts.Total != 1 || counts.Completed != 1 {
		t.Errorf("counts = %+v", counts)
	}
	stats, err := repo.PriorityDistribution(ctx, owner)
	if err != nil {
		t.Fatalf("PriorityDistribution: %v", err)
	}
	if len(stats) != 1 || stats[0].Priority != models.PriorityMedium || stats[0].Count != 1 {
		t.Errorf("stats = %+v", stats)
	}
	times, err := repo.CompletedSince(ctx, owner, now.Add(-time.Hour))
	if err != nil || len(times) != 1 {
		t.Errorf("CompletedSince = %v, %v", times, err)
	}

	if err := repo.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, "not-an-object-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestMongoTaskRepository_ListOrder(t *testing.T) {
	database := setupMongo(t)
	repo := NewMongoTaskRepository(database)
	ctx := context.Background()
	owner := primitive.NewObjectID().Hex()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, tt := range []struct {
		title string
		at    time.Time
	}{{"oldest", base}, {"tie-first", base.Add(time.Hour)}, {"tie-second", base.Add(time.Hour)}} {
		if err := repo.Create(ctx, newTask(owner, tt.title, tt.at)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := repo.ListByOwner(ctx, owner, models.TaskFilter{})
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	want := []string{"tie-first", "tie-second", "oldest"}
	for i, title := range want {
		if list[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, list[i].Title, title)
		}
	}
}

func TestMongoUserRepository(t *testing.T) {
	database := setupMongo(t)
	repo := NewMongoUserRepository(database)
	ctx := context.Background()

	user := &models.User{Username: "a", Email: "mongo@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &models.User{Username: "b", Email: "mongo@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	got, err := repo.GetByID(ctx, user.ID)
	if err != nil || got.Email != user.Email {
		t.Errorf("GetByID = %+v, %v", got, err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
