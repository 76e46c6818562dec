package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/quicktask/internal/models"
	"github.com/google/uuid"
)

// defines methods for task store operations
type TaskRepositoryInterface interface {
	Pinger
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
	CountByOwner(ctx context.Context, ownerID string) (models.TaskCounts, error)
	PriorityDistribution(ctx context.Context, ownerID string) ([]models.PriorityCount, error)
	CompletedSince(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error)
}

type TaskRepository struct {
	sqlPinger
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{sqlPinger: sqlPinger{db: db}, db: db}
}

const taskColumns = `id, owner_id, title, description, priority, status, due_date, completed_at, created_at`

// Create assigns a fresh id to task and inserts it.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	task.ID = uuid.New().String()
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.Owner, task.Title, task.Description, string(task.Priority),
		string(task.Status), nullTime(task.DueDate), nullTime(task.CompletedAt), task.CreatedAt)
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListByOwner returns the owner's tasks newest first. Tasks created at the
// same instant keep insertion order.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, filter models.TaskFilter) ([]*models.Task, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1`)
	args := []any{ownerID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		fmt.Fprintf(&sb, " AND priority = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
		n := len(args)
		fmt.Fprintf(&sb, ` AND (LOWER(title) LIKE $%d ESCAPE '\' OR LOWER(description) LIKE $%d ESCAPE '\')`, n, n)
	}
	sb.WriteString(" ORDER BY created_at DESC, seq ASC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update overwrites the mutable fields of an existing task in one statement.
// id, owner_id and created_at are never written.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, priority = $3, status = $4,
	 due_date = $5, completed_at = $6 WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query, task.Title, task.Description, string(task.Priority),
		string(task.Status), nullTime(task.DueDate), nullTime(task.CompletedAt), task.ID)
	if err != nil {
		return err
	}
	return expectAffected(res, task.ID)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

// CountByOwner reads total and completed counts in a single query so the two
// numbers always describe the same snapshot.
func (r *TaskRepository) CountByOwner(ctx context.Context, ownerID string) (models.TaskCounts, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0)
	 FROM tasks WHERE owner_id = $2`
	var counts models.TaskCounts
	err := r.db.QueryRowContext(ctx, query, string(models.TaskStatusCompleted), ownerID).
		Scan(&counts.Total, &counts.Completed)
	return counts, err
}

func (r *TaskRepository) PriorityDistribution(ctx context.Context, ownerID string) ([]models.PriorityCount, error) {
	query := `SELECT priority, COUNT(*) FROM tasks WHERE owner_id = $1 GROUP BY priority`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.PriorityCount
	for rows.Next() {
		var pc models.PriorityCount
		var priority string
		if err := rows.Scan(&priority, &pc.Count); err != nil {
			return nil, err
		}
		pc.Priority = models.Priority(priority)
		stats = append(stats, pc)
	}
	return stats, rows.Err()
}

// CompletedSince returns completion times of the owner's completed tasks at
// or after since.
func (r *TaskRepository) CompletedSince(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error) {
	query := `SELECT completed_at FROM tasks
	 WHERE owner_id = $1 AND status = $2 AND completed_at IS NOT NULL`
	rows, err := r.db.QueryContext(ctx, query, ownerID, string(models.TaskStatusCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var completedAt time.Time
		if err := rows.Scan(&completedAt); err != nil {
			return nil, err
		}
		// filtered here: sqlite compares timestamps as text
		if !completedAt.Before(since) {
			times = append(times, completedAt.UTC())
		}
	}
	return times, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var priority, status string
	var dueDate, completedAt sql.NullTime
	err := row.Scan(
		&task.ID, &task.Owner, &task.Title, &task.Description, &priority, &status,
		&dueDate, &completedAt, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Priority = models.Priority(priority)
	task.Status = models.TaskStatus(status)
	task.DueDate = timePtr(dueDate)
	task.CompletedAt = timePtr(completedAt)
	task.CreatedAt = task.CreatedAt.UTC()
	return task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func expectAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}
