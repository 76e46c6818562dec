package tasks

import (
	"strings"
	"time"

	"github.com/chepyr/quicktask/internal/models"
)

type CreateInput struct {
	Title       string
	Description string
	Priority    string
	Status      string
	DueDate     string
}

// UpdateInput holds a partial update. Nil fields keep their stored value;
// ClearDueDate removes the due date.
type UpdateInput struct {
	Title        *string
	Description  *string
	Priority     *string
	Status       *string
	DueDate      *string
	ClearDueDate bool
}

type ListOptions struct {
	Status   string
	Priority string
	Search   string
}

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// ParseStatus converts user input into a status value.
func ParseStatus(s string) (models.TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "to do", "to_do", "to-do":
		return models.TaskStatusTodo, true
	case "in progress", "in-progress", "in_progress", "inprogress":
		return models.TaskStatusInProgress, true
	case "completed", "done":
		return models.TaskStatusCompleted, true
	default:
		return "", false
	}
}

func ParsePriority(s string) (models.Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return models.PriorityLow, true
	case "medium":
		return models.PriorityMedium, true
	case "high":
		return models.PriorityHigh, true
	default:
		return "", false
	}
}

// parseDueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
// An empty string means no due date.
func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC().Truncate(time.Millisecond)
			return &t, nil
		}
	}
	return nil, invalid("dueDate", "dueDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "Please add a title")
	}
	if len(title) > maxTitleLength {
		return "", invalid("title", "title too long (max %d chars)", maxTitleLength)
	}
	return title, nil
}

func validateDescription(desc string) (string, error) {
	if len(desc) > maxDescriptionLength {
		return "", invalid("description", "description too long (max %d chars)", maxDescriptionLength)
	}
	return desc, nil
}

func parseOptionalStatus(s string) (models.TaskStatus, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	status, ok := ParseStatus(s)
	if !ok {
		return "", invalid("status", "Invalid status value")
	}
	return status, nil
}

func parseOptionalPriority(s string) (models.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	priority, ok := ParsePriority(s)
	if !ok {
		return "", invalid("priority", "Invalid priority value")
	}
	return priority, nil
}
