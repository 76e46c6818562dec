package models

import (
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Rank orders priorities from Low to High. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 3
	}
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "Todo"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	Owner       string     `json:"owner"`
}

// TaskFilter narrows a task listing. Zero values match everything.
type TaskFilter struct {
	Status   TaskStatus
	Priority Priority
	Search   string
}

type TaskCounts struct {
	Total     int64
	Completed int64
}

type PriorityCount struct {
	Priority Priority `json:"priority"`
	Count    int64    `json:"count"`
}
