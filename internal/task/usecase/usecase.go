package usecase

import (
	"time"

	"dailyrush-backend/internal/task/domain"
)

// TaskFilter selects and orders the task list for display. Zero values
// mean "all tasks, newest first".
type TaskFilter struct {
	Page   domain.Page
	Search string
	Sort   domain.SortOption
}

// ExportDocument is the JSON backup payload handed to the user.
type ExportDocument struct {
	ExportDate     time.Time      `json:"exportDate"`
	TotalTasks     int            `json:"totalTasks"`
	ActiveTasks    int            `json:"activeTasks"`
	CompletedTasks int            `json:"completedTasks"`
	Tasks          []*domain.Task `json:"tasks"`
}

// Stats summarizes the session's task list.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Points    int `json:"points"`
}
