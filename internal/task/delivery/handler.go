package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	authusecase "dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/session"
	"dailyrush-backend/internal/task/domain"
	"dailyrush-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task and points HTTP requests. Every request
// resolves the current namespace's reconciler through the session
// context, so guest and signed-in traffic hit the right store without
// the handlers knowing which is which.
type TaskHandler struct {
	session *session.Context
}

func NewTaskHandler(sessionCtx *session.Context) *TaskHandler {
	return &TaskHandler{session: sessionCtx}
}

// CreateTaskRequest represents the request body for creating a task
type CreateTaskRequest struct {
	Text       string  `json:"text" binding:"required"`
	Difficulty string  `json:"difficulty"`
	DueDate    *string `json:"dueDate"`
}

// GetTasks returns the filtered, sorted task list
// GET /api/tasks?page=active&search=milk&sort=oldest
func (h *TaskHandler) GetTasks(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	filter := usecase.TaskFilter{
		Page:   domain.Page(c.DefaultQuery("page", string(domain.PageAll))),
		Search: c.Query("search"),
		Sort:   domain.SortOption(c.Query("sort")),
	}

	tasks := reconciler.View(filter)
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// CreateTask adds a task
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate format, expected RFC3339"})
			return
		}
		dueDate = &parsed
	}

	task, err := reconciler.AddTask(req.Text, domain.Difficulty(req.Difficulty), dueDate)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyTaskText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task text cannot be empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// ToggleTask flips a task's completion state
// PATCH /api/tasks/:id/toggle
func (h *TaskHandler) ToggleTask(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	task, err := reconciler.ToggleTask(id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":   task,
		"points": reconciler.TotalPoints(),
	})
}

// DeleteTask removes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	if err := reconciler.DeleteTask(id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"points": reconciler.TotalPoints()})
}

// ClearAll removes every task and resets points
// DELETE /api/tasks
func (h *TaskHandler) ClearAll(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	reconciler.ClearAll()
	c.JSON(http.StatusOK, gin.H{"points": 0})
}

// ClearCompleted removes completed tasks and their counted points
// DELETE /api/tasks/completed
func (h *TaskHandler) ClearCompleted(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	removed := reconciler.ClearCompleted()
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"points":  reconciler.TotalPoints(),
	})
}

// Export returns the JSON backup document
// GET /api/tasks/export
func (h *TaskHandler) Export(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	doc := reconciler.Export()
	c.Header("Content-Disposition", "attachment; filename=daily-rush-tasks.json")
	c.JSON(http.StatusOK, doc)
}

// Stats returns task counts and the points total
// GET /api/tasks/stats
func (h *TaskHandler) Stats(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, reconciler.Stats())
}

// Points returns the current points total
// GET /api/points
func (h *TaskHandler) Points(c *gin.Context) {
	reconciler, ok := h.reconciler(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"points": reconciler.TotalPoints()})
}

func (h *TaskHandler) reconciler(c *gin.Context) (*usecase.Reconciler, bool) {
	reconciler, err := h.session.Reconciler(c.Request.Context())
	if err != nil {
		if errors.Is(err, authusecase.ErrIdentityNotReady) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "identity resolution in progress"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return reconciler, true
}
