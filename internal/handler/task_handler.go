package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/service/task"
)

// TaskService 由 *task.Service 实现
type TaskService interface {
	CreateTask(ctx context.Context, req task.CreateRequest) (apperr.Result[*model.TaskView], error)
	UpdateTask(ctx context.Context, req task.UpdateRequest) (apperr.Result[*model.TaskView], error)
	GetTask(ctx context.Context, taskID int64) (apperr.Result[*model.TaskView], error)
}

type TaskHandler struct {
	tasks  TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actorID, ok := userID(c)
	if !ok {
		return
	}

	var req task.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Status != nil && !validStatus(c, *req.Status) {
		return
	}
	req.ActorID = actorID

	res, err := h.tasks.CreateTask(c.Request.Context(), req)
	writeResult(c, h.logger, http.StatusCreated, res, err)
}

// UpdateTask handles PATCH /tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actorID, ok := userID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c)
	if !ok {
		return
	}

	var req task.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Status != nil && !validStatus(c, *req.Status) {
		return
	}
	req.TaskID = taskID
	req.ActorID = actorID

	res, err := h.tasks.UpdateTask(c.Request.Context(), req)
	writeResult(c, h.logger, http.StatusOK, res, err)
}

// GetTask handles GET /tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.tasks.GetTask(c.Request.Context(), taskID)
	writeResult(c, h.logger, http.StatusOK, res, err)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return 0, false
	}
	return id, true
}

func validStatus(c *gin.Context, s model.TaskStatus) bool {
	if _, err := model.ParseTaskStatus(string(s)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
