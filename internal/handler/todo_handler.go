package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/service/todo"
)

type TodoService interface {
	CreateTodo(ctx context.Context, req todo.CreateRequest) (apperr.Result[*model.Todo], error)
}

type TodoHandler struct {
	todos  TodoService
	logger *zap.Logger
}

func NewTodoHandler(todos TodoService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

// CreateTodo handles POST /todos
func (h *TodoHandler) CreateTodo(c *gin.Context) {
	ownerID, ok := userID(c)
	if !ok {
		return
	}

	var req todo.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.OwnerID = ownerID

	res, err := h.todos.CreateTodo(c.Request.Context(), req)
	writeResult(c, h.logger, http.StatusCreated, res, err)
}
