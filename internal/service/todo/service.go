// Package todo 个人快捷待办。
package todo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/store"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
)

type CreateRequest struct {
	Name    string `json:"name"`
	OwnerID int64  `json:"-"`
}

type Service struct {
	runner uow.Runner
	logger *zap.Logger
}

func NewService(runner uow.Runner, logger *zap.Logger) *Service {
	return &Service{runner: runner, logger: logger}
}

// CreateTodo 名称去掉首尾空白后不能为空
func (s *Service) CreateTodo(ctx context.Context, req CreateRequest) (apperr.Result[*model.Todo], error) {
	const op = "todo.create"

	if err := workflow.ValidateTitle(op, req.Name); err != nil {
		metrics.IncrementTaskOperation(op, string(apperr.KindValidation))
		return apperr.Settle[*model.Todo](err)
	}

	var created *model.Todo
	err := s.runner.InTx(ctx, op, func(ctx context.Context, r store.Repos) error {
		t := &model.Todo{OwnerID: req.OwnerID, Name: req.Name}
		if err := r.Todos.Add(ctx, t); err != nil {
			return fmt.Errorf("add todo: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		logger.WithTrace(ctx, s.logger).Error("Failed to create todo", zap.Int64("owner_id", req.OwnerID), zap.Error(err))
		metrics.IncrementTaskOperation(op, string(apperr.KindOf(err)))
		return apperr.Settle[*model.Todo](err)
	}

	metrics.IncrementTaskOperation(op, "ok")
	return apperr.Ok(created), nil
}
