// Package task 实现任务的创建、更新和查询。
package task

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/internal/model"
	"projectflow/internal/service/notify"
	"projectflow/internal/store"
	"projectflow/internal/uow"
	"projectflow/internal/workflow"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
)

// CreateRequest 创建任务
type CreateRequest struct {
	ProjectID    int64             `json:"project_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	AssigneeID   *int64            `json:"assignee_id"`
	ReviewerID   *int64            `json:"reviewer_id"`
	StartDate    *time.Time        `json:"start_date"`
	EndDate      *time.Time        `json:"end_date"`
	Status       *model.TaskStatus `json:"status"`
	MilestoneIDs []int64           `json:"milestone_ids"`
	ActorID      int64             `json:"-"`
}

// UpdateRequest 更新任务，nil 字段保持不变
type UpdateRequest struct {
	TaskID           int64             `json:"-"`
	Title            *string           `json:"title"`
	Description      *string           `json:"description"`
	Status           *model.TaskStatus `json:"status"`
	AssigneeID       *int64            `json:"assignee_id"`
	UnassignAssignee bool              `json:"unassign_assignee"`
	ReviewerID       *int64            `json:"reviewer_id"`
	UnassignReviewer bool              `json:"unassign_reviewer"`
	StartDate        *time.Time        `json:"start_date"`
	EndDate          *time.Time        `json:"end_date"`
	MilestoneIDs     *[]int64          `json:"milestone_ids"`
	ActorID          int64             `json:"-"`
}

type Service struct {
	runner uow.Runner
	reads  store.Repos
	gate   *workflow.Gate
	sender *notify.Sender
	logger *zap.Logger
}

// NewService reads 为事务外的只读仓储，用于校验和查询
func NewService(runner uow.Runner, reads store.Repos, sender *notify.Sender, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		reads:  reads,
		gate:   workflow.NewGate(reads),
		sender: sender,
		logger: logger,
	}
}

// CreateTask 校验后在一个工作单元内写入任务和创建历史，提交后通知负责人
func (s *Service) CreateTask(ctx context.Context, req CreateRequest) (apperr.Result[*model.TaskView], error) {
	const op = "task.create"
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("project_id", req.ProjectID), zap.Int64("actor_id", req.ActorID))

	status, err := workflow.InitialStatus(req.Status)
	if err != nil {
		return s.settle(op, err)
	}

	_, err = s.gate.Check(ctx, op, workflow.TaskDraft{
		ProjectID:    req.ProjectID,
		AssigneeID:   req.AssigneeID,
		ReviewerID:   req.ReviewerID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Title:        req.Title,
		MilestoneIDs: req.MilestoneIDs,
		ActorID:      req.ActorID,
	})
	if err != nil {
		log.Info("Task creation rejected", zap.Error(err))
		return s.settle(op, err)
	}

	draft := &model.Task{
		ProjectID:    req.ProjectID,
		AssigneeID:   req.AssigneeID,
		ReviewerID:   req.ReviewerID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       status,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		MilestoneIDs: req.MilestoneIDs,
		CreatedBy:    req.ActorID,
	}

	var created *model.Task
	err = s.runner.InTx(ctx, op, func(ctx context.Context, r store.Repos) error {
		t := draft.Clone()
		if err := r.Tasks.Add(ctx, t); err != nil {
			return fmt.Errorf("add task: %w", err)
		}
		if err := r.History.RecordCreation(ctx, t.ID, req.ActorID, t.AssigneeID); err != nil {
			return fmt.Errorf("record creation history: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		log.Error("Failed to create task", zap.Error(err))
		return s.settle(op, err)
	}

	log.Info("Task created", zap.Int64("task_id", created.ID), zap.String("status", string(created.Status)))
	s.sender.Send(ctx, workflow.PlanAssignment(created, req.ActorID))

	metrics.IncrementTaskOperation(op, "ok")
	return apperr.Ok(view(created)), nil
}

// UpdateTask 在事务中重新读取并锁定任务，校验状态迁移后一次性写入所有变更
func (s *Service) UpdateTask(ctx context.Context, req UpdateRequest) (apperr.Result[*model.TaskView], error) {
	const op = "task.update"
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("task_id", req.TaskID), zap.Int64("actor_id", req.ActorID))

	current, err := s.reads.Tasks.Get(ctx, req.TaskID)
	if err != nil {
		log.Error("Failed to load task", zap.Error(err))
		return s.settle(op, fmt.Errorf("load task %d: %w", req.TaskID, err))
	}
	if current == nil {
		return s.settle(op, apperr.NotFound(op, "Task not found"))
	}

	merged := applyUpdate(current.Clone(), req)
	draft := workflow.TaskDraft{
		ProjectID: current.ProjectID,
		StartDate: merged.StartDate,
		EndDate:   merged.EndDate,
		Title:     merged.Title,
		ActorID:   req.ActorID,
	}
	// 负责人和审核人只在变更时校验
	if !model.SameInt64(current.AssigneeID, merged.AssigneeID) {
		draft.AssigneeID = merged.AssigneeID
	}
	if !model.SameInt64(current.ReviewerID, merged.ReviewerID) {
		draft.ReviewerID = merged.ReviewerID
	}
	if req.MilestoneIDs != nil {
		draft.MilestoneIDs = *req.MilestoneIDs
	}

	if _, err := s.gate.Check(ctx, op, draft); err != nil {
		log.Info("Task update rejected", zap.Error(err))
		return s.settle(op, err)
	}

	var (
		updated  *model.Task
		planned  []model.NotificationPayload
		from, to model.TaskStatus
	)
	err = s.runner.InTx(ctx, op, func(ctx context.Context, r store.Repos) error {
		planned = nil
		t, err := r.Tasks.GetForUpdate(ctx, req.TaskID)
		if err != nil {
			return fmt.Errorf("lock task: %w", err)
		}
		if t == nil {
			return apperr.NotFound(op, "Task not found")
		}

		effect := workflow.EffectNone
		oldStatus := t.Status
		if req.Status != nil {
			effect, err = workflow.Transition(t.Status, *req.Status)
			if err != nil {
				return err
			}
		}

		oldAssignee := t.AssigneeID
		t = applyUpdate(t, req)

		if err := r.Tasks.Update(ctx, t); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		assigneeChanged := !model.SameInt64(oldAssignee, t.AssigneeID)
		if assigneeChanged {
			if err := r.History.RecordAssignmentChange(ctx, t.ID, oldAssignee, t.AssigneeID, req.ActorID); err != nil {
				return fmt.Errorf("record assignment history: %w", err)
			}
		}
		if req.Status != nil {
			if err := r.History.RecordStatusChange(ctx, t.ID, oldStatus, t.Status, req.ActorID); err != nil {
				return fmt.Errorf("record status history: %w", err)
			}
		}
		planned = workflow.PlanUpdate(t, effect, assigneeChanged, req.ActorID)

		updated, from, to = t, oldStatus, t.Status
		return nil
	})
	if err != nil {
		if apperr.IsDomain(err) {
			log.Info("Task update rejected", zap.Error(err))
		} else {
			log.Error("Failed to update task", zap.Error(err))
		}
		return s.settle(op, err)
	}

	if req.Status != nil {
		metrics.IncrementTaskTransition(string(from), string(to))
		log.Info("Task status changed", zap.String("from", string(from)), zap.String("to", string(to)))
	}
	s.sender.Send(ctx, planned)

	metrics.IncrementTaskOperation(op, "ok")
	return apperr.Ok(view(updated)), nil
}

// GetTask 查询单个任务
func (s *Service) GetTask(ctx context.Context, taskID int64) (apperr.Result[*model.TaskView], error) {
	const op = "task.get"
	t, err := s.reads.Tasks.Get(ctx, taskID)
	if err != nil {
		return s.settle(op, fmt.Errorf("load task %d: %w", taskID, err))
	}
	if t == nil {
		return s.settle(op, apperr.NotFound(op, "Task not found"))
	}
	return apperr.Ok(view(t)), nil
}

func view(t *model.Task) *model.TaskView {
	return model.NewTaskView(t, workflow.Targets(t.Status))
}

func (s *Service) settle(op string, err error) (apperr.Result[*model.TaskView], error) {
	metrics.IncrementTaskOperation(op, string(apperr.KindOf(err)))
	return apperr.Settle[*model.TaskView](err)
}

// applyUpdate 把请求中的字段写到 t 上（状态除外的校验由调用方负责）
func applyUpdate(t *model.Task, req UpdateRequest) *model.Task {
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	switch {
	case req.UnassignAssignee:
		t.AssigneeID = nil
	case req.AssigneeID != nil:
		t.AssigneeID = model.Int64Ptr(*req.AssigneeID)
	}
	switch {
	case req.UnassignReviewer:
		t.ReviewerID = nil
	case req.ReviewerID != nil:
		t.ReviewerID = model.Int64Ptr(*req.ReviewerID)
	}
	if req.StartDate != nil {
		t.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		t.EndDate = req.EndDate
	}
	if req.MilestoneIDs != nil {
		t.MilestoneIDs = append([]int64(nil), (*req.MilestoneIDs)...)
	}
	return t
}
