package repository

import (
	"context"
	"fmt"
	"strconv"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

// HistoryRepository append-only task_history
type HistoryRepository struct {
	db db.DBTX
}

func NewHistoryRepository(q db.DBTX) *HistoryRepository {
	return &HistoryRepository{db: q}
}

func (r *HistoryRepository) insert(ctx context.Context, taskID, actorID int64, kind model.HistoryKind, oldValue, newValue *string) error {
	query := `
        INSERT INTO task_history (task_id, actor_id, kind, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := r.db.Exec(ctx, query, taskID, actorID, string(kind), oldValue, newValue); err != nil {
		return fmt.Errorf("insert %s history: %w", kind, err)
	}
	return nil
}

func (r *HistoryRepository) RecordCreation(ctx context.Context, taskID, actorID int64, assigneeID *int64) error {
	return r.insert(ctx, taskID, actorID, model.HistoryCreation, nil, formatID(assigneeID))
}

func (r *HistoryRepository) RecordAssignmentChange(ctx context.Context, taskID int64, oldAssigneeID, newAssigneeID *int64, actorID int64) error {
	return r.insert(ctx, taskID, actorID, model.HistoryAssignmentChange, formatID(oldAssigneeID), formatID(newAssigneeID))
}

func (r *HistoryRepository) RecordStatusChange(ctx context.Context, taskID int64, oldStatus, newStatus model.TaskStatus, actorID int64) error {
	oldV, newV := string(oldStatus), string(newStatus)
	return r.insert(ctx, taskID, actorID, model.HistoryStatusChange, &oldV, &newV)
}

func formatID(id *int64) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatInt(*id, 10)
	return &s
}
