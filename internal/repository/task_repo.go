package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type TaskRepository struct {
	db db.DBTX
}

func NewTaskRepository(q db.DBTX) *TaskRepository {
	return &TaskRepository{db: q}
}

const taskColumns = `id, project_id, assignee_id, reviewer_id, title, description, status,
        start_date, end_date, is_overdue, milestone_ids, is_deleted, created_by, created_at, updated_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var status string
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.AssigneeID,
		&t.ReviewerID,
		&t.Title,
		&t.Description,
		&status,
		&t.StartDate,
		&t.EndDate,
		&t.IsOverdue,
		&t.MilestoneIDs,
		&t.IsDeleted,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	return &t, nil
}

func (r *TaskRepository) getOne(ctx context.Context, query string, taskID int64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Get returns a live task or nil.
func (r *TaskRepository) Get(ctx context.Context, taskID int64) (*model.Task, error) {
	return r.getOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND NOT is_deleted`, taskID)
}

// GetForUpdate locks the task row for the rest of the transaction.
func (r *TaskRepository) GetForUpdate(ctx context.Context, taskID int64) (*model.Task, error) {
	return r.getOne(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND NOT is_deleted FOR UPDATE`, taskID)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]*model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListByProject returns the live tasks of a project ordered by id.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int64) ([]*model.Task, error) {
	tasks, err := r.list(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        WHERE project_id = $1 AND NOT is_deleted
        ORDER BY id
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}
	return tasks, nil
}

// Add inserts the task and fills ID and timestamps.
func (r *TaskRepository) Add(ctx context.Context, t *model.Task) error {
	query := `
        INSERT INTO tasks (project_id, assignee_id, reviewer_id, title, description, status,
                           start_date, end_date, milestone_ids, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.ProjectID,
		t.AssigneeID,
		t.ReviewerID,
		t.Title,
		t.Description,
		string(t.Status),
		t.StartDate,
		t.EndDate,
		milestoneIDs(t.MilestoneIDs),
		t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update writes every mutable column of the task.
func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	query := `
        UPDATE tasks
        SET assignee_id = $1, reviewer_id = $2, title = $3, description = $4, status = $5,
            start_date = $6, end_date = $7, is_overdue = $8, milestone_ids = $9, updated_at = NOW()
        WHERE id = $10
        RETURNING updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.AssigneeID,
		t.ReviewerID,
		t.Title,
		t.Description,
		string(t.Status),
		t.StartDate,
		t.EndDate,
		t.IsOverdue,
		milestoneIDs(t.MilestoneIDs),
		t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("task %d does not exist", t.ID)
		}
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UnassignOpen clears the assignee only while the row still belongs to assigneeID
// and is not Done or Cancelled. The WHERE clause is re-checked after waiting on a
// concurrent writer, so a task finished meanwhile is left untouched.
func (r *TaskRepository) UnassignOpen(ctx context.Context, taskID, assigneeID int64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `
        UPDATE tasks
        SET assignee_id = NULL, updated_at = NOW()
        WHERE id = $1
          AND assignee_id = $2
          AND NOT is_deleted
          AND status NOT IN ('Done', 'Cancelled')
        RETURNING `+taskColumns, taskID, assigneeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("unassign task %d: %w", taskID, err)
	}
	return t, nil
}

// ListOverdueCandidates locks up to limit open tasks whose end date is before asOf.
func (r *TaskRepository) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]*model.Task, error) {
	tasks, err := r.list(ctx, `
        SELECT `+taskColumns+`
        FROM tasks
        WHERE NOT is_deleted
          AND NOT is_overdue
          AND end_date < $1
          AND status NOT IN ('Done', 'Cancelled')
        ORDER BY id
        LIMIT $2
        FOR UPDATE SKIP LOCKED
    `, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	return tasks, nil
}

func milestoneIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
