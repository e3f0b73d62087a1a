package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"projectflow/pkg/db"
)

type MilestoneRepository struct {
	db db.DBTX
}

func NewMilestoneRepository(q db.DBTX) *MilestoneRepository {
	return &MilestoneRepository{db: q}
}

func (r *MilestoneRepository) ListIDsByProject(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM milestones WHERE project_id = $1 ORDER BY phase_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan milestone ids: %w", err)
	}
	return ids, nil
}
