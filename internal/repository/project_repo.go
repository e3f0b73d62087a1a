package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type ProjectRepository struct {
	db db.DBTX
}

func NewProjectRepository(q db.DBTX) *ProjectRepository {
	return &ProjectRepository{db: q}
}

// Get returns a project, or nil when it does not exist or was soft-deleted.
func (r *ProjectRepository) Get(ctx context.Context, projectID int64) (*model.Project, error) {
	query := `
        SELECT id, name, owner_id, creator_id, start_date, end_date, status, is_deleted, created_at, updated_at
        FROM projects
        WHERE id = $1 AND NOT is_deleted
    `
	var p model.Project
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&p.ID,
		&p.Name,
		&p.OwnerID,
		&p.CreatorID,
		&p.StartDate,
		&p.EndDate,
		&p.Status,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListIDsByOwner returns ids of live projects owned by ownerID.
func (r *ProjectRepository) ListIDsByOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	query := `
        SELECT id
        FROM projects
        WHERE owner_id = $1 AND NOT is_deleted
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects by owner: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan project ids: %w", err)
	}
	return ids, nil
}
