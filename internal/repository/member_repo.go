package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type MemberRepository struct {
	db db.DBTX
}

func NewMemberRepository(q db.DBTX) *MemberRepository {
	return &MemberRepository{db: q}
}

func (r *MemberRepository) list(ctx context.Context, query string, args ...any) ([]*model.ProjectMember, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*model.ProjectMember
	for rows.Next() {
		var m model.ProjectMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.MemberID, &m.JoinedAt, &m.LeftAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ListByProject returns every membership record of the project, including departed ones.
func (r *MemberRepository) ListByProject(ctx context.Context, projectID int64) ([]*model.ProjectMember, error) {
	members, err := r.list(ctx, `
        SELECT id, project_id, member_id, joined_at, left_at
        FROM project_members
        WHERE project_id = $1
        ORDER BY id
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members by project: %w", err)
	}
	return members, nil
}

// ListActiveByMemberAndProjects locks the member's active memberships within projectIDs.
func (r *MemberRepository) ListActiveByMemberAndProjects(ctx context.Context, memberID int64, projectIDs []int64) ([]*model.ProjectMember, error) {
	members, err := r.list(ctx, `
        SELECT id, project_id, member_id, joined_at, left_at
        FROM project_members
        WHERE member_id = $1 AND project_id = ANY($2) AND left_at IS NULL
        ORDER BY id
        FOR UPDATE
    `, memberID, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list active memberships: %w", err)
	}
	return members, nil
}

// UpdateBatch writes left_at for all members in one round trip.
func (r *MemberRepository) UpdateBatch(ctx context.Context, members []*model.ProjectMember) error {
	if len(members) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range members {
		batch.Queue(`UPDATE project_members SET left_at = $1 WHERE id = $2`, m.LeftAt, m.ID)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, m := range members {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update membership %d: %w", m.ID, err)
		}
	}
	return nil
}
