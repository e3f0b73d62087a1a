package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(q db.DBTX) *UserRepository {
	return &UserRepository{db: q}
}

// Get returns user by id, or nil.
func (r *UserRepository) Get(ctx context.Context, userID int64) (*model.User, error) {
	query := `
        SELECT id, email, name, organization_name, managing_owner_id, created_at
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Name, &u.OrganizationName, &u.ManagingOwnerID, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateOrganization persists organization name and managing owner.
func (r *UserRepository) UpdateOrganization(ctx context.Context, u *model.User) error {
	query := `
        UPDATE users
        SET organization_name = $1, managing_owner_id = $2
        WHERE id = $3
    `
	tag, err := r.db.Exec(ctx, query, u.OrganizationName, u.ManagingOwnerID, u.ID)
	if err != nil {
		return fmt.Errorf("update user organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d does not exist", u.ID)
	}
	return nil
}
