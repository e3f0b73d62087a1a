package repository

import (
	"context"
	"fmt"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type TodoRepository struct {
	db db.DBTX
}

func NewTodoRepository(q db.DBTX) *TodoRepository {
	return &TodoRepository{db: q}
}

// Add inserts a todo and fills ID and CreatedAt.
func (r *TodoRepository) Add(ctx context.Context, t *model.Todo) error {
	query := `
        INSERT INTO todos (owner_id, name, is_done)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	if err := r.db.QueryRow(ctx, query, t.OwnerID, t.Name, t.IsDone).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}
