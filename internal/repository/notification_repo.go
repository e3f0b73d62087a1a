package repository

import (
	"context"
	"fmt"

	"projectflow/internal/model"
	"projectflow/pkg/db"
)

type NotificationRepository struct {
	db db.DBTX
}

func NewNotificationRepository(q db.DBTX) *NotificationRepository {
	return &NotificationRepository{db: q}
}

// Insert stores an in-app notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	query := `
        INSERT INTO notifications (recipient_id, title, body, event_type, entity_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, n.RecipientID, n.Title, n.Body, n.EventType, n.EntityID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
