package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/database"
)

// NotificationRepository implements repository.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	pool database.DBTX
}

// NewNotificationRepository creates a new PostgreSQL-backed notification repository.
func NewNotificationRepository(pool database.DBTX) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, organization_id, notification_type, severity, message, ref_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.OrganizationID,
		n.NotificationType,
		n.Severity,
		n.Message,
		n.RefID,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// HasUnread reports whether an unread notification of the same type and ref
// already exists.
func (r *NotificationRepository) HasUnread(ctx context.Context, orgID, notificationType, refID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM notifications
			WHERE organization_id = $1 AND notification_type = $2 AND ref_id = $3 AND read = false
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, orgID, notificationType, refID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check unread notification: %w", err)
	}
	return exists, nil
}
