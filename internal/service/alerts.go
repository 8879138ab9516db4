package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
)

// ThresholdEventPublisher publishes threshold crossing events to the message
// bus. Satisfied by event.Producer.
type ThresholdEventPublisher interface {
	PublishThresholdCrossed(ctx context.Context, orgID string, crossing *domain.ThresholdCrossing) error
}

// AlertPublisher turns threshold crossings into notification records and bus
// events. It dedupes against unread notifications so a SKU flapping around its
// threshold does not pile up identical alerts.
type AlertPublisher struct {
	notifications repository.NotificationRepository
	producer      ThresholdEventPublisher
	logger        *slog.Logger
}

// NewAlertPublisher creates a new alert publisher.
func NewAlertPublisher(notifications repository.NotificationRepository, producer ThresholdEventPublisher, logger *slog.Logger) *AlertPublisher {
	return &AlertPublisher{
		notifications: notifications,
		producer:      producer,
		logger:        logger,
	}
}

// HandleCrossing records a notification for the crossing and publishes the
// matching bus event. A crossing whose notification type already has an unread
// record for the same item is dropped as a duplicate.
func (p *AlertPublisher) HandleCrossing(ctx context.Context, orgID string, crossing *domain.ThresholdCrossing) error {
	if crossing == nil {
		return nil
	}

	notificationType := domain.NotificationTypeLowStock
	severity := domain.SeverityWarning
	if crossing.Severity == domain.CrossingCritical {
		notificationType = domain.NotificationTypeCriticalStock
		severity = domain.SeverityCritical
	}

	unread, err := p.notifications.HasUnread(ctx, orgID, notificationType, crossing.ItemID)
	if err != nil {
		return fmt.Errorf("check unread notifications: %w", err)
	}
	if unread {
		p.logger.DebugContext(ctx, "alert suppressed, unread duplicate exists",
			slog.String("sku", crossing.SKU),
			slog.String("notification_type", notificationType),
		)
		return nil
	}

	n := &domain.Notification{
		OrganizationID:   orgID,
		NotificationType: notificationType,
		Severity:         severity,
		Message:          crossingMessage(crossing),
		RefID:            crossing.ItemID,
	}
	if err := p.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if err := p.producer.PublishThresholdCrossed(ctx, orgID, crossing); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish threshold crossed event",
			slog.String("sku", crossing.SKU),
			slog.String("error", err.Error()),
		)
	}

	p.logger.InfoContext(ctx, "stock alert published",
		slog.String("sku", crossing.SKU),
		slog.String("severity", crossing.Severity),
		slog.Int("previous_quantity", crossing.PreviousQuantity),
		slog.Int("new_quantity", crossing.NewQuantity),
	)
	return nil
}

func crossingMessage(c *domain.ThresholdCrossing) string {
	if c.Severity == domain.CrossingCritical {
		return fmt.Sprintf("%s is out of stock (was %d)", c.SKU, c.PreviousQuantity)
	}
	return fmt.Sprintf("%s dropped to %d, at or below its threshold of %d", c.SKU, c.NewQuantity, c.Threshold)
}
