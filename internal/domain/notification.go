package domain

import "time"

// Notification types emitted by the engine.
const (
	NotificationTypeLowStock      = "low_stock"
	NotificationTypeCriticalStock = "critical_stock"
	NotificationTypeReorder       = "reorder_needed"
)

// Notification severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notification is a record handed to the external notification sink.
// Delivery is at-least-once; the publisher dedupes by checking for an unread
// notification of the same type and ref before inserting.
type Notification struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organization_id"`
	NotificationType string    `json:"notification_type"`
	Severity         string    `json:"severity"`
	Message          string    `json:"message"`
	RefID            string    `json:"ref_id"`
	Read             bool      `json:"read"`
	CreatedAt        time.Time `json:"created_at"`
}
