package domain

import "time"

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order represents a customer order. The order-entry workflow owns most
// fields; the fulfillment coordinator writes back Status, CustomerID, and
// InventoryDeducted. InventoryDeducted records whether a stock deduction has
// already been applied for this order and guards against double-deduction.
type Order struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	CustomerID        *string   `json:"customer_id,omitempty"`
	CustomerName      string    `json:"customer_name"`
	CustomerPhone     string    `json:"customer_phone,omitempty"`
	ProductSKU        string    `json:"product_sku"`
	Quantity          int       `json:"quantity"`
	Amount            int64     `json:"amount"`
	PaidAmount        int64     `json:"paid_amount"`
	OutstandingAmount int64     `json:"outstanding_amount"`
	Status            string    `json:"status"`
	InventoryDeducted bool      `json:"inventory_deducted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedTransitions defines which status transitions are valid. Cancelled is
// reachable from any non-terminal state.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
		OrderStatusDelivered:  {},
		OrderStatusCancelled:  {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order is in a terminal state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}
