package repository

import (
	"context"
	"time"

	"github.com/opsdash/consistency-engine/internal/domain"
)

// AppliedDelta is the outcome of a ledger mutation: the before and after
// quantities recorded in the same transaction as the history append.
type AppliedDelta struct {
	Item             *domain.InventoryItem
	PreviousQuantity int
	NewQuantity      int
	Entry            *domain.HistoryEntry
}

// InventoryRepository defines persistence for items and their append-only
// history. The cached quantity and the history row are always written in one
// transaction; there is no API that writes one without the other.
type InventoryRepository interface {
	// CreateItem inserts a new item together with its initial history entry.
	CreateItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error)

	// GetBySKU retrieves an item by SKU within an organization.
	GetBySKU(ctx context.Context, orgID, sku string) (*domain.InventoryItem, error)

	// ApplyDelta locks the item row, applies a signed quantity change, and
	// appends the matching history entry in the same transaction. A delta that
	// would drive the quantity negative fails with InsufficientStock and
	// leaves state unchanged.
	ApplyDelta(ctx context.Context, orgID, sku string, delta int, entryType string, orderID *string, reason string) (*AppliedDelta, error)

	// HasDeductionForOrder reports whether an unreversed sale entry exists for
	// the given order. Used to re-derive the deduction flag after partial
	// failures without ever restoring twice.
	HasDeductionForOrder(ctx context.Context, orgID, sku, orderID string) (bool, error)

	// SetQuantity moves an item to an absolute quantity, deriving the delta
	// inside the row lock and appending a restock or adjustment entry. Setting
	// the current quantity is a no-op.
	SetQuantity(ctx context.Context, orgID, sku string, target int, reason string) (*AppliedDelta, error)

	// ListHistory returns an item's history newest-first, paginated, with the
	// total entry count.
	ListHistory(ctx context.Context, orgID, sku string, page, perPage int) ([]domain.HistoryEntry, int, error)

	// ListHistoryForItem returns an item's full history oldest-first, for
	// usage estimation.
	ListHistoryForItem(ctx context.Context, orgID, itemID string) ([]domain.HistoryEntry, error)

	// ListItems returns all items for an organization.
	ListItems(ctx context.Context, orgID string) ([]domain.InventoryItem, error)
}

// OrderRepository defines persistence for orders. Only the status, customer
// linkage, and deduction flag are written by this engine.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order within an organization.
	GetByID(ctx context.Context, orgID, id string) (*domain.Order, error)

	// UpdateStatus writes a new status, optionally clearing the deduction flag
	// in the same statement.
	UpdateStatus(ctx context.Context, orgID, id, status string, inventoryDeducted bool) error

	// ListUnlinked returns orders without a customer link.
	ListUnlinked(ctx context.Context, orgID string) ([]domain.Order, error)

	// CountLinked returns the number of orders already linked to a customer.
	CountLinked(ctx context.Context, orgID string) (int, error)

	// ListByCustomer returns all orders for a customer, oldest-first.
	ListByCustomer(ctx context.Context, orgID, customerID string) ([]domain.Order, error)

	// LinkCustomer writes the customer ID onto an order.
	LinkCustomer(ctx context.Context, orgID, orderID, customerID string) error
}

// CustomerRepository defines persistence for customers and their denormalized
// aggregates. Incremental updates are single atomic SQL statements so
// concurrent order events cannot interleave destructively within one update.
type CustomerRepository interface {
	// GetByID retrieves a customer within an organization.
	GetByID(ctx context.Context, orgID, id string) (*domain.Customer, error)

	// ApplyOrderCreated applies the order-created deltas: purchases, order
	// count, outstanding balance, loyalty points, promote-only tier, and
	// first/last order dates, in one statement.
	ApplyOrderCreated(ctx context.Context, orgID, customerID string, amount, outstanding int64, orderDate time.Time, vipThreshold int64) error

	// ApplyOrderCancelled reverses the purchase and outstanding deltas and
	// recomputes loyalty points. The order count is kept.
	ApplyOrderCancelled(ctx context.Context, orgID, customerID string, amount, outstanding int64) error

	// ReplaceAggregates overwrites a customer's aggregates with a recomputed
	// fold. The write is guarded by the customer's updated_at as it was read:
	// if an incremental update landed in between, the write is rejected with
	// ErrConcurrentModification so the caller can fold again over fresh data.
	ReplaceAggregates(ctx context.Context, orgID, customerID string, agg domain.CustomerAggregates, readAt time.Time) error

	// List returns all customers for an organization.
	List(ctx context.Context, orgID string) ([]domain.Customer, error)

	// FindByName finds a customer by exact case-insensitive name match.
	FindByName(ctx context.Context, orgID, name string) (*domain.Customer, error)

	// FindByPhone finds a customer by phone with non-digit characters stripped
	// on both sides of the comparison.
	FindByPhone(ctx context.Context, orgID, phone string) (*domain.Customer, error)
}

// NotificationRepository defines persistence for alert notifications.
type NotificationRepository interface {
	// Create inserts a notification record.
	Create(ctx context.Context, n *domain.Notification) error

	// HasUnread reports whether an unread notification of the same type and
	// ref already exists, for publish dedupe.
	HasUnread(ctx context.Context, orgID, notificationType, refID string) (bool, error)
}
