package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/database"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, organization_id, customer_id, customer_name, customer_phone, product_sku,
		quantity, amount, paid_amount, outstanding_amount, status, inventory_deducted, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.OrganizationID,
		&o.CustomerID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.ProductSKU,
		&o.Quantity,
		&o.Amount,
		&o.PaidAmount,
		&o.OutstandingAmount,
		&o.Status,
		&o.InventoryDeducted,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `
		INSERT INTO orders (id, organization_id, customer_id, customer_name, customer_phone, product_sku,
			quantity, amount, paid_amount, outstanding_amount, status, inventory_deducted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	_, err := r.pool.Exec(ctx, query,
		order.ID,
		order.OrganizationID,
		order.CustomerID,
		order.CustomerName,
		order.CustomerPhone,
		order.ProductSKU,
		order.Quantity,
		order.Amount,
		order.PaidAmount,
		order.OutstandingAmount,
		order.Status,
		order.InventoryDeducted,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "id", order.ID)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order within an organization.
func (r *OrderRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE organization_id = $1 AND id = $2`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// UpdateStatus writes the new status and deduction flag in one statement.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orgID, id, status string, inventoryDeducted bool) error {
	query := `
		UPDATE orders
		SET status = $1, inventory_deducted = $2, updated_at = NOW()
		WHERE organization_id = $3 AND id = $4`

	tag, err := r.pool.Exec(ctx, query, status, inventoryDeducted, orgID, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListUnlinked returns orders without a customer link, oldest-first.
func (r *OrderRepository) ListUnlinked(ctx context.Context, orgID string) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE organization_id = $1 AND customer_id IS NULL
		ORDER BY created_at ASC, id ASC`

	return r.queryOrders(ctx, query, orgID)
}

// ListByCustomer returns all orders for a customer, oldest-first, so the
// recompute fold is deterministic.
func (r *OrderRepository) ListByCustomer(ctx context.Context, orgID, customerID string) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE organization_id = $1 AND customer_id = $2
		ORDER BY created_at ASC, id ASC`

	return r.queryOrders(ctx, query, orgID, customerID)
}

// CountLinked returns the number of orders already linked to a customer.
func (r *OrderRepository) CountLinked(ctx context.Context, orgID string) (int, error) {
	query := `SELECT count(*) FROM orders WHERE organization_id = $1 AND customer_id IS NOT NULL`

	var count int
	if err := r.pool.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count linked orders: %w", err)
	}
	return count, nil
}

// LinkCustomer writes the customer ID onto an order.
func (r *OrderRepository) LinkCustomer(ctx context.Context, orgID, orderID, customerID string) error {
	query := `
		UPDATE orders
		SET customer_id = $1, updated_at = NOW()
		WHERE organization_id = $2 AND id = $3`

	tag, err := r.pool.Exec(ctx, query, customerID, orgID, orderID)
	if err != nil {
		return fmt.Errorf("link order to customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}
