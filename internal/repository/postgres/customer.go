package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/database"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// CustomerRepository implements repository.CustomerRepository using PostgreSQL.
// Incremental aggregate updates are single UPDATE statements: the database
// applies the delta atomically, so concurrent order events on the same
// customer cannot lose each other's increments (they may still drift relative
// to failed code paths, which the reconciliation recompute repairs).
type CustomerRepository struct {
	pool database.DBTX
}

// NewCustomerRepository creates a new PostgreSQL-backed customer repository.
func NewCustomerRepository(pool database.DBTX) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `id, organization_id, name, phone, total_purchases, total_orders,
		outstanding_balance, loyalty_points, customer_type, first_order_date, last_order_date,
		created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&c.Phone,
		&c.TotalPurchases,
		&c.TotalOrders,
		&c.OutstandingBalance,
		&c.LoyaltyPoints,
		&c.CustomerType,
		&c.FirstOrderDate,
		&c.LastOrderDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a customer within an organization.
func (r *CustomerRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE organization_id = $1 AND id = $2`

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get customer by id: %w", err)
	}
	return c, nil
}

// ApplyOrderCreated applies the order-created deltas in one atomic statement.
// Loyalty points and tier are derived from the post-delta totals inside the
// same UPDATE, and the tier CASE only ever promotes.
func (r *CustomerRepository) ApplyOrderCreated(ctx context.Context, orgID, customerID string, amount, outstanding int64, orderDate time.Time, vipThreshold int64) error {
	query := `
		UPDATE customers
		SET total_purchases = total_purchases + $1,
			total_orders = total_orders + 1,
			outstanding_balance = outstanding_balance + $2,
			loyalty_points = GREATEST(total_purchases + $1, 0) / 100,
			customer_type = CASE
				WHEN total_purchases + $1 >= $3 THEN 'vip'
				WHEN customer_type = 'new' THEN 'regular'
				ELSE customer_type
			END,
			first_order_date = LEAST(COALESCE(first_order_date, $4::timestamptz), $4::timestamptz),
			last_order_date = GREATEST(COALESCE(last_order_date, $4::timestamptz), $4::timestamptz),
			updated_at = NOW()
		WHERE organization_id = $5 AND id = $6`

	tag, err := r.pool.Exec(ctx, query, amount, outstanding, vipThreshold, orderDate, orgID, customerID)
	if err != nil {
		return fmt.Errorf("apply order created: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ApplyOrderCancelled reverses the purchase and outstanding deltas and
// recomputes loyalty points. The order count and tier are left untouched:
// cancelled orders still count as orders placed, and tiers never demote on
// the incremental path.
func (r *CustomerRepository) ApplyOrderCancelled(ctx context.Context, orgID, customerID string, amount, outstanding int64) error {
	query := `
		UPDATE customers
		SET total_purchases = total_purchases - $1,
			outstanding_balance = outstanding_balance - $2,
			loyalty_points = GREATEST(total_purchases - $1, 0) / 100,
			updated_at = NOW()
		WHERE organization_id = $3 AND id = $4`

	tag, err := r.pool.Exec(ctx, query, amount, outstanding, orgID, customerID)
	if err != nil {
		return fmt.Errorf("apply order cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ReplaceAggregates overwrites a customer's aggregates with a recomputed fold.
// The UPDATE matches on updated_at as well as the key: when an incremental
// update touched the row after readAt, zero rows match and the caller gets
// ErrConcurrentModification instead of silently clobbering the newer deltas.
func (r *CustomerRepository) ReplaceAggregates(ctx context.Context, orgID, customerID string, agg domain.CustomerAggregates, readAt time.Time) error {
	query := `
		UPDATE customers
		SET total_purchases = $1,
			total_orders = $2,
			outstanding_balance = $3,
			loyalty_points = $4,
			customer_type = $5,
			first_order_date = $6,
			last_order_date = $7,
			updated_at = NOW()
		WHERE organization_id = $8 AND id = $9 AND updated_at = $10`

	tag, err := r.pool.Exec(ctx, query,
		agg.TotalPurchases,
		agg.TotalOrders,
		agg.OutstandingBalance,
		agg.LoyaltyPoints,
		agg.CustomerType,
		agg.FirstOrderDate,
		agg.LastOrderDate,
		orgID,
		customerID,
		readAt,
	)
	if err != nil {
		return fmt.Errorf("replace customer aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS (SELECT 1 FROM customers WHERE organization_id = $1 AND id = $2)`
		if err := r.pool.QueryRow(ctx, checkQuery, orgID, customerID).Scan(&exists); err != nil {
			return fmt.Errorf("replace customer aggregates: %w", err)
		}
		if !exists {
			return apperrors.ErrNotFound
		}
		return apperrors.ConcurrentModification("customer", customerID)
	}
	return nil
}

// List returns all customers for an organization.
func (r *CustomerRepository) List(ctx context.Context, orgID string) ([]domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE organization_id = $1
		ORDER BY name ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, nil
}

// FindByName finds a customer by exact case-insensitive name match. Returns
// NotFound when no customer matches; an ambiguous match (several customers
// with the same name) also returns NotFound so reconciliation never guesses.
func (r *CustomerRepository) FindByName(ctx context.Context, orgID, name string) (*domain.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE organization_id = $1 AND lower(name) = lower($2)
		LIMIT 2`

	rows, err := r.pool.Query(ctx, query, orgID, name)
	if err != nil {
		return nil, fmt.Errorf("find customer by name: %w", err)
	}
	defer rows.Close()

	var matches []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		matches = append(matches, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}
	if len(matches) != 1 {
		return nil, apperrors.ErrNotFound
	}
	return &matches[0], nil
}

// digitsOnly strips everything but ASCII digits from a phone number.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindByPhone finds a customer by phone number with all non-digit characters
// stripped on both sides of the comparison. A phone that strips to no digits
// at all (e.g. "N/A") never matches: two digitless phones are not the same
// number.
func (r *CustomerRepository) FindByPhone(ctx context.Context, orgID, phone string) (*domain.Customer, error) {
	digits := digitsOnly(phone)
	if digits == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE organization_id = $1
		  AND regexp_replace(phone, '\D', '', 'g') = $2
		LIMIT 2`

	rows, err := r.pool.Query(ctx, query, orgID, digits)
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	defer rows.Close()

	var matches []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		matches = append(matches, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}
	if len(matches) != 1 {
		return nil, apperrors.ErrNotFound
	}
	return &matches[0], nil
}
