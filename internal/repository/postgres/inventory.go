package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
	"github.com/opsdash/consistency-engine/pkg/database"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// InventoryRepository implements repository.InventoryRepository using PostgreSQL.
type InventoryRepository struct {
	pool database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool database.DBTX) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

const itemColumns = `id, organization_id, sku, name, quantity_on_hand, low_stock_threshold,
		reorder_point, reorder_quantity, unit_cost, lead_time_days, created_at, updated_at`

func scanItem(row pgx.Row) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := row.Scan(
		&item.ID,
		&item.OrganizationID,
		&item.SKU,
		&item.Name,
		&item.QuantityOnHand,
		&item.LowStockThreshold,
		&item.ReorderPoint,
		&item.ReorderQuantity,
		&item.UnitCost,
		&item.LeadTimeDays,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new item and its initial history entry in one
// transaction, so the cached quantity is witnessed from the first row.
func (r *InventoryRepository) CreateItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	insertQuery := `
		INSERT INTO inventory_items (id, organization_id, sku, name, quantity_on_hand, low_stock_threshold,
			reorder_point, reorder_quantity, unit_cost, lead_time_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + itemColumns

	created, err := scanItem(tx.QueryRow(ctx, insertQuery,
		item.ID,
		item.OrganizationID,
		item.SKU,
		item.Name,
		item.QuantityOnHand,
		item.LowStockThreshold,
		item.ReorderPoint,
		item.ReorderQuantity,
		item.UnitCost,
		item.LeadTimeDays,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("inventory item", "sku", item.SKU)
		}
		return nil, fmt.Errorf("create inventory item: %w", err)
	}

	historyQuery := `
		INSERT INTO inventory_history (id, organization_id, item_id, entry_type, quantity_change,
			previous_quantity, new_quantity, order_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)`

	_, err = tx.Exec(ctx, historyQuery,
		uuid.New().String(),
		item.OrganizationID,
		created.ID,
		domain.EntryTypeInitial,
		item.QuantityOnHand,
		0,
		item.QuantityOnHand,
		"initial stock",
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert initial history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return created, nil
}

// GetBySKU retrieves an item by SKU within an organization.
func (r *InventoryRepository) GetBySKU(ctx context.Context, orgID, sku string) (*domain.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND sku = $2`

	item, err := scanItem(r.pool.QueryRow(ctx, query, orgID, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get item by sku: %w", err)
	}
	return item, nil
}

// ApplyDelta locks the item row, applies the signed quantity change, and
// appends the matching history entry, all in one transaction. The row lock
// serializes concurrent mutations of the same SKU so the previous/new
// quantities recorded in the history are an accurate point-in-time witness.
func (r *InventoryRepository) ApplyDelta(ctx context.Context, orgID, sku string, delta int, entryType string, orderID *string, reason string) (*repository.AppliedDelta, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockQuery := `
		SELECT ` + itemColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND sku = $2
		FOR UPDATE`

	item, err := scanItem(tx.QueryRow(ctx, lockQuery, orgID, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lock item row: %w", err)
	}

	previous := item.QuantityOnHand
	next := previous + delta
	if next < 0 {
		return nil, apperrors.InsufficientStock(sku, -delta, previous)
	}

	now := time.Now().UTC()

	updateQuery := `
		UPDATE inventory_items
		SET quantity_on_hand = $1, updated_at = $2
		WHERE organization_id = $3 AND sku = $4`

	if _, err := tx.Exec(ctx, updateQuery, next, now, orgID, sku); err != nil {
		return nil, fmt.Errorf("update cached quantity: %w", err)
	}

	entry := &domain.HistoryEntry{
		ID:               uuid.New().String(),
		OrganizationID:   orgID,
		ItemID:           item.ID,
		EntryType:        entryType,
		QuantityChange:   delta,
		PreviousQuantity: previous,
		NewQuantity:      next,
		OrderID:          orderID,
		Reason:           reason,
		CreatedAt:        now,
	}

	historyQuery := `
		INSERT INTO inventory_history (id, organization_id, item_id, entry_type, quantity_change,
			previous_quantity, new_quantity, order_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, historyQuery,
		entry.ID,
		entry.OrganizationID,
		entry.ItemID,
		entry.EntryType,
		entry.QuantityChange,
		entry.PreviousQuantity,
		entry.NewQuantity,
		entry.OrderID,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	item.QuantityOnHand = next
	item.UpdatedAt = now

	return &repository.AppliedDelta{
		Item:             item,
		PreviousQuantity: previous,
		NewQuantity:      next,
		Entry:            entry,
	}, nil
}

// HasDeductionForOrder reports whether an unreversed sale entry exists for the
// given order: a sale was recorded and no reversal for the same order followed
// it. A deduction that was already restored does not count, so a cancel that
// re-derives the flag from history never restores twice.
func (r *InventoryRepository) HasDeductionForOrder(ctx context.Context, orgID, sku, orderID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM inventory_history h
			JOIN inventory_items i ON i.id = h.item_id
			WHERE h.organization_id = $1 AND i.sku = $2 AND h.order_id = $3 AND h.entry_type = $4
		) AND NOT EXISTS (
			SELECT 1
			FROM inventory_history h
			JOIN inventory_items i ON i.id = h.item_id
			WHERE h.organization_id = $1 AND i.sku = $2 AND h.order_id = $3 AND h.entry_type = $5
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, orgID, sku, orderID, domain.EntryTypeSale, domain.EntryTypeReversal).Scan(&exists); err != nil {
		return false, fmt.Errorf("check deduction for order: %w", err)
	}
	return exists, nil
}

// SetQuantity locks the item row, computes the delta toward the absolute
// target quantity, and appends a restock (delta > 0) or adjustment (delta < 0)
// entry in the same transaction. A target equal to the current quantity is a
// no-op and appends nothing.
func (r *InventoryRepository) SetQuantity(ctx context.Context, orgID, sku string, target int, reason string) (*repository.AppliedDelta, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockQuery := `
		SELECT ` + itemColumns + `
		FROM inventory_items
		WHERE organization_id = $1 AND sku = $2
		FOR UPDATE`

	item, err := scanItem(tx.QueryRow(ctx, lockQuery, orgID, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lock item row: %w", err)
	}

	previous := item.QuantityOnHand
	delta := target - previous
	if delta == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return &repository.AppliedDelta{Item: item, PreviousQuantity: previous, NewQuantity: previous}, nil
	}

	entryType := domain.EntryTypeRestock
	if delta < 0 {
		entryType = domain.EntryTypeAdjustment
	}

	now := time.Now().UTC()

	updateQuery := `
		UPDATE inventory_items
		SET quantity_on_hand = $1, updated_at = $2
		WHERE organization_id = $3 AND sku = $4`

	if _, err := tx.Exec(ctx, updateQuery, target, now, orgID, sku); err != nil {
		return nil, fmt.Errorf("update cached quantity: %w", err)
	}

	entry := &domain.HistoryEntry{
		ID:               uuid.New().String(),
		OrganizationID:   orgID,
		ItemID:           item.ID,
		EntryType:        entryType,
		QuantityChange:   delta,
		PreviousQuantity: previous,
		NewQuantity:      target,
		Reason:           reason,
		CreatedAt:        now,
	}

	historyQuery := `
		INSERT INTO inventory_history (id, organization_id, item_id, entry_type, quantity_change,
			previous_quantity, new_quantity, order_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)`

	_, err = tx.Exec(ctx, historyQuery,
		entry.ID,
		entry.OrganizationID,
		entry.ItemID,
		entry.EntryType,
		entry.QuantityChange,
		entry.PreviousQuantity,
		entry.NewQuantity,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	item.QuantityOnHand = target
	item.UpdatedAt = now

	return &repository.AppliedDelta{
		Item:             item,
		PreviousQuantity: previous,
		NewQuantity:      target,
		Entry:            entry,
	}, nil
}

const historyColumns = `id, organization_id, item_id, entry_type, quantity_change,
		previous_quantity, new_quantity, order_id, reason, created_at`

func scanHistoryRows(rows pgx.Rows, withTotal bool) ([]domain.HistoryEntry, int, error) {
	defer rows.Close()

	var (
		entries []domain.HistoryEntry
		total   int
	)
	for rows.Next() {
		var e domain.HistoryEntry
		dest := []any{
			&e.ID, &e.OrganizationID, &e.ItemID, &e.EntryType, &e.QuantityChange,
			&e.PreviousQuantity, &e.NewQuantity, &e.OrderID, &e.Reason, &e.CreatedAt,
		}
		if withTotal {
			dest = append(dest, &total)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history rows: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, total, nil
}

// ListHistory returns an item's history newest-first, paginated.
func (r *InventoryRepository) ListHistory(ctx context.Context, orgID, sku string, page, perPage int) ([]domain.HistoryEntry, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT ` + historyColumns + `,
			count(*) OVER() AS total_count
		FROM inventory_history h
		WHERE h.organization_id = $1
		  AND h.item_id = (SELECT id FROM inventory_items WHERE organization_id = $1 AND sku = $2)
		ORDER BY h.created_at DESC, h.id DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, orgID, sku, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return scanHistoryRows(rows, true)
}

// ListHistoryForItem returns an item's full history oldest-first.
func (r *InventoryRepository) ListHistoryForItem(ctx context.Context, orgID, itemID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM inventory_history h
		WHERE h.organization_id = $1 AND h.item_id = $2
		ORDER BY h.created_at ASC, h.id ASC`

	rows, err := r.pool.Query(ctx, query, orgID, itemID)
	if err != nil {
		return nil, fmt.Errorf("list history for item: %w", err)
	}
	entries, _, err := scanHistoryRows(rows, false)
	return entries, err
}

// ListItems returns all items for an organization ordered by SKU.
func (r *InventoryRepository) ListItems(ctx context.Context, orgID string) ([]domain.InventoryItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM inventory_items
		WHERE organization_id = $1
		ORDER BY sku ASC`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	if items == nil {
		items = []domain.InventoryItem{}
	}
	return items, nil
}
