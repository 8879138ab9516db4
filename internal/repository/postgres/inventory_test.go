package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/database"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

const testOrgID = "11111111-1111-1111-1111-111111111111"

func newInventoryRepo(t *testing.T) (*InventoryRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewInventoryRepository(mock), mock
}

func itemRowColumns() []string {
	return []string{
		"id", "organization_id", "sku", "name", "quantity_on_hand", "low_stock_threshold",
		"reorder_point", "reorder_quantity", "unit_cost", "lead_time_days", "created_at", "updated_at",
	}
}

func itemRow(mock pgxmock.PgxPoolIface, id, sku string, qty, threshold int) *pgxmock.Rows {
	now := time.Now().UTC()
	return mock.NewRows(itemRowColumns()).
		AddRow(id, testOrgID, sku, "Widget", qty, threshold, nil, nil, int64(500), 7, now, now)
}

func TestInventoryRepository_ApplyDelta_Deduct(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM inventory_items (.+) FOR UPDATE").
		WithArgs(testOrgID, "SKU-1").
		WillReturnRows(itemRow(mock, "item-1", "SKU-1", 10, 5))
	mock.ExpectExec("UPDATE inventory_items").
		WithArgs(7, pgxmock.AnyArg(), testOrgID, "SKU-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	orderID := "O1"
	mock.ExpectExec("INSERT INTO inventory_history").
		WithArgs(pgxmock.AnyArg(), testOrgID, "item-1", domain.EntryTypeSale, -3, 10, 7, &orderID, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := repo.ApplyDelta(context.Background(), testOrgID, "SKU-1", -3, domain.EntryTypeSale, &orderID, "")
	require.NoError(t, err)
	assert.Equal(t, 10, applied.PreviousQuantity)
	assert.Equal(t, 7, applied.NewQuantity)
	assert.Equal(t, 7, applied.Item.QuantityOnHand)
	assert.Equal(t, domain.EntryTypeSale, applied.Entry.EntryType)
	assert.Equal(t, -3, applied.Entry.QuantityChange)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_ApplyDelta_InsufficientStock(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM inventory_items (.+) FOR UPDATE").
		WithArgs(testOrgID, "SKU-1").
		WillReturnRows(itemRow(mock, "item-1", "SKU-1", 7, 5))
	mock.ExpectRollback()

	orderID := "O2"
	applied, err := repo.ApplyDelta(context.Background(), testOrgID, "SKU-1", -8, domain.EntryTypeSale, &orderID, "")
	require.Error(t, err)
	assert.Nil(t, applied)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_ApplyDelta_NotFound(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM inventory_items (.+) FOR UPDATE").
		WithArgs(testOrgID, "MISSING").
		WillReturnRows(mock.NewRows(itemRowColumns()))
	mock.ExpectRollback()

	_, err := repo.ApplyDelta(context.Background(), testOrgID, "MISSING", -1, domain.EntryTypeSale, nil, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_ApplyDelta_Restore(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM inventory_items (.+) FOR UPDATE").
		WithArgs(testOrgID, "SKU-1").
		WillReturnRows(itemRow(mock, "item-1", "SKU-1", 7, 5))
	mock.ExpectExec("UPDATE inventory_items").
		WithArgs(10, pgxmock.AnyArg(), testOrgID, "SKU-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	orderID := "O1"
	mock.ExpectExec("INSERT INTO inventory_history").
		WithArgs(pgxmock.AnyArg(), testOrgID, "item-1", domain.EntryTypeReversal, 3, 7, 10, &orderID, "order cancelled", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := repo.ApplyDelta(context.Background(), testOrgID, "SKU-1", 3, domain.EntryTypeReversal, &orderID, "order cancelled")
	require.NoError(t, err)
	assert.Equal(t, 10, applied.NewQuantity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_CreateItem_WritesInitialEntry(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	item := &domain.InventoryItem{
		OrganizationID:    testOrgID,
		SKU:               "SKU-9",
		Name:              "Widget",
		QuantityOnHand:    25,
		LowStockThreshold: 5,
		UnitCost:          500,
		LeadTimeDays:      7,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO inventory_items").
		WithArgs(pgxmock.AnyArg(), testOrgID, "SKU-9", "Widget", 25, 5, pgxmock.AnyArg(), pgxmock.AnyArg(), int64(500), 7, pgxmock.AnyArg()).
		WillReturnRows(itemRow(mock, "item-9", "SKU-9", 25, 5))
	mock.ExpectExec("INSERT INTO inventory_history").
		WithArgs(pgxmock.AnyArg(), testOrgID, "item-9", domain.EntryTypeInitial, 25, 0, 25, "initial stock", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := repo.CreateItem(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "item-9", created.ID)
	assert.Equal(t, 25, created.QuantityOnHand)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_CreateItem_Duplicate(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	item := &domain.InventoryItem{OrganizationID: testOrgID, SKU: "SKU-9"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO inventory_items").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
	mock.ExpectRollback()

	_, err := repo.CreateItem(context.Background(), item)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_HasDeductionForOrder(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(testOrgID, "SKU-1", "O1", domain.EntryTypeSale, domain.EntryTypeReversal).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.HasDeductionForOrder(context.Background(), testOrgID, "SKU-1", "O1")
	require.NoError(t, err)
	assert.True(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_ListHistory_Paginated(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	now := time.Now().UTC()
	rows := mock.NewRows([]string{
		"id", "organization_id", "item_id", "entry_type", "quantity_change",
		"previous_quantity", "new_quantity", "order_id", "reason", "created_at", "total_count",
	}).
		AddRow("h2", testOrgID, "item-1", domain.EntryTypeSale, -3, 10, 7, nil, "", now, 2).
		AddRow("h1", testOrgID, "item-1", domain.EntryTypeInitial, 10, 0, 10, nil, "initial stock", now.Add(-time.Hour), 2)

	mock.ExpectQuery("SELECT (.+) FROM inventory_history").
		WithArgs(testOrgID, "SKU-1", 20, 0).
		WillReturnRows(rows)

	entries, total, err := repo.ListHistory(context.Background(), testOrgID, "SKU-1", 1, 20)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, domain.EntryTypeSale, entries[0].EntryType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_GetBySKU_NotFound(t *testing.T) {
	repo, mock := newInventoryRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM inventory_items").
		WithArgs(testOrgID, "MISSING").
		WillReturnRows(mock.NewRows(itemRowColumns()))

	_, err := repo.GetBySKU(context.Background(), testOrgID, "MISSING")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
