package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/database"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

func newCustomerRepo(t *testing.T) (*CustomerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewCustomerRepository(mock), mock
}

func customerRowColumns() []string {
	return []string{
		"id", "organization_id", "name", "phone", "total_purchases", "total_orders",
		"outstanding_balance", "loyalty_points", "customer_type", "first_order_date",
		"last_order_date", "created_at", "updated_at",
	}
}

func customerRow(mock pgxmock.PgxPoolIface, id, name string) *pgxmock.Rows {
	now := time.Now().UTC()
	return mock.NewRows(customerRowColumns()).
		AddRow(id, testOrgID, name, "+1 (555) 010-9999", int64(1200), 3, int64(0), int64(12),
			domain.CustomerTypeRegular, nil, nil, now, now)
}

func TestCustomerRepository_ApplyOrderCreated(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	orderDate := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(60000), int64(1000), int64(50000), orderDate, testOrgID, "cust-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.ApplyOrderCreated(context.Background(), testOrgID, "cust-1", 60000, 1000, orderDate, 50000)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ApplyOrderCreated_NotFound(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(100), int64(0), int64(50000), pgxmock.AnyArg(), testOrgID, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.ApplyOrderCreated(context.Background(), testOrgID, "missing", 100, 0, time.Now(), 50000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ApplyOrderCancelled(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(800), int64(200), testOrgID, "cust-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.ApplyOrderCancelled(context.Background(), testOrgID, "cust-1", 800, 200)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ReplaceAggregates(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	agg := domain.CustomerAggregates{
		TotalPurchases:     1200,
		TotalOrders:        2,
		OutstandingBalance: 200,
		LoyaltyPoints:      12,
		CustomerType:       domain.CustomerTypeRegular,
		FirstOrderDate:     &first,
		LastOrderDate:      &last,
	}

	readAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(1200), 2, int64(200), int64(12), domain.CustomerTypeRegular, &first, &last, testOrgID, "cust-1", readAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.ReplaceAggregates(context.Background(), testOrgID, "cust-1", agg, readAt)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ReplaceAggregates_ConcurrentWrite(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	readAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(0), 0, int64(0), int64(0), domain.CustomerTypeNew, (*time.Time)(nil), (*time.Time)(nil), testOrgID, "cust-1", readAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(testOrgID, "cust-1").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	agg := domain.CustomerAggregates{CustomerType: domain.CustomerTypeNew}
	err := repo.ReplaceAggregates(context.Background(), testOrgID, "cust-1", agg, readAt)
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_ReplaceAggregates_MissingCustomerIsNotFound(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	readAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE customers").
		WithArgs(int64(0), 0, int64(0), int64(0), domain.CustomerTypeNew, (*time.Time)(nil), (*time.Time)(nil), testOrgID, "missing", readAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(testOrgID, "missing").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))

	agg := domain.CustomerAggregates{CustomerType: domain.CustomerTypeNew}
	err := repo.ReplaceAggregates(context.Background(), testOrgID, "missing", agg, readAt)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_FindByName_Single(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs(testOrgID, "Jane Roe").
		WillReturnRows(customerRow(mock, "cust-1", "Jane Roe"))

	c, err := repo.FindByName(context.Background(), testOrgID, "Jane Roe")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", c.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_FindByName_AmbiguousIsNotFound(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	now := time.Now().UTC()
	rows := mock.NewRows(customerRowColumns()).
		AddRow("cust-1", testOrgID, "Jane Roe", "", int64(0), 0, int64(0), int64(0),
			domain.CustomerTypeNew, nil, nil, now, now).
		AddRow("cust-2", testOrgID, "JANE ROE", "", int64(0), 0, int64(0), int64(0),
			domain.CustomerTypeNew, nil, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs(testOrgID, "jane roe").
		WillReturnRows(rows)

	_, err := repo.FindByName(context.Background(), testOrgID, "jane roe")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_FindByPhone(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs(testOrgID, "5550109999").
		WillReturnRows(customerRow(mock, "cust-1", "Jane Roe"))

	c, err := repo.FindByPhone(context.Background(), testOrgID, "555-010-9999")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", c.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_FindByPhone_NoDigitsNeverMatches(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	_, err := repo.FindByPhone(context.Background(), testOrgID, "N/A")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// No query is issued: a digitless phone cannot identify a customer even if
	// stored phones also strip to empty.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newCustomerRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM customers").
		WithArgs(testOrgID, "missing").
		WillReturnRows(mock.NewRows(customerRowColumns()))

	_, err := repo.GetByID(context.Background(), testOrgID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
