package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

func newLedgerFixture() (*StockLedgerService, *mockInventoryRepository, *mockNotificationRepository, *stubPublisher, *fakeInvalidator) {
	inv := new(mockInventoryRepository)
	notif := new(mockNotificationRepository)
	pub := &stubPublisher{}
	inval := &fakeInvalidator{}
	alerts := NewAlertPublisher(notif, pub, newTestLogger())
	svc := NewStockLedgerService(inv, alerts, inval, newTestLogger())
	return svc, inv, notif, pub, inval
}

func widgetItem(qty, threshold int) *domain.InventoryItem {
	return &domain.InventoryItem{
		ID:                "item-1",
		OrganizationID:    testOrg,
		SKU:               "WIDGET-1",
		Name:              "Widget",
		QuantityOnHand:    qty,
		LowStockThreshold: threshold,
	}
}

func TestDeduct_Success(t *testing.T) {
	svc, inv, _, _, inval := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-1"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", -3, domain.EntryTypeSale, &orderID, "sale deduction").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(7, 5),
			PreviousQuantity: 10,
			NewQuantity:      7,
		}, nil)

	result, err := svc.Deduct(ctx, testOrg, "WIDGET-1", 3, "order-1")

	require.NoError(t, err)
	assert.Equal(t, 10, result.PreviousQuantity)
	assert.Equal(t, 7, result.NewQuantity)
	assert.Nil(t, result.Crossing)
	assert.Equal(t, 1, inval.calls())

	inv.AssertExpectations(t)
}

func TestDeduct_InsufficientStock(t *testing.T) {
	svc, inv, _, _, inval := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-1"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", -8, domain.EntryTypeSale, &orderID, "sale deduction").
		Return(nil, apperrors.InsufficientStock("WIDGET-1", 8, 7))

	result, err := svc.Deduct(ctx, testOrg, "WIDGET-1", 8, "order-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, 0, inval.calls())

	inv.AssertExpectations(t)
}

func TestDeduct_InvalidQuantity(t *testing.T) {
	svc, _, _, _, _ := newLedgerFixture()

	result, err := svc.Deduct(context.Background(), testOrg, "WIDGET-1", 0, "order-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestDeduct_CrossingPublishesAlert(t *testing.T) {
	svc, inv, notif, pub, _ := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-1"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", -3, domain.EntryTypeSale, &orderID, "sale deduction").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(4, 5),
			PreviousQuantity: 7,
			NewQuantity:      4,
		}, nil)
	notif.On("HasUnread", ctx, testOrg, domain.NotificationTypeLowStock, "item-1").Return(false, nil)
	notif.On("Create", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.NotificationType == domain.NotificationTypeLowStock && n.Severity == domain.SeverityWarning
	})).Return(nil)

	result, err := svc.Deduct(ctx, testOrg, "WIDGET-1", 3, "order-1")

	require.NoError(t, err)
	require.NotNil(t, result.Crossing)
	assert.Equal(t, domain.CrossingLow, result.Crossing.Severity)
	require.Len(t, pub.crossings, 1)
	assert.Equal(t, "WIDGET-1", pub.crossings[0].SKU)

	inv.AssertExpectations(t)
	notif.AssertExpectations(t)
}

func TestDeduct_CriticalCrossingAtZero(t *testing.T) {
	svc, inv, notif, pub, _ := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-2"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", -4, domain.EntryTypeSale, &orderID, "sale deduction").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(0, 5),
			PreviousQuantity: 4,
			NewQuantity:      0,
		}, nil)
	notif.On("HasUnread", ctx, testOrg, domain.NotificationTypeCriticalStock, "item-1").Return(false, nil)
	notif.On("Create", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.NotificationType == domain.NotificationTypeCriticalStock && n.Severity == domain.SeverityCritical
	})).Return(nil)

	result, err := svc.Deduct(ctx, testOrg, "WIDGET-1", 4, "order-2")

	require.NoError(t, err)
	require.NotNil(t, result.Crossing)
	assert.Equal(t, domain.CrossingCritical, result.Crossing.Severity)
	require.Len(t, pub.crossings, 1)

	notif.AssertExpectations(t)
}

func TestDeduct_AlertDedupedWhenUnreadExists(t *testing.T) {
	svc, inv, notif, pub, _ := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-3"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", -1, domain.EntryTypeSale, &orderID, "sale deduction").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(5, 5),
			PreviousQuantity: 6,
			NewQuantity:      5,
		}, nil)
	notif.On("HasUnread", ctx, testOrg, domain.NotificationTypeLowStock, "item-1").Return(true, nil)

	result, err := svc.Deduct(ctx, testOrg, "WIDGET-1", 1, "order-3")

	require.NoError(t, err)
	require.NotNil(t, result.Crossing)
	assert.Empty(t, pub.crossings)
	notif.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	notif.AssertExpectations(t)
}

func TestRestore_Success(t *testing.T) {
	svc, inv, _, _, inval := newLedgerFixture()
	ctx := context.Background()

	orderID := "order-1"
	inv.On("ApplyDelta", ctx, testOrg, "WIDGET-1", 3, domain.EntryTypeReversal, &orderID, "cancellation reversal").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(10, 5),
			PreviousQuantity: 7,
			NewQuantity:      10,
		}, nil)

	result, err := svc.Restore(ctx, testOrg, "WIDGET-1", 3, "order-1")

	require.NoError(t, err)
	assert.Equal(t, 10, result.NewQuantity)
	assert.Nil(t, result.Crossing)
	assert.Equal(t, 1, inval.calls())

	inv.AssertExpectations(t)
}

func TestSetQuantityWithHistory_Success(t *testing.T) {
	svc, inv, _, _, inval := newLedgerFixture()
	ctx := context.Background()

	inv.On("SetQuantity", ctx, testOrg, "WIDGET-1", 20, "stocktake").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(20, 5),
			PreviousQuantity: 7,
			NewQuantity:      20,
			Entry:            &domain.HistoryEntry{EntryType: domain.EntryTypeRestock, QuantityChange: 13},
		}, nil)

	result, err := svc.SetQuantityWithHistory(ctx, testOrg, "WIDGET-1", 20, "stocktake")

	require.NoError(t, err)
	assert.Equal(t, 20, result.NewQuantity)
	assert.Equal(t, domain.EntryTypeRestock, result.Entry.EntryType)
	assert.Equal(t, 1, inval.calls())

	inv.AssertExpectations(t)
}

func TestSetQuantityWithHistory_NoOpSkipsInvalidation(t *testing.T) {
	svc, inv, _, _, inval := newLedgerFixture()
	ctx := context.Background()

	inv.On("SetQuantity", ctx, testOrg, "WIDGET-1", 7, "manual adjustment").
		Return(&repository.AppliedDelta{
			Item:             widgetItem(7, 5),
			PreviousQuantity: 7,
			NewQuantity:      7,
		}, nil)

	result, err := svc.SetQuantityWithHistory(ctx, testOrg, "WIDGET-1", 7, "")

	require.NoError(t, err)
	assert.Nil(t, result.Entry)
	assert.Equal(t, 0, inval.calls())

	inv.AssertExpectations(t)
}

func TestSetQuantityWithHistory_NegativeRejected(t *testing.T) {
	svc, _, _, _, _ := newLedgerFixture()

	result, err := svc.SetQuantityWithHistory(context.Background(), testOrg, "WIDGET-1", -1, "oops")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestRegisterItem_Validation(t *testing.T) {
	svc, _, _, _, _ := newLedgerFixture()
	ctx := context.Background()

	_, err := svc.RegisterItem(ctx, &domain.InventoryItem{Name: "Widget"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.RegisterItem(ctx, &domain.InventoryItem{SKU: "WIDGET-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.RegisterItem(ctx, &domain.InventoryItem{SKU: "WIDGET-1", Name: "Widget", QuantityOnHand: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
}

func TestRegisterItem_Success(t *testing.T) {
	svc, inv, _, _, _ := newLedgerFixture()
	ctx := context.Background()

	item := &domain.InventoryItem{OrganizationID: testOrg, SKU: "WIDGET-1", Name: "Widget", QuantityOnHand: 10}
	inv.On("CreateItem", ctx, item).Return(widgetItem(10, 5), nil)

	created, err := svc.RegisterItem(ctx, item)

	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", created.SKU)

	inv.AssertExpectations(t)
}
