package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/event"
	"github.com/opsdash/consistency-engine/internal/repository"
)

// --- Mock InventoryRepository ---

type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) CreateItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InventoryItem), args.Error(1)
}

func (m *mockInventoryRepository) GetBySKU(ctx context.Context, orgID, sku string) (*domain.InventoryItem, error) {
	args := m.Called(ctx, orgID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InventoryItem), args.Error(1)
}

func (m *mockInventoryRepository) ApplyDelta(ctx context.Context, orgID, sku string, delta int, entryType string, orderID *string, reason string) (*repository.AppliedDelta, error) {
	args := m.Called(ctx, orgID, sku, delta, entryType, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.AppliedDelta), args.Error(1)
}

func (m *mockInventoryRepository) HasDeductionForOrder(ctx context.Context, orgID, sku, orderID string) (bool, error) {
	args := m.Called(ctx, orgID, sku, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockInventoryRepository) SetQuantity(ctx context.Context, orgID, sku string, target int, reason string) (*repository.AppliedDelta, error) {
	args := m.Called(ctx, orgID, sku, target, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.AppliedDelta), args.Error(1)
}

func (m *mockInventoryRepository) ListHistory(ctx context.Context, orgID, sku string, page, perPage int) ([]domain.HistoryEntry, int, error) {
	args := m.Called(ctx, orgID, sku, page, perPage)
	return args.Get(0).([]domain.HistoryEntry), args.Int(1), args.Error(2)
}

func (m *mockInventoryRepository) ListHistoryForItem(ctx context.Context, orgID, itemID string) ([]domain.HistoryEntry, error) {
	args := m.Called(ctx, orgID, itemID)
	return args.Get(0).([]domain.HistoryEntry), args.Error(1)
}

func (m *mockInventoryRepository) ListItems(ctx context.Context, orgID string) ([]domain.InventoryItem, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).([]domain.InventoryItem), args.Error(1)
}

// --- Mock OrderRepository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Order, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orgID, id, status string, inventoryDeducted bool) error {
	args := m.Called(ctx, orgID, id, status, inventoryDeducted)
	return args.Error(0)
}

func (m *mockOrderRepository) ListUnlinked(ctx context.Context, orgID string) ([]domain.Order, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) CountLinked(ctx context.Context, orgID string) (int, error) {
	args := m.Called(ctx, orgID)
	return args.Int(0), args.Error(1)
}

func (m *mockOrderRepository) ListByCustomer(ctx context.Context, orgID, customerID string) ([]domain.Order, error) {
	args := m.Called(ctx, orgID, customerID)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) LinkCustomer(ctx context.Context, orgID, orderID, customerID string) error {
	args := m.Called(ctx, orgID, orderID, customerID)
	return args.Error(0)
}

// --- Mock CustomerRepository ---

type mockCustomerRepository struct {
	mock.Mock
}

func (m *mockCustomerRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Customer, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *mockCustomerRepository) ApplyOrderCreated(ctx context.Context, orgID, customerID string, amount, outstanding int64, orderDate time.Time, vipThreshold int64) error {
	args := m.Called(ctx, orgID, customerID, amount, outstanding, orderDate, vipThreshold)
	return args.Error(0)
}

func (m *mockCustomerRepository) ApplyOrderCancelled(ctx context.Context, orgID, customerID string, amount, outstanding int64) error {
	args := m.Called(ctx, orgID, customerID, amount, outstanding)
	return args.Error(0)
}

func (m *mockCustomerRepository) ReplaceAggregates(ctx context.Context, orgID, customerID string, agg domain.CustomerAggregates, readAt time.Time) error {
	args := m.Called(ctx, orgID, customerID, agg, readAt)
	return args.Error(0)
}

func (m *mockCustomerRepository) List(ctx context.Context, orgID string) ([]domain.Customer, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).([]domain.Customer), args.Error(1)
}

func (m *mockCustomerRepository) FindByName(ctx context.Context, orgID, name string) (*domain.Customer, error) {
	args := m.Called(ctx, orgID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *mockCustomerRepository) FindByPhone(ctx context.Context, orgID, phone string) (*domain.Customer, error) {
	args := m.Called(ctx, orgID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

// --- Mock NotificationRepository ---

type mockNotificationRepository struct {
	mock.Mock
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationRepository) HasUnread(ctx context.Context, orgID, notificationType, refID string) (bool, error) {
	args := m.Called(ctx, orgID, notificationType, refID)
	return args.Bool(0), args.Error(1)
}

// --- Mock ShipmentRequester ---

type mockShipmentRequester struct {
	mock.Mock
}

func (m *mockShipmentRequester) RequestShipment(ctx context.Context, order *domain.Order) (string, error) {
	args := m.Called(ctx, order)
	return args.String(0), args.Error(1)
}

// --- Fakes ---

// stubPublisher satisfies the event publisher interfaces and records what was
// published.
type stubPublisher struct {
	mu             sync.Mutex
	crossings      []*domain.ThresholdCrossing
	created        []string
	shipped        []string
	cancelled      []string
	reconciliation []event.ReconciliationCompletedData
	err            error
}

func (p *stubPublisher) PublishThresholdCrossed(ctx context.Context, orgID string, crossing *domain.ThresholdCrossing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crossings = append(p.crossings, crossing)
	return p.err
}

func (p *stubPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order.ID)
	return p.err
}

func (p *stubPublisher) PublishOrderShipped(ctx context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shipped = append(p.shipped, order.ID)
	return p.err
}

func (p *stubPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, order.ID)
	return p.err
}

func (p *stubPublisher) PublishReconciliationCompleted(ctx context.Context, orgID string, data event.ReconciliationCompletedData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciliation = append(p.reconciliation, data)
	return p.err
}

// fakeInvalidator records invalidation calls.
type fakeInvalidator struct {
	mu   sync.Mutex
	orgs []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, orgID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs = append(f.orgs, orgID)
}

func (f *fakeInvalidator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orgs)
}

// fakeSuggestionCache is an in-memory SuggestionCache.
type fakeSuggestionCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeSuggestionCache() *fakeSuggestionCache {
	return &fakeSuggestionCache{store: make(map[string][]byte)}
}

func (c *fakeSuggestionCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.store[key]
	return val, ok
}

func (c *fakeSuggestionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

func (c *fakeSuggestionCache) Del(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// --- Test Helpers ---

const testOrg = "11111111-1111-1111-1111-111111111111"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
