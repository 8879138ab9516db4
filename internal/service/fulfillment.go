package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// OrderEventPublisher publishes order lifecycle events to the message bus.
// Satisfied by event.Producer.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderShipped(ctx context.Context, order *domain.Order) error
	PublishOrderCancelled(ctx context.Context, order *domain.Order) error
}

// FulfillmentService coordinates the order lifecycle against the stock and
// customer ledgers. Stock is deducted before the order is persisted, so an
// insufficient-stock rejection never leaves a half-created order behind, and
// every restore is guarded by the ledger history so it applies exactly once.
type FulfillmentService struct {
	orders    repository.OrderRepository
	stock     *StockLedgerService
	customers *CustomerLedgerService
	shipments ShipmentRequester
	producer  OrderEventPublisher
	logger    *slog.Logger
}

// NewFulfillmentService creates a new fulfillment coordinator. shipments may
// be nil; shipping then skips the downstream pickup request.
func NewFulfillmentService(
	orders repository.OrderRepository,
	stock *StockLedgerService,
	customers *CustomerLedgerService,
	shipments ShipmentRequester,
	producer OrderEventPublisher,
	logger *slog.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		orders:    orders,
		stock:     stock,
		customers: customers,
		shipments: shipments,
		producer:  producer,
		logger:    logger,
	}
}

// CreateOrder deducts stock and persists the order as pending with the
// deduction flag set. Insufficient stock rejects the order before anything is
// written. A linked customer's aggregates are updated incrementally; a failure
// there is logged and left for reconciliation rather than undoing the order.
func (s *FulfillmentService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	order.ProductSKU = strings.TrimSpace(order.ProductSKU)
	if order.ProductSKU == "" {
		return nil, apperrors.InvalidInput("product sku is required")
	}
	if order.Quantity <= 0 {
		return nil, apperrors.InvalidQuantity("order quantity must be positive")
	}
	if order.CustomerName == "" {
		return nil, apperrors.InvalidInput("customer name is required")
	}
	if order.Amount < 0 || order.PaidAmount < 0 {
		return nil, apperrors.InvalidInput("amounts cannot be negative")
	}
	order.OutstandingAmount = order.Amount - order.PaidAmount
	if order.OutstandingAmount < 0 {
		order.OutstandingAmount = 0
	}
	order.Status = domain.OrderStatusPending
	// The ID is assigned before the deduction so the sale history entry can
	// reference the order it belongs to.
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	if _, err := s.stock.Deduct(ctx, order.OrganizationID, order.ProductSKU, order.Quantity, order.ID); err != nil {
		if errors.Is(err, apperrors.ErrInsufficientStock) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("deduct stock for order: %w", err)
	}
	order.InventoryDeducted = true

	if err := s.orders.Create(ctx, order); err != nil {
		// The deduction committed but the order did not; put the stock back so
		// the ledger stays consistent with the absent order.
		if _, restoreErr := s.stock.Restore(ctx, order.OrganizationID, order.ProductSKU, order.Quantity, order.ID); restoreErr != nil {
			s.logger.ErrorContext(ctx, "failed to restore stock after order create failure",
				slog.String("sku", order.ProductSKU),
				slog.String("error", restoreErr.Error()),
			)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if order.CustomerID != nil {
		if err := s.customers.ApplyOrderCreated(ctx, order.OrganizationID, *order.CustomerID, order.Amount, order.OutstandingAmount, order.CreatedAt); err != nil {
			s.logger.ErrorContext(ctx, "failed to update customer aggregates for new order",
				slog.String("order_id", order.ID),
				slog.String("customer_id", *order.CustomerID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("sku", order.ProductSKU),
		slog.Int("quantity", order.Quantity),
	)
	return order, nil
}

// GetOrder retrieves an order.
func (s *FulfillmentService) GetOrder(ctx context.Context, orgID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orgID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// StartProcessing moves a pending order into processing.
func (s *FulfillmentService) StartProcessing(ctx context.Context, orgID, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orgID, orderID, domain.OrderStatusProcessing)
}

// Ship moves an order to shipped and asks the shipment service to pick it up.
// The pickup request is best-effort; a downstream failure never blocks the
// transition.
func (s *FulfillmentService) Ship(ctx context.Context, orgID, orderID string) (*domain.Order, error) {
	order, err := s.transition(ctx, orgID, orderID, domain.OrderStatusShipped)
	if err != nil {
		return nil, err
	}

	if s.shipments != nil {
		if shipmentID, err := s.shipments.RequestShipment(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to request shipment",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "shipment requested",
				slog.String("order_id", order.ID),
				slog.String("shipment_id", shipmentID),
			)
		}
	}

	if err := s.producer.PublishOrderShipped(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order shipped event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// Deliver moves a shipped order to delivered.
func (s *FulfillmentService) Deliver(ctx context.Context, orgID, orderID string) (*domain.Order, error) {
	return s.transition(ctx, orgID, orderID, domain.OrderStatusDelivered)
}

// Cancel cancels an order and restores its stock deduction exactly once. The
// deduction flag is never trusted on its own: a crash between a committed
// restore and the status write leaves the flag set, and a stale flag (or a
// missing one on orders written before the flag existed) must not change the
// outcome. The ledger history is authoritative — a deduction is outstanding
// only while no reversal entry exists for the order. Cancelling an
// already-cancelled order is a no-op.
func (s *FulfillmentService) Cancel(ctx context.Context, orgID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orgID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	if !order.CanTransitionTo(domain.OrderStatusCancelled) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot cancel order in status %q", order.Status))
	}

	deducted, err := s.stock.HasDeductionForOrder(ctx, orgID, order.ProductSKU, order.ID)
	if err != nil {
		return nil, fmt.Errorf("verify outstanding deduction: %w", err)
	}

	if deducted {
		if _, err := s.stock.Restore(ctx, orgID, order.ProductSKU, order.Quantity, order.ID); err != nil {
			return nil, fmt.Errorf("restore stock on cancel: %w", err)
		}
	}

	if err := s.orders.UpdateStatus(ctx, orgID, order.ID, domain.OrderStatusCancelled, false); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = domain.OrderStatusCancelled
	order.InventoryDeducted = false

	if order.CustomerID != nil {
		if err := s.customers.ApplyOrderCancelled(ctx, orgID, *order.CustomerID, order.Amount, order.OutstandingAmount); err != nil {
			s.logger.ErrorContext(ctx, "failed to reverse customer aggregates on cancel",
				slog.String("order_id", order.ID),
				slog.String("customer_id", *order.CustomerID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.producer.PublishOrderCancelled(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order cancelled event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", order.ID),
		slog.Bool("stock_restored", deducted),
	)
	return order, nil
}

// transition applies a plain status change after validating it against the
// order state machine. The deduction flag is preserved as-is.
func (s *FulfillmentService) transition(ctx context.Context, orgID, orderID, target string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orgID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !order.CanTransitionTo(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot transition order from %q to %q", order.Status, target))
	}

	if err := s.orders.UpdateStatus(ctx, orgID, order.ID, target, order.InventoryDeducted); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = target

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("status", target),
	)
	return order, nil
}
