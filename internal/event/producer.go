package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsdash/consistency-engine/internal/domain"
	pkgkafka "github.com/opsdash/consistency-engine/pkg/kafka"
)

// Kafka topic constants for engine domain events.
const (
	TopicStockThresholdCrossed   = "opsledger.stock.threshold_crossed"
	TopicOrderCreated            = "opsledger.order.created"
	TopicOrderShipped            = "opsledger.order.shipped"
	TopicOrderCancelled          = "opsledger.order.cancelled"
	TopicReconciliationCompleted = "opsledger.reconciliation.completed"
)

// Aggregate type constants.
const (
	AggregateTypeInventoryItem  = "inventory_item"
	AggregateTypeOrder          = "order"
	AggregateTypeReconciliation = "reconciliation_run"
)

// Source identifier for events originating from this engine.
const SourceEngine = "consistency-engine"

// ThresholdCrossedData is the payload for a stock.threshold_crossed event.
type ThresholdCrossedData struct {
	OrganizationID   string `json:"organization_id"`
	SKU              string `json:"sku"`
	ItemID           string `json:"item_id"`
	Severity         string `json:"severity"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Threshold        int    `json:"threshold"`
}

// OrderEventData is the payload for order lifecycle events.
type OrderEventData struct {
	OrderID        string  `json:"order_id"`
	OrganizationID string  `json:"organization_id"`
	CustomerID     *string `json:"customer_id,omitempty"`
	ProductSKU     string  `json:"product_sku"`
	Quantity       int     `json:"quantity"`
	Amount         int64   `json:"amount"`
	Status         string  `json:"status"`
}

// ReconciliationCompletedData is the payload for a reconciliation.completed event.
type ReconciliationCompletedData struct {
	OrganizationID   string `json:"organization_id"`
	Linked           int    `json:"linked"`
	AlreadyLinked    int    `json:"already_linked"`
	Unmatched        int    `json:"unmatched"`
	CustomersUpdated int    `json:"customers_updated"`
	Errors           int    `json:"errors"`
}

// Producer publishes engine domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishThresholdCrossed publishes a stock.threshold_crossed event.
func (p *Producer) PublishThresholdCrossed(ctx context.Context, orgID string, crossing *domain.ThresholdCrossing) error {
	data := ThresholdCrossedData{
		OrganizationID:   orgID,
		SKU:              crossing.SKU,
		ItemID:           crossing.ItemID,
		Severity:         crossing.Severity,
		PreviousQuantity: crossing.PreviousQuantity,
		NewQuantity:      crossing.NewQuantity,
		Threshold:        crossing.Threshold,
	}

	event, err := pkgkafka.NewEvent(TopicStockThresholdCrossed, crossing.ItemID, AggregateTypeInventoryItem, SourceEngine, data)
	if err != nil {
		return fmt.Errorf("create stock.threshold_crossed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockThresholdCrossed, event); err != nil {
		return fmt.Errorf("publish stock.threshold_crossed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.threshold_crossed event",
		slog.String("sku", crossing.SKU),
		slog.String("severity", crossing.Severity),
	)

	return nil
}

func (p *Producer) publishOrderEvent(ctx context.Context, topic string, order *domain.Order) error {
	data := OrderEventData{
		OrderID:        order.ID,
		OrganizationID: order.OrganizationID,
		CustomerID:     order.CustomerID,
		ProductSKU:     order.ProductSKU,
		Quantity:       order.Quantity,
		Amount:         order.Amount,
		Status:         order.Status,
	}

	event, err := pkgkafka.NewEvent(topic, order.ID, AggregateTypeOrder, SourceEngine, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published order event",
		slog.String("topic", topic),
		slog.String("order_id", order.ID),
		slog.String("status", order.Status),
	)

	return nil
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderCreated, order)
}

// PublishOrderShipped publishes an order.shipped event.
func (p *Producer) PublishOrderShipped(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderShipped, order)
}

// PublishOrderCancelled publishes an order.cancelled event.
func (p *Producer) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	return p.publishOrderEvent(ctx, TopicOrderCancelled, order)
}

// PublishReconciliationCompleted publishes a reconciliation.completed summary event.
func (p *Producer) PublishReconciliationCompleted(ctx context.Context, orgID string, data ReconciliationCompletedData) error {
	event, err := pkgkafka.NewEvent(TopicReconciliationCompleted, orgID, AggregateTypeReconciliation, SourceEngine, data)
	if err != nil {
		return fmt.Errorf("create reconciliation.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReconciliationCompleted, event); err != nil {
		return fmt.Errorf("publish reconciliation.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published reconciliation.completed event",
		slog.String("organization_id", orgID),
		slog.Int("linked", data.Linked),
		slog.Int("customers_updated", data.CustomersUpdated),
	)

	return nil
}
