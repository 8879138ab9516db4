package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsdash/consistency-engine/internal/domain"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
	pkgkafka "github.com/opsdash/consistency-engine/pkg/kafka"
)

// Kafka topics consumed by the engine.
const (
	// TopicOrderIntake carries orders placed through external order-entry
	// channels. Consuming them funnels every order through the same
	// deduct-then-persist path as the HTTP API.
	TopicOrderIntake = "opsledger.order.intake"
)

// Fulfillment defines the interface required by the event consumer.
type Fulfillment interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	Cancel(ctx context.Context, orgID, orderID string) (*domain.Order, error)
}

// OrderIntakeData is the expected payload of an order.intake event.
type OrderIntakeData struct {
	OrderID        string  `json:"order_id"`
	OrganizationID string  `json:"organization_id"`
	CustomerID     *string `json:"customer_id,omitempty"`
	CustomerName   string  `json:"customer_name"`
	CustomerPhone  string  `json:"customer_phone,omitempty"`
	ProductSKU     string  `json:"product_sku"`
	Quantity       int     `json:"quantity"`
	Amount         int64   `json:"amount"`
	PaidAmount     int64   `json:"paid_amount"`
	Cancelled      bool    `json:"cancelled,omitempty"`
}

// Consumer processes incoming Kafka events for the engine.
type Consumer struct {
	logger      *slog.Logger
	fulfillment Fulfillment
}

// NewConsumer creates a new event consumer.
func NewConsumer(fulfillment Fulfillment, logger *slog.Logger) *Consumer {
	return &Consumer{
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// HandleOrderIntake processes order.intake events by creating the order (or
// cancelling it when the upstream already cancelled). Insufficient stock is a
// terminal rejection, not a retryable failure, so it never hits the DLQ.
func (c *Consumer) HandleOrderIntake(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderIntakeData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.intake data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.intake event",
		slog.String("order_id", data.OrderID),
		slog.String("sku", data.ProductSKU),
	)

	if data.Cancelled {
		if _, err := c.fulfillment.Cancel(ctx, data.OrganizationID, data.OrderID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				c.logger.WarnContext(ctx, "cancel for unknown order dropped",
					slog.String("order_id", data.OrderID),
				)
				return nil
			}
			return fmt.Errorf("cancel order %s: %w", data.OrderID, err)
		}
		return nil
	}

	order := &domain.Order{
		ID:             data.OrderID,
		OrganizationID: data.OrganizationID,
		CustomerID:     data.CustomerID,
		CustomerName:   data.CustomerName,
		CustomerPhone:  data.CustomerPhone,
		ProductSKU:     data.ProductSKU,
		Quantity:       data.Quantity,
		Amount:         data.Amount,
		PaidAmount:     data.PaidAmount,
	}

	if _, err := c.fulfillment.CreateOrder(ctx, order); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInsufficientStock):
			c.logger.WarnContext(ctx, "intake order rejected, insufficient stock",
				slog.String("order_id", data.OrderID),
				slog.String("sku", data.ProductSKU),
			)
			return nil
		case errors.Is(err, apperrors.ErrAlreadyExists):
			c.logger.InfoContext(ctx, "intake order already exists, skipping",
				slog.String("order_id", data.OrderID),
			)
			return nil
		case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidQuantity):
			c.logger.WarnContext(ctx, "intake order rejected, invalid payload",
				slog.String("order_id", data.OrderID),
				slog.String("error", err.Error()),
			)
			return nil
		default:
			return fmt.Errorf("create order %s: %w", data.OrderID, err)
		}
	}

	c.logger.InfoContext(ctx, "intake order created",
		slog.String("order_id", data.OrderID),
	)
	return nil
}
