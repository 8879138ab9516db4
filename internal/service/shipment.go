package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/pkg/httpclient"
)

// ShipmentRequester asks the downstream shipment service to pick up an order.
// Satisfied by ShipmentClient; the coordinator treats failures as non-fatal.
type ShipmentRequester interface {
	RequestShipment(ctx context.Context, order *domain.Order) (string, error)
}

// ShipmentClient calls the external shipment service over HTTP with a circuit
// breaker, so a flapping downstream never stalls order transitions.
type ShipmentClient struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	logger  *slog.Logger
}

// NewShipmentClient creates a circuit-broken shipment service client.
func NewShipmentClient(baseURL string, logger *slog.Logger) *ShipmentClient {
	client := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("shipment-service"), logger)
	return &ShipmentClient{
		http:    cb,
		baseURL: baseURL,
		logger:  logger,
	}
}

type shipmentRequest struct {
	OrderID        string `json:"order_id"`
	OrganizationID string `json:"organization_id"`
	ProductSKU     string `json:"product_sku"`
	Quantity       int    `json:"quantity"`
	CustomerName   string `json:"customer_name"`
	CustomerPhone  string `json:"customer_phone,omitempty"`
}

type shipmentResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// RequestShipment registers the order with the shipment service and returns
// the downstream shipment ID.
func (c *ShipmentClient) RequestShipment(ctx context.Context, order *domain.Order) (string, error) {
	payload, err := json.Marshal(shipmentRequest{
		OrderID:        order.ID,
		OrganizationID: order.OrganizationID,
		ProductSKU:     order.ProductSKU,
		Quantity:       order.Quantity,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.CustomerPhone,
	})
	if err != nil {
		return "", fmt.Errorf("marshal shipment request: %w", err)
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/api/v1/shipments", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("request shipment: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shipment service returned status %d", resp.StatusCode)
	}

	var out shipmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode shipment response: %w", err)
	}
	return out.Data.ID, nil
}
