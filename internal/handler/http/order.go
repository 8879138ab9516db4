package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/service"
	"github.com/opsdash/consistency-engine/pkg/httputil"
	"github.com/opsdash/consistency-engine/pkg/middleware"
	"github.com/opsdash/consistency-engine/pkg/validator"
)

// OrderHandler handles HTTP requests for fulfillment endpoints.
type OrderHandler struct {
	fulfillment *service.FulfillmentService
	logger      *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(fulfillment *service.FulfillmentService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	CustomerID    *string `json:"customer_id" validate:"omitempty,uuid"`
	CustomerName  string  `json:"customer_name" validate:"required,max=255"`
	CustomerPhone string  `json:"customer_phone" validate:"omitempty,max=32"`
	ProductSKU    string  `json:"product_sku" validate:"required,max=64"`
	Quantity      int     `json:"quantity" validate:"required,gte=1"`
	Amount        int64   `json:"amount" validate:"gte=0"`
	PaidAmount    int64   `json:"paid_amount" validate:"gte=0"`
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order := &domain.Order{
		OrganizationID: middleware.OrgIDFromContext(r.Context()),
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		ProductSKU:     req.ProductSKU,
		Quantity:       req.Quantity,
		Amount:         req.Amount,
		PaidAmount:     req.PaidAmount,
	}

	created, err := h.fulfillment.CreateOrder(r.Context(), order)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: created})
}

// GetOrder handles GET /api/v1/orders/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.fulfillment.GetOrder(r.Context(), middleware.OrgIDFromContext(r.Context()), orderID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// StartProcessing handles POST /api/v1/orders/{orderId}/process
func (h *OrderHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fulfillment.StartProcessing)
}

// Ship handles POST /api/v1/orders/{orderId}/ship
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fulfillment.Ship)
}

// Deliver handles POST /api/v1/orders/{orderId}/deliver
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fulfillment.Deliver)
}

// Cancel handles POST /api/v1/orders/{orderId}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.fulfillment.Cancel)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orgID, orderID string) (*domain.Order, error)) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := fn(r.Context(), middleware.OrgIDFromContext(r.Context()), orderID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
