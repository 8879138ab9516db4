package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/service"
	"github.com/opsdash/consistency-engine/pkg/httputil"
	"github.com/opsdash/consistency-engine/pkg/middleware"
	"github.com/opsdash/consistency-engine/pkg/pagination"
	"github.com/opsdash/consistency-engine/pkg/validator"
)

// InventoryHandler handles HTTP requests for stock ledger endpoints.
type InventoryHandler struct {
	ledger  *service.StockLedgerService
	advisor *service.ReorderAdvisorService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(ledger *service.StockLedgerService, advisor *service.ReorderAdvisorService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		ledger:  ledger,
		advisor: advisor,
		logger:  logger,
	}
}

// --- Request DTOs ---

// RegisterItemRequest is the JSON request body for registering an item.
type RegisterItemRequest struct {
	SKU               string `json:"sku" validate:"required,max=64"`
	Name              string `json:"name" validate:"required,max=255"`
	Quantity          int    `json:"quantity" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	ReorderPoint      *int   `json:"reorder_point" validate:"omitempty,gte=0"`
	ReorderQuantity   *int   `json:"reorder_quantity" validate:"omitempty,gte=1"`
	UnitCost          int64  `json:"unit_cost" validate:"omitempty,gte=0"`
	LeadTimeDays      int    `json:"lead_time_days" validate:"omitempty,gte=1"`
}

// StockMovementRequest is the JSON request body for deduct and restore.
type StockMovementRequest struct {
	Quantity int    `json:"quantity" validate:"required,gte=1"`
	OrderID  string `json:"order_id" validate:"omitempty,uuid"`
}

// RestockRequest is the JSON request body for restocking.
type RestockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gte=1"`
	Reason   string `json:"reason" validate:"omitempty,max=255"`
}

// SetQuantityRequest is the JSON request body for setting an absolute quantity.
type SetQuantityRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"omitempty,max=255"`
}

// --- Handlers ---

// RegisterItem handles POST /api/v1/inventory
func (h *InventoryHandler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RegisterItemRequest
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

	item := &domain.InventoryItem{
		OrganizationID:    middleware.OrgIDFromContext(r.Context()),
		SKU:               req.SKU,
		Name:              req.Name,
		QuantityOnHand:    req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		ReorderPoint:      req.ReorderPoint,
		ReorderQuantity:   req.ReorderQuantity,
		UnitCost:          req.UnitCost,
		LeadTimeDays:      req.LeadTimeDays,
	}

	created, err := h.ledger.RegisterItem(r.Context(), item)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: created})
}

// ListItems handles GET /api/v1/inventory
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.ListItems(r.Context(), middleware.OrgIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// GetItem handles GET /api/v1/inventory/{sku}
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.ledger.GetItem(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: item})
}

// GetHistory handles GET /api/v1/inventory/{sku}/history
func (h *InventoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	entries, total, err := h.ledger.History(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(entries, total, params))
}

// Deduct handles POST /api/v1/inventory/{sku}/deduct
func (h *InventoryHandler) Deduct(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.Deduct(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"), req.Quantity, req.OrderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Restore handles POST /api/v1/inventory/{sku}/restore
func (h *InventoryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.Restore(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"), req.Quantity, req.OrderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Restock handles POST /api/v1/inventory/{sku}/restock
func (h *InventoryHandler) Restock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RestockRequest
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

	result, err := h.ledger.Restock(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"), req.Quantity, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// SetQuantity handles PUT /api/v1/inventory/{sku}/quantity
func (h *InventoryHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SetQuantityRequest
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

	result, err := h.ledger.SetQuantityWithHistory(r.Context(), middleware.OrgIDFromContext(r.Context()), chi.URLParam(r, "sku"), req.Quantity, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ReorderSuggestions handles GET /api/v1/inventory/reorder-suggestions
func (h *InventoryHandler) ReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.advisor.Suggestions(r.Context(), middleware.OrgIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: suggestions})
}

func decodeMovement(w http.ResponseWriter, r *http.Request) (*StockMovementRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req StockMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return nil, false
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return nil, false
	}
	return &req, true
}
