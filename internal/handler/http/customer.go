package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdash/consistency-engine/internal/service"
	"github.com/opsdash/consistency-engine/pkg/httputil"
	"github.com/opsdash/consistency-engine/pkg/middleware"
)

// CustomerHandler exposes the customer ledger read endpoints. Aggregates are
// written only by order events and reconciliation, never directly over HTTP.
type CustomerHandler struct {
	ledger *service.CustomerLedgerService
	logger *slog.Logger
}

// NewCustomerHandler creates a new customer HTTP handler.
func NewCustomerHandler(ledger *service.CustomerLedgerService, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		ledger: ledger,
		logger: logger,
	}
}

// ListCustomers handles GET /api/v1/customers
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.ledger.List(r.Context(), middleware.OrgIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: customers})
}

// GetCustomer handles GET /api/v1/customers/{customerId}
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := httputil.ParseUUID(w, chi.URLParam(r, "customerId"))
	if !ok {
		return
	}

	customer, err := h.ledger.Get(r.Context(), middleware.OrgIDFromContext(r.Context()), customerID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: customer})
}
