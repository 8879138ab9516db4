package http

import (
	"log/slog"
	"net/http"

	"github.com/opsdash/consistency-engine/internal/service"
	"github.com/opsdash/consistency-engine/pkg/httputil"
	"github.com/opsdash/consistency-engine/pkg/middleware"
)

// ReconciliationHandler triggers reconciliation runs over HTTP.
type ReconciliationHandler struct {
	recon  *service.ReconciliationService
	logger *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation HTTP handler.
func NewReconciliationHandler(recon *service.ReconciliationService, logger *slog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		recon:  recon,
		logger: logger,
	}
}

// Run handles POST /api/v1/reconciliation/run. The run executes synchronously
// and returns its counters; runs are idempotent so retrying a timed-out
// request is safe.
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.recon.Run(r.Context(), middleware.OrgIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
