package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdash/consistency-engine/internal/service"
	"github.com/opsdash/consistency-engine/pkg/health"
	"github.com/opsdash/consistency-engine/pkg/middleware"
)

// RouterDeps carries the services the router exposes.
type RouterDeps struct {
	StockLedger    *service.StockLedgerService
	ReorderAdvisor *service.ReorderAdvisorService
	Fulfillment    *service.FulfillmentService
	CustomerLedger *service.CustomerLedgerService
	Reconciliation *service.ReconciliationService
	Health         *health.Handler
}

// NewRouter creates a chi router with all engine routes registered. Every
// /api/v1 route is organization-scoped and requires the X-Organization-ID
// header.
func NewRouter(deps RouterDeps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing("consistency-engine"))
	r.Use(middleware.PrometheusMetrics("consistency-engine"))

	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	inventoryHandler := NewInventoryHandler(deps.StockLedger, deps.ReorderAdvisor, logger)
	orderHandler := NewOrderHandler(deps.Fulfillment, logger)
	customerHandler := NewCustomerHandler(deps.CustomerLedger, logger)
	reconciliationHandler := NewReconciliationHandler(deps.Reconciliation, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OrgScope())
		r.Use(middleware.RequestLogger(logger))

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/", inventoryHandler.RegisterItem)
			r.Get("/", inventoryHandler.ListItems)
			r.Get("/reorder-suggestions", inventoryHandler.ReorderSuggestions)
			r.Get("/{sku}", inventoryHandler.GetItem)
			r.Get("/{sku}/history", inventoryHandler.GetHistory)
			r.Post("/{sku}/deduct", inventoryHandler.Deduct)
			r.Post("/{sku}/restore", inventoryHandler.Restore)
			r.Post("/{sku}/restock", inventoryHandler.Restock)
			r.Put("/{sku}/quantity", inventoryHandler.SetQuantity)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.Post("/{orderId}/process", orderHandler.StartProcessing)
			r.Post("/{orderId}/ship", orderHandler.Ship)
			r.Post("/{orderId}/deliver", orderHandler.Deliver)
			r.Post("/{orderId}/cancel", orderHandler.Cancel)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", customerHandler.ListCustomers)
			r.Get("/{customerId}", customerHandler.GetCustomer)
		})

		r.Post("/reconciliation/run", reconciliationHandler.Run)
	})

	return r
}
