package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
)

// CustomerLedgerService maintains the denormalized per-customer aggregates.
// Incremental updates are single atomic statements in the repository; this
// layer applies the tier policy knobs and keeps the logging consistent.
type CustomerLedgerService struct {
	customers    repository.CustomerRepository
	vipThreshold int64
	logger       *slog.Logger
}

// NewCustomerLedgerService creates a new customer ledger service.
func NewCustomerLedgerService(customers repository.CustomerRepository, vipThreshold int64, logger *slog.Logger) *CustomerLedgerService {
	if vipThreshold <= 0 {
		vipThreshold = domain.DefaultVIPThreshold
	}
	return &CustomerLedgerService{
		customers:    customers,
		vipThreshold: vipThreshold,
		logger:       logger,
	}
}

// Get retrieves a customer with its current aggregates.
func (s *CustomerLedgerService) Get(ctx context.Context, orgID, customerID string) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, orgID, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// List returns all customers for an organization.
func (s *CustomerLedgerService) List(ctx context.Context, orgID string) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// ApplyOrderCreated folds a newly created order into the customer's
// aggregates: lifetime spend, order count, outstanding balance, loyalty
// points, promote-only tier, and first/last order dates.
func (s *CustomerLedgerService) ApplyOrderCreated(ctx context.Context, orgID, customerID string, amount, outstanding int64, orderDate time.Time) error {
	if err := s.customers.ApplyOrderCreated(ctx, orgID, customerID, amount, outstanding, orderDate, s.vipThreshold); err != nil {
		return fmt.Errorf("apply order created: %w", err)
	}

	s.logger.InfoContext(ctx, "customer aggregates updated for new order",
		slog.String("customer_id", customerID),
		slog.Int64("amount", amount),
	)
	return nil
}

// ApplyOrderCancelled reverses the monetary contribution of a cancelled order.
// The order count and tier are kept; only a full recompute demotes.
func (s *CustomerLedgerService) ApplyOrderCancelled(ctx context.Context, orgID, customerID string, amount, outstanding int64) error {
	if err := s.customers.ApplyOrderCancelled(ctx, orgID, customerID, amount, outstanding); err != nil {
		return fmt.Errorf("apply order cancelled: %w", err)
	}

	s.logger.InfoContext(ctx, "customer aggregates reversed for cancelled order",
		slog.String("customer_id", customerID),
		slog.Int64("amount", amount),
	)
	return nil
}

// VIPThreshold returns the configured lifetime-spend threshold for VIP
// promotion.
func (s *CustomerLedgerService) VIPThreshold() int64 {
	return s.vipThreshold
}
