package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/event"
	"github.com/opsdash/consistency-engine/internal/repository"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// ReconciliationEventPublisher publishes run summaries to the message bus.
// Satisfied by event.Producer.
type ReconciliationEventPublisher interface {
	PublishReconciliationCompleted(ctx context.Context, orgID string, data event.ReconciliationCompletedData) error
}

// RunResult summarizes one reconciliation run.
type RunResult struct {
	Linked           int `json:"linked"`
	AlreadyLinked    int `json:"already_linked"`
	Unmatched        int `json:"unmatched"`
	CustomersUpdated int `json:"customers_updated"`
	Errors           int `json:"errors"`
}

// ReconciliationConfig carries the recompute policy knobs.
type ReconciliationConfig struct {
	VIPThreshold         int64
	CountCancelledOrders bool
	DemoteOnRecompute    bool
}

// ReconciliationService repairs drift between orders and customer aggregates.
// A run links orphaned orders to customers by name then phone, then replaces
// every customer's aggregates with a pure fold over their orders. Runs are
// idempotent: a second run over quiescent data links nothing and recomputes
// the same values.
type ReconciliationService struct {
	orders    repository.OrderRepository
	customers repository.CustomerRepository
	cfg       ReconciliationConfig
	producer  ReconciliationEventPublisher
	logger    *slog.Logger
}

// NewReconciliationService creates a new reconciliation service.
func NewReconciliationService(
	orders repository.OrderRepository,
	customers repository.CustomerRepository,
	cfg ReconciliationConfig,
	producer ReconciliationEventPublisher,
	logger *slog.Logger,
) *ReconciliationService {
	if cfg.VIPThreshold <= 0 {
		cfg.VIPThreshold = domain.DefaultVIPThreshold
	}
	return &ReconciliationService{
		orders:    orders,
		customers: customers,
		cfg:       cfg,
		producer:  producer,
		logger:    logger,
	}
}

// Run executes one reconciliation pass for an organization. Cancellation is
// honored between customers; a cancelled run reports what it completed.
func (s *ReconciliationService) Run(ctx context.Context, orgID string) (*RunResult, error) {
	result := &RunResult{}

	if err := s.linkOrphans(ctx, orgID, result); err != nil {
		return nil, err
	}
	if err := s.recomputeAggregates(ctx, orgID, result); err != nil {
		return result, err
	}

	if s.producer != nil {
		data := event.ReconciliationCompletedData{
			OrganizationID:   orgID,
			Linked:           result.Linked,
			AlreadyLinked:    result.AlreadyLinked,
			Unmatched:        result.Unmatched,
			CustomersUpdated: result.CustomersUpdated,
			Errors:           result.Errors,
		}
		if err := s.producer.PublishReconciliationCompleted(ctx, orgID, data); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish reconciliation completed event",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "reconciliation run completed",
		slog.Int("linked", result.Linked),
		slog.Int("already_linked", result.AlreadyLinked),
		slog.Int("unmatched", result.Unmatched),
		slog.Int("customers_updated", result.CustomersUpdated),
		slog.Int("errors", result.Errors),
	)
	return result, nil
}

// linkOrphans attaches customer-less orders to customers, matching by exact
// case-insensitive name first, then by phone with all non-digits stripped. An
// order whose match is missing or ambiguous stays unmatched; linking never
// guesses.
func (s *ReconciliationService) linkOrphans(ctx context.Context, orgID string, result *RunResult) error {
	alreadyLinked, err := s.orders.CountLinked(ctx, orgID)
	if err != nil {
		return fmt.Errorf("count linked orders: %w", err)
	}
	result.AlreadyLinked = alreadyLinked

	orphans, err := s.orders.ListUnlinked(ctx, orgID)
	if err != nil {
		return fmt.Errorf("list unlinked orders: %w", err)
	}

	for i := range orphans {
		if err := ctx.Err(); err != nil {
			return err
		}
		order := &orphans[i]

		customer, err := s.matchCustomer(ctx, orgID, order)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to match order to customer",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		if customer == nil {
			result.Unmatched++
			continue
		}

		if err := s.orders.LinkCustomer(ctx, orgID, order.ID, customer.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to link order to customer",
				slog.String("order_id", order.ID),
				slog.String("customer_id", customer.ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		result.Linked++
	}
	return nil
}

// matchCustomer finds the unique customer an orphaned order belongs to, or nil
// when no unambiguous match exists.
func (s *ReconciliationService) matchCustomer(ctx context.Context, orgID string, order *domain.Order) (*domain.Customer, error) {
	customer, err := s.customers.FindByName(ctx, orgID, order.CustomerName)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("find customer by name: %w", err)
	}

	if order.CustomerPhone == "" {
		return nil, nil
	}
	customer, err = s.customers.FindByPhone(ctx, orgID, order.CustomerPhone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	return nil, nil
}

// recomputeRetries bounds how often one customer's recompute is retried when
// an incremental update races the replacement write.
const recomputeRetries = 3

// recomputeAggregates replaces every customer's aggregates with a fold over
// their full order set. One customer's failure is counted and does not stop
// the run.
func (s *ReconciliationService) recomputeAggregates(ctx context.Context, orgID string, result *RunResult) error {
	customers, err := s.customers.List(ctx, orgID)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}

	for i := range customers {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.recomputeCustomer(ctx, orgID, &customers[i]); err != nil {
			s.logger.ErrorContext(ctx, "failed to recompute customer aggregates",
				slog.String("customer_id", customers[i].ID),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		result.CustomersUpdated++
	}
	return nil
}

// recomputeCustomer folds one customer's orders and replaces the aggregates.
// The replacement is guarded by the customer's updated_at as read: when an
// order event lands between the fold and the write, the write is rejected and
// the fold is repeated over a fresh read, a bounded number of times.
func (s *ReconciliationService) recomputeCustomer(ctx context.Context, orgID string, customer *domain.Customer) error {
	for attempt := 1; ; attempt++ {
		orders, err := s.orders.ListByCustomer(ctx, orgID, customer.ID)
		if err != nil {
			return fmt.Errorf("list orders for customer: %w", err)
		}

		agg := domain.FoldOrders(orders, s.cfg.VIPThreshold, s.cfg.CountCancelledOrders, s.cfg.DemoteOnRecompute, customer.CustomerType)
		err = s.customers.ReplaceAggregates(ctx, orgID, customer.ID, agg, customer.UpdatedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrConcurrentModification) || attempt >= recomputeRetries {
			return fmt.Errorf("replace customer aggregates: %w", err)
		}

		s.logger.InfoContext(ctx, "customer changed during recompute, retrying with fresh read",
			slog.String("customer_id", customer.ID),
			slog.Int("attempt", attempt),
		)
		customer, err = s.customers.GetByID(ctx, orgID, customer.ID)
		if err != nil {
			return fmt.Errorf("reread customer: %w", err)
		}
	}
}
