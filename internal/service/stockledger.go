package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsdash/consistency-engine/internal/domain"
	"github.com/opsdash/consistency-engine/internal/repository"
	apperrors "github.com/opsdash/consistency-engine/pkg/errors"
)

// SuggestionInvalidator drops cached reorder suggestions for an organization.
// Ledger mutations call it so stale urgency never outlives a stock change.
type SuggestionInvalidator interface {
	Invalidate(ctx context.Context, orgID string)
}

// MutationResult reports the outcome of one ledger mutation: the updated item,
// the quantity transition it witnessed, and the threshold crossing it
// triggered, if any.
type MutationResult struct {
	Item             *domain.InventoryItem `json:"item"`
	PreviousQuantity int                   `json:"previous_quantity"`
	NewQuantity      int                   `json:"new_quantity"`
	Entry            *domain.HistoryEntry  `json:"entry,omitempty"`
	Crossing         *domain.ThresholdCrossing
}

// StockLedgerService is the single mutation path for stock quantities. Every
// change goes through the repository's transactional delta, so the cached
// quantity and the history row can never diverge.
type StockLedgerService struct {
	inventory repository.InventoryRepository
	alerts    *AlertPublisher
	cache     SuggestionInvalidator
	logger    *slog.Logger
}

// NewStockLedgerService creates a new stock ledger service. alerts and cache
// may be nil; mutations then skip alerting and cache invalidation.
func NewStockLedgerService(inventory repository.InventoryRepository, alerts *AlertPublisher, cache SuggestionInvalidator, logger *slog.Logger) *StockLedgerService {
	return &StockLedgerService{
		inventory: inventory,
		alerts:    alerts,
		cache:     cache,
		logger:    logger,
	}
}

// RegisterItem creates a new inventory item together with its initial history
// entry.
func (s *StockLedgerService) RegisterItem(ctx context.Context, item *domain.InventoryItem) (*domain.InventoryItem, error) {
	item.SKU = strings.TrimSpace(item.SKU)
	if item.SKU == "" {
		return nil, apperrors.InvalidInput("sku is required")
	}
	if item.Name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if item.QuantityOnHand < 0 {
		return nil, apperrors.InvalidQuantity("initial quantity cannot be negative")
	}
	if item.LowStockThreshold < 0 {
		return nil, apperrors.InvalidInput("low stock threshold cannot be negative")
	}

	created, err := s.inventory.CreateItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("register item: %w", err)
	}

	s.logger.InfoContext(ctx, "inventory item registered",
		slog.String("sku", created.SKU),
		slog.Int("quantity_on_hand", created.QuantityOnHand),
	)
	return created, nil
}

// GetItem retrieves an item by SKU.
func (s *StockLedgerService) GetItem(ctx context.Context, orgID, sku string) (*domain.InventoryItem, error) {
	item, err := s.inventory.GetBySKU(ctx, orgID, sku)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns all items for an organization.
func (s *StockLedgerService) ListItems(ctx context.Context, orgID string) ([]domain.InventoryItem, error) {
	items, err := s.inventory.ListItems(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// History returns an item's history newest-first, paginated.
func (s *StockLedgerService) History(ctx context.Context, orgID, sku string, page, perPage int) ([]domain.HistoryEntry, int, error) {
	entries, total, err := s.inventory.ListHistory(ctx, orgID, sku, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return entries, total, nil
}

// Deduct removes quantity for a sale. It fails with InsufficientStock when the
// item does not hold enough and leaves the ledger untouched.
func (s *StockLedgerService) Deduct(ctx context.Context, orgID, sku string, quantity int, orderID string) (*MutationResult, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidQuantity("deduct quantity must be positive")
	}

	var ref *string
	if orderID != "" {
		ref = &orderID
	}

	applied, err := s.inventory.ApplyDelta(ctx, orgID, sku, -quantity, domain.EntryTypeSale, ref, "sale deduction")
	if err != nil {
		return nil, fmt.Errorf("deduct stock: %w", err)
	}

	result := s.finishMutation(ctx, orgID, applied)
	s.logger.InfoContext(ctx, "stock deducted",
		slog.String("sku", sku),
		slog.Int("quantity", quantity),
		slog.Int("new_quantity", result.NewQuantity),
		slog.String("order_id", orderID),
	)
	return result, nil
}

// Restore returns quantity to stock as a reversal entry, the inverse of a
// prior deduction for the same order.
func (s *StockLedgerService) Restore(ctx context.Context, orgID, sku string, quantity int, orderID string) (*MutationResult, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidQuantity("restore quantity must be positive")
	}

	var ref *string
	if orderID != "" {
		ref = &orderID
	}

	applied, err := s.inventory.ApplyDelta(ctx, orgID, sku, quantity, domain.EntryTypeReversal, ref, "cancellation reversal")
	if err != nil {
		return nil, fmt.Errorf("restore stock: %w", err)
	}

	result := s.finishMutation(ctx, orgID, applied)
	s.logger.InfoContext(ctx, "stock restored",
		slog.String("sku", sku),
		slog.Int("quantity", quantity),
		slog.Int("new_quantity", result.NewQuantity),
		slog.String("order_id", orderID),
	)
	return result, nil
}

// Restock adds quantity from replenishment.
func (s *StockLedgerService) Restock(ctx context.Context, orgID, sku string, quantity int, reason string) (*MutationResult, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidQuantity("restock quantity must be positive")
	}
	if reason == "" {
		reason = "restock"
	}

	applied, err := s.inventory.ApplyDelta(ctx, orgID, sku, quantity, domain.EntryTypeRestock, nil, reason)
	if err != nil {
		return nil, fmt.Errorf("restock: %w", err)
	}

	result := s.finishMutation(ctx, orgID, applied)
	s.logger.InfoContext(ctx, "stock restocked",
		slog.String("sku", sku),
		slog.Int("quantity", quantity),
		slog.Int("new_quantity", result.NewQuantity),
	)
	return result, nil
}

// SetQuantityWithHistory moves an item to an absolute quantity. The delta is
// derived inside the repository's row lock and recorded as a restock or
// adjustment entry; setting the current quantity changes nothing.
func (s *StockLedgerService) SetQuantityWithHistory(ctx context.Context, orgID, sku string, quantity int, reason string) (*MutationResult, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidQuantity("quantity cannot be negative")
	}
	if reason == "" {
		reason = "manual adjustment"
	}

	applied, err := s.inventory.SetQuantity(ctx, orgID, sku, quantity, reason)
	if err != nil {
		return nil, fmt.Errorf("set quantity: %w", err)
	}

	result := s.finishMutation(ctx, orgID, applied)
	s.logger.InfoContext(ctx, "stock quantity set",
		slog.String("sku", sku),
		slog.Int("previous_quantity", result.PreviousQuantity),
		slog.Int("new_quantity", result.NewQuantity),
		slog.String("reason", reason),
	)
	return result, nil
}

// HasDeductionForOrder reports whether an unreversed sale entry exists for the
// order, used by the fulfillment coordinator to re-derive its deduction flag.
func (s *StockLedgerService) HasDeductionForOrder(ctx context.Context, orgID, sku, orderID string) (bool, error) {
	found, err := s.inventory.HasDeductionForOrder(ctx, orgID, sku, orderID)
	if err != nil {
		return false, fmt.Errorf("check deduction: %w", err)
	}
	return found, nil
}

// finishMutation runs the post-commit side effects of a ledger change: cache
// invalidation and edge-triggered alerting. Neither can fail the mutation; the
// ledger write already committed.
func (s *StockLedgerService) finishMutation(ctx context.Context, orgID string, applied *repository.AppliedDelta) *MutationResult {
	result := &MutationResult{
		Item:             applied.Item,
		PreviousQuantity: applied.PreviousQuantity,
		NewQuantity:      applied.NewQuantity,
		Entry:            applied.Entry,
	}

	if applied.NewQuantity != applied.PreviousQuantity && s.cache != nil {
		s.cache.Invalidate(ctx, orgID)
	}

	result.Crossing = domain.DetectCrossing(applied.Item, applied.PreviousQuantity, applied.NewQuantity)
	if result.Crossing != nil && s.alerts != nil {
		if err := s.alerts.HandleCrossing(ctx, orgID, result.Crossing); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish stock alert",
				slog.String("sku", applied.Item.SKU),
				slog.String("error", err.Error()),
			)
		}
	}
	return result
}
