package domain

import "time"

// History entry types.
const (
	EntryTypeInitial    = "initial"
	EntryTypeRestock    = "restock"
	EntryTypeSale       = "sale"
	EntryTypeAdjustment = "adjustment"
	EntryTypeReversal   = "reversal"
)

// InventoryItem is the per-SKU stock record. QuantityOnHand is a materialized
// cache of the item's history: it is only ever written in the same transaction
// that appends a history entry, and must equal the running sum of all
// quantity changes starting from the initial entry.
type InventoryItem struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organization_id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	QuantityOnHand    int       `json:"quantity_on_hand"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	ReorderPoint      *int      `json:"reorder_point,omitempty"`
	ReorderQuantity   *int      `json:"reorder_quantity,omitempty"`
	UnitCost          int64     `json:"unit_cost"`
	LeadTimeDays      int       `json:"lead_time_days"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HistoryEntry is one immutable row of an item's audit history. Previous and
// new quantities are recorded at append time as the point-in-time witness,
// never recomputed later. Corrections are new reversal entries, never edits.
type HistoryEntry struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organization_id"`
	ItemID           string    `json:"item_id"`
	EntryType        string    `json:"entry_type"`
	QuantityChange   int       `json:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	OrderID          *string   `json:"order_id,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ValidEntryTypes returns the set of valid history entry types.
func ValidEntryTypes() []string {
	return []string{EntryTypeInitial, EntryTypeRestock, EntryTypeSale, EntryTypeAdjustment, EntryTypeReversal}
}

// IsValidEntryType checks whether the given type is a valid history entry type.
func IsValidEntryType(entryType string) bool {
	for _, t := range ValidEntryTypes() {
		if t == entryType {
			return true
		}
	}
	return false
}

// Threshold crossing severities, edge-triggered on ledger mutations.
const (
	CrossingNone     = ""
	CrossingLow      = "low"
	CrossingCritical = "critical"
)

// ThresholdCrossing reports that a mutation moved an item's quantity across
// its low-stock threshold or down to zero. It fires only on the transition,
// not on every query at a low level.
type ThresholdCrossing struct {
	Severity         string `json:"severity"`
	SKU              string `json:"sku"`
	ItemID           string `json:"item_id"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Threshold        int    `json:"threshold"`
}

// DetectCrossing returns the edge-triggered threshold crossing for a quantity
// transition, or nil when no boundary was crossed downward. Hitting zero is
// critical and takes precedence over crossing the low-stock threshold.
func DetectCrossing(item *InventoryItem, previous, current int) *ThresholdCrossing {
	if current >= previous {
		return nil
	}

	crossing := &ThresholdCrossing{
		SKU:              item.SKU,
		ItemID:           item.ID,
		PreviousQuantity: previous,
		NewQuantity:      current,
		Threshold:        item.LowStockThreshold,
	}

	switch {
	case current == 0 && previous > 0:
		crossing.Severity = CrossingCritical
	case current <= item.LowStockThreshold && previous > item.LowStockThreshold:
		crossing.Severity = CrossingLow
	default:
		return nil
	}
	return crossing
}
