package domain

import (
	"math"
	"sort"
	"time"
)

// Reorder planning defaults.
const (
	DefaultLeadTimeDays    = 7
	DefaultSafetyStockDays = 3
	EOQHorizonDays         = 14
	UsageWindowDays        = 30
	ColdStartDefaultUsage  = 5
)

// Urgency tiers for reorder suggestions.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// ReorderSuggestion is a pure read model computed on demand from an item and
// its usage history. It is never persisted.
type ReorderSuggestion struct {
	SKU             string  `json:"sku"`
	ItemID          string  `json:"item_id"`
	Name            string  `json:"name"`
	QuantityOnHand  int     `json:"quantity_on_hand"`
	DailyUsage      float64 `json:"daily_usage"`
	ReorderPoint    int     `json:"reorder_point"`
	ReorderQuantity int     `json:"reorder_quantity"`
	Urgency         string  `json:"urgency"`
}

// EstimateDailyUsage estimates units sold per day from the trailing 30 days of
// sale entries: sum of absolute quantity changes divided by the number of
// distinct days with sales, capped at the window length. With no recent sales
// it falls back to assuming 10% of on-hand stock depletes per week, with a
// floor of one unit per day; a brand-new item with neither sales nor stock
// gets a flat default so it still produces a sane reorder signal.
func EstimateDailyUsage(item *InventoryItem, history []HistoryEntry, now time.Time) float64 {
	windowStart := now.AddDate(0, 0, -UsageWindowDays)

	var totalSold int
	saleDays := make(map[string]struct{})
	anySales := false
	for i := range history {
		e := &history[i]
		if e.EntryType != EntryTypeSale {
			continue
		}
		anySales = true
		if e.CreatedAt.Before(windowStart) {
			continue
		}
		if e.QuantityChange < 0 {
			totalSold += -e.QuantityChange
		} else {
			totalSold += e.QuantityChange
		}
		saleDays[e.CreatedAt.Format("2006-01-02")] = struct{}{}
	}

	if totalSold > 0 {
		days := len(saleDays)
		if days > UsageWindowDays {
			days = UsageWindowDays
		}
		return float64(totalSold) / float64(days)
	}

	if !anySales && item.QuantityOnHand == 0 {
		return ColdStartDefaultUsage
	}

	usage := math.Ceil(float64(item.QuantityOnHand) * 0.1 / 7)
	if usage < 1 {
		usage = 1
	}
	return usage
}

// ReorderPointFor returns the stock level at which replenishment should be
// triggered. A per-item configured reorder point overrides the derived value.
func ReorderPointFor(item *InventoryItem, dailyUsage float64) int {
	if item.ReorderPoint != nil {
		return *item.ReorderPoint
	}
	lead := item.LeadTimeDays
	if lead <= 0 {
		lead = DefaultLeadTimeDays
	}
	return int(math.Ceil(dailyUsage*float64(lead) + dailyUsage*DefaultSafetyStockDays))
}

// EconomicOrderQuantity returns the suggested replenishment amount: enough for
// the lead time plus two weeks. A per-item configured reorder quantity
// overrides the derived value.
func EconomicOrderQuantity(item *InventoryItem, dailyUsage float64) int {
	if item.ReorderQuantity != nil {
		return *item.ReorderQuantity
	}
	lead := item.LeadTimeDays
	if lead <= 0 {
		lead = DefaultLeadTimeDays
	}
	return int(math.Ceil(dailyUsage * float64(lead+EOQHorizonDays)))
}

// UrgencyFor classifies how urgently an item needs replenishment. Critical is
// reserved for fully depleted stock.
func UrgencyFor(item *InventoryItem, dailyUsage float64) string {
	switch {
	case item.QuantityOnHand == 0:
		return UrgencyCritical
	case float64(item.QuantityOnHand) <= dailyUsage*2:
		return UrgencyHigh
	case item.QuantityOnHand <= item.LowStockThreshold:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func urgencyRank(urgency string) int {
	switch urgency {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	default:
		return 3
	}
}

// BuildSuggestion computes the full read model for one item.
func BuildSuggestion(item *InventoryItem, history []HistoryEntry, now time.Time) ReorderSuggestion {
	daily := EstimateDailyUsage(item, history, now)
	return ReorderSuggestion{
		SKU:             item.SKU,
		ItemID:          item.ID,
		Name:            item.Name,
		QuantityOnHand:  item.QuantityOnHand,
		DailyUsage:      daily,
		ReorderPoint:    ReorderPointFor(item, daily),
		ReorderQuantity: EconomicOrderQuantity(item, daily),
		Urgency:         UrgencyFor(item, daily),
	}
}

// SortSuggestions orders suggestions by urgency (critical first) breaking ties
// by ascending on-hand quantity. The sort is stable. Low-urgency items should
// be filtered out before sorting; this function does not drop them.
func SortSuggestions(suggestions []ReorderSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, rj := urgencyRank(suggestions[i].Urgency), urgencyRank(suggestions[j].Urgency)
		if ri != rj {
			return ri < rj
		}
		return suggestions[i].QuantityOnHand < suggestions[j].QuantityOnHand
	})
}
