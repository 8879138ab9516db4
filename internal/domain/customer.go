package domain

import "time"

// Customer tier constants.
const (
	CustomerTypeNew      = "new"
	CustomerTypeRegular  = "regular"
	CustomerTypeVIP      = "vip"
	CustomerTypeInactive = "inactive"
)

// DefaultVIPThreshold is the lifetime-spend threshold for VIP promotion.
const DefaultVIPThreshold int64 = 50000

// Customer carries the denormalized per-customer aggregates. At any quiescent
// point the four aggregates equal a pure fold over the customer's
// non-cancelled orders; between reconciliation runs incremental deltas may
// drift and that drift is accepted.
type Customer struct {
	ID                 string     `json:"id"`
	OrganizationID     string     `json:"organization_id"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone,omitempty"`
	TotalPurchases     int64      `json:"total_purchases"`
	TotalOrders        int        `json:"total_orders"`
	OutstandingBalance int64      `json:"outstanding_balance"`
	LoyaltyPoints      int64      `json:"loyalty_points"`
	CustomerType       string     `json:"customer_type"`
	FirstOrderDate     *time.Time `json:"first_order_date,omitempty"`
	LastOrderDate      *time.Time `json:"last_order_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// LoyaltyPointsFor derives loyalty points from lifetime spend.
func LoyaltyPointsFor(totalPurchases int64) int64 {
	if totalPurchases <= 0 {
		return 0
	}
	return totalPurchases / 100
}

// PromoteTier returns the tier after applying promote-only rules to the
// current tier: new customers become regular once they have placed an order,
// and any customer crossing the VIP threshold becomes vip. Tiers never demote
// on this path; demotion only happens in a full recompute.
func PromoteTier(current string, totalPurchases int64, totalOrders int, vipThreshold int64) string {
	if totalPurchases >= vipThreshold {
		return CustomerTypeVIP
	}
	if current == CustomerTypeNew && totalOrders > 0 {
		return CustomerTypeRegular
	}
	return current
}

// DeriveTier computes the tier from scratch as the recompute fold does. Unlike
// PromoteTier it can demote a customer whose reversed purchases dropped below
// the VIP threshold.
func DeriveTier(totalPurchases int64, totalOrders int, vipThreshold int64) string {
	switch {
	case totalPurchases >= vipThreshold:
		return CustomerTypeVIP
	case totalOrders > 0:
		return CustomerTypeRegular
	default:
		return CustomerTypeNew
	}
}

// CustomerAggregates is the result of a pure fold over a customer's orders,
// written atomically by the reconciliation recompute phase.
type CustomerAggregates struct {
	TotalPurchases     int64
	TotalOrders        int
	OutstandingBalance int64
	LoyaltyPoints      int64
	CustomerType       string
	FirstOrderDate     *time.Time
	LastOrderDate      *time.Time
}

// FoldOrders recomputes a customer's aggregates from its full order set.
// Cancelled orders never contribute amounts; whether they count toward
// TotalOrders follows countCancelled, matching the incremental path's policy.
// When demote is false the resulting tier never drops below currentTier's
// VIP standing.
func FoldOrders(orders []Order, vipThreshold int64, countCancelled bool, demote bool, currentTier string) CustomerAggregates {
	var agg CustomerAggregates
	for i := range orders {
		o := &orders[i]
		if o.Status == OrderStatusCancelled {
			if countCancelled {
				agg.TotalOrders++
			}
			continue
		}
		agg.TotalOrders++
		agg.TotalPurchases += o.Amount
		agg.OutstandingBalance += o.OutstandingAmount

		created := o.CreatedAt
		if agg.FirstOrderDate == nil || created.Before(*agg.FirstOrderDate) {
			t := created
			agg.FirstOrderDate = &t
		}
		if agg.LastOrderDate == nil || created.After(*agg.LastOrderDate) {
			t := created
			agg.LastOrderDate = &t
		}
	}

	agg.LoyaltyPoints = LoyaltyPointsFor(agg.TotalPurchases)
	agg.CustomerType = DeriveTier(agg.TotalPurchases, agg.TotalOrders, vipThreshold)
	if !demote && currentTier == CustomerTypeVIP && agg.CustomerType != CustomerTypeVIP {
		agg.CustomerType = CustomerTypeVIP
	}
	return agg
}
