package discount

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

// MultiAnnualStorageType keys the annual-plan payment reduction rows in
// the rate table; these never become order discounts.
const MultiAnnualStorageType = "Multi-Annual Storage"

// Rate is one row of the volume-discount rate table: an exact services
// count for a storage type maps to a discount template.
type Rate struct {
	ID                    string               `json:"id"`
	Name                  string               `json:"name"`
	Type                  string               `json:"type"`
	ServicesCount         int64                `json:"ServicesCount"`
	ApplicableStorageType string               `json:"applicableStorageType"`
	Amount                decimal.Decimal      `json:"amount"`
	Method                order.DiscountMethod `json:"method"`
}

// RateTable is the externally supplied volume-discount lookup.
type RateTable struct {
	Records []Rate `json:"discountRecords"`
}

// RateSource loads the volume-discount rate table.
type RateSource interface {
	BiobankingRates(ctx context.Context) (*RateTable, error)
}

// Find returns the rate matching the exact (count, storageType) pair.
// A miss is a silent no-op for callers, not an error.
func (t *RateTable) Find(count int64, storageType order.StorageType) (Rate, bool) {
	for _, r := range t.Records {
		if r.ServicesCount == count && r.ApplicableStorageType == string(storageType) {
			return r, true
		}
	}
	return Rate{}, false
}

// FindMultiAnnual returns the annual-plan payment reduction for an exact
// ASP biobanking unit count.
func (t *RateTable) FindMultiAnnual(count int64) (Rate, bool) {
	for _, r := range t.Records {
		if r.Type == MultiAnnualStorageType && r.ServicesCount == count {
			return r, true
		}
	}
	return Rate{}, false
}

// BiobankingCounts tallies volume-discount-eligible product quantities per
// storage type across the currently ordered single-product bundles only.
func BiobankingCounts(o *order.Order) map[order.StorageType]int64 {
	counts := make(map[order.StorageType]int64, 3)
	for _, b := range o.SingleProductBundles() {
		if !bundleIsBiobanking(b) {
			continue
		}
		switch b.StorageType {
		case order.Storage20Year, order.StorageLifetime, order.StorageASP:
			counts[b.StorageType] += b.Quantity
		}
	}
	return counts
}

// ASPBiobankingUnitCount counts biobanking units across ALL ASP bundles,
// single- or multi-product: bundle quantity times the number of eligible
// base products in the bundle. Keys the Multi-Annual Storage lookup.
func ASPBiobankingUnitCount(o *order.Order) int64 {
	var total int64
	for _, b := range o.BundlesOrdered {
		if b.StorageType != order.StorageASP {
			continue
		}
		var base int64
		for _, p := range b.BundledProducts {
			if p.IsBiobankingProduct && p.EligibleForVolumeDiscounts {
				base++
			}
		}
		if base > 0 {
			total += b.Quantity * base
		}
	}
	return total
}

// Reconcile retracts every system-applied discount and re-synthesizes at
// most one per storage type from the rate table, based on the current
// single-product-bundle composition. It returns the discounts that were
// added so the caller can persist them. Reconciliation is idempotent:
// running it twice without another cart change yields the same result.
func Reconcile(o *order.Order, rates *RateTable) (added, removed []order.OrderedDiscount) {
	removed = retractSystemApplied(o)

	if rates == nil {
		return nil, removed
	}

	counts := BiobankingCounts(o)
	for _, st := range []order.StorageType{order.Storage20Year, order.StorageLifetime, order.StorageASP} {
		count := counts[st]
		if count <= 0 {
			continue
		}
		rate, ok := rates.Find(count, st)
		if !ok {
			continue
		}
		d := rate.Discount()
		o.AddDiscount(d)
		added = append(added, d)
	}
	return added, removed
}

// Discount clones a rate row into a system-applied order discount. The
// clone matters: the rate table is shared and must never be aliased by a
// cart line.
func (r Rate) Discount() order.OrderedDiscount {
	method := r.Method
	if method == "" {
		method = order.MethodAmount
	}
	return order.OrderedDiscount{
		ID:            r.ID,
		SelectorID:    order.SelectorID(r.ID),
		Name:          r.Name,
		Type:          order.DiscountMultiBiobanking,
		Method:        method,
		Amount:        r.Amount.Copy(),
		SystemApplied: true,
	}
}

func retractSystemApplied(o *order.Order) []order.OrderedDiscount {
	var removed []order.OrderedDiscount
	kept := o.DiscountsOrdered[:0]
	for _, d := range o.DiscountsOrdered {
		if d.SystemApplied {
			removed = append(removed, d)
			o.Totals.Stale = true
			continue
		}
		kept = append(kept, d)
	}
	o.DiscountsOrdered = kept
	return removed
}

func bundleIsBiobanking(b order.OrderedBundle) bool {
	for _, p := range b.BundledProducts {
		if p.IsBiobankingProduct && p.EligibleForVolumeDiscounts {
			return true
		}
	}
	return false
}
