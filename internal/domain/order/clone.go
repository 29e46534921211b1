package order

import "github.com/shopspring/decimal"

var decZero = decimal.Zero

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Clone returns a deep copy. Catalog entries are shared read-only
// templates; every add into an order goes through a clone so the order
// exclusively owns its lines.
func (p OrderedProduct) Clone() OrderedProduct {
	out := p
	if p.RelatedProducts != nil {
		out.RelatedProducts = make([]RelatedProduct, len(p.RelatedProducts))
		copy(out.RelatedProducts, p.RelatedProducts)
	}
	return out
}

// Clone returns a deep copy including all bundled products.
func (b OrderedBundle) Clone() OrderedBundle {
	out := b
	if b.BundledProducts != nil {
		out.BundledProducts = make([]OrderedProduct, len(b.BundledProducts))
		for i, p := range b.BundledProducts {
			out.BundledProducts[i] = p.Clone()
		}
	}
	return out
}

// Clone returns a copy of the discount line.
func (d OrderedDiscount) Clone() OrderedDiscount {
	return d
}

// Clone returns a deep copy of the whole aggregate, safe to read or
// serialize while the original keeps mutating.
func (o *Order) Clone() *Order {
	out := *o
	if o.ProductsOrdered != nil {
		out.ProductsOrdered = make([]OrderedProduct, len(o.ProductsOrdered))
		for i, p := range o.ProductsOrdered {
			out.ProductsOrdered[i] = p.Clone()
		}
	}
	if o.BundlesOrdered != nil {
		out.BundlesOrdered = make([]OrderedBundle, len(o.BundlesOrdered))
		for i, b := range o.BundlesOrdered {
			out.BundlesOrdered[i] = b.Clone()
		}
	}
	if o.DiscountsOrdered != nil {
		out.DiscountsOrdered = make([]OrderedDiscount, len(o.DiscountsOrdered))
		copy(out.DiscountsOrdered, o.DiscountsOrdered)
	}
	return &out
}

// MergeProductLineIDs copies server-assigned line-item identifiers from
// updated product lines onto matching cart lines. Populated identifiers
// are never overwritten, so replaying a persistence response is safe.
func (o *Order) MergeProductLineIDs(updated []OrderedProduct) {
	for i := range o.ProductsOrdered {
		current := &o.ProductsOrdered[i]
		for _, u := range updated {
			if current.ID != u.ID {
				continue
			}
			mergeProductIDs(current, u)
		}
	}
}

// MergeBundleLineIDs copies server-assigned bundle and bundled-product
// identifiers from a persisted order snapshot, without disturbing ids that
// are already set.
func (o *Order) MergeBundleLineIDs(updated *Order) {
	if updated == nil {
		return
	}
	for i := range o.BundlesOrdered {
		current := &o.BundlesOrdered[i]
		for _, u := range updated.BundlesOrdered {
			if current.ID != u.ID {
				continue
			}
			if current.AppliedBundleID == "" {
				current.AppliedBundleID = u.AppliedBundleID
			}
			for j := range current.BundledProducts {
				cp := &current.BundledProducts[j]
				for _, up := range u.BundledProducts {
					if cp.ID == up.ID {
						mergeProductIDs(cp, up)
					}
				}
			}
		}
	}
	// Add-on products ride outside the bundle.
	o.MergeProductLineIDs(updated.ProductsOrdered)
}

// MergeDiscountID records the persisted discount id onto the matching
// cart discount.
func (o *Order) MergeDiscountID(discountID, appliedID string) {
	for i := range o.DiscountsOrdered {
		if o.DiscountsOrdered[i].ID == discountID && o.DiscountsOrdered[i].AppliedDiscountID == "" {
			o.DiscountsOrdered[i].AppliedDiscountID = appliedID
		}
	}
}

func mergeProductIDs(dst *OrderedProduct, src OrderedProduct) {
	if dst.OpportunityLineItemID == "" {
		dst.OpportunityLineItemID = src.OpportunityLineItemID
		if dst.AppliedBundleID == "" {
			dst.AppliedBundleID = src.AppliedBundleID
		}
	}
	if dst.InvoiceLineItemID == "" {
		dst.InvoiceLineItemID = src.InvoiceLineItemID
		if dst.AppliedBundleID == "" {
			dst.AppliedBundleID = src.AppliedBundleID
		}
	}
}
