package order

import (
	"sort"
	"strings"
)

// SelectorID derives the stable lookup identifier for a record id. Markup
// element ids cannot start with a digit, so record ids get an "a-" prefix;
// the same scheme keys every line item in the cart.
func SelectorID(id string) string {
	if strings.HasPrefix(id, "a-") {
		return id
	}
	return "a-" + id
}

// AddProduct appends a product line and marks totals stale. The caller
// owns the value; catalog entries must be cloned before adding.
func (o *Order) AddProduct(p OrderedProduct) {
	if p.SelectorID == "" {
		p.SelectorID = SelectorID(p.ID)
	}
	p.StampContext(o)
	o.ProductsOrdered = append(o.ProductsOrdered, p)
	sortByName(o.ProductsOrdered, func(v OrderedProduct) string { return v.Name })
	o.Totals.Stale = true
}

// AddBundle appends a bundle line, scaling each bundled product by the
// bundle quantity, and marks totals stale.
func (o *Order) AddBundle(b OrderedBundle) {
	if b.SelectorID == "" {
		b.SelectorID = SelectorID(b.ID)
	}
	if b.Quantity < 1 {
		b.Quantity = 1
	}
	b.ScaleToQuantity(b.Quantity)
	b.OpportunityID, b.InvoiceID = o.contextIDs()
	for i := range b.BundledProducts {
		b.BundledProducts[i].StampContext(o)
	}
	o.BundlesOrdered = append(o.BundlesOrdered, b)
	sortByName(o.BundlesOrdered, func(v OrderedBundle) string { return v.Name })
	if b.StorageType == StorageASP {
		o.IncludesAnnualStorage = true
	}
	o.Totals.Stale = true
}

// AddDiscount appends a discount line and marks totals stale.
func (o *Order) AddDiscount(d OrderedDiscount) {
	if d.SelectorID == "" {
		d.SelectorID = SelectorID(d.ID)
	}
	d.OpportunityID, d.InvoiceID = o.contextIDs()
	o.DiscountsOrdered = append(o.DiscountsOrdered, d)
	sortByName(o.DiscountsOrdered, func(v OrderedDiscount) string { return v.Name })
	o.Totals.Stale = true
}

// RemoveProduct deletes the product with the given selector id. It returns
// the removed line and false when no such line exists.
func (o *Order) RemoveProduct(selectorID string) (OrderedProduct, bool) {
	for i, p := range o.ProductsOrdered {
		if p.SelectorID == selectorID {
			o.ProductsOrdered = append(o.ProductsOrdered[:i], o.ProductsOrdered[i+1:]...)
			o.Totals.Stale = true
			return p, true
		}
	}
	return OrderedProduct{}, false
}

// RemoveBundle deletes the bundle with the given selector id. When the
// last ASP bundle leaves the cart the annual-storage flag clears; payment
// plan invalidation is the payment engine's job, signalled by the second
// return value.
func (o *Order) RemoveBundle(selectorID string) (removed OrderedBundle, aspCleared bool, ok bool) {
	for i, b := range o.BundlesOrdered {
		if b.SelectorID == selectorID {
			o.BundlesOrdered = append(o.BundlesOrdered[:i], o.BundlesOrdered[i+1:]...)
			o.Totals.Stale = true
			if o.IncludesAnnualStorage && !o.hasASPBundle() {
				o.IncludesAnnualStorage = false
				aspCleared = true
			}
			return b, aspCleared, true
		}
	}
	return OrderedBundle{}, false, false
}

// RemoveDiscount deletes the discount with the given selector id.
func (o *Order) RemoveDiscount(selectorID string) (OrderedDiscount, bool) {
	for i, d := range o.DiscountsOrdered {
		if d.SelectorID == selectorID {
			o.DiscountsOrdered = append(o.DiscountsOrdered[:i], o.DiscountsOrdered[i+1:]...)
			o.Totals.Stale = true
			return d, true
		}
	}
	return OrderedDiscount{}, false
}

// SetProductQuantity updates an a-la-carte product's quantity. Values
// below 1 are ignored, matching the input validation of the operator UI.
func (o *Order) SetProductQuantity(selectorID string, quantity int64) bool {
	if quantity < 1 {
		return false
	}
	for i := range o.ProductsOrdered {
		p := &o.ProductsOrdered[i]
		if p.SelectorID == selectorID {
			p.Quantity = quantity
			p.ListPriceAtQuantity = p.ListPrice.Mul(dec(quantity))
			o.Totals.Stale = true
			return true
		}
	}
	return false
}

// SetBundleQuantity updates a bundle's quantity, rescaling every bundled
// product. Values below 1 are ignored.
func (o *Order) SetBundleQuantity(selectorID string, quantity int64) bool {
	if quantity < 1 {
		return false
	}
	for i := range o.BundlesOrdered {
		b := &o.BundlesOrdered[i]
		if b.SelectorID == selectorID {
			b.ScaleToQuantity(quantity)
			o.Totals.Stale = true
			return true
		}
	}
	return false
}

// SetPaymentPlan records the selection. Plan/storage compatibility is
// validated by the payment engine before this is called.
func (o *Order) SetPaymentPlan(plan PaymentPlan) {
	o.PaymentPlanSelected = plan.ID
	o.PaymentPlan = plan
	o.Totals.Stale = true
}

// ClearPaymentPlan resets the selection to empty.
func (o *Order) ClearPaymentPlan() {
	o.PaymentPlanSelected = ""
	o.PaymentPlan = PaymentPlan{}
	o.Totals.Stale = true
}

// Clear empties every collection and resets the payment plan selection.
func (o *Order) Clear() {
	o.ProductsOrdered = nil
	o.BundlesOrdered = nil
	o.DiscountsOrdered = nil
	o.ClearPaymentPlan()
	o.IncludesAnnualStorage = false
	o.Totals.Stale = true
}

// ScaleToQuantity sets the bundle quantity and rescales derived per-line
// amounts, including each bundled product's quantity
// (startingQuantityInBundle × bundle quantity).
func (b *OrderedBundle) ScaleToQuantity(quantity int64) {
	b.Quantity = quantity
	q := dec(quantity)
	b.ListPriceAtQuantity = b.ListPrice.Mul(q)
	b.BundleSavingsAtQuantity = b.BundleSavings.Mul(q)

	total := decZero
	for i := range b.BundledProducts {
		p := &b.BundledProducts[i]
		start := p.StartingQuantityInBundle
		if start < 1 {
			start = 1
		}
		p.Quantity = quantity * start
		p.ListPriceAtQuantity = p.ListPrice.Mul(dec(p.Quantity))
		total = total.Add(p.ListPriceAtQuantity)
	}
	b.BundleMembersListPriceTotal = total
}

// StampContext copies the order's CRM linkage onto a line item.
func (p *OrderedProduct) StampContext(o *Order) {
	p.OpportunityID, p.InvoiceID = o.contextIDs()
}

func (o *Order) contextIDs() (opportunityID, invoiceID string) {
	switch o.Context {
	case ContextOpportunity:
		return o.OpportunityID, ""
	case ContextInvoice:
		return "", o.InvoiceID
	}
	return "", ""
}

// SingleProductBundles returns the currently ordered single-product
// bundles, the population the biobanking reconciliation counts over.
func (o *Order) SingleProductBundles() []OrderedBundle {
	var out []OrderedBundle
	for _, b := range o.BundlesOrdered {
		if b.Type == BundleSingleProduct {
			out = append(out, b)
		}
	}
	return out
}

// ALaCarteProducts returns ordered products outside the shipping and
// add-on families.
func (o *Order) ALaCarteProducts() []OrderedProduct {
	var out []OrderedProduct
	for _, p := range o.ProductsOrdered {
		if p.Family != FamilyShipping && p.Family != FamilyAddOn {
			out = append(out, p)
		}
	}
	return out
}

// ProductOrdered reports whether a product record id is in the cart.
func (o *Order) ProductOrdered(productID string) bool {
	for _, p := range o.ProductsOrdered {
		if p.ID == productID {
			return true
		}
	}
	return false
}

// BundleOrdered reports whether a bundle record id is in the cart.
func (o *Order) BundleOrdered(bundleID string) bool {
	for _, b := range o.BundlesOrdered {
		if b.ID == bundleID {
			return true
		}
	}
	return false
}

// DiscountOrdered reports whether a discount selector id is in the cart.
func (o *Order) DiscountOrdered(selectorID string) bool {
	for _, d := range o.DiscountsOrdered {
		if d.SelectorID == selectorID {
			return true
		}
	}
	return false
}

// HasWholeOrderPercentageDiscount reports whether a whole-order percentage
// discount is already applied. At most one may be active per order.
func (o *Order) HasWholeOrderPercentageDiscount() bool {
	for _, d := range o.DiscountsOrdered {
		if (d.Type == DiscountWholeOrder || d.Type == DiscountSales) && d.Method == MethodPercentage {
			return true
		}
	}
	return false
}

// Empty reports whether no line items of any kind are ordered.
func (o *Order) Empty() bool {
	return len(o.ProductsOrdered) == 0 && len(o.BundlesOrdered) == 0 && len(o.DiscountsOrdered) == 0
}

func (o *Order) hasASPBundle() bool {
	for _, b := range o.BundlesOrdered {
		if b.StorageType == StorageASP {
			return true
		}
	}
	return false
}

func sortByName[T any](s []T, name func(T) string) {
	sort.SliceStable(s, func(i, j int) bool { return name(s[i]) < name(s[j]) })
}
