// Package discount applies layered manual discounts to an order and owns
// the synthesis of automatic volume-based biobanking discounts.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/order"
	"github.com/stemvault/orderbuilder/internal/domain/pricing"
)

// Recompute derives every line's final price and the order totals from
// scratch. The layering sequence is fixed and not configurable:
//
//  1. reset lines to list price at quantity
//  2. line-level dollar discounts
//  3. line-level percentage discounts (rewriting their displayed amount)
//  4. sum list/bundle-savings/discountable totals
//  5. the single whole-order percentage discount, against the
//     discountable portion only
//  6. whole-order dollar discounts
//
// Running it twice in a row without an intervening mutation yields
// identical totals.
func Recompute(o *order.Order) {
	lineDollar, linePct, wholePct, wholeDollar := partition(o.DiscountsOrdered)

	resetLines(o)
	applyLineDollar(o, lineDollar)
	applyLinePercentage(o, linePct)

	totals := sumLines(o)

	// Percentage discounts never touch exempt lines: the base is the
	// running order price minus the non-discountable list total. Only the
	// first whole-order percentage discount applies; entry validation
	// rejects a second one.
	if len(wholePct) > 0 {
		base := totals.orderPrice.Sub(totals.nonDiscountable)
		amount := pricing.PercentageDiscountAmount(base, wholePct[0].Percentage)
		totals.orderPrice = totals.orderPrice.Sub(amount)
		totals.otherDiscounts = totals.otherDiscounts.Add(amount)
		rewriteAmount(o, wholePct[0].SelectorID, amount)
	}

	for _, d := range wholeDollar {
		totals.orderPrice = totals.orderPrice.Sub(d.Amount)
		totals.otherDiscounts = totals.otherDiscounts.Add(d.Amount)
	}

	o.Totals = order.Totals{
		ListPrice:                totals.listPrice,
		ListPriceDiscountable:    totals.discountable,
		ListPriceNonDiscountable: totals.nonDiscountable,
		BundleSavings:            totals.bundleSavings,
		Discount:                 totals.otherDiscounts.Neg(),
		FinalPrice:               totals.orderPrice,
		DueAtCheckout:            totals.upfront,
		Stale:                    false,
	}
}

type runningTotals struct {
	listPrice       decimal.Decimal
	bundleSavings   decimal.Decimal
	otherDiscounts  decimal.Decimal
	orderPrice      decimal.Decimal
	upfront         decimal.Decimal
	discountable    decimal.Decimal
	nonDiscountable decimal.Decimal
}

func partition(discounts []order.OrderedDiscount) (lineDollar, linePct, wholePct, wholeDollar []order.OrderedDiscount) {
	for _, d := range discounts {
		line := d.Type == order.DiscountBundleSpecific || d.Type == order.DiscountProductSpecific
		whole := d.Type == order.DiscountWholeOrder || d.Type == order.DiscountSales

		switch {
		case line && d.Method == order.MethodAmount:
			lineDollar = append(lineDollar, d)
		case line && d.Method == order.MethodPercentage:
			linePct = append(linePct, d)
		case whole && d.Method == order.MethodPercentage:
			wholePct = append(wholePct, d)
		case (whole || d.Type == order.DiscountMultiBiobanking) && d.Method == order.MethodAmount:
			wholeDollar = append(wholeDollar, d)
		}
	}
	return lineDollar, linePct, wholePct, wholeDollar
}

func resetLines(o *order.Order) {
	for i := range o.BundlesOrdered {
		o.BundlesOrdered[i].CombinedDiscounts = decimal.Zero
		o.BundlesOrdered[i].FinalPrice = o.BundlesOrdered[i].ListPriceAtQuantity
	}
	for i := range o.ProductsOrdered {
		o.ProductsOrdered[i].CombinedDiscounts = decimal.Zero
		o.ProductsOrdered[i].FinalPrice = o.ProductsOrdered[i].ListPriceAtQuantity
	}
}

func applyLineDollar(o *order.Order, discounts []order.OrderedDiscount) {
	for _, d := range discounts {
		for i := range o.BundlesOrdered {
			b := &o.BundlesOrdered[i]
			if d.BundleID == b.ID {
				total := d.Amount.Mul(decimal.NewFromInt(b.Quantity))
				b.FinalPrice = b.FinalPrice.Sub(total)
				b.CombinedDiscounts = b.CombinedDiscounts.Add(total)
			}
		}
		for i := range o.ProductsOrdered {
			p := &o.ProductsOrdered[i]
			if d.ProductID == p.ID {
				total := d.Amount.Mul(decimal.NewFromInt(p.Quantity))
				p.FinalPrice = p.FinalPrice.Sub(total)
				p.CombinedDiscounts = p.CombinedDiscounts.Add(total)
			}
		}
	}
}

// applyLinePercentage takes the percentage off the unit list price and
// writes the computed dollar value back onto the discount line, so a
// percentage discount never displays a stale absolute amount.
func applyLinePercentage(o *order.Order, discounts []order.OrderedDiscount) {
	for _, d := range discounts {
		for i := range o.BundlesOrdered {
			b := &o.BundlesOrdered[i]
			if d.BundleID == b.ID {
				amount := pricing.PercentageDiscountAmount(b.ListPrice, d.Percentage)
				b.CombinedDiscounts = b.CombinedDiscounts.Add(amount)
				b.FinalPrice = b.FinalPrice.Sub(amount)
				rewriteAmount(o, d.SelectorID, amount)
			}
		}
		for i := range o.ProductsOrdered {
			p := &o.ProductsOrdered[i]
			if d.ProductID == p.ID {
				amount := pricing.PercentageDiscountAmount(p.ListPrice, d.Percentage)
				p.CombinedDiscounts = p.CombinedDiscounts.Add(amount)
				p.FinalPrice = p.FinalPrice.Sub(amount)
				rewriteAmount(o, d.SelectorID, amount)
			}
		}
	}
}

func sumLines(o *order.Order) runningTotals {
	t := runningTotals{
		listPrice:       decimal.Zero,
		bundleSavings:   decimal.Zero,
		otherDiscounts:  decimal.Zero,
		orderPrice:      decimal.Zero,
		upfront:         decimal.Zero,
		discountable:    decimal.Zero,
		nonDiscountable: decimal.Zero,
	}

	for _, b := range o.BundlesOrdered {
		t.listPrice = t.listPrice.Add(b.BundleMembersListPriceTotal)
		t.orderPrice = t.orderPrice.Add(b.FinalPrice)
		t.bundleSavings = t.bundleSavings.Add(b.BundleSavings.Mul(decimal.NewFromInt(b.Quantity)))
		t.otherDiscounts = t.otherDiscounts.Add(b.CombinedDiscounts)

		for _, p := range b.BundledProducts {
			if !p.ExemptFromDiscount {
				t.discountable = t.discountable.Add(p.ListPriceAtQuantity)
			}
			qty := decimal.NewFromInt(p.Quantity)
			if p.IsDueAtCheckout {
				// Bundled lines contribute their per-unit checkout price.
				unit := p.FinalPrice
				if unit.IsZero() {
					unit = p.ListPrice
				}
				t.upfront = t.upfront.Add(unit.Mul(qty))
			} else if !p.UpfrontAmount.IsZero() {
				t.upfront = t.upfront.Add(p.UpfrontAmount.Mul(qty))
			}
		}
	}

	for _, p := range o.ProductsOrdered {
		t.listPrice = t.listPrice.Add(p.ListPriceAtQuantity)
		t.orderPrice = t.orderPrice.Add(p.FinalPrice)
		t.otherDiscounts = t.otherDiscounts.Add(p.CombinedDiscounts)

		if !p.ExemptFromDiscount {
			t.discountable = t.discountable.Add(p.ListPriceAtQuantity)
		}
		qty := decimal.NewFromInt(p.Quantity)
		if p.IsDueAtCheckout {
			t.upfront = t.upfront.Add(p.ListPrice.Mul(qty))
		} else if !p.UpfrontAmount.IsZero() {
			t.upfront = t.upfront.Add(p.UpfrontAmount.Mul(qty))
		}
	}

	t.nonDiscountable = t.listPrice.Sub(t.discountable)
	return t
}

func rewriteAmount(o *order.Order, selectorID string, amount decimal.Decimal) {
	for i := range o.DiscountsOrdered {
		if o.DiscountsOrdered[i].SelectorID == selectorID {
			o.DiscountsOrdered[i].Amount = amount
		}
	}
}
