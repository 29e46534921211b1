package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func kitProduct(id string, qty int64, listPrice float64) order.OrderedProduct {
	return order.OrderedProduct{
		ID:                  id,
		SelectorID:          order.SelectorID(id),
		Name:                "Kit " + id,
		Family:              order.FamilyProduct,
		Quantity:            qty,
		ListPrice:           d(listPrice),
		ListPriceAtQuantity: d(listPrice).Mul(decimal.NewFromInt(qty)),
	}
}

func storageBundle(id string, st order.StorageType, qty int64, listPrice float64) order.OrderedBundle {
	b := order.OrderedBundle{
		ID:          id,
		SelectorID:  order.SelectorID(id),
		Name:        "Bundle " + id,
		Type:        order.BundleSingleProduct,
		StorageType: st,
		ListPrice:   d(listPrice),
		BundledProducts: []order.OrderedProduct{
			{
				ID:                         id + "-p",
				Name:                       "Collection " + id,
				Family:                     order.FamilyProduct,
				StartingQuantityInBundle:   1,
				ListPrice:                  d(listPrice),
				IsBiobankingProduct:        true,
				EligibleForVolumeDiscounts: true,
			},
		},
	}
	b.ScaleToQuantity(qty)
	return b
}

func TestRecomputeProductDollarDiscount(t *testing.T) {
	o := &order.Order{}
	o.AddProduct(kitProduct("p1", 2, 100))
	o.AddDiscount(order.OrderedDiscount{
		ID:        "d1",
		Name:      "Ten Off",
		Type:      order.DiscountProductSpecific,
		Method:    order.MethodAmount,
		Amount:    d(10),
		ProductID: "p1",
	})

	Recompute(o)

	// $10 off each of 2 units: 200 - 20 = 180.
	assert.True(t, o.Totals.FinalPrice.Equal(d(180)), "got %s", o.Totals.FinalPrice)
	assert.True(t, o.Totals.Discount.Equal(d(-20)))
	assert.True(t, o.ProductsOrdered[0].FinalPrice.Equal(d(180)))
	assert.False(t, o.Totals.Stale)
}

func TestRecomputeBundlePercentageDiscount(t *testing.T) {
	o := &order.Order{}
	o.AddBundle(storageBundle("b1", order.Storage20Year, 1, 500))
	o.AddDiscount(order.OrderedDiscount{
		ID:         "d1",
		Name:       "Ten Percent",
		Type:       order.DiscountBundleSpecific,
		Method:     order.MethodPercentage,
		Percentage: d(0.10),
		BundleID:   "b1",
	})

	Recompute(o)

	// 10% of the $500 unit list price comes off and the discount line's
	// displayed amount is rewritten to the computed dollars.
	assert.True(t, o.BundlesOrdered[0].FinalPrice.Equal(d(450)))
	require.Len(t, o.DiscountsOrdered, 1)
	assert.True(t, o.DiscountsOrdered[0].Amount.Equal(d(50)))
	assert.True(t, o.Totals.FinalPrice.Equal(d(450)))
}

func TestRecomputeWholeOrderPercentageSkipsExemptLines(t *testing.T) {
	o := &order.Order{}
	o.AddProduct(kitProduct("p1", 1, 100))
	shipping := kitProduct("p2", 1, 40)
	shipping.Family = order.FamilyShipping
	shipping.ExemptFromDiscount = true
	o.AddProduct(shipping)
	o.AddDiscount(order.OrderedDiscount{
		ID:         "d1",
		Name:       "Ten Percent",
		Type:       order.DiscountWholeOrder,
		Method:     order.MethodPercentage,
		Percentage: d(0.10),
	})

	Recompute(o)

	// 10% of the discountable $100, not of the full $140.
	assert.True(t, o.Totals.FinalPrice.Equal(d(130)), "got %s", o.Totals.FinalPrice)
	assert.True(t, o.Totals.ListPriceNonDiscountable.Equal(d(40)))
	assert.True(t, o.DiscountsOrdered[0].Amount.Equal(d(10)))
}

func TestRecomputeSecondWholeOrderPercentageIgnored(t *testing.T) {
	o := &order.Order{}
	o.AddProduct(kitProduct("p1", 1, 100))
	o.AddDiscount(order.OrderedDiscount{
		ID: "d1", Name: "A Ten", Type: order.DiscountWholeOrder,
		Method: order.MethodPercentage, Percentage: d(0.10),
	})
	o.AddDiscount(order.OrderedDiscount{
		ID: "d2", Name: "B Twenty", Type: order.DiscountSales,
		Method: order.MethodPercentage, Percentage: d(0.20),
	})

	Recompute(o)

	// Only the first whole-order percentage applies.
	assert.True(t, o.Totals.FinalPrice.Equal(d(90)), "got %s", o.Totals.FinalPrice)
}

func TestRecomputeWholeOrderDollarNotClamped(t *testing.T) {
	o := &order.Order{}
	o.AddProduct(kitProduct("p1", 1, 50))
	o.AddDiscount(order.OrderedDiscount{
		ID: "d1", Name: "Sixty Off", Type: order.DiscountWholeOrder,
		Method: order.MethodAmount, Amount: d(60),
	})

	Recompute(o)

	// Oversized discounts drive the total negative rather than clamping;
	// the operator sees exactly what was entered.
	assert.True(t, o.Totals.FinalPrice.Equal(d(-10)), "got %s", o.Totals.FinalPrice)
}

func TestRecomputeDueAtCheckout(t *testing.T) {
	o := &order.Order{}

	b := storageBundle("b1", order.Storage20Year, 2, 500)
	b.BundledProducts[0].IsDueAtCheckout = true
	o.AddBundle(b)

	deposit := kitProduct("p1", 1, 100)
	deposit.UpfrontAmount = d(25)
	o.AddProduct(deposit)

	Recompute(o)

	// Bundled checkout lines contribute final (falling back to list) price
	// per unit; top-level lines contribute their upfront amount per unit.
	assert.True(t, o.Totals.DueAtCheckout.Equal(d(1025)), "got %s", o.Totals.DueAtCheckout)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	o := &order.Order{}
	o.AddBundle(storageBundle("b1", order.Storage20Year, 3, 500))
	o.AddDiscount(order.OrderedDiscount{
		ID: "d1", Name: "Ten Percent", Type: order.DiscountWholeOrder,
		Method: order.MethodPercentage, Percentage: d(0.10),
	})

	Recompute(o)
	first := o.Totals
	Recompute(o)

	assert.True(t, first.FinalPrice.Equal(o.Totals.FinalPrice))
	assert.True(t, first.Discount.Equal(o.Totals.Discount))
	assert.True(t, first.DueAtCheckout.Equal(o.Totals.DueAtCheckout))
}
