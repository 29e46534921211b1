package builder

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

var decOne = decimal.NewFromInt(1)

func decQty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// RedeemCode resolves a marketing code to its discount template and
// applies it. Unknown codes, codes already in the cart, and codes whose
// target bundle or product is not ordered are all rejected without a
// state change.
func (c *Controller) RedeemCode(ctx context.Context, code string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	d, ok := c.catalog.Codes().Lookup(code)
	if !ok {
		return reject("Invalid Code", "The code entered does not match an active discount.")
	}
	if c.order.DiscountOrdered(d.SelectorID) {
		return reject("Code Already Applied", "This discount is already applied to the order.")
	}

	switch d.Type {
	case order.DiscountBundleSpecific:
		if !c.order.BundleOrdered(d.BundleID) {
			return reject("Code Not Applicable",
				"The bundle this code discounts is not in the order.")
		}
	case order.DiscountProductSpecific:
		if !c.order.ProductOrdered(d.ProductID) {
			return reject("Code Not Applicable",
				"The product this code discounts is not in the order.")
		}
	}

	if d.Method == order.MethodPercentage &&
		(d.Type == order.DiscountWholeOrder || d.Type == order.DiscountSales) &&
		c.order.HasWholeOrderPercentageDiscount() {
		return reject("Discount Already Applied",
			"Only one whole-order percentage discount may be active at a time.")
	}

	c.order.AddDiscount(d)
	c.recompute()

	appliedID, err := c.store.AddDiscount(ctx, c.order, d)
	if err := c.persist("add discount", err); err != nil {
		return err
	}
	c.order.MergeDiscountID(d.ID, appliedID)
	return nil
}
