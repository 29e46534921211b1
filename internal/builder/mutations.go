package builder

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
	"github.com/stemvault/orderbuilder/internal/domain/payment"
)

// RemoveProduct deletes an a-la-carte product line.
func (c *Controller) RemoveProduct(ctx context.Context, selectorID string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	removed, ok := c.order.RemoveProduct(selectorID)
	if !ok {
		return reject("Item Not Found", "The product is not in the order.")
	}
	c.catalog.MarkSelected(selectorID, false)

	added, autoRemoved := discount.Reconcile(c.order, c.rates)
	c.recompute()

	if err := c.persist("remove product",
		c.store.RemoveProduct(ctx, c.order, removed.ID)); err != nil {
		return err
	}
	return c.persistReconciled(ctx, added, autoRemoved)
}

// RemoveBundle deletes a bundle line. When the last annual-storage bundle
// leaves, the forced annual payment plan is invalidated and its
// persisted selection removed.
func (c *Controller) RemoveBundle(ctx context.Context, selectorID string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	removed, aspCleared, ok := c.order.RemoveBundle(selectorID)
	if !ok {
		return reject("Item Not Found", "The bundle is not in the order.")
	}
	c.catalog.MarkSelected(selectorID, false)

	if aspCleared {
		c.plans.Invalidate(c.order)
	}

	added, autoRemoved := discount.Reconcile(c.order, c.rates)
	c.recompute()

	if err := c.persist("remove bundle",
		c.store.RemoveBundle(ctx, c.order, removed.ID)); err != nil {
		return err
	}
	if aspCleared {
		if err := c.persist("remove payment plan",
			c.store.RemovePaymentPlan(ctx, c.order)); err != nil {
			return err
		}
	}
	return c.persistReconciled(ctx, added, autoRemoved)
}

// RemoveDiscount deletes an operator-applied discount line. Discounts
// owned by the automatic reconciliation cannot be removed by hand.
func (c *Controller) RemoveDiscount(ctx context.Context, selectorID string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	for _, d := range c.order.DiscountsOrdered {
		if d.SelectorID == selectorID && d.SystemApplied {
			return reject("Discount Cannot Be Removed",
				"Volume discounts are applied automatically and follow the cart contents.")
		}
	}

	removed, ok := c.order.RemoveDiscount(selectorID)
	if !ok {
		return reject("Item Not Found", "The discount is not in the order.")
	}
	c.catalog.MarkSelected(selectorID, false)

	c.recompute()

	return c.persist("remove discount", c.store.RemoveDiscount(ctx, c.order, removed))
}

// SetProductQuantity updates an a-la-carte product's quantity. Quantities
// below 1 are ignored without error, matching the input surface.
func (c *Controller) SetProductQuantity(ctx context.Context, selectorID string, quantity int64) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if !c.order.SetProductQuantity(selectorID, quantity) {
		return nil
	}
	c.recompute()

	for _, p := range c.order.ProductsOrdered {
		if p.SelectorID == selectorID {
			return c.persist("update product quantity",
				c.store.UpdateProductQuantities(ctx, c.order, p))
		}
	}
	return nil
}

// SetBundleQuantity updates a bundle's quantity and rescales its
// contents, then reconciles the volume discounts the new counts earn.
func (c *Controller) SetBundleQuantity(ctx context.Context, selectorID string, quantity int64) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if !c.order.SetBundleQuantity(selectorID, quantity) {
		return nil
	}

	added, autoRemoved := discount.Reconcile(c.order, c.rates)
	c.recompute()

	for _, b := range c.order.BundlesOrdered {
		if b.SelectorID == selectorID {
			if err := c.persist("update bundle quantity",
				c.store.UpdateBundleQuantities(ctx, c.order, b)); err != nil {
				return err
			}
			break
		}
	}
	return c.persistReconciled(ctx, added, autoRemoved)
}

// SelectPaymentPlan applies a plan choice. Compatibility violations map
// to operator-facing rejections and leave the previous selection intact.
func (c *Controller) SelectPaymentPlan(ctx context.Context, planID string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.plans.Select(c.order, planID); err != nil {
		switch {
		case errors.Is(err, payment.ErrAnnualPlanRequiresASP):
			return reject("Annual Plan Unavailable",
				"The annual payment plan requires Annual Storage Plan bundles in the order.")
		case errors.Is(err, payment.ErrASPRequiresAnnualPlan):
			return reject("Plan Unavailable",
				"Annual Storage Plan orders may only use the annual payment plan.")
		default:
			return reject("Unknown Payment Plan", "The selected payment plan is not available.")
		}
	}
	c.recompute()

	return c.persist("update payment plan",
		c.store.UpdatePaymentPlan(ctx, c.order, c.order.PaymentPlan))
}

// SetAdditionalFirstPayment applies an extra first-payment amount to
// installment plans. One-time and annual plans reject it; the amount is
// forced back to zero in that case, and the reset is not persisted.
func (c *Controller) SetAdditionalFirstPayment(ctx context.Context, amount decimal.Decimal) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.plans.SetAdditionalFirstPayment(c.order, amount); err != nil {
		return reject("Additional Payment Not Allowed",
			"An additional first payment only applies to monthly installment plans.")
	}
	c.recompute()

	return c.persist("update additional first payment",
		c.store.UpdateAdditionToFirstPayment(ctx, c.order, amount))
}

// ClearOrder empties the cart, resets plan and selection state, and
// deletes every persisted line in one call.
func (c *Controller) ClearOrder(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	for _, p := range c.order.ProductsOrdered {
		c.catalog.MarkSelected(p.SelectorID, false)
	}
	for _, b := range c.order.BundlesOrdered {
		c.catalog.MarkSelected(b.SelectorID, false)
	}
	for _, d := range c.order.DiscountsOrdered {
		c.catalog.MarkSelected(d.SelectorID, false)
	}

	c.order.Clear()
	c.plans.Invalidate(c.order)
	c.recompute()

	return c.persist("clear order", c.store.ClearOrder(ctx, c.order))
}

// persistReconciled mirrors the reconciliation outcome: retracted
// system-applied discounts are deleted, fresh ones inserted, in that
// order.
func (c *Controller) persistReconciled(ctx context.Context, added, removed []order.OrderedDiscount) error {
	for _, d := range removed {
		if err := c.persist("remove discount", c.store.RemoveDiscount(ctx, c.order, d)); err != nil {
			return err
		}
	}
	for _, d := range added {
		appliedID, err := c.store.AddDiscount(ctx, c.order, d)
		if err := c.persist("add discount", err); err != nil {
			return err
		}
		c.order.MergeDiscountID(d.ID, appliedID)
	}
	return nil
}
