package builder

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/stemvault/orderbuilder/internal/domain/catalog"
	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
)

// SelectItem adds a catalog entry to the order. When the selection is an
// a-la-carte product or a single-product bundle and the cart already
// holds others, the operator is first offered any multi-product bundle
// that covers everything the cart would then contain; accepting one swaps
// the subsumed lines for the bundle atomically.
func (c *Controller) SelectItem(ctx context.Context, selectorID string, quantity int64) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	item, err := c.catalog.Find(selectorID)
	if err != nil {
		return reject("Unknown Item", "The selected item is not in the catalog.")
	}
	sel := cloneItem(item)
	if quantity >= 1 {
		sel.Quantity = quantity
	}

	if err := c.validateDiscountSelection(&sel); err != nil {
		return err
	}
	if err := c.checkStorageCompatibility(&sel); err != nil {
		return err
	}

	if c.shouldSuggestBundles(&sel) {
		swapped, err := c.offerBundleSwap(ctx, &sel)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}

	return c.addItem(ctx, &sel)
}

// shouldSuggestBundles fires the suggester only for product-shaped
// selections when the cart already holds a-la-carte products or
// single-product bundles.
func (c *Controller) shouldSuggestBundles(sel *catalog.Item) bool {
	productShaped := sel.Type == catalog.ItemProduct ||
		(sel.Type == catalog.ItemBundle && sel.Bundle != nil && sel.Bundle.Type == order.BundleSingleProduct)
	if !productShaped {
		return false
	}
	return len(c.order.ALaCarteProducts()) > 0 || len(c.order.SingleProductBundles()) > 0
}

// offerBundleSwap prompts with superset bundles and, on acceptance,
// removes every subsumed line and adds the chosen bundle instead of the
// original selection. Returns true when a swap happened.
func (c *Controller) offerBundleSwap(ctx context.Context, sel *catalog.Item) (bool, error) {
	productsToCheck := c.cartProductsAfter(sel)

	suggested := catalog.SuggestBundles(c.catalog.MultiProductBundles(), productsToCheck)
	if len(suggested) == 0 {
		return false, nil
	}

	chosenID, err := c.prompter.SuggestBundle(ctx, catalog.SuggestionOptions(suggested))
	if err != nil {
		return false, errors.Wrap(err, "bundle suggestion prompt")
	}
	if chosenID == "" {
		return false, nil
	}

	chosenItem, err := c.catalog.Find(chosenID)
	if err != nil {
		return false, reject("Unknown Bundle", "The chosen bundle is not in the catalog.")
	}
	chosen := cloneItem(chosenItem)

	inChosen := make(map[string]bool)
	for _, p := range chosen.Bundle.BundledProducts {
		if p.Family != order.FamilyShipping && p.Family != order.FamilyAddOn {
			inChosen[p.Name] = true
		}
	}

	// Subsumed a-la-carte products leave the cart.
	var productIDs []string
	for _, p := range c.order.ALaCarteProducts() {
		if inChosen[p.Name] {
			productIDs = append(productIDs, p.ID)
			c.order.RemoveProduct(p.SelectorID)
			c.catalog.MarkSelected(p.SelectorID, false)
		}
	}

	// Single-product bundles whose every main product is in the chosen
	// bundle leave too.
	var bundleIDs []string
	for _, b := range c.order.SingleProductBundles() {
		subsumed := true
		for _, p := range b.BundledProducts {
			if p.Family == order.FamilyShipping || p.Family == order.FamilyAddOn {
				continue
			}
			if !inChosen[p.Name] {
				subsumed = false
				break
			}
		}
		if subsumed {
			bundleIDs = append(bundleIDs, b.ID)
			c.order.RemoveBundle(b.SelectorID)
			c.catalog.MarkSelected(b.SelectorID, false)
		}
	}

	if err := c.persist("remove bundles and products",
		c.store.RemoveBundlesAndProducts(ctx, c.order, productIDs, bundleIDs)); err != nil {
		return true, err
	}

	return true, c.addItem(ctx, &chosen)
}

// cartProductsAfter lists the main products the cart would hold after the
// pending selection: bundled products of ordered single-product bundles,
// current a-la-carte products, and the selection itself.
func (c *Controller) cartProductsAfter(sel *catalog.Item) []order.OrderedProduct {
	var out []order.OrderedProduct
	for _, b := range c.order.SingleProductBundles() {
		for _, p := range b.BundledProducts {
			if p.Family != order.FamilyShipping && p.Family != order.FamilyAddOn {
				out = append(out, p)
			}
		}
	}
	out = append(out, c.order.ALaCarteProducts()...)

	switch {
	case sel.Type == catalog.ItemBundle && sel.Bundle != nil && sel.Bundle.Type == order.BundleSingleProduct:
		for _, p := range sel.Bundle.BundledProducts {
			if p.Family != order.FamilyShipping && p.Family != order.FamilyAddOn {
				out = append(out, p)
			}
		}
	case sel.Type == catalog.ItemProduct && sel.Product != nil:
		if sel.Product.Family != order.FamilyShipping && sel.Product.Family != order.FamilyAddOn {
			out = append(out, *sel.Product)
		}
	}
	return out
}

// addItem applies the selection to the model, reconciles automatic
// discounts, recomputes, and persists in the fixed bundle → products →
// discounts sequence.
func (c *Controller) addItem(ctx context.Context, sel *catalog.Item) error {
	var (
		productsToAdd []order.OrderedProduct
		bundleToAdd   *order.OrderedBundle
		discountToAdd *order.OrderedDiscount
		autoAdded     []order.OrderedDiscount
		autoRemoved   []order.OrderedDiscount
	)

	wasASP := c.order.IncludesAnnualStorage

	switch sel.Type {
	case catalog.ItemBundle:
		b := sel.Bundle.Clone()
		b.Expanded = false
		b.Quantity = sel.Quantity
		c.order.AddBundle(b)
		// AddBundle scales and stamps its own copy; persist that one.
		bundleToAdd = c.orderedBundle(sel.SelectorID)

		autoAdded, autoRemoved = discount.Reconcile(c.order, c.rates)
		productsToAdd = append(productsToAdd, c.addRequiredAddOns(bundleToAdd.BundledProducts)...)

	case catalog.ItemProduct:
		p := sel.Product.Clone()
		p.Quantity = sel.Quantity
		p.ListPriceAtQuantity = p.ListPrice.Mul(decQty(p.Quantity))
		c.order.AddProduct(p)
		if added := c.orderedProduct(sel.SelectorID); added != nil {
			productsToAdd = append(productsToAdd, *added)
		}
		productsToAdd = append(productsToAdd, c.addRequiredAddOns([]order.OrderedProduct{p})...)

	case catalog.ItemDiscount:
		d := sel.Discount.Clone()
		c.order.AddDiscount(d)
		discountToAdd = &d
	}

	c.catalog.MarkSelected(sel.SelectorID, true)

	// First ASP bundle locks the order to the annual plan.
	if !wasASP && c.order.IncludesAnnualStorage {
		if err := c.plans.SelectAnnual(c.order); err == nil {
			if err := c.persist("update payment plan",
				c.store.UpdatePaymentPlan(ctx, c.order, c.order.PaymentPlan)); err != nil {
				return err
			}
		}
	}

	c.recompute()

	for _, d := range autoRemoved {
		if err := c.persist("remove discount", c.store.RemoveDiscount(ctx, c.order, d)); err != nil {
			return err
		}
	}
	if bundleToAdd != nil {
		updated, err := c.store.AddBundle(ctx, c.order, *bundleToAdd)
		if err := c.persist("add bundle", err); err != nil {
			return err
		}
		c.order.MergeBundleLineIDs(updated)
	}
	if len(productsToAdd) > 0 {
		updated, err := c.store.AddProducts(ctx, c.order, productsToAdd)
		if err := c.persist("add products", err); err != nil {
			return err
		}
		c.order.MergeProductLineIDs(updated)
	}
	if discountToAdd != nil {
		appliedID, err := c.store.AddDiscount(ctx, c.order, *discountToAdd)
		if err := c.persist("add discount", err); err != nil {
			return err
		}
		c.order.MergeDiscountID(discountToAdd.ID, appliedID)
	}
	for _, d := range autoAdded {
		appliedID, err := c.store.AddDiscount(ctx, c.order, d)
		if err := c.persist("add discount", err); err != nil {
			return err
		}
		c.order.MergeDiscountID(d.ID, appliedID)
	}
	return nil
}

// addRequiredAddOns pulls required add-on products into the cart when not
// already present and returns the new lines for persistence.
func (c *Controller) addRequiredAddOns(products []order.OrderedProduct) []order.OrderedProduct {
	var added []order.OrderedProduct
	for _, p := range products {
		for _, related := range p.RelatedProducts {
			if related.RelationshipType != order.RelationshipRequiredAddOn {
				continue
			}
			if c.productInCart(related.SelectorID) {
				continue
			}
			item, err := c.catalog.Find(related.SelectorID)
			if err != nil || item.Product == nil {
				continue
			}
			addOn := item.Product.Clone()
			if addOn.Quantity < 1 {
				addOn.Quantity = 1
			}
			addOn.ListPriceAtQuantity = addOn.ListPrice.Mul(decQty(addOn.Quantity))
			c.order.AddProduct(addOn)
			c.catalog.MarkSelected(related.SelectorID, true)
			added = append(added, addOn)
		}
	}
	return added
}

func (c *Controller) orderedBundle(selectorID string) *order.OrderedBundle {
	for i := range c.order.BundlesOrdered {
		if c.order.BundlesOrdered[i].SelectorID == selectorID {
			return &c.order.BundlesOrdered[i]
		}
	}
	return nil
}

func (c *Controller) orderedProduct(selectorID string) *order.OrderedProduct {
	for i := range c.order.ProductsOrdered {
		if c.order.ProductsOrdered[i].SelectorID == selectorID {
			return &c.order.ProductsOrdered[i]
		}
	}
	return nil
}

func (c *Controller) productInCart(selectorID string) bool {
	for _, p := range c.order.ProductsOrdered {
		if p.SelectorID == selectorID {
			return true
		}
	}
	return false
}

// validateDiscountSelection bails on operator-entered sales discounts
// without a usable value, and enforces the one-whole-order-percentage
// rule at entry.
func (c *Controller) validateDiscountSelection(sel *catalog.Item) error {
	if sel.Type != catalog.ItemDiscount || sel.Discount == nil {
		return nil
	}
	d := sel.Discount

	if d.Type == order.DiscountSales {
		if d.Method == order.MethodAmount && d.Amount.IsZero() {
			return reject("Invalid Discount", "Enter an amount for the discount.")
		}
		if d.Method == order.MethodPercentage && !d.Percentage.IsPositive() {
			return reject("Invalid Discount", "Enter a percentage for the discount in the format .##.")
		}
		if d.Method == order.MethodPercentage && d.Percentage.GreaterThanOrEqual(decOne) {
			return reject("Invalid Discount", "Enter a percentage for the discount in the format .##.")
		}
	}

	wholeOrderPct := (d.Type == order.DiscountWholeOrder || d.Type == order.DiscountSales) &&
		d.Method == order.MethodPercentage
	if wholeOrderPct && c.order.HasWholeOrderPercentageDiscount() {
		return reject("Discount Already Applied",
			"Only one whole-order percentage discount may be active at a time.")
	}
	return nil
}

// checkStorageCompatibility enforces the ASP exclusivity invariant before
// anything is applied: annual-storage bundles never share a cart with
// other bundles or products.
func (c *Controller) checkStorageCompatibility(sel *catalog.Item) error {
	switch {
	case sel.Type == catalog.ItemBundle && sel.Bundle != nil && sel.Bundle.StorageType == order.StorageASP:
		if !c.order.IncludesAnnualStorage &&
			(len(c.order.BundlesOrdered) > 0 || len(c.order.ProductsOrdered) > 0) {
			return reject(
				"Annual Storage Plan Bundles/Products may not be combined with other products",
				"Remove non-ASP products from the cart before adding an ASP bundle.")
		}
	case sel.Type == catalog.ItemBundle && sel.Bundle != nil:
		if c.order.IncludesAnnualStorage && len(c.order.BundlesOrdered) > 0 {
			return reject(
				"Non-Annual Storage Plan bundles may not be combined with Annual Storage Plan products",
				"Remove ASP bundles from the cart before adding a non-ASP bundle.")
		}
	case sel.Type == catalog.ItemProduct:
		if c.order.IncludesAnnualStorage {
			return reject(
				"Products may not be combined with Annual Storage Plan bundles",
				"Remove ASP bundles from the cart before adding a-la-carte products.")
		}
	}
	return nil
}

func cloneItem(item *catalog.Item) catalog.Item {
	out := *item
	if item.Product != nil {
		p := item.Product.Clone()
		out.Product = &p
	}
	if item.Bundle != nil {
		b := item.Bundle.Clone()
		out.Bundle = &b
	}
	if item.Discount != nil {
		d := item.Discount.Clone()
		out.Discount = &d
	}
	return out
}
