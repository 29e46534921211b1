package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, order_context, opportunity_id, invoice_id, opportunity_stage,
		payment_plan_id, additional_first_payment
		FROM orders WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (id, order_context, opportunity_id)
		VALUES ($1, 'Opportunity', $1)`

	getOrderBundleLinesSQL = `SELECT l.id, l.quantity,
		b.id, b.name, b.bundle_type, b.storage_type, b.list_price, b.bundle_savings
		FROM order_bundle_lines l
		JOIN bundles b ON b.id = l.bundle_id
		WHERE l.order_id = $1`

	getOrderProductLinesSQL = `SELECT l.id, l.quantity, l.bundle_line_id,
		p.id, p.name, p.family, p.list_price, p.exempt_from_discount,
		p.is_due_at_checkout, p.upfront_amount, p.is_biobanking, p.eligible_for_volume
		FROM order_product_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.order_id = $1`

	getOrderDiscountLinesSQL = `SELECT l.id, l.discount_id, l.amount, l.percentage, l.system_applied,
		COALESCE(d.name, r.name, ''),
		COALESCE(d.description, ''),
		COALESCE(d.discount_type, CASE WHEN l.system_applied THEN 'Multi-Biobanking Pkg' ELSE '' END),
		COALESCE(d.method, r.method, 'Amount'),
		COALESCE(d.bundle_id, ''), COALESCE(d.product_id, ''), COALESCE(d.marketing_code, '')
		FROM order_discount_lines l
		LEFT JOIN discounts d ON d.id = l.discount_id
		LEFT JOIN biobanking_rates r ON r.id = l.discount_id
		WHERE l.order_id = $1`

	getBundleMembersSQL = `SELECT bp.bundle_id, bp.starting_quantity,
		p.id, p.name, p.family, p.list_price, p.exempt_from_discount,
		p.is_due_at_checkout, p.upfront_amount, p.is_biobanking, p.eligible_for_volume
		FROM bundle_products bp
		JOIN products p ON p.id = bp.product_id
		WHERE bp.bundle_id = ANY($1)`

	insertProductLineSQL = `INSERT INTO order_product_lines (id, order_id, product_id, bundle_line_id, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	insertBundleLineSQL = `INSERT INTO order_bundle_lines (id, order_id, bundle_id, quantity)
		VALUES ($1, $2, $3, $4)`

	insertDiscountLineSQL = `INSERT INTO order_discount_lines (id, order_id, discount_id, amount, percentage, system_applied)
		VALUES ($1, $2, $3, $4, $5, $6)`

	deleteProductLineSQL = `DELETE FROM order_product_lines
		WHERE order_id = $1 AND product_id = $2 AND bundle_line_id IS NULL`

	deleteBundleLineSQL = `DELETE FROM order_bundle_lines
		WHERE order_id = $1 AND bundle_id = $2`

	deleteDiscountLineByIDSQL = `DELETE FROM order_discount_lines WHERE order_id = $1 AND id = $2`

	deleteDiscountLineSQL = `DELETE FROM order_discount_lines WHERE order_id = $1 AND discount_id = $2`

	updateProductLineQuantitySQL = `UPDATE order_product_lines SET quantity = $3
		WHERE order_id = $1 AND product_id = $2 AND bundle_line_id IS NULL`

	updateBundleLineQuantitySQL = `UPDATE order_bundle_lines SET quantity = $3
		WHERE order_id = $1 AND bundle_id = $2`

	updateBundledProductQuantitySQL = `UPDATE order_product_lines SET quantity = $3
		WHERE product_id = $2 AND bundle_line_id IN
			(SELECT id FROM order_bundle_lines WHERE order_id = $1 AND bundle_id = $4)`

	updatePaymentPlanSQL = `UPDATE orders SET payment_plan_id = $2, updated_at = NOW() WHERE id = $1`

	updateAdditionalFirstPaymentSQL = `UPDATE orders SET additional_first_payment = $2, updated_at = NOW() WHERE id = $1`
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL. Line items
// carry UUID identifiers that play the role of the CRM line-item ids the
// cart merges back after each write.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Load returns the full persisted cart state for an order, creating an
// empty Opportunity-context order on first open.
func (r *OrderRepository) Load(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := r.loadHeader(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := r.loadBundles(ctx, o); err != nil {
		return nil, err
	}
	if err := r.loadProducts(ctx, o); err != nil {
		return nil, err
	}
	if err := r.loadDiscounts(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) loadHeader(ctx context.Context, orderID string) (*order.Order, error) {
	o := &order.Order{}
	var additional decimal.Decimal
	err := r.pool.QueryRow(ctx, getOrderSQL, orderID).Scan(
		&o.ID, &o.Context, &o.OpportunityID, &o.InvoiceID, &o.OpportunityStage,
		&o.PaymentPlanSelected, &additional,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.pool.Exec(ctx, createOrderSQL, orderID); err != nil {
			return nil, fmt.Errorf("creating order %q: %w", orderID, err)
		}
		return &order.Order{ID: orderID, Context: order.ContextOpportunity, OpportunityID: orderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %q: %w", orderID, err)
	}
	o.PaymentPlan.AdditionalAmountOnFirstPayment = additional
	return o, nil
}

func (r *OrderRepository) loadBundles(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderBundleLinesSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading bundle lines for order %q: %w", o.ID, err)
	}

	type bundleLine struct {
		lineID   string
		quantity int64
		bundle   order.OrderedBundle
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bundleLine, error) {
		var l bundleLine
		err := row.Scan(&l.lineID, &l.quantity,
			&l.bundle.ID, &l.bundle.Name, &l.bundle.Type, &l.bundle.StorageType,
			&l.bundle.ListPrice, &l.bundle.BundleSavings)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("scanning bundle lines for order %q: %w", o.ID, err)
	}
	if len(lines) == 0 {
		return nil
	}

	bundleIDs := make([]string, 0, len(lines))
	for _, l := range lines {
		bundleIDs = append(bundleIDs, l.bundle.ID)
	}
	members, err := r.bundleMembers(ctx, bundleIDs)
	if err != nil {
		return err
	}

	for _, l := range lines {
		b := l.bundle
		b.BundledProducts = members[b.ID]
		b.ScaleToQuantity(l.quantity)
		r.stampBundleLine(o, &b, l.lineID)
		o.BundlesOrdered = append(o.BundlesOrdered, b)
	}
	return nil
}

// bundleMembers loads the catalog composition for a set of bundles, keyed
// by bundle id. Quantities are the per-unit starting quantities; the
// caller scales them.
func (r *OrderRepository) bundleMembers(ctx context.Context, bundleIDs []string) (map[string][]order.OrderedProduct, error) {
	rows, err := r.pool.Query(ctx, getBundleMembersSQL, bundleIDs)
	if err != nil {
		return nil, fmt.Errorf("loading bundle members: %w", err)
	}

	members := make(map[string][]order.OrderedProduct, len(bundleIDs))
	for rows.Next() {
		var (
			bundleID string
			p        order.OrderedProduct
		)
		if err := rows.Scan(&bundleID, &p.StartingQuantityInBundle,
			&p.ID, &p.Name, &p.Family, &p.ListPrice, &p.ExemptFromDiscount,
			&p.IsDueAtCheckout, &p.UpfrontAmount, &p.IsBiobankingProduct,
			&p.EligibleForVolumeDiscounts); err != nil {
			return nil, fmt.Errorf("scanning bundle member: %w", err)
		}
		members[bundleID] = append(members[bundleID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading bundle members: %w", err)
	}
	return members, nil
}

func (r *OrderRepository) loadProducts(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderProductLinesSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading product lines for order %q: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lineID       string
			bundleLineID *string
			p            order.OrderedProduct
		)
		if err := rows.Scan(&lineID, &p.Quantity, &bundleLineID,
			&p.ID, &p.Name, &p.Family, &p.ListPrice, &p.ExemptFromDiscount,
			&p.IsDueAtCheckout, &p.UpfrontAmount, &p.IsBiobankingProduct,
			&p.EligibleForVolumeDiscounts); err != nil {
			return fmt.Errorf("scanning product line: %w", err)
		}

		if bundleLineID != nil {
			r.attachBundledLineID(o, *bundleLineID, p.ID, lineID)
			continue
		}
		p.ListPriceAtQuantity = p.ListPrice.Mul(decimal.NewFromInt(p.Quantity))
		r.stampProductLine(o, &p, lineID)
		o.ProductsOrdered = append(o.ProductsOrdered, p)
	}
	return rows.Err()
}

func (r *OrderRepository) loadDiscounts(ctx context.Context, o *order.Order) error {
	rows, err := r.pool.Query(ctx, getOrderDiscountLinesSQL, o.ID)
	if err != nil {
		return fmt.Errorf("loading discount lines for order %q: %w", o.ID, err)
	}

	discounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.OrderedDiscount, error) {
		var d order.OrderedDiscount
		err := row.Scan(&d.AppliedDiscountID, &d.ID, &d.Amount, &d.Percentage, &d.SystemApplied,
			&d.Name, &d.Description, &d.Type, &d.Method,
			&d.BundleID, &d.ProductID, &d.MarketingCode)
		return d, err
	})
	if err != nil {
		return fmt.Errorf("scanning discount lines for order %q: %w", o.ID, err)
	}
	o.DiscountsOrdered = discounts
	return nil
}

// AddProducts persists a-la-carte product lines and returns them with
// freshly assigned line ids.
func (r *OrderRepository) AddProducts(ctx context.Context, o *order.Order, products []order.OrderedProduct) ([]order.OrderedProduct, error) {
	batch := &pgx.Batch{}
	out := make([]order.OrderedProduct, len(products))
	for i, p := range products {
		lineID := uuid.NewString()
		batch.Queue(insertProductLineSQL, lineID, o.ID, p.ID, nil, p.Quantity)
		r.stampProductLine(o, &p, lineID)
		out[i] = p
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("adding product lines to order %q: %w", o.ID, err)
	}
	return out, nil
}

// AddBundle persists a bundle line and its bundled product lines in one
// transaction, returning a snapshot carrying the assigned ids.
func (r *OrderRepository) AddBundle(ctx context.Context, o *order.Order, bundle order.OrderedBundle) (*order.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("adding bundle to order %q: %w", o.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	bundleLineID := uuid.NewString()
	if _, err := tx.Exec(ctx, insertBundleLineSQL, bundleLineID, o.ID, bundle.ID, bundle.Quantity); err != nil {
		return nil, fmt.Errorf("adding bundle line to order %q: %w", o.ID, err)
	}

	snapshot := bundle.Clone()
	r.stampBundleLine(o, &snapshot, bundleLineID)
	for i := range snapshot.BundledProducts {
		p := &snapshot.BundledProducts[i]
		lineID := uuid.NewString()
		if _, err := tx.Exec(ctx, insertProductLineSQL, lineID, o.ID, p.ID, bundleLineID, p.Quantity); err != nil {
			return nil, fmt.Errorf("adding bundled product line to order %q: %w", o.ID, err)
		}
		r.stampProductLine(o, p, lineID)
		p.AppliedBundleID = bundleLineID
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("adding bundle to order %q: %w", o.ID, err)
	}
	return &order.Order{BundlesOrdered: []order.OrderedBundle{snapshot}}, nil
}

// AddDiscount persists a discount line and returns the assigned id.
func (r *OrderRepository) AddDiscount(ctx context.Context, o *order.Order, discount order.OrderedDiscount) (string, error) {
	lineID := uuid.NewString()
	_, err := r.pool.Exec(ctx, insertDiscountLineSQL,
		lineID, o.ID, discount.ID, discount.Amount, discount.Percentage, discount.SystemApplied)
	if err != nil {
		return "", fmt.Errorf("adding discount line to order %q: %w", o.ID, err)
	}
	return lineID, nil
}

// RemoveProduct deletes an a-la-carte product line.
func (r *OrderRepository) RemoveProduct(ctx context.Context, o *order.Order, productID string) error {
	if _, err := r.pool.Exec(ctx, deleteProductLineSQL, o.ID, productID); err != nil {
		return fmt.Errorf("removing product %q from order %q: %w", productID, o.ID, err)
	}
	return nil
}

// RemoveBundle deletes a bundle line; bundled product lines cascade.
func (r *OrderRepository) RemoveBundle(ctx context.Context, o *order.Order, bundleID string) error {
	if _, err := r.pool.Exec(ctx, deleteBundleLineSQL, o.ID, bundleID); err != nil {
		return fmt.Errorf("removing bundle %q from order %q: %w", bundleID, o.ID, err)
	}
	return nil
}

// RemoveDiscount deletes a discount line, preferring the assigned line id
// when the cart has one.
func (r *OrderRepository) RemoveDiscount(ctx context.Context, o *order.Order, discount order.OrderedDiscount) error {
	var err error
	if discount.AppliedDiscountID != "" {
		_, err = r.pool.Exec(ctx, deleteDiscountLineByIDSQL, o.ID, discount.AppliedDiscountID)
	} else {
		_, err = r.pool.Exec(ctx, deleteDiscountLineSQL, o.ID, discount.ID)
	}
	if err != nil {
		return fmt.Errorf("removing discount %q from order %q: %w", discount.ID, o.ID, err)
	}
	return nil
}

// RemoveBundlesAndProducts deletes several lines in one transaction; used
// by the bundle-suggestion swap so the cart never persists half-swapped.
func (r *OrderRepository) RemoveBundlesAndProducts(ctx context.Context, o *order.Order, productIDs, bundleIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("removing lines from order %q: %w", o.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, id := range productIDs {
		if _, err := tx.Exec(ctx, deleteProductLineSQL, o.ID, id); err != nil {
			return fmt.Errorf("removing product %q from order %q: %w", id, o.ID, err)
		}
	}
	for _, id := range bundleIDs {
		if _, err := tx.Exec(ctx, deleteBundleLineSQL, o.ID, id); err != nil {
			return fmt.Errorf("removing bundle %q from order %q: %w", id, o.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("removing lines from order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateProductQuantities writes an a-la-carte line's new quantity.
func (r *OrderRepository) UpdateProductQuantities(ctx context.Context, o *order.Order, product order.OrderedProduct) error {
	if _, err := r.pool.Exec(ctx, updateProductLineQuantitySQL, o.ID, product.ID, product.Quantity); err != nil {
		return fmt.Errorf("updating quantity of product %q in order %q: %w", product.ID, o.ID, err)
	}
	return nil
}

// UpdateBundleQuantities writes a bundle line's new quantity along with
// the rescaled quantities of its bundled product lines.
func (r *OrderRepository) UpdateBundleQuantities(ctx context.Context, o *order.Order, bundle order.OrderedBundle) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("updating quantity of bundle %q in order %q: %w", bundle.ID, o.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, updateBundleLineQuantitySQL, o.ID, bundle.ID, bundle.Quantity); err != nil {
		return fmt.Errorf("updating quantity of bundle %q in order %q: %w", bundle.ID, o.ID, err)
	}
	for _, p := range bundle.BundledProducts {
		if _, err := tx.Exec(ctx, updateBundledProductQuantitySQL, o.ID, p.ID, p.Quantity, bundle.ID); err != nil {
			return fmt.Errorf("updating quantity of bundled product %q in order %q: %w", p.ID, o.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("updating quantity of bundle %q in order %q: %w", bundle.ID, o.ID, err)
	}
	return nil
}

// UpdatePaymentPlan records the plan selection on the order row.
func (r *OrderRepository) UpdatePaymentPlan(ctx context.Context, o *order.Order, plan order.PaymentPlan) error {
	if _, err := r.pool.Exec(ctx, updatePaymentPlanSQL, o.ID, plan.ID); err != nil {
		return fmt.Errorf("updating payment plan of order %q: %w", o.ID, err)
	}
	return nil
}

// RemovePaymentPlan clears the plan selection on the order row.
func (r *OrderRepository) RemovePaymentPlan(ctx context.Context, o *order.Order) error {
	if _, err := r.pool.Exec(ctx, updatePaymentPlanSQL, o.ID, ""); err != nil {
		return fmt.Errorf("removing payment plan of order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateAdditionToFirstPayment records the extra first-payment amount.
func (r *OrderRepository) UpdateAdditionToFirstPayment(ctx context.Context, o *order.Order, amount decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, updateAdditionalFirstPaymentSQL, o.ID, amount); err != nil {
		return fmt.Errorf("updating additional first payment of order %q: %w", o.ID, err)
	}
	return nil
}

// ClearOrder deletes every line and resets the plan state in one
// transaction.
func (r *OrderRepository) ClearOrder(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("clearing order %q: %w", o.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, sql := range []string{
		`DELETE FROM order_discount_lines WHERE order_id = $1`,
		`DELETE FROM order_product_lines WHERE order_id = $1`,
		`DELETE FROM order_bundle_lines WHERE order_id = $1`,
		`UPDATE orders SET payment_plan_id = '', additional_first_payment = 0, updated_at = NOW() WHERE id = $1`,
	} {
		if _, err := tx.Exec(ctx, sql, o.ID); err != nil {
			return fmt.Errorf("clearing order %q: %w", o.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("clearing order %q: %w", o.ID, err)
	}
	return nil
}

// attachBundledLineID maps a persisted bundled-product line onto the
// in-memory bundle composition by (bundle line id, product id).
func (r *OrderRepository) attachBundledLineID(o *order.Order, bundleLineID, productID, lineID string) {
	for i := range o.BundlesOrdered {
		b := &o.BundlesOrdered[i]
		if b.AppliedBundleID != bundleLineID {
			continue
		}
		for j := range b.BundledProducts {
			if b.BundledProducts[j].ID == productID {
				r.stampProductLine(o, &b.BundledProducts[j], lineID)
			}
		}
	}
}

// stampProductLine writes the line id into the context-appropriate field.
func (r *OrderRepository) stampProductLine(o *order.Order, p *order.OrderedProduct, lineID string) {
	switch o.Context {
	case order.ContextInvoice:
		p.InvoiceLineItemID = lineID
	default:
		p.OpportunityLineItemID = lineID
	}
}

func (r *OrderRepository) stampBundleLine(o *order.Order, b *order.OrderedBundle, lineID string) {
	b.AppliedBundleID = lineID
	for i := range b.BundledProducts {
		b.BundledProducts[i].AppliedBundleID = lineID
	}
}
