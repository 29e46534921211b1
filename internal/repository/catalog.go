package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemvault/orderbuilder/internal/domain/catalog"
	"github.com/stemvault/orderbuilder/internal/domain/order"
)

const (
	getSearchableProductsSQL = `SELECT id, name, family, list_price, exempt_from_discount,
		is_due_at_checkout, upfront_amount, is_biobanking, eligible_for_volume
		FROM products WHERE searchable ORDER BY name`

	getProductRelationsSQL = `SELECT pr.product_id, pr.relationship_type, p.id, p.name
		FROM product_relations pr
		JOIN products p ON p.id = pr.related_product_id`

	getSearchableBundlesSQL = `SELECT id, name, bundle_type, storage_type, list_price, bundle_savings
		FROM bundles WHERE searchable ORDER BY name`

	getActiveDiscountsSQL = `SELECT id, name, description, discount_type, method, amount, percentage,
		COALESCE(bundle_id, ''), COALESCE(product_id, ''), marketing_code
		FROM discounts WHERE active ORDER BY name`
)

var _ catalog.Source = (*CatalogRepository)(nil)

// CatalogRepository loads the searchable catalog from PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// SearchableItems returns every selectable product, bundle, and discount.
// The recordID parameter is accepted for source-scoped catalogs; the
// PostgreSQL catalog is global.
func (r *CatalogRepository) SearchableItems(ctx context.Context, _ string) ([]catalog.Item, error) {
	relations, err := r.productRelations(ctx)
	if err != nil {
		return nil, err
	}

	var items []catalog.Item

	products, err := r.products(ctx, relations)
	if err != nil {
		return nil, err
	}
	items = append(items, products...)

	bundles, err := r.bundles(ctx, relations)
	if err != nil {
		return nil, err
	}
	items = append(items, bundles...)

	discounts, err := r.discounts(ctx)
	if err != nil {
		return nil, err
	}
	items = append(items, discounts...)

	return items, nil
}

func (r *CatalogRepository) products(ctx context.Context, relations map[string][]order.RelatedProduct) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getSearchableProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var p order.OrderedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Family, &p.ListPrice, &p.ExemptFromDiscount,
			&p.IsDueAtCheckout, &p.UpfrontAmount, &p.IsBiobankingProduct,
			&p.EligibleForVolumeDiscounts); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		p.Quantity = 1
		p.RelatedProducts = relations[p.ID]
		product := p
		items = append(items, catalog.Item{
			ID: p.ID, Name: p.Name, Type: catalog.ItemProduct, Product: &product,
		})
	}
	return items, rows.Err()
}

func (r *CatalogRepository) bundles(ctx context.Context, relations map[string][]order.RelatedProduct) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getSearchableBundlesSQL)
	if err != nil {
		return nil, fmt.Errorf("loading bundles: %w", err)
	}
	defer rows.Close()

	var bundles []order.OrderedBundle
	for rows.Next() {
		var b order.OrderedBundle
		if err := rows.Scan(&b.ID, &b.Name, &b.Type, &b.StorageType,
			&b.ListPrice, &b.BundleSavings); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading bundles: %w", err)
	}
	if len(bundles) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(bundles))
	for _, b := range bundles {
		ids = append(ids, b.ID)
	}
	members, err := (&OrderRepository{pool: r.pool}).bundleMembers(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]catalog.Item, 0, len(bundles))
	for i := range bundles {
		b := bundles[i]
		b.BundledProducts = members[b.ID]
		for j := range b.BundledProducts {
			p := &b.BundledProducts[j]
			p.RelatedProducts = relations[p.ID]
		}
		b.ScaleToQuantity(1)
		bundle := b
		items = append(items, catalog.Item{
			ID: b.ID, Name: b.Name, Type: catalog.ItemBundle, Bundle: &bundle,
		})
	}
	return items, nil
}

func (r *CatalogRepository) discounts(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getActiveDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("loading discounts: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var d order.OrderedDiscount
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Type, &d.Method,
			&d.Amount, &d.Percentage, &d.BundleID, &d.ProductID, &d.MarketingCode); err != nil {
			return nil, fmt.Errorf("scanning discount: %w", err)
		}
		discount := d
		items = append(items, catalog.Item{
			ID: d.ID, Name: d.Name, Type: catalog.ItemDiscount, Discount: &discount,
		})
	}
	return items, rows.Err()
}

func (r *CatalogRepository) productRelations(ctx context.Context) (map[string][]order.RelatedProduct, error) {
	rows, err := r.pool.Query(ctx, getProductRelationsSQL)
	if err != nil {
		return nil, fmt.Errorf("loading product relations: %w", err)
	}
	defer rows.Close()

	relations := make(map[string][]order.RelatedProduct)
	for rows.Next() {
		var (
			productID string
			rel       order.RelatedProduct
		)
		if err := rows.Scan(&productID, &rel.RelationshipType, &rel.ID, &rel.Name); err != nil {
			return nil, fmt.Errorf("scanning product relation: %w", err)
		}
		relations[productID] = append(relations[productID], rel)
	}
	return relations, rows.Err()
}
