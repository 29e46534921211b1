package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store mirrors cart mutations to the backing record store. Calls within
// one mutation chain are sequenced (bundle, then products, then discount)
// to avoid row-level contention; a failed call surfaces to the caller and
// the in-memory cart is NOT rolled back.
type Store interface {
	// Load returns the full persisted cart state for an order.
	Load(ctx context.Context, orderID string) (*Order, error)

	// AddProducts persists product lines and returns them with
	// server-assigned line-item ids.
	AddProducts(ctx context.Context, o *Order, products []OrderedProduct) ([]OrderedProduct, error)

	// AddBundle persists a bundle line and returns the updated order
	// snapshot carrying server-assigned ids for the bundle and its
	// products.
	AddBundle(ctx context.Context, o *Order, bundle OrderedBundle) (*Order, error)

	// AddDiscount persists a discount line and returns the applied
	// discount record id.
	AddDiscount(ctx context.Context, o *Order, discount OrderedDiscount) (string, error)

	RemoveProduct(ctx context.Context, o *Order, productID string) error
	RemoveBundle(ctx context.Context, o *Order, bundleID string) error
	RemoveDiscount(ctx context.Context, o *Order, discount OrderedDiscount) error

	// RemoveBundlesAndProducts deletes several lines in one round trip;
	// used by the bundle-suggestion swap.
	RemoveBundlesAndProducts(ctx context.Context, o *Order, productIDs, bundleIDs []string) error

	UpdateProductQuantities(ctx context.Context, o *Order, product OrderedProduct) error
	UpdateBundleQuantities(ctx context.Context, o *Order, bundle OrderedBundle) error

	UpdatePaymentPlan(ctx context.Context, o *Order, plan PaymentPlan) error
	RemovePaymentPlan(ctx context.Context, o *Order) error
	UpdateAdditionToFirstPayment(ctx context.Context, o *Order, amount decimal.Decimal) error

	ClearOrder(ctx context.Context, o *Order) error
}
