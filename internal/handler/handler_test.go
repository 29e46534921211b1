package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stemvault/orderbuilder/internal/builder"
	"github.com/stemvault/orderbuilder/internal/domain/catalog"
	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
)

// okStore accepts every persistence call and hands out synthetic ids.
type okStore struct{}

func (okStore) Load(_ context.Context, orderID string) (*order.Order, error) {
	return &order.Order{ID: orderID, Context: order.ContextOpportunity, OpportunityID: orderID}, nil
}

func (okStore) AddProducts(_ context.Context, _ *order.Order, products []order.OrderedProduct) ([]order.OrderedProduct, error) {
	out := make([]order.OrderedProduct, len(products))
	for i, p := range products {
		p.OpportunityLineItemID = "oli-" + p.ID
		out[i] = p
	}
	return out, nil
}

func (okStore) AddBundle(_ context.Context, _ *order.Order, bundle order.OrderedBundle) (*order.Order, error) {
	bundle.AppliedBundleID = "ab-" + bundle.ID
	return &order.Order{BundlesOrdered: []order.OrderedBundle{bundle}}, nil
}

func (okStore) AddDiscount(_ context.Context, _ *order.Order, d order.OrderedDiscount) (string, error) {
	return "ad-" + d.ID, nil
}

func (okStore) RemoveProduct(context.Context, *order.Order, string) error  { return nil }
func (okStore) RemoveBundle(context.Context, *order.Order, string) error   { return nil }
func (okStore) RemoveDiscount(context.Context, *order.Order, order.OrderedDiscount) error {
	return nil
}
func (okStore) RemoveBundlesAndProducts(context.Context, *order.Order, []string, []string) error {
	return nil
}
func (okStore) UpdateProductQuantities(context.Context, *order.Order, order.OrderedProduct) error {
	return nil
}
func (okStore) UpdateBundleQuantities(context.Context, *order.Order, order.OrderedBundle) error {
	return nil
}
func (okStore) UpdatePaymentPlan(context.Context, *order.Order, order.PaymentPlan) error { return nil }
func (okStore) RemovePaymentPlan(context.Context, *order.Order) error                    { return nil }
func (okStore) UpdateAdditionToFirstPayment(context.Context, *order.Order, decimal.Decimal) error {
	return nil
}
func (okStore) ClearOrder(context.Context, *order.Order) error { return nil }

type staticCatalog struct{ items []catalog.Item }

func (s staticCatalog) SearchableItems(context.Context, string) ([]catalog.Item, error) {
	return s.items, nil
}

type staticPlans struct{}

func (staticPlans) AvailablePaymentOptions(context.Context) ([]order.PaymentPlan, error) {
	return []order.PaymentPlan{
		{ID: "pl-otp", Name: "Pay In Full", Type: order.PlanOnetime},
		{ID: "pl-6", Name: "6 Months", TotalNumberOfMonthlyPayments: 6},
	}, nil
}

type emptyRates struct{}

func (emptyRates) BiobankingRates(context.Context) (*discount.RateTable, error) {
	return &discount.RateTable{}, nil
}

func testItems() []catalog.Item {
	price := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
	return []catalog.Item{
		{ID: "p1", Name: "Cord Blood Kit", Type: catalog.ItemProduct,
			Product: &order.OrderedProduct{ID: "p1", Name: "Cord Blood Kit", Family: order.FamilyProduct, ListPrice: price(100), Quantity: 1}},
		{ID: "p2", Name: "Cord Tissue Kit", Type: catalog.ItemProduct,
			Product: &order.OrderedProduct{ID: "p2", Name: "Cord Tissue Kit", Family: order.FamilyProduct, ListPrice: price(120), Quantity: 1}},
		{ID: "mb1", Name: "Family Pack", Type: catalog.ItemBundle,
			Bundle: &order.OrderedBundle{
				ID: "mb1", Name: "Family Pack", Type: order.BundleMultiProduct, ListPrice: price(180),
				BundledProducts: []order.OrderedProduct{
					{ID: "mb1-1", Name: "Cord Blood Kit", Family: order.FamilyProduct, StartingQuantityInBundle: 1, ListPrice: price(100)},
					{ID: "mb1-2", Name: "Cord Tissue Kit", Family: order.FamilyProduct, StartingQuantityInBundle: 1, ListPrice: price(120)},
				},
			}},
		{ID: "cd1", Name: "Spring Promo", Type: catalog.ItemDiscount,
			Discount: &order.OrderedDiscount{ID: "cd1", Name: "Spring Promo", MarketingCode: "SPRING20",
				Type: order.DiscountWholeOrder, Method: order.MethodAmount, Amount: price(20)}},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(zap.NewNop(), builder.Sources{
		Store:   okStore{},
		Catalog: staticCatalog{items: testItems()},
		Plans:   staticPlans{},
		Rates:   emptyRates{},
	})
}

func do(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestGetOrder(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/orders/ord-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
		PaymentOptions []order.PaymentPlan `json:"paymentOptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.Order.ID)
	require.Len(t, resp.PaymentOptions, 2)
	assert.Equal(t, "pl-otp", resp.PaymentOptions[0].ID)
}

func TestSelectItemProduct(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Order.ProductsOrdered, 1)
	assert.Equal(t, "oli-p1", resp.Order.ProductsOrdered[0].OpportunityLineItemID)
}

func TestSelectItemUnknownRejected(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-nope", Quantity: 1})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var n notice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, "Unknown Item", n.Title)
	assert.Equal(t, builder.SeverityDismissible, n.Severity)
}

func TestSelectItemSuggestionRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	// Second product triggers the bundle suggestion instead of applying.
	rec = do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p2", Quantity: 1})
	require.Equal(t, http.StatusConflict, rec.Code)

	var sugg suggestionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sugg))
	require.Len(t, sugg.Suggestions, 1)
	assert.Equal(t, "FAMILY PACK: Cord Blood Kit, Cord Tissue Kit", sugg.Suggestions[0].Label)
	assert.Equal(t, "a-mb1", sugg.Suggestions[0].SelectorID)

	// Retrying with the accepted bundle swaps the cart contents.
	rec = do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p2", Quantity: 1, AcceptBundleID: "a-mb1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Order.ProductsOrdered)
	require.Len(t, resp.Order.BundlesOrdered, 1)
	assert.Equal(t, "mb1", resp.Order.BundlesOrdered[0].ID)
}

func TestSelectItemSuggestionDeclined(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p1", Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/orders/ord-1/items",
		selectItemRequest{SelectorID: "a-p2", Quantity: 1, DeclineSuggestion: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Order.ProductsOrdered, 2)
	assert.Empty(t, resp.Order.BundlesOrdered)
}

func TestRedeemCode(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/codes", redeemCodeRequest{Code: "spring20"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Order.DiscountsOrdered, 1)
	assert.Equal(t, "ad-cd1", resp.Order.DiscountsOrdered[0].AppliedDiscountID)
}

func TestRedeemCodeUnknown(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/orders/ord-1/codes", redeemCodeRequest{Code: "NOPE99"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var n notice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, "Invalid Code", n.Title)
}

func TestInvalidBody(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord-1/items", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCatalog(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/orders/ord-1/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []catalog.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The marketing-code discount is not directly selectable.
	assert.Len(t, resp.Items, 3)
}
