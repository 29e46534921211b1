package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

func TestCodeTableLookup(t *testing.T) {
	table := NewCodeTable()
	table.Add(order.OrderedDiscount{
		ID:            "d1",
		Name:          "Spring Promo",
		MarketingCode: "SPRING20",
		Type:          order.DiscountWholeOrder,
		Method:        order.MethodAmount,
		Amount:        decimal.NewFromInt(20),
	})

	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"exact", "SPRING20", true},
		{"case insensitive", "spring20", true},
		{"surrounding whitespace", "  Spring20 ", true},
		{"unknown", "WINTER20", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Lookup(tt.code)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "d1", got.ID)
			}
		})
	}
}

func TestCodeTableIgnoresBlankCodes(t *testing.T) {
	table := NewCodeTable()
	table.Add(order.OrderedDiscount{ID: "d1", Name: "No Code"})
	assert.Equal(t, 0, table.Len())
}

func TestCatalogSplitsCodeDiscounts(t *testing.T) {
	c := New([]Item{
		{ID: "p1", Name: "Kit", Type: ItemProduct, Product: &order.OrderedProduct{ID: "p1", Name: "Kit"}},
		{ID: "d1", Name: "Promo", Type: ItemDiscount, Discount: &order.OrderedDiscount{ID: "d1", MarketingCode: "PROMO"}},
		{ID: "d2", Name: "Listed", Type: ItemDiscount, Discount: &order.OrderedDiscount{ID: "d2"}},
	})

	assert.Len(t, c.Items(), 2, "code discounts are not directly selectable")
	assert.Equal(t, 1, c.Codes().Len())

	_, err := c.Find("a-d1")
	assert.ErrorIs(t, err, ErrItemNotFound)

	item, err := c.Find("a-d2")
	require.NoError(t, err)
	assert.Equal(t, ItemDiscount, item.Type)
}

func TestCatalogMarkSelected(t *testing.T) {
	c := New([]Item{
		{ID: "p1", Name: "Kit", Type: ItemProduct, Product: &order.OrderedProduct{ID: "p1", Name: "Kit"}},
	})

	c.MarkSelected("a-p1", true)
	item, err := c.Find("a-p1")
	require.NoError(t, err)
	assert.True(t, item.Selected)
	assert.True(t, item.Disabled)

	c.MarkSelected("a-p1", false)
	assert.False(t, item.Selected)
}
