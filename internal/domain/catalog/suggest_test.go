package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

func namedBundle(selectorID, name string, productNames ...string) order.OrderedBundle {
	b := order.OrderedBundle{SelectorID: selectorID, Name: name, Type: order.BundleMultiProduct}
	for _, n := range productNames {
		b.BundledProducts = append(b.BundledProducts, order.OrderedProduct{Name: n, Family: order.FamilyProduct})
	}
	return b
}

func namedProducts(names ...string) []order.OrderedProduct {
	out := make([]order.OrderedProduct, 0, len(names))
	for _, n := range names {
		out = append(out, order.OrderedProduct{Name: n})
	}
	return out
}

func TestSuggestBundles(t *testing.T) {
	available := []order.OrderedBundle{
		namedBundle("a-b1", "Family Pack", "Cord Blood", "Cord Tissue"),
		namedBundle("a-b2", "Complete Pack", "Cord Blood", "Cord Tissue", "Placenta"),
		namedBundle("a-b3", "Tissue Pack", "Cord Tissue"),
	}

	tests := []struct {
		name     string
		products []order.OrderedProduct
		want     []string
	}{
		{
			name:     "single product matches every superset",
			products: namedProducts("Cord Blood"),
			want:     []string{"a-b1", "a-b2"},
		},
		{
			name:     "pair narrows the candidates",
			products: namedProducts("Cord Blood", "Cord Tissue"),
			want:     []string{"a-b1", "a-b2"},
		},
		{
			name:     "full set matches only the complete pack",
			products: namedProducts("Cord Blood", "Cord Tissue", "Placenta"),
			want:     []string{"a-b2"},
		},
		{
			name:     "unknown product matches nothing",
			products: namedProducts("Cord Blood", "Embryo"),
			want:     nil,
		},
		{
			name:     "empty cart suggests nothing",
			products: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestBundles(available, tt.products)
			var ids []string
			for _, b := range got {
				ids = append(ids, b.SelectorID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSuggestionOptions(t *testing.T) {
	b := namedBundle("a-b1", "Family Pack", "Cord Blood", "Cord Tissue")
	b.BundledProducts = append(b.BundledProducts, order.OrderedProduct{Name: "Courier", Family: order.FamilyShipping})

	opts := SuggestionOptions([]order.OrderedBundle{b})
	require.Len(t, opts, 1)
	assert.Equal(t, "FAMILY PACK: Cord Blood, Cord Tissue", opts[0].Label)
	assert.Equal(t, "a-b1", opts[0].SelectorID)
}
