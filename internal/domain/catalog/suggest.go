package catalog

import (
	"strings"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

// Suggestion is one upsell candidate presented to the operator.
type Suggestion struct {
	Label      string `json:"label"`
	SelectorID string `json:"value"`
}

// SuggestBundles returns the available multi-product bundles whose
// contents are a superset of the given products. Product identity is by
// name; shipping and add-on lines are the caller's job to exclude. An
// empty product list suggests nothing.
func SuggestBundles(availableBundles []order.OrderedBundle, products []order.OrderedProduct) []order.OrderedBundle {
	if len(products) == 0 {
		return nil
	}

	var suggested []order.OrderedBundle
	for _, b := range availableBundles {
		inBundle := make(map[string]bool, len(b.BundledProducts))
		for _, p := range b.BundledProducts {
			inBundle[p.Name] = true
		}

		containsAll := true
		for _, p := range products {
			if !inBundle[p.Name] {
				containsAll = false
				break
			}
		}
		if containsAll {
			suggested = append(suggested, b)
		}
	}
	return suggested
}

// SuggestionOptions renders suggested bundles as prompt options: an
// uppercased bundle name plus a summary of its main products.
func SuggestionOptions(bundles []order.OrderedBundle) []Suggestion {
	out := make([]Suggestion, 0, len(bundles))
	for _, b := range bundles {
		var summary []string
		for _, p := range b.BundledProducts {
			if p.Family == order.FamilyProduct {
				summary = append(summary, p.Name)
			}
		}
		out = append(out, Suggestion{
			Label:      strings.ToUpper(b.Name) + ": " + strings.Join(summary, ", "),
			SelectorID: b.SelectorID,
		})
	}
	return out
}
