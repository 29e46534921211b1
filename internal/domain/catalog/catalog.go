// Package catalog models the searchable items an operator can add to an
// order, the marketing-code lookup table, and the bundle-suggestion
// selection algorithm.
package catalog

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

// ItemType tags what a catalog entry wraps.
type ItemType string

const (
	ItemProduct  ItemType = "Product"
	ItemBundle   ItemType = "Bundle"
	ItemDiscount ItemType = "Discount"
)

// ErrItemNotFound is returned when a selector id matches no catalog entry.
var ErrItemNotFound = errors.New("catalog item not found")

// Item is one selectable entry. Exactly one of Product, Bundle, Discount
// is set according to Type. Entries are read-only templates: additions to
// an order always clone.
type Item struct {
	ID         string   `json:"id"`
	SelectorID string   `json:"selectorId"`
	Name       string   `json:"name"`
	Type       ItemType `json:"type"`
	Quantity   int64    `json:"quantity"`

	Product  *order.OrderedProduct  `json:"product,omitempty"`
	Bundle   *order.OrderedBundle   `json:"bundle,omitempty"`
	Discount *order.OrderedDiscount `json:"discount,omitempty"`

	Selected bool `json:"selected"`
	Disabled bool `json:"disabled"`
}

// Source loads the searchable catalog for a CRM record.
type Source interface {
	SearchableItems(ctx context.Context, recordID string) ([]Item, error)
}

// Catalog indexes items by selector id and splits marketing-code
// discounts out into the code table, mirroring how the selection surface
// presents a single "enter a code" entry instead of listing each code.
type Catalog struct {
	items []Item
	byID  map[string]*Item
	codes *CodeTable
}

// New builds a catalog from loaded items. Discount entries carrying a
// marketing code move into the code table and are not directly
// selectable.
func New(items []Item) *Catalog {
	c := &Catalog{
		byID:  make(map[string]*Item, len(items)),
		codes: NewCodeTable(),
	}
	for _, item := range items {
		if item.SelectorID == "" {
			item.SelectorID = order.SelectorID(item.ID)
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		normalizeSelectorIDs(&item)

		if item.Type == ItemDiscount && item.Discount != nil && item.Discount.MarketingCode != "" {
			c.codes.Add(*item.Discount)
			continue
		}
		c.items = append(c.items, item)
	}
	for i := range c.items {
		c.byID[c.items[i].SelectorID] = &c.items[i]
	}
	return c
}

// Items returns all selectable entries.
func (c *Catalog) Items() []Item {
	return c.items
}

// Find returns the entry for a selector id.
func (c *Catalog) Find(selectorID string) (*Item, error) {
	item, ok := c.byID[selectorID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// Codes exposes the marketing-code table.
func (c *Catalog) Codes() *CodeTable {
	return c.codes
}

// MultiProductBundles returns the bundle templates eligible as upsell
// suggestions.
func (c *Catalog) MultiProductBundles() []order.OrderedBundle {
	var out []order.OrderedBundle
	for _, item := range c.items {
		if item.Type == ItemBundle && item.Bundle != nil && item.Bundle.Type == order.BundleMultiProduct {
			b := item.Bundle.Clone()
			b.SelectorID = item.SelectorID
			out = append(out, b)
		}
	}
	return out
}

// MarkSelected flags an entry as in the cart so the presentation layer
// can disable it.
func (c *Catalog) MarkSelected(selectorID string, selected bool) {
	if item, ok := c.byID[selectorID]; ok {
		item.Selected = selected
		item.Disabled = selected
	}
}

func normalizeSelectorIDs(item *Item) {
	switch {
	case item.Product != nil:
		item.Product.SelectorID = item.SelectorID
		for i := range item.Product.RelatedProducts {
			r := &item.Product.RelatedProducts[i]
			r.SelectorID = order.SelectorID(r.ID)
		}
	case item.Bundle != nil:
		item.Bundle.SelectorID = item.SelectorID
		for i := range item.Bundle.BundledProducts {
			p := &item.Bundle.BundledProducts[i]
			p.SelectorID = order.SelectorID(p.ID)
			for j := range p.RelatedProducts {
				r := &p.RelatedProducts[j]
				r.SelectorID = order.SelectorID(r.ID)
			}
		}
	case item.Discount != nil:
		item.Discount.SelectorID = item.SelectorID
	}
}
