package catalog

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/stemvault/orderbuilder/internal/domain/order"
)

const (
	codeFilterCapacity = 10_000
	codeFilterFPR      = 0.001
)

// CodeTable maps marketing codes (case-insensitive) to discount
// templates. A bloom filter answers the common case, a mistyped code,
// without touching the map.
type CodeTable struct {
	byCode map[string]order.OrderedDiscount
	filter *bloom.BloomFilter
}

// NewCodeTable returns an empty table.
func NewCodeTable() *CodeTable {
	return &CodeTable{
		byCode: make(map[string]order.OrderedDiscount),
		filter: bloom.NewWithEstimates(codeFilterCapacity, codeFilterFPR),
	}
}

// Add registers a discount template under its marketing code.
func (t *CodeTable) Add(d order.OrderedDiscount) {
	code := strings.ToLower(d.MarketingCode)
	if code == "" {
		return
	}
	t.byCode[code] = d
	t.filter.AddString(code)
}

// Lookup returns a clone of the template for the given code, or false
// when the code is unknown.
func (t *CodeTable) Lookup(code string) (order.OrderedDiscount, bool) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" || !t.filter.TestString(normalized) {
		return order.OrderedDiscount{}, false
	}
	d, ok := t.byCode[normalized]
	if !ok {
		return order.OrderedDiscount{}, false
	}
	return d.Clone(), true
}

// Len reports how many codes are registered.
func (t *CodeTable) Len() int {
	return len(t.byCode)
}
