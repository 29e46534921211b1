// Package order defines the cart aggregate: ordered products, bundles,
// discounts, the selected payment plan, and the derived totals. Totals are
// never a source of truth; they are recomputed from the collections after
// every mutation.
package order

import (
	"github.com/shopspring/decimal"
)

// StorageType classifies the storage commitment a bundle sells.
type StorageType string

const (
	StorageNone     StorageType = ""
	StorageASP      StorageType = "ASP"
	Storage20Year   StorageType = "20YPP"
	StorageLifetime StorageType = "Lifetime"
)

// BundleType distinguishes single-product wrappers from multi-product packages.
type BundleType string

const (
	BundleSingleProduct BundleType = "Single-Product"
	BundleMultiProduct  BundleType = "Multi-Product"
)

// DiscountType scopes a discount to a line item or to the whole order.
type DiscountType string

const (
	DiscountBundleSpecific  DiscountType = "Bundle Specific"
	DiscountProductSpecific DiscountType = "Product Specific"
	DiscountWholeOrder      DiscountType = "Whole Order"
	DiscountSales           DiscountType = "Sales"
	DiscountMultiBiobanking DiscountType = "Multi-Biobanking Pkg"
)

// DiscountMethod selects dollar or fractional-percentage application.
type DiscountMethod string

const (
	MethodAmount     DiscountMethod = "Amount"
	MethodPercentage DiscountMethod = "Percentage"
)

// PlanType enumerates payment plan families. Installment plans carry no
// dedicated constant; anything that is not one-time or annual amortizes
// over TotalNumberOfMonthlyPayments.
type PlanType string

const (
	PlanOnetime PlanType = "Onetime"
	PlanAnnual  PlanType = "Annual"
)

// ContextType names the CRM record an order hangs off.
type ContextType string

const (
	ContextOpportunity ContextType = "Opportunity"
	ContextInvoice     ContextType = "Invoice"
)

// Product families with special handling in suggestion matching and
// upfront accumulation.
const (
	FamilyProduct  = "Product"
	FamilyStorage  = "Storage"
	FamilyShipping = "Shipping"
	FamilyAddOn    = "Add-on"
)

// RelationshipRequiredAddOn marks a related product that must enter the
// cart alongside its parent.
const RelationshipRequiredAddOn = "Required Add-On"

// RelatedProduct links a product to another catalog product.
type RelatedProduct struct {
	ID               string `json:"id"`
	SelectorID       string `json:"selectorId"`
	Name             string `json:"name"`
	RelationshipType string `json:"relationshipType"`
}

// OrderedProduct is a product line item, either a-la-carte or scaled
// inside a bundle.
type OrderedProduct struct {
	ID                         string           `json:"id"`
	SelectorID                 string           `json:"selectorId"`
	Name                       string           `json:"name"`
	Family                     string           `json:"family"`
	Quantity                   int64            `json:"quantity"`
	StartingQuantityInBundle   int64            `json:"startingQuantityInBundle,omitempty"`
	ListPrice                  decimal.Decimal  `json:"listPrice"`
	ListPriceAtQuantity        decimal.Decimal  `json:"listPriceAtQuantity"`
	FinalPrice                 decimal.Decimal  `json:"finalPrice"`
	CombinedDiscounts          decimal.Decimal  `json:"combinedDiscounts"`
	ExemptFromDiscount         bool             `json:"exemptFromDiscount"`
	IsDueAtCheckout            bool             `json:"isDueAtCheckout"`
	UpfrontAmount              decimal.Decimal  `json:"upfrontAmount"`
	IsBiobankingProduct        bool             `json:"isBiobankingProduct"`
	EligibleForVolumeDiscounts bool             `json:"eligibleForVolumeDiscounts"`
	RelatedProducts            []RelatedProduct `json:"relatedProducts,omitempty"`

	OpportunityID         string `json:"opportunityId,omitempty"`
	InvoiceID             string `json:"invoiceId,omitempty"`
	OpportunityLineItemID string `json:"opportunityLineItemId,omitempty"`
	InvoiceLineItemID     string `json:"invoiceLineItemId,omitempty"`
	AppliedBundleID       string `json:"appliedBundleId,omitempty"`
}

// OrderedBundle is a bundle line item with its contained products scaled
// by the bundle quantity.
type OrderedBundle struct {
	ID                          string           `json:"id"`
	SelectorID                  string           `json:"selectorId"`
	Name                        string           `json:"name"`
	Type                        BundleType       `json:"type"`
	StorageType                 StorageType      `json:"storageType"`
	Quantity                    int64            `json:"quantity"`
	ListPrice                   decimal.Decimal  `json:"listPrice"`
	ListPriceAtQuantity         decimal.Decimal  `json:"listPriceAtQuantity"`
	BundleSavings               decimal.Decimal  `json:"bundleSavings"`
	BundleSavingsAtQuantity     decimal.Decimal  `json:"bundleSavingsAtQuantity"`
	BundleMembersListPriceTotal decimal.Decimal  `json:"bundleMembersListPriceTotal"`
	FinalPrice                  decimal.Decimal  `json:"finalPrice"`
	CombinedDiscounts           decimal.Decimal  `json:"combinedDiscounts"`
	BundledProducts             []OrderedProduct `json:"bundledProducts"`
	Expanded                    bool             `json:"expanded"`

	OpportunityID   string `json:"opportunityId,omitempty"`
	InvoiceID       string `json:"invoiceId,omitempty"`
	AppliedBundleID string `json:"appliedBundleId,omitempty"`
}

// OrderedDiscount is a discount line. SystemApplied discounts are owned by
// the discount engine's reconciliation and cannot be removed by users.
type OrderedDiscount struct {
	ID            string          `json:"id"`
	SelectorID    string          `json:"selectorId"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Type          DiscountType    `json:"type"`
	Method        DiscountMethod  `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    decimal.Decimal `json:"percentage"`
	BundleID      string          `json:"bundleId,omitempty"`
	ProductID     string          `json:"productId,omitempty"`
	MarketingCode string          `json:"marketingCode,omitempty"`
	SystemApplied bool            `json:"systemApplied"`

	OpportunityID     string `json:"opportunityId,omitempty"`
	InvoiceID         string `json:"invoiceId,omitempty"`
	AppliedDiscountID string `json:"appliedDiscountId,omitempty"`
}

// PaymentPlan describes one payment option with its derived per-order
// amounts. The derived fields are recomputed by the payment engine on
// every totals change.
type PaymentPlan struct {
	ID                             string          `json:"id"`
	Name                           string          `json:"name"`
	Type                           PlanType        `json:"type"`
	TotalNumberOfMonthlyPayments   int64           `json:"totalNumberOfMonthlyPayments"`
	InterestRate                   decimal.Decimal `json:"interestRate"`
	AdditionalAmountOnFirstPayment decimal.Decimal `json:"additionalAmountOnFirstPayment"`

	MonthlyPaymentAmount      decimal.Decimal `json:"monthlyPaymentAmount"`
	FirstPayment              decimal.Decimal `json:"firstPayment"`
	TotalFees                 decimal.Decimal `json:"totalFees"`
	TotalDueAtCheckout        decimal.Decimal `json:"totalDueAtCheckout"`
	TotalAmountBeforeInterest decimal.Decimal `json:"totalAmountBeforeInterest"`
	TotalAmountAfterInterest  decimal.Decimal `json:"totalAmountAfterInterest"`

	Selected bool `json:"selected"`
	Disabled bool `json:"disabled"`
}

// Totals carries the derived order-level sums. Stale is set by every
// mutator and cleared by the recompute phase.
type Totals struct {
	ListPrice                decimal.Decimal `json:"totalListPrice"`
	ListPriceDiscountable    decimal.Decimal `json:"totalListPriceDiscountableProducts"`
	ListPriceNonDiscountable decimal.Decimal `json:"totalListPriceNonDiscountableProducts"`
	BundleSavings            decimal.Decimal `json:"totalBundleSavings"`
	Discount                 decimal.Decimal `json:"totalDiscount"`
	FinalPrice               decimal.Decimal `json:"finalPrice"`
	DueAtCheckout            decimal.Decimal `json:"totalDueAtCheckout"`
	Stale                    bool            `json:"-"`
}

// Order is the aggregate root for one cart session.
type Order struct {
	ID               string      `json:"id"`
	Context          ContextType `json:"orderContext"`
	OpportunityID    string      `json:"opportunityId,omitempty"`
	InvoiceID        string      `json:"invoiceId,omitempty"`
	OpportunityStage string      `json:"opportunityStage,omitempty"`

	ProductsOrdered  []OrderedProduct  `json:"productsOrdered"`
	BundlesOrdered   []OrderedBundle   `json:"bundlesOrdered"`
	DiscountsOrdered []OrderedDiscount `json:"discountsOrdered"`

	PaymentPlanSelected string      `json:"paymentPlanSelected,omitempty"`
	PaymentPlan         PaymentPlan `json:"paymentPlan"`

	IncludesAnnualStorage bool   `json:"orderIncludesAnnualStoragePlanSelections"`
	Totals                Totals `json:"totals"`
}
