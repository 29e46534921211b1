// Package payment recomputes every payment plan option against the
// current order totals and enforces the annual-storage compatibility
// rules around plan selection.
package payment

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
	"github.com/stemvault/orderbuilder/internal/domain/pricing"
)

var (
	// ErrAnnualPlanRequiresASP rejects selecting the annual plan when the
	// order holds no annual-storage bundles.
	ErrAnnualPlanRequiresASP = errors.New("annual storage payment plan requires annual storage bundles")
	// ErrASPRequiresAnnualPlan rejects any non-annual plan while the
	// order is flagged as annual storage.
	ErrASPRequiresAnnualPlan = errors.New("annual storage orders may only use the annual payment plan")
	// ErrUpfrontNotAllowed rejects an additional first-payment amount on
	// one-time and annual plans.
	ErrUpfrontNotAllowed = errors.New("additional first payment amount is not allowed for this plan")
	// ErrUnknownPlan indicates a plan id outside the loaded options.
	ErrUnknownPlan = errors.New("unknown payment plan")
)

// PlanSource loads the available payment plan options.
type PlanSource interface {
	AvailablePaymentOptions(ctx context.Context) ([]order.PaymentPlan, error)
}

// Engine recomputes plan economics for a fixed set of options. It holds
// no order state; options are mutated in place so the presentation layer
// always sees current numbers.
type Engine struct {
	options []order.PaymentPlan
}

// NewEngine sorts the options into display order (one-time plan first,
// then ascending payment count) and returns an engine over them.
func NewEngine(options []order.PaymentPlan) *Engine {
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].TotalNumberOfMonthlyPayments < options[j].TotalNumberOfMonthlyPayments
	})
	for i, p := range options {
		if p.Type == order.PlanOnetime && i > 0 {
			otp := options[i]
			copy(options[1:i+1], options[:i])
			options[0] = otp
			break
		}
	}
	return &Engine{options: options}
}

// Options exposes the plan options with their current derived amounts.
func (e *Engine) Options() []order.PaymentPlan {
	return e.options
}

// Find returns the option with the given id.
func (e *Engine) Find(planID string) (*order.PaymentPlan, bool) {
	for i := range e.options {
		if e.options[i].ID == planID {
			return &e.options[i], true
		}
	}
	return nil, false
}

// FindByType returns the first option of the given plan type.
func (e *Engine) FindByType(t order.PlanType) (*order.PaymentPlan, bool) {
	for i := range e.options {
		if e.options[i].Type == t {
			return &e.options[i], true
		}
	}
	return nil, false
}

// Recompute refreshes every option's derived amounts from the order's
// totals, then syncs the selected plan snapshot on the order.
//
//   - Onetime: first payment is the full balance after checkout-due items.
//   - Annual: yearly amount is the list price of storage-family products in
//     ASP bundles, reduced by the Multi-Annual Storage rate when the ASP
//     unit count matches a row exactly.
//   - Installment with interest: fixed-payment amortization of the balance.
//   - Installment without interest: straight division of the balance less
//     any additional first-payment amount.
func (e *Engine) Recompute(o *order.Order, rates *discount.RateTable) {
	toFinance := o.Totals.FinalPrice.Sub(o.Totals.DueAtCheckout)

	for i := range e.options {
		pp := &e.options[i]
		pp.TotalDueAtCheckout = o.Totals.DueAtCheckout

		switch pp.Type {
		case order.PlanOnetime:
			pp.AdditionalAmountOnFirstPayment = decimal.Zero
			pp.FirstPayment = toFinance
			pp.MonthlyPaymentAmount = decimal.Zero
			pp.TotalFees = decimal.Zero

		case order.PlanAnnual:
			pp.AdditionalAmountOnFirstPayment = decimal.Zero
			pp.FirstPayment = toFinance
			pp.MonthlyPaymentAmount = annualStorageAmount(o, rates)
			pp.TotalFees = decimal.Zero

		default:
			if pp.InterestRate.IsPositive() {
				principal := toFinance.Sub(pp.AdditionalAmountOnFirstPayment)
				a := pricing.Amortize(principal, pp.InterestRate, pp.TotalNumberOfMonthlyPayments)
				pp.TotalFees = a.TotalInterest
				pp.MonthlyPaymentAmount = a.Monthly
				pp.FirstPayment = a.Monthly.Add(pp.AdditionalAmountOnFirstPayment)
			} else {
				remainder := toFinance.Sub(pp.AdditionalAmountOnFirstPayment)
				monthly := decimal.Zero
				if pp.TotalNumberOfMonthlyPayments > 0 {
					monthly = remainder.Div(decimal.NewFromInt(pp.TotalNumberOfMonthlyPayments))
				}
				pp.TotalFees = decimal.Zero
				pp.MonthlyPaymentAmount = monthly
				pp.FirstPayment = monthly.Add(pp.AdditionalAmountOnFirstPayment)
			}
		}

		pp.TotalAmountBeforeInterest = o.Totals.FinalPrice
		pp.TotalAmountAfterInterest = o.Totals.FinalPrice.Add(pp.TotalFees)

		if pp.ID == o.PaymentPlan.ID {
			o.PaymentPlan = *pp
		}
	}
}

// Select validates and applies a plan choice. On rejection the previous
// selection is untouched.
func (e *Engine) Select(o *order.Order, planID string) error {
	pp, ok := e.Find(planID)
	if !ok {
		return ErrUnknownPlan
	}
	if pp.Type == order.PlanAnnual && !o.IncludesAnnualStorage {
		return ErrAnnualPlanRequiresASP
	}
	if pp.Type != order.PlanAnnual && o.IncludesAnnualStorage {
		return ErrASPRequiresAnnualPlan
	}

	for i := range e.options {
		e.options[i].Selected = e.options[i].ID == planID
	}
	o.SetPaymentPlan(*pp)
	return nil
}

// SelectAnnual marks every non-annual option disabled and selects the
// annual plan; invoked when the first ASP bundle enters the cart.
func (e *Engine) SelectAnnual(o *order.Order) error {
	annual, ok := e.FindByType(order.PlanAnnual)
	if !ok {
		return ErrUnknownPlan
	}
	if err := e.Select(o, annual.ID); err != nil {
		return err
	}
	for i := range e.options {
		e.options[i].Disabled = e.options[i].ID != annual.ID
	}
	return nil
}

// Invalidate clears the plan selection and re-enables every option;
// invoked when the last ASP bundle leaves the cart or the cart clears.
func (e *Engine) Invalidate(o *order.Order) {
	o.ClearPaymentPlan()
	for i := range e.options {
		e.options[i].Selected = false
		e.options[i].Disabled = false
	}
}

// SetAdditionalFirstPayment applies an extra first-payment amount to all
// options and the current plan. One-time and annual plans reject it and
// force the amount back to zero.
func (e *Engine) SetAdditionalFirstPayment(o *order.Order, amount decimal.Decimal) error {
	if o.PaymentPlan.Type == order.PlanAnnual || o.PaymentPlan.Type == order.PlanOnetime {
		for i := range e.options {
			e.options[i].AdditionalAmountOnFirstPayment = decimal.Zero
		}
		o.PaymentPlan.AdditionalAmountOnFirstPayment = decimal.Zero
		return ErrUpfrontNotAllowed
	}
	for i := range e.options {
		e.options[i].AdditionalAmountOnFirstPayment = amount
	}
	o.PaymentPlan.AdditionalAmountOnFirstPayment = amount
	o.Totals.Stale = true
	return nil
}

// annualStorageAmount sums the list prices of storage-family products in
// ASP bundles, minus the Multi-Annual Storage reduction when the total
// ASP biobanking unit count matches a rate row.
func annualStorageAmount(o *order.Order, rates *discount.RateTable) decimal.Decimal {
	base := decimal.Zero
	for _, b := range o.BundlesOrdered {
		if b.StorageType != order.StorageASP {
			continue
		}
		for _, p := range b.BundledProducts {
			if p.Family == order.FamilyStorage {
				base = base.Add(p.ListPriceAtQuantity)
			}
		}
	}

	if rates != nil {
		if rate, ok := rates.FindMultiAnnual(discount.ASPBiobankingUnitCount(o)); ok {
			return base.Sub(rate.Amount)
		}
	}
	return base
}
