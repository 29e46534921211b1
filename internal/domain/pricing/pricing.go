// Package pricing holds the stateless numeric routines shared by the
// discount and payment engines. All monetary values are decimals; callers
// own rounding policy.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// ApplyAmountDiscount subtracts a per-unit dollar discount at the given
// quantity from base. The result is not clamped at zero: a line may go
// negative when the discount exceeds its price.
func ApplyAmountDiscount(base, discountAmount decimal.Decimal, quantity int64) decimal.Decimal {
	return base.Sub(discountAmount.Mul(decimal.NewFromInt(quantity)))
}

// PercentageDiscountAmount converts a fractional percentage (0.10 = 10%)
// into a dollar amount against the given list price. Validation of the
// fraction range happens at discount entry, not here.
func PercentageDiscountAmount(listPrice, percentage decimal.Decimal) decimal.Decimal {
	return listPrice.Mul(percentage)
}

// Amortization holds the result of a fixed-payment amortization schedule.
type Amortization struct {
	Monthly           decimal.Decimal
	TotalInterest     decimal.Decimal
	TotalWithInterest decimal.Decimal
}

// Amortize computes the standard fixed monthly payment for a principal
// financed at an annual percentage rate over numPayments months:
//
//	i = (rate/100)/12
//	x = (1+i)^numPayments
//	monthly = principal * x * i / (x - 1)
//
// A single payment or a non-positive rate yields a zero-value schedule;
// those plans carry no financing cost.
func Amortize(principal, annualRatePercent decimal.Decimal, numPayments int64) Amortization {
	if numPayments <= 1 || !annualRatePercent.IsPositive() {
		return Amortization{}
	}

	monthlyRate := annualRatePercent.Div(hundred).Div(twelve)
	x := one.Add(monthlyRate).Pow(decimal.NewFromInt(numPayments))

	monthly := principal.Mul(x).Mul(monthlyRate).Div(x.Sub(one))
	totalWithInterest := monthly.Mul(decimal.NewFromInt(numPayments))

	return Amortization{
		Monthly:           monthly,
		TotalInterest:     totalWithInterest.Sub(principal),
		TotalWithInterest: totalWithInterest,
	}
}
