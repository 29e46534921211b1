package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testPlans() []order.PaymentPlan {
	return []order.PaymentPlan{
		{ID: "pl-12", Name: "12 Months", TotalNumberOfMonthlyPayments: 12, InterestRate: d(12)},
		{ID: "pl-otp", Name: "Pay In Full", Type: order.PlanOnetime},
		{ID: "pl-6", Name: "6 Months", TotalNumberOfMonthlyPayments: 6},
		{ID: "pl-annual", Name: "Annual Storage", Type: order.PlanAnnual, TotalNumberOfMonthlyPayments: 12},
	}
}

func orderWithTotals(final, dueAtCheckout float64) *order.Order {
	return &order.Order{
		Totals: order.Totals{
			FinalPrice:    d(final),
			DueAtCheckout: d(dueAtCheckout),
		},
	}
}

func TestNewEngineOrdersOnetimeFirst(t *testing.T) {
	e := NewEngine(testPlans())
	opts := e.Options()
	require.Len(t, opts, 4)
	assert.Equal(t, order.PlanOnetime, opts[0].Type)
	assert.EqualValues(t, 6, opts[1].TotalNumberOfMonthlyPayments)
}

func TestRecomputeOnetime(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1500, 300)

	e.Recompute(o, nil)

	pp, ok := e.FindByType(order.PlanOnetime)
	require.True(t, ok)
	assert.True(t, pp.FirstPayment.Equal(d(1200)))
	assert.True(t, pp.MonthlyPaymentAmount.IsZero())
	assert.True(t, pp.TotalDueAtCheckout.Equal(d(300)))
	assert.True(t, pp.TotalAmountAfterInterest.Equal(d(1500)))
}

func TestRecomputeZeroInterestInstallment(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1200, 0)

	pp, ok := e.Find("pl-6")
	require.True(t, ok)
	pp.AdditionalAmountOnFirstPayment = d(200)

	e.Recompute(o, nil)

	// (1200 - 200) / 6 monthly, first payment carries the extra 200.
	assert.True(t, pp.MonthlyPaymentAmount.Round(2).Equal(d(166.67)), "got %s", pp.MonthlyPaymentAmount)
	assert.True(t, pp.FirstPayment.Round(2).Equal(d(366.67)))
	assert.True(t, pp.TotalFees.IsZero())
}

func TestRecomputeInterestInstallment(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1200, 0)

	e.Recompute(o, nil)

	pp, ok := e.Find("pl-12")
	require.True(t, ok)
	monthly, _ := pp.MonthlyPaymentAmount.Round(2).Float64()
	assert.InDelta(t, 106.62, monthly, 0.01)
	assert.True(t, pp.TotalFees.IsPositive())
	assert.True(t, pp.TotalAmountAfterInterest.GreaterThan(d(1200)))
}

func TestRecomputeAnnualUsesStorageFamilyAndRate(t *testing.T) {
	e := NewEngine(testPlans())

	o := &order.Order{IncludesAnnualStorage: true}
	b := order.OrderedBundle{
		ID: "b1", Name: "Annual", Type: order.BundleSingleProduct, StorageType: order.StorageASP,
		ListPrice: d(500),
		BundledProducts: []order.OrderedProduct{
			{ID: "p1", Name: "Collection", Family: order.FamilyProduct, StartingQuantityInBundle: 1,
				ListPrice: d(300), IsBiobankingProduct: true, EligibleForVolumeDiscounts: true},
			{ID: "p2", Name: "Storage Year", Family: order.FamilyStorage, StartingQuantityInBundle: 1,
				ListPrice: d(175)},
		},
	}
	b.ScaleToQuantity(2)
	o.AddBundle(b)
	o.Totals = order.Totals{FinalPrice: d(1000), DueAtCheckout: d(600)}

	rates := &discount.RateTable{Records: []discount.Rate{
		{ID: "r1", Type: discount.MultiAnnualStorageType, ServicesCount: 2, Amount: d(50)},
	}}
	e.Recompute(o, rates)

	pp, ok := e.FindByType(order.PlanAnnual)
	require.True(t, ok)
	// Yearly amount: storage list at quantity (175 x 2) less the rate row.
	assert.True(t, pp.MonthlyPaymentAmount.Equal(d(300)), "got %s", pp.MonthlyPaymentAmount)
	assert.True(t, pp.FirstPayment.Equal(d(400)))
}

func TestSelectAnnualWithoutASPRejected(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1000, 0)
	o.SetPaymentPlan(order.PaymentPlan{ID: "pl-6"})
	o.PaymentPlanSelected = "pl-6"

	err := e.Select(o, "pl-annual")
	require.ErrorIs(t, err, ErrAnnualPlanRequiresASP)
	assert.Equal(t, "pl-6", o.PaymentPlanSelected, "rejection leaves prior selection untouched")
}

func TestSelectNonAnnualOnASPOrderRejected(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1000, 0)
	o.IncludesAnnualStorage = true

	err := e.Select(o, "pl-6")
	assert.ErrorIs(t, err, ErrASPRequiresAnnualPlan)

	err = e.Select(o, "pl-annual")
	require.NoError(t, err)
	assert.Equal(t, "pl-annual", o.PaymentPlanSelected)
}

func TestSelectUnknownPlan(t *testing.T) {
	e := NewEngine(testPlans())
	err := e.Select(orderWithTotals(0, 0), "pl-nope")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestSelectAnnualDisablesOthers(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1000, 0)
	o.IncludesAnnualStorage = true

	require.NoError(t, e.SelectAnnual(o))
	for _, pp := range e.Options() {
		if pp.Type == order.PlanAnnual {
			assert.True(t, pp.Selected)
			assert.False(t, pp.Disabled)
		} else {
			assert.True(t, pp.Disabled)
		}
	}
}

func TestInvalidateClearsSelectionAndReenables(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1000, 0)
	o.IncludesAnnualStorage = true
	require.NoError(t, e.SelectAnnual(o))

	o.IncludesAnnualStorage = false
	e.Invalidate(o)

	assert.Empty(t, o.PaymentPlanSelected)
	for _, pp := range e.Options() {
		assert.False(t, pp.Selected)
		assert.False(t, pp.Disabled)
	}
}

func TestSetAdditionalFirstPayment(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1200, 0)
	require.NoError(t, e.Select(o, "pl-6"))

	require.NoError(t, e.SetAdditionalFirstPayment(o, d(100)))
	assert.True(t, o.PaymentPlan.AdditionalAmountOnFirstPayment.Equal(d(100)))
}

func TestSetAdditionalFirstPaymentRejectedOnOnetime(t *testing.T) {
	e := NewEngine(testPlans())
	o := orderWithTotals(1200, 0)
	require.NoError(t, e.Select(o, "pl-otp"))

	err := e.SetAdditionalFirstPayment(o, d(100))
	require.ErrorIs(t, err, ErrUpfrontNotAllowed)
	assert.True(t, o.PaymentPlan.AdditionalAmountOnFirstPayment.IsZero())
	for _, pp := range e.Options() {
		assert.True(t, pp.AdditionalAmountOnFirstPayment.IsZero())
	}
}
