package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemvault/orderbuilder/internal/domain/order"
	"github.com/stemvault/orderbuilder/internal/domain/payment"
)

const getActivePaymentPlansSQL = `SELECT id, name, plan_type, monthly_payments, interest_rate
	FROM payment_plans WHERE active ORDER BY monthly_payments`

var _ payment.PlanSource = (*PlanRepository)(nil)

// PlanRepository loads payment plan options from PostgreSQL.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository returns a PlanRepository that uses the given pool.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// AvailablePaymentOptions returns every active plan.
func (r *PlanRepository) AvailablePaymentOptions(ctx context.Context) ([]order.PaymentPlan, error) {
	rows, err := r.pool.Query(ctx, getActivePaymentPlansSQL)
	if err != nil {
		return nil, fmt.Errorf("loading payment plans: %w", err)
	}

	plans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.PaymentPlan, error) {
		var p order.PaymentPlan
		err := row.Scan(&p.ID, &p.Name, &p.Type, &p.TotalNumberOfMonthlyPayments, &p.InterestRate)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning payment plans: %w", err)
	}
	return plans, nil
}
