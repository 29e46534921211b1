package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemvault/orderbuilder/internal/domain/discount"
)

const getBiobankingRatesSQL = `SELECT id, name, rate_type, services_count, storage_type, amount, method
	FROM biobanking_rates ORDER BY services_count`

var _ discount.RateSource = (*RateRepository)(nil)

// RateRepository loads the volume-discount rate table from PostgreSQL.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository returns a RateRepository that uses the given pool.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// BiobankingRates returns the full rate table. Lookups are exact-count,
// so the whole table loads once per session.
func (r *RateRepository) BiobankingRates(ctx context.Context) (*discount.RateTable, error) {
	rows, err := r.pool.Query(ctx, getBiobankingRatesSQL)
	if err != nil {
		return nil, fmt.Errorf("loading biobanking rates: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.Rate, error) {
		var rec discount.Rate
		err := row.Scan(&rec.ID, &rec.Name, &rec.Type, &rec.ServicesCount,
			&rec.ApplicableStorageType, &rec.Amount, &rec.Method)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning biobanking rates: %w", err)
	}
	return &discount.RateTable{Records: records}, nil
}
