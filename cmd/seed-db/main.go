// Command seed-db loads the catalog (products, bundles, discounts,
// payment plans, and biobanking rates) from a JSON file into PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stemvault/orderbuilder/internal/repository"
)

type catalogJSON struct {
	Products        []productJSON  `json:"products"`
	Bundles         []bundleJSON   `json:"bundles"`
	Discounts       []discountJSON `json:"discounts"`
	PaymentPlans    []planJSON     `json:"paymentPlans"`
	BiobankingRates []rateJSON     `json:"biobankingRates"`
}

type productJSON struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Family             string          `json:"family"`
	ListPrice          decimal.Decimal `json:"listPrice"`
	ExemptFromDiscount bool            `json:"exemptFromDiscount"`
	IsDueAtCheckout    bool            `json:"isDueAtCheckout"`
	UpfrontAmount      decimal.Decimal `json:"upfrontAmount"`
	IsBiobanking       bool            `json:"isBiobanking"`
	EligibleForVolume  bool            `json:"eligibleForVolume"`
	Searchable         *bool           `json:"searchable"`
	RequiredAddOns     []string        `json:"requiredAddOns"`
}

type bundleJSON struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	StorageType   string             `json:"storageType"`
	ListPrice     decimal.Decimal    `json:"listPrice"`
	BundleSavings decimal.Decimal    `json:"bundleSavings"`
	Products      []bundleMemberJSON `json:"products"`
}

type bundleMemberJSON struct {
	ProductID        string `json:"productId"`
	StartingQuantity int64  `json:"startingQuantity"`
}

type discountJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    decimal.Decimal `json:"percentage"`
	BundleID      string          `json:"bundleId"`
	ProductID     string          `json:"productId"`
	MarketingCode string          `json:"marketingCode"`
}

type planJSON struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	MonthlyPayments int64           `json:"monthlyPayments"`
	InterestRate    decimal.Decimal `json:"interestRate"`
}

type rateJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	ServicesCount int64           `json:"servicesCount"`
	StorageType   string          `json:"storageType"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, cat.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedBundles(ctx, pool, cat.Bundles); err != nil {
		return errors.Wrap(err, "seed bundles")
	}
	if err := seedDiscounts(ctx, pool, cat.Discounts); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedPlans(ctx, pool, cat.PaymentPlans); err != nil {
		return errors.Wrap(err, "seed payment plans")
	}
	if err := seedRates(ctx, pool, cat.BiobankingRates); err != nil {
		return errors.Wrap(err, "seed biobanking rates")
	}
	return nil
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, family, list_price, exempt_from_discount,
			is_due_at_checkout, upfront_amount, is_biobanking, eligible_for_volume, searchable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, family = EXCLUDED.family,
			list_price = EXCLUDED.list_price, exempt_from_discount = EXCLUDED.exempt_from_discount,
			is_due_at_checkout = EXCLUDED.is_due_at_checkout, upfront_amount = EXCLUDED.upfront_amount,
			is_biobanking = EXCLUDED.is_biobanking, eligible_for_volume = EXCLUDED.eligible_for_volume,
			searchable = EXCLUDED.searchable`

	upsertRelationSQL = `INSERT INTO product_relations (product_id, related_product_id, relationship_type)
		VALUES ($1, $2, 'Required Add-On')
		ON CONFLICT (product_id, related_product_id) DO UPDATE SET relationship_type = EXCLUDED.relationship_type`

	upsertBundleSQL = `INSERT INTO bundles (id, name, bundle_type, storage_type, list_price, bundle_savings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, bundle_type = EXCLUDED.bundle_type,
			storage_type = EXCLUDED.storage_type, list_price = EXCLUDED.list_price,
			bundle_savings = EXCLUDED.bundle_savings`

	upsertBundleProductSQL = `INSERT INTO bundle_products (bundle_id, product_id, starting_quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (bundle_id, product_id) DO UPDATE SET starting_quantity = EXCLUDED.starting_quantity`

	upsertDiscountSQL = `INSERT INTO discounts (id, name, description, discount_type, method,
			amount, percentage, bundle_id, product_id, marketing_code, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type, method = EXCLUDED.method,
			amount = EXCLUDED.amount, percentage = EXCLUDED.percentage,
			bundle_id = EXCLUDED.bundle_id, product_id = EXCLUDED.product_id,
			marketing_code = EXCLUDED.marketing_code, active = TRUE`

	upsertPlanSQL = `INSERT INTO payment_plans (id, name, plan_type, monthly_payments, interest_rate, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, plan_type = EXCLUDED.plan_type,
			monthly_payments = EXCLUDED.monthly_payments, interest_rate = EXCLUDED.interest_rate,
			active = TRUE`

	upsertRateSQL = `INSERT INTO biobanking_rates (id, name, rate_type, services_count, storage_type, amount, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, rate_type = EXCLUDED.rate_type,
			services_count = EXCLUDED.services_count, storage_type = EXCLUDED.storage_type,
			amount = EXCLUDED.amount, method = EXCLUDED.method`
)

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		searchable := true
		if p.Searchable != nil {
			searchable = *p.Searchable
		}
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Family, p.ListPrice, p.ExemptFromDiscount,
			p.IsDueAtCheckout, p.UpfrontAmount, p.IsBiobanking, p.EligibleForVolume, searchable,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	for _, p := range products {
		for _, addOn := range p.RequiredAddOns {
			if _, err := pool.Exec(ctx, upsertRelationSQL, p.ID, addOn); err != nil {
				return errors.Wrapf(err, "upsert relation %s -> %s", p.ID, addOn)
			}
		}
	}
	return nil
}

func seedBundles(ctx context.Context, pool *pgxpool.Pool, bundles []bundleJSON) error {
	slog.Info("upserting bundles", slog.Int("count", len(bundles)))

	for _, b := range bundles {
		if _, err := pool.Exec(ctx, upsertBundleSQL,
			b.ID, b.Name, b.Type, b.StorageType, b.ListPrice, b.BundleSavings,
		); err != nil {
			return errors.Wrapf(err, "upsert bundle %s", b.ID)
		}
		for _, m := range b.Products {
			qty := m.StartingQuantity
			if qty < 1 {
				qty = 1
			}
			if _, err := pool.Exec(ctx, upsertBundleProductSQL, b.ID, m.ProductID, qty); err != nil {
				return errors.Wrapf(err, "upsert bundle product %s/%s", b.ID, m.ProductID)
			}
		}
	}
	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool, discounts []discountJSON) error {
	slog.Info("upserting discounts", slog.Int("count", len(discounts)))

	for _, d := range discounts {
		if _, err := pool.Exec(ctx, upsertDiscountSQL,
			d.ID, d.Name, d.Description, d.Type, d.Method,
			d.Amount, d.Percentage, d.BundleID, d.ProductID, d.MarketingCode,
		); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.ID)
		}
	}
	return nil
}

func seedPlans(ctx context.Context, pool *pgxpool.Pool, plans []planJSON) error {
	slog.Info("upserting payment plans", slog.Int("count", len(plans)))

	for _, p := range plans {
		if _, err := pool.Exec(ctx, upsertPlanSQL,
			p.ID, p.Name, p.Type, p.MonthlyPayments, p.InterestRate,
		); err != nil {
			return errors.Wrapf(err, "upsert payment plan %s", p.ID)
		}
	}
	return nil
}

func seedRates(ctx context.Context, pool *pgxpool.Pool, rates []rateJSON) error {
	slog.Info("upserting biobanking rates", slog.Int("count", len(rates)))

	for _, r := range rates {
		method := r.Method
		if method == "" {
			method = "Amount"
		}
		if _, err := pool.Exec(ctx, upsertRateSQL,
			r.ID, r.Name, r.Type, r.ServicesCount, r.StorageType, r.Amount, method,
		); err != nil {
			return errors.Wrapf(err, "upsert biobanking rate %s", r.ID)
		}
	}
	return nil
}
