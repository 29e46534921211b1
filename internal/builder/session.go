// Package builder orchestrates cart mutations: every entry point funnels
// through a single-flight guard, validation, the in-memory model update,
// automatic discount reconciliation, a full recompute, and sequenced
// persistence calls.
package builder

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/stemvault/orderbuilder/internal/domain/catalog"
	"github.com/stemvault/orderbuilder/internal/domain/discount"
	"github.com/stemvault/orderbuilder/internal/domain/order"
	"github.com/stemvault/orderbuilder/internal/domain/payment"
	"golang.org/x/sync/errgroup"
)

// Prompter asks the operator whether to swap the pending selection for a
// suggested bundle. An empty selector id means the suggestion was
// declined and the original selection proceeds.
type Prompter interface {
	SuggestBundle(ctx context.Context, options []catalog.Suggestion) (string, error)
}

// declineAll is the prompter used when no interactive surface is wired.
type declineAll struct{}

func (declineAll) SuggestBundle(context.Context, []catalog.Suggestion) (string, error) {
	return "", nil
}

// Sources aggregates the read-side collaborators a session loads from.
type Sources struct {
	Store    order.Store
	Catalog  catalog.Source
	Plans    payment.PlanSource
	Rates    discount.RateSource
	Prompter Prompter
}

// Controller owns one cart session. A mutex serializes mutations: once a
// mutation begins, every other entry point is rejected until its full
// chain, including the persistence round trip, resolves.
type Controller struct {
	mu sync.Mutex

	order   *order.Order
	catalog *catalog.Catalog
	plans   *payment.Engine
	rates   *discount.RateTable

	store    order.Store
	prompter Prompter
	lg       *zap.Logger
}

// Load fetches the order, payment options, catalog, and rate table
// concurrently, joins them, and returns an initialized session.
func Load(ctx context.Context, lg *zap.Logger, recordID string, src Sources) (*Controller, error) {
	var (
		o     *order.Order
		plans []order.PaymentPlan
		items []catalog.Item
		rates *discount.RateTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if o, err = src.Store.Load(gctx, recordID); err != nil {
			return errors.Wrap(err, "load order")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if plans, err = src.Plans.AvailablePaymentOptions(gctx); err != nil {
			return errors.Wrap(err, "load payment options")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if items, err = src.Catalog.SearchableItems(gctx, recordID); err != nil {
			return errors.Wrap(err, "load catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if rates, err = src.Rates.BiobankingRates(gctx); err != nil {
			return errors.Wrap(err, "load biobanking rates")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prompter := src.Prompter
	if prompter == nil {
		prompter = declineAll{}
	}

	c := &Controller{
		order:    o,
		catalog:  catalog.New(items),
		plans:    payment.NewEngine(plans),
		rates:    rates,
		store:    src.Store,
		prompter: prompter,
		lg:       lg.Named("builder"),
	}
	c.initialize()
	return c, nil
}

// initialize restores selector ids and selection state from persisted
// data and brings totals current.
func (c *Controller) initialize() {
	o := c.order

	for i := range o.ProductsOrdered {
		p := &o.ProductsOrdered[i]
		p.SelectorID = order.SelectorID(p.ID)
		c.catalog.MarkSelected(p.SelectorID, true)
	}
	for i := range o.BundlesOrdered {
		b := &o.BundlesOrdered[i]
		b.SelectorID = order.SelectorID(b.ID)
		if b.StorageType == order.StorageASP {
			o.IncludesAnnualStorage = true
		}
		c.catalog.MarkSelected(b.SelectorID, true)
	}
	for i := range o.DiscountsOrdered {
		d := &o.DiscountsOrdered[i]
		d.SelectorID = order.SelectorID(d.ID)
		c.catalog.MarkSelected(d.SelectorID, true)
	}

	if o.PaymentPlanSelected != "" {
		if pp, ok := c.plans.Find(o.PaymentPlanSelected); ok {
			pp.Selected = true
			// Carry the persisted extra first-payment amount across the
			// restore; the recompute zeroes it for plans that reject it.
			pp.AdditionalAmountOnFirstPayment = o.PaymentPlan.AdditionalAmountOnFirstPayment
			o.PaymentPlan = *pp
		}
	} else {
		o.ClearPaymentPlan()
	}

	c.recompute()
}

// Order returns a snapshot of the aggregate with current derived totals.
// Reads take the mutation guard so a concurrent mutation never shows a
// half-applied cart; the returned copy is the caller's to keep.
func (c *Controller) Order() *order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Clone()
}

// PaymentOptions returns a snapshot of every plan option with current
// derived amounts.
func (c *Controller) PaymentOptions() []order.PaymentPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	options := c.plans.Options()
	out := make([]order.PaymentPlan, len(options))
	copy(out, options)
	return out
}

// CatalogItems returns a snapshot of the searchable entries with
// selection state.
func (c *Controller) CatalogItems() []catalog.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.catalog.Items()
	out := make([]catalog.Item, len(items))
	copy(out, items)
	return out
}

// begin acquires the single-flight mutation guard.
func (c *Controller) begin() error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	return nil
}

// end releases the guard; mutation chains always end here, including on
// failure paths.
func (c *Controller) end() {
	c.mu.Unlock()
}

// recompute runs the two derivation phases: discount layering over the
// collections, then payment plan economics over the fresh totals.
func (c *Controller) recompute() {
	discount.Recompute(c.order)
	c.plans.Recompute(c.order, c.rates)
}

// persist wraps a store call, tagging failures with the operation name.
// A persistence failure leaves the newer in-memory state in place.
func (c *Controller) persist(op string, err error) error {
	if err == nil {
		return nil
	}
	c.lg.Error("persistence call failed", zap.String("op", op), zap.Error(err))
	return &PersistenceError{Op: op, Err: err}
}
