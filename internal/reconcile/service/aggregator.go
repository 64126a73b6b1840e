package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
)

type AggregatorParams struct {
	fx.In

	Config config.Config
	Client billingdomain.Client
	Clock  clock.Clock
	Log    *zap.Logger
}

// Aggregator fans InvoiceFetcher out over a set of mappings and folds the
// results into one cycle. A scope of one mapping is the same call with a
// one-element slice; the self-service audience boundary rests on that.
type Aggregator struct {
	client     billingdomain.Client
	normalizer reconciledomain.Normalizer
	clock      clock.Clock
	log        *zap.Logger
	timeout    time.Duration
}

func NewAggregator(p AggregatorParams) *Aggregator {
	return &Aggregator{
		client: p.Client,
		normalizer: reconciledomain.Normalizer{
			DefaultCurrency: p.Config.Billing.DefaultCurrency,
			PayLinkBase:     p.Config.Billing.PayLinkBase,
		},
		clock:   p.Clock,
		log:     p.Log.Named("reconcile.aggregator"),
		timeout: p.Config.Billing.FetchTimeout,
	}
}

// Collect fetches every mapping concurrently and waits for all of them to
// settle. A failed fetch never aborts the batch and never raises past this
// boundary: it becomes a failed outcome for that mapping only. Structurally
// invalid records are dropped without counting as a customer-level failure.
func (a *Aggregator) Collect(ctx context.Context, mappings []*mappingdomain.CustomerMapping) reconciledomain.AggregatedInvoiceSet {
	set := reconciledomain.AggregatedInvoiceSet{
		Outcomes: make([]reconciledomain.FetchOutcome, len(mappings)),
		Invoices: make(map[snowflake.ID][]reconciledomain.NormalizedInvoice, len(mappings)),
	}

	var wg sync.WaitGroup
	results := make([][]reconciledomain.NormalizedInvoice, len(mappings))

	for i, m := range mappings {
		wg.Add(1)
		go func(i int, m *mappingdomain.CustomerMapping) {
			defer wg.Done()
			outcome, invoices := a.fetchOne(ctx, m)
			set.Outcomes[i] = outcome
			results[i] = invoices
		}(i, m)
	}
	wg.Wait()

	for i, m := range mappings {
		if set.Outcomes[i].OK {
			set.Invoices[m.ID] = results[i]
		}
	}
	return set
}

func (a *Aggregator) fetchOne(ctx context.Context, m *mappingdomain.CustomerMapping) (reconciledomain.FetchOutcome, []reconciledomain.NormalizedInvoice) {
	outcome := reconciledomain.FetchOutcome{
		MappingID:        m.ID,
		PortalCustomerID: m.PortalCustomerID,
		CustomerName:     m.ExternalDisplayName,
		FetchedAt:        a.clock.Now(ctx),
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raws, err := a.client.ListInvoices(fetchCtx, m.ExternalCustomerID)
	if err != nil {
		a.log.Warn("invoice fetch failed",
			zap.Error(err),
			zap.String("mapping_id", m.ID.String()),
			zap.String("external_customer_id", m.ExternalCustomerID),
		)
		outcome.Error = err.Error()
		return outcome, nil
	}

	invoices := make([]reconciledomain.NormalizedInvoice, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		inv, err := a.normalizer.Normalize(raw, m.ExternalDisplayName)
		if err != nil {
			dropped++
			continue
		}
		invoices = append(invoices, inv)
	}
	if dropped > 0 {
		a.log.Debug("dropped invalid invoice records",
			zap.Int("dropped", dropped),
			zap.String("mapping_id", m.ID.String()),
		)
	}

	outcome.OK = true
	return outcome, invoices
}
