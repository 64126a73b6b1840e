package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
)

type fakeBillingClient struct {
	invoices map[string][]billingdomain.RawInvoice
	failing  map[string]error
	block    chan struct{}
}

func (f *fakeBillingClient) ListInvoices(ctx context.Context, externalCustomerID string) ([]billingdomain.RawInvoice, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failing[externalCustomerID]; ok {
		return nil, err
	}
	return f.invoices[externalCustomerID], nil
}

func (f *fakeBillingClient) GetCustomer(ctx context.Context, externalCustomerID string) (*billingdomain.ExternalCustomer, error) {
	return &billingdomain.ExternalCustomer{ID: externalCustomerID}, nil
}

func testConfig() config.Config {
	return config.Config{
		Billing: config.BillingConfig{
			FetchTimeout:    5 * time.Second,
			DefaultCurrency: "USD",
		},
	}
}

func newTestAggregator(t *testing.T, client billingdomain.Client) *Aggregator {
	t.Helper()
	return NewAggregator(AggregatorParams{
		Config: testConfig(),
		Client: client,
		Clock:  clock.Fixed{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		Log:    zap.NewNop(),
	})
}

func newMapping(node *snowflake.Node, portal, external, name string) *mappingdomain.CustomerMapping {
	return &mappingdomain.CustomerMapping{
		ID:                  node.Generate(),
		PortalCustomerID:    portal,
		ExternalCustomerID:  external,
		ExternalDisplayName: name,
	}
}

func TestCollectPartialFailureIsolation(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	a := newMapping(node, "p-a", "ext-a", "Customer A")
	b := newMapping(node, "p-b", "ext-b", "Customer B")
	c := newMapping(node, "p-c", "ext-c", "Customer C")

	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext-a": {
				{ID: "a1", Balance: json.RawMessage(`100`)},
				{ID: "a2", Balance: json.RawMessage(`0`)},
			},
			"ext-c": {
				{ID: "c1", Balance: json.RawMessage(`50`)},
			},
		},
		failing: map[string]error{
			"ext-b": errors.New("connection refused"),
		},
	}

	set := newTestAggregator(t, client).Collect(context.Background(), []*mappingdomain.CustomerMapping{a, b, c})

	require.Len(t, set.Outcomes, 3)
	require.Len(t, set.Invoices[a.ID], 2)
	require.Len(t, set.Invoices[c.ID], 1)

	outA, ok := set.Outcome(a.ID)
	require.True(t, ok)
	require.True(t, outA.OK)

	outB, ok := set.Outcome(b.ID)
	require.True(t, ok)
	require.False(t, outB.OK)
	require.Contains(t, outB.Error, "connection refused")

	_, hasB := set.Invoices[b.ID]
	require.False(t, hasB)
	require.Equal(t, 1, set.FailedCount())
}

func TestCollectZeroInvoicesIsSuccess(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Customer")

	client := &fakeBillingClient{invoices: map[string][]billingdomain.RawInvoice{}}
	set := newTestAggregator(t, client).Collect(context.Background(), []*mappingdomain.CustomerMapping{m})

	out, ok := set.Outcome(m.ID)
	require.True(t, ok)
	require.True(t, out.OK)
	require.Empty(t, set.Invoices[m.ID])
}

func TestCollectDropsInvalidRecordsSilently(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Customer")

	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext": {
				{ID: "good", Balance: json.RawMessage(`10`)},
				{ID: "", Balance: json.RawMessage(`20`)}, // no id: dropped
				{ID: "also-good"},
			},
		},
	}

	set := newTestAggregator(t, client).Collect(context.Background(), []*mappingdomain.CustomerMapping{m})

	out, ok := set.Outcome(m.ID)
	require.True(t, ok)
	require.True(t, out.OK, "dropped records must not fail the customer batch")
	require.Len(t, set.Invoices[m.ID], 2)
}

func TestCollectSingleMappingScope(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	mine := newMapping(node, "p-mine", "ext-mine", "Mine")

	// Even if the remote (by bug) returned foreign records, they are
	// normalized under the scoped mapping only; no other mapping key can
	// appear in the result.
	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext-mine": {
				{ID: "m1", CustomerRef: json.RawMessage(`{"value":"someone-else","name":"Foreign"}`)},
			},
		},
	}

	set := newTestAggregator(t, client).Collect(context.Background(), []*mappingdomain.CustomerMapping{mine})

	require.Len(t, set.Invoices, 1)
	_, ok := set.Invoices[mine.ID]
	require.True(t, ok)
	require.Len(t, set.Outcomes, 1)
}

func TestCollectUsesCachedDisplayName(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Cached Name")

	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext": {{ID: "i1"}},
		},
	}

	set := newTestAggregator(t, client).Collect(context.Background(), []*mappingdomain.CustomerMapping{m})
	require.Equal(t, "Cached Name", set.Invoices[m.ID][0].CustomerName)
}
