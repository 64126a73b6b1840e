package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
)

type fakeMappingService struct {
	mu       sync.Mutex
	mappings []*mappingdomain.CustomerMapping
	listErr  error
}

func (f *fakeMappingService) Create(context.Context, mappingdomain.CreateRequest) (*mappingdomain.CustomerMapping, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMappingService) Get(_ context.Context, portalCustomerID string) (*mappingdomain.CustomerMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.PortalCustomerID == portalCustomerID {
			return m, nil
		}
	}
	return nil, mappingdomain.ErrMappingMissing
}

func (f *fakeMappingService) List(context.Context) ([]*mappingdomain.CustomerMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.mappings, nil
}

func (f *fakeMappingService) Remove(context.Context, snowflake.ID) error {
	return errors.New("not implemented")
}

func newTestRefresher(t *testing.T, mappings mappingdomain.Service, client billingdomain.Client, store repository.Store) *Refresher {
	t.Helper()
	return NewRefresher(RefresherParams{
		Config:     testConfig(),
		Mappings:   mappings,
		Aggregator: newTestAggregator(t, client),
		Store:      store,
		Clock:      clock.Fixed{T: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		Log:        zap.NewNop(),
	})
}

func TestRefreshMergesIntoStore(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Acme")

	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext": {{ID: "i1", Balance: json.RawMessage(`10`)}},
		},
	}
	store := repository.NewMemoryStore()
	r := newTestRefresher(t, &fakeMappingService{mappings: []*mappingdomain.CustomerMapping{m}}, client, store)

	notified := make(chan struct{}, 1)
	r.Subscribe(func() { notified <- struct{}{} })

	report, ran := r.Refresh(context.Background())
	require.True(t, ran)
	require.Equal(t, StateIdle, r.State())

	snap, ok, err := store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Invoices, 1)
	require.False(t, snap.Stale)

	select {
	case <-notified:
	default:
		t.Fatal("expected data-changed notification")
	}

	require.Equal(t, 1, report.Mappings)
	require.Empty(t, report.Failed)
	require.False(t, report.Discarded)
	require.NotNil(t, r.LastCycle())
	require.Equal(t, report.ID, r.LastCycle().ID)
}

func TestRefreshNoOverlap(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Acme")

	block := make(chan struct{})
	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{"ext": {{ID: "i1"}}},
		block:    block,
	}
	store := repository.NewMemoryStore()
	r := newTestRefresher(t, &fakeMappingService{mappings: []*mappingdomain.CustomerMapping{m}}, client, store)

	done := make(chan bool)
	go func() {
		_, ran := r.Refresh(context.Background())
		done <- ran
	}()

	// Wait until the first cycle is in flight.
	require.Eventually(t, func() bool { return r.State() == StateFetching }, time.Second, time.Millisecond)

	// A concurrent trigger is a no-op, not a queued cycle.
	_, ran := r.Refresh(context.Background())
	require.False(t, ran)
	require.False(t, r.TriggerAsync())

	close(block)
	require.True(t, <-done)
	require.Equal(t, StateIdle, r.State())
}

func TestRefreshDiscardsOnCancellation(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Acme")

	block := make(chan struct{})
	defer close(block)
	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{"ext": {{ID: "i1"}}},
		block:    block,
	}
	store := repository.NewMemoryStore()
	r := newTestRefresher(t, &fakeMappingService{mappings: []*mappingdomain.CustomerMapping{m}}, client, store)

	notified := false
	r.Subscribe(func() { notified = true })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ran := r.Refresh(ctx)
		done <- ran
	}()

	require.Eventually(t, func() bool { return r.State() == StateFetching }, time.Second, time.Millisecond)
	cancel()
	require.True(t, <-done)

	// In-flight results were discarded, not applied.
	_, ok, err := store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, notified)

	report := r.LastCycle()
	require.NotNil(t, report)
	require.True(t, report.Discarded)
}

func TestRefreshFailedCycleKeepsPreviousData(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	m := newMapping(node, "p", "ext", "Acme")
	svc := &fakeMappingService{mappings: []*mappingdomain.CustomerMapping{m}}

	client := &fakeBillingClient{
		invoices: map[string][]billingdomain.RawInvoice{
			"ext": {{ID: "i1", Balance: json.RawMessage(`10`)}},
		},
		failing: map[string]error{},
	}
	store := repository.NewMemoryStore()
	r := newTestRefresher(t, svc, client, store)

	_, ran := r.Refresh(context.Background())
	require.True(t, ran)

	// The remote starts failing; the next cycle must keep the old rows.
	client.failing["ext"] = errors.New("boom")
	report, ran := r.Refresh(context.Background())
	require.True(t, ran)

	snap, ok, err := store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Invoices, 1, "stale-but-present beats blank")
	require.True(t, snap.Stale)
	require.Equal(t, "boom", snap.LastError)

	require.Len(t, report.Failed, 1)
	require.Len(t, r.LastCycle().Failed, 1)

	// No error terminal state: the next trigger runs normally.
	delete(client.failing, "ext")
	report, ran = r.Refresh(context.Background())
	require.True(t, ran)
	require.Empty(t, report.Failed)
	snap, _, _ = store.Get(context.Background(), m.ID)
	require.False(t, snap.Stale)
}

func TestRefreshMappingListFailureLeavesStoreUntouched(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := &fakeMappingService{listErr: errors.New("db down")}
	r := newTestRefresher(t, svc, &fakeBillingClient{}, store)

	report, ran := r.Refresh(context.Background())
	require.True(t, ran)
	require.Equal(t, StateIdle, r.State())

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)

	// The aborted cycle reports no failures of its own and does not
	// overwrite the last completed report.
	require.Empty(t, report.Failed)
	require.Nil(t, r.LastCycle())
}
