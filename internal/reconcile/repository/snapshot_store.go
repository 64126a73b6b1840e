package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
)

// Snapshot is the retained view of one mapping's invoices. A failed cycle
// leaves the previous invoices in place and flips Stale; a mapping that has
// never fetched successfully holds an empty, stale snapshot, which the view
// renders as an explicit "unavailable" marker rather than silence.
type Snapshot struct {
	MappingID        snowflake.ID                         `json:"mapping_id"`
	PortalCustomerID string                               `json:"portal_customer_id"`
	CustomerName     string                               `json:"customer_name"`
	Invoices         []reconciledomain.NormalizedInvoice  `json:"invoices"`
	FetchedAt        time.Time                            `json:"fetched_at"`
	Stale            bool                                 `json:"stale"`
	LastError        string                               `json:"last_error,omitempty"`
}

// NeverFetched reports whether this snapshot has no successful cycle behind
// it at all.
func (s Snapshot) NeverFetched() bool {
	return s.FetchedAt.IsZero()
}

type Store interface {
	// Merge folds one cycle's result in: succeeded mappings replace their
	// snapshot wholesale, failed mappings keep last-known-good data and
	// are marked stale. Other mappings are untouched.
	Merge(ctx context.Context, set reconciledomain.AggregatedInvoiceSet) error
	Get(ctx context.Context, mappingID snowflake.ID) (Snapshot, bool, error)
	All(ctx context.Context) ([]Snapshot, error)
	Evict(ctx context.Context, mappingID snowflake.ID) error
}

type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[snowflake.ID]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[snowflake.ID]Snapshot)}
}

func (m *MemoryStore) Merge(_ context.Context, set reconciledomain.AggregatedInvoiceSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, outcome := range set.Outcomes {
		prev, exists := m.snapshots[outcome.MappingID]

		if outcome.OK {
			invoices := set.Invoices[outcome.MappingID]
			if invoices == nil {
				invoices = []reconciledomain.NormalizedInvoice{}
			}
			m.snapshots[outcome.MappingID] = Snapshot{
				MappingID:        outcome.MappingID,
				PortalCustomerID: outcome.PortalCustomerID,
				CustomerName:     outcome.CustomerName,
				Invoices:         invoices,
				FetchedAt:        outcome.FetchedAt,
			}
			continue
		}

		if exists {
			prev.Stale = true
			prev.LastError = outcome.Error
			m.snapshots[outcome.MappingID] = prev
			continue
		}

		// First cycle for this mapping failed: record the failure so the
		// view can say "unavailable" instead of showing nothing.
		m.snapshots[outcome.MappingID] = Snapshot{
			MappingID:        outcome.MappingID,
			PortalCustomerID: outcome.PortalCustomerID,
			CustomerName:     outcome.CustomerName,
			Invoices:         []reconciledomain.NormalizedInvoice{},
			Stale:            true,
			LastError:        outcome.Error,
		}
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, mappingID snowflake.ID) (Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[mappingID]
	return snap, ok, nil
}

func (m *MemoryStore) All(_ context.Context) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerName != out[j].CustomerName {
			return out[i].CustomerName < out[j].CustomerName
		}
		return out[i].MappingID < out[j].MappingID
	})
	return out, nil
}

func (m *MemoryStore) Evict(_ context.Context, mappingID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, mappingID)
	return nil
}

// replace is used by the Redis layer during hydration.
func (m *MemoryStore) replace(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.MappingID] = snap
}
