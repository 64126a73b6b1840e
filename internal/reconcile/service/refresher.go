package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ledgerlinklabs/ledgerlink/internal/clock"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
	mappingdomain "github.com/ledgerlinklabs/ledgerlink/internal/mapping/domain"
	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
)

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

// CycleReport summarizes the most recent completed refresh cycle.
type CycleReport struct {
	ID         string                          `json:"id"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
	Mappings   int                             `json:"mappings"`
	Failed     []reconciledomain.FetchOutcome  `json:"failed,omitempty"`
	Discarded  bool                            `json:"discarded"`
}

type RefresherParams struct {
	fx.In

	Config     config.Config
	Mappings   mappingdomain.Service
	Aggregator *Aggregator
	Store      repository.Store
	Clock      clock.Clock
	Log        *zap.Logger
}

// Refresher is the Idle/Fetching state machine that drives the pipeline. A
// trigger while a cycle is in flight is a no-op; cycles never queue or
// overlap. A failed cycle returns to Idle with the previous data untouched.
type Refresher struct {
	busy atomic.Bool

	mappings   mappingdomain.Service
	aggregator *Aggregator
	store      repository.Store
	clock      clock.Clock
	log        *zap.Logger

	cycleBudget time.Duration

	mu   sync.Mutex
	last *CycleReport
	subs []func()
}

func NewRefresher(p RefresherParams) *Refresher {
	budget := p.Config.Billing.FetchTimeout + 10*time.Second
	return &Refresher{
		mappings:    p.Mappings,
		aggregator:  p.Aggregator,
		store:       p.Store,
		clock:       p.Clock,
		log:         p.Log.Named("reconcile.refresher"),
		cycleBudget: budget,
	}
}

func (r *Refresher) State() State {
	if r.busy.Load() {
		return StateFetching
	}
	return StateIdle
}

// Subscribe registers a callback fired after each cycle that merged data.
func (r *Refresher) Subscribe(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

func (r *Refresher) LastCycle() *CycleReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Refresh runs one cycle synchronously and returns that cycle's own report,
// so callers can account for its failures without racing LastCycle. It
// returns false without doing anything when a cycle is already in flight.
func (r *Refresher) Refresh(ctx context.Context) (CycleReport, bool) {
	if !r.busy.CompareAndSwap(false, true) {
		return CycleReport{}, false
	}
	defer r.busy.Store(false)
	return r.run(ctx), true
}

// TriggerAsync starts a cycle in the background with its own deadline,
// detached from the caller. It returns false when a cycle is already in
// flight.
func (r *Refresher) TriggerAsync() bool {
	if !r.busy.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer r.busy.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), r.cycleBudget)
		defer cancel()
		r.run(ctx)
	}()
	return true
}

func (r *Refresher) run(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: r.clock.Now(ctx),
	}
	log := r.log.With(zap.String("cycle_id", report.ID))

	mappings, err := r.mappings.List(ctx)
	if err != nil {
		// Aborted cycles never become LastCycle; the previous completed
		// report stays current for the failure endpoint.
		log.Warn("refresh cycle aborted, mapping list unavailable", zap.Error(err))
		return report
	}
	report.Mappings = len(mappings)
	if len(mappings) == 0 {
		report.FinishedAt = r.clock.Now(ctx)
		r.finish(report)
		return report
	}

	set := r.aggregator.Collect(ctx, mappings)

	// The consumer that wanted this cycle is gone: leave the displayed
	// data exactly as it was.
	if ctx.Err() != nil {
		report.Discarded = true
		report.FinishedAt = r.clock.Now(context.Background())
		r.finish(report)
		log.Info("refresh cycle discarded", zap.Int("mappings", len(mappings)))
		return report
	}

	if err := r.store.Merge(ctx, set); err != nil {
		log.Error("snapshot merge failed", zap.Error(err))
		return report
	}

	for _, outcome := range set.Outcomes {
		if !outcome.OK {
			report.Failed = append(report.Failed, outcome)
		}
	}
	report.FinishedAt = r.clock.Now(ctx)
	r.finish(report)

	log.Info("refresh cycle completed",
		zap.Int("mappings", len(mappings)),
		zap.Int("failed", len(report.Failed)),
	)
	r.notify()
	return report
}

func (r *Refresher) finish(report CycleReport) {
	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
}

func (r *Refresher) notify() {
	r.mu.Lock()
	subs := make([]func(), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
