package hints

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/topology"
)

// Mutation is the narrow view of a write the Hint Submitter needs: enough
// to ask the hint store to wrap it for replay and to look up the gc-grace
// of the tables it touches. Drivers convert their own mutation
// representation into this before calling Submit.
type Mutation struct {
	Key       string
	Payload   []byte
	Timestamp uint64
	Tables    []string
}

// HintStore is the external hint store spec.md §6 consumes: hintFor wraps a
// mutation for replay against a specific down host; calculateHintTTL is
// the store's own fallback TTL estimate, used when no GCGraceSource is
// configured or the mutation names no tables. Store persists the wrapped
// hint, keyed by the target host's UUID (spec.md §6 "Persisted state").
type HintStore interface {
	HintFor(mutation Mutation, now time.Time, ttl time.Duration, hostID uuid.UUID) (Mutation, error)
	CalculateHintTTL(mutation Mutation) time.Duration
	Store(hostID uuid.UUID, hint Mutation) error
}

// GCGraceSource answers how long a table retains tombstones, so a hint
// never outlives the data it could resurrect. Recovered from
// original_source/'s ColumnFamilyStore.gcGraceSeconds (SPEC_FULL §4.3);
// kept as its own narrow interface so hints does not need to know about
// keyspaces/tables directly.
type GCGraceSource interface {
	GCGraceSeconds(table string) uint64
}

// Submitter is the Hint Submitter. Its admission check and per-endpoint
// policy are hot-reloadable (spec.md §6 MBean surface), so the relevant
// fields are atomics rather than a config struct rebuilt per write.
type Submitter struct {
	store   HintStore
	gcGrace GCGraceSource

	liveness topology.LivenessDetector
	snitch   topology.Snitch

	hintedHandoffEnabled atomic.Bool
	maxHintsInProgress   atomic.Uint64
	maxHintWindowMs      atomic.Uint64

	disabledDCsMu sync.RWMutex
	disabledDCs   map[string]bool

	totalHintsInProgress atomic.Int64
	totalHints           atomic.Int64
	perEndpoint          *xsync.MapOf[topology.Endpoint, *atomic.Int64]

	onHintWritten func(endpoint topology.Endpoint)
}

// NewSubmitter constructs a Submitter. Hinted handoff starts enabled with
// no disabled datacenters, matching the teacher's pattern of safe-by-
// default config that the admin surface can later tighten.
func NewSubmitter(store HintStore, gcGrace GCGraceSource, liveness topology.LivenessDetector, snitch topology.Snitch, maxHintsInProgress uint64, maxHintWindow time.Duration) *Submitter {
	s := &Submitter{
		store:       store,
		gcGrace:     gcGrace,
		liveness:    liveness,
		snitch:      snitch,
		disabledDCs: make(map[string]bool),
		perEndpoint: xsync.NewMapOf[topology.Endpoint, *atomic.Int64](),
	}
	s.hintedHandoffEnabled.Store(true)
	s.maxHintsInProgress.Store(maxHintsInProgress)
	s.maxHintWindowMs.Store(uint64(maxHintWindow.Milliseconds()))
	return s
}

// OnHintWritten registers a callback invoked after every hint that was
// actually written (not skipped by policy or TTL), used by the metrics
// package to drive totalHints without hints importing metrics directly.
func (s *Submitter) OnHintWritten(cb func(endpoint topology.Endpoint)) {
	s.onHintWritten = cb
}

// --------------------------------------------------------------------------
// Admin surface (MBean getters/setters, spec.md §6)
// --------------------------------------------------------------------------

func (s *Submitter) SetHintedHandoffEnabled(enabled bool) { s.hintedHandoffEnabled.Store(enabled) }
func (s *Submitter) HintedHandoffEnabled() bool           { return s.hintedHandoffEnabled.Load() }

func (s *Submitter) SetMaxHintsInProgress(n uint64) { s.maxHintsInProgress.Store(n) }
func (s *Submitter) MaxHintsInProgress() uint64     { return s.maxHintsInProgress.Load() }

func (s *Submitter) SetMaxHintWindow(d time.Duration) { s.maxHintWindowMs.Store(uint64(d.Milliseconds())) }
func (s *Submitter) MaxHintWindow() time.Duration {
	return time.Duration(s.maxHintWindowMs.Load()) * time.Millisecond
}

func (s *Submitter) SetDisabledDatacenters(dcs []string) {
	set := make(map[string]bool, len(dcs))
	for _, dc := range dcs {
		set[dc] = true
	}
	s.disabledDCsMu.Lock()
	s.disabledDCs = set
	s.disabledDCsMu.Unlock()
}

func (s *Submitter) isDisabledDC(dc string) bool {
	s.disabledDCsMu.RLock()
	defer s.disabledDCsMu.RUnlock()
	return s.disabledDCs[dc]
}

// TotalHintsInProgress returns the global in-flight hint counter.
func (s *Submitter) TotalHintsInProgress() int64 { return s.totalHintsInProgress.Load() }

// TotalHints returns the lifetime count of hints successfully written.
func (s *Submitter) TotalHints() int64 { return s.totalHints.Load() }

// --------------------------------------------------------------------------
// Policy
// --------------------------------------------------------------------------

// ShouldHint implements spec.md §4.C's shouldHint(endpoint) policy.
func (s *Submitter) ShouldHint(endpoint topology.Endpoint) bool {
	if !s.hintedHandoffEnabled.Load() {
		return false
	}
	if s.isDisabledDC(s.snitch.Datacenter(endpoint)) {
		return false
	}
	downtime := time.Duration(s.liveness.DowntimeMillis(endpoint)) * time.Millisecond
	if downtime > s.MaxHintWindow() {
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Submit enqueues a hint for endpoint. It returns submitted=false with a
// nil error when the hint is skipped by policy or a non-positive TTL
// (spec.md §4.C: "if TTL ≤ 0 the hint is skipped without raising"), and a
// *coordinaterr.CoordinatorError with Kind Overloaded when the backpressure
// cap has been breached.
func (s *Submitter) Submit(endpoint topology.Endpoint, hostID uuid.UUID, mutation Mutation) (submitted bool, err error) {
	if !s.ShouldHint(endpoint) {
		return false, nil
	}

	ttl := s.ttlFor(mutation)
	if ttl <= 0 {
		return false, nil
	}

	if !s.admit(endpoint) {
		return false, coordinaterr.Overloaded("totalHintsInProgress exceeds maxHintsInProgress")
	}
	// The counter is decremented exactly once per submitted hint, whether
	// the write below succeeds or raises (spec.md §3 Hint backlog lifecycle).
	defer s.release(endpoint)

	now := time.Now()
	hint, err := s.store.HintFor(mutation, now, ttl, hostID)
	if err != nil {
		return false, err
	}
	if err := s.store.Store(hostID, hint); err != nil {
		return false, err
	}

	s.totalHints.Add(1)
	if s.onHintWritten != nil {
		s.onHintWritten(endpoint)
	}
	return true, nil
}

func (s *Submitter) ttlFor(mutation Mutation) time.Duration {
	if s.gcGrace == nil || len(mutation.Tables) == 0 {
		return s.store.CalculateHintTTL(mutation)
	}
	var oldest uint64 = math.MaxUint64
	for _, table := range mutation.Tables {
		if grace := s.gcGrace.GCGraceSeconds(table); grace < oldest {
			oldest = grace
		}
	}
	if oldest == math.MaxUint64 {
		return s.store.CalculateHintTTL(mutation)
	}
	return time.Duration(oldest) * time.Second
}

// admit performs the advisory, racey-by-design admission check (spec.md §3:
// "a small overshoot is tolerated, unbounded growth is not").
func (s *Submitter) admit(endpoint topology.Endpoint) bool {
	if uint64(s.totalHintsInProgress.Load()) >= s.maxHintsInProgress.Load() {
		return false
	}
	s.totalHintsInProgress.Add(1)
	s.counterFor(endpoint).Add(1)
	return true
}

func (s *Submitter) release(endpoint topology.Endpoint) {
	s.totalHintsInProgress.Add(-1)
	s.counterFor(endpoint).Add(-1)
}

func (s *Submitter) counterFor(endpoint topology.Endpoint) *atomic.Int64 {
	counter, _ := s.perEndpoint.LoadOrCompute(endpoint, func() *atomic.Int64 { return &atomic.Int64{} })
	return counter
}

// InProgressFor returns the in-flight hint count for a single endpoint,
// loaded lazily like the rest of the per-endpoint bookkeeping.
func (s *Submitter) InProgressFor(endpoint topology.Endpoint) int64 {
	return s.counterFor(endpoint).Load()
}
