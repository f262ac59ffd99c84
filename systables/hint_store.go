package systables

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/storage/db"
)

// HintStore is a reference hints.HintStore: the wrapped hint is just the
// mutation unchanged (there is no separate replay envelope to build), and
// Store persists it keyed by the down host's UUID plus the mutation's key,
// so a later hint for the same host and key replaces the earlier one. No
// replay service reads these rows (out of scope here, spec.md §1).
type HintStore struct {
	mu         sync.Mutex
	db         db.KVDB
	idx        atomic.Uint64
	defaultTTL time.Duration
}

// NewHintStore constructs a HintStore. defaultTTL is CalculateHintTTL's
// answer when the mutation names no tables a GCGraceSource could consult,
// the same fallback role spec.md §3's calculateHintTTL(mutation) plays.
func NewHintStore(d db.KVDB, defaultTTL time.Duration) *HintStore {
	return &HintStore{db: d, defaultTTL: defaultTTL}
}

func (s *HintStore) HintFor(mutation hints.Mutation, _ time.Time, _ time.Duration, _ uuid.UUID) (hints.Mutation, error) {
	return mutation, nil
}

func (s *HintStore) CalculateHintTTL(hints.Mutation) time.Duration {
	return s.defaultTTL
}

func (s *HintStore) Store(hostID uuid.UUID, hint hints.Mutation) error {
	raw, err := json.Marshal(hint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.db.Set(rowKey("hints", hostID.String(), hint.Key), raw, s.idx.Add(1))
	s.mu.Unlock()
	return nil
}

// GCGrace is a reference hints.GCGraceSource: a static per-table override
// map with a fallback, standing in for original_source/'s
// ColumnFamilyStore.gcGraceSeconds (SPEC_FULL §4.3).
type GCGrace struct {
	mu       sync.RWMutex
	seconds  map[string]uint64
	fallback uint64
}

func NewGCGrace(fallbackSeconds uint64) *GCGrace {
	return &GCGrace{seconds: make(map[string]uint64), fallback: fallbackSeconds}
}

// Set overrides table's gc-grace-seconds, mirroring a CQL "ALTER TABLE ...
// WITH gc_grace_seconds = ..." that this module does not parse itself.
func (g *GCGrace) Set(table string, seconds uint64) {
	g.mu.Lock()
	g.seconds[table] = seconds
	g.mu.Unlock()
}

func (g *GCGrace) GCGraceSeconds(table string) uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if s, ok := g.seconds[table]; ok {
		return s
	}
	return g.fallback
}
