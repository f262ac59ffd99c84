package read

import (
	"math"
	"sync"
	"time"
)

// LatencyTracker is a decaying-percentile read-latency estimator, one per
// table, feeding the speculative-retry decision (spec.md §4.E step 1:
// "if configured, enqueue an additional data request ... after a per-table
// percentile latency"). Recovered from original_source's
// ColumnFamilyStore.sampleLatencyNanos (SPEC_FULL §4.2), modeled as a
// bucketed histogram with percentile estimation the same way the teacher's
// lib/db/util.SizeHistogram estimates size percentiles, but periodically
// decayed so old samples stop dominating the estimate.
type LatencyTracker struct {
	mu         sync.RWMutex
	tables     map[string]*tableHistogram
	decayEvery int // samples between decay halvings
}

type tableHistogram struct {
	guard      sync.RWMutex
	boundaries []int64 // nanosecond bucket boundaries
	buckets    []int64
	count      int64
	sum        int64
}

// defaultBoundaries spans 100us to ~2s, the practically useful range for a
// single-partition read.
var defaultBoundaries = []int64{
	int64(100 * time.Microsecond), int64(time.Millisecond), int64(5 * time.Millisecond),
	int64(10 * time.Millisecond), int64(25 * time.Millisecond), int64(50 * time.Millisecond),
	int64(100 * time.Millisecond), int64(250 * time.Millisecond), int64(500 * time.Millisecond),
	int64(time.Second), int64(2 * time.Second),
}

// NewLatencyTracker creates an empty tracker. decayEvery controls how many
// samples a table accumulates before its histogram is halved in place,
// keeping the estimate responsive to recent behavior instead of averaging
// over the table's entire lifetime.
func NewLatencyTracker(decayEvery int) *LatencyTracker {
	if decayEvery <= 0 {
		decayEvery = 10000
	}
	return &LatencyTracker{
		tables:     make(map[string]*tableHistogram),
		decayEvery: decayEvery,
	}
}

func newTableHistogram() *tableHistogram {
	return &tableHistogram{
		boundaries: defaultBoundaries,
		buckets:    make([]int64, len(defaultBoundaries)+1),
	}
}

// Update records a completed read's latency for table.
func (t *LatencyTracker) Update(table string, latency time.Duration) {
	t.mu.Lock()
	h, ok := t.tables[table]
	if !ok {
		h = newTableHistogram()
		t.tables[table] = h
	}
	t.mu.Unlock()

	h.addSample(int64(latency), t.decayEvery)
}

// SpeculativeThreshold returns the table's estimated p99 read latency, the
// delay the Read Executor waits before firing a speculative extra request
// to a further replica. A table with no samples yet returns 0, which
// callers should treat as "no speculative retry until data exists".
func (t *LatencyTracker) SpeculativeThreshold(table string) time.Duration {
	t.mu.RLock()
	h, ok := t.tables[table]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return time.Duration(h.percentile(99))
}

func (h *tableHistogram) addSample(nanos int64, decayEvery int) {
	h.guard.Lock()
	defer h.guard.Unlock()

	bucketIndex := len(h.boundaries)
	for i, boundary := range h.boundaries {
		if nanos <= boundary {
			bucketIndex = i
			break
		}
	}
	h.buckets[bucketIndex]++
	h.count++
	h.sum += nanos

	if h.count >= int64(decayEvery) {
		for i := range h.buckets {
			h.buckets[i] /= 2
		}
		h.count /= 2
		h.sum /= 2
	}
}

func (h *tableHistogram) percentile(p int) int64 {
	h.guard.RLock()
	defer h.guard.RUnlock()

	if h.count == 0 || p < 0 || p > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(p) / 100.0))
	cumulative := int64(0)
	for i, count := range h.buckets {
		cumulative += count
		if cumulative >= target {
			if i == 0 {
				return h.boundaries[0] / 2
			}
			if i < len(h.boundaries) {
				return (h.boundaries[i-1] + h.boundaries[i]) / 2
			}
			return h.boundaries[len(h.boundaries)-1] * 2
		}
	}
	return h.sum / h.count
}

