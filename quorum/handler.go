package quorum

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/topology"
)

// Handler is the Response Collector's per-request state (spec.md §3
// "Response handler state"): remaining, blockFor, received, failed,
// startNanos, timeoutNanos, idempotentCancel. It is constructed fresh for
// every replica fan-out and discarded on completion.
type Handler struct {
	keyspace         string
	consistency      topology.ConsistencyLevel
	writeType        topology.WriteType
	isRead           bool
	totalTargets     int
	blockFor         int
	unreachable      int
	dataPresent      bool
	onReceive        func(from topology.Endpoint)
	onTerminal       func(err error)

	received *xsync.MapOf[topology.Endpoint, struct{}]
	failed   *xsync.MapOf[topology.Endpoint, struct{}]

	mu            sync.Mutex
	receivedCount int
	failedCount   int

	start   time.Time
	timeout time.Duration

	once sync.Once
	done chan struct{}
	err  error

	idealMu      sync.Mutex
	idealBlock   int
	idealDone    bool
	idealOnReach func()
}

// Option configures optional Handler behavior.
type Option func(*Handler)

// WithCallback registers a function invoked once per distinct acknowledging
// sender, used to drive auxiliary bookkeeping (e.g. read-repair digest
// collection) without the caller polling the handler.
func WithCallback(cb func(from topology.Endpoint)) Option {
	return func(h *Handler) { h.onReceive = cb }
}

// WithOnTerminal registers a function invoked exactly once when the handler
// reaches its terminal state, with the terminal error (nil on success).
func WithOnTerminal(cb func(err error)) Option {
	return func(h *Handler) { h.onTerminal = cb }
}

// NewWriteHandler constructs a Handler for a write fan-out. targets is the
// full natural+pending replica set the write was (or will be) sent to;
// unreachable is how many of those were already known to be down and so
// were never sent a message (spec.md §3's completion rule counts them
// toward failure even without an explicit OnFailure call).
func NewWriteHandler(targets []topology.Endpoint, unreachable int, cl topology.ConsistencyLevel, keyspace string, wt topology.WriteType, blockFor int, timeout time.Duration, opts ...Option) *Handler {
	h := newHandler(len(targets), unreachable, cl, keyspace, blockFor, timeout, opts...)
	h.writeType = wt
	h.isRead = false
	return h
}

// NewReadHandler constructs a Handler for a read fan-out.
func NewReadHandler(targets []topology.Endpoint, unreachable int, cl topology.ConsistencyLevel, keyspace string, blockFor int, timeout time.Duration, opts ...Option) *Handler {
	h := newHandler(len(targets), unreachable, cl, keyspace, blockFor, timeout, opts...)
	h.isRead = true
	return h
}

func newHandler(totalTargets, unreachable int, cl topology.ConsistencyLevel, keyspace string, blockFor int, timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		keyspace:     keyspace,
		consistency:  cl,
		totalTargets: totalTargets,
		blockFor:     blockFor,
		unreachable:  unreachable,
		received:     xsync.NewMapOf[topology.Endpoint, struct{}](),
		failed:       xsync.NewMapOf[topology.Endpoint, struct{}](),
		start:        time.Now(),
		timeout:      timeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AssureSufficientLiveNodes fails fast with Unavailable when liveTargets is
// fewer than blockFor, before any message is sent (spec.md §4.B).
func (h *Handler) AssureSufficientLiveNodes(liveTargets int) error {
	if liveTargets < h.blockFor {
		return coordinaterr.Unavailable(h.consistency, liveTargets, h.blockFor)
	}
	return nil
}

// OnResponse records a successful acknowledgement from a sender. It is
// idempotent per sender (spec.md §8 invariant 6) and triggers the success
// transition exactly once, when the received counter first crosses
// blockFor.
func (h *Handler) OnResponse(from topology.Endpoint) {
	if _, loaded := h.received.LoadOrStore(from, struct{}{}); loaded {
		return
	}

	if h.onReceive != nil {
		h.onReceive(from)
	}

	h.mu.Lock()
	h.receivedCount++
	count := h.receivedCount
	h.mu.Unlock()

	h.maybeSatisfyIdeal(count)

	if count >= h.blockFor {
		h.complete(nil)
	}
}

// OnFailure records an explicit failure response from a sender (or a
// preemptively-known-unreachable target). It is idempotent per sender and
// triggers the failure transition once failed+unreachable exceeds the
// number of targets that could still succeed.
func (h *Handler) OnFailure(from topology.Endpoint) {
	if _, loaded := h.failed.LoadOrStore(from, struct{}{}); loaded {
		return
	}

	h.mu.Lock()
	h.failedCount++
	failedCount := h.failedCount
	h.mu.Unlock()

	if failedCount+h.unreachable > h.totalTargets-h.blockFor {
		h.complete(h.failureError(failedCount))
	}
}

func (h *Handler) failureError(failedCount int) error {
	h.mu.Lock()
	received := h.receivedCount
	h.mu.Unlock()

	if h.isRead {
		return coordinaterr.ReadFailure(h.consistency, received, h.blockFor, failedCount, h.dataPresent)
	}
	return coordinaterr.WriteFailure(h.writeType, h.consistency, received, h.blockFor, failedCount)
}

func (h *Handler) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
		if h.onTerminal != nil {
			h.onTerminal(err)
		}
	})
}

// Await blocks until the handler completes, returning nil on success or a
// *coordinaterr.CoordinatorError on write/read timeout or failure.
// Cancellation is not propagated to outstanding messages: stragglers'
// responses still land on OnResponse/OnFailure and are simply dropped,
// since both are idempotent and the handler has already completed.
func (h *Handler) Await() error {
	deadline := h.start.Add(h.timeout)
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return h.timeoutError()
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.err
	case <-timer.C:
		h.complete(h.timeoutError())
		return h.timeoutError()
	}
}

func (h *Handler) timeoutError() error {
	h.mu.Lock()
	received := h.receivedCount
	h.mu.Unlock()

	if h.isRead {
		return coordinaterr.ReadTimeout(h.consistency, received, h.blockFor, h.dataPresent)
	}
	return coordinaterr.WriteTimeout(h.writeType, h.consistency, received, h.blockFor)
}

// SetDataPresent records whether any replica reported data existed for the
// key, distinguishing "missed digest quorum" from "missed data replica" in
// a subsequent ReadTimeout/ReadFailure (spec.md §7).
func (h *Handler) SetDataPresent(present bool) {
	h.mu.Lock()
	h.dataPresent = present
	h.mu.Unlock()
}

// Received returns the number of distinct senders that have acknowledged so far.
func (h *Handler) Received() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.receivedCount
}

// Done reports whether the handler has already reached a terminal state
// (success or failure), without blocking. Callers that fire extra work
// speculatively use this to skip it once it can no longer matter.
func (h *Handler) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// WatchIdealConsistency registers a fire-and-forget callback invoked the
// first time the received count reaches idealBlockFor, independent of
// whether the handler itself has already completed at the weaker
// client-facing consistency level. This is off by default; it exists
// purely to let an operator measure how often a stronger CL would also
// have succeeded (SPEC_FULL §4.4).
func (h *Handler) WatchIdealConsistency(idealBlockFor int, onReached func()) {
	h.idealMu.Lock()
	h.idealBlock = idealBlockFor
	h.idealOnReach = onReached
	h.idealDone = false
	h.idealMu.Unlock()
}

func (h *Handler) maybeSatisfyIdeal(receivedCount int) {
	h.idealMu.Lock()
	defer h.idealMu.Unlock()
	if h.idealOnReach == nil || h.idealDone || h.idealBlock == 0 {
		return
	}
	if receivedCount >= h.idealBlock {
		h.idealDone = true
		go h.idealOnReach()
	}
}
