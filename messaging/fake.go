package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/latticedb/coordinator/topology"
)

// HandlerFunc is how a fake node answers an incoming message.
type HandlerFunc func(verb Verb, payload []byte, from topology.Endpoint) (Response, error)

// Fake is an in-memory Messenger that dispatches directly to registered
// HandlerFuncs instead of going over a socket, used by every driver
// package's tests (SPEC_FULL §2.4).
type Fake struct {
	self topology.Endpoint

	mu          sync.RWMutex
	nodes       map[topology.Endpoint]HandlerFunc
	versions    map[topology.Endpoint]int
	unreachable map[topology.Endpoint]bool
	delay       map[topology.Endpoint]time.Duration

	droppedMu sync.Mutex
	dropped   map[Verb]int64

	nextID atomic.Uint64
}

// NewFake creates an empty Fake messenger for the given self-endpoint.
func NewFake(self topology.Endpoint) *Fake {
	return &Fake{
		self:        self,
		nodes:       make(map[topology.Endpoint]HandlerFunc),
		versions:    make(map[topology.Endpoint]int),
		unreachable: make(map[topology.Endpoint]bool),
		delay:       make(map[topology.Endpoint]time.Duration),
		dropped:     make(map[Verb]int64),
	}
}

// RegisterNode installs the handler a remote endpoint answers messages
// with. Tests build a small cluster of Fakes, or a single Fake pretending
// to be several endpoints, by registering one handler per endpoint.
func (f *Fake) RegisterNode(endpoint topology.Endpoint, handler HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[endpoint] = handler
}

// SetUnreachable makes endpoint simulate a down node: every SendRR to it
// never calls back, so callers observe a timeout exactly as they would
// against a real down replica.
func (f *Fake) SetUnreachable(endpoint topology.Endpoint, unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[endpoint] = unreachable
}

// SetDelay simulates network latency to endpoint.
func (f *Fake) SetDelay(endpoint topology.Endpoint, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay[endpoint] = delay
}

// SetVersion configures the wire protocol version GetVersion reports for endpoint.
func (f *Fake) SetVersion(endpoint topology.Endpoint, version int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[endpoint] = version
}

func (f *Fake) isUnreachable(endpoint topology.Endpoint) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unreachable[endpoint]
}

func (f *Fake) delayFor(endpoint topology.Endpoint) time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.delay[endpoint]
}

func (f *Fake) handlerFor(endpoint topology.Endpoint) (HandlerFunc, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h, ok := f.nodes[endpoint]
	return h, ok
}

func (f *Fake) SendOneWay(verb Verb, payload []byte, to topology.Endpoint) error {
	if f.isUnreachable(to) {
		return nil
	}
	handler, ok := f.handlerFor(to)
	if !ok {
		return fmt.Errorf("messaging: no fake node registered for %s", to)
	}
	go func() {
		if d := f.delayFor(to); d > 0 {
			time.Sleep(d)
		}
		_, _ = handler(verb, payload, f.self)
	}()
	return nil
}

func (f *Fake) SendRR(verb Verb, payload []byte, to topology.Endpoint, cb Callback) (uint64, error) {
	return f.SendRRWithFailure(verb, payload, to, cb, nil)
}

func (f *Fake) SendRRWithFailure(verb Verb, payload []byte, to topology.Endpoint, cb Callback, onFailure FailureCallback) (uint64, error) {
	id := f.nextID.Add(1)

	if f.isUnreachable(to) {
		return id, nil
	}

	handler, ok := f.handlerFor(to)
	if !ok {
		return id, fmt.Errorf("messaging: no fake node registered for %s", to)
	}

	go func() {
		if d := f.delayFor(to); d > 0 {
			time.Sleep(d)
		}
		resp, err := handler(verb, payload, f.self)
		if err != nil {
			if onFailure != nil {
				onFailure(to, err.Error())
			}
			return
		}
		if !resp.Ok && onFailure != nil {
			onFailure(to, resp.Err)
			return
		}
		if cb != nil {
			cb(to, resp)
		}
	}()

	return id, nil
}

func (f *Fake) GetVersion(endpoint topology.Endpoint) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.versions[endpoint]; ok {
		return v
	}
	return 1
}

// AddCallback is a no-op registry entry in the fake: every test interaction
// goes through SendRR/SendRRWithFailure directly, so there is nothing to
// re-attach a callback to. It still returns a fresh id so callers that key
// state off it keep working.
func (f *Fake) AddCallback(_ Callback, _ Verb, _ topology.Endpoint, _ time.Duration, _ topology.ConsistencyLevel, _ bool) uint64 {
	return f.nextID.Add(1)
}

// DeliverForwardAck is a no-op in the fake: AddCallback never actually
// registers anything to resolve, since tests exercise the relay handler
// directly instead of routing a real forward loop through it.
func (f *Fake) DeliverForwardAck(uint64, Response) {}

func (f *Fake) IncrementDroppedMessages(verb Verb) {
	f.droppedMu.Lock()
	defer f.droppedMu.Unlock()
	f.dropped[verb]++
}

// DroppedMessages returns how many messages of verb were recorded dropped,
// used by tests asserting on the stage-queue drop bookkeeping.
func (f *Fake) DroppedMessages(verb Verb) int64 {
	f.droppedMu.Lock()
	defer f.droppedMu.Unlock()
	return f.dropped[verb]
}
