package read

import (
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/quorum"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/topology"
)

// Command is a single-partition read request (spec.md §4.E).
type Command struct {
	Keyspace string
	Key      string
	Table    string
}

// Result is the data the Read Executor resolved for a Command.
type Result struct {
	Value     []byte
	Timestamp uint64
	Found     bool
}

func (r Result) digest() uint64 {
	buf := make([]byte, 9+len(r.Value))
	binary.BigEndian.PutUint64(buf, r.Timestamp)
	if r.Found {
		buf[8] = 1
	}
	copy(buf[9:], r.Value)
	return xxhash.Sum64(buf)
}

// Executor is the Read Executor.
type Executor struct {
	local     topology.Endpoint
	resolver  *topology.Resolver
	engine    storage.Engine
	messenger messaging.Messenger
	readStage *stage.Pool
	latency   *LatencyTracker

	readRepairAttempted        func()
	readRepairRepairedBlocking func()
}

// New constructs an Executor. latency may be nil, which disables
// speculative retry entirely.
func New(local topology.Endpoint, resolver *topology.Resolver, engine storage.Engine, messenger messaging.Messenger, readStage *stage.Pool, latency *LatencyTracker) *Executor {
	return &Executor{
		local:     local,
		resolver:  resolver,
		engine:    engine,
		messenger: messenger,
		readStage: readStage,
		latency:   latency,
	}
}

// OnReadRepair registers counters for spec.md §6's MBean surface
// (readRepairAttempted, readRepairRepairedBlocking).
func (e *Executor) OnReadRepair(attempted, blocking func()) {
	e.readRepairAttempted = attempted
	e.readRepairRepairedBlocking = blocking
}

// resultSet collects per-endpoint Results under a single lock, shared
// between the data fetch and the digest fetches of one Read call.
type resultSet struct {
	mu   sync.Mutex
	vals map[topology.Endpoint]Result
}

func newResultSet() *resultSet { return &resultSet{vals: make(map[topology.Endpoint]Result)} }

func (s *resultSet) store(endpoint topology.Endpoint, r Result) {
	s.mu.Lock()
	s.vals[endpoint] = r
	s.mu.Unlock()
}

func (s *resultSet) load(endpoint topology.Endpoint) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.vals[endpoint]
	return r, ok
}

func (s *resultSet) snapshot() map[topology.Endpoint]Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[topology.Endpoint]Result, len(s.vals))
	for k, v := range s.vals {
		out[k] = v
	}
	return out
}

// Read performs spec.md §4.E steps 1-3 for a single partition key.
func (e *Executor) Read(cmd Command, cl topology.ConsistencyLevel, timeout time.Duration) (Result, error) {
	natural, pending := e.resolver.Resolve(cmd.Keyspace, cmd.Key)
	all := append(append([]topology.Endpoint(nil), natural...), pending...)
	alive := e.resolver.FilterAlive(all)
	sorted := e.resolver.SortByProximity(e.local, alive)

	blockFor := e.resolver.Placement.BlockFor(cl, cmd.Keyspace)
	if len(sorted) < blockFor {
		return Result{}, coordinaterr.Unavailable(cl, len(sorted), blockFor)
	}

	contactCount := blockFor
	specTarget := topology.Endpoint("")
	if e.latency != nil && len(sorted) > blockFor {
		specTarget = sorted[blockFor]
		contactCount = blockFor + 1
	}
	targets := sorted[:contactCount]
	unreachable := len(all) - len(alive)

	results := newResultSet()
	h := quorum.NewReadHandler(targets, unreachable, cl, cmd.Keyspace, blockFor, timeout)

	dataTarget := targets[0]
	digestTargets := targets[1:blockFor]

	e.fetch(cmd, dataTarget, results, h)
	for _, dt := range digestTargets {
		e.fetch(cmd, dt, results, h)
	}

	if specTarget != "" {
		if threshold := e.latency.SpeculativeThreshold(cmd.Table); threshold > 0 {
			e.scheduleSpeculative(cmd, specTarget, results, h, threshold)
		}
	}

	start := time.Now()
	err := h.Await()
	if e.latency != nil {
		e.latency.Update(cmd.Table, time.Since(start))
	}
	if err != nil {
		return Result{}, err
	}

	dataResult, hasData := results.load(dataTarget)
	if !hasData {
		return Result{}, coordinaterr.ReadFailure(cl, h.Received(), blockFor, 0, false)
	}

	mismatched := false
	for _, dt := range digestTargets {
		if r, ok := results.load(dt); ok && r.digest() != dataResult.digest() {
			mismatched = true
			break
		}
	}
	if !mismatched {
		return dataResult, nil
	}

	if e.readRepairAttempted != nil {
		e.readRepairAttempted()
	}
	return e.repair(cmd, targets, results)
}

// KeyedResult pairs a Result with the partition key it came from, so a
// ReadMany caller can tell which partition each row in the limited group
// belongs to.
type KeyedResult struct {
	Key    string
	Result Result
}

// ReadMany is spec.md §4.E's multi-partition path: each key reuses the
// single-partition Read independently and in parallel, then the group
// limit is applied across the combined matches in cmds order rather than
// per partition. A non-positive limit means unlimited.
func (e *Executor) ReadMany(cmds []Command, cl topology.ConsistencyLevel, timeout time.Duration, limit int) ([]KeyedResult, error) {
	results := make([]Result, len(cmds))
	errs := make([]error, len(cmds))

	var wg sync.WaitGroup
	for i, cmd := range cmds {
		i, cmd := i, cmd
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.Read(cmd, cl, timeout)
			results[i] = r
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make([]KeyedResult, 0, len(cmds))
	for i, cmd := range cmds {
		if !results[i].Found {
			continue
		}
		out = append(out, KeyedResult{Key: cmd.Key, Result: results[i]})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// scheduleSpeculative fires an extra data request to a further replica
// after threshold elapses, unless the handler has already completed.
func (e *Executor) scheduleSpeculative(cmd Command, target topology.Endpoint, results *resultSet, h *quorum.Handler, threshold time.Duration) {
	go func() {
		timer := time.NewTimer(threshold)
		defer timer.Stop()
		<-timer.C
		if h.Done() {
			return
		}
		e.fetch(cmd, target, results, h)
	}()
}

func (e *Executor) fetch(cmd Command, target topology.Endpoint, results *resultSet, h *quorum.Handler) {
	if target == e.local {
		e.readStage.Submit(func() {
			results.store(target, e.readLocal(cmd.Key))
			h.OnResponse(target)
		})
		return
	}
	payload, _ := json.Marshal(cmd)
	_, err := e.messenger.SendRRWithFailure(messaging.VerbReadCommand, payload, target,
		func(from topology.Endpoint, resp messaging.Response) {
			if !resp.Ok {
				h.OnFailure(from)
				return
			}
			var res Result
			if json.Unmarshal(resp.Payload, &res) == nil {
				results.store(from, res)
			}
			h.OnResponse(from)
		},
		func(from topology.Endpoint, _ string) { h.OnFailure(from) },
	)
	if err != nil {
		e.messenger.IncrementDroppedMessages(messaging.VerbReadCommand)
		h.OnFailure(target)
	}
}

func (e *Executor) readLocal(key string) Result {
	value, timestamp, loaded, err := e.engine.ExecuteLocally(key)
	if err != nil {
		return Result{}
	}
	return Result{Value: value, Timestamp: timestamp, Found: loaded}
}

// repair implements spec.md §4.E step 2's digest-mismatch path: re-read all
// originally contacted replicas at full data, reconcile by timestamp, and
// write back to replicas that were behind. The reconciled read itself
// blocks the caller; the write-back does not.
func (e *Executor) repair(cmd Command, targets []topology.Endpoint, partial *resultSet) (Result, error) {
	full := newResultSet()
	if r, ok := partial.load(targets[0]); ok {
		full.store(targets[0], r)
	}

	var wg sync.WaitGroup
	for _, t := range targets {
		if _, ok := full.load(t); ok {
			continue
		}
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fetchBlocking(cmd, t, full)
		}()
	}
	wg.Wait()

	snapshot := full.snapshot()
	var winner Result
	for _, r := range snapshot {
		if r.Found && (!winner.Found || r.Timestamp > winner.Timestamp) {
			winner = r
		}
	}

	repairedAny := false
	for endpoint, r := range snapshot {
		if r.digest() != winner.digest() {
			repairedAny = true
			go e.repairReplica(cmd, endpoint, winner)
		}
	}
	if repairedAny && e.readRepairRepairedBlocking != nil {
		e.readRepairRepairedBlocking()
	}

	return winner, nil
}

// fetchBlocking performs a direct full-data read for repair, bypassing the
// response-collector machinery since repair reads are synchronous by
// construction (spec.md §4.E: "issue a full-data read to all originally
// contacted replicas at CL=all").
func (e *Executor) fetchBlocking(cmd Command, target topology.Endpoint, results *resultSet) {
	if target == e.local {
		results.store(target, e.readLocal(cmd.Key))
		return
	}
	done := make(chan struct{})
	payload, _ := json.Marshal(cmd)
	_, err := e.messenger.SendRRWithFailure(messaging.VerbReadCommand, payload, target,
		func(from topology.Endpoint, resp messaging.Response) {
			defer close(done)
			if !resp.Ok {
				return
			}
			var res Result
			if json.Unmarshal(resp.Payload, &res) == nil {
				results.store(from, res)
			}
		},
		func(topology.Endpoint, string) { close(done) },
	)
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

// repairWireOp mirrors write.Op's iota ordering (OpApply=0, OpDelete=3)
// without importing write, so a remote repair write decodes through the
// exact same VerbMutation handler a normal write dispatch does.
const (
	repairWireOpApply  = 0
	repairWireOpDelete = 3
)

// repairWireMutation matches the JSON shape of write.wireMutation{Mutation
// write.Mutation} field for field, so rpc/server's single VerbMutation
// handler applies a repair write the same way it applies any other.
type repairWireMutation struct {
	Mutation struct {
		Keyspace  string
		Key       string
		Op        int
		Value     []byte
		Timestamp uint64
		ExpireIn  uint64
		DeleteIn  uint64
		Tables    []string
	}
}

func (e *Executor) repairReplica(cmd Command, endpoint topology.Endpoint, winner Result) {
	if endpoint == e.local {
		_ = applyRepair(e.engine, cmd.Key, winner)
		return
	}
	var wire repairWireMutation
	wire.Mutation.Keyspace = cmd.Keyspace
	wire.Mutation.Key = cmd.Key
	wire.Mutation.Timestamp = winner.Timestamp
	if winner.Found {
		wire.Mutation.Op = repairWireOpApply
		wire.Mutation.Value = winner.Value
	} else {
		wire.Mutation.Op = repairWireOpDelete
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return
	}
	_ = e.messenger.SendOneWay(messaging.VerbMutation, payload, endpoint)
}

func applyRepair(engine storage.Engine, key string, winner Result) error {
	if !winner.Found {
		return engine.Delete(key, winner.Timestamp)
	}
	return engine.Apply(key, winner.Value, winner.Timestamp, 0, 0)
}
