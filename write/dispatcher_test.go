package write

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/local"
	"github.com/latticedb/coordinator/topology"
)

type fakeHintStore struct {
	stored map[uuid.UUID][]hints.Mutation
}

func (f *fakeHintStore) HintFor(m hints.Mutation, _ time.Time, _ time.Duration, _ uuid.UUID) (hints.Mutation, error) {
	return m, nil
}
func (f *fakeHintStore) CalculateHintTTL(hints.Mutation) time.Duration { return time.Hour }
func (f *fakeHintStore) Store(hostID uuid.UUID, hint hints.Mutation) error {
	f.stored[hostID] = append(f.stored[hostID], hint)
	return nil
}

type fakeGCGrace struct{}

func (fakeGCGrace) GCGraceSeconds(string) uint64 { return 3600 }

func newMapleEngine() storage.Engine {
	return local.NewLocalEngine(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func newTestDispatcher(local topology.Endpoint, mem *topology.Memory, f *messaging.Fake, store *fakeHintStore) (*Dispatcher, storage.Engine) {
	engine := newMapleEngine()
	resolver := topology.NewResolver(mem, mem, mem)
	submitter := hints.NewSubmitter(store, fakeGCGrace{}, mem, mem, 100, time.Hour)
	mutationStage := stage.New("mutation", 8, time.Second, nil)
	counterStage := stage.New("counter-mutation", 8, time.Second, nil)
	return New(local, resolver, engine, f, submitter, mutationStage, counterStage), engine
}

func replicaHandler(ok bool) messaging.HandlerFunc {
	return func(verb messaging.Verb, payload []byte, from topology.Endpoint) (messaging.Response, error) {
		return messaging.Response{Ok: ok}, nil
	}
}

func TestDispatchLocalOnlySucceeds(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("self", "dc1", "r1", true)

	f := messaging.NewFake("self")
	store := &fakeHintStore{stored: make(map[uuid.UUID][]hints.Mutation)}
	d, _ := newTestDispatcher("self", mem, f, store)

	mutation := Mutation{Keyspace: "ks", Key: "k", Op: OpApply, Value: []byte("v"), Timestamp: 1}
	plan := Plan{Natural: []topology.Endpoint{"self"}, LocalDC: "dc1", Consistency: topology.CLOne, WriteType: topology.WriteTypeSimple, BlockFor: 1}

	if err := d.Dispatch(mutation, plan, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatchQuorumWithOneDeadReplicaHints(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("self", "dc1", "r1", true)
	mem.SetEndpoint("b", "dc1", "r2", true)
	mem.SetEndpoint("c", "dc1", "r3", false)
	mem.SetDowntime("c", 1000)

	f := messaging.NewFake("self")
	f.RegisterNode("b", replicaHandler(true))

	store := &fakeHintStore{stored: make(map[uuid.UUID][]hints.Mutation)}
	d, _ := newTestDispatcher("self", mem, f, store)

	mutation := Mutation{Keyspace: "ks", Key: "k", Op: OpApply, Value: []byte("v"), Timestamp: 1, Tables: []string{"t1"}}
	plan := Plan{
		Natural:     []topology.Endpoint{"self", "b", "c"},
		LocalDC:     "dc1",
		Consistency: topology.CLQuorum,
		WriteType:   topology.WriteTypeSimple,
		BlockFor:    2,
	}

	if err := d.Dispatch(mutation, plan, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.stored) != 1 {
		t.Fatalf("expected exactly one endpoint to receive a hint, got %d", len(store.stored))
	}
}

func TestDispatchUnavailableWhenUnderreplicated(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("self", "dc1", "r1", true)
	mem.SetEndpoint("b", "dc1", "r2", false)
	mem.SetEndpoint("c", "dc1", "r3", false)

	f := messaging.NewFake("self")
	store := &fakeHintStore{stored: make(map[uuid.UUID][]hints.Mutation)}
	d, _ := newTestDispatcher("self", mem, f, store)

	mutation := Mutation{Keyspace: "ks", Key: "k", Op: OpApply, Value: []byte("v"), Timestamp: 1}
	plan := Plan{
		Natural:     []topology.Endpoint{"self", "b", "c"},
		LocalDC:     "dc1",
		Consistency: topology.CLQuorum,
		WriteType:   topology.WriteTypeSimple,
		BlockFor:    2,
	}

	err := d.Dispatch(mutation, plan, time.Second)
	if err == nil {
		t.Fatal("expected an unavailable error")
	}
	if len(store.stored) != 0 {
		t.Errorf("expected no hints to be written before any message is sent")
	}
}

func TestDispatchRemoteDCBundlesBehindOneRelay(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("self", "dc1", "r1", true)
	mem.SetEndpoint("r1", "dc2", "r1", true)
	mem.SetEndpoint("r2", "dc2", "r2", true)

	f := messaging.NewFake("self")

	var relayCalls atomic.Int32
	f.RegisterNode("r1", func(verb messaging.Verb, payload []byte, from topology.Endpoint) (messaging.Response, error) {
		relayCalls.Add(1)
		return messaging.Response{Ok: true}, nil
	})

	store := &fakeHintStore{stored: make(map[uuid.UUID][]hints.Mutation)}
	d, _ := newTestDispatcher("self", mem, f, store)

	// r1 is the dc2 relay and r2 is only named in its forwarding header; no
	// forwarded ack from r2 arrives here, and CL=ONE is satisfied by the
	// local apply.
	mutation := Mutation{Keyspace: "ks", Key: "k", Op: OpApply, Value: []byte("v"), Timestamp: 1}
	plan := Plan{
		Natural:     []topology.Endpoint{"self", "r1", "r2"},
		LocalDC:     "dc1",
		Consistency: topology.CLOne,
		WriteType:   topology.WriteTypeSimple,
		BlockFor:    1,
	}

	if err := d.Dispatch(mutation, plan, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for relayCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := relayCalls.Load(); got != 1 {
		t.Errorf("expected exactly one message sent to the relay, got %d", got)
	}
}
