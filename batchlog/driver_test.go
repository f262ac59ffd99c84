package batchlog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/local"
	"github.com/latticedb/coordinator/topology"
	"github.com/latticedb/coordinator/write"
)

func newEngine() storage.Engine {
	return local.NewLocalEngine(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func newCluster(t *testing.T) (topology.Endpoint, *topology.Resolver, *messaging.Fake, *write.Dispatcher, *MemStore) {
	t.Helper()
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	mem.SetNatural("ks", "k1", []topology.Endpoint{"n1", "n2", "n3"})
	mem.SetReplicationFactor("ks", 3)

	f := messaging.NewFake("n1")
	f.RegisterNode("n2", func(verb messaging.Verb, payload []byte, _ topology.Endpoint) (messaging.Response, error) {
		return messaging.Response{Ok: true}, nil
	})
	f.RegisterNode("n3", func(verb messaging.Verb, payload []byte, _ topology.Endpoint) (messaging.Response, error) {
		return messaging.Response{Ok: true}, nil
	})

	resolver := topology.NewResolver(mem, mem, mem)
	engine := newEngine()
	submitter := hints.NewSubmitter(&noopHintStore{}, noopGCGrace{}, mem, mem, 100, time.Hour)
	mutStage := stage.New("mutation", 8, time.Second, nil)
	ctrStage := stage.New("counter-mutation", 8, time.Second, nil)
	dispatcher := write.New("n1", resolver, engine, f, submitter, mutStage, ctrStage)

	return "n1", resolver, f, dispatcher, NewMemStore()
}

type noopHintStore struct{}

func (noopHintStore) HintFor(m hints.Mutation, _ time.Time, _ time.Duration, _ uuid.UUID) (hints.Mutation, error) {
	return m, nil
}
func (noopHintStore) CalculateHintTTL(hints.Mutation) time.Duration { return time.Hour }
func (noopHintStore) Store(uuid.UUID, hints.Mutation) error         { return nil }

type noopGCGrace struct{}

func (noopGCGrace) GCGraceSeconds(string) uint64 { return 3600 }

func TestExecuteAtomicSucceedsAndDeletesEntry(t *testing.T) {
	local, resolver, f, dispatcher, store := newCluster(t)
	driver := New(local, resolver, f, dispatcher, store, time.Second, time.Second)

	batch := Batch{
		ID:       uuid.New(),
		Keyspace: "ks",
		Entries: []Entry{{
			Mutation: write.Mutation{Keyspace: "ks", Key: "k1", Op: write.OpApply, Value: []byte("v")},
			Plan: write.Plan{
				Natural:     []topology.Endpoint{"n1", "n2", "n3"},
				LocalDC:     "dc1",
				Consistency: topology.CLQuorum,
				WriteType:   topology.WriteTypeBatch,
				BlockFor:    2,
			},
		}},
	}

	err := driver.ExecuteAtomic(batch, topology.CLQuorum, "dc1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, stillThere := store.Rows()[batch.ID]
		return !stillThere
	}, time.Second, 10*time.Millisecond)
}

func TestSelectEndpointsPrefersDifferentRack(t *testing.T) {
	local, resolver, _, _, _ := newCluster(t)
	driver := New(local, resolver, nil, nil, NewMemStore(), time.Second, time.Second)

	endpoints, err := driver.selectEndpoints("dc1", topology.CLQuorum)
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	require.Contains(t, endpoints, topology.Endpoint("n2"))
}
