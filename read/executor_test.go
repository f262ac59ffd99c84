package read

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/local"
	"github.com/latticedb/coordinator/topology"
)

func newTestEngine() storage.Engine {
	return local.NewLocalEngine(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func newReadStage() *stage.Pool {
	return stage.New("read", 8, time.Second, nil)
}

// remoteReader registers endpoint behind f, answering read commands from fn
// (after delay, if set) and recording every VerbMutation it receives.
func remoteReader(f *messaging.Fake, endpoint topology.Endpoint, fn func() Result, mutations *atomic.Int64) {
	f.RegisterNode(endpoint, func(verb messaging.Verb, payload []byte, _ topology.Endpoint) (messaging.Response, error) {
		switch verb {
		case messaging.VerbReadCommand:
			body, _ := json.Marshal(fn())
			return messaging.Response{Ok: true, Payload: body}, nil
		case messaging.VerbMutation:
			if mutations != nil {
				mutations.Add(1)
			}
			return messaging.Response{Ok: true}, nil
		default:
			return messaging.Response{Ok: false}, nil
		}
	})
}

func newTestCluster(t *testing.T, keys ...string) (*topology.Memory, *topology.Resolver, *messaging.Fake) {
	t.Helper()
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	for _, k := range keys {
		mem.SetNatural("ks", k, []topology.Endpoint{"n1", "n2", "n3"})
	}
	mem.SetReplicationFactor("ks", 3)

	f := messaging.NewFake("coordinator")
	resolver := topology.NewResolver(mem, mem, mem)
	return mem, resolver, f
}

func TestReadQuorumSuccessReturnsAgreeingData(t *testing.T) {
	_, resolver, f := newTestCluster(t, "k1")
	remoteReader(f, "n1", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)
	remoteReader(f, "n2", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)

	e := New("coordinator", resolver, newTestEngine(), f, newReadStage(), nil)

	res, err := e.Read(Command{Keyspace: "ks", Key: "k1", Table: "tbl"}, topology.CLQuorum, time.Second)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "v1", string(res.Value))
}

func TestReadDigestMismatchRepairsByTimestamp(t *testing.T) {
	_, resolver, f := newTestCluster(t, "k1")
	var n1Mutations, n2Mutations atomic.Int64
	remoteReader(f, "n1", func() Result { return Result{Value: []byte("old"), Timestamp: 5, Found: true} }, &n1Mutations)
	remoteReader(f, "n2", func() Result { return Result{Value: []byte("new"), Timestamp: 10, Found: true} }, &n2Mutations)

	e := New("coordinator", resolver, newTestEngine(), f, newReadStage(), nil)
	var attempted, repaired atomic.Int64
	e.OnReadRepair(func() { attempted.Add(1) }, func() { repaired.Add(1) })

	res, err := e.Read(Command{Keyspace: "ks", Key: "k1", Table: "tbl"}, topology.CLQuorum, time.Second)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "new", string(res.Value), "reconciliation must keep the higher-timestamp value")
	require.Equal(t, int64(1), attempted.Load())

	require.Eventually(t, func() bool { return repaired.Load() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return n1Mutations.Load() == 1 }, time.Second, time.Millisecond,
		"the stale replica must receive a repair write-back")
	require.Equal(t, int64(0), n2Mutations.Load(), "the winning replica needs no repair")
}

func TestReadSpeculativeRetryFiresWhenDigestReplicaIsSlow(t *testing.T) {
	_, resolver, f := newTestCluster(t, "k1")
	remoteReader(f, "n1", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)
	f.SetDelay("n2", 250*time.Millisecond)
	remoteReader(f, "n2", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)
	var specHits atomic.Int64
	remoteReader(f, "n3", func() Result { specHits.Add(1); return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)

	latency := NewLatencyTracker(100)
	latency.Update("tbl", 50*time.Millisecond)
	require.Greater(t, latency.SpeculativeThreshold("tbl"), time.Duration(0))

	e := New("coordinator", resolver, newTestEngine(), f, newReadStage(), latency)

	res, err := e.Read(Command{Keyspace: "ks", Key: "k1", Table: "tbl"}, topology.CLQuorum, 150*time.Millisecond)
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, int64(1), specHits.Load(),
		"the speculative fetch must actually fire once the digest replica outlasts the per-table threshold")
}

func TestReadSpeculativeRetrySkippedWhenQuorumAlreadyMet(t *testing.T) {
	_, resolver, f := newTestCluster(t, "k1")
	remoteReader(f, "n1", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)
	remoteReader(f, "n2", func() Result { return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)
	var specHits atomic.Int64
	remoteReader(f, "n3", func() Result { specHits.Add(1); return Result{Value: []byte("v1"), Timestamp: 10, Found: true} }, nil)

	latency := NewLatencyTracker(100)
	latency.Update("tbl", 30*time.Millisecond)

	e := New("coordinator", resolver, newTestEngine(), f, newReadStage(), latency)

	res, err := e.Read(Command{Keyspace: "ks", Key: "k1", Table: "tbl"}, topology.CLQuorum, time.Second)
	require.NoError(t, err)
	require.True(t, res.Found)

	require.Never(t, func() bool { return specHits.Load() > 0 }, 150*time.Millisecond, 5*time.Millisecond,
		"a handler that already completed must not be speculatively fetched")
}

func TestReadManyAppliesGroupLimitAcrossPartitions(t *testing.T) {
	_, resolver, f := newTestCluster(t, "k1", "k2", "k3")
	remoteReader(f, "n1", func() Result { return Result{Value: []byte("v1"), Timestamp: 1, Found: true} }, nil)
	remoteReader(f, "n2", func() Result { return Result{Value: []byte("v1"), Timestamp: 1, Found: true} }, nil)

	e := New("coordinator", resolver, newTestEngine(), f, newReadStage(), nil)

	cmds := []Command{
		{Keyspace: "ks", Key: "k1", Table: "tbl"},
		{Keyspace: "ks", Key: "k2", Table: "tbl"},
		{Keyspace: "ks", Key: "k3", Table: "tbl"},
	}
	out, err := e.ReadMany(cmds, topology.CLQuorum, time.Second, 2)
	require.NoError(t, err)
	require.Len(t, out, 2, "the group limit caps the combined rows across all partitions")
	require.Equal(t, "k1", out[0].Key)
	require.Equal(t, "k2", out[1].Key)
}
