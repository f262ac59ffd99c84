package paxos

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/local"
	"github.com/latticedb/coordinator/topology"
)

func newEngine() storage.Engine {
	return local.NewLocalEngine(func() db.KVDB { return maple.NewMapleDB(nil) })
}

// remoteNode registers endpoint's acceptor behind f, answering prepare/
// propose/commit/read requests exactly the way rpc/server's adapter would
// for a real wire connection.
func remoteNode(f *messaging.Fake, endpoint topology.Endpoint, acc *Acceptor) {
	f.RegisterNode(endpoint, func(verb messaging.Verb, payload []byte, _ topology.Endpoint) (messaging.Response, error) {
		switch verb {
		case messaging.VerbPrepareCommit:
			req, err := decode[prepareRequest](payload)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			promised, state, err := acc.Prepare(req.Keyspace, req.Key, req.Ballot)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			body, _ := encode(prepareResponse{Promised: promised, State: state})
			return messaging.Response{Ok: true, Payload: body}, nil
		case messaging.VerbProposeCommit:
			req, err := decode[proposeRequest](payload)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			accepted, promise, err := acc.Propose(req.Commit)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			body, _ := encode(proposeResponse{Accepted: accepted, CurrentPromise: promise})
			return messaging.Response{Ok: true, Payload: body}, nil
		case messaging.VerbCommitCommit:
			req, err := decode[commitRequest](payload)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			if err := acc.Commit(req.Commit); err != nil {
				return messaging.Response{Ok: false}, err
			}
			return messaging.Response{Ok: true}, nil
		case messaging.VerbReadCommand:
			cmd, err := decode[readCommand](payload)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			value, ts, found, err := acc.Read(cmd.Key)
			if err != nil {
				return messaging.Response{Ok: false}, err
			}
			body, _ := encode(Observed{Value: value, Timestamp: ts, Found: found})
			return messaging.Response{Ok: true, Payload: body}, nil
		default:
			return messaging.Response{Ok: false}, nil
		}
	})
}

func newCluster(t *testing.T) (local topology.Endpoint, resolver *topology.Resolver, f *messaging.Fake, acceptors map[topology.Endpoint]*Acceptor) {
	t.Helper()
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	mem.SetNatural("ks", "k1", []topology.Endpoint{"n1", "n2", "n3"})
	mem.SetReplicationFactor("ks", 3)

	f = messaging.NewFake("n1")
	acceptors = map[topology.Endpoint]*Acceptor{
		"n1": NewAcceptor(NewMemStore(), newEngine()),
		"n2": NewAcceptor(NewMemStore(), newEngine()),
		"n3": NewAcceptor(NewMemStore(), newEngine()),
	}
	remoteNode(f, "n2", acceptors["n2"])
	remoteNode(f, "n3", acceptors["n3"])

	resolver = topology.NewResolver(mem, mem, mem)
	return "n1", resolver, f, acceptors
}

func TestCasAppliesOnEmptyKey(t *testing.T) {
	local, resolver, f, acceptors := newCluster(t)
	driver := New(local, resolver, f, acceptors["n1"], ballot.NewGenerator(uuid.New()), 5*time.Second, time.Second, time.Second)

	res, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition: func(cur Observed) (bool, error) {
			return !cur.Found, nil
		},
		BuildUpdate: func(Observed) ([]byte, error) {
			return []byte("hello"), nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	_, ts, found, err := acceptors["n1"].Read("k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Greater(t, ts, uint64(0))
}

func TestCasConditionFailsWhenKeyExists(t *testing.T) {
	local, resolver, f, acceptors := newCluster(t)
	gen := ballot.NewGenerator(uuid.New())
	driver := New(local, resolver, f, acceptors["n1"], gen, 5*time.Second, time.Second, time.Second)

	_, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition:      func(Observed) (bool, error) { return true, nil },
		BuildUpdate:       func(Observed) ([]byte, error) { return []byte("v1"), nil },
	})
	require.NoError(t, err)

	res, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition:      func(cur Observed) (bool, error) { return !cur.Found, nil },
		BuildUpdate:       func(Observed) ([]byte, error) { return []byte("v2"), nil },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeConditionFailed, res.Outcome)
	require.True(t, res.Observed.Found)
}

func TestCasPreemptedRetriesAfterStalePromise(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	mem.SetNatural("ks", "k1", []topology.Endpoint{"n1", "n2", "n3"})
	mem.SetReplicationFactor("ks", 3)

	f := messaging.NewFake("n1")
	n1Acceptor := NewAcceptor(NewMemStore(), newEngine())
	n2Store := NewMemStore()
	n3Store := NewMemStore()
	remoteNode(f, "n2", NewAcceptor(n2Store, newEngine()))
	remoteNode(f, "n3", NewAcceptor(n3Store, newEngine()))

	gen := ballot.NewGenerator(uuid.New())
	// another proposer's promise, minted ahead of this driver's clock so the
	// driver's first ballot is lower and n2/n3 reject it.
	var ahead ballot.Ballot
	binary.BigEndian.PutUint64(ahead[:8], uint64(time.Now().Add(100*time.Millisecond).UnixMicro()))
	future := ballot.NewGenerator(uuid.New()).Next(ahead)
	require.NoError(t, n2Store.Save("ks", "k1", ReplicaState{PromisedBallot: future}))
	require.NoError(t, n3Store.Save("ks", "k1", ReplicaState{PromisedBallot: future}))

	resolver := topology.NewResolver(mem, mem, mem)
	contentionCount := 0
	driver := New("n1", resolver, f, n1Acceptor, gen, 5*time.Second, time.Second, time.Second,
		WithContentionMetric(func() { contentionCount++ }))

	res, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition:      func(Observed) (bool, error) { return true, nil },
		BuildUpdate:       func(Observed) ([]byte, error) { return []byte("v1"), nil },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	require.GreaterOrEqual(t, contentionCount, 1)
}

func TestCasIncompletePriorRepairsDanglingProposal(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	mem.SetNatural("ks", "k1", []topology.Endpoint{"n1", "n2", "n3"})
	mem.SetReplicationFactor("ks", 3)

	f := messaging.NewFake("n1")
	n1Acceptor := NewAcceptor(NewMemStore(), newEngine())
	n2Store := NewMemStore()
	remoteNode(f, "n2", NewAcceptor(n2Store, newEngine()))
	remoteNode(f, "n3", NewAcceptor(NewMemStore(), newEngine()))

	gen := ballot.NewGenerator(uuid.New())
	priorBallot := gen.Next(ballot.Zero)
	dangling := Commit{Ballot: priorBallot, Keyspace: "ks", Key: "k1", Update: []byte("dangling-value")}
	require.NoError(t, n2Store.Save("ks", "k1", ReplicaState{
		PromisedBallot: priorBallot,
		AcceptedCommit: dangling,
		HasAccepted:    true,
	}))

	resolver := topology.NewResolver(mem, mem, mem)
	driver := New("n1", resolver, f, n1Acceptor, gen, 5*time.Second, time.Second, time.Second)

	res, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition: func(cur Observed) (bool, error) {
			return cur.Found && string(cur.Value) == "dangling-value", nil
		},
		BuildUpdate: func(Observed) ([]byte, error) { return []byte("final-value"), nil },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	require.True(t, res.Observed.Found)
	require.Equal(t, "dangling-value", string(res.Observed.Value))
}

func TestCasMissingMRCRepairsStragglerThenSucceeds(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetEndpoint("n2", "dc1", "r2", true)
	mem.SetEndpoint("n3", "dc1", "r1", true)
	mem.SetNatural("ks", "k1", []topology.Endpoint{"n1", "n2", "n3"})
	mem.SetReplicationFactor("ks", 3)

	f := messaging.NewFake("n1")
	n1Store := NewMemStore()
	n1Engine := newEngine()
	n1Acceptor := NewAcceptor(n1Store, n1Engine)
	remoteNode(f, "n2", NewAcceptor(NewMemStore(), newEngine()))
	remoteNode(f, "n3", NewAcceptor(NewMemStore(), newEngine()))

	gen := ballot.NewGenerator(uuid.New())
	learned := gen.Next(ballot.Zero)
	committed := Commit{Ballot: learned, Keyspace: "ks", Key: "k1", Update: []byte("v0")}
	require.NoError(t, n1Engine.Apply("k1", []byte("v0"), learned.Micros(), 0, 0))
	require.NoError(t, n1Store.Save("ks", "k1", ReplicaState{PromisedBallot: learned, MostRecentCommit: committed}))

	resolver := topology.NewResolver(mem, mem, mem)
	driver := New("n1", resolver, f, n1Acceptor, gen, 5*time.Second, time.Second, time.Second)

	res, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition: func(cur Observed) (bool, error) {
			return cur.Found && string(cur.Value) == "v0", nil
		},
		BuildUpdate: func(Observed) ([]byte, error) { return []byte("v1"), nil },
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	require.True(t, res.Observed.Found)
	require.Equal(t, "v0", string(res.Observed.Value))
}

func TestCasUnavailableWithoutQuorum(t *testing.T) {
	local, resolver, f, acceptors := newCluster(t)
	mem := resolver.Placement.(*topology.Memory)
	mem.SetAlive("n2", false)
	mem.SetAlive("n3", false)

	driver := New(local, resolver, f, acceptors["n1"], ballot.NewGenerator(uuid.New()), 200*time.Millisecond, time.Second, time.Second)

	_, err := driver.Cas(CASRequest{
		Keyspace:          "ks",
		Key:               "k1",
		SerialConsistency: topology.CLSerial,
		CommitConsistency: topology.CLQuorum,
		Precondition:      func(Observed) (bool, error) { return true, nil },
		BuildUpdate:       func(Observed) ([]byte, error) { return []byte("v1"), nil },
	})
	require.Error(t, err)
}
