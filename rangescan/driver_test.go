package rangescan

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/read"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/storage/local"
	"github.com/latticedb/coordinator/topology"
)

func newEngine() storage.Engine {
	return local.NewLocalEngine(func() db.KVDB { return maple.NewMapleDB(nil) })
}

// fakeLister hands back a fixed key list for each piece, keyed by the
// piece's end token, which is all these tests need since the split points
// are constructed by the test itself.
type fakeLister struct {
	keys map[Token][]string
}

func (l *fakeLister) KeysInRange(_ string, r Range) []string {
	return l.keys[r.End]
}

// remoteStore answers VerbReadCommand for every node registered against it
// out of one shared key/value map, simulating RF=1 replicas that never
// disagree.
type remoteStore struct {
	values map[string][]byte
}

func (s *remoteStore) handler(_ messaging.Verb, payload []byte, _ topology.Endpoint) (messaging.Response, error) {
	var cmd read.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return messaging.Response{Ok: false}, err
	}
	value, found := s.values[cmd.Key]
	res := read.Result{Value: value, Timestamp: 1, Found: found}
	body, err := json.Marshal(res)
	if err != nil {
		return messaging.Response{Ok: false}, err
	}
	return messaging.Response{Ok: true, Payload: body}, nil
}

// buildEightRangeCluster sets up 8 tokens t1..t8, each owned by its own
// single-node replica set, so split+merge settles on exactly 8 pieces
// (spec.md §8 scenario S5).
func buildEightRangeCluster(t *testing.T, rowsPerRange int) (*Driver, Query) {
	t.Helper()
	mem := topology.NewMemory()
	mem.SetReplicationFactor("ks", 1)

	store := &remoteStore{values: make(map[string][]byte)}
	f := messaging.NewFake("coordinator")

	var tokens []string
	lister := &fakeLister{keys: make(map[Token][]string)}
	for i := 1; i <= 8; i++ {
		node := topology.Endpoint(fmt.Sprintf("n%d", i))
		tok := Token(fmt.Sprintf("t%d", i))
		mem.SetEndpoint(node, "dc1", fmt.Sprintf("r%d", i), true)
		mem.SetNatural("ks", string(tok), []topology.Endpoint{node})
		f.RegisterNode(node, store.handler)
		tokens = append(tokens, string(tok))

		var keys []string
		for j := 0; j < rowsPerRange; j++ {
			key := fmt.Sprintf("t%d-k%d", i, j)
			keys = append(keys, key)
			store.values[key] = []byte("v")
		}
		lister.keys[tok] = keys
	}
	mem.SetSortedTokens(tokens)

	resolver := topology.NewResolver(mem, mem, mem)
	engine := newEngine()
	executor := read.New("coordinator", resolver, engine, f, nil, nil)
	driver := New(resolver, lister, executor, time.Second)

	query := Query{
		Keyspace:        "ks",
		Table:           "t1",
		Range:           Range{Start: MinToken, End: "t8"},
		Limit:           100,
		Consistency:     topology.CLOne,
		ResultsPerRange: float64(rowsPerRange),
	}
	return driver, query
}

func TestSplitAndMergeKeepDisjointReplicaSetsSeparate(t *testing.T) {
	driver, _ := buildEightRangeCluster(t, 10)
	pieces := driver.mergePieces("ks", driver.split("ks", Range{Start: MinToken, End: "t8"}), topology.CLOne)
	require.Len(t, pieces, 8)
}

func TestMergeCollapsesSameReplicaSet(t *testing.T) {
	mem := topology.NewMemory()
	mem.SetEndpoint("n1", "dc1", "r1", true)
	mem.SetReplicationFactor("ks", 1)
	mem.SetNatural("ks", "t1", []topology.Endpoint{"n1"})
	mem.SetNatural("ks", "t2", []topology.Endpoint{"n1"})
	mem.SetSortedTokens([]string{"t1", "t2"})

	resolver := topology.NewResolver(mem, mem, mem)
	driver := New(resolver, &fakeLister{}, nil, time.Second)

	pieces := driver.mergePieces("ks", driver.split("ks", Range{Start: MinToken, End: "t2"}), topology.CLOne)
	require.Len(t, pieces, 1)
	require.Equal(t, Token("t2"), pieces[0].Range.End)
}

func TestInitialConcurrencyClampsToRangeCount(t *testing.T) {
	// spec.md §8 S5: limit=100, 8 ranges, ~10 rows/range -> c0 = ceil(100/9) = 12, clamped to 8.
	c := initialConcurrency(100, 10, defaultMargin, 8)
	require.Equal(t, 8, c)
}

func TestScanFetchesAllRowsAcrossAllRanges(t *testing.T) {
	driver, query := buildEightRangeCluster(t, 10)

	rows, err := driver.Scan(query)
	require.NoError(t, err)
	require.Len(t, rows, 80)
}

func TestScanRespectsLimit(t *testing.T) {
	driver, query := buildEightRangeCluster(t, 10)
	query.Limit = 25

	rows, err := driver.Scan(query)
	require.NoError(t, err)
	require.Len(t, rows, 25)
}

func TestNextConcurrencyQueriesAllRemainingOnZeroRows(t *testing.T) {
	require.Equal(t, 5, nextConcurrency(5, 0, 10))
}
