package systables

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/batchlog"
	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/paxos"
	"github.com/latticedb/coordinator/storage/db/engines/maple"
	"github.com/latticedb/coordinator/write"
)

func TestPaxosStoreRoundTrip(t *testing.T) {
	store := NewPaxosStore(maple.NewMapleDB(nil))

	empty, err := store.Load("ks", "k1")
	require.NoError(t, err)
	require.False(t, empty.HasAccepted)

	gen := ballot.NewGenerator(uuid.New())
	state := paxos.ReplicaState{PromisedBallot: gen.Next(ballot.Ballot{}), HasAccepted: true}
	require.NoError(t, store.Save("ks", "k1", state))

	got, err := store.Load("ks", "k1")
	require.NoError(t, err)
	require.True(t, got.HasAccepted)
	require.Equal(t, state.PromisedBallot, got.PromisedBallot)
}

func TestBatchlogStoreWriteAndDelete(t *testing.T) {
	store := NewBatchlogStore(maple.NewMapleDB(nil))
	id := uuid.New()
	batch := batchlog.Batch{
		ID:       id,
		Keyspace: "ks",
		Entries: []batchlog.Entry{
			{Mutation: write.Mutation{Keyspace: "ks", Key: "k1"}},
		},
	}

	require.NoError(t, store.Write(batch))
	require.NoError(t, store.Delete("ks", id))
}

func TestHintStoreAndGCGrace(t *testing.T) {
	hs := NewHintStore(maple.NewMapleDB(nil), 0)
	mutation := hints.Mutation{Key: "k1", Payload: []byte("v1")}

	wrapped, err := hs.HintFor(mutation, time.Now(), 0, uuid.New())
	require.NoError(t, err)
	require.Equal(t, mutation, wrapped)
	require.NoError(t, hs.Store(uuid.New(), wrapped))

	gg := NewGCGrace(86400)
	require.EqualValues(t, 86400, gg.GCGraceSeconds("unset_table"))
	gg.Set("t1", 3600)
	require.EqualValues(t, 3600, gg.GCGraceSeconds("t1"))
}
