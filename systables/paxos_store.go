package systables

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/latticedb/coordinator/paxos"
	"github.com/latticedb/coordinator/storage/db"
)

// PaxosStore is a reference paxos.Store: one JSON-encoded ReplicaState row
// per (keyspace, key), keyed the same way write.Mutation addresses a
// partition.
type PaxosStore struct {
	mu  sync.Mutex
	db  db.KVDB
	idx atomic.Uint64
}

// NewPaxosStore constructs a PaxosStore over d. d should not be shared with
// any other systables store or the node's storage.Engine, since rowKey's
// namespacing assumes it owns the whole keyspace.
func NewPaxosStore(d db.KVDB) *PaxosStore {
	return &PaxosStore{db: d}
}

func (s *PaxosStore) Load(keyspace, key string) (paxos.ReplicaState, error) {
	s.mu.Lock()
	raw, ok := s.db.Get(rowKey("paxos", keyspace, key))
	s.mu.Unlock()
	if !ok {
		return paxos.ReplicaState{}, nil
	}
	var state paxos.ReplicaState
	if err := json.Unmarshal(raw, &state); err != nil {
		return paxos.ReplicaState{}, err
	}
	return state, nil
}

func (s *PaxosStore) Save(keyspace, key string, state paxos.ReplicaState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.db.Set(rowKey("paxos", keyspace, key), raw, s.idx.Add(1))
	s.mu.Unlock()
	return nil
}

func rowKey(table, keyspace, key string) string {
	return table + "/" + keyspace + "/" + key
}
