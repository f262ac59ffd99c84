package systables

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/latticedb/coordinator/batchlog"
	"github.com/latticedb/coordinator/storage/db"
)

// BatchlogStore is a reference batchlog.Store: one JSON-encoded Batch row
// per UUID, removed outright on Delete rather than tombstoned (spec.md §6
// "batchlog rows in a dedicated system table keyed by batch UUID" says
// nothing about needing the row's history once it is replayed).
type BatchlogStore struct {
	mu  sync.Mutex
	db  db.KVDB
	idx atomic.Uint64
}

func NewBatchlogStore(d db.KVDB) *BatchlogStore {
	return &BatchlogStore{db: d}
}

func (s *BatchlogStore) Write(batch batchlog.Batch) error {
	raw, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.db.Set(rowKey("batchlog", batch.Keyspace, batch.ID.String()), raw, s.idx.Add(1))
	s.mu.Unlock()
	return nil
}

func (s *BatchlogStore) Delete(keyspace string, id uuid.UUID) error {
	s.mu.Lock()
	s.db.Delete(rowKey("batchlog", keyspace, id.String()), s.idx.Add(1))
	s.mu.Unlock()
	return nil
}
