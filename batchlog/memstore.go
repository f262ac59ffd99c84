package batchlog

import (
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store, the fake collaborator batchlog's own
// tests and a non-durable single-node deployment use in place of the real
// system-table-backed store (SPEC_FULL §2.4).
type MemStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Batch
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[uuid.UUID]Batch)}
}

func (s *MemStore) Write(batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[batch.ID] = batch
	return nil
}

func (s *MemStore) Delete(_ string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Rows returns a snapshot of remaining batchlog rows, used by tests to
// assert the entry was (or was not) deleted.
func (s *MemStore) Rows() map[uuid.UUID]Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]Batch, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out
}
