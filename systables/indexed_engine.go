package systables

import (
	"github.com/latticedb/coordinator/storage"
)

// IndexedEngine decorates a storage.Engine so every write keeps a KeyIndex
// up to date, giving rangescan.Driver something real to list keys from
// without storage.Engine itself needing an iteration primitive.
type IndexedEngine struct {
	storage.Engine
	keyspace string
	index    *KeyIndex
}

// NewIndexedEngine wraps engine; keyspace is the single keyspace this node's
// engine instance serves (SPEC_FULL's per-keyspace engine wiring mirrors the
// teacher's per-shard engine instances).
func NewIndexedEngine(engine storage.Engine, keyspace string, index *KeyIndex) *IndexedEngine {
	return &IndexedEngine{Engine: engine, keyspace: keyspace, index: index}
}

func (e *IndexedEngine) Apply(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	if err := e.Engine.Apply(key, value, timestamp, expireIn, deleteIn); err != nil {
		return err
	}
	e.index.Track(e.keyspace, key)
	return nil
}

func (e *IndexedEngine) ApplyIfAbsent(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	if err := e.Engine.ApplyIfAbsent(key, value, timestamp, expireIn, deleteIn); err != nil {
		return err
	}
	e.index.Track(e.keyspace, key)
	return nil
}

func (e *IndexedEngine) Delete(key string, timestamp uint64) error {
	if err := e.Engine.Delete(key, timestamp); err != nil {
		return err
	}
	e.index.Untrack(e.keyspace, key)
	return nil
}

func (e *IndexedEngine) Truncate() error {
	if err := e.Engine.Truncate(); err != nil {
		return err
	}
	e.index.Reset(e.keyspace)
	return nil
}

var _ storage.Engine = (*IndexedEngine)(nil)
