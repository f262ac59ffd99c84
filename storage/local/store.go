// Package local implements storage.Engine directly on top of a db.KVDB, with
// no persistence and no replication. See doc.go for the package-level design
// note on how this fits spec.md's out-of-scope storage-engine contract.
package local

import (
	"sync"

	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
)

// engineImpl is the in-memory storage.Engine backed by a single db.KVDB.
type engineImpl struct {
	factory storage.DBFactory
	mu      sync.RWMutex
	db      db.KVDB
}

// NewLocalEngine creates a new storage.Engine that holds all state in a
// db.KVDB produced by factory, with no durability across process restarts.
func NewLocalEngine(factory storage.DBFactory) storage.Engine {
	return &engineImpl{factory: factory, db: factory()}
}

func (e *engineImpl) get() db.KVDB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

// --------------------------------------------------------------------------
// Interface Methods (docs see storage.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Apply(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureSetE) {
		return storage.NewError(storage.RetCUnsupportedOperation, "Apply is not supported")
	}
	kvdb.SetE(key, storage.EncodeEnvelope(value, timestamp), timestamp, expireIn, deleteIn)
	return nil
}

func (e *engineImpl) ApplyIfAbsent(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureSetEIfUnset) {
		return storage.NewError(storage.RetCUnsupportedOperation, "ApplyIfAbsent is not supported")
	}
	kvdb.SetEIfUnset(key, storage.EncodeEnvelope(value, timestamp), timestamp, expireIn, deleteIn)
	return nil
}

func (e *engineImpl) Expire(key string, timestamp uint64) error {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureExpire) {
		return storage.NewError(storage.RetCUnsupportedOperation, "Expire is not supported")
	}
	kvdb.Expire(key, timestamp)
	return nil
}

func (e *engineImpl) Delete(key string, timestamp uint64) error {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureDelete) {
		return storage.NewError(storage.RetCUnsupportedOperation, "Delete is not supported")
	}
	kvdb.Delete(key, timestamp)
	return nil
}

func (e *engineImpl) ExecuteLocally(key string) (value []byte, timestamp uint64, loaded bool, err error) {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureGet) {
		return nil, 0, false, storage.NewError(storage.RetCUnsupportedOperation, "ExecuteLocally is not supported")
	}
	envelope, ok := kvdb.Get(key)
	if !ok {
		return nil, 0, false, nil
	}
	value, timestamp, err = storage.DecodeEnvelope(envelope)
	if err != nil {
		return nil, 0, false, storage.NewError(storage.RetCInternalError, err.Error())
	}
	return value, timestamp, true, nil
}

func (e *engineImpl) Has(key string) (bool, error) {
	kvdb := e.get()
	if !kvdb.SupportsFeature(db.FeatureHas) {
		return false, storage.NewError(storage.RetCUnsupportedOperation, "Has is not supported")
	}
	return kvdb.Has(key), nil
}

// Truncate replaces the underlying db.KVDB wholesale; db.KVDB itself exposes
// no clear-all primitive, so a fresh instance from the same factory is the
// only way to drop all keys without iterating them one at a time.
func (e *engineImpl) Truncate() error {
	fresh := e.factory()
	e.mu.Lock()
	old := e.db
	e.db = fresh
	e.mu.Unlock()
	return old.Close()
}

func (e *engineImpl) Info() (db.DatabaseInfo, error) {
	return e.get().GetInfo(), nil
}
