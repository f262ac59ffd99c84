package durable

import (
	"fmt"
	"io"
	"time"

	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/durable/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// engineStateMachine is a Dragonboat state machine that applies
// storage.Engine writes against a single underlying db.KVDB.
type engineStateMachine struct {
	replicaID uint64
	shardID   uint64
	factory   storage.DBFactory
	database  db.KVDB
}

// CreateStateMachineFactory returns a function dragonboat uses to create a
// new state machine for a node host. The factory pattern lets the caller
// supply an interchangeable db.KVDB implementation.
func CreateStateMachineFactory(dbFactory storage.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &engineStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			factory:   dbFactory,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the
// corresponding db.KVDB method.
func (fsm *engineStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, storage.NewError(storage.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTExecuteLocally:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, storage.NewError(storage.RetCUnsupportedOperation, "ExecuteLocally operation is not supported")
		}
		envelope, ok := fsm.database.Get(q.Key)
		if !ok {
			return internal.QueryResult{Ok: false}, nil
		}
		value, timestamp, err := storage.DecodeEnvelope(envelope)
		if err != nil {
			return nil, storage.NewError(storage.RetCInternalError, err.Error())
		}
		return internal.QueryResult{Ok: true, Value: value, Timestamp: timestamp}, nil
	case internal.QueryTHas:
		if !fsm.database.SupportsFeature(db.FeatureHas) {
			return nil, storage.NewError(storage.RetCUnsupportedOperation, "Has operation is not supported")
		}
		return fsm.database.Has(q.Key), nil
	case internal.QueryTInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, storage.NewError(storage.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands against the db.KVDB instance. All write
// operations are serialized into []byte and accessible via the entries
// struct.
func (fsm *engineStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		if cmd.Type != internal.CommandTTruncate {
			feat, err := cmd.Type.ToDBFeature()
			if err != nil {
				entries[idx].Result = sm.Result{
					Value: uint64(storage.RetCInvalidOperation),
					Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
				}
				continue
			}
			if !fsm.database.SupportsFeature(feat) {
				entries[idx].Result = sm.Result{
					Value: uint64(storage.RetCUnsupportedOperation),
					Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
				}
				continue
			}
		}

		switch cmd.Type {
		case internal.CommandTApply:
			fsm.database.SetE(cmd.Key, storage.EncodeEnvelope(cmd.Value, cmd.Timestamp), cmd.Timestamp, cmd.ExpireIn, cmd.DeleteIn)
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCSuccess), Data: []byte(fmt.Sprintf("apply: key=%s", cmd.Key))}
		case internal.CommandTApplyIfAbsent:
			fsm.database.SetEIfUnset(cmd.Key, storage.EncodeEnvelope(cmd.Value, cmd.Timestamp), cmd.Timestamp, cmd.ExpireIn, cmd.DeleteIn)
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCSuccess), Data: []byte(fmt.Sprintf("applyIfAbsent: key=%s", cmd.Key))}
		case internal.CommandTExpire:
			fsm.database.Expire(cmd.Key, cmd.Timestamp)
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCSuccess), Data: []byte(fmt.Sprintf("expired key=%s", cmd.Key))}
		case internal.CommandTDelete:
			fsm.database.Delete(cmd.Key, cmd.Timestamp)
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCSuccess), Data: []byte(fmt.Sprintf("deleted key=%s", cmd.Key))}
		case internal.CommandTTruncate:
			if err := fsm.database.Close(); err != nil {
				entries[idx].Result = sm.Result{Value: uint64(storage.RetCInternalError), Data: []byte(err.Error())}
				continue
			}
			fsm.database = fsm.factory()
			entries[idx].Result = sm.Result{Value: uint64(storage.RetCSuccess), Data: []byte("truncated")}
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(storage.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
		}
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("state machine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting.
func (fsm *engineStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer.
func (fsm *engineStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used db.KVDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot delegates snapshot recovery to the underlying db.KVDB.
func (fsm *engineStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used db.KVDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *engineStateMachine) Close() error {
	return fsm.database.Close()
}
