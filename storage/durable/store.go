package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/storage/db"
	"github.com/latticedb/coordinator/storage/durable/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("storage/durable")
)

// engineImpl is the storage.Engine backed by a single-shard Dragonboat
// NodeHost. It gives one node's own writes a local WAL and crash recovery;
// it is not used for replicating the wide-column store across nodes, which
// is the coordinator's own job (packages quorum, paxos).
type engineImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDurableEngine creates a storage.Engine that proposes every write
// through the given shard's Raft group so it survives a local crash.
func NewDurableEngine(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) storage.Engine {
	cs := nh.GetNoOPSession(shardID)
	return &engineImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write marshals cmd and proposes it via SyncPropose, retrying a bounded
// number of times while the Raft group reports itself busy.
func (e *engineImpl) write(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		res, err := e.nh.SyncPropose(ctx, e.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(e.timeout / 10)
			continue
		}
		if err != nil {
			return storage.NewError(storage.RetCInternalError, err.Error())
		}
		if storage.RetCode(res.Value) != storage.RetCSuccess {
			return storage.NewError(storage.RetCode(res.Value), string(res.Data))
		}
		return nil
	}
	return storage.NewError(storage.RetCInternalError, "timeout proposing command")
}

// read issues q against the state machine, retrying a bounded number of
// times while the Raft group reports itself busy. stale reads skip
// linearizability for lower latency, used for metadata queries that don't
// need it (Info).
func read[R any](e *engineImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		var res interface{}
		var err error

		if stale {
			res, err = e.nh.StaleRead(e.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
			res, err = e.nh.SyncRead(ctx, e.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(e.timeout / 10)
			continue
		}
		if err != nil {
			return zero, storage.NewError(storage.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, storage.NewError(storage.RetCInternalError,
				fmt.Sprintf("unexpected result type: got %T, want %T", res, zero))
		}
		return casted, nil
	}
	return zero, storage.NewError(storage.RetCInternalError, "timeout reading")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see storage.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Apply(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	return e.write(internal.Command{
		Type:      internal.CommandTApply,
		Key:       key,
		Timestamp: timestamp,
		ExpireIn:  expireIn,
		DeleteIn:  deleteIn,
		Value:     value,
	})
}

func (e *engineImpl) ApplyIfAbsent(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) error {
	return e.write(internal.Command{
		Type:      internal.CommandTApplyIfAbsent,
		Key:       key,
		Timestamp: timestamp,
		ExpireIn:  expireIn,
		DeleteIn:  deleteIn,
		Value:     value,
	})
}

func (e *engineImpl) Expire(key string, timestamp uint64) error {
	return e.write(internal.Command{
		Type:      internal.CommandTExpire,
		Key:       key,
		Timestamp: timestamp,
	})
}

func (e *engineImpl) Delete(key string, timestamp uint64) error {
	return e.write(internal.Command{
		Type:      internal.CommandTDelete,
		Key:       key,
		Timestamp: timestamp,
	})
}

func (e *engineImpl) ExecuteLocally(key string) (value []byte, timestamp uint64, loaded bool, err error) {
	res, err := read[internal.QueryResult](e, internal.Query{Type: internal.QueryTExecuteLocally, Key: key}, false)
	if err != nil {
		return nil, 0, false, err
	}
	return res.Value, res.Timestamp, res.Ok, nil
}

func (e *engineImpl) Has(key string) (bool, error) {
	return read[bool](e, internal.Query{Type: internal.QueryTHas, Key: key}, false)
}

// Truncate proposes a CommandTTruncate through the Raft group, so the local
// shard drops all data only once a majority of that shard's voters agree.
func (e *engineImpl) Truncate() error {
	return e.write(internal.Command{Type: internal.CommandTTruncate})
}

func (e *engineImpl) Info() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](e, internal.Query{Type: internal.QueryTInfo}, true)
}
