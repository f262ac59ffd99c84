package truncate

import (
	"encoding/json"
	"time"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/quorum"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/topology"
)

// Driver is the Truncate Driver (spec.md §4.I).
type Driver struct {
	local     topology.Endpoint
	liveness  topology.LivenessDetector
	engine    storage.Engine
	messenger messaging.Messenger
	timeout   time.Duration
}

// New constructs a Driver. timeout is the truncate RPC timeout (spec.md
// §6 MBean surface's truncateRpcTimeout).
func New(local topology.Endpoint, liveness topology.LivenessDetector, engine storage.Engine, messenger messaging.Messenger, timeout time.Duration) *Driver {
	return &Driver{local: local, liveness: liveness, engine: engine, messenger: messenger, timeout: timeout}
}

type truncateRequest struct {
	Keyspace string
	Table    string
}

// Truncate implements spec.md §4.I: precondition all owners of keyspace
// are alive, broadcast, and wait for full acknowledgement. owners is the
// full set of token-owning endpoints for the keyspace (the Endpoint
// Resolver's placement oracle is the source of truth for who owns what;
// truncate needs every owner, not just the natural replicas of one key).
func (d *Driver) Truncate(keyspace, table string, owners []topology.Endpoint) error {
	live := make([]topology.Endpoint, 0, len(owners))
	for _, e := range owners {
		if d.liveness.IsAlive(e) {
			live = append(live, e)
		}
	}
	if len(live) != len(owners) {
		return coordinaterr.Unavailable(topology.CLAll, len(live), len(owners))
	}

	h := quorum.NewWriteHandler(owners, 0, topology.CLAll, keyspace, topology.WriteTypeSimple, len(owners), d.timeout)

	req := truncateRequest{Keyspace: keyspace, Table: table}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	for _, e := range owners {
		e := e
		if e == d.local {
			go func() {
				if err := d.engine.Truncate(); err != nil {
					h.OnFailure(e)
					return
				}
				h.OnResponse(e)
			}()
			continue
		}
		_, err := d.messenger.SendRRWithFailure(messaging.VerbTruncateRequest, payload, e,
			func(from topology.Endpoint, resp messaging.Response) {
				if resp.Ok {
					h.OnResponse(from)
				} else {
					h.OnFailure(from)
				}
			},
			func(from topology.Endpoint, _ string) { h.OnFailure(from) },
		)
		if err != nil {
			d.messenger.IncrementDroppedMessages(messaging.VerbTruncateRequest)
			h.OnFailure(e)
		}
	}

	return h.Await()
}
