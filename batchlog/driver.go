package batchlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/quorum"
	"github.com/latticedb/coordinator/topology"
	"github.com/latticedb/coordinator/write"
)

// Driver is the Batchlog Driver (spec.md §4.H).
type Driver struct {
	local      topology.Endpoint
	resolver   *topology.Resolver
	messenger  messaging.Messenger
	dispatcher *write.Dispatcher
	store      Store

	batchlogTimeout time.Duration
	mutationTimeout time.Duration
}

// New constructs a Driver.
func New(local topology.Endpoint, resolver *topology.Resolver, messenger messaging.Messenger, dispatcher *write.Dispatcher, store Store, batchlogTimeout, mutationTimeout time.Duration) *Driver {
	return &Driver{
		local:           local,
		resolver:        resolver,
		messenger:       messenger,
		dispatcher:      dispatcher,
		store:           store,
		batchlogTimeout: batchlogTimeout,
		mutationTimeout: mutationTimeout,
	}
}

// ExecuteAtomic runs spec.md §4.H's three steps: sync-write the batch to
// two batchlog endpoints, execute every entry's mutation through the Write
// Dispatcher at the user's CL, then asynchronously delete the batchlog
// entry. A step-3 failure leaves the entry in place for the (out-of-scope)
// batchlog-replay service to eventually finish.
func (d *Driver) ExecuteAtomic(batch Batch, cl topology.ConsistencyLevel, localDC string) error {
	endpoints, err := d.selectEndpoints(localDC, cl)
	if err != nil {
		return err
	}

	if err := d.writeBatchlog(batch, endpoints); err != nil {
		return err
	}

	for _, entry := range batch.Entries {
		if err := d.dispatcher.Dispatch(entry.Mutation, entry.Plan, d.mutationTimeout); err != nil {
			return err
		}
	}

	go d.deleteBatchlog(batch.Keyspace, batch.ID, endpoints)
	return nil
}

// selectEndpoints implements spec.md §4.H step 1: prefer endpoints in the
// local DC on a different rack than self, fall back to same-rack, and fall
// back to self only when self is the only live token owner in the DC.
func (d *Driver) selectEndpoints(localDC string, cl topology.ConsistencyLevel) ([]topology.Endpoint, error) {
	live := d.resolver.RestrictToLocalDC(d.resolver.Liveness.LiveTokenOwners(), localDC)

	others := make([]topology.Endpoint, 0, len(live))
	for _, e := range live {
		if e != d.local {
			others = append(others, e)
		}
	}

	if len(others) == 0 {
		if cl == topology.CLAny {
			return []topology.Endpoint{d.local}, nil
		}
		if len(live) == 1 && live[0] == d.local {
			// Single-node DC: self is the only possible batchlog endpoint.
			return []topology.Endpoint{d.local}, nil
		}
		return nil, coordinaterr.Unavailable(cl, 0, 2)
	}

	selfRack := d.resolver.Snitch.Rack(d.local)
	var diffRack, sameRack []topology.Endpoint
	for _, e := range others {
		if d.resolver.Snitch.Rack(e) != selfRack {
			diffRack = append(diffRack, e)
		} else {
			sameRack = append(sameRack, e)
		}
	}

	picked := append(append([]topology.Endpoint{}, diffRack...), sameRack...)
	if len(picked) > 2 {
		picked = picked[:2]
	}
	return picked, nil
}

// writeBatchlog implements step 2: a sync write at CL=one — at least one
// of the (up to two) chosen endpoints must durably record the batch.
func (d *Driver) writeBatchlog(batch Batch, endpoints []topology.Endpoint) error {
	blockFor := 1
	if len(endpoints) < blockFor {
		return coordinaterr.Unavailable(topology.CLOne, len(endpoints), blockFor)
	}

	h := quorum.NewWriteHandler(endpoints, 0, topology.CLOne, batch.Keyspace, topology.WriteTypeBatchLog, blockFor, d.batchlogTimeout)

	for _, ep := range endpoints {
		ep := ep
		if ep == d.local {
			go func() {
				if err := d.store.Write(batch); err != nil {
					h.OnFailure(ep)
					return
				}
				h.OnResponse(ep)
			}()
			continue
		}

		payload, err := json.Marshal(wireBatch{Batch: batch})
		if err != nil {
			h.OnFailure(ep)
			continue
		}
		_, err = d.messenger.SendRRWithFailure(messaging.VerbBatchlogWrite, payload, ep,
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
			d.messenger.IncrementDroppedMessages(messaging.VerbBatchlogWrite)
			h.OnFailure(ep)
		}
	}

	return h.Await()
}

// deleteBatchlog implements step 4: fire-and-forget deletes at CL=any,
// never blocking the client response.
func (d *Driver) deleteBatchlog(keyspace string, id uuid.UUID, endpoints []topology.Endpoint) {
	for _, ep := range endpoints {
		if ep == d.local {
			_ = d.store.Delete(keyspace, id)
			continue
		}
		payload, err := json.Marshal(wireDelete{Keyspace: keyspace, ID: id})
		if err != nil {
			continue
		}
		_ = d.messenger.SendOneWay(messaging.VerbBatchlogDelete, payload, ep)
	}
}
