package write

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/latticedb/coordinator/coordinaterr"
	"github.com/latticedb/coordinator/hints"
	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/quorum"
	"github.com/latticedb/coordinator/stage"
	"github.com/latticedb/coordinator/storage"
	"github.com/latticedb/coordinator/topology"
)

// Dispatcher is the Write Dispatcher (spec.md §4.D).
type Dispatcher struct {
	local     topology.Endpoint
	resolver  *topology.Resolver
	engine    storage.Engine
	messenger messaging.Messenger
	hints     *hints.Submitter

	mutationStage *stage.Pool
	counterStage  *stage.Pool
}

// New constructs a Dispatcher. mutationStage and counterStage are the
// "mutation" and "counter-mutation" scheduling stages of spec.md §5; both
// must already be wired to drop aged tasks into the relevant dropped-message
// counter.
func New(local topology.Endpoint, resolver *topology.Resolver, engine storage.Engine, messenger messaging.Messenger, hintSubmitter *hints.Submitter, mutationStage, counterStage *stage.Pool) *Dispatcher {
	return &Dispatcher{
		local:         local,
		resolver:      resolver,
		engine:        engine,
		messenger:     messenger,
		hints:         hintSubmitter,
		mutationStage: mutationStage,
		counterStage:  counterStage,
	}
}

// Dispatch performs a Standard write: resolve endpoints, fail fast if
// underreplicated, then fan the mutation out to every natural and pending
// endpoint, satisfying the response collector from local apply, direct
// sends, DC-bundled relays, and hints as spec.md §4.D prescribes.
func (d *Dispatcher) Dispatch(mutation Mutation, plan Plan, timeout time.Duration) error {
	h, alive, err := d.newHandler(mutation.Keyspace, plan, timeout)
	if err != nil {
		return err
	}
	d.fanOut(mutation, plan, alive, h, timeout)
	return h.Await()
}

// DispatchCounter performs a counter write using the performer kind spec.md
// §9 names in place of a class hierarchy. Standard counter writes (the
// coordinator neither applies locally nor needs a dedicated leader) never
// reach here; callers pick CounterOnCoordinator or CounterLocal based on
// whether the local endpoint is itself one of plan's natural replicas.
func (d *Dispatcher) DispatchCounter(kind Kind, mutation Mutation, plan Plan, timeout time.Duration) error {
	switch kind {
	case CounterOnCoordinator:
		return d.dispatchCounterOnCoordinator(mutation, plan, timeout)
	case CounterLocal:
		return d.dispatchCounterToLeader(mutation, plan, timeout)
	default:
		return fmt.Errorf("write: DispatchCounter called with non-counter kind %d", kind)
	}
}

func (d *Dispatcher) newHandler(keyspace string, plan Plan, timeout time.Duration) (*quorum.Handler, []topology.Endpoint, error) {
	targets := plan.targets()
	alive := d.resolver.FilterAlive(targets)
	h := quorum.NewWriteHandler(targets, len(targets)-len(alive), plan.Consistency, keyspace, plan.WriteType, plan.BlockFor, timeout)
	if err := h.AssureSufficientLiveNodes(len(alive)); err != nil {
		return nil, nil, err
	}
	return h, alive, nil
}

// fanOut implements spec.md §4.D steps 2-3 over the already-live-filtered
// target set.
func (d *Dispatcher) fanOut(mutation Mutation, plan Plan, alive []topology.Endpoint, h *quorum.Handler, timeout time.Duration) {
	for _, endpoint := range plan.targets() {
		if !contains(alive, endpoint) {
			d.handleUnreachable(mutation, plan, endpoint, h)
		}
	}

	var localTargets, remote []topology.Endpoint
	for _, e := range alive {
		if e == d.local {
			continue
		}
		if d.resolver.Snitch.Datacenter(e) == plan.LocalDC {
			localTargets = append(localTargets, e)
		} else {
			remote = append(remote, e)
		}
	}

	if contains(alive, d.local) {
		d.applyLocally(mutation, h)
	}

	for _, e := range localTargets {
		d.sendIndividual(mutation, e, h)
	}

	for dc, members := range d.resolver.GroupByDatacenter(remote) {
		if len(members) == 0 {
			continue
		}
		if len(members) == 1 {
			d.sendIndividual(mutation, members[0], h)
			continue
		}
		d.sendBundle(mutation, dc, members, h, timeout, plan.Consistency)
	}
}

func contains(endpoints []topology.Endpoint, target topology.Endpoint) bool {
	for _, e := range endpoints {
		if e == target {
			return true
		}
	}
	return false
}

// applyLocally implements step 2's "destination == self" branch: schedule
// local apply on the mutation worker pool, satisfying or failing the
// collector from the stage goroutine.
func (d *Dispatcher) applyLocally(mutation Mutation, h *quorum.Handler) {
	d.mutationStage.Submit(func() {
		if err := applyToEngine(d.engine, mutation); err != nil {
			h.OnFailure(d.local)
			return
		}
		h.OnResponse(d.local)
	})
}

func applyToEngine(engine storage.Engine, m Mutation) error {
	switch m.Op {
	case OpApply:
		return engine.Apply(m.Key, m.Value, m.Timestamp, m.ExpireIn, m.DeleteIn)
	case OpApplyIfAbsent:
		return engine.ApplyIfAbsent(m.Key, m.Value, m.Timestamp, m.ExpireIn, m.DeleteIn)
	case OpExpire:
		return engine.Expire(m.Key, m.Timestamp)
	case OpDelete:
		return engine.Delete(m.Key, m.Timestamp)
	default:
		return fmt.Errorf("write: unknown mutation op %d", m.Op)
	}
}

func (d *Dispatcher) sendIndividual(mutation Mutation, to topology.Endpoint, h *quorum.Handler) {
	payload, err := encodeWireMutation(mutation, nil)
	if err != nil {
		h.OnFailure(to)
		return
	}
	_, err = d.messenger.SendRRWithFailure(messaging.VerbMutation, payload, to,
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
		d.messenger.IncrementDroppedMessages(messaging.VerbMutation)
		h.OnFailure(to)
	}
}

// sendBundle implements step 3: a single relay per remote DC carries a
// forwarding header naming the other bundle members. Each forwarded
// member's eventual response is routed back to this handler through a
// registered callback id rather than through the relay's own SendRR.
func (d *Dispatcher) sendBundle(mutation Mutation, dc string, members []topology.Endpoint, h *quorum.Handler, timeout time.Duration, cl topology.ConsistencyLevel) {
	relay := members[0]
	others := members[1:]

	forwardTo := make([]forwardTarget, 0, len(others))
	for _, member := range others {
		id := d.messenger.AddCallback(func(from topology.Endpoint, resp messaging.Response) {
			if resp.Ok {
				h.OnResponse(from)
			} else {
				h.OnFailure(from)
			}
		}, messaging.VerbMutation, member, timeout, cl, true)
		forwardTo = append(forwardTo, forwardTarget{Endpoint: member, ReplyTo: d.local, CallbackID: id})
	}

	payload, err := encodeWireMutation(mutation, forwardTo)
	if err != nil {
		for _, member := range members {
			h.OnFailure(member)
		}
		return
	}

	_, err = d.messenger.SendRRWithFailure(messaging.VerbMutation, payload, relay,
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
		d.messenger.IncrementDroppedMessages(messaging.VerbMutation)
		for _, member := range members {
			h.OnFailure(member)
		}
	}
}

// handleUnreachable implements step 2's third branch: a down destination is
// either hinted (counting as an ack for CL=any) or dropped silently.
func (d *Dispatcher) handleUnreachable(mutation Mutation, plan Plan, endpoint topology.Endpoint, h *quorum.Handler) {
	if d.hints == nil || !d.hints.ShouldHint(endpoint) {
		return
	}
	hostID := d.resolver.Placement.HostID(endpoint)
	submitted, err := d.hints.Submit(endpoint, hostID, hints.Mutation{
		Key:       mutation.Key,
		Payload:   mutation.Value,
		Timestamp: mutation.Timestamp,
		Tables:    mutation.Tables,
	})
	if err != nil || !submitted {
		return
	}
	if plan.Consistency == topology.CLAny {
		h.OnResponse(endpoint)
	}
}

func (d *Dispatcher) dispatchCounterOnCoordinator(mutation Mutation, plan Plan, timeout time.Duration) error {
	applied := make(chan error, 1)
	d.counterStage.Submit(func() {
		applied <- applyToEngine(d.engine, mutation)
	})
	if err := <-applied; err != nil {
		return err
	}

	remaining := Plan{
		Natural:     removeEndpoint(plan.Natural, d.local),
		Pending:     removeEndpoint(plan.Pending, d.local),
		LocalDC:     plan.LocalDC,
		Consistency: plan.Consistency,
		WriteType:   plan.WriteType,
		BlockFor:    plan.BlockFor - 1,
	}
	if remaining.BlockFor <= 0 {
		return nil
	}
	targets := remaining.targets()
	if len(targets) == 0 {
		return nil
	}

	alive := d.resolver.FilterAlive(targets)
	h := quorum.NewWriteHandler(targets, len(targets)-len(alive), remaining.Consistency, mutation.Keyspace, remaining.WriteType, remaining.BlockFor, timeout)
	if err := h.AssureSufficientLiveNodes(len(alive)); err != nil {
		return err
	}
	d.fanOut(mutation, remaining, alive, h, timeout)
	return h.Await()
}

func (d *Dispatcher) dispatchCounterToLeader(mutation Mutation, plan Plan, timeout time.Duration) error {
	leader, err := d.chooseCounterLeader(plan)
	if err != nil {
		return err
	}

	h := quorum.NewWriteHandler([]topology.Endpoint{leader}, 0, plan.Consistency, mutation.Keyspace, plan.WriteType, 1, timeout)
	payload, err := encodeWireMutation(mutation, nil)
	if err != nil {
		return err
	}
	_, err = d.messenger.SendRRWithFailure(messaging.VerbMutation, payload, leader,
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
		d.messenger.IncrementDroppedMessages(messaging.VerbMutation)
		h.OnFailure(leader)
	}
	return h.Await()
}

// chooseCounterLeader picks a random live local-DC natural replica, falling
// back to the closest live replica by proximity when none is local
// (spec.md §4.D).
func (d *Dispatcher) chooseCounterLeader(plan Plan) (topology.Endpoint, error) {
	alive := d.resolver.FilterAlive(plan.Natural)
	if len(alive) == 0 {
		return "", coordinaterr.Unavailable(plan.Consistency, 0, 1)
	}
	local := d.resolver.RestrictToLocalDC(alive, plan.LocalDC)
	if len(local) > 0 {
		return local[rand.Intn(len(local))], nil
	}
	sorted := d.resolver.SortByProximity(d.local, alive)
	return sorted[0], nil
}

func removeEndpoint(endpoints []topology.Endpoint, target topology.Endpoint) []topology.Endpoint {
	out := make([]topology.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
