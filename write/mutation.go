package write

import (
	"encoding/json"

	"github.com/latticedb/coordinator/topology"
)

// Op classifies what a Mutation does to a key, mirroring storage.Engine's
// four write methods.
type Op uint8

const (
	OpApply Op = iota
	OpApplyIfAbsent
	OpExpire
	OpDelete
)

// Mutation is the coordinator's view of a single-key write: enough to apply
// it locally through storage.Engine or serialize it for a remote replica.
type Mutation struct {
	Keyspace  string
	Key       string
	Op        Op
	Value     []byte
	Timestamp uint64
	ExpireIn  uint64
	DeleteIn  uint64
	Tables    []string
}

// Kind is the tagged variant spec.md §9 uses in place of a write-performer
// class hierarchy.
type Kind uint8

const (
	// Standard is a plain mutation: local apply plus remote fan-out, no
	// counter semantics.
	Standard Kind = iota
	// CounterOnCoordinator is used when the coordinator is itself a natural
	// replica for a counter write: it applies the increment locally first,
	// then forwards the resulting (now plain) mutation to the remaining
	// replicas through the generic write path, hints included (SPEC_FULL
	// §4.5, the resolved open question).
	CounterOnCoordinator
	// CounterLocal is used when the coordinator is not a replica: the raw
	// counter mutation is forwarded whole to a single chosen leader replica,
	// which performs the increment "locally" at its own node. The
	// coordinator awaits only that leader's acknowledgement; counter
	// mutations sent this way are never hinted (spec.md §4.D).
	CounterLocal
)

// Plan is spec.md §3's "Write plan": the resolved endpoint set and
// consistency requirement a Mutation is dispatched against.
type Plan struct {
	Natural     []topology.Endpoint
	Pending     []topology.Endpoint
	LocalDC     string
	Consistency topology.ConsistencyLevel
	WriteType   topology.WriteType
	BlockFor    int
}

// targets returns natural and pending endpoints combined, the full replica
// set a write fans out to.
func (p Plan) targets() []topology.Endpoint {
	all := make([]topology.Endpoint, 0, len(p.Natural)+len(p.Pending))
	all = append(all, p.Natural...)
	all = append(all, p.Pending...)
	return all
}

// wireMutation is the payload write places on the wire. The real on-wire
// encoding belongs to rpc/serializer (SPEC_FULL §3.2); this JSON envelope
// keeps write package testable end-to-end against messaging.Fake without
// depending on that adapter.
type wireMutation struct {
	Mutation  Mutation
	ForwardTo []forwardTarget `json:"ForwardTo,omitempty"`
}

// forwardTarget is spec.md §4.D step 3's "forwarding header": a relay
// fans this mutation out to Endpoint, and Endpoint's response is routed
// back to ReplyTo (the coordinator that originally dispatched the write,
// not the relay) carrying CallbackID, so it resolves the response
// collector entry Messenger.AddCallback registered there.
type forwardTarget struct {
	Endpoint   topology.Endpoint
	ReplyTo    topology.Endpoint
	CallbackID uint64
}

func encodeWireMutation(m Mutation, forwardTo []forwardTarget) ([]byte, error) {
	return json.Marshal(wireMutation{Mutation: m, ForwardTo: forwardTo})
}
