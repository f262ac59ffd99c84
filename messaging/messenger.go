package messaging

import (
	"time"

	"github.com/latticedb/coordinator/topology"
)

// Verb identifies the kind of message being exchanged, used for per-verb
// RPC timeouts, dropped-message counters, and handler dispatch.
type Verb uint8

const (
	VerbMutation Verb = iota
	VerbReadCommand
	VerbPrepareCommit
	VerbProposeCommit
	VerbCommitCommit
	VerbTruncateRequest
	VerbHintDeliver
	VerbSchemaVersionProbe
	VerbBatchlogWrite
	VerbBatchlogDelete
	// VerbForwardAck carries a DC-relay member's eventual response back to
	// the coordinator that originally dispatched the write, addressed by
	// the callback id Messenger.AddCallback returned when the coordinator
	// registered it (spec.md §4.D step 3's forwarding header). It never
	// goes through the ordinary per-verb handler table: a Messenger
	// implementation intercepts it and resolves the pending callback
	// directly (see DeliverForwardAck).
	VerbForwardAck
)

func (v Verb) String() string {
	switch v {
	case VerbMutation:
		return "MUTATION"
	case VerbReadCommand:
		return "READ_COMMAND"
	case VerbPrepareCommit:
		return "PREPARE_COMMIT"
	case VerbProposeCommit:
		return "PROPOSE_COMMIT"
	case VerbCommitCommit:
		return "COMMIT_COMMIT"
	case VerbTruncateRequest:
		return "TRUNCATE_REQUEST"
	case VerbHintDeliver:
		return "HINT_DELIVER"
	case VerbSchemaVersionProbe:
		return "SCHEMA_VERSION_PROBE"
	case VerbBatchlogWrite:
		return "BATCHLOG_WRITE"
	case VerbBatchlogDelete:
		return "BATCHLOG_DELETE"
	case VerbForwardAck:
		return "FORWARD_ACK"
	default:
		return "UNKNOWN"
	}
}

// Response is the payload a remote replica sent back for a sendRR call.
// Ok is false when the replica reported an explicit failure (WriteFailure/
// ReadFailure), as opposed to the call simply never returning (timeout).
type Response struct {
	Ok      bool
	Payload []byte
	Err     string
}

// Callback is invoked once per distinct response to a sendRR call.
type Callback func(from topology.Endpoint, resp Response)

// FailureCallback is invoked when a replica reports an explicit failure.
type FailureCallback func(from topology.Endpoint, reason string)

// Messenger is spec.md §6's Messaging contract.
type Messenger interface {
	// SendOneWay fires payload at to without expecting a response (used for
	// best-effort forwarding and CL=any-degraded hints).
	SendOneWay(verb Verb, payload []byte, to topology.Endpoint) error
	// SendRR sends payload to "to" and invokes cb once a response for the
	// returned callback id arrives.
	SendRR(verb Verb, payload []byte, to topology.Endpoint, cb Callback) (id uint64, err error)
	// SendRRWithFailure is SendRR plus a dedicated failure callback, used
	// when the caller needs to distinguish "explicit failure" from "never
	// responded" without polling Response.Ok itself.
	SendRRWithFailure(verb Verb, payload []byte, to topology.Endpoint, cb Callback, onFailure FailureCallback) (id uint64, err error)
	// GetVersion returns the wire protocol version a peer negotiated, used
	// to decide whether newer message fields are safe to send.
	GetVersion(endpoint topology.Endpoint) int
	// AddCallback registers a callback for an outstanding request without
	// sending a new one, returning the registry id a later response is
	// matched against. allowHints tells the registry whether a timeout on
	// this particular call should be eligible for hint submission.
	AddCallback(cb Callback, verb Verb, to topology.Endpoint, timeout time.Duration, cl topology.ConsistencyLevel, allowHints bool) (id uint64)
	// IncrementDroppedMessages records that a verb's message was dropped
	// because it aged past its RPC timeout before being dispatched
	// (spec.md §5 "Scheduling model").
	IncrementDroppedMessages(verb Verb)
	// DeliverForwardAck resolves the callback AddCallback registered under
	// id with resp, used by a VerbForwardAck handler to complete a DC-relay
	// forward without going through the normal per-verb dispatch table.
	DeliverForwardAck(id uint64, resp Response)
}
