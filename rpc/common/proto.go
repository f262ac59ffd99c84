package common

// Envelope is the single wire-level container every coordinator RPC travels
// in, replacing the teacher's KV/lock-specific Message. The caller's verb
// (or admin op) already lives in the transport-level shard id (see
// rpc/transport's ServerHandleFunc and IRPCClientTransport.Send), so
// Envelope itself only carries the verb-specific JSON payload a driver
// package encoded plus the generic ok/err result shape every verb answers
// with (spec.md §6's Messaging contract: "a response is either a payload or
// an explicit failure").
type Envelope struct {
	// Payload is the verb-specific request or response body, opaque to
	// Envelope itself (each driver package defines its own small envelope
	// struct for this, e.g. write.wireMutation, paxos.prepareRequest).
	Payload []byte `json:"payload,omitempty"`
	// Ok is meaningful on responses only: false means the replica reported
	// an explicit failure, as opposed to Payload carrying a result.
	Ok bool `json:"ok,omitempty"`
	// Err carries the failure reason when Ok is false.
	Err string `json:"err,omitempty"`
}
