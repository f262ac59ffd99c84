package write

import (
	"encoding/json"

	"github.com/latticedb/coordinator/messaging"
	"github.com/latticedb/coordinator/topology"
)

// forwardAck is VerbForwardAck's payload: a relay reports a forwarded
// member's response back to the coordinator that registered CallbackID
// through Messenger.AddCallback (spec.md §4.D step 3).
type forwardAck struct {
	CallbackID uint64
	Response   messaging.Response
}

// Accept handles an incoming VerbMutation message: it applies the carried
// mutation to the local engine and, when the payload names forwarding
// targets, relays it on to each one, reporting their eventual responses
// back to the originating coordinator asynchronously instead of blocking
// this call on them (spec.md §4.D step 3's DC-relay).
func (d *Dispatcher) Accept(payload []byte) error {
	var wire wireMutation
	if err := json.Unmarshal(payload, &wire); err != nil {
		return err
	}
	if err := applyToEngine(d.engine, wire.Mutation); err != nil {
		return err
	}
	for _, target := range wire.ForwardTo {
		d.relay(wire.Mutation, target)
	}
	return nil
}

// HandleForwardAck answers VerbForwardAck by resolving the callback
// Messenger.AddCallback registered under the carried id, the bypass
// messaging.Messenger.DeliverForwardAck exists for.
func (d *Dispatcher) HandleForwardAck(payload []byte) error {
	var ack forwardAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return err
	}
	d.messenger.DeliverForwardAck(ack.CallbackID, ack.Response)
	return nil
}

// relay forwards mutation to target.Endpoint on behalf of whichever
// coordinator sent us a bundle naming it, then carries the response back
// to target.ReplyTo rather than to ourselves.
func (d *Dispatcher) relay(mutation Mutation, target forwardTarget) {
	payload, err := encodeWireMutation(mutation, nil)
	if err != nil {
		return
	}
	_, err = d.messenger.SendRRWithFailure(messaging.VerbMutation, payload, target.Endpoint,
		func(from topology.Endpoint, resp messaging.Response) {
			d.ackForward(target, resp)
		},
		func(from topology.Endpoint, reason string) {
			d.ackForward(target, messaging.Response{Ok: false, Err: reason})
		},
	)
	if err != nil {
		d.messenger.IncrementDroppedMessages(messaging.VerbMutation)
		d.ackForward(target, messaging.Response{Ok: false, Err: err.Error()})
	}
}

func (d *Dispatcher) ackForward(target forwardTarget, resp messaging.Response) {
	payload, err := json.Marshal(forwardAck{CallbackID: target.CallbackID, Response: resp})
	if err != nil {
		return
	}
	_ = d.messenger.SendOneWay(messaging.VerbForwardAck, payload, target.ReplyTo)
}
