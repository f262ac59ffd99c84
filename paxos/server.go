package paxos

// AcceptPrepare, AcceptPropose and AcceptCommit are the replica-side entry
// points rpc/server dispatches VerbPrepareCommit/VerbProposeCommit/
// VerbCommitCommit to, turning the wire envelopes in wire.go back into
// Acceptor calls. A refusal (Promised=false, Accepted=false) is ordinary
// protocol data, not a transport failure: only a Store error is reported
// as an error here.

func (a *Acceptor) AcceptPrepare(payload []byte) ([]byte, error) {
	req, err := decode[prepareRequest](payload)
	if err != nil {
		return nil, err
	}
	promised, state, err := a.Prepare(req.Keyspace, req.Key, req.Ballot)
	if err != nil {
		return nil, err
	}
	return encode(prepareResponse{Promised: promised, State: state})
}

func (a *Acceptor) AcceptPropose(payload []byte) ([]byte, error) {
	req, err := decode[proposeRequest](payload)
	if err != nil {
		return nil, err
	}
	accepted, promise, err := a.Propose(req.Commit)
	if err != nil {
		return nil, err
	}
	return encode(proposeResponse{Accepted: accepted, CurrentPromise: promise})
}

func (a *Acceptor) AcceptCommit(payload []byte) error {
	req, err := decode[commitRequest](payload)
	if err != nil {
		return err
	}
	return a.Commit(req.Commit)
}
