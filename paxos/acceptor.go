package paxos

import (
	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/storage"
)

// Acceptor is the replica-side half of the Paxos Driver: the per-partition-
// key promise/accept/commit logic every node runs to answer another node's
// Driver. Every coordinator is also a participant for the keys it holds, so
// Driver calls its own local Acceptor directly for "destination == self"
// the same way write.Dispatcher applies locally instead of sending RR.
type Acceptor struct {
	store  Store
	engine storage.Engine
}

// NewAcceptor constructs an Acceptor over store (the promise ledger) and
// engine (where committed updates are finally applied).
func NewAcceptor(store Store, engine storage.Engine) *Acceptor {
	return &Acceptor{store: store, engine: engine}
}

// Prepare answers S0: promise iff b is strictly greater than the
// previously promised ballot. The response always carries whatever
// acceptedCommit and mostRecentCommit the replica currently holds, promised
// or not, so the coordinator can detect INCOMPLETE_PRIOR/MISSING_MRC even
// on a refusal.
func (a *Acceptor) Prepare(keyspace, key string, b ballot.Ballot) (promised bool, state ReplicaState, err error) {
	state, err = a.store.Load(keyspace, key)
	if err != nil {
		return false, ReplicaState{}, err
	}

	if !b.Less(state.PromisedBallot) && b != state.PromisedBallot {
		state.PromisedBallot = b
		if err := a.store.Save(keyspace, key, state); err != nil {
			return false, state, err
		}
		return true, state, nil
	}
	return false, state, nil
}

// Propose answers S2: accept iff b is still the (or a newer) promised
// ballot — a replica never accepts a proposal whose ballot is strictly
// less than promisedBallot (spec.md §3 invariant).
func (a *Acceptor) Propose(commit Commit) (accepted bool, currentPromise ballot.Ballot, err error) {
	state, err := a.store.Load(commit.Keyspace, commit.Key)
	if err != nil {
		return false, ballot.Zero, err
	}

	if commit.Ballot.Less(state.PromisedBallot) {
		return false, state.PromisedBallot, nil
	}

	state.PromisedBallot = commit.Ballot
	state.AcceptedCommit = commit
	state.HasAccepted = true
	if err := a.store.Save(commit.Keyspace, commit.Key, state); err != nil {
		return false, state.PromisedBallot, err
	}
	return true, commit.Ballot, nil
}

// Commit answers S3: learn commit as the mostRecentCommit and apply it to
// storage.Engine, provided it is not older than what was already learned
// (a straggler commit for an already-superseded ballot is a no-op, not an
// error — spec.md §4.G S3 relies on a later Paxos round to repair this).
func (a *Acceptor) Commit(commit Commit) error {
	state, err := a.store.Load(commit.Keyspace, commit.Key)
	if err != nil {
		return err
	}

	if state.MostRecentCommit.Ballot != ballot.Zero && !state.MostRecentCommit.Ballot.Less(commit.Ballot) {
		return nil
	}

	state.MostRecentCommit = commit
	if !commit.IsEmpty() {
		if err := a.engine.Apply(commit.Key, commit.Update, commit.Ballot.Micros(), 0, 0); err != nil {
			return err
		}
	}
	return a.store.Save(commit.Keyspace, commit.Key, state)
}

// Read serves S1's quorum read directly against the local engine, used
// when the Driver's own endpoint is among the contacted replicas and the
// generic read.Executor's proximity sort would otherwise still dispatch a
// same-process round trip.
func (a *Acceptor) Read(key string) (value []byte, timestamp uint64, found bool, err error) {
	return a.engine.ExecuteLocally(key)
}
