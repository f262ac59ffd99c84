package paxos

import (
	"encoding/json"

	"github.com/latticedb/coordinator/ballot"
	"github.com/latticedb/coordinator/topology"
)

// Commit is spec.md §3's Commit tuple: (ballot, partition-key,
// update-payload). A prepare commit carries a nil Update; a proposal
// commit carries the update to apply; a committed commit has been
// learned by a quorum and is safe to apply to storage.Engine.
type Commit struct {
	Ballot   ballot.Ballot
	Keyspace string
	Key      string
	Update   []byte
}

// IsEmpty reports whether c carries no update, the "prepare commit" shape.
func (c Commit) IsEmpty() bool { return len(c.Update) == 0 }

// ReplicaState is spec.md §3's per-partition-key Paxos replica state:
// (promisedBallot, acceptedProposal?, mostRecentCommit). The invariant
// promisedBallot >= acceptedProposal.Ballot >= mostRecentCommit.Ballot
// (whenever each exists) is maintained entirely by Acceptor; Store is a
// dumb key-value record of whatever Acceptor last wrote.
type ReplicaState struct {
	PromisedBallot   ballot.Ballot
	AcceptedCommit   Commit
	HasAccepted      bool
	MostRecentCommit Commit
}

// Store is the narrow, per-node persistence contract for ReplicaState. It
// plays the same "external, out-of-scope collaborator" role for the Paxos
// Driver that storage.Engine plays for the Write Dispatcher — spec.md §1
// assumes but does not define how a replica durably records its promise
// ledger, only that it does.
type Store interface {
	Load(keyspace, key string) (ReplicaState, error)
	Save(keyspace, key string, state ReplicaState) error
}

// Outcome classifies how a single S0->S3 attempt ended, replacing the
// original's exception-driven PREEMPTED/INCOMPLETE_PRIOR/MISSING_MRC
// control flow with an explicit result kind (spec.md §9).
type Outcome uint8

const (
	// OutcomeApplied means the attempt proposed and committed an update.
	OutcomeApplied Outcome = iota
	// OutcomeConditionFailed means S1's read contradicted the caller's
	// precondition; no proposal was sent, and the read result is returned
	// to the client as-is (spec.md §4.G S1, the "NULL-mutation outcome").
	OutcomeConditionFailed
	// OutcomePreempted means a higher ballot was observed; retry from S0.
	OutcomePreempted
	// OutcomeIncompletePrior means an in-progress accepted proposal newer
	// than the quorum's mostRecentCommit needs finishing before retrying.
	OutcomeIncompletePrior
	// OutcomeMissingMRC means some promised replica had not yet learned
	// the quorum's mostRecentCommit; it was fired a fire-and-forget commit.
	OutcomeMissingMRC
)

// CASRequest is a single lightweight-transaction attempt's input.
type CASRequest struct {
	Keyspace string
	Key      string
	Table    string

	// SerialConsistency selects CLSerial or CLLocalSerial, translated to
	// CLQuorum/CLLocalQuorum for S1's read and for blockFor computation
	// (spec.md §4.G S1: "Quorum read at CL matching the Paxos CL").
	SerialConsistency topology.ConsistencyLevel
	// CommitConsistency governs how long S3 waits for commit
	// acknowledgements; CLAny means fire-and-forget.
	CommitConsistency topology.ConsistencyLevel

	// Precondition evaluates the read observed in S1. A false return
	// aborts the attempt with OutcomeConditionFailed without proposing.
	Precondition func(current Observed) (bool, error)
	// BuildUpdate constructs the payload to propose once Precondition has
	// passed. It is called at most once per S0->S3 attempt.
	BuildUpdate func(current Observed) ([]byte, error)
}

// Observed is what S1's quorum read returned for the CAS key, the minimal
// slice of read.Result the Paxos package needs without importing read
// directly (avoiding a paxos<->read import cycle neither package needs
// otherwise).
type Observed struct {
	Value     []byte
	Timestamp uint64
	Found     bool
}

// CASResult is returned to the client on a successful attempt (applied or
// precondition-failed); timeouts and unavailability surface as errors.
type CASResult struct {
	Outcome  Outcome
	Observed Observed
}

func marshalCommit(c Commit) ([]byte, error) { return json.Marshal(c) }
func unmarshalCommit(b []byte) (Commit, error) {
	var c Commit
	err := json.Unmarshal(b, &c)
	return c, err
}
