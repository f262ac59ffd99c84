package paxos

import (
	"encoding/json"

	"github.com/latticedb/coordinator/ballot"
)

// Wire payloads for VerbPrepareCommit / VerbProposeCommit / VerbCommitCommit
// (messaging.Verb). Kept as small JSON envelopes the way write.wireMutation
// and read.Command are, rather than routed through rpc/serializer directly —
// see write/mutation.go's wireMutation doc comment for why.

type prepareRequest struct {
	Ballot   ballot.Ballot
	Keyspace string
	Key      string
}

type prepareResponse struct {
	Promised bool
	State    ReplicaState
}

type proposeRequest struct {
	Commit Commit
}

type proposeResponse struct {
	Accepted       bool
	CurrentPromise ballot.Ballot
}

type commitRequest struct {
	Commit Commit
}

func encode(v any) ([]byte, error) { return json.Marshal(v) }

func decode[T any](payload []byte) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
