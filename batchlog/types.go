package batchlog

import (
	"github.com/google/uuid"

	"github.com/latticedb/coordinator/write"
)

// Entry pairs a single mutation with the write plan it was resolved
// against, since different statements in one logged batch can touch
// different partitions and therefore different replica sets.
type Entry struct {
	Mutation write.Mutation
	Plan     write.Plan
}

// Batch is spec.md §4.H's atomic batch: a UUID-keyed set of mutations that
// must all eventually apply, or none durably appear to have (modulo the
// out-of-scope replay service finishing a partially-applied batch later).
type Batch struct {
	ID       uuid.UUID
	Keyspace string
	Entries  []Entry
}

// Store is the narrow, per-node persistence contract for batchlog rows
// (spec.md §6 "Persisted state": "batchlog rows in a dedicated system
// table keyed by batch UUID").
type Store interface {
	Write(batch Batch) error
	Delete(keyspace string, id uuid.UUID) error
}

// wireBatch is the JSON envelope batchlog puts on the wire for
// VerbBatchlogWrite, mirroring write.wireMutation's approach.
type wireBatch struct {
	Batch Batch
}

// wireDelete is VerbBatchlogDelete's payload.
type wireDelete struct {
	Keyspace string
	ID       uuid.UUID
}
