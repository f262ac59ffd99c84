package storage

import (
	"fmt"

	"github.com/latticedb/coordinator/storage/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by an Engine.
// This is used to abstract the creation of the db from the engine implementation.
type DBFactory func() db.KVDB

// Engine is the narrow, local-only contract the coordinator relies on for
// "destination == self" writes (Write Dispatcher, §4.D) and local reads
// (Read Executor, §4.E). It is the one external collaborator spec.md §1
// explicitly leaves out of scope ("local storage engine... consumed only
// through the narrow contracts in §6" — mutation.apply(),
// command.executeLocally()); everything above this interface is coordinator
// logic, everything below it is a reference implementation of that contract.
//
// Write operations take an explicit timestamp (the write's ballot, see
// package ballot) rather than deriving one locally, because read repair
// needs to compare timestamps across replicas (spec.md §4.E.2: "most recent
// cell per ... (timestamp, then localDeletionTime, then value)").
type Engine interface {
	// Apply writes a value for key at the given timestamp, overwriting any
	// older write. expireIn/deleteIn are relative to timestamp; zero means
	// no expiration/deletion.
	Apply(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) (err error)
	// ApplyIfAbsent writes a value for key at the given timestamp only if no
	// value for key exists yet. No error is returned if the key already exists.
	ApplyIfAbsent(key string, value []byte, timestamp uint64, expireIn, deleteIn uint64) (err error)
	// Expire marks the value for key as expired as of timestamp. The key
	// remains findable via Has.
	Expire(key string, timestamp uint64) (err error)
	// Delete removes key as of timestamp.
	Delete(key string, timestamp uint64) (err error)
	// ExecuteLocally returns the value for key together with the write
	// timestamp it was last applied at, used by the Read Executor to build
	// digests and reconcile across replicas.
	ExecuteLocally(key string) (value []byte, timestamp uint64, loaded bool, err error)
	// Has returns whether key exists, expired or not.
	Has(key string) (loaded bool, err error)
	// Truncate removes all data the engine holds (§4.I Truncate Driver).
	Truncate() (err error)
	// Info returns metadata about the underlying database. Not guaranteed
	// to be complete or current.
	Info() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code (of type RetCode) and an error message. Engine
// implementations use it so that Write Dispatcher / Read Executor can tell
// "unsupported by this engine" apart from "engine is unavailable".
type Error struct {
	Code RetCode
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage engine error (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // Command executed successfully.
	RetCInternalError                       // Command failed due to an internal error.
	RetCUnsupportedOperation                // Operation is not supported by the underlying database.
	RetCInvalidOperation                    // Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
