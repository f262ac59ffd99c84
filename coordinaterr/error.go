package coordinaterr

import (
	"fmt"

	"github.com/latticedb/coordinator/topology"
)

// Kind is the coordinator's error taxonomy (spec.md §7). It names kinds,
// not Go types, so a single CoordinatorError struct can carry whichever
// diagnostic fields apply to the kind at hand.
type Kind uint8

const (
	KindUnavailable Kind = iota
	KindWriteTimeout
	KindWriteFailure
	KindReadTimeout
	KindReadFailure
	KindOverloaded
	KindInvalidRequest
	KindIsBootstrapping
	KindTombstoneOverwhelming
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "Unavailable"
	case KindWriteTimeout:
		return "WriteTimeout"
	case KindWriteFailure:
		return "WriteFailure"
	case KindReadTimeout:
		return "ReadTimeout"
	case KindReadFailure:
		return "ReadFailure"
	case KindOverloaded:
		return "Overloaded"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindIsBootstrapping:
		return "IsBootstrapping"
	case KindTombstoneOverwhelming:
		return "TombstoneOverwhelming"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// CoordinatorError is the single error type every coordinator package
// returns. Only the fields relevant to Kind are populated; the rest keep
// their zero value.
type CoordinatorError struct {
	Kind Kind

	WriteType        topology.WriteType
	ConsistencyLevel topology.ConsistencyLevel

	Received     int
	BlockFor     int
	FailureCount int
	DataPresent  bool

	Msg string
}

func (e *CoordinatorError) Error() string {
	switch e.Kind {
	case KindWriteTimeout, KindWriteFailure:
		return fmt.Sprintf("%s: received %d of %d required acknowledgements (writeType=%s, cl=%s)%s",
			e.Kind, e.Received, e.BlockFor, e.WriteType, e.ConsistencyLevel, suffix(e.Msg))
	case KindReadTimeout, KindReadFailure:
		return fmt.Sprintf("%s: received %d of %d required responses (cl=%s, dataPresent=%t)%s",
			e.Kind, e.Received, e.BlockFor, e.ConsistencyLevel, e.DataPresent, suffix(e.Msg))
	case KindUnavailable:
		return fmt.Sprintf("%s: %d live replicas, %d required (cl=%s)%s",
			e.Kind, e.Received, e.BlockFor, e.ConsistencyLevel, suffix(e.Msg))
	default:
		return fmt.Sprintf("%s%s", e.Kind, suffix(e.Msg))
	}
}

func suffix(msg string) string {
	if msg == "" {
		return ""
	}
	return ": " + msg
}

// Unavailable builds a KindUnavailable error: fewer live replicas than the
// consistency level requires, raised before any message is sent.
func Unavailable(cl topology.ConsistencyLevel, live, blockFor int) *CoordinatorError {
	return &CoordinatorError{Kind: KindUnavailable, ConsistencyLevel: cl, Received: live, BlockFor: blockFor}
}

// WriteTimeout builds a KindWriteTimeout error.
func WriteTimeout(wt topology.WriteType, cl topology.ConsistencyLevel, received, blockFor int) *CoordinatorError {
	return &CoordinatorError{Kind: KindWriteTimeout, WriteType: wt, ConsistencyLevel: cl, Received: received, BlockFor: blockFor}
}

// WriteFailure builds a KindWriteFailure error.
func WriteFailure(wt topology.WriteType, cl topology.ConsistencyLevel, received, blockFor, failures int) *CoordinatorError {
	return &CoordinatorError{Kind: KindWriteFailure, WriteType: wt, ConsistencyLevel: cl, Received: received, BlockFor: blockFor, FailureCount: failures}
}

// ReadTimeout builds a KindReadTimeout error.
func ReadTimeout(cl topology.ConsistencyLevel, received, blockFor int, dataPresent bool) *CoordinatorError {
	return &CoordinatorError{Kind: KindReadTimeout, ConsistencyLevel: cl, Received: received, BlockFor: blockFor, DataPresent: dataPresent}
}

// ReadFailure builds a KindReadFailure error.
func ReadFailure(cl topology.ConsistencyLevel, received, blockFor, failures int, dataPresent bool) *CoordinatorError {
	return &CoordinatorError{Kind: KindReadFailure, ConsistencyLevel: cl, Received: received, BlockFor: blockFor, FailureCount: failures, DataPresent: dataPresent}
}

// Overloaded builds a KindOverloaded error: the hint backpressure cap was breached.
func Overloaded(msg string) *CoordinatorError {
	return &CoordinatorError{Kind: KindOverloaded, Msg: msg}
}

// InvalidRequest builds a KindInvalidRequest error.
func InvalidRequest(msg string) *CoordinatorError {
	return &CoordinatorError{Kind: KindInvalidRequest, Msg: msg}
}

// IsBootstrapping builds a KindIsBootstrapping error.
func IsBootstrapping() *CoordinatorError {
	return &CoordinatorError{Kind: KindIsBootstrapping}
}

// TombstoneOverwhelming builds a KindTombstoneOverwhelming error, surfaced
// unchanged from the local storage engine.
func TombstoneOverwhelming(msg string) *CoordinatorError {
	return &CoordinatorError{Kind: KindTombstoneOverwhelming, Msg: msg}
}

// As reports whether err is a *CoordinatorError and returns it.
func As(err error) (*CoordinatorError, bool) {
	ce, ok := err.(*CoordinatorError)
	return ce, ok
}
