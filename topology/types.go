package topology

import "fmt"

// Endpoint identifies a replica node. The concrete representation is left
// to the caller (hostname, IP:port, ...); topology treats it as an opaque
// comparable key everywhere except logging.
type Endpoint string

// ConsistencyLevel is the client-requested strength of a read or write,
// spec.md's Glossary entry for "Quorum"/"Write type" and the CL parameter
// of the Response Collector contract (spec.md §4.B).
type ConsistencyLevel uint8

const (
	CLAny ConsistencyLevel = iota
	CLOne
	CLTwo
	CLThree
	CLQuorum
	CLLocalQuorum
	CLEachQuorum
	CLAll
	CLSerial
	CLLocalSerial
)

func (cl ConsistencyLevel) String() string {
	switch cl {
	case CLAny:
		return "ANY"
	case CLOne:
		return "ONE"
	case CLTwo:
		return "TWO"
	case CLThree:
		return "THREE"
	case CLQuorum:
		return "QUORUM"
	case CLLocalQuorum:
		return "LOCAL_QUORUM"
	case CLEachQuorum:
		return "EACH_QUORUM"
	case CLAll:
		return "ALL"
	case CLSerial:
		return "SERIAL"
	case CLLocalSerial:
		return "LOCAL_SERIAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", cl)
	}
}

// IsSerial reports whether cl requires the Paxos Driver rather than the
// plain Write/Read Dispatcher.
func (cl ConsistencyLevel) IsSerial() bool {
	return cl == CLSerial || cl == CLLocalSerial
}

// IsLocal reports whether cl is restricted to the local datacenter.
func (cl ConsistencyLevel) IsLocal() bool {
	return cl == CLLocalQuorum || cl == CLLocalSerial
}

// WriteType classifies a write for the purposes of timeout/metric selection
// (spec.md's Write plan and Glossary "Write type").
type WriteType uint8

const (
	WriteTypeSimple WriteType = iota
	WriteTypeUnloggedBatch
	WriteTypeBatch
	WriteTypeCounter
	WriteTypeCAS
	WriteTypeBatchLog
)

func (wt WriteType) String() string {
	switch wt {
	case WriteTypeSimple:
		return "SIMPLE"
	case WriteTypeUnloggedBatch:
		return "UNLOGGED_BATCH"
	case WriteTypeBatch:
		return "BATCH"
	case WriteTypeCounter:
		return "COUNTER"
	case WriteTypeCAS:
		return "CAS"
	case WriteTypeBatchLog:
		return "BATCH_LOG"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", wt)
	}
}

// Replica is the (endpoint, datacenter, rack, liveness, is-pending)
// descriptor of spec.md §3 "Replica descriptor".
type Replica struct {
	Endpoint  Endpoint
	DC        string
	Rack      string
	Alive     bool
	IsPending bool
}

// BlockFor returns the minimum number of acknowledgements a consistency
// level requires out of a replication factor rf (spec.md Glossary
// "blockFor", "Quorum"). Local/each-quorum variants need the caller to pass
// the datacenter-scoped replication factor, not the global one.
func BlockFor(cl ConsistencyLevel, rf int) int {
	switch cl {
	case CLAny:
		return 1
	case CLOne:
		return 1
	case CLTwo:
		return 2
	case CLThree:
		return 3
	case CLQuorum, CLLocalQuorum, CLEachQuorum, CLSerial, CLLocalSerial:
		return rf/2 + 1
	case CLAll:
		return rf
	default:
		return rf/2 + 1
	}
}
