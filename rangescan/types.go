package rangescan

import "github.com/latticedb/coordinator/topology"

// Token is a ring position in the same opaque string space the placement
// oracle keys NaturalEndpoints by (spec.md Glossary "token"). rangescan
// never interprets a token's bytes; it only compares and orders them.
type Token string

// MinToken is the ring's minimum sentinel. A Range whose End is MinToken
// means "continue to the end of the ring"; such a range is never merged
// across the point where it wraps back to MinToken (spec.md §4.F step 2).
const MinToken Token = ""

// Range is a token range, exclusive of Start and inclusive of End, the same
// convention the ring uses for "which node owns this token".
type Range struct {
	Start, End Token
}

// Piece is one split sub-range together with the replica set responsible
// for serving it.
type Piece struct {
	Range     Range
	Endpoints []topology.Endpoint
}

// KeyLister resolves the partition keys that actually fall within a token
// range. It is the query-planner slice of spec.md §1's out-of-scope CQL
// parser: rangescan orchestrates replicas and never decides what a range
// "contains" on disk.
type KeyLister interface {
	KeysInRange(keyspace string, r Range) []string
}

// Query describes one client range-scan request (spec.md §3 "Range-scan
// state"). ResultsPerRange is the caller's estimate of how many rows a
// single sub-range is expected to return, used to seed adaptive
// concurrency before any batch has actually run.
type Query struct {
	Keyspace        string
	Table           string
	Range           Range
	Limit           int
	Consistency     topology.ConsistencyLevel
	ResultsPerRange float64
}

// Row is one reconciled result row.
type Row struct {
	Key   string
	Value []byte
}
