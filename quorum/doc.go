// Package quorum implements the Response Collector (spec.md §4.B): a
// reusable quorum barrier that counts replica acknowledgements and
// failures, idempotently per sender, and completes exactly once as a
// success, a write/read timeout, or a write/read failure.
//
// The per-sender idempotency check (spec.md §8 invariant 6: "multiple
// responses from the same replica increment received at most once") uses
// github.com/puzpuzpuz/xsync/v3's MapOf the way the teacher's
// rpc/transport/base uses it for request tracking — a concurrent set
// keyed by topology.Endpoint, checked-and-set under a single atomic op.
package quorum
