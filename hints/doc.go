// Package hints implements the Hint Submitter (spec.md §4.C): a
// backpressured enqueue of per-destination replayable mutations for
// replicas that are down or out of a datacenter hint policy excludes.
//
// The hint backlog (spec.md §3 "Hint backlog") is a global in-flight
// counter plus per-endpoint counters that must always sum to it; this
// package tracks both with atomics and a github.com/puzpuzpuz/xsync/v3
// MapOf for the per-endpoint side, the same concurrent-map pattern the
// teacher's rpc/transport/base uses for its own per-connection counters.
package hints
