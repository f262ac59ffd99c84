// Package ballot implements the Paxos proposal identifier used throughout
// the coordinator: a 16-byte value that is both strictly increasing across
// a single node's lifetime and globally unique across the cluster.
//
// A Ballot doubles as the write timestamp applied to the underlying
// storage.Engine (spec.md §3 "Ballot"), so its ordering must agree with
// wall-clock ordering closely enough for last-write-wins reconciliation to
// behave sensibly, while still guaranteeing two concurrently-generated
// ballots on different nodes never collide.
package ballot
