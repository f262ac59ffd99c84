// Package durable implements storage.Engine on top of a single-shard
// Dragonboat NodeHost. Each coordinator node runs exactly one local replica
// of this shard (no other node joins it): Dragonboat's own Raft log gives
// the node a WAL and crash recovery for its own applied mutations, which is
// what the out-of-scope "local storage engine" contract (spec.md §6) needs
// but does not specify how to provide. Cross-node replication, quorum, and
// linearizability for the wide-column store itself are handled entirely by
// the coordinator's own response-collector and Paxos driver (packages quorum
// and paxos) — Dragonboat is never asked to order writes across nodes.
//
// Write Operations:
//
// Apply/ApplyIfAbsent/Expire/Delete are serialized into an internal.Command and
// proposed via SyncPropose. The command carries the caller-supplied write
// timestamp explicitly (rather than relying on the Raft log index as the
// teacher's original dstore implementation did) so the value returned later
// by ExecuteLocally matches the ballot the coordinator's read-repair logic
// compares across replicas.
//
// Read Operations:
//
// ExecuteLocally and Has use SyncRead for linearizable-within-this-node
// reads (the single local replica has no peers to lag behind, so this mainly
// buys read-after-write consistency across concurrent local appliers). Info
// uses StaleRead since DatabaseInfo is advisory.
//
// Error Handling and Retries:
//
// System-busy responses from Dragonboat are retried with a short backoff, up
// to a bounded number of attempts, matching the teacher's original retry
// shape.
package durable
