// Package storage defines the Engine contract the coordinator treats as an
// external, out-of-scope collaborator (spec.md §1, §6): the local apply and
// local-read surface a single replica exposes to the coordinator logic that
// runs on the same node. It adds nothing the coordinator cares about beyond
// timestamp-aware writes and reads and a uniform error system; everything
// about on-disk formats, compaction, and GC lives below this interface.
//
// Two reference implementations are provided:
//
//   - Local Engine (storage/local): a single-node, in-memory implementation
//     directly on top of a db.KVDB. Suitable for tests and for deployments
//     where the node's own durability is not required.
//
//   - Durable Engine (storage/durable): backed by a single-shard Dragonboat
//     NodeHost, giving each node's local apply log its own WAL and crash
//     recovery. This is what a coordinator binary uses in production: the
//     coordinator's own quorum/Paxos logic handles cross-node consensus,
//     Dragonboat here only guarantees a node's own replica survives a local
//     restart.
package storage
