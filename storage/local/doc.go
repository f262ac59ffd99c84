// Package local implements storage.Engine directly on top of a db.KVDB,
// with no persistence and no replication. It is the reference Engine used
// by tests and by single-node deployments of the coordinator where a node's
// own crash durability is not required.
//
// The engine NewLocalEngine returns takes the write timestamp as an explicit
// caller-supplied argument on every Apply/Expire/Delete call and hands it to
// db.KVDB as that call's write index: the coordinator
// passes the write's ballot (see package ballot) so that the same timestamp
// used for cross-replica Paxos ordering is what the local engine records and
// later returns from ExecuteLocally for read-repair comparison.
package local
