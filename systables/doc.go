// Package systables provides reference implementations of the narrow,
// out-of-scope persistence collaborators the driver packages declare but do
// not implement themselves: paxos.Store's promise ledger, batchlog.Store's
// batch rows, hints.HintStore/GCGraceSource, and rangescan.KeyLister.
//
// Each is backed by a plain storage/db.KVDB instance (cmd/coordinator hands
// every systables constructor its own, separate from the one behind the
// node's storage.Engine), the same narrow contract the teacher used for its
// own system-table rows before the IStore/ILockManager abstraction existed.
// None of this is the "dedicated system table" a real CQL engine would give
// these rows; it is the smallest concrete stand-in that lets a coordinator
// node actually run end to end.
package systables
