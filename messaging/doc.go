// Package messaging is spec.md §6's Messaging contract: sendOneWay,
// sendRR, sendRRWithFailure, addCallback, getVersion, and
// incrementDroppedMessages. Every coordinator driver (write, read,
// rangescan, paxos, batchlog, truncate) talks to remote replicas only
// through the Messenger interface here.
//
// The concrete, wire-level implementation (transport.go) is a thin
// adapter over the teacher's rpc/transport + rpc/serializer, carrying the
// coordinator's verb set instead of the original IStore/ILockManager
// request/response pairs. Package-local tests, and every driver package's
// tests, use the in-memory fake (fake.go) instead — the same "fake
// collaborator over mocking framework" choice the teacher makes for its
// own storage layer tests.
package messaging
