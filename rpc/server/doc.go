// Package server implements the replica-side RPC dispatcher for a
// coordinator node: one handler per messaging.Verb (mutation apply and
// DC-relay forwarding, quorum reads, the three Paxos phases, truncate,
// hint delivery, batchlog write/delete, schema version probes) plus
// coordinator.AdminOp, the MBean-shaped admin surface cmd/admin drives.
//
// The package focuses on:
//   - Decoding the generic rpc/common.Envelope every verb travels in and
//     routing its payload to the driver that owns that verb
//   - Separating the wire-level op code (messaging.Verb or
//     coordinator.AdminOp) from the verb-specific payload, which each
//     driver package decodes itself
//   - Reporting only transport- and storage-level failures as Envelope.Ok
//     = false; a driver-level refusal (e.g. a Paxos ballot refusal) is
//     ordinary payload data, not a dispatch failure
//
// Key Components:
//
//   - Server: the dispatch table itself, constructed once per node over
//     every already-wired driver (write.Dispatcher, read.Executor,
//     paxos.Acceptor, truncate.Driver, batchlog.Driver, storage.Engine,
//     coordinator.Context).
//
//   - New: factory function creating a Server bound to a transport and
//     serializer implementation.
//
// Usage Example:
//
//	s := server.New(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  dispatcher, executor, acceptor, truncateDriver, batchlogDriver,
//	  engine, ctx,
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("server error: %v", err)
//	}
//
// Thread Safety:
//
//	Server itself holds no mutable state beyond its collaborators, each of
//	which is already safe for concurrent use; the transport layer may call
//	the registered handler from multiple goroutines at once.
package server
