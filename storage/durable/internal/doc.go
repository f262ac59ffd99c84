// Package internal provides the communication protocol structures and serialization
// logic for the durable package. It defines the wire format used to transmit storage.Engine
// operations between the engine client and the Raft state machine.
//
// This package is intended for internal use by the durable implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Apply, ApplyIfAbsent, Expire, Delete,
//     Truncate) that modify the state of the database. Commands are serialized and
//     proposed to the RAFT cluster, executed on the state machine, and produce results
//     that are returned to the client. The Command structure carries the caller-supplied
//     write timestamp explicitly and includes efficient binary serialization.
//
//   - Query System: Defines read operations (ExecuteLocally, Has, Info) that retrieve
//     data from the database without modifying its state. Queries are executed locally
//     on the statemachine and therefore do not require serialization.
//
// Protocol Design:
//
//	The Command serialization format is optimized for:
//
//	- Minimal Size: Commands use a compact binary encoding that minimizes the amount
//	  of data transmitted over the network and stored in the RAFT log.
//
//	- Efficient Parsing: The format is designed for fast serialization and deserialization
//	  with minimal allocations.
//
// Command Format:
//
//	Commands are serialized into a binary format with the following structure:
//
//	- 1 byte: Command type (Apply, ApplyIfAbsent, Expire, Delete, Truncate)
//	- 8 bytes: Timestamp value (uint64, big endian)
//	- 8 bytes: ExpireIn value (uint64, big endian)
//	- 8 bytes: DeleteIn value (uint64, big endian)
//	- 4 bytes: Key length (uint32, big endian)
//	- N bytes: Key data (string as byte array)
//	- M bytes: Value data (optional, only present for Apply-type operations)
//
//	This format ensures efficient storage in the RAFT log while providing all
//	necessary information for the operation.
//
// Query Format:
//
//	Queries use a simpler structure as they are not persisted in the RAFT log:
//
//	- Type: The query operation to perform (ExecuteLocally, Has, Info)
//	- Key: The key to query (empty for operations like Info)
//
// Type Mapping:
//
//	The package maps Command types to:
//	- db.Feature (db.KVDB) flags for feature detection
//	- String representations for logging and debugging
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization. However, this is not
//	typically an issue as the RAFT protocol ensures sequential processing of
//	commands on the state machine.
package internal
