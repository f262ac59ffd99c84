// Package rpc provides a comprehensive framework for remote procedure calls
// in the distributed key-value store system. It acts as the communication layer
// between clients and servers, enabling operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Envelope wire format, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Envelope serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Envelope values and byte arrays.
//
//   - server: RPC server components that handle incoming requests, dispatching
//     each messaging verb and admin op to the coordinator component that serves it.
//
// There is no client subpackage; callers use a transport client directly.
package rpc
