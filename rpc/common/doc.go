// Package common provides the wire envelope and transport-facing
// configuration shared by rpc/transport and rpc/serializer.
//
// The package focuses on:
//   - Envelope: the generic payload/ok/err container every verb's request
//     and response travels in (see proto.go) — the verb itself is carried
//     by the transport layer's shard id, not by Envelope.
//   - ServerConfig / ClientConfig: listen/dial configuration for the
//     transport layer, plus ServerConfig's Dragonboat conversion helpers
//     used by storage/durable's single-shard WAL engine.
//   - Logger: the leveled logger Dragonboat's logger.Factory expects,
//     wired by storage/durable rather than by this package's own server.
package common
