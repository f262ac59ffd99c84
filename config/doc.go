// Package config holds the coordinator node's configuration: per-verb RPC
// timeouts, hinted handoff tunables, local topology placement, and the
// listen/wire settings, in the same flat-struct-plus-String()-pretty-printer
// shape as the teacher's rpc/common.ServerConfig.
//
// A Config is normally populated by cmd/coordinator's cobra/viper flag
// binding (see FromViper), not constructed by hand, but every field is
// exported so tests can build one directly.
package config
