// Package batchlog implements the Batchlog Driver (spec.md §4.H): the
// atomic two-phase protocol for a logged batch of mutations — sync-write
// the serialized batch to two batchlog endpoints, execute the underlying
// mutations through write.Dispatcher at the user's consistency level, then
// asynchronously delete the batchlog entry.
package batchlog
