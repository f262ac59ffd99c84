// Package coordinaterr is the Go-native rendition of the coordinator's
// error taxonomy (spec.md §7). It models kinds, not types: a single
// CoordinatorError struct carries a Kind enum plus the diagnostic fields
// relevant to that kind, following the teacher's store.Error/RetCode shape
// (lib/store/interface.go) but widened for the richer set of failures a
// replica-fanout orchestrator can hit.
package coordinaterr
