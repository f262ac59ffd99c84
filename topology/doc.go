// Package topology models the coordinator's view of the cluster: the
// consistency levels and write types spec.md's write plan is parameterized
// over, replica descriptors, and the three external oracles spec.md §6
// consumes but leaves unspecified — the placement oracle, the liveness
// detector, and the snitch (plus the small slice of the replication
// strategy, blockFor, that many other packages need).
//
// Everything here is a narrow, consumed contract: topology never mutates
// cluster state, it only answers questions about a snapshot of it. The
// Endpoint Resolver (spec.md §4.A) is the Resolver type in types.go; the rest
// of the package is the supporting vocabulary every other coordinator
// package is written against.
package topology
