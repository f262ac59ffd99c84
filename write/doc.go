// Package write is spec.md §4.D's Write Dispatcher: it routes a mutation to
// local apply plus remote send, bundling cross-datacenter fan-out behind a
// single relay per DC, and folds unreachable destinations into hint
// submission instead of failing the whole write outright.
//
// Counter mutations take a different path (§4.D "Counter writes are
// special"), modeled as the tagged variant spec.md §9 recommends
// (Standard, CounterLocal, CounterOnCoordinator) rather than a class
// hierarchy.
package write
