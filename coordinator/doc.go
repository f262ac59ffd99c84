// Package coordinator assembles the Endpoint Resolver, Response Collector,
// Hint Submitter, Write Dispatcher, Read Executor, Range Scan, Paxos,
// Batchlog and Truncate drivers behind a single Context, and adds the one
// operation spec.md's component table names but never assigns a driver:
// describeSchemaVersions (spec.md §6's MBean surface, §9's design notes).
//
// Context plays the role spec.md §9 calls "an explicit CoordinatorContext
// carrying topology snapshot, liveness view, metrics sinks, and
// configuration" in place of the original's mutable global singletons; the
// MBean-shaped admin surface (GetMaxHintsInProgress/SetMaxHintsInProgress,
// and friends) writes to it through the Hint Submitter's own atomics rather
// than through a second, shadow copy of that state.
package coordinator
