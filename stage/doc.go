// Package stage implements the "named worker pool, bounded, with a FIFO-ish
// admission" scheduling model of spec.md §5: mutation, counter-mutation,
// read, and request-response stages each get their own Pool so that one
// overloaded stage never starves the others.
//
// A task's age is measured from the moment it is submitted; if the task is
// still waiting when it is finally picked up and that age already exceeds
// the stage's configured timeout, the task is dropped instead of executed
// and the stage's onDropped hook fires (wired by callers to
// messaging.Messenger.IncrementDroppedMessages for the relevant verb).
//
// Concurrency is bounded by github.com/sourcegraph/conc/pool rather than a
// hand-rolled channel-and-goroutine loop: Pool.Go already blocks the
// submitter once the pool is saturated, which gives the same backpressure a
// bounded FIFO queue would, without reimplementing one.
package stage
