// Package paxos implements the Paxos Driver (spec.md §4.G): the leaderless
// consensus state machine for a single lightweight-transaction (CAS)
// attempt, plus the contention-retry loop that wraps it.
//
// spec.md §9 recommends replacing the original's exception-driven control
// flow (PREEMPTED, INCOMPLETE_PRIOR, MISSING_MRC) with an explicit state
// machine returning a result kind and transitions as data; Driver.attempt
// is that state machine, one iteration of the S0->S1->S2->S3 loop per call,
// with the outer Cas method supplying the jittered-backoff retry the
// original expressed as a for-loop around thrown exceptions.
package paxos
