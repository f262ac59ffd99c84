// Package read is the Read Executor: proximity-sorted replica selection,
// data+digest requests, speculative retry, digest-mismatch repair, and a
// multi-partition path that applies an overall limit across partitions.
//
// Clustering-based short-read protection (a follow-up read with an
// adjusted lower bound when a single partition under-returns) does not
// apply here: Result holds one value per key, there is no clustering
// range to advance. See DESIGN.md for the scope decision.
//
// LatencyTracker (latency.go) is SPEC_FULL §4.2's supplemented feature: a
// small decaying-percentile estimator per table feeding the speculative
// retry decision, recovered from original_source/'s
// ColumnFamilyStore.sampleLatencyNanos.
package read
