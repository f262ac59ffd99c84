// Package rangescan implements the Range Scan Driver (spec.md §4.F):
// splitting a query range at replica-set boundaries, merging adjacent
// pieces whose live endpoints still satisfy the consistency level, and
// adaptively tuning how many sub-ranges are in flight at once based on
// rows returned per range so far.
package rangescan
