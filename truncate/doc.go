// Package truncate implements the Truncate Driver (spec.md §4.I): an
// all-nodes broadcast truncate that requires every token-owning endpoint to
// be alive before sending a single message, and waits for full
// acknowledgement from all of them.
package truncate
