// Package testutil provides in-memory fakes for pipeline tests.
//
// SliceSource serves float64 records from a slice and implements the
// full Source contract, including shuffling, epoch accounting and
// drop-last handling. RecordBatch is the matching Batch implementation,
// and NewRegistry returns a capability registry with the small set of
// transformations the test suites build pipelines from. MemorySession
// is a channel-backed sink session for queue attachment tests.
//
// Everything here is deterministic when a seed is supplied, so tests
// can assert exact delivery order across sequential and prefetched
// runs.
package testutil
