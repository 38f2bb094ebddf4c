// Package workflow owns the export job lifecycle.
//
// The Manager admits jobs (validation, render status checks, size estimate),
// persists them as queued, and hands them to a submitter. ProcessJob drives the
// per-campaign exporter with bounded parallelism and per-campaign retries,
// aggregates results, calls the finalizer, and writes the terminal state. The
// Manager is the only writer of a job record; CancelJob flips the status in
// the store and the processing goroutine observes it between campaigns.
//
// Construct one Manager per process and pass it to the scheduler, the CLI, and
// the daemon. There is no package-level instance.
package workflow
