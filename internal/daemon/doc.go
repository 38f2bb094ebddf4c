// Package daemon coordinates the long-running Shipyard worker process.
//
// It wires the job store, the workflow manager, and the scheduler into a
// single lifecycle with flock-based locking to prevent multiple instances. On
// start it fails jobs interrupted by a previous crash, then sweeps the store
// periodically so queued jobs that missed the scheduler (a full backlog, a
// CLI-created job, a restart) still get processed.
//
// Keep orchestration logic here: export steps live in the workflow and
// exporter packages while the daemon focuses on startup, shutdown, and
// recovery.
package daemon
