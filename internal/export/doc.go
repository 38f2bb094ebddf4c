// Package export defines the domain model shared by the export pipeline:
// export jobs and their requested format, destination, and options, the
// per-campaign results and files they produce, reusable job templates, and
// the lifecycle rules that govern job status transitions.
//
// Types carry JSON tags because the job store persists nested structures as
// JSON columns and the CLI prints them verbatim with --json.
package export
