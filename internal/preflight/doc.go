// Package preflight provides readiness checks for the directories, binaries,
// and delivery endpoints that Shipyard depends on.
//
// These checks run in two contexts:
//   - The worker daemon calls RunAll on start and logs every failure, so a
//     misconfigured destination shows up before the first job fails on it.
//   - The CLI "shipyard status" command prints the same results.
//
// Destination checks are gated by configuration; unconfigured providers are
// skipped rather than reported as failures.
package preflight
