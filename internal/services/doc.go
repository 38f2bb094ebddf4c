// Package services defines shared utilities consumed by the export pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, campaign IDs, delivery destinations,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (admission, validation, platform compatibility, finalization,
//     transient) with errors.Is.
//
// Subpackages hold the HTTP and FTP clients used by delivery destinations.
package services
