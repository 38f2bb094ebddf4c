// Package logging assembles structured slog loggers and formatting helpers used
// across Shipyard.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so exporter and delivery code can
// automatically tag log lines with job IDs, campaign IDs, destinations, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
