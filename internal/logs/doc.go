// Package logs reads the daemon's JSON log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines in follow mode. Entry parses one JSON record so callers
// can filter by job or campaign and print a compact line per record.
package logs
