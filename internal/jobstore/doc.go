// Package jobstore persists export jobs and job templates in SQLite.
//
// The Store manages the database connection, schema initialization, and the
// narrow set of writes the workflow manager needs: full job updates, partial
// progress updates that never move backwards, conditional status changes used
// for cancellation, and template usage counters. Nested job structures
// (format, destination, options, results, metadata) are stored as JSON
// columns.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt the new schema.
package jobstore
