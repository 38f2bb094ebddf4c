// Package main hosts the Shipyard CLI entrypoint and command graph.
//
// Commands open the job database directly. Jobs created here are queued and
// picked up by the worker daemon's recovery sweep; "job process" runs a job
// in the foreground instead. Jobs are claimed with a status-guarded update,
// so a foreground run and the daemon never process the same job twice.
package main
