// Package scyllacdc reads a Scylla/Cassandra Change Data Capture log
// and delivers every row-level change to a consumer exactly once per
// successful run, in (time, stream) order, while tolerating cluster
// topology changes and transient failures.
//
// The package wires together the master/worker coordination engine in
// the internal subpackages: internal/master discovers and advances
// CDC generations, internal/worker walks each generation's tasks
// through their time windows, internal/transport distributes tasks
// and records progress, and internal/scyllaport issues the concrete
// CQL against a gocql.Session. Engine is the entry point that drives
// all of them together for a single process running both the master
// loop and its workers.
package scyllacdc
