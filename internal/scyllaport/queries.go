// Package scyllaport is the concrete gocql-backed implementation of
// the abstract master.Port and worker.Port contracts (spec §6): it
// issues the logical queries the specification names against a real
// Scylla/Cassandra cluster and decodes their rows into the core's
// value types.
package scyllaport

// Query text for the streams-description and generation-timestamp
// tables. The V1/legacy layout is queried with ALLOW FILTERING per
// spec §6; the V2 layout does not need it because time is the full
// partition key.
const (
	qFetchFirstGenerationID = `SELECT time FROM system_distributed.cdc_generation_timestamps ` +
		`WHERE key = 'timestamps' ORDER BY time ASC LIMIT 1`

	qFetchNextGenerationID = `SELECT MIN(time) FROM system_distributed.cdc_generation_timestamps ` +
		`WHERE key = 'timestamps' AND time > ?`

	qRewrittenMarker = `SELECT * FROM system.cdc_local WHERE key = 'rewritten'`

	qStreamsV2 = `SELECT streams FROM system_distributed.cdc_streams_descriptions_v2 WHERE time = ?`

	qStreamsV1 = `SELECT streams FROM system_distributed.cdc_streams_descriptions ` +
		`WHERE time = ? ALLOW FILTERING`

	// qTableTTL reads the `cdc` options map off the base table; the
	// ttl key holds the retention in seconds as a decimal string.
	qTableTTL = `SELECT extensions FROM system_schema.tables WHERE keyspace_name = ? AND table_name = ?`
)

// logTableQuery builds the per-table CDC log read named in spec §6:
// select all columns, bounded by a stream-id set and a half-open
// time-UUID window.
func logTableQuery(keyspace, logTable string) string {
	return `SELECT * FROM "` + keyspace + `"."` + logTable + `" ` +
		`WHERE "cdc$stream_id" IN ? AND "cdc$time" > ? AND "cdc$time" <= ?`
}
