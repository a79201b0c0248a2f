package scyllaport

import (
	"context"
	"sync"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/cdc-go/scyllacdc/internal/worker"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// WorkerPort is the gocql-backed worker.Port: it prepares one query
// per CDC log table and opens a paging gocql.Iter scoped to a task's
// stream set and window bounds for each reader.
type WorkerPort struct {
	session *gocql.Session
	hosts   int

	mu       sync.Mutex
	prepared map[change.TableName]string // cached query text, keyed by table (write-once per table).
}

// NewWorkerPort wraps session. See MasterPort.hosts for why host count
// is fixed at construction rather than polled live.
func NewWorkerPort(session *gocql.Session, hosts int) *WorkerPort {
	return &WorkerPort{session: session, hosts: hosts, prepared: make(map[change.TableName]string)}
}

var _ worker.Port = (*WorkerPort)(nil)

func (p *WorkerPort) consistency() gocql.Consistency {
	if p.hosts > 1 {
		return gocql.Quorum
	}
	return gocql.One
}

// Prepare implements worker.Port. It is idempotent: tables already
// cached are left untouched, and the cache is only ever added to, so
// a reader created concurrently with a Prepare call for a different
// table never observes a half-built cache entry.
func (p *WorkerPort) Prepare(_ context.Context, tables []change.TableName) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tables {
		if _, ok := p.prepared[t]; ok {
			continue
		}
		p.prepared[t] = logTableQuery(t.Keyspace, t.LogTable())
	}
	return nil
}

// CreateReader implements worker.Port, binding the task's stream set
// and window bounds into the table's cached query at read-level
// consistency.
func (p *WorkerPort) CreateReader(ctx context.Context, t task.Task) (worker.Reader, error) {
	p.mu.Lock()
	stmt, ok := p.prepared[t.ID.Table]
	p.mu.Unlock()
	if !ok {
		return nil, errors.Errorf("table %s was never prepared", t.ID.Table)
	}

	ids := make([][]byte, len(t.Streams))
	for i, s := range t.Streams {
		b := make([]byte, 16)
		copy(b, s[:])
		ids[i] = b
	}

	start := window.StartUUID(t.State.WindowStart)
	end := window.EndUUID(t.State.WindowEnd)

	iter := p.session.Query(stmt, ids, start[:], end[:]).
		Consistency(p.consistency()).WithContext(ctx).Iter()

	return &reader{
		iter:    iter,
		table:   t.ID.Table,
		columns: iter.Columns(),
	}, nil
}

// reader adapts a paging gocql.Iter to worker.Reader, decoding the
// query's CQL column metadata into a change.Schema once per reader.
// The worker loop opens a fresh reader — and therefore a fresh schema —
// for every window; pages fetched within one window share the schema.
type reader struct {
	iter    *gocql.Iter
	table   change.TableName
	columns []gocql.ColumnInfo
	schema  *change.Schema
}

var _ worker.Reader = (*reader)(nil)

func (r *reader) buildSchema() *change.Schema {
	if r.schema != nil {
		return r.schema
	}
	cols := make([]change.ColumnSchema, 0, len(r.columns))
	for _, c := range r.columns {
		kind := change.ColumnRegular
		name := c.Name
		if isDeletedMarkerColumn(name) {
			kind = change.ColumnDeleted
		}
		if isMetaColumn(name) {
			continue
		}
		cols = append(cols, change.ColumnSchema{Name: name, Kind: kind, Type: c.TypeInfo.Type().String()})
	}
	r.schema = &change.Schema{Table: r.table, Columns: cols}
	return r.schema
}

// NextChange implements worker.Reader.
func (r *reader) NextChange(ctx context.Context) (*change.RawChange, error) {
	row := map[string]interface{}{}
	if !r.iter.MapScan(row) {
		if err := r.iter.Close(); err != nil {
			return nil, errors.Wrap(err, "closing cdc log iterator")
		}
		return nil, nil
	}

	id, op, err := decodeChangeID(row)
	if err != nil {
		return nil, err
	}

	rc := &change.RawChange{
		ID:        id,
		Table:     r.table,
		Operation: op,
		Schema:    r.buildSchema(),
		Columns:   row,
	}
	return rc, nil
}

// Close implements worker.Reader.
func (r *reader) Close() error {
	return r.iter.Close()
}

func isMetaColumn(name string) bool {
	switch name {
	case "cdc$stream_id", "cdc$time", "cdc$batch_seq_no", "cdc$operation",
		"cdc$ttl", "cdc$end_of_batch":
		return true
	}
	return false
}

func isDeletedMarkerColumn(name string) bool {
	return len(name) > len("cdc$deleted_") && name[:len("cdc$deleted_")] == "cdc$deleted_"
}
