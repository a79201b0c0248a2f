// Package change defines the value types that describe a single CDC
// log entry and the stream/table identifiers it is addressed by.
package change

import (
	"fmt"

	"github.com/cdc-go/scyllacdc/internal/window"
)

// StreamID is the opaque 16-byte identifier Scylla/Cassandra assigns
// to each CDC stream.
type StreamID [16]byte

func (s StreamID) String() string {
	return fmt.Sprintf("%x", [16]byte(s))
}

// VNodeID is the coarse partitioning key used to group streams into
// tasks. The engine documents which bits of the stream id identify the
// owning vnode; this implementation treats the most-significant byte
// as that key, which is sufficient to satisfy the one invariant the
// specification actually requires: equal streams always yield equal
// vnode ids, and distinct vnodes' streams are never merged into the
// same task.
type VNodeID byte

// VNodeID derives the vnode id that owns this stream.
func (s StreamID) VNodeID() VNodeID {
	return VNodeID(s[0])
}

// TableName identifies a CDC-enabled table in the source keyspace.
type TableName struct {
	Keyspace string
	Name     string
}

func (t TableName) String() string {
	return t.Keyspace + "." + t.Name
}

// LogTable is the name of the CDC log table backing Name, following
// the engine's `<table>_scylla_cdc_log` convention.
func (t TableName) LogTable() string {
	return t.Name + "_scylla_cdc_log"
}

// ChangeID identifies a single row in a CDC log table and totally
// orders changes by (Time, StreamID).
type ChangeID struct {
	StreamID StreamID
	Time     window.UUID
}

// Compare returns -1, 0, or 1 as id and other are ordered by
// (Time, StreamID).
func (id ChangeID) Compare(other ChangeID) int {
	if c := window.Compare(window.EmbeddedMillis(id.Time), window.EmbeddedMillis(other.Time)); c != 0 {
		return c
	}
	for i := range id.Time {
		if id.Time[i] != other.Time[i] {
			if id.Time[i] < other.Time[i] {
				return -1
			}
			return 1
		}
	}
	for i := range id.StreamID {
		if id.StreamID[i] != other.StreamID[i] {
			if id.StreamID[i] < other.StreamID[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ColumnKind distinguishes regular CDC log columns from the value
// columns of the base table.
type ColumnKind int

const (
	// ColumnRegular is an ordinary source-table column as captured in
	// the CDC log.
	ColumnRegular ColumnKind = iota
	// ColumnDeleted marks a `cdc$deleted_<col>` boolean companion
	// column.
	ColumnDeleted
)

// ColumnSchema describes one column of a CDC log row.
type ColumnSchema struct {
	Name string
	Kind ColumnKind
	Type string // engine-reported CQL type name; adapted by callers
}

// Schema describes the column layout of a single CDC log table as of
// the reader in which it was observed. A new reader is opened for
// every window (and every retry of one), so mid-stream schema changes
// (new/dropped columns) are picked up at the next window without
// requiring a process restart; a change within a window is not.
type Schema struct {
	Table   TableName
	Columns []ColumnSchema
}

// Operation is the kind of row-level change a RawChange represents.
type Operation int

const (
	// OperationUnknown is the zero value and should never be observed
	// on a successfully decoded RawChange.
	OperationUnknown Operation = iota
	OperationInsert
	OperationUpdate
	OperationDelete
	// OperationPreImage carries the row's state before the mutation,
	// present only when the source table was created WITH
	// cdc = {'preimage': true}.
	OperationPreImage
	// OperationPostImage carries the row's state after the mutation.
	OperationPostImage
)

// RawChange is a single decoded row from a CDC log table. Field
// decoding (mapping CQL column values to Go types) is an external
// collaborator's concern; this type only carries what the master/
// worker coordination engine itself needs.
type RawChange struct {
	ID        ChangeID
	Table     TableName
	Operation Operation
	Schema    *Schema
	// Columns holds the decoded column values, keyed by column name, as
	// produced by the engine-specific row decoder.
	Columns map[string]any
}
