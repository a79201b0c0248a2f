// Package worker implements the per-task windowed polling loop: for
// one (generation, vnode, table) task it waits for its window to
// close, reads every change in order, delivers each to the configured
// Consumer exactly once, and reports progress so the task can resume
// after a crash without re-delivering anything already reported.
package worker

import (
	"context"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/task"
)

// Port is the abstract contract the worker loop drives to read CDC log
// rows. A concrete implementation (e.g. internal/scyllaport) issues the
// CQL described in spec §6, including the window's time-UUID bounds.
type Port interface {
	// Prepare is called once per table before any reader is created for
	// it, giving the concrete implementation a chance to pre-fetch
	// column metadata or prepared statements.
	Prepare(ctx context.Context, tables []change.TableName) error

	// CreateReader opens a Reader over t's window, scoped to t.Streams.
	CreateReader(ctx context.Context, t task.Task) (Reader, error)
}

// Reader yields the changes in a single task's window, in the
// (time, stream) order ChangeID.Compare defines.
type Reader interface {
	// NextChange returns the next change in the window, or nil with a
	// nil error once the window is exhausted. The window is never
	// re-read: once NextChange returns nil, the reader is done and
	// should be closed.
	NextChange(ctx context.Context) (*change.RawChange, error)

	// Close releases any resources (driver iterators, page state) held
	// by the reader.
	Close() error
}

// Consumer receives decoded changes in delivery order. A Consumer
// implementation that itself performs at-least-once-safe work (e.g. an
// idempotent upsert keyed by the source row's primary key) is what
// makes the engine's at-least-once delivery behave as exactly-once from
// the caller's perspective.
type Consumer interface {
	Consume(ctx context.Context, c change.RawChange) error
}

// ConsumerFunc adapts a plain function to a Consumer.
type ConsumerFunc func(ctx context.Context, c change.RawChange) error

// Consume implements Consumer.
func (f ConsumerFunc) Consume(ctx context.Context, c change.RawChange) error {
	return f(ctx, c)
}
