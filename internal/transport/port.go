// Package transport defines the boundary between the coordination
// engine (master and worker loops) and whatever distributes tasks to
// workers and durably records their progress. The core ships one
// implementation, Local, for single-process use and tests; production
// deployments are expected to supply their own (e.g. backed by a
// shared database or an orchestration framework) satisfying the same
// Port contract.
package transport

import (
	"context"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/window"
)

// Port is consumed by both the master loop (generation lifecycle) and
// the worker loop (per-task progress reporting). Implementations must
// preserve the monotonicity invariant on reported TaskState: WindowEnd
// never regresses for a given task id, even under concurrent or
// duplicate reports.
type Port interface {
	// CurrentGenerationID returns a restart hint: the generation the
	// transport last knew to be active, if any. When present, the
	// master skips initial generation discovery.
	CurrentGenerationID(ctx context.Context) (*gen.ID, error)

	// ConfigureWorkers delivers the authoritative task set for the
	// current generation. Any prior configuration is superseded;
	// in-flight reads against retired generations may complete, but
	// their progress reports are ignored once their generation is no
	// longer configured.
	ConfigureWorkers(ctx context.Context, tasks map[task.ID][]change.StreamID) error

	// ReportProgress durably records a task's new state. At-least-once:
	// implementations may be called repeatedly with the same or a
	// stale state after a worker retry and must tolerate it.
	ReportProgress(ctx context.Context, id task.ID, state task.State) error

	// AreTasksFullyConsumedUntil reports whether every one of the given
	// tasks has durably advanced its window start beyond t.
	AreTasksFullyConsumedUntil(ctx context.Context, tasks map[task.ID][]change.StreamID, t window.Timestamp) (bool, error)
}

// TaskObserver is an optional capability a Port implementation may
// offer: a way for an in-process caller to learn the currently
// configured task set and wait for it to change. Local implements it;
// a transport backed by a separate worker fleet typically would not,
// since in that deployment shape the workers learn their assignment
// some other way (e.g. polling the same durable store directly).
type TaskObserver interface {
	// Tasks returns the task set from the most recent ConfigureWorkers
	// call.
	Tasks() map[task.ID][]change.StreamID

	// Changed returns a version counter and a channel that closes the
	// next time the task set or any task's progress changes.
	Changed() (int, <-chan struct{})
}
