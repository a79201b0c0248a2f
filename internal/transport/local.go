package transport

import (
	"context"
	"sync"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/gen"
	"github.com/cdc-go/scyllacdc/internal/notify"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/window"
)

// Local is an in-process Port implementation: it keeps the task set
// and every task's last-reported State in memory, guarded by a mutex,
// and publishes changes through a notify.Var so callers that want to
// await progress (as tests do) don't have to poll.
//
// Local does not persist anything across restarts; CurrentGenerationID
// always returns nil, which is the correct behavior for a transport
// with no durable state (the master falls back to first-generation
// discovery).
type Local struct {
	mu struct {
		sync.Mutex
		states map[task.ID]task.State
		tasks  map[task.ID][]change.StreamID
	}
	changed notify.Var[int] // incremented on every ReportProgress/ConfigureWorkers
	version int
}

// NewLocal returns a ready-to-use Local transport.
func NewLocal() *Local {
	l := &Local{}
	l.mu.states = make(map[task.ID]task.State)
	l.mu.tasks = make(map[task.ID][]change.StreamID)
	return l
}

var _ Port = (*Local)(nil)

// CurrentGenerationID implements Port. Local carries no durable
// restart hint.
func (l *Local) CurrentGenerationID(context.Context) (*gen.ID, error) {
	return nil, nil
}

// ConfigureWorkers implements Port. It replaces the tracked task set;
// any task id no longer present is dropped from tracking (its
// in-flight progress reports, if any arrive late, are ignored by
// ReportProgress below).
func (l *Local) ConfigureWorkers(_ context.Context, tasks map[task.ID][]change.StreamID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[task.ID]task.State, len(tasks))
	for id := range tasks {
		if prev, ok := l.mu.states[id]; ok {
			next[id] = prev
		}
	}
	l.mu.states = next
	l.mu.tasks = tasks
	l.bump()
	return nil
}

// Tasks returns the task set from the most recent ConfigureWorkers
// call, for callers (the in-process Engine) that need to know which
// streams a task owns in order to spawn a worker loop for it.
func (l *Local) Tasks() map[task.ID][]change.StreamID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[task.ID][]change.StreamID, len(l.mu.tasks))
	for id, streams := range l.mu.tasks {
		out[id] = streams
	}
	return out
}

// ReportProgress implements Port. Reports for a task that is not in
// the current task set, and reports whose WindowEnd is behind the one
// already recorded, are ignored.
func (l *Local) ReportProgress(_ context.Context, id task.ID, state task.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.mu.tasks[id]; !ok {
		return nil
	}
	if prev, ok := l.mu.states[id]; ok && state.WindowEnd < prev.WindowEnd {
		return nil
	}
	l.mu.states[id] = state
	l.bump()
	return nil
}

// AreTasksFullyConsumedUntil implements Port.
func (l *Local) AreTasksFullyConsumedUntil(
	_ context.Context, tasks map[task.ID][]change.StreamID, t window.Timestamp,
) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range tasks {
		st, ok := l.mu.states[id]
		if !ok || !st.HasPassed(t) {
			return false, nil
		}
	}
	return true, nil
}

// State returns the last-reported state for id, for tests and
// diagnostics.
func (l *Local) State(id task.ID) (task.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.mu.states[id]
	return st, ok
}

// Changed returns the current version counter and a channel that
// closes the next time any state changes, letting callers await
// progress instead of polling.
func (l *Local) Changed() (int, <-chan struct{}) {
	return l.changed.Get()
}

// bump must be called with l.mu held.
func (l *Local) bump() {
	l.version++
	l.changed.Set(l.version)
}
