// Package task implements the per-task cursor the worker loop advances
// and the identity types that tie a task to a generation, vnode, and
// table. State is value-typed throughout: every mutation returns a new
// State rather than modifying the receiver, so a retry can always
// reference the last value that was durably reported.
package task

import (
	"fmt"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/window"
)

// GenID identifies the generation a task belongs to.
type GenID window.Timestamp

// ID identifies a task by the tuple (generation, vnode, table).
// Identity is by value equality, so ID is safe to use as a map key.
type ID struct {
	Generation GenID
	VNode      change.VNodeID
	Table      change.TableName
}

func (id ID) String() string {
	return fmt.Sprintf("gen=%d/vnode=%d/%s", id.Generation, id.VNode, id.Table)
}

// State is the immutable cursor for a single task: the half-open
// window currently being read, and the last change consumed within it.
type State struct {
	WindowStart  window.Timestamp
	WindowEnd    window.Timestamp
	LastConsumed *change.ChangeID // nil until the first change in the window is consumed.
}

// CreateInitial builds the first State of a task belonging to a
// generation that started at genStart, with the given window size.
func CreateInitial(genStart window.Timestamp, windowSize int64) State {
	return State{
		WindowStart: genStart,
		WindowEnd:   genStart + window.Timestamp(windowSize),
	}
}

// MoveToNextWindow advances the cursor to a fresh window starting
// where the current one ended, clearing LastConsumed: the new window
// has not been read yet.
func (s State) MoveToNextWindow(nextWindowSize int64) State {
	return State{
		WindowStart: s.WindowEnd,
		WindowEnd:   s.WindowEnd + window.Timestamp(nextWindowSize),
	}
}

// Update records id as the last change consumed in the current window.
// The window bounds are unchanged.
func (s State) Update(id change.ChangeID) State {
	id2 := id
	return State{
		WindowStart:  s.WindowStart,
		WindowEnd:    s.WindowEnd,
		LastConsumed: &id2,
	}
}

// HasPassed reports whether this task's window has moved entirely
// beyond t, i.e. whether the task can no longer produce a change whose
// time falls at or before t.
func (s State) HasPassed(t window.Timestamp) bool {
	return s.WindowStart > t
}

// Equal reports structural equality over all three fields.
func (s State) Equal(o State) bool {
	if s.WindowStart != o.WindowStart || s.WindowEnd != o.WindowEnd {
		return false
	}
	if (s.LastConsumed == nil) != (o.LastConsumed == nil) {
		return false
	}
	if s.LastConsumed == nil {
		return true
	}
	return s.LastConsumed.Compare(*o.LastConsumed) == 0
}

// Task is the unit of work the master hands to a worker: the set of
// streams to read, all sharing the vnode named by ID.VNode, plus the
// cursor tracking how far the worker has gotten.
type Task struct {
	ID      ID
	Streams []change.StreamID
	State   State
}
