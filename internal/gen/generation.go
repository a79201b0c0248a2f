// Package gen holds the generation metadata types the master loop
// discovers and advances through.
package gen

import (
	"sort"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/window"
)

// ID is the timestamp at which a ring-topology generation became
// active. It doubles as the generation's identity.
type ID = task.GenID

// Metadata describes one CDC generation: its start, optional end,
// optional successor, and the set of streams active during its
// lifetime.
//
// Invariant: once End is set it never reverts to nil, and once set,
// End > ID. Streams is non-empty once the generation is observable by
// callers (i.e. by the time master.Port.GenerationMetadata returns it).
type Metadata struct {
	ID      ID
	End     *window.Timestamp
	Next    *ID
	Streams []change.StreamID
}

// SortedStreams returns a copy of m.Streams sorted by byte value, the
// canonical order used when grouping streams into tasks.
func (m Metadata) SortedStreams() []change.StreamID {
	out := make([]change.StreamID, len(m.Streams))
	copy(out, m.Streams)
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// IsDone reports whether the generation has a known end.
func (m Metadata) IsDone() bool {
	return m.End != nil
}
