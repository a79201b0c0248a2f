package transport

import (
	"context"
	"testing"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/task"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/stretchr/testify/require"
)

func TestLocalConfigureWorkersRetainsStateForSurvivingTasks(t *testing.T) {
	l := NewLocal()
	id := task.ID{Generation: 1, VNode: 0, Table: change.TableName{Keyspace: "ks", Name: "t"}}
	streams := []change.StreamID{{0x01}}

	require.NoError(t, l.ConfigureWorkers(context.Background(), map[task.ID][]change.StreamID{id: streams}))

	state := task.State{WindowStart: 1000, WindowEnd: 2000}
	require.NoError(t, l.ReportProgress(context.Background(), id, state))

	got, ok := l.State(id)
	require.True(t, ok)
	require.Equal(t, state, got)

	// Reconfiguring with the same task id must keep its reported state.
	require.NoError(t, l.ConfigureWorkers(context.Background(), map[task.ID][]change.StreamID{id: streams}))
	got, ok = l.State(id)
	require.True(t, ok)
	require.Equal(t, state, got)

	require.Equal(t, map[task.ID][]change.StreamID{id: streams}, l.Tasks())
}

func TestLocalConfigureWorkersDropsStateForRemovedTasks(t *testing.T) {
	l := NewLocal()
	id := task.ID{Generation: 1, VNode: 0, Table: change.TableName{Keyspace: "ks", Name: "t"}}
	require.NoError(t, l.ConfigureWorkers(context.Background(), map[task.ID][]change.StreamID{id: {{0x01}}}))
	require.NoError(t, l.ReportProgress(context.Background(), id, task.State{WindowStart: 1, WindowEnd: 2}))

	require.NoError(t, l.ConfigureWorkers(context.Background(), map[task.ID][]change.StreamID{}))
	_, ok := l.State(id)
	require.False(t, ok)
}

func TestLocalAreTasksFullyConsumedUntil(t *testing.T) {
	l := NewLocal()
	id := task.ID{Generation: 1, VNode: 0, Table: change.TableName{Keyspace: "ks", Name: "t"}}
	tasks := map[task.ID][]change.StreamID{id: {{0x01}}}
	require.NoError(t, l.ConfigureWorkers(context.Background(), tasks))

	done, err := l.AreTasksFullyConsumedUntil(context.Background(), tasks, window.Timestamp(5000))
	require.NoError(t, err)
	require.False(t, done, "no progress reported yet")

	require.NoError(t, l.ReportProgress(context.Background(), id, task.State{WindowStart: 6000, WindowEnd: 7000}))
	done, err = l.AreTasksFullyConsumedUntil(context.Background(), tasks, window.Timestamp(5000))
	require.NoError(t, err)
	require.True(t, done)
}

func TestLocalChangedSignalsOnReportProgress(t *testing.T) {
	l := NewLocal()
	id := task.ID{Generation: 1, VNode: 0, Table: change.TableName{Keyspace: "ks", Name: "t"}}
	require.NoError(t, l.ConfigureWorkers(context.Background(), map[task.ID][]change.StreamID{id: {{0x01}}}))

	_, ch := l.Changed()
	require.NoError(t, l.ReportProgress(context.Background(), id, task.State{WindowStart: 1, WindowEnd: 2}))

	select {
	case <-ch:
	default:
		t.Fatal("expected Changed channel to fire after ReportProgress")
	}
}
