package task

import (
	"testing"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/stretchr/testify/require"
)

func TestCreateInitial(t *testing.T) {
	s := CreateInitial(1700000000000, 1000)
	require.Equal(t, window.Timestamp(1700000000000), s.WindowStart)
	require.Equal(t, window.Timestamp(1700000001000), s.WindowEnd)
	require.Nil(t, s.LastConsumed)
}

func TestMoveToNextWindowResetsLastConsumedAndIsMonotone(t *testing.T) {
	s := CreateInitial(1700000000000, 1000)
	id := change.ChangeID{Time: window.StartUUID(1700000000500)}
	s = s.Update(id)
	require.NotNil(t, s.LastConsumed)

	next := s.MoveToNextWindow(1000)
	require.Nil(t, next.LastConsumed)
	require.Equal(t, s.WindowEnd, next.WindowStart)
	require.Greater(t, int64(next.WindowEnd), int64(s.WindowEnd))
}

func TestUpdatePreservesWindowBounds(t *testing.T) {
	s := CreateInitial(1700000000000, 1000)
	id := change.ChangeID{Time: window.StartUUID(1700000000500)}
	updated := s.Update(id)
	require.Equal(t, s.WindowStart, updated.WindowStart)
	require.Equal(t, s.WindowEnd, updated.WindowEnd)
	require.NotNil(t, updated.LastConsumed)
}

func TestHasPassed(t *testing.T) {
	s := State{WindowStart: 2000, WindowEnd: 3000}
	require.True(t, s.HasPassed(1999))
	require.False(t, s.HasPassed(2000))
	require.False(t, s.HasPassed(2500))
}

func TestEqual(t *testing.T) {
	a := CreateInitial(1000, 500)
	b := CreateInitial(1000, 500)
	require.True(t, a.Equal(b))

	id := change.ChangeID{Time: window.StartUUID(1200)}
	c := a.Update(id)
	require.False(t, a.Equal(c))
	d := a.Update(id)
	require.True(t, c.Equal(d))
}

func TestSuccessiveStatesStrictlyMonotone(t *testing.T) {
	s := CreateInitial(0, 100)
	prevEnd := s.WindowEnd
	for i := 0; i < 5; i++ {
		s = s.MoveToNextWindow(100)
		require.Equal(t, prevEnd, s.WindowStart, "window start must equal previous window end")
		require.Greater(t, int64(s.WindowEnd), int64(prevEnd))
		prevEnd = s.WindowEnd
	}
}
