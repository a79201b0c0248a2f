package window

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartEndUUIDOrdering(t *testing.T) {
	ts := Timestamp(1700000000123)
	start := StartUUID(ts)
	end := EndUUID(ts + 1)

	require.True(t, lessOrEqual(start, end), "start must not exceed end for the same millisecond")
	require.Equal(t, ts, EmbeddedMillis(start))
	require.Equal(t, ts, EmbeddedMillis(end))
}

func TestEmbeddedMillisRoundTrip(t *testing.T) {
	for _, ms := range []int64{0, 1, 1700000000000, 1700000000001, 4102444800000} {
		ts := Timestamp(ms)
		start := StartUUID(ts)
		end := EndUUID(ts + 1)
		require.Equal(t, ts, EmbeddedMillis(start), "start uuid for %d", ms)
		require.Equal(t, ts, EmbeddedMillis(end), "end uuid for %d", ms)
		require.True(t, lessOrEqual(start, end))
	}
}

func TestEndUUIDIsOneMillisecondBehindWindowEnd(t *testing.T) {
	windowEnd := Timestamp(1700000001000)
	end := EndUUID(windowEnd)
	require.Equal(t, windowEnd-1, EmbeddedMillis(end))
}

func TestAdjacentWindowsDoNotOverlap(t *testing.T) {
	// [a, b) followed by [b, c): the end bound of the first window must
	// sort strictly before the start bound of the second.
	a, b, c := Timestamp(1000), Timestamp(2000), Timestamp(3000)
	firstEnd := EndUUID(b)
	secondStart := StartUUID(b)
	_ = c

	require.True(t, lessOrEqual(firstEnd, secondStart))
	require.NotEqual(t, firstEnd, secondStart)
	_ = a
}

// lessOrEqual compares two time-UUIDs purely by their byte
// representation ordering on the timestamp-bearing fields, which is
// sufficient since both UUIDs are constructed by timeUUID and only
// ever compared within this package's tests.
func lessOrEqual(a, b UUID) bool {
	ma, mb := EmbeddedMillis(a), EmbeddedMillis(b)
	if ma != mb {
		return ma < mb
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return true
}
