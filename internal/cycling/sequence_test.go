package cycling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPoint(t *testing.T, mode Mode, literal string) Point {
	t.Helper()
	p, err := ParsePoint(mode, literal)
	require.NoError(t, err)
	return p
}

func mustDuration(t *testing.T, mode Mode, literal string) Duration {
	t.Helper()
	d, err := ParseDuration(mode, literal)
	require.NoError(t, err)
	return d
}

func TestNewSequence_Validation(t *testing.T) {
	t.Parallel()

	start := IntegerPoint(1)
	final := IntegerPoint(10)
	earlier := IntegerPoint(0)

	testCases := []struct {
		name  string
		start Point
		final *Point
		step  Duration
	}{
		{name: "zero step", start: start, step: IntegerDuration(0)},
		{name: "negative step", start: start, step: IntegerDuration(-1)},
		{name: "final precedes start", start: start, final: &earlier, step: IntegerDuration(1)},
		{name: "step domain mismatch", start: start, step: mustDuration(t, DateTime, "P1D")},
		{name: "final domain mismatch", start: start, final: ptr(mustPoint(t, DateTime, "20260101")), step: IntegerDuration(1)},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSequence(tc.start, tc.final, tc.step)
			require.Error(t, err)
		})
	}

	seq, err := NewSequence(start, &final, IntegerDuration(3))
	require.NoError(t, err)
	require.True(t, seq.First().Equal(start))
	require.True(t, seq.Final().Equal(final))
}

func ptr(p Point) *Point { return &p }

func TestSequence_IntegerQueries(t *testing.T) {
	t.Parallel()

	final := IntegerPoint(10)
	seq, err := NewSequence(IntegerPoint(1), &final, IntegerDuration(3))
	require.NoError(t, err)

	// Points are 1, 4, 7, 10.
	require.True(t, seq.Contains(IntegerPoint(1)))
	require.True(t, seq.Contains(IntegerPoint(7)))
	require.False(t, seq.Contains(IntegerPoint(5)))
	require.False(t, seq.Contains(IntegerPoint(0)))
	require.False(t, seq.Contains(IntegerPoint(13)), "beyond the final bound")

	next, ok := seq.Next(IntegerPoint(1))
	require.True(t, ok)
	require.Equal(t, int64(4), next.Int())

	next, ok = seq.Next(IntegerPoint(5))
	require.True(t, ok)
	require.Equal(t, int64(7), next.Int())

	_, ok = seq.Next(IntegerPoint(10))
	require.False(t, ok, "no point past the final bound")

	prev, ok := seq.Previous(IntegerPoint(10))
	require.True(t, ok)
	require.Equal(t, int64(7), prev.Int())

	_, ok = seq.Previous(IntegerPoint(1))
	require.False(t, ok, "nothing before the initial point")

	on, ok := seq.OnOrAfter(IntegerPoint(5))
	require.True(t, ok)
	require.Equal(t, int64(7), on.Int())

	on, ok = seq.OnOrAfter(IntegerPoint(-20))
	require.True(t, ok)
	require.Equal(t, int64(1), on.Int(), "points before the start adjust up to it")
}

func TestSequence_MonthlyDoesNotCompound(t *testing.T) {
	t.Parallel()

	// A monthly step anchored at the 31st must always be computed from the
	// start index. Successive one-month additions would drift: Jan 31 ->
	// Mar 3 -> Apr 3, losing the month-end anchor for good.
	start := mustPoint(t, DateTime, "20260131")
	seq, err := NewSequence(start, nil, mustDuration(t, DateTime, "P1M"))
	require.NoError(t, err)

	cur := seq.PointsFrom(start)
	var got []string
	for i := 0; i < 4; i++ {
		p, ok := cur.Next()
		require.True(t, ok)
		got = append(got, p.String())
	}
	require.Equal(t, []string{
		"20260131T0000Z",
		"20260303T0000Z", // Feb 31 normalizes forward
		"20260331T0000Z", // anchored arithmetic recovers the 31st
		"20260501T0000Z", // Apr 31 normalizes forward
	}, got)
}

func TestSequence_DatetimeQueries(t *testing.T) {
	t.Parallel()

	seq, err := NewSequence(mustPoint(t, DateTime, "20260101T0600Z"), nil, mustDuration(t, DateTime, "PT12H"))
	require.NoError(t, err)

	require.True(t, seq.Contains(mustPoint(t, DateTime, "20260101T1800Z")))
	require.True(t, seq.Contains(mustPoint(t, DateTime, "20260103T0600Z")))
	require.False(t, seq.Contains(mustPoint(t, DateTime, "20260101T1200Z")))

	next, ok := seq.Next(mustPoint(t, DateTime, "20260101T0700Z"))
	require.True(t, ok)
	require.Equal(t, "20260101T1800Z", next.String())

	prev, ok := seq.Previous(mustPoint(t, DateTime, "20260102T0600Z"))
	require.True(t, ok)
	require.Equal(t, "20260101T1800Z", prev.String())
}

func TestSequence_RestartableFromAnyPoint(t *testing.T) {
	t.Parallel()

	seq, err := NewSequence(mustPoint(t, DateTime, "20260101"), nil, mustDuration(t, DateTime, "P1M"))
	require.NoError(t, err)

	// Jumping straight to a far-future point must land on the same series
	// a replay from the start would produce.
	on, ok := seq.OnOrAfter(mustPoint(t, DateTime, "20310615"))
	require.True(t, ok)
	require.Equal(t, "20310701T0000Z", on.String())
	require.True(t, seq.Contains(on))
}
