package pool

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/graph"
	"github.com/gabersek/cylc/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// intRegistry builds an integer-domain registry where each named task
// cycles 1, 2, ... up to final (0 means unbounded), with the graph lines
// compiled on.
func intRegistry(t *testing.T, names []string, final int64, lines []string) *task.Registry {
	t.Helper()
	reg := task.NewRegistry()
	var finalPt *cycling.Point
	if final > 0 {
		f := cycling.IntegerPoint(final)
		finalPt = &f
	}
	for _, n := range names {
		seq, err := cycling.NewSequence(cycling.IntegerPoint(1), finalPt, cycling.IntegerDuration(1))
		require.NoError(t, err)
		require.NoError(t, reg.Add(&task.Definition{Name: n, Sequence: seq}))
	}
	triggers, err := graph.ParseLines(cycling.Integer, lines, reg)
	require.NoError(t, err)
	require.NoError(t, reg.AttachTriggers(triggers))
	return reg
}

func pt(v int64) cycling.Point { return cycling.IntegerPoint(v) }

func TestPool_SeedSpawnsFirstPoints(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b"}, 0, []string{"a => b"})
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	all := pl.All()
	require.Len(t, all, 2)
	require.Equal(t, "a.1", all[0].ID())
	require.Equal(t, "b.1", all[1].ID())
	require.True(t, pl.Active())
}

func TestPool_SpawnIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a"}, 0, nil)
	pl := New(reg, testLogger())
	def, _ := reg.Get("a")

	first, err := pl.Spawn(def, pt(3))
	require.NoError(t, err)
	second, err := pl.Spawn(def, pt(3))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Len(t, pl.All(), 1)
}

func TestPool_SpawnBounds(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a"}, 3, nil)
	pl := New(reg, testLogger())
	def, _ := reg.Get("a")

	_, err := pl.Spawn(def, pt(4))
	var oor *SpawnOutOfRangeError
	require.ErrorAs(t, err, &oor)
	require.Equal(t, "a", oor.Task)

	// An off-sequence point inside the bounds is silently skipped.
	proxy, err := pl.Spawn(def, pt(0))
	require.NoError(t, err)
	require.Nil(t, proxy)
	require.True(t, pl.Empty())
}

func TestPool_ApplyOutputSpawnsDownstream(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b"}, 0, []string{"a => b"})
	pl := New(reg, testLogger())
	def, _ := reg.Get("a")
	_, err := pl.Spawn(def, pt(1))
	require.NoError(t, err)

	changed, err := pl.ApplyOutput(task.Ref{Task: "a", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)

	b, ok := pl.Get("b", pt(1))
	require.True(t, ok, "the achieved output spawns its dependent at the same point")
	require.True(t, b.PrereqsSatisfied(), "the triggering event satisfies its own leaf")
	require.NotContains(t, changed, b, "freshly spawned proxies are not re-reported as changed")
}

func TestPool_CrossCycleSpawnAddressing(t *testing.T) {
	t.Parallel()

	// "b[-1] => a" means a at P depends on b at P-1; b succeeding at P
	// must spawn a at P+1, not anywhere else.
	reg := intRegistry(t, []string{"a", "b"}, 0, []string{"a => b", "b[-1] => a"})
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	_, err := pl.ApplyOutput(task.Ref{Task: "a", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	_, ok := pl.Get("a", pt(2))
	require.False(t, ok, "a.2 must wait for b.1, not spawn off a's own output")

	_, err = pl.ApplyOutput(task.Ref{Task: "b", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)

	a2, ok := pl.Get("a", pt(2))
	require.True(t, ok)
	require.True(t, a2.PrereqsSatisfied())
}

func TestPool_SpawnBeyondFinalBoundIsSkipped(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b"}, 1, []string{"b[-1] => a"})
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	// b.1 succeeding would spawn a.2, which is past the final point; the
	// event must still propagate without error.
	_, err := pl.ApplyOutput(task.Ref{Task: "b", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	_, ok := pl.Get("a", pt(2))
	require.False(t, ok)
}

func TestPool_BackfillFromAchievedOutputs(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b", "c"}, 0, []string{"a & c => b"})
	pl := New(reg, testLogger())
	defA, _ := reg.Get("a")
	defB, _ := reg.Get("b")

	a, err := pl.Spawn(defA, pt(1))
	require.NoError(t, err)
	a.AchieveOutput(task.ParseOutput(task.LabelSucceeded))

	// b spawns after a already succeeded; backfill must cover the gap.
	b, err := pl.Spawn(defB, pt(1))
	require.NoError(t, err)
	require.Equal(t, []task.Ref{{Task: "c", Point: pt(1), Output: "succeeded"}}, b.UnsatisfiedRefs())
}

func TestPool_SpawnNext(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a"}, 2, nil)
	pl := New(reg, testLogger())
	def, _ := reg.Get("a")

	require.NoError(t, pl.SpawnNext(def, pt(1)))
	_, ok := pl.Get("a", pt(2))
	require.True(t, ok)

	// Past the final bound there is no next point; not an error.
	require.NoError(t, pl.SpawnNext(def, pt(2)))
	require.Len(t, pl.All(), 1)
}

func TestPool_RemovedProxyNeverRespawns(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b"}, 0, []string{"a => b"})
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	b, _ := pl.Get("b", pt(1))
	b.Remove()
	pl.Remove(b)

	// a succeeding would normally spawn b.1 again; a proxy that already
	// lived and left the pool must stay gone.
	_, err := pl.ApplyOutput(task.Ref{Task: "a", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	_, ok := pl.Get("b", pt(1))
	require.False(t, ok)
}

func TestPool_ReapKeepsReferencedProxies(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a", "b", "c"}, 0, []string{"a & c => b"})
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	a, _ := pl.Get("a", pt(1))
	require.NoError(t, a.Promote())
	require.NoError(t, a.MarkSubmitted())
	require.NoError(t, a.MarkSucceeded())

	// b.1 still waits on c.1 but its a.1 leaf is satisfied by the event,
	// so nothing references a.1 any more and it reaps.
	_, err := pl.ApplyOutput(task.Ref{Task: "a", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	reaped := pl.Reap()
	require.Len(t, reaped, 1)
	require.Equal(t, "a.1", reaped[0].ID())
	_, ok := pl.Get("a", pt(1))
	require.False(t, ok)
}

func TestPool_ReapHonorsRetention(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"a"}, 0, nil)
	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	a, _ := pl.Get("a", pt(1))
	require.NoError(t, a.Promote())
	require.NoError(t, a.MarkSubmitted())
	require.NoError(t, a.MarkSucceeded())
	a.Retained = true

	require.Empty(t, pl.Reap())
	a.Retained = false
	require.Len(t, pl.Reap(), 1)
}

func TestPool_RefreshRewidensAfterFamilyGrowth(t *testing.T) {
	t.Parallel()

	reg := intRegistry(t, []string{"m1", "m2", "sink"}, 0, nil)
	reg.AddFamily("FAM", []string{"m1"})
	triggers, err := graph.ParseLines(cycling.Integer, []string{"FAM => sink"}, reg)
	require.NoError(t, err)
	require.NoError(t, reg.AttachTriggers(triggers))

	pl := New(reg, testLogger())
	require.NoError(t, pl.Seed())

	sink, _ := pl.Get("sink", pt(1))
	_, err = pl.ApplyOutput(task.Ref{Task: "m1", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	require.True(t, sink.PrereqsSatisfied())

	reg.AddMember("FAM", "m2")
	require.NoError(t, pl.Refresh())
	require.False(t, sink.PrereqsSatisfied(), "the new member widens the requirement")

	// The rebuilt spawn index routes the new member's outputs too.
	_, err = pl.ApplyOutput(task.Ref{Task: "m2", Point: pt(1), Output: "succeeded"})
	require.NoError(t, err)
	require.True(t, sink.PrereqsSatisfied())
}
