package jobsim

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/scheduler"
)

// collector gathers posted messages safely across workers.
type collector struct {
	mu   sync.Mutex
	msgs []scheduler.Message
}

func (c *collector) post(m scheduler.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) outputsFor(task string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.msgs {
		if m.Task == task {
			out = append(out, m.Output)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_HappyPath(t *testing.T) {
	t.Parallel()

	c := &collector{}
	r := New(cycling.Integer, c.post, testLogger(), Options{Workers: 2})
	r.Start(context.Background())

	id, err := r.Submit(context.Background(), scheduler.JobSpec{Task: "a", Point: "1", Try: 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	r.Stop()

	require.Equal(t, []string{"submitted", "started", "succeeded"}, c.outputsFor("a"))
}

func TestRunner_ScriptedFailureThenSuccess(t *testing.T) {
	t.Parallel()

	c := &collector{}
	r := New(cycling.Integer, c.post, testLogger(), Options{
		Workers: 1,
		Script:  Script{FailFirst: map[string]int{"a.1": 1}},
	})
	r.Start(context.Background())

	_, err := r.Submit(context.Background(), scheduler.JobSpec{Task: "a", Point: "1", Try: 1})
	require.NoError(t, err)
	_, err = r.Submit(context.Background(), scheduler.JobSpec{Task: "a", Point: "1", Try: 2})
	require.NoError(t, err)
	r.Stop()

	require.Equal(t, []string{
		"submitted", "started", "failed",
		"submitted", "started", "succeeded",
	}, c.outputsFor("a"))
}

func TestRunner_EmitsCustomOutputsBeforeSucceeded(t *testing.T) {
	t.Parallel()

	c := &collector{}
	r := New(cycling.Integer, c.post, testLogger(), Options{
		Workers: 1,
		Script:  Script{Emit: map[string][]string{"fetch": {"staged"}}},
	})
	r.Start(context.Background())

	_, err := r.Submit(context.Background(), scheduler.JobSpec{Task: "fetch", Point: "1", Try: 1})
	require.NoError(t, err)
	r.Stop()

	require.Equal(t, []string{"submitted", "started", "staged", "succeeded"}, c.outputsFor("fetch"))
}

func TestRunner_MessagesCarryParsedPoints(t *testing.T) {
	t.Parallel()

	c := &collector{}
	r := New(cycling.DateTime, c.post, testLogger(), Options{Workers: 1})
	r.Start(context.Background())

	_, err := r.Submit(context.Background(), scheduler.JobSpec{Task: "a", Point: "20260101T0600Z", Try: 1})
	require.NoError(t, err)
	r.Stop()

	require.NotEmpty(t, c.msgs)
	require.Equal(t, "20260101T0600Z", c.msgs[0].Point.String())
	require.Equal(t, cycling.DateTime, c.msgs[0].Point.Mode())
}
