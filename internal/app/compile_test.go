package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gabersek/cylc/internal/config"
	"github.com/gabersek/cylc/internal/cycling"
)

func baseWorkflow() *config.Workflow {
	return &config.Workflow{
		Scheduling: config.Scheduling{
			Cycling:      "integer",
			InitialPoint: "1",
			FinalPoint:   "5",
			DefaultCycle: "1",
		},
		Tasks: []*config.Task{
			{Name: "prep", Retries: 2, RetryDelay: "30s"},
			{Name: "fetch", Family: "FETCH", Outputs: []*config.Output{{Label: "staged", Message: "data staged"}}},
			{Name: "report", Cycle: "2", StartAt: "1"},
		},
		Families:   []*config.Family{{Name: "FETCH", Members: []string{"fetch"}}},
		GraphLines: []string{"prep => fetch", "FETCH:staged-all => report"},
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	reg, mode, err := compile(baseWorkflow())
	require.NoError(t, err)
	require.Equal(t, cycling.Integer, mode)

	prep, ok := reg.Get("prep")
	require.True(t, ok)
	require.Equal(t, 2, prep.MaxRetries)
	require.Equal(t, 30*time.Second, prep.RetryDelay)
	require.Equal(t, int64(1), prep.Sequence.First().Int())
	require.Equal(t, int64(5), prep.Sequence.Final().Int())

	fetch, _ := reg.Get("fetch")
	require.Equal(t, "FETCH", fetch.Family)
	require.True(t, fetch.HasOutput("staged"))
	require.Equal(t, []string{"fetch"}, reg.FamilyMembers("FETCH"))

	// start_at shifts the first point; the task's own cycle overrides the
	// workflow default.
	report, _ := reg.Get("report")
	require.Equal(t, int64(2), report.Sequence.First().Int())
	next, ok := report.Sequence.Next(report.Sequence.First())
	require.True(t, ok)
	require.Equal(t, int64(4), next.Int())

	require.Len(t, fetch.Triggers, 1)
	require.Len(t, report.Triggers, 1)
}

func TestCompile_Datetime(t *testing.T) {
	t.Parallel()

	wf := &config.Workflow{
		Scheduling: config.Scheduling{
			Cycling:      "datetime",
			InitialPoint: "20260101T0000Z",
			DefaultCycle: "P1D",
		},
		Tasks: []*config.Task{
			{Name: "obs", ExpireAfter: "6h"},
		},
	}
	reg, mode, err := compile(wf)
	require.NoError(t, err)
	require.Equal(t, cycling.DateTime, mode)

	obs, _ := reg.Get("obs")
	require.Equal(t, 6*time.Hour, obs.ExpireAfter)
	require.Nil(t, obs.Sequence.Final())
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*config.Workflow)
	}{
		{name: "unknown cycling mode", mutate: func(w *config.Workflow) { w.Scheduling.Cycling = "lunar" }},
		{name: "bad initial point", mutate: func(w *config.Workflow) { w.Scheduling.InitialPoint = "x" }},
		{name: "bad final point", mutate: func(w *config.Workflow) { w.Scheduling.FinalPoint = "x" }},
		{name: "no cycle anywhere", mutate: func(w *config.Workflow) {
			w.Scheduling.DefaultCycle = ""
			w.Tasks[0].Cycle = ""
		}},
		{name: "bad retry delay", mutate: func(w *config.Workflow) { w.Tasks[0].RetryDelay = "soon" }},
		{name: "expire_after on integer cycling", mutate: func(w *config.Workflow) { w.Tasks[0].ExpireAfter = "6h" }},
		{name: "family member not a task", mutate: func(w *config.Workflow) {
			w.Families[0].Members = append(w.Families[0].Members, "ghost")
		}},
		{name: "graph references unknown task", mutate: func(w *config.Workflow) {
			w.GraphLines = append(w.GraphLines, "ghost => prep")
		}},
		{name: "duplicate task", mutate: func(w *config.Workflow) {
			w.Tasks = append(w.Tasks, &config.Task{Name: "prep"})
		}},
		{name: "custom output shadows builtin", mutate: func(w *config.Workflow) {
			w.Tasks[0].Outputs = []*config.Output{{Label: "failed"}}
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wf := baseWorkflow()
			tc.mutate(wf)
			_, _, err := compile(wf)
			require.Error(t, err)
		})
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{Workers: 1})
	require.Error(t, err, "workflow path is required")

	_, err = NewConfig(Config{WorkflowPath: "flow.hcl", Workers: 0})
	require.Error(t, err, "at least one worker is required")

	cfg, err := NewConfig(Config{WorkflowPath: "flow.hcl", Workers: 2})
	require.NoError(t, err)
	require.Equal(t, "flow.hcl", cfg.WorkflowPath)
}
