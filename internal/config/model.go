package config

// Workflow is the unified, format-agnostic representation of one workflow
// definition: its cycling setup, task and family declarations and the raw
// graph lines.
type Workflow struct {
	Scheduling Scheduling
	Tasks      []*Task
	Families   []*Family
	GraphLines []string
}

// Scheduling holds the workflow-wide cycling parameters.
type Scheduling struct {
	// Cycling selects the point domain: "integer" or "datetime".
	Cycling string
	// InitialPoint is the first cycle point of the run.
	InitialPoint string
	// FinalPoint optionally bounds the run; empty means unbounded.
	FinalPoint string
	// DefaultCycle is the recurrence step used by tasks that do not
	// declare their own.
	DefaultCycle string
}

// Task is the format-agnostic representation of a `task` block.
type Task struct {
	Name string
	// Cycle is the task's recurrence step; empty falls back to the
	// workflow default.
	Cycle string
	// StartAt offsets the task's first point from the initial point.
	StartAt string
	// Retries is the number of automatic resubmissions after failure.
	Retries int
	// RetryDelay is the wall-clock pause before a retry becomes eligible,
	// in Go duration syntax.
	RetryDelay string
	// ExpireAfter, datetime domain only, expires a still-waiting instance
	// once the wall clock passes its point plus this Go duration.
	ExpireAfter string
	// Family names the task's parent family, if any.
	Family string
	Outputs []*Output
}

// Output is the format-agnostic representation of an `output` block: a
// custom completion label a task may report in addition to the built-ins.
type Output struct {
	Label   string
	Message string
}

// Family is the format-agnostic representation of a `family` block.
type Family struct {
	Name    string
	Members []string
}
