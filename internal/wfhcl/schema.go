package wfhcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes all recognised top-level blocks from any one file. The
// Remain body tolerates unknown blocks so files can carry site-local extras.
type fileRoot struct {
	Scheduling *schedulingSchema `hcl:"scheduling,block"`
	Tasks      []*taskSchema     `hcl:"task,block"`
	Families   []*familySchema   `hcl:"family,block"`
	Graphs     []*graphSchema    `hcl:"graph,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

// schedulingSchema is the HCL shape of the `scheduling` block.
type schedulingSchema struct {
	Cycling      string `hcl:"cycling,optional"`
	InitialPoint string `hcl:"initial_point"`
	FinalPoint   string `hcl:"final_point,optional"`
	DefaultCycle string `hcl:"cycle,optional"`
}

// taskSchema is the HCL shape of a `task "name"` block.
type taskSchema struct {
	Name        string          `hcl:"name,label"`
	Cycle       string          `hcl:"cycle,optional"`
	StartAt     string          `hcl:"start_at,optional"`
	Retries     int             `hcl:"retries,optional"`
	RetryDelay  string          `hcl:"retry_delay,optional"`
	ExpireAfter string          `hcl:"expire_after,optional"`
	Family      string          `hcl:"family,optional"`
	Outputs     []*outputSchema `hcl:"output,block"`
}

// outputSchema is the HCL shape of an `output "label"` block.
type outputSchema struct {
	Label   string `hcl:"label,label"`
	Message string `hcl:"message,optional"`
}

// familySchema is the HCL shape of a `family "name"` block.
type familySchema struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members"`
}

// graphSchema is the HCL shape of the `graph` block. Lines stays an
// expression so the loader can evaluate it with HCL's own type machinery.
type graphSchema struct {
	Lines hcl.Expression `hcl:"lines"`
}
