package app

import (
	"fmt"
	"time"

	"github.com/gabersek/cylc/internal/config"
	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/graph"
	"github.com/gabersek/cylc/internal/task"
)

// compile translates the format-agnostic workflow model into a populated
// task registry: parsed cycling sequences, declared outputs, family
// membership and compiled graph triggers.
func compile(cfg *config.Workflow) (*task.Registry, cycling.Mode, error) {
	mode, err := cycling.ParseMode(cfg.Scheduling.Cycling)
	if err != nil {
		return nil, 0, err
	}
	initial, err := cycling.ParsePoint(mode, cfg.Scheduling.InitialPoint)
	if err != nil {
		return nil, 0, fmt.Errorf("initial_point: %w", err)
	}
	var final *cycling.Point
	if cfg.Scheduling.FinalPoint != "" {
		f, err := cycling.ParsePoint(mode, cfg.Scheduling.FinalPoint)
		if err != nil {
			return nil, 0, fmt.Errorf("final_point: %w", err)
		}
		final = &f
	}

	reg := task.NewRegistry()

	for _, t := range cfg.Tasks {
		def, err := compileTask(t, cfg.Scheduling, mode, initial, final)
		if err != nil {
			return nil, 0, err
		}
		if err := reg.Add(def); err != nil {
			return nil, 0, err
		}
	}

	for _, f := range cfg.Families {
		for _, m := range f.Members {
			if !reg.IsTask(m) {
				return nil, 0, fmt.Errorf("family %s: member %s is not a declared task", f.Name, m)
			}
		}
		reg.AddFamily(f.Name, f.Members)
	}
	for _, t := range cfg.Tasks {
		if t.Family != "" {
			reg.AddMember(t.Family, t.Name)
		}
	}

	triggers, err := graph.ParseLines(mode, cfg.GraphLines, reg)
	if err != nil {
		return nil, 0, err
	}
	if err := reg.AttachTriggers(triggers); err != nil {
		return nil, 0, err
	}

	return reg, mode, nil
}

func compileTask(t *config.Task, sched config.Scheduling, mode cycling.Mode, initial cycling.Point, final *cycling.Point) (*task.Definition, error) {
	cycle := t.Cycle
	if cycle == "" {
		cycle = sched.DefaultCycle
	}
	if cycle == "" {
		return nil, fmt.Errorf("task %s: no cycle declared and the scheduling block has no default", t.Name)
	}
	step, err := cycling.ParseDuration(mode, cycle)
	if err != nil {
		return nil, fmt.Errorf("task %s: cycle: %w", t.Name, err)
	}

	start := initial
	if t.StartAt != "" {
		off, err := cycling.ParseDuration(mode, t.StartAt)
		if err != nil {
			return nil, fmt.Errorf("task %s: start_at: %w", t.Name, err)
		}
		if start, err = initial.Add(off); err != nil {
			return nil, fmt.Errorf("task %s: start_at: %w", t.Name, err)
		}
	}
	seq, err := cycling.NewSequence(start, final, step)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", t.Name, err)
	}

	def := &task.Definition{
		Name:       t.Name,
		Family:     t.Family,
		MaxRetries: t.Retries,
		Sequence:   seq,
	}
	if t.RetryDelay != "" {
		if def.RetryDelay, err = time.ParseDuration(t.RetryDelay); err != nil {
			return nil, fmt.Errorf("task %s: retry_delay: %w", t.Name, err)
		}
	}
	if t.ExpireAfter != "" {
		if mode != cycling.DateTime {
			return nil, fmt.Errorf("task %s: expire_after requires datetime cycling", t.Name)
		}
		if def.ExpireAfter, err = time.ParseDuration(t.ExpireAfter); err != nil {
			return nil, fmt.Errorf("task %s: expire_after: %w", t.Name, err)
		}
	}
	for _, o := range t.Outputs {
		if err := def.DeclareOutput(o.Label, o.Message); err != nil {
			return nil, err
		}
	}
	return def, nil
}
