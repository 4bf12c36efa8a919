// This file translates the HCL schema structs into the format-agnostic
// workflow model defined in the config package.

package wfhcl

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/gabersek/cylc/internal/config"
)

func translateScheduling(s *schedulingSchema) config.Scheduling {
	cycling := s.Cycling
	if cycling == "" {
		cycling = "datetime"
	}
	return config.Scheduling{
		Cycling:      cycling,
		InitialPoint: s.InitialPoint,
		FinalPoint:   s.FinalPoint,
		DefaultCycle: s.DefaultCycle,
	}
}

func translateTask(s *taskSchema) *config.Task {
	t := &config.Task{
		Name:        s.Name,
		Cycle:       s.Cycle,
		StartAt:     s.StartAt,
		Retries:     s.Retries,
		RetryDelay:  s.RetryDelay,
		ExpireAfter: s.ExpireAfter,
		Family:      s.Family,
	}
	for _, o := range s.Outputs {
		t.Outputs = append(t.Outputs, &config.Output{Label: o.Label, Message: o.Message})
	}
	return t
}

func translateFamily(s *familySchema) *config.Family {
	return &config.Family{Name: s.Name, Members: s.Members}
}

// linesFromExpr evaluates the graph block's lines expression to a list of
// strings. Going through cty keeps HCL's conversion rules, so a tuple of
// heredocs or plain strings both decode cleanly.
func linesFromExpr(g *graphSchema) ([]string, error) {
	raw, diags := g.Lines.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate graph lines: %w", diags)
	}
	val, err := convert.Convert(raw, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("graph lines must be a list of strings: %w", err)
	}

	var lines []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		lines = append(lines, elem.AsString())
	}
	return lines, nil
}
