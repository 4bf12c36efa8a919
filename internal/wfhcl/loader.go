package wfhcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/gabersek/cylc/internal/config"
	"github.com/gabersek/cylc/internal/ctxlog"
	"github.com/gabersek/cylc/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL workflow loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the HCL loading process. It is agnostic to the origin
// of the paths and merges recognised blocks from every discovered file
// into one workflow model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Workflow, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.CollectFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl workflow files found under %v", paths)
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	wf := &config.Workflow{}
	parser := hclparse.NewParser()
	schedulingSeen := ""

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.Scheduling != nil {
			if schedulingSeen != "" {
				return nil, fmt.Errorf("duplicate scheduling block: declared in both %s and %s", schedulingSeen, file)
			}
			schedulingSeen = file
			wf.Scheduling = translateScheduling(root.Scheduling)
		}
		for _, t := range root.Tasks {
			wf.Tasks = append(wf.Tasks, translateTask(t))
		}
		for _, f := range root.Families {
			wf.Families = append(wf.Families, translateFamily(f))
		}
		for _, g := range root.Graphs {
			lines, err := linesFromExpr(g)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			wf.GraphLines = append(wf.GraphLines, lines...)
		}
	}

	if schedulingSeen == "" {
		return nil, fmt.Errorf("no scheduling block found in %v", files)
	}

	logger.Debug("HCL loading complete.",
		"tasks", len(wf.Tasks), "families", len(wf.Families), "graph_lines", len(wf.GraphLines))
	return wf, nil
}
