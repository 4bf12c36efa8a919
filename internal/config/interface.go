package config

import "context"

// Loader is the interface for a format-specific workflow loader.
type Loader interface {
	// Load reads workflow definitions from the given paths, which may be
	// files or directories, and translates them into the format-agnostic
	// model. Blocks from multiple files are merged into one workflow.
	Load(ctx context.Context, paths ...string) (*Workflow, error)
}
