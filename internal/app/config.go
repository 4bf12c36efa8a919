package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	WorkflowPath string // .hcl file or directory

	LogFormat string
	LogLevel  string

	// Workers is the simulated job layer's slot count.
	Workers int
	// SimDelay is the pause between lifecycle outputs of one simulated job.
	SimDelay time.Duration
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 1 {
		return nil, errors.New("Workers must be at least 1")
	}
	return &cfg, nil
}
