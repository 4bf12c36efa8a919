package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabersek/cylc/internal/config"
	"github.com/gabersek/cylc/internal/ctxlog"
	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/task"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	appCfg   *Config
	workflow *config.Workflow
	registry *task.Registry
	mode     cycling.Mode
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and a
// compiled task registry.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	wf, err := loader.Load(ctx, appConfig.WorkflowPath)
	if err != nil {
		// A failure to load the workflow is a fatal startup error.
		panic(fmt.Errorf("failed to load workflow: %w", err))
	}
	logger.Debug("Workflow loaded and translated into unified model.")

	reg, mode, err := compile(wf)
	if err != nil {
		panic(fmt.Errorf("failed to compile workflow: %w", err))
	}
	logger.Debug("Workflow compiled.",
		"tasks", len(reg.Definitions()), "cycling", mode.String())

	return &App{
		outW:     outW,
		logger:   logger,
		appCfg:   appConfig,
		workflow: wf,
		registry: reg,
		mode:     mode,
	}
}

// Registry returns the compiled task registry. This is primarily for
// testing.
func (a *App) Registry() *task.Registry {
	return a.registry
}
