package app

import (
	"context"
	"fmt"

	"github.com/gabersek/cylc/internal/ctxlog"
	"github.com/gabersek/cylc/internal/jobsim"
	"github.com/gabersek/cylc/internal/pool"
	"github.com/gabersek/cylc/internal/scheduler"
)

// Run drives one workflow run to completion: it wires the task pool, the
// simulated job layer and the control loop together and blocks until the
// run completes or the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskPool := pool.New(a.registry, a.logger)

	// The runner posts back into the scheduler's queue, so the scheduler
	// variable must exist before the runner's post closure runs.
	var sched *scheduler.Scheduler
	runner := jobsim.New(a.mode, func(m scheduler.Message) { sched.Post(m) }, a.logger, jobsim.Options{
		Workers:   a.appCfg.Workers,
		StepDelay: a.appCfg.SimDelay,
	})
	sched = scheduler.New(a.registry, taskPool, runner, a.logger)

	runner.Start(ctx)
	a.logger.Info("Starting workflow run.", "workers", a.appCfg.Workers)

	err := sched.Run(ctx)

	// Stop intake and let in-flight simulated jobs wind down before the
	// message queue loses its consumer.
	cancel()
	runner.Stop()

	if err != nil {
		return fmt.Errorf("workflow run failed: %w", err)
	}
	a.logger.Info("Workflow run finished.")
	return nil
}
