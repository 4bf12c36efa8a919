package jobsim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/scheduler"
)

// Script controls simulated outcomes. The zero value succeeds everything.
type Script struct {
	// FailFirst maps "task.point" to the number of attempts that must
	// fail before one succeeds.
	FailFirst map[string]int
	// Emit maps a task name to custom output labels reported between
	// started and the final output.
	Emit map[string][]string
}

// Options configures a Runner.
type Options struct {
	// Workers is the simulated job slot count; minimum 1.
	Workers int
	// StepDelay is the pause between lifecycle outputs of one job.
	StepDelay time.Duration
	// Clock stamps outbound messages; defaults to time.Now.
	Clock func() time.Time
	Script Script
}

type job struct {
	spec scheduler.JobSpec
	id   string
}

// Runner implements scheduler.JobClient over an in-process worker pool.
type Runner struct {
	mode   cycling.Mode
	post   func(scheduler.Message)
	logger *slog.Logger
	opts   Options

	jobs chan job
	wg   sync.WaitGroup

	mu       sync.Mutex
	attempts map[string]int
}

// New builds a runner that reports outputs through post. Call Start before
// submitting and Stop once the run is over.
func New(mode cycling.Mode, post func(scheduler.Message), logger *slog.Logger, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		mode:     mode,
		post:     post,
		logger:   logger,
		opts:     opts,
		jobs:     make(chan job, 1024),
		attempts: make(map[string]int),
	}
}

// Start launches the worker pool.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
}

// Stop closes the intake and waits for in-flight jobs to finish reporting.
func (r *Runner) Stop() {
	close(r.jobs)
	r.wg.Wait()
}

// Submit implements scheduler.JobClient. It queues the job and returns at
// once; all further reporting arrives on the message queue.
func (r *Runner) Submit(ctx context.Context, spec scheduler.JobSpec) (string, error) {
	j := job{spec: spec, id: uuid.NewString()}
	select {
	case r.jobs <- j:
		return j.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("job queue full, rejecting %s.%s", spec.Task, spec.Point)
	}
}

// worker is the processing loop for a single simulated job slot.
func (r *Runner) worker(ctx context.Context, workerID int) {
	defer r.wg.Done()
	logger := r.logger.With("workerID", workerID)
	logger.Debug("Simulated job worker started.")

	for j := range r.jobs {
		if ctx.Err() != nil {
			continue
		}
		r.run(ctx, j, logger.With("task", j.spec.Task, "point", j.spec.Point, "submissionID", j.id))
	}
	logger.Debug("Simulated job worker finished.")
}

func (r *Runner) run(ctx context.Context, j job, logger *slog.Logger) {
	point, err := cycling.ParsePoint(r.mode, j.spec.Point)
	if err != nil {
		logger.Error("Job carries an unparseable cycle point.", "error", err)
		return
	}

	r.report(point, j, "submitted")
	if !r.pause(ctx) {
		return
	}
	r.report(point, j, "started")
	if !r.pause(ctx) {
		return
	}

	key := fmt.Sprintf("%s.%s", j.spec.Task, j.spec.Point)
	r.mu.Lock()
	r.attempts[key]++
	fails := r.attempts[key] <= r.opts.Script.FailFirst[key]
	r.mu.Unlock()

	if fails {
		logger.Debug("Scripted failure.", "attempt", j.spec.Try)
		r.report(point, j, "failed")
		return
	}

	for _, label := range r.opts.Script.Emit[j.spec.Task] {
		r.report(point, j, label)
	}
	r.report(point, j, "succeeded")
	logger.Debug("Simulated job succeeded.")
}

func (r *Runner) report(point cycling.Point, j job, output string) {
	r.post(scheduler.Message{
		Task:   j.spec.Task,
		Point:  point,
		Output: output,
		Time:   r.opts.Clock(),
	})
}

// pause sleeps one step delay, abandoning the job on cancellation.
func (r *Runner) pause(ctx context.Context) bool {
	if r.opts.StepDelay <= 0 {
		return true
	}
	timer := time.NewTimer(r.opts.StepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
