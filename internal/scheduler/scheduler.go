// Package scheduler runs the orchestration loop. One goroutine owns all
// pool mutation; the job layer and operators communicate with it only
// through inbound queues, drained at a fixed point each iteration so an
// iteration always sees a consistent snapshot. Nothing in the loop
// blocks: retry delays and expiry windows are wall-clock rechecks.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/hold"
	"github.com/gabersek/cylc/internal/pool"
	"github.com/gabersek/cylc/internal/task"
)

// Scheduler ties the pool, the graph-driven spawning and the external
// job layer together.
type Scheduler struct {
	reg    *task.Registry
	pool   *pool.Pool
	jobs   JobClient
	logger *slog.Logger

	msgs chan Message
	ctls chan Control

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
	// Tick bounds how long the loop sleeps with no inbound traffic.
	Tick time.Duration

	pendingMsgs []Message
	pendingCtls []Control

	// dispatched tracks submissions in flight per proxy ID so a ready
	// proxy is handed to the job layer exactly once per try.
	dispatched map[string]string

	stallWarned bool
}

// New builds a scheduler over the registry, pool and job client.
func New(reg *task.Registry, pl *pool.Pool, jobs JobClient, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reg:        reg,
		pool:       pl,
		jobs:       jobs,
		logger:     logger,
		msgs:       make(chan Message, 256),
		ctls:       make(chan Control, 64),
		Clock:      time.Now,
		Tick:       250 * time.Millisecond,
		dispatched: make(map[string]string),
	}
}

// Post enqueues a completion/output message from the job layer.
func (s *Scheduler) Post(m Message) { s.msgs <- m }

// Control enqueues an operator request.
func (s *Scheduler) Control(c Control) { s.ctls <- c }

// Run seeds the pool and loops until the run completes, a fatal error
// occurs, or the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.pool.Seed(); err != nil {
		return err
	}
	s.logger.Info("Scheduler started.", "tasks", len(s.reg.Definitions()))

	for {
		progressed, err := s.iterate(ctx)
		if err != nil {
			return err
		}
		if !s.pool.Active() {
			s.logger.Info("Run complete: no active task proxies remain.")
			return nil
		}
		if progressed {
			continue
		}
		s.warnIfStalled()
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
}

// wait blocks for the next inbound event or one tick.
func (s *Scheduler) wait(ctx context.Context) error {
	timer := time.NewTimer(s.Tick)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m := <-s.msgs:
		s.pendingMsgs = append(s.pendingMsgs, m)
	case c := <-s.ctls:
		s.pendingCtls = append(s.pendingCtls, c)
	case <-timer.C:
	}
	return nil
}

// iterate runs one pass: drain queues, apply transitions, evaluate
// prerequisites, promote, submit, spawn and reap.
func (s *Scheduler) iterate(ctx context.Context) (bool, error) {
	now := s.Clock()
	msgs, ctls := s.drain()
	progressed := len(msgs) > 0 || len(ctls) > 0

	for _, m := range msgs {
		if err := s.applyMessage(m, now); err != nil {
			return false, err
		}
	}
	for _, c := range ctls {
		s.applyControl(c)
	}

	if err := s.pool.Refresh(); err != nil {
		return false, err
	}

	if s.applyClock(now) {
		progressed = true
	}
	if changed, err := s.evaluate(); err != nil {
		return false, err
	} else if changed {
		progressed = true
	}
	if s.submitReady(ctx, now) {
		progressed = true
	}

	for _, reaped := range s.pool.Reap() {
		delete(s.dispatched, reaped.ID())
		progressed = true
	}
	if progressed {
		s.stallWarned = false
	}
	return progressed, nil
}

// drain empties both inbound queues without blocking.
func (s *Scheduler) drain() ([]Message, []Control) {
	msgs := s.pendingMsgs
	ctls := s.pendingCtls
	s.pendingMsgs, s.pendingCtls = nil, nil
	for {
		select {
		case m := <-s.msgs:
			msgs = append(msgs, m)
		case c := <-s.ctls:
			ctls = append(ctls, c)
		default:
			return msgs, ctls
		}
	}
}

// applyMessage applies one completion event: the state transition on the
// emitting proxy, then output propagation to prerequisite leaves and
// output-driven successor spawning.
func (s *Scheduler) applyMessage(m Message, now time.Time) error {
	out := task.ParseOutput(m.Output)
	proxy, known := s.pool.Get(m.Task, m.Point)
	if !known {
		s.logger.Warn("Message for unknown task proxy.", "task", m.Task, "point", m.Point.String(), "output", m.Output)
	} else {
		var terr error
		switch out.Kind {
		case task.OutputSubmitted:
			terr = proxy.MarkSubmitted()
		case task.OutputStarted:
			terr = proxy.MarkStarted()
		case task.OutputSucceeded:
			terr = proxy.MarkSucceeded()
			if terr == nil && !hasPositivePrereqs(proxy.Def) {
				if err := s.pool.SpawnNext(proxy.Def, m.Point); err != nil {
					return err
				}
			}
		case task.OutputFailed:
			delete(s.dispatched, proxy.ID())
			terr = proxy.MarkFailed(now)
			if terr == nil && proxy.State() == task.Retrying {
				s.logger.Info("Task failed, retry scheduled.",
					"task", proxy.ID(), "try", proxy.TryNum, "retryAt", proxy.RetryAt)
				// Not a final failure: dependents must not see it.
				return nil
			}
		case task.OutputExpired:
			terr = proxy.Expire()
		case task.OutputCustom:
			// Recorded by ApplyOutput below; no state transition.
		}
		if terr != nil {
			s.logger.Warn("Dropped out-of-order message.", "task", m.Task, "point", m.Point.String(), "output", m.Output, "error", terr)
			return nil
		}
	}

	ref := task.Ref{Task: m.Task, Point: m.Point, Output: m.Output}
	if _, err := s.pool.ApplyOutput(ref); err != nil {
		return err
	}
	return nil
}

// applyControl resolves and applies one operator request. A target spec
// matching nothing is a warning, never fatal.
func (s *Scheduler) applyControl(c Control) {
	snapshot := s.pool.All()
	targets := hold.Targets(c.Target, s.reg, snapshot)
	if len(targets) == 0 {
		s.logger.Warn("Operator control matched no task proxies.", "op", c.Op.String())
		return
	}
	switch c.Op {
	case CtlHold:
		n := hold.Hold(c.Target, s.reg, snapshot)
		s.logger.Info("Held task proxies.", "count", n)
	case CtlRelease:
		n := hold.Release(c.Target, s.reg, snapshot)
		s.logger.Info("Released task proxies.", "count", n)
	case CtlKill:
		for _, p := range targets {
			if p.Terminal() {
				continue
			}
			delete(s.dispatched, p.ID())
			p.Kill()
			s.logger.Info("Killed task proxy.", "task", p.ID())
		}
	case CtlRemove:
		for _, p := range targets {
			p.Remove()
			s.pool.Remove(p)
			delete(s.dispatched, p.ID())
			s.logger.Info("Removed task proxy.", "task", p.ID())
		}
	case CtlExpire:
		for _, p := range targets {
			if p.State() != task.Waiting {
				continue
			}
			if err := p.Expire(); err == nil {
				s.logger.Info("Expired task proxy.", "task", p.ID())
			}
		}
	}
}

// applyClock moves retrying proxies whose delay has passed back to
// waiting, and expires waiting datetime-domain proxies past their
// runnable window.
func (s *Scheduler) applyClock(now time.Time) bool {
	changed := false
	for _, p := range s.pool.All() {
		if p.RetryDue(now) {
			delete(s.dispatched, p.ID())
			s.logger.Info("Retry delay elapsed, task back to waiting.", "task", p.ID(), "try", p.TryNum)
			changed = true
			continue
		}
		if p.State() == task.Waiting && p.Def.ExpireAfter > 0 && p.Point.Mode() == cycling.DateTime {
			deadline := p.Point.Time().Add(p.Def.ExpireAfter)
			if now.After(deadline) {
				if err := p.Expire(); err == nil {
					s.logger.Warn("Task expired: runnable window passed.", "task", p.ID())
					changed = true
				}
			}
		}
	}
	return changed
}

// evaluate applies suicide removal and the waiting→ready promotion.
// Suicide is checked first, so a suicide leaf and the final positive leaf
// landing in the same iteration always remove the owner.
func (s *Scheduler) evaluate() (bool, error) {
	changed := false
	for _, p := range s.pool.All() {
		if p.State() != task.Waiting {
			continue
		}
		if p.SuicideSatisfied() {
			p.Remove()
			s.pool.Remove(p)
			s.logger.Info("Suicide trigger fired, task removed.", "task", p.ID())
			changed = true
			continue
		}
		if p.Held() || !p.PrereqsSatisfied() {
			continue
		}
		if err := p.Promote(); err != nil {
			return false, err
		}
		s.logger.Info("Task ready.", "task", p.ID())
		changed = true
	}
	return changed, nil
}

// submitReady hands ready proxies to the job layer, once per try.
// Immediate submission errors route through the normal failure path.
func (s *Scheduler) submitReady(ctx context.Context, now time.Time) bool {
	changed := false
	for _, p := range s.pool.All() {
		if p.State() != task.Ready {
			continue
		}
		if _, inFlight := s.dispatched[p.ID()]; inFlight {
			continue
		}
		spec := JobSpec{Task: p.Def.Name, Point: p.Point.String(), Try: p.TryNum + 1}
		id, err := s.jobs.Submit(ctx, spec)
		if err != nil {
			s.logger.Error("Job submission failed.", "task", p.ID(), "error", err)
			// The attempt consumed a try even though the job layer never
			// acknowledged it, otherwise a dead job layer retries forever.
			p.TryNum++
			if ferr := p.MarkFailed(now); ferr != nil {
				s.logger.Warn("Could not fail unsubmittable task.", "task", p.ID(), "error", ferr)
			}
			changed = true
			continue
		}
		s.dispatched[p.ID()] = id
		s.logger.Info("Submitted task job.", "task", p.ID(), "submissionID", id, "try", p.TryNum+1)
		changed = true
	}
	return changed
}

// warnIfStalled logs once when every live proxy is waiting and nothing
// is in flight: the run needs operator action to move again.
func (s *Scheduler) warnIfStalled() {
	if s.stallWarned {
		return
	}
	for _, p := range s.pool.All() {
		switch p.State() {
		case task.Ready, task.Submitted, task.Running, task.Retrying:
			return
		}
	}
	if s.pool.Active() {
		s.logger.Warn("Workflow stalled: all live tasks are waiting on unsatisfied prerequisites.")
		s.stallWarned = true
	}
}

func hasPositivePrereqs(def *task.Definition) bool {
	for _, tr := range def.Triggers {
		if tr.Pre != nil {
			return true
		}
	}
	return false
}
