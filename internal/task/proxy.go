package task

import (
	"fmt"
	"time"

	"github.com/gabersek/cylc/internal/cycling"
)

// Proxy is one runtime instance of a task definition at one cycle point.
// It owns its instantiated prerequisite trees, its achieved-output set
// and its state. Proxies are owned exclusively by the pool; nothing here
// is safe for concurrent mutation.
type Proxy struct {
	Def   *Definition
	Point cycling.Point

	state State
	held  bool
	// Retained marks a terminal proxy an operator asked to keep visible.
	Retained bool

	// TryNum counts submissions so far; RetryAt is the wall-clock recheck
	// time while Retrying.
	TryNum  int
	RetryAt time.Time

	outputs map[string]bool

	// pre holds one instantiated positive tree per trigger (AND across
	// them); suicide trees fire removal instead of readiness.
	pre     []*Prereq
	suicide []*Prereq

	famRev int
}

// NewProxy instantiates a proxy for the definition at the given point,
// resolving every template leaf to an absolute reference.
func NewProxy(reg *Registry, def *Definition, point cycling.Point) (*Proxy, error) {
	p := &Proxy{
		Def:     def,
		Point:   point,
		state:   Waiting,
		outputs: make(map[string]bool),
		famRev:  reg.Revision(),
	}
	if err := p.build(reg); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Proxy) build(reg *Registry) error {
	p.pre = nil
	p.suicide = nil
	for _, tr := range p.Def.Triggers {
		if tr.Pre != nil {
			inst, err := instantiate(reg, p.Def.Name, p.Point, tr.Pre, false)
			if err != nil {
				return err
			}
			p.pre = append(p.pre, inst)
		}
		for _, s := range tr.Suicide {
			inst, err := instantiate(reg, p.Def.Name, p.Point, s, true)
			if err != nil {
				return err
			}
			p.suicide = append(p.suicide, inst)
		}
	}
	return nil
}

// ID identifies the proxy as name.point.
func (p *Proxy) ID() string {
	return fmt.Sprintf("%s.%s", p.Def.Name, p.Point)
}

// State returns the current lifecycle state.
func (p *Proxy) State() State { return p.state }

// Held reports the hold flag; holding only blocks waiting→ready.
func (p *Proxy) Held() bool { return p.held }

// SetHeld sets or clears the hold flag. Outputs already achieved and
// submitted/running proxies are untouched.
func (p *Proxy) SetHeld(held bool) { p.held = held }

// Terminal reports whether the proxy reached a terminal state.
func (p *Proxy) Terminal() bool { return p.state.Terminal() }

// RefreshFamilies re-expands family leaves when the registry's
// membership revision moved, preserving satisfied marks by reference.
// Only waiting proxies re-widen; later states are already past their
// prerequisites.
func (p *Proxy) RefreshFamilies(reg *Registry) error {
	if p.famRev == reg.Revision() || p.state != Waiting {
		return nil
	}
	var marks []Ref
	for _, t := range p.pre {
		marks = append(marks, t.SatisfiedRefs()...)
	}
	for _, t := range p.suicide {
		marks = append(marks, t.SatisfiedRefs()...)
	}
	if err := p.build(reg); err != nil {
		return err
	}
	for _, ref := range marks {
		for _, t := range p.pre {
			t.Mark(ref)
		}
		for _, t := range p.suicide {
			t.Mark(ref)
		}
	}
	p.famRev = reg.Revision()
	return nil
}

// ApplyRef marks matching prerequisite leaves satisfied and reports
// whether anything changed.
func (p *Proxy) ApplyRef(ref Ref) bool {
	changed := false
	for _, t := range p.pre {
		if t.Mark(ref) {
			changed = true
		}
	}
	for _, t := range p.suicide {
		if t.Mark(ref) {
			changed = true
		}
	}
	return changed
}

// PrereqsSatisfied reports whether every positive tree is satisfied.
func (p *Proxy) PrereqsSatisfied() bool {
	for _, t := range p.pre {
		if !t.Satisfied() {
			return false
		}
	}
	return true
}

// SuicideSatisfied reports whether any suicide tree is satisfied.
func (p *Proxy) SuicideSatisfied() bool {
	for _, t := range p.suicide {
		if t.Satisfied() {
			return true
		}
	}
	return false
}

// UnsatisfiedRefs lists the outstanding references across all trees.
func (p *Proxy) UnsatisfiedRefs() []Ref {
	var out []Ref
	for _, t := range p.pre {
		out = append(out, t.UnsatisfiedRefs()...)
	}
	for _, t := range p.suicide {
		out = append(out, t.UnsatisfiedRefs()...)
	}
	return out
}

// AchieveOutput records one of the proxy's own outputs as achieved and
// reports whether it is new. The achieved set survives retries.
func (p *Proxy) AchieveOutput(o Output) bool {
	if p.outputs[o.Label] {
		return false
	}
	p.outputs[o.Label] = true
	return true
}

// HasAchieved reports whether the labeled output has occurred.
func (p *Proxy) HasAchieved(label string) bool { return p.outputs[label] }

// AchievedCount returns the number of achieved outputs.
func (p *Proxy) AchievedCount() int { return len(p.outputs) }

// Promote moves a waiting proxy to ready. The caller guards on
// prerequisites, hold and suicide; Promote re-checks the state only.
func (p *Proxy) Promote() error {
	return p.transition(Ready, Waiting)
}

// MarkSubmitted applies the job layer's submission acknowledgement.
func (p *Proxy) MarkSubmitted() error {
	p.TryNum++
	return p.transition(Submitted, Ready, Waiting)
}

// MarkStarted applies the started message.
func (p *Proxy) MarkStarted() error {
	return p.transition(Running, Submitted, Ready)
}

// MarkSucceeded applies the succeeded message. Terminal.
func (p *Proxy) MarkSucceeded() error {
	return p.transition(Succeeded, Running, Submitted, Ready)
}

// MarkFailed applies a failure at the given time: Retrying while budget
// remains, terminal Failed otherwise. Achieved outputs are preserved
// either way.
func (p *Proxy) MarkFailed(now time.Time) error {
	if p.TryNum <= p.Def.MaxRetries {
		p.RetryAt = now.Add(p.Def.RetryDelay)
		return p.transition(Retrying, Running, Submitted, Ready, Waiting)
	}
	return p.transition(Failed, Running, Submitted, Ready, Waiting)
}

// RetryDue moves a retrying proxy back to waiting once its delay passed.
func (p *Proxy) RetryDue(now time.Time) bool {
	if p.state != Retrying || now.Before(p.RetryAt) {
		return false
	}
	p.state = Waiting
	return true
}

// Expire marks a still-waiting proxy expired: a non-fatal skip.
func (p *Proxy) Expire() error {
	return p.transition(Expired, Waiting)
}

// Remove marks the proxy removed (suicide trigger or operator request).
func (p *Proxy) Remove() {
	p.state = Removed
}

// Kill forces a non-terminal proxy to failed with no retry.
func (p *Proxy) Kill() {
	if !p.state.Terminal() {
		p.state = Failed
	}
}

func (p *Proxy) transition(to State, from ...State) error {
	for _, f := range from {
		if p.state == f {
			p.state = to
			return nil
		}
	}
	return fmt.Errorf("%s: illegal transition %s -> %s", p.ID(), p.state, to)
}
