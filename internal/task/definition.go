package task

import (
	"fmt"
	"sort"
	"time"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/graph"
)

// Definition is the static template of a recurring task: its outputs,
// retry policy, family membership, cycling sequence and compiled
// triggers.
type Definition struct {
	Name   string
	Family string // parent family name, empty when top-level

	// Outputs maps custom output labels to their message strings.
	Outputs map[string]string

	MaxRetries int
	RetryDelay time.Duration

	// ExpireAfter, when non-zero in the datetime domain, expires a
	// still-waiting proxy once the wall clock passes point + ExpireAfter.
	ExpireAfter time.Duration

	Sequence *cycling.Sequence

	// Triggers are the per-graph-line dependency contributions; a proxy
	// must satisfy every trigger's positive tree (AND across lines).
	Triggers []*graph.Trigger
}

// DeclareOutput registers a custom output label. Labels are unique per
// definition and must not shadow a built-in label.
func (d *Definition) DeclareOutput(label, message string) error {
	if BuiltIn(label) {
		return fmt.Errorf("task %s: output label %q shadows a built-in output", d.Name, label)
	}
	if _, dup := d.Outputs[label]; dup {
		return fmt.Errorf("task %s: duplicate output label %q", d.Name, label)
	}
	if d.Outputs == nil {
		d.Outputs = make(map[string]string)
	}
	d.Outputs[label] = message
	return nil
}

// HasOutput reports whether the definition can emit the labeled output.
func (d *Definition) HasOutput(label string) bool {
	if BuiltIn(label) {
		return true
	}
	_, ok := d.Outputs[label]
	return ok
}

// Registry is the static lookup table over definitions and families. It
// implements graph.Resolver for the parser, and carries a membership
// revision so live proxies can notice families growing mid-run.
type Registry struct {
	defs     map[string]*Definition
	families map[string][]string
	revision int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]*Definition),
		families: make(map[string][]string),
	}
}

// Add registers a definition; duplicate names are a configuration error.
func (r *Registry) Add(def *Definition) error {
	if _, dup := r.defs[def.Name]; dup {
		return fmt.Errorf("duplicate task definition %q", def.Name)
	}
	if def.Sequence == nil {
		return fmt.Errorf("task %s has no cycling sequence", def.Name)
	}
	r.defs[def.Name] = def
	if def.Family != "" {
		r.addMember(def.Family, def.Name)
	}
	return nil
}

// AddFamily declares a family and its member task names. Members may be
// declared before their definitions are added.
func (r *Registry) AddFamily(name string, members []string) {
	for _, m := range members {
		r.addMember(name, m)
	}
}

// AddMember grows a family mid-run; waiting proxies with stale family
// leaves re-expand against the new membership.
func (r *Registry) AddMember(family, member string) {
	r.addMember(family, member)
}

func (r *Registry) addMember(family, member string) {
	for _, m := range r.families[family] {
		if m == member {
			return
		}
	}
	r.families[family] = append(r.families[family], member)
	sort.Strings(r.families[family])
	r.revision++
}

// Get returns the named definition.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns all definitions in name order.
func (r *Registry) Definitions() []*Definition {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Definition, len(names))
	for i, n := range names {
		out[i] = r.defs[n]
	}
	return out
}

// Revision returns the family-membership revision counter.
func (r *Registry) Revision() int { return r.revision }

// IsTask implements graph.Resolver.
func (r *Registry) IsTask(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// IsFamily implements graph.Resolver.
func (r *Registry) IsFamily(name string) bool {
	_, ok := r.families[name]
	return ok
}

// FamilyMembers implements graph.Resolver.
func (r *Registry) FamilyMembers(name string) []string {
	members := r.families[name]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// HasOutput implements graph.Resolver.
func (r *Registry) HasOutput(task, label string) bool {
	d, ok := r.defs[task]
	return ok && d.HasOutput(label)
}

// AttachTriggers distributes parsed triggers onto their owner
// definitions; a trigger owned by an unknown task is a configuration
// error.
func (r *Registry) AttachTriggers(triggers []*graph.Trigger) error {
	for _, tr := range triggers {
		d, ok := r.defs[tr.Owner]
		if !ok {
			return fmt.Errorf("graph line %q: unknown owner task %q", tr.Text, tr.Owner)
		}
		d.Triggers = append(d.Triggers, tr)
	}
	return nil
}
