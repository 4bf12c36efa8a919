package task

import (
	"fmt"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/graph"
)

// Ref is an absolute (task, point, output) reference: the identity of one
// completion event.
type Ref struct {
	Task   string
	Point  cycling.Point
	Output string
}

// String renders the reference as task.point:output.
func (r Ref) String() string {
	return fmt.Sprintf("%s.%s:%s", r.Task, r.Point, r.Output)
}

// Prereq is one node of an instantiated prerequisite tree: every leaf is
// resolved to an absolute Ref with a satisfied flag. Family template
// leaves are expanded into AND/OR groups over members at instantiation.
type Prereq struct {
	Op       graph.Op // OpLeaf, OpAnd or OpOr only
	Children []*Prereq

	Ref       Ref
	satisfied bool
}

// instantiate resolves a template tree against the owner's point. In a
// positive tree, a leaf referencing a point before the referenced task's
// sequence (a pre-initial dependency) is satisfied at birth; in a suicide
// tree the same leaf can simply never fire, so it stays unsatisfied.
func instantiate(reg *Registry, owner string, point cycling.Point, n *graph.Node, suicide bool) (*Prereq, error) {
	switch n.Op {
	case graph.OpLeaf:
		leaf, err := leafAt(reg, owner, point, n.Task, n.Offset, n.Output, suicide)
		if err != nil {
			return nil, err
		}
		return leaf, nil
	case graph.OpFamily:
		members := reg.FamilyMembers(n.Task)
		if len(members) == 0 {
			return nil, fmt.Errorf("task %s at %s: family %s has no members", owner, point, n.Task)
		}
		group := &Prereq{Op: graph.OpAnd}
		if n.Combine == graph.CombineAny {
			group.Op = graph.OpOr
		}
		for _, m := range members {
			leaf, err := leafAt(reg, owner, point, m, n.Offset, n.Output, suicide)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, leaf)
		}
		return group, nil
	default:
		group := &Prereq{Op: n.Op}
		for _, c := range n.Children {
			child, err := instantiate(reg, owner, point, c, suicide)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, child)
		}
		return group, nil
	}
}

func leafAt(reg *Registry, owner string, point cycling.Point, name string, offset cycling.Duration, output string, suicide bool) (*Prereq, error) {
	abs, err := point.Add(offset)
	if err != nil {
		return nil, fmt.Errorf("task %s at %s: %w", owner, point, err)
	}
	def, ok := reg.Get(name)
	if !ok {
		// The parser only lets known names through; reaching this means
		// the registry changed underneath the graph.
		return nil, fmt.Errorf("task %s at %s: prerequisite references unknown task %s", owner, point, name)
	}
	leaf := &Prereq{Op: graph.OpLeaf, Ref: Ref{Task: name, Point: abs, Output: output}}
	if !suicide && !def.Sequence.Contains(abs) {
		leaf.satisfied = true
	}
	return leaf, nil
}

// Satisfied evaluates the tree.
func (p *Prereq) Satisfied() bool {
	if p == nil {
		return true
	}
	switch p.Op {
	case graph.OpLeaf:
		return p.satisfied
	case graph.OpOr:
		for _, c := range p.Children {
			if c.Satisfied() {
				return true
			}
		}
		return false
	default:
		for _, c := range p.Children {
			if !c.Satisfied() {
				return false
			}
		}
		return true
	}
}

// Mark satisfies every leaf matching the reference and reports whether
// anything changed.
func (p *Prereq) Mark(ref Ref) bool {
	if p == nil {
		return false
	}
	if p.Op == graph.OpLeaf {
		if p.satisfied || p.Ref.Task != ref.Task || p.Ref.Output != ref.Output || !p.Ref.Point.Equal(ref.Point) {
			return false
		}
		p.satisfied = true
		return true
	}
	changed := false
	for _, c := range p.Children {
		if c.Mark(ref) {
			changed = true
		}
	}
	return changed
}

// walkLeaves visits every leaf of the tree.
func (p *Prereq) walkLeaves(fn func(*Prereq)) {
	if p == nil {
		return
	}
	if p.Op == graph.OpLeaf {
		fn(p)
		return
	}
	for _, c := range p.Children {
		c.walkLeaves(fn)
	}
}

// SatisfiedRefs returns the references of all satisfied leaves; used to
// carry marks across a family re-expansion.
func (p *Prereq) SatisfiedRefs() []Ref {
	var out []Ref
	p.walkLeaves(func(leaf *Prereq) {
		if leaf.satisfied {
			out = append(out, leaf.Ref)
		}
	})
	return out
}

// UnsatisfiedRefs returns the references of all unsatisfied leaves; the
// pool uses them to decide when a terminal proxy may be reaped.
func (p *Prereq) UnsatisfiedRefs() []Ref {
	var out []Ref
	p.walkLeaves(func(leaf *Prereq) {
		if !leaf.satisfied {
			out = append(out, leaf.Ref)
		}
	})
	return out
}
