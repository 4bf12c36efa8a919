// Package graph compiles textual trigger expressions into boolean
// prerequisite trees. A parsed line yields one Trigger per owner task:
// the owner's positive prerequisite tree plus any suicide trees whose
// satisfaction removes the owner from the pool instead of running it.
//
// Leaves are parameterized by a point offset relative to the owner; the
// task layer resolves them to absolute points when a proxy is spawned.
package graph

import (
	"github.com/gabersek/cylc/internal/cycling"
)

// Op discriminates prerequisite tree nodes.
type Op int

const (
	// OpLeaf references one (task, offset, output).
	OpLeaf Op = iota
	// OpAnd requires every child.
	OpAnd
	// OpOr requires at least one child.
	OpOr
	// OpFamily references every member of a family; how members combine
	// is carried by the Combine field. Family leaves stay unexpanded in
	// the template so membership changes re-widen live requirements.
	OpFamily
)

// Combine selects the member combination of a family leaf.
type Combine int

const (
	// CombineAll AND-combines member outputs (the default expansion).
	CombineAll Combine = iota
	// CombineAny OR-combines member outputs (the ":any" qualifier).
	CombineAny
)

// Node is one node of a prerequisite tree template.
type Node struct {
	Op       Op
	Children []*Node

	// Leaf and family fields.
	Task    string
	Offset  cycling.Duration
	Output  string // output label; builtin labels by name
	Combine Combine
}

// Trigger is the compiled dependency contribution of one graph line pair
// to one owner task.
type Trigger struct {
	Owner string
	// Pre is the positive prerequisite tree; nil when the line only
	// contributes suicide triggers.
	Pre *Node
	// Suicide holds trees whose satisfaction removes a still-waiting
	// owner instead of releasing it.
	Suicide []*Node
	// Text is the source expression, kept for log messages.
	Text string
}

// Resolver supplies the static task metadata the parser validates
// against. The task registry implements it.
type Resolver interface {
	IsTask(name string) bool
	IsFamily(name string) bool
	FamilyMembers(name string) []string
	// HasOutput reports whether the named task declares the output label
	// (builtin labels always resolve).
	HasOutput(task, label string) bool
}

// Walk visits the node and all descendants depth-first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// copyTree deep-copies a template tree so owners on one line never share
// mutable state.
func copyTree(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = copyTree(c)
		}
	}
	return &out
}
