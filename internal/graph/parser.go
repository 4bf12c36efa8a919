package graph

import (
	"github.com/gabersek/cylc/internal/cycling"
)

// DefaultOutput is the output label a bare task reference triggers off.
const DefaultOutput = "succeeded"

// ParseLines compiles a set of graph lines against the given resolver.
// Offsets in bracket notation parse in the workflow's cycling domain.
func ParseLines(mode cycling.Mode, lines []string, r Resolver) ([]*Trigger, error) {
	var out []*Trigger
	for _, line := range lines {
		trigs, err := ParseLine(mode, line, r)
		if err != nil {
			return nil, err
		}
		out = append(out, trigs...)
	}
	return out, nil
}

// ParseLine compiles one graph line. Chained arrows are processed
// pairwise: in "a => b => c", b is first an owner, then a prerequisite.
func ParseLine(mode cycling.Mode, line string, r Resolver) ([]*Trigger, error) {
	p := &parser{mode: mode, src: line, resolver: r}
	if err := p.tokenize(); err != nil {
		return nil, err
	}
	segments, err := p.splitArrows()
	if err != nil {
		return nil, err
	}

	if len(segments) == 1 {
		// No arrow: the line just declares tasks with no prerequisites.
		terms, err := p.ownerTerms(segments[0])
		if err != nil {
			return nil, err
		}
		var out []*Trigger
		for _, t := range terms {
			if t.neg {
				return nil, p.errAt(t.pos, "suicide trigger needs a left-hand expression")
			}
			for _, owner := range p.expandOwner(t) {
				out = append(out, &Trigger{Owner: owner, Text: line})
			}
		}
		return out, nil
	}

	var out []*Trigger
	lhsPos, lhsSui, err := p.parseSegmentExpr(segments[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(segments); i++ {
		terms, err := p.ownerTerms(segments[i])
		if err != nil {
			return nil, err
		}
		trigs, err := p.buildPair(lhsPos, lhsSui, terms, line)
		if err != nil {
			return nil, err
		}
		out = append(out, trigs...)

		// The owners of this pair become the prerequisite expression of
		// the next pair in the chain.
		lhsPos, lhsSui = p.chainTree(terms), nil
		if lhsPos == nil && i < len(segments)-1 {
			return nil, p.errAt(len(line)-1, "suicide-only group cannot feed a further arrow")
		}
	}
	return out, nil
}

// term is one (possibly negated) task or family reference.
type term struct {
	name   string
	offset cycling.Duration
	hasOff bool
	qual   string
	neg    bool
	pos    int
}

// buildPair turns one (lhs, rhs) arrow pair into triggers. Non-negated
// right-hand terms are owners; negated ones attach suicide leaves to
// their sibling owners, or, when the whole group is negated, take the
// left-hand tree as their own suicide trigger.
func (p *parser) buildPair(lhsPos *Node, lhsSui []*Node, terms []term, line string) ([]*Trigger, error) {
	var owners, negated []term
	for _, t := range terms {
		if t.neg {
			negated = append(negated, t)
		} else {
			owners = append(owners, t)
		}
	}

	var out []*Trigger
	if len(owners) == 0 {
		// Classic suicide form: "x => !y".
		if lhsPos == nil || len(lhsSui) > 0 {
			return nil, p.errAt(0, "suicide trigger needs a positive left-hand expression")
		}
		for _, t := range negated {
			if t.hasOff || t.qual != "" {
				return nil, p.errAt(t.pos, "suicide target takes no offset or output qualifier here")
			}
			for _, owner := range p.expandOwner(t) {
				tr := &Trigger{Owner: owner, Suicide: []*Node{copyTree(lhsPos)}, Text: line}
				if err := p.checkSelfRef(tr); err != nil {
					return nil, err
				}
				out = append(out, tr)
			}
		}
		return out, nil
	}

	// Each negated sibling contributes one suicide leaf to every owner.
	var siblingSui []*Node
	for _, t := range negated {
		n, err := p.refNode(t)
		if err != nil {
			return nil, err
		}
		siblingSui = append(siblingSui, n)
	}

	for _, t := range owners {
		for _, owner := range p.expandOwner(t) {
			tr := &Trigger{Owner: owner, Pre: copyTree(lhsPos), Text: line}
			for _, s := range lhsSui {
				tr.Suicide = append(tr.Suicide, copyTree(s))
			}
			for _, s := range siblingSui {
				tr.Suicide = append(tr.Suicide, copyTree(s))
			}
			if err := p.checkSelfRef(tr); err != nil {
				return nil, err
			}
			out = append(out, tr)
		}
	}
	return out, nil
}

// expandOwner lists the concrete owner task names of one right-hand term.
func (p *parser) expandOwner(t term) []string {
	if p.resolver.IsFamily(t.name) {
		return p.resolver.FamilyMembers(t.name)
	}
	return []string{t.name}
}

// chainTree rebuilds the owners of a pair as the prerequisite tree of the
// next pair in an arrow chain.
func (p *parser) chainTree(terms []term) *Node {
	var children []*Node
	for _, t := range terms {
		if t.neg {
			continue
		}
		leaf := &Node{Op: OpLeaf, Task: t.name, Offset: cycling.ZeroDuration(p.mode), Output: DefaultOutput}
		if p.resolver.IsFamily(t.name) {
			leaf.Op = OpFamily
			leaf.Combine = CombineAll
		}
		children = append(children, leaf)
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return &Node{Op: OpAnd, Children: children}
	}
}

// checkSelfRef rejects a task depending on its own output at the same or
// a later cycle, which could never resolve.
func (p *parser) checkSelfRef(tr *Trigger) error {
	var bad bool
	check := func(n *Node) {
		if n.Op == OpLeaf && n.Task == tr.Owner && !n.Offset.Negative() {
			bad = true
		}
	}
	tr.Pre.Walk(check)
	for _, s := range tr.Suicide {
		s.Walk(check)
	}
	if bad {
		return &GraphSyntaxError{Expr: p.src, Reason: "task " + tr.Owner + " references itself without a negative offset"}
	}
	return nil
}
