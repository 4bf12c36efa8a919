package graph

import (
	"strings"

	"github.com/gabersek/cylc/internal/cycling"
)

// enode is the intermediate expression tree carrying negation markers;
// extract resolves the markers into positive and suicide trees.
type enode struct {
	op       Op
	children []*enode
	ref      term
	neg      bool
	pos      int
}

// parseSegmentExpr parses a left-hand segment into its positive
// prerequisite tree and the suicide trees contributed by negated
// top-level conjuncts.
func (p *parser) parseSegmentExpr(seg []token) (*Node, []*Node, error) {
	e, rest, err := p.parseOr(seg)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) > 0 {
		return nil, nil, p.errAt(rest[0].pos, "unexpected token in expression")
	}
	return p.extract(e)
}

func (p *parser) parseOr(toks []token) (*enode, []token, error) {
	left, rest, err := p.parseAnd(toks)
	if err != nil {
		return nil, nil, err
	}
	for len(rest) > 0 && rest[0].kind == tkOr {
		right, r, err := p.parseAnd(rest[1:])
		if err != nil {
			return nil, nil, err
		}
		if left.op == OpOr && !left.neg {
			left.children = append(left.children, right)
		} else {
			left = &enode{op: OpOr, children: []*enode{left, right}, pos: left.pos}
		}
		rest = r
	}
	return left, rest, nil
}

func (p *parser) parseAnd(toks []token) (*enode, []token, error) {
	left, rest, err := p.parseUnary(toks)
	if err != nil {
		return nil, nil, err
	}
	for len(rest) > 0 && rest[0].kind == tkAnd {
		right, r, err := p.parseUnary(rest[1:])
		if err != nil {
			return nil, nil, err
		}
		if left.op == OpAnd && !left.neg {
			left.children = append(left.children, right)
		} else {
			left = &enode{op: OpAnd, children: []*enode{left, right}, pos: left.pos}
		}
		rest = r
	}
	return left, rest, nil
}

func (p *parser) parseUnary(toks []token) (*enode, []token, error) {
	if len(toks) == 0 {
		return nil, nil, p.errAt(len(p.src)-1, "dangling operator")
	}
	if toks[0].kind == tkNot {
		e, rest, err := p.parsePrimary(toks[1:])
		if err != nil {
			return nil, nil, err
		}
		if e.neg {
			return nil, nil, p.errAt(toks[0].pos, "double negation")
		}
		e.neg = true
		return e, rest, nil
	}
	return p.parsePrimary(toks)
}

func (p *parser) parsePrimary(toks []token) (*enode, []token, error) {
	if len(toks) == 0 {
		return nil, nil, p.errAt(len(p.src)-1, "dangling operator")
	}
	switch toks[0].kind {
	case tkLParen:
		e, rest, err := p.parseOr(toks[1:])
		if err != nil {
			return nil, nil, err
		}
		if len(rest) == 0 || rest[0].kind != tkRParen {
			return nil, nil, p.errAt(toks[0].pos, "unbalanced '('")
		}
		return e, rest[1:], nil
	case tkRef:
		return &enode{op: OpLeaf, ref: toks[0].ref, pos: toks[0].pos}, toks[1:], nil
	default:
		return nil, nil, p.errAt(toks[0].pos, "expected a task reference or '('")
	}
}

// extract splits the expression into its positive tree and the suicide
// trees of negated top-level conjuncts. Negation anywhere deeper cannot
// be given removal semantics and is rejected.
func (p *parser) extract(e *enode) (*Node, []*Node, error) {
	if e.neg {
		n, err := p.convert(e)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*Node{n}, nil
	}
	if e.op != OpAnd {
		n, err := p.convert(e)
		return n, nil, err
	}

	var pos []*Node
	var sui []*Node
	for _, c := range e.children {
		n, err := p.convert(c)
		if err != nil {
			return nil, nil, err
		}
		if c.neg {
			sui = append(sui, n)
		} else {
			pos = append(pos, n)
		}
	}
	switch len(pos) {
	case 0:
		return nil, sui, nil
	case 1:
		return pos[0], sui, nil
	default:
		return &Node{Op: OpAnd, Children: pos}, sui, nil
	}
}

// convert builds the template tree, rejecting negation below the node
// itself.
func (p *parser) convert(e *enode) (*Node, error) {
	switch e.op {
	case OpLeaf:
		return p.refNode(e.ref)
	default:
		children := make([]*Node, 0, len(e.children))
		for _, c := range e.children {
			if c.neg {
				return nil, p.errAt(c.pos, "negated reference must be a top-level conjunct")
			}
			n, err := p.convert(c)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return &Node{Op: e.op, Children: children}, nil
	}
}

// refNode validates one reference and builds its leaf or family node.
func (p *parser) refNode(t term) (*Node, error) {
	offset := t.offset
	if !t.hasOff {
		offset = cycling.ZeroDuration(p.mode)
	}
	switch {
	case p.resolver.IsFamily(t.name):
		label, comb, err := p.familyQualifier(t)
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpFamily, Task: t.name, Offset: offset, Output: label, Combine: comb}, nil
	case p.resolver.IsTask(t.name):
		label := t.qual
		if label == "" {
			label = DefaultOutput
		}
		if !p.resolver.HasOutput(t.name, label) {
			return nil, p.errAt(t.pos, "task "+t.name+" has no output "+label)
		}
		return &Node{Op: OpLeaf, Task: t.name, Offset: offset, Output: label}, nil
	default:
		return nil, p.errAt(t.pos, "unknown task or family "+t.name)
	}
}

// familyQualifier resolves a family reference qualifier: bare or ":all"
// AND-combines member succeeded outputs, ":any" OR-combines, and
// ":<label>-all"/":<label>-any" select another output label.
func (p *parser) familyQualifier(t term) (string, Combine, error) {
	label, comb := DefaultOutput, CombineAll
	switch q := t.qual; {
	case q == "" || q == "all":
	case q == "any":
		comb = CombineAny
	case strings.HasSuffix(q, "-any"):
		label, comb = strings.TrimSuffix(q, "-any"), CombineAny
	case strings.HasSuffix(q, "-all"):
		label = strings.TrimSuffix(q, "-all")
	default:
		label = q
	}
	for _, member := range p.resolver.FamilyMembers(t.name) {
		if !p.resolver.HasOutput(member, label) {
			return "", 0, p.errAt(t.pos, "family "+t.name+" member "+member+" has no output "+label)
		}
	}
	return label, comb, nil
}
