package graph

import (
	"strings"

	"github.com/gabersek/cylc/internal/cycling"
)

type tokKind int

const (
	tkRef tokKind = iota
	tkArrow
	tkAnd
	tkOr
	tkNot
	tkLParen
	tkRParen
)

type token struct {
	kind tokKind
	ref  term
	pos  int
}

type parser struct {
	mode     cycling.Mode
	src      string
	resolver Resolver
	toks     []token
}

func (p *parser) errAt(pos int, reason string) *GraphSyntaxError {
	return &GraphSyntaxError{Expr: p.src, Pos: pos, Reason: reason}
}

func isNameChar(c byte) bool {
	return c == '_' || c == '-' || c == '+' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// tokenize scans the raw line into tokens, folding each task reference
// (name, bracketed offset, output qualifier) into a single ref token.
func (p *parser) tokenize() error {
	s := p.src
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '=':
			if i+1 >= len(s) || s[i+1] != '>' {
				return p.errAt(i, "expected '=>'")
			}
			p.toks = append(p.toks, token{kind: tkArrow, pos: i})
			i += 2
		case c == '&':
			p.toks = append(p.toks, token{kind: tkAnd, pos: i})
			i++
		case c == '|':
			p.toks = append(p.toks, token{kind: tkOr, pos: i})
			i++
		case c == '!':
			p.toks = append(p.toks, token{kind: tkNot, pos: i})
			i++
		case c == '(':
			p.toks = append(p.toks, token{kind: tkLParen, pos: i})
			i++
		case c == ')':
			p.toks = append(p.toks, token{kind: tkRParen, pos: i})
			i++
		case c == '[':
			return p.errAt(i, "offset bracket without a task name")
		case c == ']':
			return p.errAt(i, "unbalanced ']'")
		case isNameChar(c) && c != '-' && c != '+':
			tok, next, err := p.scanRef(i)
			if err != nil {
				return err
			}
			p.toks = append(p.toks, tok)
			i = next
		default:
			return p.errAt(i, "unexpected character "+string(c))
		}
	}
	if len(p.toks) == 0 {
		return p.errAt(0, "empty graph line")
	}
	return nil
}

// scanRef consumes NAME ['[' offset ']'] [':' qualifier] starting at i.
func (p *parser) scanRef(i int) (token, int, error) {
	s := p.src
	start := i
	for i < len(s) && isNameChar(s[i]) {
		i++
	}
	t := term{name: s[start:i], pos: start}

	if i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return token{}, 0, p.errAt(i, "unbalanced '[' in offset")
		}
		lit := s[i+1 : i+end]
		off, err := cycling.ParseDuration(p.mode, lit)
		if err != nil {
			return token{}, 0, p.errAt(i, "bad offset "+lit+": "+err.Error())
		}
		t.offset = off
		t.hasOff = true
		i += end + 1
	}

	if i < len(s) && s[i] == ':' {
		i++
		qstart := i
		for i < len(s) && isNameChar(s[i]) {
			i++
		}
		if i == qstart {
			return token{}, 0, p.errAt(qstart, "empty output qualifier")
		}
		t.qual = s[qstart:i]
	}

	return token{kind: tkRef, ref: t, pos: start}, i, nil
}

// splitArrows partitions the token stream on top-level '=>' tokens.
func (p *parser) splitArrows() ([][]token, error) {
	var segs [][]token
	var cur []token
	depth := 0
	for _, tok := range p.toks {
		switch tok.kind {
		case tkLParen:
			depth++
		case tkRParen:
			depth--
			if depth < 0 {
				return nil, p.errAt(tok.pos, "unbalanced ')'")
			}
		case tkArrow:
			if depth != 0 {
				return nil, p.errAt(tok.pos, "'=>' inside parentheses")
			}
			if len(cur) == 0 {
				return nil, p.errAt(tok.pos, "missing expression before '=>'")
			}
			segs = append(segs, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if depth != 0 {
		return nil, p.errAt(len(p.src)-1, "unbalanced '('")
	}
	if len(cur) == 0 {
		return nil, p.errAt(len(p.src)-1, "missing expression after '=>'")
	}
	return append(segs, cur), nil
}

// ownerTerms parses a right-hand segment: optionally negated task or
// family references joined with '&'.
func (p *parser) ownerTerms(seg []token) ([]term, error) {
	var terms []term
	expectRef := true
	neg := false
	for _, tok := range seg {
		switch tok.kind {
		case tkNot:
			if !expectRef || neg {
				return nil, p.errAt(tok.pos, "misplaced '!'")
			}
			neg = true
		case tkRef:
			if !expectRef {
				return nil, p.errAt(tok.pos, "expected '&' between owners")
			}
			t := tok.ref
			t.neg = neg
			if !p.resolver.IsTask(t.name) && !p.resolver.IsFamily(t.name) {
				return nil, p.errAt(t.pos, "unknown task or family "+t.name)
			}
			if !t.neg && (t.hasOff || t.qual != "") {
				return nil, p.errAt(t.pos, "an owner takes no offset or output qualifier")
			}
			terms = append(terms, t)
			expectRef, neg = false, false
		case tkAnd:
			if expectRef {
				return nil, p.errAt(tok.pos, "misplaced '&'")
			}
			expectRef = true
		default:
			return nil, p.errAt(tok.pos, "owners must be tasks or families joined with '&'")
		}
	}
	if expectRef {
		return nil, p.errAt(len(p.src)-1, "dangling operator in owner group")
	}
	return terms, nil
}
