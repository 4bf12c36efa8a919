package cycling

import "time"

// Sequence generates the ordered series of points start, start+step,
// start+2*step, ... optionally bounded above by a final point. All
// queries are computed arithmetically from the step index, so a sequence
// is restartable from any known point without replaying history.
type Sequence struct {
	mode  Mode
	start Point
	final *Point
	step  Duration
}

// NewSequence builds a sequence from its initial point, optional final
// point and a strictly positive step.
func NewSequence(start Point, final *Point, step Duration) (*Sequence, error) {
	if start.Mode() != step.Mode() {
		return nil, &DomainMismatchError{Op: "sequence step", Left: start.Mode(), Right: step.Mode()}
	}
	if step.IsZero() || step.Negative() {
		return nil, &InvalidPointError{Literal: step.String(), Reason: "sequence step must be positive"}
	}
	if final != nil {
		if final.Mode() != start.Mode() {
			return nil, &DomainMismatchError{Op: "sequence bounds", Left: start.Mode(), Right: final.Mode()}
		}
		if final.Before(start) {
			return nil, &InvalidPointError{Literal: final.String(), Reason: "final point precedes initial point"}
		}
	}
	return &Sequence{mode: start.Mode(), start: start, final: final, step: step}, nil
}

// Mode returns the cycling domain of the sequence.
func (s *Sequence) Mode() Mode { return s.mode }

// First returns the initial point of the sequence.
func (s *Sequence) First() Point { return s.start }

// Final returns the final bound, or nil for an unbounded sequence.
func (s *Sequence) Final() *Point {
	if s.final == nil {
		return nil
	}
	f := *s.final
	return &f
}

// Step returns the recurrence step.
func (s *Sequence) Step() Duration { return s.step }

// pointAt returns start + k*step, computed directly from k so repeated
// applications of a calendar step cannot drift (start + k months, not k
// successive one-month additions).
func (s *Sequence) pointAt(k int64) Point {
	switch {
	case s.mode == Integer:
		return IntegerPoint(s.start.i + k*s.step.steps)
	case s.step.calendar():
		t := s.start.t.AddDate(int(k)*s.step.years, int(k)*s.step.months, int(k)*s.step.days)
		return TimePoint(t.Add(time.Duration(k) * s.step.clock))
	default:
		return TimePoint(s.start.t.Add(time.Duration(k) * s.step.fixed()))
	}
}

// indexOnOrAfter returns the smallest k >= 0 with pointAt(k) >= p.
func (s *Sequence) indexOnOrAfter(p Point) int64 {
	if !p.After(s.start) {
		return 0
	}
	var k int64
	switch {
	case s.mode == Integer:
		delta := p.i - s.start.i
		k = delta / s.step.steps
		if delta%s.step.steps != 0 {
			k++
		}
		return k
	case s.step.calendar():
		// Estimate by elapsed months, then walk to the exact index. The
		// step has at least one month, so the walk is a handful of
		// iterations at most.
		stepMonths := int64(s.step.years*12 + s.step.months)
		y1, m1, _ := s.start.t.Date()
		y2, m2, _ := p.t.Date()
		elapsed := int64(y2-y1)*12 + int64(m2-m1)
		k = elapsed / stepMonths
		if k < 0 {
			k = 0
		}
		for k > 0 && !s.pointAt(k - 1).Before(p) {
			k--
		}
		for s.pointAt(k).Before(p) {
			k++
		}
		return k
	default:
		span := s.step.fixed()
		delta := p.t.Sub(s.start.t)
		k = int64(delta / span)
		if delta%span != 0 {
			k++
		}
		return k
	}
}

// inBounds reports whether a candidate point respects the final bound.
func (s *Sequence) inBounds(p Point) bool {
	return s.final == nil || !p.After(*s.final)
}

// Contains reports whether p is a point of the sequence.
func (s *Sequence) Contains(p Point) bool {
	if p.Mode() != s.mode || p.Before(s.start) || !s.inBounds(p) {
		return false
	}
	return s.pointAt(s.indexOnOrAfter(p)).Equal(p)
}

// OnOrAfter returns the first sequence point >= p, adjusting up into the
// sequence the way the original seeds a task's earliest valid point.
func (s *Sequence) OnOrAfter(p Point) (Point, bool) {
	if p.Mode() != s.mode {
		return Point{}, false
	}
	q := s.pointAt(s.indexOnOrAfter(p))
	if !s.inBounds(q) {
		return Point{}, false
	}
	return q, true
}

// Next returns the smallest sequence point strictly after p. p itself
// need not be on the sequence.
func (s *Sequence) Next(p Point) (Point, bool) {
	if p.Mode() != s.mode {
		return Point{}, false
	}
	k := s.indexOnOrAfter(p)
	if s.pointAt(k).Equal(p) {
		k++
	}
	q := s.pointAt(k)
	if !s.inBounds(q) {
		return Point{}, false
	}
	return q, true
}

// Previous returns the largest sequence point strictly before p.
func (s *Sequence) Previous(p Point) (Point, bool) {
	if p.Mode() != s.mode || !p.After(s.start) {
		return Point{}, false
	}
	k := s.indexOnOrAfter(p) - 1
	if k < 0 {
		return Point{}, false
	}
	return s.pointAt(k), true
}

// Cursor walks a sequence lazily from a starting point.
type Cursor struct {
	seq     *Sequence
	k       int64
	started bool
}

// PointsFrom returns a cursor positioned at the first sequence point >= p.
func (s *Sequence) PointsFrom(p Point) *Cursor {
	return &Cursor{seq: s, k: s.indexOnOrAfter(p)}
}

// Next yields the next point of the sequence, or false when the final
// bound is passed.
func (c *Cursor) Next() (Point, bool) {
	if c.started {
		c.k++
	}
	c.started = true
	p := c.seq.pointAt(c.k)
	if !c.seq.inBounds(p) {
		return Point{}, false
	}
	return p, true
}
