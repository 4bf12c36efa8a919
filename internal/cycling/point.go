// Package cycling implements cycle points, durations and recurrence
// sequences for the two cycling domains: signed integers and UTC
// datetimes. All points within one workflow belong to a single domain;
// mixing domains in arithmetic returns a DomainMismatchError, and mixing
// them in a comparison is an internal invariant violation and panics.
package cycling

import (
	"strconv"
	"strings"
	"time"
)

// Mode selects the cycling domain of a workflow.
type Mode int

const (
	// Integer cycles over signed integers with a fixed step.
	Integer Mode = iota
	// DateTime cycles over UTC calendar timestamps.
	DateTime
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Integer:
		return "integer"
	case DateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "integer":
		return Integer, nil
	case "datetime", "gregorian":
		return DateTime, nil
	default:
		return 0, &InvalidPointError{Literal: s, Reason: "unknown cycling mode"}
	}
}

// Point is one position in a recurrence: an integer, or a UTC timestamp.
// The zero Point is the integer point 0; use ParsePoint or a Sequence to
// obtain meaningful values.
type Point struct {
	mode Mode
	i    int64
	t    time.Time
}

// IntegerPoint returns the integer-domain point with the given value.
func IntegerPoint(v int64) Point {
	return Point{mode: Integer, i: v}
}

// TimePoint returns the datetime-domain point at the given instant,
// normalized to UTC.
func TimePoint(t time.Time) Point {
	return Point{mode: DateTime, t: t.UTC()}
}

// Datetime literal layouts accepted by ParsePoint, most specific first.
var pointLayouts = []string{
	time.RFC3339,
	"20060102T150405Z",
	"20060102T150405",
	"20060102T1504Z",
	"20060102T1504",
	"20060102",
}

// ParsePoint parses a point literal in the given domain. Integer literals
// are optionally signed decimals; datetime literals accept RFC3339 and
// the compact forms 20060102T1504[05][Z].
func ParsePoint(mode Mode, literal string) (Point, error) {
	s := strings.TrimSpace(literal)
	if s == "" {
		return Point{}, &InvalidPointError{Literal: literal, Reason: "empty literal"}
	}
	switch mode {
	case Integer:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Point{}, &InvalidPointError{Literal: literal, Reason: "not a valid integer point"}
		}
		return IntegerPoint(v), nil
	case DateTime:
		for _, layout := range pointLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return TimePoint(t), nil
			}
		}
		return Point{}, &InvalidPointError{Literal: literal, Reason: "not a valid datetime point"}
	default:
		return Point{}, &InvalidPointError{Literal: literal, Reason: "unknown cycling mode"}
	}
}

// Mode returns the domain this point belongs to.
func (p Point) Mode() Mode { return p.mode }

// Int returns the integer value of an integer-domain point.
func (p Point) Int() int64 { return p.i }

// Time returns the instant of a datetime-domain point.
func (p Point) Time() time.Time { return p.t }

// String renders the canonical literal for the point.
func (p Point) String() string {
	switch p.mode {
	case Integer:
		return strconv.FormatInt(p.i, 10)
	case DateTime:
		if p.t.Second() != 0 {
			return p.t.Format("20060102T150405Z")
		}
		return p.t.Format("20060102T1504Z")
	default:
		return "?"
	}
}

// Add applies a duration to the point. Calendar components are exact:
// years, months and days go through time.AddDate so variable month and
// year lengths are respected; the clock component is a fixed offset.
func (p Point) Add(d Duration) (Point, error) {
	if p.mode != d.mode {
		return Point{}, &DomainMismatchError{Op: "add", Left: p.mode, Right: d.mode}
	}
	switch p.mode {
	case Integer:
		return IntegerPoint(p.i + d.steps), nil
	default:
		sign := 1
		if d.neg {
			sign = -1
		}
		t := p.t.AddDate(sign*d.years, sign*d.months, sign*d.days)
		t = t.Add(time.Duration(sign) * d.clock)
		return TimePoint(t), nil
	}
}

// Sub applies the negated duration; owner points are recovered from leaf
// offsets this way (owner = referenced point - offset).
func (p Point) Sub(d Duration) (Point, error) {
	return p.Add(d.Negated())
}

// Compare orders two points in the same domain: -1, 0 or +1. Comparing
// across domains can only be the result of pool corruption, so it panics
// rather than returning a misleading order.
func (p Point) Compare(q Point) int {
	if p.mode != q.mode {
		panic(&DomainMismatchError{Op: "compare", Left: p.mode, Right: q.mode})
	}
	switch p.mode {
	case Integer:
		switch {
		case p.i < q.i:
			return -1
		case p.i > q.i:
			return 1
		default:
			return 0
		}
	default:
		return p.t.Compare(q.t)
	}
}

// Before reports whether p orders strictly before q.
func (p Point) Before(q Point) bool { return p.Compare(q) < 0 }

// After reports whether p orders strictly after q.
func (p Point) After(q Point) bool { return p.Compare(q) > 0 }

// Equal reports whether p and q are the same point.
func (p Point) Equal(q Point) bool { return p.Compare(q) == 0 }
