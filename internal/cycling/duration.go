package cycling

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration is a point offset in one cycling domain. Integer durations are
// a signed step count. Datetime durations keep their calendar components
// (years, months, days) separate from the clock component so that
// Point.Add can apply calendar arithmetic exactly.
type Duration struct {
	mode Mode
	neg  bool

	// integer domain
	steps int64

	// datetime domain
	years  int
	months int
	days   int
	clock  time.Duration
}

var isoDurationRe = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// IntegerDuration returns an integer-domain duration of the given step count.
func IntegerDuration(steps int64) Duration {
	return Duration{mode: Integer, steps: steps}
}

// ZeroDuration returns the zero offset of the given domain.
func ZeroDuration(mode Mode) Duration {
	return Duration{mode: mode}
}

// ParseDuration parses a duration literal in the given domain. Datetime
// durations use ISO 8601 (`-P1DT6H`, `PT30M`, `P1M`); integer durations
// are optionally signed decimals (`1`, `-2`, also accepted as `P1`).
func ParseDuration(mode Mode, literal string) (Duration, error) {
	s := strings.TrimSpace(literal)
	if s == "" {
		return Duration{}, &InvalidPointError{Literal: literal, Reason: "empty duration"}
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	switch mode {
	case Integer:
		s = strings.TrimPrefix(s, "P")
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Duration{}, &InvalidPointError{Literal: literal, Reason: "not a valid integer offset"}
		}
		if neg {
			v = -v
		}
		return IntegerDuration(v), nil
	case DateTime:
		m := isoDurationRe.FindStringSubmatch(s)
		if m == nil || s == "P" || s == "PT" {
			return Duration{}, &InvalidPointError{Literal: literal, Reason: "not a valid ISO 8601 duration"}
		}
		atoi := func(v string) int {
			if v == "" {
				return 0
			}
			n, _ := strconv.Atoi(v)
			return n
		}
		d := Duration{
			mode:   DateTime,
			neg:    neg,
			years:  atoi(m[1]),
			months: atoi(m[2]),
			days:   7*atoi(m[3]) + atoi(m[4]),
			clock: time.Duration(atoi(m[5]))*time.Hour +
				time.Duration(atoi(m[6]))*time.Minute +
				time.Duration(atoi(m[7]))*time.Second,
		}
		if d.IsZero() {
			d.neg = false
		}
		return d, nil
	default:
		return Duration{}, &InvalidPointError{Literal: literal, Reason: "unknown cycling mode"}
	}
}

// Mode returns the domain this duration belongs to.
func (d Duration) Mode() Mode { return d.mode }

// IsZero reports whether the duration has no effect when applied.
func (d Duration) IsZero() bool {
	if d.mode == Integer {
		return d.steps == 0
	}
	return d.years == 0 && d.months == 0 && d.days == 0 && d.clock == 0
}

// Negative reports whether the duration points backwards in time.
func (d Duration) Negative() bool {
	if d.mode == Integer {
		return d.steps < 0
	}
	return d.neg && !d.IsZero()
}

// Negated returns the duration with its sign flipped.
func (d Duration) Negated() Duration {
	if d.mode == Integer {
		d.steps = -d.steps
		return d
	}
	if !d.IsZero() {
		d.neg = !d.neg
	}
	return d
}

// calendar reports whether the datetime duration carries a month or year
// component, i.e. whether its span varies with the point it is applied to.
func (d Duration) calendar() bool {
	return d.mode == DateTime && (d.years != 0 || d.months != 0)
}

// fixed returns the exact span of a non-calendar datetime duration
// (days are 24h over UTC).
func (d Duration) fixed() time.Duration {
	span := time.Duration(d.days)*24*time.Hour + d.clock
	if d.neg {
		span = -span
	}
	return span
}

// String renders the canonical literal for the duration.
func (d Duration) String() string {
	if d.mode == Integer {
		return strconv.FormatInt(d.steps, 10)
	}
	var b strings.Builder
	if d.neg && !d.IsZero() {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.years != 0 {
		b.WriteString(strconv.Itoa(d.years) + "Y")
	}
	if d.months != 0 {
		b.WriteString(strconv.Itoa(d.months) + "M")
	}
	if d.days != 0 {
		b.WriteString(strconv.Itoa(d.days) + "D")
	}
	if d.clock != 0 {
		b.WriteByte('T')
		c := d.clock
		if h := c / time.Hour; h != 0 {
			b.WriteString(strconv.FormatInt(int64(h), 10) + "H")
			c -= h * time.Hour
		}
		if m := c / time.Minute; m != 0 {
			b.WriteString(strconv.FormatInt(int64(m), 10) + "M")
			c -= m * time.Minute
		}
		if sec := c / time.Second; sec != 0 {
			b.WriteString(strconv.FormatInt(int64(sec), 10) + "S")
		}
	}
	if b.Len() == 1 {
		return "P0D"
	}
	return b.String()
}
