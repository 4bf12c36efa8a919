package cycling

import "fmt"

// InvalidPointError reports a malformed point or duration literal. It is
// fatal at parse time: startup aborts rather than guessing a domain.
type InvalidPointError struct {
	Literal string
	Reason  string
}

// Error implements the error interface for InvalidPointError.
func (e *InvalidPointError) Error() string {
	return fmt.Sprintf("invalid cycle point or duration %q: %s", e.Literal, e.Reason)
}

// DomainMismatchError reports arithmetic or comparison across the two
// cycling domains (integer vs datetime), which is never meaningful.
type DomainMismatchError struct {
	Op    string
	Left  Mode
	Right Mode
}

// Error implements the error interface for DomainMismatchError.
func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("domain mismatch in %s: %s vs %s", e.Op, e.Left, e.Right)
}
