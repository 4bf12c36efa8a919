// Package task holds the static task metadata (definitions, outputs,
// families) and the runtime TaskProxy state machine.
package task

// OutputKind discriminates built-in completion signals from user-declared
// custom outputs, so dispatch over outputs is exhaustiveness-checkable
// instead of string comparison.
type OutputKind int

const (
	OutputSubmitted OutputKind = iota
	OutputStarted
	OutputSucceeded
	OutputFailed
	OutputExpired
	OutputCustom
)

// Built-in output labels as they appear in graph expressions and
// completion messages.
const (
	LabelSubmitted = "submitted"
	LabelStarted   = "started"
	LabelSucceeded = "succeeded"
	LabelFailed    = "failed"
	LabelExpired   = "expired"
)

// Output is a tagged variant over {BuiltIn(kind), Custom(label)}.
type Output struct {
	Kind  OutputKind
	Label string
}

// Custom returns a user-declared output with the given label.
func Custom(label string) Output { return Output{Kind: OutputCustom, Label: label} }

// ParseOutput maps a message label onto the output variant: built-in
// labels get their kind, everything else is custom. The built-in state
// names (Submitted, Succeeded, ...) belong to the State type; built-in
// Output values are only ever obtained through this function.
func ParseOutput(label string) Output {
	switch label {
	case LabelSubmitted:
		return Output{Kind: OutputSubmitted, Label: label}
	case LabelStarted:
		return Output{Kind: OutputStarted, Label: label}
	case LabelSucceeded:
		return Output{Kind: OutputSucceeded, Label: label}
	case LabelFailed:
		return Output{Kind: OutputFailed, Label: label}
	case LabelExpired:
		return Output{Kind: OutputExpired, Label: label}
	default:
		return Custom(label)
	}
}

// BuiltIn reports whether the label names a built-in output.
func BuiltIn(label string) bool {
	return ParseOutput(label).Kind != OutputCustom
}

// String returns the message label of the output.
func (o Output) String() string { return o.Label }
