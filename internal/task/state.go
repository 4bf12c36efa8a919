package task

// State is the lifecycle state of a TaskProxy.
type State int

const (
	// Waiting proxies have unsatisfied prerequisites (or are held).
	Waiting State = iota
	// Ready proxies have all prerequisites satisfied and await submission.
	Ready
	// Submitted proxies are acknowledged by the job layer.
	Submitted
	// Running proxies have reported the started output.
	Running
	// Succeeded is terminal.
	Succeeded
	// Failed is terminal; with retry budget left the proxy passes through
	// Retrying instead.
	Failed
	// Retrying waits out a retry delay before returning to Waiting.
	Retrying
	// Expired is terminal: the point's runnable window passed.
	Expired
	// Removed is terminal: suicide-triggered or operator-removed.
	Removed
)

var stateNames = map[State]string{
	Waiting:   "waiting",
	Ready:     "ready",
	Submitted: "submitted",
	Running:   "running",
	Succeeded: "succeeded",
	Failed:    "failed",
	Retrying:  "retrying",
	Expired:   "expired",
	Removed:   "removed",
}

// String returns the lowercase state name used in logs and messages.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the state ends the proxy's lifecycle. Failed
// is terminal here because a proxy with retry budget left enters
// Retrying, never Failed.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, Failed, Expired, Removed:
		return true
	default:
		return false
	}
}
