package scheduler

import (
	"time"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/hold"
)

// Message is one inbound completion/output event from the job layer.
// Built-in labels (submitted, started, succeeded, failed, expired) drive
// state transitions; custom labels only mark outputs achieved.
type Message struct {
	Task   string
	Point  cycling.Point
	Output string
	Time   time.Time
}

// ControlOp is an operator request kind.
type ControlOp int

const (
	// CtlHold blocks the waiting→ready transition of the targets.
	CtlHold ControlOp = iota
	// CtlRelease clears holds on currently-held targets.
	CtlRelease
	// CtlKill forces non-terminal targets to failed, no retry.
	CtlKill
	// CtlRemove marks targets removed and drops them from the pool.
	CtlRemove
	// CtlExpire expires still-waiting targets (non-fatal skip).
	CtlExpire
)

var ctlNames = map[ControlOp]string{
	CtlHold:    "hold",
	CtlRelease: "release",
	CtlKill:    "kill",
	CtlRemove:  "remove",
	CtlExpire:  "expire",
}

// String returns the operator-facing name of the control.
func (op ControlOp) String() string {
	if n, ok := ctlNames[op]; ok {
		return n
	}
	return "unknown"
}

// Control is one operator request, applied on the control loop with the
// same drain-then-apply ordering as completion messages.
type Control struct {
	Op     ControlOp
	Target hold.TargetSpec
}
