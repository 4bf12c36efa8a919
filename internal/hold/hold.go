// Package hold resolves operator target specs against the live pool.
// Hold and release sets are computed fresh from the current pool snapshot
// on every request; no held-task list is stored anywhere, so hold and
// release cannot drift apart.
package hold

import (
	"path"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/task"
)

// TargetKind selects how a target spec matches proxies.
type TargetKind int

const (
	// TaskAtPoint matches the single proxy (name, point).
	TaskAtPoint TargetKind = iota
	// WholePoint matches every proxy at the cycle point.
	WholePoint
	// FamilyExact matches every member of the named family.
	FamilyExact
	// FamilyPattern matches proxies whose task name matches the glob.
	FamilyPattern
)

// TargetSpec names a set of proxies for hold/release/kill/remove.
type TargetSpec struct {
	Kind    TargetKind
	Name    string // task name, family name or glob pattern
	Pattern string // glob for FamilyPattern
	Point   *cycling.Point
}

// Targets resolves the spec against a pool snapshot.
func Targets(spec TargetSpec, reg *task.Registry, proxies []*task.Proxy) []*task.Proxy {
	var out []*task.Proxy
	for _, p := range proxies {
		if match(spec, reg, p) {
			out = append(out, p)
		}
	}
	return out
}

func match(spec TargetSpec, reg *task.Registry, p *task.Proxy) bool {
	switch spec.Kind {
	case TaskAtPoint:
		return p.Def.Name == spec.Name && spec.Point != nil && p.Point.Equal(*spec.Point)
	case WholePoint:
		return spec.Point != nil && p.Point.Equal(*spec.Point)
	case FamilyExact:
		for _, m := range reg.FamilyMembers(spec.Name) {
			if m == p.Def.Name {
				return true
			}
		}
		return false
	case FamilyPattern:
		ok, err := path.Match(spec.Pattern, p.Def.Name)
		return err == nil && ok
	default:
		return false
	}
}

// Hold sets the hold flag on every matching non-terminal proxy and
// returns how many were newly held.
func Hold(spec TargetSpec, reg *task.Registry, proxies []*task.Proxy) int {
	n := 0
	for _, p := range Targets(spec, reg, proxies) {
		if p.Terminal() || p.Held() {
			continue
		}
		p.SetHeld(true)
		n++
	}
	return n
}

// Release clears the hold flag on matching proxies that are currently
// held, regardless of how the hold was applied.
func Release(spec TargetSpec, reg *task.Registry, proxies []*task.Proxy) int {
	n := 0
	for _, p := range Targets(spec, reg, proxies) {
		if !p.Held() {
			continue
		}
		p.SetHeld(false)
		n++
	}
	return n
}
