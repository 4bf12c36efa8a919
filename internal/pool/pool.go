// Package pool owns the live TaskProxy set: spawning, prerequisite
// bookkeeping and reaping. All mutation happens on the scheduler's
// control loop; the pool itself takes no locks.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gabersek/cylc/internal/cycling"
	"github.com/gabersek/cylc/internal/graph"
	"github.com/gabersek/cylc/internal/task"
)

// SpawnOutOfRangeError reports a spawn request past a sequence's final
// bound. Recoverable: the spawn is skipped and logged.
type SpawnOutOfRangeError struct {
	Task  string
	Point cycling.Point
}

// Error implements the error interface for SpawnOutOfRangeError.
func (e *SpawnOutOfRangeError) Error() string {
	return fmt.Sprintf("spawn of %s at %s is beyond the sequence bounds", e.Task, e.Point)
}

// spawnEdge is one reverse dependency: owner's leaf references the
// indexed task with this offset and output.
type spawnEdge struct {
	owner  *task.Definition
	offset cycling.Duration
	output string
}

// Pool is the live collection of TaskProxies, indexed by (name, point).
type Pool struct {
	reg    *task.Registry
	logger *slog.Logger

	proxies map[string]*task.Proxy

	// spent holds the keys of proxies that already lived and left the
	// pool (reaped or removed). Spawning a spent key is a no-op, so a
	// suicide-removed proxy cannot resurrect when its positive
	// prerequisites complete in a later iteration.
	spent map[string]bool

	// index maps a task name to every leaf referencing it, for
	// output-driven successor spawning.
	index    map[string][]spawnEdge
	indexRev int
}

// New builds an empty pool over the registry.
func New(reg *task.Registry, logger *slog.Logger) *Pool {
	p := &Pool{
		reg:     reg,
		logger:  logger,
		proxies: make(map[string]*task.Proxy),
		spent:   make(map[string]bool),
	}
	p.rebuildIndex()
	return p
}

func key(name string, point cycling.Point) string {
	return name + "." + point.String()
}

// rebuildIndex derives the reverse dependency index from the compiled
// trigger templates, expanding family leaves against current membership.
func (p *Pool) rebuildIndex() {
	p.index = make(map[string][]spawnEdge)
	for _, def := range p.reg.Definitions() {
		for _, tr := range def.Triggers {
			add := func(n *graph.Node) {
				switch n.Op {
				case graph.OpLeaf:
					p.index[n.Task] = append(p.index[n.Task], spawnEdge{owner: def, offset: n.Offset, output: n.Output})
				case graph.OpFamily:
					for _, m := range p.reg.FamilyMembers(n.Task) {
						p.index[m] = append(p.index[m], spawnEdge{owner: def, offset: n.Offset, output: n.Output})
					}
				}
			}
			tr.Pre.Walk(add)
			for _, s := range tr.Suicide {
				s.Walk(add)
			}
		}
	}
	p.indexRev = p.reg.Revision()
}

// Refresh re-derives the spawn index and re-widens waiting proxies after
// a family membership change.
func (p *Pool) Refresh() error {
	if p.indexRev == p.reg.Revision() {
		return nil
	}
	p.rebuildIndex()
	for _, proxy := range p.proxies {
		if err := proxy.RefreshFamilies(p.reg); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the proxy at (name, point).
func (p *Pool) Get(name string, point cycling.Point) (*task.Proxy, bool) {
	proxy, ok := p.proxies[key(name, point)]
	return proxy, ok
}

// All returns every live proxy in stable ID order.
func (p *Pool) All() []*task.Proxy {
	ids := make([]string, 0, len(p.proxies))
	for id := range p.proxies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*task.Proxy, len(ids))
	for i, id := range ids {
		out[i] = p.proxies[id]
	}
	return out
}

// Empty reports whether no proxies remain.
func (p *Pool) Empty() bool { return len(p.proxies) == 0 }

// Active reports whether any non-terminal proxy remains.
func (p *Pool) Active() bool {
	for _, proxy := range p.proxies {
		if !proxy.Terminal() {
			return true
		}
	}
	return false
}

// Seed spawns the earliest valid proxy of every definition.
func (p *Pool) Seed() error {
	for _, def := range p.reg.Definitions() {
		if _, err := p.Spawn(def, def.Sequence.First()); err != nil {
			return err
		}
	}
	return nil
}

// Spawn creates the proxy for (def, point) if the point lies on the
// definition's sequence. Spawning an existing proxy is a no-op, as is
// spawning a proxy that already lived and left the pool. A point past
// the final bound returns SpawnOutOfRangeError; an off-sequence point
// is skipped with a debug log.
func (p *Pool) Spawn(def *task.Definition, point cycling.Point) (*task.Proxy, error) {
	if existing, ok := p.proxies[key(def.Name, point)]; ok {
		return existing, nil
	}
	if p.spent[key(def.Name, point)] {
		return nil, nil
	}
	if final := def.Sequence.Final(); final != nil && point.After(*final) {
		return nil, &SpawnOutOfRangeError{Task: def.Name, Point: point}
	}
	if !def.Sequence.Contains(point) {
		p.logger.Debug("Skipping spawn at off-sequence point.", "task", def.Name, "point", point.String())
		return nil, nil
	}
	proxy, err := task.NewProxy(p.reg, def, point)
	if err != nil {
		return nil, err
	}
	p.backfill(proxy)
	p.proxies[key(def.Name, point)] = proxy
	p.logger.Debug("Spawned task proxy.", "task", def.Name, "point", point.String())
	return proxy, nil
}

// backfill satisfies a fresh proxy's leaves from outputs already achieved
// by live proxies, so late spawns do not miss earlier completions.
func (p *Pool) backfill(proxy *task.Proxy) {
	for _, ref := range proxy.UnsatisfiedRefs() {
		if upstream, ok := p.Get(ref.Task, ref.Point); ok && upstream.HasAchieved(ref.Output) {
			proxy.ApplyRef(ref)
		}
	}
}

// ApplyOutput records an achieved output of (name, point) across the
// pool: the emitting proxy's achieved set, every matching prerequisite
// leaf, and output-driven successor spawning. It returns the proxies
// whose prerequisite state changed.
func (p *Pool) ApplyOutput(ref task.Ref) ([]*task.Proxy, error) {
	if emitter, ok := p.Get(ref.Task, ref.Point); ok {
		emitter.AchieveOutput(task.ParseOutput(ref.Output))
	}

	var changed []*task.Proxy
	for _, proxy := range p.All() {
		if proxy.Terminal() {
			continue
		}
		if proxy.ApplyRef(ref) {
			changed = append(changed, proxy)
		}
	}

	if err := p.spawnSuccessors(ref); err != nil {
		return nil, err
	}
	return changed, nil
}

// spawnSuccessors spawns, for every leaf (owner, offset, output) matching
// the achieved output, the owner proxy at point - offset.
func (p *Pool) spawnSuccessors(ref task.Ref) error {
	for _, edge := range p.index[ref.Task] {
		if edge.output != ref.Output {
			continue
		}
		ownerPoint, err := ref.Point.Sub(edge.offset)
		if err != nil {
			return err
		}
		proxy, err := p.Spawn(edge.owner, ownerPoint)
		if err != nil {
			var oor *SpawnOutOfRangeError
			if errors.As(err, &oor) {
				p.logger.Warn("Spawn beyond sequence bounds skipped.", "task", oor.Task, "point", oor.Point.String())
				continue
			}
			return err
		}
		if proxy != nil {
			// The event that caused the spawn satisfies its own leaf.
			proxy.ApplyRef(ref)
		}
	}
	return nil
}

// SpawnNext spawns the same task's next-point proxy; used for tasks with
// no positive prerequisites, which nothing else ever spawns.
func (p *Pool) SpawnNext(def *task.Definition, after cycling.Point) error {
	next, ok := def.Sequence.Next(after)
	if !ok {
		return nil
	}
	_, err := p.Spawn(def, next)
	return err
}

// Reap removes terminal proxies that no non-terminal proxy still
// references and that no retention request pins, returning the removed
// proxies.
func (p *Pool) Reap() []*task.Proxy {
	needed := make(map[string]bool)
	for _, proxy := range p.proxies {
		if proxy.Terminal() {
			continue
		}
		for _, ref := range proxy.UnsatisfiedRefs() {
			needed[key(ref.Task, ref.Point)] = true
		}
	}

	var reaped []*task.Proxy
	for id, proxy := range p.proxies {
		if !proxy.Terminal() || proxy.Retained || needed[id] {
			continue
		}
		delete(p.proxies, id)
		p.spent[id] = true
		reaped = append(reaped, proxy)
		p.logger.Debug("Reaped task proxy.", "task", proxy.Def.Name, "point", proxy.Point.String(), "state", proxy.State().String())
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i].ID() < reaped[j].ID() })
	return reaped
}

// Remove deletes a proxy outright and marks its key spent (operator
// removal of a non-terminal proxy goes through Proxy.Remove first so
// state history stays honest).
func (p *Pool) Remove(proxy *task.Proxy) {
	delete(p.proxies, key(proxy.Def.Name, proxy.Point))
	p.spent[key(proxy.Def.Name, proxy.Point)] = true
}
