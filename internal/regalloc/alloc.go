package regalloc

import (
	"sort"

	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
)

// graph is the interference graph: nodes are virtual registers plus the
// pre-colored physical registers they conflict with; edges connect
// registers live at the same program point or defined together
// (spec.md §4.6).
type graph struct {
	adj      map[rv64.Reg]regSet
	useCount map[rv64.Reg]int
}

func newGraph() *graph {
	return &graph{adj: make(map[rv64.Reg]regSet), useCount: make(map[rv64.Reg]int)}
}

func (g *graph) node(r rv64.Reg) {
	if _, ok := g.adj[r]; !ok {
		g.adj[r] = make(regSet)
	}
}

func (g *graph) edge(a, b rv64.Reg) {
	if a == b || a.Kind() != b.Kind() {
		return
	}
	g.node(a)
	g.node(b)
	g.adj[a].add(b)
	g.adj[b].add(a)
}

// buildInterference walks each block backward from its live-out set,
// adding def-vs-live edges, def-with-def edges, and caller-saved clobber
// edges at calls. A copy's source does not interfere with its destination,
// so copies can collapse to the same register.
func buildInterference(fn Function, live *liveness) *graph {
	g := newGraph()
	for _, b := range fn.Blocks() {
		cur := live.out[b].clone()
		insts := b.Instrs()
		for n := len(insts) - 1; n >= 0; n-- {
			i := insts[n]
			var defs []rv64.Reg
			for _, p := range i.Defs() {
				if r := *p; trackable(r) {
					defs = append(defs, r)
					g.node(r)
				}
			}
			var uses []rv64.Reg
			for _, p := range i.Uses() {
				if r := *p; trackable(r) {
					uses = append(uses, r)
					g.node(r)
					g.useCount[r]++
				}
			}

			if i.IsCopy() && len(uses) == 1 {
				cur.remove(uses[0])
			}
			for _, d := range defs {
				for r := range cur {
					g.edge(d, r)
				}
				for _, d2 := range defs {
					g.edge(d, d2)
				}
			}
			if i.IsCall() {
				// Values live across the call must avoid the caller-saved
				// set (spec.md §4.5 Call def/use contract).
				for r := range cur {
					if contains(defs, r) {
						continue
					}
					for _, c := range rv64.CallerSavedRegs {
						clobber := rv64.PhysReg(c)
						if trackable(clobber) {
							g.edge(r, clobber)
						}
					}
				}
			}
			for _, d := range defs {
				cur.remove(d)
			}
			for _, u := range uses {
				cur.add(u)
			}
		}
	}
	return g
}

func contains(rs []rv64.Reg, r rv64.Reg) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

// palette returns the color set for a register kind.
func palette(k rv64.RegKind) []rv64.RealReg {
	if k == rv64.RegKindFloat {
		return rv64.AllocatableFloatRegs
	}
	return rv64.AllocatableIntRegs
}

// virtualNodes returns the graph's virtual registers in deterministic
// order.
func (g *graph) virtualNodes() []rv64.Reg {
	var nodes []rv64.Reg
	for r := range g.adj {
		if r.IsVirtual() {
			nodes = append(nodes, r)
		}
	}
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID() < nodes[b].ID() })
	return nodes
}

// neighborColor reports the physical register a neighbor occupies, either
// pre-colored or already assigned.
func neighborColor(n rv64.Reg, assigned map[rv64.Reg]rv64.RealReg) (rv64.RealReg, bool) {
	if n.IsPhys() {
		return n.Real(), true
	}
	c, ok := assigned[n]
	return c, ok
}

// pickColor returns the lowest-indexed palette color not taken by any
// neighbor.
func (g *graph) pickColor(r rv64.Reg, assigned map[rv64.Reg]rv64.RealReg) (rv64.RealReg, bool) {
	taken := make(map[rv64.RealReg]bool)
	for n := range g.adj[r] {
		if c, ok := neighborColor(n, assigned); ok {
			taken[c] = true
		}
	}
	for _, c := range palette(r.Kind()) {
		if !taken[c] {
			return c, true
		}
	}
	return 0, false
}

// color attempts the perfect-coloring fast path and falls back to iterated
// simplify/select with spill candidates chosen by highest degree and
// lowest use count (spec.md §4.6 Algorithm).
func (g *graph) color() (map[rv64.Reg]rv64.RealReg, map[rv64.Reg]bool) {
	nodes := g.virtualNodes()

	// (a) Perfect coloring: assign in order; if every node gets a color,
	// apply as-is.
	perfect := make(map[rv64.Reg]rv64.RealReg, len(nodes))
	ok := true
	for _, r := range nodes {
		c, found := g.pickColor(r, perfect)
		if !found {
			ok = false
			break
		}
		perfect[r] = c
	}
	if ok {
		return perfect, nil
	}

	// (b) Simplify: repeatedly remove trivially colorable nodes; when none
	// remains, push a spill candidate and continue.
	remaining := make(map[rv64.Reg]bool, len(nodes))
	degree := make(map[rv64.Reg]int, len(nodes))
	for _, r := range nodes {
		remaining[r] = true
		degree[r] = len(g.adj[r])
	}
	type stackEntry struct {
		reg      rv64.Reg
		maySpill bool
	}
	var stack []stackEntry
	removeNode := func(r rv64.Reg, maySpill bool) {
		stack = append(stack, stackEntry{r, maySpill})
		delete(remaining, r)
		for n := range g.adj[r] {
			if remaining[n] {
				degree[n]--
			}
		}
	}
	for len(remaining) > 0 {
		picked := false
		for _, r := range nodes {
			if remaining[r] && degree[r] < len(palette(r.Kind())) {
				removeNode(r, false)
				picked = true
				break
			}
		}
		if picked {
			continue
		}
		// Spill candidate: highest degree, ties broken by fewest uses.
		var cand rv64.Reg
		found := false
		for _, r := range nodes {
			if !remaining[r] {
				continue
			}
			if !found || degree[r] > degree[cand] ||
				(degree[r] == degree[cand] && g.useCount[r] < g.useCount[cand]) {
				cand, found = r, true
			}
		}
		removeNode(cand, true)
	}

	// Select: rebuild in reverse, spilling candidates that fail to receive
	// a color.
	assigned := make(map[rv64.Reg]rv64.RealReg, len(nodes))
	spills := make(map[rv64.Reg]bool)
	for n := len(stack) - 1; n >= 0; n-- {
		e := stack[n]
		c, found := g.pickColor(e.reg, assigned)
		if found {
			assigned[e.reg] = c
			continue
		}
		spills[e.reg] = true
	}
	return assigned, spills
}
