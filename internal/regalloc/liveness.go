package regalloc

import "github.com/dusk-phantom/sysyc/internal/codegen/rv64"

// regSet is a small set of register operands keyed by their canonical
// (pre-assignment) Reg value.
type regSet map[rv64.Reg]struct{}

func (s regSet) add(r rv64.Reg)      { s[r] = struct{}{} }
func (s regSet) remove(r rv64.Reg)   { delete(s, r) }
func (s regSet) has(r rv64.Reg) bool { _, ok := s[r]; return ok }

func (s regSet) clone() regSet {
	c := make(regSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// trackable reports whether a register participates in liveness: virtual
// registers and allocatable/argument physical registers. Reserved
// registers (zero, sp, the spill temporaries) are invisible to the
// allocator (spec.md §4.6 "reserved physical registers").
func trackable(r rv64.Reg) bool {
	if !r.Valid() {
		return false
	}
	if r.IsVirtual() {
		return true
	}
	switch r.Real() {
	case rv64.Zero, rv64.RA, rv64.SP, rv64.GP, rv64.TP, rv64.S0,
		rv64.T0, rv64.T1, rv64.T2, rv64.T3,
		rv64.F0, rv64.F1, rv64.F2:
		return false
	}
	return true
}

// liveness holds the per-block live-out sets of one dataflow solve.
type liveness struct {
	out map[Block]regSet
}

// computeLiveness runs the standard backward dataflow to a fixed point:
// in[b] = use[b] ∪ (out[b] − def[b]), out[b] = ∪ in[succ].
func computeLiveness(fn Function) *liveness {
	blocks := fn.Blocks()

	use := make(map[Block]regSet, len(blocks))
	def := make(map[Block]regSet, len(blocks))
	for _, b := range blocks {
		u, d := make(regSet), make(regSet)
		for _, i := range b.Instrs() {
			for _, p := range i.Uses() {
				if r := *p; trackable(r) && !d.has(r) {
					u.add(r)
				}
			}
			for _, p := range i.Defs() {
				if r := *p; trackable(r) {
					d.add(r)
				}
			}
		}
		use[b], def[b] = u, d
	}

	in := make(map[Block]regSet, len(blocks))
	out := make(map[Block]regSet, len(blocks))
	for _, b := range blocks {
		in[b], out[b] = make(regSet), make(regSet)
	}

	for changed := true; changed; {
		changed = false
		for n := len(blocks) - 1; n >= 0; n-- {
			b := blocks[n]
			o := make(regSet)
			for _, s := range b.Succs() {
				for r := range in[s] {
					o.add(r)
				}
			}
			i := o.clone()
			for r := range def[b] {
				i.remove(r)
			}
			for r := range use[b] {
				i.add(r)
			}
			if len(o) != len(out[b]) || len(i) != len(in[b]) {
				changed = true
			}
			out[b], in[b] = o, i
		}
	}
	return &liveness{out: out}
}
