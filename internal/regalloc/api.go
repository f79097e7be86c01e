// Package regalloc implements graph-coloring register allocation over a
// small ISA-facing contract (spec.md §4.6). The interfaces below are
// implemented by the back end to abstract away instruction details, so the
// allocator only sees def/use register references, copies, and calls.
package regalloc

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
)

type (
	// Function is the top-level interface to do register allocation, which
	// corresponds to a CFG containing Block(s).
	Function interface {
		// Blocks returns every block in layout order; the first is entry.
		Blocks() []Block
		// ReloadRegisterBefore inserts a reload of v's spill slot into v's
		// assigned temporary physical register immediately before instr.
		ReloadRegisterBefore(v rv64.Reg, instr Instr)
		// StoreRegisterAfter inserts a store of v's assigned temporary to
		// v's spill slot immediately after instr.
		StoreRegisterAfter(v rv64.Reg, instr Instr)
		// Done tells the implementation that allocation finished, so it can
		// delete trivial moves and finalize the stack frame.
		Done()
	}

	// Block is a basic block in the CFG of a function.
	Block interface {
		// Instrs returns the block's instructions in order. The slice is a
		// snapshot: spill-code insertion during iteration does not affect it.
		Instrs() []Instr
		// Succs returns the successor blocks, for liveness dataflow.
		Succs() []Block
	}

	// Instr is an instruction in a block, abstracting away the underlying
	// ISA. Defs/Uses return references so the allocator can rewrite virtual
	// registers to their physical assignment in place.
	Instr interface {
		fmt.Stringer

		Defs() []*rv64.Reg
		Uses() []*rv64.Reg
		// IsCopy reports a register-to-register move; its source and
		// destination do not interfere, enabling same-color assignment.
		IsCopy() bool
		// IsCall reports an instruction that clobbers the caller-saved set;
		// values live across it must receive callee-saved registers.
		IsCall() bool
	}
)

// maxSpillRounds bounds the spill-and-recolor loop; every round removes at
// least one virtual register from the graph, so real programs converge far
// earlier.
const maxSpillRounds = 32

// Allocate runs register allocation on fn: a perfect-coloring fast path,
// then iterated graph coloring with spilling until every virtual register
// has a physical assignment (spec.md §4.6). The integer and float register
// files are colored as disjoint palettes in one pass.
func Allocate(fn Function) error {
	for round := 0; round < maxSpillRounds; round++ {
		live := computeLiveness(fn)
		g := buildInterference(fn, live)
		assigned, spills := g.color()
		if len(spills) == 0 {
			applyAssignment(fn, assigned)
			fn.Done()
			return nil
		}
		insertSpills(fn, spills)
	}
	return fmt.Errorf("regalloc: spill loop failed to converge")
}

// applyAssignment rewrites every virtual register reference to its color.
func applyAssignment(fn Function, assigned map[rv64.Reg]rv64.RealReg) {
	for _, b := range fn.Blocks() {
		for _, i := range b.Instrs() {
			for _, p := range i.Defs() {
				if p.IsVirtual() {
					if c, ok := assigned[*p]; ok {
						*p = p.Assign(c)
					}
				}
			}
			for _, p := range i.Uses() {
				if p.IsVirtual() {
					if c, ok := assigned[*p]; ok {
						*p = p.Assign(c)
					}
				}
			}
		}
	}
}

// insertSpills rewrites every def and use of each spilled register through
// a reserved temporary, with a reload before each use and a store after
// each def (spec.md §4.6 "Spill code").
func insertSpills(fn Function, spills map[rv64.Reg]bool) {
	for _, b := range fn.Blocks() {
		for _, i := range b.Instrs() {
			intTemp, floatTemp := 0, 0
			perInst := make(map[rv64.Reg]rv64.RealReg)
			temp := func(v rv64.Reg) rv64.RealReg {
				if t, ok := perInst[v]; ok {
					return t
				}
				var t rv64.RealReg
				if v.Kind() == rv64.RegKindFloat {
					t = rv64.FloatSpillTemps[floatTemp]
					floatTemp++
				} else {
					t = rv64.IntSpillTemps[intTemp]
					intTemp++
				}
				perInst[v] = t
				return t
			}
			for _, p := range i.Uses() {
				if v := *p; v.IsVirtual() && spills[v] {
					t := temp(v)
					fn.ReloadRegisterBefore(v.Assign(t), i)
					*p = rv64.PhysReg(t)
				}
			}
			for _, p := range i.Defs() {
				if v := *p; v.IsVirtual() && spills[v] {
					t := temp(v)
					fn.StoreRegisterAfter(v.Assign(t), i)
					*p = rv64.PhysReg(t)
				}
			}
		}
	}
}
