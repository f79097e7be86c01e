package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// LICM hoists loop-invariant, side-effect-free instructions out of a loop
// into its preheader, provided the defining block dominates every other
// block in the loop (so hoisting cannot skip a guard that would otherwise
// have prevented the instruction from executing) and none of its operands
// are defined inside the loop (spec.md §4.4.4). Requires LoopSimplify to
// have already given the loop a PreHeader; loops without one are skipped.
func LICM(lf *analysis.LoopForest, dt *analysis.DominatorTree) bool {
	changed := false
	for _, loop := range lf.PostOrder() {
		if loop.PreHeader == nil {
			continue
		}
		if hoistLoop(loop, dt) {
			changed = true
		}
	}
	return changed
}

func hoistLoop(loop *analysis.Loop, dt *analysis.DominatorTree) bool {
	changed := false
	for _, bb := range loop.Blocks {
		if bb == loop.Head || !dominatesAllLoopBlocks(dt, bb, loop) {
			continue
		}
		instr := bb.Root()
		for instr != nil {
			next := instr.Next()
			if isHoistable(instr, loop) {
				ops := append([]ir.Operand(nil), instr.Operands()...)
				instr.RemoveSelf()
				instr.InsertBefore(loop.PreHeader.Terminator())
				instr.SetOperands(ops)
				changed = true
			}
			instr = next
		}
	}
	return changed
}

func dominatesAllLoopBlocks(dt *analysis.DominatorTree, bb *ir.BasicBlock, loop *analysis.Loop) bool {
	for _, other := range loop.Blocks {
		if other != bb && !dt.Dominates(bb, other) {
			return false
		}
	}
	return true
}

// isHoistable reports whether instr is pure (no memory effect, not a Phi,
// not a terminator) and every operand it reads is defined outside the
// loop.
func isHoistable(instr *ir.Instruction, loop *analysis.Loop) bool {
	switch instr.Opcode {
	case ir.OpAlloca, ir.OpLoad, ir.OpStore, ir.OpCall, ir.OpPhi, ir.OpBr, ir.OpRet:
		return false
	}
	for _, op := range instr.Operands() {
		if op.IsInstruction() && loop.Contains(op.Instruction().Block()) {
			return false
		}
	}
	return true
}
