package transform

import "github.com/dusk-phantom/sysyc/internal/ir"

// DCE removes every instruction with no users and no observable side
// effect, repeating until no more instructions qualify so a chain of
// now-dead defs collapses in one call (the dead-code-elimination step of
// the spec.md §4.4.7 pipeline). Store, Call, Br and Ret are never removed
// here: dead stores are left to MemElim's liveness-aware rule, calls are
// not removed by any pass, and Br/Ret are terminators.
func DCE(fn *ir.Function) bool {
	changed := false
	for {
		removedThisRound := false
		for _, bb := range ir.ReachableBlocks(fn.Entry()) {
			instr := bb.Root()
			for instr != nil {
				next := instr.Next()
				if isDeadPure(instr) {
					instr.RemoveSelf()
					removedThisRound = true
				}
				instr = next
			}
		}
		if !removedThisRound {
			break
		}
		changed = true
	}
	return changed
}

func isDeadPure(instr *ir.Instruction) bool {
	if instr.HasUsers() {
		return false
	}
	switch instr.Opcode {
	case ir.OpStore, ir.OpCall, ir.OpBr, ir.OpRet:
		return false
	default:
		return true
	}
}
