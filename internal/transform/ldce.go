package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// LDCE is loop-local dead-code elimination (spec.md §4.4.4): instruction
// chains inside a loop that only feed each other — typically an induction
// variable whose value is never observed outside its own update cycle —
// are deleted together. An instruction survives if it has a side effect
// (Store, Call, Br, Ret) or if any transitive user escapes the candidate
// set, which covers both users outside the loop and users feeding an
// effectful instruction.
func LDCE(lf *analysis.LoopForest) bool {
	changed := false
	for _, loop := range lf.PostOrder() {
		if ldceLoop(loop) {
			changed = true
		}
	}
	return changed
}

func ldceLoop(loop *analysis.Loop) bool {
	candidates := make(map[*ir.Instruction]bool)
	for _, bb := range loop.Blocks {
		bb.Instructions(func(instr *ir.Instruction) bool {
			switch instr.Opcode {
			case ir.OpStore, ir.OpCall, ir.OpBr, ir.OpRet:
			default:
				candidates[instr] = true
			}
			return true
		})
	}

	// Shrink to the self-contained core: anything with a non-candidate
	// user is live, and its liveness propagates backward to its operands.
	for shrunk := true; shrunk; {
		shrunk = false
		for instr := range candidates {
			for _, u := range instr.Users() {
				if !candidates[u] {
					delete(candidates, instr)
					shrunk = true
					break
				}
			}
		}
	}
	if len(candidates) == 0 {
		return false
	}

	for instr := range candidates {
		instr.RemoveSelf()
	}
	return true
}
