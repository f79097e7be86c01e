package transform

import "github.com/dusk-phantom/sysyc/internal/ir"

// BlockFusion merges a block into its sole predecessor whenever the edge
// between them is the only one on either side, and deletes every block no
// longer reachable from the entry (spec.md §4.4.6). It returns whether any
// rewrite happened.
func BlockFusion(fn *ir.Function) bool {
	changed := false
	for {
		mergedThisRound := false
		for _, bb := range ir.ReachableBlocks(fn.Entry()) {
			if fuseInto(bb) {
				mergedThisRound = true
				break // block set changed; restart the scan.
			}
		}
		if !mergedThisRound {
			break
		}
		changed = true
	}
	if fn.Entry() != nil {
		pruneUnreachable(fn.Entry())
	}
	return changed
}

// fuseInto merges bb into its predecessor pred when pred has exactly one
// successor (bb) and bb has exactly one predecessor (pred): the jump
// between them carries no branching information and can be elided.
func fuseInto(bb *ir.BasicBlock) bool {
	preds := bb.Predecessors()
	if len(preds) != 1 {
		return false
	}
	pred := preds[0]
	if pred == bb || len(pred.Successors()) != 1 {
		return false
	}
	if fn := bb.Function(); fn.Entry() == bb {
		return false // never fold the entry block away.
	}

	term := pred.Terminator()
	if term == nil || term.Opcode != ir.OpBr || term.IsConditionalBr() {
		return false
	}
	term.RemoveSelf()

	succs := append([]*ir.BasicBlock(nil), bb.Successors()...)
	bb.Instructions(func(instr *ir.Instruction) bool {
		ops := append([]ir.Operand(nil), instr.Operands()...)
		instr.RemoveSelf()
		pred.PushBack(instr)
		instr.SetOperands(ops)
		return true
	})
	// The moved terminator rewired the CFG edges; φ nodes in the former
	// successors still name bb as their incoming predecessor.
	for _, s := range succs {
		s.ReplaceEntry(bb, pred)
	}
	if fn := bb.Function(); fn.Exit() == bb {
		fn.SetExit(pred)
	}
	bb.RemoveSelf()
	return true
}
