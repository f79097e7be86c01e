// Package transform implements the SSA optimization pipeline described in
// spec.md §4.4: mem2reg, symbolic evaluation, memory elimination, loop
// passes, inlining, block fusion, and the fixpoint driver that ties them
// together.
package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// Mem2Reg promotes every scalar/bool Alloca in fn whose address never
// escapes to SSA values threaded through φ nodes, following spec.md
// §4.4.1 exactly:
//  1. dominator tree + dominance frontiers (analysis.BuildDominatorTree)
//  2. per-alloca store-set
//  3. iterative φ-insertion-position worklist over each alloca's
//     dominance frontier closure
//  4. placeholder φ insertion
//  5. dominator-tree walk with per-variable value frames
//
// It reports whether any rewrite happened, the signal the ultimate pass
// (spec.md §4.4.7) uses to decide whether to keep iterating.
func Mem2Reg(fn *ir.Function, b *ir.Builder) bool {
	dt := analysis.BuildDominatorTree(fn.Entry())

	allocas := promotableAllocas(fn)
	if len(allocas) == 0 {
		return false
	}

	phiBlocks := make(map[*ir.Instruction]map[*ir.BasicBlock]*ir.Instruction, len(allocas))
	for _, alloca := range allocas {
		storeSet := storeBlocksOf(alloca)
		placed := insertPhiPlacements(alloca, storeSet, dt, b)
		phiBlocks[alloca] = placed
	}

	frames := map[*ir.Instruction][]ir.Operand{}
	renameWalk(fn.Entry(), dt, allocas, phiBlocks, frames)

	// Every Load/Store of a promoted alloca was rewritten/removed during
	// renaming; the alloca itself is now unreferenced and removable by
	// dead-code elimination, per spec.md §4.4.1 "Invariants after
	// mem2reg".
	return true
}

// promotableAllocas returns every Alloca in the entry block whose element
// type is scalar/bool and whose only uses are Load/Store of the alloca
// itself (no address escapes via GEP, Call argument, or Store-of-the-
// pointer-value).
func promotableAllocas(fn *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	fn.Entry().Instructions(func(instr *ir.Instruction) bool {
		if instr.Opcode != ir.OpAlloca {
			return true
		}
		elem := instr.Type.Elem()
		if elem.IsArray() {
			return true
		}
		if isPromotable(instr) {
			out = append(out, instr)
		}
		return true
	})
	return out
}

func isPromotable(alloca *ir.Instruction) bool {
	for _, u := range alloca.Users() {
		switch u.Opcode {
		case ir.OpLoad:
			continue
		case ir.OpStore:
			if !sameAddress(u.Operand(1), alloca) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sameAddress(op ir.Operand, alloca *ir.Instruction) bool {
	return op.IsInstruction() && op.Instruction() == alloca
}

// storeBlocksOf records, for this alloca, every block containing a Store
// to it (spec.md §4.4.1 step 2).
func storeBlocksOf(alloca *ir.Instruction) map[*ir.BasicBlock]bool {
	set := map[*ir.BasicBlock]bool{}
	for _, u := range alloca.Users() {
		if u.Opcode == ir.OpStore {
			set[u.Block()] = true
		}
	}
	return set
}

// insertPhiPlacements runs the worklist over dominance frontiers (step 3)
// and inserts placeholder φ instructions (step 4), returning the per-block
// placeholder map for this alloca.
func insertPhiPlacements(alloca *ir.Instruction, storeSet map[*ir.BasicBlock]bool, dt *analysis.DominatorTree, b *ir.Builder) map[*ir.BasicBlock]*ir.Instruction {
	placed := map[*ir.BasicBlock]*ir.Instruction{}
	worklist := make([]*ir.BasicBlock, 0, len(storeSet))
	for bb := range storeSet {
		worklist = append(worklist, bb)
	}
	elem := alloca.Type.Elem()
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range dt.DominanceFrontier(bb) {
			if _, ok := placed[f]; !ok {
				phi := b.PhiAt(f, elem)
				placed[f] = phi
				worklist = append(worklist, f)
			}
		}
	}
	return placed
}

// renameWalk is step 5: a dominator-tree DFS threading a per-variable
// current-value frame, rewriting Store into a value update and Load into
// the current value, and wiring phi incoming pairs at block entry.
func renameWalk(
	bb *ir.BasicBlock,
	dt *analysis.DominatorTree,
	allocas []*ir.Instruction,
	phiBlocks map[*ir.Instruction]map[*ir.BasicBlock]*ir.Instruction,
	frames map[*ir.Instruction][]ir.Operand,
) {
	pushed := map[*ir.Instruction]int{}
	for _, alloca := range allocas {
		if phi, ok := phiBlocks[alloca][bb]; ok {
			frames[alloca] = append(frames[alloca], ir.OperandFromInstruction(phi))
			pushed[alloca]++
		}
	}

	bb.Instructions(func(instr *ir.Instruction) bool {
		switch instr.Opcode {
		case ir.OpStore:
			if alloca, isLocal := storeTargetAlloca(instr, allocas); isLocal {
				val := instr.Operand(0)
				frames[alloca] = append(frames[alloca], val)
				pushed[alloca]++
				instr.RemoveSelf()
			}
		case ir.OpLoad:
			if alloca, isLocal := loadTargetAlloca(instr, allocas); isLocal {
				cur := currentValue(alloca, frames)
				instr.ReplaceSelfWithOperand(cur)
				instr.RemoveSelf()
			}
		}
		return true
	})

	for _, succ := range bb.Successors() {
		for _, alloca := range allocas {
			if phi, ok := phiBlocks[alloca][succ]; ok {
				phi.AddPhiIncoming(bb, currentValue(alloca, frames))
			}
		}
	}

	for _, child := range dt.Dominatees(bb) {
		renameWalk(child, dt, allocas, phiBlocks, frames)
	}

	for alloca, n := range pushed {
		s := frames[alloca]
		frames[alloca] = s[:len(s)-n]
	}
}

func storeTargetAlloca(instr *ir.Instruction, allocas []*ir.Instruction) (*ir.Instruction, bool) {
	ptr := instr.Operand(1)
	if !ptr.IsInstruction() {
		return nil, false
	}
	for _, a := range allocas {
		if ptr.Instruction() == a {
			return a, true
		}
	}
	return nil, false
}

func loadTargetAlloca(instr *ir.Instruction, allocas []*ir.Instruction) (*ir.Instruction, bool) {
	ptr := instr.Operand(0)
	if !ptr.IsInstruction() {
		return nil, false
	}
	for _, a := range allocas {
		if ptr.Instruction() == a {
			return a, true
		}
	}
	return nil, false
}

// currentValue returns the value frame top for alloca, or the element
// type's default initializer if the alloca was never stored on this path
// — "a load from a never-stored alloca resolves to the default
// initializer" (spec.md §4.4.1 step 5, and design note "Mem2reg
// stored-never-set variables").
func currentValue(alloca *ir.Instruction, frames map[*ir.Instruction][]ir.Operand) ir.Operand {
	s := frames[alloca]
	if len(s) == 0 {
		return ir.OperandFromConstant(defaultConstant(alloca.Type.Elem()))
	}
	return s[len(s)-1]
}

func defaultConstant(t ir.ValueType) ir.Constant {
	switch {
	case t.IsFloat():
		return ir.ConstF(0)
	case t.IsBool():
		return ir.ConstB(false)
	default:
		return ir.ConstI(0)
	}
}
