package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// MemElim eliminates redundant loads and dead stores using Memory SSA
// (spec.md §4.4.3): a Load whose reaching memory version is a Store to the
// same address is replaced by that store's value, walking past reaching
// definitions that provably touch disjoint addresses; a Load reached by a
// zero-memset of its backing object resolves to zero; a Store whose memory
// version is overwritten before anything observes it is removed outright.
// It returns whether any rewrite happened.
func MemElim(fn *ir.Function, dt *analysis.DominatorTree) bool {
	mssa := analysis.Build(fn.Entry(), dt)
	changed := false

	for _, bb := range ir.ReachableBlocks(fn.Entry()) {
		instr := bb.Root()
		for instr != nil {
			next := instr.Next()
			switch instr.Opcode {
			case ir.OpLoad:
				if forwardLoad(instr, mssa) {
					changed = true
				}
			case ir.OpStore:
				if eliminateDeadStore(instr, mssa) {
					changed = true
				}
			}
			instr = next
		}
	}
	return changed
}

// chainWalkLimit bounds how many reaching definitions forwardLoad skips
// past; deep disjoint-store chains beyond it just stay unforwarded.
const chainWalkLimit = 64

// forwardLoad implements store-to-load forwarding. Starting from the
// load's reaching memory version, definitions to provably disjoint
// addresses are stepped over; the walk resolves at a same-address store
// with a compatible type, or at a memset-to-zero covering the load's
// backing object.
func forwardLoad(load *ir.Instruction, mssa *analysis.MemorySSA) bool {
	node, ok := mssa.NodeFor(load)
	if !ok {
		return false
	}
	cur := node.Reaching
	for steps := 0; cur != nil && steps < chainWalkLimit; steps++ {
		if cur.Kind != analysis.MemNormal || cur.Instr == nil {
			return false // function entry or a memory phi: value unknown.
		}
		def := cur.Instr
		switch def.Opcode {
		case ir.OpStore:
			switch addressAlias(def.Operand(1), load.Operand(0)) {
			case aliasSame:
				val := def.Operand(0)
				if !val.Type().Equal(load.Type) {
					return false
				}
				load.ReplaceSelfWithOperand(val)
				load.RemoveSelf()
				node.Remove()
				return true
			case aliasDisjoint:
				cur = cur.Reaching
				continue
			default:
				return false
			}
		case ir.OpCall:
			if isZeroMemset(def) && sameRoot(def.Operand(0), load.Operand(0)) {
				load.ReplaceSelfWithOperand(ir.OperandFromConstant(zeroConstantFor(load.Type)))
				load.RemoveSelf()
				node.Remove()
				return true
			}
			return false
		default:
			return false
		}
	}
	return false
}

// eliminateDeadStore removes a Store whose memory version is never read:
// every user is a later Store overwriting the identical address, and any
// observing return only matters when the address escapes the function
// (spec.md §4.4.3).
func eliminateDeadStore(store *ir.Instruction, mssa *analysis.MemorySSA) bool {
	node, ok := mssa.NodeFor(store)
	if !ok {
		return false
	}
	for _, u := range node.Users() {
		if u.Kind != analysis.MemNormal || u.Instr == nil {
			return false
		}
		if u.Instr.Opcode == ir.OpRet {
			// A return observes escaping memory only; a store into a
			// function-private stack slot dies with the frame.
			if addressMayEscape(store.Operand(1)) {
				return false
			}
			continue
		}
		if u.Instr.Opcode != ir.OpStore {
			return false
		}
		if addressAlias(u.Instr.Operand(1), store.Operand(1)) != aliasSame {
			return false
		}
	}
	store.RemoveSelf()
	node.Remove()
	return true
}

// addressMayEscape reports whether ptr may name memory visible outside the
// function: anything not provably rooted at a local Alloca.
func addressMayEscape(ptr ir.Operand) bool {
	root, _, ok := flattenAddress(ptr)
	if !ok {
		return true
	}
	return !isAllocaRoot(root)
}

// isZeroMemset matches a call to the zero-fill primitive with a constant
// zero fill value.
func isZeroMemset(call *ir.Instruction) bool {
	if call.Callee() == nil || call.Callee().Name != "llvm.memset.p0.i32" {
		return false
	}
	v := call.Operand(1)
	return v.IsConstant() && v.Constant().IsZeroValue()
}

func zeroConstantFor(t ir.ValueType) ir.Constant {
	switch {
	case t.IsFloat():
		return ir.ConstF(0)
	case t.IsBool():
		return ir.ConstB(false)
	default:
		return ir.ConstI(0)
	}
}

// --- address decomposition and alias verdicts ---

type aliasVerdict byte

const (
	aliasMay aliasVerdict = iota
	aliasSame
	aliasDisjoint
)

// flattenAddress decomposes a pointer operand into (root object, index
// path), composing nested GEPs: `gep (gep p, a..., x), y, b...` has the
// path `a..., x+y, b...`. Composition bails out when neither boundary
// index is a foldable constant.
func flattenAddress(op ir.Operand) (ir.Operand, []ir.Operand, bool) {
	if !op.IsInstruction() {
		return op, nil, true
	}
	instr := op.Instruction()
	if instr.Opcode != ir.OpGetElementPtr {
		return op, nil, true
	}
	root, inner, ok := flattenAddress(instr.Operand(0))
	if !ok {
		return ir.Operand{}, nil, false
	}
	outer := instr.Operands()[1:]
	if len(inner) == 0 {
		return root, append([]ir.Operand(nil), outer...), true
	}
	last, first := inner[len(inner)-1], outer[0]
	var combined ir.Operand
	switch {
	case isConstZeroIndex(first):
		combined = last
	case isConstZeroIndex(last):
		combined = first
	case isConstIndex(last) && isConstIndex(first):
		combined = ir.OperandFromConstant(ir.ConstI(last.Constant().Int() + first.Constant().Int()))
	default:
		return ir.Operand{}, nil, false
	}
	path := append([]ir.Operand(nil), inner[:len(inner)-1]...)
	path = append(path, combined)
	path = append(path, outer[1:]...)
	return root, path, true
}

func isConstIndex(op ir.Operand) bool {
	return op.IsConstant() && op.Constant().Kind() == ir.ConstInt
}

func isConstZeroIndex(op ir.Operand) bool {
	return isConstIndex(op) && op.Constant().Int() == 0
}

func isAllocaRoot(root ir.Operand) bool {
	return root.IsInstruction() && root.Instruction().Opcode == ir.OpAlloca
}

// sameRoot reports whether two pointers provably address the same object.
func sameRoot(a, b ir.Operand) bool {
	ra, _, okA := flattenAddress(a)
	rb, _, okB := flattenAddress(b)
	return okA && okB && rootsEqual(ra, rb)
}

func rootsEqual(a, b ir.Operand) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case ir.OperandGlobal:
		return a.Global() == b.Global()
	case ir.OperandInstruction:
		return a.Instruction() == b.Instruction()
	case ir.OperandParameter:
		return a.Parameter() == b.Parameter()
	}
	return false
}

// addressAlias classifies two pointer operands: provably the same address,
// provably disjoint, or unknown. Distinct identified objects (two
// different globals, two different allocas, or an alloca against anything
// else) never overlap; paths from the same root compare index by index,
// with differing constants at the same position proving disjointness under
// in-bounds indexing.
func addressAlias(a, b ir.Operand) aliasVerdict {
	ra, pa, okA := flattenAddress(a)
	rb, pb, okB := flattenAddress(b)
	if !okA || !okB {
		return aliasMay
	}
	if !rootsEqual(ra, rb) {
		if isAllocaRoot(ra) || isAllocaRoot(rb) {
			return aliasDisjoint
		}
		if ra.Kind() == ir.OperandGlobal && rb.Kind() == ir.OperandGlobal {
			return aliasDisjoint
		}
		// Pointer parameters may alias each other and any global.
		return aliasMay
	}
	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		ai, bi := pa[i], pb[i]
		if isConstIndex(ai) && isConstIndex(bi) {
			if ai.Constant().Int() != bi.Constant().Int() {
				return aliasDisjoint
			}
			continue
		}
		if ai.IsInstruction() && bi.IsInstruction() && ai.Instruction() == bi.Instruction() {
			continue
		}
		if ai.Kind() == ir.OperandParameter && bi.Kind() == ir.OperandParameter && ai.Parameter() == bi.Parameter() {
			continue
		}
		return aliasMay
	}
	if len(pa) == len(pb) {
		return aliasSame
	}
	return aliasMay
}
