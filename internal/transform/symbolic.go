package transform

import (
	"math"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

// SymbolicEval runs the reverse-postorder constant-folding / instruction-
// combining pass of spec.md §4.4.2, applying rules (a) through (g) to
// every instruction and re-evaluating rewrites recursively so a single
// pass handles arbitrarily deep acyclic chains. It returns whether any
// rewrite happened. b's insertion point is clobbered; callers must not
// rely on it across the call.
func SymbolicEval(fn *ir.Function, b *ir.Builder) bool {
	changed := false
	for _, bb := range ir.ReversePostOrderBlocks(fn.Entry()) {
		instr := bb.Root()
		for instr != nil {
			next := instr.Next()
			if evalOne(instr, b) {
				changed = true
			}
			instr = next
		}
	}
	return changed
}

// evalOne applies the rewrite rules to instr in the order spec.md §4.4.2
// prescribes, returning true if anything changed. Rewrites that leave instr
// in place (canonicalization, combining) re-run evalOne so the net effect is
// a fixed point for this instruction before moving on.
func evalOne(instr *ir.Instruction, b *ir.Builder) bool {
	if instr.Block() == nil {
		return false // already removed by an earlier rewrite.
	}
	if canonicalizeCommutative(instr) {
		evalOne(instr, b)
		return true
	}
	if canonicalizeGEP(instr) {
		evalOne(instr, b)
		return true
	}
	if foldConstant(instr) {
		return true
	}
	if foldConstGlobalLoad(instr) {
		return true
	}
	if eliminateUseless(instr) {
		return true
	}
	if eliminateIdentity(instr) {
		return true
	}
	if combine(instr) {
		evalOne(instr, b)
		return true
	}
	if resolveConstantBranch(instr, b) {
		return true
	}
	return false
}

// canonicalizeCommutative moves the constant operand of a commutative op to
// the right-hand side (rule (a)).
func canonicalizeCommutative(instr *ir.Instruction) bool {
	if !isCommutative(instr.Opcode) || instr.NumOperands() != 2 {
		return false
	}
	a, b := instr.Operand(0), instr.Operand(1)
	if a.IsConstant() && !b.IsConstant() {
		instr.SetOperand(0, b)
		instr.SetOperand(1, a)
		return true
	}
	return false
}

func isCommutative(op ir.Opcode) bool {
	switch op {
	case ir.OpAdd, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpFAdd, ir.OpFMul:
		return true
	}
	return false
}

// canonicalizeGEP folds `gep (gep p, ..., 0), b...` into `gep p, ..., b...`
// when the inner GEP's trailing index is the constant zero and it has no
// other user (rule (b)).
func canonicalizeGEP(instr *ir.Instruction) bool {
	if instr.Opcode != ir.OpGetElementPtr {
		return false
	}
	base := instr.Operand(0)
	if !base.IsInstruction() || base.Instruction().Opcode != ir.OpGetElementPtr {
		return false
	}
	inner := base.Instruction()
	innerOperands := inner.Operands()
	if len(innerOperands) < 2 {
		return false
	}
	last := innerOperands[len(innerOperands)-1]
	if !last.IsConstant() || last.Constant().Kind() != ir.ConstInt || last.Constant().Int() != 0 {
		return false
	}
	if len(inner.Users()) != 1 {
		return false // folding would require duplicating inner's effect.
	}
	newOperands := append([]ir.Operand{}, innerOperands[:len(innerOperands)-1]...)
	newOperands = append(newOperands, instr.Operands()[1:]...)
	instr.SetOperands(newOperands)
	inner.RemoveSelf()
	return true
}

// foldConstant implements rule (c): when every operand is a constant,
// replace the instruction with the computed constant. Division/modulo by
// zero is left unfolded (it is a runtime trap, not a compile-time value).
func foldConstant(instr *ir.Instruction) bool {
	ops := instr.Operands()
	if len(ops) == 0 {
		return false
	}
	for _, o := range ops {
		if !o.IsConstant() {
			return false
		}
	}

	var result ir.Constant
	switch instr.Opcode {
	case ir.OpAdd:
		result = ir.ConstI(ops[0].Constant().Int() + ops[1].Constant().Int())
	case ir.OpSub:
		result = ir.ConstI(ops[0].Constant().Int() - ops[1].Constant().Int())
	case ir.OpMul:
		result = ir.ConstI(ops[0].Constant().Int() * ops[1].Constant().Int())
	case ir.OpSDiv:
		if ops[1].Constant().Int() == 0 {
			return false
		}
		result = ir.ConstI(ops[0].Constant().Int() / ops[1].Constant().Int())
	case ir.OpUDiv:
		if ops[1].Constant().Int() == 0 {
			return false
		}
		result = ir.ConstI(int32(uint32(ops[0].Constant().Int()) / uint32(ops[1].Constant().Int())))
	case ir.OpSRem:
		if ops[1].Constant().Int() == 0 {
			return false
		}
		result = ir.ConstI(ops[0].Constant().Int() % ops[1].Constant().Int())
	case ir.OpURem:
		if ops[1].Constant().Int() == 0 {
			return false
		}
		result = ir.ConstI(int32(uint32(ops[0].Constant().Int()) % uint32(ops[1].Constant().Int())))
	case ir.OpAnd:
		result = ir.ConstI(ops[0].Constant().Int() & ops[1].Constant().Int())
	case ir.OpOr:
		result = ir.ConstI(ops[0].Constant().Int() | ops[1].Constant().Int())
	case ir.OpXor:
		result = ir.ConstI(ops[0].Constant().Int() ^ ops[1].Constant().Int())
	case ir.OpShl:
		result = ir.ConstI(ops[0].Constant().Int() << uint(ops[1].Constant().Int()))
	case ir.OpLShr:
		result = ir.ConstI(int32(uint32(ops[0].Constant().Int()) >> uint(ops[1].Constant().Int())))
	case ir.OpAShr:
		result = ir.ConstI(ops[0].Constant().Int() >> uint(ops[1].Constant().Int()))
	case ir.OpFAdd:
		result = ir.ConstF(ops[0].Constant().Float() + ops[1].Constant().Float())
	case ir.OpFSub:
		result = ir.ConstF(ops[0].Constant().Float() - ops[1].Constant().Float())
	case ir.OpFMul:
		result = ir.ConstF(ops[0].Constant().Float() * ops[1].Constant().Float())
	case ir.OpFDiv:
		result = ir.ConstF(ops[0].Constant().Float() / ops[1].Constant().Float())
	case ir.OpICmp:
		result = ir.ConstB(foldICmp(instr.ICmpPred(), ops[0].Constant().Int(), ops[1].Constant().Int()))
	case ir.OpFCmp:
		result = ir.ConstB(foldFCmp(instr.FCmpPred(), ops[0].Constant().Float(), ops[1].Constant().Float()))
	case ir.OpZextTo:
		if ops[0].Constant().Kind() != ir.ConstBool {
			return false
		}
		v := int32(0)
		if ops[0].Constant().Bool() {
			v = 1
		}
		result = ir.ConstI(v)
	case ir.OpSextTo:
		if ops[0].Constant().Kind() != ir.ConstChar {
			return false
		}
		result = ir.ConstI(int32(ops[0].Constant().Char()))
	case ir.OpItoFp:
		result = ir.ConstF(float32(ops[0].Constant().Int()))
	case ir.OpFpToI:
		result = ir.ConstI(int32(ops[0].Constant().Float()))
	default:
		return false
	}

	instr.ReplaceSelfWithOperand(ir.OperandFromConstant(result))
	instr.RemoveSelf()
	return true
}

// foldConstGlobalLoad replaces a load whose address is an immutable global
// — directly, or through a GEP whose indices are all constant — with the
// initializer element it reads. Mutable globals never fold, and any
// out-of-range index is left for the runtime.
func foldConstGlobalLoad(instr *ir.Instruction) bool {
	if instr.Opcode != ir.OpLoad {
		return false
	}
	addr := instr.Operand(0)
	var g *ir.GlobalVariable
	var indices []int32
	switch {
	case addr.Kind() == ir.OperandGlobal:
		g = addr.Global()
	case addr.IsInstruction() && addr.Instruction().Opcode == ir.OpGetElementPtr:
		gep := addr.Instruction()
		base := gep.Operand(0)
		if base.Kind() != ir.OperandGlobal {
			return false
		}
		g = base.Global()
		for n := 1; n < gep.NumOperands(); n++ {
			op := gep.Operand(n)
			if !op.IsConstant() || op.Constant().Kind() != ir.ConstInt {
				return false
			}
			indices = append(indices, op.Constant().Int())
		}
	default:
		return false
	}
	if g.Mutable {
		return false
	}
	// The leading index strides over the object itself and must be zero.
	if len(indices) > 0 {
		if indices[0] != 0 {
			return false
		}
		indices = indices[1:]
	}
	c := g.Init
	for _, idx := range indices {
		switch c.Kind() {
		case ir.ConstArray:
			elems := c.Elems()
			if idx < 0 || int(idx) >= len(elems) {
				return false
			}
			c = elems[idx]
		case ir.ConstZero:
			t := c.ZeroType()
			if !t.IsArray() {
				return false
			}
			c = ir.ConstZ(t.Elem())
		default:
			return false
		}
	}
	if c.Kind() == ir.ConstArray {
		return false
	}
	if c.Kind() == ir.ConstZero {
		switch {
		case instr.Type.IsFloat():
			c = ir.ConstF(0)
		case instr.Type.IsBool():
			c = ir.ConstB(false)
		default:
			c = ir.ConstI(0)
		}
	}
	instr.ReplaceSelfWithOperand(ir.OperandFromConstant(c))
	instr.RemoveSelf()
	return true
}

func foldICmp(pred ir.ICmpPredicate, a, b int32) bool {
	switch pred {
	case ir.ICmpEQ:
		return a == b
	case ir.ICmpNE:
		return a != b
	case ir.ICmpSLT:
		return a < b
	case ir.ICmpSLE:
		return a <= b
	case ir.ICmpSGT:
		return a > b
	case ir.ICmpSGE:
		return a >= b
	case ir.ICmpULT:
		return uint32(a) < uint32(b)
	case ir.ICmpULE:
		return uint32(a) <= uint32(b)
	case ir.ICmpUGT:
		return uint32(a) > uint32(b)
	case ir.ICmpUGE:
		return uint32(a) >= uint32(b)
	}
	panic("BUG: unreachable icmp predicate")
}

// foldFCmp respects NaN semantics exactly: ordered predicates are false if
// either operand is NaN, unordered predicates are true.
func foldFCmp(pred ir.FCmpPredicate, a, b float32) bool {
	nan := math.IsNaN(float64(a)) || math.IsNaN(float64(b))
	switch pred {
	case ir.FCmpOEQ:
		return !nan && a == b
	case ir.FCmpONE:
		return !nan && a != b
	case ir.FCmpOLT:
		return !nan && a < b
	case ir.FCmpOLE:
		return !nan && a <= b
	case ir.FCmpOGT:
		return !nan && a > b
	case ir.FCmpOGE:
		return !nan && a >= b
	case ir.FCmpUEQ:
		return nan || a == b
	case ir.FCmpUNE:
		return nan || a != b
	case ir.FCmpULT:
		return nan || a < b
	case ir.FCmpULE:
		return nan || a <= b
	case ir.FCmpUGT:
		return nan || a > b
	case ir.FCmpUGE:
		return nan || a >= b
	}
	panic("BUG: unreachable fcmp predicate")
}

// eliminateUseless implements rule (d): x+0, x-0, x*1, x/1, x>>0, x<<0,
// 0/x, x*0, and a uniform phi(x,x,...,x) -> x.
func eliminateUseless(instr *ir.Instruction) bool {
	if instr.Opcode == ir.OpPhi {
		return eliminateUniformPhi(instr)
	}
	if instr.NumOperands() != 2 {
		return false
	}
	lhs, rhs := instr.Operand(0), instr.Operand(1)
	isZero := func(o ir.Operand) bool { return o.IsConstant() && o.Constant().IsZeroValue() }
	isOne := func(o ir.Operand) bool {
		if !o.IsConstant() {
			return false
		}
		if instr.Type.IsFloat() {
			return o.Constant().Float() == 1
		}
		return o.Constant().Int() == 1
	}
	switch instr.Opcode {
	case ir.OpAdd, ir.OpSub, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr, ir.OpFAdd, ir.OpFSub:
		if isZero(rhs) {
			instr.ReplaceSelfWithOperand(lhs)
			instr.RemoveSelf()
			return true
		}
	case ir.OpMul:
		if isOne(rhs) {
			instr.ReplaceSelfWithOperand(lhs)
			instr.RemoveSelf()
			return true
		}
		if isZero(rhs) || isZero(lhs) {
			instr.ReplaceSelfWithOperand(ir.OperandFromConstant(ir.ConstI(0)))
			instr.RemoveSelf()
			return true
		}
	case ir.OpFMul:
		if isOne(rhs) {
			instr.ReplaceSelfWithOperand(lhs)
			instr.RemoveSelf()
			return true
		}
	case ir.OpSDiv, ir.OpUDiv:
		if isOne(rhs) {
			instr.ReplaceSelfWithOperand(lhs)
			instr.RemoveSelf()
			return true
		}
		if isZero(lhs) {
			instr.ReplaceSelfWithOperand(ir.OperandFromConstant(ir.ConstI(0)))
			instr.RemoveSelf()
			return true
		}
	case ir.OpFDiv:
		if isOne(rhs) {
			instr.ReplaceSelfWithOperand(lhs)
			instr.RemoveSelf()
			return true
		}
	}
	return false
}

func eliminateUniformPhi(instr *ir.Instruction) bool {
	ops := instr.Operands()
	if len(ops) == 0 {
		return false
	}
	first := ops[0]
	for _, o := range ops[1:] {
		if !operandsEqual(o, first) {
			return false
		}
	}
	if first.IsInstruction() && first.Instruction() == instr {
		return false
	}
	instr.ReplaceSelfWithOperand(first)
	instr.RemoveSelf()
	return true
}

func operandsEqual(a, b ir.Operand) bool {
	if a.IsInstruction() != b.IsInstruction() {
		return false
	}
	if a.IsInstruction() {
		return a.Instruction() == b.Instruction()
	}
	if a.IsConstant() && b.IsConstant() {
		return a.Constant().String() == b.Constant().String()
	}
	return a.String() == b.String()
}

// eliminateIdentity implements rule (e): x/x -> 1, x-x -> 0, x+x -> 2*x.
func eliminateIdentity(instr *ir.Instruction) bool {
	if instr.NumOperands() != 2 {
		return false
	}
	lhs, rhs := instr.Operand(0), instr.Operand(1)
	if !sameInstructionOperand(lhs, rhs) {
		return false
	}
	switch instr.Opcode {
	case ir.OpSDiv, ir.OpUDiv:
		instr.ReplaceSelfWithOperand(ir.OperandFromConstant(ir.ConstI(1)))
		instr.RemoveSelf()
		return true
	case ir.OpSub:
		instr.ReplaceSelfWithOperand(ir.OperandFromConstant(ir.ConstI(0)))
		instr.RemoveSelf()
		return true
	case ir.OpFSub:
		instr.ReplaceSelfWithOperand(ir.OperandFromConstant(ir.ConstF(0)))
		instr.RemoveSelf()
		return true
	case ir.OpAdd:
		instr.SetOperand(1, ir.OperandFromConstant(ir.ConstI(2)))
		instr.Opcode = ir.OpMul
		return true
	}
	return false
}

func sameInstructionOperand(a, b ir.Operand) bool {
	return a.IsInstruction() && b.IsInstruction() && a.Instruction() == b.Instruction()
}

// combine implements rule (f): (x*n)+-x -> x*(n+-1), (x+a)+b -> x+(a+b),
// x*a*b -> x*(a*b), x/a/b -> x/(a*b). Restricted to integer arithmetic;
// float reassociation would change rounding and is never sound here.
func combine(instr *ir.Instruction) bool {
	if instr.NumOperands() != 2 || instr.Type.IsFloat() {
		return false
	}
	lhs, rhs := instr.Operand(0), instr.Operand(1)

	switch instr.Opcode {
	case ir.OpAdd, ir.OpSub:
		if lhs.IsInstruction() && lhs.Instruction().Opcode == ir.OpMul && len(lhs.Instruction().Users()) == 1 {
			mul := lhs.Instruction()
			if base, n, ok := mulByConst(mul); ok && operandsEqual(base, rhs) {
				delta := int32(1)
				if instr.Opcode == ir.OpSub {
					delta = -1
				}
				instr.Opcode = ir.OpMul
				instr.SetOperand(0, base)
				instr.SetOperand(1, ir.OperandFromConstant(ir.ConstI(n+delta)))
				mul.RemoveSelf()
				return true
			}
		}
		if instr.Opcode == ir.OpAdd && lhs.IsInstruction() && lhs.Instruction().Opcode == ir.OpAdd && rhs.IsConstant() && len(lhs.Instruction().Users()) == 1 {
			inner := lhs.Instruction()
			a, b := inner.Operand(0), inner.Operand(1)
			if b.IsConstant() {
				sum := b.Constant().Int() + rhs.Constant().Int()
				instr.SetOperand(0, a)
				instr.SetOperand(1, ir.OperandFromConstant(ir.ConstI(sum)))
				inner.RemoveSelf()
				return true
			}
		}
	case ir.OpMul:
		if lhs.IsInstruction() && lhs.Instruction().Opcode == ir.OpMul && rhs.IsConstant() && len(lhs.Instruction().Users()) == 1 {
			inner := lhs.Instruction()
			base, a, ok := mulByConst(inner)
			if ok {
				product := clampInt32(int64(a) * int64(rhs.Constant().Int()))
				instr.SetOperand(0, base)
				instr.SetOperand(1, ir.OperandFromConstant(ir.ConstI(product)))
				inner.RemoveSelf()
				return true
			}
		}
	case ir.OpSDiv:
		if lhs.IsInstruction() && lhs.Instruction().Opcode == ir.OpSDiv && rhs.IsConstant() && len(lhs.Instruction().Users()) == 1 {
			inner := lhs.Instruction()
			a0, a1 := inner.Operand(0), inner.Operand(1)
			if a1.IsConstant() {
				product := clampInt32(int64(a1.Constant().Int()) * int64(rhs.Constant().Int()))
				instr.SetOperand(0, a0)
				instr.SetOperand(1, ir.OperandFromConstant(ir.ConstI(product)))
				inner.RemoveSelf()
				return true
			}
		}
	}
	return false
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0
	}
	return int32(v)
}

func mulByConst(mul *ir.Instruction) (ir.Operand, int32, bool) {
	lhs, rhs := mul.Operand(0), mul.Operand(1)
	if rhs.IsConstant() && rhs.Constant().Kind() == ir.ConstInt {
		return lhs, rhs.Constant().Int(), true
	}
	return ir.Operand{}, 0, false
}

// resolveConstantBranch implements rule (g): when a conditional Br has a
// constant boolean condition, replace it with an unconditional jump to the
// taken target and delete every now-unreachable block (spec.md §8.3
// scenario 6).
func resolveConstantBranch(instr *ir.Instruction, b *ir.Builder) bool {
	if instr.Opcode != ir.OpBr || !instr.IsConditionalBr() {
		return false
	}
	cond := instr.Operand(0)
	if !cond.IsConstant() || cond.Constant().Kind() != ir.ConstBool {
		return false
	}
	targets := instr.BrTargets()
	taken, untaken := targets[0], targets[1]
	if !cond.Constant().Bool() {
		taken, untaken = untaken, taken
	}
	bb := instr.Block()
	instr.RemoveSelf()
	if untaken != taken {
		untaken.Instructions(func(phi *ir.Instruction) bool {
			if phi.Opcode == ir.OpPhi {
				phi.RemovePhiIncomingFrom(bb)
			}
			return true
		})
	}
	b.SetInsertPoint(bb)
	b.Jump(taken)
	pruneUnreachable(bb)
	return true
}

// pruneUnreachable removes every block no longer reachable from from's
// function entry.
func pruneUnreachable(from *ir.BasicBlock) {
	fn := from.Function()
	reachable := map[*ir.BasicBlock]bool{}
	for _, bb := range ir.ReachableBlocks(fn.Entry()) {
		reachable[bb] = true
	}
	for _, bb := range fn.Blocks() {
		if bb.Valid() && !reachable[bb] {
			bb.RemoveSelf()
		}
	}
}
