package codegen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// intBinKinds maps an integer mid-IR opcode to its register form and, where
// the ISA has one, its 12-bit immediate form (spec.md §4.5 "when a constant
// fits in 12 bits ... an I-type immediate form is used").
var intBinKinds = map[ir.Opcode]struct{ rrr, rri rv64.Kind }{
	ir.OpAdd:  {rv64.KindAddw, rv64.KindAddiw},
	ir.OpSub:  {rv64.KindSubw, 0},
	ir.OpMul:  {rv64.KindMulw, 0},
	ir.OpSDiv: {rv64.KindDivw, 0},
	ir.OpUDiv: {rv64.KindDivuw, 0},
	ir.OpSRem: {rv64.KindRemw, 0},
	ir.OpURem: {rv64.KindRemuw, 0},
	ir.OpAnd:  {rv64.KindAnd, rv64.KindAndi},
	ir.OpOr:   {rv64.KindOr, rv64.KindOri},
	ir.OpXor:  {rv64.KindXor, rv64.KindXori},
	ir.OpShl:  {rv64.KindSllw, rv64.KindSlliw},
	ir.OpLShr: {rv64.KindSrlw, rv64.KindSrliw},
	ir.OpAShr: {rv64.KindSraw, rv64.KindSraiw},
}

var floatBinKinds = map[ir.Opcode]rv64.Kind{
	ir.OpFAdd: rv64.KindFaddS,
	ir.OpFSub: rv64.KindFsubS,
	ir.OpFMul: rv64.KindFmulS,
	ir.OpFDiv: rv64.KindFdivS,
}

func (l *lowerer) lowerInst(instr *ir.Instruction) error {
	switch instr.Opcode {
	case ir.OpAlloca:
		// No instruction is emitted; a slot sized by the pointee type is
		// reserved (spec.md §4.5 Alloca).
		l.amap[instr] = l.mf.Frame.Alloc(int64(instr.Type.Elem().Size()))
		return nil
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr:
		l.lowerIntBin(instr)
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		rd := l.valueReg(instr)
		a := l.operandReg(instr.Operand(0))
		b := l.operandReg(instr.Operand(1))
		l.cur.push(&rv64.Inst{Kind: floatBinKinds[instr.Opcode], Rd: rd, Rs1: a, Rs2: b})
	case ir.OpICmp:
		l.lowerICmp(instr)
	case ir.OpFCmp:
		l.lowerFCmp(instr)
	case ir.OpZextTo:
		// i1 -> i32 is a reinterpretation: the bool already holds 0/1
		// (spec.md §4.5).
		src := l.operandReg(instr.Operand(0))
		if rd, ok := l.vmap[instr]; ok {
			l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: rd, Rs1: src})
		} else {
			l.vmap[instr] = src
		}
	case ir.OpSextTo:
		rd := l.valueReg(instr)
		src := l.operandReg(instr.Operand(0))
		l.cur.push(&rv64.Inst{Kind: rv64.KindNegw, Rd: rd, Rs1: src})
	case ir.OpItoFp:
		rd := l.valueReg(instr)
		src := l.operandReg(instr.Operand(0))
		l.cur.push(&rv64.Inst{Kind: rv64.KindFcvtSW, Rd: rd, Rs1: src})
	case ir.OpFpToI:
		rd := l.valueReg(instr)
		src := l.operandReg(instr.Operand(0))
		l.cur.push(&rv64.Inst{Kind: rv64.KindFcvtWS, Rd: rd, Rs1: src})
	case ir.OpLoad:
		l.lowerLoad(instr)
	case ir.OpStore:
		l.lowerStore(instr)
	case ir.OpGetElementPtr:
		l.lowerGEP(instr)
	case ir.OpBr:
		l.lowerBr(instr)
	case ir.OpRet:
		l.lowerRet(instr)
	case ir.OpPhi:
		rd := l.valueReg(instr)
		for idx, pred := range instr.PhiPreds() {
			pb := l.bmap[pred]
			l.insertBack[pb] = append(l.insertBack[pb], phiMove{dst: rd, src: instr.Operand(idx)})
		}
	case ir.OpCall:
		return l.lowerCall(instr)
	default:
		return fmt.Errorf("cannot lower opcode %v", instr.Opcode)
	}
	return nil
}

func (l *lowerer) lowerIntBin(instr *ir.Instruction) {
	kinds := intBinKinds[instr.Opcode]
	rd := l.valueReg(instr)
	a := l.operandReg(instr.Operand(0))
	rhs := instr.Operand(1)

	if rhs.IsConstant() && rhs.Constant().Kind() != ir.ConstFloat {
		v := constScalarValue(rhs.Constant())
		// Subtraction with an immediate rewrites to add of the negation
		// when it fits (spec.md §4.5).
		if instr.Opcode == ir.OpSub && rv64.FitsImm12(-v) {
			l.cur.push(&rv64.Inst{Kind: rv64.KindAddiw, Rd: rd, Rs1: a, Imm: -v})
			return
		}
		if kinds.rri != 0 && rv64.FitsImm12(v) {
			l.cur.push(&rv64.Inst{Kind: kinds.rri, Rd: rd, Rs1: a, Imm: v})
			return
		}
	}
	b := l.operandReg(rhs)
	l.cur.push(&rv64.Inst{Kind: kinds.rrr, Rd: rd, Rs1: a, Rs2: b})
}

// lowerICmp selects slt/sltu/sgtu/xor+seqz/xor+snez/slt+xori by predicate,
// swapping operands for the reversed forms (spec.md §4.5 ICmp).
func (l *lowerer) lowerICmp(instr *ir.Instruction) {
	rd := l.valueReg(instr)
	a := l.operandReg(instr.Operand(0))
	b := l.operandReg(instr.Operand(1))
	switch instr.ICmpPred() {
	case ir.ICmpEQ:
		t := l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindXor, Rd: t, Rs1: a, Rs2: b})
		l.cur.push(&rv64.Inst{Kind: rv64.KindSeqz, Rd: rd, Rs1: t})
	case ir.ICmpNE:
		t := l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindXor, Rd: t, Rs1: a, Rs2: b})
		l.cur.push(&rv64.Inst{Kind: rv64.KindSnez, Rd: rd, Rs1: t})
	case ir.ICmpSLT:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSlt, Rd: rd, Rs1: a, Rs2: b})
	case ir.ICmpSGT:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSlt, Rd: rd, Rs1: b, Rs2: a})
	case ir.ICmpSLE:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSlt, Rd: rd, Rs1: b, Rs2: a})
		l.cur.push(&rv64.Inst{Kind: rv64.KindXori, Rd: rd, Rs1: rd, Imm: 1})
	case ir.ICmpSGE:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSlt, Rd: rd, Rs1: a, Rs2: b})
		l.cur.push(&rv64.Inst{Kind: rv64.KindXori, Rd: rd, Rs1: rd, Imm: 1})
	case ir.ICmpULT:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSltu, Rd: rd, Rs1: a, Rs2: b})
	case ir.ICmpUGT:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSgtu, Rd: rd, Rs1: a, Rs2: b})
	case ir.ICmpULE:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSltu, Rd: rd, Rs1: b, Rs2: a})
		l.cur.push(&rv64.Inst{Kind: rv64.KindXori, Rd: rd, Rs1: rd, Imm: 1})
	case ir.ICmpUGE:
		l.cur.push(&rv64.Inst{Kind: rv64.KindSltu, Rd: rd, Rs1: a, Rs2: b})
		l.cur.push(&rv64.Inst{Kind: rv64.KindXori, Rd: rd, Rs1: rd, Imm: 1})
	}
}

// lowerFCmp uses feq.s/flt.s/fle.s, negating for the unordered and NE
// variants (spec.md §4.5 FCmp). The unordered predicates hold on NaN
// because feq/flt/fle all evaluate false there.
func (l *lowerer) lowerFCmp(instr *ir.Instruction) {
	rd := l.valueReg(instr)
	a := l.operandReg(instr.Operand(0))
	b := l.operandReg(instr.Operand(1))
	push := func(k rv64.Kind, rs1, rs2 rv64.Reg) {
		l.cur.push(&rv64.Inst{Kind: k, Rd: rd, Rs1: rs1, Rs2: rs2})
	}
	negate := func() {
		l.cur.push(&rv64.Inst{Kind: rv64.KindXori, Rd: rd, Rs1: rd, Imm: 1})
	}
	switch instr.FCmpPred() {
	case ir.FCmpOEQ:
		push(rv64.KindFeqS, a, b)
	case ir.FCmpUNE:
		push(rv64.KindFeqS, a, b)
		negate()
	case ir.FCmpOLT:
		push(rv64.KindFltS, a, b)
	case ir.FCmpOLE:
		push(rv64.KindFleS, a, b)
	case ir.FCmpOGT:
		push(rv64.KindFltS, b, a)
	case ir.FCmpOGE:
		push(rv64.KindFleS, b, a)
	case ir.FCmpULT:
		push(rv64.KindFleS, b, a)
		negate()
	case ir.FCmpULE:
		push(rv64.KindFltS, b, a)
		negate()
	case ir.FCmpUGT:
		push(rv64.KindFleS, a, b)
		negate()
	case ir.FCmpUGE:
		push(rv64.KindFltS, a, b)
		negate()
	case ir.FCmpONE, ir.FCmpUEQ:
		t1 := l.gen.NewInt()
		t2 := l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindFltS, Rd: t1, Rs1: a, Rs2: b})
		l.cur.push(&rv64.Inst{Kind: rv64.KindFltS, Rd: t2, Rs1: b, Rs2: a})
		l.cur.push(&rv64.Inst{Kind: rv64.KindOr, Rd: rd, Rs1: t1, Rs2: t2})
		if instr.FCmpPred() == ir.FCmpUEQ {
			negate()
		}
	}
}

// allocaOf returns the Alloca instruction behind a pointer operand, when
// the address is a stack slot directly (spec.md §4.5 Load: "dispatched on
// address kind").
func (l *lowerer) allocaOf(op ir.Operand) (rv64.StackSlot, bool) {
	if op.IsInstruction() && op.Instruction().Opcode == ir.OpAlloca {
		return l.amap[op.Instruction()], true
	}
	return rv64.StackSlot{}, false
}

func (l *lowerer) lowerLoad(instr *ir.Instruction) {
	rd := l.valueReg(instr)
	size := int64(instr.Type.Size())
	addr := instr.Operand(0)
	if slot, ok := l.allocaOf(addr); ok {
		l.cur.push(&rv64.Inst{Kind: rv64.KindLoadStack, Rd: rd, Slot: slot, Imm: size})
		return
	}
	base := l.operandReg(addr)
	l.cur.push(&rv64.Inst{Kind: sizedLoadKind(size, rd.Kind()), Rd: rd, Rs1: base})
}

func (l *lowerer) lowerStore(instr *ir.Instruction) {
	val := l.operandReg(instr.Operand(0))
	size := int64(instr.Operand(0).Type().Size())
	addr := instr.Operand(1)
	if slot, ok := l.allocaOf(addr); ok {
		l.cur.push(&rv64.Inst{Kind: rv64.KindStoreStack, Rs2: val, Slot: slot, Imm: size})
		return
	}
	base := l.operandReg(addr)
	l.cur.push(&rv64.Inst{Kind: sizedStoreKind(size, val.Kind()), Rs2: val, Rs1: base})
}

// lowerGEP materializes address arithmetic with the element stride of each
// dimension; constant indices fold into a single displacement applied once
// at the end (spec.md §4.5 GEP).
func (l *lowerer) lowerGEP(instr *ir.Instruction) {
	base := instr.Operand(0)

	var addr rv64.Reg
	if slot, ok := l.allocaOf(base); ok {
		addr = l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindAddrStack, Rd: addr, Slot: slot})
	} else {
		addr = l.operandReg(base)
	}

	cur := base.Type().Elem()
	constOff := int64(0)
	acc := addr
	for n := 1; n < instr.NumOperands(); n++ {
		if n > 1 {
			cur = cur.Elem()
		}
		stride := int64(cur.Size())
		idx := instr.Operand(n)
		if idx.IsConstant() {
			constOff += constScalarValue(idx.Constant()) * stride
			continue
		}
		idxReg := l.operandReg(idx)
		scaled := idxReg
		if stride != 1 {
			scaled = l.gen.NewInt()
			if shift := log2Exact(stride); shift > 0 {
				l.cur.push(&rv64.Inst{Kind: rv64.KindSlli, Rd: scaled, Rs1: idxReg, Imm: shift})
			} else {
				strideReg := l.materializeInt(stride)
				l.cur.push(&rv64.Inst{Kind: rv64.KindMul, Rd: scaled, Rs1: idxReg, Rs2: strideReg})
			}
		}
		next := l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindAdd, Rd: next, Rs1: acc, Rs2: scaled})
		acc = next
	}

	res := acc
	switch {
	case constOff == 0:
		// All-constant-zero indices reduce to the base address itself.
	case rv64.FitsImm12(constOff):
		res = l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindAddi, Rd: res, Rs1: acc, Imm: constOff})
	default:
		offReg := l.materializeInt(constOff)
		res = l.gen.NewInt()
		l.cur.push(&rv64.Inst{Kind: rv64.KindAdd, Rd: res, Rs1: acc, Rs2: offReg})
	}
	if existing, ok := l.vmap[instr]; ok {
		l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: existing, Rs1: res})
		return
	}
	l.vmap[instr] = res
}

// log2Exact returns log2(v) when v is a power of two greater than one,
// else 0.
func log2Exact(v int64) int64 {
	if v <= 1 || v&(v-1) != 0 {
		return 0
	}
	n := int64(0)
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

func (l *lowerer) lowerBr(instr *ir.Instruction) {
	if instr.IsConditionalBr() {
		cond := l.operandReg(instr.Operand(0))
		targets := instr.BrTargets()
		l.cur.termIdx = len(l.cur.Insts)
		// beq cond, x0, false_label; j true_label (spec.md §4.5 Br).
		l.cur.push(&rv64.Inst{Kind: rv64.KindBeq, Rs1: cond, Rs2: rv64.PhysReg(rv64.Zero), Sym: l.bmap[targets[1]].Label})
		l.cur.push(&rv64.Inst{Kind: rv64.KindJ, Sym: l.bmap[targets[0]].Label})
		return
	}
	l.cur.termIdx = len(l.cur.Insts)
	l.cur.push(&rv64.Inst{Kind: rv64.KindJ, Sym: l.bmap[instr.BrTargets()[0]].Label})
}

func (l *lowerer) lowerRet(instr *ir.Instruction) {
	if instr.NumOperands() == 0 {
		l.cur.termIdx = len(l.cur.Insts)
		l.cur.push(&rv64.Inst{Kind: rv64.KindRet})
		return
	}
	val := l.operandReg(instr.Operand(0))
	l.cur.termIdx = len(l.cur.Insts)
	var ret rv64.Reg
	if val.Kind() == rv64.RegKindFloat {
		ret = rv64.PhysReg(rv64.FA0)
	} else {
		ret = rv64.PhysReg(rv64.A0)
	}
	l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: ret, Rs1: val})
	l.cur.push(&rv64.Inst{Kind: rv64.KindRet, CallUses: []rv64.Reg{ret}})
}

// runtimeSymbol maps the catalog names irgen uses to the symbols the linked
// runtime actually exports.
func runtimeSymbol(name string) string {
	switch name {
	case "llvm.memset.p0.i32":
		return "memset"
	case "starttime":
		return "_sysy_starttime"
	case "stoptime":
		return "_sysy_stoptime"
	}
	return name
}

// lowerCall places arguments in a0-a7 / fa0-fa7 by kind with overflow
// stored at positive offsets from sp; the emitted call lists its defs and
// uses explicitly for the allocator (spec.md §4.5 Call).
func (l *lowerer) lowerCall(instr *ir.Instruction) error {
	args := make([]rv64.Reg, instr.NumOperands())
	for n := 0; n < instr.NumOperands(); n++ {
		args[n] = l.operandReg(instr.Operand(n))
	}

	var uses []rv64.Reg
	intIdx, floatIdx, off := 0, 0, int64(0)
	for _, r := range args {
		if r.Kind() == rv64.RegKindFloat {
			if floatIdx < len(rv64.FloatArgRegs) {
				phys := rv64.PhysReg(rv64.FloatArgRegs[floatIdx])
				floatIdx++
				l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: phys, Rs1: r})
				uses = append(uses, phys)
				continue
			}
			l.cur.push(&rv64.Inst{Kind: rv64.KindFsw, Rs2: r, Rs1: rv64.PhysReg(rv64.SP), Imm: off})
			off += 8
			continue
		}
		if intIdx < len(rv64.IntArgRegs) {
			phys := rv64.PhysReg(rv64.IntArgRegs[intIdx])
			intIdx++
			l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: phys, Rs1: r})
			uses = append(uses, phys)
			continue
		}
		l.cur.push(&rv64.Inst{Kind: rv64.KindSd, Rs2: r, Rs1: rv64.PhysReg(rv64.SP), Imm: off})
		off += 8
	}
	if off > l.mf.OutgoingArgBytes {
		l.mf.OutgoingArgBytes = off
	}

	callee := instr.Callee()
	var defs []rv64.Reg
	var retPhys rv64.Reg
	if !callee.ReturnType.IsVoid() {
		if callee.ReturnType.IsFloat() {
			retPhys = rv64.PhysReg(rv64.FA0)
		} else {
			retPhys = rv64.PhysReg(rv64.A0)
		}
		defs = []rv64.Reg{retPhys}
	}
	l.cur.push(&rv64.Inst{Kind: rv64.KindCall, Sym: runtimeSymbol(callee.Name), CallDefs: defs, CallUses: uses})

	if !callee.ReturnType.IsVoid() {
		rd := l.valueReg(instr)
		l.cur.push(&rv64.Inst{Kind: rv64.KindMv, Rd: rd, Rs1: retPhys})
	}
	return nil
}
