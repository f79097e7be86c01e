package ir

// Builder is the sole producer of instruction identities (spec.md §4.1).
// Every factory method below both allocates the instruction from the
// Program's arena and maintains the use-def chain for its operands, so
// callers never construct an Instruction by hand.
type Builder struct {
	prog *Program
	fn   *Function
	cur  *BasicBlock
}

// NewBuilder returns a Builder over prog, ready to have SetFunction/
// SetInsertPoint called before emitting instructions.
func NewBuilder(prog *Program) *Builder {
	return &Builder{prog: prog}
}

func (b *Builder) SetFunction(f *Function)       { b.fn = f }
func (b *Builder) Function() *Function           { return b.fn }
func (b *Builder) SetInsertPoint(bb *BasicBlock) { b.cur = bb }
func (b *Builder) InsertPoint() *BasicBlock      { return b.cur }

// alloc pulls a fresh *Instruction from the program arena with a unique id.
func (b *Builder) alloc(op Opcode, t ValueType) *Instruction {
	instr := b.prog.instrPool.allocate()
	*instr = Instruction{Opcode: op, Type: t, id: b.prog.nextInstID}
	b.prog.nextInstID++
	return instr
}

// emit appends instr to the current block (push_back, spec.md §4.1).
func (b *Builder) emit(instr *Instruction) *Instruction {
	b.cur.PushBack(instr)
	return instr
}

// Alloca emits an Alloca in the function's entry block, per the invariant
// in spec.md §3.2 ("Alloca instructions live in the entry block only").
func (b *Builder) Alloca(elem ValueType) *Instruction {
	instr := b.alloc(OpAlloca, PointerTo(elem))
	b.fn.entry.PushBack(instr)
	return instr
}

func (b *Builder) Load(ptr Operand) *Instruction {
	instr := b.alloc(OpLoad, ptr.Type().Elem())
	instr.addOperandRaw(ptr)
	return b.emit(instr)
}

func (b *Builder) Store(val, ptr Operand) *Instruction {
	instr := b.alloc(OpStore, Void)
	instr.addOperandRaw(val)
	instr.addOperandRaw(ptr)
	return b.emit(instr)
}

// GEP computes the address of a nested element. elemType is the type the
// trailing index strides over (spec.md §4.5); resultType is always a
// pointer to elemType, matching the teacher's type-driven stride approach.
func (b *Builder) GEP(ptr Operand, elemType ValueType, indices []Operand) *Instruction {
	instr := b.alloc(OpGetElementPtr, PointerTo(elemType))
	instr.gepElemType = elemType
	instr.addOperandRaw(ptr)
	for _, idx := range indices {
		instr.addOperandRaw(idx)
	}
	return b.emit(instr)
}

// BinOp emits a two-operand arithmetic/logic instruction. The result type
// is taken from lhs, matching the teacher's instructionReturnTypes table
// approach (ssa/builder.go InsertInstruction).
func (b *Builder) BinOp(op Opcode, lhs, rhs Operand) *Instruction {
	instr := b.alloc(op, lhs.Type())
	instr.addOperandRaw(lhs)
	instr.addOperandRaw(rhs)
	return b.emit(instr)
}

func (b *Builder) ICmp(pred ICmpPredicate, lhs, rhs Operand) *Instruction {
	instr := b.alloc(OpICmp, Bool)
	instr.icmpPred = pred
	instr.addOperandRaw(lhs)
	instr.addOperandRaw(rhs)
	return b.emit(instr)
}

func (b *Builder) FCmp(pred FCmpPredicate, lhs, rhs Operand) *Instruction {
	instr := b.alloc(OpFCmp, Bool)
	instr.fcmpPred = pred
	instr.addOperandRaw(lhs)
	instr.addOperandRaw(rhs)
	return b.emit(instr)
}

func (b *Builder) ZextTo(t ValueType, v Operand) *Instruction {
	instr := b.alloc(OpZextTo, t)
	instr.addOperandRaw(v)
	return b.emit(instr)
}

func (b *Builder) SextTo(t ValueType, v Operand) *Instruction {
	instr := b.alloc(OpSextTo, t)
	instr.addOperandRaw(v)
	return b.emit(instr)
}

func (b *Builder) ItoFp(v Operand) *Instruction {
	instr := b.alloc(OpItoFp, Float)
	instr.addOperandRaw(v)
	return b.emit(instr)
}

func (b *Builder) FpToI(v Operand) *Instruction {
	instr := b.alloc(OpFpToI, Int)
	instr.addOperandRaw(v)
	return b.emit(instr)
}

// Jump emits an unconditional branch.
func (b *Builder) Jump(target *BasicBlock) *Instruction {
	instr := b.alloc(OpBr, Void)
	instr.brTargets = []*BasicBlock{target}
	return b.emit(instr)
}

// CondBr emits a conditional branch; trueBB/falseBB match spec.md §3.2's
// "two successors after conditional Br".
func (b *Builder) CondBr(cond Operand, trueBB, falseBB *BasicBlock) *Instruction {
	instr := b.alloc(OpBr, Void)
	instr.addOperandRaw(cond)
	instr.brTargets = []*BasicBlock{trueBB, falseBB}
	return b.emit(instr)
}

// Ret emits a return; val is nil for a void function.
func (b *Builder) Ret(val *Operand) *Instruction {
	instr := b.alloc(OpRet, Void)
	if val != nil {
		instr.addOperandRaw(*val)
	}
	return b.emit(instr)
}

// Phi allocates an empty phi instruction of type t; incoming pairs are
// added with AddPhiIncoming during mem2reg (spec.md §4.4.1 step 4/5).
func (b *Builder) Phi(t ValueType) *Instruction {
	instr := b.alloc(OpPhi, t)
	return b.emit(instr)
}

// PhiAt is like Phi but inserts at the head of bb rather than the current
// insertion point, used when inserting placeholder phis at dominance
// frontiers ahead of normal code generation.
func (b *Builder) PhiAt(bb *BasicBlock, t ValueType) *Instruction {
	instr := b.alloc(OpPhi, t)
	instr.block = bb
	bb.PushFront(instr)
	return instr
}

func (b *Builder) Call(callee *Function, args []Operand) *Instruction {
	instr := b.alloc(OpCall, callee.ReturnType)
	instr.callee = callee
	for _, a := range args {
		instr.addOperandRaw(a)
	}
	return b.emit(instr)
}

// CloneEmpty returns a structurally identical but unlinked instruction with
// a fresh identity, per spec.md §3.2 "clones have fresh identity". Used by
// function inlining to copy a callee's body into the caller.
func (b *Builder) CloneEmpty(src *Instruction) *Instruction {
	instr := b.alloc(src.Opcode, src.Type)
	instr.icmpPred = src.icmpPred
	instr.fcmpPred = src.fcmpPred
	instr.gepElemType = src.gepElemType
	instr.callee = src.callee
	instr.name = src.name
	return instr
}
