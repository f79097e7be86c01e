package ir

import (
	"fmt"
	"strings"
)

// Opcode enumerates every mid-IR instruction kind (spec.md §3.1).
type Opcode uint32

const (
	OpInvalid Opcode = iota

	// Arithmetic (integer).
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr

	// Arithmetic (float).
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr

	// Control.
	OpBr
	OpRet

	// Conversions.
	OpZextTo
	OpSextTo
	OpItoFp
	OpFpToI

	// Comparisons.
	OpICmp
	OpFCmp

	// Misc.
	OpPhi
	OpCall
)

// ICmpPredicate enumerates the signed/unsigned comparison predicates used
// by OpICmp (spec.md §3.1).
type ICmpPredicate byte

const (
	ICmpEQ ICmpPredicate = iota
	ICmpNE
	ICmpSLT
	ICmpSLE
	ICmpSGT
	ICmpSGE
	ICmpULT
	ICmpULE
	ICmpUGT
	ICmpUGE
)

// FCmpPredicate enumerates the ordered/unordered float predicates used by
// OpFCmp (spec.md §3.1).
type FCmpPredicate byte

const (
	FCmpOEQ FCmpPredicate = iota
	FCmpONE
	FCmpOLT
	FCmpOLE
	FCmpOGT
	FCmpOGE
	FCmpUEQ
	FCmpUNE
	FCmpULT
	FCmpULE
	FCmpUGT
	FCmpUGE
)

// Instruction is the tagged variant over Opcode described in spec.md §3.1.
// It is allocated from a Program's arena and never copied in place: its
// address is its identity (design note "Ownership graph", alternative (a)).
type Instruction struct {
	Opcode Opcode
	Type   ValueType
	id     uint32

	operands []Operand
	users    []*Instruction

	// phiPreds holds the predecessor block matched index-for-index with
	// operands, only populated for OpPhi.
	phiPreds []*BasicBlock

	// icmp/fcmp predicate, valid only for OpICmp/OpFCmp.
	icmpPred ICmpPredicate
	fcmpPred FCmpPredicate

	// gepElemType is the element type the trailing index of an
	// OpGetElementPtr strides over; the indices themselves are operands[1:].
	gepElemType ValueType

	// callee is set for OpCall.
	callee *Function

	// brTargets holds the branch target(s) for OpBr: one entry for an
	// unconditional jump, two (true, false) for a conditional branch.
	brTargets []*BasicBlock

	// name is an optional debug annotation (library calls, AnnotateValue
	// equivalent).
	name string

	block *BasicBlock
	prev  *Instruction
	next  *Instruction
}

// Name returns the instruction's stable printable identity, %<id>.
func (i *Instruction) Name() string {
	if i.name != "" {
		return i.name
	}
	return fmt.Sprintf("%%%d", i.id)
}

// Block returns the parent block, or nil if unlinked.
func (i *Instruction) Block() *BasicBlock { return i.block }

// Next/Prev expose the intrusive doubly-linked list within the block.
func (i *Instruction) Next() *Instruction { return i.next }
func (i *Instruction) Prev() *Instruction { return i.prev }

// Operands returns the instruction's ordered operand list.
func (i *Instruction) Operands() []Operand { return i.operands }

// Operand returns the n-th operand.
func (i *Instruction) Operand(n int) Operand { return i.operands[n] }

// NumOperands returns the operand count.
func (i *Instruction) NumOperands() int { return len(i.operands) }

// Users returns the instructions that reference this one as an operand.
// This is the "use" side of the bidirectional use-def chain (spec.md §3.2).
func (i *Instruction) Users() []*Instruction { return i.users }

// HasUsers reports whether any instruction still references this value.
func (i *Instruction) HasUsers() bool { return len(i.users) > 0 }

// ICmpPred / FCmpPred expose the comparison predicate.
func (i *Instruction) ICmpPred() ICmpPredicate { return i.icmpPred }
func (i *Instruction) FCmpPred() FCmpPredicate { return i.fcmpPred }

// GEPElemType is the element type the GEP's trailing index strides over.
func (i *Instruction) GEPElemType() ValueType { return i.gepElemType }

// Callee returns the called function for OpCall.
func (i *Instruction) Callee() *Function { return i.callee }

// PhiPreds returns the predecessor blocks matched by index to Operands()
// for an OpPhi instruction.
func (i *Instruction) PhiPreds() []*BasicBlock { return i.phiPreds }

// BrTargets returns the branch target(s) of an OpBr instruction: one for
// an unconditional jump, two (true-branch, false-branch) for a conditional.
func (i *Instruction) BrTargets() []*BasicBlock { return i.brTargets }

// IsConditionalBr reports whether this OpBr carries a condition operand.
func (i *Instruction) IsConditionalBr() bool {
	return i.Opcode == OpBr && len(i.brTargets) == 2
}

// IsTerminator reports whether this instruction must be the last in its
// block (spec.md §3.2: only Br and Ret are terminators).
func (i *Instruction) IsTerminator() bool {
	return i.Opcode == OpBr || i.Opcode == OpRet
}

// addUser registers y as a user of i. Called by every operand-mutating API.
func (i *Instruction) addUser(y *Instruction) {
	i.users = append(i.users, y)
}

// removeUser removes one occurrence of y from i's user list.
func (i *Instruction) removeUser(y *Instruction) {
	for idx, u := range i.users {
		if u == y {
			i.users = append(i.users[:idx], i.users[idx+1:]...)
			return
		}
	}
}

// replaceUser rewrites one occurrence of old in i's user list to new.
func (i *Instruction) replaceUser(old, new *Instruction) {
	for idx, u := range i.users {
		if u == old {
			i.users[idx] = new
			return
		}
	}
}

// SetOperand replaces the n-th operand, maintaining use-def chain
// consistency in both directions (spec.md §3.2 / §9 "Use-def chains").
func (i *Instruction) SetOperand(n int, op Operand) {
	old := i.operands[n]
	if old.kind == OperandInstruction {
		old.instr.removeUser(i)
	}
	i.operands[n] = op
	if op.kind == OperandInstruction {
		op.instr.addUser(i)
	}
}

// addOperandRaw appends an operand during construction, without removing a
// prior one (there is none yet).
func (i *Instruction) addOperandRaw(op Operand) {
	i.operands = append(i.operands, op)
	if op.kind == OperandInstruction {
		op.instr.addUser(i)
	}
}

// SetOperands replaces the entire operand list, maintaining use-def chain
// consistency for both the removed and added operands. Unlike SetOperand
// this may change the operand count, needed when instruction-combining
// rewrites merge or split operand lists (spec.md §4.4.2 (b)/(f)).
func (i *Instruction) SetOperands(ops []Operand) {
	i.unlinkOperands()
	for _, op := range ops {
		i.addOperandRaw(op)
	}
}

// AddPhiIncoming appends a (predecessor, value) pair to an OpPhi
// instruction, per spec.md §4.4.1 step 5.
func (i *Instruction) AddPhiIncoming(pred *BasicBlock, v Operand) {
	if i.Opcode != OpPhi {
		panic("BUG: AddPhiIncoming on non-phi instruction")
	}
	i.phiPreds = append(i.phiPreds, pred)
	i.addOperandRaw(v)
}

// RemovePhiIncomingFrom removes the incoming pair contributed by pred, used
// by BasicBlock.RemoveSelf and loop-simplify's edge rewiring.
func (i *Instruction) RemovePhiIncomingFrom(pred *BasicBlock) {
	for idx, p := range i.phiPreds {
		if p == pred {
			old := i.operands[idx]
			if old.kind == OperandInstruction {
				old.instr.removeUser(i)
			}
			i.phiPreds = append(i.phiPreds[:idx], i.phiPreds[idx+1:]...)
			i.operands = append(i.operands[:idx], i.operands[idx+1:]...)
			return
		}
	}
}

// SetBrTargets overwrites the branch target list of an OpBr instruction.
// Used when cloning a block into a fresh control-flow graph (function
// inlining), where the source instruction's targets belong to the callee
// and must be remapped to the corresponding cloned blocks. Callers must
// follow with BasicBlock.RelinkTerminator to fix up predecessor/successor
// edges.
func (i *Instruction) SetBrTargets(targets []*BasicBlock) {
	i.brTargets = targets
}

// SetPhiPreds overwrites the predecessor list of an OpPhi instruction in
// lockstep with its (already remapped) operand list, for the same cloning
// use case as SetBrTargets.
func (i *Instruction) SetPhiPreds(preds []*BasicBlock) {
	i.phiPreds = preds
}

// IncomingFrom returns the operand contributed by the given predecessor to
// an OpPhi instruction.
func (i *Instruction) IncomingFrom(pred *BasicBlock) (Operand, bool) {
	for idx, p := range i.phiPreds {
		if p == pred {
			return i.operands[idx], true
		}
	}
	return Operand{}, false
}

// unlinkOperands removes this instruction from every operand's user list,
// the first half of safe removal (design note "Use-def chains" (b)).
func (i *Instruction) unlinkOperands() {
	for _, op := range i.operands {
		if op.kind == OperandInstruction {
			op.instr.removeUser(i)
		}
	}
	i.operands = nil
}

// ReplaceSelf redirects every user of i to refer to replacement instead,
// per spec.md §4.1. It does not unlink i from its block; callers combine
// this with RemoveSelf when the old instruction must also disappear.
func (i *Instruction) ReplaceSelf(replacement *Instruction) {
	users := append([]*Instruction(nil), i.users...)
	for _, u := range users {
		for n, op := range u.operands {
			if op.kind == OperandInstruction && op.instr == i {
				u.operands[n] = OperandFromInstruction(replacement)
				replacement.addUser(u)
			}
		}
	}
	i.users = nil
}

// ReplaceSelfWithOperand is like ReplaceSelf but the replacement may be any
// operand kind (constant, global, parameter), used by useless-expression
// elimination (spec.md §4.4.2 (d)).
func (i *Instruction) ReplaceSelfWithOperand(replacement Operand) {
	if replacement.kind == OperandInstruction {
		i.ReplaceSelf(replacement.instr)
		return
	}
	users := append([]*Instruction(nil), i.users...)
	for _, u := range users {
		for n, op := range u.operands {
			if op.kind == OperandInstruction && op.instr == i {
				u.operands[n] = replacement
			}
		}
	}
	i.users = nil
}

// RemoveSelf unlinks this instruction from its block's intrusive list and
// from every operand's user list. It does not check for remaining users;
// callers (dead-code elimination) are responsible for that invariant.
func (i *Instruction) RemoveSelf() {
	if i.block != nil {
		i.block.removeInstruction(i)
	}
	i.unlinkOperands()
}

// InsertBefore splices this instruction immediately before mark in mark's
// block.
func (i *Instruction) InsertBefore(mark *Instruction) {
	mark.block.insertBefore(i, mark)
}

// InsertAfter splices this instruction immediately after mark in mark's
// block.
func (i *Instruction) InsertAfter(mark *Instruction) {
	mark.block.insertAfter(i, mark)
}

// Format renders a debug line for this instruction, mirroring the density
// of the teacher's ssa.Instruction.Format (basic_block.go / builder.go).
func (i *Instruction) Format() string {
	var b strings.Builder
	if !i.Type.IsVoid() {
		b.WriteString(i.Name())
		b.WriteString(" = ")
	}
	b.WriteString(opcodeName(i.Opcode))
	switch i.Opcode {
	case OpICmp:
		b.WriteString(" " + icmpPredName(i.icmpPred))
	case OpFCmp:
		b.WriteString(" " + fcmpPredName(i.fcmpPred))
	case OpPhi:
		parts := make([]string, len(i.operands))
		for idx, op := range i.operands {
			parts[idx] = fmt.Sprintf("[%s, %s]", op.String(), i.phiPreds[idx].Name())
		}
		b.WriteString(" " + strings.Join(parts, ", "))
		return b.String()
	case OpCall:
		b.WriteString(" @" + i.callee.Name)
	}
	if len(i.operands) > 0 {
		parts := make([]string, len(i.operands))
		for idx, op := range i.operands {
			parts[idx] = op.String()
		}
		b.WriteString(" " + strings.Join(parts, ", "))
	}
	if i.Opcode == OpBr && i.block != nil {
		succ := i.block.Successors()
		names := make([]string, len(succ))
		for idx, s := range succ {
			names[idx] = s.Name()
		}
		if len(names) > 0 {
			b.WriteString(" -> " + strings.Join(names, ", "))
		}
	}
	return b.String()
}

func opcodeName(o Opcode) string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpSDiv:
		return "sdiv"
	case OpUDiv:
		return "udiv"
	case OpSRem:
		return "srem"
	case OpURem:
		return "urem"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpShl:
		return "shl"
	case OpLShr:
		return "lshr"
	case OpAShr:
		return "ashr"
	case OpFAdd:
		return "fadd"
	case OpFSub:
		return "fsub"
	case OpFMul:
		return "fmul"
	case OpFDiv:
		return "fdiv"
	case OpAlloca:
		return "alloca"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGetElementPtr:
		return "gep"
	case OpBr:
		return "br"
	case OpRet:
		return "ret"
	case OpZextTo:
		return "zext"
	case OpSextTo:
		return "sext"
	case OpItoFp:
		return "itofp"
	case OpFpToI:
		return "fptoi"
	case OpICmp:
		return "icmp"
	case OpFCmp:
		return "fcmp"
	case OpPhi:
		return "phi"
	case OpCall:
		return "call"
	}
	return "?"
}

func icmpPredName(p ICmpPredicate) string {
	return [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}[p]
}

func fcmpPredName(p FCmpPredicate) string {
	return [...]string{"oeq", "one", "olt", "ole", "ogt", "oge", "ueq", "une", "ult", "ule", "ugt", "uge"}[p]
}
