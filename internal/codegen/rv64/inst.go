package rv64

import (
	"fmt"
	"strings"
)

// FitsImm12 reports whether v fits the sign-extended 12-bit immediate field
// of an I-type instruction (spec.md §4.5 "when a constant fits in 12 bits").
func FitsImm12(v int64) bool { return v >= -2048 && v <= 2047 }

// Kind enumerates the RV64 opcodes and the codegen pseudo-instructions the
// lowering emits (spec.md §3.3 Inst). Stack pseudo forms are resolved to
// concrete loads/stores once the frame layout is final.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Word-width ALU, register-register. SysY integers are 32-bit, so
	// arithmetic uses the *w forms to keep wraparound semantics.
	KindAddw
	KindSubw
	KindMulw
	KindDivw
	KindDivuw
	KindRemw
	KindRemuw
	KindSllw
	KindSrlw
	KindSraw

	// Full-width ALU, used for address arithmetic.
	KindAdd
	KindSub
	KindMul
	KindAnd
	KindOr
	KindXor

	// Register-immediate.
	KindAddiw
	KindAddi
	KindAndi
	KindOri
	KindXori
	KindSlliw
	KindSrliw
	KindSraiw
	KindSlli

	// Constants and addresses.
	KindLi
	KindLla

	// Memory, base register + 12-bit offset.
	KindLb
	KindLw
	KindLd
	KindFlw
	KindFld
	KindSb
	KindSw
	KindSd
	KindFsw
	KindFsd

	// Stack pseudo forms; Slot offsets are relative to the locals area and
	// are rebased onto sp by the frame finalizer.
	KindLoadStack
	KindStoreStack
	KindAddrStack
	// Incoming overflow argument: Imm is the byte offset above the frame.
	KindLoadArg

	// Moves; mnemonic depends on the register kind (mv / fmv.s).
	KindMv

	// Comparison-to-register.
	KindSeqz
	KindSnez
	KindSlt
	KindSltu
	KindSgtu

	// Branches and control.
	KindBeq
	KindBne
	KindBlt
	KindBle
	KindBgt
	KindBge
	KindJ
	KindCall
	KindRet

	// Single-precision float.
	KindFaddS
	KindFsubS
	KindFmulS
	KindFdivS
	KindFeqS
	KindFltS
	KindFleS
	KindFcvtSW
	KindFcvtWS
	KindFnegS

	// Integer unary.
	KindNegw
)

// Inst is one machine instruction. Field use depends on Kind: Rd is the
// destination, Rs1/Rs2 the sources, Imm the immediate or memory offset,
// Sym a global symbol, branch label, or callee name, Slot a frame slot.
// CallDefs/CallUses carry the explicit def/use register lists of calls and
// returns for the register allocator (spec.md §4.5 Call).
type Inst struct {
	Kind Kind
	Rd   Reg
	Rs1  Reg
	Rs2  Reg
	Imm  int64
	Sym  string
	Slot StackSlot

	CallDefs []Reg
	CallUses []Reg
}

// Shape classes for def/use extraction and formatting.
const (
	shapeRRR = iota
	shapeRRI
	shapeRR
	shapeRI
	shapeRSym
	shapeLoad
	shapeStore
	shapeLoadStack
	shapeStoreStack
	shapeAddrStack
	shapeLoadArg
	shapeBranch
	shapeJ
	shapeCall
	shapeRet
)

var kindShapes = map[Kind]int{
	KindAddw: shapeRRR, KindSubw: shapeRRR, KindMulw: shapeRRR,
	KindDivw: shapeRRR, KindDivuw: shapeRRR, KindRemw: shapeRRR, KindRemuw: shapeRRR,
	KindSllw: shapeRRR, KindSrlw: shapeRRR, KindSraw: shapeRRR,
	KindAdd: shapeRRR, KindSub: shapeRRR, KindMul: shapeRRR,
	KindAnd: shapeRRR, KindOr: shapeRRR, KindXor: shapeRRR,
	KindSlt: shapeRRR, KindSltu: shapeRRR, KindSgtu: shapeRRR,
	KindFaddS: shapeRRR, KindFsubS: shapeRRR, KindFmulS: shapeRRR, KindFdivS: shapeRRR,
	KindFeqS: shapeRRR, KindFltS: shapeRRR, KindFleS: shapeRRR,

	KindAddiw: shapeRRI, KindAddi: shapeRRI, KindAndi: shapeRRI,
	KindOri: shapeRRI, KindXori: shapeRRI,
	KindSlliw: shapeRRI, KindSrliw: shapeRRI, KindSraiw: shapeRRI, KindSlli: shapeRRI,

	KindMv: shapeRR, KindSeqz: shapeRR, KindSnez: shapeRR,
	KindFcvtSW: shapeRR, KindFcvtWS: shapeRR, KindFnegS: shapeRR, KindNegw: shapeRR,

	KindLi:  shapeRI,
	KindLla: shapeRSym,

	KindLb: shapeLoad, KindLw: shapeLoad, KindLd: shapeLoad,
	KindFlw: shapeLoad, KindFld: shapeLoad,
	KindSb: shapeStore, KindSw: shapeStore, KindSd: shapeStore,
	KindFsw: shapeStore, KindFsd: shapeStore,

	KindLoadStack:  shapeLoadStack,
	KindStoreStack: shapeStoreStack,
	KindAddrStack:  shapeAddrStack,
	KindLoadArg:    shapeLoadArg,

	KindBeq: shapeBranch, KindBne: shapeBranch, KindBlt: shapeBranch,
	KindBle: shapeBranch, KindBgt: shapeBranch, KindBge: shapeBranch,

	KindJ:    shapeJ,
	KindCall: shapeCall,
	KindRet:  shapeRet,
}

var kindMnemonics = map[Kind]string{
	KindAddw: "addw", KindSubw: "subw", KindMulw: "mulw",
	KindDivw: "divw", KindDivuw: "divuw", KindRemw: "remw", KindRemuw: "remuw",
	KindSllw: "sllw", KindSrlw: "srlw", KindSraw: "sraw",
	KindAdd: "add", KindSub: "sub", KindMul: "mul",
	KindAnd: "and", KindOr: "or", KindXor: "xor",
	KindAddiw: "addiw", KindAddi: "addi", KindAndi: "andi",
	KindOri: "ori", KindXori: "xori",
	KindSlliw: "slliw", KindSrliw: "srliw", KindSraiw: "sraiw", KindSlli: "slli",
	KindLi: "li", KindLla: "lla",
	KindLb: "lb", KindLw: "lw", KindLd: "ld", KindFlw: "flw", KindFld: "fld",
	KindSb: "sb", KindSw: "sw", KindSd: "sd", KindFsw: "fsw", KindFsd: "fsd",
	KindMv: "mv", KindSeqz: "seqz", KindSnez: "snez",
	KindSlt: "slt", KindSltu: "sltu", KindSgtu: "sgtu",
	KindBeq: "beq", KindBne: "bne", KindBlt: "blt",
	KindBle: "ble", KindBgt: "bgt", KindBge: "bge",
	KindJ: "j", KindCall: "call", KindRet: "ret",
	KindFaddS: "fadd.s", KindFsubS: "fsub.s", KindFmulS: "fmul.s", KindFdivS: "fdiv.s",
	KindFeqS: "feq.s", KindFltS: "flt.s", KindFleS: "fle.s",
	KindFcvtSW: "fcvt.s.w", KindFcvtWS: "fcvt.w.s",
	KindFnegS: "fneg.s", KindNegw: "negw",
}

// Defs returns references to the registers this instruction defines,
// per spec.md §3.3 ("each instruction exposes defs() and uses() returning
// register operand references"). The register allocator rewrites virtual
// registers through these pointers.
func (i *Inst) Defs() []*Reg {
	switch kindShapes[i.Kind] {
	case shapeRRR, shapeRRI, shapeRR, shapeRI, shapeRSym,
		shapeLoad, shapeLoadStack, shapeAddrStack, shapeLoadArg:
		return []*Reg{&i.Rd}
	case shapeCall:
		defs := make([]*Reg, len(i.CallDefs))
		for n := range i.CallDefs {
			defs[n] = &i.CallDefs[n]
		}
		return defs
	}
	return nil
}

// Uses returns references to the registers this instruction reads.
func (i *Inst) Uses() []*Reg {
	switch kindShapes[i.Kind] {
	case shapeRRR:
		return []*Reg{&i.Rs1, &i.Rs2}
	case shapeRRI, shapeRR:
		return []*Reg{&i.Rs1}
	case shapeLoad:
		return []*Reg{&i.Rs1}
	case shapeStore:
		return []*Reg{&i.Rs2, &i.Rs1}
	case shapeStoreStack:
		return []*Reg{&i.Rs2}
	case shapeBranch:
		return []*Reg{&i.Rs1, &i.Rs2}
	case shapeCall:
		uses := make([]*Reg, len(i.CallUses))
		for n := range i.CallUses {
			uses[n] = &i.CallUses[n]
		}
		return uses
	case shapeRet:
		uses := make([]*Reg, len(i.CallUses))
		for n := range i.CallUses {
			uses[n] = &i.CallUses[n]
		}
		return uses
	}
	return nil
}

// IsCopy reports whether this is a register-to-register move, eligible for
// trivial-move deletion once both sides share a physical register.
func (i *Inst) IsCopy() bool { return i.Kind == KindMv }

// IsCall reports whether this clobbers the caller-saved set.
func (i *Inst) IsCall() bool { return i.Kind == KindCall }

// IsReturn reports whether this ends the function.
func (i *Inst) IsReturn() bool { return i.Kind == KindRet }

// IsBranch reports whether this transfers control to a label.
func (i *Inst) IsBranch() bool {
	s := kindShapes[i.Kind]
	return s == shapeBranch || s == shapeJ
}

// String renders the instruction in assembly syntax. Branch targets print
// with the local-label prefix; stack pseudo forms print a frame-relative
// notation and must be resolved before emission.
func (i *Inst) String() string {
	m := kindMnemonics[i.Kind]
	switch kindShapes[i.Kind] {
	case shapeRRR:
		return fmt.Sprintf("%s %s, %s, %s", m, i.Rd, i.Rs1, i.Rs2)
	case shapeRRI:
		return fmt.Sprintf("%s %s, %s, %d", m, i.Rd, i.Rs1, i.Imm)
	case shapeRR:
		if i.Kind == KindMv && i.Rd.Kind() == RegKindFloat {
			m = "fmv.s"
		}
		if i.Kind == KindFcvtWS {
			return fmt.Sprintf("%s %s, %s, rtz", m, i.Rd, i.Rs1)
		}
		return fmt.Sprintf("%s %s, %s", m, i.Rd, i.Rs1)
	case shapeRI:
		return fmt.Sprintf("%s %s, %d", m, i.Rd, i.Imm)
	case shapeRSym:
		return fmt.Sprintf("%s %s, %s", m, i.Rd, i.Sym)
	case shapeLoad:
		return fmt.Sprintf("%s %s, %d(%s)", m, i.Rd, i.Imm, i.Rs1)
	case shapeStore:
		return fmt.Sprintf("%s %s, %d(%s)", m, i.Rs2, i.Imm, i.Rs1)
	case shapeLoadStack:
		return fmt.Sprintf("load.stack %s, slot+%d", i.Rd, i.Slot.Offset)
	case shapeStoreStack:
		return fmt.Sprintf("store.stack %s, slot+%d", i.Rs2, i.Slot.Offset)
	case shapeAddrStack:
		return fmt.Sprintf("addr.stack %s, slot+%d", i.Rd, i.Slot.Offset)
	case shapeLoadArg:
		return fmt.Sprintf("load.arg %s, arg+%d", i.Rd, i.Imm)
	case shapeBranch:
		return fmt.Sprintf("%s %s, %s, .L%s", m, i.Rs1, i.Rs2, i.Sym)
	case shapeJ:
		return fmt.Sprintf("j .L%s", i.Sym)
	case shapeCall:
		return "call " + i.Sym
	case shapeRet:
		return "ret"
	}
	return "?" + m
}

// FormatInsts renders a sequence one per line, for tests and debug dumps.
func FormatInsts(insts []*Inst) string {
	var b strings.Builder
	for _, in := range insts {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}
