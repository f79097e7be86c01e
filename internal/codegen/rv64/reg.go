// Package rv64 defines the machine-level register and instruction model for
// the RV64GC back end: virtual/physical registers, stack slots, and the
// tagged instruction variant the lowering emits and the register allocator
// rewrites (spec.md §3.3).
package rv64

import (
	"fmt"
	"math"
)

// Reg represents a register operand: either a virtual register handed out
// by the lowering's RegGenerator, or a physical RV64 register. A Reg may
// carry both a virtual identity and an assigned physical register once
// allocation has run; the kind flag distinguishes the integer and float
// register files, which are fully disjoint color palettes (spec.md §4.6).
type Reg uint64

// RegID is the pure virtual identifier of a Reg, without assignment info.
type RegID uint32

// RealReg identifies one physical register. Integer registers occupy
// 0..31, float registers 32..63.
type RealReg uint8

// RegKind tags a register as belonging to the integer or float file.
type RegKind byte

const (
	RegKindInt RegKind = iota
	RegKindFloat
)

const (
	regIDInvalid RegID = math.MaxUint32

	regRealShift = 32
	regRealBit   = 1 << 40
	regFloatBit  = 1 << 41
)

// VirtualReg returns an unassigned virtual register of the given kind.
func VirtualReg(id RegID, k RegKind) Reg {
	r := Reg(id)
	if k == RegKindFloat {
		r |= regFloatBit
	}
	return r
}

// PhysReg returns a physical register operand.
func PhysReg(rr RealReg) Reg {
	r := Reg(regIDInvalid) | Reg(rr)<<regRealShift | regRealBit
	if rr >= F0 {
		r |= regFloatBit
	}
	return r
}

// ID returns the virtual identifier, or an invalid id for a born-physical
// register.
func (r Reg) ID() RegID { return RegID(r & 0xffffffff) }

// Kind returns the register file this Reg belongs to.
func (r Reg) Kind() RegKind {
	if r&regFloatBit != 0 {
		return RegKindFloat
	}
	return RegKindInt
}

// IsPhys reports whether r already names a physical register, either
// born-physical (ABI registers referenced by lowering) or assigned by the
// allocator.
func (r Reg) IsPhys() bool { return r&regRealBit != 0 }

// IsVirtual reports whether r still needs a physical assignment.
func (r Reg) IsVirtual() bool { return !r.IsPhys() }

// Real returns the physical register; only meaningful when IsPhys.
func (r Reg) Real() RealReg { return RealReg(r >> regRealShift & 0xff) }

// Assign returns r with the physical register set, preserving the virtual
// identity and kind.
func (r Reg) Assign(rr RealReg) Reg {
	return r&^(Reg(0xff)<<regRealShift) | Reg(rr)<<regRealShift | regRealBit
}

// Valid reports whether r refers to any register at all; the zero Reg of
// kind int with id 0 is a real virtual register, so invalid is encoded as
// the invalid id with no physical assignment.
func (r Reg) Valid() bool { return r.ID() != regIDInvalid || r.IsPhys() }

// None is the absent-register sentinel used by instruction fields that a
// given kind does not populate.
var None = Reg(regIDInvalid)

func (r Reg) String() string {
	if r.IsPhys() {
		return regNames[r.Real()]
	}
	if !r.Valid() {
		return "r?"
	}
	if r.Kind() == RegKindFloat {
		return fmt.Sprintf("fv%d", r.ID())
	}
	return fmt.Sprintf("v%d", r.ID())
}

// Physical RV64 registers, ABI-named. Integer file first, float file from
// F0 (spec.md §4.6 reserved set: zero, ra, sp, gp, tp, s0, t0-t3, ft0-ft2).
const (
	Zero RealReg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6

	F0 // ft0
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8 // fs0
	F9
	F10 // fa0
	F11
	F12
	F13
	F14
	F15
	F16
	F17
	F18 // fs2
	F19
	F20
	F21
	F22
	F23
	F24
	F25
	F26
	F27
	F28 // ft8
	F29
	F30
	F31

	NumRegisters
)

// Float ABI aliases.
const (
	FT0 = F0
	FT1 = F1
	FT2 = F2
	FA0 = F10
	FA7 = F17
)

var regNames = [...]string{
	Zero: "zero",
	RA:   "ra",
	SP:   "sp",
	GP:   "gp",
	TP:   "tp",
	T0:   "t0",
	T1:   "t1",
	T2:   "t2",
	S0:   "s0",
	S1:   "s1",
	A0:   "a0",
	A1:   "a1",
	A2:   "a2",
	A3:   "a3",
	A4:   "a4",
	A5:   "a5",
	A6:   "a6",
	A7:   "a7",
	S2:   "s2",
	S3:   "s3",
	S4:   "s4",
	S5:   "s5",
	S6:   "s6",
	S7:   "s7",
	S8:   "s8",
	S9:   "s9",
	S10:  "s10",
	S11:  "s11",
	T3:   "t3",
	T4:   "t4",
	T5:   "t5",
	T6:   "t6",
	F0:   "ft0",
	F1:   "ft1",
	F2:   "ft2",
	F3:   "ft3",
	F4:   "ft4",
	F5:   "ft5",
	F6:   "ft6",
	F7:   "ft7",
	F8:   "fs0",
	F9:   "fs1",
	F10:  "fa0",
	F11:  "fa1",
	F12:  "fa2",
	F13:  "fa3",
	F14:  "fa4",
	F15:  "fa5",
	F16:  "fa6",
	F17:  "fa7",
	F18:  "fs2",
	F19:  "fs3",
	F20:  "fs4",
	F21:  "fs5",
	F22:  "fs6",
	F23:  "fs7",
	F24:  "fs8",
	F25:  "fs9",
	F26:  "fs10",
	F27:  "fs11",
	F28:  "ft8",
	F29:  "ft9",
	F30:  "ft10",
	F31:  "ft11",
}

// RegName returns the ABI name of a physical register.
func RegName(r RealReg) string { return regNames[r] }

// IntArgRegs / FloatArgRegs are the LP64D argument registers in order
// (spec.md §6.3).
var (
	IntArgRegs   = [...]RealReg{A0, A1, A2, A3, A4, A5, A6, A7}
	FloatArgRegs = [...]RealReg{F10, F11, F12, F13, F14, F15, F16, F17}
)

// AllocatableIntRegs is the integer color palette, caller-saved registers
// first so leaf functions avoid prologue saves. zero/ra/sp/gp/tp/s0 and
// the spill temporaries t0-t3 are reserved and never appear (spec.md §4.6).
var AllocatableIntRegs = []RealReg{
	A0, A1, A2, A3, A4, A5, A6, A7,
	T4, T5, T6,
	S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11,
}

// AllocatableFloatRegs is the float color palette; ft0-ft2 are the reserved
// spill temporaries.
var AllocatableFloatRegs = []RealReg{
	F10, F11, F12, F13, F14, F15, F16, F17,
	F3, F4, F5, F6, F7, F28, F29, F30, F31,
	F8, F9, F18, F19, F20, F21, F22, F23, F24, F25, F26, F27,
}

// CallerSavedRegs are clobbered by a call; values live across a call must
// not be assigned any of these.
var CallerSavedRegs = []RealReg{
	RA, T0, T1, T2, T3, T4, T5, T6,
	A0, A1, A2, A3, A4, A5, A6, A7,
	F0, F1, F2, F3, F4, F5, F6, F7,
	F10, F11, F12, F13, F14, F15, F16, F17,
	F28, F29, F30, F31,
}

// IsCalleeSaved reports whether a register survives a call under LP64D.
func IsCalleeSaved(r RealReg) bool {
	switch {
	case r == SP || r == S0 || r == S1:
		return true
	case r >= S2 && r <= S11:
		return true
	case r == F8 || r == F9:
		return true
	case r >= F18 && r <= F27:
		return true
	}
	return false
}

// IntSpillTemps / FloatSpillTemps are the reserved registers spill code
// loads into (spec.md §4.6: t0-t2 for integers, ft0-ft2 for floats; t3 is
// reserved separately for out-of-range memory offsets).
var (
	IntSpillTemps   = [...]RealReg{T0, T1, T2}
	FloatSpillTemps = [...]RealReg{F0, F1, F2}
)
