package codegen

import (
	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
)

// finalizeFrame lays out the function's stack frame and rewrites every
// stack pseudo-instruction into concrete sp-relative accesses, inserting
// the prologue and epilogue. Layout from sp upward: the outgoing-argument
// area, then locals and spill slots, then saved callee-saved registers,
// then ra; the total is rounded to the 16-byte ABI alignment (spec.md
// §6.2, §6.3).
func (f *MFunction) finalizeFrame(hasCall bool) {
	localsBase := f.OutgoingArgBytes
	savedBase := localsBase + f.Frame.Size()
	total := savedBase + int64(len(f.SavedRegs))*8
	if hasCall {
		total += 8
	}
	total = (total + 15) &^ 15
	if total > maxFrameBytes {
		panic("BUG: frame size overflow")
	}
	f.FrameBytes = total

	for _, b := range f.Blocks {
		var out []*rv64.Inst
		for _, in := range b.Insts {
			switch in.Kind {
			case rv64.KindLoadStack:
				off := localsBase + in.Slot.Offset
				out = spAccess(out, sizedLoadKind(in.Imm, in.Rd.Kind()), in.Rd, rv64.None, off)
			case rv64.KindStoreStack:
				off := localsBase + in.Slot.Offset
				out = spAccess(out, sizedStoreKind(in.Imm, in.Rs2.Kind()), rv64.None, in.Rs2, off)
			case rv64.KindAddrStack:
				off := localsBase + in.Slot.Offset
				if rv64.FitsImm12(off) {
					out = append(out, &rv64.Inst{Kind: rv64.KindAddi, Rd: in.Rd, Rs1: rv64.PhysReg(rv64.SP), Imm: off})
				} else {
					out = append(out,
						&rv64.Inst{Kind: rv64.KindLi, Rd: in.Rd, Imm: off},
						&rv64.Inst{Kind: rv64.KindAdd, Rd: in.Rd, Rs1: rv64.PhysReg(rv64.SP), Rs2: in.Rd})
				}
			case rv64.KindLoadArg:
				off := total + in.Imm
				kind := rv64.KindLd
				if in.Rd.Kind() == rv64.RegKindFloat {
					kind = rv64.KindFlw
				}
				out = spAccess(out, kind, in.Rd, rv64.None, off)
			case rv64.KindRet:
				out = f.appendEpilogue(out, hasCall, savedBase, total)
				out = append(out, in)
			default:
				out = append(out, in)
			}
		}
		b.Insts = out
	}

	f.Entry.Insts = append(f.prologue(hasCall, savedBase, total), f.Entry.Insts...)
}

// spAccess emits one sp-relative load or store, routing oversized offsets
// through the reserved t3 (spec.md §4.6 "t3 is reserved for the
// computation of memory offsets that exceed the 12-bit immediate range").
func spAccess(out []*rv64.Inst, kind rv64.Kind, rd, rs2 rv64.Reg, off int64) []*rv64.Inst {
	sp := rv64.PhysReg(rv64.SP)
	if rv64.FitsImm12(off) {
		return append(out, &rv64.Inst{Kind: kind, Rd: rd, Rs1: sp, Rs2: rs2, Imm: off})
	}
	t3 := rv64.PhysReg(rv64.T3)
	return append(out,
		&rv64.Inst{Kind: rv64.KindLi, Rd: t3, Imm: off},
		&rv64.Inst{Kind: rv64.KindAdd, Rd: t3, Rs1: sp, Rs2: t3},
		&rv64.Inst{Kind: kind, Rd: rd, Rs1: t3, Rs2: rs2})
}

func (f *MFunction) prologue(hasCall bool, savedBase, total int64) []*rv64.Inst {
	if total == 0 {
		return nil
	}
	sp := rv64.PhysReg(rv64.SP)
	var out []*rv64.Inst
	if rv64.FitsImm12(-total) {
		out = append(out, &rv64.Inst{Kind: rv64.KindAddi, Rd: sp, Rs1: sp, Imm: -total})
	} else {
		t3 := rv64.PhysReg(rv64.T3)
		out = append(out,
			&rv64.Inst{Kind: rv64.KindLi, Rd: t3, Imm: total},
			&rv64.Inst{Kind: rv64.KindSub, Rd: sp, Rs1: sp, Rs2: t3})
	}
	if hasCall {
		out = spAccess(out, rv64.KindSd, rv64.None, rv64.PhysReg(rv64.RA), total-8)
	}
	for i, r := range f.SavedRegs {
		kind := rv64.KindSd
		if r >= rv64.F0 {
			kind = rv64.KindFsd
		}
		out = spAccess(out, kind, rv64.None, rv64.PhysReg(r), savedBase+int64(i)*8)
	}
	return out
}

func (f *MFunction) appendEpilogue(out []*rv64.Inst, hasCall bool, savedBase, total int64) []*rv64.Inst {
	if total == 0 {
		return out
	}
	sp := rv64.PhysReg(rv64.SP)
	for i, r := range f.SavedRegs {
		kind := rv64.KindLd
		if r >= rv64.F0 {
			kind = rv64.KindFld
		}
		out = spAccess(out, kind, rv64.PhysReg(r), rv64.None, savedBase+int64(i)*8)
	}
	if hasCall {
		out = spAccess(out, rv64.KindLd, rv64.PhysReg(rv64.RA), rv64.None, total-8)
	}
	if rv64.FitsImm12(total) {
		out = append(out, &rv64.Inst{Kind: rv64.KindAddi, Rd: sp, Rs1: sp, Imm: total})
	} else {
		t3 := rv64.PhysReg(rv64.T3)
		out = append(out,
			&rv64.Inst{Kind: rv64.KindLi, Rd: t3, Imm: total},
			&rv64.Inst{Kind: rv64.KindAdd, Rd: sp, Rs1: sp, Rs2: t3})
	}
	return out
}
