package codegen

import (
	"github.com/dusk-phantom/sysyc/internal/codegen/rv64"
	"github.com/dusk-phantom/sysyc/internal/regalloc"
)

// AllocFunction implements the regalloc.Function contract over an
// MFunction and runs allocation plus frame finalization on it.
func AllocFunction(f *MFunction) error {
	return regalloc.Allocate(raFunc{f})
}

type raFunc struct{ f *MFunction }

func (a raFunc) Blocks() []regalloc.Block {
	bs := make([]regalloc.Block, len(a.f.Blocks))
	for i, b := range a.f.Blocks {
		bs[i] = raBlock{b}
	}
	return bs
}

// spillSlot returns the frame slot backing a spilled virtual register,
// allocating it on first use (spec.md §4.6 "allocate a stack slot").
func (a raFunc) spillSlot(v rv64.Reg) rv64.StackSlot {
	if a.f.spillSlots == nil {
		a.f.spillSlots = make(map[rv64.RegID]rv64.StackSlot)
	}
	if s, ok := a.f.spillSlots[v.ID()]; ok {
		return s
	}
	s := a.f.Frame.Alloc(8)
	a.f.spillSlots[v.ID()] = s
	return s
}

func spillAccessSize(k rv64.RegKind) int64 {
	if k == rv64.RegKindFloat {
		return 4
	}
	return 8
}

func (a raFunc) ReloadRegisterBefore(v rv64.Reg, instr regalloc.Instr) {
	target := instr.(*rv64.Inst)
	b, idx := a.find(target)
	b.insertAt(idx, &rv64.Inst{
		Kind: rv64.KindLoadStack,
		Rd:   rv64.PhysReg(v.Real()),
		Slot: a.spillSlot(v),
		Imm:  spillAccessSize(v.Kind()),
	})
}

func (a raFunc) StoreRegisterAfter(v rv64.Reg, instr regalloc.Instr) {
	target := instr.(*rv64.Inst)
	b, idx := a.find(target)
	b.insertAt(idx+1, &rv64.Inst{
		Kind: rv64.KindStoreStack,
		Rs2:  rv64.PhysReg(v.Real()),
		Slot: a.spillSlot(v),
		Imm:  spillAccessSize(v.Kind()),
	})
}

func (a raFunc) find(target *rv64.Inst) (*Block, int) {
	for _, b := range a.f.Blocks {
		for i, in := range b.Insts {
			if in == target {
				return b, i
			}
		}
	}
	panic("BUG: spill target instruction not found in any block")
}

// Done deletes trivial moves, records the callee-saved registers the
// function touched, and lays out the final frame.
func (a raFunc) Done() {
	f := a.f
	hasCall := false
	saved := make(map[rv64.RealReg]bool)
	for _, b := range f.Blocks {
		kept := b.Insts[:0]
		for _, in := range b.Insts {
			if in.IsCopy() && in.Rd.IsPhys() && in.Rs1.IsPhys() && in.Rd.Real() == in.Rs1.Real() {
				continue
			}
			if in.IsCall() {
				hasCall = true
			}
			for _, p := range in.Defs() {
				if p.IsPhys() && rv64.IsCalleeSaved(p.Real()) && p.Real() != rv64.SP && p.Real() != rv64.S0 {
					saved[p.Real()] = true
				}
			}
			kept = append(kept, in)
		}
		b.Insts = kept
	}
	for r := rv64.RealReg(0); r < rv64.NumRegisters; r++ {
		if saved[r] {
			f.SavedRegs = append(f.SavedRegs, r)
		}
	}
	f.finalizeFrame(hasCall)
}

type raBlock struct{ b *Block }

func (rb raBlock) Instrs() []regalloc.Instr {
	is := make([]regalloc.Instr, len(rb.b.Insts))
	for i, in := range rb.b.Insts {
		is[i] = in
	}
	return is
}

func (rb raBlock) Succs() []regalloc.Block {
	ss := make([]regalloc.Block, len(rb.b.succs))
	for i, s := range rb.b.succs {
		ss[i] = raBlock{s}
	}
	return ss
}
