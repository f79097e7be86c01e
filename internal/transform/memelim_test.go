package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

func TestMemElimForwardsStoreToLoad(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	b.Store(ir.OperandFromConstant(ir.ConstI(7)), ptr)
	load := b.Load(ptr)
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, MemElim(fn, dt))

	term := fn.Entry().Terminator()
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(7), term.Operand(0).Constant().Int())
}

func TestMemElimWalksPastDisjointStores(t *testing.T) {
	prog, fn, b := newTestFunction(t)
	g := &ir.GlobalVariable{
		Name:    "a",
		Type:    ir.ArrayOf(ir.ArrayOf(ir.Int, 3), 3),
		Mutable: true,
		Init:    ir.ConstZ(ir.ArrayOf(ir.ArrayOf(ir.Int, 3), 3)),
	}
	prog.Module.AddGlobal(g)
	base := ir.OperandFromGlobal(g)
	zero := ir.OperandFromConstant(ir.ConstI(0))
	one := ir.OperandFromConstant(ir.ConstI(1))
	two := ir.OperandFromConstant(ir.ConstI(2))

	dst1 := b.GEP(base, ir.Int, []ir.Operand{zero, one, zero})
	b.Store(ir.OperandFromConstant(ir.ConstI(2)), ir.OperandFromInstruction(dst1))
	dst2 := b.GEP(base, ir.Int, []ir.Operand{zero, two, zero})
	b.Store(ir.OperandFromConstant(ir.ConstI(3)), ir.OperandFromInstruction(dst2))
	src := b.GEP(base, ir.Int, []ir.Operand{zero, one, zero})
	load := b.Load(ir.OperandFromInstruction(src))
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, MemElim(fn, dt))

	// The a[2][0] store is provably disjoint from a[1][0]; forwarding walks
	// past it to the a[1][0] store.
	term := fn.Entry().Terminator()
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(2), term.Operand(0).Constant().Int())
}

func TestMemElimResolvesLoadFromZeroMemset(t *testing.T) {
	prog, fn, b := newTestFunction(t)
	memset := prog.NewFunction("llvm.memset.p0.i32", ir.Void, []*ir.Parameter{
		{Name: "", Type: ir.PointerTo(ir.SignedChar), Index: 0},
		{Name: "", Type: ir.SignedChar, Index: 1},
		{Name: "", Type: ir.Int, Index: 2},
	}, true)

	arr := b.Alloca(ir.ArrayOf(ir.Int, 4))
	cast := b.GEP(ir.OperandFromInstruction(arr), ir.SignedChar, []ir.Operand{ir.OperandFromConstant(ir.ConstI(0))})
	b.Call(memset, []ir.Operand{
		ir.OperandFromInstruction(cast),
		ir.OperandFromConstant(ir.ConstC(0)),
		ir.OperandFromConstant(ir.ConstI(16)),
	})
	elem := b.GEP(ir.OperandFromInstruction(arr), ir.Int, []ir.Operand{
		ir.OperandFromConstant(ir.ConstI(0)),
		ir.OperandFromConstant(ir.ConstI(2)),
	})
	load := b.Load(ir.OperandFromInstruction(elem))
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, MemElim(fn, dt))

	term := fn.Entry().Terminator()
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(0), term.Operand(0).Constant().Int())
}

func TestMemElimKeepsEscapingStoreAtReturn(t *testing.T) {
	prog, fn, b := newTestFunction(t)
	g := &ir.GlobalVariable{Name: "g", Type: ir.Int, Mutable: true, Init: ir.ConstZ(ir.Int)}
	prog.Module.AddGlobal(g)
	b.Store(ir.OperandFromConstant(ir.ConstI(5)), ir.OperandFromGlobal(g))
	b.Ret(nil)

	dt := analysis.BuildDominatorTree(fn.Entry())
	assert.False(t, MemElim(fn, dt))

	count := 0
	fn.Entry().Instructions(func(i *ir.Instruction) bool {
		if i.Opcode == ir.OpStore {
			count++
		}
		return true
	})
	assert.Equal(t, 1, count, "a store to a global is observable after return")
}

func TestMemElimRemovesDeadStore(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	b.Store(ir.OperandFromConstant(ir.ConstI(1)), ptr)
	b.Store(ir.OperandFromConstant(ir.ConstI(2)), ptr)
	b.Ret(nil)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, MemElim(fn, dt))

	// store1 is killed by store2 before any load reads it, and store2 is
	// itself never read: both are dead.
	count := 0
	fn.Entry().Instructions(func(i *ir.Instruction) bool {
		if i.Opcode == ir.OpStore {
			count++
		}
		return true
	})
	assert.Equal(t, 0, count)
}
