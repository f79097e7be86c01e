package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

func TestMem2RegPromotesStraightLineSlot(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	b.Store(ir.OperandFromConstant(ir.ConstI(42)), ptr)
	load := b.Load(ptr)
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	require.True(t, Mem2Reg(fn, b))

	// No Load/Store of the promoted alloca remains; the return sees the
	// stored constant directly.
	fn.Entry().Instructions(func(i *ir.Instruction) bool {
		assert.NotEqual(t, ir.OpLoad, i.Opcode)
		assert.NotEqual(t, ir.OpStore, i.Opcode)
		return true
	})
	term := fn.Entry().Terminator()
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(42), term.Operand(0).Constant().Int())
	assert.False(t, slot.HasUsers())
}

// The while-loop shape of spec §8.3 scenario 2: a single header φ with
// incoming (entry, 0) and (body, φ+1), the comparison against the φ, and
// the final return reading the φ.
func TestMem2RegWhileLoopBuildsHeaderPhi(t *testing.T) {
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	cond := fn.NewBlock("cond")
	body := fn.NewBlock("body")
	final := fn.NewBlock("final")
	fn.SetExit(final)

	b := ir.NewBuilder(prog)
	b.SetFunction(fn)

	b.SetInsertPoint(entry)
	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	b.Store(ir.OperandFromConstant(ir.ConstI(0)), ptr)
	b.Jump(cond)

	b.SetInsertPoint(cond)
	x1 := b.Load(ptr)
	cmp := b.ICmp(ir.ICmpSLT, ir.OperandFromInstruction(x1), ir.OperandFromConstant(ir.ConstI(10)))
	b.CondBr(ir.OperandFromInstruction(cmp), body, final)

	b.SetInsertPoint(body)
	x2 := b.Load(ptr)
	inc := b.BinOp(ir.OpAdd, ir.OperandFromInstruction(x2), ir.OperandFromConstant(ir.ConstI(1)))
	b.Store(ir.OperandFromInstruction(inc), ptr)
	b.Jump(cond)

	b.SetInsertPoint(final)
	x3 := b.Load(ptr)
	retv := ir.OperandFromInstruction(x3)
	b.Ret(&retv)

	require.True(t, Mem2Reg(fn, b))

	var phi *ir.Instruction
	cond.Instructions(func(i *ir.Instruction) bool {
		if i.Opcode == ir.OpPhi {
			require.Nil(t, phi, "exactly one header phi expected")
			phi = i
		}
		return true
	})
	require.NotNil(t, phi)
	require.Equal(t, 2, phi.NumOperands())

	fromEntry, ok := phi.IncomingFrom(entry)
	require.True(t, ok)
	require.True(t, fromEntry.IsConstant())
	assert.Equal(t, int32(0), fromEntry.Constant().Int())

	fromBody, ok := phi.IncomingFrom(body)
	require.True(t, ok)
	require.True(t, fromBody.IsInstruction())
	add := fromBody.Instruction()
	assert.Equal(t, ir.OpAdd, add.Opcode)
	require.True(t, add.Operand(0).IsInstruction())
	assert.Same(t, phi, add.Operand(0).Instruction())

	// The comparison and the return both read the φ.
	require.True(t, cmp.Operand(0).IsInstruction())
	assert.Same(t, phi, cmp.Operand(0).Instruction())
	term := final.Terminator()
	require.True(t, term.Operand(0).IsInstruction())
	assert.Same(t, phi, term.Operand(0).Instruction())
}

func TestMem2RegNeverStoredLoadGetsDefault(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	load := b.Load(ir.OperandFromInstruction(slot))
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	require.True(t, Mem2Reg(fn, b))

	term := fn.Entry().Terminator()
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(0), term.Operand(0).Constant().Int())
}

func TestMem2RegSkipsEscapingAlloca(t *testing.T) {
	prog, fn, b := newTestFunction(t)
	callee := prog.NewFunction("getarray", ir.Int, []*ir.Parameter{
		{Name: "", Type: ir.PointerTo(ir.Int), Index: 0},
	}, true)

	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	b.Call(callee, []ir.Operand{ptr})
	load := b.Load(ptr)
	retv := ir.OperandFromInstruction(load)
	b.Ret(&retv)

	// The address escapes into the call; the slot must keep its loads.
	assert.False(t, Mem2Reg(fn, b))
	count := 0
	fn.Entry().Instructions(func(i *ir.Instruction) bool {
		if i.Opcode == ir.OpLoad {
			count++
		}
		return true
	})
	assert.Equal(t, 1, count)
}
