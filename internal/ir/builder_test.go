package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAddFunction(t *testing.T) (*Program, *Function) {
	t.Helper()
	prog := NewProgram()
	fn := prog.NewFunction("add", Int, []*Parameter{
		{Name: "a", Type: Int, Index: 0},
		{Name: "b", Type: Int, Index: 1},
	}, false)
	entry := fn.NewBlock("entry")
	fn.SetExit(entry)
	b := NewBuilder(prog)
	b.SetFunction(fn)
	b.SetInsertPoint(entry)
	sum := b.BinOp(OpAdd, OperandFromParameter(fn.Params[0]), OperandFromParameter(fn.Params[1]))
	retv := OperandFromInstruction(sum)
	b.Ret(&retv)
	return prog, fn
}

func TestBuilderAddAndUseDefChain(t *testing.T) {
	_, fn := buildAddFunction(t)
	require.NoError(t, fn.Verify())

	entry := fn.Entry()
	add := entry.Root()
	require.Equal(t, OpAdd, add.Opcode)
	ret := add.Next()
	require.Equal(t, OpRet, ret.Opcode)
	require.True(t, ret.IsTerminator())

	// The ret's operand must list add as a user.
	assert.Len(t, add.Users(), 1)
	assert.Same(t, ret, add.Users()[0])
}

func TestInstructionReplaceSelf(t *testing.T) {
	_, fn := buildAddFunction(t)
	entry := fn.Entry()
	add := entry.Root()
	ret := add.Next()

	replacement := &Instruction{Opcode: OpAdd, Type: Int, id: 9999}
	add.ReplaceSelf(replacement)

	op := ret.Operand(0)
	require.True(t, op.IsInstruction())
	assert.Same(t, replacement, op.Instruction())
	assert.Empty(t, add.Users())
}

func TestBasicBlockRemoveSelfClearsPhiIncoming(t *testing.T) {
	prog := NewProgram()
	fn := prog.NewFunction("f", Int, nil, false)
	entry := fn.NewBlock("entry")
	left := fn.NewBlock("left")
	right := fn.NewBlock("right")
	merge := fn.NewBlock("merge")
	fn.SetExit(merge)

	b := NewBuilder(prog)
	b.SetFunction(fn)

	b.SetInsertPoint(entry)
	b.CondBr(OperandFromConstant(ConstB(true)), left, right)

	b.SetInsertPoint(left)
	b.Jump(merge)

	b.SetInsertPoint(right)
	b.Jump(merge)

	b.SetInsertPoint(merge)
	phi := b.Phi(Int)
	phi.AddPhiIncoming(left, OperandFromConstant(ConstI(1)))
	phi.AddPhiIncoming(right, OperandFromConstant(ConstI(2)))
	retv := OperandFromInstruction(phi)
	b.Ret(&retv)

	require.Len(t, phi.PhiPreds(), 2)

	right.RemoveSelf()

	require.Len(t, phi.PhiPreds(), 1)
	assert.Same(t, left, phi.PhiPreds()[0])
}
