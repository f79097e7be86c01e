package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

func newTestFunction(t *testing.T) (*ir.Program, *ir.Function, *ir.Builder) {
	t.Helper()
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	fn.SetExit(entry)
	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	b.SetInsertPoint(entry)
	return prog, fn, b
}

func TestFoldConstantArithmetic(t *testing.T) {
	_, fn, b := newTestFunction(t)
	sum := b.BinOp(ir.OpAdd, ir.OperandFromConstant(ir.ConstI(2)), ir.OperandFromConstant(ir.ConstI(3)))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	require.True(t, SymbolicEval(fn, b))

	term := fn.Entry().Terminator()
	require.Equal(t, ir.OpRet, term.Opcode)
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(5), term.Operand(0).Constant().Int())
}

func TestEliminateUselessAddZero(t *testing.T) {
	_, fn, b := newTestFunction(t)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	fn.Params = []*ir.Parameter{p}
	sum := b.BinOp(ir.OpAdd, ir.OperandFromParameter(p), ir.OperandFromConstant(ir.ConstI(0)))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	require.True(t, SymbolicEval(fn, b))

	term := fn.Entry().Terminator()
	assert.True(t, term.Operand(0).Kind() == ir.OperandParameter)
}

func TestResolveConstantBranchPrunesDeadBranch(t *testing.T) {
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	alt := fn.NewBlock("alt")
	fn.SetExit(then)

	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	b.SetInsertPoint(entry)
	b.CondBr(ir.OperandFromConstant(ir.ConstB(true)), then, alt)
	b.SetInsertPoint(then)
	b.Ret(nil)
	b.SetInsertPoint(alt)
	b.Ret(nil)

	require.True(t, SymbolicEval(fn, b))

	assert.False(t, alt.Valid())
	require.Len(t, entry.Successors(), 1)
	assert.Same(t, then, entry.Successors()[0])
}

func TestCombineMulAddIntoScaledMul(t *testing.T) {
	_, fn, b := newTestFunction(t)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	fn.Params = []*ir.Parameter{p}
	mul := b.BinOp(ir.OpMul, ir.OperandFromParameter(p), ir.OperandFromConstant(ir.ConstI(3)))
	sum := b.BinOp(ir.OpAdd, ir.OperandFromInstruction(mul), ir.OperandFromParameter(p))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	require.True(t, SymbolicEval(fn, b))

	term := fn.Entry().Terminator()
	result := term.Operand(0)
	require.True(t, result.IsInstruction())
	combined := result.Instruction()
	assert.Equal(t, ir.OpMul, combined.Opcode)
	assert.Equal(t, int32(4), combined.Operand(1).Constant().Int())
}
