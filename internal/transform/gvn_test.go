package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

func TestGVNMergesIdenticalExpressions(t *testing.T) {
	_, fn, b := newTestFunction(t)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	fn.Params = []*ir.Parameter{p}
	px := ir.OperandFromParameter(p)

	a := b.BinOp(ir.OpAdd, px, ir.OperandFromConstant(ir.ConstI(5)))
	c := b.BinOp(ir.OpAdd, px, ir.OperandFromConstant(ir.ConstI(5)))
	sum := b.BinOp(ir.OpMul, ir.OperandFromInstruction(a), ir.OperandFromInstruction(c))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, GVN(fn, dt))

	// The duplicate add collapses; the multiply reads the survivor twice.
	assert.Nil(t, c.Block())
	assert.Same(t, a, sum.Operand(0).Instruction())
	assert.Same(t, a, sum.Operand(1).Instruction())
}

func TestGVNNormalizesCommutativeOperands(t *testing.T) {
	_, fn, b := newTestFunction(t)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	q := &ir.Parameter{Name: "y", Type: ir.Int, Index: 1}
	fn.Params = []*ir.Parameter{p, q}
	px, qy := ir.OperandFromParameter(p), ir.OperandFromParameter(q)

	a := b.BinOp(ir.OpAdd, px, qy)
	c := b.BinOp(ir.OpAdd, qy, px)
	sum := b.BinOp(ir.OpSub, ir.OperandFromInstruction(a), ir.OperandFromInstruction(c))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	require.True(t, GVN(fn, dt))
	assert.Nil(t, c.Block())
}

func TestGVNRespectsDominance(t *testing.T) {
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	then := fn.NewBlock("then")
	alt := fn.NewBlock("alt")
	fn.SetExit(then)

	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	c := &ir.Parameter{Name: "c", Type: ir.Bool, Index: 1}
	fn.Params = []*ir.Parameter{p, c}
	px := ir.OperandFromParameter(p)

	b.SetInsertPoint(entry)
	b.CondBr(ir.OperandFromParameter(c), then, alt)

	// The same expression computed in two sibling branches: neither
	// dominates the other, so both must survive.
	b.SetInsertPoint(then)
	t1 := b.BinOp(ir.OpMul, px, px)
	r1 := ir.OperandFromInstruction(t1)
	b.Ret(&r1)

	b.SetInsertPoint(alt)
	t2 := b.BinOp(ir.OpMul, px, px)
	r2 := ir.OperandFromInstruction(t2)
	b.Ret(&r2)

	dt := analysis.BuildDominatorTree(fn.Entry())
	assert.False(t, GVN(fn, dt))
	assert.NotNil(t, t1.Block())
	assert.NotNil(t, t2.Block())
}

func TestGVNLeavesLoadsAlone(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	ptr := ir.OperandFromInstruction(slot)
	l1 := b.Load(ptr)
	l2 := b.Load(ptr)
	sum := b.BinOp(ir.OpAdd, ir.OperandFromInstruction(l1), ir.OperandFromInstruction(l2))
	retv := ir.OperandFromInstruction(sum)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	assert.False(t, GVN(fn, dt))
}
