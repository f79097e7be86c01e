package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// Builds a counting loop with two induction variables: i drives the exit
// condition and is returned; d only ever feeds its own update.
func TestLDCERemovesSelfFeedingInductionChain(t *testing.T) {
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	head := fn.NewBlock("head")
	body := fn.NewBlock("body")
	exit := fn.NewBlock("exit")
	fn.SetExit(exit)

	b := ir.NewBuilder(prog)
	b.SetFunction(fn)

	b.SetInsertPoint(entry)
	b.Jump(head)

	phiI := b.PhiAt(head, ir.Int)
	phiD := b.PhiAt(head, ir.Int)
	b.SetInsertPoint(head)
	cmp := b.ICmp(ir.ICmpSLT, ir.OperandFromInstruction(phiI), ir.OperandFromConstant(ir.ConstI(10)))
	b.CondBr(ir.OperandFromInstruction(cmp), body, exit)

	b.SetInsertPoint(body)
	incI := b.BinOp(ir.OpAdd, ir.OperandFromInstruction(phiI), ir.OperandFromConstant(ir.ConstI(1)))
	incD := b.BinOp(ir.OpAdd, ir.OperandFromInstruction(phiD), ir.OperandFromConstant(ir.ConstI(3)))
	b.Jump(head)

	phiI.AddPhiIncoming(entry, ir.OperandFromConstant(ir.ConstI(0)))
	phiI.AddPhiIncoming(body, ir.OperandFromInstruction(incI))
	phiD.AddPhiIncoming(entry, ir.OperandFromConstant(ir.ConstI(0)))
	phiD.AddPhiIncoming(body, ir.OperandFromInstruction(incD))

	b.SetInsertPoint(exit)
	retv := ir.OperandFromInstruction(phiI)
	b.Ret(&retv)

	dt := analysis.BuildDominatorTree(fn.Entry())
	lf := analysis.BuildLoopForest(fn.Entry(), dt)
	require.True(t, LDCE(lf))

	// The d chain is gone; the i chain survives because the exit's ret
	// observes it.
	assert.Nil(t, phiD.Block())
	assert.Nil(t, incD.Block())
	require.NotNil(t, phiI.Block())
	require.NotNil(t, incI.Block())

	// A second application finds nothing left to delete.
	dt = analysis.BuildDominatorTree(fn.Entry())
	lf = analysis.BuildLoopForest(fn.Entry(), dt)
	assert.False(t, LDCE(lf))
}
