package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

// buildNestedLoops constructs:
//
//	entry -> outer ; outer -> inner | exit ; inner -> inner | outer
func buildNestedLoops(t *testing.T) (*ir.Function, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock) {
	t.Helper()
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Void, []*ir.Parameter{
		{Name: "c", Type: ir.Bool, Index: 0},
	}, false)
	entry := fn.NewBlock("entry")
	outer := fn.NewBlock("outer")
	inner := fn.NewBlock("inner")
	exit := fn.NewBlock("exit")
	fn.SetExit(exit)

	cond := ir.OperandFromParameter(fn.Params[0])
	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	b.SetInsertPoint(entry)
	b.Jump(outer)
	b.SetInsertPoint(outer)
	b.CondBr(cond, inner, exit)
	b.SetInsertPoint(inner)
	b.CondBr(cond, inner, outer)
	b.SetInsertPoint(exit)
	b.Ret(nil)
	return fn, outer, inner, exit
}

func TestLoopForestNesting(t *testing.T) {
	fn, outer, inner, exit := buildNestedLoops(t)
	dt := BuildDominatorTree(fn.Entry())
	lf := BuildLoopForest(fn.Entry(), dt)

	require.Len(t, lf.TopLevel, 1)
	outerLoop := lf.TopLevel[0]
	assert.Same(t, outer, outerLoop.Head)
	require.Len(t, outerLoop.SubLoops, 1)
	innerLoop := outerLoop.SubLoops[0]
	assert.Same(t, inner, innerLoop.Head)
	assert.Same(t, outerLoop, innerLoop.ParentLoop)

	assert.True(t, outerLoop.Contains(inner))
	assert.False(t, innerLoop.Contains(outer))
	assert.False(t, outerLoop.Contains(exit))

	assert.Same(t, innerLoop, lf.LoopFor(inner))
	assert.Same(t, outerLoop, lf.LoopFor(outer))
	assert.Nil(t, lf.LoopFor(exit))
}

func TestLoopForestPostOrderInnermostFirst(t *testing.T) {
	fn, outer, inner, _ := buildNestedLoops(t)
	dt := BuildDominatorTree(fn.Entry())
	lf := BuildLoopForest(fn.Entry(), dt)

	order := lf.PostOrder()
	require.Len(t, order, 2)
	assert.Same(t, inner, order[0].Head)
	assert.Same(t, outer, order[1].Head)
}

func TestAssignLoopDepths(t *testing.T) {
	fn, outer, inner, exit := buildNestedLoops(t)
	dt := BuildDominatorTree(fn.Entry())
	lf := BuildLoopForest(fn.Entry(), dt)
	AssignLoopDepths(fn.Entry(), lf)

	assert.Equal(t, 0, fn.Entry().LoopDepth)
	assert.Equal(t, 1, outer.LoopDepth)
	assert.Equal(t, 2, inner.LoopDepth)
	assert.Equal(t, 0, exit.LoopDepth)
}
