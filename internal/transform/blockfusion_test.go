package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

func TestBlockFusionMergesStraightLineChain(t *testing.T) {
	prog := ir.NewProgram()
	fn := prog.NewFunction("f", ir.Int, nil, false)
	entry := fn.NewBlock("entry")
	mid := fn.NewBlock("mid")
	tail := fn.NewBlock("tail")
	fn.SetExit(tail)

	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	b.SetInsertPoint(entry)
	b.Jump(mid)
	b.SetInsertPoint(mid)
	v := b.BinOp(ir.OpAdd, ir.OperandFromConstant(ir.ConstI(1)), ir.OperandFromConstant(ir.ConstI(1)))
	b.Jump(tail)
	b.SetInsertPoint(tail)
	retv := ir.OperandFromInstruction(v)
	b.Ret(&retv)

	require.True(t, BlockFusion(fn))

	reachable := ir.ReachableBlocks(fn.Entry())
	require.Len(t, reachable, 1)
	assert.Same(t, entry, reachable[0])
	assert.Same(t, entry, fn.Exit())
}
