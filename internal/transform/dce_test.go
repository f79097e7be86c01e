package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
)

func TestDCERemovesUnusedChain(t *testing.T) {
	_, fn, b := newTestFunction(t)
	a := b.BinOp(ir.OpAdd, ir.OperandFromConstant(ir.ConstI(1)), ir.OperandFromConstant(ir.ConstI(2)))
	_ = b.BinOp(ir.OpMul, ir.OperandFromInstruction(a), ir.OperandFromConstant(ir.ConstI(3)))
	b.Ret(nil)

	require.True(t, DCE(fn))

	count := 0
	fn.Entry().Instructions(func(*ir.Instruction) bool { count++; return true })
	assert.Equal(t, 1, count) // only Ret survives
}

func TestDCEKeepsStoreAndCall(t *testing.T) {
	_, fn, b := newTestFunction(t)
	slot := b.Alloca(ir.Int)
	b.Store(ir.OperandFromConstant(ir.ConstI(1)), ir.OperandFromInstruction(slot))
	b.Ret(nil)

	assert.False(t, DCE(fn))
}
