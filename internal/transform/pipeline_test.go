package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ir"
	"github.com/dusk-phantom/sysyc/internal/irgen"
	"github.com/dusk-phantom/sysyc/internal/parser"
)

// compileToIR drives source through the front end and the full pipeline,
// returning the optimized main function.
func compileToIR(t *testing.T, src string) *ir.Function {
	t.Helper()
	astProg, err := parser.Parse(src, "test.sy")
	require.NoError(t, err)
	prog, err := irgen.Generate(astProg)
	require.NoError(t, err)
	for _, fn := range prog.Module.Functions {
		if !fn.IsLibrary {
			RunPipeline(fn, prog, nil)
		}
	}
	main, ok := prog.Module.Function("main")
	require.True(t, ok)
	require.NoError(t, main.Verify())
	return main
}

// Spec §8.3 scenario 1: the whole body folds to `ret i32 3`.
func TestPipelineFoldsLocalArithmetic(t *testing.T) {
	main := compileToIR(t, "int main() { int a = 1; int b = 2; return a + b; }")

	blocks := ir.ReachableBlocks(main.Entry())
	require.Len(t, blocks, 1)
	term := blocks[0].Terminator()
	require.Equal(t, ir.OpRet, term.Opcode)
	require.True(t, term.Operand(0).IsConstant())
	assert.Equal(t, int32(3), term.Operand(0).Constant().Int())
}

// Spec §8.3 scenario 2: the loop keeps a single header φ feeding the
// comparison, with the constant 0 entering from outside.
func TestPipelineWhileLoopKeepsHeaderPhi(t *testing.T) {
	main := compileToIR(t, "int main() { int x = 0; while (x < 10) x = x + 1; return x; }")

	var phis, cmps int
	for _, bb := range ir.ReachableBlocks(main.Entry()) {
		bb.Instructions(func(i *ir.Instruction) bool {
			switch i.Opcode {
			case ir.OpPhi:
				phis++
			case ir.OpICmp:
				cmps++
				assert.Equal(t, ir.ICmpSLT, i.ICmpPred())
			}
			return true
		})
	}
	assert.Equal(t, 1, phis)
	assert.Equal(t, 1, cmps)
}

// Spec §8.3 scenario 6: `if (1)` keeps only the taken branch.
func TestPipelineRemovesStaticallyDeadBranch(t *testing.T) {
	main := compileToIR(t, `
int main() {
  if (1) { putint(1); } else { putint(2); }
  return 0;
}
`)
	text := main.Format()
	assert.Contains(t, text, "call @putint 1")
	assert.NotContains(t, text, "call @putint 2")
}

// Spec §8.2: constant folding is idempotent — a second application of the
// evaluator to a fully-folded function is a no-op.
func TestSymbolicEvalIdempotent(t *testing.T) {
	_, fn, b := newTestFunction(t)
	p := &ir.Parameter{Name: "x", Type: ir.Int, Index: 0}
	fn.Params = []*ir.Parameter{p}
	v := b.BinOp(ir.OpAdd, ir.OperandFromParameter(p), ir.OperandFromConstant(ir.ConstI(0)))
	w := b.BinOp(ir.OpMul, ir.OperandFromInstruction(v), ir.OperandFromConstant(ir.ConstI(3)))
	retv := ir.OperandFromInstruction(w)
	b.Ret(&retv)

	require.True(t, SymbolicEval(fn, b))
	assert.False(t, SymbolicEval(fn, b))
}

// A loop whose values are never returned still leaves a function that
// returns the constant 0.
func TestPipelineConvergesOnDeadLoop(t *testing.T) {
	main := compileToIR(t, `
int main() {
  int s = 0;
  int i = 0;
  while (i < 100) {
    s = s + i;
    i = i + 1;
  }
  return 0;
}
`)
	// s and i only feed themselves and the trip count; nothing is
	// observable, so no φ should survive LDCE + DCE... except the loop's
	// control-flow chain, which the return does not read but the branch
	// does. Verify at minimum that the function still verifies and returns
	// the constant 0.
	var retOp ir.Operand
	for _, bb := range ir.ReachableBlocks(main.Entry()) {
		if term := bb.Terminator(); term != nil && term.Opcode == ir.OpRet {
			retOp = term.Operand(0)
		}
	}
	require.True(t, retOp.IsConstant())
	assert.Equal(t, int32(0), retOp.Constant().Int())
}

func TestPipelineInlinesSmallCallee(t *testing.T) {
	main := compileToIR(t, `
int add(int a, int b) { return a + b; }
int main() { return add(1, 2); }
`)
	text := main.Format()
	assert.NotContains(t, text, "call @add")
	assert.True(t, strings.Contains(text, "ret 3"), "inlined constant return expected, got:\n%s", text)
}

// A directly self-recursive callee stays a call through the whole
// pipeline: the §4.4.5 no-recursion precondition holds even though fact
// fits the size budget.
func TestPipelineKeepsRecursiveCall(t *testing.T) {
	main := compileToIR(t, `
int fact(int n) {
  if (n < 2) return 1;
  return n * fact(n - 1);
}
int main() { return fact(5); }
`)
	assert.Contains(t, main.Format(), "call @fact")
}
