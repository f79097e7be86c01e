package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// MaxPipelineRounds bounds how many times RunPipeline re-applies the full
// pass suite before giving up on reaching a fixed point. Real functions
// converge in a handful of rounds; this is a backstop against two passes
// pathologically undoing each other.
const MaxPipelineRounds = 20

// RunPipeline repeatedly applies the optimization suite to fn until no pass
// reports a change or MaxPipelineRounds is hit, per spec.md §4.4.7.
// mem2reg and symbolic evaluation run every round since they are cheap and
// unlock the most downstream rewrites; redundancy elimination (GVN),
// memory elimination, dead-code elimination, loop simplification, LICM,
// loop-local DCE, inlining, and block fusion round out each iteration.
// shouldInline is forwarded to InlineCallSites (nil means budget-only
// policy).
func RunPipeline(fn *ir.Function, prog *ir.Program, shouldInline func(callee *ir.Function) bool) {
	b := ir.NewBuilder(prog)
	b.SetFunction(fn)

	for round := 0; round < MaxPipelineRounds; round++ {
		changed := false

		if Mem2Reg(fn, b) {
			changed = true
		}
		if SymbolicEval(fn, b) {
			changed = true
		}

		dt := analysis.BuildDominatorTree(fn.Entry())
		if GVN(fn, dt) {
			changed = true
		}
		if MemElim(fn, dt) {
			changed = true
		}
		if DCE(fn) {
			changed = true
		}

		dt = analysis.BuildDominatorTree(fn.Entry())
		lf := analysis.BuildLoopForest(fn.Entry(), dt)
		if LoopSimplify(fn, lf, b) {
			changed = true
			dt = analysis.BuildDominatorTree(fn.Entry())
			lf = analysis.BuildLoopForest(fn.Entry(), dt)
			// Re-detect preheaders on the rebuilt forest; the fresh Loop
			// nodes start with the field unset.
			LoopSimplify(fn, lf, b)
		}
		if LICM(lf, dt) {
			changed = true
		}
		if LDCE(lf) {
			changed = true
		}

		if InlineCallSites(fn, b, shouldInline) {
			changed = true
		}
		if BlockFusion(fn) {
			changed = true
		}

		if !changed {
			break
		}
	}

	dt := analysis.BuildDominatorTree(fn.Entry())
	lf := analysis.BuildLoopForest(fn.Entry(), dt)
	analysis.AssignLoopDepths(fn.Entry(), lf)
}
