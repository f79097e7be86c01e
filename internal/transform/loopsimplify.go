package transform

import (
	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// LoopSimplify normalizes every natural loop (spec.md §4.4.4): a header
// with predecessors both inside and outside the loop gets a synthesized
// preheader that becomes the sole outside predecessor, and a header with
// multiple back-edges gets a unique back-edge block that merges them.
// Header φ nodes are rewritten accordingly, merging the incoming values in
// the new block when more than one edge folds into it.
func LoopSimplify(fn *ir.Function, lf *analysis.LoopForest, b *ir.Builder) bool {
	changed := false
	for _, loop := range lf.PostOrder() {
		if insertPreHeader(fn, loop, b) {
			changed = true
		}
		if mergeBackEdges(fn, loop, b) {
			changed = true
		}
	}
	return changed
}

func insertPreHeader(fn *ir.Function, loop *analysis.Loop, b *ir.Builder) bool {
	if loop.PreHeader != nil {
		return false
	}
	head := loop.Head
	var outside []*ir.BasicBlock
	for _, p := range head.Predecessors() {
		if !loop.Contains(p) {
			outside = append(outside, p)
		}
	}
	if len(outside) == 0 {
		return false
	}
	if len(outside) == 1 && len(outside[0].Successors()) == 1 {
		// Already preheader-shaped: a single dedicated entry edge whose
		// source has no other successor.
		loop.PreHeader = outside[0]
		return false
	}

	pre := fn.NewBlock(head.Name() + ".preheader")
	if len(outside) == 1 {
		head.ReplaceEntry(outside[0], pre)
	} else {
		mergePhiEdges(head, outside, pre, b)
	}
	for _, p := range outside {
		p.RedirectTerminator(head, pre)
	}
	b.SetInsertPoint(pre)
	b.Jump(head)
	loop.PreHeader = pre
	return true
}

// mergeBackEdges funnels a header's multiple in-loop predecessors through
// one synthesized block, so every loop has a single latch edge.
func mergeBackEdges(fn *ir.Function, loop *analysis.Loop, b *ir.Builder) bool {
	head := loop.Head
	var latches []*ir.BasicBlock
	for _, p := range head.Predecessors() {
		if loop.Contains(p) {
			latches = append(latches, p)
		}
	}
	if len(latches) <= 1 {
		return false
	}

	be := fn.NewBlock(head.Name() + ".backedge")
	mergePhiEdges(head, latches, be, b)
	for _, p := range latches {
		p.RedirectTerminator(head, be)
	}
	b.SetInsertPoint(be)
	b.Jump(head)
	return true
}

// mergePhiEdges rewrites every φ of head so the pairs contributed by preds
// collapse into a single pair from merged: a fresh φ in merged takes over
// the per-predecessor values. Called before the CFG edges are redirected.
func mergePhiEdges(head *ir.BasicBlock, preds []*ir.BasicBlock, merged *ir.BasicBlock, b *ir.Builder) {
	head.Instructions(func(phi *ir.Instruction) bool {
		if phi.Opcode != ir.OpPhi {
			return true
		}
		inner := b.PhiAt(merged, phi.Type)
		for _, p := range preds {
			if v, ok := phi.IncomingFrom(p); ok {
				inner.AddPhiIncoming(p, v)
				phi.RemovePhiIncomingFrom(p)
			}
		}
		phi.AddPhiIncoming(merged, ir.OperandFromInstruction(inner))
		return true
	})
}
