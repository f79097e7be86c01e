package analysis

import "github.com/dusk-phantom/sysyc/internal/ir"

// Loop is identified per natural back-edge and organized hierarchically by
// header block (spec.md §4.3).
type Loop struct {
	Head       *ir.BasicBlock
	PreHeader  *ir.BasicBlock // nil until loop-simplify sets one
	Blocks     []*ir.BasicBlock
	SubLoops   []*Loop
	ParentLoop *Loop
}

// Contains reports whether bb is part of this loop (including sub-loops).
func (l *Loop) Contains(bb *ir.BasicBlock) bool {
	for _, b := range l.Blocks {
		if b == bb {
			return true
		}
	}
	return false
}

// LoopForest is the set of top-level loops of a function, plus a lookup
// from header block to Loop.
type LoopForest struct {
	TopLevel []*Loop
	byHeader map[*ir.BasicBlock]*Loop
}

// LoopFor returns the innermost loop containing bb, or nil if bb is not in
// any loop.
func (lf *LoopForest) LoopFor(bb *ir.BasicBlock) *Loop {
	var best *Loop
	var visit func([]*Loop)
	visit = func(loops []*Loop) {
		for _, l := range loops {
			if l.Contains(bb) {
				best = l
				visit(l.SubLoops)
			}
		}
	}
	visit(lf.TopLevel)
	return best
}

// PostOrder returns every loop in the forest in postorder (innermost/
// children first), the traversal spec.md §4.3 mandates for loop-level
// passes.
func (lf *LoopForest) PostOrder() []*Loop {
	var order []*Loop
	var visit func([]*Loop)
	visit = func(loops []*Loop) {
		for _, l := range loops {
			visit(l.SubLoops)
			order = append(order, l)
		}
	}
	visit(lf.TopLevel)
	return order
}

// BuildLoopForest finds every natural loop in the function entered at
// entry using dt, and nests them by header-block containment.
func BuildLoopForest(entry *ir.BasicBlock, dt *DominatorTree) *LoopForest {
	reachable := ir.ReachableBlocks(entry)

	var loops []*Loop
	for _, bb := range reachable {
		for _, succ := range bb.Successors() {
			if dt.Dominates(succ, bb) {
				// bb -> succ is a back-edge: succ is the loop header.
				loops = append(loops, &Loop{
					Head:   succ,
					Blocks: naturalLoopBody(succ, bb),
				})
			}
		}
	}

	// Merge loops sharing the same header: a header may have multiple
	// back-edges (spec.md §4.4.4 loop simplification handles this later;
	// here we just union the bodies so LoopFor/PostOrder see one Loop).
	byHeader := make(map[*ir.BasicBlock]*Loop)
	var merged []*Loop
	for _, l := range loops {
		if existing, ok := byHeader[l.Head]; ok {
			existing.Blocks = unionBlocks(existing.Blocks, l.Blocks)
			continue
		}
		byHeader[l.Head] = l
		merged = append(merged, l)
	}

	// Nest by set containment: a loop A is a sub-loop of B if A.Head != B.Head
	// and B's block set contains A's block set.
	var top []*Loop
	for _, l := range merged {
		l.ParentLoop = findParentLoop(l, merged)
	}
	for _, l := range merged {
		if l.ParentLoop == nil {
			top = append(top, l)
		} else {
			l.ParentLoop.SubLoops = append(l.ParentLoop.SubLoops, l)
		}
	}

	return &LoopForest{TopLevel: top, byHeader: byHeader}
}

// naturalLoopBody computes the set of blocks that can reach latch without
// passing through head, union {head}, per the glossary definition of
// "natural loop".
func naturalLoopBody(head, latch *ir.BasicBlock) []*ir.BasicBlock {
	body := map[*ir.BasicBlock]bool{head: true, latch: true}
	var stack []*ir.BasicBlock
	if latch != head {
		stack = append(stack, latch)
	}
	for len(stack) > 0 {
		bb := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range bb.Predecessors() {
			if !body[p] {
				body[p] = true
				stack = append(stack, p)
			}
		}
	}
	out := make([]*ir.BasicBlock, 0, len(body))
	for bb := range body {
		out = append(out, bb)
	}
	return out
}

func unionBlocks(a, b []*ir.BasicBlock) []*ir.BasicBlock {
	seen := make(map[*ir.BasicBlock]bool, len(a))
	out := append([]*ir.BasicBlock(nil), a...)
	for _, bb := range a {
		seen[bb] = true
	}
	for _, bb := range b {
		if !seen[bb] {
			seen[bb] = true
			out = append(out, bb)
		}
	}
	return out
}

func findParentLoop(l *Loop, all []*Loop) *Loop {
	var parent *Loop
	for _, cand := range all {
		if cand == l || cand.Head == l.Head {
			continue
		}
		if len(cand.Blocks) <= len(l.Blocks) {
			continue
		}
		if containsAll(cand.Blocks, l.Blocks) {
			if parent == nil || len(cand.Blocks) < len(parent.Blocks) {
				parent = cand
			}
		}
	}
	return parent
}

func containsAll(outer, inner []*ir.BasicBlock) bool {
	set := make(map[*ir.BasicBlock]bool, len(outer))
	for _, bb := range outer {
		set[bb] = true
	}
	for _, bb := range inner {
		if !set[bb] {
			return false
		}
	}
	return true
}

// AssignLoopDepths writes LoopDepth on every block of the function, for
// consumption by later passes and back-end scheduling heuristics
// (spec.md §3.1 "a loop-depth field").
func AssignLoopDepths(entry *ir.BasicBlock, lf *LoopForest) {
	for _, bb := range ir.ReachableBlocks(entry) {
		depth := 0
		for l := lf.LoopFor(bb); l != nil; l = l.ParentLoop {
			depth++
		}
		bb.LoopDepth = depth
	}
}
