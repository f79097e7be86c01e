// Package analysis implements the read-only analyses the transform passes
// build on: dominator trees, loop forests, reachability, and Memory SSA
// (spec.md §4.3).
package analysis

import "github.com/dusk-phantom/sysyc/internal/ir"

// DominatorTree answers dominance queries over one function's CFG, lazily
// computed and cached per spec.md §4.3. Construction follows the
// Cooper/Harvey/Kennedy "engineering a fast dominator algorithm": a
// postorder numbering from entry, then a reverse-postorder fixed point
// where each block's immediate dominator is the intersection of all
// already-processed predecessors, walking up via postorder numbers.
type DominatorTree struct {
	entry *ir.BasicBlock

	postOrderNum map[*ir.BasicBlock]int
	idom         map[*ir.BasicBlock]*ir.BasicBlock
	rpo          []*ir.BasicBlock

	domFrontier map[*ir.BasicBlock][]*ir.BasicBlock
	dominatees  map[*ir.BasicBlock][]*ir.BasicBlock
}

// BuildDominatorTree computes the dominator tree for the function entered
// at entry.
func BuildDominatorTree(entry *ir.BasicBlock) *DominatorTree {
	dt := &DominatorTree{entry: entry}
	dt.compute()
	return dt
}

func (dt *DominatorTree) compute() {
	po := ir.PostOrderBlocks(dt.entry)
	dt.postOrderNum = make(map[*ir.BasicBlock]int, len(po))
	for i, bb := range po {
		dt.postOrderNum[bb] = i
	}
	dt.rpo = ir.ReversePostOrderBlocks(dt.entry)

	idom := make(map[*ir.BasicBlock]*ir.BasicBlock, len(po))
	idom[dt.entry] = dt.entry

	changed := true
	for changed {
		changed = false
		for _, bb := range dt.rpo {
			if bb == dt.entry {
				continue
			}
			var newIdom *ir.BasicBlock
			for _, p := range bb.Predecessors() {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = dt.intersect(newIdom, p, idom)
			}
			if newIdom != nil && idom[bb] != newIdom {
				idom[bb] = newIdom
				changed = true
			}
		}
	}
	dt.idom = idom
	dt.buildFrontiers()
	dt.buildDominatees()
}

// intersect walks both candidates up the (partially built) dominator tree
// using postorder numbers until they meet, the "LCA in the dominator tree"
// step spec.md §4.3 describes.
func (dt *DominatorTree) intersect(a, b *ir.BasicBlock, idom map[*ir.BasicBlock]*ir.BasicBlock) *ir.BasicBlock {
	for a != b {
		for dt.postOrderNum[a] < dt.postOrderNum[b] {
			a = idom[a]
		}
		for dt.postOrderNum[b] < dt.postOrderNum[a] {
			b = idom[b]
		}
	}
	return a
}

func (dt *DominatorTree) buildFrontiers() {
	dt.domFrontier = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for bb := range dt.idom {
		if len(bb.Predecessors()) < 2 {
			continue
		}
		for _, p := range bb.Predecessors() {
			runner := p
			for runner != dt.idom[bb] {
				dt.domFrontier[runner] = appendUnique(dt.domFrontier[runner], bb)
				runner = dt.idom[runner]
			}
		}
	}
}

func (dt *DominatorTree) buildDominatees() {
	dt.dominatees = make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for bb, idom := range dt.idom {
		if bb == dt.entry {
			continue
		}
		dt.dominatees[idom] = append(dt.dominatees[idom], bb)
	}
}

func appendUnique(s []*ir.BasicBlock, v *ir.BasicBlock) []*ir.BasicBlock {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// IDom returns the immediate dominator of bb, or nil for the entry block.
func (dt *DominatorTree) IDom(bb *ir.BasicBlock) *ir.BasicBlock {
	if bb == dt.entry {
		return nil
	}
	return dt.idom[bb]
}

// Dominatees returns the blocks whose immediate dominator is bb (the
// dominator tree's children of bb).
func (dt *DominatorTree) Dominatees(bb *ir.BasicBlock) []*ir.BasicBlock {
	return dt.dominatees[bb]
}

// DominanceFrontier returns df(bb) as defined in the glossary: the set of
// blocks f such that bb dominates a predecessor of f but does not strictly
// dominate f itself.
func (dt *DominatorTree) DominanceFrontier(bb *ir.BasicBlock) []*ir.BasicBlock {
	return dt.domFrontier[bb]
}

// Dominates reports whether a dominates b (inclusive: a dominates itself).
func (dt *DominatorTree) Dominates(a, b *ir.BasicBlock) bool {
	if a == b {
		return true
	}
	cur := dt.idom[b]
	for cur != nil {
		if cur == a {
			return true
		}
		if cur == dt.entry && a != dt.entry {
			return false
		}
		if cur == dt.idom[cur] {
			break
		}
		cur = dt.idom[cur]
	}
	return false
}

// StrictlyDominates reports whether a strictly dominates b.
func (dt *DominatorTree) StrictlyDominates(a, b *ir.BasicBlock) bool {
	return a != b && dt.Dominates(a, b)
}
