package ir

// ReachableBlocks returns every block reachable from entry via a DFS,
// in discovery order. Unreachable blocks are never returned, matching
// spec.md §3.1 ("unreachable blocks are not iterated and must be
// removable by remove_self").
func ReachableBlocks(entry *BasicBlock) []*BasicBlock {
	var order []*BasicBlock
	seen := make(map[*BasicBlock]bool)
	var dfs func(*BasicBlock)
	dfs = func(bb *BasicBlock) {
		if seen[bb] || bb.invalid {
			return
		}
		seen[bb] = true
		order = append(order, bb)
		for _, s := range bb.succs {
			dfs(s)
		}
	}
	dfs(entry)
	return order
}

// BFSBlocks returns reachable blocks in breadth-first order from entry.
func BFSBlocks(entry *BasicBlock) []*BasicBlock {
	var order []*BasicBlock
	seen := map[*BasicBlock]bool{entry: true}
	queue := []*BasicBlock{entry}
	for len(queue) > 0 {
		bb := queue[0]
		queue = queue[1:]
		if bb.invalid {
			continue
		}
		order = append(order, bb)
		for _, s := range bb.succs {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	return order
}

// PostOrderBlocks returns reachable blocks in DFS postorder: every block
// after all of its successors. This is the numbering the dominator-tree
// construction in internal/analysis relies on (spec.md §4.3).
func PostOrderBlocks(entry *BasicBlock) []*BasicBlock {
	var order []*BasicBlock
	seen := make(map[*BasicBlock]bool)
	var dfs func(*BasicBlock)
	dfs = func(bb *BasicBlock) {
		if seen[bb] || bb.invalid {
			return
		}
		seen[bb] = true
		for _, s := range bb.succs {
			dfs(s)
		}
		order = append(order, bb)
	}
	dfs(entry)
	return order
}

// ReversePostOrderBlocks returns reachable blocks in RPO, the traversal
// order used by the symbolic-evaluation pass (spec.md §4.4.2).
func ReversePostOrderBlocks(entry *BasicBlock) []*BasicBlock {
	po := PostOrderBlocks(entry)
	for i, j := 0, len(po)-1; i < j; i, j = i+1, j-1 {
		po[i], po[j] = po[j], po[i]
	}
	return po
}
