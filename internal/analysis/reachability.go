package analysis

import "github.com/dusk-phantom/sysyc/internal/ir"

// Reachability wraps the reachable-block set of a function, giving
// transform passes (block fusion's unreachable-block elimination,
// spec.md §4.4.6) an O(1) membership test instead of re-walking the CFG.
type Reachability struct {
	set map[*ir.BasicBlock]bool
}

// ComputeReachability runs a DFS from entry and records every block found.
func ComputeReachability(entry *ir.BasicBlock) *Reachability {
	blocks := ir.ReachableBlocks(entry)
	set := make(map[*ir.BasicBlock]bool, len(blocks))
	for _, bb := range blocks {
		set[bb] = true
	}
	return &Reachability{set: set}
}

func (r *Reachability) IsReachable(bb *ir.BasicBlock) bool { return r.set[bb] }
