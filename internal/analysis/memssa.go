package analysis

import "github.com/dusk-phantom/sysyc/internal/ir"

// MemNodeKind is the Memory SSA node kind from spec.md §4.3:
// `{Entry, Normal(def, use), Phi}`.
type MemNodeKind byte

const (
	MemEntry MemNodeKind = iota
	MemNormal
	MemPhi
)

// MemNode is one node of the Memory SSA graph. Loads get a Normal node
// whose Reaching field is the version they read; Stores get a Normal node
// that defines a new version; Calls get a Normal node that both reads
// Reaching and defines a new version. MemPhi nodes join versions at block
// entries with multiple predecessors, exactly like mem2reg's phi insertion
// but over the single implicit "memory" variable.
type MemNode struct {
	Kind MemNodeKind

	// Instr is the IR instruction this node annotates; nil for MemEntry.
	Instr *ir.Instruction

	// Reaching is the memory version this node reads (nil for MemEntry,
	// and for a MemPhi use PhiIncoming instead).
	Reaching *MemNode

	// Block is the owning block of a MemPhi node.
	Block *ir.BasicBlock
	// PhiIncoming parallels Block.Predecessors() for a MemPhi node.
	PhiIncoming []*MemNode

	users []*MemNode
}

func (n *MemNode) addUser(u *MemNode) { n.users = append(n.users, u) }

// Users returns every node whose Reaching (or PhiIncoming) points at n.
func (n *MemNode) Users() []*MemNode { return n.users }

// removeUser drops u from n's user list, used when Remove deletes a node.
func (n *MemNode) removeUser(u *MemNode) {
	for i, x := range n.users {
		if x == u {
			n.users = append(n.users[:i], n.users[i+1:]...)
			return
		}
	}
}

// Remove unlinks n from its producer's user list, then recursively removes
// that producer if it is now unused, per spec.md §4.3 "Removal is
// recursive: removing a node unlinks it from its users and removes any
// now-unused producer."
func (n *MemNode) Remove() {
	if n.Kind == MemPhi {
		for _, p := range n.PhiIncoming {
			if p != nil {
				p.removeUser(n)
				if len(p.users) == 0 && p.Kind != MemEntry {
					p.Remove()
				}
			}
		}
		return
	}
	if n.Reaching != nil {
		n.Reaching.removeUser(n)
		if len(n.Reaching.users) == 0 && n.Reaching.Kind != MemEntry {
			n.Reaching.Remove()
		}
	}
}

// MemorySSA holds the per-instruction Memory SSA node map for one function.
type MemorySSA struct {
	ByInstr map[*ir.Instruction]*MemNode
	entry   *MemNode
}

// NodeFor returns the Memory SSA node for instr, if it has a memory
// effect.
func (m *MemorySSA) NodeFor(instr *ir.Instruction) (*MemNode, bool) {
	n, ok := m.ByInstr[instr]
	return n, ok
}

// Build constructs Memory SSA for the function entered at entry, using dt
// for dominance-frontier-based phi placement (spec.md §4.3).
func Build(entry *ir.BasicBlock, dt *DominatorTree) *MemorySSA {
	m := &MemorySSA{ByInstr: make(map[*ir.Instruction]*MemNode)}
	m.entry = &MemNode{Kind: MemEntry}

	reachable := ir.ReachableBlocks(entry)

	// Step 1: find blocks containing a memory-defining instruction
	// (Store or Call) — this function's "store-set", mirroring mem2reg's
	// per-alloca store-set (spec.md §4.4.1 step 2).
	defBlocks := map[*ir.BasicBlock]bool{}
	for _, bb := range reachable {
		bb.Instructions(func(instr *ir.Instruction) bool {
			if Effect(instr).Writes {
				defBlocks[bb] = true
			}
			return true
		})
	}

	// Step 2: insert MemPhi at the dominance frontier closure of defBlocks
	// (mem2reg step 3, specialized to a single variable).
	phiBlocks := map[*ir.BasicBlock]*MemNode{}
	worklist := make([]*ir.BasicBlock, 0, len(defBlocks))
	for bb := range defBlocks {
		worklist = append(worklist, bb)
	}
	for len(worklist) > 0 {
		bb := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range dt.DominanceFrontier(bb) {
			if _, ok := phiBlocks[f]; !ok {
				node := &MemNode{Kind: MemPhi, Block: f}
				phiBlocks[f] = node
				worklist = append(worklist, f)
			}
		}
	}

	// Step 3: rename, walking the dominator tree from entry with a single
	// "current memory version" threaded per path (mem2reg step 5,
	// specialized).
	var walk func(bb *ir.BasicBlock, current *MemNode)
	walk = func(bb *ir.BasicBlock, current *MemNode) {
		if phi, ok := phiBlocks[bb]; ok {
			current = phi
		}
		bb.Instructions(func(instr *ir.Instruction) bool {
			eff := Effect(instr)
			if !eff.Reads && !eff.Writes {
				return true
			}
			node := &MemNode{Kind: MemNormal, Instr: instr, Reaching: current}
			current.addUser(node)
			m.ByInstr[instr] = node
			if eff.Writes {
				current = node
			}
			return true
		})
		for _, s := range bb.Successors() {
			if phi, ok := phiBlocks[s]; ok {
				idx := predIndex(s, bb)
				for len(phi.PhiIncoming) <= idx {
					phi.PhiIncoming = append(phi.PhiIncoming, nil)
				}
				phi.PhiIncoming[idx] = current
				current.addUser(phi)
			}
		}
		for _, child := range dt.Dominatees(bb) {
			walk(child, current)
		}
	}
	walk(entry, m.entry)

	return m
}

func predIndex(bb, pred *ir.BasicBlock) int {
	for i, p := range bb.Predecessors() {
		if p == pred {
			return i
		}
	}
	return 0
}
