package ir

import "fmt"

// BasicBlock is described in spec.md §3.1/§3.2: an intrusive doubly-linked
// list of instructions, up to two successor edges, arbitrarily many
// predecessor edges, and a loop-depth field filled in by loop analysis.
type BasicBlock struct {
	id   uint32
	name string
	fn   *Function

	root, tail *Instruction

	preds []*BasicBlock
	succs []*BasicBlock

	// LoopDepth is populated by the loop forest (spec.md §4.3).
	LoopDepth int

	invalid bool
}

func (bb *BasicBlock) Name() string {
	if bb.name != "" {
		return bb.name
	}
	return fmt.Sprintf("bb%d", bb.id)
}

// SetName assigns a human-readable name, used by irgen's cond<N>/then<N>/...
// naming convention (spec.md §4.2).
func (bb *BasicBlock) SetName(n string) { bb.name = n }

func (bb *BasicBlock) Function() *Function         { return bb.fn }
func (bb *BasicBlock) Root() *Instruction          { return bb.root }
func (bb *BasicBlock) Tail() *Instruction          { return bb.tail }
func (bb *BasicBlock) Predecessors() []*BasicBlock { return bb.preds }
func (bb *BasicBlock) Successors() []*BasicBlock   { return bb.succs }
func (bb *BasicBlock) Valid() bool                 { return !bb.invalid }

// Terminator returns the block's terminating instruction, or nil if the
// block is (temporarily, during construction) unterminated.
func (bb *BasicBlock) Terminator() *Instruction {
	if bb.tail != nil && bb.tail.IsTerminator() {
		return bb.tail
	}
	return nil
}

// Instructions iterates the block front to back.
func (bb *BasicBlock) Instructions(yield func(*Instruction) bool) {
	for cur := bb.root; cur != nil; {
		next := cur.next
		if !yield(cur) {
			return
		}
		cur = next
	}
}

// PushBack appends instr to the end of this block's instruction list
// (spec.md §4.1 block mutation primitive `push_back`).
func (bb *BasicBlock) PushBack(instr *Instruction) {
	instr.block = bb
	if bb.tail == nil {
		bb.root = instr
		instr.prev, instr.next = nil, nil
	} else {
		bb.tail.next = instr
		instr.prev = bb.tail
		instr.next = nil
	}
	bb.tail = instr
	bb.onTerminatorLinked(instr)
}

// PushFront inserts instr at the head of the block (`push_front`).
func (bb *BasicBlock) PushFront(instr *Instruction) {
	instr.block = bb
	instr.prev = nil
	instr.next = bb.root
	if bb.root != nil {
		bb.root.prev = instr
	} else {
		bb.tail = instr
	}
	bb.root = instr
}

// insertBefore splices instr immediately before mark.
func (bb *BasicBlock) insertBefore(instr, mark *Instruction) {
	instr.block = bb
	instr.prev = mark.prev
	instr.next = mark
	if mark.prev != nil {
		mark.prev.next = instr
	} else {
		bb.root = instr
	}
	mark.prev = instr
}

// insertAfter splices instr immediately after mark.
func (bb *BasicBlock) insertAfter(instr, mark *Instruction) {
	instr.block = bb
	instr.next = mark.next
	instr.prev = mark
	if mark.next != nil {
		mark.next.prev = instr
	} else {
		bb.tail = instr
	}
	mark.next = instr
	bb.onTerminatorLinked(instr)
}

// onTerminatorLinked wires successor/predecessor edges when a Br/Ret is
// appended. Called once per terminator insertion.
func (bb *BasicBlock) onTerminatorLinked(instr *Instruction) {
	if instr.Opcode != OpBr {
		return
	}
	for _, op := range instr.operands {
		// Br's non-block operands are the condition (if any); targets are
		// tracked out of band via brTargets.
		_ = op
	}
	for _, t := range instr.brTargets {
		t.addPred(bb)
	}
}

// removeInstruction unlinks instr from the intrusive list without touching
// use-def chains (the caller, Instruction.RemoveSelf, handles that half).
func (bb *BasicBlock) removeInstruction(instr *Instruction) {
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		bb.root = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		bb.tail = instr.prev
	}
	if instr.IsTerminator() {
		for _, t := range instr.brTargets {
			t.removePred(bb)
		}
	}
	instr.block = nil
	instr.prev, instr.next = nil, nil
}

func (bb *BasicBlock) addPred(p *BasicBlock) {
	bb.preds = append(bb.preds, p)
	p.succs = append(p.succs, bb)
}

func (bb *BasicBlock) removePred(p *BasicBlock) {
	for idx, q := range bb.preds {
		if q == p {
			bb.preds = append(bb.preds[:idx], bb.preds[idx+1:]...)
			break
		}
	}
	for idx, q := range p.succs {
		if q == bb {
			p.succs = append(p.succs[:idx], p.succs[idx+1:]...)
			break
		}
	}
}

// ReplaceEntry rewires a predecessor in every phi instruction of this
// block, per spec.md §4.1 `replace_entry(old_pred, new_pred)`.
func (bb *BasicBlock) ReplaceEntry(oldPred, newPred *BasicBlock) {
	for idx, p := range bb.preds {
		if p == oldPred {
			bb.preds[idx] = newPred
		}
	}
	bb.Instructions(func(instr *Instruction) bool {
		if instr.Opcode != OpPhi {
			return true
		}
		for idx, p := range instr.phiPreds {
			if p == oldPred {
				instr.phiPreds[idx] = newPred
			}
		}
		return true
	})
}

// RedirectTerminator rewrites every branch target of bb's own terminator
// that points at oldTarget to point at newTarget instead, fixing up the
// predecessor/successor edges to match. Used by loop-simplify to splice a
// synthesized preheader in front of a loop header (spec.md §4.4.4).
func (bb *BasicBlock) RedirectTerminator(oldTarget, newTarget *BasicBlock) {
	term := bb.Terminator()
	if term == nil || term.Opcode != OpBr {
		return
	}
	found := false
	for i, t := range term.brTargets {
		if t == oldTarget {
			term.brTargets[i] = newTarget
			found = true
		}
	}
	if !found {
		return
	}
	oldTarget.removePred(bb)
	newTarget.addPred(bb)
}

// RelinkTerminator re-establishes predecessor/successor edges for instr's
// current branch targets. Call this after mutating an already-linked
// instruction's targets directly (SetBrTargets during block cloning); a
// freshly emitted terminator wires itself automatically via PushBack.
func (bb *BasicBlock) RelinkTerminator(instr *Instruction) {
	bb.onTerminatorLinked(instr)
}

// RemoveSelf unlinks this block from predecessor/successor lists and
// removes every φ operand it contributed in successor blocks, per
// spec.md §4.1.
func (bb *BasicBlock) RemoveSelf() {
	bb.invalid = true
	for _, s := range append([]*BasicBlock(nil), bb.succs...) {
		s.Instructions(func(instr *Instruction) bool {
			if instr.Opcode == OpPhi {
				instr.RemovePhiIncomingFrom(bb)
			}
			return true
		})
		s.removePred(bb)
	}
	for _, p := range append([]*BasicBlock(nil), bb.preds...) {
		for idx, s := range p.succs {
			if s == bb {
				p.succs = append(p.succs[:idx], p.succs[idx+1:]...)
				break
			}
		}
	}
	bb.Instructions(func(instr *Instruction) bool {
		instr.unlinkOperands()
		return true
	})
	bb.preds, bb.succs = nil, nil
}

func (bb *BasicBlock) String() string { return bb.Name() }
