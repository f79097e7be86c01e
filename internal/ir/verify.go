package ir

import "fmt"

// Verify checks the invariants listed in spec.md §8.1 against every
// reachable block of f, returning the first violation found, or nil.
// Passes call this in debug builds / tests after running; it never
// attempts to repair anything (spec.md §7: "never silently corrected").
func (f *Function) Verify() error {
	for _, bb := range ReachableBlocks(f.entry) {
		if bb.Terminator() == nil {
			return fmt.Errorf("internal error: block %s has no terminator", bb.Name())
		}
		var err error
		bb.Instructions(func(instr *Instruction) bool {
			if instr != bb.tail && instr.IsTerminator() {
				err = fmt.Errorf("internal error: non-tail terminator %s in block %s", instr.Name(), bb.Name())
				return false
			}
			for _, op := range instr.operands {
				if op.kind == OperandInstruction {
					found := false
					for _, u := range op.instr.users {
						if u == instr {
							found = true
							break
						}
					}
					if !found {
						err = fmt.Errorf("internal error: use-def inconsistency: %s not in users of %s", instr.Name(), op.instr.Name())
						return false
					}
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
