package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-phantom/sysyc/internal/analysis"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// GVN is the redundancy-elimination step of the spec.md §4.4.7 loop:
// simple global value numbering over pure instructions. Two instructions
// with the same opcode, predicate, and operand identities compute the same
// value; the later one is replaced by the earlier when the earlier's block
// dominates it. Memory operations, calls, and φ nodes never participate.
func GVN(fn *ir.Function, dt *analysis.DominatorTree) bool {
	changed := false
	table := map[string]*ir.Instruction{}
	for _, bb := range ir.ReversePostOrderBlocks(fn.Entry()) {
		instr := bb.Root()
		for instr != nil {
			next := instr.Next()
			if key, ok := gvnKey(instr); ok {
				if prev, seen := table[key]; seen && prev != instr &&
					prev.Block() != nil && dt.Dominates(prev.Block(), instr.Block()) {
					instr.ReplaceSelf(prev)
					instr.RemoveSelf()
					changed = true
				} else if !seen {
					table[key] = instr
				}
			}
			instr = next
		}
	}
	return changed
}

// gvnKey builds the value number of a pure instruction, or reports that
// the instruction has an effect or identity of its own and cannot be
// numbered. Commutative operands are order-normalized so `a+b` and `b+a`
// share a number.
func gvnKey(instr *ir.Instruction) (string, bool) {
	switch instr.Opcode {
	case ir.OpLoad, ir.OpStore, ir.OpCall, ir.OpPhi, ir.OpAlloca, ir.OpBr, ir.OpRet:
		return "", false
	}
	tokens := make([]string, 0, instr.NumOperands())
	for _, op := range instr.Operands() {
		tokens = append(tokens, operandToken(op))
	}
	if isCommutative(instr.Opcode) && len(tokens) == 2 {
		sort.Strings(tokens)
	}
	var pred string
	switch instr.Opcode {
	case ir.OpICmp:
		pred = fmt.Sprintf("#%d", instr.ICmpPred())
	case ir.OpFCmp:
		pred = fmt.Sprintf("#%d", instr.FCmpPred())
	}
	return fmt.Sprintf("%d%s|%s|%s", instr.Opcode, pred, instr.Type.String(), strings.Join(tokens, ",")), true
}

func operandToken(op ir.Operand) string {
	switch op.Kind() {
	case ir.OperandConstant:
		return "c:" + op.Constant().String()
	case ir.OperandGlobal:
		return fmt.Sprintf("g:%p", op.Global())
	case ir.OperandParameter:
		return fmt.Sprintf("p:%p", op.Parameter())
	case ir.OperandInstruction:
		return fmt.Sprintf("i:%p", op.Instruction())
	}
	return "?"
}
