package analysis

import "github.com/dusk-phantom/sysyc/internal/ir"

// MemoryEffect classifies whether an instruction reads and/or writes
// memory, the basis Memory SSA is built from (spec.md §4.3 "Built from an
// effect analysis").
type MemoryEffect struct {
	Reads, Writes bool
}

// Effect returns the memory effect of instr. Load only reads, Store only
// writes, and Ret reads: memory that escapes the function (globals,
// pointer parameters) is observable by the caller after the return
// (spec.md §4.4.3 "no subsequent load, call, or return observes"). Calls
// are classified per callee. Every other opcode has no memory effect.
func Effect(instr *ir.Instruction) MemoryEffect {
	switch instr.Opcode {
	case ir.OpLoad, ir.OpRet:
		return MemoryEffect{Reads: true}
	case ir.OpStore:
		return MemoryEffect{Writes: true}
	case ir.OpCall:
		return callEffect(instr.Callee())
	default:
		return MemoryEffect{}
	}
}

// callEffect classifies a callee's effect on program memory. The runtime
// catalog is known exactly: the scalar I/O routines never touch program
// memory, the array printers read through their pointer argument, and the
// array readers plus memset write through theirs. User functions stay
// fully conservative.
func callEffect(f *ir.Function) MemoryEffect {
	if f == nil || !f.IsLibrary {
		return MemoryEffect{Reads: true, Writes: true}
	}
	switch f.Name {
	case "getint", "getch", "getfloat", "putint", "putch", "putfloat",
		"starttime", "stoptime":
		return MemoryEffect{}
	case "putarray", "putfarray", "putf":
		return MemoryEffect{Reads: true}
	case "getarray", "getfarray", "llvm.memset.p0.i32":
		return MemoryEffect{Writes: true}
	}
	return MemoryEffect{Reads: true, Writes: true}
}

// HasMemoryEffect reports whether instr needs a Memory SSA node at all.
func HasMemoryEffect(instr *ir.Instruction) bool {
	e := Effect(instr)
	return e.Reads || e.Writes
}
