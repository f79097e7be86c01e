package irgen

import "github.com/dusk-phantom/sysyc/internal/ir"

// libraryFunc describes one entry of the fixed runtime catalog spec.md
// §4.2 names: `{getint, getch, getfloat, putint, putch, putfloat, getarray,
// getfarray, putarray, putfarray, starttime, stoptime, putf,
// llvm.memset.p0.i32}`. These are declared with IsLibrary set (no body);
// the asm emitter / linker supplies the actual implementation externally
// (spec.md §1 "the runtime library of I/O primitives (linked externally)").
type libraryFunc struct {
	name   string
	ret    ir.ValueType
	params []ir.ValueType
}

// libraryCatalog is registered into every Program's module before any user
// declaration is generated, so calls can be resolved regardless of
// declaration order within the source file.
var libraryCatalog = []libraryFunc{
	{"getint", ir.Int, nil},
	{"getch", ir.Int, nil},
	{"getfloat", ir.Float, nil},
	{"getarray", ir.Int, []ir.ValueType{ir.PointerTo(ir.Int)}},
	{"getfarray", ir.Int, []ir.ValueType{ir.PointerTo(ir.Float)}},
	{"putint", ir.Void, []ir.ValueType{ir.Int}},
	{"putch", ir.Void, []ir.ValueType{ir.Int}},
	{"putfloat", ir.Void, []ir.ValueType{ir.Float}},
	{"putarray", ir.Void, []ir.ValueType{ir.Int, ir.PointerTo(ir.Int)}},
	{"putfarray", ir.Void, []ir.ValueType{ir.Int, ir.PointerTo(ir.Float)}},
	// putf's variadic tail (the values substituted into the format string)
	// is appended per call site by genCallExpr; the fixed leading parameter
	// is the format-string pointer.
	{"putf", ir.Void, []ir.ValueType{ir.PointerTo(ir.Int)}},
	// starttime/stoptime take the call-site source line as their sole
	// argument (spec.md §4.2 "starttime/stoptime receive a source line
	// number as an argument").
	{"starttime", ir.Void, []ir.ValueType{ir.Int}},
	{"stoptime", ir.Void, []ir.ValueType{ir.Int}},
	// The SysY runtime's zero-fill primitive, used by local array
	// initialization (spec.md §4.2 "backing storage is zero-initialized
	// via a memset call").
	{"llvm.memset.p0.i32", ir.Void, []ir.ValueType{ir.PointerTo(ir.SignedChar), ir.SignedChar, ir.Int}},
}

// registerLibraryFunctions declares every catalog entry as an is_library
// function of prog's module.
func registerLibraryFunctions(prog *ir.Program) map[string]*ir.Function {
	fns := make(map[string]*ir.Function, len(libraryCatalog))
	for _, lf := range libraryCatalog {
		params := make([]*ir.Parameter, len(lf.params))
		for i, t := range lf.params {
			params[i] = &ir.Parameter{Name: "", Type: t, Index: i}
		}
		fns[lf.name] = prog.NewFunction(lf.name, lf.ret, params, true)
	}
	return fns
}

// isLibraryCall reports whether name refers to a pre-declared library
// function, distinguishing it from a user-defined function of the same
// scope (library names always take precedence, matching the catalog's
// fixed nature).
func isLibraryCall(name string) bool {
	for _, lf := range libraryCatalog {
		if lf.name == name {
			return true
		}
	}
	return false
}
