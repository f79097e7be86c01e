package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// Generate lowers a parsed translation unit into a mid-IR Program. The
// runtime library catalog is registered before any user declaration, so
// calls resolve regardless of source order (spec.md §4.2).
func Generate(prog *ast.Program) (*ir.Program, error) {
	p := ir.NewProgram()
	registerLibraryFunctions(p)
	pk := newProgramKit(p)

	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *ast.VarDecl:
			if err := pk.genGlobalDecl(n); err != nil {
				return nil, err
			}
		case *ast.FuncDecl:
			if err := pk.genFuncDecl(n); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("irgen: unsupported top-level declaration %T", d)
		}
	}
	return p, nil
}
