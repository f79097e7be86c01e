package irgen

import (
	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// irType translates a surface Type into its mid-IR ValueType. Array
// dimensions are nested outermost-first, so `int[2][3]` becomes
// `[2 x [3 x i32]]`, matching the GEP peeling order in value.go.
func irType(t ast.Type) ir.ValueType {
	switch t.Kind {
	case ast.TypeVoid:
		return ir.Void
	case ast.TypeInt:
		return ir.Int
	case ast.TypeFloat:
		return ir.Float
	case ast.TypeBool:
		return ir.Bool
	case ast.TypePointer:
		return ir.PointerTo(irType(*t.Elem))
	case ast.TypeArray:
		elem := irType(*t.Elem)
		for i := len(t.Dims) - 1; i >= 0; i-- {
			elem = ir.ArrayOf(elem, t.Dims[i])
		}
		return elem
	}
	panic("BUG: unreachable ast.TypeKind")
}
