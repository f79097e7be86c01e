package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// reshape converts a flat-or-nested run of initializer expressions into
// the canonical nested tree matching dims, per spec.md §4.2: "a reshape
// step converts a flat deque of expressions to the canonical nested tree
// matching the declared shape by recursive descent (consuming one
// sub-array's worth of items per dimension, filling the remainder with
// the type's default initializer)". The leading slice is consumed
// destructively; callers pass a fresh copy.
//
// Grounded on the original implementation's reshape_array/
// reshape_const_array (frontend/transform/reshape_array.rs), unified into
// one function since both variants fill missing trailing elements with
// the element type's default — the distinction upstream was only about
// whether every leaf had to fold to a constant, which this package handles
// separately in evalConstExpr.
func reshape(items *[]ast.Expr, dims []int, elemKind ast.TypeKind) ast.Expr {
	if len(dims) == 0 {
		if len(*items) == 0 {
			return defaultLeaf(elemKind)
		}
		e := (*items)[0]
		*items = (*items)[1:]
		return e
	}
	size := dims[0]
	elems := make([]ast.Expr, size)
	for i := 0; i < size; i++ {
		if len(*items) == 0 {
			empty := []ast.Expr(nil)
			elems[i] = reshape(&empty, dims[1:], elemKind)
			continue
		}
		if il, ok := (*items)[0].(*ast.InitList); ok {
			*items = (*items)[1:]
			sub := append([]ast.Expr(nil), il.Elems...)
			elems[i] = reshape(&sub, dims[1:], elemKind)
		} else {
			elems[i] = reshape(items, dims[1:], elemKind)
		}
	}
	return &ast.InitList{Elems: elems}
}

// defaultLeaf returns the zero-valued literal for a scalar element kind,
// used by reshape to pad a short initializer (spec.md §4.2, §9 "Mem2reg
// stored-never-set variables" applies the same default for loads).
func defaultLeaf(k ast.TypeKind) ast.Expr {
	switch k {
	case ast.TypeFloat:
		return &ast.FloatExpr{Value: 0}
	case ast.TypeBool:
		return &ast.BoolExpr{Value: false}
	default:
		return &ast.IntExpr{Value: 0}
	}
}

// defaultConstant returns the zero Constant for a mid-IR type, used for
// global variables declared without an initializer.
func defaultConstant(t ir.ValueType) ir.Constant {
	if t.IsArray() {
		elems := make([]ir.Constant, t.ArraySize())
		for i := range elems {
			elems[i] = defaultConstant(t.Elem())
		}
		return ir.ConstArr(elems)
	}
	return ir.ConstZ(t)
}

// evalConstExpr folds a constant expression to an ir.Constant, resolving
// VarExpr references against constEnv (named constants already folded at
// an earlier declaration), per spec.md §8.2 "For a constant expression e,
// gen_const(e) produces the same Constant as evaluating e in mid-IR".
func evalConstExpr(e ast.Expr, constEnv map[string]ir.Constant) (ir.Constant, error) {
	switch n := e.(type) {
	case *ast.IntExpr:
		return ir.ConstI(n.Value), nil
	case *ast.FloatExpr:
		return ir.ConstF(n.Value), nil
	case *ast.BoolExpr:
		return ir.ConstB(n.Value), nil
	case *ast.CharExpr:
		return ir.ConstC(n.Value), nil
	case *ast.VarExpr:
		c, ok := constEnv[n.Name]
		if !ok {
			return ir.Constant{}, fmt.Errorf("irgen: %q is not a constant expression", n.Name)
		}
		return c, nil
	case *ast.UnaryExpr:
		v, err := evalConstExpr(n.Operand, constEnv)
		if err != nil {
			return ir.Constant{}, err
		}
		return evalConstUnary(n.Op, v)
	case *ast.BinaryExpr:
		l, err := evalConstExpr(n.Left, constEnv)
		if err != nil {
			return ir.Constant{}, err
		}
		r, err := evalConstExpr(n.Right, constEnv)
		if err != nil {
			return ir.Constant{}, err
		}
		return evalConstBinary(n.Op, l, r)
	case *ast.InitList:
		elems := make([]ir.Constant, len(n.Elems))
		for i, sub := range n.Elems {
			c, err := evalConstExpr(sub, constEnv)
			if err != nil {
				return ir.Constant{}, err
			}
			elems[i] = c
		}
		return ir.ConstArr(elems), nil
	default:
		return ir.Constant{}, fmt.Errorf("irgen: expression is not constant-foldable")
	}
}

func evalConstUnary(op ast.UnaryOp, v ir.Constant) (ir.Constant, error) {
	switch op {
	case ast.UnaryPos:
		return v, nil
	case ast.UnaryNeg:
		switch v.Kind() {
		case ir.ConstInt:
			return ir.ConstI(-v.Int()), nil
		case ir.ConstFloat:
			return ir.ConstF(-v.Float()), nil
		}
	case ast.UnaryNot:
		return ir.ConstB(!asBool(v)), nil
	}
	return ir.Constant{}, fmt.Errorf("irgen: unsupported constant unary operator")
}

func asBool(v ir.Constant) bool {
	switch v.Kind() {
	case ir.ConstBool:
		return v.Bool()
	case ir.ConstInt:
		return v.Int() != 0
	case ir.ConstFloat:
		return v.Float() != 0
	}
	return false
}

func asFloat(v ir.Constant) float32 {
	switch v.Kind() {
	case ir.ConstFloat:
		return v.Float()
	case ir.ConstInt:
		return float32(v.Int())
	case ir.ConstBool:
		if v.Bool() {
			return 1
		}
		return 0
	}
	return 0
}

// evalConstBinary folds a binary operator over two constants, promoting
// to float when either operand is float (spec.md §4.2 implicit numeric
// conversions apply equally at constant-fold time as at runtime).
func evalConstBinary(op ast.BinaryOp, l, r ir.Constant) (ir.Constant, error) {
	if op == ast.BinAnd {
		return ir.ConstB(asBool(l) && asBool(r)), nil
	}
	if op == ast.BinOr {
		return ir.ConstB(asBool(l) || asBool(r)), nil
	}
	bothInt := l.Kind() == ir.ConstInt && r.Kind() == ir.ConstInt
	if bothInt {
		a, b := l.Int(), r.Int()
		switch op {
		case ast.BinAdd:
			return ir.ConstI(a + b), nil
		case ast.BinSub:
			return ir.ConstI(a - b), nil
		case ast.BinMul:
			return ir.ConstI(a * b), nil
		case ast.BinDiv:
			if b == 0 {
				return ir.Constant{}, fmt.Errorf("irgen: division by zero in constant expression")
			}
			return ir.ConstI(a / b), nil
		case ast.BinMod:
			if b == 0 {
				return ir.Constant{}, fmt.Errorf("irgen: modulo by zero in constant expression")
			}
			return ir.ConstI(a % b), nil
		case ast.BinLt:
			return ir.ConstB(a < b), nil
		case ast.BinLe:
			return ir.ConstB(a <= b), nil
		case ast.BinGt:
			return ir.ConstB(a > b), nil
		case ast.BinGe:
			return ir.ConstB(a >= b), nil
		case ast.BinEq:
			return ir.ConstB(a == b), nil
		case ast.BinNe:
			return ir.ConstB(a != b), nil
		case ast.BinBitAnd:
			return ir.ConstI(a & b), nil
		case ast.BinBitOr:
			return ir.ConstI(a | b), nil
		case ast.BinBitXor:
			return ir.ConstI(a ^ b), nil
		case ast.BinShl:
			return ir.ConstI(a << uint32(b)), nil
		case ast.BinShr:
			return ir.ConstI(a >> uint32(b)), nil
		}
	}
	a, b := asFloat(l), asFloat(r)
	switch op {
	case ast.BinAdd:
		return ir.ConstF(a + b), nil
	case ast.BinSub:
		return ir.ConstF(a - b), nil
	case ast.BinMul:
		return ir.ConstF(a * b), nil
	case ast.BinDiv:
		return ir.ConstF(a / b), nil
	case ast.BinLt:
		return ir.ConstB(a < b), nil
	case ast.BinLe:
		return ir.ConstB(a <= b), nil
	case ast.BinGt:
		return ir.ConstB(a > b), nil
	case ast.BinGe:
		return ir.ConstB(a >= b), nil
	case ast.BinEq:
		return ir.ConstB(a == b), nil
	case ast.BinNe:
		return ir.ConstB(a != b), nil
	}
	return ir.Constant{}, fmt.Errorf("irgen: unsupported constant binary operator")
}
