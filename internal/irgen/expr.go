package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// maxType picks the promotion target for a binary operator's operands:
// float dominates int dominates bool (spec.md §4.2 "usual arithmetic
// conversions"), matching gen_binary.rs's `max_with`.
func maxType(a, b ir.ValueType) ir.ValueType {
	if a.IsFloat() || b.IsFloat() {
		return ir.Float
	}
	if a.IsInt() || b.IsInt() {
		return ir.Int
	}
	return ir.Bool
}

var floatCmpPred = map[ast.BinaryOp]ir.FCmpPredicate{
	ast.BinLt: ir.FCmpOLT,
	ast.BinLe: ir.FCmpOLE,
	ast.BinGt: ir.FCmpOGT,
	ast.BinGe: ir.FCmpOGE,
	ast.BinEq: ir.FCmpOEQ,
	// Ne uses the unordered predicate: a NaN operand makes `!=` true,
	// matching IEEE-754 comparison semantics (gen_binary.rs's Ne case).
	ast.BinNe: ir.FCmpUNE,
}

var intCmpPred = map[ast.BinaryOp]ir.ICmpPredicate{
	ast.BinLt: ir.ICmpSLT,
	ast.BinLe: ir.ICmpSLE,
	ast.BinGt: ir.ICmpSGT,
	ast.BinGe: ir.ICmpSGE,
	ast.BinEq: ir.ICmpEQ,
	ast.BinNe: ir.ICmpNE,
}

// genExpr lowers e to a Value, per spec.md §4.2's expression-generation
// rules (gen_expr.rs).
func (k *FunctionKit) genExpr(e ast.Expr) (Value, error) {
	switch n := e.(type) {
	case *ast.VarExpr:
		v, ok := k.lookup(n.Name)
		if !ok {
			return Value{}, fmt.Errorf("irgen: undefined identifier %q", n.Name)
		}
		return v, nil
	case *ast.IndexExpr:
		return k.genIndexExpr(n)
	case *ast.IntExpr:
		return ReadOnly(ir.OperandFromConstant(ir.ConstI(n.Value))), nil
	case *ast.FloatExpr:
		return ReadOnly(ir.OperandFromConstant(ir.ConstF(n.Value))), nil
	case *ast.CharExpr:
		return ReadOnly(ir.OperandFromConstant(ir.ConstC(n.Value))), nil
	case *ast.BoolExpr:
		return ReadOnly(ir.OperandFromConstant(ir.ConstB(n.Value))), nil
	case *ast.StringExpr:
		return Value{}, fmt.Errorf("irgen: string literal is only valid as putf's first argument")
	case *ast.CallExpr:
		return k.genCallExpr(n)
	case *ast.UnaryExpr:
		return k.genUnaryExpr(n)
	case *ast.BinaryExpr:
		return k.genBinaryExpr(n)
	case *ast.ConditionalExpr:
		return Value{}, fmt.Errorf("irgen: conditional (?:) expressions are not supported")
	default:
		return Value{}, fmt.Errorf("irgen: unsupported expression %T", e)
	}
}

// genIndexExpr strides the base value by one index level; a chain of
// nested IndexExpr nodes descends one level per recursive call, matching
// gen_expr.rs's Index arm rather than collecting a flattened index list.
func (k *FunctionKit) genIndexExpr(n *ast.IndexExpr) (Value, error) {
	base, err := k.genExpr(n.Base)
	if err != nil {
		return Value{}, err
	}
	idx, err := k.genExpr(n.Index)
	if err != nil {
		return Value{}, err
	}
	idxOp, err := idx.Load(ir.Int, k.builder())
	if err != nil {
		return Value{}, err
	}
	return base.GetElementPtr(k.builder(), idxOp)
}

func (k *FunctionKit) genUnaryExpr(n *ast.UnaryExpr) (Value, error) {
	v, err := k.genExpr(n.Operand)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case ast.UnaryPos:
		return v, nil
	case ast.UnaryNeg:
		_, loaded, err := v.loadUncast(k.builder())
		if err != nil {
			return Value{}, err
		}
		if loaded.IsFloat() {
			op, err := v.Load(ir.Float, k.builder())
			if err != nil {
				return Value{}, err
			}
			i := k.builder().BinOp(ir.OpFSub, ir.OperandFromConstant(ir.ConstF(0)), op)
			return ReadOnly(ir.OperandFromInstruction(i)), nil
		}
		op, err := v.Load(ir.Int, k.builder())
		if err != nil {
			return Value{}, err
		}
		i := k.builder().BinOp(ir.OpSub, ir.OperandFromConstant(ir.ConstI(0)), op)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.UnaryNot:
		op, err := v.Load(ir.Bool, k.builder())
		if err != nil {
			return Value{}, err
		}
		i := k.builder().BinOp(ir.OpXor, op, ir.OperandFromConstant(ir.ConstB(true)))
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	default:
		return Value{}, fmt.Errorf("irgen: unsupported unary operator")
	}
}

func (k *FunctionKit) genBinaryExpr(n *ast.BinaryExpr) (Value, error) {
	switch n.Op {
	case ast.BinAnd, ast.BinOr:
		return k.genLogical(n.Op, n)
	case ast.BinBitAnd, ast.BinBitOr, ast.BinBitXor, ast.BinShl, ast.BinShr:
		return Value{}, fmt.Errorf("irgen: bitwise/shift operators are not supported")
	}

	lhs, err := k.genExpr(n.Left)
	if err != nil {
		return Value{}, err
	}
	rhs, err := k.genExpr(n.Right)
	if err != nil {
		return Value{}, err
	}
	_, lt, err := lhs.loadUncast(k.builder())
	if err != nil {
		return Value{}, err
	}
	_, rt, err := rhs.loadUncast(k.builder())
	if err != nil {
		return Value{}, err
	}
	mt := maxType(lt, rt)
	l, err := lhs.Load(mt, k.builder())
	if err != nil {
		return Value{}, err
	}
	r, err := rhs.Load(mt, k.builder())
	if err != nil {
		return Value{}, err
	}
	isFloat := mt.IsFloat()

	switch n.Op {
	case ast.BinAdd:
		op := ir.OpAdd
		if isFloat {
			op = ir.OpFAdd
		}
		i := k.builder().BinOp(op, l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.BinSub:
		op := ir.OpSub
		if isFloat {
			op = ir.OpFSub
		}
		i := k.builder().BinOp(op, l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.BinMul:
		op := ir.OpMul
		if isFloat {
			op = ir.OpFMul
		}
		i := k.builder().BinOp(op, l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.BinDiv:
		op := ir.OpSDiv
		if isFloat {
			op = ir.OpFDiv
		}
		i := k.builder().BinOp(op, l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.BinMod:
		if isFloat {
			return Value{}, fmt.Errorf("irgen: modulo on float operands is not supported")
		}
		i := k.builder().BinOp(ir.OpSRem, l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe, ast.BinEq, ast.BinNe:
		if isFloat {
			i := k.builder().FCmp(floatCmpPred[n.Op], l, r)
			return ReadOnly(ir.OperandFromInstruction(i)), nil
		}
		i := k.builder().ICmp(intCmpPred[n.Op], l, r)
		return ReadOnly(ir.OperandFromInstruction(i)), nil
	default:
		return Value{}, fmt.Errorf("irgen: unsupported binary operator")
	}
}

// genLogical lowers short-circuit && / || to a diamond with a final phi,
// evaluating the right operand only when it can affect the result
// (spec.md §4.2 "&&/|| short-circuit").
func (k *FunctionKit) genLogical(op ast.BinaryOp, n *ast.BinaryExpr) (Value, error) {
	lhs, err := k.genExpr(n.Left)
	if err != nil {
		return Value{}, err
	}
	lhsOp, err := lhs.Load(ir.Bool, k.builder())
	if err != nil {
		return Value{}, err
	}
	startBB := k.open

	rhsBB := k.newBlock("rhs")
	finalBB := k.newBlock("final")
	if op == ast.BinAnd {
		k.builder().CondBr(lhsOp, rhsBB, finalBB)
	} else {
		k.builder().CondBr(lhsOp, finalBB, rhsBB)
	}

	k.setInsert(rhsBB)
	rhs, err := k.genExpr(n.Right)
	if err != nil {
		return Value{}, err
	}
	rhsOp, err := rhs.Load(ir.Bool, k.builder())
	if err != nil {
		return Value{}, err
	}
	rhsEndBB := k.open
	if rhsEndBB != nil {
		k.builder().Jump(finalBB)
	}

	k.setInsert(finalBB)
	phi := k.builder().Phi(ir.Bool)
	phi.AddPhiIncoming(startBB, ir.OperandFromConstant(ir.ConstB(op == ast.BinOr)))
	if rhsEndBB != nil {
		phi.AddPhiIncoming(rhsEndBB, rhsOp)
	}
	return ReadOnly(ir.OperandFromInstruction(phi)), nil
}

// genCallExpr lowers a call, special-casing the three library functions
// whose argument lists aren't plain user expressions (spec.md §4.2
// "starttime/stoptime receive the call-site line; putf's first argument
// is a format-string literal").
func (k *FunctionKit) genCallExpr(n *ast.CallExpr) (Value, error) {
	switch n.Callee {
	case "starttime", "stoptime":
		fn, _ := k.shared.prog.Module.Function(n.Callee)
		line := ir.OperandFromConstant(ir.ConstI(int32(n.Line)))
		call := k.builder().Call(fn, []ir.Operand{line})
		return ReadOnly(ir.OperandFromInstruction(call)), nil
	case "putf":
		return k.genPutf(n)
	}

	fn, ok := k.shared.prog.Module.Function(n.Callee)
	if !ok {
		return Value{}, fmt.Errorf("irgen: call to undeclared function %q", n.Callee)
	}
	args := make([]ir.Operand, len(n.Args))
	for i, a := range n.Args {
		v, err := k.genExpr(a)
		if err != nil {
			return Value{}, err
		}
		if i < len(fn.Params) {
			op, err := v.Load(fn.Params[i].Type, k.builder())
			if err != nil {
				return Value{}, err
			}
			args[i] = op
			continue
		}
		op, _, err := v.loadUncast(k.builder())
		if err != nil {
			return Value{}, err
		}
		args[i] = op
	}
	call := k.builder().Call(fn, args)
	if fn.ReturnType.IsVoid() {
		return Value{}, nil
	}
	return ReadOnly(ir.OperandFromInstruction(call)), nil
}

// genPutf emits the format-string global once per call site and forwards
// the remaining arguments uncast (spec.md §4.2; putf's tail is variadic).
func (k *FunctionKit) genPutf(n *ast.CallExpr) (Value, error) {
	if len(n.Args) == 0 {
		return Value{}, fmt.Errorf("irgen: putf requires a format string argument")
	}
	lit, ok := n.Args[0].(*ast.StringExpr)
	if !ok {
		return Value{}, fmt.Errorf("irgen: putf's first argument must be a string literal")
	}
	fmtPtr, err := k.emitFormatString(lit.Value)
	if err != nil {
		return Value{}, err
	}
	fn, _ := k.shared.prog.Module.Function("putf")
	args := make([]ir.Operand, 0, len(n.Args))
	args = append(args, fmtPtr)
	for _, a := range n.Args[1:] {
		v, err := k.genExpr(a)
		if err != nil {
			return Value{}, err
		}
		op, _, err := v.loadUncast(k.builder())
		if err != nil {
			return Value{}, err
		}
		args = append(args, op)
	}
	k.builder().Call(fn, args)
	return Value{}, nil
}

// emitFormatString adds a read-only byte-array global holding s plus a
// null terminator and returns a pointer to its first element.
func (k *FunctionKit) emitFormatString(s string) (ir.Operand, error) {
	bytes := []byte(s)
	elems := make([]ir.Constant, len(bytes)+1)
	for i, c := range bytes {
		elems[i] = ir.ConstC(int8(c))
	}
	elems[len(bytes)] = ir.ConstC(0)
	t := ir.ArrayOf(ir.SignedChar, len(elems))
	name := fmt.Sprintf("%s.%s", k.shared.fn.Name, k.uniqueName("format"))
	g := &ir.GlobalVariable{Name: name, Type: t, Init: ir.ConstArr(elems)}
	k.shared.prog.Module.AddGlobal(g)
	arr := ReadWrite(ir.OperandFromGlobal(g))
	op, _, err := arr.loadUncast(k.builder())
	return op, err
}
