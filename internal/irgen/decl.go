package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// genInnerDecl lowers a block-scoped declaration (spec.md §4.2 "local
// declarations"). Only VarDecl can appear inside a function body; nested
// FuncDecl is rejected by the grammar upstream.
func (k *FunctionKit) genInnerDecl(d ast.Decl) error {
	vd, ok := d.(*ast.VarDecl)
	if !ok {
		return fmt.Errorf("irgen: unsupported inner declaration %T", d)
	}
	for _, item := range vd.Items {
		if err := k.genLocalVarItem(vd.Const, item); err != nil {
			return err
		}
	}
	return nil
}

// currentConstEnv flattens the scope stack into one map for evalConstExpr,
// innermost scope winning on shadowed names.
func (k *FunctionKit) currentConstEnv() map[string]ir.Constant {
	merged := make(map[string]ir.Constant)
	for _, scope := range k.constEnv {
		for name, c := range scope {
			merged[name] = c
		}
	}
	return merged
}

func (k *FunctionKit) genLocalVarItem(isConst bool, item ast.VarItem) error {
	t := irType(item.Type)
	if item.Type.Kind == ast.TypeArray {
		return k.genLocalArrayItem(t, item)
	}

	if isConst {
		if item.Init == nil {
			return fmt.Errorf("irgen: const %q requires an initializer", item.Name)
		}
		c, err := evalConstExpr(item.Init, k.currentConstEnv())
		if err != nil {
			return err
		}
		k.defineConst(item.Name, c)
		k.define(item.Name, ReadOnly(ir.OperandFromConstant(c)))
		return nil
	}

	alloca := k.builder().Alloca(t)
	v := ReadWrite(ir.OperandFromInstruction(alloca))
	k.define(item.Name, v)
	if item.Init != nil {
		val, err := k.genExpr(item.Init)
		if err != nil {
			return err
		}
		if err := v.Assign(k.builder(), val); err != nil {
			return err
		}
	}
	return nil
}

// genLocalArrayItem allocates backing storage for a local array, zeroes it
// with a memset call, and then stores only the non-default leaves of the
// reshaped initializer tree (spec.md §4.2 "backing storage is
// zero-initialized via a memset call; literal elements follow as
// individual stores").
func (k *FunctionKit) genLocalArrayItem(t ir.ValueType, item ast.VarItem) error {
	alloca := k.builder().Alloca(t)
	v := ReadWrite(ir.OperandFromInstruction(alloca))
	k.define(item.Name, v)

	if err := k.zeroFill(ir.OperandFromInstruction(alloca), t); err != nil {
		return err
	}
	if item.Init == nil {
		return nil
	}

	items := flattenInit(item.Init)
	tree := reshape(&items, item.Type.Dims, item.Type.Elem.Kind)
	return k.storeArrayTree(v, tree)
}

// flattenInit turns an initializer expression into the flat deque reshape
// expects: the top-level elements of a brace list, or a single-element
// deque for a bare scalar initializer.
func flattenInit(e ast.Expr) []ast.Expr {
	if il, ok := e.(*ast.InitList); ok {
		return append([]ast.Expr(nil), il.Elems...)
	}
	return []ast.Expr{e}
}

// storeArrayTree walks a reshaped initializer tree, recursing through
// nested InitLists and descending v by one GEP level per dimension.
func (k *FunctionKit) storeArrayTree(v Value, node ast.Expr) error {
	il, ok := node.(*ast.InitList)
	if !ok {
		return k.storeArrayLeaf(v, node)
	}
	for i, elem := range il.Elems {
		sub, err := v.GetElementPtr(k.builder(), ir.OperandFromConstant(ir.ConstI(int32(i))))
		if err != nil {
			return err
		}
		if err := k.storeArrayTree(sub, elem); err != nil {
			return err
		}
	}
	return nil
}

// storeArrayLeaf skips leaves that fold to the element's zero value, since
// the preceding memset already cleared them.
func (k *FunctionKit) storeArrayLeaf(v Value, leaf ast.Expr) error {
	if c, err := evalConstExpr(leaf, k.currentConstEnv()); err == nil && c.IsZeroValue() {
		return nil
	}
	val, err := k.genExpr(leaf)
	if err != nil {
		return err
	}
	return v.Assign(k.builder(), val)
}

// zeroFill clears t's storage at ptr via the llvm.memset.p0.i32 library
// call, reinterpreting the pointer as i8* with a zero-offset GEP since the
// mid-IR has no dedicated pointer-cast instruction.
func (k *FunctionKit) zeroFill(ptr ir.Operand, t ir.ValueType) error {
	fn, ok := k.shared.prog.Module.Function("llvm.memset.p0.i32")
	if !ok {
		return fmt.Errorf("irgen: memset runtime function not registered")
	}
	cast := k.builder().GEP(ptr, ir.SignedChar, []ir.Operand{ir.OperandFromConstant(ir.ConstI(0))})
	args := []ir.Operand{
		ir.OperandFromInstruction(cast),
		ir.OperandFromConstant(ir.ConstC(0)),
		ir.OperandFromConstant(ir.ConstI(int32(t.Size()))),
	}
	k.builder().Call(fn, args)
	return nil
}
