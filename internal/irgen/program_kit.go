package irgen

import (
	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// ProgramKit generates the global scope: variable declarations and
// function bodies, threading the resulting global environment into every
// FunctionKit it spawns (spec.md §4.2's program_kit.rs).
type ProgramKit struct {
	prog *ir.Program

	globalEnv   map[string]Value
	globalConst map[string]ir.Constant
}

func newProgramKit(prog *ir.Program) *ProgramKit {
	return &ProgramKit{
		prog:        prog,
		globalEnv:   make(map[string]Value),
		globalConst: make(map[string]ir.Constant),
	}
}

func (p *ProgramKit) genGlobalDecl(d *ast.VarDecl) error {
	for _, item := range d.Items {
		if err := p.genGlobalVarItem(d.Const, item); err != nil {
			return err
		}
	}
	return nil
}

// genGlobalVarItem folds the initializer at compile time — spec.md §4.2
// requires every global initializer to be a constant expression — and
// registers the resulting GlobalVariable. Scalar consts are additionally
// remembered in globalConst so later const declarations and array
// dimensions can reference them.
func (p *ProgramKit) genGlobalVarItem(isConst bool, item ast.VarItem) error {
	t := irType(item.Type)
	var init ir.Constant
	if item.Init != nil {
		c, err := p.evalInit(item.Type, item.Init)
		if err != nil {
			return err
		}
		init = c
	} else {
		init = defaultConstant(t)
	}
	g := &ir.GlobalVariable{Name: item.Name, Type: t, Mutable: !isConst, Init: init}
	p.prog.Module.AddGlobal(g)
	p.globalEnv[item.Name] = ReadWrite(ir.OperandFromGlobal(g))
	if isConst && item.Type.Kind != ast.TypeArray {
		p.globalConst[item.Name] = init
	}
	return nil
}

// evalInit reshapes an array initializer to the declared dimensions before
// folding, and folds a scalar initializer directly.
func (p *ProgramKit) evalInit(t ast.Type, init ast.Expr) (ir.Constant, error) {
	if t.Kind == ast.TypeArray {
		items := flattenInit(init)
		tree := reshape(&items, t.Dims, t.Elem.Kind)
		return evalConstExpr(tree, p.globalConst)
	}
	return evalConstExpr(init, p.globalConst)
}

// genFuncDecl declares fn's signature and, for a defined (non-library)
// function, lowers its body.
func (p *ProgramKit) genFuncDecl(d *ast.FuncDecl) error {
	params := make([]*ir.Parameter, len(d.Params))
	for i, prm := range d.Params {
		params[i] = &ir.Parameter{Name: prm.Name, Type: irType(prm.Type), Index: i}
	}
	retType := irType(d.Ret)
	fn := p.prog.NewFunction(d.Name, retType, params, d.Body == nil)
	if d.Body == nil {
		return nil
	}
	return p.genFunctionBody(fn, retType, d)
}

// genFunctionBody builds the entry block (parameter storage, optional
// return-value slot), lowers every top-level statement, and wires the
// single exit block that loads and returns (spec.md §4.2 "Return": "a
// single return-value stack slot in entry; return statements store into it
// and branch to a single exit block that loads and returns").
func (p *ProgramKit) genFunctionBody(fn *ir.Function, retType ir.ValueType, d *ast.FuncDecl) error {
	b := ir.NewBuilder(p.prog)
	b.SetFunction(fn)
	entryBB := fn.NewBlock("entry")
	b.SetInsertPoint(entryBB)

	var retSlotOp *ir.Operand
	if !retType.IsVoid() {
		slot := b.Alloca(retType)
		op := ir.OperandFromInstruction(slot)
		retSlotOp = &op
	}
	exitBB := fn.NewBlock("exit")
	fn.SetExit(exitBB)

	fk := newFunctionKit(p.prog, fn, retType, retSlotOp, exitBB, p.globalEnv, p.globalConst)
	fk.setInsert(entryBB)

	for i, prm := range d.Params {
		pt := irType(prm.Type)
		slot := fk.builder().Alloca(pt)
		ptrOp := ir.OperandFromInstruction(slot)
		fk.builder().Store(ir.OperandFromParameter(fn.Params[i]), ptrOp)
		fk.define(prm.Name, ReadWrite(ptrOp))
	}

	for _, stmt := range d.Body {
		if fk.open == nil {
			break
		}
		if err := fk.genStmt(stmt); err != nil {
			return err
		}
	}
	if fk.open != nil {
		fk.builder().Jump(exitBB)
	}

	b.SetInsertPoint(exitBB)
	if retSlotOp != nil {
		loaded := b.Load(*retSlotOp)
		retOp := ir.OperandFromInstruction(loaded)
		b.Ret(&retOp)
	} else {
		b.Ret(nil)
	}
	return nil
}
