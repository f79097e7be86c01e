package irgen

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
	"github.com/dusk-phantom/sysyc/internal/ir"
)

// sharedState is the per-function state every nested FunctionKit shares:
// the builder, the name counter, and the single exit block (spec.md §4.2
// "FunctionKit: per-function: environment stack, exit-block pointer,
// break_to/continue_to targets, return routing").
type sharedState struct {
	prog       *ir.Program
	b          *ir.Builder
	fn         *ir.Function
	counter    int
	returnType ir.ValueType
	retSlot    *ir.Operand // nil for void functions
	exitBB     *ir.BasicBlock
}

// FunctionKit translates one function body. A new FunctionKit is derived
// (via derive) for every nested scope — if/while/do-while branches — so
// that break_to/continue_to and the environment stack are scoped exactly
// to where the original grammar allows them, while counter/exit-routing
// are shared across the whole function.
type FunctionKit struct {
	shared *sharedState

	env      []map[string]Value
	constEnv []map[string]ir.Constant

	breakTo, continueTo *ir.BasicBlock

	// open is the block statements are currently appended to; nil means
	// control has already left this point (after break/continue/return),
	// matching spec.md §4.2 "on their appearance the current exit pointer
	// is nulled, preventing further appending".
	open *ir.BasicBlock
}

// newFunctionKit starts generation of fn's body at entry.
func newFunctionKit(prog *ir.Program, fn *ir.Function, returnType ir.ValueType, retSlot *ir.Operand, exitBB *ir.BasicBlock, globalEnv map[string]Value, globalConst map[string]ir.Constant) *FunctionKit {
	b := ir.NewBuilder(prog)
	b.SetFunction(fn)
	return &FunctionKit{
		shared: &sharedState{
			prog:       prog,
			b:          b,
			fn:         fn,
			returnType: returnType,
			retSlot:    retSlot,
			exitBB:     exitBB,
		},
		env:      []map[string]Value{globalEnv},
		constEnv: []map[string]ir.Constant{globalConst},
	}
}

// derive produces a nested kit for a sub-block (if/while/do-while body),
// inheriting the environment and sharing function-wide state, per
// spec.md §4.2's gen_function_kit pattern of threading break_to/
// continue_to explicitly rather than globally.
func (k *FunctionKit) derive(open *ir.BasicBlock, breakTo, continueTo *ir.BasicBlock) *FunctionKit {
	return &FunctionKit{
		shared:     k.shared,
		env:        append(k.env, map[string]Value{}),
		constEnv:   append(k.constEnv, map[string]ir.Constant{}),
		breakTo:    breakTo,
		continueTo: continueTo,
		open:       open,
	}
}

func (k *FunctionKit) uniqueName(base string) string {
	k.shared.counter++
	return fmt.Sprintf("%s%d", base, k.shared.counter)
}

func (k *FunctionKit) newBlock(name string) *ir.BasicBlock {
	return k.shared.fn.NewBlock(k.uniqueName(name))
}

func (k *FunctionKit) setInsert(bb *ir.BasicBlock) {
	k.open = bb
	if bb != nil {
		k.shared.b.SetInsertPoint(bb)
	}
}

func (k *FunctionKit) builder() *ir.Builder { return k.shared.b }

// define binds name in the innermost scope.
func (k *FunctionKit) define(name string, v Value) {
	k.env[len(k.env)-1][name] = v
}

func (k *FunctionKit) defineConst(name string, c ir.Constant) {
	k.constEnv[len(k.constEnv)-1][name] = c
}

// lookup searches the environment stack from innermost to outermost.
func (k *FunctionKit) lookup(name string) (Value, bool) {
	for i := len(k.env) - 1; i >= 0; i-- {
		if v, ok := k.env[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (k *FunctionKit) lookupConst(name string) (ir.Constant, bool) {
	for i := len(k.constEnv) - 1; i >= 0; i-- {
		if c, ok := k.constEnv[i][name]; ok {
			return c, true
		}
	}
	return ir.Constant{}, false
}

// genStmt generates one statement, matching the dispatch in spec.md §4.2/
// §6.4 and the control-flow block-naming convention cond<N>/then<N>/
// alt<N>/body<N>/final<N>.
func (k *FunctionKit) genStmt(s ast.Stmt) error {
	if k.open == nil {
		return fmt.Errorf("irgen: unreachable statement after break/continue/return")
	}
	switch n := s.(type) {
	case *ast.EmptyStmt:
		return nil
	case *ast.DeclStmt:
		return k.genInnerDecl(n.Decl)
	case *ast.ExprStmt:
		_, err := k.genExpr(n.Expr)
		return err
	case *ast.AssignStmt:
		lhs, err := k.genExpr(n.Target)
		if err != nil {
			return err
		}
		rhs, err := k.genExpr(n.Value)
		if err != nil {
			return err
		}
		return lhs.Assign(k.builder(), rhs)
	case *ast.IfStmt:
		return k.genIf(n)
	case *ast.WhileStmt:
		return k.genWhile(n)
	case *ast.DoWhileStmt:
		return k.genDoWhile(n)
	case *ast.BreakStmt:
		return k.genBreak()
	case *ast.ContinueStmt:
		return k.genContinue()
	case *ast.ReturnStmt:
		return k.genReturn(n)
	case *ast.BlockStmt:
		return k.genBlock(n)
	default:
		return fmt.Errorf("irgen: unsupported statement %T", s)
	}
}

func (k *FunctionKit) genBlock(n *ast.BlockStmt) error {
	inner := k.derive(k.open, k.breakTo, k.continueTo)
	for _, stmt := range n.Stmts {
		if inner.open == nil {
			break
		}
		if err := inner.genStmt(stmt); err != nil {
			return err
		}
	}
	k.setInsert(inner.open)
	return nil
}

// genIf lowers `if (cond) then [else alt]` to the cond/then/alt/final
// diamond (spec.md §4.2 "Control flow").
func (k *FunctionKit) genIf(n *ast.IfStmt) error {
	condBB := k.newBlock("cond")
	thenBB := k.newBlock("then")
	altBB := k.newBlock("alt")
	finalBB := k.newBlock("final")

	k.builder().Jump(condBB)

	k.setInsert(condBB)
	cond, err := k.genExpr(n.Cond)
	if err != nil {
		return err
	}
	condOp, err := cond.Load(ir.Bool, k.builder())
	if err != nil {
		return err
	}
	k.builder().CondBr(condOp, thenBB, altBB)

	thenKit := k.derive(thenBB, k.breakTo, k.continueTo)
	thenKit.builder().SetInsertPoint(thenBB)
	if err := thenKit.genStmt(n.Then); err != nil {
		return err
	}
	if thenKit.open != nil {
		thenKit.builder().Jump(finalBB)
	}

	altKit := k.derive(altBB, k.breakTo, k.continueTo)
	altKit.builder().SetInsertPoint(altBB)
	if n.Else != nil {
		if err := altKit.genStmt(n.Else); err != nil {
			return err
		}
	}
	if altKit.open != nil {
		altKit.builder().Jump(finalBB)
	}

	k.setInsert(finalBB)
	return nil
}

// genWhile lowers `while (cond) body` to cond/body/final with break_to =
// final, continue_to = cond (spec.md §4.2).
func (k *FunctionKit) genWhile(n *ast.WhileStmt) error {
	condBB := k.newBlock("cond")
	bodyBB := k.newBlock("body")
	finalBB := k.newBlock("final")

	k.builder().Jump(condBB)

	bodyKit := k.derive(bodyBB, finalBB, condBB)
	bodyKit.builder().SetInsertPoint(bodyBB)
	if err := bodyKit.genStmt(n.Body); err != nil {
		return err
	}
	if bodyKit.open != nil {
		bodyKit.builder().Jump(condBB)
	}

	k.setInsert(condBB)
	cond, err := k.genExpr(n.Cond)
	if err != nil {
		return err
	}
	condOp, err := cond.Load(ir.Bool, k.builder())
	if err != nil {
		return err
	}
	k.builder().CondBr(condOp, bodyBB, finalBB)

	k.setInsert(finalBB)
	return nil
}

// genDoWhile lowers `do body while (cond)` to body/cond/final with
// break_to = final, continue_to = cond.
func (k *FunctionKit) genDoWhile(n *ast.DoWhileStmt) error {
	bodyBB := k.newBlock("body")
	condBB := k.newBlock("cond")
	finalBB := k.newBlock("final")

	k.builder().Jump(bodyBB)

	bodyKit := k.derive(bodyBB, finalBB, condBB)
	bodyKit.builder().SetInsertPoint(bodyBB)
	if err := bodyKit.genStmt(n.Body); err != nil {
		return err
	}
	if bodyKit.open != nil {
		bodyKit.builder().Jump(condBB)
	}

	k.setInsert(condBB)
	cond, err := k.genExpr(n.Cond)
	if err != nil {
		return err
	}
	condOp, err := cond.Load(ir.Bool, k.builder())
	if err != nil {
		return err
	}
	k.builder().CondBr(condOp, bodyBB, finalBB)

	k.setInsert(finalBB)
	return nil
}

func (k *FunctionKit) genBreak() error {
	if k.breakTo == nil {
		return fmt.Errorf("irgen: break without an enclosing loop")
	}
	k.builder().Jump(k.breakTo)
	k.open = nil
	return nil
}

func (k *FunctionKit) genContinue() error {
	if k.continueTo == nil {
		return fmt.Errorf("irgen: continue without an enclosing loop")
	}
	k.builder().Jump(k.continueTo)
	k.open = nil
	return nil
}

// genReturn stores into the function's single return slot (if non-void)
// and branches to the single exit block, per spec.md §4.2 "Return".
func (k *FunctionKit) genReturn(n *ast.ReturnStmt) error {
	if k.shared.retSlot != nil {
		if n.Value == nil {
			return fmt.Errorf("irgen: missing return value in non-void function")
		}
		v, err := k.genExpr(n.Value)
		if err != nil {
			return err
		}
		op, err := v.Load(k.shared.returnType, k.builder())
		if err != nil {
			return err
		}
		k.builder().Store(op, *k.shared.retSlot)
	} else if n.Value != nil {
		return fmt.Errorf("irgen: return value in void function")
	}
	k.builder().Jump(k.shared.exitBB)
	k.open = nil
	return nil
}
