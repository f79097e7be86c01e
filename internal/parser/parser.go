package parser

import (
	"fmt"

	"github.com/dusk-phantom/sysyc/internal/ast"
)

// Parse turns SysY source text into an ast.Program. file is used in
// diagnostics only. Parse failures are user errors (spec.md §7 kind 1).
func Parse(src, file string) (*ast.Program, error) {
	p := &parser{lex: newLexer(src, file)}
	p.pushScope()
	if err := p.advance(); err != nil {
		return nil, err
	}
	prog := &ast.Program{}
	for p.tok.kind != tokEOF {
		d, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		prog.Decls = append(prog.Decls, d)
	}
	return prog, nil
}

type parser struct {
	lex *lexer
	tok token

	// constScopes tracks scalar integer constants visible at the current
	// point, so array dimensions fold at parse time the way the AST
	// contract expects (ast.VarItem.Type "already folded with any array
	// dimensions").
	constScopes []map[string]int32
}

func (p *parser) pushScope() {
	p.constScopes = append(p.constScopes, make(map[string]int32))
}

func (p *parser) popScope() {
	p.constScopes = p.constScopes[:len(p.constScopes)-1]
}

func (p *parser) defineConst(name string, v int32) {
	p.constScopes[len(p.constScopes)-1][name] = v
}

func (p *parser) lookupConst(name string) (int32, bool) {
	for i := len(p.constScopes) - 1; i >= 0; i-- {
		if v, ok := p.constScopes[i][name]; ok {
			return v, true
		}
	}
	return 0, false
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", p.lex.file, p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) at(kind tokenKind, text string) bool {
	return p.tok.kind == kind && p.tok.text == text
}

func (p *parser) accept(kind tokenKind, text string) (bool, error) {
	if !p.at(kind, text) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) expect(kind tokenKind, text string) error {
	if !p.at(kind, text) {
		return p.errorf("expected %q, found %q", text, p.tok.text)
	}
	return p.advance()
}

// parseTopLevel distinguishes a function definition from a variable
// declaration: both start with a base type, so the decision is made after
// the identifier (a following '(' means function).
func (p *parser) parseTopLevel() (ast.Decl, error) {
	if p.at(tokKeyword, "const") {
		return p.parseVarDecl()
	}
	if !p.atBaseType() && !p.at(tokKeyword, "void") {
		return nil, p.errorf("expected declaration, found %q", p.tok.text)
	}
	retTok := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected identifier after %q", retTok)
	}
	name := p.tok.text
	line := p.tok.line
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.at(tokPunct, "(") {
		return p.parseFuncDecl(retTok, name, line)
	}
	if retTok == "void" {
		return nil, p.errorf("void is only valid as a function return type")
	}
	return p.parseVarDeclTail(false, baseType(retTok), name)
}

func (p *parser) atBaseType() bool {
	return p.at(tokKeyword, "int") || p.at(tokKeyword, "float")
}

func baseType(name string) ast.Type {
	if name == "float" {
		return ast.Float32
	}
	return ast.Int32
}

// parseVarDecl parses `('const')? BType VarDef (',' VarDef)* ';'` from the
// leading keyword.
func (p *parser) parseVarDecl() (*ast.VarDecl, error) {
	isConst, err := p.accept(tokKeyword, "const")
	if err != nil {
		return nil, err
	}
	if !p.atBaseType() {
		return nil, p.errorf("expected type, found %q", p.tok.text)
	}
	base := baseType(p.tok.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected identifier, found %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseVarDeclTail(isConst, base, name)
}

// parseVarDeclTail continues after the first item's name.
func (p *parser) parseVarDeclTail(isConst bool, base ast.Type, firstName string) (*ast.VarDecl, error) {
	d := &ast.VarDecl{Const: isConst}
	name := firstName
	for {
		item, err := p.parseVarItem(isConst, base, name)
		if err != nil {
			return nil, err
		}
		d.Items = append(d.Items, item)
		more, err := p.accept(tokPunct, ",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if p.tok.kind != tokIdent {
			return nil, p.errorf("expected identifier, found %q", p.tok.text)
		}
		name = p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return d, p.expect(tokPunct, ";")
}

func (p *parser) parseVarItem(isConst bool, base ast.Type, name string) (ast.VarItem, error) {
	var dims []int
	for p.at(tokPunct, "[") {
		if err := p.advance(); err != nil {
			return ast.VarItem{}, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return ast.VarItem{}, err
		}
		n, err := p.evalConstInt(e)
		if err != nil {
			return ast.VarItem{}, err
		}
		if n < 0 {
			return ast.VarItem{}, p.errorf("array dimension must be non-negative")
		}
		dims = append(dims, int(n))
		if err := p.expect(tokPunct, "]"); err != nil {
			return ast.VarItem{}, err
		}
	}
	t := base
	if len(dims) > 0 {
		t = ast.ArrayOf(base, dims)
	}

	item := ast.VarItem{Name: name, Type: t}
	if ok, err := p.accept(tokPunct, "="); err != nil {
		return ast.VarItem{}, err
	} else if ok {
		init, err := p.parseInitVal()
		if err != nil {
			return ast.VarItem{}, err
		}
		item.Init = init
	} else if isConst {
		return ast.VarItem{}, p.errorf("const declaration of %q requires an initializer", name)
	}

	// Scalar integer consts join the fold environment so later dimensions
	// can reference them.
	if isConst && len(dims) == 0 && base.Kind == ast.TypeInt {
		if v, err := p.evalConstInt(item.Init); err == nil {
			p.defineConst(name, v)
		}
	}
	return item, nil
}

func (p *parser) parseInitVal() (ast.Expr, error) {
	if !p.at(tokPunct, "{") {
		return p.parseExpr()
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	list := &ast.InitList{}
	if p.at(tokPunct, "}") {
		return list, p.advance()
	}
	for {
		e, err := p.parseInitVal()
		if err != nil {
			return nil, err
		}
		list.Elems = append(list.Elems, e)
		more, err := p.accept(tokPunct, ",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return list, p.expect(tokPunct, "}")
}

func (p *parser) parseFuncDecl(retTok, name string, line int) (*ast.FuncDecl, error) {
	ret := ast.Void
	if retTok != "void" {
		ret = baseType(retTok)
	}
	if err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(tokPunct, ")") {
		prm, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, prm)
		more, err := p.accept(tokPunct, ",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if err := p.expect(tokPunct, ")"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, Ret: ret, Params: params, Body: body.Stmts, Line: line}, nil
}

// parseParam parses `BType Ident ('[' ']' ('[' ConstExp ']')*)?`; the
// leading empty bracket decays the parameter to a pointer over the
// remaining dimensions (spec.md §4.2 "Pointers from arrays").
func (p *parser) parseParam() (ast.Param, error) {
	if !p.atBaseType() {
		return ast.Param{}, p.errorf("expected parameter type, found %q", p.tok.text)
	}
	base := baseType(p.tok.text)
	if err := p.advance(); err != nil {
		return ast.Param{}, err
	}
	if p.tok.kind != tokIdent {
		return ast.Param{}, p.errorf("expected parameter name, found %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return ast.Param{}, err
	}
	if !p.at(tokPunct, "[") {
		return ast.Param{Name: name, Type: base}, nil
	}
	if err := p.advance(); err != nil {
		return ast.Param{}, err
	}
	if err := p.expect(tokPunct, "]"); err != nil {
		return ast.Param{}, err
	}
	var dims []int
	for p.at(tokPunct, "[") {
		if err := p.advance(); err != nil {
			return ast.Param{}, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return ast.Param{}, err
		}
		n, err := p.evalConstInt(e)
		if err != nil {
			return ast.Param{}, err
		}
		dims = append(dims, int(n))
		if err := p.expect(tokPunct, "]"); err != nil {
			return ast.Param{}, err
		}
	}
	elem := base
	if len(dims) > 0 {
		elem = ast.ArrayOf(base, dims)
	}
	return ast.Param{Name: name, Type: ast.PointerTo(elem)}, nil
}

func (p *parser) parseBlock() (*ast.BlockStmt, error) {
	if err := p.expect(tokPunct, "{"); err != nil {
		return nil, err
	}
	p.pushScope()
	defer p.popScope()
	blk := &ast.BlockStmt{}
	for !p.at(tokPunct, "}") {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("unexpected end of file in block")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, s)
	}
	return blk, p.advance()
}

func (p *parser) parseStmt() (ast.Stmt, error) {
	switch {
	case p.at(tokKeyword, "const") || p.atBaseType():
		d, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		return &ast.DeclStmt{Decl: d}, nil
	case p.at(tokPunct, "{"):
		return p.parseBlock()
	case p.at(tokKeyword, "if"):
		return p.parseIf()
	case p.at(tokKeyword, "while"):
		return p.parseWhile()
	case p.at(tokKeyword, "do"):
		return p.parseDoWhile()
	case p.at(tokKeyword, "break"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{}, p.expect(tokPunct, ";")
	case p.at(tokKeyword, "continue"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{}, p.expect(tokPunct, ";")
	case p.at(tokKeyword, "return"):
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.accept(tokPunct, ";"); err != nil {
			return nil, err
		} else if ok {
			return &ast.ReturnStmt{Line: line}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Value: e, Line: line}, p.expect(tokPunct, ";")
	case p.at(tokPunct, ";"):
		return &ast.EmptyStmt{}, p.advance()
	}

	// Expression or assignment: parse the expression first, then decide on
	// a following '='.
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokPunct, "="); err != nil {
		return nil, err
	} else if ok {
		switch e.(type) {
		case *ast.VarExpr, *ast.IndexExpr:
		default:
			return nil, p.errorf("assignment target is not an lvalue")
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Target: e, Value: v}, p.expect(tokPunct, ";")
	}
	return &ast.ExprStmt{Expr: e}, p.expect(tokPunct, ";")
}

func (p *parser) parseIf() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, ")"); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	node := &ast.IfStmt{Cond: cond, Then: then}
	if ok, err := p.accept(tokKeyword, "else"); err != nil {
		return nil, err
	} else if ok {
		node.Else, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *parser) parseWhile() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, ")"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body}, nil
}

func (p *parser) parseDoWhile() (ast.Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokKeyword, "while"); err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, "("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokPunct, ")"); err != nil {
		return nil, err
	}
	return &ast.DoWhileStmt{Body: body, Cond: cond}, p.expect(tokPunct, ";")
}

// Expression precedence climbing: || < && < ==/!= < relational < additive
// < multiplicative < unary < primary.
var binLevels = []map[string]ast.BinaryOp{
	{"||": ast.BinOr},
	{"&&": ast.BinAnd},
	{"==": ast.BinEq, "!=": ast.BinNe},
	{"<": ast.BinLt, "<=": ast.BinLe, ">": ast.BinGt, ">=": ast.BinGe},
	{"+": ast.BinAdd, "-": ast.BinSub},
	{"*": ast.BinMul, "/": ast.BinDiv, "%": ast.BinMod},
}

func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(level int) (ast.Expr, error) {
	if level >= len(binLevels) {
		return p.parseUnary()
	}
	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		if p.tok.kind != tokPunct {
			return lhs, nil
		}
		op, ok := binLevels[level][p.tok.text]
		if !ok {
			return lhs, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{Op: op, Left: lhs, Right: rhs}
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.tok.kind == tokPunct {
		var op ast.UnaryOp
		switch p.tok.text {
		case "+":
			op = ast.UnaryPos
		case "-":
			op = ast.UnaryNeg
		case "!":
			op = ast.UnaryNot
		default:
			return p.parsePrimary()
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.kind {
	case tokIntLit:
		e := &ast.IntExpr{Value: p.tok.ival}
		return e, p.advance()
	case tokFloatLit:
		e := &ast.FloatExpr{Value: p.tok.fval}
		return e, p.advance()
	case tokString:
		e := &ast.StringExpr{Value: p.tok.text}
		return e, p.advance()
	case tokIdent:
		name := p.tok.text
		line := p.tok.line
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.at(tokPunct, "(") {
			return p.parseCallArgs(name, line)
		}
		var e ast.Expr = &ast.VarExpr{Name: name}
		for p.at(tokPunct, "[") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokPunct, "]"); err != nil {
				return nil, err
			}
			e = &ast.IndexExpr{Base: e, Index: idx}
		}
		return e, nil
	case tokPunct:
		if p.tok.text == "(" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return e, p.expect(tokPunct, ")")
		}
	}
	return nil, p.errorf("expected expression, found %q", p.tok.text)
}

func (p *parser) parseCallArgs(name string, line int) (ast.Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	call := &ast.CallExpr{Callee: name, Line: line}
	if p.at(tokPunct, ")") {
		return call, p.advance()
	}
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, a)
		more, err := p.accept(tokPunct, ",")
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return call, p.expect(tokPunct, ")")
}

// evalConstInt folds an integer constant expression against the visible
// const environment, for array dimensions (user error on failure,
// spec.md §7 kind 1).
func (p *parser) evalConstInt(e ast.Expr) (int32, error) {
	switch n := e.(type) {
	case *ast.IntExpr:
		return n.Value, nil
	case *ast.VarExpr:
		if v, ok := p.lookupConst(n.Name); ok {
			return v, nil
		}
		return 0, p.errorf("%q is not an integer constant", n.Name)
	case *ast.UnaryExpr:
		v, err := p.evalConstInt(n.Operand)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case ast.UnaryNeg:
			return -v, nil
		case ast.UnaryPos:
			return v, nil
		}
		return 0, p.errorf("operator not valid in an integer constant expression")
	case *ast.BinaryExpr:
		a, err := p.evalConstInt(n.Left)
		if err != nil {
			return 0, err
		}
		b, err := p.evalConstInt(n.Right)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case ast.BinAdd:
			return a + b, nil
		case ast.BinSub:
			return a - b, nil
		case ast.BinMul:
			return a * b, nil
		case ast.BinDiv:
			if b == 0 {
				return 0, p.errorf("division by zero in constant expression")
			}
			return a / b, nil
		case ast.BinMod:
			if b == 0 {
				return 0, p.errorf("modulo by zero in constant expression")
			}
			return a % b, nil
		}
		return 0, p.errorf("operator not valid in an integer constant expression")
	}
	return 0, p.errorf("expression is not an integer constant")
}
