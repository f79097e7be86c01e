package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-phantom/sysyc/internal/ast"
)

func TestParseGlobalAndFunction(t *testing.T) {
	src := `
const int N = 4;
int a[N][2];
float scale = 1.5;

int main() {
  int x = 0;
  while (x < N) {
    a[x][0] = x;
    x = x + 1;
  }
  return a[1][0];
}
`
	prog, err := Parse(src, "test.sy")
	require.NoError(t, err)
	require.Len(t, prog.Decls, 4)

	cd := prog.Decls[0].(*ast.VarDecl)
	assert.True(t, cd.Const)
	require.Len(t, cd.Items, 1)
	assert.Equal(t, "N", cd.Items[0].Name)

	// Dimensions referencing a prior const fold at parse time.
	ad := prog.Decls[1].(*ast.VarDecl)
	require.Len(t, ad.Items, 1)
	assert.Equal(t, ast.TypeArray, ad.Items[0].Type.Kind)
	assert.Equal(t, []int{4, 2}, ad.Items[0].Type.Dims)

	fd := prog.Decls[3].(*ast.FuncDecl)
	assert.Equal(t, "main", fd.Name)
	assert.Equal(t, ast.TypeInt, fd.Ret.Kind)
	require.NotEmpty(t, fd.Body)
	_, isDecl := fd.Body[0].(*ast.DeclStmt)
	assert.True(t, isDecl)
	_, isWhile := fd.Body[1].(*ast.WhileStmt)
	assert.True(t, isWhile)
}

func TestParseArrayParameterDecays(t *testing.T) {
	src := `int sum(int a[], int m[][3]) { return a[0] + m[1][2]; }`
	prog, err := Parse(src, "test.sy")
	require.NoError(t, err)
	fd := prog.Decls[0].(*ast.FuncDecl)
	require.Len(t, fd.Params, 2)

	p0 := fd.Params[0].Type
	require.Equal(t, ast.TypePointer, p0.Kind)
	assert.Equal(t, ast.TypeInt, p0.Elem.Kind)

	p1 := fd.Params[1].Type
	require.Equal(t, ast.TypePointer, p1.Kind)
	require.Equal(t, ast.TypeArray, p1.Elem.Kind)
	assert.Equal(t, []int{3}, p1.Elem.Dims)
}

func TestParseOperatorPrecedence(t *testing.T) {
	prog, err := Parse("int f(int x) { return 1 + x * 2 < 3 && x > 0 || !x; }", "test.sy")
	require.NoError(t, err)
	fd := prog.Decls[0].(*ast.FuncDecl)
	ret := fd.Body[0].(*ast.ReturnStmt)

	// || at the root, && under its left arm, relational below that.
	or := ret.Value.(*ast.BinaryExpr)
	require.Equal(t, ast.BinOr, or.Op)
	and := or.Left.(*ast.BinaryExpr)
	require.Equal(t, ast.BinAnd, and.Op)
	lt := and.Left.(*ast.BinaryExpr)
	require.Equal(t, ast.BinLt, lt.Op)
	add := lt.Left.(*ast.BinaryExpr)
	require.Equal(t, ast.BinAdd, add.Op)
	mul := add.Right.(*ast.BinaryExpr)
	assert.Equal(t, ast.BinMul, mul.Op)
	not := or.Right.(*ast.UnaryExpr)
	assert.Equal(t, ast.UnaryNot, not.Op)
}

func TestParseNumericLiterals(t *testing.T) {
	src := `
int main() {
  int h = 0x1F;
  int o = 017;
  float f = 1.5e2;
  float hf = 0x1.8p1;
  return h + o;
}
`
	prog, err := Parse(src, "test.sy")
	require.NoError(t, err)
	fd := prog.Decls[0].(*ast.FuncDecl)

	lit := func(i int) ast.Expr {
		return fd.Body[i].(*ast.DeclStmt).Decl.(*ast.VarDecl).Items[0].Init
	}
	assert.Equal(t, int32(31), lit(0).(*ast.IntExpr).Value)
	assert.Equal(t, int32(15), lit(1).(*ast.IntExpr).Value)
	assert.Equal(t, float32(150), lit(2).(*ast.FloatExpr).Value)
	assert.Equal(t, float32(3), lit(3).(*ast.FloatExpr).Value)
}

func TestParseDoWhileAndControl(t *testing.T) {
	src := `
int main() {
  int i = 0;
  do {
    i = i + 1;
    if (i == 5) break;
  } while (i < 10);
  return i;
}
`
	prog, err := Parse(src, "test.sy")
	require.NoError(t, err)
	fd := prog.Decls[0].(*ast.FuncDecl)
	dw, ok := fd.Body[1].(*ast.DoWhileStmt)
	require.True(t, ok)
	body := dw.Body.(*ast.BlockStmt)
	ifs, ok := body.Stmts[1].(*ast.IfStmt)
	require.True(t, ok)
	_, ok = ifs.Then.(*ast.BreakStmt)
	assert.True(t, ok)
}

func TestParseInitListNesting(t *testing.T) {
	prog, err := Parse("int a[2][2] = {{1, 2}, 3, 4};", "test.sy")
	require.NoError(t, err)
	vd := prog.Decls[0].(*ast.VarDecl)
	init := vd.Items[0].Init.(*ast.InitList)
	require.Len(t, init.Elems, 3)
	_, nested := init.Elems[0].(*ast.InitList)
	assert.True(t, nested)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"int main() { return 0 }",      // missing semicolon
		"int main() { 1 = 2; }",        // not an lvalue
		"const int N;",                 // const without initializer
		"int a[x];",                    // non-constant dimension
		"void v = 1;",                  // void variable
		"int main() { /* unterminated", // comment runs off the file
	}
	for _, src := range cases {
		_, err := Parse(src, "test.sy")
		assert.Error(t, err, "source %q must not parse", src)
	}
}

func TestParseCallAndStringArgument(t *testing.T) {
	prog, err := Parse(`int main() { putf("%d\n", 42); return 0; }`, "test.sy")
	require.NoError(t, err)
	fd := prog.Decls[0].(*ast.FuncDecl)
	call := fd.Body[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	assert.Equal(t, "putf", call.Callee)
	require.Len(t, call.Args, 2)
	s := call.Args[0].(*ast.StringExpr)
	assert.Equal(t, "%d\n", s.Value)
}
