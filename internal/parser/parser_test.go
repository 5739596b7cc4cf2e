package parser

import (
	"testing"

	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	d := &diag.Bundle{}
	prog := Parse("test.wv", src, d)
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors for %q: %+v", src, d.Diagnostics)
	}
	return prog
}

func TestParseFnAndLet(t *testing.T) {
	prog := parseOK(t, `
fn add(a: Int, b: Int) -> Int {
	let sum = a + b;
	sum
}
`)
	if len(prog.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(prog.Items))
	}
	fn, ok := prog.Items[0].(*ast.FnItem)
	if !ok {
		t.Fatalf("expected *ast.FnItem, got %T", prog.Items[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("got %+v", fn)
	}
	if fn.Body.Value == nil {
		t.Fatalf("expected trailing expression value")
	}
}

func TestParseStructEnumImpl(t *testing.T) {
	prog := parseOK(t, `
struct Point { x: Int, y: Int }
enum Shape { Circle(Int), Rect { w: Int, h: Int }, Empty }
impl Shape {
	fn area(self) -> Int { 0 }
}
`)
	if len(prog.Items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(prog.Items), prog.Items)
	}
	enum := prog.Items[1].(*ast.EnumItem)
	if len(enum.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(enum.Variants))
	}
	if len(enum.Variants[0].Tuple) != 1 || len(enum.Variants[1].Fields) != 2 {
		t.Fatalf("got %+v", enum.Variants)
	}
}

func TestParseMatchAndPatterns(t *testing.T) {
	prog := parseOK(t, `
fn describe(x: Int) -> String {
	match x {
		0 => "zero",
		n if n < 0 => "negative",
		_ => "positive",
	}
}
`)
	fn := prog.Items[0].(*ast.FnItem)
	m := fn.Body.Value.(*ast.MatchExpr)
	if len(m.Arms) != 3 {
		t.Fatalf("expected 3 arms, got %d", len(m.Arms))
	}
	if _, ok := m.Arms[1].Pat.(*ast.IdentPat); !ok {
		t.Fatalf("expected IdentPat, got %T", m.Arms[1].Pat)
	}
	if m.Arms[1].Guard == nil {
		t.Fatalf("expected a guard on arm 1")
	}
}

func TestParseForWhileLoopBreak(t *testing.T) {
	prog := parseOK(t, `
fn run() {
	'outer: for x in [1, 2, 3] {
		while x > 0 {
			break 'outer;
		}
	}
}
`)
	fn := prog.Items[0].(*ast.FnItem)
	forExpr, ok := fn.Body.Value.(*ast.ForExpr)
	if !ok {
		t.Fatalf("expected *ast.ForExpr, got %T", fn.Body.Value)
	}
	if forExpr.Label != "outer" {
		t.Fatalf("expected label outer, got %q", forExpr.Label)
	}
}

func TestParseClosureAndMethodCall(t *testing.T) {
	prog := parseOK(t, `
fn run() {
	let f = |x, y = 1| x + y;
	let total = [1, 2, 3].map(f).sum();
}
`)
	fn := prog.Items[0].(*ast.FnItem)
	let1 := fn.Body.Stmts[0].(*ast.LetStmt)
	closure, ok := let1.Value.(*ast.ClosureExpr)
	if !ok {
		t.Fatalf("expected *ast.ClosureExpr, got %T", let1.Value)
	}
	if len(closure.Params) != 2 || closure.Params[1].Default == nil {
		t.Fatalf("got %+v", closure.Params)
	}
	let2 := fn.Body.Stmts[1].(*ast.LetStmt)
	outer, ok := let2.Value.(*ast.MethodCallExpr)
	if !ok || outer.Method != "sum" {
		t.Fatalf("expected outer .sum() call, got %+v", let2.Value)
	}
}

func TestParseTryAndOptionalChain(t *testing.T) {
	prog := parseOK(t, `
fn run() -> Result {
	let v = might_fail()?;
	let name = user?.profile?.name;
}
`)
	fn := prog.Items[0].(*ast.FnItem)
	let1 := fn.Body.Stmts[0].(*ast.LetStmt)
	if _, ok := let1.Value.(*ast.TryExpr); !ok {
		t.Fatalf("expected *ast.TryExpr, got %T", let1.Value)
	}
	let2 := fn.Body.Stmts[1].(*ast.LetStmt)
	field, ok := let2.Value.(*ast.FieldExpr)
	if !ok || !field.IsOptional {
		t.Fatalf("expected optional FieldExpr, got %+v", let2.Value)
	}
}

func TestParseRecoversFromError(t *testing.T) {
	d := &diag.Bundle{}
	prog := Parse("test.wv", "fn broken( { let x = ; } fn ok() { 1 }", d)
	if !d.HasErrors() {
		t.Fatalf("expected parse errors")
	}
	if prog == nil {
		t.Fatalf("expected a non-nil partial program")
	}
}
