package hir

import (
	"testing"

	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/parser"
	"github.com/weave-lang/weave/internal/resolve"
)

func lowerSrc(t *testing.T, src string, cfg Config) (*Program, *diag.Bundle) {
	t.Helper()
	d := &diag.Bundle{}
	prog := parser.Parse("test.wv", src, d)
	if d.HasErrors() {
		t.Fatalf("unexpected parse errors: %+v", d.Diagnostics)
	}
	res := resolve.Resolve(prog, d)
	if d.HasErrors() {
		t.Fatalf("unexpected resolve errors: %+v", d.Diagnostics)
	}
	return LowerWith(prog, res, d, cfg), d
}

func fnNamed(t *testing.T, prog *Program, name string) *Function {
	t.Helper()
	for _, fn := range prog.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("no function %q in lowered program", name)
	return nil
}

func hasCode(d *diag.Bundle, code diag.Code) bool {
	for _, di := range d.Diagnostics {
		if di.Code == code {
			return true
		}
	}
	return false
}

func TestFold_ArithmeticBecomesLiteral(t *testing.T) {
	prog, _ := lowerSrc(t, `fn f() { 1 + 2 * 3 }`, Config{Fold: true})
	fn := fnNamed(t, prog, "f")
	lit, ok := fn.Body.Value.(*Literal)
	if !ok {
		t.Fatalf("expected folded literal, got %T", fn.Body.Value)
	}
	if lit.Kind != LitInt || lit.I != 7 {
		t.Fatalf("expected 7, got %+v", lit)
	}
}

func TestFold_DisabledKeepsBinary(t *testing.T) {
	prog, _ := lowerSrc(t, `fn f() { 1 + 2 }`, Config{})
	fn := fnNamed(t, prog, "f")
	if _, ok := fn.Body.Value.(*Binary); !ok {
		t.Fatalf("expected Binary with folding off, got %T", fn.Body.Value)
	}
}

func TestFold_DivisionNeverFolds(t *testing.T) {
	// Division stays a runtime instruction so a zero divisor surfaces as
	// a runtime error rather than a compile-time one.
	prog, _ := lowerSrc(t, `fn f() { 6 / 2 }`, Config{Fold: true})
	fn := fnNamed(t, prog, "f")
	bin, ok := fn.Body.Value.(*Binary)
	if !ok || bin.Op != "/" {
		t.Fatalf("expected unfolded division, got %T %+v", fn.Body.Value, fn.Body.Value)
	}
}

func TestFold_UnaryAndBool(t *testing.T) {
	prog, _ := lowerSrc(t, `fn f() { !true }`, Config{Fold: true})
	fn := fnNamed(t, prog, "f")
	lit, ok := fn.Body.Value.(*Literal)
	if !ok || lit.Kind != LitBool || lit.B {
		t.Fatalf("expected folded false, got %T %+v", fn.Body.Value, fn.Body.Value)
	}

	prog, _ = lowerSrc(t, `fn g() { -5 }`, Config{Fold: true})
	fn = fnNamed(t, prog, "g")
	lit, ok = fn.Body.Value.(*Literal)
	if !ok || lit.Kind != LitInt || lit.I != -5 {
		t.Fatalf("expected folded -5, got %T %+v", fn.Body.Value, fn.Body.Value)
	}
}

func TestConstDecl_FoldedValueAndHash(t *testing.T) {
	prog, _ := lowerSrc(t, `const ANSWER = 2 * 21;`, Config{Fold: true})
	if len(prog.Consts) != 1 {
		t.Fatalf("expected 1 const, got %d", len(prog.Consts))
	}
	c := prog.Consts[0]
	if c.Hash != resolve.HashPath("ANSWER") {
		t.Fatal("const hash does not match its item path")
	}
	lit, ok := c.Value.(*Literal)
	if !ok || lit.I != 42 {
		t.Fatalf("expected folded const value 42, got %T %+v", c.Value, c.Value)
	}
}

func TestForLoop_DesugarsToIteratorProtocol(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f() {
	for i in 0..3 {
		i;
	}
}
`, Config{})
	fn := fnNamed(t, prog, "f")
	var sawIntoIter, sawNext, sawLoop bool
	hasNode(fn.Body, func(n Node) bool {
		switch v := n.(type) {
		case *MethodCall:
			if v.Method == "into_iter" {
				sawIntoIter = true
			}
			if v.Method == "next" {
				sawNext = true
			}
		case *Loop:
			sawLoop = true
		}
		return false
	})
	if !sawIntoIter || !sawNext || !sawLoop {
		t.Fatalf("for desugaring incomplete: into_iter=%t next=%t loop=%t", sawIntoIter, sawNext, sawLoop)
	}
}

func TestLabelledBreak_TargetsOuterSink(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f() {
	'outer: loop {
		loop {
			break 'outer 3;
		}
	}
}
`, Config{})
	fn := fnNamed(t, prog, "f")

	var loops []*Loop
	var brk *Break
	hasNode(fn.Body, func(n Node) bool {
		switch v := n.(type) {
		case *Loop:
			loops = append(loops, v)
		case *Break:
			brk = v
		}
		return false
	})
	if len(loops) != 2 || brk == nil {
		t.Fatalf("expected 2 loops and a break, got %d loops, break=%v", len(loops), brk)
	}
	outer, inner := loops[0], loops[1]
	if outer.Sink == inner.Sink {
		t.Fatal("nested loops must get distinct sinks")
	}
	if brk.Sink != outer.Sink {
		t.Fatalf("labelled break sink %d, want outer sink %d", brk.Sink, outer.Sink)
	}
	if outer.Diverges {
		t.Fatal("outer loop has a reachable break, must not diverge")
	}
	if !inner.Diverges {
		t.Fatal("inner loop has no break of its own, must diverge")
	}
}

func TestBreakOutsideLoopReported(t *testing.T) {
	_, d := lowerSrc(t, `fn f() { break; }`, Config{})
	if !hasCode(d, diag.ErrNameUnresolved) {
		t.Fatalf("expected %s, got %+v", diag.ErrNameUnresolved, d.Diagnostics)
	}
}

func TestBreakUnknownLabelReported(t *testing.T) {
	_, d := lowerSrc(t, `
fn f() {
	loop {
		break 'missing;
	}
}
`, Config{})
	if !hasCode(d, diag.ErrNameUnresolved) {
		t.Fatalf("expected %s, got %+v", diag.ErrNameUnresolved, d.Diagnostics)
	}
}

func TestUnreachableCodeWarned(t *testing.T) {
	_, d := lowerSrc(t, `
fn f() {
	return 1;
	let x = 2;
	x
}
`, Config{})
	if !hasCode(d, diag.WarnUnreachableCode) {
		t.Fatalf("expected %s, got %+v", diag.WarnUnreachableCode, d.Diagnostics)
	}
	if d.HasErrors() {
		t.Fatalf("unreachable code is a warning, not an error: %+v", d.Diagnostics)
	}
}

func TestInfiniteLoopMarksBodyDiverging(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f() {
	loop {
		1;
	}
}
`, Config{})
	fn := fnNamed(t, prog, "f")
	loop, ok := fn.Body.Value.(*Loop)
	if !ok {
		t.Fatalf("expected trailing Loop, got %T", fn.Body.Value)
	}
	if !loop.Diverges {
		t.Fatal("break-free loop must be marked diverging")
	}
	if !fn.Body.Diverges {
		t.Fatal("function body ending in a diverging loop must itself diverge")
	}
}

func TestMatch_ArmShapes(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f(x) {
	match x {
		1 => 10,
		n if n > 0 => n,
		_ => 0,
	}
}
`, Config{})
	fn := fnNamed(t, prog, "f")
	m, ok := fn.Body.Value.(*Match)
	if !ok {
		t.Fatalf("expected Match, got %T", fn.Body.Value)
	}
	if len(m.Arms) != 3 {
		t.Fatalf("expected 3 arms, got %d", len(m.Arms))
	}

	if test, ok := m.Arms[0].Test.(*PatTest); !ok || test.Kind != "eq" {
		t.Fatalf("literal arm test: %+v", m.Arms[0].Test)
	}
	if m.Arms[1].Guard == nil || len(m.Arms[1].Binds) != 1 {
		t.Fatalf("guarded binder arm: guard=%v binds=%v", m.Arms[1].Guard, m.Arms[1].Binds)
	}
	if test, ok := m.Arms[2].Test.(*PatTest); !ok || test.Kind != "always" {
		t.Fatalf("wildcard arm test: %+v", m.Arms[2].Test)
	}
}

func TestLetTupleDestructuring(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f() {
	let (a, b) = (1, 2);
	a + b
}
`, Config{})
	fn := fnNamed(t, prog, "f")
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 lowered statement, got %d", len(fn.Body.Stmts))
	}
	stmt, ok := fn.Body.Stmts[0].(*Block)
	if !ok || len(stmt.Stmts) != 2 {
		t.Fatalf("let lowering shape: %T %+v", fn.Body.Stmts[0], fn.Body.Stmts[0])
	}
	seq, ok := stmt.Stmts[1].(*BindSeq)
	if !ok || len(seq.Binds) != 2 {
		t.Fatalf("expected 2 tuple binds, got %T %+v", stmt.Stmts[1], stmt.Stmts[1])
	}
	for i, b := range seq.Binds {
		ex, ok := b.From.(*Extract)
		if !ok || ex.Kind != "tuple-elem" || ex.Index != i {
			t.Fatalf("bind %d extract: %+v", i, b.From)
		}
	}
}

func TestParamDefaultLoweredInOwnFrame(t *testing.T) {
	prog, _ := lowerSrc(t, `fn f(a, b = 1 + 2) { a }`, Config{Fold: true})
	fn := fnNamed(t, prog, "f")
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if fn.Params[0].Default != nil {
		t.Fatal("required param must have no default")
	}
	lit, ok := fn.Params[1].Default.(*Literal)
	if !ok || lit.I != 3 {
		t.Fatalf("expected folded default 3, got %+v", fn.Params[1].Default)
	}
}

func TestClosureLoweredWithUpvalues(t *testing.T) {
	prog, _ := lowerSrc(t, `
fn f() {
	let n = 1;
	let add = |x| x + n;
	add(2)
}
`, Config{})
	fn := fnNamed(t, prog, "f")
	var cl *Closure
	hasNode(fn.Body, func(n Node) bool {
		if c, ok := n.(*Closure); ok {
			cl = c
		}
		return false
	})
	if cl == nil {
		t.Fatal("no Closure node in lowered body")
	}
	if len(cl.Fn.Upvalues) != 1 || cl.Fn.Upvalues[0].Name != "n" {
		t.Fatalf("closure upvalues: %+v", cl.Fn.Upvalues)
	}
	if _, ok := cl.Fn.Body.Value.(*Binary); !ok {
		t.Fatalf("closure body: %T", cl.Fn.Body.Value)
	}
}

func TestVariantCallLowersToConstructor(t *testing.T) {
	prog, _ := lowerSrc(t, `
enum Shape { Circle(Int), Dot }

fn f() { Shape::Circle(7) }

fn g() { Shape::Dot }
`, Config{})

	fn := fnNamed(t, prog, "f")
	v, ok := fn.Body.Value.(*Variant)
	if !ok {
		t.Fatalf("expected Variant constructor, got %T", fn.Body.Value)
	}
	if v.EnumName != "Shape" || v.Variant != "Circle" || len(v.Args) != 1 {
		t.Fatalf("constructor shape: %+v", v)
	}

	fn = fnNamed(t, prog, "g")
	v, ok = fn.Body.Value.(*Variant)
	if !ok {
		t.Fatalf("expected unit Variant, got %T", fn.Body.Value)
	}
	if v.Variant != "Dot" || len(v.Args) != 0 {
		t.Fatalf("unit constructor shape: %+v", v)
	}
}
