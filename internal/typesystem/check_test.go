package typesystem

import (
	"testing"

	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/parser"
	"github.com/weave-lang/weave/internal/resolve"
)

func checkSrc(t *testing.T, src string) *diag.Bundle {
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
	Check(prog, res, d)
	return d
}

func codes(d *diag.Bundle) []diag.Code {
	var out []diag.Code
	for _, di := range d.Diagnostics {
		out = append(out, di.Code)
	}
	return out
}

func wantCode(t *testing.T, d *diag.Bundle, code diag.Code) {
	t.Helper()
	for _, di := range d.Diagnostics {
		if di.Code == code {
			return
		}
	}
	t.Fatalf("expected %s, got %v", code, codes(d))
}

func wantClean(t *testing.T, d *diag.Bundle) {
	t.Helper()
	if d.HasErrors() {
		t.Fatalf("expected no errors, got %v", codes(d))
	}
}

func TestCallArity_TooFewAndTooMany(t *testing.T) {
	d := checkSrc(t, `
fn add(a, b) { a + b }
fn main() { add(1) }
`)
	wantCode(t, d, diag.ErrTypeArity)

	d = checkSrc(t, `
fn add(a, b) { a + b }
fn main() { add(1, 2, 3) }
`)
	wantCode(t, d, diag.ErrTypeArity)
}

func TestCallArity_DefaultsWidenRange(t *testing.T) {
	src := `
fn greet(name, punct = 1) { name + punct }
fn main() { greet(1) + greet(1, 2) }
`
	wantClean(t, checkSrc(t, src))

	d := checkSrc(t, `
fn greet(name, punct = 1) { name + punct }
fn main() { greet() }
`)
	wantCode(t, d, diag.ErrTypeArity)
}

func TestCallArity_ModulePath(t *testing.T) {
	d := checkSrc(t, `
mod util {
	pub fn twice(x) { x * 2 }
}
fn main() { util::twice(1, 2) }
`)
	wantCode(t, d, diag.ErrTypeArity)
}

func TestCallArity_SpreadSkipsCheck(t *testing.T) {
	wantClean(t, checkSrc(t, `
fn add(a, b) { a + b }
fn main() {
	let args = [1, 2];
	add(..args)
}
`))
}

func TestCallArity_LocalCalleeSkipped(t *testing.T) {
	// A call through a local binding has no statically known signature.
	wantClean(t, checkSrc(t, `
fn add(a, b) { a + b }
fn main() {
	let f = add;
	f(1)
}
`))
}

func TestStructLiteral_UnknownField(t *testing.T) {
	d := checkSrc(t, `
struct Point { x: Int, y: Int }
fn main() { Point { x: 1, z: 2 } }
`)
	wantCode(t, d, diag.ErrTypeMismatch)
}

func TestStructLiteral_KnownFieldsClean(t *testing.T) {
	wantClean(t, checkSrc(t, `
struct Point { x: Int, y: Int }
fn main() { Point { x: 1, y: 2 } }
`))
}

func TestStructLiteral_UndeclaredTypeSkipped(t *testing.T) {
	// A literal of a type never declared has no shape to check against.
	wantClean(t, checkSrc(t, `
fn main() { Anon { x: 1, z: 2 } }
`))
}

func TestVariant_UnknownVariant(t *testing.T) {
	d := checkSrc(t, `
enum Shape { Dot, Line { len: Int } }
fn main() { Shape::Circle { r: 1 } }
`)
	wantCode(t, d, diag.ErrTypeMismatch)
}

func TestVariant_TupleShapeMismatch(t *testing.T) {
	// A tuple variant written struct-style supplies zero positional args.
	d := checkSrc(t, `
enum E { A(Int) }
fn main() { E::A { n: 1 } }
`)
	wantCode(t, d, diag.ErrTypeArity)
}

func TestVariant_StructShapeClean(t *testing.T) {
	wantClean(t, checkSrc(t, `
enum Shape { Line { len: Int } }
fn main() { Shape::Line { len: 3 } }
`))
}

func TestRegistry_PathsAndArity(t *testing.T) {
	d := &diag.Bundle{}
	prog := parser.Parse("test.wv", `
fn top(a, b = 1) { a + b }

mod geo {
	pub fn area(w, h) { w * h }
}

struct Point { x: Int, y: Int }

impl Point {
	fn len(self) { self.x }
}

enum E { Unit, Pair(Int, Int), Node { left: Int } }
`, d)
	if d.HasErrors() {
		t.Fatalf("parse errors: %+v", d.Diagnostics)
	}
	reg := Build(prog)

	top, ok := reg.Fns[HashPath("top")]
	if !ok {
		t.Fatal("top not registered")
	}
	if top.RequiredArity != 1 || top.MaxArity != 2 {
		t.Fatalf("top arity = %d..%d", top.RequiredArity, top.MaxArity)
	}
	if _, ok := reg.Fns[HashPath("geo::area")]; !ok {
		t.Fatal("geo::area not registered")
	}
	if _, ok := reg.Fns[HashPath("Point::len")]; !ok {
		t.Fatal("impl method Point::len not registered")
	}

	shape, ok := reg.Structs["Point"]
	if !ok {
		t.Fatal("struct Point not registered")
	}
	if len(shape.FieldOrder) != 2 || shape.FieldOrder[0] != "x" {
		t.Fatalf("unexpected field order: %v", shape.FieldOrder)
	}

	enum, ok := reg.Enums["E"]
	if !ok {
		t.Fatal("enum E not registered")
	}
	if v := enum.Variants["Unit"]; v.TupleArity != -1 || v.Fields != nil {
		t.Fatalf("Unit shape: %+v", v)
	}
	if v := enum.Variants["Pair"]; v.TupleArity != 2 {
		t.Fatalf("Pair shape: %+v", v)
	}
	if v := enum.Variants["Node"]; v.TupleArity != -1 || len(v.Fields) != 1 {
		t.Fatalf("Node shape: %+v", v)
	}
}

func TestHashPathMatchesResolver(t *testing.T) {
	for _, path := range []string{"", "main", "math::add", "a::b::c"} {
		if HashPath(path) != resolve.HashPath(path) {
			t.Fatalf("hash divergence for %q", path)
		}
	}
}

func TestFromTypeExpr(t *testing.T) {
	if FromTypeExpr(nil).Kind != TUnknown {
		t.Fatal("nil annotation must be TUnknown")
	}
	ty := FromTypeExpr(&ast.TypeExpr{Name: "List", Args: []*ast.TypeExpr{{Name: "Int"}}})
	if ty.Kind != TVector || len(ty.Args) != 1 || ty.Args[0].Kind != TInt {
		t.Fatalf("List<Int> converted to %+v", ty)
	}
	if got := ty.String(); got != "List<Int>" {
		t.Fatalf("String() = %q", got)
	}
	named := FromTypeExpr(&ast.TypeExpr{Name: "Point"})
	if named.Kind != TNamed || named.Name != "Point" {
		t.Fatalf("user type converted to %+v", named)
	}
}
