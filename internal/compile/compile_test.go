package compile

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/modreg"
	"github.com/weave-lang/weave/internal/runtime"
	"github.com/weave-lang/weave/internal/value"
)

// TestGoldenDiagnostics compiles each txtar fixture's sources and
// compares the resulting bundle, serialized as YAML, against the
// fixture's want.yaml section. One archive per scenario keeps the
// source and its expected report side by side in the same file.
func TestGoldenDiagnostics(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txt")
		t.Run(name, func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)

			sources := make(map[string]string)
			var want string
			for _, f := range ar.Files {
				if f.Name == "want.yaml" {
					want = string(f.Data)
					continue
				}
				sources[f.Name] = string(f.Data)
			}
			require.NotEmpty(t, sources, "fixture %s has no source files", file)
			require.NotEmpty(t, want, "fixture %s has no want.yaml section", file)

			_, diags := Compile(sources, nil, Options{})

			var buf bytes.Buffer
			require.NoError(t, diags.EncodeYAML(&buf))
			assert.Equal(t, strings.TrimSpace(want), strings.TrimSpace(buf.String()))

			// The snapshot format must survive its own round trip, or
			// regenerating goldens from a decoded bundle would drift.
			decoded, err := diag.DecodeYAML(strings.NewReader(buf.String()))
			require.NoError(t, err)
			require.Len(t, decoded.Diagnostics, len(diags.Diagnostics))
			for i, d := range decoded.Diagnostics {
				assert.Equal(t, diags.Diagnostics[i].Code, d.Code)
				assert.Equal(t, diags.Diagnostics[i].Severity, d.Severity)
				assert.Equal(t, diags.Diagnostics[i].Message, d.Message)
			}
		})
	}
}

// runMain compiles src as main.wv and executes its `main`, failing the
// test on any diagnostic error or runtime error.
func runMain(t *testing.T, src string, opts Options) value.Value {
	t.Helper()
	unit, diags := CompileOne("main.wv", src, nil, opts)
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))
	require.NotNil(t, unit)

	v, rerr, susp := runtime.Run(context.Background(), unit, "main", nil)
	require.Nil(t, rerr, "runtime error: %+v", rerr)
	require.Nil(t, susp)
	return v
}

func renderDiags(b *diag.Bundle) string {
	var buf bytes.Buffer
	b.Render(&buf)
	return buf.String()
}

func TestEndToEnd_IfElse(t *testing.T) {
	v := runMain(t, `
fn main() {
    if 1 < 2 { 10 } else { 20 }
}
`, Options{})
	assert.Equal(t, int64(10), v.AsInt())
}

func TestEndToEnd_LabelledLoopBreakValue(t *testing.T) {
	v := runMain(t, `
fn main() {
    'outer: loop {
        loop {
            break 'outer 3;
        }
    }
}
`, Options{})
	assert.Equal(t, int64(3), v.AsInt())
}

func TestEndToEnd_ForLoopAccumulator(t *testing.T) {
	v := runMain(t, `
fn main() {
    let total = 0;
    for i in 0..5 {
        total = total + i;
    }
    total
}
`, Options{})
	assert.Equal(t, int64(10), v.AsInt())
}

func TestEndToEnd_CollatzRecursion(t *testing.T) {
	v := runMain(t, `
fn collatz(n, steps) {
    match n {
        1 => steps,
        n if n % 2 == 0 => collatz(n / 2, steps + 1),
        _ => collatz(3 * n + 1, steps + 1),
    }
}

fn main() {
    collatz(27, 0)
}
`, Options{})
	assert.Equal(t, int64(111), v.AsInt())
}

func TestEndToEnd_DivergingIfCondition(t *testing.T) {
	// The condition itself returns, so the if body and the trailing
	// `false` are never reached and the function's value is the return's.
	v := runMain(t, `
fn f() {
    if return true {}
    false
}

fn main() {
    f()
}
`, Options{})
	assert.True(t, v.AsBool())
}

func TestEndToEnd_DivergingMatchGuard(t *testing.T) {
	// The second arm's guard returns out of the function before the
	// third arm is ever tested.
	v := runMain(t, `
fn f() {
    match true {
        false => 0,
        _ if return 7 => 1,
        true => 2,
    }
}

fn main() {
    f()
}
`, Options{})
	assert.Equal(t, int64(7), v.AsInt())
}

func TestEndToEnd_MatchGuard(t *testing.T) {
	v := runMain(t, `
fn main() {
    match 5 {
        n if n > 3 => 7,
        _ => 0,
    }
}
`, Options{})
	assert.Equal(t, int64(7), v.AsInt())
}

func TestEndToEnd_IteratorChain(t *testing.T) {
	v := runMain(t, `
fn main() {
    [1, 2, 3].into_iter().map(|x| x * x).collect()
}
`, Options{})
	vec, ok := v.Obj.(*value.Vector)
	require.True(t, ok, "expected a Vector, got %s", v.TypeName())
	require.Len(t, vec.Elems, 3)
	assert.Equal(t, int64(1), vec.Elems[0].AsInt())
	assert.Equal(t, int64(4), vec.Elems[1].AsInt())
	assert.Equal(t, int64(9), vec.Elems[2].AsInt())
}

func TestEndToEnd_IterAlias(t *testing.T) {
	v := runMain(t, `
fn main() {
    [1, 2, 3].iter().map(|x| x * x).collect()
}
`, Options{})
	vec, ok := v.Obj.(*value.Vector)
	require.True(t, ok, "expected a Vector, got %s", v.TypeName())
	require.Len(t, vec.Elems, 3)
	assert.Equal(t, int64(9), vec.Elems[2].AsInt())
}

func TestEndToEnd_StructImplMethod(t *testing.T) {
	v := runMain(t, `
struct Point { x, y }

impl Point {
    fn sum(self) { self.x + self.y }
    fn scaled(self, k) { self.x * k + self.y * k }
}

fn main() {
    let p = Point { x: 3, y: 4 };
    p.sum() + p.scaled(10)
}
`, Options{})
	assert.Equal(t, int64(77), v.AsInt())
}

func TestEndToEnd_EnumImplMethod(t *testing.T) {
	v := runMain(t, `
enum Shape {
    Circle(Int),
    Square(Int),
}

impl Shape {
    fn side(self) {
        match self {
            Shape::Circle(r) => r,
            Shape::Square(s) => s,
        }
    }
}

fn main() {
    Shape::Square(6).side()
}
`, Options{})
	assert.Equal(t, int64(6), v.AsInt())
}

func TestEndToEnd_OptionConstruction(t *testing.T) {
	v := runMain(t, `
fn main() {
    match Option::Some(5) {
        Option::Some(n) => n,
        Option::None => 0,
    }
}
`, Options{})
	assert.Equal(t, int64(5), v.AsInt())
}

func TestEndToEnd_UnknownStructMethodRaises(t *testing.T) {
	unit, diags := CompileOne("main.wv", `
struct Point { x, y }

fn main() {
    let p = Point { x: 1, y: 2 };
    p.missing()
}
`, nil, Options{})
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))

	_, rerr, _ := runtime.Run(context.Background(), unit, "main", nil)
	require.NotNil(t, rerr)
	assert.Equal(t, runtime.BadAccess, rerr.Kind)
	assert.Contains(t, rerr.Message, "missing")
}

func TestEndToEnd_ClosureCapture(t *testing.T) {
	v := runMain(t, `
fn main() {
    let n = 10;
    let add = |x| x + n;
    add(32)
}
`, Options{})
	assert.Equal(t, int64(42), v.AsInt())
}

func TestScriptMode_TrailingExpression(t *testing.T) {
	v := runMain(t, `
let x = 2;
x * 21
`, Options{Script: true})
	assert.Equal(t, int64(42), v.AsInt())
}

func TestScriptMode_ItemsBetweenStatements(t *testing.T) {
	v := runMain(t, `
let a = double(4);

fn double(x) { x * 2 }

a + 1
`, Options{Script: true})
	assert.Equal(t, int64(9), v.AsInt())
}

func TestMultiFile_ModulePerFile(t *testing.T) {
	sources := map[string]string{
		"main.wv": `
fn main() {
    util::helper() + 1
}
`,
		"util.wv": `
pub fn helper() { 5 }
`,
	}
	unit, diags := Compile(sources, nil, Options{})
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))

	v, rerr, susp := runtime.Run(context.Background(), unit, "main", nil)
	require.Nil(t, rerr)
	require.Nil(t, susp)
	assert.Equal(t, int64(6), v.AsInt())
}

func TestMultiFile_RootIsMainStem(t *testing.T) {
	// "aaa.wv" sorts before "main.wv", but main.wv must still win the
	// root slot because of its stem.
	sources := map[string]string{
		"aaa.wv":  `pub fn five() { 5 }`,
		"main.wv": `fn main() { aaa::five() }`,
	}
	unit, diags := Compile(sources, nil, Options{})
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))
	assert.Equal(t, "main.wv", unit.SourceFile)
}

func TestHostRegistry_NativeCall(t *testing.T) {
	host := modreg.NewRegistry()
	host.RegisterItem("host::add", value.FromObject(&value.NativeFn{
		Name:  "add",
		Arity: 2,
		Fn: func(args []value.Value) (value.Value, error) {
			return value.Int(args[0].AsInt() + args[1].AsInt()), nil
		},
	}))

	unit, diags := CompileOne("main.wv", `
fn main() {
    host::add(2, 3)
}
`, host, Options{})
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))

	v, rerr, susp := runtime.Run(context.Background(), unit, "main", nil)
	require.Nil(t, rerr)
	require.Nil(t, susp)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestHostRegistry_ScriptShadowIsError(t *testing.T) {
	host := modreg.NewRegistry()
	host.RegisterItem("host::add", value.FromObject(&value.NativeFn{Name: "add", Arity: 2}))

	src := `
mod host {
    pub fn add(a, b) { a + b }
}

fn main() { host::add(1, 2) }
`
	unit, diags := CompileOne("main.wv", src, host, Options{})
	require.Nil(t, unit)
	require.True(t, diags.HasErrors())
	found := false
	for _, d := range diags.Diagnostics {
		if d.Code == diag.ErrDupItem {
			found = true
		}
	}
	assert.True(t, found, "expected a duplicate-item diagnostic, got:\n%s", renderDiags(diags))
}

func TestAttrDiscovery(t *testing.T) {
	src := `
#[test]
fn t_one() { 1 }

mod helpers {
    #[test]
    fn t_two() { 2 }

    #[bench]
    fn b_inner() { 3 }
}

#[bench]
fn b_main() { 4 }

fn main() { 0 }
`
	unit, diags := CompileOne("main.wv", src, nil, Options{Test: true, Bench: true})
	require.False(t, diags.HasErrors(), "compile failed:\n%s", renderDiags(diags))
	assert.Equal(t, []string{"t_one", "helpers::t_two"}, unit.Tests)
	assert.Equal(t, []string{"helpers::b_inner", "b_main"}, unit.Benches)

	plain, diags := CompileOne("main.wv", src, nil, Options{})
	require.False(t, diags.HasErrors())
	assert.Empty(t, plain.Tests)
	assert.Empty(t, plain.Benches)
}

func TestEmitInstructions(t *testing.T) {
	unit, diags := CompileOne("main.wv", `fn main() { 1 + 2 }`, nil, Options{EmitInstructions: true})
	require.False(t, diags.HasErrors())
	assert.Contains(t, unit.Disassembly, "main")

	plain, diags := CompileOne("main.wv", `fn main() { 1 + 2 }`, nil, Options{})
	require.False(t, diags.HasErrors())
	assert.Empty(t, plain.Disassembly)
}

func TestCompile_NoSources(t *testing.T) {
	unit, diags := Compile(nil, nil, Options{})
	require.Nil(t, unit)
	require.True(t, diags.HasErrors())
	assert.Equal(t, diag.ErrParseUnexpected, diags.Diagnostics[0].Code)
}

func TestOptionsHash(t *testing.T) {
	base := Options{}
	assert.Len(t, base.Hash(), 16)
	assert.Equal(t, base.Hash(), Options{}.Hash())
	assert.NotEqual(t, base.Hash(), Options{Optimize: true}.Hash())
	assert.NotEqual(t, Options{Test: true}.Hash(), Options{Bench: true}.Hash())
}

func TestHashSources(t *testing.T) {
	a := map[string]string{"main.wv": "fn main() { 1 }"}
	b := map[string]string{"main.wv": "fn main() { 2 }"}
	c := map[string]string{"other.wv": "fn main() { 1 }"}

	assert.Equal(t, HashSources(a), HashSources(map[string]string{"main.wv": "fn main() { 1 }"}))
	assert.NotEqual(t, HashSources(a), HashSources(b))
	assert.NotEqual(t, HashSources(a), HashSources(c))
}
