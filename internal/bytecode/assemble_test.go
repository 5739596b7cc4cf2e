package bytecode

import (
	"strings"
	"testing"

	"github.com/weave-lang/weave/internal/hir"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

func intLit(n int64) *hir.Literal { return &hir.Literal{Kind: hir.LitInt, I: n} }

func disasmFn(t *testing.T, u *Unit, proto *value.FunctionProto) string {
	t.Helper()
	chunk, ok := proto.Chunk.(*Chunk)
	if !ok {
		t.Fatalf("proto.Chunk is not *Chunk: %T", proto.Chunk)
	}
	return Disassemble(u, chunk, proto.Name)
}

// 1 + 2 should compile to CONST 1, CONST 2, ADD, RETURN.
func TestAssembleFunction_SimpleArithmetic(t *testing.T) {
	fn := &hir.Function{
		Name: "add",
		Body: &hir.Block{Value: &hir.Binary{Op: "+", Left: intLit(1), Right: intLit(2)}},
	}
	u := NewUnit()
	proto := assembleFunction(u, fn)
	out := disasmFn(t, u, proto)

	for _, want := range []string{"CONST", "ADD", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

// `&&` short-circuits through a single JUMP_IF_FALSE, `||` through a
// single JUMP_IF_TRUE.
func TestCompileBinary_ShortCircuit(t *testing.T) {
	andFn := &hir.Function{Name: "and", Body: &hir.Block{
		Value: &hir.Binary{Op: "&&", Left: &hir.LocalRef{Slot: 0}, Right: &hir.LocalRef{Slot: 1}},
	}}
	u := NewUnit()
	out := disasmFn(t, u, assembleFunction(u, andFn))
	if strings.Count(out, "JUMP_IF_FALSE") != 1 {
		t.Errorf("&& should emit exactly one JUMP_IF_FALSE:\n%s", out)
	}

	orFn := &hir.Function{Name: "or", Body: &hir.Block{
		Value: &hir.Binary{Op: "||", Left: &hir.LocalRef{Slot: 0}, Right: &hir.LocalRef{Slot: 1}},
	}}
	u2 := NewUnit()
	out2 := disasmFn(t, u2, assembleFunction(u2, orFn))
	if strings.Count(out2, "JUMP_IF_TRUE") != 1 {
		t.Errorf("|| should emit exactly one JUMP_IF_TRUE:\n%s", out2)
	}
}

// A compound assignment to a Field target (`obj.x += 1`, as
// internal/hir's lowerAssign would rebuild it from temps) compiles
// Target.X twice (once for GET_FIELD, once for SET_FIELD) with no DUP —
// the point of the OP_SET_FIELD [val, obj] stack-order convention.
func TestCompileAssign_CompoundField(t *testing.T) {
	target := &hir.Field{X: &hir.LocalRef{Slot: 0}, Name: "x"}
	fn := &hir.Function{Name: "bump", Body: &hir.Block{
		Stmts: []hir.Node{&hir.Assign{Op: "+=", Target: target, Value: intLit(1)}},
	}}
	u := NewUnit()
	out := disasmFn(t, u, assembleFunction(u, fn))

	if got := strings.Count(out, "GET_FIELD"); got != 1 {
		t.Errorf("expected exactly one GET_FIELD, got %d:\n%s", got, out)
	}
	if got := strings.Count(out, "SET_FIELD"); got != 1 {
		t.Errorf("expected exactly one SET_FIELD, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "ADD") {
		t.Errorf("compound += should emit ADD:\n%s", out)
	}
}

// A conditional loop with a break must push exactly one value down the
// executed-break path, and exactly one value down the natural
// false-condition exit — never both (the double-push bug fixed during
// this package's construction).
func TestCompileLoop_BreakAndNaturalExitAgree(t *testing.T) {
	loop := &hir.Loop{
		Sink: 1,
		Cond: &hir.LocalRef{Slot: 0},
		Body: &hir.Block{Stmts: []hir.Node{
			&hir.If{
				Cond: &hir.LocalRef{Slot: 1},
				Then: &hir.Block{Value: &hir.Break{Sink: 1, Value: intLit(7)}},
			},
		}},
	}
	fn := &hir.Function{Name: "loopy", Body: &hir.Block{Value: loop}}
	u := NewUnit()
	proto := assembleFunction(u, fn)
	out := disasmFn(t, u, proto)

	// Exactly two OP_NIL instructions should appear: one for the If's
	// missing Else branch, one for the loop's natural false-condition
	// exit. A reappearance of the double-push bug fixed during this
	// package's construction would add a third, unconditional one.
	nilCount := 0
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for _, f := range fields {
			if f == "NIL" {
				nilCount++
			}
		}
	}
	if nilCount != 2 {
		t.Errorf("expected 2 OP_NIL (if-else, loop natural-exit), got %d:\n%s", nilCount, out)
	}
}

func TestAssembleConsts(t *testing.T) {
	prog := &hir.Program{
		Consts: []*hir.ConstDecl{
			{Name: "answer", Hash: 42, Value: intLit(42)},
		},
	}
	u := Assemble(prog, typesystem.NewRegistry())
	thunk, ok := u.ConstThunks[42]
	if !ok {
		t.Fatalf("const thunk for hash 42 not found")
	}
	out := disasmFn(t, u, thunk)
	if !strings.Contains(out, "CONST") || !strings.Contains(out, "RETURN") {
		t.Errorf("const thunk should push its literal then return:\n%s", out)
	}
}

// A closure literal inside a top-level function must register its proto
// in the enclosing Unit's function table (the Unit-threading bug fixed
// during this package's construction).
func TestCompileClosure_RegistersInUnitFunctions(t *testing.T) {
	closureFn := &hir.Function{Name: "inner", Body: &hir.Block{Value: intLit(1)}}
	outer := &hir.Function{Name: "outer", Body: &hir.Block{
		Value: &hir.Closure{Fn: closureFn},
	}}
	u := NewUnit()
	assembleFunction(u, outer)
	if len(u.Functions) != 1 {
		t.Fatalf("expected the closure's proto to land in Unit.Functions, got %d entries", len(u.Functions))
	}
	if u.Functions[0].Name != "inner" {
		t.Errorf("wrong proto registered: %q", u.Functions[0].Name)
	}
}

// A required + one optional parameter produces one DefaultChunk, which
// must itself end in RETURN with its default expression's value on the
// stack (a bare-scope thunk, per internal/hir's resolveParamDefaults).
func TestAssembleFunction_ParamDefault(t *testing.T) {
	fn := &hir.Function{
		Name: "greet",
		Params: []hir.Param{
			{Slot: 0},
			{Slot: 1, Default: &hir.Literal{Kind: hir.LitString, S: "world"}},
		},
		Body: &hir.Block{Value: &hir.LocalRef{Slot: 0}},
	}
	u := NewUnit()
	proto := assembleFunction(u, fn)
	if proto.RequiredArity != 1 {
		t.Errorf("RequiredArity = %d, want 1", proto.RequiredArity)
	}
	if proto.Arity != 2 {
		t.Errorf("Arity = %d, want 2", proto.Arity)
	}
	if len(proto.DefaultChunks) != 1 {
		t.Fatalf("expected 1 DefaultChunk, got %d", len(proto.DefaultChunks))
	}
	dp := proto.DefaultChunks[0].(*value.FunctionProto)
	out := disasmFn(t, u, dp)
	if !strings.Contains(out, "CONST") || !strings.Contains(out, "RETURN") {
		t.Errorf("default chunk should push its literal then return:\n%s", out)
	}
}
