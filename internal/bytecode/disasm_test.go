package bytecode

import (
	"strings"
	"testing"

	"github.com/weave-lang/weave/internal/hir"
)

func TestDisassemble_HeaderAndMnemonics(t *testing.T) {
	fn := &hir.Function{
		Name: "sum",
		Body: &hir.Block{Value: &hir.Binary{Op: "+", Left: intLit(3), Right: intLit(4)}},
	}
	u := NewUnit()
	proto := assembleFunction(u, fn)
	out := Disassemble(u, proto.Chunk.(*Chunk), proto.Name)

	if !strings.HasPrefix(out, "== sum ==\n") {
		t.Errorf("disassembly should open with a == name == header, got:\n%s", out)
	}
	for _, want := range []string{"CONST", "ADD", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing mnemonic %q in:\n%s", want, out)
		}
	}
}

// A closure's disassembly recursively includes its nested body, indented,
// resolved through the enclosing Unit's function table rather than the
// chunk's own constant pool.
func TestDisassemble_ClosureRecurses(t *testing.T) {
	inner := &hir.Function{Name: "inner", Body: &hir.Block{Value: intLit(9)}}
	outer := &hir.Function{Name: "outer", Body: &hir.Block{Value: &hir.Closure{Fn: inner}}}
	u := NewUnit()
	proto := assembleFunction(u, outer)
	out := Disassemble(u, proto.Chunk.(*Chunk), proto.Name)

	if !strings.Contains(out, "CLOSURE") {
		t.Errorf("expected a CLOSURE instruction:\n%s", out)
	}
	if !strings.Contains(out, "== inner ==") {
		t.Errorf("expected the nested function's own disassembly header:\n%s", out)
	}
}

func TestDisassemble_JumpPrintsAbsoluteTarget(t *testing.T) {
	fn := &hir.Function{
		Name: "pick",
		Body: &hir.Block{Value: &hir.If{
			Cond: &hir.LocalRef{Slot: 0},
			Then: &hir.Block{Value: intLit(1)},
			Else: intLit(2),
		}},
	}
	u := NewUnit()
	proto := assembleFunction(u, fn)
	out := Disassemble(u, proto.Chunk.(*Chunk), proto.Name)
	if !strings.Contains(out, "JUMP_IF_FALSE") || !strings.Contains(out, "->") {
		t.Errorf("expected a JUMP_IF_FALSE with an -> target:\n%s", out)
	}
}
