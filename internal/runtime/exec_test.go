package runtime

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/hir"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

func intLit(n int64) *hir.Literal { return &hir.Literal{Kind: hir.LitInt, I: n} }

// buildUnit assembles a single-function program whose entry hash matches
// typesystem.HashPath(name), the same convention internal/resolve uses for
// every top-level fn, so runtime.Run's entryPath lookup exercises exactly
// the path a real compiled unit would.
func buildUnit(t *testing.T, fn *hir.Function) *bytecode.Unit {
	t.Helper()
	fn.Hash = typesystem.HashPath(fn.Name)
	prog := &hir.Program{Functions: []*hir.Function{fn}}
	return bytecode.Assemble(prog, typesystem.NewRegistry())
}

func TestRun_SimpleArithmetic(t *testing.T) {
	fn := &hir.Function{
		Name: "add",
		Body: &hir.Block{Value: &hir.Binary{Op: "+", Left: intLit(1), Right: intLit(2)}},
	}
	u := buildUnit(t, fn)

	v, rerr, susp := Run(context.Background(), u, "add", nil)
	require.Nil(t, rerr)
	require.Nil(t, susp)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestRun_DivideByZero(t *testing.T) {
	fn := &hir.Function{
		Name: "boom",
		Body: &hir.Block{Value: &hir.Binary{Op: "/", Left: intLit(1), Right: intLit(0)}},
	}
	u := buildUnit(t, fn)

	_, rerr, susp := Run(context.Background(), u, "boom", nil)
	require.Nil(t, susp)
	require.NotNil(t, rerr)
	assert.Equal(t, DivideByZero, rerr.Kind)
}

func TestRun_UnknownEntryPath(t *testing.T) {
	fn := &hir.Function{Name: "add", Body: &hir.Block{Value: intLit(1)}}
	u := buildUnit(t, fn)

	_, rerr, susp := Run(context.Background(), u, "nope", nil)
	require.Nil(t, susp)
	require.NotNil(t, rerr)
	assert.Equal(t, BadAccess, rerr.Kind)
}

func TestRun_ParamsAndLocals(t *testing.T) {
	// fn double(x) = x + x, called with a single argument.
	fn := &hir.Function{
		Name:   "double",
		Params: []hir.Param{{Slot: 0}},
		Body: &hir.Block{
			Value: &hir.Binary{Op: "+", Left: &hir.LocalRef{Slot: 0}, Right: &hir.LocalRef{Slot: 0}},
		},
	}
	u := buildUnit(t, fn)

	v, rerr, susp := Run(context.Background(), u, "double", []value.Value{value.Int(21)})
	require.Nil(t, rerr)
	require.Nil(t, susp)
	assert.Equal(t, int64(42), v.AsInt())
}

func TestRun_GeneratorSuspendsAndResumes(t *testing.T) {
	// fn* count() { yield 1; yield 2; return 3 }
	fn := &hir.Function{
		Name:      "count",
		Generator: true,
		Body: &hir.Block{
			Stmts: []hir.Node{
				&hir.Yield{Value: intLit(1)},
				&hir.Yield{Value: intLit(2)},
			},
			Value: intLit(3),
		},
	}
	u := buildUnit(t, fn)

	_, rerr, susp := Run(context.Background(), u, "count", nil)
	require.Nil(t, rerr)
	require.NotNil(t, susp)
	require.NotNil(t, susp.Generator)

	vm := newVM(u, NewScheduler(), Budget{}, context.Background())

	step, err := vm.resumeGenerator(susp.Generator, value.Nil())
	require.Nil(t, err)
	assertGenStep(t, step, int64(1), false)

	step, err = vm.resumeGenerator(susp.Generator, value.Nil())
	require.Nil(t, err)
	assertGenStep(t, step, int64(2), false)

	step, err = vm.resumeGenerator(susp.Generator, value.Nil())
	require.Nil(t, err)
	assertGenStep(t, step, int64(3), true)

	_, err = vm.resumeGenerator(susp.Generator, value.Nil())
	require.NotNil(t, err)
	assert.Equal(t, BadArgument, err.Kind)
}

func TestRun_AsyncWithoutAwaitSettles(t *testing.T) {
	// async fn answer() = 42, with no await inside: Run either returns 42
	// directly or a Suspension whose Future settles to 42.
	fn := &hir.Function{
		Name:  "answer",
		Async: true,
		Body:  &hir.Block{Value: intLit(42)},
	}
	u := buildUnit(t, fn)

	v, rerr, susp := Run(context.Background(), u, "answer", nil)
	require.Nil(t, rerr)
	if susp != nil {
		require.NotNil(t, susp.Future)
		got, awaitErr := AwaitSuspension(susp)
		require.Nil(t, awaitErr)
		assert.Equal(t, int64(42), got.AsInt())
		return
	}
	assert.Equal(t, int64(42), v.AsInt())
}

func TestVM_InstructionBudgetExhausts(t *testing.T) {
	// An unconditional loop with no break should exhaust a tiny
	// instruction budget rather than hang the test.
	fn := &hir.Function{
		Name: "spin",
		Body: &hir.Block{Value: &hir.Loop{Sink: 0, Body: &hir.Block{}}},
	}
	u := buildUnit(t, fn)

	_, rerr, susp := RunWithBudget(context.Background(), u, "spin", nil, Budget{Instructions: 100})
	require.Nil(t, susp)
	require.NotNil(t, rerr)
	assert.Equal(t, BudgetExhausted, rerr.Kind)
}

func TestVectorMethod_PushPopLen(t *testing.T) {
	vm := newVM(bytecode.NewUnit(), NewScheduler(), Budget{}, context.Background())
	vec := value.NewVector(nil)

	_, err := vm.callMethod(value.FromObject(vec), "push", []value.Value{value.Int(1)})
	require.Nil(t, err)
	_, err = vm.callMethod(value.FromObject(vec), "push", []value.Value{value.Int(2)})
	require.Nil(t, err)

	ln, err := vm.callMethod(value.FromObject(vec), "len", nil)
	require.Nil(t, err)
	assert.Equal(t, int64(2), ln.AsInt())

	popped, err := vm.callMethod(value.FromObject(vec), "pop", nil)
	require.Nil(t, err)
	assert.Equal(t, int64(2), popped.AsInt())
}

func TestVectorIntoIter_DrainsViaOptionProtocol(t *testing.T) {
	// Exercises the same into_iter/next protocol internal/hir's lowerFor
	// compiles a `for` loop down to, without needing a full compiled
	// program: Vector.into_iter() then repeated .next() until None.
	vm := newVM(bytecode.NewUnit(), NewScheduler(), Budget{}, context.Background())
	vec := value.FromObject(value.NewVector([]value.Value{value.Int(1), value.Int(2)}))

	iterVal, err := vm.callMethod(vec, "into_iter", nil)
	require.Nil(t, err)

	var got []int64
	for {
		step, err := vm.callMethod(iterVal, "next", nil)
		require.Nil(t, err)
		vi, ok := step.Obj.(*value.VariantInstance)
		require.True(t, ok)
		if vi.Variant == "None" {
			break
		}
		require.Equal(t, "Some", vi.Variant)
		got = append(got, vi.Elems[0].AsInt())
	}
	assert.Equal(t, []int64{1, 2}, got)
}

func TestIteratorMethod_FilterCollect(t *testing.T) {
	vm := newVM(bytecode.NewUnit(), NewScheduler(), Budget{}, context.Background())
	vec := value.FromObject(value.NewVector([]value.Value{value.Int(1), value.Int(2), value.Int(3), value.Int(4)}))

	iterVal, err := vm.callMethod(vec, "into_iter", nil)
	require.Nil(t, err)

	// A native predicate stands in for a Weave closure here:
	// vm.callValue dispatches *value.NativeFn directly, so this exercises
	// the real (*VM).CallValue wiring internal/iterate's Map/Filter use,
	// not a test double.
	isEven := value.FromObject(&value.NativeFn{
		Name:  "isEven",
		Arity: 1,
		Fn: func(args []value.Value) (value.Value, error) {
			return value.Bool(args[0].AsInt()%2 == 0), nil
		},
	})
	filtered, err := vm.callMethod(iterVal, "filter", []value.Value{isEven})
	require.Nil(t, err)

	collected, err := vm.callMethod(filtered, "collect", nil)
	require.Nil(t, err)
	vec2 := collected.Obj.(*value.Vector)
	require.Len(t, vec2.Elems, 2)
	assert.Equal(t, int64(2), vec2.Elems[0].AsInt())
	assert.Equal(t, int64(4), vec2.Elems[1].AsInt())
}

func TestOps_CompareAndConcat(t *testing.T) {
	vm := newVM(bytecode.NewUnit(), NewScheduler(), Budget{}, context.Background())

	lt, err := vm.compare(bytecode.OP_LT, value.Int(1), value.Int(2))
	require.Nil(t, err)
	assert.True(t, lt.Truthy())

	cat, err := vm.concat(value.FromObject(value.NewString("foo")), value.FromObject(value.NewString("bar")))
	require.Nil(t, err)
	assert.Equal(t, "foobar", cat.Obj.(*value.String).S)

	_, err = vm.arith(bytecode.OP_DIV, value.Int(1), value.Int(0))
	require.NotNil(t, err)
	assert.Equal(t, DivideByZero, err.Kind)
}

// Float arithmetic follows IEEE-754: division by zero yields Inf/NaN
// rather than raising, and `**` honors fractional exponents.
func TestOps_FloatArithmetic(t *testing.T) {
	vm := newVM(bytecode.NewUnit(), NewScheduler(), Budget{}, context.Background())

	inf, err := vm.arith(bytecode.OP_DIV, value.Float(1.0), value.Float(0.0))
	require.Nil(t, err)
	assert.True(t, math.IsInf(inf.AsFloat(), 1))

	nan, err := vm.arith(bytecode.OP_DIV, value.Float(0.0), value.Float(0.0))
	require.Nil(t, err)
	assert.True(t, math.IsNaN(nan.AsFloat()))

	mod, err := vm.arith(bytecode.OP_MOD, value.Float(1.0), value.Float(0.0))
	require.Nil(t, err)
	assert.True(t, math.IsNaN(mod.AsFloat()))

	root, err := vm.arith(bytecode.OP_POW, value.Float(2.0), value.Float(0.5))
	require.Nil(t, err)
	assert.InDelta(t, math.Sqrt2, root.AsFloat(), 1e-12)
}

func assertGenStep(t *testing.T, step value.Value, wantVal int64, wantDone bool) {
	t.Helper()
	st, ok := step.Obj.(*value.StructInstance)
	require.True(t, ok, "resumeGenerator result should be a StructInstance")
	v, ok := st.Fields.Get(value.Str("value"))
	require.True(t, ok)
	assert.Equal(t, wantVal, v.AsInt())
	d, ok := st.Fields.Get(value.Str("done"))
	require.True(t, ok)
	assert.Equal(t, wantDone, d.Truthy())
}
