package weave

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/modreg"
	"github.com/weave-lang/weave/internal/runtime"
)

func TestEval_Expression(t *testing.T) {
	vm := New()
	v, err := vm.Eval(context.Background(), `1 + 2`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestEval_ScriptStatements(t *testing.T) {
	vm := New()
	v, err := vm.Eval(context.Background(), `
let x = 5;
let double = |n| n * 2;
double(x)
`)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestEval_CompileErrorCarriesBundle(t *testing.T) {
	vm := New()
	_, err := vm.Eval(context.Background(), `nonexistent()`)
	require.Error(t, err)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Bundle.HasErrors())
	assert.Contains(t, cerr.Error(), "nonexistent")
}

func TestBind_Function(t *testing.T) {
	vm := New()
	require.NoError(t, vm.Bind("host::add", func(a, b int64) int64 { return a + b }))

	v, err := vm.Eval(context.Background(), `host::add(20, 22)`)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestBind_FunctionErrorReturn(t *testing.T) {
	vm := New()
	require.NoError(t, vm.Bind("host::fail", func() (int64, error) {
		return 0, errors.New("backend unavailable")
	}))
	require.NoError(t, vm.Bind("host::ok", func() (int64, error) {
		return 7, nil
	}))

	_, err := vm.Eval(context.Background(), `host::fail()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")

	v, err := vm.Eval(context.Background(), `host::ok()`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestBind_Value(t *testing.T) {
	vm := New()
	require.NoError(t, vm.Bind("cfg::greeting", "hello"))

	v, err := vm.Eval(context.Background(), `cfg::greeting`)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestBind_DuplicatePathRejected(t *testing.T) {
	vm := New()
	require.NoError(t, vm.Bind("cfg::x", 1))
	err := vm.Bind("cfg::x", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already bound")
}

func TestBind_VariadicFunction(t *testing.T) {
	vm := New()
	require.NoError(t, vm.Bind("host::sum", func(ns ...int64) int64 {
		var total int64
		for _, n := range ns {
			total += n
		}
		return total
	}))

	v, err := vm.Eval(context.Background(), `host::sum(1, 2, 3, 4)`)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
}

func TestCall_ScriptFunction(t *testing.T) {
	vm := New()
	_, err := vm.Eval(context.Background(), `
fn triple(x) { x * 3 }

0
`)
	require.NoError(t, err)

	v, err := vm.Call(context.Background(), "triple", 14)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestCall_WithoutUnit(t *testing.T) {
	vm := New()
	_, err := vm.Call(context.Background(), "anything")
	require.Error(t, err)
}

func TestEval_SliceAndMapResults(t *testing.T) {
	vm := New()
	v, err := vm.Eval(context.Background(), `[1, 2, 3].into_iter().map(|x| x * x).collect()`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(4), int64(9)}, v)
}

func TestEval_RuntimeError(t *testing.T) {
	vm := New()
	_, err := vm.Eval(context.Background(), `1 / 0`)
	require.Error(t, err)

	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, runtime.DivideByZero, rerr.Kind)
}

func TestBudget_InfiniteLoopStopped(t *testing.T) {
	vm := New(WithBudget(10_000, 0))
	_, err := vm.Eval(context.Background(), `
loop {
    let x = 1;
}
`)
	require.Error(t, err)

	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, runtime.BudgetExhausted, rerr.Kind)
}

func TestCache_ReusesCompiledUnit(t *testing.T) {
	cache, err := modreg.OpenCache(filepath.Join(t.TempDir(), "units.db"))
	require.NoError(t, err)
	defer cache.Close()

	vm := New(WithCache(cache))
	code := `fn answer() { 42 }

answer()
`
	v, err := vm.Eval(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	// A second VM sharing the cache resolves the same source without
	// recompiling; the cached unit must still run and re-link natives.
	vm2 := New(WithCache(cache))
	v2, err := vm2.Eval(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
}

func TestRegistry_ExposedForDirectRegistration(t *testing.T) {
	vm := New()
	require.NotNil(t, vm.Registry())
}
