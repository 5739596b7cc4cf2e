package iterate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/value"
)

// doubleCaller is a fake Caller that doubles every Int argument it's
// handed, standing in for a `fn(x) = x * 2` Weave closure without
// needing a real VM.
type doubleCaller struct{}

func (doubleCaller) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	return value.Int(args[0].AsInt() * 2), nil
}

// evenCaller is a fake predicate Caller standing in for `fn(x) = x % 2 == 0`.
type evenCaller struct{}

func (evenCaller) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	return value.Bool(args[0].AsInt()%2 == 0), nil
}

// failCaller always errors, for testing that adapter errors propagate.
type failCaller struct{}

func (failCaller) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	return value.Nil(), errors.New("boom")
}

func ints(vs ...int64) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = value.Int(v)
	}
	return out
}

func drain(t *testing.T, it *Iterator) []int64 {
	t.Helper()
	var out []int64
	for {
		v, ok, err := it.Source.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, v.AsInt())
	}
}

func TestFromSlice_Next(t *testing.T) {
	it := FromSlice(ints(1, 2, 3))

	for _, want := range []int64{1, 2, 3} {
		opt, err := it.Next()
		require.NoError(t, err)
		vi, ok := opt.Obj.(*value.VariantInstance)
		require.True(t, ok)
		assert.Equal(t, "Some", vi.Variant)
		assert.Equal(t, want, vi.Elems[0].AsInt())
	}

	opt, err := it.Next()
	require.NoError(t, err)
	vi := opt.Obj.(*value.VariantInstance)
	assert.Equal(t, "None", vi.Variant)
}

func TestFromSlice_CopiesBackingArray(t *testing.T) {
	elems := ints(1, 2)
	it := FromSlice(elems)
	elems[0] = value.Int(99)

	got := drain(t, it)
	assert.Equal(t, []int64{1, 2}, got)
}

func TestFromRange_LazyAndInclusive(t *testing.T) {
	exclusive := FromRange(1, 4, false)
	assert.Equal(t, []int64{1, 2, 3}, drain(t, exclusive))

	inclusive := FromRange(1, 4, true)
	assert.Equal(t, []int64{1, 2, 3, 4}, drain(t, inclusive))
}

func TestMap(t *testing.T) {
	it := FromSlice(ints(1, 2, 3)).Map(doubleCaller{}, value.Nil())
	assert.Equal(t, []int64{2, 4, 6}, drain(t, it))
}

func TestFilter(t *testing.T) {
	it := FromSlice(ints(1, 2, 3, 4)).Filter(evenCaller{}, value.Nil())
	assert.Equal(t, []int64{2, 4}, drain(t, it))
}

func TestMap_PropagatesCallError(t *testing.T) {
	it := FromSlice(ints(1)).Map(failCaller{}, value.Nil())
	_, _, err := it.Source.Next()
	require.Error(t, err)
}

func TestEnumerate(t *testing.T) {
	it := FromSlice(ints(10, 20)).Enumerate()

	first, _, err := it.Source.Next()
	require.NoError(t, err)
	tup := first.Obj.(*value.Tuple)
	assert.Equal(t, int64(0), tup.Elems[0].AsInt())
	assert.Equal(t, int64(10), tup.Elems[1].AsInt())

	second, _, err := it.Source.Next()
	require.NoError(t, err)
	tup2 := second.Obj.(*value.Tuple)
	assert.Equal(t, int64(1), tup2.Elems[0].AsInt())
}

func TestTakeAndSkip(t *testing.T) {
	taken := FromSlice(ints(1, 2, 3, 4, 5)).Take(2)
	assert.Equal(t, []int64{1, 2}, drain(t, taken))

	skipped := FromSlice(ints(1, 2, 3, 4, 5)).Skip(3)
	assert.Equal(t, []int64{4, 5}, drain(t, skipped))
}

func TestChain(t *testing.T) {
	chained := FromSlice(ints(1, 2)).Chain(FromSlice(ints(3, 4)))
	assert.Equal(t, []int64{1, 2, 3, 4}, drain(t, chained))
}

func TestZip_StopsAtShorter(t *testing.T) {
	zipped := FromSlice(ints(1, 2, 3)).Zip(FromSlice(ints(10, 20)))

	var pairs [][2]int64
	for {
		v, ok, err := zipped.Source.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		tup := v.Obj.(*value.Tuple)
		pairs = append(pairs, [2]int64{tup.Elems[0].AsInt(), tup.Elems[1].AsInt()})
	}
	assert.Equal(t, [][2]int64{{1, 10}, {2, 20}}, pairs)
}

func TestRev(t *testing.T) {
	it := FromSlice(ints(1, 2, 3))
	rev, err := it.Rev()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, drain(t, rev))
}

func TestCollect(t *testing.T) {
	it := FromSlice(ints(1, 2, 3)).Map(doubleCaller{}, value.Nil())
	vec, err := it.Collect()
	require.NoError(t, err)
	require.Len(t, vec.Elems, 3)
	assert.Equal(t, int64(2), vec.Elems[0].AsInt())
}

func TestIntoIter_Idempotent(t *testing.T) {
	it := FromSlice(ints(1))
	assert.Same(t, it, it.IntoIter())
}
