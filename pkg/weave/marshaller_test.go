package weave

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/value"
)

type point struct {
	X    int64
	Y    int64
	Name string

	hidden int
}

func TestToValue_Scalars(t *testing.T) {
	m := NewMarshaller()

	v, err := m.ToValue(int(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.AsInt())

	v, err = m.ToValue(uint8(255))
	require.NoError(t, err)
	assert.Equal(t, int64(255), v.AsInt())

	v, err = m.ToValue(3.5)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v.AsFloat())

	v, err = m.ToValue(true)
	require.NoError(t, err)
	assert.True(t, v.AsBool())

	v, err = m.ToValue("hi")
	require.NoError(t, err)
	s, ok := v.Obj.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "hi", s.S)

	v, err = m.ToValue(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestToValue_ByteSliceBecomesBytes(t *testing.T) {
	m := NewMarshaller()
	v, err := m.ToValue([]byte{1, 2, 3})
	require.NoError(t, err)
	b, ok := v.Obj.(*value.Bytes)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, b.B)
}

func TestToValue_SliceAndMap(t *testing.T) {
	m := NewMarshaller()

	v, err := m.ToValue([]int64{1, 2, 3})
	require.NoError(t, err)
	vec, ok := v.Obj.(*value.Vector)
	require.True(t, ok)
	require.Len(t, vec.Elems, 3)
	assert.Equal(t, int64(2), vec.Elems[1].AsInt())

	v, err = m.ToValue(map[string]int64{"a": 1})
	require.NoError(t, err)
	om, ok := v.Obj.(*value.OrderedMap)
	require.True(t, ok)
	got, found := om.Get(value.Str("a"))
	require.True(t, found)
	assert.Equal(t, int64(1), got.AsInt())
}

func TestStructRoundTrip(t *testing.T) {
	m := NewMarshaller()
	in := point{X: 3, Y: 4, Name: "origin", hidden: 9}

	v, err := m.ToValue(in)
	require.NoError(t, err)
	s, ok := v.Obj.(*value.StructInstance)
	require.True(t, ok)
	assert.Equal(t, "point", s.TypeNameStr)
	assert.Equal(t, 3, s.Fields.Len(), "unexported field must not marshal")

	out, err := m.FromValue(v, reflect.TypeOf(point{}))
	require.NoError(t, err)
	back, ok := out.(point)
	require.True(t, ok)
	assert.Equal(t, int64(3), back.X)
	assert.Equal(t, "origin", back.Name)
	assert.Zero(t, back.hidden)
}

func TestFromValue_StructToMapWithoutTarget(t *testing.T) {
	m := NewMarshaller()
	v, err := m.ToValue(point{X: 1, Y: 2, Name: "p"})
	require.NoError(t, err)

	out, err := m.FromValue(v, nil)
	require.NoError(t, err)
	got, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), got["X"])
	assert.Equal(t, "p", got["Name"])
}

func TestFromValue_TargetTypedSlice(t *testing.T) {
	m := NewMarshaller()
	vec := value.FromObject(value.NewVector([]value.Value{value.Int(1), value.Int(2)}))

	out, err := m.FromValue(vec, reflect.TypeOf([]int64{}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, out)
}

func TestFromValue_TargetTypedMap(t *testing.T) {
	m := NewMarshaller()
	om := value.NewOrderedMap()
	om.Set(value.Str("a"), value.Int(1))
	om.Set(value.Str("b"), value.Int(2))

	out, err := m.FromValue(value.FromObject(om), reflect.TypeOf(map[string]int64{}))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": 1, "b": 2}, out)
}

func TestWrapFunc_TupleForMultipleResults(t *testing.T) {
	m := NewMarshaller()
	fn := m.WrapFunc("divmod", reflect.ValueOf(func(a, b int64) (int64, int64) {
		return a / b, a % b
	}))
	assert.Equal(t, 2, fn.Arity)

	v, err := fn.Fn([]value.Value{value.Int(7), value.Int(2)})
	require.NoError(t, err)
	tup, ok := v.Obj.(*value.Tuple)
	require.True(t, ok)
	require.Len(t, tup.Elems, 2)
	assert.Equal(t, int64(3), tup.Elems[0].AsInt())
	assert.Equal(t, int64(1), tup.Elems[1].AsInt())
}

func TestWrapFunc_ArityMismatch(t *testing.T) {
	m := NewMarshaller()
	fn := m.WrapFunc("one", reflect.ValueOf(func(a int64) int64 { return a }))

	_, err := fn.Fn(nil)
	require.Error(t, err)
}

func TestFromValue_HostValueUnwraps(t *testing.T) {
	m := NewMarshaller()
	native := &point{X: 1}
	v, err := m.ToValue(native)
	require.NoError(t, err)
	hv, ok := v.Obj.(*value.HostValue)
	require.True(t, ok, "pointers stay opaque host values")

	out, err := m.FromValue(value.FromObject(hv), nil)
	require.NoError(t, err)
	assert.Same(t, native, out)
}
