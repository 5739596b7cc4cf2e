package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual_PrimitivesReflexiveAndSymmetric(t *testing.T) {
	vals := []Value{Nil(), Bool(true), Bool(false), Int(0), Int(-3), Float(2.5), Char('w'), Byte(7), Str("hi")}
	for _, v := range vals {
		assert.True(t, v.Equal(v), "reflexivity for %s", v.Inspect())
	}
	for _, a := range vals {
		for _, b := range vals {
			assert.Equal(t, a.Equal(b), b.Equal(a), "symmetry for %s / %s", a.Inspect(), b.Inspect())
		}
	}
}

func TestEqual_IntFloatCrossComparison(t *testing.T) {
	assert.True(t, Int(2).Equal(Float(2.0)))
	assert.True(t, Float(2.0).Equal(Int(2)))
	assert.False(t, Int(2).Equal(Float(2.5)))
	assert.False(t, Int(2).Equal(Bool(true)))
}

func TestHash_AgreesWithEqual(t *testing.T) {
	pairs := [][2]Value{
		{Int(2), Float(2.0)},
		{Str("abc"), Str("abc")},
		{FromObject(NewVector([]Value{Int(1), Int(2)})), FromObject(NewVector([]Value{Int(1), Int(2)}))},
		{FromObject(NewTuple([]Value{Int(1), Str("x")})), FromObject(NewTuple([]Value{Int(1), Str("x")}))},
	}
	for _, p := range pairs {
		assert.True(t, p[0].Equal(p[1]), "%s == %s", p[0].Inspect(), p[1].Inspect())
		assert.Equal(t, p[0].Hash(), p[1].Hash(), "hash mismatch for %s", p[0].Inspect())
	}
}

func TestEqual_VectorStructural(t *testing.T) {
	a := FromObject(NewVector([]Value{Int(1), Int(2)}))
	b := FromObject(NewVector([]Value{Int(1), Int(2)}))
	c := FromObject(NewVector([]Value{Int(1)}))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestOrderedMap_InsertionOrderAndLookup(t *testing.T) {
	m := NewOrderedMap()
	m.Set(Str("b"), Int(2))
	m.Set(Str("a"), Int(1))
	m.Set(Str("b"), Int(20)) // overwrite keeps original position

	var keys []string
	m.Each(func(k, v Value) {
		keys = append(keys, k.Inspect())
	})
	assert.Equal(t, []string{`"b"`, `"a"`}, keys)

	got, ok := m.Get(Str("b"))
	assert.True(t, ok)
	assert.Equal(t, int64(20), got.AsInt())

	assert.True(t, m.Delete(Str("a")))
	assert.False(t, m.Delete(Str("a")))
	assert.Equal(t, 1, m.Len())
}

func TestOrderedMap_IntFloatKeysCollide(t *testing.T) {
	m := NewOrderedMap()
	m.Set(Int(2), Str("two"))
	got, ok := m.Get(Float(2.0))
	assert.True(t, ok)
	assert.Equal(t, `"two"`, got.Inspect())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Nil().Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Int(0).Truthy())
	assert.True(t, Str("").Truthy())
}

func TestInspect(t *testing.T) {
	assert.Equal(t, "nil", Nil().Inspect())
	assert.Equal(t, "true", Bool(true).Inspect())
	assert.Equal(t, "-3", Int(-3).Inspect())
	assert.Equal(t, "2.5", Float(2.5).Inspect())
	assert.Equal(t, `"hi"`, Str("hi").Inspect())
	assert.Equal(t, "[1, 2]", FromObject(NewVector([]Value{Int(1), Int(2)})).Inspect())
}
