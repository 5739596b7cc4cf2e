// Package value implements the tagged-union runtime representation:
// Nil/Bool/Int/Float/Char/Byte are stored inline in a Kind tag plus a
// uint64 payload, everything else is a heap Object reached through Obj.
// This package owns its own heap types; nothing here imports another
// stage of the pipeline.
package value

import (
	"math"
	"strconv"
)

type Kind uint8

const (
	KNil Kind = iota
	KBool
	KInt
	KFloat
	KChar
	KByte
	KObj
)

// Value is a 32-byte (on 64-bit platforms) stack-allocated tagged union: primitives are packed
// into Data, composites live behind Obj so the GC only has to trace one
// pointer field per Value.
type Value struct {
	Kind Kind
	Data uint64
	Obj  Object
}

// Object is implemented by every heap-allocated value kind: vectors,
// maps, tuples, structs, variants,
// closures, futures, generators, streams, iterators, and opaque host
// values registered through pkg/weave.
type Object interface {
	TypeName() string
	Inspect() string
	Hash() uint64
	Equal(Object) bool
}

func Nil() Value { return Value{Kind: KNil} }

func Bool(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{Kind: KBool, Data: d}
}

func Int(v int64) Value         { return Value{Kind: KInt, Data: uint64(v)} }
func Float(v float64) Value     { return Value{Kind: KFloat, Data: math.Float64bits(v)} }
func Char(r rune) Value         { return Value{Kind: KChar, Data: uint64(r)} }
func Byte(b byte) Value         { return Value{Kind: KByte, Data: uint64(b)} }
func FromObject(o Object) Value { return Value{Kind: KObj, Obj: o} }
func Str(s string) Value        { return FromObject(NewString(s)) }

func (v Value) IsNil() bool   { return v.Kind == KNil }
func (v Value) AsBool() bool  { return v.Data == 1 }
func (v Value) AsInt() int64  { return int64(v.Data) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsChar() rune  { return rune(v.Data) }
func (v Value) AsByte() byte  { return byte(v.Data) }

// Truthy implements boolean-context coercion: only Bool(false) and Nil
// are falsy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNil:
		return false
	case KBool:
		return v.AsBool()
	default:
		return true
	}
}

func (v Value) TypeName() string {
	switch v.Kind {
	case KNil:
		return "Nil"
	case KBool:
		return "Bool"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KChar:
		return "Char"
	case KByte:
		return "Byte"
	case KObj:
		if v.Obj != nil {
			return v.Obj.TypeName()
		}
		return "Nil"
	default:
		return "?"
	}
}

// Equal implements structural value equality, with int/float
// cross-comparison and rune-based string equality.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		if v.Kind == KInt && other.Kind == KFloat {
			return float64(v.AsInt()) == other.AsFloat()
		}
		if v.Kind == KFloat && other.Kind == KInt {
			return v.AsFloat() == float64(other.AsInt())
		}
		return false
	}
	switch v.Kind {
	case KNil:
		return true
	case KBool, KInt, KChar, KByte:
		return v.Data == other.Data
	case KFloat:
		return v.Data == other.Data
	case KObj:
		if v.Obj == nil || other.Obj == nil {
			return v.Obj == other.Obj
		}
		return v.Obj.Equal(other.Obj)
	default:
		return false
	}
}

// Hash mirrors Equal's notion of identity so Values can key OrderedMap.
func (v Value) Hash() uint64 {
	switch v.Kind {
	case KNil:
		return 0
	case KBool, KInt, KChar, KByte:
		return v.Data
	case KFloat:
		f := v.AsFloat()
		if f == math.Trunc(f) {
			return uint64(int64(f)) // so Int(2) and Float(2.0) collide, matching Equal
		}
		return v.Data
	case KObj:
		if v.Obj != nil {
			return v.Obj.Hash()
		}
		return 0
	default:
		return 0
	}
}

func (v Value) Inspect() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case KFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case KChar:
		return string(v.AsChar())
	case KByte:
		return "b'" + string(rune(v.AsByte())) + "'"
	case KObj:
		if v.Obj != nil {
			return v.Obj.Inspect()
		}
		return "<nil>"
	default:
		return "<?>"
	}
}
