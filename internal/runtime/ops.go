package runtime

import (
	"math"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

// arith implements OP_ADD/SUB/MUL/DIV/MOD/POW over Int/Float, promoting
// an Int operand to Float when mixed with one.
func (vm *VM) arith(op bytecode.Op, a, b value.Value) (value.Value, *Error) {
	if a.Kind == value.KInt && b.Kind == value.KInt {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OP_ADD:
			return value.Int(x + y), nil
		case bytecode.OP_SUB:
			return value.Int(x - y), nil
		case bytecode.OP_MUL:
			return value.Int(x * y), nil
		case bytecode.OP_DIV:
			if y == 0 {
				return value.Nil(), vm.raise(DivideByZero, "integer division by zero")
			}
			return value.Int(x / y), nil
		case bytecode.OP_MOD:
			if y == 0 {
				return value.Nil(), vm.raise(DivideByZero, "integer modulo by zero")
			}
			return value.Int(x % y), nil
		case bytecode.OP_POW:
			return value.Int(intPow(x, y)), nil
		}
	}
	xf, ok1 := asFloat(a)
	yf, ok2 := asFloat(b)
	if !ok1 || !ok2 {
		return value.Nil(), vm.raise(BadArgument, "%s not defined for %s and %s", op, a.TypeName(), b.TypeName())
	}
	switch op {
	case bytecode.OP_ADD:
		return value.Float(xf + yf), nil
	case bytecode.OP_SUB:
		return value.Float(xf - yf), nil
	case bytecode.OP_MUL:
		return value.Float(xf * yf), nil
	case bytecode.OP_DIV:
		// IEEE-754: x/0.0 is Inf/NaN, never an error. Only integer
		// division by zero raises.
		return value.Float(xf / yf), nil
	case bytecode.OP_MOD:
		return value.Float(math.Mod(xf, yf)), nil
	case bytecode.OP_POW:
		return value.Float(math.Pow(xf, yf)), nil
	}
	return value.Nil(), vm.raise(BadArgument, "unknown arithmetic operator %s", op)
}

func asFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KInt:
		return float64(v.AsInt()), true
	case value.KFloat:
		return v.AsFloat(), true
	default:
		return 0, false
	}
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func (vm *VM) negate(a value.Value) (value.Value, *Error) {
	switch a.Kind {
	case value.KInt:
		return value.Int(-a.AsInt()), nil
	case value.KFloat:
		return value.Float(-a.AsFloat()), nil
	default:
		return value.Nil(), vm.raise(BadArgument, "unary - requires Int or Float, got %s", a.TypeName())
	}
}

func (vm *VM) bitwise(op bytecode.Op, a, b value.Value) (value.Value, *Error) {
	if a.Kind != value.KInt || b.Kind != value.KInt {
		return value.Nil(), vm.raise(BadArgument, "%s requires two Ints, got %s and %s", op, a.TypeName(), b.TypeName())
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case bytecode.OP_BAND:
		return value.Int(x & y), nil
	case bytecode.OP_BOR:
		return value.Int(x | y), nil
	case bytecode.OP_BXOR:
		return value.Int(x ^ y), nil
	case bytecode.OP_LSHIFT:
		return value.Int(x << uint(y)), nil
	case bytecode.OP_RSHIFT:
		return value.Int(x >> uint(y)), nil
	}
	return value.Nil(), vm.raise(BadArgument, "unknown bitwise operator %s", op)
}

// concat implements `++`: String++String and Vector++Vector.
func (vm *VM) concat(a, b value.Value) (value.Value, *Error) {
	if as, ok := a.Obj.(*value.String); ok {
		bs, ok := b.Obj.(*value.String)
		if !ok {
			return value.Nil(), vm.raise(BadArgument, "++ requires two Strings, got String and %s", b.TypeName())
		}
		return value.Str(as.S + bs.S), nil
	}
	if av, ok := a.Obj.(*value.Vector); ok {
		bv, ok := b.Obj.(*value.Vector)
		if !ok {
			return value.Nil(), vm.raise(BadArgument, "++ requires two Vectors, got Vector and %s", b.TypeName())
		}
		elems := make([]value.Value, 0, len(av.Elems)+len(bv.Elems))
		elems = append(elems, av.Elems...)
		elems = append(elems, bv.Elems...)
		return value.FromObject(value.NewVector(elems)), nil
	}
	return value.Nil(), vm.raise(BadArgument, "++ not defined for %s", a.TypeName())
}

// compare implements the ordering operators over Int/Float/String, the
// only three orderable kinds in this value model.
func (vm *VM) compare(op bytecode.Op, a, b value.Value) (value.Value, *Error) {
	var cmp int
	switch {
	case a.Kind == value.KInt && b.Kind == value.KInt:
		x, y := a.AsInt(), b.AsInt()
		cmp = cmpInt(x, y)
	case (a.Kind == value.KInt || a.Kind == value.KFloat) && (b.Kind == value.KInt || b.Kind == value.KFloat):
		xf, _ := asFloat(a)
		yf, _ := asFloat(b)
		cmp = cmpFloat(xf, yf)
	default:
		as, aok := a.Obj.(*value.String)
		bs, bok := b.Obj.(*value.String)
		if !aok || !bok {
			return value.Nil(), vm.raise(BadArgument, "%s not defined for %s and %s", op, a.TypeName(), b.TypeName())
		}
		cmp = cmpString(as.S, bs.S)
	}
	switch op {
	case bytecode.OP_LT:
		return value.Bool(cmp < 0), nil
	case bytecode.OP_LE:
		return value.Bool(cmp <= 0), nil
	case bytecode.OP_GT:
		return value.Bool(cmp > 0), nil
	case bytecode.OP_GE:
		return value.Bool(cmp >= 0), nil
	}
	return value.Nil(), vm.raise(BadArgument, "unknown comparison operator %s", op)
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpString(x, y string) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// getField reads a named field off a struct or a struct-shaped variant
// payload; every other kind raises BadAccess since Vector/
// Map/Tuple expose their contents only through methods and OP_GET_INDEX.
func (vm *VM) getField(obj value.Value, name string) (value.Value, *Error) {
	switch o := obj.Obj.(type) {
	case *value.StructInstance:
		if v, ok := o.Fields.Get(value.Str(name)); ok {
			return v, nil
		}
		return value.Nil(), vm.raise(BadAccess, "%s has no field %q", o.TypeNameStr, name)
	case *value.VariantInstance:
		if o.Fields != nil {
			if v, ok := o.Fields.Get(value.Str(name)); ok {
				return v, nil
			}
		}
		return value.Nil(), vm.raise(BadAccess, "%s::%s has no field %q", o.EnumName, o.Variant, name)
	default:
		return value.Nil(), vm.raise(BadAccess, "%s has no field %q", obj.TypeName(), name)
	}
}

// setField mutates a struct's field in place. Mutation-conflict
// detection is not yet wired: Vector/OrderedMap/StructInstance carry no
// borrow-state, so a setField during an active iteration over the same
// struct is not yet caught here.
func (vm *VM) setField(obj value.Value, name string, val value.Value) *Error {
	s, ok := obj.Obj.(*value.StructInstance)
	if !ok {
		return vm.raise(BadAccess, "%s has no mutable field %q", obj.TypeName(), name)
	}
	s.Fields.Set(value.Str(name), val)
	return nil
}

// getIndex implements OP_GET_INDEX over Vector, Tuple, OrderedMap, and
// String (by rune position).
func (vm *VM) getIndex(obj, idx value.Value) (value.Value, *Error) {
	switch o := obj.Obj.(type) {
	case *value.Vector:
		i, err := vm.normalizeIndex(idx, len(o.Elems))
		if err != nil {
			return value.Nil(), err
		}
		return o.Elems[i], nil
	case *value.Tuple:
		i, err := vm.normalizeIndex(idx, len(o.Elems))
		if err != nil {
			return value.Nil(), err
		}
		return o.Elems[i], nil
	case *value.OrderedMap:
		v, ok := o.Get(idx)
		if !ok {
			return value.Nil(), vm.raise(BadAccess, "key %s not found", idx.Inspect())
		}
		return v, nil
	case *value.String:
		runes := []rune(o.S)
		i, err := vm.normalizeIndex(idx, len(runes))
		if err != nil {
			return value.Nil(), err
		}
		return value.Char(runes[i]), nil
	case *value.Bytes:
		i, err := vm.normalizeIndex(idx, len(o.B))
		if err != nil {
			return value.Nil(), err
		}
		return value.Byte(o.B[i]), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "%s is not indexable", obj.TypeName())
	}
}

func (vm *VM) normalizeIndex(idx value.Value, length int) (int, *Error) {
	if idx.Kind != value.KInt {
		return 0, vm.raise(BadArgument, "index must be an Int, got %s", idx.TypeName())
	}
	i := int(idx.AsInt())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, vm.raise(BadAccess, "index %d out of bounds (length %d)", idx.AsInt(), length)
	}
	return i, nil
}

// setIndex implements OP_SET_INDEX over Vector and OrderedMap; String/
// Bytes/Tuple are immutable at an index.
func (vm *VM) setIndex(obj, idx, val value.Value) *Error {
	switch o := obj.Obj.(type) {
	case *value.Vector:
		i, err := vm.normalizeIndex(idx, len(o.Elems))
		if err != nil {
			return err
		}
		o.Elems[i] = val
		return nil
	case *value.OrderedMap:
		o.Set(idx, val)
		return nil
	default:
		return vm.raise(BadArgument, "%s does not support index assignment", obj.TypeName())
	}
}

// unwrapTry implements OP_TRY's Result/Option recognition: both are
// ordinary two-variant enums in this value model (`Result` and `Option`
// are library enums, not a distinct kind), so `?` pattern-matches
// on VariantInstance.Variant by name rather than a dedicated Value kind.
func unwrapTry(v value.Value) (unwrapped value.Value, isErr bool, ok bool) {
	vi, isVariant := v.Obj.(*value.VariantInstance)
	if !isVariant {
		return value.Nil(), false, false
	}
	switch vi.Variant {
	case "Ok", "Some":
		if len(vi.Elems) > 0 {
			return vi.Elems[0], false, true
		}
		return value.Nil(), false, true
	case "Err", "None":
		return value.Nil(), true, true
	default:
		return value.Nil(), false, false
	}
}
