package runtime

import (
	"sort"
	"strings"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/iterate"
	"github.com/weave-lang/weave/internal/value"
)

// CallValue implements iterate.Caller, letting internal/iterate's Map/
// Filter adapters invoke a Weave closure per pulled element without
// internal/iterate importing this package (which already imports
// internal/iterate, so the reverse would cycle).
func (vm *VM) CallValue(fn value.Value, args []value.Value) (value.Value, error) {
	v, err := vm.callValue(fn, args)
	if err != nil {
		return value.Nil(), err
	}
	return v, nil
}

// callMethod dispatches OP_CALL_METHOD: built-in library types get their
// Go-implemented methods directly, while struct and enum receivers look
// up the `impl`-block function registered under "Type::name" in the
// unit's function table, with the receiver bound as `self`.
func (vm *VM) callMethod(recv value.Value, method string, args []value.Value) (value.Value, *Error) {
	switch o := recv.Obj.(type) {
	case *value.Vector:
		return vm.vectorMethod(o, method, args)
	case *value.OrderedMap:
		return vm.mapMethod(o, method, args)
	case *value.String:
		return vm.stringMethod(o, method, args)
	case *value.Tuple:
		return vm.tupleMethod(o, method, args)
	case *value.Range:
		return vm.rangeMethod(o, method, args)
	case *value.Generator:
		return vm.generatorMethod(o, method, args)
	case *value.Future:
		return vm.futureMethod(o, method, args)
	case *iterate.Iterator:
		return vm.iteratorMethod(o, method, args)
	case *value.StructInstance:
		return vm.implMethod(o.TypeNameStr, recv, method, args)
	case *value.VariantInstance:
		return vm.implMethod(o.EnumName, recv, method, args)
	default:
		return value.Nil(), vm.raise(BadAccess, "%s has no method %q", recv.TypeName(), method)
	}
}

// implMethod resolves a dot-call on a user-declared type to the
// "Type::name" function its `impl` block lowered to, binding the
// receiver as the method's `self` parameter. The index over the unit's
// function table is built once, on the first such call.
func (vm *VM) implMethod(typeName string, recv value.Value, method string, args []value.Value) (value.Value, *Error) {
	if vm.methods == nil {
		vm.methods = make(map[string]int)
		for i, proto := range vm.unit.Functions {
			if strings.Contains(proto.Name, "::") {
				if _, dup := vm.methods[proto.Name]; !dup {
					vm.methods[proto.Name] = i
				}
			}
		}
	}
	idx, ok := vm.methods[typeName+"::"+method]
	if !ok {
		return value.Nil(), vm.raise(BadAccess, "%s has no method %q", typeName, method)
	}
	full := make([]value.Value, 0, len(args)+1)
	full = append(full, recv)
	full = append(full, args...)
	return vm.callClosureValue(&value.Closure{Proto: vm.unit.Functions[idx]}, full)
}

// asRuntimeErr adapts a plain error from internal/iterate (itself
// adapted from a *Error via CallValue, or a genuine Go error from
// nowhere in this codebase today) back into this package's *Error, so
// every call site here keeps returning the one error type the rest of
// internal/runtime uses.
func asRuntimeErr(err error) *Error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*Error); ok {
		return re
	}
	return newError(Panic, "%v", err)
}

// iteratorMethod dispatches the adapter methods on an already-built
// Iterator value: map, filter, enumerate, take, skip, chain, zip, rev,
// and collect, plus into_iter/next themselves.
func (vm *VM) iteratorMethod(it *iterate.Iterator, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		return value.FromObject(it.IntoIter()), nil
	case "next":
		v, err := it.Next()
		return v, asRuntimeErr(err)
	case "map":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "map expects 1 argument, got %d", len(args))
		}
		return value.FromObject(it.Map(vm, args[0])), nil
	case "filter":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "filter expects 1 argument, got %d", len(args))
		}
		return value.FromObject(it.Filter(vm, args[0])), nil
	case "enumerate":
		return value.FromObject(it.Enumerate()), nil
	case "take":
		if len(args) != 1 || args[0].Kind != value.KInt {
			return value.Nil(), vm.raise(BadArgument, "take expects 1 Int argument")
		}
		return value.FromObject(it.Take(args[0].AsInt())), nil
	case "skip":
		if len(args) != 1 || args[0].Kind != value.KInt {
			return value.Nil(), vm.raise(BadArgument, "skip expects 1 Int argument")
		}
		return value.FromObject(it.Skip(args[0].AsInt())), nil
	case "chain":
		other, ok := singleIterArg(args)
		if !ok {
			return value.Nil(), vm.raise(BadArgument, "chain expects 1 Iterator argument")
		}
		return value.FromObject(it.Chain(other)), nil
	case "zip":
		other, ok := singleIterArg(args)
		if !ok {
			return value.Nil(), vm.raise(BadArgument, "zip expects 1 Iterator argument")
		}
		return value.FromObject(it.Zip(other)), nil
	case "rev":
		rev, err := it.Rev()
		if err != nil {
			return value.Nil(), asRuntimeErr(err)
		}
		return value.FromObject(rev), nil
	case "collect":
		vec, err := it.Collect()
		if err != nil {
			return value.Nil(), asRuntimeErr(err)
		}
		return value.FromObject(vec), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Iterator has no method %q", method)
	}
}

func singleIterArg(args []value.Value) (*iterate.Iterator, bool) {
	if len(args) != 1 {
		return nil, false
	}
	other, ok := args[0].Obj.(*iterate.Iterator)
	return other, ok
}

func (vm *VM) vectorMethod(v *value.Vector, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		return value.FromObject(iterate.FromSlice(v.Elems)), nil
	case "len":
		return value.Int(int64(len(v.Elems))), nil
	case "push":
		v.Elems = append(v.Elems, args...)
		return value.FromObject(v), nil
	case "pop":
		if len(v.Elems) == 0 {
			return value.Nil(), vm.raise(BadAccess, "pop on empty Vector")
		}
		last := v.Elems[len(v.Elems)-1]
		v.Elems = v.Elems[:len(v.Elems)-1]
		return last, nil
	case "get":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "get expects 1 argument, got %d", len(args))
		}
		i, err := vm.normalizeIndex(args[0], len(v.Elems))
		if err != nil {
			return value.Nil(), err
		}
		return v.Elems[i], nil
	case "contains":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "contains expects 1 argument, got %d", len(args))
		}
		for _, e := range v.Elems {
			if e.Equal(args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case "reverse":
		out := make([]value.Value, len(v.Elems))
		for i, e := range v.Elems {
			out[len(v.Elems)-1-i] = e
		}
		return value.FromObject(value.NewVector(out)), nil
	case "slice":
		if len(args) != 2 {
			return value.Nil(), vm.raise(BadArgument, "slice expects 2 arguments, got %d", len(args))
		}
		from, to := int(args[0].AsInt()), int(args[1].AsInt())
		if from < 0 || to > len(v.Elems) || from > to {
			return value.Nil(), vm.raise(BadAccess, "slice bounds [%d:%d] out of range for length %d", from, to, len(v.Elems))
		}
		out := append([]value.Value{}, v.Elems[from:to]...)
		return value.FromObject(value.NewVector(out)), nil
	case "map":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "map expects 1 argument, got %d", len(args))
		}
		out := make([]value.Value, len(v.Elems))
		for i, e := range v.Elems {
			r, err := vm.callValue(args[0], []value.Value{e})
			if err != nil {
				return value.Nil(), err
			}
			out[i] = r
		}
		return value.FromObject(value.NewVector(out)), nil
	case "filter":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "filter expects 1 argument, got %d", len(args))
		}
		var out []value.Value
		for _, e := range v.Elems {
			r, err := vm.callValue(args[0], []value.Value{e})
			if err != nil {
				return value.Nil(), err
			}
			if r.Truthy() {
				out = append(out, e)
			}
		}
		return value.FromObject(value.NewVector(out)), nil
	case "each":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "each expects 1 argument, got %d", len(args))
		}
		for _, e := range v.Elems {
			if _, err := vm.callValue(args[0], []value.Value{e}); err != nil {
				return value.Nil(), err
			}
		}
		return value.Nil(), nil
	case "sort":
		out := append([]value.Value{}, v.Elems...)
		var sortErr *Error
		sort.SliceStable(out, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			r, err := vm.compare(bytecode.OP_LT, out[i], out[j])
			if err != nil {
				sortErr = err
				return false
			}
			return r.AsBool()
		})
		if sortErr != nil {
			return value.Nil(), sortErr
		}
		return value.FromObject(value.NewVector(out)), nil
	case "join":
		sep := ""
		if len(args) == 1 {
			if s, ok := args[0].Obj.(*value.String); ok {
				sep = s.S
			}
		}
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = elemString(e)
		}
		return value.Str(strings.Join(parts, sep)), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Vector has no method %q", method)
	}
}

func elemString(v value.Value) string {
	if s, ok := v.Obj.(*value.String); ok {
		return s.S
	}
	return v.Inspect()
}

func (vm *VM) mapMethod(m *value.OrderedMap, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		var entries []value.Value
		m.Each(func(k, v value.Value) {
			entries = append(entries, value.FromObject(value.NewTuple([]value.Value{k, v})))
		})
		return value.FromObject(iterate.FromSlice(entries)), nil
	case "len":
		return value.Int(int64(m.Len())), nil
	case "get":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "get expects 1 argument, got %d", len(args))
		}
		v, ok := m.Get(args[0])
		if !ok {
			return value.Nil(), nil
		}
		return v, nil
	case "set":
		if len(args) != 2 {
			return value.Nil(), vm.raise(BadArgument, "set expects 2 arguments, got %d", len(args))
		}
		m.Set(args[0], args[1])
		return value.FromObject(m), nil
	case "delete":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "delete expects 1 argument, got %d", len(args))
		}
		return value.Bool(m.Delete(args[0])), nil
	case "contains":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "contains expects 1 argument, got %d", len(args))
		}
		_, ok := m.Get(args[0])
		return value.Bool(ok), nil
	case "keys":
		var out []value.Value
		m.Each(func(k, _ value.Value) { out = append(out, k) })
		return value.FromObject(value.NewVector(out)), nil
	case "values":
		var out []value.Value
		m.Each(func(_, v value.Value) { out = append(out, v) })
		return value.FromObject(value.NewVector(out)), nil
	case "each":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "each expects 1 argument, got %d", len(args))
		}
		var callErr *Error
		m.Each(func(k, v value.Value) {
			if callErr != nil {
				return
			}
			_, err := vm.callValue(args[0], []value.Value{k, v})
			callErr = err
		})
		if callErr != nil {
			return value.Nil(), callErr
		}
		return value.Nil(), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Map has no method %q", method)
	}
}

func (vm *VM) stringMethod(s *value.String, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		runes := []rune(s.S)
		out := make([]value.Value, len(runes))
		for i, r := range runes {
			out[i] = value.Char(r)
		}
		return value.FromObject(iterate.FromSlice(out)), nil
	case "len":
		return value.Int(int64(len([]rune(s.S)))), nil
	case "upper":
		return value.Str(strings.ToUpper(s.S)), nil
	case "lower":
		return value.Str(strings.ToLower(s.S)), nil
	case "trim":
		return value.Str(strings.TrimSpace(s.S)), nil
	case "contains":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "contains expects 1 argument, got %d", len(args))
		}
		needle, ok := args[0].Obj.(*value.String)
		if !ok {
			return value.Nil(), vm.raise(BadArgument, "contains expects a String argument")
		}
		return value.Bool(strings.Contains(s.S, needle.S)), nil
	case "startsWith":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "startsWith expects 1 argument, got %d", len(args))
		}
		p, _ := args[0].Obj.(*value.String)
		return value.Bool(p != nil && strings.HasPrefix(s.S, p.S)), nil
	case "endsWith":
		if len(args) != 1 {
			return value.Nil(), vm.raise(BadArgument, "endsWith expects 1 argument, got %d", len(args))
		}
		p, _ := args[0].Obj.(*value.String)
		return value.Bool(p != nil && strings.HasSuffix(s.S, p.S)), nil
	case "split":
		sep := ""
		if len(args) == 1 {
			if p, ok := args[0].Obj.(*value.String); ok {
				sep = p.S
			}
		}
		parts := strings.Split(s.S, sep)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.Str(p)
		}
		return value.FromObject(value.NewVector(out)), nil
	case "chars":
		runes := []rune(s.S)
		out := make([]value.Value, len(runes))
		for i, r := range runes {
			out[i] = value.Char(r)
		}
		return value.FromObject(value.NewVector(out)), nil
	case "slice":
		if len(args) != 2 {
			return value.Nil(), vm.raise(BadArgument, "slice expects 2 arguments, got %d", len(args))
		}
		runes := []rune(s.S)
		from, to := int(args[0].AsInt()), int(args[1].AsInt())
		if from < 0 || to > len(runes) || from > to {
			return value.Nil(), vm.raise(BadAccess, "slice bounds [%d:%d] out of range for length %d", from, to, len(runes))
		}
		return value.Str(string(runes[from:to])), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "String has no method %q", method)
	}
}

func (vm *VM) tupleMethod(t *value.Tuple, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		return value.FromObject(iterate.FromSlice(t.Elems)), nil
	case "len":
		return value.Int(int64(len(t.Elems))), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Tuple has no method %q", method)
	}
}

func (vm *VM) rangeMethod(r *value.Range, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "into_iter", "iter":
		return value.FromObject(iterate.FromRange(r.Start, r.End, r.Inclusive)), nil
	case "contains":
		if len(args) != 1 || args[0].Kind != value.KInt {
			return value.Nil(), vm.raise(BadArgument, "contains expects 1 Int argument")
		}
		n := args[0].AsInt()
		if r.Inclusive {
			return value.Bool(n >= r.Start && n <= r.End), nil
		}
		return value.Bool(n >= r.Start && n < r.End), nil
	case "toVector":
		end := r.End
		if r.Inclusive {
			end++
		}
		var out []value.Value
		for i := r.Start; i < end; i++ {
			out = append(out, value.Int(i))
		}
		return value.FromObject(value.NewVector(out)), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Range has no method %q", method)
	}
}
