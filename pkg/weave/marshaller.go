package weave

import (
	"fmt"
	"reflect"

	"github.com/weave-lang/weave/internal/value"
)

// Marshaller converts between Go values and script values in both
// directions: Bind/Call arguments travel Go -> script, results travel
// script -> Go. Conversions are structural — a Go struct becomes a
// struct instance field by field, a slice becomes a Vector element by
// element — except for pointers and unrecognized kinds, which are
// wrapped as opaque host values and handed back untouched.
type Marshaller struct{}

func NewMarshaller() *Marshaller { return &Marshaller{} }

var errType = reflect.TypeOf((*error)(nil)).Elem()

// ToValue converts a Go value to a script value.
func (m *Marshaller) ToValue(val interface{}) (value.Value, error) {
	if val == nil {
		return value.Nil(), nil
	}
	if v, ok := val.(value.Value); ok {
		return v, nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return value.Nil(), nil
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return value.Float(rv.Float()), nil
	case reflect.Bool:
		return value.Bool(rv.Bool()), nil
	case reflect.String:
		return value.Str(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return value.FromObject(value.NewBytes(rv.Bytes())), nil
		}
		return m.sliceToVector(rv)
	case reflect.Map:
		return m.mapToOrderedMap(rv)
	case reflect.Struct:
		return m.structToInstance(rv)
	case reflect.Func:
		return value.FromObject(m.WrapFunc(rv.Type().String(), rv)), nil
	case reflect.Ptr:
		return value.FromObject(&value.HostValue{TypeNameStr: rv.Type().String(), Native: val}), nil
	default:
		return value.FromObject(&value.HostValue{TypeNameStr: rv.Type().String(), Native: val}), nil
	}
}

// FromValue converts a script value back to a Go value. targetType is
// optional; when set, integer widths, slice element types, map key/value
// types, and struct fields are converted toward it.
func (m *Marshaller) FromValue(v value.Value, targetType reflect.Type) (interface{}, error) {
	if targetType != nil && targetType == reflect.TypeOf(value.Value{}) {
		return v, nil
	}

	switch v.Kind {
	case value.KNil:
		return nil, nil
	case value.KBool:
		return v.AsBool(), nil
	case value.KInt:
		if targetType != nil {
			switch targetType.Kind() {
			case reflect.Int:
				return int(v.AsInt()), nil
			case reflect.Int32:
				return int32(v.AsInt()), nil
			case reflect.Float64:
				return float64(v.AsInt()), nil
			}
		}
		return v.AsInt(), nil
	case value.KFloat:
		return v.AsFloat(), nil
	case value.KChar:
		return v.AsChar(), nil
	case value.KByte:
		return v.AsByte(), nil
	}

	switch o := v.Obj.(type) {
	case *value.String:
		return o.S, nil
	case *value.Bytes:
		return o.B, nil
	case *value.Vector:
		return m.vectorToSlice(o.Elems, targetType)
	case *value.Tuple:
		return m.vectorToSlice(o.Elems, targetType)
	case *value.OrderedMap:
		return m.orderedMapToGo(o, targetType)
	case *value.StructInstance:
		if targetType != nil && targetType.Kind() == reflect.Struct {
			return m.instanceToStruct(o, targetType)
		}
		return m.instanceToMap(o)
	case *value.HostValue:
		return o.Native, nil
	default:
		// Closures, natives, futures, generators, enum variants: opaque
		// to Go, handed back as-is so the host can pass them into Call.
		return v, nil
	}
}

// WrapFunc adapts a Go function into a NativeFn: arguments are
// unmarshalled toward the function's parameter types, results are
// marshalled back, multiple results become a Tuple, and a trailing
// non-nil error return becomes a script error.
func (m *Marshaller) WrapFunc(name string, fn reflect.Value) *value.NativeFn {
	fnType := fn.Type()
	arity := fnType.NumIn()
	if fnType.IsVariadic() {
		arity = -1
	}
	return &value.NativeFn{
		Name:  name,
		Arity: arity,
		Fn: func(args []value.Value) (value.Value, error) {
			return m.callGoFunc(name, fn, args)
		},
	}
}

func (m *Marshaller) callGoFunc(name string, fn reflect.Value, args []value.Value) (value.Value, error) {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	variadic := fnType.IsVariadic()

	if variadic {
		if len(args) < numIn-1 {
			return value.Nil(), fmt.Errorf("%s expects at least %d arguments, got %d", name, numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return value.Nil(), fmt.Errorf("%s expects %d arguments, got %d", name, numIn, len(args))
	}

	goArgs := make([]reflect.Value, len(args))
	for i, arg := range args {
		var targetType reflect.Type
		if variadic && i >= numIn-1 {
			targetType = fnType.In(numIn - 1).Elem()
		} else {
			targetType = fnType.In(i)
		}
		val, err := m.FromValue(arg, targetType)
		if err != nil {
			return value.Nil(), fmt.Errorf("%s: argument %d: %w", name, i, err)
		}
		goArgs[i] = assignable(val, targetType)
	}

	results := fn.Call(goArgs)

	// A trailing error return follows Go convention: non-nil aborts the
	// call, nil is dropped from the result shape.
	if n := len(results); n > 0 && fnType.Out(n-1) == errType {
		if !results[n-1].IsNil() {
			return value.Nil(), results[n-1].Interface().(error)
		}
		results = results[:n-1]
	}

	switch len(results) {
	case 0:
		return value.Nil(), nil
	case 1:
		return m.ToValue(results[0].Interface())
	default:
		elems := make([]value.Value, len(results))
		for i, res := range results {
			v, err := m.ToValue(res.Interface())
			if err != nil {
				return value.Nil(), err
			}
			elems[i] = v
		}
		return value.FromObject(value.NewTuple(elems)), nil
	}
}

// assignable boxes val as a reflect.Value suitable for targetType,
// converting numeric widths and substituting a typed zero for nil.
func assignable(val interface{}, targetType reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(targetType)
	}
	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(targetType) {
		return rv
	}
	if rv.Type().ConvertibleTo(targetType) {
		return rv.Convert(targetType)
	}
	return rv
}

func (m *Marshaller) sliceToVector(rv reflect.Value) (value.Value, error) {
	elems := make([]value.Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := m.ToValue(rv.Index(i).Interface())
		if err != nil {
			return value.Nil(), err
		}
		elems[i] = v
	}
	return value.FromObject(value.NewVector(elems)), nil
}

func (m *Marshaller) mapToOrderedMap(rv reflect.Value) (value.Value, error) {
	out := value.NewOrderedMap()
	iter := rv.MapRange()
	for iter.Next() {
		k, err := m.ToValue(iter.Key().Interface())
		if err != nil {
			return value.Nil(), fmt.Errorf("map key: %w", err)
		}
		v, err := m.ToValue(iter.Value().Interface())
		if err != nil {
			return value.Nil(), fmt.Errorf("map value: %w", err)
		}
		out.Set(k, v)
	}
	return value.FromObject(out), nil
}

func (m *Marshaller) structToInstance(rv reflect.Value) (value.Value, error) {
	t := rv.Type()
	s := value.NewStruct(t.Name())
	for i := 0; i < rv.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // unexported
			continue
		}
		v, err := m.ToValue(rv.Field(i).Interface())
		if err != nil {
			return value.Nil(), err
		}
		s.Fields.Set(value.Str(field.Name), v)
	}
	return value.FromObject(s), nil
}

func (m *Marshaller) vectorToSlice(elems []value.Value, targetType reflect.Type) (interface{}, error) {
	elemType := reflect.TypeOf((*interface{})(nil)).Elem()
	if targetType != nil && targetType.Kind() == reflect.Slice {
		elemType = targetType.Elem()
	}
	slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(elems))
	for _, el := range elems {
		val, err := m.FromValue(el, elemType)
		if err != nil {
			return nil, err
		}
		if val == nil {
			slice = reflect.Append(slice, reflect.Zero(elemType))
			continue
		}
		rv := reflect.ValueOf(val)
		switch {
		case rv.Type().AssignableTo(elemType):
			slice = reflect.Append(slice, rv)
		case rv.Type().ConvertibleTo(elemType):
			slice = reflect.Append(slice, rv.Convert(elemType))
		default:
			return nil, fmt.Errorf("cannot convert %s to %s", rv.Type(), elemType)
		}
	}
	return slice.Interface(), nil
}

func (m *Marshaller) orderedMapToGo(om *value.OrderedMap, targetType reflect.Type) (interface{}, error) {
	if targetType != nil && targetType.Kind() == reflect.Map {
		keyType, valType := targetType.Key(), targetType.Elem()
		result := reflect.MakeMapWithSize(targetType, om.Len())
		var convErr error
		om.Each(func(k, v value.Value) {
			if convErr != nil {
				return
			}
			gk, err := m.FromValue(k, keyType)
			if err != nil {
				convErr = fmt.Errorf("map key: %w", err)
				return
			}
			gv, err := m.FromValue(v, valType)
			if err != nil {
				convErr = fmt.Errorf("map value: %w", err)
				return
			}
			result.SetMapIndex(assignable(gk, keyType), assignable(gv, valType))
		})
		if convErr != nil {
			return nil, convErr
		}
		return result.Interface(), nil
	}

	result := make(map[interface{}]interface{}, om.Len())
	var convErr error
	om.Each(func(k, v value.Value) {
		if convErr != nil {
			return
		}
		gk, err := m.FromValue(k, nil)
		if err != nil {
			convErr = err
			return
		}
		gv, err := m.FromValue(v, nil)
		if err != nil {
			convErr = err
			return
		}
		result[gk] = gv
	})
	if convErr != nil {
		return nil, convErr
	}
	return result, nil
}

func (m *Marshaller) instanceToMap(s *value.StructInstance) (map[string]interface{}, error) {
	result := make(map[string]interface{}, s.Fields.Len())
	var convErr error
	s.Fields.Each(func(k, v value.Value) {
		if convErr != nil {
			return
		}
		name, ok := k.Obj.(*value.String)
		if !ok {
			return
		}
		gv, err := m.FromValue(v, nil)
		if err != nil {
			convErr = err
			return
		}
		result[name.S] = gv
	})
	if convErr != nil {
		return nil, convErr
	}
	return result, nil
}

func (m *Marshaller) instanceToStruct(s *value.StructInstance, targetType reflect.Type) (interface{}, error) {
	out := reflect.New(targetType).Elem()
	var convErr error
	s.Fields.Each(func(k, v value.Value) {
		if convErr != nil {
			return
		}
		name, ok := k.Obj.(*value.String)
		if !ok {
			return
		}
		field := out.FieldByName(name.S)
		if !field.IsValid() || !field.CanSet() {
			return
		}
		gv, err := m.FromValue(v, field.Type())
		if err != nil {
			convErr = fmt.Errorf("field %s: %w", name.S, err)
			return
		}
		if gv == nil {
			return
		}
		rv := reflect.ValueOf(gv)
		switch {
		case rv.Type().AssignableTo(field.Type()):
			field.Set(rv)
		case rv.Type().ConvertibleTo(field.Type()):
			field.Set(rv.Convert(field.Type()))
		default:
			convErr = fmt.Errorf("field %s: cannot convert %s to %s", name.S, rv.Type(), field.Type())
		}
	})
	if convErr != nil {
		return nil, convErr
	}
	return out.Interface(), nil
}
