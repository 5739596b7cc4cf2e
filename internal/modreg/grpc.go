package modreg

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/weave-lang/weave/internal/value"
)

// RegisterGRPCService walks every unary method of each service declared
// in fds and registers one native item per method under
// "grpc::<Service.FullyQualifiedName>::<Method>". The bridge is
// client-only, a per-method marshal/invoke/unmarshal path with no
// grpc.Server/ServiceDesc registration side; streaming methods are
// skipped. Each registered item is an async (Future-returning) native
// fn taking the request as a single record/struct argument and settling
// to Result::Ok(response) or Result::Err(status message) — never
// rejecting the Future itself (a request that cannot be marshalled also
// settles to Result::Err), so a script
// handles an RPC failure with the same `?`/match idiom as any other
// fallible builtin.
func RegisterGRPCService(reg *Registry, conn *grpc.ClientConn, fds ...*desc.FileDescriptor) (int, error) {
	registered := 0
	for _, fd := range fds {
		for _, sd := range fd.GetServices() {
			n, err := registerService(reg, conn, sd)
			if err != nil {
				return registered, err
			}
			registered += n
		}
	}
	return registered, nil
}

func registerService(reg *Registry, conn *grpc.ClientConn, sd *desc.ServiceDescriptor) (int, error) {
	registered := 0
	for _, md := range sd.GetMethods() {
		if md.IsClientStreaming() || md.IsServerStreaming() {
			continue // TODO: streaming support
		}
		path := "grpc::" + sd.GetFullyQualifiedName() + "::" + md.GetName()
		fullMethod := "/" + sd.GetFullyQualifiedName() + "/" + md.GetName()
		reg.RegisterItem(path, value.FromObject(grpcMethodNativeFn(path, conn, fullMethod, md)))
		registered++
	}
	return registered, nil
}

func grpcMethodNativeFn(path string, conn *grpc.ClientConn, fullMethod string, md *desc.MethodDescriptor) *value.NativeFn {
	return &value.NativeFn{
		Name:  path,
		Arity: 1,
		Fn: func(args []value.Value) (value.Value, error) {
			fut := value.NewFuture()
			go invokeGRPC(fut, conn, fullMethod, md, args[0])
			return value.FromObject(fut), nil
		},
	}
}

func invokeGRPC(fut *value.Future, conn *grpc.ClientConn, fullMethod string, md *desc.MethodDescriptor, req value.Value) {
	reqMsg := dynamic.NewMessage(md.GetInputType())
	if err := valueToDynamicMessage(req, reqMsg); err != nil {
		fut.Resolve(resultErr("failed to build request: " + err.Error()))
		return
	}

	respMsg := dynamic.NewMessage(md.GetOutputType())
	if err := conn.Invoke(context.Background(), fullMethod, reqMsg, respMsg); err != nil {
		fut.Resolve(resultErr("RPC failed: " + err.Error()))
		return
	}

	fut.Resolve(resultOk(dynamicMessageToValue(respMsg)))
}

// resultOk/resultErr build the two-variant Result enum by hand, the same
// literal-VariantInstance construction internal/runtime/ops.go's
// unwrapTry and internal/iterate's Next() use; there is no dedicated
// constructor on value.VariantInstance.
func resultOk(v value.Value) value.Value {
	return value.FromObject(&value.VariantInstance{EnumName: "Result", Variant: "Ok", Elems: []value.Value{v}})
}

func resultErr(msg string) value.Value {
	return value.FromObject(&value.VariantInstance{EnumName: "Result", Variant: "Err", Elems: []value.Value{value.Str(msg)}})
}

// valueToDynamicMessage populates msg's fields from a StructInstance
// or OrderedMap (object-literal) value.
func valueToDynamicMessage(v value.Value, msg *dynamic.Message) error {
	var each func(fn func(name string, val value.Value))
	switch o := v.Obj.(type) {
	case *value.StructInstance:
		each = func(fn func(string, value.Value)) {
			o.Fields.Each(func(k, fv value.Value) { fn(fieldName(k), fv) })
		}
	case *value.OrderedMap:
		each = func(fn func(string, value.Value)) {
			o.Each(func(k, fv value.Value) { fn(fieldName(k), fv) })
		}
	default:
		return fmt.Errorf("expected a struct or object literal, got %s", v.TypeName())
	}

	var outerErr error
	each(func(name string, fv value.Value) {
		if outerErr != nil {
			return
		}
		fd := msg.GetMessageDescriptor().FindFieldByName(name)
		if fd == nil {
			return // unknown fields are ignored
		}
		pv, err := convertToProtoValue(fv, fd)
		if err != nil {
			outerErr = fmt.Errorf("field %s: %w", name, err)
			return
		}
		if pv != nil {
			// SetField's error is not inspected: a descriptor mismatch
			// here means convertToProtoValue already built the wrong Go
			// type for fd, a bug in this bridge rather than
			// something a script could recover from.
			msg.SetField(fd, pv)
		}
	})
	return outerErr
}

func fieldName(k value.Value) string {
	if s, ok := k.Obj.(*value.String); ok {
		return s.S
	}
	return k.Inspect()
}

func convertToProtoValue(v value.Value, fd *desc.FieldDescriptor) (interface{}, error) {
	if fd.IsRepeated() {
		vec, ok := v.Obj.(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("expected a vector for repeated field %s", fd.GetName())
		}
		out := make([]interface{}, len(vec.Elems))
		for i, e := range vec.Elems {
			pv, err := convertScalarToProto(e, fd)
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil
	}
	return convertScalarToProto(v, fd)
}

func convertScalarToProto(v value.Value, fd *desc.FieldDescriptor) (interface{}, error) {
	switch fd.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_SINT32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return int32(v.AsInt()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_SINT64, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return v.AsInt(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return uint32(v.AsInt()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64, descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return uint64(v.AsInt()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return float32(v.AsFloat()), nil
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return v.AsFloat(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return v.Truthy(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if s, ok := v.Obj.(*value.String); ok {
			return s.S, nil
		}
		return v.Inspect(), nil
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		b, ok := v.Obj.(*value.Bytes)
		if !ok {
			return nil, fmt.Errorf("expected Bytes for field %s", fd.GetName())
		}
		return b.B, nil
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE:
		nested := dynamic.NewMessage(fd.GetMessageType())
		if err := valueToDynamicMessage(v, nested); err != nil {
			return nil, err
		}
		return nested, nil
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		if s, ok := v.Obj.(*value.String); ok {
			if ev := fd.GetEnumType().FindValueByName(s.S); ev != nil {
				return ev.GetNumber(), nil
			}
			return nil, fmt.Errorf("unknown enum value %q for field %s", s.S, fd.GetName())
		}
		return int32(v.AsInt()), nil
	default:
		return nil, fmt.Errorf("unsupported field type %v for field %s", fd.GetType(), fd.GetName())
	}
}

// dynamicMessageToValue is valueToDynamicMessage's counterpart,
// producing a StructInstance named after the message type rather than
// an untyped object literal (value.StructInstance carries a TypeName
// for method dispatch; an OrderedMap object literal does not).
func dynamicMessageToValue(msg *dynamic.Message) value.Value {
	md := msg.GetMessageDescriptor()
	s := value.NewStruct(md.GetName())
	for _, fd := range md.GetFields() {
		s.Fields.Set(value.Str(fd.GetName()), convertFromProtoValue(msg.GetField(fd), fd))
	}
	return value.FromObject(s)
}

func convertFromProtoValue(v interface{}, fd *desc.FieldDescriptor) value.Value {
	if fd.IsRepeated() {
		slice, ok := v.([]interface{})
		if !ok {
			return value.FromObject(value.NewVector(nil))
		}
		elems := make([]value.Value, len(slice))
		for i, e := range slice {
			elems[i] = convertScalarFromProto(e, fd)
		}
		return value.FromObject(value.NewVector(elems))
	}
	return convertScalarFromProto(v, fd)
}

func convertScalarFromProto(v interface{}, fd *desc.FieldDescriptor) value.Value {
	switch x := v.(type) {
	case int32:
		return value.Int(int64(x))
	case int64:
		return value.Int(x)
	case uint32:
		return value.Int(int64(x))
	case uint64:
		return value.Int(int64(x))
	case float32:
		return value.Float(float64(x))
	case float64:
		return value.Float(x)
	case bool:
		return value.Bool(x)
	case string:
		return value.Str(x)
	case []byte:
		return value.FromObject(value.NewBytes(x))
	case *dynamic.Message:
		return dynamicMessageToValue(x)
	case int:
		return value.Int(int64(x))
	default:
		return value.Nil()
	}
}
