package modreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// parseFixture builds a descriptor from inline proto source: a
// protoparse.Parser rooted at a single import path, parsing one file.
func parseFixture(t *testing.T, proto string) *desc.FileDescriptor {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.proto"), []byte(proto), 0o644))

	parser := protoparse.Parser{ImportPaths: []string{dir}}
	fds, err := parser.ParseFiles("fixture.proto")
	require.NoError(t, err)
	require.Len(t, fds, 1)
	return fds[0]
}

const echoProto = `
syntax = "proto3";
package modregtest;

message EchoRequest {
  string message = 1;
  int32 count = 2;
  repeated string tags = 3;
}

service EchoService {
  rpc Echo(EchoRequest) returns (EchoRequest);
  rpc StreamEcho(stream EchoRequest) returns (stream EchoRequest);
}
`

func TestRegisterGRPCService_SkipsStreamingMethods(t *testing.T) {
	fd := parseFixture(t, echoProto)
	reg := NewRegistry()

	n, err := RegisterGRPCService(reg, nil, fd)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hash := typesystem.HashPath("grpc::modregtest.EchoService::Echo")
	v, ok := reg.Lookup(hash)
	require.True(t, ok)
	fn, ok := v.Obj.(*value.NativeFn)
	require.True(t, ok)
	assert.Equal(t, "grpc::modregtest.EchoService::Echo", fn.Name)
	assert.Equal(t, 1, fn.Arity)
}

func TestValueToDynamicMessage_RoundTrip(t *testing.T) {
	fd := parseFixture(t, echoProto)
	md := fd.FindMessage("modregtest.EchoRequest")
	require.NotNil(t, md)

	s := value.NewStruct("EchoRequest")
	s.Fields.Set(value.Str("message"), value.Str("hi"))
	s.Fields.Set(value.Str("count"), value.Int(3))
	s.Fields.Set(value.Str("tags"), value.FromObject(value.NewVector([]value.Value{value.Str("a"), value.Str("b")})))

	msg := dynamic.NewMessage(md)
	require.NoError(t, valueToDynamicMessage(value.FromObject(s), msg))

	back := dynamicMessageToValue(msg)
	si, ok := back.Obj.(*value.StructInstance)
	require.True(t, ok)

	got, ok := si.Fields.Get(value.Str("message"))
	require.True(t, ok)
	assert.Equal(t, "hi", got.Obj.(*value.String).S)

	cnt, ok := si.Fields.Get(value.Str("count"))
	require.True(t, ok)
	assert.Equal(t, int64(3), cnt.AsInt())

	tagsVal, ok := si.Fields.Get(value.Str("tags"))
	require.True(t, ok)
	tags := tagsVal.Obj.(*value.Vector)
	require.Len(t, tags.Elems, 2)
	assert.Equal(t, "a", tags.Elems[0].Obj.(*value.String).S)
}

func TestValueToDynamicMessage_RejectsNonRecord(t *testing.T) {
	fd := parseFixture(t, echoProto)
	md := fd.FindMessage("modregtest.EchoRequest")
	require.NotNil(t, md)

	msg := dynamic.NewMessage(md)
	err := valueToDynamicMessage(value.Int(5), msg)
	assert.Error(t, err)
}
