package modreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

func TestRegistry_RegisterLookupPath(t *testing.T) {
	reg := NewRegistry()
	hash := reg.RegisterItem("grpc::Svc::Method", value.Int(7))

	v, ok := reg.Lookup(hash)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.AsInt())

	p, ok := reg.Path(hash)
	require.True(t, ok)
	assert.Equal(t, "grpc::Svc::Method", p)

	_, ok = reg.Lookup(hash + 1)
	assert.False(t, ok)
}

func TestRegistry_Link(t *testing.T) {
	reg := NewRegistry()
	hash := reg.RegisterItem("grpc::Svc::Method", value.Int(9))

	u := bytecode.NewUnit()
	reg.Link(u)

	v, ok := u.Natives[hash]
	require.True(t, ok)
	assert.Equal(t, int64(9), v.AsInt())
}
