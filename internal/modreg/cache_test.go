package modreg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/hir"
	"github.com/weave-lang/weave/internal/typesystem"
)

func buildTestUnit(t *testing.T) *bytecode.Unit {
	t.Helper()
	fn := &hir.Function{
		Name: "add",
		Hash: typesystem.HashPath("add"),
		Body: &hir.Block{Value: &hir.Binary{
			Op:    "+",
			Left:  &hir.Literal{Kind: hir.LitInt, I: 1},
			Right: &hir.Literal{Kind: hir.LitInt, I: 2},
		}},
	}
	prog := &hir.Program{Functions: []*hir.Function{fn}}
	return bytecode.Assemble(prog, typesystem.NewRegistry())
}

func TestCache_StoreAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.db")
	c, err := OpenCache(path)
	require.NoError(t, err)
	defer c.Close()

	u := buildTestUnit(t)
	require.NoError(t, c.Store("srchash1", "opts1", u, 1700000000))

	got, ok, err := c.Lookup("srchash1", "opts1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.Functions, 1)
	assert.Equal(t, "add", got.Functions[0].Name)
}

func TestCache_LookupMissOnOptionsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.db")
	c, err := OpenCache(path)
	require.NoError(t, err)
	defer c.Close()

	u := buildTestUnit(t)
	require.NoError(t, c.Store("srchash1", "opts1", u, 1700000000))

	_, ok, err := c.Lookup("srchash1", "opts2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_LookupMissOnUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.db")
	c, err := OpenCache(path)
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Lookup("nope", "opts1")
	require.NoError(t, err)
	assert.False(t, ok)
}
