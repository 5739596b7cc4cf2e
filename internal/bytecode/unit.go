package bytecode

import (
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// Unit is one compiled, self-contained program or module: every function
// body reachable from it, plus enough of the type registry for
// internal/runtime to construct structs/variants and internal/modreg's
// unit cache to key a lookup on.
type Unit struct {
	Functions []*value.FunctionProto

	// EntryItems maps an internal/resolve item hash to its function index,
	// so internal/runtime's entrypoint lookup (runtime.Run's entryPath
	// argument) and a closure's ItemRef can both resolve by hash alone.
	EntryItems map[uint64]int

	// ConstThunks holds one zero-argument FunctionProto per top-level
	// `const`, keyed by the same item hash an ItemRef into it carries.
	// internal/runtime calls each exactly once (on first reference) and
	// caches the result for the life of the VM instance, since a const
	// initializer may itself be an arbitrary expression, not always a
	// literal internal/bytecode could fold at assembly time.
	ConstThunks map[uint64]*value.FunctionProto

	Structs map[string]*typesystem.StructShape
	Enums   map[string]*typesystem.EnumShape

	// Natives holds host-linked items keyed by the same canonical-path
	// hash convention as EntryItems: a host module (internal/modreg's
	// gRPC bridge, or any pkg/weave-registered Go function) contributes
	// entries here by calling modreg.Registry.Link against this Unit
	// after compilation, so internal/runtime's resolveItem can satisfy an
	// OP_GET_ITEM the same way for a compiled fn or a host-provided one
	//.
	// Unlike Functions/EntryItems, Natives is never persisted by Encode —
	// a *value.NativeFn closes over live Go state (a gRPC connection, a
	// registry cache handle) that has no meaning across a process
	// restart, so a host must re-link after every Decode.
	Natives map[uint64]value.Value

	// BuildID stamps this Unit's persisted form so a host embedding
	// multiple Units, or a unit cache keying entries by content hash, can
	// tell two compiles of the same source apart across process restarts.
	BuildID string

	SourceFile string

	// Tests and Benches hold the canonical paths of #[test] / #[bench]
	// functions discovered when the corresponding compiler option was on
	//, so an external `test` driver can enumerate entry
	// points without re-parsing the source.
	Tests   []string
	Benches []string

	// Disassembly is attached by internal/compile when the
	// emit_instructions option is on. Debug output, never persisted.
	Disassembly string
}

func NewUnit() *Unit {
	return &Unit{
		EntryItems:  make(map[uint64]int),
		ConstThunks: make(map[uint64]*value.FunctionProto),
		Structs:     make(map[string]*typesystem.StructShape),
		Enums:       make(map[string]*typesystem.EnumShape),
		Natives:     make(map[uint64]value.Value),
	}
}
