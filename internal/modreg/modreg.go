// Package modreg implements the module & unit registry: a host process
// registers
// items — gRPC service methods via RegisterGRPCService, or any other
// Go value a future pkg/weave caller wants script code to reach — under
// a canonical path, and Link merges them into a compiled Unit's Natives
// table by the same path-hash convention internal/resolve uses for
// every script-declared fn. The registry is a runtime value table, not
// a compile-time signature table, since linking happens against a live
// Unit rather than a symbol table the type checker reads.
package modreg

import (
	"sort"
	"sync"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// Registry collects host-contributed items before they are linked into
// one or more compiled Units. A Registry is an explicit value a host
// constructs and owns, never a process-global map: the registry is
// per-embedding, so multiple embeddings coexist in one process.
type Registry struct {
	mu    sync.RWMutex
	items map[uint64]value.Value
	paths map[uint64]string // for diagnostics: hash -> the path that produced it
}

func NewRegistry() *Registry {
	return &Registry{
		items: make(map[uint64]value.Value),
		paths: make(map[uint64]string),
	}
}

// RegisterItem adds v under path's canonical-path hash, the same
// "a::b::c"-style joining internal/resolve's item table uses. A second
// registration under a colliding hash overwrites the first; callers
// that care about that can check Lookup first. RegisterGRPCService does
// not: a later method registered under the same path overwrites an
// earlier one.
func (r *Registry) RegisterItem(path string, v value.Value) uint64 {
	hash := typesystem.HashPath(path)
	r.mu.Lock()
	r.items[hash] = v
	r.paths[hash] = path
	r.mu.Unlock()
	return hash
}

// Lookup reports whether some path has already registered under hash.
func (r *Registry) Lookup(hash uint64) (value.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[hash]
	return v, ok
}

// Path returns the canonical path that produced hash, for error
// messages ("service X registered at path Y shadows an existing item").
func (r *Registry) Path(hash uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paths[hash]
	return p, ok
}

// Paths returns every registered canonical path, sorted, so
// internal/compile can seed the resolver's item table with the host
// surface before pass 1.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.paths))
	for _, p := range r.paths {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Link merges every registered item into u.Natives, so a compiled
// reference to a host item resolves through internal/runtime's
// resolveItem exactly like a reference to a sibling fn. A host must
// call Link again after bytecode.Decode, since Natives (unlike
// Functions/EntryItems) is never persisted — see Unit.Natives' doc
// comment.
func (r *Registry) Link(u *bytecode.Unit) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for hash, v := range r.items {
		u.Natives[hash] = v
	}
}
