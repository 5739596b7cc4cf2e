// Package resolve implements the two-pass name & scope resolver:
// pass 1 builds a flat item table keyed by a 64-bit
// FNV-1a hash of each item's canonical `a::b::c` path; pass 2 walks
// every function/closure body, assigning local slots, resolving
// identifiers against the lexical block chain and then the item table,
// and promoting locals captured by a nested closure to heap-allocated
// upvalues.
package resolve

import (
	"hash/fnv"

	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
)

// BindingKind classifies what an identifier reference resolved to.
type BindingKind int

const (
	BindUnresolved BindingKind = iota
	BindLocal
	BindUpvalue
	BindItem    // module-level fn/const/struct/enum, referenced by path hash
	BindVariant // enum variant constructor path, e.g. Shape::Circle
)

// Binding is the resolution result attached to one ast.IdentExpr (or
// ast.PathExpr) via Result.Idents.
type Binding struct {
	Kind  BindingKind
	Slot  int    // local slot index, valid when Kind == BindLocal
	Index int    // upvalue index in the referencing closure, valid when Kind == BindUpvalue
	Hash  uint64 // canonical item path hash, valid when Kind == BindItem

	// Enum and Variant name the constructor a BindVariant path resolved
	// to. Enum is the declaration's bare name, not its module-qualified
	// path, matching the tag a variant value carries at runtime.
	Enum    string
	Variant string
}

// DeclSlot is the resolution result attached to a binding-introducing
// pattern node (IdentPat, Param) via Result.Decls: which local slot in
// its enclosing function this binding occupies.
type DeclSlot struct {
	Slot int
}

// UpvalueDesc describes one upvalue captured by a function: where it
// comes from in the immediately enclosing function.
type UpvalueDesc struct {
	Name          string
	FromParentLoc bool // true: parent local slot ParentIndex; false: parent's own upvalue ParentIndex
	ParentIndex   int
}

// FuncInfo is the resolver's output for one function or closure body:
// how many local slots it needs and what it captures from its lexically
// enclosing function.
type FuncInfo struct {
	LocalCount int
	Upvalues   []UpvalueDesc
}

// Result is the complete output of Resolve: the item table plus a side
// table of resolutions keyed by AST node identity, so internal/hir can
// look up what any given IdentExpr or pattern binder means without the
// ast package needing resolver-specific fields.
type Result struct {
	Items  *ItemTable
	Idents map[ast.Node]Binding
	Decls  map[ast.Node]DeclSlot
	Funcs  map[ast.Node]*FuncInfo // keyed by *ast.FnItem or *ast.ClosureExpr

	// FieldDecls holds, for each *ast.StructPat / *ast.VariantPat with at
	// least one shorthand field binder (`{ x }` meaning bind to x), one
	// slot per entry in that pattern's Fields slice, -1 for entries that
	// carry an explicit sub-pattern instead of a shorthand binder.
	// FieldPat is a plain value type with no Span() of its own, so it
	// cannot key Decls directly; this keeps per-field slots addressable
	// by (pattern node, field index) instead.
	FieldDecls map[ast.Node][]int

	// ShorthandRefs is FieldDecls' mirror on the construction side: for
	// each *ast.ObjectExpr / *ast.VariantExpr with at least one shorthand
	// field (`{ x }` meaning `{ x: x }`), one Binding per entry in that
	// expression's Fields slice, the zero Binding (BindUnresolved) for
	// entries that carry an explicit value instead.
	ShorthandRefs map[ast.Node][]Binding
}

// HashPath returns the canonical 64-bit FNV-1a hash of a `::`-joined
// item path.
func HashPath(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

func Resolve(prog *ast.Program, diags *diag.Bundle) *Result {
	return ResolveWithExternal(prog, diags, nil)
}

// ResolveWithExternal is Resolve with a set of host-contributed item
// paths pre-seeded into the item table before pass 1, so a script
// reference to a host module item resolves to an ItemNative
// binding instead of an unresolved-name diagnostic. A script item
// declared at the same path as an external one is reported as a
// duplicate, the same way two script declarations colliding would be.
func ResolveWithExternal(prog *ast.Program, diags *diag.Bundle, external []string) *Result {
	res := &Result{
		Items:         NewItemTable(),
		Idents:        make(map[ast.Node]Binding),
		Decls:         make(map[ast.Node]DeclSlot),
		Funcs:         make(map[ast.Node]*FuncInfo),
		FieldDecls:    make(map[ast.Node][]int),
		ShorthandRefs: make(map[ast.Node][]Binding),
	}
	for _, path := range external {
		hash := HashPath(path)
		if existing, ok := res.Items.byHash[hash]; ok {
			if existing.Path != path {
				diags.Errorf(diag.ErrHashCollision, prog.File, prog.Sp, "host item path %q collides with %q under the 64-bit item hash", path, existing.Path)
			}
			continue
		}
		entry := &ItemEntry{Kind: ItemNative, Path: path, Hash: hash}
		res.Items.byPath[path] = entry
		res.Items.byHash[hash] = entry
	}
	r := &resolver{prog: prog, diags: diags, res: res, file: prog.File}
	r.collectItems("", prog.Items)
	r.resolveItems("", prog.Items)
	return res
}

type resolver struct {
	prog  *ast.Program
	diags *diag.Bundle
	res   *Result
	file  string
}
