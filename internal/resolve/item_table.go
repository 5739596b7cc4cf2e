package resolve

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
)

type ItemKind int

const (
	ItemFn ItemKind = iota
	ItemStruct
	ItemEnum
	ItemConst
	ItemMethod
	// ItemNative is a host-contributed item, registered by canonical
	// path from a host module: it resolves
	// like any fn but has no AST node, no signature in the typesystem
	// registry, and is satisfied at runtime through Unit.Natives.
	ItemNative
)

// ItemEntry is one resolved top-level (or nested-module) declaration.
type ItemEntry struct {
	Kind ItemKind
	Path string // canonical "a::b::c" path
	Hash uint64
	Node ast.Item
}

// ItemTable is the flat, hash-keyed registry pass 1 builds: every
// fn/struct/enum/const/method in the program, addressable by its 64-bit
// path hash regardless of which module declared it.
type ItemTable struct {
	byHash  map[uint64]*ItemEntry
	byPath  map[string]*ItemEntry
	aliases map[string]string // "modPath::aliasName" -> canonical target path
}

func NewItemTable() *ItemTable {
	return &ItemTable{
		byHash:  make(map[uint64]*ItemEntry),
		byPath:  make(map[string]*ItemEntry),
		aliases: make(map[string]string),
	}
}

// ResolveAlias looks up a `use a::b::c as d` alias declared in modPath.
func (t *ItemTable) ResolveAlias(modPath, name string) (string, bool) {
	target, ok := t.aliases[join(modPath, name)]
	return target, ok
}

func (t *ItemTable) Lookup(hash uint64) (*ItemEntry, bool) {
	e, ok := t.byHash[hash]
	return e, ok
}

func (t *ItemTable) LookupPath(path string) (*ItemEntry, bool) {
	e, ok := t.byPath[path]
	return e, ok
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

// collectItems walks the item tree for pass 1: registering every
// declaration's canonical path and hash, and reporting duplicate paths
// (ErrDupItem) or hash collisions between distinct paths (ErrHashCollision)
// as compile errors rather than silently overwriting the earlier entry.
func (r *resolver) collectItems(prefix string, items []ast.Item) {
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			r.registerItem(ItemFn, join(prefix, node.Name), node)
		case *ast.StructItem:
			r.registerItem(ItemStruct, join(prefix, node.Name), node)
		case *ast.EnumItem:
			r.registerItem(ItemEnum, join(prefix, node.Name), node)
		case *ast.ConstItem:
			r.registerItem(ItemConst, join(prefix, node.Name), node)
		case *ast.ImplItem:
			for _, m := range node.Methods {
				r.registerItem(ItemMethod, join(prefix, node.TypeName+"::"+m.Name), m)
			}
		case *ast.ModItem:
			r.collectItems(join(prefix, node.Name), node.Items)
		case *ast.UseItem:
			name := node.Alias
			if name == "" && len(node.Path.Segments) > 0 {
				name = node.Path.Segments[len(node.Path.Segments)-1]
			}
			if name != "" {
				r.res.Items.aliases[join(prefix, name)] = node.Path.String()
			}
		}
	}
}

func (r *resolver) registerItem(kind ItemKind, path string, node ast.Item) {
	hash := HashPath(path)
	if existing, ok := r.res.Items.byPath[path]; ok {
		if existing.Node == nil {
			r.diags.Errorf(diag.ErrDupItem, r.file, node.Span(), "item %q shadows a host-provided item of the same path", path)
		} else {
			r.diags.Errorf(diag.ErrDupItem, r.file, node.Span(), "duplicate item %q (first declared at line %d)", path, existing.Node.Span().Line)
		}
		return
	}
	if existing, ok := r.res.Items.byHash[hash]; ok {
		r.diags.Errorf(diag.ErrHashCollision, r.file, node.Span(), "item path %q collides with %q under the 64-bit item hash", path, existing.Path)
		return
	}
	entry := &ItemEntry{Kind: kind, Path: path, Hash: hash, Node: node}
	r.res.Items.byPath[path] = entry
	r.res.Items.byHash[hash] = entry
}
