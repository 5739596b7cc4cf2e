package resolve

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
)

// blockScope is one `{ }` nesting level's name table, chained to its
// enclosing block so lookups walk outward.
type blockScope struct {
	parent *blockScope
	names  map[string]int
}

func newBlockScope(parent *blockScope) *blockScope {
	return &blockScope{parent: parent, names: make(map[string]int)}
}

func lookupBlockChain(b *blockScope, name string) (int, bool) {
	for s := b; s != nil; s = s.parent {
		if slot, ok := s.names[name]; ok {
			return slot, true
		}
	}
	return -1, false
}

// funcCtx tracks one function or closure body's local-slot allocation and
// its chain of enclosing functions for upvalue capture, resolved ahead
// of bytecode emission rather than during it.
type funcCtx struct {
	parent   *funcCtx
	modPath  string // canonical path prefix of the module this function is declared in
	info     *FuncInfo
	block    *blockScope
	nextSlot int
}

func (r *resolver) declareLocal(fc *funcCtx, name string, node ast.Node) int {
	slot := fc.nextSlot
	fc.nextSlot++
	if fc.nextSlot > fc.info.LocalCount {
		fc.info.LocalCount = fc.nextSlot
	}
	fc.block.names[name] = slot
	r.res.Decls[node] = DeclSlot{Slot: slot}
	return slot
}

// declareNamedSlot allocates a local slot for a shorthand field binder
// (`{ x }`), which has no individual AST node to key Result.Decls by —
// its slot is recorded directly into Result.FieldDecls by the caller.
func (r *resolver) declareNamedSlot(fc *funcCtx, name string) int {
	slot := fc.nextSlot
	fc.nextSlot++
	if fc.nextSlot > fc.info.LocalCount {
		fc.info.LocalCount = fc.nextSlot
	}
	fc.block.names[name] = slot
	return slot
}

func (r *resolver) pushBlock(fc *funcCtx) { fc.block = newBlockScope(fc.block) }
// popBlock never reclaims slots on exit: LocalCount is a high-water mark
// over the whole function, not a stack pointer, so nested blocks never
// reuse an outer block's slot even after it closes.
func (r *resolver) popBlock(fc *funcCtx) {
	fc.block = fc.block.parent
}

// resolveItems is pass 2: walk every function, method, and const body,
// assigning local slots and resolving identifiers.
func (r *resolver) resolveItems(prefix string, items []ast.Item) {
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			r.resolveFn(prefix, node.Params, node.Body, node)
		case *ast.ImplItem:
			for _, m := range node.Methods {
				r.resolveFn(prefix, m.Params, m.Body, m)
			}
		case *ast.ConstItem:
			fc := &funcCtx{modPath: prefix, info: &FuncInfo{}}
			r.pushBlock(fc)
			r.resolveExpr(fc, node.Value)
			r.res.Funcs[node] = fc.info
		case *ast.ModItem:
			r.resolveItems(join(prefix, node.Name), node.Items)
		case *ast.StructItem, *ast.EnumItem, *ast.UseItem:
			// no executable body to resolve
		}
	}
}

func (r *resolver) resolveFn(prefix string, params []ast.Param, body *ast.BlockExpr, keyNode ast.Node) {
	if body == nil {
		return // external/abstract signature, nothing to resolve
	}
	r.resolveParamDefaults(prefix, params)
	fc := &funcCtx{modPath: prefix, info: &FuncInfo{}}
	r.pushBlock(fc)
	for i := range params {
		fc.declareParam(params[i].Name)
	}
	r.res.Funcs[keyNode] = fc.info
	r.resolveBlock(fc, body)
}

// resolveParamDefaults resolves each parameter's default expression
// (recording its own FuncInfo into Result.Funcs, keyed by the Default
// expression node itself) in a bare, param-free scope: a default may
// reference sibling consts/fns/structs/enums but never the function's
// own parameters or, for a closure, its enclosing locals/upvalues.
// internal/bytecode compiles each default into its own zero-argument,
// zero-upvalue call frame, with no upvalue capture, trading "a default
// can close over
// an enclosing local" for a much simpler default-call frame with no
// upvalue plumbing of its own.
func (r *resolver) resolveParamDefaults(modPath string, params []ast.Param) {
	for i := range params {
		r.resolveDefaultExpr(modPath, params[i].Default)
	}
}

func (r *resolver) resolveDefaultExpr(modPath string, def ast.Expr) {
	if def == nil {
		return
	}
	fc := &funcCtx{modPath: modPath, info: &FuncInfo{}}
	r.pushBlock(fc)
	r.resolveExpr(fc, def)
	r.res.Funcs[def] = fc.info
}

func (fc *funcCtx) declareParam(name string) int {
	slot := fc.nextSlot
	fc.nextSlot++
	if fc.nextSlot > fc.info.LocalCount {
		fc.info.LocalCount = fc.nextSlot
	}
	fc.block.names[name] = slot
	return slot
}

func (r *resolver) resolveBlock(fc *funcCtx, b *ast.BlockExpr) {
	r.pushBlock(fc)
	for _, stmt := range b.Stmts {
		r.resolveStmt(fc, stmt)
	}
	if b.Value != nil {
		r.resolveExpr(fc, b.Value)
	}
	r.popBlock(fc)
}

func (r *resolver) resolveStmt(fc *funcCtx, s ast.Stmt) {
	switch node := s.(type) {
	case *ast.LetStmt:
		r.resolveExpr(fc, node.Value)
		r.resolvePattern(fc, node.Pat)
	case *ast.ExprStmt:
		r.resolveExpr(fc, node.X)
	}
}

// resolvePattern assigns a fresh local slot to every binder introduced by
// a pattern (IdentPat, RestPat, BindPat); nested sub-patterns are walked
// for their own binders too.
func (r *resolver) resolvePattern(fc *funcCtx, p ast.Pattern) {
	r.resolvePatternIn(fc, p, false)
}

// resolvePatternIn is resolvePattern with or-pattern slot sharing: when
// reuse is set (every alternative after an or-pattern's first), a binder
// whose name the current block already declares resolves to that existing
// slot instead of a fresh one. internal/hir's arm lowering keeps only the
// first alternative's bind list, so each alternative must put the same
// name in the same slot for the others to be sound.
func (r *resolver) resolvePatternIn(fc *funcCtx, p ast.Pattern, reuse bool) {
	switch node := p.(type) {
	case *ast.WildcardPat:
	case *ast.IdentPat:
		r.declareBinder(fc, node.Name, node, reuse)
	case *ast.LiteralPat:
		r.resolveExpr(fc, node.Value)
	case *ast.TuplePat:
		for _, e := range node.Elems {
			r.resolvePatternIn(fc, e, reuse)
		}
	case *ast.RestPat:
		if node.Name != "" {
			r.declareBinder(fc, node.Name, node, reuse)
		}
	case *ast.ListPat:
		for _, e := range node.Elems {
			r.resolvePatternIn(fc, e, reuse)
		}
	case *ast.StructPat:
		slots := make([]int, len(node.Fields))
		for i, f := range node.Fields {
			if f.Pat != nil {
				slots[i] = -1
				r.resolvePatternIn(fc, f.Pat, reuse)
			} else {
				slots[i] = r.declareNamedBinder(fc, f.Name, reuse)
			}
		}
		r.res.FieldDecls[node] = slots
	case *ast.VariantPat:
		for _, e := range node.Elems {
			r.resolvePatternIn(fc, e, reuse)
		}
		slots := make([]int, len(node.Fields))
		for i, f := range node.Fields {
			if f.Pat != nil {
				slots[i] = -1
				r.resolvePatternIn(fc, f.Pat, reuse)
			} else {
				slots[i] = r.declareNamedBinder(fc, f.Name, reuse)
			}
		}
		r.res.FieldDecls[node] = slots
	case *ast.OrPat:
		for i, alt := range node.Alts {
			r.resolvePatternIn(fc, alt, reuse || i > 0)
		}
	case *ast.BindPat:
		r.declareBinder(fc, node.Name, node, reuse)
		r.resolvePatternIn(fc, node.Inner, reuse)
	}
}

func (r *resolver) declareBinder(fc *funcCtx, name string, node ast.Node, reuse bool) int {
	if reuse {
		if slot, ok := fc.block.names[name]; ok {
			r.res.Decls[node] = DeclSlot{Slot: slot}
			return slot
		}
	}
	return r.declareLocal(fc, name, node)
}

func (r *resolver) declareNamedBinder(fc *funcCtx, name string, reuse bool) int {
	if reuse {
		if slot, ok := fc.block.names[name]; ok {
			return slot
		}
	}
	return r.declareNamedSlot(fc, name)
}

func (r *resolver) resolveExpr(fc *funcCtx, e ast.Expr) {
	if e == nil {
		return
	}
	switch node := e.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.NilLit, *ast.CharLit, *ast.ByteLit, *ast.StringLit, *ast.ByteStringLit:
		// literals reference nothing
	case *ast.InterpString:
		for _, p := range node.Parts {
			r.resolveExpr(fc, p)
		}
	case *ast.IdentExpr:
		r.resolveIdent(fc, node)
	case *ast.PathExpr:
		r.resolvePathRef(fc, node)
	case *ast.UnaryExpr:
		r.resolveExpr(fc, node.X)
	case *ast.BinaryExpr:
		r.resolveExpr(fc, node.Left)
		r.resolveExpr(fc, node.Right)
	case *ast.AssignExpr:
		r.resolveExpr(fc, node.Target)
		r.resolveExpr(fc, node.Value)
	case *ast.FieldExpr:
		r.resolveExpr(fc, node.X)
	case *ast.IndexExpr:
		r.resolveExpr(fc, node.X)
		r.resolveExpr(fc, node.Index)
	case *ast.CallExpr:
		r.resolveExpr(fc, node.Callee)
		for _, a := range node.Args {
			r.resolveExpr(fc, a.Value)
		}
	case *ast.MethodCallExpr:
		r.resolveExpr(fc, node.Recv)
		for _, a := range node.Args {
			r.resolveExpr(fc, a.Value)
		}
	case *ast.TryExpr:
		r.resolveExpr(fc, node.X)
	case *ast.TupleExpr:
		for _, el := range node.Elems {
			r.resolveExpr(fc, el)
		}
	case *ast.VectorExpr:
		for _, el := range node.Elems {
			r.resolveExpr(fc, el.Value)
		}
	case *ast.MapExpr:
		for _, entry := range node.Entries {
			r.resolveExpr(fc, entry.Key)
			r.resolveExpr(fc, entry.Value)
		}
	case *ast.ObjectExpr:
		if node.Spread != nil {
			r.resolveExpr(fc, node.Spread)
		}
		r.resolveShorthandFields(fc, node, node.Fields)
	case *ast.VariantExpr:
		for _, a := range node.Args {
			r.resolveExpr(fc, a)
		}
		r.resolveShorthandFields(fc, node, node.Fields)
	case *ast.RangeExpr:
		r.resolveExpr(fc, node.Start)
		r.resolveExpr(fc, node.End)
	case *ast.BlockExpr:
		r.resolveBlock(fc, node)
	case *ast.IfExpr:
		r.resolveExpr(fc, node.Cond)
		r.resolveBlock(fc, node.Then)
		r.resolveExpr(fc, node.Else)
	case *ast.WhileExpr:
		r.resolveExpr(fc, node.Cond)
		r.resolveBlock(fc, node.Body)
	case *ast.LoopExpr:
		r.resolveBlock(fc, node.Body)
	case *ast.ForExpr:
		r.resolveExpr(fc, node.Iter)
		r.pushBlock(fc)
		r.resolvePattern(fc, node.Pat)
		for _, stmt := range node.Body.Stmts {
			r.resolveStmt(fc, stmt)
		}
		if node.Body.Value != nil {
			r.resolveExpr(fc, node.Body.Value)
		}
		r.popBlock(fc)
	case *ast.MatchExpr:
		r.resolveExpr(fc, node.Scrutinee)
		for _, arm := range node.Arms {
			r.pushBlock(fc)
			r.resolvePattern(fc, arm.Pat)
			if arm.Guard != nil {
				r.resolveExpr(fc, arm.Guard)
			}
			r.resolveExpr(fc, arm.Body)
			r.popBlock(fc)
		}
	case *ast.BreakExpr:
		r.resolveExpr(fc, node.Value)
	case *ast.ContinueExpr:
	case *ast.ReturnExpr:
		r.resolveExpr(fc, node.Value)
	case *ast.YieldExpr:
		r.resolveExpr(fc, node.Value)
	case *ast.AwaitExpr:
		r.resolveExpr(fc, node.X)
	case *ast.ClosureExpr:
		r.resolveClosure(fc, node)
	}
}

// resolveShorthandFields resolves the implied identifier of every
// shorthand field (`{ x }` meaning `{ x: x }`) in an object/variant
// construction literal, recording one Binding per entry into
// Result.ShorthandRefs[key] (the zero Binding for entries with an
// explicit value) — the construction-side mirror of resolvePattern's
// declareNamedSlot/FieldDecls handling for shorthand field binders.
func (r *resolver) resolveShorthandFields(fc *funcCtx, key ast.Node, fields []ast.ObjectField) {
	var binds []Binding
	for _, f := range fields {
		if f.Value != nil {
			r.resolveExpr(fc, f.Value)
			binds = append(binds, Binding{})
			continue
		}
		if b, ok := r.lookupInFunc(fc, f.Name); ok {
			binds = append(binds, b)
			continue
		}
		if entry, ok := r.lookupItem(fc.modPath, f.Name); ok {
			binds = append(binds, Binding{Kind: BindItem, Hash: entry.Hash})
			continue
		}
		r.diags.Errorf(diag.ErrNameUnresolved, r.file, key.Span(), "cannot find %q in this scope", f.Name)
		binds = append(binds, Binding{})
	}
	if binds != nil {
		r.res.ShorthandRefs[key] = binds
	}
}

func (r *resolver) resolveClosure(parent *funcCtx, c *ast.ClosureExpr) {
	for i := range c.Params {
		r.resolveDefaultExpr(parent.modPath, c.Params[i].Default)
	}
	fc := &funcCtx{parent: parent, modPath: parent.modPath, info: &FuncInfo{}}
	r.pushBlock(fc)
	for _, p := range c.Params {
		fc.declareParam(p.Name)
	}
	r.res.Funcs[c] = fc.info
	switch body := c.Body.(type) {
	case *ast.BlockExpr:
		r.resolveBlock(fc, body)
	default:
		r.resolveExpr(fc, body)
	}
}

// resolveIdent resolves a bare identifier against the lexical block chain
// first, then outward through enclosing function scopes (promoting each
// crossing to an upvalue), and finally against the item table for a
// reference to a sibling/ancestor module's fn, const, struct, or enum.
func (r *resolver) resolveIdent(fc *funcCtx, node *ast.IdentExpr) {
	if b, ok := r.lookupInFunc(fc, node.Name); ok {
		r.res.Idents[node] = b
		return
	}
	if entry, ok := r.lookupItem(fc.modPath, node.Name); ok {
		r.res.Idents[node] = Binding{Kind: BindItem, Hash: entry.Hash}
		return
	}
	r.diags.Errorf(diag.ErrNameUnresolved, r.file, node.Sp, "cannot find %q in this scope", node.Name)
}

func (r *resolver) resolvePathRef(fc *funcCtx, node *ast.PathExpr) {
	path := node.Path.String()
	if entry, ok := r.res.Items.LookupPath(path); ok {
		r.res.Idents[node] = Binding{Kind: BindItem, Hash: entry.Hash}
		return
	}
	// fall back to resolving relative to the current module
	if entry, ok := r.lookupItem(fc.modPath, path); ok {
		r.res.Idents[node] = Binding{Kind: BindItem, Hash: entry.Hash}
		return
	}
	if b, ok := r.resolveVariantPath(fc, node, path); ok {
		r.res.Idents[node] = b
		return
	}
	r.diags.Errorf(diag.ErrNameUnresolved, r.file, node.Path.Sp, "cannot find path %q in this scope", path)
}

// resolveVariantPath tries path as an enum variant constructor: its
// parent must name a declared enum (or one of the built-in Option /
// Result enums the runtime produces without a declaration), and its
// last segment one of that enum's variants.
func (r *resolver) resolveVariantPath(fc *funcCtx, node *ast.PathExpr, path string) (Binding, bool) {
	idx := lastSep(path)
	if idx < 0 {
		return Binding{}, false
	}
	enumPath, variant := path[:idx], path[idx+2:]

	switch enumPath {
	case "Option":
		if variant == "Some" || variant == "None" {
			return Binding{Kind: BindVariant, Enum: "Option", Variant: variant}, true
		}
	case "Result":
		if variant == "Ok" || variant == "Err" {
			return Binding{Kind: BindVariant, Enum: "Result", Variant: variant}, true
		}
	}

	entry, ok := r.res.Items.LookupPath(enumPath)
	if !ok {
		entry, ok = r.lookupItem(fc.modPath, enumPath)
	}
	if !ok || entry.Kind != ItemEnum {
		return Binding{}, false
	}
	decl, ok := entry.Node.(*ast.EnumItem)
	if !ok {
		return Binding{}, false
	}
	for _, v := range decl.Variants {
		if v.Name == variant {
			return Binding{Kind: BindVariant, Enum: decl.Name, Variant: variant}, true
		}
	}
	r.diags.Errorf(diag.ErrNameUnresolved, r.file, node.Path.Sp, "enum %q has no variant %q", decl.Name, variant)
	// Report once, with the sharper message; the binding still records
	// the constructor so downstream stages do not double-report.
	return Binding{Kind: BindVariant, Enum: decl.Name, Variant: variant}, true
}

// lookupItem tries path under the given module prefix, then walks
// outward through each enclosing module, then the program root.
func (r *resolver) lookupItem(modPath, name string) (*ItemEntry, bool) {
	prefix := modPath
	for {
		if entry, ok := r.res.Items.LookupPath(join(prefix, name)); ok {
			return entry, true
		}
		if target, ok := r.res.Items.ResolveAlias(prefix, name); ok {
			if entry, ok := r.res.Items.LookupPath(target); ok {
				return entry, true
			}
		}
		if prefix == "" {
			break
		}
		if idx := lastSep(prefix); idx >= 0 {
			prefix = prefix[:idx]
		} else {
			prefix = ""
		}
	}
	return nil, false
}

func lastSep(s string) int {
	for i := len(s) - 2; i >= 0; i-- {
		if s[i] == ':' && s[i+1] == ':' {
			return i
		}
	}
	return -1
}

// lookupInFunc resolves name against fc's own block chain, or recurses
// into the enclosing function and promotes the result to a captured
// upvalue when found there instead.
func (r *resolver) lookupInFunc(fc *funcCtx, name string) (Binding, bool) {
	if fc == nil {
		return Binding{}, false
	}
	if slot, ok := lookupBlockChain(fc.block, name); ok {
		return Binding{Kind: BindLocal, Slot: slot}, true
	}
	parentBinding, ok := r.lookupInFunc(fc.parent, name)
	if !ok {
		return Binding{}, false
	}
	idx := r.addUpvalue(fc, name, parentBinding)
	return Binding{Kind: BindUpvalue, Index: idx}, true
}

func (r *resolver) addUpvalue(fc *funcCtx, name string, parent Binding) int {
	for i, uv := range fc.info.Upvalues {
		if uv.Name == name {
			return i
		}
	}
	desc := UpvalueDesc{Name: name}
	switch parent.Kind {
	case BindLocal:
		desc.FromParentLoc = true
		desc.ParentIndex = parent.Slot
	case BindUpvalue:
		desc.FromParentLoc = false
		desc.ParentIndex = parent.Index
	}
	fc.info.Upvalues = append(fc.info.Upvalues, desc)
	return len(fc.info.Upvalues) - 1
}
