package hir

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/resolve"
	"github.com/weave-lang/weave/internal/token"
)

type lowerer struct {
	res   *resolve.Result
	diags *diag.Bundle
	file  string
	sinks int
	fold  bool
}

// fnState is the per-function-body lowering context: which FuncInfo
// (local count / upvalues) this body resolved to, its stack of enclosing
// labelled loops for break/continue sink lookup, and a cursor for
// allocating lowering-introduced temporaries (for-loop iterator/option
// slots, match scrutinee temps) past the slots internal/resolve already
// assigned.
type fnState struct {
	info  *resolve.FuncInfo
	loops []loopFrame
}

type loopFrame struct {
	label string
	sink  int
}

func (fs *fnState) newTemp() int {
	slot := fs.info.LocalCount
	fs.info.LocalCount++
	return slot
}

func Lower(prog *ast.Program, res *resolve.Result, diags *diag.Bundle) *Program {
	return LowerWith(prog, res, diags, Config{Fold: true})
}

// Config carries the lowering knobs internal/compile exposes through
// compile.Options: Fold gates constant folding (the `optimize` compiler
// option); nothing else about lowering is optional.
type Config struct {
	Fold bool
}

func LowerWith(prog *ast.Program, res *resolve.Result, diags *diag.Bundle, cfg Config) *Program {
	l := &lowerer{res: res, diags: diags, file: prog.File, fold: cfg.Fold}
	out := &Program{}
	l.lowerItems("", prog.Items, out)
	return out
}

// join mirrors internal/resolve and internal/typesystem's identical
// helper: both packages avoid importing each other's unexported join, so
// this one-liner is duplicated a third time here rather than exported
// from either.
func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

func (l *lowerer) lowerItems(prefix string, items []ast.Item, out *Program) {
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			path := join(prefix, node.Name)
			if fn := l.lowerTopFn(node.Name, resolve.HashPath(path), node.Params, node.Body, node, node.Async, node.Generator); fn != nil {
				out.Functions = append(out.Functions, fn)
			}
		case *ast.ImplItem:
			for _, m := range node.Methods {
				name := node.TypeName + "::" + m.Name
				path := join(prefix, name)
				if fn := l.lowerTopFn(name, resolve.HashPath(path), m.Params, m.Body, m, m.Async, m.Generator); fn != nil {
					out.Functions = append(out.Functions, fn)
				}
			}
		case *ast.ModItem:
			l.lowerItems(join(prefix, node.Name), node.Items, out)
		case *ast.ConstItem:
			path := join(prefix, node.Name)
			info := l.res.Funcs[node]
			if info == nil {
				info = &resolve.FuncInfo{}
			}
			fs := &fnState{info: info}
			value := l.lowerExpr(fs, node.Value)
			out.Consts = append(out.Consts, &ConstDecl{
				Name:       node.Name,
				Hash:       resolve.HashPath(path),
				LocalCount: info.LocalCount,
				Value:      value,
			})
		}
	}
}

func (l *lowerer) lowerTopFn(name string, hash uint64, params []ast.Param, body *ast.BlockExpr, key ast.Node, async, gen bool) *Function {
	if body == nil {
		return nil
	}
	info := l.res.Funcs[key]
	if info == nil {
		info = &resolve.FuncInfo{}
	}
	fs := &fnState{info: info}
	fn := &Function{Name: name, Hash: hash, Async: async, Generator: gen}
	for i, p := range params {
		hp := Param{Slot: i}
		if p.Default != nil {
			hp.Default, hp.DefaultLocalCount = l.lowerDefault(p.Default)
		}
		fn.Params = append(fn.Params, hp)
	}
	fn.Body = l.lowerBlock(fs, body)
	fn.LocalCount = info.LocalCount
	fn.Upvalues = info.Upvalues
	markUnreachable(l, fn.Body)
	return fn
}

func (l *lowerer) lowerBlock(fs *fnState, b *ast.BlockExpr) *Block {
	out := &Block{}
	for _, stmt := range b.Stmts {
		out.Stmts = append(out.Stmts, l.lowerStmt(fs, stmt))
	}
	if b.Value != nil {
		out.Value = l.lowerExpr(fs, b.Value)
	}
	return out
}

func (l *lowerer) lowerStmt(fs *fnState, s ast.Stmt) Node {
	switch node := s.(type) {
	case *ast.LetStmt:
		value := l.lowerExpr(fs, node.Value)
		// Stash into a temp slot before destructuring: a compound pattern
		// like `let (a, b) = f()` produces one ArmBind per binder, each
		// with its own Extract chain rooted at the scrutinee node — reusing
		// the raw `value` tree as that root would recompile (and
		// re-evaluate) the right-hand side once per binder. A LocalRef
		// leaf is cheap to repeat, the same trick lowerMatch/lowerFor use
		// for their own scrutinees.
		tmp := fs.newTemp()
		test, binds := l.lowerPattern(fs, node.Pat, &LocalRef{Slot: tmp})
		_ = test // a `let` binder is irrefutable; a refutable pattern here is a parser-level restriction, not this stage's concern
		return &Block{Stmts: []Node{
			&Assign{Op: "=", Target: &LocalRef{Slot: tmp}, Value: value},
			&BindSeq{Binds: binds},
		}}
	case *ast.ExprStmt:
		return l.lowerExpr(fs, node.X)
	}
	return &Literal{Kind: LitNil}
}

// BindSeq runs a sequence of ArmBind extractions unconditionally; it is
// how a `let` pattern's destructuring reuses the same Extract machinery
// match arms use, without needing a PatTest guard (let patterns are
// irrefutable).
type BindSeq struct{ Binds []ArmBind }

func (*BindSeq) hirNode() {}

func (l *lowerer) lowerExpr(fs *fnState, e ast.Expr) Node {
	if e == nil {
		return &Literal{Kind: LitNil}
	}
	switch node := e.(type) {
	case *ast.IntLit:
		return &Literal{Kind: LitInt, I: node.Value}
	case *ast.FloatLit:
		return &Literal{Kind: LitFloat, F: node.Value}
	case *ast.BoolLit:
		return &Literal{Kind: LitBool, B: node.Value}
	case *ast.NilLit:
		return &Literal{Kind: LitNil}
	case *ast.CharLit:
		return &Literal{Kind: LitChar, C: node.Value}
	case *ast.ByteLit:
		return &Literal{Kind: LitByte, Byte: node.Value}
	case *ast.StringLit:
		return &Literal{Kind: LitString, S: node.Value}
	case *ast.ByteStringLit:
		return &Literal{Kind: LitString, S: string(node.Value)}
	case *ast.InterpString:
		parts := make([]Node, len(node.Parts))
		for i, p := range node.Parts {
			parts[i] = l.lowerExpr(fs, p)
		}
		return &InterpConcat{Parts: parts}
	case *ast.IdentExpr:
		return l.lowerIdentRef(node)
	case *ast.PathExpr:
		return l.lowerPathRef(node)
	case *ast.UnaryExpr:
		x := l.lowerExpr(fs, node.X)
		if l.fold {
			return foldUnary(string(node.Op), x)
		}
		return &Unary{Op: string(node.Op), X: x}
	case *ast.BinaryExpr:
		left, right := l.lowerExpr(fs, node.Left), l.lowerExpr(fs, node.Right)
		if l.fold {
			return foldBinary(string(node.Op), left, right)
		}
		return &Binary{Op: string(node.Op), Left: left, Right: right}
	case *ast.AssignExpr:
		return l.lowerAssign(fs, node)
	case *ast.FieldExpr:
		return &Field{X: l.lowerExpr(fs, node.X), Name: node.Field, IsOptional: node.IsOptional}
	case *ast.IndexExpr:
		return &Index{X: l.lowerExpr(fs, node.X), Idx: l.lowerExpr(fs, node.Index)}
	case *ast.CallExpr:
		// A call whose callee is an enum variant path is a constructor,
		// not a function call: Shape::Circle(r) builds the variant value.
		if pe, ok := node.Callee.(*ast.PathExpr); ok {
			if b, bound := l.res.Idents[pe]; bound && b.Kind == resolve.BindVariant {
				args := make([]Node, len(node.Args))
				for i, a := range node.Args {
					args[i] = l.lowerExpr(fs, a.Value)
				}
				return &Variant{EnumName: b.Enum, Variant: b.Variant, Args: args}
			}
		}
		return &Call{Callee: l.lowerExpr(fs, node.Callee), Args: l.lowerArgs(fs, node.Args)}
	case *ast.MethodCallExpr:
		return &MethodCall{Recv: l.lowerExpr(fs, node.Recv), Method: node.Method, Args: l.lowerArgs(fs, node.Args)}
	case *ast.TryExpr:
		return &Try{X: l.lowerExpr(fs, node.X)}
	case *ast.TupleExpr:
		elems := make([]Node, len(node.Elems))
		for i, el := range node.Elems {
			elems[i] = l.lowerExpr(fs, el)
		}
		return &Tuple{Elems: elems}
	case *ast.VectorExpr:
		elems := make([]VecElem, len(node.Elems))
		for i, el := range node.Elems {
			elems[i] = VecElem{Value: l.lowerExpr(fs, el.Value), Spread: el.Spread}
		}
		return &Vector{Elems: elems}
	case *ast.MapExpr:
		entries := make([]MapEntry, len(node.Entries))
		for i, en := range node.Entries {
			entries[i] = MapEntry{Key: l.lowerExpr(fs, en.Key), Value: l.lowerExpr(fs, en.Value)}
		}
		return &MapLit{Entries: entries}
	case *ast.ObjectExpr:
		var spread Node
		if node.Spread != nil {
			spread = l.lowerExpr(fs, node.Spread)
		}
		fields := make([]ObjectField, len(node.Fields))
		for i, f := range node.Fields {
			fields[i] = ObjectField{Name: f.Name, Value: l.lowerFieldValue(fs, node, i, f.Value)}
		}
		return &Object{TypeName: node.TypeName, Spread: spread, Fields: fields}
	case *ast.VariantExpr:
		args := make([]Node, len(node.Args))
		for i, a := range node.Args {
			args[i] = l.lowerExpr(fs, a)
		}
		fields := make([]ObjectField, len(node.Fields))
		for i, f := range node.Fields {
			fields[i] = ObjectField{Name: f.Name, Value: l.lowerFieldValue(fs, node, i, f.Value)}
		}
		return &Variant{EnumName: node.EnumName, Variant: node.Variant, Args: args, Fields: fields}
	case *ast.RangeExpr:
		return &Range{Start: l.lowerExpr(fs, node.Start), End: l.lowerExpr(fs, node.End), Inclusive: node.Kind == ast.RangeInclusive}
	case *ast.BlockExpr:
		return l.lowerBlock(fs, node)
	case *ast.IfExpr:
		out := &If{Cond: l.lowerExpr(fs, node.Cond), Then: l.lowerBlock(fs, node.Then)}
		if node.Else != nil {
			out.Else = l.lowerExpr(fs, node.Else)
		}
		return out
	case *ast.WhileExpr:
		sink := l.pushLoop(fs, node.Label)
		body := l.lowerBlock(fs, node.Body)
		l.popLoop(fs)
		return &Loop{Sink: sink, Cond: l.lowerExpr(fs, node.Cond), Body: body}
	case *ast.LoopExpr:
		sink := l.pushLoop(fs, node.Label)
		body := l.lowerBlock(fs, node.Body)
		l.popLoop(fs)
		return &Loop{Sink: sink, Body: body, Diverges: !hasReachableBreak(body, sink)}
	case *ast.ForExpr:
		return l.lowerFor(fs, node)
	case *ast.MatchExpr:
		return l.lowerMatch(fs, node)
	case *ast.BreakExpr:
		sink := l.resolveLoopSink(fs, node.Label, node.Sp)
		var val Node
		if node.Value != nil {
			val = l.lowerExpr(fs, node.Value)
		}
		return &Break{Sink: sink, Value: val}
	case *ast.ContinueExpr:
		return &Continue{Sink: l.resolveLoopSink(fs, node.Label, node.Sp)}
	case *ast.ReturnExpr:
		var val Node
		if node.Value != nil {
			val = l.lowerExpr(fs, node.Value)
		}
		return &Return{Value: val}
	case *ast.YieldExpr:
		var val Node
		if node.Value != nil {
			val = l.lowerExpr(fs, node.Value)
		}
		return &Yield{Value: val}
	case *ast.AwaitExpr:
		return &Await{X: l.lowerExpr(fs, node.X)}
	case *ast.ClosureExpr:
		return l.lowerClosure(fs, node)
	}
	return &Literal{Kind: LitNil}
}

// lowerAssign lowers `target op value`. A plain `=` to any target, and an
// `op=` to a LocalRef/UpvalRef target, is safe to lower straight through:
// re-resolving the same local/upvalue slot twice (once to read the current
// value for the compound op, once to write the result) has no side
// effects. A compound op against a structural (Field/Index) target is not
// safe to lower straight through, since internal/bytecode's Assign codegen
// needs Target's tree both to read the current value and to resolve the
// write address — reusing the raw lowered X (and, for Index, Idx) as that
// shared subtree would recompile and re-evaluate it twice, exactly the bug
// class already fixed once this pass for let-destructuring and object/
// variant shorthand fields (`arr[i()] += 1` must call i() once). The base
// expression(s) are stashed into temp locals first and Target is rebuilt
// from cheap LocalRef reads to them, mirroring that same fix.
func (l *lowerer) lowerAssign(fs *fnState, node *ast.AssignExpr) Node {
	op := string(node.Op)
	if op == "=" {
		return &Assign{Op: op, Target: l.lowerExpr(fs, node.Target), Value: l.lowerExpr(fs, node.Value)}
	}
	switch t := node.Target.(type) {
	case *ast.FieldExpr:
		baseSlot := fs.newTemp()
		base := l.lowerExpr(fs, t.X)
		return &Block{Stmts: []Node{
			&Assign{Op: "=", Target: &LocalRef{Slot: baseSlot}, Value: base},
		}, Value: &Assign{
			Op:     op,
			Target: &Field{X: &LocalRef{Slot: baseSlot}, Name: t.Field, IsOptional: t.IsOptional},
			Value:  l.lowerExpr(fs, node.Value),
		}}
	case *ast.IndexExpr:
		baseSlot := fs.newTemp()
		idxSlot := fs.newTemp()
		base := l.lowerExpr(fs, t.X)
		idx := l.lowerExpr(fs, t.Index)
		return &Block{Stmts: []Node{
			&Assign{Op: "=", Target: &LocalRef{Slot: baseSlot}, Value: base},
			&Assign{Op: "=", Target: &LocalRef{Slot: idxSlot}, Value: idx},
		}, Value: &Assign{
			Op:     op,
			Target: &Index{X: &LocalRef{Slot: baseSlot}, Idx: &LocalRef{Slot: idxSlot}},
			Value:  l.lowerExpr(fs, node.Value),
		}}
	default:
		// LocalRef/UpvalRef (or an unresolved reference left over from a
		// diagnostic already raised in internal/resolve): no shared
		// re-evaluation risk, lower straight through.
		return &Assign{Op: op, Target: l.lowerExpr(fs, node.Target), Value: l.lowerExpr(fs, node.Value)}
	}
}

// lowerFieldValue lowers one object/variant-literal field's value,
// resolving a shorthand field (`{ x }`, v == nil) through
// Result.ShorthandRefs rather than re-deriving an identifier lookup here.
func (l *lowerer) lowerFieldValue(fs *fnState, key ast.Node, index int, v ast.Expr) Node {
	if v != nil {
		return l.lowerExpr(fs, v)
	}
	if binds, ok := l.res.ShorthandRefs[key]; ok && index < len(binds) {
		return bindingRef(binds[index])
	}
	return &Literal{Kind: LitNil}
}

func (l *lowerer) lowerArgs(fs *fnState, args []ast.CallArg) []CallArg {
	out := make([]CallArg, len(args))
	for i, a := range args {
		out[i] = CallArg{Value: l.lowerExpr(fs, a.Value), Spread: a.Spread}
	}
	return out
}

func (l *lowerer) lowerIdentRef(node *ast.IdentExpr) Node {
	b, ok := l.res.Idents[node]
	if !ok {
		return &Literal{Kind: LitNil}
	}
	return bindingRef(b)
}

func (l *lowerer) lowerPathRef(node *ast.PathExpr) Node {
	b, ok := l.res.Idents[node]
	if !ok {
		return &Literal{Kind: LitNil}
	}
	if b.Kind == resolve.BindVariant {
		// A bare variant path is the unit-variant value itself.
		return &Variant{EnumName: b.Enum, Variant: b.Variant}
	}
	return bindingRef(b)
}

// lowerDefault lowers one parameter's default expression using the
// FuncInfo internal/resolve's resolveParamDefaults recorded for it
// (keyed by the Default expression node itself, since a default runs in
// its own item-only scope, not the enclosing function's).
func (l *lowerer) lowerDefault(e ast.Expr) (Node, int) {
	info := l.res.Funcs[e]
	if info == nil {
		info = &resolve.FuncInfo{}
	}
	fs := &fnState{info: info}
	return l.lowerExpr(fs, e), info.LocalCount
}

func bindingRef(b resolve.Binding) Node {
	switch b.Kind {
	case resolve.BindLocal:
		return &LocalRef{Slot: b.Slot}
	case resolve.BindUpvalue:
		return &UpvalRef{Index: b.Index}
	case resolve.BindItem:
		return &ItemRef{Hash: b.Hash}
	default:
		return &Literal{Kind: LitNil}
	}
}

func (l *lowerer) lowerClosure(fs *fnState, c *ast.ClosureExpr) Node {
	info := l.res.Funcs[c]
	if info == nil {
		info = &resolve.FuncInfo{}
	}
	childFs := &fnState{info: info}
	fn := &Function{Name: "<closure>"}
	for i, p := range c.Params {
		hp := Param{Slot: i}
		if p.Default != nil {
			hp.Default, hp.DefaultLocalCount = l.lowerDefault(p.Default)
		}
		fn.Params = append(fn.Params, hp)
	}
	switch body := c.Body.(type) {
	case *ast.BlockExpr:
		fn.Body = l.lowerBlock(childFs, body)
	default:
		fn.Body = &Block{Value: l.lowerExpr(childFs, body)}
	}
	fn.LocalCount = info.LocalCount
	fn.Upvalues = info.Upvalues
	markUnreachable(l, fn.Body)
	return &Closure{Fn: fn}
}

// lowerFor desugars `for pat in iter { body }` into the into_iter/next
// protocol: call into_iter() once, then loop calling
// next() and matching its Option result — Some(pat) runs the body,
// None breaks. internal/runtime implements into_iter/next as ordinary
// protocol dispatch, so this desugaring needs no VM-level loop opcode
// beyond the ones `loop`/`while` already use.
func (l *lowerer) lowerFor(fs *fnState, node *ast.ForExpr) Node {
	iterExpr := l.lowerExpr(fs, node.Iter)
	iterSlot := fs.newTemp()
	optSlot := fs.newTemp()

	sink := l.pushLoop(fs, node.Label)
	elemSrc := Node(&Extract{X: &LocalRef{Slot: optSlot}, Kind: "variant-elem", EnumName: "Option", Variant: "Some", Index: 0})
	patTest, binds := l.lowerPattern(fs, node.Pat, elemSrc)
	bodyBlock := l.lowerBlock(fs, node.Body)
	l.popLoop(fs)

	someTest := &PatTest{Kind: "variant", X: &LocalRef{Slot: optSlot}, EnumName: "Option", Variant: "Some"}
	fullTest := and2(someTest, patTest)

	loopBody := &Block{
		Stmts: []Node{
			&Assign{Op: "=", Target: &LocalRef{Slot: optSlot}, Value: &MethodCall{Recv: &LocalRef{Slot: iterSlot}, Method: "next"}},
			&If{
				Cond: fullTest,
				Then: prependBinds(binds, bodyBlock),
				Else: &Block{Stmts: []Node{&Break{Sink: sink}}},
			},
		},
	}
	return &Block{
		Stmts: []Node{&Assign{Op: "=", Target: &LocalRef{Slot: iterSlot}, Value: &MethodCall{Recv: iterExpr, Method: "into_iter"}}},
		Value: &Loop{Sink: sink, Body: loopBody},
	}
}

func prependBinds(binds []ArmBind, body *Block) *Block {
	if len(binds) == 0 {
		return body
	}
	stmts := append([]Node{&BindSeq{Binds: binds}}, body.Stmts...)
	return &Block{Stmts: stmts, Value: body.Value}
}

// lowerMatch lowers a match expression into the sequential test-then-
// bind arm chain described on the Match node.
func (l *lowerer) lowerMatch(fs *fnState, node *ast.MatchExpr) Node {
	scr := l.lowerExpr(fs, node.Scrutinee)
	scrSlot := fs.newTemp()
	arms := make([]MatchArm, len(node.Arms))
	for i, a := range node.Arms {
		test, binds := l.lowerPattern(fs, a.Pat, &LocalRef{Slot: scrSlot})
		var guard Node
		if a.Guard != nil {
			guard = l.lowerExpr(fs, a.Guard)
		}
		arms[i] = MatchArm{Test: test, Binds: binds, Guard: guard, Body: l.lowerExpr(fs, a.Body)}
	}
	return &Match{Scrutinee: scr, ScrSlot: scrSlot, Arms: arms}
}

func (l *lowerer) pushLoop(fs *fnState, label string) int {
	sink := l.sinks
	l.sinks++
	fs.loops = append(fs.loops, loopFrame{label: label, sink: sink})
	return sink
}

func (l *lowerer) popLoop(fs *fnState) {
	fs.loops = fs.loops[:len(fs.loops)-1]
}

// resolveLoopSink finds the numeric sink for a break/continue: the
// innermost enclosing loop for an unlabeled jump, or the named loop
// found by searching outward for a labelled one. A `break`/`continue`
// naming a label that does not enclose it is a compile error, not a
// runtime panic.
func (l *lowerer) resolveLoopSink(fs *fnState, label string, sp token.Span) int {
	if len(fs.loops) == 0 {
		l.diags.Errorf(diag.ErrNameUnresolved, l.file, sp, "break/continue outside of a loop")
		return -1
	}
	if label == "" {
		return fs.loops[len(fs.loops)-1].sink
	}
	for i := len(fs.loops) - 1; i >= 0; i-- {
		if fs.loops[i].label == label {
			return fs.loops[i].sink
		}
	}
	l.diags.Errorf(diag.ErrNameUnresolved, l.file, sp, "no loop labelled %q encloses this break/continue", label)
	return -1
}
