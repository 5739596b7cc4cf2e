package bytecode

import (
	"github.com/weave-lang/weave/internal/hir"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// Assemble walks a lowered *hir.Program and produces a self-contained
// Unit via the usual two-pass label-fixup idiom: emit a placeholder jump
// operand, patch it once the target offset is known. Every hir.Function becomes one
// value.FunctionProto in Unit.Functions; every hir.ConstDecl becomes a
// zero-argument thunk in Unit.ConstThunks, keyed by the same item hash an
// ItemRef to it carries.
func Assemble(prog *hir.Program, reg *typesystem.Registry) *Unit {
	u := NewUnit()
	u.Structs = reg.Structs
	u.Enums = reg.Enums

	for _, fn := range prog.Functions {
		proto := assembleFunction(u, fn)
		idx := len(u.Functions)
		u.Functions = append(u.Functions, proto)
		if fn.Hash != 0 {
			u.EntryItems[fn.Hash] = idx
		}
	}

	for _, c := range prog.Consts {
		fa := newFnAsm(u)
		fa.compileExprDiscard(c.Value, false)
		fa.emit(OP_RETURN, 0)
		u.ConstThunks[c.Hash] = &value.FunctionProto{
			Name:       "const " + c.Name,
			LocalCount: c.LocalCount,
			Chunk:      fa.chunk,
		}
	}

	return u
}

// assembleFunction compiles one hir.Function body (top-level fn, method, or
// closure) into a value.FunctionProto, including a DefaultChunk per
// optional parameter. u is the enclosing Unit any nested Closure literal
// inside this body gets its own function-table slot appended to.
func assembleFunction(u *Unit, fn *hir.Function) *value.FunctionProto {
	required := 0
	for _, p := range fn.Params {
		if p.Default == nil {
			required++
		}
	}
	proto := &value.FunctionProto{
		Name:          fn.Name,
		Arity:         len(fn.Params),
		RequiredArity: required,
		LocalCount:    fn.LocalCount,
		UpvalueCount:  len(fn.Upvalues),
		Async:         fn.Async,
		Generator:     fn.Generator,
	}

	fa := newFnAsm(u)
	fa.compileBlockTail(fn.Body)
	fa.emit(OP_RETURN, 0)
	proto.Chunk = fa.chunk

	for _, p := range fn.Params {
		if p.Default == nil {
			continue
		}
		da := newFnAsm(u)
		da.compileExprDiscard(p.Default, false)
		da.emit(OP_RETURN, 0)
		proto.DefaultChunks = append(proto.DefaultChunks, &value.FunctionProto{
			Name:       fn.Name + "<default>",
			LocalCount: p.DefaultLocalCount,
			Chunk:      da.chunk,
		})
	}
	return proto
}

// loopCtx tracks one active Loop's backward-jump target and pending
// forward break-jump patch sites, keyed by hir's numeric Sink since
// internal/hir already resolved every label to a dense id.
type loopCtx struct {
	sink   int
	start  int
	breaks []int
}

// fnAsm assembles one function/default/const-thunk body into its own Chunk.
// unit is the enclosing Unit, shared by every fnAsm including those that
// compile a nested Closure's own body; cross-function state (the function
// table) lives on Unit and is appended to directly by
// Assemble/compileClosure.
type fnAsm struct {
	chunk *Chunk
	unit  *Unit
	loops []loopCtx
}

func newFnAsm(u *Unit) *fnAsm {
	return &fnAsm{chunk: NewChunk(), unit: u}
}

func (fa *fnAsm) emit(op Op, line int) int {
	fa.chunk.writeByte(byte(op), line)
	return fa.chunk.Len() - 1
}

func (fa *fnAsm) emitU16(op Op, n int, line int) {
	fa.emit(op, line)
	fa.chunk.writeU16(n, line)
}

// emitJump emits op followed by a placeholder u16 offset and returns
// the offset of that placeholder, to be filled in later by patchJump.
func (fa *fnAsm) emitJump(op Op, line int) int {
	fa.emit(op, line)
	at := fa.chunk.Len()
	fa.chunk.writeU16(0, line)
	return at
}

func (fa *fnAsm) patchJump(at int) {
	fa.chunk.patchU16(at, fa.chunk.Len())
}

// emitLoop emits an unconditional backward jump to start. OP_LOOP
// carries an absolute target, consistent with OP_JUMP/OP_JUMP_IF_FALSE
// also using absolute targets throughout this assembler.
func (fa *fnAsm) emitLoop(start, line int) {
	fa.emitU16(OP_LOOP, start, line)
}

func (fa *fnAsm) constIndex(v value.Value) int {
	return fa.chunk.AddConstant(v)
}

func (fa *fnAsm) strConst(s string) int {
	return fa.constIndex(value.Str(s))
}

// pushLoop/popLoop bracket compileLoop's body so nested Break/Continue
// nodes (however deep, short of crossing into a nested Closure's own
// function scope, which gets its own fnAsm) find their target sink.
func (fa *fnAsm) pushLoop(sink, start int) {
	fa.loops = append(fa.loops, loopCtx{sink: sink, start: start})
}

func (fa *fnAsm) popLoop() loopCtx {
	lc := fa.loops[len(fa.loops)-1]
	fa.loops = fa.loops[:len(fa.loops)-1]
	return lc
}

func (fa *fnAsm) findLoop(sink int) int {
	for i := len(fa.loops) - 1; i >= 0; i-- {
		if fa.loops[i].sink == sink {
			return i
		}
	}
	return -1
}

// compileBlockTail compiles a function body's outermost block: its
// statements, then its trailing Value (if any) is left on the stack as the
// function's implicit return, matching this language's expression-oriented
// blocks. A body with no trailing value pushes Nil so
// OP_RETURN always has something to pop.
func (fa *fnAsm) compileBlockTail(b *hir.Block) {
	for _, s := range b.Stmts {
		fa.compileStmt(s)
	}
	if b.Value != nil {
		fa.compileExpr(b.Value)
	} else {
		fa.emit(OP_NIL, 0)
	}
}

// compileBlockDiscard compiles a block used purely for its side effects
// (a loop body, an if-arm not in tail position): its trailing Value, if
// any, is computed and then dropped.
func (fa *fnAsm) compileBlockDiscard(b *hir.Block) {
	for _, s := range b.Stmts {
		fa.compileStmt(s)
	}
	if b.Value != nil {
		fa.compileExpr(b.Value)
		fa.emit(OP_POP, 0)
	}
}

// compileStmt compiles a Node reached from Block.Stmts: every hir node can
// appear here (an expression statement is just a Node evaluated and
// popped), but the recurring ones — Assign, BindSeq — are compiled for
// their effect only.
func (fa *fnAsm) compileStmt(n hir.Node) {
	switch n := n.(type) {
	case *hir.Block:
		fa.compileBlockDiscard(n)
	case *hir.BindSeq:
		for _, b := range n.Binds {
			fa.compileExpr(b.From)
			fa.emitU16(OP_SET_LOCAL, b.Slot, 0)
			fa.emit(OP_POP, 0)
		}
	default:
		fa.compileExprDiscard(n, true)
	}
}

// compileExprDiscard compiles n as an expression and, when pop is true,
// pops its result — compileStmt's default case uses it that way. When pop
// is false the compiled value is left on the stack instead (const/default
// thunks want their value kept for OP_RETURN).
func (fa *fnAsm) compileExprDiscard(n hir.Node, pop bool) {
	fa.compileExpr(n)
	if pop {
		fa.emit(OP_POP, 0)
	}
}

// compileExpr compiles n so it leaves exactly one value on the stack.
func (fa *fnAsm) compileExpr(n hir.Node) {
	switch n := n.(type) {
	case *hir.Block:
		fa.compileBlockAsExpr(n)
	case *hir.Literal:
		fa.compileLiteral(n)
	case *hir.LocalRef:
		fa.emitU16(OP_GET_LOCAL, n.Slot, 0)
	case *hir.UpvalRef:
		fa.emitU16(OP_GET_UPVALUE, n.Index, 0)
	case *hir.ItemRef:
		idx := fa.constIndex(value.Int(int64(n.Hash)))
		fa.emitU16(OP_GET_ITEM, idx, 0)
	case *hir.Unary:
		fa.compileExpr(n.X)
		fa.emit(unaryOp(n.Op), 0)
	case *hir.Binary:
		fa.compileBinary(n)
	case *hir.Assign:
		fa.compileAssign(n)
	case *hir.Field:
		fa.compileExpr(n.X)
		idx := fa.strConst(n.Name)
		if n.IsOptional {
			fa.emitU16(OP_GET_FIELD_OPT, idx, 0)
		} else {
			fa.emitU16(OP_GET_FIELD, idx, 0)
		}
	case *hir.Index:
		fa.compileExpr(n.X)
		fa.compileExpr(n.Idx)
		fa.emit(OP_GET_INDEX, 0)
	case *hir.Call:
		fa.compileCall(n)
	case *hir.MethodCall:
		fa.compileMethodCall(n)
	case *hir.Tuple:
		fa.compileSeq(n.Elems, OP_MAKE_TUPLE)
	case *hir.Vector:
		fa.compileVector(n)
	case *hir.MapLit:
		fa.compileMap(n)
	case *hir.Object:
		fa.compileObject(n)
	case *hir.Variant:
		fa.compileVariant(n)
	case *hir.Range:
		fa.compileExpr(n.Start)
		fa.compileExpr(n.End)
		flag := byte(0)
		if n.Inclusive {
			flag = 1
		}
		fa.emit(OP_MAKE_RANGE, 0)
		fa.chunk.writeByte(flag, 0)
	case *hir.If:
		fa.compileIf(n)
	case *hir.Loop:
		fa.compileLoop(n)
	case *hir.Break:
		fa.compileBreak(n)
	case *hir.Continue:
		fa.compileContinue(n)
	case *hir.Return:
		if n.Value != nil {
			fa.compileExpr(n.Value)
		} else {
			fa.emit(OP_NIL, 0)
		}
		fa.emit(OP_RETURN, 0)
	case *hir.Yield:
		if n.Value != nil {
			fa.compileExpr(n.Value)
		} else {
			fa.emit(OP_NIL, 0)
		}
		fa.emit(OP_YIELD, 0)
	case *hir.Await:
		fa.compileExpr(n.X)
		fa.emit(OP_AWAIT, 0)
	case *hir.Match:
		fa.compileMatch(n)
	case *hir.Try:
		fa.compileExpr(n.X)
		fa.emit(OP_TRY, 0)
	case *hir.Closure:
		fa.compileClosure(n)
	case *hir.InterpConcat:
		for _, p := range n.Parts {
			fa.compileExpr(p)
		}
		fa.emit(OP_INTERP_CONCAT, 0)
		fa.chunk.writeByte(byte(len(n.Parts)), 0)
	case *hir.PatTest:
		fa.compilePatTest(n)
	case *hir.Extract:
		fa.compileExtract(n)
	default:
		// BindSeq reached in expression position (e.g. prependBinds'
		// synthetic wrapper): it has no value of its own, only effect —
		// compile its binds and fall through to Nil so a caller expecting
		// one value on the stack still gets one.
		if bs, ok := n.(*hir.BindSeq); ok {
			for _, b := range bs.Binds {
				fa.compileExpr(b.From)
				fa.emitU16(OP_SET_LOCAL, b.Slot, 0)
				fa.emit(OP_POP, 0)
			}
			fa.emit(OP_NIL, 0)
			return
		}
		panic("bytecode: unhandled hir node in compileExpr")
	}
}

// compileBlockAsExpr compiles a nested block expression (`{ ... }` used as
// a value, e.g. an if-arm, a match-arm body, or lowerAssign's synthesized
// temp-materialization wrapper): statements for effect, then its Value.
func (fa *fnAsm) compileBlockAsExpr(b *hir.Block) {
	for _, s := range b.Stmts {
		fa.compileStmt(s)
	}
	if b.Value != nil {
		fa.compileExpr(b.Value)
	} else {
		fa.emit(OP_NIL, 0)
	}
}

func (fa *fnAsm) compileLiteral(l *hir.Literal) {
	switch l.Kind {
	case hir.LitNil:
		fa.emit(OP_NIL, 0)
	case hir.LitBool:
		if l.B {
			fa.emit(OP_TRUE, 0)
		} else {
			fa.emit(OP_FALSE, 0)
		}
	case hir.LitInt:
		fa.emitU16(OP_CONST, fa.constIndex(value.Int(l.I)), 0)
	case hir.LitFloat:
		fa.emitU16(OP_CONST, fa.constIndex(value.Float(l.F)), 0)
	case hir.LitChar:
		fa.emitU16(OP_CONST, fa.constIndex(value.Char(l.C)), 0)
	case hir.LitByte:
		fa.emitU16(OP_CONST, fa.constIndex(value.Byte(l.Byte)), 0)
	case hir.LitString:
		fa.emitU16(OP_CONST, fa.constIndex(value.Str(l.S)), 0)
	}
}

func unaryOp(op string) Op {
	switch op {
	case "-":
		return OP_NEG
	case "!":
		return OP_NOT
	case "~":
		return OP_BNOT
	}
	panic("bytecode: unknown unary operator " + op)
}

// compileBinary implements every hir.Binary op; `&&`/`||`
// short-circuit, everything else is compile-both-sides-then-op. The
// `||` case uses a single OP_JUMP_IF_TRUE, a symmetric mirror of the
// `&&` case.
func (fa *fnAsm) compileBinary(n *hir.Binary) {
	switch n.Op {
	case "&&":
		fa.compileExpr(n.Left)
		end := fa.emitJump(OP_JUMP_IF_FALSE, 0)
		fa.emit(OP_POP, 0)
		fa.compileExpr(n.Right)
		fa.patchJump(end)
		return
	case "||":
		fa.compileExpr(n.Left)
		end := fa.emitJump(OP_JUMP_IF_TRUE, 0)
		fa.emit(OP_POP, 0)
		fa.compileExpr(n.Right)
		fa.patchJump(end)
		return
	}
	fa.compileExpr(n.Left)
	fa.compileExpr(n.Right)
	fa.emit(binaryOp(n.Op), 0)
}

func binaryOp(op string) Op {
	switch op {
	case "+":
		return OP_ADD
	case "-":
		return OP_SUB
	case "*":
		return OP_MUL
	case "/":
		return OP_DIV
	case "%":
		return OP_MOD
	case "**":
		return OP_POW
	case "&":
		return OP_BAND
	case "|":
		return OP_BOR
	case "^":
		return OP_BXOR
	case "<<":
		return OP_LSHIFT
	case ">>":
		return OP_RSHIFT
	case "++":
		return OP_CONCAT
	case "::":
		return OP_CONS
	case "==":
		return OP_EQ
	case "!=":
		return OP_NE
	case "<":
		return OP_LT
	case "<=":
		return OP_LE
	case ">":
		return OP_GT
	case ">=":
		return OP_GE
	}
	panic("bytecode: unknown binary operator " + op)
}

// compileAssign compiles `Target op Value`. By the time this stage sees an
// Assign, internal/hir's lowerAssign has already ensured that a compound
// op's Target is either a LocalRef/UpvalRef (safe to reference twice — no
// side effect in resolving the same slot again) or a Field/Index rooted at
// one (also safe to reference twice for exactly the same reason).
// compileAssign therefore never needs to
// stash or duplicate a base value itself: it simply compiles Target's base
// sub-expression(s) once for the read half and again for the write half
// when Op != "=".
func (fa *fnAsm) compileAssign(n *hir.Assign) {
	switch t := n.Target.(type) {
	case *hir.LocalRef:
		fa.compileAssignValue(n.Op, t, n.Value, func() { fa.emitU16(OP_GET_LOCAL, t.Slot, 0) })
		fa.emitU16(OP_SET_LOCAL, t.Slot, 0)
	case *hir.UpvalRef:
		fa.compileAssignValue(n.Op, t, n.Value, func() { fa.emitU16(OP_GET_UPVALUE, t.Index, 0) })
		fa.emitU16(OP_SET_UPVALUE, t.Index, 0)
	case *hir.Field:
		idx := fa.strConst(t.Name)
		if n.Op == "=" {
			fa.compileExpr(n.Value)
			fa.compileExpr(t.X)
			fa.emitU16(OP_SET_FIELD, idx, 0)
			return
		}
		fa.compileExpr(t.X)
		fa.emitU16(OP_GET_FIELD, idx, 0)
		fa.compileExpr(n.Value)
		fa.emit(binaryOp(compoundArith(n.Op)), 0)
		fa.compileExpr(t.X)
		fa.emitU16(OP_SET_FIELD, idx, 0)
	case *hir.Index:
		if n.Op == "=" {
			fa.compileExpr(n.Value)
			fa.compileExpr(t.X)
			fa.compileExpr(t.Idx)
			fa.emit(OP_SET_INDEX, 0)
			return
		}
		fa.compileExpr(t.X)
		fa.compileExpr(t.Idx)
		fa.emit(OP_GET_INDEX, 0)
		fa.compileExpr(n.Value)
		fa.emit(binaryOp(compoundArith(n.Op)), 0)
		fa.compileExpr(t.X)
		fa.compileExpr(t.Idx)
		fa.emit(OP_SET_INDEX, 0)
	default:
		// Not a valid assignment target (e.g. a literal): internal/resolve/
		// internal/typesystem should have diagnosed this before reaching
		// codegen. Compile Value for its side effects and discard it so
		// this stage still emits a stack-balanced (if meaningless) chunk
		// rather than panicking a headless compiler.
		fa.compileExpr(n.Value)
		fa.emit(OP_POP, 0)
		fa.emit(OP_NIL, 0)
	}
}

// compileAssignValue compiles the right-hand side of `target op= value`
// for a LocalRef/UpvalRef target: getCurrent reads the slot's current
// value for a compound op.
func (fa *fnAsm) compileAssignValue(op string, target hir.Node, value hir.Node, getCurrent func()) {
	if op == "=" {
		fa.compileExpr(value)
		return
	}
	getCurrent()
	fa.compileExpr(value)
	fa.emit(binaryOp(compoundArith(op)), 0)
}

func compoundArith(op string) string {
	switch op {
	case "+=":
		return "+"
	case "-=":
		return "-"
	case "*=":
		return "*"
	case "/=":
		return "/"
	}
	panic("bytecode: unknown compound assignment operator " + op)
}

func (fa *fnAsm) compileCall(n *hir.Call) {
	fa.compileExpr(n.Callee)
	spread := fa.compileArgs(n.Args)
	if spread {
		fa.emit(OP_CALL_SPREAD, 0)
	} else {
		fa.emit(OP_CALL, 0)
	}
	fa.chunk.writeByte(byte(len(n.Args)), 0)
}

func (fa *fnAsm) compileMethodCall(n *hir.MethodCall) {
	fa.compileExpr(n.Recv)
	fa.compileArgs(n.Args)
	idx := fa.strConst(n.Method)
	fa.emit(OP_CALL_METHOD, 0)
	fa.chunk.writeByte(byte(len(n.Args)), 0)
	fa.chunk.writeU16(idx, 0)
}

// compileArgs pushes each argument, marking spread ones with
// OP_SPREAD_ARG, and reports whether any spread arg was seen so the
// caller picks OP_CALL vs OP_CALL_SPREAD.
func (fa *fnAsm) compileArgs(args []hir.CallArg) bool {
	spread := false
	for _, a := range args {
		fa.compileExpr(a.Value)
		if a.Spread {
			fa.emit(OP_SPREAD_ARG, 0)
			spread = true
		}
	}
	return spread
}

func (fa *fnAsm) compileSeq(elems []hir.Node, op Op) {
	for _, e := range elems {
		fa.compileExpr(e)
	}
	fa.emitU16(op, len(elems), 0)
}

func (fa *fnAsm) compileVector(n *hir.Vector) {
	for _, e := range n.Elems {
		fa.compileExpr(e.Value)
		if e.Spread {
			fa.emit(OP_SPREAD_ARG, 0)
		}
	}
	fa.emitU16(OP_MAKE_VECTOR, len(n.Elems), 0)
}

func (fa *fnAsm) compileMap(n *hir.MapLit) {
	for _, e := range n.Entries {
		fa.compileExpr(e.Key)
		fa.compileExpr(e.Value)
	}
	fa.emitU16(OP_MAKE_MAP, len(n.Entries), 0)
}

func (fa *fnAsm) compileObject(n *hir.Object) {
	hasSpread := n.Spread != nil
	if hasSpread {
		fa.compileExpr(n.Spread)
	}
	for _, f := range n.Fields {
		fa.compileExpr(f.Value)
	}
	nameIdx := fa.strConst(n.TypeName)
	fa.emit(OP_MAKE_OBJECT, 0)
	fa.chunk.writeU16(nameIdx, 0)
	spreadFlag := byte(0)
	if hasSpread {
		spreadFlag = 1
	}
	fa.chunk.writeByte(spreadFlag, 0)
	fa.chunk.writeU16(len(n.Fields), 0)
	for _, f := range n.Fields {
		fa.chunk.writeU16(fa.strConst(f.Name), 0)
	}
}

func (fa *fnAsm) compileVariant(n *hir.Variant) {
	enumIdx := fa.strConst(n.EnumName)
	variantIdx := fa.strConst(n.Variant)
	for _, a := range n.Args {
		fa.compileExpr(a)
	}
	for _, f := range n.Fields {
		fa.compileExpr(f.Value)
	}
	fa.emit(OP_MAKE_VARIANT, 0)
	fa.chunk.writeU16(enumIdx, 0)
	fa.chunk.writeU16(variantIdx, 0)
	fa.chunk.writeU16(len(n.Args), 0)
	fa.chunk.writeU16(len(n.Fields), 0)
	for _, f := range n.Fields {
		fa.chunk.writeU16(fa.strConst(f.Name), 0)
	}
}

// compileIf follows the standard single-jump-then-pop pattern:
// OP_JUMP_IF_FALSE peeks, so both branches must independently pop the
// condition before proceeding.
func (fa *fnAsm) compileIf(n *hir.If) {
	fa.compileExpr(n.Cond)
	thenJump := fa.emitJump(OP_JUMP_IF_FALSE, 0)
	fa.emit(OP_POP, 0)
	fa.compileBlockAsExpr(n.Then)
	elseJump := fa.emitJump(OP_JUMP, 0)
	fa.patchJump(thenJump)
	fa.emit(OP_POP, 0)
	if n.Else != nil {
		fa.compileExpr(n.Else)
	} else {
		fa.emit(OP_NIL, 0)
	}
	fa.patchJump(elseJump)
}

// compileLoop lowers the single hir.Loop form shared by `while`/`loop`/
// desugared `for` (internal/hir's lowerFor). Exactly one value reaches
// loopEnd along any path: a `break value` pushes it itself before its
// forward jump (compileBreak), and the natural false-condition exit pushes
// Nil right before falling through into the same loopEnd address a break
// jump targets — the two paths must never both contribute a value, so the
// break-patch loop below must NOT unconditionally push another Nil after
// it (an earlier version of this function did, double-pushing whenever a
// break actually fired). An unconditional `loop` with no break is only
// ever exited by one, since it has no Cond to fail; internal/hir's
// diverge.go should already mark such a loop's Diverges, meaning nothing
// after it executes at all if this function pushes nothing for that case.
func (fa *fnAsm) compileLoop(n *hir.Loop) {
	start := fa.chunk.Len()
	fa.pushLoop(n.Sink, start)
	exitJump := -1
	if n.Cond != nil {
		fa.compileExpr(n.Cond)
		exitJump = fa.emitJump(OP_JUMP_IF_FALSE, 0)
		fa.emit(OP_POP, 0)
	}
	fa.compileBlockDiscard(n.Body)
	fa.emitLoop(start, 0)
	if exitJump != -1 {
		fa.patchJump(exitJump)
		fa.emit(OP_POP, 0)
		fa.emit(OP_NIL, 0)
	}
	lc := fa.popLoop()
	for _, at := range lc.breaks {
		fa.patchJump(at)
	}
}

// compileBreak pushes the break value (Nil for a bare `break`) and jumps
// to its target loop's loopEnd; see compileLoop for why nothing may be
// pushed after the jump is emitted.
func (fa *fnAsm) compileBreak(n *hir.Break) {
	if n.Value != nil {
		fa.compileExpr(n.Value)
	} else {
		fa.emit(OP_NIL, 0)
	}
	i := fa.findLoop(n.Sink)
	at := fa.emitJump(OP_JUMP, 0)
	if i >= 0 {
		fa.loops[i].breaks = append(fa.loops[i].breaks, at)
	}
}

func (fa *fnAsm) compileContinue(n *hir.Continue) {
	i := fa.findLoop(n.Sink)
	if i >= 0 {
		fa.emitLoop(fa.loops[i].start, 0)
	}
}

// compileMatch compiles the sequential test-then-bind arm chain
// internal/hir's lowerMatch produces (hir.go's Match doc comment). The
// scrutinee is evaluated once into ScrSlot; every arm's Test/ArmBind.From
// trees reference it via cheap LocalRef reads.
func (fa *fnAsm) compileMatch(n *hir.Match) {
	fa.compileExpr(n.Scrutinee)
	fa.emitU16(OP_SET_LOCAL, n.ScrSlot, 0)
	fa.emit(OP_POP, 0)

	var doneJumps []int
	for _, arm := range n.Arms {
		testJump := -1
		if arm.Test != nil && !isAlwaysTest(arm.Test) {
			fa.compileExpr(arm.Test)
			testJump = fa.emitJump(OP_JUMP_IF_FALSE, 0)
			fa.emit(OP_POP, 0)
		}
		for _, b := range arm.Binds {
			fa.compileExpr(b.From)
			fa.emitU16(OP_SET_LOCAL, b.Slot, 0)
			fa.emit(OP_POP, 0)
		}
		if arm.Guard != nil {
			fa.compileExpr(arm.Guard)
			guardJump := fa.emitJump(OP_JUMP_IF_FALSE, 0)
			fa.emit(OP_POP, 0)
			fa.compileExpr(arm.Body)
			doneJumps = append(doneJumps, fa.emitJump(OP_JUMP, 0))
			fa.patchJump(guardJump)
			fa.emit(OP_POP, 0)
		} else {
			fa.compileExpr(arm.Body)
			doneJumps = append(doneJumps, fa.emitJump(OP_JUMP, 0))
		}
		if testJump != -1 {
			fa.patchJump(testJump)
			fa.emit(OP_POP, 0)
		}
	}
	fa.emit(OP_MATCH_FAIL, 0)
	for _, at := range doneJumps {
		fa.patchJump(at)
	}
}

func isAlwaysTest(n hir.Node) bool {
	t, ok := n.(*hir.PatTest)
	return ok && t.Kind == "always"
}

func (fa *fnAsm) compilePatTest(t *hir.PatTest) {
	switch t.Kind {
	case "always":
		fa.emit(OP_TEST_ALWAYS, 0)
	case "eq":
		fa.compileExpr(t.X)
		fa.compileExpr(t.Lit)
		fa.emit(OP_TEST_EQ, 0)
	case "variant":
		fa.compileExpr(t.X)
		enumIdx := fa.strConst(t.EnumName)
		variantIdx := fa.strConst(t.Variant)
		fa.emit(OP_TEST_VARIANT, 0)
		fa.chunk.writeU16(enumIdx, 0)
		fa.chunk.writeU16(variantIdx, 0)
	case "struct-type":
		fa.compileExpr(t.X)
		idx := fa.strConst(t.TypeName)
		fa.emitU16(OP_TEST_STRUCT, idx, 0)
	case "tuple-len":
		fa.compileExpr(t.X)
		fa.emitU16(OP_TEST_TUPLE_LEN, t.N, 0)
	case "list-len":
		fa.compileExpr(t.X)
		fa.emitU16(OP_TEST_LIST_LEN, t.N, 0)
	case "list-min-len":
		fa.compileExpr(t.X)
		fa.emitU16(OP_TEST_LIST_MINLEN, t.N, 0)
	default:
		panic("bytecode: unknown PatTest kind " + t.Kind)
	}
}

func (fa *fnAsm) compileExtract(e *hir.Extract) {
	switch e.Kind {
	case "bind-self":
		fa.compileExpr(e.X)
	case "tuple-elem":
		fa.compileExpr(e.X)
		fa.emitU16(OP_EXTRACT_TUPLE_ELEM, e.Index, 0)
	case "list-elem":
		fa.compileExpr(e.X)
		fa.emitU16(OP_EXTRACT_LIST_ELEM, e.Index, 0)
	case "list-rest":
		fa.compileExpr(e.X)
		fa.emitU16(OP_EXTRACT_LIST_REST, e.Index, 0)
	case "variant-elem":
		fa.compileExpr(e.X)
		fa.emitU16(OP_EXTRACT_VARIANT_ELEM, e.Index, 0)
	case "variant-field":
		fa.compileExpr(e.X)
		idx := fa.strConst(e.Name)
		fa.emitU16(OP_EXTRACT_VARIANT_FIELD, idx, 0)
	case "struct-field":
		fa.compileExpr(e.X)
		idx := fa.strConst(e.Name)
		fa.emitU16(OP_EXTRACT_STRUCT_FIELD, idx, 0)
	default:
		panic("bytecode: unknown Extract kind " + e.Kind)
	}
}

// compileClosure assembles the closure's own function body into a fresh
// FunctionProto appended to the enclosing Unit's function table, then
// emits OP_CLOSURE with a function-table index (u16). Every
// FunctionProto lives in Unit.Functions rather than a per-chunk
// Constants pool: value.FunctionProto.Chunk is boxed as interface{}
// specifically to avoid an internal/value -> internal/bytecode import
// cycle, and a Unit-wide table sidesteps needing Chunk to hold Values
// that are themselves other Chunks. Per-upvalue descriptor bytes are
// u8 isLocal, u16 index.
func (fa *fnAsm) compileClosure(n *hir.Closure) {
	proto := assembleFunction(fa.unit, n.Fn)
	idx := 0
	if fa.unit != nil {
		idx = len(fa.unit.Functions)
		fa.unit.Functions = append(fa.unit.Functions, proto)
	}
	fa.emitU16(OP_CLOSURE, idx, 0)
	fa.chunk.writeByte(byte(len(n.Fn.Upvalues)), 0)
	for _, uv := range n.Fn.Upvalues {
		isLocal := byte(0)
		if uv.FromParentLoc {
			isLocal = 1
		}
		fa.chunk.writeByte(isLocal, 0)
		fa.chunk.writeU16(uv.ParentIndex, 0)
	}
}
