package hir

import (
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

// children returns n's direct sub-nodes for a generic tree search,
// deliberately not descending into a Closure's own Function body: a
// nested closure is a new function scope, so a `break`/`continue`
// inside it can never target a loop in the enclosing function, and
// nothing inside it can make the *enclosing* function's control flow
// diverge just because the closure body does.
func children(n Node) []Node {
	switch v := n.(type) {
	case *Block:
		out := append([]Node{}, v.Stmts...)
		if v.Value != nil {
			out = append(out, v.Value)
		}
		return out
	case *Unary:
		return []Node{v.X}
	case *Binary:
		return []Node{v.Left, v.Right}
	case *Assign:
		return []Node{v.Target, v.Value}
	case *Field:
		return []Node{v.X}
	case *Index:
		return []Node{v.X, v.Idx}
	case *Call:
		out := []Node{v.Callee}
		for _, a := range v.Args {
			out = append(out, a.Value)
		}
		return out
	case *MethodCall:
		out := []Node{v.Recv}
		for _, a := range v.Args {
			out = append(out, a.Value)
		}
		return out
	case *Tuple:
		return v.Elems
	case *Vector:
		out := make([]Node, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = e.Value
		}
		return out
	case *MapLit:
		var out []Node
		for _, e := range v.Entries {
			out = append(out, e.Key, e.Value)
		}
		return out
	case *Object:
		out := []Node{}
		if v.Spread != nil {
			out = append(out, v.Spread)
		}
		for _, f := range v.Fields {
			out = append(out, f.Value)
		}
		return out
	case *Variant:
		out := append([]Node{}, v.Args...)
		for _, f := range v.Fields {
			out = append(out, f.Value)
		}
		return out
	case *Range:
		out := []Node{}
		if v.Start != nil {
			out = append(out, v.Start)
		}
		if v.End != nil {
			out = append(out, v.End)
		}
		return out
	case *If:
		out := []Node{v.Cond, v.Then}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		return out
	case *Loop:
		out := []Node{v.Body}
		if v.Cond != nil {
			out = append(out, v.Cond)
		}
		return out
	case *Break:
		if v.Value != nil {
			return []Node{v.Value}
		}
	case *Return:
		if v.Value != nil {
			return []Node{v.Value}
		}
	case *Yield:
		if v.Value != nil {
			return []Node{v.Value}
		}
	case *Await:
		return []Node{v.X}
	case *Try:
		return []Node{v.X}
	case *Match:
		out := []Node{v.Scrutinee}
		for _, a := range v.Arms {
			if a.Guard != nil {
				out = append(out, a.Guard)
			}
			out = append(out, a.Body)
		}
		return out
	case *InterpConcat:
		return v.Parts
	}
	return nil
}

func hasNode(n Node, match func(Node) bool) bool {
	if n == nil {
		return false
	}
	if match(n) {
		return true
	}
	for _, c := range children(n) {
		if hasNode(c, match) {
			return true
		}
	}
	return false
}

func hasReachableBreak(body *Block, sink int) bool {
	return hasNode(body, func(n Node) bool {
		b, ok := n.(*Break)
		return ok && b.Sink == sink
	})
}

// diverges reports whether evaluating n can never fall through to
// whatever follows it: an unconditional Return/Break/Continue, or an
// if/else where both branches diverge, or a Loop with no reachable
// break.
func diverges(n Node) bool {
	switch v := n.(type) {
	case *Return, *Break, *Continue:
		return true
	case *Block:
		return v.Diverges
	case *If:
		if v.Else == nil {
			return false
		}
		return diverges(v.Then) && diverges(v.Else)
	case *Loop:
		return v.Diverges
	}
	return false
}

// markUnreachable computes Block.Diverges bottom-up and reports a W001
// warning for any statement following one that always diverges.
func markUnreachable(l *lowerer, b *Block) {
	seenDiverge := false
	for i, stmt := range b.Stmts {
		markUnreachableIn(l, stmt)
		if seenDiverge {
			continue
		}
		if diverges(stmt) {
			seenDiverge = true
			if i+1 < len(b.Stmts) {
				l.diags.Warnf(diag.WarnUnreachableCode, l.file, zeroSpan(), "unreachable code")
			}
		}
	}
	if b.Value != nil {
		markUnreachableIn(l, b.Value)
	}
	if seenDiverge && b.Value == nil {
		b.Diverges = true
	}
	if b.Value != nil && diverges(b.Value) {
		b.Diverges = true
	}
}

func markUnreachableIn(l *lowerer, n Node) {
	switch v := n.(type) {
	case *Block:
		markUnreachable(l, v)
	case *If:
		markUnreachableIn(l, v.Then)
		if v.Else != nil {
			markUnreachableIn(l, v.Else)
		}
	case *Loop:
		markUnreachableIn(l, v.Body)
	case *Match:
		for _, a := range v.Arms {
			markUnreachableIn(l, a.Body)
		}
	}
}

// zeroSpan is used for warnings whose precise column would require
// threading a span through every HIR node; the diagnostic still carries
// the right file and message, just not a pinpoint column. Acceptable for
// a W-series warning, which never blocks compilation.
func zeroSpan() token.Span { return token.Span{} }
