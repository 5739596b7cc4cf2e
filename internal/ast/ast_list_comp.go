package ast

import "github.com/weave-lang/weave/internal/token"

// Stmt is a statement inside a block. Only two shapes exist: `let`
// bindings and expression statements — everything else
// that reads like a statement in other languages (if, while, match,
// blocks) is an expression here.
type Stmt interface {
	Node
	stmtNode()
}

// LetStmt introduces a binding. Mut is carried on the pattern itself
// (see IdentPat.Mut) for the common case of a bare identifier; Type is
// an optional annotation used by the arity/shape checker.
type LetStmt struct {
	Pat   Pattern
	Type  *TypeExpr // nil if unannotated
	Value Expr
	Sp    token.Span
}

func (s *LetStmt) Span() token.Span { return s.Sp }
func (*LetStmt) stmtNode()          {}

// ExprStmt is an expression evaluated for its side effect; its value is
// discarded unless it is the trailing expression of the enclosing block,
// in which case the parser represents it as BlockExpr.Value instead.
type ExprStmt struct {
	X  Expr
	Sp token.Span
}

func (s *ExprStmt) Span() token.Span { return s.Sp }
func (*ExprStmt) stmtNode()          {}
