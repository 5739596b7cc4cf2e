// Package ast defines the syntax tree produced by internal/parser:
// items, statements, expressions, and patterns.
//
// Every node exposes its source span for diagnostics; dispatch is by
// type switch rather than a Visitor interface, matching the simple node
// set this language needs (no generics, no monomorphization).
package ast

import "github.com/weave-lang/weave/internal/token"

// Node is implemented by every syntax tree node.
type Node interface {
	Span() token.Span
}

// Attribute is a #[...] annotation attached to the following item or
// statement, e.g. #[test], #[bench], #[derive(Marshal)].
type Attribute struct {
	Name string
	Args []string
	Sp   token.Span
}

func (a *Attribute) Span() token.Span { return a.Sp }

// Program is the root of one parsed source file.
type Program struct {
	File  string
	Items []Item
	Sp    token.Span
}

func (p *Program) Span() token.Span { return p.Sp }

// Item is any top-level declaration: fn, struct, enum, impl, mod, use, const.
type Item interface {
	Node
	itemNode()
	Attrs() []*Attribute
}

// Ident is a bare identifier reference, reused across expressions, patterns,
// and paths.
type Ident struct {
	Name string
	Sp   token.Span
}

func (i *Ident) Span() token.Span { return i.Sp }

// Path is a canonical or unqualified `a::b::c` sequence, as written by the
// programmer, before the resolver rewrites `use`-imported names to their
// canonical form.
type Path struct {
	Segments []string
	Sp       token.Span
}

func (p *Path) Span() token.Span { return p.Sp }

func (p *Path) String() string {
	s := ""
	for i, seg := range p.Segments {
		if i > 0 {
			s += "::"
		}
		s += seg
	}
	return s
}

// TypeExpr is a syntactic type annotation. The core does not perform
// full type inference, only arity/shape checks; TypeExpr exists so
// struct/enum field layouts and function signatures can be recorded and
// checked for statically detectable type/arity mismatches.
type TypeExpr struct {
	Name string      // "Int", "Float", "Bool", "String", "List", "Map", "Option", "Result", or a user type name
	Args []*TypeExpr // e.g. List<Int> -> Name="List", Args=[Int]
	Sp   token.Span
}

func (t *TypeExpr) Span() token.Span { return t.Sp }
