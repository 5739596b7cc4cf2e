package ast

import "github.com/weave-lang/weave/internal/token"

// Pattern is any pattern-matching node: let bindings, function parameters,
// for-loop bindings, and match arms.
type Pattern interface {
	Node
	patternNode()
}

// WildcardPat is `_`, matches anything and binds nothing.
type WildcardPat struct{ Sp token.Span }

func (p *WildcardPat) Span() token.Span { return p.Sp }
func (*WildcardPat) patternNode()       {}

// IdentPat binds the matched value to Name. Mut marks a `mut` binding.
type IdentPat struct {
	Name string
	Mut  bool
	Sp   token.Span
}

func (p *IdentPat) Span() token.Span { return p.Sp }
func (*IdentPat) patternNode()       {}

type LiteralPat struct {
	Value Expr // *IntLit, *FloatLit, *StringLit, *BoolLit, *CharLit, *NilLit
	Sp    token.Span
}

func (p *LiteralPat) Span() token.Span { return p.Sp }
func (*LiteralPat) patternNode()       {}

type TuplePat struct {
	Elems []Pattern
	Sp    token.Span
}

func (p *TuplePat) Span() token.Span { return p.Sp }
func (*TuplePat) patternNode()       {}

// RestPat is `...name` or bare `...` inside a ListPat, capturing the
// remaining elements.
type RestPat struct {
	Name string // "" if unbound
	Sp   token.Span
}

func (p *RestPat) Span() token.Span { return p.Sp }
func (*RestPat) patternNode()       {}

// ListPat matches a vector; at most one element may be a *RestPat.
type ListPat struct {
	Elems []Pattern
	Sp    token.Span
}

func (p *ListPat) Span() token.Span { return p.Sp }
func (*ListPat) patternNode()       {}

type FieldPat struct {
	Name    string
	Pat     Pattern // nil for shorthand `{ x }` meaning bind to x
}

// StructPat matches a registered struct value by name and destructures
// its named fields.
type StructPat struct {
	TypeName string
	Fields   []FieldPat
	Sp       token.Span
}

func (p *StructPat) Span() token.Span { return p.Sp }
func (*StructPat) patternNode()       {}

// VariantPat matches an enum variant, either tuple-style (Path::Variant(a, b))
// or struct-style (Path::Variant { a, b }).
type VariantPat struct {
	EnumName string
	Variant  string
	Elems    []Pattern // tuple-style payload
	Fields   []FieldPat
	Sp       token.Span
}

func (p *VariantPat) Span() token.Span { return p.Sp }
func (*VariantPat) patternNode()       {}

// OrPat matches if any of Alts matches: `1 | 2 | 3`.
type OrPat struct {
	Alts []Pattern
	Sp   token.Span
}

func (p *OrPat) Span() token.Span { return p.Sp }
func (*OrPat) patternNode()       {}

// BindPat binds the whole matched value to Name in addition to matching
// Inner: `whole @ Some(x)`.
type BindPat struct {
	Name  string
	Inner Pattern
	Sp    token.Span
}

func (p *BindPat) Span() token.Span { return p.Sp }
func (*BindPat) patternNode()       {}
