package ast

import "github.com/weave-lang/weave/internal/token"

// Param is a function or closure parameter with an optional type
// annotation and default value.
type Param struct {
	Name    string
	Type    *TypeExpr // nil if unannotated
	Default Expr      // nil if required
}

// Visibility controls whether an item is reachable from outside its
// declaring module.
type Visibility int

const (
	VisPrivate Visibility = iota
	VisPublic
)

// FnItem is a top-level or nested function declaration. Async and
// Generator mark bodies that may contain `await`/`yield` respectively
//.
type FnItem struct {
	Vis       Visibility
	Name      string
	Params    []Param
	RetType   *TypeExpr
	Body      *BlockExpr
	Async     bool
	Generator bool
	AttrList  []*Attribute
	Sp        token.Span
}

func (i *FnItem) Span() token.Span      { return i.Sp }
func (*FnItem) itemNode()               {}
func (i *FnItem) Attrs() []*Attribute   { return i.AttrList }

// StructField is one named field of a struct declaration; its `: Type`
// annotation is optional and Type is nil when it is omitted.
type StructField struct {
	Name string
	Type *TypeExpr
	Vis  Visibility
}

type StructItem struct {
	Vis      Visibility
	Name     string
	Fields   []StructField
	AttrList []*Attribute
	Sp       token.Span
}

func (i *StructItem) Span() token.Span    { return i.Sp }
func (*StructItem) itemNode()             {}
func (i *StructItem) Attrs() []*Attribute { return i.AttrList }

// EnumVariant is one case of an enum: unit (`None`), tuple
// (`Some(T)`), or struct (`Point { x: Int, y: Int }`) shaped.
type EnumVariant struct {
	Name   string
	Tuple  []*TypeExpr   // tuple-shaped payload types, nil if none
	Fields []StructField // struct-shaped payload fields, nil if none
	Sp     token.Span
}

type EnumItem struct {
	Vis      Visibility
	Name     string
	Variants []EnumVariant
	AttrList []*Attribute
	Sp       token.Span
}

func (i *EnumItem) Span() token.Span    { return i.Sp }
func (*EnumItem) itemNode()             {}
func (i *EnumItem) Attrs() []*Attribute { return i.AttrList }

// ImplItem attaches methods (and, for protocols, operator/iteration
// hooks) to a named type. TraitName is "" for
// an inherent impl block.
type ImplItem struct {
	TypeName  string
	TraitName string
	Methods   []*FnItem
	AttrList  []*Attribute
	Sp        token.Span
}

func (i *ImplItem) Span() token.Span    { return i.Sp }
func (*ImplItem) itemNode()             {}
func (i *ImplItem) Attrs() []*Attribute { return i.AttrList }

// ModItem is an inline submodule: `mod name { items... }`.
type ModItem struct {
	Vis      Visibility
	Name     string
	Items    []Item
	AttrList []*Attribute
	Sp       token.Span
}

func (i *ModItem) Span() token.Span    { return i.Sp }
func (*ModItem) itemNode()             {}
func (i *ModItem) Attrs() []*Attribute { return i.AttrList }

// UseItem imports a path into scope, optionally under an alias:
// `use a::b::c` or `use a::b::c as d`.
type UseItem struct {
	Path     *Path
	Alias    string // "" if none
	AttrList []*Attribute
	Sp       token.Span
}

func (i *UseItem) Span() token.Span    { return i.Sp }
func (*UseItem) itemNode()             {}
func (i *UseItem) Attrs() []*Attribute { return i.AttrList }

// ConstItem is a top-level compile-time constant.
type ConstItem struct {
	Vis      Visibility
	Name     string
	Type     *TypeExpr
	Value    Expr
	AttrList []*Attribute
	Sp       token.Span
}

func (i *ConstItem) Span() token.Span    { return i.Sp }
func (*ConstItem) itemNode()             {}
func (i *ConstItem) Attrs() []*Attribute { return i.AttrList }
