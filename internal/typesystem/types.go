// Package typesystem implements a deliberately small static checker:
// no unification, no row polymorphism, no monomorphization — only the
// statically detectable arity/shape checks (struct/enum field shape,
// call arity against a known function signature).
package typesystem

import "github.com/weave-lang/weave/internal/ast"

// Kind is a coarse classification of a TypeExpr annotation; it carries
// no unification variables.
type Kind int

const (
	TUnknown Kind = iota
	TNil
	TBool
	TInt
	TFloat
	TChar
	TByte
	TString
	TBytes
	TVector
	TMap
	TTuple
	TOption
	TResult
	TNamed // user struct/enum, identified by Name
	TFunc
)

// Type is a shape-only type: enough to check arity and field names,
// not enough to unify generic parameters (this language has none).
type Type struct {
	Kind   Kind
	Name   string  // TNamed: struct/enum name; TFunc: unused
	Args   []*Type // TVector: [elem]; TMap: [key, val]; TTuple: elems; TOption: [inner]; TResult: [ok, err]
	Params []*Type // TFunc only
	Ret    *Type   // TFunc only
}

var builtinNames = map[string]Kind{
	"Nil": TNil, "Bool": TBool, "Int": TInt, "Float": TFloat,
	"Char": TChar, "Byte": TByte, "String": TString, "Bytes": TBytes,
	"List": TVector, "Vector": TVector, "Map": TMap, "Option": TOption, "Result": TResult,
}

// FromTypeExpr converts a syntactic annotation to a shape Type, treating
// any name not in builtinNames as a user-declared struct/enum.
func FromTypeExpr(t *ast.TypeExpr) *Type {
	if t == nil {
		return &Type{Kind: TUnknown}
	}
	if kind, ok := builtinNames[t.Name]; ok {
		out := &Type{Kind: kind}
		for _, a := range t.Args {
			out.Args = append(out.Args, FromTypeExpr(a))
		}
		return out
	}
	return &Type{Kind: TNamed, Name: t.Name}
}

func (ty *Type) String() string {
	if ty == nil {
		return "?"
	}
	switch ty.Kind {
	case TNamed:
		return ty.Name
	case TVector:
		if len(ty.Args) == 1 {
			return "List<" + ty.Args[0].String() + ">"
		}
		return "List"
	case TMap:
		if len(ty.Args) == 2 {
			return "Map<" + ty.Args[0].String() + ", " + ty.Args[1].String() + ">"
		}
		return "Map"
	case TUnknown:
		return "?"
	default:
		for name, k := range builtinNames {
			if k == ty.Kind {
				return name
			}
		}
		return "?"
	}
}
