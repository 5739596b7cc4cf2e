package typesystem

import "github.com/weave-lang/weave/internal/ast"

// FnSignature is the shape-checkable part of a function declaration:
// how many arguments it needs and accepts, not what they mean.
type FnSignature struct {
	Name          string
	RequiredArity int
	MaxArity      int // -1 if unbounded (reserved; this language has no variadic fn params)
	ParamTypes    []*Type
	RetType       *Type
}

// VariantShape is one enum case's payload shape.
type VariantShape struct {
	Name       string
	TupleArity int      // -1 if this variant is struct-shaped or unit
	Fields     []string // non-nil for struct-shaped variants
}

type EnumShape struct {
	Name     string
	Variants map[string]*VariantShape
}

type StructShape struct {
	Name       string
	FieldOrder []string
	Fields     map[string]*Type
}

// Registry holds just enough static shape information to catch arity and
// unknown-field mistakes at compile time, built by a single
// walk of the item tree mirroring internal/resolve's path-joining so
// call sites resolved to an item hash can look their signature up here.
type Registry struct {
	Fns     map[uint64]*FnSignature
	Structs map[string]*StructShape
	Enums   map[string]*EnumShape
}

func NewRegistry() *Registry {
	return &Registry{
		Fns:     make(map[uint64]*FnSignature),
		Structs: make(map[string]*StructShape),
		Enums:   make(map[string]*EnumShape),
	}
}

// HashPath must match internal/resolve's path hash exactly so that a
// resolved call-site Binding{Kind: BindItem, Hash: h} looks up the same
// entry collected here. It computes the same 64-bit FNV-1a hash as
// resolve.HashPath with its own loop; TestHashPathMatchesResolver checks
// that the two agree.
func HashPath(path string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= prime64
	}
	return h
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

func Build(prog *ast.Program) *Registry {
	reg := NewRegistry()
	reg.collect("", prog.Items)
	return reg
}

func (reg *Registry) collect(prefix string, items []ast.Item) {
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			reg.addFn(join(prefix, node.Name), node.Name, node.Params, node.RetType)
		case *ast.ImplItem:
			for _, m := range node.Methods {
				reg.addFn(join(prefix, node.TypeName+"::"+m.Name), m.Name, m.Params, m.RetType)
			}
		case *ast.StructItem:
			reg.addStruct(node)
		case *ast.EnumItem:
			reg.addEnum(node)
		case *ast.ModItem:
			reg.collect(join(prefix, node.Name), node.Items)
		}
	}
}

func (reg *Registry) addFn(path, name string, params []ast.Param, ret *ast.TypeExpr) {
	required := 0
	for _, p := range params {
		if p.Default == nil {
			required++
		}
	}
	sig := &FnSignature{Name: name, RequiredArity: required, MaxArity: len(params), RetType: FromTypeExpr(ret)}
	for _, p := range params {
		sig.ParamTypes = append(sig.ParamTypes, FromTypeExpr(p.Type))
	}
	reg.Fns[HashPath(path)] = sig
}

func (reg *Registry) addStruct(node *ast.StructItem) {
	shape := &StructShape{Name: node.Name, Fields: make(map[string]*Type)}
	for _, f := range node.Fields {
		shape.FieldOrder = append(shape.FieldOrder, f.Name)
		shape.Fields[f.Name] = FromTypeExpr(f.Type)
	}
	reg.Structs[node.Name] = shape
}

func (reg *Registry) addEnum(node *ast.EnumItem) {
	shape := &EnumShape{Name: node.Name, Variants: make(map[string]*VariantShape)}
	for _, v := range node.Variants {
		vs := &VariantShape{Name: v.Name, TupleArity: -1}
		if v.Tuple != nil {
			vs.TupleArity = len(v.Tuple)
		} else if v.Fields != nil {
			for _, f := range v.Fields {
				vs.Fields = append(vs.Fields, f.Name)
			}
		}
		shape.Variants[v.Name] = vs
	}
	reg.Enums[node.Name] = shape
}
