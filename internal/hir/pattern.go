package hir

import "github.com/weave-lang/weave/internal/ast"

// lowerPattern compiles one pattern against an already-lowered scrutinee
// expression into a boolean test (conjunction of PatTest nodes) plus the
// list of local-slot bindings a successful match must perform. Both
// match arms and for-loop/let destructuring share this.
func (l *lowerer) lowerPattern(fs *fnState, p ast.Pattern, scrutinee Node) (Node, []ArmBind) {
	switch node := p.(type) {
	case *ast.WildcardPat:
		return &PatTest{Kind: "always"}, nil

	case *ast.IdentPat:
		slot := l.declSlot(node)
		return &PatTest{Kind: "always"}, []ArmBind{{Slot: slot, From: scrutinee}}

	case *ast.LiteralPat:
		return &PatTest{Kind: "eq", X: scrutinee, Lit: l.lowerExpr(fs, node.Value)}, nil

	case *ast.TuplePat:
		test := Node(&PatTest{Kind: "tuple-len", X: scrutinee, N: len(node.Elems)})
		var binds []ArmBind
		for i, el := range node.Elems {
			sub := &Extract{X: scrutinee, Kind: "tuple-elem", Index: i}
			t, b := l.lowerPattern(fs, el, sub)
			test = and2(test, t)
			binds = append(binds, b...)
		}
		return test, binds

	case *ast.ListPat:
		restIdx := -1
		for i, el := range node.Elems {
			if _, ok := el.(*ast.RestPat); ok {
				restIdx = i
				break
			}
		}
		var test Node
		var binds []ArmBind
		if restIdx < 0 {
			test = &PatTest{Kind: "list-len", X: scrutinee, N: len(node.Elems)}
			for i, el := range node.Elems {
				sub := &Extract{X: scrutinee, Kind: "list-elem", Index: i}
				t, b := l.lowerPattern(fs, el, sub)
				test = and2(test, t)
				binds = append(binds, b...)
			}
		} else {
			test = &PatTest{Kind: "list-min-len", X: scrutinee, N: len(node.Elems) - 1}
			for i := 0; i < restIdx; i++ {
				sub := &Extract{X: scrutinee, Kind: "list-elem", Index: i}
				t, b := l.lowerPattern(fs, node.Elems[i], sub)
				test = and2(test, t)
				binds = append(binds, b...)
			}
			if name := node.Elems[restIdx].(*ast.RestPat).Name; name != "" {
				restSlot := l.declSlot(node.Elems[restIdx])
				binds = append(binds, ArmBind{Slot: restSlot, From: &Extract{X: scrutinee, Kind: "list-rest", Index: restIdx}})
			}
			for i := restIdx + 1; i < len(node.Elems); i++ {
				fromEnd := len(node.Elems) - i
				sub := &Extract{X: scrutinee, Kind: "list-elem", Index: -fromEnd}
				t, b := l.lowerPattern(fs, node.Elems[i], sub)
				test = and2(test, t)
				binds = append(binds, b...)
			}
		}
		return test, binds

	case *ast.StructPat:
		test := Node(&PatTest{Kind: "struct-type", X: scrutinee, TypeName: node.TypeName})
		var binds []ArmBind
		for i, f := range node.Fields {
			sub := &Extract{X: scrutinee, Kind: "struct-field", Name: f.Name}
			if f.Pat != nil {
				t, b := l.lowerPattern(fs, f.Pat, sub)
				test = and2(test, t)
				binds = append(binds, b...)
			} else {
				binds = append(binds, ArmBind{Slot: l.fieldSlot(node, i), From: sub})
			}
		}
		return test, binds

	case *ast.VariantPat:
		test := Node(&PatTest{Kind: "variant", X: scrutinee, EnumName: node.EnumName, Variant: node.Variant})
		var binds []ArmBind
		for i, el := range node.Elems {
			sub := &Extract{X: scrutinee, Kind: "variant-elem", EnumName: node.EnumName, Variant: node.Variant, Index: i}
			t, b := l.lowerPattern(fs, el, sub)
			test = and2(test, t)
			binds = append(binds, b...)
		}
		for i, f := range node.Fields {
			sub := &Extract{X: scrutinee, Kind: "variant-field", EnumName: node.EnumName, Variant: node.Variant, Name: f.Name}
			if f.Pat != nil {
				t, b := l.lowerPattern(fs, f.Pat, sub)
				test = and2(test, t)
				binds = append(binds, b...)
			} else {
				binds = append(binds, ArmBind{Slot: l.fieldSlot(node, i), From: sub})
			}
		}
		return test, binds

	case *ast.OrPat:
		// Alternatives share the same binder slots (the resolver assigns
		// them identically across alts since they're declared into the
		// same block scope); the test is their disjunction.
		var test Node
		var binds []ArmBind
		for i, alt := range node.Alts {
			t, b := l.lowerPattern(fs, alt, scrutinee)
			if i == 0 {
				binds = b
			}
			if test == nil {
				test = t
			} else {
				test = &Binary{Op: "||", Left: test, Right: t}
			}
		}
		return test, binds

	case *ast.BindPat:
		slot := l.declSlot(node)
		t, b := l.lowerPattern(fs, node.Inner, scrutinee)
		return t, append([]ArmBind{{Slot: slot, From: scrutinee}}, b...)

	default:
		return &PatTest{Kind: "always"}, nil
	}
}

func (l *lowerer) declSlot(node ast.Node) int {
	if d, ok := l.res.Decls[node]; ok {
		return d.Slot
	}
	return -1
}

// fieldSlot resolves a struct/variant field-shorthand binder's local
// slot, recorded by internal/resolve into Result.FieldDecls[key] since a
// FieldPat is a plain value type with no Span() of its own to key
// Result.Decls by directly.
func (l *lowerer) fieldSlot(key ast.Node, index int) int {
	slots, ok := l.res.FieldDecls[key]
	if !ok || index >= len(slots) {
		return -1
	}
	return slots[index]
}
