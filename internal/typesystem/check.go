package typesystem

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/resolve"
)

// Checker walks a resolved program checking the statically detectable
// arity/shape invariants: call-site argument count
// against a known function signature, struct literal fields against the
// struct's declared fields, enum variant construction arity against the
// variant's declared payload shape. Anything not statically known (a
// call through a local/parameter, a struct name typesystem never saw)
// is silently skipped rather than guessed at — this checker never
// reports a false positive by design, only misses real ones.
type Checker struct {
	reg   *Registry
	res   *resolve.Result
	diags *diag.Bundle
	file  string
}

func NewChecker(reg *Registry, res *resolve.Result, diags *diag.Bundle, file string) *Checker {
	return &Checker{reg: reg, res: res, diags: diags, file: file}
}

func Check(prog *ast.Program, res *resolve.Result, diags *diag.Bundle) {
	reg := Build(prog)
	c := NewChecker(reg, res, diags, prog.File)
	c.checkItems(prog.Items)
}

func (c *Checker) checkItems(items []ast.Item) {
	for _, it := range items {
		switch node := it.(type) {
		case *ast.FnItem:
			c.checkBody(node.Body)
		case *ast.ImplItem:
			for _, m := range node.Methods {
				c.checkBody(m.Body)
			}
		case *ast.ConstItem:
			c.checkExpr(node.Value)
		case *ast.ModItem:
			c.checkItems(node.Items)
		}
	}
}

func (c *Checker) checkBody(b *ast.BlockExpr) {
	if b != nil {
		c.checkExpr(b)
	}
}

func hasSpread(args []ast.CallArg) bool {
	for _, a := range args {
		if a.Spread {
			return true
		}
	}
	return false
}

func (c *Checker) checkExpr(e ast.Expr) {
	if e == nil {
		return
	}
	switch node := e.(type) {
	case *ast.CallExpr:
		c.checkExpr(node.Callee)
		for _, a := range node.Args {
			c.checkExpr(a.Value)
		}
		c.checkCallArity(node)
	case *ast.MethodCallExpr:
		c.checkExpr(node.Recv)
		for _, a := range node.Args {
			c.checkExpr(a.Value)
		}
	case *ast.ObjectExpr:
		if node.Spread != nil {
			c.checkExpr(node.Spread)
		}
		for _, f := range node.Fields {
			if f.Value != nil {
				c.checkExpr(f.Value)
			}
		}
		c.checkObjectShape(node)
	case *ast.VariantExpr:
		for _, a := range node.Args {
			c.checkExpr(a)
		}
		for _, f := range node.Fields {
			if f.Value != nil {
				c.checkExpr(f.Value)
			}
		}
		c.checkVariantShape(node)
	case *ast.UnaryExpr:
		c.checkExpr(node.X)
	case *ast.BinaryExpr:
		c.checkExpr(node.Left)
		c.checkExpr(node.Right)
	case *ast.AssignExpr:
		c.checkExpr(node.Target)
		c.checkExpr(node.Value)
	case *ast.FieldExpr:
		c.checkExpr(node.X)
	case *ast.IndexExpr:
		c.checkExpr(node.X)
		c.checkExpr(node.Index)
	case *ast.TryExpr:
		c.checkExpr(node.X)
	case *ast.TupleExpr:
		for _, el := range node.Elems {
			c.checkExpr(el)
		}
	case *ast.VectorExpr:
		for _, el := range node.Elems {
			c.checkExpr(el.Value)
		}
	case *ast.MapExpr:
		for _, entry := range node.Entries {
			c.checkExpr(entry.Key)
			c.checkExpr(entry.Value)
		}
	case *ast.RangeExpr:
		c.checkExpr(node.Start)
		c.checkExpr(node.End)
	case *ast.BlockExpr:
		for _, stmt := range node.Stmts {
			c.checkStmt(stmt)
		}
		c.checkExpr(node.Value)
	case *ast.IfExpr:
		c.checkExpr(node.Cond)
		c.checkExpr(node.Then)
		c.checkExpr(node.Else)
	case *ast.WhileExpr:
		c.checkExpr(node.Cond)
		c.checkExpr(node.Body)
	case *ast.LoopExpr:
		c.checkExpr(node.Body)
	case *ast.ForExpr:
		c.checkExpr(node.Iter)
		c.checkExpr(node.Body)
	case *ast.MatchExpr:
		c.checkExpr(node.Scrutinee)
		for _, arm := range node.Arms {
			c.checkExpr(arm.Guard)
			c.checkExpr(arm.Body)
		}
	case *ast.BreakExpr:
		c.checkExpr(node.Value)
	case *ast.ReturnExpr:
		c.checkExpr(node.Value)
	case *ast.YieldExpr:
		c.checkExpr(node.Value)
	case *ast.AwaitExpr:
		c.checkExpr(node.X)
	case *ast.ClosureExpr:
		c.checkExpr(node.Body)
	case *ast.InterpString:
		for _, p := range node.Parts {
			c.checkExpr(p)
		}
	}
}

func (c *Checker) checkStmt(s ast.Stmt) {
	switch node := s.(type) {
	case *ast.LetStmt:
		c.checkExpr(node.Value)
	case *ast.ExprStmt:
		c.checkExpr(node.X)
	}
}

// checkCallArity only fires when the callee resolved to a known item
// (BindItem) with a registered signature, and no argument is a spread
// (which makes the effective arity dynamic).
func (c *Checker) checkCallArity(call *ast.CallExpr) {
	if hasSpread(call.Args) {
		return
	}
	var hash uint64
	switch callee := call.Callee.(type) {
	case *ast.IdentExpr:
		b, ok := c.res.Idents[callee]
		if !ok || b.Kind != resolve.BindItem {
			return
		}
		hash = b.Hash
	case *ast.PathExpr:
		b, ok := c.res.Idents[callee]
		if !ok || b.Kind != resolve.BindItem {
			return
		}
		hash = b.Hash
	default:
		return
	}
	sig, ok := c.reg.Fns[hash]
	if !ok {
		return
	}
	n := len(call.Args)
	if n < sig.RequiredArity || n > sig.MaxArity {
		c.diags.Errorf(diag.ErrTypeArity, c.file, call.Sp,
			"%s expects %s, got %d", sig.Name, arityRange(sig), n)
	}
}

func arityRange(sig *FnSignature) string {
	if sig.RequiredArity == sig.MaxArity {
		return itoa(sig.RequiredArity) + " argument(s)"
	}
	return itoa(sig.RequiredArity) + "-" + itoa(sig.MaxArity) + " argument(s)"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// checkObjectShape only fires for a named struct literal (TypeName set)
// whose struct declaration typesystem saw; plain object literals and
// literals of an unknown type are never flagged.
func (c *Checker) checkObjectShape(obj *ast.ObjectExpr) {
	if obj.TypeName == "" {
		return
	}
	shape, ok := c.reg.Structs[obj.TypeName]
	if !ok {
		return
	}
	for _, f := range obj.Fields {
		if _, known := shape.Fields[f.Name]; !known {
			c.diags.Errorf(diag.ErrTypeMismatch, c.file, obj.Sp,
				"struct %s has no field %q", obj.TypeName, f.Name)
		}
	}
}

// checkVariantShape only fires when the enum & variant were both
// declared with a known shape.
func (c *Checker) checkVariantShape(v *ast.VariantExpr) {
	enum, ok := c.reg.Enums[v.EnumName]
	if !ok {
		return
	}
	variant, ok := enum.Variants[v.Variant]
	if !ok {
		c.diags.Errorf(diag.ErrTypeMismatch, c.file, v.Sp,
			"enum %s has no variant %q", v.EnumName, v.Variant)
		return
	}
	if variant.TupleArity >= 0 && len(v.Args) != variant.TupleArity {
		c.diags.Errorf(diag.ErrTypeArity, c.file, v.Sp,
			"%s::%s expects %d positional argument(s), got %d", v.EnumName, v.Variant, variant.TupleArity, len(v.Args))
	}
}
