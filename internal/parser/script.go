package parser

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

// ParseScript parses a source file in script mode: top-level
// statements are legal and are gathered
// into an implicit zero-argument `main` function, while item declarations
// (fn, struct, enum, impl, mod, use, const) interleaved between them are
// hoisted to the program level exactly as in Parse. The final expression
// without a terminating `;` becomes main's value.
func ParseScript(file, src string, diags *diag.Bundle) *ast.Program {
	p := New(file, src, diags)
	return p.ParseScriptProgram()
}

func (p *Parser) ParseScriptProgram() *ast.Program {
	start := p.cur().Span
	prog := &ast.Program{File: p.file}
	body := &ast.BlockExpr{}

	for !p.at(token.EOF) {
		if p.atItemStart() {
			if item := p.parseItemSafe(); item != nil {
				prog.Items = append(prog.Items, item)
			}
			continue
		}
		p.parseScriptStmt(body)
	}

	end := start
	if len(p.toks) > 0 {
		end = p.toks[len(p.toks)-1].Span
	}
	body.Sp = token.Join(start, end)
	prog.Items = append(prog.Items, &ast.FnItem{
		Name: "main",
		Body: body,
		Sp:   body.Sp,
	})
	prog.Sp = token.Join(start, end)
	return prog
}

// atItemStart reports whether the current token begins an item
// declaration rather than a script statement. `async` only starts an
// item when followed by `fn` — `async` closures in expression position
// stay statements.
func (p *Parser) atItemStart() bool {
	switch p.cur().Type {
	case token.FN, token.STRUCT, token.ENUM, token.IMPL, token.MOD,
		token.USE, token.CONST, token.PUB, token.HASH:
		return true
	case token.ASYNC:
		return p.peek().Type == token.FN
	default:
		return false
	}
}

// parseScriptStmt parses one top-level statement into the implicit main
// body, with the same recovery discipline parseItemSafe applies to
// items: a panic inside expression parsing synchronizes and continues.
func (p *Parser) parseScriptStmt(body *ast.BlockExpr) {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
		}
	}()
	if p.at(token.LET) {
		body.Stmts = append(body.Stmts, p.parseLetStmt())
		return
	}
	e := p.parseExpr(precLowest)
	if p.accept(token.SEMI) {
		body.Stmts = append(body.Stmts, &ast.ExprStmt{X: e, Sp: e.Span()})
		return
	}
	if p.at(token.EOF) {
		body.Value = e
		return
	}
	body.Stmts = append(body.Stmts, &ast.ExprStmt{X: e, Sp: e.Span()})
}
