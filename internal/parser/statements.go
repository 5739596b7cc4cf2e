package parser

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/token"
)

// parseBlockExpr parses `{ stmt* expr? }`. A statement is either a `let`,
// or an expression followed by `;`; the final expression without a `;`
// becomes the block's value.
func (p *Parser) parseBlockExpr() *ast.BlockExpr {
	start := p.expect(token.LBRACE).Span
	blk := &ast.BlockExpr{}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if p.at(token.LET) {
			blk.Stmts = append(blk.Stmts, p.parseLetStmt())
			continue
		}
		e := p.parseExpr(precLowest)
		if p.accept(token.SEMI) {
			blk.Stmts = append(blk.Stmts, &ast.ExprStmt{X: e, Sp: e.Span()})
			continue
		}
		if p.at(token.RBRACE) {
			blk.Value = e
			break
		}
		// An expression not followed by `;` or `}` but that ends in a
		// block (if/while/for/loop/match) is allowed to stand alone as a
		// statement, matching Rust-style block-expression statements.
		blk.Stmts = append(blk.Stmts, &ast.ExprStmt{X: e, Sp: e.Span()})
	}
	end := p.expect(token.RBRACE).Span
	blk.Sp = token.Join(start, end)
	return blk
}

func (p *Parser) parseLetStmt() *ast.LetStmt {
	start := p.expect(token.LET).Span
	pat := p.parsePattern()
	var ty *ast.TypeExpr
	if p.accept(token.COLON) {
		ty = p.parseTypeExpr()
	}
	p.expect(token.ASSIGN)
	val := p.parseExpr(precLowest)
	end := val.Span()
	if p.accept(token.SEMI) {
		end = p.toks[p.pos-1].Span
	}
	return &ast.LetStmt{Pat: pat, Type: ty, Value: val, Sp: token.Join(start, end)}
}
