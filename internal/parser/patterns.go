package parser

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

// parsePattern parses a full pattern including `|`-alternatives and an
// optional `@`-binding, e.g. `whole @ (1 | 2 | 3)`.
func (p *Parser) parsePattern() ast.Pattern {
	first := p.parsePrimaryPattern()
	if p.at(token.PIPE) {
		start := first.Span()
		alts := []ast.Pattern{first}
		for p.accept(token.PIPE) {
			alts = append(alts, p.parsePrimaryPattern())
		}
		first = &ast.OrPat{Alts: alts, Sp: token.Join(start, alts[len(alts)-1].Span())}
	}
	if p.at(token.AT) {
		if ip, ok := first.(*ast.IdentPat); ok {
			p.advance()
			inner := p.parsePattern()
			return &ast.BindPat{Name: ip.Name, Inner: inner, Sp: token.Join(ip.Sp, inner.Span())}
		}
	}
	return first
}

func (p *Parser) parsePrimaryPattern() ast.Pattern {
	start := p.cur().Span
	switch p.cur().Type {
	case token.IDENT:
		if p.cur().Lexeme == "_" {
			p.advance()
			return &ast.WildcardPat{Sp: start}
		}
		mut := false
		if p.cur().Lexeme == "mut" && p.peek().Type == token.IDENT {
			mut = true
			p.advance()
		}
		if p.peek().Type == token.CONS {
			return p.parseVariantOrStructPattern()
		}
		name := p.advance().Lexeme
		end := p.toks[p.pos-1].Span
		if p.at(token.LBRACE) {
			return p.finishStructPattern(name, start)
		}
		return &ast.IdentPat{Name: name, Mut: mut, Sp: token.Join(start, end)}
	case token.DOT_DOT:
		p.advance()
		name := ""
		if p.at(token.IDENT) {
			name = p.advance().Lexeme
		}
		end := p.toks[p.pos-1].Span
		return &ast.RestPat{Name: name, Sp: token.Join(start, end)}
	case token.LPAREN:
		p.advance()
		var elems []ast.Pattern
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			elems = append(elems, p.parsePattern())
			if !p.accept(token.COMMA) {
				break
			}
		}
		end := p.expect(token.RPAREN).Span
		return &ast.TuplePat{Elems: elems, Sp: token.Join(start, end)}
	case token.LBRACKET:
		p.advance()
		var elems []ast.Pattern
		for !p.at(token.RBRACKET) && !p.at(token.EOF) {
			elems = append(elems, p.parsePattern())
			if !p.accept(token.COMMA) {
				break
			}
		}
		end := p.expect(token.RBRACKET).Span
		return &ast.ListPat{Elems: elems, Sp: token.Join(start, end)}
	case token.INT, token.FLOAT, token.STRING, token.CHAR, token.TRUE, token.FALSE, token.NIL, token.MINUS:
		lit := p.parseLiteralExprForPattern()
		return &ast.LiteralPat{Value: lit, Sp: lit.Span()}
	default:
		p.errorf(diag.ErrParseUnexpected, "expected a pattern, found %s %q", p.cur().Type, p.cur().Lexeme)
		p.advance()
		return &ast.WildcardPat{Sp: start}
	}
}

// parseVariantOrStructPattern handles `Path::Variant(...)`,
// `Path::Variant { ... }`, and bare `Path::Variant`.
func (p *Parser) parseVariantOrStructPattern() ast.Pattern {
	start := p.cur().Span
	path := p.parsePath()
	segs := path.Segments
	enumName, variant := "", segs[len(segs)-1]
	if len(segs) > 1 {
		enumName = segs[len(segs)-2]
	}
	vp := &ast.VariantPat{EnumName: enumName, Variant: variant}
	if p.accept(token.LPAREN) {
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			vp.Elems = append(vp.Elems, p.parsePattern())
			if !p.accept(token.COMMA) {
				break
			}
		}
		end := p.expect(token.RPAREN).Span
		vp.Sp = token.Join(start, end)
		return vp
	}
	if p.at(token.LBRACE) {
		p.advance()
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			vp.Fields = append(vp.Fields, p.parseFieldPattern())
			if !p.accept(token.COMMA) {
				break
			}
		}
		end := p.expect(token.RBRACE).Span
		vp.Sp = token.Join(start, end)
		return vp
	}
	vp.Sp = path.Sp
	return vp
}

func (p *Parser) finishStructPattern(typeName string, start token.Span) ast.Pattern {
	p.expect(token.LBRACE)
	sp := &ast.StructPat{TypeName: typeName}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		sp.Fields = append(sp.Fields, p.parseFieldPattern())
		if !p.accept(token.COMMA) {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	sp.Sp = token.Join(start, end)
	return sp
}

func (p *Parser) parseFieldPattern() ast.FieldPat {
	name := p.expect(token.IDENT).Lexeme
	if p.accept(token.COLON) {
		return ast.FieldPat{Name: name, Pat: p.parsePattern()}
	}
	return ast.FieldPat{Name: name}
}

// parseLiteralExprForPattern parses the small subset of expression forms
// valid as pattern literals: int/float/string/char/bool/nil,
// with an optional leading unary minus for numeric literals.
func (p *Parser) parseLiteralExprForPattern() ast.Expr {
	start := p.cur().Span
	neg := p.accept(token.MINUS)
	tok := p.advance()
	var e ast.Expr
	switch tok.Type {
	case token.INT:
		e = &ast.IntLit{Value: parseIntLiteral(tok.Literal), Sp: tok.Span}
	case token.FLOAT:
		e = &ast.FloatLit{Value: parseFloatLiteral(tok.Literal), Sp: tok.Span}
	case token.STRING:
		e = &ast.StringLit{Value: tok.Literal, Sp: tok.Span}
	case token.CHAR:
		r := rune(0)
		for _, c := range tok.Literal {
			r = c
			break
		}
		e = &ast.CharLit{Value: r, Sp: tok.Span}
	case token.TRUE:
		e = &ast.BoolLit{Value: true, Sp: tok.Span}
	case token.FALSE:
		e = &ast.BoolLit{Value: false, Sp: tok.Span}
	case token.NIL:
		e = &ast.NilLit{Sp: tok.Span}
	}
	if neg {
		return &ast.UnaryExpr{Op: ast.UnNeg, X: e, Sp: token.Join(start, e.Span())}
	}
	return e
}
