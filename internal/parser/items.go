package parser

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

func (p *Parser) parseAttrs() []*ast.Attribute {
	var attrs []*ast.Attribute
	for p.at(token.HASH) {
		start := p.advance().Span
		p.expect(token.LBRACKET)
		name := p.expect(token.IDENT).Lexeme
		var args []string
		if p.accept(token.LPAREN) {
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				args = append(args, p.advance().Lexeme)
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
		}
		end := p.expect(token.RBRACKET).Span
		attrs = append(attrs, &ast.Attribute{Name: name, Args: args, Sp: token.Join(start, end)})
	}
	return attrs
}

func (p *Parser) parseVisibility() ast.Visibility {
	if p.accept(token.PUB) {
		return ast.VisPublic
	}
	return ast.VisPrivate
}

func (p *Parser) parseItem(attrs []*ast.Attribute) ast.Item {
	vis := p.parseVisibility()
	switch p.cur().Type {
	case token.FN:
		return p.parseFnItem(attrs, vis, false)
	case token.ASYNC:
		p.advance()
		return p.parseFnItem(attrs, vis, true)
	case token.STRUCT:
		return p.parseStructItem(attrs, vis)
	case token.ENUM:
		return p.parseEnumItem(attrs, vis)
	case token.IMPL:
		return p.parseImplItem(attrs)
	case token.MOD:
		return p.parseModItem(attrs, vis)
	case token.USE:
		return p.parseUseItem(attrs)
	case token.CONST:
		return p.parseConstItem(attrs, vis)
	default:
		p.errorf(diag.ErrParseUnexpected, "expected an item, found %s %q", p.cur().Type, p.cur().Lexeme)
		p.advance()
		return nil
	}
}

func (p *Parser) parsePath() *ast.Path {
	start := p.cur().Span
	segs := []string{p.expect(token.IDENT).Lexeme}
	for p.at(token.CONS) && p.peek().Type == token.IDENT {
		p.advance()
		segs = append(segs, p.advance().Lexeme)
	}
	last := p.toks[p.pos-1].Span
	return &ast.Path{Segments: segs, Sp: token.Join(start, last)}
}

func (p *Parser) parseTypeExpr() *ast.TypeExpr {
	start := p.cur().Span
	name := p.expect(token.IDENT).Lexeme
	te := &ast.TypeExpr{Name: name}
	if p.accept(token.LT) {
		for !p.at(token.GT) && !p.at(token.EOF) {
			te.Args = append(te.Args, p.parseTypeExpr())
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.GT)
	}
	end := p.toks[p.pos-1].Span
	te.Sp = token.Join(start, end)
	return te
}

func (p *Parser) parseParams() []ast.Param {
	p.expect(token.LPAREN)
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if p.at(token.SELF) {
			p.advance()
			params = append(params, ast.Param{Name: "self"})
		} else {
			name := p.expect(token.IDENT).Lexeme
			var ty *ast.TypeExpr
			if p.accept(token.COLON) {
				ty = p.parseTypeExpr()
			}
			var def ast.Expr
			if p.accept(token.ASSIGN) {
				def = p.parseExpr(precAssign)
			}
			params = append(params, ast.Param{Name: name, Type: ty, Default: def})
		}
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return params
}

func (p *Parser) parseFnItem(attrs []*ast.Attribute, vis ast.Visibility, async bool) *ast.FnItem {
	start := p.expect(token.FN).Span
	generator := p.accept(token.STAR) // fn* name(...) marks a generator
	name := p.expect(token.IDENT).Lexeme
	params := p.parseParams()
	var ret *ast.TypeExpr
	if p.accept(token.ARROW) {
		ret = p.parseTypeExpr()
	}
	body := p.parseBlockExpr()
	return &ast.FnItem{
		Vis: vis, Name: name, Params: params, RetType: ret, Body: body,
		Async: async, Generator: generator, AttrList: attrs,
		Sp: token.Join(start, body.Sp),
	}
}

func (p *Parser) parseStructField() ast.StructField {
	vis := p.parseVisibility()
	name := p.expect(token.IDENT).Lexeme
	var ty *ast.TypeExpr
	if p.accept(token.COLON) {
		ty = p.parseTypeExpr()
	}
	return ast.StructField{Name: name, Type: ty, Vis: vis}
}

func (p *Parser) parseStructItem(attrs []*ast.Attribute, vis ast.Visibility) *ast.StructItem {
	start := p.expect(token.STRUCT).Span
	name := p.expect(token.IDENT).Lexeme
	p.expect(token.LBRACE)
	var fields []ast.StructField
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		fields = append(fields, p.parseStructField())
		if !p.accept(token.COMMA) {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.StructItem{Vis: vis, Name: name, Fields: fields, AttrList: attrs, Sp: token.Join(start, end)}
}

func (p *Parser) parseEnumItem(attrs []*ast.Attribute, vis ast.Visibility) *ast.EnumItem {
	start := p.expect(token.ENUM).Span
	name := p.expect(token.IDENT).Lexeme
	p.expect(token.LBRACE)
	var variants []ast.EnumVariant
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		vstart := p.cur().Span
		vname := p.expect(token.IDENT).Lexeme
		v := ast.EnumVariant{Name: vname}
		if p.accept(token.LPAREN) {
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				v.Tuple = append(v.Tuple, p.parseTypeExpr())
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
		} else if p.accept(token.LBRACE) {
			for !p.at(token.RBRACE) && !p.at(token.EOF) {
				v.Fields = append(v.Fields, p.parseStructField())
				if !p.accept(token.COMMA) {
					break
				}
			}
			p.expect(token.RBRACE)
		}
		v.Sp = token.Join(vstart, p.toks[p.pos-1].Span)
		variants = append(variants, v)
		if !p.accept(token.COMMA) {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.EnumItem{Vis: vis, Name: name, Variants: variants, AttrList: attrs, Sp: token.Join(start, end)}
}

func (p *Parser) parseImplItem(attrs []*ast.Attribute) *ast.ImplItem {
	start := p.expect(token.IMPL).Span
	first := p.expect(token.IDENT).Lexeme
	typeName := first
	traitName := ""
	if p.accept(token.FOR) {
		typeName = p.expect(token.IDENT).Lexeme
		traitName = first
	}
	p.expect(token.LBRACE)
	var methods []*ast.FnItem
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		mAttrs := p.parseAttrs()
		vis := p.parseVisibility()
		async := p.accept(token.ASYNC)
		methods = append(methods, p.parseFnItem(mAttrs, vis, async))
	}
	end := p.expect(token.RBRACE).Span
	return &ast.ImplItem{TypeName: typeName, TraitName: traitName, Methods: methods, AttrList: attrs, Sp: token.Join(start, end)}
}

func (p *Parser) parseModItem(attrs []*ast.Attribute, vis ast.Visibility) *ast.ModItem {
	start := p.expect(token.MOD).Span
	name := p.expect(token.IDENT).Lexeme
	p.expect(token.LBRACE)
	var items []ast.Item
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		it := p.parseItemSafe()
		if it != nil {
			items = append(items, it)
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.ModItem{Vis: vis, Name: name, Items: items, AttrList: attrs, Sp: token.Join(start, end)}
}

func (p *Parser) parseUseItem(attrs []*ast.Attribute) *ast.UseItem {
	start := p.expect(token.USE).Span
	path := p.parsePath()
	alias := ""
	end := path.Sp
	if p.at(token.IDENT) && p.cur().Lexeme == "as" {
		p.advance()
		alias = p.expect(token.IDENT).Lexeme
		end = p.toks[p.pos-1].Span
	}
	p.accept(token.SEMI)
	return &ast.UseItem{Path: path, Alias: alias, AttrList: attrs, Sp: token.Join(start, end)}
}

func (p *Parser) parseConstItem(attrs []*ast.Attribute, vis ast.Visibility) *ast.ConstItem {
	start := p.expect(token.CONST).Span
	name := p.expect(token.IDENT).Lexeme
	var ty *ast.TypeExpr
	if p.accept(token.COLON) {
		ty = p.parseTypeExpr()
	}
	p.expect(token.ASSIGN)
	val := p.parseExpr(precLowest)
	end := val.Span()
	p.accept(token.SEMI)
	return &ast.ConstItem{Vis: vis, Name: name, Type: ty, Value: val, AttrList: attrs, Sp: token.Join(start, end)}
}
