package parser

import (
	"strconv"
	"strings"

	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

func parseIntLiteral(lit string) int64 {
	base := 10
	s := lit
	switch {
	case strings.HasPrefix(s, "0x"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0o"):
		base, s = 8, s[2:]
	case strings.HasPrefix(s, "0b"):
		base, s = 2, s[2:]
	}
	v, _ := strconv.ParseInt(s, base, 64)
	return v
}

func parseFloatLiteral(lit string) float64 {
	v, _ := strconv.ParseFloat(lit, 64)
	return v
}

// parseExpr is the Pratt-style entry point: a nud (prefix) dispatch and
// its postfix operators, followed by an infix/assignment loop bounded by
// minPrec.
func (p *Parser) parseExpr(minPrec precedence) ast.Expr {
	left := p.parsePostfix(p.parsePrefix())
	for {
		if op, ok := assignOps[p.cur().Type]; ok && minPrec <= precAssign {
			p.advance()
			right := p.parseExpr(precAssign)
			left = &ast.AssignExpr{Op: op, Target: left, Value: right, Sp: token.Join(left.Span(), right.Span())}
			continue
		}
		prec, ok := binPrec[p.cur().Type]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.advance()
		nextMin := prec + 1
		if opTok.Type == token.STAR_STAR || opTok.Type == token.CONS {
			nextMin = prec // right-associative
		}
		right := p.parseExpr(nextMin)
		left = &ast.BinaryExpr{Op: binOps[opTok.Type], Left: left, Right: right, Sp: token.Join(left.Span(), right.Span())}
	}
	return p.parsePostfix(left)
}

func (p *Parser) parsePostfix(left ast.Expr) ast.Expr {
	for {
		switch p.cur().Type {
		case token.DOT:
			p.advance()
			optional := false
			name := p.expect(token.IDENT).Lexeme
			if p.at(token.LPAREN) {
				args := p.parseCallArgs()
				end := p.toks[p.pos-1].Span
				left = &ast.MethodCallExpr{Recv: left, Method: name, Args: args, Sp: token.Join(left.Span(), end)}
				continue
			}
			end := p.toks[p.pos-1].Span
			left = &ast.FieldExpr{X: left, Field: name, IsOptional: optional, Sp: token.Join(left.Span(), end)}
		case token.QUESTION:
			end := p.advance().Span
			if p.at(token.DOT) {
				p.advance()
				name := p.expect(token.IDENT).Lexeme
				fend := p.toks[p.pos-1].Span
				left = &ast.FieldExpr{X: left, Field: name, IsOptional: true, Sp: token.Join(left.Span(), fend)}
				continue
			}
			left = &ast.TryExpr{X: left, Sp: token.Join(left.Span(), end)}
		case token.LPAREN:
			args := p.parseCallArgs()
			end := p.toks[p.pos-1].Span
			left = &ast.CallExpr{Callee: left, Args: args, Sp: token.Join(left.Span(), end)}
		case token.LBRACKET:
			p.advance()
			idx := p.parseExpr(precLowest)
			end := p.expect(token.RBRACKET).Span
			left = &ast.IndexExpr{X: left, Index: idx, Sp: token.Join(left.Span(), end)}
		case token.DOT_DOT, token.DOT_DOT_EQ:
			kind := ast.RangeExclusive
			if p.cur().Type == token.DOT_DOT_EQ {
				kind = ast.RangeInclusive
			}
			p.advance()
			end := p.parseExpr(precCompare + 1)
			left = &ast.RangeExpr{Start: left, End: end, Kind: kind, Sp: token.Join(left.Span(), end.Span())}
		default:
			return left
		}
	}
}

func (p *Parser) parseCallArgs() []ast.CallArg {
	p.expect(token.LPAREN)
	var args []ast.CallArg
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		spread := p.accept(token.DOT_DOT)
		args = append(args, ast.CallArg{Value: p.parseExpr(precAssign), Spread: spread})
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parsePrefix() ast.Expr {
	tok := p.cur()
	start := tok.Span
	switch tok.Type {
	case token.MINUS:
		p.advance()
		x := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Op: ast.UnNeg, X: x, Sp: token.Join(start, x.Span())}
	case token.BANG:
		p.advance()
		x := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Op: ast.UnNot, X: x, Sp: token.Join(start, x.Span())}
	case token.TILDE:
		p.advance()
		x := p.parseExpr(precUnary)
		return &ast.UnaryExpr{Op: ast.UnBNot, X: x, Sp: token.Join(start, x.Span())}
	case token.INT:
		p.advance()
		return &ast.IntLit{Value: parseIntLiteral(tok.Literal), Sp: start}
	case token.FLOAT:
		p.advance()
		return &ast.FloatLit{Value: parseFloatLiteral(tok.Literal), Sp: start}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Value: true, Sp: start}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Value: false, Sp: start}
	case token.NIL:
		p.advance()
		return &ast.NilLit{Sp: start}
	case token.CHAR:
		p.advance()
		r := rune(0)
		for _, c := range tok.Literal {
			r = c
			break
		}
		return &ast.CharLit{Value: r, Sp: start}
	case token.BYTE:
		p.advance()
		var b byte
		if len(tok.Literal) > 0 {
			b = tok.Literal[0]
		}
		return &ast.ByteLit{Value: b, Sp: start}
	case token.STRING:
		p.advance()
		return p.maybeInterpolate(tok)
	case token.BYTE_STRING:
		p.advance()
		return &ast.ByteStringLit{Value: []byte(tok.Literal), Sp: start}
	case token.SELF:
		p.advance()
		return &ast.IdentExpr{Name: "self", Sp: start}
	case token.IDENT:
		if p.peek().Type == token.CONS {
			path := p.parsePath()
			if p.at(token.LBRACE) && isUpper(path.Segments[0]) {
				return p.parseObjectOrVariantLiteral(path)
			}
			return &ast.PathExpr{Path: path}
		}
		p.advance()
		if p.at(token.LBRACE) && isUpper(tok.Lexeme) {
			return p.parseObjectOrVariantLiteral(&ast.Path{Segments: []string{tok.Lexeme}, Sp: start})
		}
		return &ast.IdentExpr{Name: tok.Lexeme, Sp: start}
	case token.LABEL:
		label := tok.Lexeme
		p.advance()
		p.expect(token.COLON)
		return p.parseLabeledLoop(label, start)
	case token.LPAREN:
		p.advance()
		if p.at(token.RPAREN) {
			end := p.advance().Span
			return &ast.TupleExpr{Sp: token.Join(start, end)}
		}
		first := p.parseExpr(precLowest)
		if p.accept(token.COMMA) {
			elems := []ast.Expr{first}
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				elems = append(elems, p.parseExpr(precAssign))
				if !p.accept(token.COMMA) {
					break
				}
			}
			end := p.expect(token.RPAREN).Span
			return &ast.TupleExpr{Elems: elems, Sp: token.Join(start, end)}
		}
		p.expect(token.RPAREN)
		return first
	case token.LBRACKET:
		return p.parseVectorExpr()
	case token.LBRACE:
		return p.parseBlockExprAsExpr()
	case token.IF:
		return p.parseIfExpr()
	case token.WHILE:
		return p.parseWhileExpr("")
	case token.LOOP:
		return p.parseLoopExpr("")
	case token.FOR:
		return p.parseForExpr("")
	case token.MATCH:
		return p.parseMatchExpr()
	case token.BREAK:
		return p.parseBreakExpr()
	case token.CONTINUE:
		return p.parseContinueExpr()
	case token.RETURN:
		p.advance()
		if p.atExprEnd() {
			return &ast.ReturnExpr{Sp: start}
		}
		v := p.parseExpr(precLowest)
		return &ast.ReturnExpr{Value: v, Sp: token.Join(start, v.Span())}
	case token.YIELD:
		p.advance()
		v := p.parseExpr(precLowest)
		return &ast.YieldExpr{Value: v, Sp: token.Join(start, v.Span())}
	case token.AWAIT:
		p.advance()
		v := p.parseExpr(precUnary)
		return &ast.AwaitExpr{X: v, Sp: token.Join(start, v.Span())}
	case token.ASYNC:
		p.advance()
		blk := p.parseBlockExpr()
		return blk
	case token.PIPE, token.OR_OR:
		return p.parseClosureExpr()
	default:
		p.errorf(diag.ErrParseUnexpected, "unexpected token %s %q in expression", tok.Type, tok.Lexeme)
		p.advance()
		return &ast.NilLit{Sp: start}
	}
}

func isUpper(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}

func (p *Parser) atExprEnd() bool {
	switch p.cur().Type {
	case token.SEMI, token.RBRACE, token.EOF:
		return true
	}
	return false
}

// maybeInterpolate scans a decoded string literal's Literal text for
// `${...}` splices, matching the lexer's convention of leaving
// interpolation unresolved for the parser.
func (p *Parser) maybeInterpolate(tok token.Token) ast.Expr {
	s := tok.Literal
	if !strings.Contains(s, "${") {
		return &ast.StringLit{Value: s, Sp: tok.Span}
	}
	var parts []ast.Expr
	rest := s
	for {
		idx := strings.Index(rest, "${")
		if idx < 0 {
			if rest != "" {
				parts = append(parts, &ast.StringLit{Value: rest, Sp: tok.Span})
			}
			break
		}
		if idx > 0 {
			parts = append(parts, &ast.StringLit{Value: rest[:idx], Sp: tok.Span})
		}
		close := strings.Index(rest[idx:], "}")
		if close < 0 {
			break
		}
		exprSrc := rest[idx+2 : idx+close]
		sub := New(p.file+":interp", exprSrc, p.Diags)
		parts = append(parts, sub.parseExpr(precLowest))
		rest = rest[idx+close+1:]
	}
	return &ast.InterpString{Parts: parts, Sp: tok.Span}
}

func (p *Parser) parseVectorExpr() ast.Expr {
	start := p.expect(token.LBRACKET).Span
	var elems []ast.VecElem
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		spread := p.accept(token.DOT_DOT)
		elems = append(elems, ast.VecElem{Value: p.parseExpr(precAssign), Spread: spread})
		if !p.accept(token.COMMA) {
			break
		}
	}
	end := p.expect(token.RBRACKET).Span
	return &ast.VectorExpr{Elems: elems, Sp: token.Join(start, end)}
}

func (p *Parser) parseBlockExprAsExpr() ast.Expr {
	// Only `{}` (a `{` immediately followed by `}`) is an empty map
	// literal; any other `{` starts a block.
	if p.peek().Type == token.RBRACE {
		start := p.advance().Span
		end := p.advance().Span
		return &ast.MapExpr{Sp: token.Join(start, end)}
	}
	return p.parseBlockExpr()
}

func (p *Parser) parseObjectOrVariantLiteral(path *ast.Path) ast.Expr {
	start := path.Sp
	p.expect(token.LBRACE)
	segs := path.Segments
	typeName := segs[len(segs)-1]
	if len(segs) > 1 {
		// Path::Variant { fields } is a struct-shaped variant construction.
		enumName := segs[len(segs)-2]
		var fields []ast.ObjectField
		for !p.at(token.RBRACE) && !p.at(token.EOF) {
			fields = append(fields, p.parseObjectField())
			if !p.accept(token.COMMA) {
				break
			}
		}
		end := p.expect(token.RBRACE).Span
		return &ast.VariantExpr{EnumName: enumName, Variant: typeName, Fields: fields, Sp: token.Join(start, end)}
	}
	var spread ast.Expr
	var fields []ast.ObjectField
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if p.accept(token.DOT_DOT) {
			spread = p.parseExpr(precAssign)
		} else {
			fields = append(fields, p.parseObjectField())
		}
		if !p.accept(token.COMMA) {
			break
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.ObjectExpr{TypeName: typeName, Spread: spread, Fields: fields, Sp: token.Join(start, end)}
}

func (p *Parser) parseObjectField() ast.ObjectField {
	name := p.expect(token.IDENT).Lexeme
	if p.accept(token.COLON) {
		return ast.ObjectField{Name: name, Value: p.parseExpr(precAssign)}
	}
	return ast.ObjectField{Name: name}
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.expect(token.IF).Span
	cond := p.parseExpr(precLowest)
	then := p.parseBlockExpr()
	e := &ast.IfExpr{Cond: cond, Then: then, Sp: token.Join(start, then.Sp)}
	if p.accept(token.ELSE) {
		if p.at(token.IF) {
			e.Else = p.parseIfExpr()
		} else {
			e.Else = p.parseBlockExpr()
		}
		e.Sp = token.Join(start, e.Else.Span())
	}
	return e
}

func (p *Parser) parseLabeledLoop(label string, start token.Span) ast.Expr {
	switch p.cur().Type {
	case token.WHILE:
		return p.parseWhileExpr(label)
	case token.LOOP:
		return p.parseLoopExpr(label)
	case token.FOR:
		return p.parseForExpr(label)
	default:
		p.errorf(diag.ErrParseExpected, "expected while/loop/for after label, found %s", p.cur().Type)
		return &ast.NilLit{Sp: start}
	}
}

func (p *Parser) parseWhileExpr(label string) ast.Expr {
	start := p.expect(token.WHILE).Span
	cond := p.parseExpr(precLowest)
	body := p.parseBlockExpr()
	return &ast.WhileExpr{Label: label, Cond: cond, Body: body, Sp: token.Join(start, body.Sp)}
}

func (p *Parser) parseLoopExpr(label string) ast.Expr {
	start := p.expect(token.LOOP).Span
	body := p.parseBlockExpr()
	return &ast.LoopExpr{Label: label, Body: body, Sp: token.Join(start, body.Sp)}
}

func (p *Parser) parseForExpr(label string) ast.Expr {
	start := p.expect(token.FOR).Span
	pat := p.parsePattern()
	p.expect(token.IN)
	iter := p.parseExpr(precLowest)
	body := p.parseBlockExpr()
	return &ast.ForExpr{Label: label, Pat: pat, Iter: iter, Body: body, Sp: token.Join(start, body.Sp)}
}

func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.expect(token.MATCH).Span
	scrutinee := p.parseExpr(precLowest)
	p.expect(token.LBRACE)
	var arms []ast.MatchArm
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		pat := p.parsePattern()
		var guard ast.Expr
		if p.accept(token.IF) {
			guard = p.parseExpr(precLowest)
		}
		p.expect(token.FAT_ARROW)
		body := p.parseExpr(precAssign)
		arms = append(arms, ast.MatchArm{Pat: pat, Guard: guard, Body: body})
		if !p.accept(token.COMMA) {
			p.accept(token.SEMI)
		}
	}
	end := p.expect(token.RBRACE).Span
	return &ast.MatchExpr{Scrutinee: scrutinee, Arms: arms, Sp: token.Join(start, end)}
}

func (p *Parser) parseBreakExpr() ast.Expr {
	start := p.expect(token.BREAK).Span
	label := ""
	if p.at(token.LABEL) {
		label = p.advance().Lexeme
	}
	end := start
	var val ast.Expr
	if !p.atExprEnd() {
		val = p.parseExpr(precLowest)
		end = val.Span()
	} else if label != "" {
		end = p.toks[p.pos-1].Span
	}
	return &ast.BreakExpr{Label: label, Value: val, Sp: token.Join(start, end)}
}

func (p *Parser) parseContinueExpr() ast.Expr {
	start := p.expect(token.CONTINUE).Span
	label := ""
	end := start
	if p.at(token.LABEL) {
		label = p.advance().Lexeme
		end = p.toks[p.pos-1].Span
	}
	return &ast.ContinueExpr{Label: label, Sp: token.Join(start, end)}
}

// parseClosureExpr handles `|a, b| expr` and the empty-param `|| expr`
// spelling tokenized as OR_OR.
func (p *Parser) parseClosureExpr() ast.Expr {
	start := p.cur().Span
	var params []ast.ClosureParam
	if p.accept(token.OR_OR) {
		// no params
	} else {
		p.expect(token.PIPE)
		for !p.at(token.PIPE) && !p.at(token.EOF) {
			variadic := p.accept(token.DOT_DOT)
			name := p.expect(token.IDENT).Lexeme
			var def ast.Expr
			if p.accept(token.ASSIGN) {
				def = p.parseExpr(precAssign)
			}
			params = append(params, ast.ClosureParam{Name: name, Default: def, Variadic: variadic})
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.PIPE)
	}
	var body ast.Expr
	if p.at(token.LBRACE) {
		body = p.parseBlockExpr()
	} else {
		body = p.parseExpr(precAssign)
	}
	return &ast.ClosureExpr{Params: params, Body: body, Sp: token.Join(start, body.Span())}
}
