// Package parser implements a recursive-descent, precedence-climbing
// parser that turns a token stream into an *ast.Program: one Parser
// struct carrying a two-token lookahead window, prefix/infix dispatch
// tables keyed by
// token.Type, and a diag.Bundle collecting errors instead of panicking.
// A parse error is recorded on the bundle and parsing continues from the
// current token; synchronization to the next item/statement boundary
// happens only when a panic is recovered while parsing an item or a
// script statement.
package parser

import (
	"github.com/weave-lang/weave/internal/ast"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/lexer"
	"github.com/weave-lang/weave/internal/token"
)

type precedence int

const (
	precLowest precedence = iota
	precAssign
	precOr
	precAnd
	precEquality
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPostfix
)

var binPrec = map[token.Type]precedence{
	token.OR_OR:      precOr,
	token.AND_AND:    precAnd,
	token.EQ:         precEquality,
	token.NE:         precEquality,
	token.LT:         precCompare,
	token.LE:         precCompare,
	token.GT:         precCompare,
	token.GE:         precCompare,
	token.PIPE:       precBitOr,
	token.CARET:      precBitXor,
	token.AMP:        precBitAnd,
	token.LSHIFT:     precShift,
	token.RSHIFT:     precShift,
	token.PLUS:       precAdditive,
	token.MINUS:      precAdditive,
	token.CONCAT:     precAdditive,
	token.STAR:       precMultiplicative,
	token.SLASH:      precMultiplicative,
	token.PERCENT:    precMultiplicative,
	token.STAR_STAR:  precPower,
	token.CONS:       precBitOr,
}

var binOps = map[token.Type]ast.BinaryOp{
	token.PLUS: ast.BinAdd, token.MINUS: ast.BinSub, token.STAR: ast.BinMul,
	token.SLASH: ast.BinDiv, token.PERCENT: ast.BinMod, token.STAR_STAR: ast.BinPow,
	token.AMP: ast.BinBAnd, token.PIPE: ast.BinBOr, token.CARET: ast.BinBXor,
	token.LSHIFT: ast.BinLShift, token.RSHIFT: ast.BinRShift, token.CONCAT: ast.BinConcat,
	token.CONS: ast.BinCons, token.EQ: ast.BinEq, token.NE: ast.BinNe,
	token.LT: ast.BinLt, token.LE: ast.BinLe, token.GT: ast.BinGt, token.GE: ast.BinGe,
	token.AND_AND: ast.BinAnd, token.OR_OR: ast.BinOr,
}

var assignOps = map[token.Type]ast.AssignOp{
	token.ASSIGN: ast.AssignPlain, token.PLUS_ASSIGN: ast.AssignAdd,
	token.MINUS_ASSIGN: ast.AssignSub, token.STAR_ASSIGN: ast.AssignMul,
	token.SLASH_ASSIGN: ast.AssignDiv,
}

// Parser holds a fixed two-token lookahead over the token slice.
type Parser struct {
	file   string
	toks   []token.Token
	pos    int
	Diags  *diag.Bundle
}

func New(file, src string, diags *diag.Bundle) *Parser {
	toks := lexer.All(file, src, diags)
	return &Parser{file: file, toks: toks, Diags: diags}
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(tt token.Type) bool { return p.cur().Type == tt }

func (p *Parser) accept(tt token.Type) bool {
	if p.at(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt token.Type) token.Token {
	if p.at(tt) {
		return p.advance()
	}
	p.errorf(diag.ErrParseExpected, "expected %s, found %s %q", tt, p.cur().Type, p.cur().Lexeme)
	return p.cur()
}

func (p *Parser) errorf(code diag.Code, format string, args ...interface{}) {
	p.Diags.Errorf(code, p.file, p.cur().Span, format, args...)
}

// synchronize skips tokens until a plausible item or statement boundary,
// so one malformed construct doesn't produce a cascade of errors.
func (p *Parser) synchronize() {
	for !p.at(token.EOF) {
		if p.cur().Type == token.SEMI {
			p.advance()
			return
		}
		switch p.cur().Type {
		case token.FN, token.LET, token.STRUCT, token.ENUM, token.IMPL,
			token.MOD, token.USE, token.CONST, token.PUB, token.RBRACE:
			return
		}
		p.advance()
	}
}

// Parse parses an entire source file into a Program. It never panics:
// malformed input yields diagnostics on Diags and a best-effort partial
// tree, so one bad statement never hides the rest of the file.
func Parse(file, src string, diags *diag.Bundle) *ast.Program {
	p := New(file, src, diags)
	return p.ParseProgram()
}

func (p *Parser) ParseProgram() *ast.Program {
	start := p.cur().Span
	prog := &ast.Program{File: p.file}
	for !p.at(token.EOF) {
		item := p.parseItemSafe()
		if item != nil {
			prog.Items = append(prog.Items, item)
		}
	}
	end := start
	if len(p.toks) > 0 {
		end = p.toks[len(p.toks)-1].Span
	}
	prog.Sp = token.Join(start, end)
	return prog
}

func (p *Parser) parseItemSafe() (it ast.Item) {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
			it = nil
		}
	}()
	return p.parseItem(p.parseAttrs())
}
