package lexer

import (
	"testing"

	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/token"
)

func lexAll(t *testing.T, input string) []token.Token {
	t.Helper()
	d := &diag.Bundle{}
	toks := All("test.wv", input, d)
	if d.HasErrors() {
		t.Fatalf("unexpected lex errors: %+v", d.Diagnostics)
	}
	return toks
}

func TestPunctuationAndOperators(t *testing.T) {
	toks := lexAll(t, "1 + 2 ** 3 <= 4 && a::b ++ c")
	want := []token.Type{
		token.INT, token.PLUS, token.INT, token.STAR_STAR, token.INT,
		token.LE, token.INT, token.AND_AND, token.IDENT, token.CONS,
		token.IDENT, token.CONCAT, token.IDENT, token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Type, tt)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\t\u{41}\x42"`)
	if toks[0].Type != token.STRING {
		t.Fatalf("expected STRING, got %v", toks[0].Type)
	}
	if toks[0].Literal != "a\nb\tAB" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}

func TestLabelsAndCharLiterals(t *testing.T) {
	toks := lexAll(t, "'outer: loop { break 'outer }")
	if toks[0].Type != token.LABEL || toks[0].Literal != "outer" {
		t.Fatalf("expected LABEL outer, got %+v", toks[0])
	}
	toks2 := lexAll(t, "'a'")
	if toks2[0].Type != token.CHAR || toks2[0].Literal != "a" {
		t.Fatalf("expected CHAR a, got %+v", toks2[0])
	}
}

func TestByteAndByteString(t *testing.T) {
	toks := lexAll(t, `b'x' b"hi"`)
	if toks[0].Type != token.BYTE || toks[0].Literal != "x" {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[1].Type != token.BYTE_STRING || toks[1].Literal != "hi" {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestNestedBlockComments(t *testing.T) {
	d := &diag.Bundle{}
	toks := All("test.wv", "/* outer /* inner */ still-outer */ 42", d)
	if d.HasErrors() {
		t.Fatalf("unexpected errors: %+v", d.Diagnostics)
	}
	if toks[0].Type != token.INT || toks[0].Literal != "42" {
		t.Fatalf("expected INT 42 after nested comment, got %+v", toks)
	}
}

func TestNumericLiteralsWithSeparators(t *testing.T) {
	toks := lexAll(t, "1_000_000 0xFF_FF 0b1010_1010 0o17 3.14 1e10")
	wantLits := []string{"1000000", "0xFFFF", "0b10101010", "0o17", "3.14", "1e10"}
	for i, want := range wantLits {
		if toks[i].Literal != want {
			t.Errorf("token %d: got %q want %q", i, toks[i].Literal, want)
		}
	}
}

func TestIllegalCharacterProducesDiagnostic(t *testing.T) {
	d := &diag.Bundle{}
	All("test.wv", "let x = `", d)
	if !d.HasErrors() {
		t.Fatalf("expected a lex error for illegal character")
	}
	if d.Diagnostics[0].Code != diag.ErrLexIllegalChar {
		t.Fatalf("expected ErrLexIllegalChar, got %s", d.Diagnostics[0].Code)
	}
}

func TestUnterminatedStringNeverPanics(t *testing.T) {
	d := &diag.Bundle{}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("lexer panicked: %v", r)
		}
	}()
	All("test.wv", `"unterminated`, d)
	if !d.HasErrors() {
		t.Fatalf("expected an unterminated-string diagnostic")
	}
}
