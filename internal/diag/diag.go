// Package diag implements the span-accurate diagnostic engine: every
// compile-time problem, error or warning, is collected here
// rather than raised, so a host can decide how to present a failed
// compilation.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/mattn/go-isatty"

	"github.com/weave-lang/weave/internal/token"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Code namespaces diagnostics by compiler stage:
// L### lexical, P### syntactic, N### name resolution/visibility,
// T### type/arity, D### duplicate-item/hash-collision, W### warnings.
type Code string

const (
	ErrLexIllegalChar    Code = "L001"
	ErrLexUnterminated   Code = "L002"
	ErrLexBadEscape      Code = "L003"
	ErrLexInvalidUTF8    Code = "L004"
	ErrParseUnexpected   Code = "P001"
	ErrParseExpected     Code = "P002"
	ErrNameUnresolved    Code = "N001"
	ErrNameAmbiguous     Code = "N002"
	ErrNameVisibility    Code = "N003"
	ErrNameShadowItem    Code = "N004"
	ErrTypeArity         Code = "T001"
	ErrTypeMismatch      Code = "T002"
	ErrDupItem           Code = "D001"
	ErrHashCollision     Code = "D002"
	WarnUnreachableCode  Code = "W001"
	WarnUnusedBinding    Code = "W002"
)

// Label attaches explanatory text to a secondary span.
type Label struct {
	Span    token.Span
	Message string
}

// Diagnostic is one compiler-reported problem.
type Diagnostic struct {
	Severity  Severity
	Code      Code
	Primary   token.Span
	Message   string
	Secondary []Label
	Help      string
	File      string
}

func New(sev Severity, code Code, file string, primary token.Span, message string) *Diagnostic {
	return &Diagnostic{Severity: sev, Code: code, Primary: primary, Message: message, File: file}
}

func NewError(code Code, file string, span token.Span, message string) *Diagnostic {
	return New(Error, code, file, span, message)
}

func NewWarning(code Code, file string, span token.Span, message string) *Diagnostic {
	return New(Warning, code, file, span, message)
}

func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

func (d *Diagnostic) WithLabel(span token.Span, message string) *Diagnostic {
	d.Secondary = append(d.Secondary, Label{Span: span, Message: message})
	return d
}

// Bundle collects diagnostics from one compilation. A compilation is
// considered successful iff no Error-severity diagnostic was emitted
//.
type Bundle struct {
	Diagnostics []*Diagnostic
}

func (b *Bundle) Add(d *Diagnostic) {
	b.Diagnostics = append(b.Diagnostics, d)
}

func (b *Bundle) Errorf(code Code, file string, span token.Span, format string, args ...interface{}) {
	b.Add(NewError(code, file, span, fmt.Sprintf(format, args...)))
}

func (b *Bundle) Warnf(code Code, file string, span token.Span, format string, args ...interface{}) {
	b.Add(NewWarning(code, file, span, fmt.Sprintf(format, args...)))
}

func (b *Bundle) HasErrors() bool {
	for _, d := range b.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Sort orders diagnostics by file then primary span, for stable output.
func (b *Bundle) Sort() {
	sort.SliceStable(b.Diagnostics, func(i, j int) bool {
		a, c := b.Diagnostics[i], b.Diagnostics[j]
		if a.File != c.File {
			return a.File < c.File
		}
		return a.Primary.Start < c.Primary.Start
	})
}

// Render writes a human-readable rendering of the bundle to w. When w is a
// terminal (detected via go-isatty) severities are ANSI-colored.
func (b *Bundle) Render(w io.Writer) {
	color := false
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range b.Diagnostics {
		writeDiagnostic(w, d, color)
	}
}

func writeDiagnostic(w io.Writer, d *Diagnostic, color bool) {
	sev := d.Severity.String()
	if color {
		code := "31"
		if d.Severity == Warning {
			code = "33"
		}
		fmt.Fprintf(w, "\x1b[%sm%s[%s]\x1b[0m: %s\n", code, sev, d.Code, d.Message)
	} else {
		fmt.Fprintf(w, "%s[%s]: %s\n", sev, d.Code, d.Message)
	}
	fmt.Fprintf(w, "  --> %s:%d:%d\n", d.File, d.Primary.Line, d.Primary.Col)
	for _, l := range d.Secondary {
		fmt.Fprintf(w, "  note: %s (%d:%d)\n", l.Message, l.Span.Line, l.Span.Col)
	}
	if d.Help != "" {
		fmt.Fprintf(w, "  help: %s\n", d.Help)
	}
}
