// Package runtime implements the register/stack-hybrid virtual machine:
// the value interpreter loop, call frame management, generator/future
// suspension, and the execution entry point. The compiled-unit boundary
// lives in internal/bytecode's Unit/Chunk.
package runtime

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrorKind enumerates the runtime error kinds.
type ErrorKind int

const (
	Panic ErrorKind = iota
	BadArgument
	BadBorrow
	BadAccess
	DivideByZero
	BudgetExhausted
	StackOverflow
	NotImplemented
)

func (k ErrorKind) String() string {
	switch k {
	case Panic:
		return "panic"
	case BadArgument:
		return "bad-argument"
	case BadBorrow:
		return "bad-borrow"
	case BadAccess:
		return "bad-access"
	case DivideByZero:
		return "divide-by-zero"
	case BudgetExhausted:
		return "budget-exhausted"
	case StackOverflow:
		return "stack-overflow"
	case NotImplemented:
		return "not-implemented"
	default:
		return "unknown"
	}
}

// BacktraceFrame names one active call frame at the point an Error was
// raised: a function name and the source line its instruction pointer
// had reached.
type BacktraceFrame struct {
	FuncName string
	Line     int
}

// Error is a runtime error, distinct from the compile-time
// diag.Diagnostic plane: it carries a Kind tag, a message, and a
// backtrace snapshot of every frame live when it was raised.
type Error struct {
	Kind      ErrorKind
	Message   string
	Backtrace []BacktraceFrame
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	for _, f := range e.Backtrace {
		fmt.Fprintf(&b, "\n  at %s:%d", f.FuncName, f.Line)
	}
	return b.String()
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// budgetError formats a budget-exhausted message with human-readable
// magnitudes.
func budgetError(instrLimit int64, memLimit int64, overMem bool) *Error {
	if overMem {
		return newError(BudgetExhausted, "memory budget of %s exceeded", humanize.Bytes(uint64(memLimit)))
	}
	return newError(BudgetExhausted, "instruction budget of %s instructions exhausted", humanize.Comma(instrLimit))
}
