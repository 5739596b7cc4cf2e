package runtime

import (
	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

// callFrame is one active call's window into the shared value stack:
// the closure being run, its chunk, the instruction pointer, and the
// stack index where the frame's locals begin.
type callFrame struct {
	closure *value.Closure
	chunk   *bytecode.Chunk
	ip      int
	base    int // stack index where this frame's locals begin
}

func (f *callFrame) funcName() string {
	if f.closure == nil || f.closure.Proto == nil {
		return "<script>"
	}
	return f.closure.Proto.Name
}

func (f *callFrame) line() int {
	if f.ip > 0 && f.ip-1 < len(f.chunk.Lines) {
		return f.chunk.Lines[f.ip-1]
	}
	return 0
}
