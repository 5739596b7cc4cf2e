package runtime

import (
	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

// makeClosure builds a Closure over proto, resolving each upvalue
// descriptor against either the enclosing frame's live locals — by
// opening a new Upvalue onto that stack slot — or the enclosing closure's
// own already-captured Upvalues. It then eagerly evaluates every optional
// parameter's DefaultChunk once, so a later call with a missing argument
// is a cheap slice index rather than a chunk re-run every time (defaults
// are fixed at closure-creation time).
func (vm *VM) makeClosure(proto *value.FunctionProto, descs []upvalDesc) *value.Closure {
	c := &value.Closure{Proto: proto}
	if len(descs) > 0 {
		c.Upvalues = make([]*value.Upvalue, len(descs))
		for i, d := range descs {
			if d.fromParentLocal {
				c.Upvalues[i] = vm.captureUpvalue(d.index)
			} else {
				c.Upvalues[i] = vm.frame.closure.Upvalues[d.index]
			}
		}
	}
	for _, dc := range proto.DefaultChunks {
		dp := dc.(*value.FunctionProto)
		v, _, err := vm.callSync(&value.Closure{Proto: dp}, nil)
		if err != nil {
			// A default initializer can only reference sibling consts/fns
			// (internal/resolve's resolveParamDefaults bars locals/upvalues),
			// so a failure here is a genuine runtime error (e.g. a const
			// cycle) rather than something the caller could have avoided
			// by supplying the argument. Record Nil so closure
			// construction never itself panics; the degraded value only
			// surfaces if a call actually omits this argument.
			v = value.Nil()
		}
		c.Defaults = append(c.Defaults, v)
	}
	return c
}

type upvalDesc struct {
	fromParentLocal bool
	index           int
}

// captureUpvalue returns an existing open Upvalue over the current
// frame's stack slot if one is already live, or opens a new one, so
// two closures capturing the same local share one heap cell.
func (vm *VM) captureUpvalue(localSlot int) *value.Upvalue {
	absSlot := vm.frame.base + localSlot
	for _, uv := range vm.openUpvalues {
		if !uv.Closed() && uv.SlotIdx == absSlot {
			return uv
		}
	}
	uv := value.NewOpenUpvalue(vm.frame, absSlot)
	vm.openUpvalues = append(vm.openUpvalues, uv)
	return uv
}

// closeUpvalues snapshots and detaches every open Upvalue at or above
// stack index from, called when a frame whose locals occupy that range
// is popped.
func (vm *VM) closeUpvalues(from int) {
	kept := vm.openUpvalues[:0]
	for _, uv := range vm.openUpvalues {
		if uv.SlotIdx >= from {
			uv.Close(vm.stack[uv.SlotIdx])
		} else {
			kept = append(kept, uv)
		}
	}
	vm.openUpvalues = kept
}

// resolveItem implements OP_GET_ITEM: hash names either a top-level
// `const` (memoized after first evaluation) or a top-level fn/method
// (wrapped as a zero-upvalue Closure), the two internal/resolve item
// kinds that ever reach a bare path reference.
func (vm *VM) resolveItem(hash uint64) (value.Value, *Error) {
	if v, ok := vm.constCache[hash]; ok {
		return v, nil
	}
	if thunk, ok := vm.unit.ConstThunks[hash]; ok {
		if vm.constBusy[hash] {
			return value.Nil(), vm.raise(Panic, "const initializer cycle detected")
		}
		vm.constBusy[hash] = true
		v, _, err := vm.callSync(&value.Closure{Proto: thunk}, nil)
		delete(vm.constBusy, hash)
		if err != nil {
			return value.Nil(), err
		}
		vm.constCache[hash] = v
		return v, nil
	}
	if idx, ok := vm.unit.EntryItems[hash]; ok {
		proto := vm.unit.Functions[idx]
		return value.FromObject(vm.makeClosure(proto, nil)), nil
	}
	// internal/modreg's host-module bridge (or any pkg/weave-registered
	// Go function) links its items into Unit.Natives by the same path
	// hash, so a compiled reference to a host item resolves exactly like
	// one to a sibling fn: a host-provided item has no distinct runtime
	// representation.
	if v, ok := vm.unit.Natives[hash]; ok {
		return v, nil
	}
	return value.Nil(), vm.raise(BadAccess, "unresolved item reference")
}

// callSync pushes a fresh frame for closure over args and runs it to
// completion in this same VM, returning its result. Used for const
// thunks, default-parameter chunks, and any other call the compiler
// knows can never suspend (yield/await) — sig will be sigYield/sigAwait
// only if that assumption was violated, which callers treat as an
// error since neither call site has anywhere to hand a Suspension to.
func (vm *VM) callSync(closure *value.Closure, args []value.Value) (value.Value, stepSignal, *Error) {
	depth := vm.frameCount
	base := vm.sp
	for _, a := range args {
		vm.push(a)
	}
	vm.pushFrame(closure, base)
	vm.growLocals(closure.Proto.LocalCount)
	val, sig, err := vm.run(depth)
	if err == nil && sig != sigReturn {
		err = vm.raise(NotImplemented, "yield/await not valid in this context")
	}
	return val, sig, err
}

// growLocals zero-fills the stack slots between the arguments already
// pushed and the frame's declared local count, so GET_LOCAL on an
// as-yet-unassigned binding reads Nil rather than stale data from a
// previous frame that occupied the same stack region.
func (vm *VM) growLocals(localCount int) {
	need := vm.frame.base + localCount
	for vm.sp < need {
		vm.push(value.Nil())
	}
}

// callValue dispatches a CALL/CALL_SPREAD/CALL_METHOD/TAIL_CALL
// instruction's callee across the two callable shapes this value model
// has: a script Closure (sync, async, or generator) or a host NativeFn.
func (vm *VM) callValue(callee value.Value, args []value.Value) (value.Value, *Error) {
	obj := callee.Obj
	switch c := obj.(type) {
	case *value.Closure:
		return vm.callClosureValue(c, args)
	case *value.NativeFn:
		return vm.callNative(c, args)
	default:
		return value.Nil(), vm.raise(BadArgument, "cannot call a value of type %s", callee.TypeName())
	}
}

func (vm *VM) callNative(fn *value.NativeFn, args []value.Value) (value.Value, *Error) {
	if fn.Arity >= 0 && len(args) != fn.Arity {
		return value.Nil(), vm.raise(BadArgument, "%s expects %d arguments, got %d", fn.Name, fn.Arity, len(args))
	}
	v, err := fn.Fn(args)
	if err != nil {
		return value.Nil(), vm.raise(BadArgument, "%s", err.Error())
	}
	return v, nil
}

// bindArgs checks arity against proto and returns the full argument
// slice with missing optional parameters filled from closure.Defaults.
// There is no partial application: an arity mismatch is a runtime error
// via BadArgument.
func (vm *VM) bindArgs(closure *value.Closure, args []value.Value) ([]value.Value, *Error) {
	proto := closure.Proto
	if len(args) < proto.RequiredArity {
		return nil, vm.raise(BadArgument, "%s expects at least %d arguments, got %d", proto.Name, proto.RequiredArity, len(args))
	}
	if len(args) > proto.Arity {
		return nil, vm.raise(BadArgument, "%s expects at most %d arguments, got %d", proto.Name, proto.Arity, len(args))
	}
	if len(args) == proto.Arity {
		return args, nil
	}
	full := make([]value.Value, proto.Arity)
	copy(full, args)
	for i := len(args); i < proto.Arity; i++ {
		di := i - proto.RequiredArity
		if di >= 0 && di < len(closure.Defaults) {
			full[i] = closure.Defaults[di]
		} else {
			full[i] = value.Nil()
		}
	}
	return full, nil
}

// callClosureValue runs a plain (non-async, non-generator) closure to
// completion via callSync, or wraps an Async/Generator-flagged one in
// its Future/Generator suspension object instead (coroutine.go).
func (vm *VM) callClosureValue(c *value.Closure, args []value.Value) (value.Value, *Error) {
	full, err := vm.bindArgs(c, args)
	if err != nil {
		return value.Nil(), err
	}
	if c.Proto.Generator {
		return value.FromObject(vm.newGenerator(c, full)), nil
	}
	if c.Proto.Async {
		return value.FromObject(vm.startAsync(c, full)), nil
	}
	v, _, err := vm.callSync(&value.Closure{Proto: c.Proto, Upvalues: c.Upvalues}, full)
	return v, err
}

// bytecodeChunk unboxes proto.Chunk, used by disassembly/tooling paths
// outside the hot interpreter loop.
func bytecodeChunk(proto *value.FunctionProto) *bytecode.Chunk {
	c, _ := proto.Chunk.(*bytecode.Chunk)
	return c
}
