package runtime

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/weave-lang/weave/internal/value"
)

// spawnChild creates a fresh VM for a generator or async body goroutine:
// it shares the parent's compiled Unit, Scheduler, and Budget, but gets
// its own stack/frame arrays and const cache, since a goroutine driving
// a suspended body genuinely runs concurrently with whatever else the
// host does between resumes — sharing mutable interpreter state across
// that boundary would race.
func (vm *VM) spawnChild() *VM {
	return newVM(vm.unit, vm.scheduler, vm.budget, vm.ctx)
}

// newGenerator wraps closure/args as a not-yet-started Generator:
// calling `fn*(...)` only reaches here, it never itself spawns the body
// goroutine. A generator is inert until first resumed.
func (vm *VM) newGenerator(closure *value.Closure, args []value.Value) *value.Generator {
	g := value.NewGenerator()
	g.Closure = closure
	g.Args = args
	return g
}

// startAsync spawns the async body's goroutine immediately (unlike a
// generator, an `async fn` call begins running right away) and returns
// the Future it will settle.
func (vm *VM) startAsync(closure *value.Closure, args []value.Value) *value.Future {
	fut := value.NewFuture()
	fut.ID = uuid.NewString()
	child := vm.spawnChild()
	go child.runAsyncBody(fut, closure, args)
	return fut
}

// resumeGenerator drives g one step: starting its body goroutine on the
// first call, or handing sendVal to an already-running one, then blocks
// (on this calling goroutine, the one and only runnable party at this
// instant of the cooperative handoff) for the next GenStep. The result
// is surfaced as a two-field struct rather than a new Value kind.
func (vm *VM) resumeGenerator(g *value.Generator, sendVal value.Value) (value.Value, *Error) {
	if g.Done {
		return value.Nil(), vm.raise(BadArgument, "cannot resume a completed generator")
	}
	if !g.Started() {
		g.MarkStarted()
		child := vm.spawnChild()
		go child.runGeneratorBody(g)
	} else {
		g.ResumeCh <- sendVal
	}
	step := <-g.YieldCh
	if step.Err != nil {
		g.Done = true
		return value.Nil(), vm.raise(Panic, "generator body failed: %v", step.Err)
	}
	if step.Done {
		g.Done = true
	}
	result := value.NewStruct("GenStep")
	result.Fields.Set(value.Str("value"), step.Value)
	result.Fields.Set(value.Str("done"), value.Bool(step.Done))
	return value.FromObject(result), nil
}

func (vm *VM) generatorMethod(g *value.Generator, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "next":
		return vm.resumeGenerator(g, value.Nil())
	case "resume":
		sendVal := value.Nil()
		if len(args) == 1 {
			sendVal = args[0]
		}
		return vm.resumeGenerator(g, sendVal)
	case "done":
		return value.Bool(g.Done), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Generator has no method %q", method)
	}
}

func (vm *VM) futureMethod(f *value.Future, method string, args []value.Value) (value.Value, *Error) {
	switch method {
	case "isPending":
		return value.Bool(f.State() == value.FuturePending), nil
	case "isResolved":
		return value.Bool(f.State() == value.FutureResolved), nil
	case "isRejected":
		return value.Bool(f.State() == value.FutureRejected), nil
	default:
		return value.Nil(), vm.raise(BadAccess, "Future has no method %q", method)
	}
}

// runGeneratorBody runs on its own goroutine for the lifetime of the
// generator: pushes the initial call frame once, then loops run() calls,
// turning each OP_YIELD into a synchronizing YieldCh send / ResumeCh
// receive pair and a final OP_RETURN into a Done GenStep.
func (vm *VM) runGeneratorBody(g *value.Generator) {
	defer func() {
		if r := recover(); r != nil {
			g.YieldCh <- value.GenStep{Done: true, Err: fmt.Errorf("%v", r)}
		}
	}()

	depth := vm.frameCount
	base := vm.sp
	for _, a := range g.Args {
		vm.push(a)
	}
	vm.pushFrame(g.Closure, base)
	vm.growLocals(g.Closure.Proto.LocalCount)

	for {
		v, sig, err := vm.run(depth)
		if err != nil {
			g.YieldCh <- value.GenStep{Done: true, Err: err}
			return
		}
		switch sig {
		case sigReturn:
			g.YieldCh <- value.GenStep{Value: v, Done: true}
			return
		case sigYield:
			g.YieldCh <- value.GenStep{Value: v, Done: false}
			resumed := <-g.ResumeCh
			vm.push(resumed)
		case sigAwait:
			settled, awaitErr := vm.blockOnFuture(v)
			if awaitErr != nil {
				g.YieldCh <- value.GenStep{Done: true, Err: awaitErr}
				return
			}
			vm.push(settled)
		}
	}
}

// runAsyncBody is runGeneratorBody's async-fn counterpart: no YieldCh
// rendezvous, since nothing outside this goroutine drives an async body
// step by step — it just runs to completion (or to an OP_AWAIT it blocks
// through itself) and settles fut.
func (vm *VM) runAsyncBody(fut *value.Future, closure *value.Closure, args []value.Value) {
	defer func() {
		if r := recover(); r != nil {
			fut.Reject(fmt.Errorf("%v", r))
		}
	}()

	depth := vm.frameCount
	base := vm.sp
	for _, a := range args {
		vm.push(a)
	}
	vm.pushFrame(closure, base)
	vm.growLocals(closure.Proto.LocalCount)

	for {
		v, sig, err := vm.run(depth)
		if err != nil {
			fut.Reject(err)
			return
		}
		switch sig {
		case sigReturn:
			fut.Resolve(v)
			return
		case sigAwait:
			settled, awaitErr := vm.blockOnFuture(v)
			if awaitErr != nil {
				fut.Reject(awaitErr)
				return
			}
			vm.push(settled)
		case sigYield:
			fut.Reject(fmt.Errorf("yield used inside an async fn"))
			return
		}
	}
}

// blockOnFuture awaits v: a non-Future value is returned as-is (awaiting
// an already-ready value is a no-op, matching most async/await languages'
// treatment of a non-awaitable operand), otherwise this goroutine blocks
// until fut settles. This only ever runs on a dedicated generator/async
// body goroutine (never the goroutine driving the top-level Run call),
// so blocking here cannot stall a host's own event loop — that is exactly
// what spawning a goroutine per async/generator body buys us.
func (vm *VM) blockOnFuture(v value.Value) (value.Value, *Error) {
	fut, ok := v.Obj.(*value.Future)
	if !ok {
		return v, nil
	}
	done := make(chan struct{})
	fut.OnSettleOrNow(func() { close(done) })
	<-done
	state, result, err := fut.Snapshot()
	if state == value.FutureRejected {
		if re, ok := err.(*Error); ok {
			return value.Nil(), re
		}
		return value.Nil(), vm.raise(Panic, "%v", err)
	}
	return result, nil
}
