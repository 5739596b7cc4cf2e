package runtime

import (
	"context"
	"fmt"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// Run is the execution entry point: it resolves entryPath to a top-level
// fn in unit, calls it with args, and returns either its settled result,
// a runtime Error, or — when the entry point is itself async and does
// not settle synchronously, or is a generator handed back as a value —
// a Suspension the host drives further via (*VM).Drive or by resuming
// the returned Generator.
func Run(ctx context.Context, unit *bytecode.Unit, entryPath string, args []value.Value) (value.Value, *Error, *Suspension) {
	return RunWithBudget(ctx, unit, entryPath, args, Budget{})
}

// RunWithBudget is Run with an explicit instruction/memory Budget
//; Run itself passes the zero value (unlimited).
func RunWithBudget(ctx context.Context, unit *bytecode.Unit, entryPath string, args []value.Value, budget Budget) (value.Value, *Error, *Suspension) {
	hash := typesystem.HashPath(entryPath)
	idx, ok := unit.EntryItems[hash]
	if !ok {
		return value.Nil(), &Error{Kind: BadAccess, Message: fmt.Sprintf("no such entry item %q", entryPath)}, nil
	}
	proto := unit.Functions[idx]

	vm := newVM(unit, NewScheduler(), budget, ctx)
	closure := vm.makeClosure(proto, nil)

	v, err := vm.callClosureValue(closure, args)
	if err != nil {
		return value.Nil(), err, nil
	}

	switch obj := v.Obj.(type) {
	case *value.Future:
		state, result, ferr := obj.Snapshot()
		switch state {
		case value.FutureResolved:
			return result, nil, nil
		case value.FutureRejected:
			if re, ok := ferr.(*Error); ok {
				return value.Nil(), re, nil
			}
			return value.Nil(), &Error{Kind: Panic, Message: fmt.Sprint(ferr)}, nil
		default:
			return value.Nil(), nil, &Suspension{Future: obj}
		}
	case *value.Generator:
		return value.Nil(), nil, &Suspension{Generator: obj}
	default:
		return v, nil, nil
	}
}

// AwaitSuspension blocks the calling goroutine until s's Future settles
// (a no-op if s wraps a Generator instead — a generator is driven by
// calling its next/resume method from script code, not by the host).
// Hosts that would rather poll cooperatively should call (*VM).Drive in
// their own event loop instead of this.
func AwaitSuspension(s *Suspension) (value.Value, *Error) {
	if s.Future == nil {
		return value.Nil(), nil
	}
	done := make(chan struct{})
	s.Future.OnSettleOrNow(func() { close(done) })
	<-done
	state, result, err := s.Future.Snapshot()
	if state == value.FutureRejected {
		if re, ok := err.(*Error); ok {
			return value.Nil(), re
		}
		return value.Nil(), &Error{Kind: Panic, Message: fmt.Sprint(err)}
	}
	return result, nil
}
