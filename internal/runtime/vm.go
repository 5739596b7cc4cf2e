package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

// Stack and frame growth/limit constants.
const (
	initialStackSize  = 2048
	initialFrameCount = 256
	stackGrowth       = 1024
	frameGrowth       = 128
	maxFrameCount     = 4096
	maxStackSize      = 1024 * 1024

	// checkInterval is how many dispatched instructions elapse between
	// context-cancellation and memory-budget checks.
	checkInterval = 1000

	// valueSize approximates value.Value's footprint (a Kind byte, a
	// Data word, and an Obj interface's two machine words) for the
	// memory-budget estimate in exec.go's run loop; composite Objects'
	// own heap allocations are not tracked, so this undercounts a
	// program that builds large Vectors/Maps rather than deep recursion.
	valueSize = 32
)

// Budget caps a single Run's resource consumption: Instructions
// decrements once per dispatched opcode,
// MemoryBytes caps an estimate of the value stack's size (stack slots
// times valueSize), checked every checkInterval instructions; heap
// allocations of composite values (vectors, maps, objects) are not
// counted. Either field left at zero means "no limit".
type Budget struct {
	Instructions int64
	MemoryBytes  int64
}

// Suspension is returned by Run (in place of a Value) when the entry
// point is async or a generator and did not run to completion
// synchronously: the host drives it further via the returned Generator/
// Future and the VM's Drive method.
type Suspension struct {
	Generator *value.Generator
	Future    *value.Future
}

// VM is one embeddable interpreter instance: its own stack, call frames,
// open-upvalue set, and const-thunk memoization cache. Static dispatch
// lives in internal/typesystem and module plumbing in internal/modreg;
// the VM itself carries only execution state.
type VM struct {
	ID string // per-instance id, stamped via github.com/google/uuid

	unit  *bytecode.Unit
	stack []value.Value
	sp    int

	frames     []callFrame
	frameCount int
	frame      *callFrame

	// openUpvalues holds every Upvalue still aliasing a live stack slot
	// in this VM, in the order they were opened. A slice, not an intrusive
	// list: a linear search over a handful of live upvalues is simpler
	// and no slower at these sizes.
	openUpvalues []*value.Upvalue

	constCache map[uint64]value.Value
	constBusy  map[uint64]bool // detects a const initializer that (indirectly) references itself

	// methods lazily indexes the unit's impl-block functions ("Type::name")
	// for dot-call dispatch on struct and enum receivers.
	methods map[string]int

	scheduler *Scheduler

	budget       Budget
	instrCounter int64
	memUsed      int64

	ctx context.Context
}

// Scheduler is a queue of resume callbacks that Drive runs on the
// host's goroutine. Nothing in this package calls notify, so the queue
// stays empty: a Weave-internal async call settles its own Future from
// the goroutine running it, and an awaited host Future (such as one
// returned by internal/modreg's gRPC bridge) is waited on by
// blockOnFuture on the awaiting goroutine rather than through the
// Scheduler.
type Scheduler struct {
	mu    sync.Mutex
	ready []func()
}

func NewScheduler() *Scheduler { return &Scheduler{} }

// notify enqueues a settled future's resume callback; safe to call from
// any goroutine, and it never touches VM state directly.
func (s *Scheduler) notify(resume func()) {
	s.mu.Lock()
	s.ready = append(s.ready, resume)
	s.mu.Unlock()
}

// Drive runs every resume callback queued since the last Drive call and
// reports whether it did any work, so a host event loop can call it in
// a tight or backoff poll.
func (vm *VM) Drive(ctx context.Context) (settled bool) {
	vm.scheduler.mu.Lock()
	pending := vm.scheduler.ready
	vm.scheduler.ready = nil
	vm.scheduler.mu.Unlock()

	for _, resume := range pending {
		select {
		case <-ctx.Done():
			return settled
		default:
		}
		resume()
		settled = true
	}
	return settled
}

func newVM(u *bytecode.Unit, sched *Scheduler, budget Budget, ctx context.Context) *VM {
	return &VM{
		ID:           uuid.NewString(),
		unit:         u,
		stack:        make([]value.Value, initialStackSize),
		frames:       make([]callFrame, initialFrameCount),
		constCache:   make(map[uint64]value.Value),
		constBusy:    make(map[uint64]bool),
		scheduler:    sched,
		budget:       budget,
		instrCounter: budget.Instructions,
		ctx:          ctx,
	}
}

func (vm *VM) push(v value.Value) {
	if vm.sp >= len(vm.stack) {
		vm.growStack()
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) growStack() {
	if len(vm.stack) >= maxStackSize {
		panic(newError(StackOverflow, "value stack exceeded %d entries", maxStackSize))
	}
	grown := make([]value.Value, len(vm.stack)+stackGrowth)
	copy(grown, vm.stack)
	vm.stack = grown
}

func (vm *VM) pop() value.Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Nil()
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.sp-1-distance]
}

// pushFrame allocates a new callFrame for closure at the current stack
// top minus its arguments (base), growing vm.frames if needed.
func (vm *VM) pushFrame(closure *value.Closure, base int) *callFrame {
	if vm.frameCount >= maxFrameCount {
		panic(newError(StackOverflow, "call stack exceeded %d frames", maxFrameCount))
	}
	if vm.frameCount >= len(vm.frames) {
		grown := make([]callFrame, len(vm.frames)+frameGrowth)
		copy(grown, vm.frames[:vm.frameCount])
		vm.frames = grown
	}
	vm.frameCount++
	f := &vm.frames[vm.frameCount-1]
	chunk, _ := closure.Proto.Chunk.(*bytecode.Chunk)
	*f = callFrame{closure: closure, chunk: chunk, ip: 0, base: base}
	vm.frame = f
	return f
}

func (vm *VM) popFrame() {
	vm.frameCount--
	if vm.frameCount > 0 {
		vm.frame = &vm.frames[vm.frameCount-1]
	} else {
		vm.frame = nil
	}
}

// backtrace snapshots every live frame, most-recent first.
func (vm *VM) backtrace() []BacktraceFrame {
	bt := make([]BacktraceFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		bt = append(bt, BacktraceFrame{FuncName: f.funcName(), Line: f.line()})
	}
	return bt
}

func (vm *VM) raise(kind ErrorKind, format string, args ...interface{}) *Error {
	e := newError(kind, format, args...)
	e.Backtrace = vm.backtrace()
	return e
}

// raiseErr stamps a pre-built Error (e.g. from budgetError, which needs
// go-humanize formatting budgetError already computed) with this VM's
// current backtrace.
func (vm *VM) raiseErr(e *Error) *Error {
	e.Backtrace = vm.backtrace()
	return e
}
