package value

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// FunctionProto is the compiled shape of a function body: bytecode lives
// in internal/bytecode.Chunk, referenced here only by an opaque handle so
// internal/value has no import-cycle onto internal/bytecode.
type FunctionProto struct {
	Name          string
	Arity         int
	RequiredArity int
	Variadic      bool
	LocalCount    int
	UpvalueCount  int
	Chunk         interface{} // *bytecode.Chunk, boxed to avoid an import cycle

	// DefaultChunks holds one bytecode chunk per optional parameter
	// (DefaultChunks[i] fills the parameter at RequiredArity+i), each a
	// *FunctionProto whose Chunk runs as its own zero-argument, zero-upvalue call
	// frame (internal/resolve's resolveParamDefaults resolves each default
	// in a bare scope that cannot see the function's own parameters or an
	// enclosing closure's captures, only sibling consts/fns/structs/enums).
	// There is no separate constant-index fast path (the chunk always
	// runs) and no upvalue capture from the enclosing function (a simpler
	// call path
	// with no upvalue plumbing of its own).
	DefaultChunks []interface{}

	Async     bool
	Generator bool
}

// Upvalue is a captured local, promoted to the heap by internal/resolve's
// capture analysis. While open it aliases a live stack
// slot in the owning call frame, which the VM reads and writes through
// SlotIdx; Close snapshots the value so the frame can be popped, and
// Value/Set then hold it.
type Upvalue struct {
	Frame    interface{} // *runtime.callFrame while open, nil once closed
	SlotIdx  int
	closed   bool
	value    Value
}

func NewOpenUpvalue(frame interface{}, slot int) *Upvalue {
	return &Upvalue{Frame: frame, SlotIdx: slot}
}

func (u *Upvalue) Close(v Value) {
	u.closed = true
	u.Frame = nil
	u.value = v
}

func (u *Upvalue) Closed() bool  { return u.closed }
func (u *Upvalue) Value() Value  { return u.value }
func (u *Upvalue) Set(v Value)   { u.value = v }

// Closure pairs a FunctionProto with the upvalues it captured at
// creation time.
type Closure struct {
	Proto    *FunctionProto
	Upvalues []*Upvalue
	Defaults []Value // one per optional parameter, evaluated at closure-creation time
}

func (c *Closure) TypeName() string { return "Function" }
func (c *Closure) Inspect() string  { return fmt.Sprintf("<fn %s>", c.Proto.Name) }
func (c *Closure) Hash() uint64     { return fnvPtr(c) }
func (c *Closure) Equal(o Object) bool {
	other, ok := o.(*Closure)
	return ok && other == c
}

// NativeFn wraps a Go function as a callable Value, the mechanism by
// which pkg/weave-registered host functions and internal/modreg's gRPC
// bridge methods become callable from script code.
type NativeFn struct {
	Name string
	Arity int // -1 for variadic
	Fn   func(args []Value) (Value, error)
}

func (n *NativeFn) TypeName() string { return "Function" }
func (n *NativeFn) Inspect() string  { return "<native " + n.Name + ">" }
func (n *NativeFn) Hash() uint64     { return fnvPtr(n) }
func (n *NativeFn) Equal(o Object) bool {
	other, ok := o.(*NativeFn)
	return ok && other == n
}

// FutureState tracks an async call's settlement.
type FutureState int

const (
	FuturePending FutureState = iota
	FutureResolved
	FutureRejected
)

// Future is the result of calling an `async fn`. Settlement and readers
// both cross goroutine boundaries (the async body settles it from its own
// goroutine; internal/runtime's OP_AWAIT handler and a host's Scheduler
// both read/subscribe from whichever goroutine is awaiting it), so every
// field but ID is guarded by mu.
type Future struct {
	ID string

	mu       sync.Mutex
	state    FutureState
	result   Value
	err      error
	onSettle func()
}

func NewFuture() *Future { return &Future{} }

func (f *Future) TypeName() string { return "Future" }
func (f *Future) Inspect() string {
	switch f.State() {
	case FutureResolved:
		return "Future(resolved)"
	case FutureRejected:
		return "Future(rejected)"
	default:
		return "Future(pending)"
	}
}
func (f *Future) Hash() uint64 { return fnvPtr(f) }
func (f *Future) Equal(o Object) bool {
	other, ok := o.(*Future)
	return ok && other == f
}

// State reads the current settlement state under lock.
func (f *Future) State() FutureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns the settled state, result, and error in one lock
// acquisition, so a reader never observes State/Result/Err from two
// different points in time.
func (f *Future) Snapshot() (FutureState, Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.result, f.err
}

func (f *Future) Resolve(v Value) {
	f.mu.Lock()
	if f.state != FuturePending {
		f.mu.Unlock()
		return
	}
	f.state = FutureResolved
	f.result = v
	cb := f.onSettle
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (f *Future) Reject(err error) {
	f.mu.Lock()
	if f.state != FuturePending {
		f.mu.Unlock()
		return
	}
	f.state = FutureRejected
	f.err = err
	cb := f.onSettle
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// OnSettleOrNow subscribes cb to fire the moment this Future settles, or
// fires it immediately (still under no lock held, to avoid a self-deadlock
// if cb re-enters the Future) if it already has.
func (f *Future) OnSettleOrNow(cb func()) {
	f.mu.Lock()
	if f.state != FuturePending {
		f.mu.Unlock()
		cb()
		return
	}
	f.onSettle = cb
	f.mu.Unlock()
}

// Generator is a suspended `fn*` body driven by internal/runtime through
// its ResumeCh/YieldCh coroutine handoff. internal/value only
// needs to carry the channel handles and the last yielded/returned
// value; the goroutine plumbing lives in internal/runtime so this
// package stays free of a runtime import cycle.
type Generator struct {
	ResumeCh chan Value
	YieldCh  chan GenStep
	Done     bool
	started  bool

	// Closure/Args are the call captured at `fn*` invocation time; the
	// body does not begin executing (and ResumeCh/YieldCh's goroutine is
	// not spawned) until the first Resume: a generator is a value until
	// driven.
	Closure *Closure
	Args    []Value
}

// Started reports whether the body goroutine has been spawned yet.
func (g *Generator) Started() bool { return g.started }

// MarkStarted flags the body goroutine as spawned; internal/runtime
// calls this exactly once, the first time a Generator is resumed.
func (g *Generator) MarkStarted() { g.started = true }

// GenStep is one message from a generator's body goroutine back to its
// driver: either a yielded value, a final return value, or a panic
// converted to an error.
type GenStep struct {
	Value    Value
	Done     bool
	Err      error
}

func NewGenerator() *Generator {
	return &Generator{ResumeCh: make(chan Value), YieldCh: make(chan GenStep)}
}

func (g *Generator) TypeName() string { return "Generator" }
func (g *Generator) Inspect() string  { return "<generator>" }
func (g *Generator) Hash() uint64     { return fnvPtr(g) }
func (g *Generator) Equal(o Object) bool {
	other, ok := o.(*Generator)
	return ok && other == g
}

// HostValue wraps an opaque Go value registered through pkg/weave so it
// can flow through script code (e.g. as a receiver for host-bound
// methods) without being unmarshalled into a Weave composite.
type HostValue struct {
	TypeNameStr string
	Native      interface{}
}

func (h *HostValue) TypeName() string { return h.TypeNameStr }
func (h *HostValue) Inspect() string  { return fmt.Sprintf("<host %s>", h.TypeNameStr) }
func (h *HostValue) Hash() uint64     { return fnvPtr(h) }
func (h *HostValue) Equal(o Object) bool {
	other, ok := o.(*HostValue)
	return ok && other.Native == h.Native
}

// fnvPtr hashes a Go pointer's identity for use as an Object.Hash(); the
// non-primitive heap types (closures, natives, futures, generators, host
// values) have no structural equality, only identity, so their hash only
// needs to be stable per-instance, not content-derived.
func fnvPtr(p interface{}) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%p", p)
	return h.Sum64()
}
