// Package weave is the public embedding API: a host constructs a VM,
// binds Go values and functions under canonical `a::b` paths, evaluates
// script source, and calls script functions with Go arguments. All
// compiler and interpreter machinery stays under internal/; this package
// only adds the Go<->script marshalling boundary on top of
// internal/compile and internal/runtime.
package weave

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/compile"
	"github.com/weave-lang/weave/internal/diag"
	"github.com/weave-lang/weave/internal/modreg"
	"github.com/weave-lang/weave/internal/runtime"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// CompileError carries the full diagnostics bundle of a failed
// compilation; Error renders it the same way the CLI does.
type CompileError struct {
	Bundle *diag.Bundle
}

func (e *CompileError) Error() string {
	var b strings.Builder
	e.Bundle.Render(&b)
	return strings.TrimSpace(b.String())
}

// VM is one isolated embedding instance: its own host-item registry,
// its own compiled unit, no process-global state, so multiple VMs
// coexist in one host process.
type VM struct {
	registry   *modreg.Registry
	marshaller *Marshaller
	opts       compile.Options
	budget     runtime.Budget
	cache      *modreg.Cache

	unit *bytecode.Unit
}

type Option func(*VM)

// WithCompileOptions sets the compiler options used by Eval/RunFile.
// Eval always forces script mode on top of whatever is set here.
func WithCompileOptions(opts compile.Options) Option {
	return func(vm *VM) { vm.opts = opts }
}

// WithBudget bounds script execution: instruction count and an estimate
// of value-stack bytes (see runtime.Budget), zero meaning unlimited.
func WithBudget(instructions, memoryBytes int64) Option {
	return func(vm *VM) {
		vm.budget = runtime.Budget{Instructions: instructions, MemoryBytes: memoryBytes}
	}
}

// WithCache attaches a persistent unit cache: Eval/RunFile look up
// compiled units by source and option hashes before compiling, and
// store fresh compilations. The caller owns the Cache's lifetime.
func WithCache(c *modreg.Cache) Option {
	return func(vm *VM) { vm.cache = c }
}

func New(opts ...Option) *VM {
	vm := &VM{
		registry:   modreg.NewRegistry(),
		marshaller: NewMarshaller(),
	}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// Registry exposes the underlying host-item registry, for callers that
// want to register items below the marshalling layer (e.g. a gRPC
// service via modreg.RegisterGRPCService).
func (vm *VM) Registry() *modreg.Registry { return vm.registry }

// Bind registers a Go value under path so script code can reference it
// as `a::b`. Functions become callable natives with reflect-marshalled
// arguments; everything else is converted by the Marshaller. Binding a
// path twice is an error — silently shadowing an earlier binding has
// bitten enough hosts to be worth the lookup.
func (vm *VM) Bind(path string, val interface{}) error {
	hash := typesystem.HashPath(path)
	if existing, ok := vm.registry.Path(hash); ok {
		return fmt.Errorf("item %q already bound at %q", path, existing)
	}

	var v value.Value
	rv := reflect.ValueOf(val)
	if val != nil && rv.Kind() == reflect.Func {
		v = value.FromObject(vm.marshaller.WrapFunc(path, rv))
	} else {
		var err error
		v, err = vm.marshaller.ToValue(val)
		if err != nil {
			return fmt.Errorf("bind %q: %w", path, err)
		}
	}
	vm.registry.RegisterItem(path, v)
	return nil
}

// Eval compiles code in script mode (top-level statements allowed, the
// trailing expression is the result) and runs it, returning the result
// marshalled back to Go. The compiled unit is retained for Call.
func (vm *VM) Eval(ctx context.Context, code string) (interface{}, error) {
	opts := vm.opts
	opts.Script = true
	unit, err := vm.compileSources(map[string]string{"<eval>": code}, opts)
	if err != nil {
		return nil, err
	}
	vm.unit = unit
	return vm.invoke(ctx, "main", nil)
}

// RunFile compiles the file at path (plus any extra source files, each
// becoming a module named after its stem) and runs its `main`.
func (vm *VM) RunFile(ctx context.Context, path string, extra ...string) (interface{}, error) {
	sources := make(map[string]string, 1+len(extra))
	for _, p := range append([]string{path}, extra...) {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		sources[filepath.Base(p)] = string(content)
	}
	unit, err := vm.compileSources(sources, vm.opts)
	if err != nil {
		return nil, err
	}
	vm.unit = unit
	return vm.invoke(ctx, "main", nil)
}

// Call invokes a function of the last compiled unit by canonical path,
// marshalling args in and the result out. Async entry points are
// awaited to settlement; a generator entry point is returned as an
// opaque value.
func (vm *VM) Call(ctx context.Context, path string, args ...interface{}) (interface{}, error) {
	if vm.unit == nil {
		return nil, fmt.Errorf("no unit loaded: Eval or RunFile first")
	}
	margs := make([]value.Value, len(args))
	for i, a := range args {
		v, err := vm.marshaller.ToValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		margs[i] = v
	}
	return vm.invoke(ctx, path, margs)
}

func (vm *VM) compileSources(sources map[string]string, opts compile.Options) (*bytecode.Unit, error) {
	var srcHash, optHash string
	if vm.cache != nil {
		srcHash, optHash = compile.HashSources(sources), opts.Hash()
		if u, ok, err := vm.cache.Lookup(srcHash, optHash); err == nil && ok {
			// Natives are never persisted, so a decoded unit must be
			// re-linked against this VM's registry.
			vm.registry.Link(u)
			return u, nil
		}
	}

	unit, diags := compile.Compile(sources, vm.registry, opts)
	if diags.HasErrors() {
		return nil, &CompileError{Bundle: diags}
	}
	if vm.cache != nil {
		if err := vm.cache.Store(srcHash, optHash, unit, time.Now().Unix()); err != nil {
			return nil, fmt.Errorf("unit cache store: %w", err)
		}
	}
	return unit, nil
}

func (vm *VM) invoke(ctx context.Context, entry string, args []value.Value) (interface{}, error) {
	v, rerr, susp := runtime.RunWithBudget(ctx, vm.unit, entry, args, vm.budget)
	if rerr != nil {
		return nil, rerr
	}
	if susp != nil {
		if susp.Generator != nil {
			return value.FromObject(susp.Generator), nil
		}
		settled, rerr := runtime.AwaitSuspension(susp)
		if rerr != nil {
			return nil, rerr
		}
		v = settled
	}
	return vm.marshaller.FromValue(v, nil)
}
