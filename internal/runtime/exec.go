package runtime

import (
	"github.com/weave-lang/weave/internal/bytecode"
	"github.com/weave-lang/weave/internal/value"
)

// stepSignal reports why run's dispatch loop returned control to its
// caller: a normal return past targetDepth, or a suspension point this
// VM instance cannot resolve itself (yield/await), which the caller
// (coroutine.go's generator/async driver, or callSync's "this must not
// suspend" check) must interpret.
type stepSignal int

const (
	sigReturn stepSignal = iota
	sigYield
	sigAwait
)

func readU16(code []byte, at int) int { return int(code[at])<<8 | int(code[at+1]) }

// run is the instruction dispatch loop over the active frame's code. A
// script-to-script OP_CALL goes through callValue to callSync, which
// pushes a new callFrame and runs a nested run loop until that frame
// returns, so each Weave call also adds Go call-stack depth; the frame
// count is capped at maxFrameCount. The loop returns to its caller only when
// the active frame count drops to targetDepth (a normal return the
// caller initiated the call at) or an OP_YIELD/OP_AWAIT is hit (handed
// to coroutine.go).
func (vm *VM) run(targetDepth int) (value.Value, stepSignal, *Error) {
	f := vm.frame
	var opsSinceCheck int64
	for {
		if vm.budget.Instructions > 0 {
			vm.instrCounter--
			if vm.instrCounter <= 0 {
				return value.Nil(), sigReturn, vm.raiseErr(budgetError(vm.budget.Instructions, 0, false))
			}
		}
		// Context cancellation and the memory budget are only worth
		// checking every checkInterval instructions, amortizing
		// ctx.Done()'s channel select and the stack-size memory
		// estimate across the hot path.
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			if vm.ctx != nil {
				select {
				case <-vm.ctx.Done():
					return value.Nil(), sigReturn, vm.raise(BudgetExhausted, "context canceled: %v", vm.ctx.Err())
				default:
				}
			}
			if vm.budget.MemoryBytes > 0 {
				vm.memUsed = int64(len(vm.stack)) * int64(valueSize)
				if vm.memUsed > vm.budget.MemoryBytes {
					return value.Nil(), sigReturn, vm.raiseErr(budgetError(0, vm.budget.MemoryBytes, true))
				}
			}
		}

		code := f.chunk.Code
		op := bytecode.Op(code[f.ip])
		f.ip++

		switch op {
		case bytecode.OP_CONST:
			idx := readU16(code, f.ip)
			f.ip += 2
			vm.push(f.chunk.Constants[idx])
		case bytecode.OP_NIL:
			vm.push(value.Nil())
		case bytecode.OP_TRUE:
			vm.push(value.Bool(true))
		case bytecode.OP_FALSE:
			vm.push(value.Bool(false))
		case bytecode.OP_POP:
			vm.pop()
		case bytecode.OP_DUP:
			vm.push(vm.peek(0))

		case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL, bytecode.OP_DIV, bytecode.OP_MOD, bytecode.OP_POW:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.arith(op, a, b)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
		case bytecode.OP_NEG:
			a := vm.pop()
			v, err := vm.negate(a)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)

		case bytecode.OP_BAND, bytecode.OP_BOR, bytecode.OP_BXOR, bytecode.OP_LSHIFT, bytecode.OP_RSHIFT:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.bitwise(op, a, b)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
		case bytecode.OP_BNOT:
			a := vm.pop()
			if a.Kind != value.KInt {
				return value.Nil(), sigReturn, vm.raise(BadArgument, "~ requires Int, got %s", a.TypeName())
			}
			vm.push(value.Int(^a.AsInt()))

		case bytecode.OP_CONCAT:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.concat(a, b)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
		case bytecode.OP_CONS:
			b := vm.pop()
			a := vm.pop()
			vec, ok := b.Obj.(*value.Vector)
			if !ok {
				return value.Nil(), sigReturn, vm.raise(BadArgument, ":: requires a Vector on the right, got %s", b.TypeName())
			}
			elems := append([]value.Value{a}, vec.Elems...)
			vm.push(value.FromObject(value.NewVector(elems)))

		case bytecode.OP_EQ:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(a.Equal(b)))
		case bytecode.OP_NE:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(!a.Equal(b)))
		case bytecode.OP_LT, bytecode.OP_LE, bytecode.OP_GT, bytecode.OP_GE:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.compare(op, a, b)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)

		case bytecode.OP_NOT:
			a := vm.pop()
			vm.push(value.Bool(!a.Truthy()))
		case bytecode.OP_AND:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(a.Truthy() && b.Truthy()))
		case bytecode.OP_OR:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(a.Truthy() || b.Truthy()))

		case bytecode.OP_INTERP_CONCAT:
			n := int(code[f.ip])
			f.ip++
			parts := make([]string, n)
			for i := n - 1; i >= 0; i-- {
				parts[i] = interpPart(vm.pop())
			}
			s := ""
			for _, p := range parts {
				s += p
			}
			vm.push(value.Str(s))

		case bytecode.OP_GET_LOCAL:
			slot := readU16(code, f.ip)
			f.ip += 2
			vm.push(vm.stack[f.base+slot])
		case bytecode.OP_SET_LOCAL:
			slot := readU16(code, f.ip)
			f.ip += 2
			vm.stack[f.base+slot] = vm.peek(0)
		case bytecode.OP_GET_UPVALUE:
			idx := readU16(code, f.ip)
			f.ip += 2
			uv := f.closure.Upvalues[idx]
			if uv.Closed() {
				vm.push(uv.Value())
			} else {
				vm.push(vm.stack[uv.SlotIdx])
			}
		case bytecode.OP_SET_UPVALUE:
			idx := readU16(code, f.ip)
			f.ip += 2
			uv := f.closure.Upvalues[idx]
			if uv.Closed() {
				uv.Set(vm.peek(0))
			} else {
				vm.stack[uv.SlotIdx] = vm.peek(0)
			}
		case bytecode.OP_GET_ITEM:
			idx := readU16(code, f.ip)
			f.ip += 2
			hash := uint64(f.chunk.Constants[idx].AsInt())
			v, err := vm.resolveItem(hash)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)

		case bytecode.OP_JUMP:
			f.ip = readU16(code, f.ip)
		case bytecode.OP_JUMP_IF_FALSE:
			target := readU16(code, f.ip)
			f.ip += 2
			if !vm.peek(0).Truthy() {
				f.ip = target
			}
		case bytecode.OP_JUMP_IF_TRUE:
			target := readU16(code, f.ip)
			f.ip += 2
			if vm.peek(0).Truthy() {
				f.ip = target
			}
		case bytecode.OP_LOOP:
			f.ip = readU16(code, f.ip)

		case bytecode.OP_CALL, bytecode.OP_CALL_SPREAD:
			argc := int(code[f.ip])
			f.ip++
			args := vm.popArgs(argc, op == bytecode.OP_CALL_SPREAD)
			callee := vm.pop()
			v, err := vm.callValue(callee, args)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
			f = vm.frame
		case bytecode.OP_TAIL_CALL:
			// Handled exactly like OP_CALL: no frame is reused, so a tail
			// call takes a frame and a nested run loop like any other
			// call. internal/bytecode's assembler does not emit this opcode.
			argc := int(code[f.ip])
			f.ip++
			args := vm.popArgs(argc, false)
			callee := vm.pop()
			v, err := vm.callValue(callee, args)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
			f = vm.frame
		case bytecode.OP_CALL_METHOD:
			argc := int(code[f.ip])
			nameIdx := readU16(code, f.ip+1)
			f.ip += 3
			args := vm.popArgs(argc, true)
			recv := vm.pop()
			method := f.chunk.Constants[nameIdx].Obj.(*value.String).S
			v, err := vm.callMethod(recv, method, args)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
			f = vm.frame

		case bytecode.OP_RETURN:
			retVal := vm.pop()
			vm.closeUpvalues(f.base)
			vm.sp = f.base
			vm.popFrame()
			if vm.frameCount <= targetDepth {
				return retVal, sigReturn, nil
			}
			vm.push(retVal)
			f = vm.frame

		case bytecode.OP_CLOSURE:
			idx := readU16(code, f.ip)
			f.ip += 2
			upvalCount := int(code[f.ip])
			f.ip++
			descs := make([]upvalDesc, upvalCount)
			for i := 0; i < upvalCount; i++ {
				isLocal := code[f.ip] == 1
				index := readU16(code, f.ip+1)
				f.ip += 3
				descs[i] = upvalDesc{fromParentLocal: isLocal, index: index}
			}
			proto := vm.unit.Functions[idx]
			vm.push(value.FromObject(vm.makeClosure(proto, descs)))
		case bytecode.OP_AWAIT:
			v := vm.pop()
			return v, sigAwait, nil
		case bytecode.OP_YIELD:
			v := vm.pop()
			return v, sigYield, nil

		case bytecode.OP_SPREAD_ARG:
			// A marker: the value beneath it stays on the stack, this op
			// only flags it for the next MAKE_VECTOR/MAKE_TUPLE/CALL* to
			// unpack. The marker is a sentinel wrapper Value rather than
			// a side table, popped and unwrapped by the consuming op.
			v := vm.pop()
			vm.push(value.FromObject(&spreadMarker{v}))

		case bytecode.OP_MAKE_VECTOR:
			n := readU16(code, f.ip)
			f.ip += 2
			elems := vm.popSpreadable(n)
			vm.push(value.FromObject(value.NewVector(elems)))
		case bytecode.OP_MAKE_TUPLE:
			n := readU16(code, f.ip)
			f.ip += 2
			elems := vm.popSpreadable(n)
			vm.push(value.FromObject(value.NewTuple(elems)))
		case bytecode.OP_MAKE_MAP:
			n := readU16(code, f.ip)
			f.ip += 2
			m := value.NewOrderedMap()
			entries := make([]value.Value, 2*n)
			for i := 2*n - 1; i >= 0; i-- {
				entries[i] = vm.pop()
			}
			for i := 0; i < n; i++ {
				m.Set(entries[2*i], entries[2*i+1])
			}
			vm.push(value.FromObject(m))
		case bytecode.OP_MAKE_OBJECT:
			nameIdx := readU16(code, f.ip)
			hasSpread := code[f.ip+2] == 1
			fieldCount := readU16(code, f.ip+3)
			f.ip += 5
			names := make([]string, fieldCount)
			for i := 0; i < fieldCount; i++ {
				names[i] = f.chunk.Constants[readU16(code, f.ip)].Obj.(*value.String).S
				f.ip += 2
			}
			vals := make([]value.Value, fieldCount)
			for i := fieldCount - 1; i >= 0; i-- {
				vals[i] = vm.pop()
			}
			var spread value.Value
			if hasSpread {
				spread = vm.pop()
			}
			typeName := f.chunk.Constants[nameIdx].Obj.(*value.String).S
			s := value.NewStruct(typeName)
			if hasSpread {
				if src, ok := spread.Obj.(*value.StructInstance); ok {
					src.Fields.Each(func(k, v value.Value) { s.Fields.Set(k, v) })
				}
			}
			for i, name := range names {
				s.Fields.Set(value.Str(name), vals[i])
			}
			vm.push(value.FromObject(s))
		case bytecode.OP_MAKE_VARIANT:
			enumIdx := readU16(code, f.ip)
			variantIdx := readU16(code, f.ip+2)
			argCount := readU16(code, f.ip+4)
			fieldCount := readU16(code, f.ip+6)
			f.ip += 8
			names := make([]string, fieldCount)
			for i := 0; i < fieldCount; i++ {
				names[i] = f.chunk.Constants[readU16(code, f.ip)].Obj.(*value.String).S
				f.ip += 2
			}
			var elems []value.Value
			var fields *value.OrderedMap
			if fieldCount > 0 {
				vals := make([]value.Value, fieldCount)
				for i := fieldCount - 1; i >= 0; i-- {
					vals[i] = vm.pop()
				}
				fields = value.NewOrderedMap()
				for i, name := range names {
					fields.Set(value.Str(name), vals[i])
				}
			} else {
				elems = make([]value.Value, argCount)
				for i := argCount - 1; i >= 0; i-- {
					elems[i] = vm.pop()
				}
			}
			enumName := f.chunk.Constants[enumIdx].Obj.(*value.String).S
			variant := f.chunk.Constants[variantIdx].Obj.(*value.String).S
			vm.push(value.FromObject(&value.VariantInstance{EnumName: enumName, Variant: variant, Elems: elems, Fields: fields}))
		case bytecode.OP_MAKE_RANGE:
			inclusive := code[f.ip] == 1
			f.ip++
			end := vm.pop()
			start := vm.pop()
			vm.push(value.FromObject(&value.Range{Start: start.AsInt(), End: end.AsInt(), Inclusive: inclusive}))

		case bytecode.OP_GET_FIELD, bytecode.OP_GET_FIELD_OPT:
			idx := readU16(code, f.ip)
			f.ip += 2
			obj := vm.pop()
			if obj.IsNil() && op == bytecode.OP_GET_FIELD_OPT {
				vm.push(value.Nil())
				break
			}
			name := f.chunk.Constants[idx].Obj.(*value.String).S
			v, err := vm.getField(obj, name)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
		case bytecode.OP_SET_FIELD:
			idx := readU16(code, f.ip)
			f.ip += 2
			obj := vm.pop()
			val := vm.pop()
			name := f.chunk.Constants[idx].Obj.(*value.String).S
			if err := vm.setField(obj, name, val); err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(val)
		case bytecode.OP_GET_INDEX:
			idx := vm.pop()
			obj := vm.pop()
			v, err := vm.getIndex(obj, idx)
			if err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(v)
		case bytecode.OP_SET_INDEX:
			idx := vm.pop()
			obj := vm.pop()
			val := vm.pop()
			if err := vm.setIndex(obj, idx, val); err != nil {
				return value.Nil(), sigReturn, err
			}
			vm.push(val)

		case bytecode.OP_TRY:
			v := vm.pop()
			unwrapped, isErr, ok := unwrapTry(v)
			if !ok {
				return value.Nil(), sigReturn, vm.raise(BadArgument, "`?` requires a Result or Option, got %s", v.TypeName())
			}
			if isErr {
				vm.closeUpvalues(f.base)
				vm.sp = f.base
				vm.popFrame()
				if vm.frameCount <= targetDepth {
					return v, sigReturn, nil
				}
				vm.push(v)
				f = vm.frame
				continue
			}
			vm.push(unwrapped)

		case bytecode.OP_TEST_ALWAYS:
			vm.push(value.Bool(true))
		case bytecode.OP_TEST_EQ:
			lit := vm.pop()
			x := vm.pop()
			vm.push(value.Bool(x.Equal(lit)))
		case bytecode.OP_TEST_VARIANT:
			enumIdx := readU16(code, f.ip)
			variantIdx := readU16(code, f.ip+2)
			f.ip += 4
			x := vm.pop()
			enumName := f.chunk.Constants[enumIdx].Obj.(*value.String).S
			variant := f.chunk.Constants[variantIdx].Obj.(*value.String).S
			vi, ok := x.Obj.(*value.VariantInstance)
			vm.push(value.Bool(ok && vi.EnumName == enumName && vi.Variant == variant))
		case bytecode.OP_TEST_STRUCT:
			idx := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			typeName := f.chunk.Constants[idx].Obj.(*value.String).S
			si, ok := x.Obj.(*value.StructInstance)
			vm.push(value.Bool(ok && si.TypeNameStr == typeName))
		case bytecode.OP_TEST_TUPLE_LEN:
			n := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			t, ok := x.Obj.(*value.Tuple)
			vm.push(value.Bool(ok && len(t.Elems) == n))
		case bytecode.OP_TEST_LIST_LEN:
			n := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			vec, ok := x.Obj.(*value.Vector)
			vm.push(value.Bool(ok && len(vec.Elems) == n))
		case bytecode.OP_TEST_LIST_MINLEN:
			n := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			vec, ok := x.Obj.(*value.Vector)
			vm.push(value.Bool(ok && len(vec.Elems) >= n))

		case bytecode.OP_EXTRACT_TUPLE_ELEM:
			idx := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			t := x.Obj.(*value.Tuple)
			vm.push(t.Elems[idx])
		case bytecode.OP_EXTRACT_LIST_ELEM:
			idx := decodeSigned16(readU16(code, f.ip))
			f.ip += 2
			x := vm.pop()
			vec := x.Obj.(*value.Vector)
			i := idx
			if i < 0 {
				i += len(vec.Elems)
			}
			vm.push(vec.Elems[i])
		case bytecode.OP_EXTRACT_LIST_REST:
			from := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			vec := x.Obj.(*value.Vector)
			rest := append([]value.Value{}, vec.Elems[from:]...)
			vm.push(value.FromObject(value.NewVector(rest)))
		case bytecode.OP_EXTRACT_VARIANT_ELEM:
			idx := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			vi := x.Obj.(*value.VariantInstance)
			vm.push(vi.Elems[idx])
		case bytecode.OP_EXTRACT_VARIANT_FIELD:
			idx := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			vi := x.Obj.(*value.VariantInstance)
			name := f.chunk.Constants[idx].Obj.(*value.String).S
			v, _ := vi.Fields.Get(value.Str(name))
			vm.push(v)
		case bytecode.OP_EXTRACT_STRUCT_FIELD:
			idx := readU16(code, f.ip)
			f.ip += 2
			x := vm.pop()
			si := x.Obj.(*value.StructInstance)
			name := f.chunk.Constants[idx].Obj.(*value.String).S
			v, _ := si.Fields.Get(value.Str(name))
			vm.push(v)

		case bytecode.OP_MATCH_FAIL:
			return value.Nil(), sigReturn, vm.raise(Panic, "no match arm matched")

		case bytecode.OP_HALT:
			return value.Nil(), sigReturn, nil

		default:
			return value.Nil(), sigReturn, vm.raise(NotImplemented, "unimplemented opcode %s", op)
		}
	}
}

func decodeSigned16(u int) int {
	if u > 0x7FFF {
		return u - 0x10000
	}
	return u
}

func interpPart(v value.Value) string {
	if s, ok := v.Obj.(*value.String); ok {
		return s.S
	}
	return v.Inspect()
}

// spreadMarker wraps a value pushed by OP_SPREAD_ARG so the next
// MAKE_VECTOR/MAKE_TUPLE/CALL* can distinguish "one element that is
// itself a Vector" from "unpack these elements in place".
type spreadMarker struct{ v value.Value }

func (s *spreadMarker) TypeName() string        { return "spread" }
func (s *spreadMarker) Inspect() string         { return "..." + s.v.Inspect() }
func (s *spreadMarker) Hash() uint64            { return s.v.Hash() }
func (s *spreadMarker) Equal(o value.Object) bool { return false }

// popSpreadable pops n stack values (unwrapping any spreadMarker in
// place, per OP_MAKE_VECTOR/OP_MAKE_TUPLE's documented semantics) into
// their source order.
func (vm *VM) popSpreadable(n int) []value.Value {
	raw := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		raw[i] = vm.pop()
	}
	var out []value.Value
	for _, v := range raw {
		if sm, ok := v.Obj.(*spreadMarker); ok {
			out = append(out, spreadElems(sm.v)...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

func spreadElems(v value.Value) []value.Value {
	switch o := v.Obj.(type) {
	case *value.Vector:
		return o.Elems
	case *value.Tuple:
		return o.Elems
	default:
		return []value.Value{v}
	}
}

// popArgs pops argc call arguments, unwrapping spread markers when
// spread is true (OP_CALL_SPREAD/OP_CALL_METHOD).
func (vm *VM) popArgs(argc int, spread bool) []value.Value {
	if !spread {
		args := make([]value.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = vm.pop()
		}
		return args
	}
	return vm.popSpreadable(argc)
}
