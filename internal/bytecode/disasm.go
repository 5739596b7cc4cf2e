package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders chunk as human-readable text, one instruction
// per line with its source line number (elided when it repeats the
// previous instruction's). u
// resolves an OP_CLOSURE's function-table index back to the nested
// FunctionProto so its body disassembles recursively too; u may be nil
// when disassembling a standalone chunk with no enclosing Unit (a
// const/default thunk body never itself contains a closure literal, so
// this is safe in every call site internal/bytecode's tests use it from).
func Disassemble(u *Unit, chunk *Chunk, name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, u, chunk, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, u *Unit, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", chunk.Lines[offset])
	}

	op := Op(chunk.Code[offset])
	switch op {
	case OP_CONST:
		return constInstr(sb, op, chunk, offset)
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE:
		return u16Instr(sb, op, chunk, offset)
	case OP_GET_ITEM:
		return u16Instr(sb, op, chunk, offset)
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_LOOP:
		return jumpInstr(sb, op, chunk, offset)
	case OP_CALL, OP_CALL_SPREAD, OP_TAIL_CALL:
		return u8Instr(sb, op, chunk, offset)
	case OP_CALL_METHOD:
		return callMethodInstr(sb, chunk, offset)
	case OP_CLOSURE:
		return closureInstr(sb, u, chunk, offset)
	case OP_INTERP_CONCAT:
		return u8Instr(sb, op, chunk, offset)
	case OP_MAKE_VECTOR, OP_MAKE_TUPLE, OP_MAKE_MAP:
		return u16Instr(sb, op, chunk, offset)
	case OP_MAKE_OBJECT:
		return makeObjectInstr(sb, chunk, offset)
	case OP_MAKE_VARIANT:
		return makeVariantInstr(sb, chunk, offset)
	case OP_MAKE_RANGE:
		return u8Instr(sb, op, chunk, offset)
	case OP_GET_FIELD, OP_GET_FIELD_OPT, OP_SET_FIELD:
		return constInstr(sb, op, chunk, offset)
	case OP_TEST_VARIANT:
		return testVariantInstr(sb, chunk, offset)
	case OP_TEST_STRUCT:
		return constInstr(sb, op, chunk, offset)
	case OP_TEST_TUPLE_LEN, OP_TEST_LIST_LEN, OP_TEST_LIST_MINLEN:
		return u16Instr(sb, op, chunk, offset)
	case OP_EXTRACT_TUPLE_ELEM, OP_EXTRACT_LIST_ELEM, OP_EXTRACT_LIST_REST, OP_EXTRACT_VARIANT_ELEM:
		return u16Instr(sb, op, chunk, offset)
	case OP_EXTRACT_VARIANT_FIELD, OP_EXTRACT_STRUCT_FIELD:
		return constInstr(sb, op, chunk, offset)
	default:
		fmt.Fprintf(sb, "%s\n", op)
		return offset + 1
	}
}

func u8Instr(sb *strings.Builder, op Op, chunk *Chunk, offset int) int {
	n := chunk.Code[offset+1]
	fmt.Fprintf(sb, "%-20s %4d\n", op, n)
	return offset + 2
}

func u16Instr(sb *strings.Builder, op Op, chunk *Chunk, offset int) int {
	n := chunk.readU16(offset + 1)
	fmt.Fprintf(sb, "%-20s %4d\n", op, n)
	return offset + 3
}

// constInstr is u16Instr for an operand that indexes Chunk.Constants,
// additionally printing the constant's value for readability.
func constInstr(sb *strings.Builder, op Op, chunk *Chunk, offset int) int {
	idx := chunk.readU16(offset + 1)
	if idx < len(chunk.Constants) {
		fmt.Fprintf(sb, "%-20s %4d '%s'\n", op, idx, chunk.Constants[idx].Inspect())
	} else {
		fmt.Fprintf(sb, "%-20s %4d (invalid)\n", op, idx)
	}
	return offset + 3
}

// jumpInstr prints an absolute jump target directly: the OP_JUMP/
// OP_LOOP family all encode the absolute destination (assemble.go's
// emitJump/emitLoop), so there is no offset arithmetic to reconstruct
// here.
func jumpInstr(sb *strings.Builder, op Op, chunk *Chunk, offset int) int {
	target := chunk.readU16(offset + 1)
	fmt.Fprintf(sb, "%-20s -> %d\n", op, target)
	return offset + 3
}

func callMethodInstr(sb *strings.Builder, chunk *Chunk, offset int) int {
	argc := chunk.Code[offset+1]
	nameIdx := chunk.readU16(offset + 2)
	name := "?"
	if nameIdx < len(chunk.Constants) {
		name = chunk.Constants[nameIdx].Inspect()
	}
	fmt.Fprintf(sb, "%-20s args=%d method=%s\n", OP_CALL_METHOD, argc, name)
	return offset + 4
}

func makeObjectInstr(sb *strings.Builder, chunk *Chunk, offset int) int {
	nameIdx := chunk.readU16(offset + 1)
	hasSpread := chunk.Code[offset+3]
	fieldCount := chunk.readU16(offset + 4)
	name := "?"
	if nameIdx < len(chunk.Constants) {
		name = chunk.Constants[nameIdx].Inspect()
	}
	fmt.Fprintf(sb, "%-20s type=%s spread=%d fields=%d\n", OP_MAKE_OBJECT, name, hasSpread, fieldCount)
	return offset + 6 + fieldCount*2
}

func makeVariantInstr(sb *strings.Builder, chunk *Chunk, offset int) int {
	enumIdx := chunk.readU16(offset + 1)
	variantIdx := chunk.readU16(offset + 3)
	argCount := chunk.readU16(offset + 5)
	fieldCount := chunk.readU16(offset + 7)
	enum, variant := "?", "?"
	if enumIdx < len(chunk.Constants) {
		enum = chunk.Constants[enumIdx].Inspect()
	}
	if variantIdx < len(chunk.Constants) {
		variant = chunk.Constants[variantIdx].Inspect()
	}
	fmt.Fprintf(sb, "%-20s %s::%s args=%d fields=%d\n", OP_MAKE_VARIANT, enum, variant, argCount, fieldCount)
	return offset + 9 + fieldCount*2
}

func testVariantInstr(sb *strings.Builder, chunk *Chunk, offset int) int {
	enumIdx := chunk.readU16(offset + 1)
	variantIdx := chunk.readU16(offset + 3)
	enum, variant := "?", "?"
	if enumIdx < len(chunk.Constants) {
		enum = chunk.Constants[enumIdx].Inspect()
	}
	if variantIdx < len(chunk.Constants) {
		variant = chunk.Constants[variantIdx].Inspect()
	}
	fmt.Fprintf(sb, "%-20s %s::%s\n", OP_TEST_VARIANT, enum, variant)
	return offset + 5
}

// closureInstr prints the OP_CLOSURE header, then recursively
// disassembles the referenced FunctionProto's chunk indented one
// level. u is required to resolve
// the function-table index; when nil (a closure-free chunk) this falls
// back to the header line only.
func closureInstr(sb *strings.Builder, u *Unit, chunk *Chunk, offset int) int {
	idx := chunk.readU16(offset + 1)
	offset += 3
	upvalCount := chunk.Code[offset]
	offset++

	name := fmt.Sprintf("fn#%d", idx)
	if u != nil && idx < len(u.Functions) {
		name = u.Functions[idx].Name
	}
	fmt.Fprintf(sb, "%-20s %4d '%s'\n", OP_CLOSURE, idx, name)

	if u != nil && idx < len(u.Functions) {
		proto := u.Functions[idx]
		if nested, ok := proto.Chunk.(*Chunk); ok {
			sub := Disassemble(u, nested, proto.Name)
			sb.WriteString("    | " + strings.ReplaceAll(strings.TrimRight(sub, "\n"), "\n", "\n    | ") + "\n")
		}
	}

	for i := 0; i < int(upvalCount); i++ {
		isLocal := chunk.Code[offset]
		index := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
		offset += 3
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(sb, "     |                     %s %d\n", kind, index)
	}
	return offset
}
