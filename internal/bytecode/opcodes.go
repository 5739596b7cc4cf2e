// Package bytecode implements the instruction encoding and the
// two-pass label-fixup assembler, operating over internal/hir trees
// rather than the raw syntax tree.
package bytecode

// Op is a single VM instruction. The TEST_*/EXTRACT_* pairs correspond
// directly to internal/hir's PatTest/Extract node kinds.
type Op byte

const (
	OP_CONST Op = iota // push Constants[u16]
	OP_NIL
	OP_TRUE
	OP_FALSE
	OP_POP
	OP_DUP

	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_POW
	OP_NEG

	OP_BAND
	OP_BOR
	OP_BXOR
	OP_BNOT
	OP_LSHIFT
	OP_RSHIFT

	OP_CONCAT // ++ on String/Vector
	OP_CONS   // :: on List

	OP_EQ
	OP_NE
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	OP_NOT
	OP_AND
	OP_OR

	OP_INTERP_CONCAT // pop u8 parts, push their concatenation

	OP_GET_LOCAL // u16 slot; push Locals[slot]
	// OP_SET_LOCAL/OP_SET_UPVALUE do not pop: they peek the value already
	// on top of the stack, write it into the slot/upvalue, and leave it
	// there, since an assignment is itself an expression here and this
	// is what lets compileAssign avoid an extra push to produce that
	// value. A
	// statement-context assignment (compileStmt) pops it back off
	// explicitly once compileAssign returns.
	OP_SET_LOCAL
	OP_GET_UPVALUE // u16 index; push Upvalues[index].Value()
	OP_SET_UPVALUE // u16 index; peek, does not pop — see OP_SET_LOCAL
	OP_GET_ITEM    // u16 const pool index holding the item hash; push its resolved value (fn/const)

	OP_JUMP           // u16 absolute offset
	OP_JUMP_IF_FALSE  // u16 absolute offset, does not pop
	OP_JUMP_IF_TRUE   // u16 absolute offset, does not pop
	OP_LOOP           // u16 absolute offset (unconditional backward jump)

	OP_CALL        // u8 argc
	OP_CALL_SPREAD // u8 argc; at least one of the argc values is OP_SPREAD_ARG-marked
	OP_TAIL_CALL   // u8 argc
	// OP_CALL_METHOD always checks its argc values for an OP_SPREAD_ARG
	// marker and unpacks them in place, unlike the plain-call OP_CALL/
	// OP_CALL_SPREAD split — a method call's arg list is rarely fully
	// spread-free-or-not in one static shape the assembler can pick
	// between ahead of time, so there is no separate CALL_METHOD_SPREAD.
	OP_CALL_METHOD // u8 argc, u16 const index holding method name
	OP_RETURN

	OP_CLOSURE // u16 function-table index, followed by u8 upvalue count descriptors (u8 isLocal, u16 index) pairs
	// A call to an Async- or Generator-flagged FunctionProto never runs its
	// body to completion under plain OP_CALL: internal/runtime's call
	// dispatch checks those two proto flags and wraps the call in a Future
	// or Generator value instead, so there is no separate MAKE_FUTURE/
	// MAKE_GENERATOR construction opcode — the wrapping is a property of
	// which function is being called, not of the call site.
	OP_AWAIT
	OP_YIELD

	// OP_SPREAD_ARG wraps the value just pushed as a spread source for
	// the next MAKE_VECTOR/MAKE_TUPLE/CALL*: the
	// consuming op unpacks a Vector/Tuple marked this way into its
	// individual elements/arguments in place instead of nesting it as one
	// element, at the cost of a runtime type check the assembler cannot
	// do statically.
	OP_SPREAD_ARG
	OP_MAKE_VECTOR // u16 count; pops count values (unpacking any OP_SPREAD_ARG-marked ones) and pushes one Vector
	OP_MAKE_TUPLE  // u16 count; pops count values (unpacking any OP_SPREAD_ARG-marked ones), pushes one Tuple
	OP_MAKE_MAP    // u16 entry count; pops 2*count values (key, value, key, value, ... in source order), pushes one OrderedMap
	// OP_MAKE_OBJECT: u16 typeNameConst ("" for a plain/anonymous object), u8
	// hasSpread, u16 fieldCount, followed by a trailing table of
	// fieldCount u16 field-name-consts (one per pushed field value, same
	// order) — the same trailing-descriptor-table shape as OP_CLOSURE's
	// upvalue list, needed because a field's name is not otherwise
	// recoverable from its pushed value. Stack before (bottom to top):
	// [spread]? then fieldCount values in field order. Pops fieldCount
	// field values; if hasSpread, also pops the spread object and seeds
	// the result's fields from it before the explicit fields overwrite by
	// name; pushes one StructInstance.
	OP_MAKE_OBJECT
	// OP_MAKE_VARIANT: u16 enumNameConst, u16 variantNameConst, u16
	// argCount, u16 fieldCount (exactly one of the two counts is
	// nonzero — a variant is tuple-shaped xor struct-shaped xor unit),
	// followed by a trailing table of fieldCount u16 field-name-consts
	// when fieldCount > 0 (struct-shaped variant), for the same reason
	// OP_MAKE_OBJECT carries one. Stack before: argCount positional
	// values, or fieldCount field values in field order. Pushes one
	// VariantInstance.
	OP_MAKE_VARIANT
	OP_MAKE_RANGE // u8 inclusive flag; pops end, pops start, pushes one Range

	OP_GET_FIELD     // u16 const index (name); pop obj, push obj.field
	OP_GET_FIELD_OPT // obj?.field: pop obj, push Nil instead of erroring if obj is Nil
	// OP_SET_FIELD: u16 const index (name). Stack before: [val, obj] (obj
	// on top — pushed second, by the assembler's compileAssign, so the
	// read half of a compound assignment can compile Target.X once for
	// OP_GET_FIELD and once more here without reordering anything). Pops
	// obj, pops val, mutates obj.field = val, pushes val back (an
	// assignment is itself an expression).
	OP_SET_FIELD
	OP_GET_INDEX // pop idx, pop obj, push obj[idx]
	// OP_SET_INDEX: stack before: [val, obj, idx] (idx on top). Pops idx,
	// pops obj, pops val, mutates obj[idx] = val, pushes val back.
	OP_SET_INDEX

	OP_TRY // `?`: if top is Result::Err/Option::None, return it from the function; else unwrap in place

	// Every TEST_*/EXTRACT_* op is stack-balanced: the operand X is always
	// compiled immediately before it (pushed fresh), and the op pops
	// exactly what it read and pushes exactly one result (a bool for
	// TEST_*, the extracted sub-value for EXTRACT_*) — no op leaves a
	// caller-supplied value sitting underneath its result. This holds
	// because internal/hir's PatTest.X/Extract.X are always cheap to
	// recompute (a LocalRef into the match's ScrSlot, or another Extract
	// rooted at one), so there is no benefit to threading a value through
	// a chain of tests the way a discriminated stack machine normally
	// would.
	OP_TEST_ALWAYS      // push true
	OP_TEST_EQ          // pop lit, pop x, push bool(x == lit)
	OP_TEST_VARIANT     // u16 const (enum name), u16 const (variant name); pop x, push bool
	OP_TEST_STRUCT      // u16 const (type name); pop x, push bool
	OP_TEST_TUPLE_LEN   // u16 N; pop x, push bool
	OP_TEST_LIST_LEN    // u16 N; pop x, push bool
	OP_TEST_LIST_MINLEN // u16 N; pop x, push bool

	OP_EXTRACT_TUPLE_ELEM    // u16 index; pop x, push x.Elems[index]
	OP_EXTRACT_LIST_ELEM     // u16 index (encoded 2's complement; negative counts from end); pop x, push elem
	OP_EXTRACT_LIST_REST     // u16 fromIndex; pop x, push x[fromIndex:]
	OP_EXTRACT_VARIANT_ELEM  // u16 index; pop x, push x.Elems[index]
	OP_EXTRACT_VARIANT_FIELD // u16 const index (name); pop x, push x.Fields[name]
	OP_EXTRACT_STRUCT_FIELD  // u16 const index (name); pop x, push x.Fields[name]

	OP_MATCH_FAIL // no arm's test matched; internal/runtime raises a runtime error

	OP_HALT
)

// OpNames maps an Op to its disassembly mnemonic.
var OpNames = map[Op]string{
	OP_CONST: "CONST", OP_NIL: "NIL", OP_TRUE: "TRUE", OP_FALSE: "FALSE",
	OP_POP: "POP", OP_DUP: "DUP",

	OP_ADD: "ADD", OP_SUB: "SUB", OP_MUL: "MUL", OP_DIV: "DIV", OP_MOD: "MOD",
	OP_POW: "POW", OP_NEG: "NEG",

	OP_BAND: "BAND", OP_BOR: "BOR", OP_BXOR: "BXOR", OP_BNOT: "BNOT",
	OP_LSHIFT: "LSHIFT", OP_RSHIFT: "RSHIFT",

	OP_CONCAT: "CONCAT", OP_CONS: "CONS",

	OP_EQ: "EQ", OP_NE: "NE", OP_LT: "LT", OP_LE: "LE", OP_GT: "GT", OP_GE: "GE",

	OP_NOT: "NOT", OP_AND: "AND", OP_OR: "OR",

	OP_INTERP_CONCAT: "INTERP_CONCAT",

	OP_GET_LOCAL: "GET_LOCAL", OP_SET_LOCAL: "SET_LOCAL",
	OP_GET_UPVALUE: "GET_UPVALUE", OP_SET_UPVALUE: "SET_UPVALUE",
	OP_GET_ITEM: "GET_ITEM",

	OP_JUMP: "JUMP", OP_JUMP_IF_FALSE: "JUMP_IF_FALSE", OP_JUMP_IF_TRUE: "JUMP_IF_TRUE",
	OP_LOOP: "LOOP",

	OP_CALL: "CALL", OP_CALL_SPREAD: "CALL_SPREAD", OP_TAIL_CALL: "TAIL_CALL", OP_CALL_METHOD: "CALL_METHOD",
	OP_RETURN: "RETURN",

	OP_CLOSURE: "CLOSURE", OP_AWAIT: "AWAIT", OP_YIELD: "YIELD",

	OP_SPREAD_ARG: "SPREAD_ARG",
	OP_MAKE_VECTOR: "MAKE_VECTOR", OP_MAKE_TUPLE: "MAKE_TUPLE", OP_MAKE_MAP: "MAKE_MAP",
	OP_MAKE_OBJECT: "MAKE_OBJECT", OP_MAKE_VARIANT: "MAKE_VARIANT", OP_MAKE_RANGE: "MAKE_RANGE",

	OP_GET_FIELD: "GET_FIELD", OP_GET_FIELD_OPT: "GET_FIELD_OPT", OP_SET_FIELD: "SET_FIELD",
	OP_GET_INDEX: "GET_INDEX", OP_SET_INDEX: "SET_INDEX",

	OP_TRY: "TRY",

	OP_TEST_ALWAYS: "TEST_ALWAYS", OP_TEST_EQ: "TEST_EQ", OP_TEST_VARIANT: "TEST_VARIANT",
	OP_TEST_STRUCT: "TEST_STRUCT", OP_TEST_TUPLE_LEN: "TEST_TUPLE_LEN",
	OP_TEST_LIST_LEN: "TEST_LIST_LEN", OP_TEST_LIST_MINLEN: "TEST_LIST_MINLEN",

	OP_EXTRACT_TUPLE_ELEM: "EXTRACT_TUPLE_ELEM", OP_EXTRACT_LIST_ELEM: "EXTRACT_LIST_ELEM",
	OP_EXTRACT_LIST_REST: "EXTRACT_LIST_REST", OP_EXTRACT_VARIANT_ELEM: "EXTRACT_VARIANT_ELEM",
	OP_EXTRACT_VARIANT_FIELD: "EXTRACT_VARIANT_FIELD", OP_EXTRACT_STRUCT_FIELD: "EXTRACT_STRUCT_FIELD",

	OP_MATCH_FAIL: "MATCH_FAIL",

	OP_HALT: "HALT",
}

func (op Op) String() string {
	if n, ok := OpNames[op]; ok {
		return n
	}
	return "UNKNOWN"
}
