package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/weave-lang/weave/internal/typesystem"
	"github.com/weave-lang/weave/internal/value"
)

// Persisted bytecode format: magic "WVBC", a version
// word, then length-prefixed sections for the function table, the type
// table, and the entry/const-item indexes, each function's instruction
// stream and constant pool encoded inline. An explicit versioned
// binary layout rather than gob: gob ties a decoder to the exact Go
// struct shape that encoded it, which is the wrong contract for a
// stable on-disk artifact that internal/modreg's unit cache keys
// store/lookups on across process restarts and builds.
const (
	wvbcMagic   = "WVBC"
	wvbcVersion = uint32(1)
)

// Encode serializes u into the WVBC format. u.BuildID is stamped with
// a fresh github.com/google/uuid value if empty, giving every encoded
// unit a distinct build identity.
func Encode(u *Unit) []byte {
	if u.BuildID == "" {
		u.BuildID = uuid.NewString()
	}
	var buf bytes.Buffer
	buf.WriteString(wvbcMagic)
	writeU32(&buf, wvbcVersion)
	writeString(&buf, u.BuildID)
	writeString(&buf, u.SourceFile)

	writeU32(&buf, uint32(len(u.Functions)))
	for _, fn := range u.Functions {
		encodeProto(&buf, fn)
	}

	writeU32(&buf, uint32(len(u.EntryItems)))
	for hash, idx := range u.EntryItems {
		writeU64(&buf, hash)
		writeU32(&buf, uint32(idx))
	}

	writeU32(&buf, uint32(len(u.ConstThunks)))
	for hash, fn := range u.ConstThunks {
		writeU64(&buf, hash)
		encodeProto(&buf, fn)
	}

	encodeTypeTable(&buf, u.Structs, u.Enums)

	writeU32(&buf, uint32(len(u.Tests)))
	for _, t := range u.Tests {
		writeString(&buf, t)
	}
	writeU32(&buf, uint32(len(u.Benches)))
	for _, b := range u.Benches {
		writeString(&buf, b)
	}

	return buf.Bytes()
}

// Decode reverses Encode, reconstructing every *Chunk from its encoded
// Code/Lines/Constants rather than sharing any memory with the Unit that
// produced the bytes — the point of persisting bytecode at all is to load
// it in a process that never ran the compiler.
func Decode(data []byte) (*Unit, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != wvbcMagic {
		return nil, fmt.Errorf("bytecode: not a WVBC unit (bad magic)")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != wvbcVersion {
		return nil, fmt.Errorf("bytecode: unsupported WVBC version %d (want %d)", version, wvbcVersion)
	}

	u := NewUnit()
	if u.BuildID, err = readString(r); err != nil {
		return nil, err
	}
	if u.SourceFile, err = readString(r); err != nil {
		return nil, err
	}

	fnCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	u.Functions = make([]*value.FunctionProto, fnCount)
	for i := range u.Functions {
		proto, err := decodeProto(r)
		if err != nil {
			return nil, err
		}
		u.Functions[i] = proto
	}

	entryCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < entryCount; i++ {
		hash, err := readU64(r)
		if err != nil {
			return nil, err
		}
		idx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		u.EntryItems[hash] = int(idx)
	}

	constCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < constCount; i++ {
		hash, err := readU64(r)
		if err != nil {
			return nil, err
		}
		proto, err := decodeProto(r)
		if err != nil {
			return nil, err
		}
		u.ConstThunks[hash] = proto
	}

	if err := decodeTypeTable(r, u); err != nil {
		return nil, err
	}

	testCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < testCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		u.Tests = append(u.Tests, name)
	}
	benchCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < benchCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		u.Benches = append(u.Benches, name)
	}

	return u, nil
}

func encodeProto(buf *bytes.Buffer, fn *value.FunctionProto) {
	writeString(buf, fn.Name)
	writeU32(buf, uint32(fn.Arity))
	writeU32(buf, uint32(fn.RequiredArity))
	writeBool(buf, fn.Variadic)
	writeU32(buf, uint32(fn.LocalCount))
	writeU32(buf, uint32(fn.UpvalueCount))
	writeBool(buf, fn.Async)
	writeBool(buf, fn.Generator)
	encodeChunk(buf, fn.Chunk.(*Chunk))

	writeU32(buf, uint32(len(fn.DefaultChunks)))
	for _, d := range fn.DefaultChunks {
		dp := d.(*value.FunctionProto)
		writeString(buf, dp.Name)
		writeU32(buf, uint32(dp.LocalCount))
		encodeChunk(buf, dp.Chunk.(*Chunk))
	}
}

func decodeProto(r *bytes.Reader) (*value.FunctionProto, error) {
	proto := &value.FunctionProto{}
	var err error
	if proto.Name, err = readString(r); err != nil {
		return nil, err
	}
	arity, err := readU32(r)
	if err != nil {
		return nil, err
	}
	proto.Arity = int(arity)
	reqArity, err := readU32(r)
	if err != nil {
		return nil, err
	}
	proto.RequiredArity = int(reqArity)
	if proto.Variadic, err = readBool(r); err != nil {
		return nil, err
	}
	localCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	proto.LocalCount = int(localCount)
	upvalCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	proto.UpvalueCount = int(upvalCount)
	if proto.Async, err = readBool(r); err != nil {
		return nil, err
	}
	if proto.Generator, err = readBool(r); err != nil {
		return nil, err
	}
	chunk, err := decodeChunk(r)
	if err != nil {
		return nil, err
	}
	proto.Chunk = chunk

	defCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < defCount; i++ {
		dp := &value.FunctionProto{}
		if dp.Name, err = readString(r); err != nil {
			return nil, err
		}
		dLocalCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		dp.LocalCount = int(dLocalCount)
		dChunk, err := decodeChunk(r)
		if err != nil {
			return nil, err
		}
		dp.Chunk = dChunk
		proto.DefaultChunks = append(proto.DefaultChunks, dp)
	}
	return proto, nil
}

// constKind tags a constant pool entry's encoding; only the Value kinds
// the assembler ever interns (internal/bytecode/assemble.go's
// constIndex/strConst call sites: int/float/char/byte/string literals,
// plus an Int holding an item hash) are supported — anything else
// reaching here is an assembler bug, not a format limitation.
type constKind byte

const (
	ckInt constKind = iota
	ckFloat
	ckChar
	ckByte
	ckString
)

func encodeChunk(buf *bytes.Buffer, c *Chunk) {
	writeU32(buf, uint32(len(c.Code)))
	buf.Write(c.Code)
	writeU32(buf, uint32(len(c.Lines)))
	for _, ln := range c.Lines {
		writeU32(buf, uint32(ln))
	}
	writeU32(buf, uint32(len(c.Constants)))
	for _, v := range c.Constants {
		switch v.Kind {
		case value.KInt:
			buf.WriteByte(byte(ckInt))
			writeU64(buf, uint64(v.AsInt()))
		case value.KFloat:
			buf.WriteByte(byte(ckFloat))
			writeU64(buf, v.Data)
		case value.KChar:
			buf.WriteByte(byte(ckChar))
			writeU32(buf, uint32(v.AsChar()))
		case value.KByte:
			buf.WriteByte(byte(ckByte))
			buf.WriteByte(v.AsByte())
		case value.KObj:
			s, ok := v.Obj.(*value.String)
			if !ok {
				panic(fmt.Sprintf("bytecode: unencodable constant object type %s", v.TypeName()))
			}
			buf.WriteByte(byte(ckString))
			writeString(buf, s.S)
		default:
			panic(fmt.Sprintf("bytecode: unencodable constant kind %v", v.Kind))
		}
	}
}

func decodeChunk(r *bytes.Reader) (*Chunk, error) {
	c := NewChunk()
	codeLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Code = make([]byte, codeLen)
	if _, err := io.ReadFull(r, c.Code); err != nil {
		return nil, err
	}
	lineCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Lines = make([]int, lineCount)
	for i := range c.Lines {
		ln, err := readU32(r)
		if err != nil {
			return nil, err
		}
		c.Lines[i] = int(ln)
	}
	constCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c.Constants = make([]value.Value, constCount)
	for i := range c.Constants {
		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch constKind(kindByte) {
		case ckInt:
			n, err := readU64(r)
			if err != nil {
				return nil, err
			}
			c.Constants[i] = value.Int(int64(n))
		case ckFloat:
			n, err := readU64(r)
			if err != nil {
				return nil, err
			}
			c.Constants[i] = value.Value{Kind: value.KFloat, Data: n}
		case ckChar:
			n, err := readU32(r)
			if err != nil {
				return nil, err
			}
			c.Constants[i] = value.Char(rune(n))
		case ckByte:
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			c.Constants[i] = value.Byte(b)
		case ckString:
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			c.Constants[i] = value.Str(s)
		default:
			return nil, fmt.Errorf("bytecode: unknown constant kind byte %d", kindByte)
		}
	}
	return c, nil
}

func encodeTypeTable(buf *bytes.Buffer, structs map[string]*typesystem.StructShape, enums map[string]*typesystem.EnumShape) {
	writeU32(buf, uint32(len(structs)))
	for name, shape := range structs {
		writeString(buf, name)
		writeU32(buf, uint32(len(shape.FieldOrder)))
		for _, f := range shape.FieldOrder {
			writeString(buf, f)
		}
	}
	writeU32(buf, uint32(len(enums)))
	for name, shape := range enums {
		writeString(buf, name)
		writeU32(buf, uint32(len(shape.Variants)))
		for _, v := range shape.Variants {
			writeString(buf, v.Name)
			writeU32(buf, uint32(int32(v.TupleArity)))
			writeU32(buf, uint32(len(v.Fields)))
			for _, f := range v.Fields {
				writeString(buf, f)
			}
		}
	}
}

func decodeTypeTable(r *bytes.Reader, u *Unit) error {
	structCount, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < structCount; i++ {
		name, err := readString(r)
		if err != nil {
			return err
		}
		shape := &typesystem.StructShape{Name: name, Fields: map[string]*typesystem.Type{}}
		fieldCount, err := readU32(r)
		if err != nil {
			return err
		}
		shape.FieldOrder = make([]string, fieldCount)
		for j := range shape.FieldOrder {
			if shape.FieldOrder[j], err = readString(r); err != nil {
				return err
			}
		}
		u.Structs[name] = shape
	}

	enumCount, err := readU32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < enumCount; i++ {
		name, err := readString(r)
		if err != nil {
			return err
		}
		shape := &typesystem.EnumShape{Name: name, Variants: map[string]*typesystem.VariantShape{}}
		variantCount, err := readU32(r)
		if err != nil {
			return err
		}
		for j := uint32(0); j < variantCount; j++ {
			vName, err := readString(r)
			if err != nil {
				return err
			}
			tupleArity, err := readU32(r)
			if err != nil {
				return err
			}
			fieldCount, err := readU32(r)
			if err != nil {
				return err
			}
			fields := make([]string, fieldCount)
			for k := range fields {
				if fields[k], err = readString(r); err != nil {
					return err
				}
			}
			shape.Variants[vName] = &typesystem.VariantShape{
				Name:       vName,
				TupleArity: int(int32(tupleArity)),
				Fields:     fields,
			}
		}
		u.Enums[name] = shape
	}
	return nil
}

func writeU32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, n uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	buf.Write(b[:])
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	return b == 1, err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
