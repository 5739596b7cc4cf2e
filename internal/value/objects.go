package value

import (
	"hash/fnv"
	"strings"
)

// String is an immutable UTF-8 scalar sequence; equality, ordering, and
// hashing are rune-based, distinct from Bytes below.
type String struct{ S string }

func NewString(s string) *String { return &String{S: s} }
func (s *String) TypeName() string { return "String" }
func (s *String) Inspect() string  { return "\"" + s.S + "\"" }
func (s *String) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(s.S))
	return h.Sum64()
}
func (s *String) Equal(o Object) bool {
	other, ok := o.(*String)
	return ok && other.S == s.S
}

// Bytes is an immutable byte string backing byte literals; equality is
// raw byte comparison, never rune-aware.
type Bytes struct{ B []byte }

func NewBytes(b []byte) *Bytes  { return &Bytes{B: b} }
func (b *Bytes) TypeName() string { return "Bytes" }
func (b *Bytes) Inspect() string  { return "b\"" + string(b.B) + "\"" }
func (b *Bytes) Hash() uint64 {
	h := fnv.New64a()
	h.Write(b.B)
	return h.Sum64()
}
func (b *Bytes) Equal(o Object) bool {
	other, ok := o.(*Bytes)
	if !ok || len(other.B) != len(b.B) {
		return false
	}
	for i := range b.B {
		if b.B[i] != other.B[i] {
			return false
		}
	}
	return true
}

// Range is a lazily-iterated integer range: start..end or start..=end.
type Range struct {
	Start, End int64
	Inclusive  bool
}

func (r *Range) TypeName() string { return "Range" }
func (r *Range) Inspect() string {
	op := ".."
	if r.Inclusive {
		op = "..="
	}
	return itoa(r.Start) + op + itoa(r.End)
}
func (r *Range) Hash() uint64 { return uint64(r.Start)<<32 ^ uint64(r.End) }
func (r *Range) Equal(o Object) bool {
	other, ok := o.(*Range)
	return ok && *other == *r
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Vector is a mutable, growable, ordered sequence.
type Vector struct{ Elems []Value }

func NewVector(elems []Value) *Vector { return &Vector{Elems: elems} }
func (v *Vector) TypeName() string    { return "Vector" }
func (v *Vector) Inspect() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (v *Vector) Hash() uint64 {
	h := uint64(14695981039346656037)
	for _, e := range v.Elems {
		h = (h ^ e.Hash()) * 1099511628211
	}
	return h
}
func (v *Vector) Equal(o Object) bool {
	other, ok := o.(*Vector)
	if !ok || len(other.Elems) != len(v.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	return true
}

// mapEntry preserves insertion order for OrderedMap.
type mapEntry struct {
	Key, Val Value
}

// OrderedMap backs both the `map` value and plain object literals; a
// Go map keyed by Value.Hash() gives O(1) lookup while a parallel
// slice keeps insertion order for iteration. Mutation is in place;
// map values are not persistent.
type OrderedMap struct {
	order []mapEntry
	index map[uint64][]int
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{index: make(map[uint64][]int)}
}

func (m *OrderedMap) findIndex(k Value) int {
	for _, i := range m.index[k.Hash()] {
		if m.order[i].Key.Equal(k) {
			return i
		}
	}
	return -1
}

func (m *OrderedMap) Get(k Value) (Value, bool) {
	i := m.findIndex(k)
	if i < 0 {
		return Nil(), false
	}
	return m.order[i].Val, true
}

func (m *OrderedMap) Set(k, v Value) {
	if i := m.findIndex(k); i >= 0 {
		m.order[i].Val = v
		return
	}
	i := len(m.order)
	m.order = append(m.order, mapEntry{Key: k, Val: v})
	h := k.Hash()
	m.index[h] = append(m.index[h], i)
}

func (m *OrderedMap) Delete(k Value) bool {
	i := m.findIndex(k)
	if i < 0 {
		return false
	}
	m.order = append(m.order[:i], m.order[i+1:]...)
	m.index = make(map[uint64][]int, len(m.order))
	for j, e := range m.order {
		h := e.Key.Hash()
		m.index[h] = append(m.index[h], j)
	}
	return true
}

func (m *OrderedMap) Len() int { return len(m.order) }

func (m *OrderedMap) Each(fn func(k, v Value)) {
	for _, e := range m.order {
		fn(e.Key, e.Val)
	}
}

func (m *OrderedMap) TypeName() string { return "Map" }
func (m *OrderedMap) Inspect() string {
	parts := make([]string, len(m.order))
	for i, e := range m.order {
		parts[i] = e.Key.Inspect() + ": " + e.Val.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (m *OrderedMap) Hash() uint64 {
	h := uint64(14695981039346656037)
	for _, e := range m.order {
		h = (h ^ e.Key.Hash() ^ e.Val.Hash()) * 1099511628211
	}
	return h
}
func (m *OrderedMap) Equal(o Object) bool {
	other, ok := o.(*OrderedMap)
	if !ok || other.Len() != m.Len() {
		return false
	}
	for _, e := range m.order {
		ov, found := other.Get(e.Key)
		if !found || !ov.Equal(e.Val) {
			return false
		}
	}
	return true
}

// Tuple is a fixed-arity heterogeneous sequence.
type Tuple struct{ Elems []Value }

func NewTuple(elems []Value) *Tuple { return &Tuple{Elems: elems} }
func (t *Tuple) TypeName() string   { return "Tuple" }
func (t *Tuple) Inspect() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.Inspect()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *Tuple) Hash() uint64 {
	h := uint64(14695981039346656037)
	for _, e := range t.Elems {
		h = (h ^ e.Hash()) * 1099511628211
	}
	return h
}
func (t *Tuple) Equal(o Object) bool {
	other, ok := o.(*Tuple)
	if !ok || len(other.Elems) != len(t.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	return true
}

// StructInstance is a value of a user-declared struct type: a fixed,
// named field set, distinguished from OrderedMap (which
// allows arbitrary keys) by carrying a TypeName for method dispatch.
type StructInstance struct {
	TypeNameStr string
	Fields      *OrderedMap
}

func NewStruct(typeName string) *StructInstance {
	return &StructInstance{TypeNameStr: typeName, Fields: NewOrderedMap()}
}
func (s *StructInstance) TypeName() string { return s.TypeNameStr }
func (s *StructInstance) Inspect() string {
	var b strings.Builder
	b.WriteString(s.TypeNameStr)
	b.WriteString(" { ")
	first := true
	s.Fields.Each(func(k, v Value) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(k.Inspect())
		b.WriteString(": ")
		b.WriteString(v.Inspect())
	})
	b.WriteString(" }")
	return b.String()
}
func (s *StructInstance) Hash() uint64 { return s.Fields.Hash() }
func (s *StructInstance) Equal(o Object) bool {
	other, ok := o.(*StructInstance)
	return ok && other.TypeNameStr == s.TypeNameStr && other.Fields.Equal(s.Fields)
}

// VariantInstance is an enum case with its payload: either
// a positional tuple payload or a named-field payload, never both.
type VariantInstance struct {
	EnumName  string
	Variant   string
	Elems     []Value
	Fields    *OrderedMap
}

func (v *VariantInstance) TypeName() string { return v.EnumName }
func (v *VariantInstance) Inspect() string {
	if v.Fields != nil {
		return v.EnumName + "::" + v.Variant + " " + v.Fields.Inspect()
	}
	if len(v.Elems) == 0 {
		return v.EnumName + "::" + v.Variant
	}
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return v.EnumName + "::" + v.Variant + "(" + strings.Join(parts, ", ") + ")"
}
func (v *VariantInstance) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(v.EnumName + "::" + v.Variant))
	sum := h.Sum64()
	for _, e := range v.Elems {
		sum = (sum ^ e.Hash()) * 1099511628211
	}
	return sum
}
func (v *VariantInstance) Equal(o Object) bool {
	other, ok := o.(*VariantInstance)
	if !ok || other.EnumName != v.EnumName || other.Variant != v.Variant {
		return false
	}
	if len(other.Elems) != len(v.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	if (v.Fields == nil) != (other.Fields == nil) {
		return false
	}
	if v.Fields != nil {
		return v.Fields.Equal(other.Fields)
	}
	return true
}
