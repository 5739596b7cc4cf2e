// Package iterate implements the into_iter/next protocol: an Iterator
// is an ordinary Weave value (so it can be bound, passed, and returned
// like any other) backed by a Go Source that pulls one element at a
// time. Adapters wrap one Source in another, so a chain stays lazy
// until something drains it.
package iterate

import (
	"fmt"

	"github.com/weave-lang/weave/internal/value"
)

// Caller lets an adapter invoke a Weave closure (the predicate passed to
// Map/Filter, for instance) without this package importing
// internal/runtime, which would create runtime -> iterate -> runtime.
// internal/runtime's VM implements this by wrapping its own callValue.
type Caller interface {
	CallValue(fn value.Value, args []value.Value) (value.Value, error)
}

// Source is the minimal producer every concrete iterator and adapter
// implements: Next returns the next element, or ok=false once exhausted.
// A non-nil error aborts iteration immediately (e.g. a Map callback's
// closure itself erroring).
type Source interface {
	Next() (value.Value, bool, error)
}

// Iterator is the Weave-visible value wrapping a Source. It has no
// structural identity beyond its Source, so Equal/Hash fall back to
// pointer identity like every other heap-only object in internal/value.
type Iterator struct {
	Source Source
}

func New(src Source) *Iterator { return &Iterator{Source: src} }

func (it *Iterator) TypeName() string { return "Iterator" }
func (it *Iterator) Inspect() string  { return "<iterator>" }
func (it *Iterator) Hash() uint64 {
	h := fmt.Sprintf("%p", it)
	var sum uint64 = 14695981039346656037
	for i := 0; i < len(h); i++ {
		sum ^= uint64(h[i])
		sum *= 1099511628211
	}
	return sum
}
func (it *Iterator) Equal(o value.Object) bool {
	other, ok := o.(*Iterator)
	return ok && other == it
}

// Next pulls one element and wraps it as Option::Some(value)/
// Option::None, the same VariantInstance shape internal/hir's lowerFor
// pattern-matches against.
func (it *Iterator) Next() (value.Value, error) {
	v, ok, err := it.Source.Next()
	if err != nil {
		return value.Nil(), err
	}
	if !ok {
		return value.FromObject(&value.VariantInstance{EnumName: "Option", Variant: "None"}), nil
	}
	return value.FromObject(&value.VariantInstance{EnumName: "Option", Variant: "Some", Elems: []value.Value{v}}), nil
}

// IntoIter implements the into_iter protocol on an Iterator itself:
// an iterator is already its own canonical producer, so `for x in it`
// over an already-built Iterator (e.g. one returned by .map(...)) is a
// no-op conversion, matching every adapter-chaining language's
// convention that IntoIterator is idempotent on Iterator.
func (it *Iterator) IntoIter() *Iterator { return it }

// Collect drains the iterator into a Vector, the one adapter that is
// not itself lazy.
func (it *Iterator) Collect() (*value.Vector, error) {
	var elems []value.Value
	for {
		v, ok, err := it.Source.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return value.NewVector(elems), nil
		}
		elems = append(elems, v)
	}
}

// sliceSource is the Source for any already-materialized sequence
// (Vector, Tuple, String's chars, OrderedMap's entries): it copies the
// backing slice once at construction so later mutation of the original
// composite does not retroactively change an in-flight iteration.
// Iterator invalidation should be detectable, not silently observed;
// the borrow-counter half of that discipline is not wired yet (see
// internal/runtime/ops.go's setField note).
type sliceSource struct {
	elems []value.Value
	pos   int
}

func (s *sliceSource) Next() (value.Value, bool, error) {
	if s.pos >= len(s.elems) {
		return value.Nil(), false, nil
	}
	v := s.elems[s.pos]
	s.pos++
	return v, true, nil
}

// FromSlice builds an Iterator over an already-collected sequence of
// values (Vector.into_iter, Tuple.into_iter, OrderedMap.into_iter's
// (key, value) tuples, String.into_iter's chars).
func FromSlice(elems []value.Value) *Iterator {
	cp := make([]value.Value, len(elems))
	copy(cp, elems)
	return New(&sliceSource{elems: cp})
}

// rangeSource generates Int values lazily rather than materializing the
// whole span up front, the one place this package's laziness is not
// just a formality: a Range over a huge span must not force an
// allocation proportional to its length just to be iterated.
type rangeSource struct {
	cur, end int64
	done     bool
}

func FromRange(start, end int64, inclusive bool) *Iterator {
	if inclusive {
		end++
	}
	return New(&rangeSource{cur: start, end: end})
}

func (s *rangeSource) Next() (value.Value, bool, error) {
	if s.done || s.cur >= s.end {
		s.done = true
		return value.Nil(), false, nil
	}
	v := value.Int(s.cur)
	s.cur++
	return v, true, nil
}
