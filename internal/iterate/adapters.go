package iterate

import "github.com/weave-lang/weave/internal/value"

// mapSource applies fn to each upstream element lazily, one call per
// pull, via the injected Caller rather than importing internal/runtime.
type mapSource struct {
	upstream Source
	fn       value.Value
	call     Caller
}

func (s *mapSource) Next() (value.Value, bool, error) {
	v, ok, err := s.upstream.Next()
	if err != nil || !ok {
		return value.Nil(), false, err
	}
	out, err := s.call.CallValue(s.fn, []value.Value{v})
	if err != nil {
		return value.Nil(), false, err
	}
	return out, true, nil
}

// Map returns a new Iterator lazily transforming each element of it.
func (it *Iterator) Map(call Caller, fn value.Value) *Iterator {
	return New(&mapSource{upstream: it.Source, fn: fn, call: call})
}

// filterSource pulls upstream repeatedly, skipping elements the
// predicate rejects, until it finds one that passes or upstream is
// exhausted.
type filterSource struct {
	upstream Source
	pred     value.Value
	call     Caller
}

func (s *filterSource) Next() (value.Value, bool, error) {
	for {
		v, ok, err := s.upstream.Next()
		if err != nil || !ok {
			return value.Nil(), false, err
		}
		keep, err := s.call.CallValue(s.pred, []value.Value{v})
		if err != nil {
			return value.Nil(), false, err
		}
		if keep.Truthy() {
			return v, true, nil
		}
	}
}

func (it *Iterator) Filter(call Caller, pred value.Value) *Iterator {
	return New(&filterSource{upstream: it.Source, pred: pred, call: call})
}

// enumerateSource pairs each element with its zero-based index as a
// Tuple(index, value).
type enumerateSource struct {
	upstream Source
	idx      int64
}

func (s *enumerateSource) Next() (value.Value, bool, error) {
	v, ok, err := s.upstream.Next()
	if err != nil || !ok {
		return value.Nil(), false, err
	}
	tup := value.NewTuple([]value.Value{value.Int(s.idx), v})
	s.idx++
	return value.FromObject(tup), true, nil
}

func (it *Iterator) Enumerate() *Iterator {
	return New(&enumerateSource{upstream: it.Source})
}

// takeSource yields at most n elements then reports exhaustion, even if
// upstream has more (upstream is never pulled again past the nth take).
type takeSource struct {
	upstream Source
	remain   int64
}

func (s *takeSource) Next() (value.Value, bool, error) {
	if s.remain <= 0 {
		return value.Nil(), false, nil
	}
	v, ok, err := s.upstream.Next()
	if err != nil || !ok {
		s.remain = 0
		return value.Nil(), false, err
	}
	s.remain--
	return v, true, nil
}

func (it *Iterator) Take(n int64) *Iterator {
	return New(&takeSource{upstream: it.Source, remain: n})
}

// skipSource discards the first n upstream elements once, lazily, on
// the first Next call rather than eagerly at construction time.
type skipSource struct {
	upstream Source
	remain   int64
	skipped  bool
}

func (s *skipSource) Next() (value.Value, bool, error) {
	if !s.skipped {
		s.skipped = true
		for i := int64(0); i < s.remain; i++ {
			if _, ok, err := s.upstream.Next(); err != nil || !ok {
				return value.Nil(), false, err
			}
		}
	}
	return s.upstream.Next()
}

func (it *Iterator) Skip(n int64) *Iterator {
	return New(&skipSource{upstream: it.Source, remain: n})
}

// chainSource exhausts first entirely before pulling from second.
type chainSource struct {
	first, second Source
	onSecond      bool
}

func (s *chainSource) Next() (value.Value, bool, error) {
	if !s.onSecond {
		v, ok, err := s.first.Next()
		if err != nil {
			return value.Nil(), false, err
		}
		if ok {
			return v, true, nil
		}
		s.onSecond = true
	}
	return s.second.Next()
}

func (it *Iterator) Chain(other *Iterator) *Iterator {
	return New(&chainSource{first: it.Source, second: other.Source})
}

// zipSource pairs elements from two iterators, stopping as soon as
// either is exhausted (the standard shorter-wins convention).
type zipSource struct {
	a, b Source
}

func (s *zipSource) Next() (value.Value, bool, error) {
	av, aok, err := s.a.Next()
	if err != nil || !aok {
		return value.Nil(), false, err
	}
	bv, bok, err := s.b.Next()
	if err != nil || !bok {
		return value.Nil(), false, err
	}
	return value.FromObject(value.NewTuple([]value.Value{av, bv})), true, nil
}

func (it *Iterator) Zip(other *Iterator) *Iterator {
	return New(&zipSource{a: it.Source, b: other.Source})
}

// Rev materializes the remaining elements and replays them back to
// front: reversal is inherently not lazy (the last element can't be
// known without exhausting everything before it), so this is the one
// adapter that forces its upstream, same as every other iterator
// library's `rev`.
func (it *Iterator) Rev() (*Iterator, error) {
	var elems []value.Value
	for {
		v, ok, err := it.Source.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		elems = append(elems, v)
	}
	rev := make([]value.Value, len(elems))
	for i, v := range elems {
		rev[len(elems)-1-i] = v
	}
	return New(&sliceSource{elems: rev}), nil
}
