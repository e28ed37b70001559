// Package iterator implements RobinHood's iterator kernel and combinators
// (spec §4.I): a single generic shape standing in for the original's
// immutable/mutable distinction (Go's value semantics already give every
// Next() result to its caller; there is no shared backing reference to
// alias), plus Array, Chunkify, Tee, Chain, Constify and Ring/List adapters
// over the primitive containers.
package iterator

import "github.com/viant/robinhood/errs"

// Iterator yields a sequence of T. Next returns errs.ErrEndOfStream once
// exhausted (spec §4.I: "both signal end with an ENODATA sentinel, distinct
// from real I/O errors").
type Iterator[T any] interface {
	Next() (T, error)
}

// Closer is implemented by iterators that hold resources (a ring, an open
// file) needing explicit release.
type Closer interface {
	Close() error
}

// sliceIter adapts a finite, pre-materialized slice (spec §4.I:
// "array(buf, elem_size, count, free?): finite, non-restartable").
type sliceIter[T any] struct {
	items []T
	pos   int
	free  func(T)
}

// Array builds a finite, non-restartable Iterator over items. free, if
// non-nil, is called on each item as it is yielded; Go's GC makes this
// optional rather than load-bearing (unlike the C original, where it frees
// the backing allocation), so free may be nil.
func Array[T any](items []T, free func(T)) Iterator[T] {
	return &sliceIter[T]{items: items, free: free}
}

func (s *sliceIter[T]) Next() (T, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, errs.ErrEndOfStream
	}
	v := s.items[s.pos]
	s.pos++
	if s.free != nil {
		s.free(v)
	}
	return v, nil
}

// chainIter exhausts a, then b, with transparent ENODATA handling (spec
// §4.I: "chain(a, b): exhausts a, then b").
type chainIter[T any] struct {
	a, b Iterator[T]
	onB  bool
}

// Chain concatenates a and b into a single Iterator.
func Chain[T any](a, b Iterator[T]) Iterator[T] {
	return &chainIter[T]{a: a, b: b}
}

func (c *chainIter[T]) Next() (T, error) {
	if !c.onB {
		v, err := c.a.Next()
		if err == nil {
			return v, nil
		}
		if err != errs.ErrEndOfStream {
			var zero T
			return zero, err
		}
		c.onB = true
	}
	return c.b.Next()
}

func (c *chainIter[T]) Close() error {
	var firstErr error
	if cl, ok := c.a.(Closer); ok {
		firstErr = cl.Close()
	}
	if cl, ok := c.b.(Closer); ok {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// chunkInner is one of chunkIter's yielded inner iterators.
type chunkInner[T any] struct {
	inner    Iterator[T]
	remain   int
	buffered *T
	drained  bool
}

func (ci *chunkInner[T]) Next() (T, error) {
	var zero T
	if ci.buffered != nil {
		v := *ci.buffered
		ci.buffered = nil
		return v, nil
	}
	if ci.remain <= 0 {
		ci.drained = true
		return zero, errs.ErrEndOfStream
	}
	v, err := ci.inner.Next()
	if err != nil {
		ci.drained = true
		return zero, err
	}
	ci.remain--
	return v, nil
}

// chunkIter yields inner iterators each of up to n elements (spec §4.I:
// "chunkify(iter, n): yields inner iterators each of up to n elements;
// inner must be drained before outer advances").
type chunkIter[T any] struct {
	inner Iterator[T]
	n     int
	done  bool
	cur   *chunkInner[T]
}

// Chunkify groups inner's elements into inner iterators of up to n elements
// each. Callers must drain each yielded inner iterator before calling Next
// again on the outer one (spec §4.I); Chunkify drains a not-yet-empty
// previous inner itself rather than corrupting the underlying stream if a
// caller doesn't.
func Chunkify[T any](inner Iterator[T], n int) Iterator[Iterator[T]] {
	return &chunkIter[T]{inner: inner, n: n}
}

func (c *chunkIter[T]) Next() (Iterator[T], error) {
	if c.done {
		return nil, errs.ErrEndOfStream
	}
	if c.cur != nil && !c.cur.drained {
		for {
			if _, err := c.cur.Next(); err != nil {
				break
			}
		}
	}

	v, err := c.inner.Next()
	if err == errs.ErrEndOfStream {
		c.done = true
		return nil, errs.ErrEndOfStream
	}
	if err != nil {
		return nil, err
	}

	next := &chunkInner[T]{inner: c.inner, remain: c.n - 1, buffered: &v}
	c.cur = next
	return next, nil
}

// teeBuffer is the shared internal buffer between Tee's two outputs: items
// the faster side has consumed but the slower side has not yet (spec §4.I:
// "internal buffer holds items until both sides have consumed them —
// documented O(lag) memory").
type teeBuffer[T any] struct {
	inner Iterator[T]
	bufA  []T
	bufB  []T
	errA  error
	errB  error
}

func (t *teeBuffer[T]) pull() {
	v, err := t.inner.Next()
	if err != nil {
		t.errA, t.errB = err, err
		return
	}
	t.bufA = append(t.bufA, v)
	t.bufB = append(t.bufB, v)
}

type teeSide[T any] struct {
	shared *teeBuffer[T]
	isA    bool
}

func (s *teeSide[T]) Next() (T, error) {
	var zero T
	buf := &s.shared.bufA
	errP := &s.shared.errA
	if !s.isA {
		buf = &s.shared.bufB
		errP = &s.shared.errB
	}
	for len(*buf) == 0 {
		if *errP != nil {
			return zero, *errP
		}
		s.shared.pull()
	}
	v := (*buf)[0]
	*buf = (*buf)[1:]
	return v, nil
}

// Tee clones inner into two independent iterators, each seeing inner's full
// sequence (spec §4.I: "tee(iter): clones into 2 independent iterators").
func Tee[T any](inner Iterator[T]) (Iterator[T], Iterator[T]) {
	shared := &teeBuffer[T]{inner: inner}
	return &teeSide[T]{shared: shared, isA: true}, &teeSide[T]{shared: shared, isA: false}
}

// constifyIter views a mutable (owned-item) iterator as one that keeps
// ownership of the last-yielded element inside the wrapper until the next
// Next() call (spec §4.I: "constify(mut_iter): views a mutable iterator as
// immutable by keeping ownership of the last-yielded element inside the
// wrapper"). In Go this changes nothing observable — every Next() result is
// already a value the caller owns — so constifyIter is a type-level marker
// kept for symmetry with the spec's two iterator shapes.
type constifyIter[T any] struct {
	inner Iterator[T]
	last  *T
}

// Constify wraps inner, explicitly documenting at the call site that the
// result is being treated as a view rather than a stream of owned values.
func Constify[T any](inner Iterator[T]) Iterator[T] {
	return &constifyIter[T]{inner: inner}
}

func (c *constifyIter[T]) Next() (T, error) {
	v, err := c.inner.Next()
	if err != nil {
		var zero T
		return zero, err
	}
	c.last = &v
	return v, nil
}

// Collect drains it into a slice. Intended for tests and small, bounded
// sequences; pipeline code should consume iterators incrementally instead.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for {
		v, err := it.Next()
		if err == errs.ErrEndOfStream {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
