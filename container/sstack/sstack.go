// Package sstack implements RobinHood's segmented-stack arena allocator
// (spec §4.J): a sequence of fixed-size container/stack chunks that grows by
// appending a new chunk rather than reallocating. It is a standalone
// container: the data model's Clone methods copy field by field and do not
// allocate from it.
package sstack

import (
	"fmt"

	"github.com/viant/robinhood/container/stack"
	"github.com/viant/robinhood/errs"
)

// maxAlign is the alignment every Alloc reservation is rounded up to (spec
// §4.J: "alloc(n) rounds up to max-align"), matching the widest scalar this
// module's data model ever stores (uint64).
const maxAlign = 8

// Sstack is a growable arena backed by a sequence of fixed-size stacks.
type Sstack struct {
	chunkSize int
	chunks    []*stack.Stack
}

// New builds an Sstack whose chunks are each chunkSize bytes.
func New(chunkSize int) (*Sstack, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: sstack chunk size must be positive", errs.ErrInvalid)
	}
	return &Sstack{chunkSize: chunkSize}, nil
}

func alignUp(n int) int {
	return (n + maxAlign - 1) &^ (maxAlign - 1)
}

// Alloc reserves n bytes (rounded up to max-align) and returns the slice
// reserved, which is zeroed. Grows by appending a new chunk when the current
// tail chunk has no room; a single allocation larger than chunkSize gets its
// own dedicated, oversized chunk.
func (s *Sstack) Alloc(n int) []byte {
	size := alignUp(n)

	if len(s.chunks) > 0 {
		tail := s.chunks[len(s.chunks)-1]
		if tail.Free() >= size {
			b, _ := tail.Push(make([]byte, size))
			return b[:n]
		}
	}

	chunkCap := s.chunkSize
	if size > chunkCap {
		chunkCap = size
	}
	tail, _ := stack.New(chunkCap)
	s.chunks = append(s.chunks, tail)
	b, _ := tail.Push(make([]byte, size))
	return b[:n]
}

// Strdup pushes a copy of s (no trailing NUL; Go strings are not
// NUL-terminated) and returns the copy.
func (s *Sstack) Strdup(str string) []byte {
	b := s.Alloc(len(str))
	copy(b, str)
	return b
}

// Strndup pushes at most n bytes of str.
func (s *Sstack) Strndup(str string, n int) []byte {
	if n < len(str) {
		str = str[:n]
	}
	return s.Strdup(str)
}

// PopAll resets every chunk to empty without releasing their backing
// buffers (spec §4.J: "pop_all resets").
func (s *Sstack) PopAll() {
	for _, c := range s.chunks {
		c.Reset()
	}
}

// Shrink drops every chunk after the first that is currently empty,
// returning their backing memory to the garbage collector (spec §4.J:
// "shrink drops unused chunks").
func (s *Sstack) Shrink() {
	kept := s.chunks[:0]
	for i, c := range s.chunks {
		if i > 0 && c.Len() == 0 {
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
}

// NumChunks reports how many chunks currently back the arena, for tests and
// diagnostics.
func (s *Sstack) NumChunks() int { return len(s.chunks) }
