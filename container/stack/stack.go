// Package stack implements a single fixed-size LIFO byte buffer (spec
// §4.J), used as recursion-less traversal scratch space and as the building
// block for package sstack's segmented arena.
package stack

import (
	"fmt"

	"github.com/viant/robinhood/errs"
)

// Stack is a fixed-capacity LIFO byte buffer.
type Stack struct {
	buf []byte
	top int
}

// New allocates a Stack with the given capacity in bytes.
func New(capacity int) (*Stack, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: stack capacity must be positive", errs.ErrInvalid)
	}
	return &Stack{buf: make([]byte, capacity)}, nil
}

// Cap reports the stack's total capacity in bytes.
func (s *Stack) Cap() int { return len(s.buf) }

// Len reports how many bytes are currently pushed.
func (s *Stack) Len() int { return s.top }

// Free reports how many bytes of unused capacity remain.
func (s *Stack) Free() int { return len(s.buf) - s.top }

// Push copies data onto the top of the stack, returning the slice it was
// written to. Returns errs.ErrResource if data does not fit.
func (s *Stack) Push(data []byte) ([]byte, error) {
	if len(data) > s.Free() {
		return nil, fmt.Errorf("%w: stack has %d bytes free, need %d", errs.ErrResource, s.Free(), len(data))
	}
	dst := s.buf[s.top : s.top+len(data)]
	copy(dst, data)
	s.top += len(data)
	return dst, nil
}

// Pop removes n bytes from the top of the stack. Returns errs.ErrInvalid if
// n exceeds the current length.
func (s *Stack) Pop(n int) error {
	if n > s.top {
		return fmt.Errorf("%w: pop of %d bytes exceeds %d pushed", errs.ErrInvalid, n, s.top)
	}
	s.top -= n
	return nil
}

// Top returns the slice of currently pushed bytes, in push order (the
// bottom of the stack first). The returned slice aliases internal storage.
func (s *Stack) Top() []byte { return s.buf[:s.top] }

// Reset empties the stack without releasing its backing buffer.
func (s *Stack) Reset() { s.top = 0 }
