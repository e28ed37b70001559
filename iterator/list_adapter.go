package iterator

import "github.com/viant/robinhood/errs"

// Node is a singly-linked list cell, the Go rendition of the original's
// `offset`-addressed intrusive list node (spec §4.I: "list(head, offset,
// free?): adapt the primitive containers"). Go has no pointer-to-member
// arithmetic, so List walks an explicit Node chain instead of an
// embedded-field offset.
type Node[T any] struct {
	Value T
	Next  *Node[T]
}

// listIter adapts a Node chain into an Iterator.
type listIter[T any] struct {
	cur  *Node[T]
	free func(T)
}

// List builds an Iterator walking the Node chain starting at head. free, if
// non-nil, is called on each yielded value.
func List[T any](head *Node[T], free func(T)) Iterator[T] {
	return &listIter[T]{cur: head, free: free}
}

func (l *listIter[T]) Next() (T, error) {
	var zero T
	if l.cur == nil {
		return zero, errs.ErrEndOfStream
	}
	v := l.cur.Value
	l.cur = l.cur.Next
	if l.free != nil {
		l.free(v)
	}
	return v, nil
}
