// Package queue implements RobinHood's growable ring-of-rings FIFO (spec
// §4.J): pushes land contiguously within a single backing ring.Ring; when
// the tail ring fills, the queue advances to a fresh or pooled ring rather
// than reallocating in place.
package queue

import (
	"fmt"

	"github.com/viant/robinhood/container/ring"
	"github.com/viant/robinhood/errs"
)

// Queue is a growable FIFO byte queue backed by a sequence of fixed-size
// rings.
type Queue struct {
	ringSize int

	rings []*ring.Ring // live rings, oldest first
	head  int          // index into rings of the ring currently being drained

	pool []*ring.Ring // retired rings kept for reuse instead of reallocating
}

// New builds a Queue whose backing rings are each ringSize bytes (must be a
// valid ring.New size: a positive multiple of the OS page size).
func New(ringSize int) (*Queue, error) {
	if ringSize <= 0 {
		return nil, fmt.Errorf("%w: queue ring size must be positive", errs.ErrInvalid)
	}
	return &Queue{ringSize: ringSize}, nil
}

func (q *Queue) newRing() (*ring.Ring, error) {
	if n := len(q.pool); n > 0 {
		r := q.pool[n-1]
		q.pool = q.pool[:n-1]
		return r, nil
	}
	return ring.New(q.ringSize)
}

// Push appends data to the queue, landing contiguously in the current tail
// ring; if data does not fit there, a fresh or pooled ring becomes the new
// tail. Returns errs.ErrInvalid if len(data) exceeds the ring size (an item
// can never span two rings).
func (q *Queue) Push(data []byte) error {
	if len(data) > q.ringSize {
		return fmt.Errorf("%w: push of %d bytes exceeds ring size %d", errs.ErrInvalid, len(data), q.ringSize)
	}

	if len(q.rings) > 0 {
		tail := q.rings[len(q.rings)-1]
		if tail.Free() >= len(data) {
			_, err := tail.Push(data, len(data))
			return err
		}
	}

	r, err := q.newRing()
	if err != nil {
		return err
	}
	if _, err := r.Push(data, len(data)); err != nil {
		return err
	}
	q.rings = append(q.rings, r)
	return nil
}

// Peek returns the readable bytes of the ring currently at the head of the
// queue, skipping past any fully-drained rings first. Returns readable==0
// when the queue is empty.
func (q *Queue) Peek() (data []byte, readable int) {
	q.advancePastDrained()
	if q.head >= len(q.rings) {
		return nil, 0
	}
	return q.rings[q.head].Peek()
}

// Pop discards n bytes from the head of the queue's current ring (spec
// §4.J: each push is contiguous within a single ring, so a Pop never needs
// to span a ring boundary as long as callers pop what Peek reported).
// Returns errs.ErrInvalid if n exceeds what the head ring holds.
func (q *Queue) Pop(n int) error {
	q.advancePastDrained()
	if q.head >= len(q.rings) {
		if n == 0 {
			return nil
		}
		return fmt.Errorf("%w: pop of %d bytes from an empty queue", errs.ErrInvalid, n)
	}
	if err := q.rings[q.head].Pop(n); err != nil {
		return err
	}
	q.advancePastDrained()
	return nil
}

// advancePastDrained retires fully-drained rings at the head into the pool
// and, once at least half the slot array is behind the head, left-shifts it
// rather than letting it grow unbounded (spec §4.J: "when >= half of the
// ring slots are empty, the queue left-shifts rather than doubling the slot
// array").
func (q *Queue) advancePastDrained() {
	for q.head < len(q.rings) && q.rings[q.head].Used() == 0 {
		q.pool = append(q.pool, q.rings[q.head])
		q.rings[q.head] = nil
		q.head++
	}
	if q.head > 0 && q.head*2 >= len(q.rings) {
		q.rings = append(q.rings[:0], q.rings[q.head:]...)
		q.head = 0
	}
}

// Shrink returns every pooled (retired) ring's memory to the garbage
// collector (spec §4.J: "shrink returns pool rings to the OS").
func (q *Queue) Shrink() {
	for _, r := range q.pool {
		r.Destroy()
	}
	q.pool = nil
}

// Destroy releases every ring the queue holds, live or pooled.
func (q *Queue) Destroy() {
	for _, r := range q.rings {
		if r != nil {
			r.Destroy()
		}
	}
	q.Shrink()
	q.rings = nil
	q.head = 0
}
