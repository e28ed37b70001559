// Package ring implements RobinHood's page-aligned contiguous ring buffer
// (spec §4.J): the hard primitive every queue, source, and enricher streams
// bytes through without wraparound logic in the caller.
//
// The original implementation gets its "no wraparound" guarantee by mmapping
// one anonymous region twice, contiguously, onto the same physical pages, so
// a read starting anywhere in the first mapping can run past its end into
// the second mapping and see the same bytes. Go cannot place two mappings at
// adjacent virtual addresses without unsafe, platform-specific MAP_FIXED
// arithmetic that nothing in this module's dependency set exercises safely.
// Ring instead keeps a buffer twice the requested size and mirrors every
// write to both halves (see mirrorWrite); a peek can always return a single
// contiguous slice of up to Size() bytes, matching the double-mmap trick's
// external contract exactly, at the cost of an O(n) copy per write instead
// of a page-table trick.
package ring

import (
	"fmt"

	"github.com/viant/robinhood/errs"
	"golang.org/x/sys/unix"
)

// Ring is a fixed-capacity circular byte buffer with contiguous peek
// semantics (spec §4.J).
type Ring struct {
	buf  []byte // length 2*size; buf[size+i] always mirrors buf[i]
	size int

	writeOff int // logical offset in [0, size) of the next byte to write
	readOff  int // logical offset in [0, size) of the next byte to read
	used     int // bytes currently stored, 0 <= used <= size
}

// New allocates a Ring of the given size, which must be a positive multiple
// of the OS page size (spec §4.J: "size must be a multiple of the OS page
// size").
func New(size int) (*Ring, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: ring size must be positive", errs.ErrInvalid)
	}
	page := unix.Getpagesize()
	if size%page != 0 {
		return nil, fmt.Errorf("%w: ring size %d is not a multiple of the page size %d", errs.ErrInvalid, size, page)
	}
	return &Ring{buf: make([]byte, 2*size), size: size}, nil
}

// Size reports the ring's total capacity in bytes.
func (r *Ring) Size() int { return r.size }

// Used reports how many bytes are currently stored.
func (r *Ring) Used() int { return r.used }

// Free reports how many bytes of unused capacity remain.
func (r *Ring) Free() int { return r.size - r.used }

// Push reserves n contiguous bytes and, if data is non-nil, copies it into
// the reservation; it returns the (mirror-consistent) slice written to,
// which the caller may still mutate in place when data was nil (spec §4.J:
// "data=null reserves without writing"). Returns errs.ErrInvalid if n
// exceeds the ring's total capacity, errs.ErrResource if there is not
// currently enough free room.
func (r *Ring) Push(data []byte, n int) ([]byte, error) {
	if n > r.size {
		return nil, fmt.Errorf("%w: push of %d bytes exceeds ring capacity %d", errs.ErrInvalid, n, r.size)
	}
	if n > r.Free() {
		return nil, fmt.Errorf("%w: ring has only %d bytes free, need %d", errs.ErrResource, r.Free(), n)
	}
	if data != nil && len(data) != n {
		return nil, fmt.Errorf("%w: push data length %d does not match n %d", errs.ErrInvalid, len(data), n)
	}

	off := r.writeOff
	if data != nil {
		r.mirrorWrite(off, data)
	}
	r.writeOff = (off + n) % r.size
	r.used += n

	return r.buf[off : off+n], nil
}

// mirrorWrite copies data into both the primary and mirror halves of buf so
// that a later contiguous read of up to r.size bytes starting anywhere in
// [0, r.size) sees correct data regardless of wraparound.
func (r *Ring) mirrorWrite(off int, data []byte) {
	for i, b := range data {
		pos := (off + i) % r.size
		r.buf[pos] = b
		r.buf[pos+r.size] = b
	}
}

// Peek returns a pointer to the readable region and the number of
// contiguously readable bytes, which is always all currently-used bytes
// (spec §4.J: "peek(&readable): ... always all used bytes in this ring").
// The returned slice aliases the ring's internal storage and is valid until
// the next Push or Pop.
func (r *Ring) Peek() (data []byte, readable int) {
	if r.used == 0 {
		return nil, 0
	}
	return r.buf[r.readOff : r.readOff+r.used], r.used
}

// Pop discards n bytes from the front of the ring. Returns errs.ErrInvalid
// if n exceeds the currently readable byte count (spec §4.J: "pop(n): EINVAL
// if n > readable").
func (r *Ring) Pop(n int) error {
	if n > r.used {
		return fmt.Errorf("%w: pop of %d bytes exceeds %d readable", errs.ErrInvalid, n, r.used)
	}
	r.readOff = (r.readOff + n) % r.size
	r.used -= n
	return nil
}

// Destroy releases the ring's backing storage. After Destroy, r must not be
// used again. Go's garbage collector reclaims the buffer regardless; Destroy
// exists for symmetry with the rest of the container package and to make the
// end-of-lifetime point explicit at call sites that mirror the original
// resource-owning API.
func (r *Ring) Destroy() {
	r.buf = nil
	r.size, r.used, r.readOff, r.writeOff = 0, 0, 0, 0
}
