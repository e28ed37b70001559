package iterator

import (
	"fmt"

	"github.com/viant/robinhood/container/ring"
	"github.com/viant/robinhood/errs"
)

// ringIter adapts a ring.Ring into an Iterator yielding fixed-size records
// (spec §4.I: "ring(ring, elem_size): adapt the primitive containers").
type ringIter struct {
	r        *ring.Ring
	elemSize int
}

// Ring builds an Iterator that pops elemSize-byte records off r until it is
// drained. Each yielded slice is a copy, safe to retain past the next Next()
// call.
func Ring(r *ring.Ring, elemSize int) Iterator[[]byte] {
	return &ringIter{r: r, elemSize: elemSize}
}

func (it *ringIter) Next() ([]byte, error) {
	data, readable := it.r.Peek()
	if readable == 0 {
		return nil, errs.ErrEndOfStream
	}
	if readable < it.elemSize {
		return nil, fmt.Errorf("%w: ring holds %d bytes, short of one %d-byte record", errs.ErrInvalid, readable, it.elemSize)
	}
	rec := make([]byte, it.elemSize)
	copy(rec, data[:it.elemSize])
	if err := it.r.Pop(it.elemSize); err != nil {
		return nil, err
	}
	return rec, nil
}
