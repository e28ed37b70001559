package ring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/container/ring"
)

func TestNewRejectsNonPageMultiple(t *testing.T) {
	_, err := ring.New(100)
	require.Error(t, err)

	_, err = ring.New(0)
	require.Error(t, err)
}

func TestPushPeekPopContiguous(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	_, err = r.Push([]byte("hello"), 5)
	require.NoError(t, err)

	data, readable := r.Peek()
	require.Equal(t, 5, readable)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, r.Pop(5))
	_, readable = r.Peek()
	assert.Equal(t, 0, readable)
}

func TestPushWrapsWithoutWraparoundLogic(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	// Fill to near the end, pop it out, then push again so the logical
	// write position wraps past the end of the buffer; Peek must still
	// return one contiguous slice.
	_, err = r.Push(make([]byte, 4090), 4090)
	require.NoError(t, err)
	require.NoError(t, r.Pop(4090))

	_, err = r.Push([]byte("0123456789"), 10)
	require.NoError(t, err)

	data, readable := r.Peek()
	require.Equal(t, 10, readable)
	assert.Equal(t, "0123456789", string(data))
}

func TestPushRejectsOversizedReservation(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	_, err = r.Push(nil, 4097)
	require.Error(t, err)
}

func TestPushRejectsInsufficientRoom(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	_, err = r.Push(make([]byte, 4096), 4096)
	require.NoError(t, err)

	_, err = r.Push(make([]byte, 1), 1)
	require.Error(t, err)
}

func TestPopRejectsExcessCount(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	_, err = r.Push([]byte("ab"), 2)
	require.NoError(t, err)

	err = r.Pop(3)
	require.Error(t, err)
}

func TestReserveWithoutWriting(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	slot, err := r.Push(nil, 4)
	require.NoError(t, err)
	require.Len(t, slot, 4)
	copy(slot, []byte("xyzw"))

	data, readable := r.Peek()
	require.Equal(t, 4, readable)
	assert.Equal(t, "xyzw", string(data))
}
