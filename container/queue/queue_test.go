package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/container/queue"
)

func TestPushPeekPopFIFO(t *testing.T) {
	q, err := queue.New(4096)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("first")))
	require.NoError(t, q.Push([]byte("second")))

	data, readable := q.Peek()
	require.Equal(t, 11, readable)
	assert.Equal(t, "firstsecond", string(data))

	require.NoError(t, q.Pop(5))
	data, readable = q.Peek()
	require.Equal(t, 6, readable)
	assert.Equal(t, "second", string(data))
}

func TestPushAdvancesToNewRingWhenFull(t *testing.T) {
	q, err := queue.New(4096)
	require.NoError(t, err)

	require.NoError(t, q.Push(make([]byte, 4090)))
	require.NoError(t, q.Push([]byte("overflow12")))

	_, readable := q.Peek()
	assert.Equal(t, 4090, readable)

	require.NoError(t, q.Pop(4090))
	data, readable := q.Peek()
	require.Equal(t, 10, readable)
	assert.Equal(t, "overflow12", string(data))
}

func TestPushRejectsOversizedItem(t *testing.T) {
	q, err := queue.New(4096)
	require.NoError(t, err)

	err = q.Push(make([]byte, 4097))
	require.Error(t, err)
}

func TestEmptyQueuePeek(t *testing.T) {
	q, err := queue.New(4096)
	require.NoError(t, err)

	_, readable := q.Peek()
	assert.Equal(t, 0, readable)
}

func TestDestroyResetsQueue(t *testing.T) {
	q, err := queue.New(4096)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("x")))
	q.Destroy()

	_, readable := q.Peek()
	assert.Equal(t, 0, readable)
}
