package iterator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/container/ring"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/iterator"
)

func TestArrayIteratesAndEnds(t *testing.T) {
	it := iterator.Array([]int{1, 2, 3}, nil)

	got, err := iterator.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestChainEqualsConcatenation(t *testing.T) {
	a := iterator.Array([]int{1, 2}, nil)
	b := iterator.Array([]int{3, 4}, nil)

	got, err := iterator.Collect(iterator.Chain[int](a, b))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestTeeEmitsSameSequenceOnBothSides(t *testing.T) {
	src := iterator.Array([]int{1, 2, 3}, nil)
	left, right := iterator.Tee[int](src)

	gotLeft, err := iterator.Collect(left)
	require.NoError(t, err)
	gotRight, err := iterator.Collect(right)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, gotLeft)
	assert.Equal(t, []int{1, 2, 3}, gotRight)
}

func TestTeeInterleavedConsumption(t *testing.T) {
	src := iterator.Array([]int{1, 2, 3}, nil)
	left, right := iterator.Tee[int](src)

	v, err := left.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = left.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = right.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestChunkifyGroupsByN(t *testing.T) {
	src := iterator.Array([]int{1, 2, 3, 4, 5}, nil)
	outer := iterator.Chunkify[int](src, 2)

	var chunks [][]int
	for {
		inner, err := outer.Next()
		if err == errs.ErrEndOfStream {
			break
		}
		require.NoError(t, err)
		got, err := iterator.Collect(inner)
		require.NoError(t, err)
		chunks = append(chunks, got)
	}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)
}

func TestChunkifyToleratesUndrainedInner(t *testing.T) {
	src := iterator.Array([]int{1, 2, 3, 4}, nil)
	outer := iterator.Chunkify[int](src, 2)

	_, err := outer.Next()
	require.NoError(t, err)
	// Advance the outer iterator without draining the first inner one.
	second, err := outer.Next()
	require.NoError(t, err)

	got, err := iterator.Collect(second)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, got)
}

func TestListWalksChain(t *testing.T) {
	head := &iterator.Node[string]{Value: "a", Next: &iterator.Node[string]{Value: "b"}}

	got, err := iterator.Collect(iterator.List[string](head, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestRingAdapterYieldsFixedRecords(t *testing.T) {
	r, err := ring.New(4096)
	require.NoError(t, err)

	_, err = r.Push([]byte("aabbcc"), 6)
	require.NoError(t, err)

	it := iterator.Ring(r, 2)
	got, err := iterator.Collect[[]byte](it)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "aa", string(got[0]))
	assert.Equal(t, "bb", string(got[1]))
	assert.Equal(t, "cc", string(got[2]))
}
