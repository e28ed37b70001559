package sstack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/container/sstack"
)

func TestAllocGrowsChunks(t *testing.T) {
	s, err := sstack.New(16)
	require.NoError(t, err)

	s.Alloc(8)
	assert.Equal(t, 1, s.NumChunks())

	s.Alloc(8)
	// 8+8 exactly fills a 16-byte chunk; a third alloc must grow.
	s.Alloc(1)
	assert.Equal(t, 2, s.NumChunks())
}

func TestStrdup(t *testing.T) {
	s, err := sstack.New(64)
	require.NoError(t, err)

	b := s.Strdup("hello")
	assert.Equal(t, "hello", string(b))
}

func TestPopAllResetsWithoutFreeing(t *testing.T) {
	s, err := sstack.New(16)
	require.NoError(t, err)

	s.Alloc(8)
	s.Alloc(8)
	require.Equal(t, 1, s.NumChunks())

	s.PopAll()
	// Reusing the arena after PopAll must not grow a fresh chunk for an
	// allocation that already fit once.
	s.Alloc(8)
	assert.Equal(t, 1, s.NumChunks())
}

func TestShrinkDropsEmptyTrailingChunks(t *testing.T) {
	s, err := sstack.New(8)
	require.NoError(t, err)

	s.Alloc(8)
	s.Alloc(8) // grows to a second chunk
	require.Equal(t, 2, s.NumChunks())

	s.PopAll()
	s.Shrink()
	assert.Equal(t, 1, s.NumChunks())
}
