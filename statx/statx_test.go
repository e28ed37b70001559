package statx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/robinhood/statx"
)

func TestMergeFieldWise(t *testing.T) {
	base := &statx.Statx{Mask: statx.MaskSize, Size: 3}
	override := &statx.Statx{
		Mask: statx.MaskSize | statx.MaskMtimeSec,
		Size: 10,
		Mtime: statx.Timestamp{Sec: 42},
	}

	base.Merge(override)

	assert.Equal(t, statx.MaskSize|statx.MaskMtimeSec, base.Mask)
	assert.EqualValues(t, 10, base.Size)
	assert.EqualValues(t, 42, base.Mtime.Sec)
}

func TestMergeIdempotent(t *testing.T) {
	s := &statx.Statx{Mask: statx.MaskSize | statx.MaskMtimeSec, Size: 10, Mtime: statx.Timestamp{Sec: 42}}
	clone := s.Clone()

	s.Merge(clone)

	assert.Equal(t, *clone, *s)
}

func TestMergeNarrowsAttributes(t *testing.T) {
	base := &statx.Statx{
		Mask:           statx.MaskAttributes,
		Attributes:     statx.AttrImmutable,
		AttributesMask: statx.AttrImmutable,
	}
	override := &statx.Statx{
		Mask:           statx.MaskAttributes,
		Attributes:     statx.AttrCompressed,
		AttributesMask: statx.AttrCompressed,
	}

	base.Merge(override)

	assert.True(t, base.Attributes&statx.AttrImmutable != 0)
	assert.True(t, base.Attributes&statx.AttrCompressed != 0)
	assert.Equal(t, statx.AttrImmutable|statx.AttrCompressed, base.AttributesMask)
}

func TestHasAndAny(t *testing.T) {
	m := statx.MaskSize | statx.MaskMtimeSec
	assert.True(t, m.Has(statx.MaskSize))
	assert.False(t, m.Has(statx.MaskSize|statx.MaskUID))
	assert.True(t, m.Any(statx.MaskUID|statx.MaskSize))
}
