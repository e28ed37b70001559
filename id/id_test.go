package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/id"
)

func TestFileHandleRoundTrip(t *testing.T) {
	got, err := id.FromFileHandle(7, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	handleType, handleBytes, err := got.FileHandle()
	require.NoError(t, err)
	assert.EqualValues(t, 7, handleType)
	assert.Equal(t, []byte{1, 2, 3, 4}, handleBytes)
}

func TestFIDRoundTrip(t *testing.T) {
	fid := id.FID{Seq: 0x200000401, Oid: 0x1, Ver: 0x0}
	got := id.FromFID(fid)
	assert.Equal(t, 16, got.Len())

	back, err := got.AsFID()
	require.NoError(t, err)
	assert.Equal(t, fid, back)
}

func TestParseFIDString(t *testing.T) {
	fid := id.FID{Seq: 0x200000401, Oid: 0x1, Ver: 0x0}
	s := fid.String()

	parsed, err := id.ParseFIDString(s)
	require.NoError(t, err)
	assert.Equal(t, fid, parsed)
}

func TestParseFIDStringInvalid(t *testing.T) {
	_, err := id.ParseFIDString("not-a-fid")
	require.Error(t, err)
}

func TestRootSentinel(t *testing.T) {
	assert.True(t, id.Root.IsRoot())
	assert.Equal(t, 0, id.Root.Len())
}

func TestNewRejectsOversize(t *testing.T) {
	_, err := id.New(make([]byte, id.MaxLen+1))
	require.Error(t, err)
}
