package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/uri"
)

func TestParseBareBackend(t *testing.T) {
	u, err := uri.Parse("rbh:posix:myfs")
	require.NoError(t, err)
	assert.Equal(t, "posix", u.Backend)
	assert.Equal(t, "", u.Extension)
	assert.Equal(t, "myfs", u.Fsname)
	assert.Equal(t, uri.SelectorBare, u.Selector)
}

func TestParseExtension(t *testing.T) {
	u, err := uri.Parse("rbh:posix-lustre:myfs")
	require.NoError(t, err)
	assert.Equal(t, "posix", u.Backend)
	assert.Equal(t, "lustre", u.Extension)
}

func TestParsePathFragment(t *testing.T) {
	u, err := uri.Parse("rbh:posix:myfs#dir/sub%20dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, uri.SelectorPath, u.Selector)
	assert.Equal(t, "dir/sub dir/file.txt", u.Path)
}

func TestParseFIDFragment(t *testing.T) {
	u, err := uri.Parse("rbh:boltdoc:myfs#[0x1:0x2:0x3]")
	require.NoError(t, err)
	assert.Equal(t, uri.SelectorID, u.Selector)
	require.NotNil(t, u.FID)
	assert.Equal(t, uint64(1), u.FID.Seq)
	assert.Equal(t, uint32(2), u.FID.Oid)
	assert.Equal(t, uint32(3), u.FID.Ver)
}

func TestParseRawIDFragment(t *testing.T) {
	u, err := uri.Parse("rbh:boltdoc:myfs#[%00%01%02]")
	require.NoError(t, err)
	assert.Equal(t, uri.SelectorID, u.Selector)
	assert.Equal(t, []byte{0, 1, 2}, u.RawID)
}

func TestParseRejectsWrongScheme(t *testing.T) {
	_, err := uri.Parse("http:posix:myfs")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestParseRejectsEmptyFsname(t *testing.T) {
	_, err := uri.Parse("rbh:posix:")
	require.Error(t, err)
}

func TestParseRejectsMissingFsname(t *testing.T) {
	_, err := uri.Parse("rbh:posix")
	require.Error(t, err)
}

func TestStringRoundTripsBare(t *testing.T) {
	u, err := uri.Parse("rbh:posix:myfs")
	require.NoError(t, err)
	reparsed, err := uri.Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, reparsed)
}

func TestStringRoundTripsPath(t *testing.T) {
	u, err := uri.Parse("rbh:posix-lustre:myfs#dir/sub%20dir/file.txt")
	require.NoError(t, err)
	reparsed, err := uri.Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, reparsed)
}

func TestStringRoundTripsFID(t *testing.T) {
	u, err := uri.Parse("rbh:boltdoc:myfs#[0x1:0x2:0x3]")
	require.NoError(t, err)
	reparsed, err := uri.Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, reparsed)
}
