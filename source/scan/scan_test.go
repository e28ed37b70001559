package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/source/scan"
)

func drain(t *testing.T, src *scan.Source) []*fsevent.Fsevent {
	t.Helper()
	var out []*fsevent.Fsevent
	for {
		ev, err := src.Next()
		if err == errs.ErrEndOfStream {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestNameReturnsConfiguredName(t *testing.T) {
	dir := t.TempDir()
	src, err := scan.New("scan-0", dir)
	require.NoError(t, err)
	assert.Equal(t, "scan-0", src.Name())
}

func TestRootAloneEmitsOnlyUpsert(t *testing.T) {
	dir := t.TempDir()
	src, err := scan.New("s", dir)
	require.NoError(t, err)

	events := drain(t, src)
	require.Len(t, events, 1)
	assert.Equal(t, fsevent.TagUpsert, events[0].Tag)
}

func TestFileUnderRootEmitsLinkThenUpsert(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0644))

	src, err := scan.New("s", dir)
	require.NoError(t, err)

	events := drain(t, src)
	require.Len(t, events, 3) // root upsert, file link, file upsert
	assert.Equal(t, fsevent.TagUpsert, events[0].Tag)
	assert.Equal(t, fsevent.TagLink, events[1].Tag)
	assert.Equal(t, "a.txt", *events[1].Name)
	assert.Equal(t, fsevent.TagUpsert, events[2].Tag)
	require.NotNil(t, events[2].Statx)
	assert.EqualValues(t, 2, events[2].Statx.Size)
}

func TestNestedDirectoryIsWalked(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("x"), 0644))

	src, err := scan.New("s", dir)
	require.NoError(t, err)

	events := drain(t, src)
	// root upsert; sub link+upsert; b.txt link+upsert
	require.Len(t, events, 5)
	var names []string
	for _, ev := range events {
		if ev.Name != nil {
			names = append(names, *ev.Name)
		}
	}
	assert.Contains(t, names, "sub")
	assert.Contains(t, names, "b.txt")
}

func TestSymlinkEntryCarriesTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("t"), 0644))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	src, err := scan.New("s", dir)
	require.NoError(t, err)

	events := drain(t, src)
	var sawSymlink bool
	for _, ev := range events {
		if ev.Tag == fsevent.TagUpsert && ev.Symlink != nil {
			sawSymlink = true
			assert.Equal(t, target, *ev.Symlink)
		}
	}
	assert.True(t, sawSymlink)
}

func TestMissingRootIsInvalid(t *testing.T) {
	_, err := scan.New("s", "/no/such/path/for/robinhood/scan/test")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}
