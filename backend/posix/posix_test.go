package posix_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/backend/posix"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/value"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dir", "file.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("x"), 0o644))
	return root
}

func TestOpenRejectsMissingRoot(t *testing.T) {
	_, err := posix.Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestRootReturnsDirectoryEntry(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	entry, err := b.Root(fsentry.PresenceStatx)
	require.NoError(t, err)
	require.NotNil(t, entry.Statx)
	assert.NotZero(t, entry.Statx.Type) // S_IFMT bits must be populated for a directory
	assert.Equal(t, id.Root, entry.ParentID)
}

func TestFilterFindsNestedFileByName(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("file.txt"))
	require.NoError(t, err)

	found, err := b.FilterOne(nameEQ, fsentry.PresenceStatx)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", found.Name)
	require.NotNil(t, found.Statx)
	assert.Equal(t, uint64(5), found.Statx.Size)
}

func TestFilterOneNoMatchReturnsNotFound(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("nope"))
	require.NoError(t, err)

	_, err = b.FilterOne(nameEQ, fsentry.PresenceID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFilterNilMatchesEveryEntry(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	res, err := b.Filter(nil, backend.FilterOptions{}, backend.Output{Kind: backend.OutputProjection})
	require.NoError(t, err)
	entries, err := iterator.Collect(res.(iterator.Iterator[*fsentry.Fsentry]))
	require.NoError(t, err)
	// root + top.txt + dir + dir/file.txt
	assert.Equal(t, 4, len(entries))
}

func TestBranchByPathRebindsRoot(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	subPath := "dir"
	branch, err := b.Branch(nil, &subPath)
	require.NoError(t, err)

	entry, err := branch.Root(fsentry.PresenceID)
	require.NoError(t, err)
	assert.Equal(t, "dir", entry.Name)
}

func TestUpdateNotSupported(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	_, err = b.Update(iterator.Array(nil, nil))
	assert.ErrorIs(t, err, errs.ErrNotSupported)
}

func TestGetAttributeMetricsSnapshot(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	_, err = b.Filter(nil, backend.FilterOptions{}, backend.Output{Kind: backend.OutputProjection})
	require.NoError(t, err)

	pairs, err := b.GetAttribute("metrics", nil, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, pairs)
}

func TestGetAttributeUnknownName(t *testing.T) {
	root := writeTree(t)
	b, err := posix.Open(root)
	require.NoError(t, err)

	_, err = b.GetAttribute("bogus", nil, 0)
	assert.ErrorIs(t, err, errs.ErrNotSupported)
}
