package boltdoc_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/backend/boltdoc"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

func openTestBackend(t *testing.T) *boltdoc.Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robinhood.bolt")
	b, err := boltdoc.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Destroy() })
	return b
}

func upsertEvent(t *testing.T, entryID id.ID, size uint64) *fsevent.Fsevent {
	t.Helper()
	st := &statx.Statx{Mask: statx.MaskSize, Size: size}
	ev, err := fsevent.NewUpsert(entryID, st, nil, nil)
	require.NoError(t, err)
	return ev
}

func TestOpenCreatesRoot(t *testing.T) {
	b := openTestBackend(t)
	root, err := b.Root(fsentry.PresenceID)
	require.NoError(t, err)
	assert.Equal(t, id.Root, root.ParentID)
}

func TestUpdateUpsertAndLinkThenFilterOne(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()

	events := []*fsevent.Fsevent{
		upsertEvent(t, entryID, 1024),
	}
	link, err := fsevent.NewLink(entryID, id.Root, "file.txt", nil)
	require.NoError(t, err)
	events = append(events, link)

	applied, err := b.Update(iterator.Array(events, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("file.txt"))
	require.NoError(t, err)
	parentEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorParentID}, value.NewBinary(id.Root.Bytes()))
	require.NoError(t, err)
	and, err := filter.AndNew(parentEQ, nameEQ)
	require.NoError(t, err)

	found, err := b.FilterOne(and, fsentry.PresenceID|fsentry.PresenceStatx)
	require.NoError(t, err)
	require.NotNil(t, found.Statx)
	assert.Equal(t, uint64(1024), found.Statx.Size)
}

func TestFilterOneUnmatchedReturnsNotFound(t *testing.T) {
	b := openTestBackend(t)
	nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("missing"))
	require.NoError(t, err)

	_, err = b.FilterOne(nameEQ, fsentry.PresenceID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateUnlinkRemovesNamespaceEntry(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()
	link, err := fsevent.NewLink(entryID, id.Root, "gone.txt", nil)
	require.NoError(t, err)
	unlink, err := fsevent.NewUnlink(entryID, id.Root, "gone.txt", nil)
	require.NoError(t, err)

	applied, err := b.Update(iterator.Array([]*fsevent.Fsevent{upsertEvent(t, entryID, 1), link, unlink}, nil))
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("gone.txt"))
	require.NoError(t, err)
	parentEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorParentID}, value.NewBinary(id.Root.Bytes()))
	require.NoError(t, err)
	and, err := filter.AndNew(parentEQ, nameEQ)
	require.NoError(t, err)

	_, err = b.FilterOne(and, fsentry.PresenceID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateDeleteRemovesEntry(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()
	del := fsevent.NewDelete(entryID, nil)

	applied, err := b.Update(iterator.Array([]*fsevent.Fsevent{upsertEvent(t, entryID, 1), del}, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}

func TestUpdateXattrMergesIntoInodeXattrs(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()
	xattrs := value.NewMap(value.Pair{Key: "user.tag", Value: value.NewString("v1")})
	xattrEvent := fsevent.NewXattr(entryID, nil, nil, xattrs)

	applied, err := b.Update(iterator.Array([]*fsevent.Fsevent{upsertEvent(t, entryID, 1), xattrEvent}, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}

func TestFilterRejectsNonProjectionOutput(t *testing.T) {
	b := openTestBackend(t)
	_, err := b.Filter(nil, backend.FilterOptions{}, backend.Output{Kind: backend.OutputValues})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotSupported)
}

func TestFilterSkipAndLimit(t *testing.T) {
	b := openTestBackend(t)
	var events []*fsevent.Fsevent
	for i := 0; i < 5; i++ {
		eid := id.NewRandom()
		events = append(events, upsertEvent(t, eid, uint64(i)))
		link, err := fsevent.NewLink(eid, id.Root, filepath.Base(t.TempDir()), nil)
		require.NoError(t, err)
		events = append(events, link)
	}
	_, err := b.Update(iterator.Array(events, nil))
	require.NoError(t, err)

	res, err := b.Filter(nil, backend.FilterOptions{Skip: 1, Limit: 2}, backend.Output{Kind: backend.OutputProjection})
	require.NoError(t, err)
	it := res.(iterator.Iterator[*fsentry.Fsentry])
	collected, err := iterator.Collect(it)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(collected), 2)
}

func TestBranchByID(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()
	applied, err := b.Update(iterator.Array([]*fsevent.Fsevent{upsertEvent(t, entryID, 1)}, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	branch, err := b.Branch(&entryID, nil)
	require.NoError(t, err)
	root, err := branch.Root(fsentry.PresenceID)
	require.NoError(t, err)
	assert.True(t, root.ID.Bytes() != nil)
}

func TestBranchRejectsBothArgs(t *testing.T) {
	b := openTestBackend(t)
	entryID := id.NewRandom()
	path := "a/b"
	_, err := b.Branch(&entryID, &path)
	require.Error(t, err)
}

func TestGetInfoCapabilities(t *testing.T) {
	b := openTestBackend(t)
	info, err := b.GetInfo(backend.InfoCapabilities)
	require.NoError(t, err)
	v, ok := info.Get("capabilities")
	require.True(t, ok)
	u, isU32 := v.Uint32()
	require.True(t, isU32)
	assert.NotZero(t, u)
}

func TestGetAttributeNotSupported(t *testing.T) {
	b := openTestBackend(t)
	_, err := b.GetAttribute("anything", nil, 0)
	assert.ErrorIs(t, err, errs.ErrNotSupported)
}
