package fsevent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

func someID(t *testing.T) id.ID {
	t.Helper()
	i, err := id.New([]byte{9, 9, 9})
	require.NoError(t, err)
	return i
}

func TestUpsertSymlinkTypeInvariant(t *testing.T) {
	i := someID(t)
	link := "target"
	st := &statx.Statx{Mask: statx.MaskType, Type: 0o100000}

	_, err := fsevent.NewUpsert(i, st, &link, nil)
	require.Error(t, err)

	st.Type = 0o120000
	ev, err := fsevent.NewUpsert(i, st, &link, nil)
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagUpsert, ev.Tag)
}

func TestNoPartialGuardDetection(t *testing.T) {
	i := someID(t)
	hint := value.NewMap(value.Pair{Key: fsevent.RbhFseventsXattr, Value: value.NewMapValue(value.NewMap())})
	ev, err := fsevent.NewUpsert(i, nil, nil, hint)
	require.NoError(t, err)

	assert.True(t, ev.HasRbhFseventsHint())
}

func TestPathLookup(t *testing.T) {
	i := someID(t)
	xattrs := value.NewMap(value.Pair{Key: "path", Value: value.NewString("/a/b")})
	ev := fsevent.NewDelete(i, xattrs)

	path, present, isString := ev.Path()
	assert.True(t, present)
	assert.True(t, isString)
	assert.Equal(t, "/a/b", path)
}

func TestPathAbsent(t *testing.T) {
	i := someID(t)
	ev := fsevent.NewDelete(i, nil)
	_, present, _ := ev.Path()
	assert.False(t, present)
}

func TestLinkRequiresParentAndName(t *testing.T) {
	i := someID(t)
	parent := someID(t)
	ev, err := fsevent.NewLink(i, parent, "foo", nil)
	require.NoError(t, err)
	require.NotNil(t, ev.ParentID)
	require.NotNil(t, ev.Name)
	assert.Equal(t, "foo", *ev.Name)
}
