package yamlsrc_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/source/yamlsrc"
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestNameReturnsConfiguredName(t *testing.T) {
	src := yamlsrc.New("stream-0", strings.NewReader(""))
	assert.Equal(t, "stream-0", src.Name())
}

func TestDecodesUpsertWithStatxAndXattrs(t *testing.T) {
	doc := `--- !upsert
id: !!binary ` + b64([]byte{1, 2, 3, 4}) + `
statx:
  type: file
  mode: "0644"
  uid: 1000
  gid: 1000
  size: 42
  atime: {sec: 100, nsec: 0}
  attributes:
    immutable: true
xattrs:
  user.comment: hello
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, fsevent.TagUpsert, ev.Tag)
	require.NotNil(t, ev.Statx)
	assert.Equal(t, uint32(1000), ev.Statx.UID)
	assert.EqualValues(t, 42, ev.Statx.Size)
	v, ok := ev.Xattrs.Get("user.comment")
	require.True(t, ok)
	s, ok := v.String()
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	_, err = src.Next()
	assert.ErrorIs(t, err, errs.ErrEndOfStream)
}

func TestDecodesLinkEvent(t *testing.T) {
	doc := `--- !link
id: !!binary ` + b64([]byte{1}) + `
parent: !!binary ` + b64([]byte{2}) + `
name: foo.txt
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagLink, ev.Tag)
	require.NotNil(t, ev.Name)
	assert.Equal(t, "foo.txt", *ev.Name)
}

func TestUnlinkDiscardsXattrsKey(t *testing.T) {
	doc := `--- !unlink
id: !!binary ` + b64([]byte{1}) + `
parent: !!binary ` + b64([]byte{2}) + `
name: gone.txt
xattrs:
  should.be: ignored
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagUnlink, ev.Tag)
	assert.Equal(t, 0, len(ev.Xattrs.Pairs()))
}

func TestDeleteRequiresID(t *testing.T) {
	doc := `--- !delete
foo: bar
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	_, err := src.Next()
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestNSXattrSetsParentAndName(t *testing.T) {
	doc := `--- !ns_xattr
id: !!binary ` + b64([]byte{1}) + `
parent: !!binary ` + b64([]byte{2}) + `
name: child
xattrs:
  k: !uint32 "7"
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagXattr, ev.Tag)
	require.NotNil(t, ev.ParentID)
	require.NotNil(t, ev.Name)
	assert.Equal(t, "child", *ev.Name)
	v, ok := ev.Xattrs.Get("k")
	require.True(t, ok)
	u, ok := v.Uint32()
	require.True(t, ok)
	assert.Equal(t, uint32(7), u)
}

func TestInodeXattrHasNoParentOrName(t *testing.T) {
	doc := `--- !inode_xattr
id: !!binary ` + b64([]byte{1}) + `
xattrs:
  k: v
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagXattr, ev.Tag)
	assert.Nil(t, ev.ParentID)
	assert.Nil(t, ev.Name)
}

func TestUnknownTopLevelTagIsInvalid(t *testing.T) {
	doc := `--- !bogus
id: !!binary ` + b64([]byte{1}) + `
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	_, err := src.Next()
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestUnknownScalarTagIsInvalid(t *testing.T) {
	doc := `--- !inode_xattr
id: !!binary ` + b64([]byte{1}) + `
xattrs:
  k: !bogus v
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	_, err := src.Next()
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestRegexValueDecoded(t *testing.T) {
	doc := `--- !inode_xattr
id: !!binary ` + b64([]byte{1}) + `
xattrs:
  pattern: !regex
    regex: "^foo"
    options: "1"
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	v, ok := ev.Xattrs.Get("pattern")
	require.True(t, ok)
	pattern, opts, ok := v.Regex()
	require.True(t, ok)
	assert.Equal(t, "^foo", pattern)
	assert.EqualValues(t, 1, opts)
}

func TestDeviceAndRdevDecoded(t *testing.T) {
	doc := `--- !upsert
id: !!binary ` + b64([]byte{1}) + `
statx:
  rdev: {major: 8, minor: 1}
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	require.NotNil(t, ev.Statx)
	assert.EqualValues(t, 8, ev.Statx.Rdev.Major)
	assert.EqualValues(t, 1, ev.Statx.Rdev.Minor)
}

func TestUnknownKeyIsSkipped(t *testing.T) {
	doc := `--- !upsert
id: !!binary ` + b64([]byte{1}) + `
something_unexpected: true
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, fsevent.TagUpsert, ev.Tag)
}

func TestMultipleDocumentsDecodeInOrder(t *testing.T) {
	doc := `--- !delete
id: !!binary ` + b64([]byte{1}) + `
--- !delete
id: !!binary ` + b64([]byte{2}) + `
`
	src := yamlsrc.New("s", strings.NewReader(doc))
	ev1, err := src.Next()
	require.NoError(t, err)
	ev2, err := src.Next()
	require.NoError(t, err)
	assert.False(t, ev1.ID.Equal(ev2.ID))

	_, err = src.Next()
	assert.ErrorIs(t, err, errs.ErrEndOfStream)
}
