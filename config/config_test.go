package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/robinhood/errs"
)

const sample = `
alias:
  find-large: "find -size +1G"
  ll: "find-large -sort size"
  cycle-a: "cycle-b --flag"
  cycle-b: "cycle-a --flag"
backends:
  mongo:
    extends: mongo-doc
  posix:
    extends: ""
xattrs_map:
  user.rbh-fid: binary
  user.rbh-retention: uint64
RBH_RETENTION_XATTR: user.rbh-retention
requires: |
  module rbh.requirements

  go 1.23

  require (
      posix v1.0.0
      mongo-doc v1.2.0
  )
`

func TestLoadParsesEveryConsultedKey(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "user.rbh-retention", c.RetentionXattr())

	typ, ok := c.XattrType("user.rbh-fid")
	require.True(t, ok)
	assert.Equal(t, "binary", typ)

	_, ok = c.XattrType("user.unknown")
	assert.False(t, ok)

	assert.Equal(t, "mongo-doc", c.Extends("mongo"))
	assert.Equal(t, "posix", c.Extends("posix"))
	assert.Equal(t, "nfs", c.Extends("nfs"))
}

func TestLoadEmptyDocumentIsValid(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "", c.RetentionXattr())
	assert.Equal(t, "unknown", c.Extends("unknown"))
	_, ok := c.XattrType("anything")
	assert.False(t, ok)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(strings.NewReader("alias: [this is not a map"))
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestExpandAliasResolvesDirectValue(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	expanded, err := c.ExpandAlias("find-large")
	require.NoError(t, err)
	assert.Equal(t, "find -size +1G", expanded)
}

func TestExpandAliasFollowsChainedAlias(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	expanded, err := c.ExpandAlias("ll")
	require.NoError(t, err)
	assert.Equal(t, "find -size +1G -sort size", expanded)
}

func TestExpandAliasDetectsCycleByName(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = c.ExpandAlias("cycle-a")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestExpandAliasUnknownNameIsNotFound(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = c.ExpandAlias("nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRequiredBackendVersionReadsRequireBlock(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	v, ok := c.RequiredBackendVersion("posix")
	require.True(t, ok)
	assert.Equal(t, "v1.0.0", v)

	v, ok = c.RequiredBackendVersion("mongo-doc")
	require.True(t, ok)
	assert.Equal(t, "v1.2.0", v)

	_, ok = c.RequiredBackendVersion("unknown-backend")
	assert.False(t, ok)
}

func TestRequiredBackendVersionAbsentWithoutRequiresBlock(t *testing.T) {
	c, err := Load(strings.NewReader("alias:\n  a: b\n"))
	require.NoError(t, err)

	_, ok := c.RequiredBackendVersion("posix")
	assert.False(t, ok)
}
