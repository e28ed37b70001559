package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

func TestCompareNewRejectsShapeMismatch(t *testing.T) {
	nameField := filter.Field{Selector: filter.SelectorName}

	_, err := filter.CompareNew(filter.OpIN, nameField, value.NewString("x"))
	require.Error(t, err)

	seq, err := value.NewSequence([]*value.Value{value.NewString("a"), value.NewString("b")})
	require.NoError(t, err)
	_, err = filter.CompareNew(filter.OpIN, nameField, seq)
	require.NoError(t, err)
}

func TestAndOrRequireChildren(t *testing.T) {
	_, err := filter.AndNew()
	require.Error(t, err)

	cmp, err := filter.CompareNew(filter.OpEXISTS, filter.Field{Selector: filter.SelectorName}, nil)
	require.NoError(t, err)

	and, err := filter.AndNew(cmp)
	require.NoError(t, err)
	assert.Equal(t, filter.KindLogical, and.Kind)
}

func TestNotRequiresExactlyOneChild(t *testing.T) {
	cmp, err := filter.CompareNew(filter.OpEXISTS, filter.Field{Selector: filter.SelectorName}, nil)
	require.NoError(t, err)

	not, err := filter.NotNew(cmp)
	require.NoError(t, err)
	require.Len(t, not.Children, 1)
}

func TestElemMatchRejectsNonCompareChild(t *testing.T) {
	and, err := filter.AndNew(mustCompare(t, filter.OpEXISTS, filter.Field{Selector: filter.SelectorName}, nil))
	require.NoError(t, err)

	_, err = filter.ElemMatchNew(filter.Field{Selector: filter.SelectorXattrs, XattrKey: "tags"}, and)
	require.Error(t, err)
}

func TestFilterCloneIndependence(t *testing.T) {
	cmp := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("a.txt"))
	and, err := filter.AndNew(cmp)
	require.NoError(t, err)

	clone := and.Clone()
	clone.Children[0].CompareOp = filter.OpGT

	assert.Equal(t, filter.OpEQ, and.Children[0].CompareOp)
	assert.Equal(t, filter.OpGT, clone.Children[0].CompareOp)
}

func TestValidateRejectsEmptyLogical(t *testing.T) {
	f := &filter.Filter{Kind: filter.KindLogical, LogicalOp: filter.OpAND}
	require.Error(t, filter.Validate(f))

	require.NoError(t, filter.Validate(nil))
}

func TestFieldParseRoundTrip(t *testing.T) {
	cases := []string{"id", "parent-id", "name", "symlink", "ns-xattrs", "ns-xattrs.path",
		"xattrs", "xattrs.trusted.lov", "statx", "statx.mtime.sec"}
	for _, s := range cases {
		f, err := filter.ParseField(s)
		require.NoErrorf(t, err, "parsing %q", s)
		assert.Equal(t, s, f.String())
	}

	_, err := filter.ParseField("bogus")
	require.Error(t, err)

	_, err = filter.ParseField("name.extra")
	require.Error(t, err)
}

func TestShellglobTranslate(t *testing.T) {
	cases := map[string]string{
		`*`:   `^.*$`,
		`a?b`: `^a.b$`,
		`a.b`: `^a\.b$`,
		`\*`:  `^\*$`,
	}
	for pattern, want := range cases {
		assert.Equal(t, want, filter.Translate(pattern), "pattern %q", pattern)
	}
}

func TestParseNumeric(t *testing.T) {
	op, n, unit, err := filter.ParseNumeric("+10k")
	require.NoError(t, err)
	assert.Equal(t, filter.OpGT, op)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "k", unit)
	assert.Equal(t, int64(10*1024), n*filter.SizeMultiplier(unit))

	op, n, unit, err = filter.ParseNumeric("-5h")
	require.NoError(t, err)
	assert.Equal(t, filter.OpLT, op)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, int64(5*3600), n*filter.TimeMultiplier(unit))

	op, n, unit, err = filter.ParseNumeric("42")
	require.NoError(t, err)
	assert.Equal(t, filter.OpEQ, op)
	assert.Equal(t, int64(42), n)
	assert.Equal(t, "", unit)

	_, _, _, err = filter.ParseNumeric("")
	require.Error(t, err)
	_, _, _, err = filter.ParseNumeric("+")
	require.Error(t, err)
}

func TestMatchCompareEquality(t *testing.T) {
	name := "report.csv"
	e, err := fsentry.New(fsentry.Params{Name: &name})
	require.NoError(t, err)

	eq := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("report.csv"))
	ok, err := filter.Match(eq, e)
	require.NoError(t, err)
	assert.True(t, ok)

	neq := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("other.csv"))
	ok, err = filter.Match(neq, e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchExistsAndAbsence(t *testing.T) {
	e, err := fsentry.New(fsentry.Params{})
	require.NoError(t, err)

	exists := mustCompare(t, filter.OpEXISTS, filter.Field{Selector: filter.SelectorName}, nil)
	ok, err := filter.Match(exists, e)
	require.NoError(t, err)
	assert.False(t, ok)

	eq := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("x"))
	ok, err = filter.Match(eq, e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchStatxOrdered(t *testing.T) {
	st := &statx.Statx{Mask: statx.MaskSize, Size: 4096}
	e, err := fsentry.New(fsentry.Params{Statx: st})
	require.NoError(t, err)

	gt := mustCompare(t, filter.OpGT, filter.Field{Selector: filter.SelectorStatx, StatxSub: "size"}, value.NewUint64(1024))
	ok, err := filter.Match(gt, e)
	require.NoError(t, err)
	assert.True(t, ok)

	lt := mustCompare(t, filter.OpLT, filter.Field{Selector: filter.SelectorStatx, StatxSub: "size"}, value.NewUint64(1024))
	ok, err = filter.Match(lt, e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchRegexShellPattern(t *testing.T) {
	name := "image.png"
	e, err := fsentry.New(fsentry.Params{Name: &name})
	require.NoError(t, err)

	re, err := value.NewRegex("*.png", value.RegexShellPattern)
	require.NoError(t, err)
	cmp, err := filter.CompareNew(filter.OpREGEX, filter.Field{Selector: filter.SelectorName}, re)
	require.NoError(t, err)

	ok, err := filter.Match(cmp, e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchLogicalAndOrNot(t *testing.T) {
	name := "a.txt"
	e, err := fsentry.New(fsentry.Params{Name: &name})
	require.NoError(t, err)

	eqA := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("a.txt"))
	eqB := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString("b.txt"))

	and, err := filter.AndNew(eqA, eqB)
	require.NoError(t, err)
	ok, err := filter.Match(and, e)
	require.NoError(t, err)
	assert.False(t, ok)

	or, err := filter.OrNew(eqA, eqB)
	require.NoError(t, err)
	ok, err = filter.Match(or, e)
	require.NoError(t, err)
	assert.True(t, ok)

	not, err := filter.NotNew(eqB)
	require.NoError(t, err)
	ok, err = filter.Match(not, e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchElemMatch(t *testing.T) {
	seq, err := value.NewSequence([]*value.Value{value.NewString("hot"), value.NewString("cold")})
	require.NoError(t, err)
	xattrs := value.NewMap(value.Pair{Key: "tags", Value: seq})
	e, err := fsentry.New(fsentry.Params{InodeXattrs: xattrs})
	require.NoError(t, err)

	inner := mustCompare(t, filter.OpEQ, filter.Field{}, value.NewString("cold"))
	em, err := filter.ElemMatchNew(filter.Field{Selector: filter.SelectorXattrs, XattrKey: "tags"}, inner)
	require.NoError(t, err)

	ok, err := filter.Match(em, e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchIDField(t *testing.T) {
	i, err := id.New([]byte{1, 2, 3})
	require.NoError(t, err)
	e, err := fsentry.New(fsentry.Params{ID: &i})
	require.NoError(t, err)

	eq := mustCompare(t, filter.OpEQ, filter.Field{Selector: filter.SelectorID}, value.NewBinary([]byte{1, 2, 3}))
	ok, err := filter.Match(eq, e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func mustCompare(t *testing.T, op filter.CompareOp, field filter.Field, v *value.Value) *filter.Filter {
	t.Helper()
	f, err := filter.CompareNew(op, field, v)
	require.NoError(t, err)
	return f
}
