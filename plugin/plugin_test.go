package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/plugin"
	"github.com/viant/robinhood/value"
)

type stubBackend struct{ backend.Backend }

func TestRegisterAndNew(t *testing.T) {
	r := plugin.NewRegistry()
	called := false
	err := r.Register(plugin.Descriptor{
		Name:         "stub",
		Version:      "1.0",
		Capabilities: backend.CapFilter,
		New: func(options map[string]string) (backend.Backend, error) {
			called = true
			return stubBackend{}, nil
		},
	})
	require.NoError(t, err)

	b, err := r.New("stub", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.NotNil(t, b)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := plugin.NewRegistry()
	d := plugin.Descriptor{Name: "stub", New: func(map[string]string) (backend.Backend, error) { return nil, nil }}
	require.NoError(t, r.Register(d))
	err := r.Register(d)
	require.Error(t, err)
}

func TestLookupUnknownReturnsNotFound(t *testing.T) {
	r := plugin.NewRegistry()
	_, err := r.Lookup("missing")
	require.Error(t, err)
}

func TestRegisterExtensionInheritsFactory(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(plugin.Descriptor{
		Name: "base",
		New:  func(map[string]string) (backend.Backend, error) { return stubBackend{}, nil },
	}))

	buildFilter := func(map[string]string) (any, error) { return "compiled", nil }
	require.NoError(t, r.RegisterExtension("base-ext", "base", buildFilter))

	ext, err := r.Lookup("base-ext")
	require.NoError(t, err)
	require.NotNil(t, ext.BuildFilter)

	b, err := r.New("base-ext", nil)
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestDescribeRendersCapabilitiesAndVersion(t *testing.T) {
	r := plugin.NewRegistry()
	buildFilter := func(map[string]string) (any, error) { return "compiled", nil }
	require.NoError(t, r.Register(plugin.Descriptor{
		Name:         "posix",
		Version:      "v1.0.0",
		Capabilities: backend.CapFilter | backend.CapUpdate,
		New:          func(map[string]string) (backend.Backend, error) { return stubBackend{}, nil },
		BuildFilter:  buildFilter,
	}))

	d, err := r.Describe("posix")
	require.NoError(t, err)

	name, ok := mustGet(t, d, "name").String()
	require.True(t, ok)
	assert.Equal(t, "posix", name)

	version, ok := mustGet(t, d, "version").String()
	require.True(t, ok)
	assert.Equal(t, "v1.0.0", version)

	caps, ok := mustGet(t, d, "capabilities").Sequence()
	require.True(t, ok)
	require.Len(t, caps, 2)

	hasBuildFilter, ok := mustGet(t, d, "has_build_filter").Bool()
	require.True(t, ok)
	assert.True(t, hasBuildFilter)
}

func TestDescribeUnknownPluginIsNotFound(t *testing.T) {
	r := plugin.NewRegistry()
	_, err := r.Describe("missing")
	require.Error(t, err)
}

func mustGet(t *testing.T, d *value.Map, key string) *value.Value {
	t.Helper()
	v, ok := d.Get(key)
	require.True(t, ok)
	return v
}

func TestNamesSorted(t *testing.T) {
	r := plugin.NewRegistry()
	factory := func(map[string]string) (backend.Backend, error) { return nil, nil }
	require.NoError(t, r.Register(plugin.Descriptor{Name: "zeta", New: factory}))
	require.NoError(t, r.Register(plugin.Descriptor{Name: "alpha", New: factory}))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
