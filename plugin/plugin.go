// Package plugin implements RobinHood's backend plugin registry and loader
// (spec §3/§4.H): the Go rendition of dynamic symbol lookup and v-tables is
// a name-keyed registry of Factory functions, generalizing the teacher's
// `inspector.Factory.GetInspector` dispatch-by-file-extension to
// dispatch-by-plugin-name (spec §9: "the plugin + extension mechanism ...
// maps to a registry Map<name, PluginFactory> with trait-object backends").
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/value"
)

// Factory constructs a Backend instance from a free-form options map (spec
// §4.H: a backend plugin exposes "ops: {new, destroy}").
type Factory func(options map[string]string) (backend.Backend, error)

// Descriptor is the static metadata a registered plugin carries alongside
// its Factory (spec §4.H: "{name, version, capabilities, ops, common_ops?}").
type Descriptor struct {
	Name         string
	Version      string
	Capabilities backend.Capability
	New          Factory

	// BuildFilter, if set, lets an extension (or the base plugin) compile a
	// filter into the backend's native query representation ahead of time
	// (spec §4.H: "Extensions extend a plugin by name and may add
	// build_filter"). Reference backends that only support the in-process
	// evaluator leave this nil.
	BuildFilter func(options map[string]string) (any, error)
}

// Registry holds registered plugins and their extensions, keyed by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds d under d.Name, the Go analog of resolving the symbol
// `strtoupper("_RBH_<name>_BACKEND_PLUGIN")` (spec §4.H). Returns
// errs.ErrInvalid if d.Name is already registered or empty.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: plugin name is required", errs.ErrInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("%w: plugin %q is already registered", errs.ErrInvalid, d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// RegisterExtension adds an extension plugin under name that copies
// baseName's Descriptor and replaces only its BuildFilter with the one the
// caller supplies (spec §4.H: "Extensions extend a plugin by name and may
// add build_filter").
func (r *Registry) RegisterExtension(name, baseName string, buildFilter func(options map[string]string) (any, error)) error {
	r.mu.RLock()
	base, ok := r.byName[baseName]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: extension %q references unknown base plugin %q", errs.ErrInvalid, name, baseName)
	}
	ext := base
	ext.Name = name
	ext.BuildFilter = buildFilter
	return r.Register(ext)
}

// Lookup returns the Descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: no plugin registered under %q", errs.ErrNotFound, name)
	}
	return d, nil
}

// New instantiates the plugin registered under name with the given options
// (spec §4.H: "Instantiate the plugin").
func (r *Registry) New(name string, options map[string]string) (backend.Backend, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.New(options)
}

// capabilityNames lists every Capability bit in declaration order, for
// Describe's human-readable rendering.
var capabilityNames = []struct {
	bit  backend.Capability
	name string
}{
	{backend.CapFilter, "filter"},
	{backend.CapSync, "sync"},
	{backend.CapUpdate, "update"},
	{backend.CapBranch, "branch"},
}

// Describe renders the static metadata registered under name into a
// value.Map shaped the way a Backend's own GetInfo(InfoCapabilities)
// answers (spec §4.G: "get_info(info_bitmask) -> a value map describing
// capabilities / source chain"), so a plugin can be introspected before
// it is ever instantiated. internal/docgen.Render consumes this to
// produce a plugin's documentation page.
func (r *Registry) Describe(name string) (*value.Map, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	var caps []*value.Value
	for _, c := range capabilityNames {
		if d.Capabilities.Has(c.bit) {
			caps = append(caps, value.NewString(c.name))
		}
	}
	capsValue, err := value.NewSequence(caps)
	if err != nil {
		return nil, fmt.Errorf("%w: describe %q: %v", errs.ErrInvalid, name, err)
	}

	return value.NewMap(
		value.Pair{Key: "name", Value: value.NewString(d.Name)},
		value.Pair{Key: "version", Value: value.NewString(d.Version)},
		value.Pair{Key: "capabilities", Value: capsValue},
		value.Pair{Key: "has_build_filter", Value: value.NewBool(d.BuildFilter != nil)},
	), nil
}

// Names returns every registered plugin name, sorted, for diagnostics and
// tests.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
