// Package config models RobinHood's narrow configuration surface (spec
// §6): a CLI alias table with cycle-by-name detection, the
// `backends/<name>/extends` redirection `uri.FromURI` consults, the
// `xattrs_map` value-type table, and the `RBH_RETENTION_XATTR` key.
// Loading follows the explicit-constructor style of
// `repository.Detector`/`repository.New()`: a zero Config is empty and
// valid, and `Open`/`Load` build one from YAML.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/viant/robinhood/errs"
)

// Backend holds the configuration recorded for one backend name under
// `backends/<name>` (spec §6, §4.H step 3).
type Backend struct {
	// Extends redirects plugin resolution to the plugin that implements
	// this name, when the name itself is not a registered plugin.
	Extends string `yaml:"extends"`
}

// raw mirrors the on-disk YAML shape exactly; Config is derived from it
// so the public API never exposes yaml tags.
type raw struct {
	Alias             map[string]string  `yaml:"alias"`
	Backends          map[string]Backend `yaml:"backends"`
	XattrsMap         map[string]string  `yaml:"xattrs_map"`
	RBHRetentionXattr string             `yaml:"RBH_RETENTION_XATTR"`
	Requires          string             `yaml:"requires"`
}

// Config is the parsed, queryable form of a RobinHood configuration file.
// The zero value is an empty, valid configuration.
type Config struct {
	alias          map[string]string
	backends       map[string]Backend
	xattrsMap      map[string]string
	retentionXattr string
	requires       *modfile.File
}

// Open reads and parses the YAML configuration file at path.
func Open(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open config %q: %v", errs.ErrIO, path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a YAML configuration document from r.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", errs.ErrIO, err)
	}

	var doc raw
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse config yaml: %v", errs.ErrInvalid, err)
		}
	}

	c := &Config{
		alias:          doc.Alias,
		backends:       doc.Backends,
		xattrsMap:      doc.XattrsMap,
		retentionXattr: doc.RBHRetentionXattr,
	}

	if strings.TrimSpace(doc.Requires) != "" {
		mod, err := modfile.Parse("requires", []byte(doc.Requires), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: parse requires block: %v", errs.ErrInvalid, err)
		}
		c.requires = mod
	}

	return c, nil
}

// Extends returns the plugin name that backend `name` redirects to via
// `backends/<name>/extends` (spec §4.H step 3), or name itself if the
// backend is absent or declares no extends.
func (c *Config) Extends(name string) string {
	b, ok := c.backends[name]
	if !ok || b.Extends == "" {
		return name
	}
	return b.Extends
}

// XattrType looks up the declared value-type name for a xattr under
// `xattrs_map` (spec §6).
func (c *Config) XattrType(xattr string) (string, bool) {
	t, ok := c.xattrsMap[xattr]
	return t, ok
}

// RetentionXattr returns the configured `RBH_RETENTION_XATTR` key, or ""
// if unset.
func (c *Config) RetentionXattr() string {
	return c.retentionXattr
}

// RequiredBackendVersion returns the version a `requires` block declares
// for backend plugin name, grounded on the same "parse a small
// declarative file into a typed struct" use of golang.org/x/mod/modfile
// that repository.Project.GoModule exercises for go.mod. Absent a
// `requires` block, or an entry for name, ok is false.
func (c *Config) RequiredBackendVersion(name string) (version string, ok bool) {
	if c.requires == nil {
		return "", false
	}
	for _, req := range c.requires.Require {
		if req.Mod.Path == name {
			return req.Mod.Version, true
		}
	}
	return "", false
}

// ExpandAlias fully expands the alias named name, following chained
// aliases (a token inside one alias's expansion that is itself an alias
// name) until no token resolves to a further alias. Cycles are detected
// by name, the way alias.c's history_stack rejects re-entering an alias
// still being expanded, and reported as errs.ErrInvalid rather than an
// unbounded recursion.
func (c *Config) ExpandAlias(name string) (string, error) {
	return c.expandAlias(name, nil)
}

func (c *Config) expandAlias(name string, history []string) (string, error) {
	for _, seen := range history {
		if seen == name {
			return "", fmt.Errorf("%w: infinite loop detected for alias %q", errs.ErrInvalid, name)
		}
	}

	value, ok := c.alias[name]
	if !ok {
		return "", fmt.Errorf("%w: alias %q not found", errs.ErrNotFound, name)
	}

	history = append(history, name)
	tokens := strings.Split(value, " ")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, isAlias := c.alias[tok]; isAlias {
			expanded, err := c.expandAlias(tok, history)
			if err != nil {
				return "", err
			}
			out = append(out, expanded)
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " "), nil
}
