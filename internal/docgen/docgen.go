// Package docgen renders a registered backend plugin's capability map
// (plugin.Registry.Describe, the Go analog of spec §4.G's
// get_info(INFO_CAPABILITIES)) into a markdown fragment, embedding a
// short Go usage snippet and validating with go-tree-sitter that the
// snippet actually parses as Go. Adapted from
// `inspector/golang.TreeSitterInspector` (tree-sitter-driven Go source
// inspection) and `inspector/coder.Coder` (programmatic doc/code
// assembly), repurposed from "inspect a codebase" to "render and
// self-validate this codebase's own generated plugin docs".
package docgen

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/value"
)

// Render produces a markdown documentation fragment for the plugin
// described by d (as returned by plugin.Registry.Describe). The fragment
// embeds a Go snippet showing how to instantiate the plugin by name; that
// snippet is parsed with go-tree-sitter's Go grammar and rejected if it
// does not parse as a syntactically valid source file, the same sanity
// check `TreeSitterInspector.InspectSource` performs before extracting
// declarations from real project source.
func Render(d *value.Map) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: nil plugin descriptor", errs.ErrInvalid)
	}

	name, ok := stringField(d, "name")
	if !ok || name == "" {
		return "", fmt.Errorf("%w: plugin descriptor missing name", errs.ErrInvalid)
	}
	version, _ := stringField(d, "version")
	caps := capabilityList(d)

	snippet, err := buildUsageSnippet(name)
	if err != nil {
		return "", err
	}
	if err := validateGoSnippet(snippet); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	if version != "" {
		fmt.Fprintf(&b, "Version: `%s`\n\n", version)
	}
	if len(caps) > 0 {
		fmt.Fprintf(&b, "Capabilities: %s\n\n", strings.Join(caps, ", "))
	} else {
		b.WriteString("Capabilities: none\n\n")
	}
	b.WriteString("```go\n")
	b.WriteString(snippet)
	b.WriteString("```\n")

	return b.String(), nil
}

func stringField(d *value.Map, key string) (string, bool) {
	v, ok := d.Get(key)
	if !ok {
		return "", false
	}
	return v.String()
}

func capabilityList(d *value.Map) []string {
	v, ok := d.Get("capabilities")
	if !ok {
		return nil
	}
	seq, ok := v.Sequence()
	if !ok {
		return nil
	}
	names := make([]string, 0, len(seq))
	for _, elem := range seq {
		if s, ok := elem.String(); ok {
			names = append(names, s)
		}
	}
	return names
}

// pluginImportPath is added to every rendered snippet via astutil.AddImport
// rather than hand-written into the template string, so the snippet can
// never drift out of sync with a rename of the plugin package's import
// path.
const pluginImportPath = "github.com/viant/robinhood/plugin"

// buildUsageSnippet assembles a complete, syntactically valid Go file
// demonstrating how to instantiate the described plugin by name, adding
// its import via golang.org/x/tools/go/ast/astutil.AddImport the way a
// refactoring tool inserts a missing import rather than string-
// concatenating one — the import path is guaranteed well-formed and
// de-duplicated by astutil instead of the template.
func buildUsageSnippet(pluginName string) (string, error) {
	body := fmt.Sprintf(`package docs

func example() error {
	registry := plugin.NewRegistry()
	backend, err := registry.New(%q, nil)
	if err != nil {
		return err
	}
	_ = backend
	return nil
}
`, pluginName)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", body, parser.ParseComments)
	if err != nil {
		return "", fmt.Errorf("%w: parse snippet template: %v", errs.ErrInvalid, err)
	}

	astutil.AddImport(fset, file, pluginImportPath)
	ast.SortImports(fset, file)

	var out bytes.Buffer
	if err := format.Node(&out, fset, file); err != nil {
		return "", fmt.Errorf("%w: format snippet: %v", errs.ErrInvalid, err)
	}
	return out.String(), nil
}

// validateGoSnippet re-parses src with go-tree-sitter's Go grammar as an
// independent check that buildUsageSnippet produced real Go, the same
// sanity check `TreeSitterInspector.InspectSource` performs before
// extracting declarations from real project source.
func validateGoSnippet(src string) error {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil {
		return fmt.Errorf("%w: parse generated snippet: %v", errs.ErrInvalid, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return fmt.Errorf("%w: generated snippet does not parse as Go", errs.ErrInvalid)
	}
	return nil
}
