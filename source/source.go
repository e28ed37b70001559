// Package source defines RobinHood's source-driver contract (spec §4.K):
// a Source is a named, immutable iterator of (possibly partial) Fsevents.
// Concrete drivers live in sibling packages (lustre, yamlsrc, scan).
package source

import "github.com/viant/robinhood/fsevent"

// Source is an immutable iterator<Fsevent> labeled by a name (spec §4.K).
// Errors other than errs.ErrEndOfStream propagate to the pipeline
// unchanged.
type Source interface {
	Name() string
	Next() (*fsevent.Fsevent, error)
}
