// Package backend defines RobinHood's polymorphic storage contract (spec
// §3/§4.G): an opaque handle exposing filter/branch/update/get_info/root/
// get_attribute/option accessors behind a capability bitmask, plus the
// generic option space and the plugin registry backends are looked up
// through.
package backend

import (
	"fmt"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/value"
)

// Capability bit-flags the operations a Backend implements (spec §3:
// "capability bitmask {FILTER, SYNC, UPDATE, BRANCH}").
type Capability uint8

const (
	CapFilter Capability = 1 << iota
	CapSync
	CapUpdate
	CapBranch
)

// Has reports whether every bit set in want is also set in c.
func (c Capability) Has(want Capability) bool { return c&want == want }

// FirstPartyIDMax is the highest numeric backend id reserved for first-party
// plugins; 128..255 is the user-defined range (spec §3).
const FirstPartyIDMax = 127

// Info bits for GetInfo's bitmask argument (spec §4.G: "a value map
// describing capabilities / source chain").
type InfoBitmask uint32

const (
	InfoCapabilities InfoBitmask = 1 << iota
	InfoSourceChain
	InfoPluginVersion
)

// SortDirection orders a Filter query's results (spec §4.G: "options
// {sort, limit, skip}").
type SortDirection uint8

const (
	SortAscending SortDirection = iota
	SortDescending
)

// SortKey names one field a Filter query result set is ordered by.
type SortKey struct {
	Field     filter.Field
	Direction SortDirection
}

// FilterOptions groups Filter's {sort, limit, skip} parameters.
type FilterOptions struct {
	Sort  []SortKey
	Limit int // 0 means unbounded
	Skip  int
}

// OutputKind selects between a plain fsentry projection and an aggregation
// (spec §4.G: "output ∈ {PROJECTION(mask), VALUES(group, accumulators)}").
type OutputKind uint8

const (
	OutputProjection OutputKind = iota
	OutputValues
)

// Accumulator names an aggregation function applied to a field within a
// VALUES-shaped Filter output group.
type Accumulator struct {
	Name  string // e.g. "sum", "count", "min", "max"
	Field filter.Field
}

// Output describes what Filter should produce.
type Output struct {
	Kind OutputKind

	// PROJECTION
	Projection fsentry.PresenceMask

	// VALUES
	Group        []filter.Field
	Accumulators []Accumulator
}

// Row is one result of a VALUES-shaped Filter query: the group-by key
// values followed by the accumulator results, in the same order as
// Output.Group and Output.Accumulators.
type Row struct {
	GroupValues  []*value.Value
	Accumulators []*value.Value
}

// Backend is the polymorphic storage contract (spec §4.G). Every method not
// gated by a set Capability bit returns errs.ErrNotSupported.
type Backend interface {
	// Name is the backend's display name (e.g. "posix", "boltdoc").
	Name() string
	// ID is the backend's numeric identity; <= FirstPartyIDMax for
	// first-party plugins.
	ID() uint16
	Capabilities() Capability

	GetOption(opt OptionID, buf []byte) (n int, err error)
	SetOption(opt OptionID, buf []byte) error

	// Update applies events in order, returning the count of successfully
	// applied events; on partial-batch failure the count reflects events
	// applied strictly before the first failure (spec §4.G: "must roll
	// forward to the first failing event").
	Update(events iterator.Iterator[*fsevent.Fsevent]) (applied int, err error)

	// Branch produces a new Backend rooted at the subtree named by
	// exactly one of byID or byPath (spec §4.G: "exactly one must be
	// non-null"). The branch shares the parent's underlying connection;
	// destroying the parent must not invalidate live branches.
	Branch(byID *id.ID, byPath *string) (Backend, error)

	// Filter returns either an fsentry iterator (Output.Kind ==
	// OutputProjection) or a Row iterator (OutputValues); callers type-
	// assert the concrete iterator element type against Output.Kind.
	Filter(f *filter.Filter, opts FilterOptions, out Output) (any, error)

	Root(projection fsentry.PresenceMask) (*fsentry.Fsentry, error)
	FilterOne(f *filter.Filter, projection fsentry.PresenceMask) (*fsentry.Fsentry, error)

	GetInfo(bitmask InfoBitmask) (*value.Map, error)
	GetAttribute(name string, arg *value.Value, max int) ([]value.Pair, error)

	Destroy() error
}

// CheckBranchArgs enforces Branch's "exactly one must be non-null"
// invariant (spec §4.G); reference backends call this before doing any
// work.
func CheckBranchArgs(byID *id.ID, byPath *string) error {
	if (byID == nil) == (byPath == nil) {
		return fmt.Errorf("%w: branch requires exactly one of id or path", errs.ErrInvalid)
	}
	return nil
}
