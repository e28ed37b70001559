package backend

import (
	"strings"

	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/value"
)

// FsentryFromPath resolves path against b by iteratively walking parent_id
// and name equality filters (spec §4.G.1), the generic overlay any backend
// gets for free on top of filter_one and branch. path is stripped of its
// leading '/'; an empty path resolves to Root.
func FsentryFromPath(b Backend, path string, projection fsentry.PresenceMask) (*fsentry.Fsentry, error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return b.Root(projection)
	}

	segments := strings.Split(path, "/")
	current := id.Root

	for i, seg := range segments {
		last := i == len(segments)-1

		proj := fsentry.PresenceID
		if last {
			proj = projection
		}

		nameEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorName}, value.NewString(seg))
		if err != nil {
			return nil, err
		}
		parentEQ, err := filter.CompareNew(filter.OpEQ, filter.Field{Selector: filter.SelectorParentID}, value.NewBinary(current.Bytes()))
		if err != nil {
			return nil, err
		}
		and, err := filter.AndNew(parentEQ, nameEQ)
		if err != nil {
			return nil, err
		}

		entry, err := b.FilterOne(and, proj|fsentry.PresenceID)
		if err != nil {
			return nil, err
		}

		if last {
			return entry, nil
		}
		current = entry.ID
	}
	return nil, nil // unreachable: segments is never empty here
}
