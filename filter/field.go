package filter

import (
	"fmt"
	"strings"

	"github.com/viant/robinhood/errs"
)

// ParseField parses a field-path string into a Field (spec §4.F): id,
// parent-id, name, symlink, ns-xattrs[.<key>], xattrs[.<key>],
// statx[.<sub>]. Unknown identifiers yield errs.ErrInvalid.
func ParseField(s string) (Field, error) {
	head, rest, hasRest := cutFirst(s)

	switch head {
	case "id":
		return requireNoRest(SelectorID, head, rest, hasRest)
	case "parent-id":
		return requireNoRest(SelectorParentID, head, rest, hasRest)
	case "name":
		return requireNoRest(SelectorName, head, rest, hasRest)
	case "symlink":
		return requireNoRest(SelectorSymlink, head, rest, hasRest)
	case "ns-xattrs":
		return Field{Selector: SelectorNsXattrs, XattrKey: rest}, nil
	case "xattrs":
		return Field{Selector: SelectorXattrs, XattrKey: rest}, nil
	case "statx":
		return Field{Selector: SelectorStatx, StatxSub: rest}, nil
	default:
		return Field{}, fmt.Errorf("%w: unknown filter field %q", errs.ErrInvalid, s)
	}
}

// cutFirst splits s on the first '.', returning the head, the remainder
// (without the separator), and whether a remainder was present.
func cutFirst(s string) (head, rest string, hasRest bool) {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx], s[idx+1:], true
	}
	return s, "", false
}

func requireNoRest(sel Selector, head, rest string, hasRest bool) (Field, error) {
	if hasRest {
		return Field{}, fmt.Errorf("%w: field %q does not take a sub-path (got %q)", errs.ErrInvalid, head, rest)
	}
	return Field{Selector: sel}, nil
}

// String renders f back into the dotted field-path syntax ParseField
// accepts.
func (f Field) String() string {
	switch f.Selector {
	case SelectorID:
		return "id"
	case SelectorParentID:
		return "parent-id"
	case SelectorName:
		return "name"
	case SelectorSymlink:
		return "symlink"
	case SelectorNsXattrs:
		if f.XattrKey == "" {
			return "ns-xattrs"
		}
		return "ns-xattrs." + f.XattrKey
	case SelectorXattrs:
		if f.XattrKey == "" {
			return "xattrs"
		}
		return "xattrs." + f.XattrKey
	case SelectorStatx:
		if f.StatxSub == "" {
			return "statx"
		}
		return "statx." + f.StatxSub
	default:
		return "<unknown>"
	}
}
