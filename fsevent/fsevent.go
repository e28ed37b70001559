// Package fsevent implements RobinHood's tagged update record (spec
// §3/§4.E): a minimal-payload description of one change to one fsentry,
// produced by source drivers, expanded by the enricher, and applied by a
// backend's update operation.
package fsevent

import (
	"fmt"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// Tag identifies which variant of the union an Fsevent holds.
type Tag uint8

const (
	TagUpsert Tag = iota
	TagLink
	TagUnlink
	TagDelete
	TagXattr
)

func (t Tag) String() string {
	switch t {
	case TagUpsert:
		return "upsert"
	case TagLink:
		return "link"
	case TagUnlink:
		return "unlink"
	case TagDelete:
		return "delete"
	case TagXattr:
		return "xattr"
	default:
		return "unknown"
	}
}

// RbhFseventsXattr is the reserved xattrs key carrying enrichment hints
// (spec §4.E). It must never reach a backend; the no-partial guard in the
// pipeline package enforces this.
const RbhFseventsXattr = "rbh-fsevents"

// Fsevent is the tagged update record (spec §3/§4.E).
type Fsevent struct {
	Tag    Tag
	ID     id.ID
	Xattrs *value.Map

	// UPSERT payload.
	Statx   *statx.Statx
	Symlink *string

	// LINK / UNLINK payload.
	ParentID *id.ID
	Name     *string
}

// NewUpsert builds an UPSERT event. statxBuf and symlink are both nullable
// (spec §4.E); when both are given, their type must agree (spec §3).
func NewUpsert(i id.ID, statxBuf *statx.Statx, symlink *string, xattrs *value.Map) (*Fsevent, error) {
	e := &Fsevent{Tag: TagUpsert, ID: i.Clone(), Xattrs: cloneXattrs(xattrs)}
	if statxBuf != nil {
		e.Statx = statxBuf.Clone()
	}
	if symlink != nil {
		s := *symlink
		e.Symlink = &s
	}
	if err := e.checkUpsertInvariant(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Fsevent) checkUpsertInvariant() error {
	if e.Symlink == nil || e.Statx == nil {
		return nil
	}
	if e.Statx.Mask&statx.MaskType == 0 {
		return nil
	}
	const modeSymlink = 0o120000
	if e.Statx.Type != modeSymlink {
		return fmt.Errorf("%w: upsert symlink set but statx.type is not a symlink mode", errs.ErrInvalid)
	}
	return nil
}

// NewLink builds a LINK event. parentID and name are both required (spec
// §4.E invariant).
func NewLink(i, parentID id.ID, name string, xattrs *value.Map) (*Fsevent, error) {
	return newLinkage(TagLink, i, parentID, name, xattrs)
}

// NewUnlink builds an UNLINK event. parentID and name are both required.
func NewUnlink(i, parentID id.ID, name string, xattrs *value.Map) (*Fsevent, error) {
	return newLinkage(TagUnlink, i, parentID, name, xattrs)
}

// newLinkage builds a LINK/UNLINK event. Go's non-pointer parameters already
// make the "parent_id and name both required" invariant (spec §4.E)
// unrepresentable as a missing value; an empty name paired with the root
// sentinel ID is the degenerate root-namespace-entry case, not a violation.
func newLinkage(tag Tag, i, parentID id.ID, name string, xattrs *value.Map) (*Fsevent, error) {
	p := parentID.Clone()
	n := name
	return &Fsevent{Tag: tag, ID: i.Clone(), ParentID: &p, Name: &n, Xattrs: cloneXattrs(xattrs)}, nil
}

// NewDelete builds a DELETE event.
func NewDelete(i id.ID, xattrs *value.Map) *Fsevent {
	return &Fsevent{Tag: TagDelete, ID: i.Clone(), Xattrs: cloneXattrs(xattrs)}
}

// NewXattr builds an XATTR event. parentID/name optionally scope the event
// to a namespace link; if both are nil the event is purely inode-scoped
// (spec §3).
func NewXattr(i id.ID, parentID *id.ID, name *string, xattrs *value.Map) *Fsevent {
	e := &Fsevent{Tag: TagXattr, ID: i.Clone(), Xattrs: cloneXattrs(xattrs)}
	if parentID != nil {
		p := parentID.Clone()
		e.ParentID = &p
	}
	if name != nil {
		n := *name
		e.Name = &n
	}
	return e
}

func cloneXattrs(m *value.Map) *value.Map {
	if m == nil {
		return value.NewMap()
	}
	return m.Clone()
}

// Path looks up "path" in ev.Xattrs; present is false if absent, and
// isString reports whether a present value was STRING-typed (spec §4.E:
// "returns ENODATA if absent, EFAULT if non-string").
func (ev *Fsevent) Path() (path string, present bool, isString bool) {
	if ev.Xattrs == nil {
		return "", false, false
	}
	v, ok := ev.Xattrs.Get("path")
	if !ok || v == nil {
		return "", false, false
	}
	s, isStr := v.String()
	return s, true, isStr
}

// HasRbhFseventsHint reports whether ev still carries an unresolved
// enrichment hint (spec §4.E/§4.L). Used by the pipeline's no-partial
// guard.
func (ev *Fsevent) HasRbhFseventsHint() bool {
	if ev.Xattrs == nil {
		return false
	}
	_, ok := ev.Xattrs.Get(RbhFseventsXattr)
	return ok
}

// Clone deep-copies ev.
func (ev *Fsevent) Clone() *Fsevent {
	if ev == nil {
		return nil
	}
	clone := &Fsevent{Tag: ev.Tag, ID: ev.ID.Clone(), Xattrs: ev.Xattrs.Clone()}
	if ev.Statx != nil {
		clone.Statx = ev.Statx.Clone()
	}
	if ev.Symlink != nil {
		s := *ev.Symlink
		clone.Symlink = &s
	}
	if ev.ParentID != nil {
		p := ev.ParentID.Clone()
		clone.ParentID = &p
	}
	if ev.Name != nil {
		n := *ev.Name
		clone.Name = &n
	}
	return clone
}
