// Package fsentry implements RobinHood's composite document model (spec
// §3/§4.D): an Fsentry bundles an ID, a namespace link, a metadata
// snapshot, and extended attributes behind a presence mask reporting which
// of those fields are actually populated.
package fsentry

import (
	"fmt"
	"strings"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// PresenceMask reports which fields of an Fsentry are populated.
type PresenceMask uint32

const (
	PresenceID PresenceMask = 1 << iota
	PresenceParentID
	PresenceName
	PresenceStatx
	PresenceNsXattrs
	PresenceInodeXattrs
	PresenceSymlink
)

// modeSymlink is the S_IFMT bits for a symlink, used to check the
// symlink/type invariant (spec §3: "if SYMLINK is set then, when TYPE is
// also set, the mode is a symlink").
const modeSymlink = 0o120000

// Fsentry is a filesystem entry viewed as a document (spec glossary). A
// single Fsentry may be reachable under multiple (ParentID, Name) pairs
// when hardlinked; this type models exactly one such namespace link at a
// time — callers iterating a backend's namespace see one Fsentry value per
// link, not a single Fsentry with a list of links (spec §3).
type Fsentry struct {
	Presence PresenceMask

	ID       id.ID
	ParentID id.ID
	Name     string

	Statx *statx.Statx

	NsXattrs    *value.Map
	InodeXattrs *value.Map

	Symlink *string
}

// Params groups Fsentry's constructor arguments (spec §4.D lists them all
// as optional).
type Params struct {
	ID          *id.ID
	ParentID    *id.ID
	Name        *string
	Statx       *statx.Statx
	NsXattrs    *value.Map
	InodeXattrs *value.Map
	Symlink     *string
}

// New builds an Fsentry from Params, deep-cloning every field it is given
// and setting Presence accordingly. Returns errs.ErrInvalid if Symlink is
// set while Statx also reports a TYPE that is not a symlink (spec §3).
func New(p Params) (*Fsentry, error) {
	e := &Fsentry{}

	if p.ID != nil {
		e.ID = p.ID.Clone()
		e.Presence |= PresenceID
	}
	if p.ParentID != nil {
		e.ParentID = p.ParentID.Clone()
		e.Presence |= PresenceParentID
	}
	if p.Name != nil {
		e.Name = *p.Name
		e.Presence |= PresenceName
	}
	if p.Statx != nil {
		e.Statx = p.Statx.Clone()
		e.Presence |= PresenceStatx
	}
	if p.NsXattrs != nil {
		e.NsXattrs = p.NsXattrs.Clone()
		e.Presence |= PresenceNsXattrs
	}
	if p.InodeXattrs != nil {
		e.InodeXattrs = p.InodeXattrs.Clone()
		e.Presence |= PresenceInodeXattrs
	}
	if p.Symlink != nil {
		s := *p.Symlink
		e.Symlink = &s
		e.Presence |= PresenceSymlink
	}

	if err := e.checkSymlinkInvariant(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Fsentry) checkSymlinkInvariant() error {
	if e.Symlink == nil || e.Statx == nil {
		return nil
	}
	if e.Statx.Mask&statx.MaskType == 0 {
		return nil
	}
	if e.Statx.Type != modeSymlink {
		return fmt.Errorf("%w: symlink set but statx.type is not a symlink mode", errs.ErrInvalid)
	}
	return nil
}

// FindInodeXattr splits path on '.' and traverses nested maps under
// InodeXattrs, returning the leaf Value if found (spec §4.D).
func (e *Fsentry) FindInodeXattr(path string) (*value.Value, bool) {
	return findNested(e.InodeXattrs, path)
}

// FindNsXattr is the namespace-xattr analog of FindInodeXattr.
func (e *Fsentry) FindNsXattr(path string) (*value.Value, bool) {
	return findNested(e.NsXattrs, path)
}

func findNested(m *value.Map, path string) (*value.Value, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	cur, ok := m.Get(segments[0])
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		if cur == nil {
			return nil, false
		}
		sub, isMap := cur.Map()
		if !isMap {
			return nil, false
		}
		cur, ok = sub.Get(seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Path reads entry.ns_xattrs["path"] if present and STRING-typed (spec
// §4.D).
func (e *Fsentry) Path() (string, bool) {
	if e.NsXattrs == nil {
		return "", false
	}
	v, ok := e.NsXattrs.Get("path")
	if !ok || v == nil {
		return "", false
	}
	return v.String()
}

// Clone deep-copies e.
func (e *Fsentry) Clone() *Fsentry {
	if e == nil {
		return nil
	}
	clone := &Fsentry{Presence: e.Presence, ID: e.ID.Clone(), ParentID: e.ParentID.Clone(), Name: e.Name}
	if e.Statx != nil {
		clone.Statx = e.Statx.Clone()
	}
	if e.NsXattrs != nil {
		clone.NsXattrs = e.NsXattrs.Clone()
	}
	if e.InodeXattrs != nil {
		clone.InodeXattrs = e.InodeXattrs.Clone()
	}
	if e.Symlink != nil {
		s := *e.Symlink
		clone.Symlink = &s
	}
	return clone
}
