// Package boltdoc implements a bbolt-backed document-store reference
// backend (spec §1's "concrete backend engines ... described only by the
// capability contract" is a Non-goal for engines in general, but this one
// stands in for the document-store family — MongoDB in the original — the
// way prysmaticlabs-prysm's beacon-chain/db/kv package is itself a
// bbolt-backed document store with a bucket-per-concern layout and a
// sibling `filters` package for query construction).
package boltdoc

import (
	"fmt"

	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/value"
	bolt "go.etcd.io/bbolt"
)

// BackendID is boltdoc's first-party numeric backend identity.
const BackendID = 2

var (
	bucketFsentries = []byte("fsentries")
	bucketNamespace = []byte("namespace") // (parent_id, name) -> id
)

// Backend is a bbolt-backed document-store Backend.
type Backend struct {
	db      *bolt.DB
	rootID  id.ID
	name    string
	destroy func() error
}

// Open opens (creating if needed) a bbolt-backed Backend at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening bbolt database: %v", errs.ErrIO, err)
	}
	b := &Backend{db: db, name: "boltdoc", rootID: id.NewRandom()}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFsentries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketNamespace)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initializing buckets: %v", errs.ErrIO, err)
	}

	if err := b.ensureRoot(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) ensureRoot() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		fb := tx.Bucket(bucketFsentries)
		if fb.Get(b.rootID.Bytes()) != nil {
			return nil
		}
		rootEntry, err := fsentry.New(fsentry.Params{ID: &b.rootID, ParentID: &id.Root})
		if err != nil {
			return err
		}
		return fb.Put(b.rootID.Bytes(), encodeFsentry(rootEntry))
	})
}

func idFromBytes(b []byte) (id.ID, error) { return id.New(b) }

func namespaceKey(parent id.ID, name string) []byte {
	return []byte(fmt.Sprintf("%x/%s", parent.Bytes(), name))
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return b.name }

// ID implements backend.Backend.
func (b *Backend) ID() uint16 { return BackendID }

// Capabilities implements backend.Backend.
func (b *Backend) Capabilities() backend.Capability {
	return backend.CapFilter | backend.CapUpdate | backend.CapBranch
}

// GetOption implements backend.Backend; boltdoc exposes no options of its
// own beyond the generic space.
func (b *Backend) GetOption(opt backend.OptionID, buf []byte) (int, error) {
	if err := backend.RejectDeprecated(opt); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: unknown option", errs.ErrNotSupported)
}

// SetOption implements backend.Backend.
func (b *Backend) SetOption(opt backend.OptionID, buf []byte) error {
	if err := backend.RejectDeprecated(opt); err != nil {
		return err
	}
	return fmt.Errorf("%w: unknown option", errs.ErrNotSupported)
}

// Update applies events in order, rolling forward to the first failing
// event on partial-batch failure (spec §4.G).
func (b *Backend) Update(events iterator.Iterator[*fsevent.Fsevent]) (int, error) {
	applied := 0
	for {
		ev, err := events.Next()
		if err == errs.ErrEndOfStream {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}
		if err := b.applyOne(ev); err != nil {
			return applied, err
		}
		applied++
	}
}

func (b *Backend) applyOne(ev *fsevent.Fsevent) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		fb := tx.Bucket(bucketFsentries)
		nb := tx.Bucket(bucketNamespace)

		switch ev.Tag {
		case fsevent.TagUpsert:
			return b.applyUpsert(fb, nb, ev)
		case fsevent.TagLink:
			return nb.Put(namespaceKey(*ev.ParentID, *ev.Name), ev.ID.Bytes())
		case fsevent.TagUnlink:
			return nb.Delete(namespaceKey(*ev.ParentID, *ev.Name))
		case fsevent.TagDelete:
			return fb.Delete(ev.ID.Bytes())
		case fsevent.TagXattr:
			return b.applyXattr(fb, ev)
		default:
			return fmt.Errorf("%w: unknown fsevent tag %d", errs.ErrInvalid, ev.Tag)
		}
	})
}

func (b *Backend) applyUpsert(fb, nb *bolt.Bucket, ev *fsevent.Fsevent) error {
	existing, err := b.loadFsentry(fb, ev.ID)
	if err != nil && err != errs.ErrNotFound {
		return err
	}
	if existing == nil {
		existing = &fsentry.Fsentry{ID: ev.ID.Clone()}
	}
	if ev.Statx != nil {
		if existing.Statx == nil {
			existing.Statx = ev.Statx.Clone()
		} else {
			existing.Statx.Merge(ev.Statx)
		}
		existing.Presence |= fsentry.PresenceStatx
	}
	if ev.Symlink != nil {
		s := *ev.Symlink
		existing.Symlink = &s
		existing.Presence |= fsentry.PresenceSymlink
	}
	existing.Presence |= fsentry.PresenceID
	return fb.Put(existing.ID.Bytes(), encodeFsentry(existing))
}

func (b *Backend) applyXattr(fb *bolt.Bucket, ev *fsevent.Fsevent) error {
	existing, err := b.loadFsentry(fb, ev.ID)
	if err != nil {
		return err
	}
	if ev.Xattrs != nil {
		if existing.InodeXattrs == nil {
			existing.InodeXattrs = value.NewMap()
		}
		for _, p := range ev.Xattrs.Pairs() {
			existing.InodeXattrs.Set(p.Key, p.Value)
		}
		existing.Presence |= fsentry.PresenceInodeXattrs
	}
	return fb.Put(existing.ID.Bytes(), encodeFsentry(existing))
}

func (b *Backend) loadFsentry(fb *bolt.Bucket, entryID id.ID) (*fsentry.Fsentry, error) {
	data := fb.Get(entryID.Bytes())
	if data == nil {
		return nil, errs.ErrNotFound
	}
	return decodeFsentry(data)
}

// Branch implements backend.Backend; since all entries share one bbolt
// database, branching only rebinds the logical root, not the connection
// (spec §4.G: "a branch shares the underlying connection").
func (b *Backend) Branch(byID *id.ID, byPath *string) (backend.Backend, error) {
	if err := backend.CheckBranchArgs(byID, byPath); err != nil {
		return nil, err
	}
	branch := &Backend{db: b.db, name: b.name}
	if byID != nil {
		branch.rootID = byID.Clone()
		return branch, nil
	}
	resolved, err := backend.FsentryFromPath(b, *byPath, fsentry.PresenceID)
	if err != nil {
		return nil, err
	}
	branch.rootID = resolved.ID.Clone()
	return branch, nil
}

// Filter implements backend.Backend by scanning every entry and evaluating
// filter.Match in-process; the namespace bucket only accelerates the
// equality-on-(parent_id,name) case FsentryFromPath relies on (spec §1's
// framing of boltdoc's partial filter push-down).
func (b *Backend) Filter(f *filter.Filter, opts backend.FilterOptions, out backend.Output) (any, error) {
	if out.Kind != backend.OutputProjection {
		return nil, fmt.Errorf("%w: boltdoc supports PROJECTION output only", errs.ErrNotSupported)
	}
	if err := filter.Validate(f); err != nil {
		return nil, err
	}

	if parent, name, ok := namespaceLookupShape(f); ok {
		return b.filterByNamespaceIndex(parent, name)
	}

	var matches []*fsentry.Fsentry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFsentries).ForEach(func(k, v []byte) error {
			entry, err := decodeFsentry(v)
			if err != nil {
				return err
			}
			ok, err := filter.Match(f, entry)
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(matches) {
			matches = nil
		} else {
			matches = matches[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(matches) {
		matches = matches[:opts.Limit]
	}

	return iterator.Array(matches, nil), nil
}

// namespaceLookupShape recognizes AND(parent_id == p, name == n) in either
// child order, the one filter shape boltdoc's namespace index accelerates
// (the shape FsentryFromPath builds at every path segment).
func namespaceLookupShape(f *filter.Filter) (parent id.ID, name string, ok bool) {
	if f == nil || f.Kind != filter.KindLogical || f.LogicalOp != filter.OpAND || len(f.Children) != 2 {
		return id.ID{}, "", false
	}
	var parentBytes []byte
	var haveParent, haveName bool
	for _, c := range f.Children {
		if c.Kind != filter.KindCompare || c.CompareOp != filter.OpEQ {
			return id.ID{}, "", false
		}
		switch c.Field.Selector {
		case filter.SelectorParentID:
			b, isBin := c.Value.Binary()
			if !isBin {
				return id.ID{}, "", false
			}
			parentBytes = b
			haveParent = true
		case filter.SelectorName:
			n, isStr := c.Value.String()
			if !isStr {
				return id.ID{}, "", false
			}
			name = n
			haveName = true
		default:
			return id.ID{}, "", false
		}
	}
	if !haveParent || !haveName {
		return id.ID{}, "", false
	}
	parentID, err := idFromBytes(parentBytes)
	if err != nil {
		return id.ID{}, "", false
	}
	return parentID, name, true
}

func (b *Backend) filterByNamespaceIndex(parent id.ID, name string) (any, error) {
	var matches []*fsentry.Fsentry
	err := b.db.View(func(tx *bolt.Tx) error {
		entryIDBytes := tx.Bucket(bucketNamespace).Get(namespaceKey(parent, name))
		if entryIDBytes == nil {
			return nil
		}
		entryID, err := idFromBytes(entryIDBytes)
		if err != nil {
			return err
		}
		entry, err := b.loadFsentry(tx.Bucket(bucketFsentries), entryID)
		if err == errs.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		matches = append(matches, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iterator.Array(matches, nil), nil
}

// Root implements backend.Backend.
func (b *Backend) Root(projection fsentry.PresenceMask) (*fsentry.Fsentry, error) {
	var entry *fsentry.Fsentry
	err := b.db.View(func(tx *bolt.Tx) error {
		e, err := b.loadFsentry(tx.Bucket(bucketFsentries), b.rootID)
		entry = e
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: root entry missing", errs.ErrNotFound)
	}
	return entry, nil
}

// FilterOne implements backend.Backend as a convenience over Filter.
func (b *Backend) FilterOne(f *filter.Filter, projection fsentry.PresenceMask) (*fsentry.Fsentry, error) {
	res, err := b.Filter(f, backend.FilterOptions{Limit: 1}, backend.Output{Kind: backend.OutputProjection, Projection: projection})
	if err != nil {
		return nil, err
	}
	it := res.(iterator.Iterator[*fsentry.Fsentry])
	entry, err := it.Next()
	if err == errs.ErrEndOfStream {
		return nil, fmt.Errorf("%w: filter_one matched nothing", errs.ErrNotFound)
	}
	return entry, err
}

// GetInfo implements backend.Backend.
func (b *Backend) GetInfo(bitmask backend.InfoBitmask) (*value.Map, error) {
	pairs := []value.Pair{}
	if bitmask&backend.InfoCapabilities != 0 {
		pairs = append(pairs, value.Pair{Key: "capabilities", Value: value.NewUint32(uint32(b.Capabilities()))})
	}
	if bitmask&backend.InfoSourceChain != 0 {
		pairs = append(pairs, value.Pair{Key: "source-chain", Value: value.NewString("boltdoc")})
	}
	return value.NewMap(pairs...), nil
}

// GetAttribute implements backend.Backend; boltdoc defines no plugin-
// specific attributes.
func (b *Backend) GetAttribute(name string, arg *value.Value, max int) ([]value.Pair, error) {
	return nil, fmt.Errorf("%w: boltdoc defines no attributes", errs.ErrNotSupported)
}

// Destroy implements backend.Backend.
func (b *Backend) Destroy() error {
	return b.db.Close()
}
