// Package posix implements a POSIX filesystem reference backend (spec
// §4.G): a Backend whose entries are real files under a root directory,
// stat'd and listed through afs.Service the way analyzer.Analyzer and
// inspector/repository.Detector walk a project tree, with
// golang.org/x/sys/unix filling the primitives afs has no wrapper for
// (kernel file handles, lstat snapshots).
package posix

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"golang.org/x/sys/unix"

	"github.com/viant/robinhood/backend"
	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/filter"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/iterator"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// BackendID is posix's first-party numeric backend identity.
const BackendID = 1

// Backend is a read-only view of a real directory tree (spec §4.G: a
// filesystem-family plugin whose Root maps onto an actual on-disk
// directory). It supports FILTER and BRANCH; it has no UPDATE or SYNC
// surface since mutating the live filesystem from fsevents is the
// concrete rbh-sync domain, a documented Non-goal.
type Backend struct {
	fs      afs.Service
	rootURL string
	rootID  id.ID
	name    string
	metrics *backend.Metrics
}

// idHashKey is a fixed 32-byte HighwayHash key used only when the kernel
// declines to hand back a real file handle (spec §4.B allows an opaque ID
// of any construction; this is the fallback, not the primary, identity
// source).
var idHashKey = [32]byte{
	0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
	0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f,
	0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27,
	0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f,
}

// Open roots a Backend at rootPath, which must already exist on disk.
func Open(rootPath string) (*Backend, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving root path %q: %v", errs.ErrInvalid, rootPath, err)
	}
	fs := afs.New()
	exists, err := fs.Exists(context.Background(), abs)
	if err != nil {
		return nil, fmt.Errorf("%w: checking root path %q: %v", errs.ErrIO, abs, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: root path %q does not exist", errs.ErrInvalid, abs)
	}

	rootID, err := idForPath(abs)
	if err != nil {
		return nil, err
	}
	return &Backend{fs: fs, rootURL: abs, rootID: rootID, name: "posix", metrics: backend.NewMetrics("posix")}, nil
}

// idForPath anchors an fsentry's ID to the kernel's own file-handle
// identity (spec §4.B: "a kernel file-handle packing"), falling back to a
// HighwayHash digest of the absolute path on filesystems that reject
// NAME_TO_HANDLE_AT (overlayfs without the right export support, tmpfs on
// some kernels, sandboxes without CAP_DAC_READ_SEARCH).
func idForPath(absPath string) (id.ID, error) {
	handle, _, err := unix.NameToHandleAt(unix.AT_FDCWD, absPath, 0)
	if err == nil {
		return id.FromFileHandle(handle.Type(), handle.Bytes())
	}

	h, _ := highwayhash.New64(idHashKey[:])
	_, _ = h.Write([]byte(absPath))
	return id.New(h.Sum(nil))
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return b.name }

// ID implements backend.Backend.
func (b *Backend) ID() uint16 { return BackendID }

// Capabilities implements backend.Backend.
func (b *Backend) Capabilities() backend.Capability {
	return backend.CapFilter | backend.CapBranch
}

// GetOption implements backend.Backend; posix exposes no options of its own.
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

// Update implements backend.Backend; posix has no UPDATE capability.
func (b *Backend) Update(events iterator.Iterator[*fsevent.Fsevent]) (int, error) {
	return 0, fmt.Errorf("%w: posix backend does not support update", errs.ErrNotSupported)
}

// Branch implements backend.Backend by rebinding the logical root to a
// subdirectory, sharing the parent's afs.Service.
func (b *Backend) Branch(byID *id.ID, byPath *string) (backend.Backend, error) {
	if err := backend.CheckBranchArgs(byID, byPath); err != nil {
		return nil, err
	}
	if byPath != nil {
		sub := path.Join(b.rootURL, strings.TrimPrefix(*byPath, "/"))
		subID, err := idForPath(sub)
		if err != nil {
			return nil, err
		}
		return &Backend{fs: b.fs, rootURL: sub, rootID: subID, name: b.name, metrics: b.metrics}, nil
	}
	// byID: posix has no reverse ID->path index, so branching by id is
	// not supported.
	return nil, fmt.Errorf("%w: posix backend cannot branch by bare id", errs.ErrNotSupported)
}

// Filter implements backend.Backend by walking the directory tree rooted
// at rootURL and evaluating filter.Match in-process (spec §1: "one
// first-party reference engine ... described only by the capability
// contract" — posix trades push-down for a straightforward, ground-
// truth-correct walk, same as boltdoc's full-scan fallback).
func (b *Backend) Filter(f *filter.Filter, opts backend.FilterOptions, out backend.Output) (any, error) {
	b.metrics.ObserveFilter()
	if out.Kind != backend.OutputProjection {
		return nil, fmt.Errorf("%w: posix supports PROJECTION output only", errs.ErrNotSupported)
	}
	if err := filter.Validate(f); err != nil {
		return nil, err
	}

	var matches []*fsentry.Fsentry
	if err := b.walk(b.rootURL, b.rootID, &matches, f); err != nil {
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

func (b *Backend) walk(dirURL string, dirID id.ID, matches *[]*fsentry.Fsentry, f *filter.Filter) error {
	entry, err := b.loadEntry(dirURL, dirID)
	if err != nil {
		return err
	}
	ok, err := filter.Match(f, entry)
	if err != nil {
		return err
	}
	if ok {
		*matches = append(*matches, entry)
	}

	objects, err := b.fs.List(context.Background(), dirURL)
	if err != nil {
		return fmt.Errorf("%w: listing %q: %v", errs.ErrIO, dirURL, err)
	}
	for _, o := range objects {
		if o.Name() == "." || o.Name() == ".." {
			continue
		}
		childURL := path.Join(dirURL, o.Name())
		childID, err := idForPath(childURL)
		if err != nil {
			return err
		}
		if o.IsDir() {
			if err := b.walk(childURL, childID, matches, f); err != nil {
				return err
			}
			continue
		}
		child, err := b.loadEntry(childURL, childID)
		if err != nil {
			return err
		}
		ok, err := filter.Match(f, child)
		if err != nil {
			return err
		}
		if ok {
			*matches = append(*matches, child)
		}
	}
	return nil
}

// loadEntry stats url with unix.Lstat (a symlink is reported as itself, not
// its target) and assembles an Fsentry with Name/ParentID populated
// relative to rootURL.
func (b *Backend) loadEntry(url string, entryID id.ID) (*fsentry.Fsentry, error) {
	var st unix.Stat_t
	if err := unix.Lstat(url, &st); err != nil {
		return nil, fmt.Errorf("%w: lstat %q: %v", errs.ErrIO, url, err)
	}

	name := path.Base(url)
	parentURL := path.Dir(url)
	var parentID id.ID
	if url == b.rootURL {
		parentID = id.Root
	} else {
		var err error
		parentID, err = idForPath(parentURL)
		if err != nil {
			return nil, err
		}
	}

	snapshot := statxFromUnix(&st)

	var symlink *string
	if st.Mode&syscall.S_IFMT == syscall.S_IFLNK {
		target, err := os.Readlink(url)
		if err != nil {
			return nil, fmt.Errorf("%w: readlink %q: %v", errs.ErrIO, url, err)
		}
		symlink = &target
	}

	nsXattrs := value.NewMap(value.Pair{Key: "path", Value: value.NewString(url)})

	return fsentry.New(fsentry.Params{
		ID: &entryID, ParentID: &parentID, Name: &name,
		Statx: snapshot, NsXattrs: nsXattrs, Symlink: symlink,
	})
}

func statxFromUnix(st *unix.Stat_t) *statx.Statx {
	return &statx.Statx{
		Mask:    statx.MaskBasicStats | statx.MaskRdev | statx.MaskDev,
		Type:    uint16(st.Mode & syscall.S_IFMT),
		Mode:    uint16(st.Mode &^ syscall.S_IFMT),
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Atime:   statx.Timestamp{Sec: st.Atim.Sec, Nsec: uint32(st.Atim.Nsec)},
		Mtime:   statx.Timestamp{Sec: st.Mtim.Sec, Nsec: uint32(st.Mtim.Nsec)},
		Ctime:   statx.Timestamp{Sec: st.Ctim.Sec, Nsec: uint32(st.Ctim.Nsec)},
		Ino:     st.Ino,
		Size:    uint64(st.Size),
		Blocks:  uint64(st.Blocks),
		Blksize: uint32(st.Blksize),
		Rdev:    statx.Device{Major: uint32(unix.Major(uint64(st.Rdev))), Minor: uint32(unix.Minor(uint64(st.Rdev)))},
		Dev:     statx.Device{Major: uint32(unix.Major(uint64(st.Dev))), Minor: uint32(unix.Minor(uint64(st.Dev)))},
	}
}

// Root implements backend.Backend.
func (b *Backend) Root(projection fsentry.PresenceMask) (*fsentry.Fsentry, error) {
	return b.loadEntry(b.rootURL, b.rootID)
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
		pairs = append(pairs, value.Pair{Key: "source-chain", Value: value.NewString("posix:" + b.rootURL)})
	}
	return value.NewMap(pairs...), nil
}

// GetAttribute implements backend.Backend; posix exposes a Prometheus
// metrics snapshot under the "metrics" name (spec §4.G: the generic
// option space's GC surface, exposed via get_attribute rather than
// get_option since it returns an open-ended set of values).
func (b *Backend) GetAttribute(name string, arg *value.Value, max int) ([]value.Pair, error) {
	if name != "metrics" {
		return nil, fmt.Errorf("%w: posix defines no attribute %q", errs.ErrNotSupported, name)
	}
	return b.metrics.Snapshot(max)
}

// Destroy implements backend.Backend; posix holds no resources beyond the
// shared afs.Service, which is process-global and outlives any one Backend.
func (b *Backend) Destroy() error { return nil }
