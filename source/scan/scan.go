// Package scan implements RobinHood's generic filesystem-scan source
// driver (spec §4.K, "a parallel scan (MPI-file variant of the POSIX
// source)"): a Source that walks a real directory tree and emits a
// LINK+UPSERT pair per entry (a bare UPSERT for the scan root), the non-MPI analog of the mpifileutils scan
// backend named in spec.md §1 — parallelism across workers is a
// documented Non-goal of this Go rendition, but the walk itself uses the
// same afs.Service-backed approach as analyzer.Analyzer and
// inspector/repository.Detector (see backend/posix, which shares this
// package's idForPath grounding).
package scan

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"golang.org/x/sys/unix"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// pendingEntry is one not-yet-visited filesystem object discovered during
// the walk: either the scan root (parentID.IsRoot(), name=="") or a
// listed child of an already-visited directory.
type pendingEntry struct {
	url      string
	entryID  id.ID
	parentID id.ID
	name     string
	isRoot   bool
}

// Source walks a directory tree rooted at rootURL, yielding a LINK then an
// UPSERT fsevent per entry (only the UPSERT for the root, which has no
// parent link) in depth-first, parent-before-child order.
type Source struct {
	name string
	fs   afs.Service

	pending []pendingEntry
	buffer  []*fsevent.Fsevent
	pos     int
}

// New builds a Source named name rooted at rootPath, which must already
// exist on disk.
func New(name string, rootPath string) (*Source, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving scan root %q: %v", errs.ErrInvalid, rootPath, err)
	}
	fs := afs.New()
	exists, err := fs.Exists(context.Background(), abs)
	if err != nil {
		return nil, fmt.Errorf("%w: checking scan root %q: %v", errs.ErrIO, abs, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: scan root %q does not exist", errs.ErrInvalid, abs)
	}
	rootID, err := idForPath(abs)
	if err != nil {
		return nil, err
	}
	return &Source{
		name: name,
		fs:   fs,
		pending: []pendingEntry{
			{url: abs, entryID: rootID, parentID: id.Root, name: "", isRoot: true},
		},
	}, nil
}

func (s *Source) Name() string { return s.name }

// Next drains the current entry's buffered events before visiting the
// next pending entry, mirroring source/lustre's batch-then-drain shape
// (spec §4.K.1's buffering note applies equally here: each filesystem
// entry expands to a small fixed batch of events).
func (s *Source) Next() (*fsevent.Fsevent, error) {
	for s.pos >= len(s.buffer) {
		if len(s.pending) == 0 {
			return nil, errs.ErrEndOfStream
		}
		next := s.pending[0]
		s.pending = s.pending[1:]

		batch, children, err := s.visit(next)
		if err != nil {
			return nil, err
		}
		s.pending = append(children, s.pending...)
		s.buffer = batch
		s.pos = 0
	}
	ev := s.buffer[s.pos]
	s.pos++
	return ev, nil
}

// visit builds the LINK+UPSERT batch for entry and, if it is a directory,
// lists its children as new pending entries.
func (s *Source) visit(entry pendingEntry) ([]*fsevent.Fsevent, []pendingEntry, error) {
	var st unix.Stat_t
	if err := unix.Lstat(entry.url, &st); err != nil {
		return nil, nil, fmt.Errorf("%w: lstat %q: %v", errs.ErrIO, entry.url, err)
	}

	var symlink *string
	if st.Mode&syscall.S_IFMT == syscall.S_IFLNK {
		target, err := os.Readlink(entry.url)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: readlink %q: %v", errs.ErrIO, entry.url, err)
		}
		symlink = &target
	}

	nsXattrs := value.NewMap(value.Pair{Key: "path", Value: value.NewString(entry.url)})
	upsert, err := fsevent.NewUpsert(entry.entryID, statxFromUnix(&st), symlink, nsXattrs)
	if err != nil {
		return nil, nil, err
	}

	var batch []*fsevent.Fsevent
	if !entry.isRoot {
		link, err := fsevent.NewLink(entry.entryID, entry.parentID, entry.name, nil)
		if err != nil {
			return nil, nil, err
		}
		batch = append(batch, link)
	}
	batch = append(batch, upsert)

	if st.Mode&syscall.S_IFMT != syscall.S_IFDIR {
		return batch, nil, nil
	}

	objects, err := s.fs.List(context.Background(), entry.url)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing %q: %v", errs.ErrIO, entry.url, err)
	}
	children := make([]pendingEntry, 0, len(objects))
	for _, o := range objects {
		if o.Name() == "." || o.Name() == ".." {
			continue
		}
		childURL := path.Join(entry.url, o.Name())
		childID, err := idForPath(childURL)
		if err != nil {
			return nil, nil, err
		}
		children = append(children, pendingEntry{
			url: childURL, entryID: childID, parentID: entry.entryID, name: o.Name(),
		})
	}
	return batch, children, nil
}

var idHashKey = [32]byte{
	0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37,
	0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f,
	0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
	0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f,
}

// idForPath anchors an entry's identity to the kernel's file-handle,
// falling back to a HighwayHash digest of its absolute path (same
// grounding as backend/posix.idForPath — both walk real directory trees
// and need the same fallback for filesystems that reject
// NAME_TO_HANDLE_AT).
func idForPath(absPath string) (id.ID, error) {
	handle, _, err := unix.NameToHandleAt(unix.AT_FDCWD, absPath, 0)
	if err == nil {
		return id.FromFileHandle(handle.Type(), handle.Bytes())
	}

	h, _ := highwayhash.New64(idHashKey[:])
	_, _ = h.Write([]byte(absPath))
	return id.New(h.Sum(nil))
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
