// Package enrich implements RobinHood's enricher (spec §4.L): it resolves
// the `rbh-fsevents` hint a source driver leaves in a partial Fsevent's
// xattrs by reaching into the live filesystem through a mount file
// descriptor, the way `original_source/rbh-fsevents/src/sources/utils.c`
// resolves a changelog record's FID into real statx/xattr/symlink/path
// data.
package enrich

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/source"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// maxXattrSize bounds a single fgetxattr read (spec §4.L: "up to 64 KiB").
const maxXattrSize = 64 * 1024

// Syscall seams, overridden in tests: open_by_handle_at requires
// CAP_DAC_READ_SEARCH in the general case, which a plain test runner may
// not hold, so the dispatch/decode logic around these calls is exercised
// independently of the privilege the real syscalls need.
var (
	openByHandleAt = unix.OpenByHandleAt
	statxFromFD    = statx.FromFD
	fgetxattr      = unix.Fgetxattr
	readlinkFD     = func(fd int) (string, error) {
		return os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
	}
)

// LustreExtension delegates the "lustre" hint to whatever knows how to
// read layout/HSM/FID state for id through mountFD (spec §4.L: "delegate
// to the Lustre extension with the same mount fd and id"). Lustre
// ioctls/headers are out of scope for this module (spec's Non-goals), so
// callers outside a Lustre-backed deployment pass a nil Extension and the
// hint demotes to absent, same as any other enrichment failure.
type LustreExtension interface {
	Enrich(mountFD int, target id.ID) (*value.Map, error)
}

// Enricher wraps an upstream source.Source, replacing each event's
// `rbh-fsevents` hint with real data before handing it onward; it is
// itself a source.Source so it composes directly into a pipeline (spec
// §4.M: "enricher ∘ source").
type Enricher struct {
	upstream source.Source
	mountFD  int
	lustre   LustreExtension
}

// New builds an Enricher reading mountFD-relative state for hints found
// in events pulled from upstream. lustre may be nil.
func New(upstream source.Source, mountFD int, lustre LustreExtension) *Enricher {
	return &Enricher{upstream: upstream, mountFD: mountFD, lustre: lustre}
}

func (e *Enricher) Name() string { return e.upstream.Name() }

// Next pulls the next event from upstream and enriches it.
func (e *Enricher) Next() (*fsevent.Fsevent, error) {
	ev, err := e.upstream.Next()
	if err != nil {
		return nil, err
	}
	return e.Enrich(ev)
}

// Enrich resolves ev's `rbh-fsevents` hint, if any, returning a new event
// with that key removed (spec §4.L). Events with no hint pass through
// unchanged.
func (e *Enricher) Enrich(ev *fsevent.Fsevent) (*fsevent.Fsevent, error) {
	hintVal, ok := ev.Xattrs.Get(fsevent.RbhFseventsXattr)
	if !ok {
		return ev, nil
	}
	hintMap, ok := hintVal.Map()
	if !ok {
		return nil, fmt.Errorf("%w: rbh-fsevents hint must be a map", errs.ErrInvalid)
	}

	out := ev.Clone()
	out.Xattrs.Delete(fsevent.RbhFseventsXattr)

	for _, p := range hintMap.Pairs() {
		switch p.Key {
		case "statx":
			e.enrichStatx(out, p.Value)
		case "xattrs":
			e.enrichXattrs(out, p.Value)
		case "symlink":
			e.enrichSymlink(out)
		case "lustre":
			e.enrichLustre(out)
		case "path":
			e.enrichPath(out)
		}
	}
	return out, nil
}

// statxFieldMasks maps a whole-field name to its composite Mask, for the
// sequence-of-names form of the "statx" hint. Sub-field names such as
// "atime.sec" are not listed: a sequence containing one is not decoded and
// the hint is ignored.
var statxFieldMasks = map[string]statx.Mask{
	"type":       statx.MaskType,
	"mode":       statx.MaskMode,
	"nlink":      statx.MaskNlink,
	"uid":        statx.MaskUID,
	"gid":        statx.MaskGID,
	"atime":      statx.MaskAtime,
	"mtime":      statx.MaskMtime,
	"ctime":      statx.MaskCtime,
	"btime":      statx.MaskBtime,
	"ino":        statx.MaskIno,
	"size":       statx.MaskSize,
	"blocks":     statx.MaskBlocks,
	"blksize":    statx.MaskBlksize,
	"attributes": statx.MaskAttributes,
	"rdev":       statx.MaskRdev,
	"dev":        statx.MaskDev,
}

func decodeStatxMask(v *value.Value) (statx.Mask, bool) {
	if u, ok := v.Uint32(); ok {
		return statx.Mask(u), true
	}
	if seq, ok := v.Sequence(); ok {
		var mask statx.Mask
		for _, elem := range seq {
			name, ok := elem.String()
			if !ok {
				return 0, false
			}
			bit, ok := statxFieldMasks[name]
			if !ok {
				return 0, false
			}
			mask |= bit
		}
		return mask, true
	}
	return 0, false
}

// enrichStatx resolves the requested statx fields via open_by_handle_at +
// statx(2), merging them onto any statx already attached to the event
// (spec §4.L step 2a "statx"). Any failure demotes to "field unknown":
// the upsert's statx payload is simply left as-is for this hint.
func (e *Enricher) enrichStatx(ev *fsevent.Fsevent, v *value.Value) {
	mask, ok := decodeStatxMask(v)
	if !ok || mask == 0 {
		return
	}

	fd, err := e.openByID(ev.ID)
	if err != nil {
		return
	}
	defer unix.Close(fd)

	resolved, err := statxFromFD(fd, mask, statx.ForceSyncSupported())
	if err != nil {
		return
	}
	if ev.Statx == nil {
		ev.Statx = resolved
		return
	}
	ev.Statx.Merge(resolved)
}

// enrichXattrs fetches each named xattr via fgetxattr, appending a BINARY
// value per name to ev.Xattrs (spec §4.L step 2a "xattrs"). A name that
// fails to resolve is skipped, not fatal.
func (e *Enricher) enrichXattrs(ev *fsevent.Fsevent, v *value.Value) {
	seq, ok := v.Sequence()
	if !ok {
		return
	}

	// fgetxattr rejects an O_PATH-only descriptor (EBADF); a regular
	// read-only open is required.
	fd, err := e.openByIDFlags(ev.ID, unix.O_RDONLY)
	if err != nil {
		return
	}
	defer unix.Close(fd)

	for _, elem := range seq {
		name, ok := elem.String()
		if !ok {
			continue
		}
		buf := make([]byte, maxXattrSize)
		n, err := fgetxattr(fd, name, buf)
		if err != nil {
			continue
		}
		ev.Xattrs.Set(name, value.NewBinary(buf[:n]))
	}
}

// enrichSymlink reads the target of a symlink ev.id refers to (spec §4.L
// step 2a "symlink"). open_by_handle_at has no path component to follow,
// so O_NOFOLLOW just documents intent; the target is read back through
// the /proc/self/fd symlink, the standard way to readlink an
// already-open, not-otherwise-nameable file descriptor.
func (e *Enricher) enrichSymlink(ev *fsevent.Fsevent) {
	fd, err := e.openByIDFlags(ev.ID, unix.O_PATH|unix.O_NOFOLLOW)
	if err != nil {
		return
	}
	defer unix.Close(fd)

	target, err := readlinkFD(fd)
	if err != nil {
		return
	}
	ev.Symlink = &target
}

// enrichLustre delegates to the configured LustreExtension, if any (spec
// §4.L step 2a "lustre").
func (e *Enricher) enrichLustre(ev *fsevent.Fsevent) {
	if e.lustre == nil {
		return
	}
	extras, err := e.lustre.Enrich(e.mountFD, ev.ID)
	if err != nil || extras == nil {
		return
	}
	for _, p := range extras.Pairs() {
		ev.Xattrs.Set(p.Key, p.Value)
	}
}

// enrichPath computes ev's full path as the kernel reports it for the open
// descriptor, i.e. an absolute path that includes the mount point (spec §4.K.1: "compute
// the full path via parent traversal"). The kernel already maintains this
// traversal for any open file descriptor; reading the /proc/self/fd
// symlink is the standard Linux shortcut for it, the same trick
// `rbh-fsevents`'s path-resolution helpers in utils.c fall back to when no
// cached parent chain is available.
func (e *Enricher) enrichPath(ev *fsevent.Fsevent) {
	fd, err := e.openByID(ev.ID)
	if err != nil {
		return
	}
	defer unix.Close(fd)

	target, err := readlinkFD(fd)
	if err != nil {
		return
	}
	ev.Xattrs.Set("path", value.NewString(target))
}

// openByID resolves i to an open file descriptor via open_by_handle_at
// relative to mountFD (spec §4.L: "open e.id through open_by_handle_at ...
// relative to mount fd"). Returns errs.ErrInvalid if i was not built from
// a kernel file handle (e.g. a backend's synthetic fallback id), since
// open_by_handle_at has no meaning for those.
func (e *Enricher) openByID(i id.ID) (int, error) {
	return e.openByIDFlags(i, unix.O_PATH)
}

func (e *Enricher) openByIDFlags(i id.ID, flags int) (int, error) {
	handleType, handleBytes, err := i.FileHandle()
	if err != nil {
		return -1, err
	}
	handle := unix.NewFileHandle(handleType, handleBytes)
	fd, err := openByHandleAt(e.mountFD, handle, flags)
	if err != nil {
		return -1, fmt.Errorf("%w: open_by_handle_at: %v", errs.ErrIO, err)
	}
	return fd, nil
}
