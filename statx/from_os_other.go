//go:build !linux

package statx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/robinhood/errs"
)

// FromPath falls back to os.Lstat when the statx(2) syscall is unavailable
// (spec §4.C). os.FileInfo exposes only type, mode, size, and mtime — no
// atime, ctime, nlink, uid, gid, or inode number — so the mask is built up
// field by field from exactly what gets assigned, rather than claimed
// wholesale via MaskBasicStats; the presence-mask invariant (spec §3)
// requires a set bit to mean the field was actually populated.
// forceSync is rejected with errs.ErrNotSupported, since the fallback path
// cannot guarantee a sync-to-server round trip.
func FromPath(dirfd int, path string, mask Mask, forceSync bool) (*Statx, error) {
	if forceSync {
		return nil, fmt.Errorf("%w: force-sync requires the statx(2) syscall", errs.ErrNotSupported)
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(os.Getenv("PWD"), path)
	}
	info, err := os.Lstat(full)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", errs.ErrIO, path, err)
	}

	s := &Statx{
		Mode: uint16(info.Mode().Perm()),
		Size: uint64(info.Size()),
		Mask: MaskType | MaskMode | MaskSize,
	}
	if info.IsDir() {
		s.Type = 0o040000
	} else if info.Mode()&os.ModeSymlink != 0 {
		s.Type = 0o120000
	} else {
		s.Type = 0o100000
	}
	mtime := info.ModTime()
	s.Mtime = Timestamp{Sec: mtime.Unix(), Nsec: uint32(mtime.Nanosecond())}
	s.Mask |= MaskMtimeSec | MaskMtimeNsec
	return s, nil
}

// ForceSyncSupported reports whether the force-sync flag is honored on this
// platform; false here since only the kernel statx(2) path supports it.
func ForceSyncSupported() bool { return false }

// FromFD requires the statx(2)/open_by_handle_at syscalls, neither of
// which exist off Linux.
func FromFD(fd int, mask Mask, forceSync bool) (*Statx, error) {
	return nil, fmt.Errorf("%w: fd-relative statx requires the statx(2) syscall", errs.ErrNotSupported)
}
