// Package lustre implements a Lustre changelog source driver (spec
// §4.K.1): it turns a stream of decoded Lustre changelog records into
// batches of partial Fsevents carrying "rbh-fsevents" enrichment hints,
// which the enrich package later resolves against the live filesystem.
//
// Lustre system headers and liblustreapi bindings are out of scope (a
// documented Non-goal); RecordReader is the seam a real changelog reader
// would sit behind.
package lustre

import (
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// Type identifies the kind of Lustre changelog record (the CL_* constants
// of the original changelog ABI).
type Type uint8

const (
	TypeCreate Type = iota
	TypeMkdir
	TypeSetXattr
	TypeSetAttr
	TypeClose
	TypeMtime
	TypeCtime
	TypeAtime
	TypeSoftlink
	TypeHardlink
	TypeMknod
	TypeRmdir
	TypeUnlink
	TypeRename
	TypeHSM
	TypeTrunc
	TypeLayout
	TypeFLRW
	TypeResync
	TypeMigrate

	// TypeOther covers CL_MARK, CL_EXT, CL_OPEN, CL_GETXATTR, CL_DN_OPEN
	// and any record the driver does not yet translate into fsevents;
	// Source.Next skips these and pulls the next record.
	TypeOther
)

// Flag holds the changelog record flag bits this driver inspects.
type Flag uint32

const (
	// FlagUnlinkLast marks the removed link as the inode's last namespace
	// entry (CLF_UNLINK_LAST).
	FlagUnlinkLast Flag = 1 << iota
	// FlagUnlinkHSMExists marks that an HSM copy survives the unlink
	// (CLF_UNLINK_HSM_EXISTS).
	FlagUnlinkHSMExists
	// FlagRenameLast is CLF_RENAME_LAST: the rename's overwritten link was
	// its target's last namespace entry.
	FlagRenameLast
	// FlagRenameLastExists is CLF_RENAME_LAST_EXISTS: an HSM copy survives
	// the overwrite.
	FlagRenameLastExists
)

// Record is a decoded Lustre changelog entry. Fields not meaningful for a
// given Type are left zero.
type Record struct {
	Type Type

	TargetFID id.FID // cr_tfid: the record's primary inode
	ParentFID id.FID // cr_pfid: that inode's containing directory
	Name      string // changelog_rec_name(record)

	Flags Flag

	UID uint32 // changelog_rec_uidgid: the actor's uid/gid
	GID uint32

	// RENAME/MIGRATE extension (changelog_ext_rename): the entry's
	// pre-operation identity and location.
	SourceFID       id.FID
	SourceParentFID id.FID
	SourceName      string

	// SETXATTR extension: the xattr name that changed.
	XattrName string
}

// RecordReader pulls decoded changelog records one at a time. Next returns
// errs.ErrEndOfStream once the changelog is drained.
type RecordReader interface {
	Next() (*Record, error)
}

// Source adapts a RecordReader into a source.Source. Each record expands
// into a fixed-size batch of fsevents (spec §4.K.1: "Each batch is stored
// in a buffer; the iterator drains the buffer before reading the next
// record"), built up front rather than step-resumed across calls.
type Source struct {
	name   string
	reader RecordReader

	buffer []*fsevent.Fsevent
	pos    int
}

// New builds a Source named name, pulling records from reader.
func New(name string, reader RecordReader) *Source {
	return &Source{name: name, reader: reader}
}

func (s *Source) Name() string { return s.name }

// Next drains the current batch before reading and expanding the next
// record. Records of a type this driver does not translate expand to an
// empty batch, so the loop falls through to the next record rather than
// surfacing a hole in the event stream.
func (s *Source) Next() (*fsevent.Fsevent, error) {
	for s.pos >= len(s.buffer) {
		rec, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		batch, err := buildBatch(rec)
		if err != nil {
			return nil, err
		}
		s.buffer = batch
		s.pos = 0
	}
	ev := s.buffer[s.pos]
	s.pos++
	return ev, nil
}

const maskAll = statx.MaskType | statx.MaskMode | statx.MaskNlink | statx.MaskUID | statx.MaskGID |
	statx.MaskAtime | statx.MaskMtime | statx.MaskCtime | statx.MaskBtime |
	statx.MaskIno | statx.MaskSize | statx.MaskBlocks | statx.MaskBlksize |
	statx.MaskAttributes | statx.MaskRdev | statx.MaskDev | statx.MaskMntID

const maskAllExceptUIDGID = maskAll &^ (statx.MaskUID | statx.MaskGID)

func buildBatch(rec *Record) ([]*fsevent.Fsevent, error) {
	switch rec.Type {
	case TypeCreate, TypeMkdir:
		return buildCreateEvents(rec)
	case TypeSetXattr:
		return buildSetXattrEvents(rec)
	case TypeSetAttr, TypeClose, TypeMtime, TypeCtime, TypeAtime:
		ev, err := fsevent.NewUpsert(targetID(rec), nil, nil, enrichStatx(statxRefreshMask(rec.Type)))
		if err != nil {
			return nil, err
		}
		return []*fsevent.Fsevent{ev}, nil
	case TypeSoftlink:
		return buildSoftlinkEvents(rec)
	case TypeHardlink, TypeMknod:
		return buildHardlinkOrMknodEvents(rec)
	case TypeRmdir, TypeUnlink:
		return buildUnlinkOrRmdirEvents(rec)
	case TypeRename:
		return buildRenameEvents(rec)
	case TypeHSM:
		return buildHSMEvents(rec)
	case TypeTrunc:
		return buildTruncEvents(rec)
	case TypeLayout:
		return buildLayoutEvents(rec)
	case TypeFLRW:
		return buildFLRWEvents(rec)
	case TypeResync:
		return buildResyncEvents(rec)
	case TypeMigrate:
		return buildMigrateEvents(rec)
	default:
		return nil, nil
	}
}

// statxRefreshMask accumulates the mask a SETATTR/CLOSE/MTIME/CTIME/ATIME
// record enriches, mirroring the original's cascading switch fallthrough:
// SETATTR gets everything, CLOSE/MTIME drop uid/gid/type/mode/..., CTIME
// drops mtime/size/blocks too, and ATIME is narrowest.
func statxRefreshMask(t Type) statx.Mask {
	switch t {
	case TypeSetAttr:
		return maskAll
	case TypeClose, TypeMtime:
		return statx.MaskMtime | statx.MaskSize | statx.MaskBlocks | statx.MaskCtime | statx.MaskAtime
	case TypeCtime:
		return statx.MaskCtime | statx.MaskAtime
	case TypeAtime:
		return statx.MaskAtime
	default:
		return 0
	}
}

func fidIsZero(f id.FID) bool { return f.Seq == 0 && f.Oid == 0 && f.Ver == 0 }

func targetID(rec *Record) id.ID { return id.FromFID(rec.TargetFID) }

func enrichHint(pairs ...value.Pair) *value.Map {
	return value.NewMap(value.Pair{Key: fsevent.RbhFseventsXattr, Value: value.NewMapValue(value.NewMap(pairs...))})
}

func enrichEmpty(key string) *value.Map {
	return enrichHint(value.Pair{Key: key})
}

func enrichStatx(mask statx.Mask) *value.Map {
	return enrichHint(value.Pair{Key: "statx", Value: value.NewUint32(uint32(mask))})
}

func enrichSymlinkHint() *value.Map {
	return enrichHint(value.Pair{Key: "symlink", Value: value.NewString("symlink")})
}

func enrichXattrNames(names ...string) (*value.Map, error) {
	elems := make([]*value.Value, len(names))
	for i, n := range names {
		elems[i] = value.NewString(n)
	}
	seq, err := value.NewSequence(elems)
	if err != nil {
		return nil, err
	}
	return enrichHint(value.Pair{Key: "xattrs", Value: seq}), nil
}

func newLinkEvent(rec *Record) (*fsevent.Fsevent, error) {
	return fsevent.NewLink(targetID(rec), id.FromFID(rec.ParentFID), rec.Name, enrichEmpty("path"))
}

// statxWithoutUIDGIDEvent builds an UPSERT carrying the uid/gid the
// changelog record already gives directly, plus an enrichment hint for
// every other statx field (spec §4.K.1: a CREATE's "statx enrichment for
// all fields except uid/gid").
func statxWithoutUIDGIDEvent(rec *Record) (*fsevent.Fsevent, error) {
	st := &statx.Statx{Mask: statx.MaskUID | statx.MaskGID, UID: rec.UID, GID: rec.GID}
	return fsevent.NewUpsert(targetID(rec), st, nil, enrichStatx(maskAllExceptUIDGID))
}

func parentACMTimeEvent(parentFID id.FID) (*fsevent.Fsevent, error) {
	return fsevent.NewUpsert(id.FromFID(parentFID), nil, nil, enrichStatx(statx.MaskAtime|statx.MaskCtime|statx.MaskMtime))
}

func lustreHintEvent(entryID id.ID) *fsevent.Fsevent {
	return fsevent.NewXattr(entryID, nil, nil, enrichEmpty("lustre"))
}

// fidAndLustreHintEvent carries the target's FID as a raw xattr alongside
// the lustre enrichment hint (spec §4.K.1: a CREATE's "XATTR carrying FID
// + lustre hint").
func fidAndLustreHintEvent(rec *Record) *fsevent.Fsevent {
	xattrs := value.NewMap(
		value.Pair{Key: "fid", Value: value.NewBinary(id.FromFID(rec.TargetFID).Bytes())},
		value.Pair{Key: fsevent.RbhFseventsXattr, Value: value.NewMapValue(value.NewMap(value.Pair{Key: "lustre"}))},
	)
	return fsevent.NewXattr(targetID(rec), nil, nil, xattrs)
}

func fidOnlyXattrEvent(rec *Record) *fsevent.Fsevent {
	xattrs := value.NewMap(value.Pair{Key: "fid", Value: value.NewBinary(id.FromFID(rec.TargetFID).Bytes())})
	return fsevent.NewXattr(targetID(rec), nil, nil, xattrs)
}

func buildUnlinkOrDelete(entryID id.ID, parentFID id.FID, name string, lastCopy bool) (*fsevent.Fsevent, error) {
	if lastCopy {
		return fsevent.NewDelete(entryID, nil), nil
	}
	return fsevent.NewUnlink(entryID, id.FromFID(parentFID), name, nil)
}

// buildCreateEvents implements spec §4.K.1's CREATE/MKDIR expansion: a
// LINK, an XATTR carrying FID + lustre hint, a statx enrichment for all
// fields except uid/gid, and a parent mtime/ctime/atime refresh.
func buildCreateEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	link, err := newLinkEvent(rec)
	if err != nil {
		return nil, err
	}
	statxEv, err := statxWithoutUIDGIDEvent(rec)
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{link, fidAndLustreHintEvent(rec), statxEv, parentEv}, nil
}

func buildSetXattrEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	statxEv, err := fsevent.NewUpsert(tid, nil, nil, enrichStatx(statx.MaskCtime))
	if err != nil {
		return nil, err
	}
	xattrs, err := enrichXattrNames(rec.XattrName)
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{statxEv, fsevent.NewXattr(tid, nil, nil, xattrs)}, nil
}

// buildSoftlinkEvents follows buildCreateEvents' shape, except that its
// XATTR event carries the FID without a lustre hint, plus a final event
// marking the symlink target for enrichment (spec §4.K.1).
func buildSoftlinkEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	link, err := newLinkEvent(rec)
	if err != nil {
		return nil, err
	}
	statxEv, err := statxWithoutUIDGIDEvent(rec)
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	symlinkEv, err := fsevent.NewUpsert(targetID(rec), nil, nil, enrichSymlinkHint())
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{link, fidOnlyXattrEvent(rec), statxEv, parentEv, symlinkEv}, nil
}

// buildHardlinkOrMknodEvents is a CREATE expansion minus xattr retrieval:
// hardlink targets share their xattrs with the existing inode, and special
// files (mknod) cannot carry xattrs at all.
func buildHardlinkOrMknodEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	link, err := newLinkEvent(rec)
	if err != nil {
		return nil, err
	}
	statxEv, err := statxWithoutUIDGIDEvent(rec)
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{link, statxEv, parentEv, lustreHintEvent(targetID(rec))}, nil
}

func buildUnlinkOrRmdirEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	lastCopy := rec.Flags&FlagUnlinkLast != 0 && rec.Flags&FlagUnlinkHSMExists == 0
	unlink, err := buildUnlinkOrDelete(targetID(rec), rec.ParentFID, rec.Name, lastCopy)
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{unlink, parentEv}, nil
}

// buildRenameEvents has no way, with fsevents, to modify a link's current
// parent/name in place, so it unlinks the source location and creates a
// new link at the target, both sharing the inode's identity (spec
// §4.K.1: "up to six events including the (optional) unlink of the
// overwritten inode"). The overwrite-unlink is skipped entirely when the
// record's target FID is zero (nothing was overwritten).
func buildRenameEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	lastCopy := rec.Flags&FlagRenameLast != 0 && rec.Flags&FlagRenameLastExists == 0

	var events []*fsevent.Fsevent
	if !fidIsZero(rec.TargetFID) {
		overwritten, err := buildUnlinkOrDelete(targetID(rec), rec.ParentFID, rec.Name, lastCopy)
		if err != nil {
			return nil, err
		}
		events = append(events, overwritten)
	}

	link, err := fsevent.NewLink(id.FromFID(rec.SourceFID), id.FromFID(rec.ParentFID), rec.Name, enrichEmpty("path"))
	if err != nil {
		return nil, err
	}
	st := &statx.Statx{Mask: statx.MaskUID | statx.MaskGID, UID: rec.UID, GID: rec.GID}
	statxEv, err := fsevent.NewUpsert(id.FromFID(rec.SourceFID), st, nil, enrichStatx(maskAllExceptUIDGID))
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	unlinkSrc, err := fsevent.NewUnlink(id.FromFID(rec.SourceFID), id.FromFID(rec.SourceParentFID), rec.SourceName, nil)
	if err != nil {
		return nil, err
	}
	srcParentEv, err := parentACMTimeEvent(rec.SourceParentFID)
	if err != nil {
		return nil, err
	}

	return append(events, link, statxEv, parentEv, unlinkSrc, srcParentEv), nil
}

func buildHSMEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	blocksEv, err := fsevent.NewUpsert(tid, nil, nil, enrichStatx(statx.MaskBlocks))
	if err != nil {
		return nil, err
	}
	lovXattrs, err := enrichXattrNames("trusted.lov")
	if err != nil {
		return nil, err
	}
	hsmXattrs, err := enrichXattrNames("trusted.hsm")
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{
		blocksEv,
		lustreHintEvent(tid),
		fsevent.NewXattr(tid, nil, nil, lovXattrs),
		fsevent.NewXattr(tid, nil, nil, hsmXattrs),
	}, nil
}

func buildTruncEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	mask := statx.MaskCtime | statx.MaskMtime | statx.MaskSize
	ev, err := fsevent.NewUpsert(targetID(rec), nil, nil, enrichStatx(mask))
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{ev}, nil
}

func buildLayoutEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	ev, err := fsevent.NewUpsert(tid, nil, nil, enrichStatx(statx.MaskCtime))
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{ev, lustreHintEvent(tid)}, nil
}

// buildFLRWEvents handles a mirrored file write to the FLR layout's lead
// component: only the block count and ctime move, since the apparent
// size is governed by the lead component and doesn't change until a
// RESYNC reconciles the mirrors.
func buildFLRWEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	mask := statx.MaskCtime | statx.MaskBlocks
	ev, err := fsevent.NewUpsert(tid, nil, nil, enrichStatx(mask))
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{ev, lustreHintEvent(tid)}, nil
}

// buildResyncEvents handles a mirror catching up to the main copy: a
// layout resync can change the entry's apparent size as well as its
// block count, so both are refreshed alongside ctime.
func buildResyncEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	mask := statx.MaskCtime | statx.MaskBlocks | statx.MaskSize
	ev, err := fsevent.NewUpsert(tid, nil, nil, enrichStatx(mask))
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{ev, lustreHintEvent(tid)}, nil
}

// buildMigrateEvents handles a metadata-only migration, which changes the
// entry's FID: it is a (source-unlink, target-link) pair sharing content,
// always removing the source entirely since a migrated entry cannot be
// left with a dangling pre-migration copy.
func buildMigrateEvents(rec *Record) ([]*fsevent.Fsevent, error) {
	tid := targetID(rec)
	link, err := fsevent.NewLink(tid, id.FromFID(rec.ParentFID), rec.Name, enrichEmpty("path"))
	if err != nil {
		return nil, err
	}
	st := &statx.Statx{Mask: statx.MaskUID | statx.MaskGID, UID: rec.UID, GID: rec.GID}
	statxEv, err := fsevent.NewUpsert(tid, st, nil, enrichStatx(maskAllExceptUIDGID))
	if err != nil {
		return nil, err
	}
	parentEv, err := parentACMTimeEvent(rec.ParentFID)
	if err != nil {
		return nil, err
	}
	unlinkSrc := fsevent.NewDelete(id.FromFID(rec.SourceFID), nil)
	srcParentEv, err := parentACMTimeEvent(rec.SourceParentFID)
	if err != nil {
		return nil, err
	}
	return []*fsevent.Fsevent{link, statxEv, parentEv, unlinkSrc, srcParentEv, lustreHintEvent(tid)}, nil
}
