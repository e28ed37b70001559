package boltdoc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// This file implements boltdoc's on-disk record format: a small, explicit
// binary codec for Fsentry (and the Value/Map/Statx it nests), used to
// serialize into and out of bbolt's []byte-keyed buckets. encoding/gob
// cannot round-trip value.Value (its fields are unexported by design, per
// the "every Value owns its bytes" discipline in package value), so the
// storage layer owns its own wire format instead.

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	putUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) { writeBytes(buf, []byte(s)) }

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated length prefix: %v", errs.ErrInvalid, err)
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := r.Read(b[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("%w: truncated record: %v", errs.ErrInvalid, err)
		}
	}
	return total, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeValue(buf *bytes.Buffer, v *value.Value) error {
	if v == nil {
		buf.WriteByte(0xff)
		return nil
	}
	buf.WriteByte(byte(v.Kind()))
	switch v.Kind() {
	case value.KindBoolean:
		b, _ := v.Bool()
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.KindInt32:
		n, _ := v.Int32()
		putUvarint(buf, uint64(uint32(n)))
	case value.KindUint32:
		n, _ := v.Uint32()
		putUvarint(buf, uint64(n))
	case value.KindInt64:
		n, _ := v.Int64()
		putUvarint(buf, uint64(n))
	case value.KindUint64:
		n, _ := v.Uint64()
		putUvarint(buf, n)
	case value.KindString:
		s, _ := v.String()
		writeString(buf, s)
	case value.KindBinary:
		b, _ := v.Binary()
		writeBytes(buf, b)
	case value.KindRegex:
		pattern, opts, _ := v.Regex()
		writeString(buf, pattern)
		putUvarint(buf, uint64(opts))
	case value.KindSequence:
		seq, _ := v.Sequence()
		putUvarint(buf, uint64(len(seq)))
		for _, e := range seq {
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
	case value.KindMap:
		m, _ := v.Map()
		if err := encodeMap(buf, m); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown value kind %d", errs.ErrInvalid, v.Kind())
	}
	return nil
}

func decodeValue(r *bytes.Reader) (*value.Value, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated value tag: %v", errs.ErrInvalid, err)
	}
	if kindByte == 0xff {
		return nil, nil
	}
	switch value.Kind(kindByte) {
	case value.KindBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated boolean: %v", errs.ErrInvalid, err)
		}
		return value.NewBool(b != 0), nil
	case value.KindInt32:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return value.NewInt32(int32(uint32(n))), nil
	case value.KindUint32:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return value.NewUint32(uint32(n)), nil
	case value.KindInt64:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return value.NewInt64(int64(n)), nil
	case value.KindUint64:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return value.NewUint64(n), nil
	case value.KindString:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return value.NewString(s), nil
	case value.KindBinary:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return value.NewBinary(b), nil
	case value.KindRegex:
		pattern, err := readString(r)
		if err != nil {
			return nil, err
		}
		opts, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		return value.NewRegex(pattern, value.RegexOption(opts))
	case value.KindSequence:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		elems := make([]*value.Value, n)
		for i := range elems {
			e, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return value.NewSequence(elems)
	case value.KindMap:
		m, err := decodeMap(r)
		if err != nil {
			return nil, err
		}
		return value.NewMapValue(m), nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind tag %d", errs.ErrInvalid, kindByte)
	}
}

func encodeMap(buf *bytes.Buffer, m *value.Map) error {
	pairs := m.Pairs()
	putUvarint(buf, uint64(len(pairs)))
	for _, p := range pairs {
		writeString(buf, p.Key)
		if err := encodeValue(buf, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func decodeMap(r *bytes.Reader) (*value.Map, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	pairs := make([]value.Pair, n)
	for i := range pairs {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		pairs[i] = value.Pair{Key: k, Value: v}
	}
	return value.NewMap(pairs...), nil
}

func encodeStatx(buf *bytes.Buffer, s *statx.Statx) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	putUvarint(buf, uint64(s.Mask))
	putUvarint(buf, uint64(s.Type))
	putUvarint(buf, uint64(s.Mode))
	putUvarint(buf, uint64(s.Nlink))
	putUvarint(buf, uint64(s.UID))
	putUvarint(buf, uint64(s.GID))
	putUvarint(buf, uint64(s.Atime.Sec))
	putUvarint(buf, uint64(s.Atime.Nsec))
	putUvarint(buf, uint64(s.Mtime.Sec))
	putUvarint(buf, uint64(s.Mtime.Nsec))
	putUvarint(buf, uint64(s.Ctime.Sec))
	putUvarint(buf, uint64(s.Ctime.Nsec))
	putUvarint(buf, uint64(s.Btime.Sec))
	putUvarint(buf, uint64(s.Btime.Nsec))
	putUvarint(buf, s.Ino)
	putUvarint(buf, s.Size)
	putUvarint(buf, s.Blocks)
	putUvarint(buf, uint64(s.Blksize))
	putUvarint(buf, uint64(s.Attributes))
	putUvarint(buf, uint64(s.AttributesMask))
	putUvarint(buf, uint64(s.Rdev.Major))
	putUvarint(buf, uint64(s.Rdev.Minor))
	putUvarint(buf, uint64(s.Dev.Major))
	putUvarint(buf, uint64(s.Dev.Minor))
	putUvarint(buf, s.MntID)
}

func decodeStatx(r *bytes.Reader) (*statx.Statx, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated statx tag: %v", errs.ErrInvalid, err)
	}
	if tag == 0 {
		return nil, nil
	}
	fields := make([]uint64, 25)
	for i := range fields {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated statx field %d: %v", errs.ErrInvalid, i, err)
		}
		fields[i] = v
	}
	return &statx.Statx{
		Mask:    statx.Mask(fields[0]),
		Type:    uint16(fields[1]),
		Mode:    uint16(fields[2]),
		Nlink:   uint32(fields[3]),
		UID:     uint32(fields[4]),
		GID:     uint32(fields[5]),
		Atime:   statx.Timestamp{Sec: int64(fields[6]), Nsec: uint32(fields[7])},
		Mtime:   statx.Timestamp{Sec: int64(fields[8]), Nsec: uint32(fields[9])},
		Ctime:   statx.Timestamp{Sec: int64(fields[10]), Nsec: uint32(fields[11])},
		Btime:   statx.Timestamp{Sec: int64(fields[12]), Nsec: uint32(fields[13])},
		Ino:     fields[14],
		Size:    fields[15],
		Blocks:  fields[16],
		Blksize: uint32(fields[17]),

		Attributes:     statx.AttributeFlag(fields[18]),
		AttributesMask: statx.AttributeFlag(fields[19]),

		Rdev: statx.Device{Major: uint32(fields[20]), Minor: uint32(fields[21])},
		Dev:  statx.Device{Major: uint32(fields[22]), Minor: uint32(fields[23])},

		MntID: fields[24],
	}, nil
}

func encodeFsentry(e *fsentry.Fsentry) []byte {
	var buf bytes.Buffer
	putUvarint(&buf, uint64(e.Presence))
	writeBytes(&buf, e.ID.Bytes())
	writeBytes(&buf, e.ParentID.Bytes())
	writeString(&buf, e.Name)
	encodeStatx(&buf, e.Statx)
	_ = encodeMap(&buf, orEmpty(e.NsXattrs))
	_ = encodeMap(&buf, orEmpty(e.InodeXattrs))
	if e.Symlink != nil {
		buf.WriteByte(1)
		writeString(&buf, *e.Symlink)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func orEmpty(m *value.Map) *value.Map {
	if m == nil {
		return value.NewMap()
	}
	return m
}

func decodeFsentry(data []byte) (*fsentry.Fsentry, error) {
	r := bytes.NewReader(data)

	presence, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated presence mask: %v", errs.ErrInvalid, err)
	}
	idBytes, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	parentBytes, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	st, err := decodeStatx(r)
	if err != nil {
		return nil, err
	}
	nsXattrs, err := decodeMap(r)
	if err != nil {
		return nil, err
	}
	inodeXattrs, err := decodeMap(r)
	if err != nil {
		return nil, err
	}
	hasSymlink, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated symlink tag: %v", errs.ErrInvalid, err)
	}
	var symlink *string
	if hasSymlink == 1 {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		symlink = &s
	}

	entryID, err := idFromBytes(idBytes)
	if err != nil {
		return nil, err
	}
	parentID, err := idFromBytes(parentBytes)
	if err != nil {
		return nil, err
	}

	mask := fsentry.PresenceMask(presence)
	params := fsentry.Params{}
	if mask&fsentry.PresenceID != 0 {
		params.ID = &entryID
	}
	if mask&fsentry.PresenceParentID != 0 {
		params.ParentID = &parentID
	}
	if mask&fsentry.PresenceName != 0 {
		params.Name = &name
	}
	if mask&fsentry.PresenceStatx != 0 {
		params.Statx = st
	}
	if mask&fsentry.PresenceNsXattrs != 0 {
		params.NsXattrs = nsXattrs
	}
	if mask&fsentry.PresenceInodeXattrs != 0 {
		params.InodeXattrs = inodeXattrs
	}
	if mask&fsentry.PresenceSymlink != 0 {
		params.Symlink = symlink
	}
	return fsentry.New(params)
}
