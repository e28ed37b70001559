// Package id implements RobinHood's opaque, variable-length fsentry
// identity (spec §3/§4.B): an ID is just bytes, with two well-known
// constructions layered on top — a kernel file-handle packing and a Lustre
// FID packing — plus a string form for the FID case used by the URI and
// CLI surfaces.
package id

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/viant/robinhood/errs"
)

// MaxLen is the largest number of bytes an ID may hold (spec §3: len in
// [0, 128]).
const MaxLen = 128

// ID is an opaque byte identity for an fsentry. The zero value (Len()==0)
// is the sentinel root-parent ID (spec §3).
type ID struct {
	bytes []byte
}

// New wraps raw bytes as an ID. Returns errs.ErrInvalid if b is longer than
// MaxLen.
func New(b []byte) (ID, error) {
	if len(b) > MaxLen {
		return ID{}, fmt.Errorf("%w: id length %d exceeds max %d", errs.ErrInvalid, len(b), MaxLen)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return ID{bytes: cp}, nil
}

// Root is the sentinel empty ID matching a root namespace entry with no
// parent (spec §3: len=0 denotes the sentinel root-parent).
var Root = ID{}

// Bytes returns the raw identity bytes. The returned slice aliases the ID's
// internal storage and must not be mutated.
func (i ID) Bytes() []byte { return i.bytes }

// Len reports the number of bytes backing i.
func (i ID) Len() int { return len(i.bytes) }

// IsRoot reports whether i is the sentinel root-parent ID.
func (i ID) IsRoot() bool { return len(i.bytes) == 0 }

// Equal reports whether i and other hold the same bytes.
func (i ID) Equal(other ID) bool { return bytes.Equal(i.bytes, other.bytes) }

// Clone deep-copies i.
func (i ID) Clone() ID {
	cp := make([]byte, len(i.bytes))
	copy(cp, i.bytes)
	return ID{bytes: cp}
}

// FromFileHandle packs a kernel file-handle {handle_type, bytes} into an
// ID, per spec §4.B.
func FromFileHandle(handleType int32, handleBytes []byte) (ID, error) {
	buf := make([]byte, 4+len(handleBytes))
	binary.BigEndian.PutUint32(buf[:4], uint32(handleType))
	copy(buf[4:], handleBytes)
	return New(buf)
}

// FileHandle unpacks an ID built by FromFileHandle back into its
// {handle_type, bytes} components. Returns errs.ErrInvalid if i was not
// built by FromFileHandle-shaped data (fewer than 4 bytes).
func (i ID) FileHandle() (handleType int32, handleBytes []byte, err error) {
	if len(i.bytes) < 4 {
		return 0, nil, fmt.Errorf("%w: id too short to be a file handle", errs.ErrInvalid)
	}
	handleType = int32(binary.BigEndian.Uint32(i.bytes[:4]))
	handleBytes = i.bytes[4:]
	return handleType, handleBytes, nil
}

// FID is Lustre's file identifier: a (seq, oid, ver) triple, 16 bytes on
// the wire (spec glossary).
type FID struct {
	Seq uint64
	Oid uint32
	Ver uint32
}

// FromFID packs a Lustre FID into a 16-byte ID (spec §4.B).
func FromFID(f FID) ID {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], f.Seq)
	binary.BigEndian.PutUint32(buf[8:12], f.Oid)
	binary.BigEndian.PutUint32(buf[12:16], f.Ver)
	return ID{bytes: buf}
}

// AsFID unpacks an ID built by FromFID. Returns errs.ErrInvalid if i is not
// exactly 16 bytes.
func (i ID) AsFID() (FID, error) {
	if len(i.bytes) != 16 {
		return FID{}, fmt.Errorf("%w: id is not a 16-byte FID", errs.ErrInvalid)
	}
	return FID{
		Seq: binary.BigEndian.Uint64(i.bytes[0:8]),
		Oid: binary.BigEndian.Uint32(i.bytes[8:12]),
		Ver: binary.BigEndian.Uint32(i.bytes[12:16]),
	}, nil
}

// String renders f as "0x<seq>:0x<oid>:0x<ver>" (spec §4.B), the form
// ParseFIDString accepts back.
func (f FID) String() string {
	return fmt.Sprintf("0x%x:0x%x:0x%x", f.Seq, f.Oid, f.Ver)
}

// ParseFIDString parses "0x<seq>:0x<oid>:0x<ver>" into a FID. Malformed
// syntax and an out-of-range numeral both return errs.ErrInvalid (errs has
// no distinct "range" sentinel); the error message carries the scanner's
// own error text, which tells the two cases apart.
func ParseFIDString(s string) (FID, error) {
	var seq uint64
	var oid, ver uint32
	n, err := fmt.Sscanf(s, "0x%x:0x%x:0x%x", &seq, &oid, &ver)
	if err != nil || n != 3 {
		return FID{}, fmt.Errorf("%w: malformed FID string %q: %v", errs.ErrInvalid, s, err)
	}
	return FID{Seq: seq, Oid: oid, Ver: ver}, nil
}

// NewRandom builds a synthetic ID for backends with no natural kernel
// handle to anchor identity to (e.g. a document-store backend's root),
// using a random UUID rather than hand-rolled randomness.
func NewRandom() ID {
	u := uuid.New()
	b, _ := u.MarshalBinary()
	return ID{bytes: b}
}
