// Package value implements RobinHood's self-describing, dynamically-typed
// value model (spec §3/§4.A): a tagged union used as the universal payload
// for xattrs, filter operands, and configuration, plus an ordered Map of
// such values.
//
// A Value produced by one of the New* constructors or by Clone owns every
// byte it references; there is no aliasing between Values, so the Go
// garbage collector reclaims a Value (and everything nested inside it) as a
// single unit the moment it becomes unreachable — the Go-native equivalent
// of the original implementation's "free with one call" packed-clone
// discipline described in spec §9.
package value

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// Kind identifies which variant of the tagged union a Value holds.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindString
	KindBinary
	KindRegex
	KindSequence
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindRegex:
		return "regex"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// RegexOption bit-flags the behavior of a REGEX value (spec §6).
type RegexOption uint32

const (
	// RegexCaseInsensitive matches case-insensitively.
	RegexCaseInsensitive RegexOption = 1 << 0
	// RegexShellPattern indicates the pattern is a shell glob translated
	// via the shellglob package rather than a literal PCRE pattern.
	RegexShellPattern RegexOption = 1 << 1

	regexOptionMask = RegexCaseInsensitive | RegexShellPattern
)

// Value is a tagged sum type over the variants enumerated by Kind. Zero
// value is not meaningful; always build one of the New* constructors.
type Value struct {
	kind Kind

	boolean bool
	i32     int32
	u32     uint32
	i64     int64
	u64     uint64
	str     string
	bin     []byte

	regexPattern string
	regexOpts    RegexOption

	seq []*Value
	m   *Map
}

// Kind reports which variant v holds.
func (v *Value) Kind() Kind { return v.kind }

// NewBool builds a BOOLEAN value.
func NewBool(b bool) *Value { return &Value{kind: KindBoolean, boolean: b} }

// NewInt32 builds an INT32 value.
func NewInt32(i int32) *Value { return &Value{kind: KindInt32, i32: i} }

// NewUint32 builds a UINT32 value.
func NewUint32(u uint32) *Value { return &Value{kind: KindUint32, u32: u} }

// NewInt64 builds an INT64 value.
func NewInt64(i int64) *Value { return &Value{kind: KindInt64, i64: i} }

// NewUint64 builds a UINT64 value.
func NewUint64(u uint64) *Value { return &Value{kind: KindUint64, u64: u} }

// NewString builds a STRING value. The copy is owned by the returned Value.
func NewString(s string) *Value {
	return &Value{kind: KindString, str: s}
}

// NewBinary builds a BINARY value. data is copied; the caller's slice may be
// reused or mutated after this call returns.
func NewBinary(data []byte) *Value {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Value{kind: KindBinary, bin: cp}
}

// NewRegex builds a REGEX value. Returns errs.ErrInvalid-wrapped if options
// sets a bit outside regexOptionMask.
func NewRegex(pattern string, options RegexOption) (*Value, error) {
	if options &^ regexOptionMask != 0 {
		return nil, fmt.Errorf("%w: unknown regex option bits %#x", errInvalid, options&^regexOptionMask)
	}
	return &Value{kind: KindRegex, regexPattern: pattern, regexOpts: options}, nil
}

// NewSequence builds a SEQUENCE value. Every element must share the same
// Kind (spec §3: "homogeneous-typed ordered list"); elements are deep-cloned
// into the new Value.
func NewSequence(elems []*Value) (*Value, error) {
	if len(elems) == 0 {
		return &Value{kind: KindSequence}, nil
	}
	kind := elems[0].kind
	cloned := make([]*Value, len(elems))
	for i, e := range elems {
		if e == nil {
			return nil, fmt.Errorf("%w: sequence element %d is nil", errInvalid, i)
		}
		if e.kind != kind {
			return nil, fmt.Errorf("%w: sequence element %d has kind %s, want %s", errInvalid, i, e.kind, kind)
		}
		cloned[i] = e.Clone()
	}
	return &Value{kind: KindSequence, seq: cloned}, nil
}

// NewMapValue wraps a Map as a MAP value, deep-cloning it.
func NewMapValue(m *Map) *Value {
	if m == nil {
		m = NewMap()
	}
	return &Value{kind: KindMap, m: m.Clone()}
}

// Bool returns the BOOLEAN payload; ok is false if v is not a BOOLEAN.
func (v *Value) Bool() (b bool, ok bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

// Int32 returns the INT32 payload.
func (v *Value) Int32() (int32, bool) {
	if v.kind != KindInt32 {
		return 0, false
	}
	return v.i32, true
}

// Uint32 returns the UINT32 payload.
func (v *Value) Uint32() (uint32, bool) {
	if v.kind != KindUint32 {
		return 0, false
	}
	return v.u32, true
}

// Int64 returns the INT64 payload.
func (v *Value) Int64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.i64, true
}

// Uint64 returns the UINT64 payload.
func (v *Value) Uint64() (uint64, bool) {
	if v.kind != KindUint64 {
		return 0, false
	}
	return v.u64, true
}

// String returns the STRING payload.
func (v *Value) String() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Binary returns the BINARY payload. The returned slice aliases the Value's
// internal buffer and must not be mutated.
func (v *Value) Binary() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return v.bin, true
}

// Regex returns the REGEX payload.
func (v *Value) Regex() (pattern string, options RegexOption, ok bool) {
	if v.kind != KindRegex {
		return "", 0, false
	}
	return v.regexPattern, v.regexOpts, true
}

// Sequence returns the SEQUENCE payload. The returned slice aliases the
// Value's internal storage and must not be mutated.
func (v *Value) Sequence() ([]*Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	return v.seq, true
}

// Map returns the MAP payload.
func (v *Value) Map() (*Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Clone deep-clones v into a fresh, fully independent Value.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	clone := &Value{kind: v.kind, boolean: v.boolean, i32: v.i32, u32: v.u32, i64: v.i64, u64: v.u64, str: v.str,
		regexPattern: v.regexPattern, regexOpts: v.regexOpts}
	if v.bin != nil {
		clone.bin = make([]byte, len(v.bin))
		copy(clone.bin, v.bin)
	}
	if v.seq != nil {
		clone.seq = make([]*Value, len(v.seq))
		for i, e := range v.seq {
			clone.seq[i] = e.Clone()
		}
	}
	if v.m != nil {
		clone.m = v.m.Clone()
	}
	return clone
}

// Validate enforces the per-variant well-formedness invariants of spec §4.A:
// MAP keys unique (enforced at construction by Map itself, re-checked here),
// REGEX options within the known mask, SEQUENCE/MAP children individually
// valid.
func (v *Value) Validate() error {
	if v == nil {
		return fmt.Errorf("%w: nil value", errInvalid)
	}
	switch v.kind {
	case KindRegex:
		if v.regexOpts&^regexOptionMask != 0 {
			return fmt.Errorf("%w: unknown regex option bits %#x", errInvalid, v.regexOpts&^regexOptionMask)
		}
	case KindSequence:
		for i, e := range v.seq {
			if e == nil {
				return fmt.Errorf("%w: sequence element %d is nil", errInvalid, i)
			}
			if i > 0 && e.kind != v.seq[0].kind {
				return fmt.Errorf("%w: sequence element %d has kind %s, want %s", errInvalid, i, e.kind, v.seq[0].kind)
			}
			if err := e.Validate(); err != nil {
				return err
			}
		}
	case KindMap:
		if v.m == nil {
			return nil
		}
		if err := v.m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether v and other are structurally equal: same kind and
// same payload, recursively for SEQUENCE/MAP.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBoolean:
		return v.boolean == other.boolean
	case KindInt32:
		return v.i32 == other.i32
	case KindUint32:
		return v.u32 == other.u32
	case KindInt64:
		return v.i64 == other.i64
	case KindUint64:
		return v.u64 == other.u64
	case KindString:
		return v.str == other.str
	case KindBinary:
		if len(v.bin) != len(other.bin) {
			return false
		}
		for i := range v.bin {
			if v.bin[i] != other.bin[i] {
				return false
			}
		}
		return true
	case KindRegex:
		return v.regexPattern == other.regexPattern && v.regexOpts == other.regexOpts
	case KindSequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(other.m)
	}
	return false
}

// hashKey is a fixed 32-byte HighwayHash key. Value fingerprints are
// content hashes, not a security primitive, so a fixed key is sufficient
// and keeps fingerprints stable across process restarts.
var hashKey = [32]byte{
	'r', 'b', 'h', '-', 'c', 'o', 'r', 'e', '-', 'f', 'i', 'n', 'g', 'e', 'r', 'p',
	'r', 'i', 'n', 't', '-', 'k', 'e', 'y', '-', 'v', '1', 0, 0, 0, 0, 0,
}

// Fingerprint returns a content hash of v, stable across equal Values.
func (v *Value) Fingerprint() uint64 {
	h, _ := highwayhash.New64(hashKey[:])
	v.writeFingerprint(h)
	return h.Sum64()
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func (v *Value) writeFingerprint(w byteWriter) {
	if v == nil {
		_, _ = w.Write([]byte{0xff})
		return
	}
	_, _ = w.Write([]byte{byte(v.kind)})
	switch v.kind {
	case KindBoolean:
		if v.boolean {
			_, _ = w.Write([]byte{1})
		} else {
			_, _ = w.Write([]byte{0})
		}
	case KindInt32:
		_, _ = w.Write(beUint32(uint32(v.i32)))
	case KindUint32:
		_, _ = w.Write(beUint32(v.u32))
	case KindInt64:
		_, _ = w.Write(beUint64(uint64(v.i64)))
	case KindUint64:
		_, _ = w.Write(beUint64(v.u64))
	case KindString:
		_, _ = w.Write([]byte(v.str))
	case KindBinary:
		_, _ = w.Write(v.bin)
	case KindRegex:
		_, _ = w.Write([]byte(v.regexPattern))
		_, _ = w.Write(beUint32(uint32(v.regexOpts)))
	case KindSequence:
		for _, e := range v.seq {
			e.writeFingerprint(w)
		}
	case KindMap:
		if v.m != nil {
			for _, p := range v.m.pairs {
				_, _ = w.Write([]byte(p.Key))
				p.Value.writeFingerprint(w)
			}
		}
	}
}

func beUint32(u uint32) []byte {
	return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}

func beUint64(u uint64) []byte {
	return []byte{
		byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32),
		byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u),
	}
}
