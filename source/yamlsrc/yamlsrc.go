// Package yamlsrc implements RobinHood's YAML source driver (spec
// §4.K.2): a stream of YAML documents, each tagged with one of
// `!upsert`/`!link`/`!unlink`/`!delete`/`!ns_xattr`/`!inode_xattr`,
// decoded into fsevent.Fsevent values.
//
// Decoding walks `yaml.Node` directly rather than unmarshaling into a Go
// struct, since the document's own tag (not a struct field) selects which
// fsevent constructor applies, and scalar tags (`!uint32`, `!regex`, ...)
// select a value.Value variant the same way. This mirrors
// `original_source/rbh-fsevents/src/serialization.c`'s tag-dispatch
// parser, grounded field-for-field below.
package yamlsrc

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsevent"
	"github.com/viant/robinhood/id"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

const (
	tagUpsert     = "!upsert"
	tagLink       = "!link"
	tagUnlink     = "!unlink"
	tagDelete     = "!delete"
	tagNSXattr    = "!ns_xattr"
	tagInodeXattr = "!inode_xattr"

	tagUint32 = "!uint32"
	tagUint64 = "!uint64"
	tagInt32  = "!int32"
	tagInt64  = "!int64"
	tagRegex  = "!regex"
	tagBinary = "!!binary"
	tagStr    = "!!str"
)

// Source decodes successive YAML documents from r into fsevents.
type Source struct {
	name string
	dec  *yaml.Decoder
}

// New builds a Source named name reading from r.
func New(name string, r io.Reader) *Source {
	return &Source{name: name, dec: yaml.NewDecoder(r)}
}

func (s *Source) Name() string { return s.name }

// Next decodes the next document and returns its fsevent. Returns
// errs.ErrEndOfStream once r is exhausted.
func (s *Source) Next() (*fsevent.Fsevent, error) {
	var doc yaml.Node
	if err := s.dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errs.ErrEndOfStream
		}
		return nil, fmt.Errorf("%w: decoding yaml fsevent: %v", errs.ErrIO, err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) != 1 {
			return nil, fmt.Errorf("%w: yaml document must hold exactly one tagged mapping", errs.ErrInvalid)
		}
		root = root.Content[0]
	}
	return decodeFsevent(root)
}

func decodeFsevent(node *yaml.Node) (*fsevent.Fsevent, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: fsevent document must be a mapping", errs.ErrInvalid)
	}
	switch node.Tag {
	case tagUpsert:
		return decodeUpsert(node)
	case tagLink:
		return decodeLink(node)
	case tagUnlink:
		return decodeUnlink(node)
	case tagDelete:
		return decodeDelete(node)
	case tagNSXattr:
		return decodeNSXattr(node)
	case tagInodeXattr:
		return decodeInodeXattr(node)
	default:
		return nil, fmt.Errorf("%w: unknown fsevent tag %q", errs.ErrInvalid, node.Tag)
	}
}

// mappingPairs walks a yaml mapping node's (key, value) content pairs.
func mappingPairs(node *yaml.Node, fn func(key string, val *yaml.Node) error) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func decodeUpsert(node *yaml.Node) (*fsevent.Fsevent, error) {
	var (
		entryID id.ID
		xattrs  *value.Map
		st      *statx.Statx
		symlink *string
		sawID   bool
	)
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "id":
			entryID, err = decodeID(val)
			sawID = true
		case "xattrs":
			xattrs, err = decodeValueMap(val)
		case "statx":
			st, err = decodeStatx(val)
		case "symlink":
			var s string
			s, err = decodeString(val)
			symlink = &s
		default:
			// unknown key: skip (spec §4.K.2).
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID {
		return nil, fmt.Errorf("%w: upsert fsevent missing required \"id\" key", errs.ErrInvalid)
	}
	return fsevent.NewUpsert(entryID, st, symlink, xattrs)
}

func decodeLink(node *yaml.Node) (*fsevent.Fsevent, error) {
	var entryID, parentID id.ID
	var name string
	var xattrs *value.Map
	var sawID, sawParent, sawName bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "id":
			entryID, err = decodeID(val)
			sawID = true
		case "parent":
			parentID, err = decodeID(val)
			sawParent = true
		case "name":
			name, err = decodeString(val)
			sawName = true
		case "xattrs":
			xattrs, err = decodeValueMap(val)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID || !sawParent || !sawName {
		return nil, fmt.Errorf("%w: link fsevent missing required id/parent/name key", errs.ErrInvalid)
	}
	return fsevent.NewLink(entryID, parentID, name, xattrs)
}

// decodeUnlink ignores any "xattrs" key present in the document: xattrs
// are meaningless for an unlink (there is nothing left to attach them to).
func decodeUnlink(node *yaml.Node) (*fsevent.Fsevent, error) {
	var entryID, parentID id.ID
	var name string
	var sawID, sawParent, sawName bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "id":
			entryID, err = decodeID(val)
			sawID = true
		case "parent":
			parentID, err = decodeID(val)
			sawParent = true
		case "name":
			name, err = decodeString(val)
			sawName = true
		case "xattrs":
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID || !sawParent || !sawName {
		return nil, fmt.Errorf("%w: unlink fsevent missing required id/parent/name key", errs.ErrInvalid)
	}
	return fsevent.NewUnlink(entryID, parentID, name, nil)
}

func decodeDelete(node *yaml.Node) (*fsevent.Fsevent, error) {
	var entryID id.ID
	var sawID bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		if key != "id" {
			return fmt.Errorf("%w: delete fsevent has unknown key %q", errs.ErrInvalid, key)
		}
		var err error
		entryID, err = decodeID(val)
		sawID = true
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID {
		return nil, fmt.Errorf("%w: delete fsevent missing required \"id\" key", errs.ErrInvalid)
	}
	return fsevent.NewDelete(entryID, nil), nil
}

func decodeNSXattr(node *yaml.Node) (*fsevent.Fsevent, error) {
	var entryID, parentID id.ID
	var name string
	var xattrs *value.Map
	var sawID, sawParent, sawName bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "id":
			entryID, err = decodeID(val)
			sawID = true
		case "parent":
			parentID, err = decodeID(val)
			sawParent = true
		case "name":
			name, err = decodeString(val)
			sawName = true
		case "xattrs":
			xattrs, err = decodeValueMap(val)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID || !sawParent || !sawName {
		return nil, fmt.Errorf("%w: ns_xattr fsevent missing required id/parent/name key", errs.ErrInvalid)
	}
	return fsevent.NewXattr(entryID, &parentID, &name, xattrs), nil
}

func decodeInodeXattr(node *yaml.Node) (*fsevent.Fsevent, error) {
	var entryID id.ID
	var xattrs *value.Map
	var sawID bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		var err error
		switch key {
		case "id":
			entryID, err = decodeID(val)
			sawID = true
		case "xattrs":
			xattrs, err = decodeValueMap(val)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !sawID {
		return nil, fmt.Errorf("%w: inode_xattr fsevent missing required \"id\" key", errs.ErrInvalid)
	}
	return fsevent.NewXattr(entryID, nil, nil, xattrs), nil
}

func decodeID(node *yaml.Node) (id.ID, error) {
	if node.Kind != yaml.ScalarNode {
		return id.ID{}, fmt.Errorf("%w: expected a binary scalar id", errs.ErrInvalid)
	}
	b, err := base64.StdEncoding.DecodeString(node.Value)
	if err != nil {
		return id.ID{}, fmt.Errorf("%w: malformed base64 id: %v", errs.ErrInvalid, err)
	}
	return id.New(b)
}

func decodeString(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%w: expected a string scalar", errs.ErrInvalid)
	}
	return node.Value, nil
}

// decodeValueMap decodes a generic rbh_value_map: a YAML mapping whose
// values are recursively tag-dispatched scalars/sequences/mappings.
func decodeValueMap(node *yaml.Node) (*value.Map, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a mapping of xattr values", errs.ErrInvalid)
	}
	var pairs []value.Pair
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		v, err := decodeValue(val)
		if err != nil {
			return err
		}
		pairs = append(pairs, value.Pair{Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value.NewMap(pairs...), nil
}

// decodeValue dispatches a generic rbh_value by its scalar/sequence/
// mapping tag (spec §4.K.2).
func decodeValue(node *yaml.Node) (*value.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return decodeScalarValue(node)
	case yaml.SequenceNode:
		elems := make([]*value.Value, len(node.Content))
		for i, c := range node.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewSequence(elems)
	case yaml.MappingNode:
		if node.Tag == tagRegex {
			return decodeRegexValue(node)
		}
		m, err := decodeValueMap(node)
		if err != nil {
			return nil, err
		}
		return value.NewMapValue(m), nil
	default:
		return nil, fmt.Errorf("%w: unsupported yaml node kind for an rbh value", errs.ErrInvalid)
	}
}

func decodeScalarValue(node *yaml.Node) (*value.Value, error) {
	switch node.Tag {
	case tagUint32:
		u, err := strconv.ParseUint(node.Value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed !uint32 scalar %q", errs.ErrInvalid, node.Value)
		}
		return value.NewUint32(uint32(u)), nil
	case tagUint64:
		u, err := strconv.ParseUint(node.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed !uint64 scalar %q", errs.ErrInvalid, node.Value)
		}
		return value.NewUint64(u), nil
	case tagInt32:
		i, err := strconv.ParseInt(node.Value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed !int32 scalar %q", errs.ErrInvalid, node.Value)
		}
		return value.NewInt32(int32(i)), nil
	case tagInt64:
		i, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed !int64 scalar %q", errs.ErrInvalid, node.Value)
		}
		return value.NewInt64(i), nil
	case tagBinary:
		b, err := base64.StdEncoding.DecodeString(node.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed base64 scalar: %v", errs.ErrInvalid, err)
		}
		return value.NewBinary(b), nil
	case tagStr, "":
		return value.NewString(node.Value), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scalar tag %q", errs.ErrInvalid, node.Tag)
	}
}

func decodeRegexValue(node *yaml.Node) (*value.Value, error) {
	var pattern string
	var options value.RegexOption
	var sawPattern bool
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		switch key {
		case "regex":
			var err error
			pattern, err = decodeString(val)
			sawPattern = true
			return err
		case "options":
			u, err := strconv.ParseUint(val.Value, 10, 32)
			if err != nil {
				return fmt.Errorf("%w: malformed regex options %q", errs.ErrInvalid, val.Value)
			}
			options = value.RegexOption(u)
			return nil
		}
		return fmt.Errorf("%w: regex value has unknown key %q", errs.ErrInvalid, key)
	})
	if err != nil {
		return nil, err
	}
	if !sawPattern {
		return nil, fmt.Errorf("%w: regex value missing required \"regex\" key", errs.ErrInvalid)
	}
	return value.NewRegex(pattern, options)
}

var filetypeByName = map[string]uint16{
	"blockdev":  0o60000,
	"chardev":   0o20000,
	"directory": 0o40000,
	"fifo":      0o10000,
	"file":      0o100000,
	"link":      0o120000,
	"socket":    0o140000,
}

var attributeByName = map[string]statx.AttributeFlag{
	"append":     statx.AttrAppend,
	"automount":  statx.AttrAutomount,
	"compressed": statx.AttrCompressed,
	"dax":        statx.AttrDax,
	"encrypted":  statx.AttrEncrypted,
	"immutable":  statx.AttrImmutable,
	"nodump":     statx.AttrNodump,
	"mount_root": statx.AttrMountRoot,
	"verity":     statx.AttrVerity,
}

// decodeStatx decodes a statx mapping (spec §4.K.2: "Timestamps, device
// numbers, and statx-attributes are nested mappings with enumerated
// keys"), mirroring serialization.c's str2statx_field table.
func decodeStatx(node *yaml.Node) (*statx.Statx, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a statx mapping", errs.ErrInvalid)
	}
	st := &statx.Statx{}
	err := mappingPairs(node, func(key string, val *yaml.Node) error {
		switch key {
		case "type":
			name, err := decodeString(val)
			if err != nil {
				return err
			}
			mode, ok := filetypeByName[name]
			if !ok {
				return fmt.Errorf("%w: unknown statx filetype %q", errs.ErrInvalid, name)
			}
			st.Mask |= statx.MaskType
			st.Type |= mode
			return nil
		case "mode":
			perm, err := strconv.ParseUint(strings.TrimPrefix(val.Value, "0"), 8, 16)
			if err != nil {
				return fmt.Errorf("%w: malformed octal permissions %q", errs.ErrInvalid, val.Value)
			}
			st.Mask |= statx.MaskMode
			st.Mode |= uint16(perm)
			return nil
		case "nlink":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskNlink
			st.Nlink = u
			return nil
		case "uid":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskUID
			st.UID = u
			return nil
		case "gid":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskGID
			st.GID = u
			return nil
		case "atime":
			return decodeTimestamp(val, statx.MaskAtimeSec, statx.MaskAtimeNsec, &st.Mask, &st.Atime)
		case "mtime":
			return decodeTimestamp(val, statx.MaskMtimeSec, statx.MaskMtimeNsec, &st.Mask, &st.Mtime)
		case "ctime":
			return decodeTimestamp(val, statx.MaskCtimeSec, statx.MaskCtimeNsec, &st.Mask, &st.Ctime)
		case "btime":
			return decodeTimestamp(val, statx.MaskBtimeSec, statx.MaskBtimeNsec, &st.Mask, &st.Btime)
		case "ino":
			u, err := decodeUint64(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskIno
			st.Ino = u
			return nil
		case "size":
			u, err := decodeUint64(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskSize
			st.Size = u
			return nil
		case "blocks":
			u, err := decodeUint64(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskBlocks
			st.Blocks = u
			return nil
		case "blksize":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			st.Mask |= statx.MaskBlksize
			st.Blksize = u
			return nil
		case "attributes":
			return decodeAttributes(val, st)
		case "rdev":
			return decodeDevice(val, statx.MaskRdevMajor, statx.MaskRdevMinor, &st.Mask, &st.Rdev)
		case "dev":
			return decodeDevice(val, statx.MaskDevMajor, statx.MaskDevMinor, &st.Mask, &st.Dev)
		default:
			return fmt.Errorf("%w: unknown statx field %q", errs.ErrInvalid, key)
		}
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func decodeUint32(node *yaml.Node) (uint32, error) {
	u, err := strconv.ParseUint(node.Value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed uint32 scalar %q", errs.ErrInvalid, node.Value)
	}
	return uint32(u), nil
}

func decodeUint64(node *yaml.Node) (uint64, error) {
	u, err := strconv.ParseUint(node.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed uint64 scalar %q", errs.ErrInvalid, node.Value)
	}
	return u, nil
}

func decodeTimestamp(node *yaml.Node, secBit, nsecBit statx.Mask, mask *statx.Mask, ts *statx.Timestamp) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected a {sec, nsec} timestamp mapping", errs.ErrInvalid)
	}
	return mappingPairs(node, func(key string, val *yaml.Node) error {
		switch key {
		case "sec":
			i, err := strconv.ParseInt(val.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp sec %q", errs.ErrInvalid, val.Value)
			}
			ts.Sec = i
			*mask |= secBit
			return nil
		case "nsec":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			ts.Nsec = u
			*mask |= nsecBit
			return nil
		}
		return fmt.Errorf("%w: unknown timestamp field %q", errs.ErrInvalid, key)
	})
}

func decodeDevice(node *yaml.Node, majorBit, minorBit statx.Mask, mask *statx.Mask, dev *statx.Device) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected a {major, minor} device mapping", errs.ErrInvalid)
	}
	return mappingPairs(node, func(key string, val *yaml.Node) error {
		switch key {
		case "major":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			dev.Major = u
			*mask |= majorBit
			return nil
		case "minor":
			u, err := decodeUint32(val)
			if err != nil {
				return err
			}
			dev.Minor = u
			*mask |= minorBit
			return nil
		}
		return fmt.Errorf("%w: unknown device field %q", errs.ErrInvalid, key)
	})
}

func decodeAttributes(node *yaml.Node, st *statx.Statx) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected an attribute-name to bool mapping", errs.ErrInvalid)
	}
	st.Mask |= statx.MaskAttributes
	return mappingPairs(node, func(key string, val *yaml.Node) error {
		attr, ok := attributeByName[key]
		if !ok {
			return fmt.Errorf("%w: unknown statx attribute %q", errs.ErrInvalid, key)
		}
		set, err := strconv.ParseBool(val.Value)
		if err != nil {
			return fmt.Errorf("%w: malformed attribute bool %q", errs.ErrInvalid, val.Value)
		}
		st.AttributesMask |= attr
		if set {
			st.Attributes |= attr
		} else {
			st.Attributes &^= attr
		}
		return nil
	})
}
