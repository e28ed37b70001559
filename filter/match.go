package filter

import (
	"fmt"
	"regexp"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/fsentry"
	"github.com/viant/robinhood/statx"
	"github.com/viant/robinhood/value"
)

// Match evaluates f against e in-process (spec §3/§4.F), the reference
// evaluator a backend with no native query language falls back on. A nil
// filter matches everything.
func Match(f *Filter, e *fsentry.Fsentry) (bool, error) {
	if f == nil {
		return true, nil
	}
	switch f.Kind {
	case KindCompare:
		return matchCompare(f, e)
	case KindLogical:
		return matchLogical(f, e)
	case KindArray:
		return matchArray(f, e)
	case KindGet:
		// GET parameterizes the outer filter from a separately materialized
		// fsentry; evaluating it against e directly (rather than resolving
		// fsentry_to_get through a backend) is outside Match's scope, which
		// only ever sees one fsentry at a time.
		return false, fmt.Errorf("%w: GET filters require backend-side resolution, not Match", errs.ErrNotSupported)
	default:
		return false, fmt.Errorf("%w: unknown filter kind %d", errs.ErrInvalid, f.Kind)
	}
}

func matchLogical(f *Filter, e *fsentry.Fsentry) (bool, error) {
	switch f.LogicalOp {
	case OpNOT:
		r, err := Match(f.Children[0], e)
		if err != nil {
			return false, err
		}
		return !r, nil
	case OpAND:
		for _, c := range f.Children {
			r, err := Match(c, e)
			if err != nil {
				return false, err
			}
			if !r {
				return false, nil
			}
		}
		return true, nil
	case OpOR:
		for _, c := range f.Children {
			r, err := Match(c, e)
			if err != nil {
				return false, err
			}
			if r {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown logical op %d", errs.ErrInvalid, f.LogicalOp)
	}
}

func matchArray(f *Filter, e *fsentry.Fsentry) (bool, error) {
	fieldVal, present := resolveField(e, f.ArrayField)
	if !present {
		return false, nil
	}
	seq, ok := fieldVal.Sequence()
	if !ok {
		return false, nil
	}
	for _, elem := range seq {
		ok := true
		for _, child := range f.ArrayChildren {
			r, err := matchCompareValue(child.CompareOp, elem, child.Value)
			if err != nil {
				return false, err
			}
			if !r {
				ok = false
				break
			}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchCompare(f *Filter, e *fsentry.Fsentry) (bool, error) {
	fieldVal, present := resolveField(e, f.Field)
	if f.CompareOp == OpEXISTS {
		return present, nil
	}
	if !present {
		return false, nil
	}
	return matchCompareValue(f.CompareOp, fieldVal, f.Value)
}

// resolveField extracts the Value a Field addresses out of e. statx fields
// are synthesized as integer Values on the fly since Statx is a struct, not
// a value.Map.
func resolveField(e *fsentry.Fsentry, field Field) (*value.Value, bool) {
	switch field.Selector {
	case SelectorID:
		return value.NewBinary(e.ID.Bytes()), e.Presence&fsentry.PresenceID != 0
	case SelectorParentID:
		return value.NewBinary(e.ParentID.Bytes()), e.Presence&fsentry.PresenceParentID != 0
	case SelectorName:
		if e.Presence&fsentry.PresenceName == 0 {
			return nil, false
		}
		return value.NewString(e.Name), true
	case SelectorSymlink:
		if e.Symlink == nil {
			return nil, false
		}
		return value.NewString(*e.Symlink), true
	case SelectorNsXattrs:
		v, ok := e.FindNsXattr(field.XattrKey)
		return v, ok
	case SelectorXattrs:
		v, ok := e.FindInodeXattr(field.XattrKey)
		return v, ok
	case SelectorStatx:
		return resolveStatxSub(e.Statx, field.StatxSub)
	default:
		return nil, false
	}
}

func resolveStatxSub(s *statx.Statx, sub string) (*value.Value, bool) {
	if s == nil {
		return nil, false
	}
	switch sub {
	case "type":
		return present(s.Mask.Has(statx.MaskType), value.NewUint32(uint32(s.Type)))
	case "mode":
		return present(s.Mask.Has(statx.MaskMode), value.NewUint32(uint32(s.Mode)))
	case "nlink":
		return present(s.Mask.Has(statx.MaskNlink), value.NewUint32(s.Nlink))
	case "uid":
		return present(s.Mask.Has(statx.MaskUID), value.NewUint32(s.UID))
	case "gid":
		return present(s.Mask.Has(statx.MaskGID), value.NewUint32(s.GID))
	case "atime.sec":
		return present(s.Mask.Has(statx.MaskAtimeSec), value.NewInt64(s.Atime.Sec))
	case "atime.nsec":
		return present(s.Mask.Has(statx.MaskAtimeNsec), value.NewUint32(s.Atime.Nsec))
	case "mtime.sec":
		return present(s.Mask.Has(statx.MaskMtimeSec), value.NewInt64(s.Mtime.Sec))
	case "mtime.nsec":
		return present(s.Mask.Has(statx.MaskMtimeNsec), value.NewUint32(s.Mtime.Nsec))
	case "ctime.sec":
		return present(s.Mask.Has(statx.MaskCtimeSec), value.NewInt64(s.Ctime.Sec))
	case "ctime.nsec":
		return present(s.Mask.Has(statx.MaskCtimeNsec), value.NewUint32(s.Ctime.Nsec))
	case "btime.sec":
		return present(s.Mask.Has(statx.MaskBtimeSec), value.NewInt64(s.Btime.Sec))
	case "btime.nsec":
		return present(s.Mask.Has(statx.MaskBtimeNsec), value.NewUint32(s.Btime.Nsec))
	case "ino":
		return present(s.Mask.Has(statx.MaskIno), value.NewUint64(s.Ino))
	case "size":
		return present(s.Mask.Has(statx.MaskSize), value.NewUint64(s.Size))
	case "blocks":
		return present(s.Mask.Has(statx.MaskBlocks), value.NewUint64(s.Blocks))
	case "blksize":
		return present(s.Mask.Has(statx.MaskBlksize), value.NewUint32(s.Blksize))
	case "attributes":
		return present(s.Mask.Has(statx.MaskAttributes), value.NewUint32(uint32(s.Attributes)))
	case "rdev.major":
		return present(s.Mask.Has(statx.MaskRdevMajor), value.NewUint32(s.Rdev.Major))
	case "rdev.minor":
		return present(s.Mask.Has(statx.MaskRdevMinor), value.NewUint32(s.Rdev.Minor))
	case "dev.major":
		return present(s.Mask.Has(statx.MaskDevMajor), value.NewUint32(s.Dev.Major))
	case "dev.minor":
		return present(s.Mask.Has(statx.MaskDevMinor), value.NewUint32(s.Dev.Minor))
	case "mnt-id":
		return present(s.Mask.Has(statx.MaskMntID), value.NewUint64(s.MntID))
	default:
		return nil, false
	}
}

func present(ok bool, v *value.Value) (*value.Value, bool) {
	if !ok {
		return nil, false
	}
	return v, true
}

func matchCompareValue(op CompareOp, field *value.Value, operand *value.Value) (bool, error) {
	switch op {
	case OpEQ:
		return field.Equal(operand), nil
	case OpLT, OpLE, OpGT, OpGE:
		return compareOrdered(op, field, operand)
	case OpIN:
		seq, ok := operand.Sequence()
		if !ok {
			return false, fmt.Errorf("%w: IN operand is not a SEQUENCE", errs.ErrInvalid)
		}
		for _, elem := range seq {
			if field.Equal(elem) {
				return true, nil
			}
		}
		return false, nil
	case OpREGEX:
		return matchRegex(field, operand)
	case OpBitsAnySet, OpBitsAllSet, OpBitsAnyClear, OpBitsAllClear:
		return matchBits(op, field, operand)
	default:
		return false, fmt.Errorf("%w: unsupported compare op %d", errs.ErrInvalid, op)
	}
}

func asInt64(v *value.Value) (int64, bool) {
	switch v.Kind() {
	case value.KindInt32:
		n, _ := v.Int32()
		return int64(n), true
	case value.KindUint32:
		n, _ := v.Uint32()
		return int64(n), true
	case value.KindInt64:
		n, _ := v.Int64()
		return n, true
	case value.KindUint64:
		n, _ := v.Uint64()
		return int64(n), true
	default:
		return 0, false
	}
}

func compareOrdered(op CompareOp, field, operand *value.Value) (bool, error) {
	var lt, eq bool
	switch {
	case field.Kind() == value.KindString && operand.Kind() == value.KindString:
		a, _ := field.String()
		b, _ := operand.String()
		lt, eq = a < b, a == b
	default:
		a, aok := asInt64(field)
		b, bok := asInt64(operand)
		if !aok || !bok {
			return false, fmt.Errorf("%w: ordered comparison requires numeric or string operands, got %s/%s",
				errs.ErrInvalid, field.Kind(), operand.Kind())
		}
		lt, eq = a < b, a == b
	}
	switch op {
	case OpLT:
		return lt, nil
	case OpLE:
		return lt || eq, nil
	case OpGT:
		return !lt && !eq, nil
	case OpGE:
		return !lt, nil
	default:
		return false, fmt.Errorf("%w: not an ordered op", errs.ErrInvalid)
	}
}

func matchRegex(field, operand *value.Value) (bool, error) {
	s, ok := field.String()
	if !ok {
		return false, nil
	}
	pattern, opts, ok := operand.Regex()
	if !ok {
		return false, fmt.Errorf("%w: REGEX operand is not a REGEX value", errs.ErrInvalid)
	}
	if opts&value.RegexShellPattern != 0 {
		pattern = Translate(pattern)
	}
	if opts&value.RegexCaseInsensitive != 0 {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("%w: invalid regex pattern %q: %v", errs.ErrInvalid, pattern, err)
	}
	return re.MatchString(s), nil
}

func matchBits(op CompareOp, field, operand *value.Value) (bool, error) {
	f, ok := asInt64(field)
	if !ok {
		return false, fmt.Errorf("%w: bit operator requires an integer field", errs.ErrInvalid)
	}
	o, ok := asInt64(operand)
	if !ok {
		return false, fmt.Errorf("%w: bit operator requires an integer operand", errs.ErrInvalid)
	}
	fu, ou := uint64(f), uint64(o)
	switch op {
	case OpBitsAnySet:
		return fu&ou != 0, nil
	case OpBitsAllSet:
		return fu&ou == ou, nil
	case OpBitsAnyClear:
		return fu&ou != ou, nil
	case OpBitsAllClear:
		return fu&ou == 0, nil
	default:
		return false, fmt.Errorf("%w: not a bit op", errs.ErrInvalid)
	}
}
