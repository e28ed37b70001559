// Package filter implements RobinHood's composable filter algebra (spec
// §3/§4.F): comparison, logical, array, and get-subquery predicates over
// fsentry fields, with structural validation, deep clone, a field-path
// parser, a shell-glob-to-regex translator, and an in-process evaluator.
package filter

import (
	"fmt"

	"github.com/viant/robinhood/errs"
	"github.com/viant/robinhood/value"
)

// CompareOp enumerates comparison operators (spec §3).
type CompareOp uint8

const (
	OpEQ CompareOp = iota
	OpLT
	OpLE
	OpGT
	OpGE
	OpIN
	OpREGEX
	OpEXISTS
	OpBitsAnySet
	OpBitsAllSet
	OpBitsAnyClear
	OpBitsAllClear
)

// LogicalOp enumerates logical combinators (spec §3).
type LogicalOp uint8

const (
	OpAND LogicalOp = iota
	OpOR
	OpNOT
)

// ArrayOp enumerates array predicates (spec §3).
type ArrayOp uint8

const (
	OpELEMMATCH ArrayOp = iota
)

// Selector names the part of an Fsentry a Field addresses (spec §4.F).
type Selector uint8

const (
	SelectorID Selector = iota
	SelectorParentID
	SelectorName
	SelectorSymlink
	SelectorNsXattrs
	SelectorXattrs // inode_xattrs (spec: "xattrs.trusted.lov" is an inode xattr)
	SelectorStatx
)

// Field is a field path: an fsentry_selector plus, for SelectorStatx, a
// dotted sub-field name (e.g. "mtime.sec"), or for SelectorNsXattrs /
// SelectorXattrs, a dotted key path into the corresponding Map (spec
// §4.F).
type Field struct {
	Selector Selector
	StatxSub string // e.g. "mtime.sec", "size"; empty selects the whole Statx
	XattrKey string // dotted path into ns_xattrs/xattrs; empty selects the whole Map
}

// Kind distinguishes the four shapes a Filter can take (spec §3).
type Kind uint8

const (
	KindCompare Kind = iota
	KindLogical
	KindArray
	KindGet
)

// Filter is the sum type over COMPARE / LOGICAL / ARRAY / GET (spec §3).
// Exactly the fields relevant to Kind are meaningful; the zero value of
// the others is ignored.
type Filter struct {
	Kind Kind

	// COMPARE
	CompareOp CompareOp
	Field     Field
	Value     *value.Value

	// LOGICAL
	LogicalOp LogicalOp
	Children  []*Filter

	// ARRAY
	ArrayOp       ArrayOp
	ArrayField    Field
	ArrayChildren []*Filter // COMPARE-only leaves

	// GET
	GetFilter    *Filter
	FsentryToGet *Filter
}

// CompareNew builds a COMPARE filter, validating that op and value's Kind
// agree (spec §3: "operators match value variants (IN⇔SEQUENCE,
// REGEX⇔REGEX, BITS_*⇔integer)") and deep-cloning value.
func CompareNew(op CompareOp, field Field, v *value.Value) (*Filter, error) {
	if err := checkOperandShape(op, v); err != nil {
		return nil, err
	}
	var cloned *value.Value
	if v != nil {
		cloned = v.Clone()
	}
	return &Filter{Kind: KindCompare, CompareOp: op, Field: field, Value: cloned}, nil
}

func checkOperandShape(op CompareOp, v *value.Value) error {
	if op == OpEXISTS {
		return nil // EXISTS carries no meaningful value
	}
	if v == nil {
		return fmt.Errorf("%w: comparison operator %v requires a value", errs.ErrInvalid, op)
	}
	switch op {
	case OpIN:
		if v.Kind() != value.KindSequence {
			return fmt.Errorf("%w: IN requires a SEQUENCE value, got %s", errs.ErrInvalid, v.Kind())
		}
	case OpREGEX:
		if v.Kind() != value.KindRegex {
			return fmt.Errorf("%w: REGEX requires a REGEX value, got %s", errs.ErrInvalid, v.Kind())
		}
	case OpBitsAnySet, OpBitsAllSet, OpBitsAnyClear, OpBitsAllClear:
		if !isIntegerKind(v.Kind()) {
			return fmt.Errorf("%w: bit operator requires an integer value, got %s", errs.ErrInvalid, v.Kind())
		}
	}
	return nil
}

func isIntegerKind(k value.Kind) bool {
	switch k {
	case value.KindInt32, value.KindUint32, value.KindInt64, value.KindUint64:
		return true
	default:
		return false
	}
}

// AndNew builds an AND filter over children (spec §3: "AND/OR require ≥1
// child"). Children are deep-cloned.
func AndNew(children ...*Filter) (*Filter, error) { return logicalNew(OpAND, children) }

// OrNew builds an OR filter over children.
func OrNew(children ...*Filter) (*Filter, error) { return logicalNew(OpOR, children) }

func logicalNew(op LogicalOp, children []*Filter) (*Filter, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: %v requires at least one child", errs.ErrInvalid, op)
	}
	cloned := make([]*Filter, len(children))
	for i, c := range children {
		cloned[i] = c.Clone()
	}
	return &Filter{Kind: KindLogical, LogicalOp: op, Children: cloned}, nil
}

// NotNew builds a NOT filter over exactly one child (spec §3: "NOT has
// exactly one child").
func NotNew(child *Filter) (*Filter, error) {
	if child == nil {
		return nil, fmt.Errorf("%w: NOT requires exactly one child", errs.ErrInvalid)
	}
	return &Filter{Kind: KindLogical, LogicalOp: OpNOT, Children: []*Filter{child.Clone()}}, nil
}

// ElemMatchNew builds an ARRAY/ELEMMATCH filter. children must all be
// COMPARE filters (spec §3: "ARRAY { ... children[] with COMPARE-only
// leaves }").
func ElemMatchNew(field Field, children ...*Filter) (*Filter, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: ELEMMATCH requires at least one child", errs.ErrInvalid)
	}
	cloned := make([]*Filter, len(children))
	for i, c := range children {
		if c.Kind != KindCompare {
			return nil, fmt.Errorf("%w: ELEMMATCH child %d is not a COMPARE filter", errs.ErrInvalid, i)
		}
		cloned[i] = c.Clone()
	}
	return &Filter{Kind: KindArray, ArrayOp: OpELEMMATCH, ArrayField: field, ArrayChildren: cloned}, nil
}

// GetNew builds a GET filter: fsentryToGet materializes an fsentry used to
// parameterize the outer filter (spec §3).
func GetNew(inner, fsentryToGet *Filter) (*Filter, error) {
	if inner == nil || fsentryToGet == nil {
		return nil, fmt.Errorf("%w: GET requires both a filter and an fsentry_to_get subquery", errs.ErrInvalid)
	}
	return &Filter{Kind: KindGet, GetFilter: inner.Clone(), FsentryToGet: fsentryToGet.Clone()}, nil
}

// Clone deep-clones f into a fresh, fully independent Filter.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	clone := &Filter{Kind: f.Kind, CompareOp: f.CompareOp, Field: f.Field, LogicalOp: f.LogicalOp,
		ArrayOp: f.ArrayOp, ArrayField: f.ArrayField}
	if f.Value != nil {
		clone.Value = f.Value.Clone()
	}
	for _, c := range f.Children {
		clone.Children = append(clone.Children, c.Clone())
	}
	for _, c := range f.ArrayChildren {
		clone.ArrayChildren = append(clone.ArrayChildren, c.Clone())
	}
	if f.GetFilter != nil {
		clone.GetFilter = f.GetFilter.Clone()
	}
	if f.FsentryToGet != nil {
		clone.FsentryToGet = f.FsentryToGet.Clone()
	}
	return clone
}

// Validate walks f enforcing the invariants of spec §3: operator/value
// shape, AND/OR non-empty, NOT arity 1, ELEMMATCH leaves COMPARE-only.
func Validate(f *Filter) error {
	if f == nil {
		return nil // nil is a valid "match everything" filter
	}
	switch f.Kind {
	case KindCompare:
		if err := checkOperandShape(f.CompareOp, f.Value); err != nil {
			return err
		}
		if f.Value != nil {
			return f.Value.Validate()
		}
		return nil
	case KindLogical:
		switch f.LogicalOp {
		case OpNOT:
			if len(f.Children) != 1 {
				return fmt.Errorf("%w: NOT must have exactly one child, got %d", errs.ErrInvalid, len(f.Children))
			}
		case OpAND, OpOR:
			if len(f.Children) == 0 {
				return fmt.Errorf("%w: %v must have at least one child", errs.ErrInvalid, f.LogicalOp)
			}
		}
		for _, c := range f.Children {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case KindArray:
		if len(f.ArrayChildren) == 0 {
			return fmt.Errorf("%w: ELEMMATCH must have at least one child", errs.ErrInvalid)
		}
		for _, c := range f.ArrayChildren {
			if c.Kind != KindCompare {
				return fmt.Errorf("%w: ELEMMATCH child is not a COMPARE filter", errs.ErrInvalid)
			}
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case KindGet:
		if f.GetFilter == nil || f.FsentryToGet == nil {
			return fmt.Errorf("%w: GET requires both a filter and an fsentry_to_get subquery", errs.ErrInvalid)
		}
		if err := Validate(f.GetFilter); err != nil {
			return err
		}
		return Validate(f.FsentryToGet)
	default:
		return fmt.Errorf("%w: unknown filter kind %d", errs.ErrInvalid, f.Kind)
	}
}
