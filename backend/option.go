package backend

import (
	"fmt"

	"github.com/viant/robinhood/errs"
)

// OptionID encodes (backend_id<<8 | local_id) (spec §4.G: "id for the
// generic option space is backend_id=0").
type OptionID struct {
	BackendID uint8
	LocalID   uint8
}

// Encode packs opt into the wire form option accessors exchange.
func (o OptionID) Encode() uint16 { return uint16(o.BackendID)<<8 | uint16(o.LocalID) }

// DecodeOptionID unpacks Encode's wire form.
func DecodeOptionID(raw uint16) OptionID {
	return OptionID{BackendID: uint8(raw >> 8), LocalID: uint8(raw)}
}

// Generic option space (backend_id == 0): options every backend accepts
// regardless of its own options (spec §4.G: "Generic option space defines
// at least DEPRECATED (always ENOTSUP) and GC (backend-provided)").
const (
	// LocalDeprecated is a placeholder option kept only to preserve a
	// formerly-meaningful option id; GetOption/SetOption always return
	// errs.ErrNotSupported for it.
	LocalDeprecated uint8 = iota
	// LocalGC lets a backend that opts in expose a garbage-collection
	// control/status surface through GetOption/SetOption.
	LocalGC
)

// GenericDeprecated and GenericGC are the well-known OptionID values for the
// generic (backend_id=0) option space.
var (
	GenericDeprecated = OptionID{BackendID: 0, LocalID: LocalDeprecated}
	GenericGC         = OptionID{BackendID: 0, LocalID: LocalGC}
)

// CheckOptionBuf validates a GetOption buffer is large enough, returning
// errs.NewRequiredSize(required) (spec §4.G: "EOVERFLOW; len too small; len
// is set to required") when it is not.
func CheckOptionBuf(buf []byte, required int) error {
	if len(buf) < required {
		return errs.NewRequiredSize(required)
	}
	return nil
}

// RejectDeprecated implements the generic option space's DEPRECATED option,
// which every backend must refuse regardless of what it's asked to do with
// it.
func RejectDeprecated(opt OptionID) error {
	if opt == GenericDeprecated {
		return fmt.Errorf("%w: option is deprecated", errs.ErrNotSupported)
	}
	return nil
}
