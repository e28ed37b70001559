package value

import "github.com/viant/robinhood/errs"

// errInvalid is a local alias kept short for the many %w call sites above.
var errInvalid = errs.ErrInvalid
