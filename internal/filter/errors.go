package filter

import "errors"

// ErrInvalidParameters is wrapped by every error about inconsistent or
// malformed filter parameters.
var ErrInvalidParameters = errors.New("invalid filter parameters")
