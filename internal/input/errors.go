package input

import "errors"

// ErrStopped is returned by requests made after Run returned.
var ErrStopped = errors.New("input loop stopped")
