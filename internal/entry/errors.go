package entry

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by ParseError.
var (
	ErrUnknownTag       = errors.New("unknown record tag")
	ErrMissingAttribute = errors.New("missing required attribute")
	ErrInvalidValue     = errors.New("invalid attribute value")
	ErrMalformed        = errors.New("malformed record")
)

// ParseError reports a log line that could not be parsed. Line is 1-based.
type ParseError struct {
	Line   int
	Offset int64
	Text   string
	Err    error
}

// Error formats the error with its line number.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, truncate(e.Text, 80))
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
