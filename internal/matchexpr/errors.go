package matchexpr

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("filter expression syntax error")

// SyntaxError reports a malformed expression or pattern together with the
// byte offset where parsing failed.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

// Error returns the message with a caret-free positional prefix.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %q at offset %d: %s", ErrSyntax, e.Expr, e.Pos, e.Msg)
}

// Unwrap returns ErrSyntax so callers can use errors.Is.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}
