package reader

import (
	"errors"
	"fmt"
)

// Sentinel errors for the reader package.
var (
	// ErrFileNotFound is returned when the log file does not exist.
	ErrFileNotFound = errors.New("event log file not found")
	// ErrFileChanged is wrapped by every FileChangedError.
	ErrFileChanged = errors.New("event log file changed")
	// ErrStop may be returned by a ReadLines callback to end the scan early
	// without an error.
	ErrStop = errors.New("stop reading")
)

// FileChangedError signals that the file changed underneath a read. It is a
// request to resynchronize, not a failure of the log itself.
type FileChangedError struct {
	Change Change
	Err    error
}

// Error describes the detected change.
func (e *FileChangedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrFileChanged, e.Change, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrFileChanged, e.Change)
}

// Unwrap returns ErrFileChanged so callers can use errors.Is.
func (e *FileChangedError) Unwrap() error {
	return ErrFileChanged
}

// AsFileChanged extracts the change carried by err, if any.
func AsFileChanged(err error) (Change, bool) {
	var fc *FileChangedError
	if errors.As(err, &fc) {
		return fc.Change, true
	}
	return Unchanged, false
}
