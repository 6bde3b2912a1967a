package eventlog

import (
	"context"
	"errors"
	"fmt"
)

// ErrCanceled is returned when a scan stops because its context ended. The
// log keeps its previous consistent state.
var ErrCanceled = errors.New("operation canceled")

// ErrStaleEvent is returned when an Event obtained before the file was
// overwritten is used. Callers must fetch the event again.
var ErrStaleEvent = errors.New("stale event from an overwritten log")

// ErrCorruptIndex is returned when the file content cannot form a valid
// index, e.g. event numbers that do not increase.
var ErrCorruptIndex = errors.New("corrupt event log index")

// ErrEventNotInLog is returned when an event from another log is passed
// to a query.
var ErrEventNotInLog = errors.New("event does not belong to this log")

// wrapCanceled converts a context error into ErrCanceled and leaves any
// other error untouched.
func wrapCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return err
}
