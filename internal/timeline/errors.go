package timeline

import "errors"

// ErrNoOrigin is returned by coordinate queries while the coordinate system
// has no origin, e.g. for an empty log.
var ErrNoOrigin = errors.New("timeline coordinate system has no origin")

// ErrNotInTimeline is returned when an event cannot be reached by walking
// the mapped log, e.g. an event hidden by a filter in Step mode.
var ErrNotInTimeline = errors.New("event is not part of the timeline")

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown timeline mode")
