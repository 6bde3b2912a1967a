// Package eventlog indexes an event log file and answers queries over its
// events: lookup by event number and simulation time, traversal in log
// order, message dependencies and the module tree.
//
// The index keeps one small record per event and reads log entries from the
// file on demand. An EventLog is owned by a single goroutine; see package
// input for the loop that serializes queries and resynchronization.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/entry"
	"github.com/papapumpkin/seqchart/internal/reader"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

// DefaultMaxCachedEvents bounds the number of events whose entries are kept
// in memory.
const DefaultMaxCachedEvents = 1024

// Options configures an EventLog.
type Options struct {
	// MaxCachedEvents bounds the events with materialized entries. Zero
	// means DefaultMaxCachedEvents.
	MaxCachedEvents int
	// FingerprintBytes is passed to the reader.
	FingerprintBytes int
	// Progress, when set, receives the fraction of the file indexed.
	Progress func(fraction float64)
	Logger   *zap.Logger
}

// EventLog is the full, unfiltered sequence of events of a log file.
type EventLog struct {
	rd     *reader.Reader
	opts   Options
	logger *zap.Logger

	epoch   uint64
	idx     *index
	cache   []*Event
	pending reader.Change
}

// Open indexes the log file at path.
func Open(ctx context.Context, path string, opts Options) (*EventLog, error) {
	if opts.MaxCachedEvents <= 0 {
		opts.MaxCachedEvents = DefaultMaxCachedEvents
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	rd, err := reader.Open(path, reader.Options{FingerprintBytes: opts.FingerprintBytes, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	l := &EventLog{rd: rd, opts: opts, logger: opts.Logger}
	start := time.Now()
	idx, err := l.rebuild(ctx)
	if err != nil {
		_ = rd.Close()
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}
	l.idx = idx
	l.epoch++
	l.logger.Info("event log indexed",
		zap.String("path", path),
		zap.Int("events", len(idx.events)),
		zap.Int("parse_errors", idx.numParseErrors),
		zap.Duration("elapsed", time.Since(start)))
	return l, nil
}

// Close releases the file.
func (l *EventLog) Close() error {
	return l.rd.Close()
}

// Path returns the log file path.
func (l *EventLog) Path() string {
	return l.rd.Path()
}

// Size returns the file size seen at the last synchronization.
func (l *EventLog) Size() int64 {
	return l.rd.Size()
}

// Epoch increases every time the file is found overwritten. Events from an
// older epoch are stale.
func (l *EventLog) Epoch() uint64 {
	return l.epoch
}

// CheckForChanges asks the reader whether the file changed and synchronizes
// the index. A change left over from a canceled or failed synchronization is
// retried.
func (l *EventLog) CheckForChanges(ctx context.Context) (reader.Change, error) {
	change, err := l.rd.CheckForChanges()
	if err != nil {
		return reader.Unchanged, err
	}
	if l.pending > change {
		change = l.pending
	}
	if change == reader.Unchanged {
		return change, nil
	}
	if err := l.Synchronize(ctx, change); err != nil {
		return change, err
	}
	return change, nil
}

// Synchronize brings the index up to date after the reader reported change.
// Appended extends the index and keeps existing events valid. Overwritten
// rebuilds the index and increments the epoch. If the context ends first the
// previous index is kept and the change is retried by the next
// CheckForChanges.
func (l *EventLog) Synchronize(ctx context.Context, change reader.Change) error {
	start := time.Now()
	switch change {
	case reader.Unchanged:
		return nil
	case reader.Appended:
		err := l.extend(ctx)
		fc, ok := reader.AsFileChanged(err)
		if (ok && fc == reader.Overwritten) || errors.Is(err, ErrCorruptIndex) {
			change, err = reader.Overwritten, l.replace(ctx)
		}
		if err != nil {
			l.pending = change
			return err
		}
	case reader.Overwritten:
		if err := l.replace(ctx); err != nil {
			l.pending = change
			return err
		}
	default:
		return fmt.Errorf("unknown change %v", change)
	}
	l.pending = reader.Unchanged
	l.logger.Debug("event log synchronized",
		zap.String("path", l.rd.Path()),
		zap.Stringer("change", change),
		zap.Int("events", len(l.idx.events)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (l *EventLog) replace(ctx context.Context) error {
	idx, err := l.rebuild(ctx)
	if err != nil {
		return err
	}
	l.idx = idx
	l.cache = nil
	l.epoch++
	l.logger.Info("event log rebuilt after overwrite",
		zap.String("path", l.rd.Path()),
		zap.Uint64("epoch", l.epoch),
		zap.Int("events", len(idx.events)))
	return nil
}

func (l *EventLog) check(e *Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrEventNotInLog)
	}
	if e.log != l {
		return ErrEventNotInLog
	}
	if e.epoch != l.epoch {
		return ErrStaleEvent
	}
	return nil
}

func (l *EventLog) eventForNumber(n int64) *Event {
	return l.idx.search(n)
}

// Len returns the exact number of indexed events.
func (l *EventLog) Len() int {
	return len(l.idx.events)
}

// EventAt returns the event at position i in log order, or nil.
func (l *EventLog) EventAt(i int) *Event {
	if i < 0 || i >= len(l.idx.events) {
		return nil
	}
	return l.idx.events[i]
}

// IndexOf returns the position of e in log order. It fails for events of
// another log or an older epoch.
func (l *EventLog) IndexOf(e *Event) (int, error) {
	if err := l.check(e); err != nil {
		return 0, err
	}
	return e.index, nil
}

// SearchEventNumber returns the position of the first event numbered n or
// higher, or Len() when there is none.
func (l *EventLog) SearchEventNumber(n int64) int {
	events := l.idx.events
	return sort.Search(len(events), func(i int) bool { return events[i].number >= n })
}

// FirstEvent returns the first event, or nil for an empty log.
func (l *EventLog) FirstEvent(context.Context) (*Event, error) {
	return l.EventAt(0), nil
}

// LastEvent returns the last event, or nil for an empty log.
func (l *EventLog) LastEvent(context.Context) (*Event, error) {
	return l.idx.lastEvent(), nil
}

// EventForEventNumber returns the event numbered n, or nil.
func (l *EventLog) EventForEventNumber(_ context.Context, n int64) (*Event, error) {
	return l.eventForNumber(n), nil
}

// LastEventNotAfterTime returns the last event whose time is at most t, or
// nil when every event is later.
func (l *EventLog) LastEventNotAfterTime(_ context.Context, t simtime.Time) (*Event, error) {
	events := l.idx.events
	i := sort.Search(len(events), func(i int) bool { return t.Less(events[i].time) })
	return l.EventAt(i - 1), nil
}

// FirstEventNotBeforeTime returns the earliest event whose time is at least
// t, or nil when every event is earlier.
func (l *EventLog) FirstEventNotBeforeTime(_ context.Context, t simtime.Time) (*Event, error) {
	events := l.idx.events
	i := sort.Search(len(events), func(i int) bool { return !events[i].time.Less(t) })
	return l.EventAt(i), nil
}

// NeighbourEvent moves delta events from e in log order. It returns nil
// past either end.
func (l *EventLog) NeighbourEvent(_ context.Context, e *Event, delta int) (*Event, error) {
	if err := l.check(e); err != nil {
		return nil, err
	}
	return l.EventAt(e.index + delta), nil
}

// ApproximateNumberOfEvents returns the number of events. The base log
// knows it exactly.
func (l *EventLog) ApproximateNumberOfEvents() int {
	return len(l.idx.events)
}

// ApproximatePercentageForEventNumber returns the relative position of the
// event numbered n, or of the nearest event after it, in [0, 1].
func (l *EventLog) ApproximatePercentageForEventNumber(n int64) float64 {
	events := l.idx.events
	if len(events) < 2 {
		return 0
	}
	i := l.SearchEventNumber(n)
	if i >= len(events) {
		return 1
	}
	return float64(i) / float64(len(events)-1)
}

// ModuleTree returns a snapshot of the modules created so far.
func (l *EventLog) ModuleTree() *ModuleTree {
	return NewModuleTree(l.idx.modules)
}

// ModuleCreatedEntries returns every module creation seen, in file order,
// one per module id.
func (l *EventLog) ModuleCreatedEntries() []entry.ModuleCreated {
	return l.idx.modules
}

// SimulationBegin returns the simulation begin record, if present.
func (l *EventLog) SimulationBegin() (*entry.Entry, bool) {
	return l.idx.simBegin, l.idx.simBegin != nil
}

// ParseErrors returns the first recorded parse errors and the total number
// of lines that failed to parse.
func (l *EventLog) ParseErrors() ([]*entry.ParseError, int) {
	return l.idx.parseErrors, l.idx.numParseErrors
}

// materialize reads the entries of e from the file and caches them.
func (l *EventLog) materialize(e *Event) ([]*entry.Entry, error) {
	var entries []*entry.Entry
	first := true
	_, err := l.rd.ReadLines(context.Background(), e.pos, e.end, func(line reader.Line) error {
		if entry.IsBlank(line.Text) {
			return nil
		}
		en, err := entry.ParseLine(line.Text, line.Number, line.Offset)
		if first {
			first = false
			m, ok := eventMarker(en, err)
			if !ok || m.Number != e.number {
				return &reader.FileChangedError{Change: reader.Overwritten}
			}
		}
		if err != nil {
			var pe *entry.ParseError
			if errors.As(err, &pe) {
				return nil
			}
			return err
		}
		en.EventNumber = e.number
		entries = append(entries, en)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if first {
		return nil, &reader.FileChangedError{Change: reader.Overwritten}
	}
	e.entries = entries
	l.cache = append(l.cache, e)
	if len(l.cache) > l.opts.MaxCachedEvents {
		l.cache[0].entries = nil
		l.cache[0] = nil
		l.cache = l.cache[1:]
	}
	return entries, nil
}

func eventMarker(en *entry.Entry, err error) (entry.EventMarker, bool) {
	if err != nil {
		return entry.EventMarker{}, false
	}
	return en.EventMarker()
}
