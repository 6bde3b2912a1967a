// Package input owns an open event log and serializes everything that
// touches it. Run is the single owner loop: queries arrive through Do, file
// changes arrive from the Watcher and a periodic poll, and subscribers are
// told about every successful resynchronization or filter switch.
package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/filter"
	"github.com/papapumpkin/seqchart/internal/reader"
)

// DefaultPollInterval is how often Run checks the file when no watcher
// event arrives.
const DefaultPollInterval = 3 * time.Second

// Change tells subscribers why the visible log changed.
type Change int

const (
	// ChangeAppended means new events were indexed; existing events stay
	// valid.
	ChangeAppended Change = iota + 1
	// ChangeOverwritten means the file was rewritten; every event obtained
	// earlier is stale.
	ChangeOverwritten
	// ChangeFiltered means a filter was applied or removed.
	ChangeFiltered
)

// String returns the lower-case change name.
func (c Change) String() string {
	switch c {
	case ChangeAppended:
		return "appended"
	case ChangeOverwritten:
		return "overwritten"
	case ChangeFiltered:
		return "filtered"
	}
	return fmt.Sprintf("Change(%d)", int(c))
}

// Options configures an Input.
type Options struct {
	// PollInterval is the period of the fallback poll. Zero means
	// DefaultPollInterval; negative disables polling.
	PollInterval time.Duration
	// Watch starts an fsnotify watcher for the file in Run.
	Watch  bool
	Filter filter.Options
	Logger *zap.Logger
}

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

// Input owns a base log and an optional filtered view of it.
type Input struct {
	base     *eventlog.EventLog
	filtered *filter.FilteredEventLog
	opts     Options
	logger   *zap.Logger
	// newWatcher is NewWatcher outside tests.
	newWatcher func(path string, logger *zap.Logger) (*Watcher, error)

	requests chan request
	stopped  chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// New returns an input for base. Nothing touches base concurrently once
// Run has started, except through Do.
func New(base *eventlog.EventLog, opts Options) *Input {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Filter.Logger == nil {
		opts.Filter.Logger = opts.Logger
	}
	return &Input{
		base:     base,
		opts:     opts,
		logger:     opts.Logger,
		newWatcher: NewWatcher,
		requests:   make(chan request),
		stopped:  make(chan struct{}),
		subs:     make(map[int]func(Change)),
	}
}

// startWatcher returns a running watcher, or nil when the file cannot be
// watched and Run has to rely on polling.
func (in *Input) startWatcher() *Watcher {
	w, err := in.newWatcher(in.base.Path(), in.logger)
	if err == nil {
		if err = w.Start(); err != nil {
			w.Stop()
		}
	}
	if err != nil {
		in.logger.Warn("watching event log failed, polling only",
			zap.String("path", in.base.Path()), zap.Error(err))
		return nil
	}
	return w
}

// Run serves requests and watches the file until ctx ends. It returns nil
// on cancellation.
func (in *Input) Run(ctx context.Context) error {
	defer in.stopOnce.Do(func() { close(in.stopped) })

	var changed <-chan struct{}
	if in.opts.Watch {
		if w := in.startWatcher(); w != nil {
			defer w.Stop()
			changed = w.Events
		}
	}

	var poll <-chan time.Time
	if in.opts.PollInterval > 0 {
		ticker := time.NewTicker(in.opts.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-in.requests:
			req.done <- in.serve(ctx, req.fn)
		case <-changed:
			_, _ = in.check(ctx)
		case <-poll:
			_, _ = in.check(ctx)
		}
	}
}

// serve runs fn and retries it once after resynchronizing when it hit a
// file change.
func (in *Input) serve(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, reader.ErrFileChanged) {
		return err
	}
	in.logger.Debug("query hit a file change, resynchronizing",
		zap.String("path", in.base.Path()), zap.Error(err))
	if _, err := in.check(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// do hands fn to the loop and waits for its result.
func (in *Input) do(ctx context.Context, fn func(ctx context.Context) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case in.requests <- req:
	case <-in.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop with the visible log: the filtered view when a
// filter is applied, the base log otherwise. Events must not be kept past
// a ChangeOverwritten notification.
func (in *Input) Do(ctx context.Context, fn func(ctx context.Context, l eventlog.Log) error) error {
	return in.do(ctx, func(ctx context.Context) error {
		return fn(ctx, in.visible())
	})
}

func (in *Input) visible() eventlog.Log {
	if in.filtered != nil {
		return in.filtered
	}
	return in.base
}

// CheckForChanges resynchronizes the log now instead of waiting for the
// watcher or the poll.
func (in *Input) CheckForChanges(ctx context.Context) (reader.Change, error) {
	var change reader.Change
	err := in.do(ctx, func(ctx context.Context) error {
		var err error
		change, err = in.check(ctx)
		return err
	})
	return change, err
}

// check synchronizes the base log, resets the filtered view and notifies
// subscribers. Errors are logged and returned; a canceled synchronization
// is retried by the next check.
func (in *Input) check(ctx context.Context) (reader.Change, error) {
	start := time.Now()
	change, err := in.base.CheckForChanges(ctx)
	if err != nil {
		in.logger.Warn("resynchronizing event log failed",
			zap.String("path", in.base.Path()),
			zap.Stringer("change", change),
			zap.Error(err))
		return change, err
	}
	if change == reader.Unchanged {
		return change, nil
	}
	if in.filtered != nil {
		in.filtered.Reset()
	}
	in.logger.Info("event log changed",
		zap.String("path", in.base.Path()),
		zap.Stringer("change", change),
		zap.Int("events", in.base.Len()),
		zap.Duration("elapsed", time.Since(start)))
	if change == reader.Overwritten {
		in.notify(ChangeOverwritten)
	} else {
		in.notify(ChangeAppended)
	}
	return change, nil
}

// Filter validates p and makes the filtered view visible.
func (in *Input) Filter(ctx context.Context, p filter.Parameters) error {
	return in.do(ctx, func(context.Context) error {
		f, err := filter.New(in.base, p, in.opts.Filter)
		if err != nil {
			return err
		}
		in.filtered = f
		in.notify(ChangeFiltered)
		return nil
	})
}

// RemoveFilter makes the base log visible again.
func (in *Input) RemoveFilter(ctx context.Context) error {
	return in.do(ctx, func(context.Context) error {
		if in.filtered == nil {
			return nil
		}
		in.filtered = nil
		in.notify(ChangeFiltered)
		return nil
	})
}

// Subscribe registers fn for change notifications and returns a function
// that unregisters it. fn runs on the loop goroutine after the change is
// complete; it may query the log it was handed through Do earlier but must
// not call Do itself.
func (in *Input) Subscribe(fn func(Change)) (cancel func()) {
	in.mu.Lock()
	id := in.nextID
	in.nextID++
	in.subs[id] = fn
	in.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			in.mu.Lock()
			delete(in.subs, id)
			in.mu.Unlock()
		})
	}
}

func (in *Input) notify(c Change) {
	in.mu.Lock()
	subs := make([]func(Change), 0, len(in.subs))
	for id := 0; id < in.nextID; id++ {
		if fn, ok := in.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	in.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}
