// Package filter provides filtered views of an event log. A FilteredEventLog
// shows the events of its base log that pass a chain of checks derived from
// Parameters: event number range, excluded events, module and message
// criteria, and membership in the causal closure of a traced event.
// Dependencies between visible events are re-expressed as aggregated
// dependencies that skip the hidden events in between.
package filter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/depgraph"
	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

const (
	cancelCheckInterval = 1024
	// approximationSamples bounds the events examined by
	// ApproximateNumberOfEvents.
	approximationSamples = 1000
)

// Options configures a FilteredEventLog.
type Options struct {
	Logger *zap.Logger
	// Clock replaces time.Now for collection time budgets.
	Clock func() time.Time
}

type nearest struct {
	deps    []eventlog.MessageDependency
	partial bool
}

// FilteredEventLog is a read-only view of a base log. It never mutates the
// base and, like the base, is owned by a single goroutine.
type FilteredEventLog struct {
	base   *eventlog.EventLog
	params Parameters
	crit   *criteria
	chain  *Chain
	logger *zap.Logger
	now    func() time.Time

	// Caches below are valid for one state of the base log.
	epoch   uint64
	length  int
	size    int64
	modules *eventlog.ModuleTree
	matches map[int64]bool
	traced  bool
	causes  *depgraph.Collection
	conseq  *depgraph.Collection
	near    [2]map[int64]nearest
	approx  int
}

var _ eventlog.Log = (*FilteredEventLog)(nil)

// New validates p and returns a filtered view of base. Malformed expressions
// or patterns fail here with an error wrapping ErrInvalidParameters.
func New(base *eventlog.EventLog, p Parameters, opts Options) (*FilteredEventLog, error) {
	crit, err := compile(&p)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	f := &FilteredEventLog{
		base:   base,
		params: p,
		crit:   crit,
		logger: opts.Logger,
		now:    opts.Clock,
	}
	f.chain = f.buildChain()
	f.Reset()
	f.logger.Debug("filter applied",
		zap.String("path", base.Path()),
		zap.Int("checks", len(f.chain.Checks)),
		zap.Bool("tracing", p.Tracing()))
	return f, nil
}

// Base returns the unfiltered log.
func (f *FilteredEventLog) Base() *eventlog.EventLog {
	return f.base
}

// Parameters returns the parameters the view was built from.
func (f *FilteredEventLog) Parameters() Parameters {
	return f.params
}

// Epoch returns the epoch of the base log.
func (f *FilteredEventLog) Epoch() uint64 {
	return f.base.Epoch()
}

// Reset drops every cached result. It is called after the base log was
// synchronized; the caches also notice base changes on their own.
func (f *FilteredEventLog) Reset() {
	f.epoch = f.base.Epoch()
	f.length = f.base.Len()
	f.size = f.base.Size()
	f.modules = f.base.ModuleTree()
	f.matches = make(map[int64]bool)
	f.traced = false
	f.causes, f.conseq = nil, nil
	f.near = [2]map[int64]nearest{make(map[int64]nearest), make(map[int64]nearest)}
	f.approx = -1
}

func (f *FilteredEventLog) buildChain() *Chain {
	c := &Chain{}
	p := &f.params
	if p.FirstEventNumber >= 0 || p.LastEventNumber >= 0 {
		c.Checks = append(c.Checks, Check{Name: "range", Fn: f.inRange})
	}
	if len(f.crit.excluded) > 0 {
		c.Checks = append(c.Checks, Check{Name: "excluded", Fn: func(e *eventlog.Event) bool {
			return !f.crit.excluded[e.EventNumber()]
		}})
	}
	if p.EnableModuleFilter {
		c.Checks = append(c.Checks, Check{Name: "module", Fn: func(e *eventlog.Event) bool {
			return f.crit.moduleMatches(f.module(e.ModuleID()))
		}})
	}
	if p.EnableMessageFilter {
		c.Checks = append(c.Checks, Check{Name: "message", Fn: func(e *eventlog.Event) bool {
			m, ok := e.CauseMessage()
			return ok && f.crit.messageMatches(m)
		}})
	}
	if p.Tracing() {
		c.Checks = append(c.Checks, Check{Name: "trace", Fn: f.inTrace})
	}
	return c
}

func (f *FilteredEventLog) inRange(e *eventlog.Event) bool {
	n := e.EventNumber()
	return (f.params.FirstEventNumber < 0 || n >= f.params.FirstEventNumber) &&
		(f.params.LastEventNumber < 0 || n <= f.params.LastEventNumber)
}

func (f *FilteredEventLog) module(id int64) *eventlog.Module {
	if m, ok := f.modules.Module(id); ok {
		return m
	}
	return &eventlog.Module{ID: id, ParentID: -1}
}

func (f *FilteredEventLog) inTrace(e *eventlog.Event) bool {
	n, traced := e.EventNumber(), f.params.TracedEventNumber
	switch {
	case n == traced:
		return f.causes != nil
	case n < traced:
		return f.params.TraceCauses && f.causes != nil && f.causes.Contains(n)
	default:
		return f.params.TraceConsequences && f.conseq != nil && f.conseq.Contains(n)
	}
}

// prepare drops stale caches and computes the trace closure on first use.
// After it returns successfully, match never fails.
func (f *FilteredEventLog) prepare(ctx context.Context) error {
	if f.epoch != f.base.Epoch() || f.length != f.base.Len() || f.size != f.base.Size() {
		f.Reset()
	}
	if !f.params.Tracing() || f.traced {
		return nil
	}
	origin, err := f.base.EventForEventNumber(ctx, f.params.TracedEventNumber)
	if err != nil {
		return err
	}
	if origin == nil {
		f.logger.Debug("traced event not in log", zap.Int64("event", f.params.TracedEventNumber))
		f.traced = true
		return nil
	}
	start := f.now()
	p := &f.params
	causes, err := depgraph.NewCollector(f.base, depgraph.Limits{
		MaxDepth:            p.MaxCauseDepth,
		MaxCount:            p.MaxNumberOfCauses,
		MaxDuration:         time.Duration(p.MaxCauseCollectionTime),
		IncludeReuses:       p.TraceMessageReuses,
		ExcludeSelfMessages: !p.TraceSelfMessages,
	}, depgraph.WithClock(f.now)).Collect(ctx, origin, depgraph.Causes)
	if err != nil {
		return fmt.Errorf("tracing event %d: %w", origin.EventNumber(), err)
	}
	conseq, err := depgraph.NewCollector(f.base, depgraph.Limits{
		MaxDepth:            p.MaxConsequenceDepth,
		MaxCount:            p.MaxNumberOfConsequences,
		MaxDuration:         time.Duration(p.MaxConsequenceCollectionTime),
		IncludeReuses:       p.TraceMessageReuses,
		ExcludeSelfMessages: !p.TraceSelfMessages,
	}, depgraph.WithClock(f.now)).Collect(ctx, origin, depgraph.Consequences)
	if err != nil {
		return fmt.Errorf("tracing event %d: %w", origin.EventNumber(), err)
	}
	f.causes, f.conseq, f.traced = causes, conseq, true
	f.logger.Debug("trace collected",
		zap.Int64("event", origin.EventNumber()),
		zap.Int("causes", len(causes.Nodes)),
		zap.Int("consequences", len(conseq.Nodes)),
		zap.Bool("partial", causes.Partial || conseq.Partial),
		zap.Duration("elapsed", f.now().Sub(start)))
	return nil
}

// TracePartial reports whether a collection limit cut the trace short.
func (f *FilteredEventLog) TracePartial(ctx context.Context) (bool, error) {
	if err := f.prepare(ctx); err != nil {
		return false, err
	}
	return (f.causes != nil && f.causes.Partial) || (f.conseq != nil && f.conseq.Partial), nil
}

func (f *FilteredEventLog) match(e *eventlog.Event) bool {
	n := e.EventNumber()
	if m, ok := f.matches[n]; ok {
		return m
	}
	m := f.chain.Matches(e)
	f.matches[n] = m
	return m
}

// Matches reports whether e is visible in the view.
func (f *FilteredEventLog) Matches(ctx context.Context, e *eventlog.Event) (bool, error) {
	if _, err := f.base.IndexOf(e); err != nil {
		return false, err
	}
	if err := f.prepare(ctx); err != nil {
		return false, err
	}
	return f.match(e), nil
}

// Explain runs every check against e and reports which one hid it.
func (f *FilteredEventLog) Explain(ctx context.Context, e *eventlog.Event) (*Result, error) {
	if _, err := f.base.IndexOf(e); err != nil {
		return nil, err
	}
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	return f.chain.Run(e), nil
}

// bounds returns the base positions that the event number range allows.
func (f *FilteredEventLog) bounds() (lo, hi int) {
	lo, hi = 0, f.base.Len()-1
	if f.params.FirstEventNumber >= 0 {
		lo = f.base.SearchEventNumber(f.params.FirstEventNumber)
	}
	if f.params.LastEventNumber >= 0 {
		hi = f.base.SearchEventNumber(f.params.LastEventNumber+1) - 1
	}
	return lo, hi
}

// scan returns the first matching event from base position i in steps of
// step (+1 or -1), staying within the allowed range. It gives up at the
// range boundary, so it terminates even when nothing matches.
func (f *FilteredEventLog) scan(ctx context.Context, i, step int) (*eventlog.Event, int, error) {
	lo, hi := f.bounds()
	if i < lo {
		if step < 0 {
			return nil, -1, nil
		}
		i = lo
	}
	if i > hi {
		if step > 0 {
			return nil, -1, nil
		}
		i = hi
	}
	for n := 0; i >= lo && i <= hi; i, n = i+step, n+1 {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, -1, fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
			}
		}
		if e := f.base.EventAt(i); f.match(e) {
			return e, i, nil
		}
	}
	return nil, -1, nil
}

// FirstEvent returns the first visible event, or nil.
func (f *FilteredEventLog) FirstEvent(ctx context.Context) (*eventlog.Event, error) {
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	e, _, err := f.scan(ctx, 0, 1)
	return e, err
}

// LastEvent returns the last visible event, or nil.
func (f *FilteredEventLog) LastEvent(ctx context.Context) (*eventlog.Event, error) {
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	e, _, err := f.scan(ctx, f.base.Len()-1, -1)
	return e, err
}

// EventForEventNumber returns the event numbered n if it is visible.
func (f *FilteredEventLog) EventForEventNumber(ctx context.Context, n int64) (*eventlog.Event, error) {
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	e, err := f.base.EventForEventNumber(ctx, n)
	if err != nil || e == nil {
		return nil, err
	}
	lo, hi := f.bounds()
	if i, _ := f.base.IndexOf(e); i < lo || i > hi || !f.match(e) {
		return nil, nil
	}
	return e, nil
}

// LastEventNotAfterTime returns the last visible event whose time is at
// most t.
func (f *FilteredEventLog) LastEventNotAfterTime(ctx context.Context, t simtime.Time) (*eventlog.Event, error) {
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	be, err := f.base.LastEventNotAfterTime(ctx, t)
	if err != nil || be == nil {
		return nil, err
	}
	i, err := f.base.IndexOf(be)
	if err != nil {
		return nil, err
	}
	e, _, err := f.scan(ctx, i, -1)
	return e, err
}

// FirstEventNotBeforeTime returns the first visible event whose time is at
// least t.
func (f *FilteredEventLog) FirstEventNotBeforeTime(ctx context.Context, t simtime.Time) (*eventlog.Event, error) {
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	be, err := f.base.FirstEventNotBeforeTime(ctx, t)
	if err != nil || be == nil {
		return nil, err
	}
	i, err := f.base.IndexOf(be)
	if err != nil {
		return nil, err
	}
	e, _, err := f.scan(ctx, i, 1)
	return e, err
}

// NeighbourEvent moves delta visible events from e. The start event itself
// need not be visible. It returns nil when fewer than |delta| visible events
// lie in that direction.
func (f *FilteredEventLog) NeighbourEvent(ctx context.Context, e *eventlog.Event, delta int) (*eventlog.Event, error) {
	i, err := f.base.IndexOf(e)
	if err != nil {
		return nil, err
	}
	if err := f.prepare(ctx); err != nil {
		return nil, err
	}
	step := 1
	if delta < 0 {
		step, delta = -1, -delta
	}
	cur := e
	for ; delta > 0; delta-- {
		cur, i, err = f.scan(ctx, i+step, step)
		if err != nil || cur == nil {
			return nil, err
		}
	}
	return cur, nil
}

// MatchingEventInDirection returns the nearest visible event strictly after
// (forward) or before e.
func (f *FilteredEventLog) MatchingEventInDirection(ctx context.Context, e *eventlog.Event, forward bool) (*eventlog.Event, error) {
	if forward {
		return f.NeighbourEvent(ctx, e, 1)
	}
	return f.NeighbourEvent(ctx, e, -1)
}

// ApproximateNumberOfEvents estimates the visible events by testing an
// evenly spaced sample of the allowed range. Small ranges are counted
// exactly.
func (f *FilteredEventLog) ApproximateNumberOfEvents() int {
	if err := f.prepare(context.Background()); err != nil {
		return 0
	}
	if f.approx >= 0 {
		return f.approx
	}
	lo, hi := f.bounds()
	n := hi - lo + 1
	if n <= 0 {
		f.approx = 0
		return 0
	}
	samples := min(n, approximationSamples)
	matched := 0
	for k := 0; k < samples; k++ {
		i := lo + int(int64(k)*int64(n)/int64(samples))
		if f.match(f.base.EventAt(i)) {
			matched++
		}
	}
	f.approx = int(int64(matched) * int64(n) / int64(samples))
	return f.approx
}

// ApproximatePercentageForEventNumber returns the position of event number
// n between the first and last visible events, in [0, 1].
func (f *FilteredEventLog) ApproximatePercentageForEventNumber(n int64) float64 {
	ctx := context.Background()
	first, err1 := f.FirstEvent(ctx)
	last, err2 := f.LastEvent(ctx)
	if err1 != nil || err2 != nil || first == nil || last == nil {
		return 0
	}
	lo, _ := f.base.IndexOf(first)
	hi, _ := f.base.IndexOf(last)
	if hi <= lo {
		return 0
	}
	i := f.base.SearchEventNumber(n)
	p := float64(i-lo) / float64(hi-lo)
	return max(0, min(1, p))
}

// limits returns the collection limits for aggregated dependencies.
func (f *FilteredEventLog) limits(dir depgraph.Direction) depgraph.Limits {
	p := &f.params
	if dir == depgraph.Causes {
		return depgraph.Limits{
			MaxDepth:      p.MaxCauseDepth,
			MaxCount:      p.MaxNumberOfCauses,
			MaxDuration:   time.Duration(p.MaxCauseCollectionTime),
			IncludeReuses: p.CollectMessageReuses,
		}
	}
	return depgraph.Limits{
		MaxDepth:      p.MaxConsequenceDepth,
		MaxCount:      p.MaxNumberOfConsequences,
		MaxDuration:   time.Duration(p.MaxConsequenceCollectionTime),
		IncludeReuses: p.CollectMessageReuses,
	}
}

// nearestDependencies returns the aggregated dependencies from e to the
// nearest visible events in direction dir.
func (f *FilteredEventLog) nearestDependencies(ctx context.Context, e *eventlog.Event, dir depgraph.Direction) (nearest, error) {
	cache := f.near[dir]
	if r, ok := cache[e.EventNumber()]; ok {
		return r, nil
	}
	lo, hi := f.bounds()
	accept := func(c *eventlog.Event) bool {
		i, err := f.base.IndexOf(c)
		return err == nil && i >= lo && i <= hi && f.match(c)
	}
	deps, partial, err := depgraph.NewCollector(f.base, f.limits(dir), depgraph.WithClock(f.now)).
		Nearest(ctx, e, dir, accept)
	if err != nil {
		return nearest{}, err
	}
	r := nearest{deps: deps, partial: partial}
	cache[e.EventNumber()] = r
	return r, nil
}

// CausesOf returns the aggregated dependencies leading to e from the
// nearest visible events, and whether a limit cut the search short.
func (f *FilteredEventLog) CausesOf(ctx context.Context, e *eventlog.Event) (eventlog.DependencySet, error) {
	return f.dependenciesOf(ctx, e, depgraph.Causes)
}

// ConsequencesOf returns the aggregated dependencies leading from e to the
// nearest visible events.
func (f *FilteredEventLog) ConsequencesOf(ctx context.Context, e *eventlog.Event) (eventlog.DependencySet, error) {
	return f.dependenciesOf(ctx, e, depgraph.Consequences)
}

func (f *FilteredEventLog) dependenciesOf(ctx context.Context, e *eventlog.Event, dir depgraph.Direction) (eventlog.DependencySet, error) {
	if _, err := f.base.IndexOf(e); err != nil {
		return eventlog.DependencySet{}, err
	}
	if err := f.prepare(ctx); err != nil {
		return eventlog.DependencySet{}, err
	}
	r, err := f.nearestDependencies(ctx, e, dir)
	if err != nil {
		return eventlog.DependencySet{}, err
	}
	return eventlog.DependencySet{Dependencies: r.deps, Partial: r.partial}, nil
}

// IntersectingMessageDependencies returns the aggregated dependencies with
// at least one visible endpoint between start and end inclusive. Both
// endpoints of every returned dependency are visible; hidden events in
// between are absorbed and counted in Length.
func (f *FilteredEventLog) IntersectingMessageDependencies(ctx context.Context, start, end *eventlog.Event) (eventlog.DependencySet, error) {
	si, err := f.base.IndexOf(start)
	if err != nil {
		return eventlog.DependencySet{}, err
	}
	ei, err := f.base.IndexOf(end)
	if err != nil {
		return eventlog.DependencySet{}, err
	}
	if si > ei {
		si, ei = ei, si
	}
	if err := f.prepare(ctx); err != nil {
		return eventlog.DependencySet{}, err
	}
	c := eventlog.NewDependencyCollector()
	var set eventlog.DependencySet
	for i := si; i <= ei; i++ {
		e, j, err := f.scan(ctx, i, 1)
		if err != nil {
			return eventlog.DependencySet{}, err
		}
		if e == nil || j > ei {
			break
		}
		i = j
		for _, dir := range []depgraph.Direction{depgraph.Causes, depgraph.Consequences} {
			r, err := f.nearestDependencies(ctx, e, dir)
			if err != nil {
				return eventlog.DependencySet{}, err
			}
			for _, d := range r.deps {
				c.Add(d)
			}
			set.Partial = set.Partial || r.partial
		}
	}
	set.Dependencies = c.Sorted()
	return set, nil
}
