// Package timeline maps events and simulation times to horizontal timeline
// coordinates and back, and derives the viewport scale and tick labels of a
// sequence chart from that mapping.
//
// Coordinates are relative to an origin event, which has coordinate 0.
// Every mode maps log order to non-decreasing coordinates. The inverse
// mapping takes a rounding direction because several events, and thus a
// range of simulation times, may share one coordinate.
package timeline

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

const (
	cancelCheckInterval = 1024
	// DefaultNonlinearMinimumDelta is the smallest distance between two
	// consecutive events in Nonlinear mode.
	DefaultNonlinearMinimumDelta = 0.1
)

// Options configures a Mapper.
type Options struct {
	Mode Mode
	// NonlinearMinimumDelta is in (0, 1]. Zero means the default.
	NonlinearMinimumDelta float64
	// NonlinearFocus is the simulation time difference, in seconds, that
	// maps to half of the maximum distance. Zero derives it from the log.
	NonlinearFocus float64
	Logger         *zap.Logger
}

// Mapper converts between events, simulation times and timeline
// coordinates of one log. Step and Nonlinear coordinates depend on every
// event between the origin and the event, so they are computed by walking
// the log and cached until the origin, the mode or the log changes.
type Mapper struct {
	log    eventlog.Log
	opts   Options
	logger *zap.Logger

	epoch  uint64
	origin *eventlog.Event
	focus  float64

	// coords holds the walked coordinates; every event between bwd and fwd
	// inclusive has an entry.
	coords   map[int64]float64
	fwd, bwd *eventlog.Event
}

// NewMapper returns a mapper over log with the origin at the first event.
func NewMapper(ctx context.Context, log eventlog.Log, opts Options) (*Mapper, error) {
	if opts.NonlinearMinimumDelta <= 0 || opts.NonlinearMinimumDelta > 1 {
		opts.NonlinearMinimumDelta = DefaultNonlinearMinimumDelta
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Mapper{log: log, opts: opts, logger: opts.Logger}
	if err := m.Reset(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Log returns the mapped log.
func (m *Mapper) Log() eventlog.Log {
	return m.log
}

// Mode returns the current mode.
func (m *Mapper) Mode() Mode {
	return m.opts.Mode
}

// SetMode switches the mode and drops cached coordinates. Callers that
// want to keep the visible time range snapshot it with
// SimulationTimeForCoordinate before and restore it with
// CoordinateForSimulationTime after the switch.
func (m *Mapper) SetMode(mode Mode) {
	if mode == m.opts.Mode {
		return
	}
	m.opts.Mode = mode
	m.relocate(m.origin)
}

// Origin returns the origin event, or nil while undefined.
func (m *Mapper) Origin() *eventlog.Event {
	return m.origin
}

// RelocateOrigin moves the origin to e without touching any other event.
func (m *Mapper) RelocateOrigin(e *eventlog.Event) error {
	if e == nil {
		return fmt.Errorf("%w: nil event", eventlog.ErrEventNotInLog)
	}
	if !e.Valid() {
		return eventlog.ErrStaleEvent
	}
	m.relocate(e)
	return nil
}

// UndefineOrigin clears the origin; coordinate queries fail with
// ErrNoOrigin until RelocateOrigin or Reset.
func (m *Mapper) UndefineOrigin() {
	m.relocate(nil)
}

func (m *Mapper) relocate(e *eventlog.Event) {
	m.origin = e
	m.coords = make(map[int64]float64)
	m.fwd, m.bwd = e, e
	if e != nil {
		m.coords[e.EventNumber()] = 0
	}
}

// Reset recomputes the nonlinear focus and keeps the origin, or moves it
// to the first event when the origin is gone. It is called after the log
// changed.
func (m *Mapper) Reset(ctx context.Context) error {
	m.epoch = m.log.Epoch()
	first, err := m.log.FirstEvent(ctx)
	if err != nil {
		return err
	}
	last, err := m.log.LastEvent(ctx)
	if err != nil {
		return err
	}
	m.focus = m.opts.NonlinearFocus
	if m.focus <= 0 {
		m.focus = defaultFocus(first, last, m.log.ApproximateNumberOfEvents())
	}

	origin := m.origin
	if origin != nil {
		n := origin.EventNumber()
		if origin, err = m.log.EventForEventNumber(ctx, n); err != nil {
			return err
		}
	}
	if origin == nil {
		origin = first
	}
	m.relocate(origin)
	m.logger.Debug("timeline reset",
		zap.Stringer("mode", m.opts.Mode),
		zap.Float64("nonlinear_focus", m.focus))
	return nil
}

// defaultFocus is a tenth of the average time between events, or the first
// event's time, or one second.
func defaultFocus(first, last *eventlog.Event, events int) float64 {
	if first == nil || last == nil {
		return 1
	}
	span := last.SimulationTime().Sub(first.SimulationTime()).ApproximateFloat64()
	if events > 0 && span > 0 {
		return span / float64(events) / 10
	}
	if t := first.SimulationTime().ApproximateFloat64(); t > 0 {
		return t
	}
	return 1
}

func (m *Mapper) sync(ctx context.Context) error {
	if m.epoch != m.log.Epoch() || (m.origin != nil && !m.origin.Valid()) {
		if err := m.Reset(ctx); err != nil {
			return err
		}
	}
	if m.origin == nil {
		return ErrNoOrigin
	}
	return nil
}

// delta is the Step or Nonlinear distance between consecutive events a and b.
func (m *Mapper) delta(a, b *eventlog.Event) float64 {
	if m.opts.Mode == Step {
		return 1
	}
	dt := math.Abs(b.SimulationTime().Sub(a.SimulationTime()).ApproximateFloat64())
	lo := m.opts.NonlinearMinimumDelta
	return lo + (1-lo)*math.Atan(dt/m.focus)*2/math.Pi
}

// Coordinate returns the timeline coordinate of e.
func (m *Mapper) Coordinate(ctx context.Context, e *eventlog.Event) (float64, error) {
	if err := m.sync(ctx); err != nil {
		return 0, err
	}
	if e == nil {
		return 0, fmt.Errorf("%w: nil event", eventlog.ErrEventNotInLog)
	}
	if !e.Valid() {
		return 0, eventlog.ErrStaleEvent
	}
	return m.coordinate(ctx, e)
}

func (m *Mapper) coordinate(ctx context.Context, e *eventlog.Event) (float64, error) {
	switch m.opts.Mode {
	case SimulationTime:
		return e.SimulationTime().Sub(m.origin.SimulationTime()).ApproximateFloat64(), nil
	case EventNumber:
		return float64(e.EventNumber() - m.origin.EventNumber()), nil
	}
	n := e.EventNumber()
	if c, ok := m.coords[n]; ok {
		return c, nil
	}
	var err error
	switch {
	case n > m.fwd.EventNumber():
		err = m.walk(ctx, n, 1)
	case n < m.bwd.EventNumber():
		err = m.walk(ctx, n, -1)
	}
	if err != nil {
		return 0, err
	}
	if c, ok := m.coords[n]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: event %d", ErrNotInTimeline, n)
}

// walk extends the cached region from fwd (dir 1) or bwd (dir -1) until it
// covers event number target or the log ends.
func (m *Mapper) walk(ctx context.Context, target int64, dir int) error {
	cur := m.fwd
	if dir < 0 {
		cur = m.bwd
	}
	for steps := 0; ; steps++ {
		if dir > 0 && cur.EventNumber() >= target || dir < 0 && cur.EventNumber() <= target {
			return nil
		}
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
			}
		}
		next, err := m.log.NeighbourEvent(ctx, cur, dir)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		c := m.coords[cur.EventNumber()]
		if dir > 0 {
			m.coords[next.EventNumber()] = c + m.delta(cur, next)
			m.fwd = next
		} else {
			m.coords[next.EventNumber()] = c - m.delta(next, cur)
			m.bwd = next
		}
		cur = next
	}
}

// start returns an event near coordinate c to begin a search from.
func (m *Mapper) start(ctx context.Context, c float64) (*eventlog.Event, error) {
	switch m.opts.Mode {
	case SimulationTime:
		t := m.origin.SimulationTime().Add(simtime.ApproximateFromFloat(c))
		e, err := m.log.LastEventNotAfterTime(ctx, t)
		if err != nil || e != nil {
			return e, err
		}
		return m.log.FirstEvent(ctx)
	case EventNumber:
		if base, ok := m.log.(*eventlog.EventLog); ok && base.Len() > 0 {
			n := m.origin.EventNumber() + int64(math.Floor(c))
			return base.EventAt(min(base.SearchEventNumber(n), base.Len()-1)), nil
		}
		return m.origin, nil
	}
	// The cached region is contiguous, so its ends are the closest known
	// events outside it.
	switch {
	case c > m.coords[m.fwd.EventNumber()]:
		return m.fwd, nil
	case c < m.coords[m.bwd.EventNumber()]:
		return m.bwd, nil
	}
	return m.origin, nil
}

// LastEventNotAfterCoordinate returns the last event whose coordinate is at
// most c, or nil when every event lies after c.
func (m *Mapper) LastEventNotAfterCoordinate(ctx context.Context, c float64) (*eventlog.Event, error) {
	if err := m.sync(ctx); err != nil {
		return nil, err
	}
	return m.lastNotAfter(ctx, c)
}

func (m *Mapper) lastNotAfter(ctx context.Context, c float64) (*eventlog.Event, error) {
	e, err := m.start(ctx, c)
	if err != nil || e == nil {
		return nil, err
	}
	ce, err := m.coordinate(ctx, e)
	if err != nil {
		return nil, err
	}
	for steps := 1; ; steps++ {
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
			}
		}
		dir := 1
		if ce > c {
			dir = -1
		}
		next, err := m.log.NeighbourEvent(ctx, e, dir)
		if err != nil {
			return nil, err
		}
		if next == nil {
			if dir < 0 {
				return nil, nil
			}
			return e, nil
		}
		cn, err := m.coordinate(ctx, next)
		if err != nil {
			return nil, err
		}
		if dir > 0 && cn > c {
			return e, nil
		}
		e, ce = next, cn
		if dir < 0 && ce <= c {
			return e, nil
		}
	}
}

// FirstEventNotBeforeCoordinate returns the first event whose coordinate
// is at least c, or nil when every event lies before c.
func (m *Mapper) FirstEventNotBeforeCoordinate(ctx context.Context, c float64) (*eventlog.Event, error) {
	if err := m.sync(ctx); err != nil {
		return nil, err
	}
	lo, err := m.lastNotAfter(ctx, c)
	if err != nil {
		return nil, err
	}
	if lo == nil {
		return m.log.FirstEvent(ctx)
	}
	cl, err := m.coordinate(ctx, lo)
	if err != nil {
		return nil, err
	}
	if cl == c {
		return m.firstOfRun(ctx, lo, c)
	}
	return m.log.NeighbourEvent(ctx, lo, 1)
}

// firstOfRun walks back from e to the first event with coordinate c.
func (m *Mapper) firstOfRun(ctx context.Context, e *eventlog.Event, c float64) (*eventlog.Event, error) {
	for {
		prev, err := m.log.NeighbourEvent(ctx, e, -1)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return e, nil
		}
		cp, err := m.coordinate(ctx, prev)
		if err != nil {
			return nil, err
		}
		if cp != c {
			return e, nil
		}
		e = prev
	}
}

// SimulationTimeForCoordinate maps coordinate c back to a simulation time.
// When several events share coordinate c, the earliest of their times is
// returned, or the latest when upperBound is set; so for every event e,
// the results for Coordinate(e) bracket e's time. Between events the time
// is interpolated.
func (m *Mapper) SimulationTimeForCoordinate(ctx context.Context, c float64, upperBound bool) (simtime.Time, error) {
	if err := m.sync(ctx); err != nil {
		return simtime.Time{}, err
	}
	lo, err := m.lastNotAfter(ctx, c)
	if err != nil {
		return simtime.Time{}, err
	}
	var cl float64
	if lo != nil {
		if cl, err = m.coordinate(ctx, lo); err != nil {
			return simtime.Time{}, err
		}
		if cl == c {
			if upperBound {
				return lo.SimulationTime(), nil
			}
			first, err := m.firstOfRun(ctx, lo, c)
			if err != nil {
				return simtime.Time{}, err
			}
			return first.SimulationTime(), nil
		}
	}

	var hi *eventlog.Event
	if lo == nil {
		hi, err = m.log.FirstEvent(ctx)
	} else {
		hi, err = m.log.NeighbourEvent(ctx, lo, 1)
	}
	if err != nil {
		return simtime.Time{}, err
	}
	linear := m.origin.SimulationTime().Add(simtime.ApproximateFromFloat(c))
	switch {
	case lo == nil && hi == nil:
		return simtime.Time{}, nil
	case lo == nil:
		if m.opts.Mode == SimulationTime {
			return simtime.Max(simtime.Time{}, simtime.Min(linear, hi.SimulationTime())), nil
		}
		return hi.SimulationTime(), nil
	case hi == nil:
		if m.opts.Mode == SimulationTime {
			return simtime.Max(linear, lo.SimulationTime()), nil
		}
		return lo.SimulationTime(), nil
	}

	tl, th := lo.SimulationTime(), hi.SimulationTime()
	t := linear
	if m.opts.Mode != SimulationTime {
		ch, err := m.coordinate(ctx, hi)
		if err != nil {
			return simtime.Time{}, err
		}
		t = tl.Add(th.Sub(tl).ApproximateMul((c - cl) / (ch - cl)))
	}
	return simtime.Max(tl, simtime.Min(t, th)), nil
}

// CoordinateForSimulationTime maps simulation time t to a coordinate. When
// events happen exactly at t, the coordinate of the first of them is
// returned, or of the last when upperBound is set.
func (m *Mapper) CoordinateForSimulationTime(ctx context.Context, t simtime.Time, upperBound bool) (float64, error) {
	if err := m.sync(ctx); err != nil {
		return 0, err
	}
	if m.opts.Mode == SimulationTime {
		return t.Sub(m.origin.SimulationTime()).ApproximateFloat64(), nil
	}
	lo, err := m.log.LastEventNotAfterTime(ctx, t)
	if err != nil {
		return 0, err
	}
	hi, err := m.log.FirstEventNotBeforeTime(ctx, t)
	if err != nil {
		return 0, err
	}
	switch {
	case lo == nil && hi == nil:
		return 0, nil
	case lo == nil:
		return m.coordinate(ctx, hi)
	case hi == nil:
		return m.coordinate(ctx, lo)
	case hi.SimulationTime().Equal(t):
		if upperBound {
			return m.coordinate(ctx, lo)
		}
		return m.coordinate(ctx, hi)
	}
	cl, err := m.coordinate(ctx, lo)
	if err != nil {
		return 0, err
	}
	ch, err := m.coordinate(ctx, hi)
	if err != nil {
		return 0, err
	}
	tl, th := lo.SimulationTime(), hi.SimulationTime()
	frac := t.Sub(tl).ApproximateFloat64() / th.Sub(tl).ApproximateFloat64()
	return cl + (ch-cl)*frac, nil
}
