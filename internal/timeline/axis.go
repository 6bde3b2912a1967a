package timeline

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

const (
	// DefaultTickSpacing is the distance between ticks in pixels.
	DefaultTickSpacing = 100
	// defaultPixelsDistance is how many events the default scale tries to
	// fit into one viewport.
	defaultPixelsDistance = 20
	maxTicks              = 10000
)

// Viewport places timeline coordinates on a horizontal pixel axis.
type Viewport struct {
	PixelsPerTimelineUnit float64
	// FixPointViewportCoordinate is the pixel where timeline coordinate 0,
	// the origin event, is drawn.
	FixPointViewportCoordinate int64
	Width                      int
}

// TimelineCoordinate converts pixel x to a timeline coordinate.
func (v Viewport) TimelineCoordinate(x float64) float64 {
	return (x - float64(v.FixPointViewportCoordinate)) / v.PixelsPerTimelineUnit
}

// ViewportCoordinate converts timeline coordinate c to the nearest pixel.
func (v Viewport) ViewportCoordinate(c float64) int64 {
	return int64(math.Round(c*v.PixelsPerTimelineUnit)) + v.FixPointViewportCoordinate
}

// Axis combines a mapper and a viewport into the pixel to simulation time
// conversions used for the time axis of a chart.
type Axis struct {
	Mapper   *Mapper
	Viewport Viewport
}

// SimulationTimeAt returns the simulation time drawn at pixel x.
func (a *Axis) SimulationTimeAt(ctx context.Context, x float64, upperBound bool) (simtime.Time, error) {
	return a.Mapper.SimulationTimeForCoordinate(ctx, a.Viewport.TimelineCoordinate(x), upperBound)
}

// X returns the pixel where simulation time t is drawn.
func (a *Axis) X(ctx context.Context, t simtime.Time) (int64, error) {
	c, err := a.Mapper.CoordinateForSimulationTime(ctx, t, false)
	if err != nil {
		return 0, err
	}
	return a.Viewport.ViewportCoordinate(c), nil
}

// CalculateTick returns the simulation time with the shortest decimal
// notation among the times drawn within tickRange pixels around x. An empty
// log yields zero.
func (a *Axis) CalculateTick(ctx context.Context, x, tickRange float64) (simtime.Time, error) {
	last, err := a.Mapper.Log().LastEvent(ctx)
	if err != nil || last == nil {
		return simtime.Time{}, err
	}
	t, err := a.SimulationTimeAt(ctx, x, false)
	if err != nil {
		return simtime.Time{}, err
	}
	tMin, err := a.SimulationTimeAt(ctx, x-tickRange/2, false)
	if err != nil {
		return simtime.Time{}, err
	}
	tMax, err := a.SimulationTimeAt(ctx, x+tickRange/2, false)
	if err != nil {
		return simtime.Time{}, err
	}
	// Linear interpolation between two events can make the bounds cross t;
	// ShortestWithin widens the range to include it.
	return simtime.ShortestWithin(t, tMin, tMax), nil
}

// Tick is one labeled position on the time axis.
type Tick struct {
	Time simtime.Time
	X    int64
	// Label is the tick time with the set's prefix cut off.
	Label string
}

// TickSet is the ticks of one viewport. Prefix is the leading part shared
// by the simulation times at both viewport edges; it is shown once instead
// of on every tick.
type TickSet struct {
	Prefix simtime.Time
	// PrefixText is Prefix in the notation the labels were cut from.
	PrefixText string
	Ticks      []Tick
}

// Ticks computes the ticks of the viewport about spacing pixels apart. In
// SimulationTime mode the ticks are multiples of 1, 2 or 5 times a power of
// ten; in the other modes they are placed at every spacing pixels and
// rounded to short times nearby.
func (a *Axis) Ticks(ctx context.Context, spacing int) (*TickSet, error) {
	if spacing <= 0 {
		spacing = DefaultTickSpacing
	}
	left, err := a.CalculateTick(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	right, err := a.CalculateTick(ctx, float64(a.Viewport.Width), 1)
	if err != nil {
		return nil, err
	}
	set := &TickSet{PrefixText: simtime.CommonPrefix(left, right)}
	if p, err := simtime.Parse(strings.TrimSuffix(set.PrefixText, ".")); err == nil {
		set.Prefix = p
	}

	last, err := a.Mapper.Log().LastEvent(ctx)
	if err != nil || last == nil {
		return set, err
	}
	var times []simtime.Time
	if a.Mapper.Mode() == SimulationTime {
		times, err = a.decimalTicks(ctx, left, right, spacing)
	} else {
		times, err = a.pixelTicks(ctx, last, spacing)
	}
	if err != nil {
		return nil, err
	}
	for _, t := range times {
		x, err := a.X(ctx, t)
		if err != nil {
			return nil, err
		}
		set.Ticks = append(set.Ticks, Tick{Time: t, X: x, Label: label(set.PrefixText, t)})
	}
	return set, nil
}

func (a *Axis) decimalTicks(ctx context.Context, left, right simtime.Time, spacing int) ([]simtime.Time, error) {
	units := float64(spacing) / a.Viewport.PixelsPerTimelineUnit
	if units <= 0 || math.IsInf(units, 0) || math.IsNaN(units) {
		return nil, fmt.Errorf("invalid scale %v pixels per unit", a.Viewport.PixelsPerTimelineUnit)
	}
	scale := int32(math.Ceil(math.Log10(units)))
	minStep := simtime.ApproximateFromFloat(units)
	start := left.Quantize(scale, simtime.Floor)
	end := right.Quantize(scale, simtime.Ceiling)

	step := simtime.Pow10(scale)
	if two := simtime.New(big.NewInt(2), scale-1); minStep.Less(two) {
		step = two
	} else if five := simtime.New(big.NewInt(5), scale-1); minStep.Less(five) {
		step = five
	}

	var times []simtime.Time
	for t := start; t.Less(end); t = t.Add(step) {
		if len(times) >= maxTicks {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
		}
		if t.Sign() >= 0 {
			times = append(times, t)
		}
	}
	return times, nil
}

func (a *Axis) pixelTicks(ctx context.Context, last *eventlog.Event, spacing int) ([]simtime.Time, error) {
	step := int64(spacing)
	mod := a.Viewport.FixPointViewportCoordinate % step
	end := last.SimulationTime()

	var times []simtime.Time
	for x := mod - step; x < mod+int64(a.Viewport.Width)+step; x += step {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
		}
		t, err := a.CalculateTick(ctx, float64(x), float64(spacing)/2)
		if err != nil {
			return nil, err
		}
		if t.Sign() >= 0 && !end.Less(t) {
			times = append(times, t)
		}
	}
	return times, nil
}

func label(prefix string, t simtime.Time) string {
	s := t.PlainString()
	if prefix == "" || prefix == s {
		return s
	}
	if rest, ok := strings.CutPrefix(s, prefix); ok {
		return "..." + rest
	}
	return s
}

// DefaultPixelsPerTimelineUnit returns a scale that fits about twenty
// events around the origin into width pixels. It searches forward from the
// origin, then backward once the log ends, until two events with different
// coordinates are found.
func DefaultPixelsPerTimelineUnit(ctx context.Context, m *Mapper, width int) (float64, error) {
	if err := m.sync(ctx); err != nil {
		return 1, err
	}
	ref, nb := m.origin, m.origin
	for distance := defaultPixelsDistance; ; {
		if err := ctx.Err(); err != nil {
			return 1, fmt.Errorf("%w: %w", eventlog.ErrCanceled, err)
		}
		distance--
		if distance <= 0 {
			cr, cn, err := m.pair(ctx, ref, nb)
			if err != nil {
				return 1, err
			}
			if cr != cn {
				break
			}
		}
		next, err := m.log.NeighbourEvent(ctx, nb, 1)
		if err != nil {
			return 1, err
		}
		if next != nil {
			nb = next
			continue
		}
		prev, err := m.log.NeighbourEvent(ctx, ref, -1)
		if err != nil {
			return 1, err
		}
		if prev == nil {
			break
		}
		ref = prev
	}
	if ref == nb {
		return 1, nil
	}
	cr, cn, err := m.pair(ctx, ref, nb)
	if err != nil {
		return 1, err
	}
	if delta := math.Abs(cn - cr); delta > 0 {
		return float64(width) / delta, nil
	}
	return 1, nil
}

func (m *Mapper) pair(ctx context.Context, a, b *eventlog.Event) (float64, float64, error) {
	ca, err := m.coordinate(ctx, a)
	if err != nil {
		return 0, 0, err
	}
	cb, err := m.coordinate(ctx, b)
	return ca, cb, err
}
