// Package depgraph walks the message dependency graph of an event log. The
// walks are bounded by depth, count and wall-clock limits; a walk stopped by
// a limit returns what it found so far, flagged as partial.
package depgraph

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/papapumpkin/seqchart/internal/eventlog"
)

const cancelCheckInterval = 256

// Direction selects which side of the causality graph is walked.
type Direction int

// Walk directions.
const (
	Causes       Direction = iota // towards earlier events
	Consequences                  // towards later events
)

// String returns the lowercase direction name.
func (d Direction) String() string {
	if d == Causes {
		return "causes"
	}
	return "consequences"
}

// Limits bounds a walk. Zero values mean unlimited.
type Limits struct {
	MaxDepth    int
	MaxCount    int
	MaxDuration time.Duration
	// IncludeReuses follows reuse dependencies as well as sends.
	IncludeReuses bool
	// ExcludeSelfMessages skips send dependencies whose message the
	// sending module scheduled to itself.
	ExcludeSelfMessages bool
}

// Limit names which limit cut a walk short.
type Limit string

// Limits that may cut a walk short.
const (
	LimitNone  Limit = ""
	LimitDepth Limit = "depth"
	LimitCount Limit = "count"
	LimitTime  Limit = "time"
)

// Node is an event reached by a walk.
type Node struct {
	EventNumber int64
	// Depth is the number of dependencies between the node and the origin.
	Depth int
	// Kind is the combined kind of the dependencies on the path found.
	Kind eventlog.DependencyKind
}

// Collection is the result of Collect.
type Collection struct {
	Origin    int64
	Direction Direction
	// Nodes excludes the origin and is sorted by event number.
	Nodes []Node
	// Dependencies are the edges the walk followed.
	Dependencies []eventlog.MessageDependency
	Partial      bool
	Limit        Limit
}

// Contains reports whether the walk reached event n.
func (c *Collection) Contains(n int64) bool {
	i := sort.Search(len(c.Nodes), func(i int) bool { return c.Nodes[i].EventNumber >= n })
	return i < len(c.Nodes) && c.Nodes[i].EventNumber == n
}

// EventNumbers returns the reached event numbers in ascending order.
func (c *Collection) EventNumbers() []int64 {
	out := make([]int64, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.EventNumber
	}
	return out
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces time.Now for the collection time budget.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector walks dependencies of events in a log.
type Collector struct {
	log    eventlog.Log
	limits Limits
	now    func() time.Time
}

// NewCollector returns a collector over log. The log must resolve every
// event number, so it is normally the unfiltered log.
func NewCollector(log eventlog.Log, limits Limits, opts ...Option) *Collector {
	c := &Collector{log: log, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limits returns the limits the collector enforces.
func (c *Collector) Limits() Limits {
	return c.limits
}

type item struct {
	event *eventlog.Event
	depth int
	kind  eventlog.DependencyKind
	// first and last are the dependencies nearest to the origin and to the
	// item on the path found.
	first, last eventlog.MessageDependency
	length      int
}

// frontier orders items so that the event nearest to the origin in log
// order is visited first.
type frontier struct {
	items   []item
	reverse bool
}

func (f *frontier) Len() int { return len(f.items) }
func (f *frontier) Less(i, j int) bool {
	if f.reverse {
		return f.items[i].event.EventNumber() > f.items[j].event.EventNumber()
	}
	return f.items[i].event.EventNumber() < f.items[j].event.EventNumber()
}
func (f *frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }
func (f *frontier) Push(x any)    { f.items = append(f.items, x.(item)) }
func (f *frontier) Pop() any {
	old := f.items
	it := old[len(old)-1]
	f.items = old[:len(old)-1]
	return it
}

// walk runs a bounded best-first traversal from origin. visit is called for
// every reached event except the origin and returns whether to expand it.
// The returned limit is the first one that cut the walk short.
func (c *Collector) walk(ctx context.Context, origin *eventlog.Event, dir Direction,
	visit func(it item) bool,
) (Limit, error) {
	var deadline time.Time
	if c.limits.MaxDuration > 0 {
		deadline = c.now().Add(c.limits.MaxDuration)
	}
	f := &frontier{reverse: dir == Causes}
	seen := map[int64]bool{origin.EventNumber(): true}
	heap.Push(f, item{event: origin})
	visited := 0
	limit := LimitNone
	cut := func(l Limit) {
		if limit == LimitNone {
			limit = l
		}
	}

	for steps := 0; f.Len() > 0; steps++ {
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return limit, fmt.Errorf("collecting %s: %w: %w", dir, eventlog.ErrCanceled, err)
			}
		}
		if !deadline.IsZero() && c.now().After(deadline) {
			cut(LimitTime)
			break
		}
		it := heap.Pop(f).(item)
		if it.event != origin {
			if c.limits.MaxCount > 0 && visited >= c.limits.MaxCount {
				cut(LimitCount)
				break
			}
			visited++
			if !visit(it) {
				continue
			}
		}

		var edges []eventlog.MessageDependency
		if dir == Causes {
			edges = it.event.Causes()
		} else {
			edges = it.event.Consequences()
		}
		for _, d := range edges {
			if d.Kind == eventlog.Reuse && !c.limits.IncludeReuses {
				continue
			}
			next := d.Cause
			if dir == Consequences {
				next = d.Consequence
			}
			if seen[next] {
				continue
			}
			if c.limits.MaxDepth > 0 && it.depth >= c.limits.MaxDepth {
				cut(LimitDepth)
				break
			}
			e, err := c.log.EventForEventNumber(ctx, next)
			if err != nil {
				return limit, err
			}
			if e == nil {
				continue
			}
			if d.Kind == eventlog.Send && c.limits.ExcludeSelfMessages {
				consequence := e
				if dir == Causes {
					consequence = it.event
				}
				if consequence.IsSelfMessageProcessing() {
					continue
				}
			}
			seen[next] = true
			nit := item{event: e, depth: it.depth + 1, kind: d.Kind, first: d, last: d, length: 1}
			if it.event != origin {
				nit.kind = it.kind.Combine(d.Kind)
				nit.first = it.first
				nit.length = it.length + 1
			}
			heap.Push(f, nit)
		}
	}
	return limit, nil
}

// Collect walks from origin in direction dir and returns every event
// reached within the limits.
func (c *Collector) Collect(ctx context.Context, origin *eventlog.Event, dir Direction) (*Collection, error) {
	col := &Collection{Origin: origin.EventNumber(), Direction: dir}
	deps := eventlog.NewDependencyCollector()
	limit, err := c.walk(ctx, origin, dir, func(it item) bool {
		col.Nodes = append(col.Nodes, Node{EventNumber: it.event.EventNumber(), Depth: it.depth, Kind: it.kind})
		deps.Add(it.last)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(col.Nodes, func(i, j int) bool { return col.Nodes[i].EventNumber < col.Nodes[j].EventNumber })
	col.Dependencies = deps.Sorted()
	col.Limit = limit
	col.Partial = limit != LimitNone
	return col, nil
}

// Nearest walks from origin through events rejected by accept and returns
// one aggregated dependency per accepted event reached, without walking
// past accepted events. The result is sorted and the bool reports whether a
// limit cut the walk short.
func (c *Collector) Nearest(ctx context.Context, origin *eventlog.Event, dir Direction,
	accept func(*eventlog.Event) bool,
) ([]eventlog.MessageDependency, bool, error) {
	out := eventlog.NewDependencyCollector()
	limit, err := c.walk(ctx, origin, dir, func(it item) bool {
		if !accept(it.event) {
			return true
		}
		d := eventlog.MessageDependency{Kind: it.kind, Length: it.length}
		if dir == Causes {
			d.Cause, d.Consequence = it.event.EventNumber(), origin.EventNumber()
			d.MessageID, d.EndMessageID = it.last.MessageID, it.first.EndMessageID
		} else {
			d.Cause, d.Consequence = origin.EventNumber(), it.event.EventNumber()
			d.MessageID, d.EndMessageID = it.first.MessageID, it.last.EndMessageID
		}
		out.Add(d)
		return false
	})
	if err != nil {
		return nil, false, err
	}
	return out.Sorted(), limit != LimitNone, nil
}
