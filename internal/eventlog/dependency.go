package eventlog

import (
	"context"
	"fmt"
	"sort"
)

// DependencyKind classifies a message dependency.
type DependencyKind int

// Dependency kinds. Mixed only appears on aggregated dependencies that
// absorb both send and reuse edges.
const (
	Send  DependencyKind = iota // sent by the cause, arrived at the consequence
	Reuse                       // same message object, processed by both events
	Mixed                       // aggregate of send and reuse edges
)

// String returns the lowercase kind name.
func (k DependencyKind) String() string {
	switch k {
	case Send:
		return "send"
	case Reuse:
		return "reuse"
	case Mixed:
		return "mixed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Combine returns the kind of a path made of edges of kinds k and o.
func (k DependencyKind) Combine(o DependencyKind) DependencyKind {
	if k == o {
		return k
	}
	return Mixed
}

// MessageDependency is a causal edge between two events, expressed by event
// numbers and resolved through a Log.
type MessageDependency struct {
	Cause       int64
	Consequence int64
	Kind        DependencyKind
	// MessageID is the message leaving Cause.
	MessageID int64
	// EndMessageID is the message arriving at Consequence. It differs from
	// MessageID only on aggregated dependencies.
	EndMessageID int64
	// Length is the number of direct dependencies the edge stands for.
	Length int
}

// DependencySet is the result of a dependency query. Partial is set when a
// collection limit stopped the traversal; the set may then be incomplete.
type DependencySet struct {
	Dependencies []MessageDependency
	Partial      bool
}

type dependencyKey struct {
	cause, consequence, message int64
	kind                        DependencyKind
}

// key identifies a dependency for deduplication.
func (d MessageDependency) key() dependencyKey {
	return dependencyKey{cause: d.Cause, consequence: d.Consequence, message: d.MessageID, kind: d.Kind}
}

// SortDependencies orders dependencies by cause, consequence, message and
// kind so that query results are deterministic.
func SortDependencies(deps []MessageDependency) {
	sort.Slice(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		if a.Consequence != b.Consequence {
			return a.Consequence < b.Consequence
		}
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Kind < b.Kind
	})
}

// DependencyCollector deduplicates dependencies as they are added.
type DependencyCollector struct {
	seen map[dependencyKey]bool
	deps []MessageDependency
}

// NewDependencyCollector returns an empty collector.
func NewDependencyCollector() *DependencyCollector {
	return &DependencyCollector{seen: make(map[dependencyKey]bool)}
}

// Add records d unless an identical dependency was already added.
func (c *DependencyCollector) Add(d MessageDependency) {
	k := d.key()
	if c.seen[k] {
		return
	}
	c.seen[k] = true
	c.deps = append(c.deps, d)
}

// Sorted returns the collected dependencies in deterministic order.
func (c *DependencyCollector) Sorted() []MessageDependency {
	SortDependencies(c.deps)
	return c.deps
}

// IntersectingMessageDependencies returns the dependencies with at least one
// endpoint between start and end inclusive, in log order. Dependencies whose
// other endpoint is not in the log are omitted.
func (l *EventLog) IntersectingMessageDependencies(ctx context.Context, start, end *Event) (DependencySet, error) {
	if err := l.check(start); err != nil {
		return DependencySet{}, err
	}
	if err := l.check(end); err != nil {
		return DependencySet{}, err
	}
	if start.index > end.index {
		start, end = end, start
	}
	c := NewDependencyCollector()
	add := func(d MessageDependency) {
		if l.eventForNumber(d.Cause) != nil && l.eventForNumber(d.Consequence) != nil {
			c.Add(d)
		}
	}
	for i := start.index; i <= end.index; i++ {
		if (i-start.index)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return DependencySet{}, wrapCanceled(err)
			}
		}
		e := l.idx.events[i]
		for _, d := range e.Causes() {
			add(d)
		}
		for _, d := range l.idx.consequences[e.number] {
			add(d)
		}
	}
	return DependencySet{Dependencies: c.Sorted()}, nil
}

// MessageForDependency returns the message a direct dependency refers to:
// the message sent by the cause for a send, or the message resent by the
// consequence for a reuse.
func (l *EventLog) MessageForDependency(d MessageDependency) (Message, bool) {
	var e *Event
	switch d.Kind {
	case Send:
		e = l.eventForNumber(d.Cause)
	case Reuse:
		e = l.eventForNumber(d.Consequence)
	}
	if e == nil {
		return Message{}, false
	}
	for _, m := range e.sent {
		if m.MessageID == d.MessageID {
			return m, true
		}
	}
	return Message{}, false
}
