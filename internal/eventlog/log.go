package eventlog

import (
	"context"

	"github.com/papapumpkin/seqchart/internal/simtime"
)

// Log is the query surface shared by the base log and filtered views.
// Lookups return a nil event, not an error, when nothing matches.
type Log interface {
	FirstEvent(ctx context.Context) (*Event, error)
	LastEvent(ctx context.Context) (*Event, error)
	EventForEventNumber(ctx context.Context, n int64) (*Event, error)
	LastEventNotAfterTime(ctx context.Context, t simtime.Time) (*Event, error)
	FirstEventNotBeforeTime(ctx context.Context, t simtime.Time) (*Event, error)
	NeighbourEvent(ctx context.Context, e *Event, delta int) (*Event, error)
	ApproximateNumberOfEvents() int
	ApproximatePercentageForEventNumber(n int64) float64
	IntersectingMessageDependencies(ctx context.Context, start, end *Event) (DependencySet, error)
	Epoch() uint64
}

var _ Log = (*EventLog)(nil)
