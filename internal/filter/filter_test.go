package filter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/matchexpr"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

// pingLog: host[0] (module 2) and host[1] (module 3) exchange messages.
// Events 3 -> 4 go through a self-message timer.
const pingLog = `SB v 1 rid run-1
MC id 1 c Net t net.Network n net
MC id 2 c Host t net.Host n host[0] pid 1
MC id 3 c Host t net.Host n host[1] pid 1
E # 0 t 0 m 1
BS id 10 tid 10 c cMessage n start
SD sm 1 dm 2
ES t 0

E # 1 t 0 m 2 ce 0 msg 10
BS id 11 tid 11 c Packet n ping
SH sm 2 sg 0
ES t 0.001

E # 2 t 0.001 m 3 ce 1 msg 11
BS id 12 tid 12 c Packet n pong
SH sm 3 sg 0
ES t 0.002

E # 3 t 0.002 m 2 ce 2 msg 12
BS id 13 tid 13 c cMessage n timer
ES t 0.003

E # 4 t 0.003 m 2 ce 3 msg 13
BS id 14 tid 14 c Packet n ping
SH sm 2 sg 0
ES t 0.004

E # 5 t 0.004 m 3 ce 4 msg 14
`

func openBase(t *testing.T, content string) (*eventlog.EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ping.elog")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := eventlog.Open(context.Background(), path, eventlog.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func newFiltered(t *testing.T, base *eventlog.EventLog, p Parameters) *FilteredEventLog {
	t.Helper()
	f, err := New(base, p, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// forward walks the view from its first to its last event.
func forward(t *testing.T, l eventlog.Log) []int64 {
	t.Helper()
	ctx := context.Background()
	var out []int64
	e, err := l.FirstEvent(ctx)
	for ; e != nil && err == nil; e, err = l.NeighbourEvent(ctx, e, 1) {
		out = append(out, e.EventNumber())
	}
	if err != nil {
		t.Fatalf("walking forward: %v", err)
	}
	return out
}

func backward(t *testing.T, l eventlog.Log) []int64 {
	t.Helper()
	ctx := context.Background()
	var out []int64
	e, err := l.LastEvent(ctx)
	for ; e != nil && err == nil; e, err = l.NeighbourEvent(ctx, e, -1) {
		out = append([]int64{e.EventNumber()}, out...)
	}
	if err != nil {
		t.Fatalf("walking backward: %v", err)
	}
	return out
}

func baseEvent(t *testing.T, l *eventlog.EventLog, n int64) *eventlog.Event {
	t.Helper()
	e, _ := l.EventForEventNumber(context.Background(), n)
	if e == nil {
		t.Fatalf("event %d missing", n)
	}
	return e
}

func TestFilterSelection(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)

	tests := []struct {
		name   string
		modify func(p *Parameters)
		want   []int64
	}{
		{"defaults", func(*Parameters) {}, []int64{0, 1, 2, 3, 4, 5}},
		{"range", func(p *Parameters) { p.FirstEventNumber, p.LastEventNumber = 2, 4 }, []int64{2, 3, 4}},
		{"range and excluded", func(p *Parameters) {
			p.FirstEventNumber, p.LastEventNumber = 2, 4
			p.ExcludedEventNumbers = []int64{3}
		}, []int64{2, 4}},
		{"open ended range", func(p *Parameters) { p.FirstEventNumber = 4 }, []int64{4, 5}},
		{"module ids", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleIDs = []int64{3}
		}, []int64{2, 5}},
		{"module ids disabled", func(p *Parameters) { p.ModuleIDs = []int64{3} }, []int64{0, 1, 2, 3, 4, 5}},
		{"module names", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleNames = []string{"net.host*"}
		}, []int64{1, 2, 3, 4, 5}},
		{"module NED types", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleNEDTypeNames = []string{"net.Network"}
		}, []int64{0}},
		{"module expression", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleExpression = `id(2) OR fullname("net")`
		}, []int64{0, 1, 3, 4}},
		{"module criteria are alternatives", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleIDs = []int64{1}
			p.ModuleExpression = "id(3)"
		}, []int64{0, 2, 5}},
		{"message names", func(p *Parameters) {
			p.EnableMessageFilter = true
			p.MessageNames = []string{"ping"}
		}, []int64{2, 5}},
		{"message classes", func(p *Parameters) {
			p.EnableMessageFilter = true
			p.MessageClassNames = []string{"cMessage"}
		}, []int64{1, 4}},
		{"message expression", func(p *Parameters) {
			p.EnableMessageFilter = true
			p.MessageExpression = "class(Packet) AND NOT pong"
		}, []int64{2, 5}},
		{"message tree ids", func(p *Parameters) {
			p.EnableMessageFilter = true
			p.MessageTreeIDs = []int64{12, 13}
		}, []int64{3, 4}},
		{"module and message", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleIDs = []int64{2}
			p.EnableMessageFilter = true
			p.MessageClassNames = []string{"Packet"}
		}, []int64{3}},
		{"trace", func(p *Parameters) { p.TracedEventNumber = 3 }, []int64{0, 1, 2, 3, 4, 5}},
		{"trace consequences only", func(p *Parameters) {
			p.TracedEventNumber = 3
			p.TraceCauses = false
		}, []int64{3, 4, 5}},
		{"trace cause depth", func(p *Parameters) {
			p.TracedEventNumber = 3
			p.MaxCauseDepth = 1
		}, []int64{2, 3, 4, 5}},
		{"trace without self-messages", func(p *Parameters) {
			p.TracedEventNumber = 3
			p.TraceSelfMessages = false
		}, []int64{0, 1, 2, 3}},
		{"trace of missing event", func(p *Parameters) { p.TracedEventNumber = 42 }, nil},
		{"nothing matches", func(p *Parameters) {
			p.EnableModuleFilter = true
			p.ModuleIDs = []int64{99}
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParameters()
			tt.modify(&p)
			f := newFiltered(t, base, p)
			if diff := cmp.Diff(tt.want, forward(t, f)); diff != "" {
				t.Errorf("forward (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, backward(t, f)); diff != "" {
				t.Errorf("backward (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterIdempotence(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableMessageFilter = true
	p.MessageNames = []string{"p*"}
	p.TracedEventNumber = 2

	first := forward(t, newFiltered(t, base, p))
	second := forward(t, newFiltered(t, base, p))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("filters with equal parameters differ (-first +second):\n%s", diff)
	}
}

func TestFilterMonotonicTraversal(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleNEDTypeNames = []string{"net.Host"}
	seq := forward(t, newFiltered(t, base, p))
	if len(seq) == 0 {
		t.Fatal("empty traversal")
	}
	for i := 1; i < len(seq); i++ {
		if seq[i] <= seq[i-1] {
			t.Fatalf("event %d follows %d", seq[i], seq[i-1])
		}
	}
}

func TestFilterNeighbourTerminates(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{99}
	f := newFiltered(t, base, p)
	ctx := context.Background()

	for _, delta := range []int{1, -1, 3} {
		e, err := f.NeighbourEvent(ctx, baseEvent(t, base, 2), delta)
		if err != nil || e != nil {
			t.Errorf("NeighbourEvent(2, %d) = %v, %v, want nil", delta, e, err)
		}
	}
	if e, err := f.MatchingEventInDirection(ctx, baseEvent(t, base, 0), true); err != nil || e != nil {
		t.Errorf("MatchingEventInDirection = %v, %v, want nil", e, err)
	}
	if n := f.ApproximateNumberOfEvents(); n != 0 {
		t.Errorf("ApproximateNumberOfEvents = %d, want 0", n)
	}
}

func TestFilterLookups(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{3}
	f := newFiltered(t, base, p)
	ctx := context.Background()

	tests := []struct {
		name string
		get  func() (*eventlog.Event, error)
		want int64
	}{
		{"visible by number", func() (*eventlog.Event, error) { return f.EventForEventNumber(ctx, 5) }, 5},
		{"hidden by number", func() (*eventlog.Event, error) { return f.EventForEventNumber(ctx, 4) }, -1},
		{"last not after", func() (*eventlog.Event, error) {
			return f.LastEventNotAfterTime(ctx, simtime.MustParse("0.003"))
		}, 2},
		{"last not after exact", func() (*eventlog.Event, error) {
			return f.LastEventNotAfterTime(ctx, simtime.MustParse("0.004"))
		}, 5},
		{"last not after too early", func() (*eventlog.Event, error) {
			return f.LastEventNotAfterTime(ctx, simtime.MustParse("0.0005"))
		}, -1},
		{"first not before", func() (*eventlog.Event, error) {
			return f.FirstEventNotBeforeTime(ctx, simtime.MustParse("0.002"))
		}, 5},
		{"first not before too late", func() (*eventlog.Event, error) {
			return f.FirstEventNotBeforeTime(ctx, simtime.MustParse("1"))
		}, -1},
		{"two steps forward", func() (*eventlog.Event, error) {
			return f.NeighbourEvent(ctx, baseEvent(t, base, 0), 2)
		}, 5},
	}
	for _, tt := range tests {
		e, err := tt.get()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got := int64(-1)
		if e != nil {
			got = e.EventNumber()
		}
		if got != tt.want {
			t.Errorf("%s: got event %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestFilterApproximations(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{2}
	f := newFiltered(t, base, p)

	if n := f.ApproximateNumberOfEvents(); n != 3 {
		t.Errorf("ApproximateNumberOfEvents = %d, want 3", n)
	}
	tests := []struct {
		n    int64
		want float64
	}{
		{1, 0}, {0, 0}, {4, 1}, {5, 1}, {2, 1.0 / 3},
	}
	for _, tt := range tests {
		if got := f.ApproximatePercentageForEventNumber(tt.n); got != tt.want {
			t.Errorf("ApproximatePercentageForEventNumber(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestFilterAggregatedDependencies(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{2}
	f := newFiltered(t, base, p)
	ctx := context.Background()

	want := []eventlog.MessageDependency{
		{Cause: 1, Consequence: 3, Kind: eventlog.Send, MessageID: 11, EndMessageID: 12, Length: 2},
		{Cause: 3, Consequence: 4, Kind: eventlog.Send, MessageID: 13, EndMessageID: 13, Length: 1},
	}
	for i := 0; i < 2; i++ {
		set, err := f.IntersectingMessageDependencies(ctx, baseEvent(t, base, 1), baseEvent(t, base, 4))
		if err != nil {
			t.Fatalf("IntersectingMessageDependencies: %v", err)
		}
		if diff := cmp.Diff(want, set.Dependencies); diff != "" {
			t.Errorf("query %d (-want +got):\n%s", i, diff)
		}
		if set.Partial {
			t.Error("unexpected partial result")
		}
	}

	causes, err := f.CausesOf(ctx, baseEvent(t, base, 3))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want[:1], causes.Dependencies); diff != "" {
		t.Errorf("CausesOf(3) (-want +got):\n%s", diff)
	}
}

func TestFilterAggregationLimits(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{2}
	p.MaxCauseDepth = 1
	f := newFiltered(t, base, p)

	set, err := f.CausesOf(context.Background(), baseEvent(t, base, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Dependencies) != 0 || !set.Partial {
		t.Errorf("CausesOf(3) = %+v, want empty partial result", set)
	}
}

func TestFilterExplain(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.FirstEventNumber = 1
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{3}
	f := newFiltered(t, base, p)

	tests := []struct {
		event int64
		fail  string
	}{
		{0, "range"}, {1, "module"}, {2, ""},
	}
	for _, tt := range tests {
		r, err := f.Explain(context.Background(), baseEvent(t, base, tt.event))
		if err != nil {
			t.Fatal(err)
		}
		got := ""
		if c := r.FirstFailure(); c != nil {
			got = c.Name
		}
		if got != tt.fail {
			t.Errorf("event %d: first failure %q, want %q", tt.event, got, tt.fail)
		}
	}
}

func TestFilterInvalidParameters(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	tests := []struct {
		name   string
		modify func(p *Parameters)
		syntax bool
	}{
		{"module expression", func(p *Parameters) { p.ModuleExpression = "name(" }, true},
		{"message expression", func(p *Parameters) { p.MessageExpression = "a AND" }, true},
		{"module name pattern", func(p *Parameters) { p.ModuleNames = []string{`host\`} }, true},
		{"reversed range", func(p *Parameters) { p.FirstEventNumber, p.LastEventNumber = 5, 2 }, false},
		{"negative limit", func(p *Parameters) { p.MaxNumberOfCauses = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParameters()
			tt.modify(&p)
			_, err := New(base, p, Options{})
			if !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("error = %v, want ErrInvalidParameters", err)
			}
			var se *matchexpr.SyntaxError
			if got := errors.As(err, &se); got != tt.syntax {
				t.Errorf("errors.As SyntaxError = %v, want %v", got, tt.syntax)
			}
		})
	}
}

func TestFilterFollowsAppend(t *testing.T) {
	t.Parallel()

	base, path := openBase(t, pingLog)
	p := DefaultParameters()
	p.EnableModuleFilter = true
	p.ModuleIDs = []int64{3}
	f := newFiltered(t, base, p)
	ctx := context.Background()
	if diff := cmp.Diff([]int64{2, 5}, forward(t, f)); diff != "" {
		t.Fatalf("before append (-want +got):\n%s", diff)
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fh.WriteString("BS id 15 tid 15 c Packet n pong\nSH sm 3 sg 0\nES t 0.005\n\nE # 6 t 0.005 m 3 ce 5 msg 15\n"); err != nil {
		t.Fatal(err)
	}
	if err := fh.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := base.CheckForChanges(ctx); err != nil {
		t.Fatalf("CheckForChanges: %v", err)
	}
	if diff := cmp.Diff([]int64{2, 5, 6}, forward(t, f)); diff != "" {
		t.Errorf("after append (-want +got):\n%s", diff)
	}
}

func TestFilterTraceCanceled(t *testing.T) {
	t.Parallel()

	base, _ := openBase(t, pingLog)
	p := DefaultParameters()
	p.TracedEventNumber = 3
	f := newFiltered(t, base, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FirstEvent(ctx); !errors.Is(err, eventlog.ErrCanceled) {
		t.Errorf("error = %v, want ErrCanceled", err)
	}
	partial, err := f.TracePartial(context.Background())
	if err != nil || partial {
		t.Errorf("TracePartial = %v, %v, want false, nil", partial, err)
	}
}
