package timeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

// burstLog has events at times 0, 0, 1, 1, 1.5, 3 and 10.
const burstLog = `MC id 1 c Node t net.Node n node

E # 0 t 0 m 1

E # 1 t 0 m 1

E # 2 t 1 m 1

E # 3 t 1 m 1

E # 4 t 1.5 m 1

E # 5 t 3 m 1

E # 6 t 10 m 1
`

var allModes = []Mode{SimulationTime, EventNumber, Step, Nonlinear}

func openLog(t *testing.T, content string) (*eventlog.EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "burst.elog")
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

func newMapper(t *testing.T, l eventlog.Log, mode Mode) *Mapper {
	t.Helper()
	m, err := NewMapper(context.Background(), l, Options{Mode: mode})
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

func event(t *testing.T, l *eventlog.EventLog, n int64) *eventlog.Event {
	t.Helper()
	e, _ := l.EventForEventNumber(context.Background(), n)
	if e == nil {
		t.Fatalf("event %d missing", n)
	}
	return e
}

func coordinates(t *testing.T, m *Mapper, l *eventlog.EventLog) []float64 {
	t.Helper()
	out := make([]float64, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		c, err := m.Coordinate(context.Background(), l.EventAt(i))
		if err != nil {
			t.Fatalf("Coordinate(%d): %v", i, err)
		}
		out = append(out, c)
	}
	return out
}

func TestCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode   Mode
		origin int64
		want   []float64
	}{
		{SimulationTime, 0, []float64{0, 0, 1, 1, 1.5, 3, 10}},
		{SimulationTime, 4, []float64{-1.5, -1.5, -0.5, -0.5, 0, 1.5, 8.5}},
		{EventNumber, 0, []float64{0, 1, 2, 3, 4, 5, 6}},
		{EventNumber, 3, []float64{-3, -2, -1, 0, 1, 2, 3}},
		{Step, 0, []float64{0, 1, 2, 3, 4, 5, 6}},
		{Step, 3, []float64{-3, -2, -1, 0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			t.Parallel()
			l, _ := openLog(t, burstLog)
			m := newMapper(t, l, tt.mode)
			if err := m.RelocateOrigin(event(t, l, tt.origin)); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, coordinates(t, m, l)); diff != "" {
				t.Errorf("coordinates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCoordinatesMonotonic(t *testing.T) {
	t.Parallel()

	for _, mode := range allModes {
		for _, origin := range []int64{0, 3, 6} {
			l, _ := openLog(t, burstLog)
			m := newMapper(t, l, mode)
			if err := m.RelocateOrigin(event(t, l, origin)); err != nil {
				t.Fatal(err)
			}
			cs := coordinates(t, m, l)
			for i := 1; i < len(cs); i++ {
				if cs[i] < cs[i-1] {
					t.Errorf("%s origin %d: coordinate %d = %v is before %v", mode, origin, i, cs[i], cs[i-1])
				}
			}
			if cs[origin] != 0 {
				t.Errorf("%s: origin coordinate = %v, want 0", mode, cs[origin])
			}
		}
	}
}

func TestNonlinearDeltas(t *testing.T) {
	t.Parallel()

	l, _ := openLog(t, burstLog)
	m := newMapper(t, l, Nonlinear)
	cs := coordinates(t, m, l)
	if d := cs[1] - cs[0]; math.Abs(d-DefaultNonlinearMinimumDelta) > 1e-12 {
		t.Errorf("delta between simultaneous events = %v, want %v", d, DefaultNonlinearMinimumDelta)
	}
	for i := 1; i < len(cs); i++ {
		d := cs[i] - cs[i-1]
		if d < DefaultNonlinearMinimumDelta-1e-12 || d > 1 {
			t.Errorf("delta %d = %v, want within [%v, 1]", i, d, DefaultNonlinearMinimumDelta)
		}
	}
	// A gap of 7 s compresses to less than a step while staying larger than
	// the gap of 0.5 s.
	if !(cs[6]-cs[5] > cs[4]-cs[3]) {
		t.Errorf("larger time gap mapped to smaller distance: %v", cs)
	}
}

func TestSimulationTimeSandwich(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, mode := range allModes {
		for _, origin := range []int64{0, 4} {
			l, _ := openLog(t, burstLog)
			m := newMapper(t, l, mode)
			if err := m.RelocateOrigin(event(t, l, origin)); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < l.Len(); i++ {
				e := l.EventAt(i)
				c, err := m.Coordinate(ctx, e)
				if err != nil {
					t.Fatal(err)
				}
				lower, err := m.SimulationTimeForCoordinate(ctx, c, false)
				if err != nil {
					t.Fatal(err)
				}
				upper, err := m.SimulationTimeForCoordinate(ctx, c, true)
				if err != nil {
					t.Fatal(err)
				}
				if e.SimulationTime().Less(lower) || upper.Less(e.SimulationTime()) {
					t.Errorf("%s origin %d event %d: [%s, %s] does not contain %s",
						mode, origin, i, lower, upper, e.SimulationTime())
				}
			}
		}
	}
}

func TestSimulationTimeForCoordinate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mode  Mode
		c     float64
		upper bool
		want  string
	}{
		{"step interpolates", Step, 4.5, false, "2.25"},
		{"step run lower", Step, 2, false, "1"},
		{"step before first", Step, -3, false, "0"},
		{"step after last", Step, 10, true, "10"},
		{"time run lower", SimulationTime, 0, false, "0"},
		{"time interior", SimulationTime, 2, false, "2"},
		{"time after last", SimulationTime, 20, false, "20"},
		{"event number interpolates", EventNumber, 5.5, false, "6.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, _ := openLog(t, burstLog)
			m := newMapper(t, l, tt.mode)
			got, err := m.SimulationTimeForCoordinate(context.Background(), tt.c, tt.upper)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(simtime.MustParse(tt.want)) {
				t.Errorf("SimulationTimeForCoordinate(%v) = %s, want %s", tt.c, got, tt.want)
			}
		})
	}
}

func TestCoordinateForSimulationTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mode  Mode
		t     string
		upper bool
		want  float64
	}{
		{"first of run", Step, "1", false, 2},
		{"last of run", Step, "1", true, 3},
		{"interpolated", Step, "2", false, 4 + 1.0/3},
		{"before first", Step, "-1", false, 0},
		{"after last", Step, "20", false, 6},
		{"linear", SimulationTime, "2.5", false, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, _ := openLog(t, burstLog)
			m := newMapper(t, l, tt.mode)
			got, err := m.CoordinateForSimulationTime(context.Background(), simtime.MustParse(tt.t), tt.upper)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CoordinateForSimulationTime(%s) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestEventsAroundCoordinate(t *testing.T) {
	t.Parallel()

	number := func(e *eventlog.Event) int64 {
		if e == nil {
			return -1
		}
		return e.EventNumber()
	}
	tests := []struct {
		mode              Mode
		c                 float64
		notAfter, notBefo int64
	}{
		{Step, 2.5, 2, 3},
		{Step, 3, 3, 3},
		{Step, -1, -1, 0},
		{Step, 100, 6, -1},
		{SimulationTime, 1, 3, 2},
		{SimulationTime, 2, 4, 5},
		{EventNumber, 4.2, 4, 5},
		{Nonlinear, 0, 0, 0},
	}
	for _, tt := range tests {
		l, _ := openLog(t, burstLog)
		m := newMapper(t, l, tt.mode)
		ctx := context.Background()
		e, err := m.LastEventNotAfterCoordinate(ctx, tt.c)
		if err != nil {
			t.Fatal(err)
		}
		if got := number(e); got != tt.notAfter {
			t.Errorf("%s LastEventNotAfterCoordinate(%v) = %d, want %d", tt.mode, tt.c, got, tt.notAfter)
		}
		e, err = m.FirstEventNotBeforeCoordinate(ctx, tt.c)
		if err != nil {
			t.Fatal(err)
		}
		if got := number(e); got != tt.notBefo {
			t.Errorf("%s FirstEventNotBeforeCoordinate(%v) = %d, want %d", tt.mode, tt.c, got, tt.notBefo)
		}
	}
}

func TestSetModeKeepsOrigin(t *testing.T) {
	t.Parallel()

	l, _ := openLog(t, burstLog)
	m := newMapper(t, l, SimulationTime)
	ctx := context.Background()
	origin := event(t, l, 2)
	if err := m.RelocateOrigin(origin); err != nil {
		t.Fatal(err)
	}
	m.SetMode(Step)
	if m.Origin() != origin {
		t.Fatalf("origin changed to %v", m.Origin())
	}
	c, err := m.Coordinate(ctx, event(t, l, 6))
	if err != nil {
		t.Fatal(err)
	}
	if c != 4 {
		t.Errorf("step coordinate = %v, want 4", c)
	}
}

func TestUndefinedOrigin(t *testing.T) {
	t.Parallel()

	l, _ := openLog(t, burstLog)
	m := newMapper(t, l, Step)
	m.UndefineOrigin()
	if _, err := m.Coordinate(context.Background(), event(t, l, 1)); !errors.Is(err, ErrNoOrigin) {
		t.Errorf("error = %v, want ErrNoOrigin", err)
	}
	if err := m.RelocateOrigin(nil); !errors.Is(err, eventlog.ErrEventNotInLog) {
		t.Errorf("RelocateOrigin(nil) error = %v, want ErrEventNotInLog", err)
	}
}

func TestEmptyLog(t *testing.T) {
	t.Parallel()

	l, _ := openLog(t, "")
	m := newMapper(t, l, Step)
	if m.Origin() != nil {
		t.Fatal("empty log has an origin")
	}
	if _, err := m.LastEventNotAfterCoordinate(context.Background(), 0); !errors.Is(err, ErrNoOrigin) {
		t.Errorf("error = %v, want ErrNoOrigin", err)
	}
}

func TestMapperFollowsLog(t *testing.T) {
	t.Parallel()

	l, path := openLog(t, burstLog)
	m := newMapper(t, l, Step)
	ctx := context.Background()
	if _, err := m.Coordinate(ctx, event(t, l, 6)); err != nil {
		t.Fatal(err)
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fh.WriteString("\nE # 7 t 12 m 1\n"); err != nil {
		t.Fatal(err)
	}
	if err := fh.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CheckForChanges(ctx); err != nil {
		t.Fatalf("CheckForChanges: %v", err)
	}
	if c, err := m.Coordinate(ctx, event(t, l, 7)); err != nil || c != 7 {
		t.Errorf("appended event coordinate = %v, %v; want 7", c, err)
	}

	old := event(t, l, 2)
	if err := m.RelocateOrigin(old); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("E # 0 t 5 m 1\n\nE # 2 t 6 m 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.CheckForChanges(ctx); err != nil {
		t.Fatalf("CheckForChanges: %v", err)
	}
	if _, err := m.Coordinate(ctx, old); !errors.Is(err, eventlog.ErrStaleEvent) {
		t.Errorf("stale event error = %v, want ErrStaleEvent", err)
	}
	c, err := m.Coordinate(ctx, event(t, l, 0))
	if err != nil {
		t.Fatal(err)
	}
	if c != -1 || m.Origin().EventNumber() != 2 {
		t.Errorf("after overwrite coordinate = %v origin = %d, want -1 and origin 2", c, m.Origin().EventNumber())
	}
}
