package ui

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/papapumpkin/seqchart/internal/depgraph"
	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/filter"
	"github.com/papapumpkin/seqchart/internal/input"
	"github.com/papapumpkin/seqchart/internal/simtime"
	"github.com/papapumpkin/seqchart/internal/timeline"
)

const sampleLog = `MC id 1 c Network t net.Network n net cm 1
MC id 2 c Node t net.Node pid 1 n host

E # 0 t 0 m 2
BS id 7 c cPacket n ping
SH sm 2 sg 0
ES t 0.5

E # 1 t 0.5 m 2 ce 0 msg 7
`

func openSample(t *testing.T) *eventlog.EventLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ui.elog")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := eventlog.Open(context.Background(), path, eventlog.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newPrinter() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func assertContains(t *testing.T, output string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	l := openSample(t)
	ctx := context.Background()
	first, _ := l.FirstEvent(ctx)
	last, _ := l.LastEvent(ctx)
	p, out, _ := newPrinter()
	p.Info(Summary{
		Path:    "ui.elog",
		Size:    1234,
		Events:  l.Len(),
		First:   first,
		Last:    last,
		Modules: l.ModuleTree().Len(),
	})
	assertContains(t, out.String(), "ui.elog", "1.2 kB", "#0 → #1", "0s → 0.5s", "parse errors", "none")
	if strings.Contains(out.String(), "\033[") {
		t.Errorf("non-terminal output contains escape codes:\n%q", out.String())
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()

	l := openSample(t)
	p, out, _ := newPrinter()
	p.Events([]*eventlog.Event{l.EventAt(0), l.EventAt(1)}, l.ModuleTree())
	assertContains(t, out.String(), "#0", "t=0.5", "net.host", "← #0 (ping)", "2 events")
}

func TestExplanation(t *testing.T) {
	t.Parallel()

	l := openSample(t)
	p, out, _ := newPrinter()
	p.Explanation(l.EventAt(1), &filter.Result{
		Passed: false,
		Checks: []filter.CheckResult{{Name: "range", Passed: true}, {Name: "module", Passed: false}},
	})
	assertContains(t, out.String(), "#1", "✗ hidden", "✓ range", "✗ module")
}

func TestDependencies(t *testing.T) {
	t.Parallel()

	p, out, errOut := newPrinter()
	p.Dependencies(eventlog.DependencySet{
		Dependencies: []eventlog.MessageDependency{
			{Cause: 1, Consequence: 3, Kind: eventlog.Send, MessageID: 11, EndMessageID: 12, Length: 2},
			{Cause: 3, Consequence: 4, Kind: eventlog.Reuse, MessageID: 13, EndMessageID: 13, Length: 1},
		},
		Partial: true,
	})
	assertContains(t, out.String(), "#1 → #3", "msg 11 → 12", "(2 hops)", "reuse", "2 dependencies")
	assertContains(t, errOut.String(), "warning:", "incomplete")
}

func TestModules(t *testing.T) {
	t.Parallel()

	l := openSample(t)
	p, out, _ := newPrinter()
	p.Modules(l.ModuleTree())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "net ") || !strings.HasPrefix(lines[1], "  host ") {
		t.Errorf("tree not indented by depth:\n%s", out.String())
	}
	assertContains(t, lines[1], "net.Node", "id 2")
}

func TestTicksAndChange(t *testing.T) {
	t.Parallel()

	p, out, _ := newPrinter()
	p.Ticks(&timeline.TickSet{
		PrefixText: "12.3",
		Ticks: []timeline.Tick{
			{Time: simtime.MustParse("12.34"), X: 40, Label: "...4"},
		},
	})
	p.Change(input.ChangeAppended, 1500)
	assertContains(t, out.String(), "prefix", "12.3", "x=40", "...4", "appended", "1,500 events")
}

func TestError(t *testing.T) {
	t.Parallel()

	p, out, errOut := newPrinter()
	p.Error("no such file")
	if out.Len() != 0 {
		t.Errorf("error written to report output: %q", out.String())
	}
	assertContains(t, errOut.String(), "error:", "no such file")
}

func TestChains(t *testing.T) {
	t.Parallel()

	p, out, _ := newPrinter()
	p.Chains(depgraph.Chains([]eventlog.MessageDependency{
		{Cause: 0, Consequence: 1, MessageID: 1, EndMessageID: 1, Length: 1},
		{Cause: 1, Consequence: 2, MessageID: 2, EndMessageID: 2, Length: 1},
		{Cause: 5, Consequence: 6, MessageID: 3, EndMessageID: 3, Length: 1},
	}))
	assertContains(t, out.String(), "chain 0", "#0 → #2", "(3 events, 2 dependencies)", "chain 1", "#5 → #6", "(2 events, 1 dependency)")
}
