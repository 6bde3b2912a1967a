// Package ui renders event log query results for the command line.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/papapumpkin/seqchart/internal/depgraph"
	"github.com/papapumpkin/seqchart/internal/entry"
	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/filter"
	"github.com/papapumpkin/seqchart/internal/input"
	"github.com/papapumpkin/seqchart/internal/timeline"
)

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // cyan: headings
	colorAccent  = lipgloss.Color("#FFD700") // gold: warnings, partial results
	colorSuccess = lipgloss.Color("#00E676") // green: passed checks
	colorDanger  = lipgloss.Color("#FF5252") // red: errors, rejections
	colorMuted   = lipgloss.Color("#8C8C8C") // gray: labels
)

// Status icons.
const (
	iconPassed   = "✓"
	iconRejected = "✗"
	iconWarning  = "⚠"
	iconArrow    = "→"
)

type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	number  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	danger  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Foreground(colorPrimary).Bold(true),
		label:   r.NewStyle().Foreground(colorMuted),
		number:  r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted),
		success: r.NewStyle().Foreground(colorSuccess),
		warning: r.NewStyle().Foreground(colorAccent).Bold(true),
		danger:  r.NewStyle().Foreground(colorDanger).Bold(true),
	}
}

// Printer writes reports to out and diagnostics to errOut. Colors are used
// only when the writer is a color-capable terminal.
type Printer struct {
	out, errOut io.Writer
	st, errSt   styles
}

// New returns a printer writing to out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
		st:     newStyles(lipgloss.NewRenderer(out)),
		errSt:  newStyles(lipgloss.NewRenderer(errOut)),
	}
}

// Summary describes an open log for Info.
type Summary struct {
	Path            string
	Size            int64
	Events          int
	First, Last     *eventlog.Event
	Modules         int
	ParseErrors     []*entry.ParseError
	ParseErrorCount int
}

// Info prints an overview of a log.
func (p *Printer) Info(s Summary) {
	fmt.Fprintf(p.out, "%s %s\n", p.st.heading.Render(s.Path), p.st.muted.Render("("+humanize.Bytes(uint64(max(s.Size, 0)))+")"))
	p.field("events", humanize.Comma(int64(s.Events)))
	if s.First != nil && s.Last != nil {
		p.field("range", fmt.Sprintf("#%d %s #%d", s.First.EventNumber(), iconArrow, s.Last.EventNumber()))
		p.field("time", fmt.Sprintf("%ss %s %ss", s.First.SimulationTime(), iconArrow, s.Last.SimulationTime()))
	}
	p.field("modules", humanize.Comma(int64(s.Modules)))
	if s.ParseErrorCount == 0 {
		p.field("parse errors", "none")
		return
	}
	p.field("parse errors", p.st.warning.Render(humanize.Comma(int64(s.ParseErrorCount))))
	for _, pe := range s.ParseErrors {
		fmt.Fprintf(p.out, "  %s %s\n", p.st.warning.Render(iconWarning), pe.Error())
	}
	if hidden := s.ParseErrorCount - len(s.ParseErrors); hidden > 0 {
		fmt.Fprintf(p.out, "  %s\n", p.st.muted.Render(fmt.Sprintf("... and %s more", humanize.Comma(int64(hidden)))))
	}
}

func (p *Printer) field(label, value string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.st.label.Render(fmt.Sprintf("%-13s", label)), value)
}

// EventLine formats one event: number, time, module and cause.
func (p *Printer) EventLine(e *eventlog.Event, modules *eventlog.ModuleTree) string {
	var sb strings.Builder
	sb.WriteString(p.st.number.Render(fmt.Sprintf("#%-6d", e.EventNumber())))
	fmt.Fprintf(&sb, " t=%-14s", e.SimulationTime())
	sb.WriteString(" " + moduleName(e.ModuleID(), modules))
	if cause := e.CauseEventNumber(); cause >= 0 {
		msg := ""
		if m, ok := e.CauseMessage(); ok && m.Name != "" {
			msg = " (" + m.Name + ")"
		}
		sb.WriteString(p.st.muted.Render(fmt.Sprintf("  ← #%d%s", cause, msg)))
	}
	return sb.String()
}

func moduleName(id int64, modules *eventlog.ModuleTree) string {
	if modules != nil {
		if m, ok := modules.Module(id); ok && m.FullPath != "" {
			return m.FullPath
		}
	}
	return fmt.Sprintf("module %d", id)
}

// Events prints one line per event.
func (p *Printer) Events(events []*eventlog.Event, modules *eventlog.ModuleTree) {
	for _, e := range events {
		fmt.Fprintln(p.out, p.EventLine(e, modules))
	}
	fmt.Fprintln(p.out, p.st.muted.Render(humanize.Comma(int64(len(events)))+" "+plural(len(events), "event", "events")))
}

// Explanation prints the filter checks an event went through.
func (p *Printer) Explanation(e *eventlog.Event, r *filter.Result) {
	verdict := p.st.success.Render(iconPassed + " shown")
	if !r.Passed {
		verdict = p.st.danger.Render(iconRejected + " hidden")
	}
	fmt.Fprintf(p.out, "%s %s\n", p.st.number.Render(fmt.Sprintf("#%d", e.EventNumber())), verdict)
	for _, c := range r.Checks {
		mark := p.st.success.Render(iconPassed)
		if !c.Passed {
			mark = p.st.danger.Render(iconRejected)
		}
		fmt.Fprintf(p.out, "  %s %s\n", mark, c.Name)
	}
}

// Dependencies prints a dependency set, one edge per line.
func (p *Printer) Dependencies(set eventlog.DependencySet) {
	for _, d := range set.Dependencies {
		msg := fmt.Sprintf("msg %d", d.MessageID)
		if d.EndMessageID != d.MessageID {
			msg = fmt.Sprintf("msg %d %s %d", d.MessageID, iconArrow, d.EndMessageID)
		}
		line := fmt.Sprintf("#%d %s #%d  %-6s %s", d.Cause, iconArrow, d.Consequence, d.Kind, msg)
		if d.Length > 1 {
			line += p.st.muted.Render(fmt.Sprintf("  (%d hops)", d.Length))
		}
		fmt.Fprintln(p.out, line)
	}
	fmt.Fprintln(p.out, p.st.muted.Render(humanize.Comma(int64(len(set.Dependencies)))+" "+plural(len(set.Dependencies), "dependency", "dependencies")))
	if set.Partial {
		p.Warn("a collection limit was reached; the result may be incomplete")
	}
}

// Chains prints one line per causally connected group of events.
func (p *Printer) Chains(chains []depgraph.Chain) {
	for _, c := range chains {
		n := len(c.EventNumbers)
		fmt.Fprintf(p.out, "%s %s %s\n",
			p.st.label.Render(fmt.Sprintf("chain %d", c.ID)),
			fmt.Sprintf("#%d %s #%d", c.EventNumbers[0], iconArrow, c.EventNumbers[n-1]),
			p.st.muted.Render(fmt.Sprintf("(%d %s, %d %s)", n, plural(n, "event", "events"),
				len(c.Dependencies), plural(len(c.Dependencies), "dependency", "dependencies"))))
	}
}

// Modules prints the module tree, children indented under their parent.
func (p *Printer) Modules(tree *eventlog.ModuleTree) {
	tree.Walk(func(m *eventlog.Module, depth int) bool {
		detail := fmt.Sprintf("id %d", m.ID)
		if m.NEDTypeName != "" {
			detail = m.NEDTypeName + ", " + detail
		}
		fmt.Fprintf(p.out, "%s%s %s\n", strings.Repeat("  ", depth), m.Name, p.st.muted.Render("("+detail+")"))
		return true
	})
}

// Ticks prints the tick set of a time axis.
func (p *Printer) Ticks(set *timeline.TickSet) {
	if set.PrefixText != "" {
		p.field("prefix", set.PrefixText)
	}
	for _, tick := range set.Ticks {
		fmt.Fprintf(p.out, "  %s %s\n", p.st.label.Render(fmt.Sprintf("x=%-7d", tick.X)), tick.Label)
	}
}

// Change prints a change notification.
func (p *Printer) Change(c input.Change, events int) {
	st := p.st.success
	if c == input.ChangeOverwritten {
		st = p.st.warning
	}
	fmt.Fprintf(p.out, "%s %s\n", st.Render(c.String()), p.st.muted.Render(humanize.Comma(int64(events))+" events"))
}

// Warn prints a warning to the diagnostics writer.
func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.errSt.warning.Render(iconWarning+" warning:"), msg)
}

// Error prints an error to the diagnostics writer.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.errSt.danger.Render("error:"), msg)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
