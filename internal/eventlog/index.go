package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/entry"
	"github.com/papapumpkin/seqchart/internal/reader"
)

const (
	cancelCheckInterval   = 1024
	progressInterval      = 4096
	maxRecordedParseError = 100
)

// index is the immutable-between-syncs lookup structure of a log.
type index struct {
	events       []*Event
	consequences map[int64][]MessageDependency

	modules     []entry.ModuleCreated
	moduleSlots map[int64]int
	simBegin    *entry.Entry

	parseErrors    []*entry.ParseError
	numParseErrors int

	// scanned is where the next incremental scan resumes.
	scanned reader.Position
}

func newIndex() *index {
	return &index{
		consequences: make(map[int64][]MessageDependency),
		moduleSlots:  make(map[int64]int),
		scanned:      reader.Start(),
	}
}

func (x *index) lastEvent() *Event {
	if len(x.events) == 0 {
		return nil
	}
	return x.events[len(x.events)-1]
}

func (x *index) search(number int64) *Event {
	i := sort.Search(len(x.events), func(i int) bool { return x.events[i].number >= number })
	if i < len(x.events) && x.events[i].number == number {
		return x.events[i]
	}
	return nil
}

func (x *index) register(e *Event) {
	for _, d := range e.Causes() {
		x.consequences[d.Cause] = append(x.consequences[d.Cause], d)
	}
}

func (x *index) unregister(e *Event) {
	for _, d := range e.Causes() {
		deps := x.consequences[d.Cause]
		kept := deps[:0:0]
		for _, c := range deps {
			if c.Consequence != e.number {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(x.consequences, d.Cause)
		} else {
			x.consequences[d.Cause] = kept
		}
	}
}

func (x *index) addModule(mc entry.ModuleCreated) {
	if slot, ok := x.moduleSlots[mc.ID]; ok {
		x.modules[slot] = mc
		return
	}
	x.moduleSlots[mc.ID] = len(x.modules)
	x.modules = append(x.modules, mc)
}

func (x *index) addParseError(pe *entry.ParseError) {
	x.numParseErrors++
	if len(x.parseErrors) < maxRecordedParseError {
		x.parseErrors = append(x.parseErrors, pe)
	}
}

// scan is the result of reading a region of the file. When it resumed at the
// last indexed event, replacesLast is set and events[0] is that event read
// again.
type scan struct {
	base         *index
	events       []*Event
	replacesLast bool
	modules      []entry.ModuleCreated
	simBegin     *entry.Entry
	parseErrors  []*entry.ParseError
	next         reader.Position

	cur          *Event
	pendingSend  int
	pendingRoute bool
}

func (s *scan) lookup(number int64) *Event {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].number >= number })
	if i < len(s.events) && s.events[i].number == number {
		return s.events[i]
	}
	if s.base != nil {
		if e := s.base.search(number); e != nil && !(s.replacesLast && e == s.base.lastEvent()) {
			return e
		}
	}
	return nil
}

func (s *scan) previous() *Event {
	if s.cur != nil {
		return s.cur
	}
	if s.base != nil && !s.replacesLast {
		return s.base.lastEvent()
	}
	if s.base != nil && s.replacesLast && len(s.base.events) > 1 {
		return s.base.events[len(s.base.events)-2]
	}
	return nil
}

func (s *scan) line(l reader.Line) error {
	if entry.IsBlank(l.Text) {
		return nil
	}
	en, err := entry.ParseLine(l.Text, l.Number, l.Offset)
	if err != nil {
		var pe *entry.ParseError
		if !errors.As(err, &pe) {
			return err
		}
		s.parseErrors = append(s.parseErrors, pe)
		if s.cur != nil {
			s.cur.parseErrors++
			s.cur.end = l.End
		}
		return nil
	}

	switch en.Kind {
	case entry.KindEvent:
		return s.beginEvent(en, l)
	case entry.KindModuleCreated:
		mc, _ := en.ModuleCreated()
		s.modules = append(s.modules, mc)
	case entry.KindSimulationBegin:
		if s.simBegin == nil {
			s.simBegin = en
		}
	}
	if s.cur == nil {
		return nil
	}
	s.cur.end = l.End

	switch en.Kind {
	case entry.KindBeginSend:
		bs, _ := en.BeginSend()
		s.cur.sent = append(s.cur.sent, Message{BeginSend: bs})
		s.pendingSend = len(s.cur.sent) - 1
		s.pendingRoute = false
		if bs.PreviousEventNumber >= 0 && bs.PreviousEventNumber != s.cur.number {
			s.cur.reuses = append(s.cur.reuses, MessageDependency{
				Cause:        bs.PreviousEventNumber,
				Consequence:  s.cur.number,
				Kind:         Reuse,
				MessageID:    bs.MessageID,
				EndMessageID: bs.MessageID,
				Length:       1,
			})
		}
	case entry.KindSendHop, entry.KindSendDirect:
		s.pendingRoute = true
	case entry.KindEndSend:
		if s.pendingSend >= 0 {
			es, _ := en.EndSend()
			m := &s.cur.sent[s.pendingSend]
			m.ArrivalTime = es.ArrivalTime
			m.SelfMessage = !s.pendingRoute
			s.pendingSend = -1
		}
	}
	return nil
}

func (s *scan) beginEvent(en *entry.Entry, l reader.Line) error {
	em, _ := en.EventMarker()
	if prev := s.previous(); prev != nil {
		if em.Number <= prev.number {
			return fmt.Errorf("%w: line %d: event number %d does not follow %d",
				ErrCorruptIndex, l.Number, em.Number, prev.number)
		}
		if em.Time.Less(prev.time) {
			return fmt.Errorf("%w: line %d: simulation time %s of event %d precedes %s",
				ErrCorruptIndex, l.Number, em.Time, em.Number, prev.time)
		}
	}
	e := &Event{
		number:           em.Number,
		time:             em.Time,
		moduleID:         em.ModuleID,
		causeEventNumber: em.CauseEventNumber,
		messageID:        em.MessageID,
		pos:              reader.Position{Offset: l.Offset, Line: l.Number},
		end:              l.End,
	}
	if cause := s.lookup(em.CauseEventNumber); cause != nil && em.MessageID >= 0 {
		for _, m := range cause.sent {
			if m.MessageID == em.MessageID {
				e.causeMessage = m
				e.hasCauseMessage = true
				break
			}
		}
	}
	s.events = append(s.events, e)
	s.cur = e
	s.pendingSend = -1
	return nil
}

// scanFrom reads the file from pos to its current size. base is the index
// the scan extends, or nil for a full rebuild.
func (l *EventLog) scanFrom(ctx context.Context, base *index, pos reader.Position, replacesLast bool) (*scan, error) {
	s := &scan{base: base, replacesLast: replacesLast, pendingSend: -1}
	size := l.rd.Size()
	lines := 0
	next, err := l.rd.ReadLines(ctx, pos, -1, func(line reader.Line) error {
		lines++
		if l.opts.Progress != nil && lines%progressInterval == 0 && size > 0 {
			l.opts.Progress(float64(line.End) / float64(size))
		}
		return s.line(line)
	})
	if err != nil {
		return nil, wrapCanceled(err)
	}
	s.next = next
	if l.opts.Progress != nil {
		l.opts.Progress(1)
	}
	return s, nil
}

// commit applies a scan to x. The caller owns x exclusively.
func (x *index) commit(s *scan, log *EventLog, epoch uint64) {
	events := s.events
	var reread int64
	if s.replacesLast && len(events) > 0 {
		last := x.lastEvent()
		reread = last.end
		x.unregister(last)
		last.adopt(events[0])
		x.register(last)
		events = events[1:]
	}
	for _, e := range events {
		e.log = log
		e.epoch = epoch
		e.index = len(x.events)
		x.events = append(x.events, e)
		x.register(e)
	}
	for _, mc := range s.modules {
		x.addModule(mc)
	}
	if x.simBegin == nil {
		x.simBegin = s.simBegin
	}
	for _, pe := range s.parseErrors {
		if pe.Offset < reread {
			continue
		}
		x.addParseError(pe)
	}
	x.scanned = s.next
}

func (l *EventLog) rebuild(ctx context.Context) (*index, error) {
	s, err := l.scanFrom(ctx, nil, reader.Start(), false)
	if err != nil {
		return nil, err
	}
	x := newIndex()
	x.commit(s, l, l.epoch+1)
	return x, nil
}

func (l *EventLog) extend(ctx context.Context) error {
	from := l.idx.scanned
	last := l.idx.lastEvent()
	if last != nil {
		from = last.pos
	}
	s, err := l.scanFrom(ctx, l.idx, from, last != nil)
	if err != nil {
		return err
	}
	if last != nil && (len(s.events) == 0 || s.events[0].number != last.number) {
		// The last event's line is gone: the file was rewritten.
		return &reader.FileChangedError{Change: reader.Overwritten}
	}
	before := len(l.idx.events)
	l.idx.commit(s, l, l.epoch)
	l.logger.Debug("event log extended",
		zap.String("path", l.rd.Path()),
		zap.Int("new_events", len(l.idx.events)-before),
		zap.Int("events", len(l.idx.events)))
	return nil
}
