package eventlog

import (
	"strconv"

	"github.com/papapumpkin/seqchart/internal/entry"
	"github.com/papapumpkin/seqchart/internal/reader"
	"github.com/papapumpkin/seqchart/internal/simtime"
)

// Message describes a message sent during an event, as recorded by its
// BeginSend entry and the matching EndSend.
type Message struct {
	entry.BeginSend
	ArrivalTime simtime.Time
	// SelfMessage is set when no SendHop or SendDirect routed the message.
	SelfMessage bool
}

// DefaultAttribute returns the message name, matched by bare filter
// patterns.
func (m Message) DefaultAttribute() string {
	return m.Name
}

// Attribute exposes message properties to filter expressions.
func (m Message) Attribute(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.FormatInt(m.MessageID, 10), true
	case "tid":
		return strconv.FormatInt(m.TreeID, 10), true
	case "eid":
		return strconv.FormatInt(m.EncapsulationID, 10), true
	case "etid":
		return strconv.FormatInt(m.EncapsulationTreeID, 10), true
	case "name":
		return m.Name, true
	case "class", "classname":
		return m.ClassName, true
	case "kind":
		return strconv.FormatInt(m.MessageKind, 10), true
	}
	return "", false
}

// Event is one simulation event. Events are created by the log's index and
// stay valid until the file is overwritten; see Valid.
type Event struct {
	log   *EventLog
	epoch uint64
	index int

	number           int64
	time             simtime.Time
	moduleID         int64
	causeEventNumber int64
	messageID        int64

	pos reader.Position
	end int64

	causeMessage    Message
	hasCauseMessage bool
	sent            []Message
	reuses          []MessageDependency
	parseErrors     int

	entries []*entry.Entry
}

// EventNumber returns the unique, strictly increasing event number.
func (e *Event) EventNumber() int64 { return e.number }

// SimulationTime returns the simulation time of the event.
func (e *Event) SimulationTime() simtime.Time { return e.time }

// ModuleID returns the id of the module that processed the event.
func (e *Event) ModuleID() int64 { return e.moduleID }

// CauseEventNumber returns the event that sent the message processed here,
// or -1.
func (e *Event) CauseEventNumber() int64 { return e.causeEventNumber }

// MessageID returns the id of the message processed here, or -1.
func (e *Event) MessageID() int64 { return e.messageID }

// Offset returns the byte offset of the event line.
func (e *Event) Offset() int64 { return e.pos.Offset }

// EndOffset returns the offset just past the event's last line.
func (e *Event) EndOffset() int64 { return e.end }

// Line returns the 1-based line number of the event line.
func (e *Event) Line() int { return e.pos.Line }

// Epoch returns the log epoch the event was created in.
func (e *Event) Epoch() uint64 { return e.epoch }

// Valid reports whether the event still belongs to the current content of
// its log.
func (e *Event) Valid() bool {
	return e.log != nil && e.epoch == e.log.epoch
}

// CauseMessage returns the message that caused the event when its sender is
// part of the log.
func (e *Event) CauseMessage() (Message, bool) {
	return e.causeMessage, e.hasCauseMessage
}

// SentMessages returns the messages sent while processing the event.
func (e *Event) SentMessages() []Message {
	return e.sent
}

// IsSelfMessageProcessing reports whether the event processes a message the
// module scheduled to itself.
func (e *Event) IsSelfMessageProcessing() bool {
	return e.hasCauseMessage && e.causeMessage.SelfMessage
}

// Cause returns the send dependency through which the event was caused.
func (e *Event) Cause() (MessageDependency, bool) {
	if e.causeEventNumber < 0 || e.messageID < 0 {
		return MessageDependency{}, false
	}
	return MessageDependency{
		Cause:        e.causeEventNumber,
		Consequence:  e.number,
		Kind:         Send,
		MessageID:    e.messageID,
		EndMessageID: e.messageID,
		Length:       1,
	}, true
}

// Causes returns the send dependency followed by any reuse dependencies.
func (e *Event) Causes() []MessageDependency {
	deps := make([]MessageDependency, 0, 1+len(e.reuses))
	if d, ok := e.Cause(); ok {
		deps = append(deps, d)
	}
	return append(deps, e.reuses...)
}

// Consequences returns the dependencies leading from this event to later
// events. It returns nil for a stale event.
func (e *Event) Consequences() []MessageDependency {
	if !e.Valid() {
		return nil
	}
	return e.log.idx.consequences[e.number]
}

// Entries returns the parsed log entries of the event, reading them from
// the file if they are not cached. Lines that fail to parse are skipped.
func (e *Event) Entries() ([]*entry.Entry, error) {
	if !e.Valid() {
		return nil, ErrStaleEvent
	}
	if e.entries != nil {
		return e.entries, nil
	}
	return e.log.materialize(e)
}

// adopt copies the indexed state of o into e, keeping e's identity.
func (e *Event) adopt(o *Event) {
	e.time = o.time
	e.moduleID = o.moduleID
	e.causeEventNumber = o.causeEventNumber
	e.messageID = o.messageID
	e.pos = o.pos
	e.end = o.end
	e.causeMessage = o.causeMessage
	e.hasCauseMessage = o.hasCauseMessage
	e.sent = o.sent
	e.reuses = o.reuses
	e.parseErrors = o.parseErrors
	e.entries = nil
}
