package entry

import "github.com/papapumpkin/seqchart/internal/simtime"

// EventMarker is the typed view of an "E" record.
type EventMarker struct {
	Number           int64
	Time             simtime.Time
	ModuleID         int64
	CauseEventNumber int64
	MessageID        int64
}

// EventMarker returns the typed view of an event record.
func (e *Entry) EventMarker() (EventMarker, bool) {
	if e.Kind != KindEvent {
		return EventMarker{}, false
	}
	t, _ := e.Time("t")
	return EventMarker{
		Number:           e.Int("#", -1),
		Time:             t,
		ModuleID:         e.Int("m", -1),
		CauseEventNumber: e.Int("ce", -1),
		MessageID:        e.Int("msg", -1),
	}, true
}

// BeginSend is the typed view of a "BS" record.
type BeginSend struct {
	MessageID           int64
	TreeID              int64
	EncapsulationID     int64
	EncapsulationTreeID int64
	ClassName           string
	Name                string
	PreviousEventNumber int64
	MessageKind         int64
	Priority            int64
	Length              int64
}

// BeginSend returns the typed view of a begin-send record.
func (e *Entry) BeginSend() (BeginSend, bool) {
	if e.Kind != KindBeginSend {
		return BeginSend{}, false
	}
	id := e.Int("id", -1)
	class, _ := e.Get("c")
	name, _ := e.Get("n")
	return BeginSend{
		MessageID:           id,
		TreeID:              e.Int("tid", id),
		EncapsulationID:     e.Int("eid", id),
		EncapsulationTreeID: e.Int("etid", id),
		ClassName:           class,
		Name:                name,
		PreviousEventNumber: e.Int("pe", -1),
		MessageKind:         e.Int("k", 0),
		Priority:            e.Int("p", 0),
		Length:              e.Int("l", 0),
	}, true
}

// EndSend is the typed view of an "ES" record.
type EndSend struct {
	ArrivalTime      simtime.Time
	IsReceptionStart bool
}

// EndSend returns the typed view of an end-send record.
func (e *Entry) EndSend() (EndSend, bool) {
	if e.Kind != KindEndSend {
		return EndSend{}, false
	}
	t, _ := e.Time("t")
	return EndSend{ArrivalTime: t, IsReceptionStart: e.Bool("is", false)}, true
}

// ModuleCreated is the typed view of an "MC" record.
type ModuleCreated struct {
	ID          int64
	ClassName   string
	NEDTypeName string
	ParentID    int64
	FullName    string
	Compound    bool
}

// ModuleCreated returns the typed view of a module creation record.
func (e *Entry) ModuleCreated() (ModuleCreated, bool) {
	if e.Kind != KindModuleCreated {
		return ModuleCreated{}, false
	}
	class, _ := e.Get("c")
	typ, _ := e.Get("t")
	name, _ := e.Get("n")
	return ModuleCreated{
		ID:          e.Int("id", -1),
		ClassName:   class,
		NEDTypeName: typ,
		ParentID:    e.Int("pid", -1),
		FullName:    name,
		Compound:    e.Bool("cm", false),
	}, true
}

// SimulationBegin is the typed view of an "SB" record.
type SimulationBegin struct {
	Version int64
	RunID   string
}

// SimulationBegin returns the typed view of a simulation begin record.
func (e *Entry) SimulationBegin() (SimulationBegin, bool) {
	if e.Kind != KindSimulationBegin {
		return SimulationBegin{}, false
	}
	rid, _ := e.Get("rid")
	return SimulationBegin{Version: e.Int("v", 0), RunID: rid}, true
}

// IsMessageRoute reports whether the entry routes a message between a
// BeginSend and its EndSend. A send with no route is a self-message.
func (e *Entry) IsMessageRoute() bool {
	return e.Kind == KindSendHop || e.Kind == KindSendDirect
}
