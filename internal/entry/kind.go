package entry

// Kind identifies the record type of a log entry.
type Kind int

// Entry kinds, one per record tag of the log format.
const (
	KindUnknown Kind = iota            // unrecognised tag
	KindEvent                          // E
	KindSimulationBegin                // SB
	KindSimulationEnd                  // SE
	KindBubble                         // BU
	KindModuleCreated                  // MC
	KindModuleDeleted                  // MD
	KindGateCreated                    // GC
	KindGateDeleted                    // GD
	KindConnectionCreated              // CC
	KindConnectionDeleted              // CD
	KindConnectionDisplayStringChanged // CS
	KindModuleDisplayStringChanged     // DS
	KindComponentMethodBegin           // MB
	KindComponentMethodEnd             // ME
	KindCancelEvent                    // CE
	KindBeginSend                      // BS
	KindEndSend                        // ES
	KindSendDirect                     // SD
	KindSendHop                        // SH
	KindDeleteMessage                  // DM
	KindLogMessage                     // -
)

type attrType int

const (
	attrString attrType = iota
	attrInt
	attrBool
	attrTime
)

type attrSpec struct {
	name     string
	typ      attrType
	required bool
}

type kindSpec struct {
	tag   string
	name  string
	attrs []attrSpec
}

var kinds = map[Kind]kindSpec{
	KindEvent: {tag: "E", name: "Event", attrs: []attrSpec{
		{"#", attrInt, true}, {"t", attrTime, true}, {"m", attrInt, true},
		{"ce", attrInt, false}, {"msg", attrInt, false},
	}},
	KindSimulationBegin: {tag: "SB", name: "SimulationBegin", attrs: []attrSpec{
		{"v", attrInt, false}, {"rid", attrString, false}, {"b", attrTime, false},
	}},
	KindSimulationEnd: {tag: "SE", name: "SimulationEnd", attrs: []attrSpec{
		{"e", attrBool, false}, {"c", attrInt, false}, {"m", attrString, false},
	}},
	KindBubble: {tag: "BU", name: "Bubble", attrs: []attrSpec{
		{"id", attrInt, true}, {"txt", attrString, false},
	}},
	KindModuleCreated: {tag: "MC", name: "ModuleCreated", attrs: []attrSpec{
		{"id", attrInt, true}, {"c", attrString, false}, {"t", attrString, false},
		{"pid", attrInt, false}, {"n", attrString, true}, {"cm", attrBool, false},
	}},
	KindModuleDeleted: {tag: "MD", name: "ModuleDeleted", attrs: []attrSpec{
		{"id", attrInt, true},
	}},
	KindGateCreated: {tag: "GC", name: "GateCreated", attrs: []attrSpec{
		{"m", attrInt, true}, {"g", attrInt, true}, {"n", attrString, false},
		{"i", attrInt, false}, {"o", attrBool, false},
	}},
	KindGateDeleted: {tag: "GD", name: "GateDeleted", attrs: []attrSpec{
		{"m", attrInt, true}, {"g", attrInt, true},
	}},
	KindConnectionCreated: {tag: "CC", name: "ConnectionCreated", attrs: []attrSpec{
		{"sm", attrInt, true}, {"sg", attrInt, true}, {"dm", attrInt, true}, {"dg", attrInt, true},
	}},
	KindConnectionDeleted: {tag: "CD", name: "ConnectionDeleted", attrs: []attrSpec{
		{"sm", attrInt, true}, {"sg", attrInt, true},
	}},
	KindConnectionDisplayStringChanged: {tag: "CS", name: "ConnectionDisplayStringChanged", attrs: []attrSpec{
		{"sm", attrInt, true}, {"sg", attrInt, true}, {"d", attrString, false},
	}},
	KindModuleDisplayStringChanged: {tag: "DS", name: "ModuleDisplayStringChanged", attrs: []attrSpec{
		{"id", attrInt, true}, {"d", attrString, false},
	}},
	KindComponentMethodBegin: {tag: "MB", name: "ComponentMethodBegin", attrs: []attrSpec{
		{"sm", attrInt, true}, {"tm", attrInt, true}, {"m", attrString, false},
	}},
	KindComponentMethodEnd: {tag: "ME", name: "ComponentMethodEnd"},
	KindCancelEvent: {tag: "CE", name: "CancelEvent", attrs: []attrSpec{
		{"id", attrInt, true}, {"pe", attrInt, false},
	}},
	KindBeginSend: {tag: "BS", name: "BeginSend", attrs: []attrSpec{
		{"id", attrInt, true}, {"tid", attrInt, false}, {"eid", attrInt, false},
		{"etid", attrInt, false}, {"c", attrString, false}, {"n", attrString, false},
		{"pe", attrInt, false}, {"k", attrInt, false}, {"p", attrInt, false}, {"l", attrInt, false},
	}},
	KindEndSend: {tag: "ES", name: "EndSend", attrs: []attrSpec{
		{"t", attrTime, true}, {"is", attrBool, false},
	}},
	KindSendDirect: {tag: "SD", name: "SendDirect", attrs: []attrSpec{
		{"sm", attrInt, true}, {"dm", attrInt, true}, {"dg", attrInt, false},
		{"pd", attrTime, false}, {"td", attrTime, false},
	}},
	KindSendHop: {tag: "SH", name: "SendHop", attrs: []attrSpec{
		{"sm", attrInt, true}, {"sg", attrInt, false},
		{"pd", attrTime, false}, {"td", attrTime, false},
	}},
	KindDeleteMessage: {tag: "DM", name: "DeleteMessage", attrs: []attrSpec{
		{"id", attrInt, true}, {"pe", attrInt, false},
	}},
	KindLogMessage: {tag: "-", name: "LogMessage"},
}

var tagKinds = map[string]Kind{
	"E": KindEvent, "SB": KindSimulationBegin, "SE": KindSimulationEnd, "BU": KindBubble,
	"MC": KindModuleCreated, "MD": KindModuleDeleted, "GC": KindGateCreated, "GD": KindGateDeleted,
	"CC": KindConnectionCreated, "CD": KindConnectionDeleted, "CS": KindConnectionDisplayStringChanged,
	"DS": KindModuleDisplayStringChanged, "MB": KindComponentMethodBegin, "ME": KindComponentMethodEnd,
	"CE": KindCancelEvent, "BS": KindBeginSend, "ES": KindEndSend, "SD": KindSendDirect,
	"SH": KindSendHop, "DM": KindDeleteMessage, "-": KindLogMessage,
}

// KindForTag returns the kind of a record tag, or KindUnknown.
func KindForTag(tag string) Kind {
	return tagKinds[tag]
}

// Tag returns the record tag written in the log file, e.g. "BS".
func (k Kind) Tag() string {
	return kinds[k].tag
}

// String returns the descriptive kind name, e.g. "BeginSend".
func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s.name
	}
	return "Unknown"
}

// AttributeNames returns the attribute names defined for the kind, in
// canonical order.
func (k Kind) AttributeNames() []string {
	specs := kinds[k].attrs
	names := make([]string, len(specs))
	for i, a := range specs {
		names[i] = a.name
	}
	return names
}
