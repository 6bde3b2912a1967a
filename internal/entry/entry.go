// Package entry models the typed records of an event log file and parses
// single log lines into them.
//
// A record line is a tag followed by key/value attribute pairs:
//
//	E # 12 t 0.0312 m 4 ce 9 msg 31
//	BS id 31 tid 31 eid 31 etid 31 c cPacket n "ping 3" pe 9
//
// Lines starting with '-' carry free text written by the simulation.
package entry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papapumpkin/seqchart/internal/simtime"
)

var errNotBool = errors.New("not a boolean")

// NoEvent is the owning event number of entries in the prologue.
const NoEvent int64 = -1

// Attribute is one key/value pair of a record, in file order.
type Attribute struct {
	Name  string
	Value string
}

// Entry is one parsed log line. Entries are immutable once parsed.
type Entry struct {
	Kind  Kind
	Attrs []Attribute
	// Text is the message of a LogMessage entry.
	Text   string
	Line   int
	Offset int64
	// EventNumber is the owning event, or NoEvent in the prologue.
	EventNumber int64
}

// Get returns the raw value of the named attribute.
func (e *Entry) Get(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Int returns the named integer attribute, or def when absent or not an
// integer.
func (e *Entry) Int(name string, def int64) int64 {
	v, ok := e.Get(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the named boolean attribute, or def when absent.
func (e *Entry) Bool(name string, def bool) bool {
	v, ok := e.Get(name)
	if !ok {
		return def
	}
	b, err := parseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Time returns the named simulation time attribute.
func (e *Entry) Time(name string) (simtime.Time, bool) {
	v, ok := e.Get(name)
	if !ok {
		return simtime.Time{}, false
	}
	t, err := simtime.Parse(v)
	if err != nil {
		return simtime.Time{}, false
	}
	return t, true
}

// DefaultAttribute returns the descriptive kind name so that bare filter
// patterns select entries by kind.
func (e *Entry) DefaultAttribute() string {
	return e.Kind.String()
}

// Attribute exposes record attributes to filter expressions. The pseudo
// attributes "kind" and "text" are also available.
func (e *Entry) Attribute(name string) (string, bool) {
	switch name {
	case "kind":
		return e.Kind.String(), true
	case "text":
		if e.Kind == KindLogMessage {
			return e.Text, true
		}
	}
	return e.Get(name)
}

// String renders the entry in log file syntax.
func (e *Entry) String() string {
	if e.Kind == KindLogMessage {
		return "- " + e.Text
	}
	var sb strings.Builder
	sb.WriteString(e.Kind.Tag())
	for _, a := range e.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteByte(' ')
		sb.WriteString(quote(a.Value))
	}
	return sb.String()
}

// IsBlank reports whether line carries no record. Blank lines separate
// events and are skipped by readers.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// ParseLine parses one log line. lineNumber is 1-based and offset is the
// byte offset of the line start; both are recorded on the entry and on any
// *ParseError. The owning event number is left as NoEvent.
func ParseLine(line string, lineNumber int, offset int64) (*Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	fail := func(err error) (*Entry, error) {
		return nil, &ParseError{Line: lineNumber, Offset: offset, Text: line, Err: err}
	}
	if IsBlank(line) {
		return fail(fmt.Errorf("%w: blank line", ErrMalformed))
	}
	e := &Entry{Line: lineNumber, Offset: offset, EventNumber: NoEvent}
	if line[0] == '-' {
		e.Kind = KindLogMessage
		e.Text = strings.TrimPrefix(line[1:], " ")
		return e, nil
	}
	toks, err := tokenize(line)
	if err != nil {
		return fail(err)
	}
	e.Kind = KindForTag(toks[0])
	if e.Kind == KindUnknown {
		return fail(fmt.Errorf("%w %q", ErrUnknownTag, toks[0]))
	}
	rest := toks[1:]
	if len(rest)%2 != 0 {
		return fail(fmt.Errorf("%w: attribute %q has no value", ErrMalformed, rest[len(rest)-1]))
	}
	e.Attrs = make([]Attribute, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		e.Attrs = append(e.Attrs, Attribute{Name: rest[i], Value: rest[i+1]})
	}
	if err := validate(e); err != nil {
		return fail(err)
	}
	return e, nil
}

func validate(e *Entry) error {
	for _, spec := range kinds[e.Kind].attrs {
		v, ok := e.Get(spec.name)
		if !ok {
			if spec.required {
				return fmt.Errorf("%w %q on %s", ErrMissingAttribute, spec.name, e.Kind.Tag())
			}
			continue
		}
		var err error
		switch spec.typ {
		case attrInt:
			_, err = strconv.ParseInt(v, 10, 64)
		case attrBool:
			_, err = parseBool(v)
		case attrTime:
			_, err = simtime.Parse(v)
		}
		if err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, spec.name, v, err)
		}
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch v {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, errNotBool
}

func tokenize(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if c != '"' {
			start := i
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				i++
			}
			toks = append(toks, s[start:i])
			continue
		}
		var sb strings.Builder
		i++
		closed := false
		for i < len(s) {
			if s[i] == '\\' && i+1 < len(s) {
				sb.WriteByte(s[i+1])
				i += 2
				continue
			}
			if s[i] == '"' {
				closed = true
				i++
				break
			}
			sb.WriteByte(s[i])
			i++
		}
		if !closed {
			return nil, fmt.Errorf("%w: unterminated quoted value", ErrMalformed)
		}
		toks = append(toks, sb.String())
	}
	return toks, nil
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\"\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
