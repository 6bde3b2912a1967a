package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/matchexpr"
)

// Default collection limits.
const (
	DefaultMaxDepth = 15
	DefaultMaxCount = 100
)

// Duration is a time.Duration stored in TOML as a string such as "2s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Parameters fully determine which events a FilteredEventLog shows. Event
// number fields use -1 for "unset". The enabled criteria of one group are
// alternatives: an event passes the module filter when any module criterion
// selects its module.
type Parameters struct {
	FirstEventNumber     int64   `toml:"first_event_number"`
	LastEventNumber      int64   `toml:"last_event_number"`
	ExcludedEventNumbers []int64 `toml:"excluded_event_numbers,omitempty"`

	EnableModuleFilter bool     `toml:"enable_module_filter"`
	ModuleExpression   string   `toml:"module_expression,omitempty"`
	ModuleIDs          []int64  `toml:"module_ids,omitempty"`
	ModuleNames        []string `toml:"module_names,omitempty"`
	ModuleNEDTypeNames []string `toml:"module_ned_type_names,omitempty"`

	EnableMessageFilter         bool     `toml:"enable_message_filter"`
	MessageExpression           string   `toml:"message_expression,omitempty"`
	MessageClassNames           []string `toml:"message_class_names,omitempty"`
	MessageNames                []string `toml:"message_names,omitempty"`
	MessageIDs                  []int64  `toml:"message_ids,omitempty"`
	MessageTreeIDs              []int64  `toml:"message_tree_ids,omitempty"`
	MessageEncapsulationIDs     []int64  `toml:"message_encapsulation_ids,omitempty"`
	MessageEncapsulationTreeIDs []int64  `toml:"message_encapsulation_tree_ids,omitempty"`

	TracedEventNumber  int64 `toml:"traced_event_number"`
	TraceCauses        bool  `toml:"trace_causes"`
	TraceConsequences  bool  `toml:"trace_consequences"`
	TraceMessageReuses bool  `toml:"trace_message_reuses"`
	TraceSelfMessages  bool  `toml:"trace_self_messages"`

	CollectMessageReuses         bool     `toml:"collect_message_reuses"`
	MaxCauseDepth                int      `toml:"max_cause_depth"`
	MaxConsequenceDepth          int      `toml:"max_consequence_depth"`
	MaxNumberOfCauses            int      `toml:"max_number_of_causes"`
	MaxNumberOfConsequences      int      `toml:"max_number_of_consequences"`
	MaxCauseCollectionTime       Duration `toml:"max_cause_collection_time"`
	MaxConsequenceCollectionTime Duration `toml:"max_consequence_collection_time"`
}

// DefaultParameters returns parameters that show every event.
func DefaultParameters() Parameters {
	return Parameters{
		FirstEventNumber:        -1,
		LastEventNumber:         -1,
		TracedEventNumber:       -1,
		TraceCauses:             true,
		TraceConsequences:       true,
		TraceMessageReuses:      true,
		TraceSelfMessages:       true,
		CollectMessageReuses:    true,
		MaxCauseDepth:           DefaultMaxDepth,
		MaxConsequenceDepth:     DefaultMaxDepth,
		MaxNumberOfCauses:       DefaultMaxCount,
		MaxNumberOfConsequences: DefaultMaxCount,
	}
}

// Validate reports the first inconsistent field. Expression syntax errors
// are reported as *matchexpr.SyntaxError wrapped in ErrInvalidParameters.
func (p *Parameters) Validate() error {
	_, err := compile(p)
	return err
}

// Tracing reports whether the trace filter is active.
func (p *Parameters) Tracing() bool {
	return p.TracedEventNumber >= 0
}

// LoadParameters reads parameters from a TOML file. Fields missing from the
// file keep their DefaultParameters values.
func LoadParameters(path string) (Parameters, error) {
	p := DefaultParameters()
	err := LoadParametersInto(path, &p)
	return p, err
}

// LoadParametersInto reads a TOML file over p: keys present in the file
// replace the corresponding fields, the rest keep their current values. The
// merged parameters are validated.
func LoadParametersInto(path string, p *Parameters) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading filter parameters: %w", err)
	}
	if err := toml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parsing filter parameters %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("filter parameters %s: %w", path, err)
	}
	return nil
}

// SaveParameters writes p to path as TOML, creating parent directories as
// needed.
func SaveParameters(path string, p Parameters) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling filter parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing filter parameters: %w", err)
	}
	return nil
}

// criteria is the compiled form of Parameters.
type criteria struct {
	excluded map[int64]bool

	moduleExpr  *matchexpr.Expression
	moduleIDs   map[int64]bool
	moduleNames []*matchexpr.Pattern
	moduleTypes []*matchexpr.Pattern

	messageExpr       *matchexpr.Expression
	messageClasses    []*matchexpr.Pattern
	messageNames      []*matchexpr.Pattern
	messageIDs        map[int64]bool
	messageTreeIDs    map[int64]bool
	messageEncIDs     map[int64]bool
	messageEncTreeIDs map[int64]bool
}

func compile(p *Parameters) (*criteria, error) {
	if p.FirstEventNumber >= 0 && p.LastEventNumber >= 0 && p.FirstEventNumber > p.LastEventNumber {
		return nil, fmt.Errorf("%w: first event number %d is after last event number %d",
			ErrInvalidParameters, p.FirstEventNumber, p.LastEventNumber)
	}
	limits := []struct {
		name  string
		value int
	}{
		{"max_cause_depth", p.MaxCauseDepth},
		{"max_consequence_depth", p.MaxConsequenceDepth},
		{"max_number_of_causes", p.MaxNumberOfCauses},
		{"max_number_of_consequences", p.MaxNumberOfConsequences},
	}
	for _, l := range limits {
		if l.value < 0 {
			return nil, fmt.Errorf("%w: %s is negative", ErrInvalidParameters, l.name)
		}
	}
	if p.MaxCauseCollectionTime < 0 || p.MaxConsequenceCollectionTime < 0 {
		return nil, fmt.Errorf("%w: negative collection time", ErrInvalidParameters)
	}

	c := &criteria{
		excluded:          idSet(p.ExcludedEventNumbers),
		moduleIDs:         idSet(p.ModuleIDs),
		messageIDs:        idSet(p.MessageIDs),
		messageTreeIDs:    idSet(p.MessageTreeIDs),
		messageEncIDs:     idSet(p.MessageEncapsulationIDs),
		messageEncTreeIDs: idSet(p.MessageEncapsulationTreeIDs),
	}
	var err error
	if c.moduleExpr, err = parseExpression("module expression", p.ModuleExpression); err != nil {
		return nil, err
	}
	if c.messageExpr, err = parseExpression("message expression", p.MessageExpression); err != nil {
		return nil, err
	}
	if c.moduleNames, err = compilePatterns("module name", p.ModuleNames); err != nil {
		return nil, err
	}
	if c.moduleTypes, err = compilePatterns("module NED type", p.ModuleNEDTypeNames); err != nil {
		return nil, err
	}
	if c.messageClasses, err = compilePatterns("message class", p.MessageClassNames); err != nil {
		return nil, err
	}
	if c.messageNames, err = compilePatterns("message name", p.MessageNames); err != nil {
		return nil, err
	}
	return c, nil
}

func parseExpression(what, src string) (*matchexpr.Expression, error) {
	if src == "" {
		return nil, nil
	}
	e, err := matchexpr.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParameters, what, err)
	}
	return e, nil
}

func compilePatterns(what string, srcs []string) ([]*matchexpr.Pattern, error) {
	out := make([]*matchexpr.Pattern, 0, len(srcs))
	for _, src := range srcs {
		pat, err := matchexpr.CompilePattern(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %w", ErrInvalidParameters, what, src, err)
		}
		out = append(out, pat)
	}
	return out, nil
}

func idSet(ids []int64) map[int64]bool {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[int64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func anyMatch(patterns []*matchexpr.Pattern, s string) bool {
	for _, p := range patterns {
		if p.Match(s) {
			return true
		}
	}
	return false
}

// hasModuleCriteria reports whether any module criterion is set. An enabled
// module filter without criteria selects every module.
func (c *criteria) hasModuleCriteria() bool {
	return c.moduleExpr != nil || len(c.moduleIDs) > 0 || len(c.moduleNames) > 0 || len(c.moduleTypes) > 0
}

func (c *criteria) moduleMatches(m *eventlog.Module) bool {
	if !c.hasModuleCriteria() {
		return true
	}
	return (c.moduleExpr != nil && c.moduleExpr.Matches(m)) ||
		c.moduleIDs[m.ID] ||
		anyMatch(c.moduleNames, m.FullPath) ||
		anyMatch(c.moduleTypes, m.NEDTypeName)
}

func (c *criteria) hasMessageCriteria() bool {
	return c.messageExpr != nil || len(c.messageClasses) > 0 || len(c.messageNames) > 0 ||
		len(c.messageIDs) > 0 || len(c.messageTreeIDs) > 0 || len(c.messageEncIDs) > 0 || len(c.messageEncTreeIDs) > 0
}

func (c *criteria) messageMatches(m eventlog.Message) bool {
	if !c.hasMessageCriteria() {
		return true
	}
	return (c.messageExpr != nil && c.messageExpr.Matches(m)) ||
		anyMatch(c.messageClasses, m.ClassName) ||
		anyMatch(c.messageNames, m.Name) ||
		c.messageIDs[m.MessageID] ||
		c.messageTreeIDs[m.TreeID] ||
		c.messageEncIDs[m.EncapsulationID] ||
		c.messageEncTreeIDs[m.EncapsulationTreeID]
}
