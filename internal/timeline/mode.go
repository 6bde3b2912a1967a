package timeline

import (
	"fmt"
	"strings"
)

// Mode selects how events are laid out along the timeline.
type Mode int

// Timeline modes.
const (
	// SimulationTime places events at their simulation time.
	SimulationTime Mode = iota
	// EventNumber places events at their event number.
	EventNumber
	// Step places consecutive events one unit apart.
	Step
	// Nonlinear places consecutive events at a distance that grows with,
	// but is bounded regardless of, their simulation time difference.
	Nonlinear
)

var modeNames = [...]string{"simulation_time", "event_number", "step", "nonlinear"}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts the names returned by String, case-insensitively, with
// '-' allowed in place of '_'.
func ParseMode(s string) (Mode, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range modeNames {
		if s == name {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
