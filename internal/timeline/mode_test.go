package timeline

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"simulation_time", SimulationTime, false},
		{"Event-Number", EventNumber, false},
		{" step ", Step, false},
		{"NONLINEAR", Nonlinear, false},
		{"linear", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMode) {
					t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
			}
			if back, _ := ParseMode(got.String()); back != got {
				t.Errorf("ParseMode(%s.String()) = %s", got, back)
			}
		})
	}
}

func TestModeStringOutOfRange(t *testing.T) {
	t.Parallel()

	if got := Mode(9).String(); got != "Mode(9)" {
		t.Errorf("Mode(9).String() = %q, want %q", got, "Mode(9)")
	}
}
