package filter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSaveLoadParameters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filters", "ping.toml")
	p := DefaultParameters()
	p.FirstEventNumber = 10
	p.EnableModuleFilter = true
	p.ModuleNames = []string{"net.host*"}
	p.MessageTreeIDs = []int64{3, 4}
	p.TracedEventNumber = 12
	p.MaxCauseCollectionTime = Duration(1500 * time.Millisecond)

	if err := SaveParameters(path, p); err != nil {
		t.Fatalf("SaveParameters: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `max_cause_collection_time = '1.5s'`) &&
		!strings.Contains(string(data), `max_cause_collection_time = "1.5s"`) {
		t.Errorf("durations should be stored as strings:\n%s", data)
	}

	got, err := LoadParameters(path)
	if err != nil {
		t.Fatalf("LoadParameters: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("loaded parameters (-want +got):\n%s", diff)
	}
}

func TestLoadParametersDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.toml")
	content := "enable_message_filter = true\nmessage_names = [\"ping\"]\nmax_number_of_causes = 5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadParameters(path)
	if err != nil {
		t.Fatalf("LoadParameters: %v", err)
	}
	want := DefaultParameters()
	want.EnableMessageFilter = true
	want.MessageNames = []string{"ping"}
	want.MaxNumberOfCauses = 5
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parameters (-want +got):\n%s", diff)
	}
}

func TestLoadParametersIntoKeepsUnsetFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "modules.toml")
	if err := os.WriteFile(path, []byte("enable_module_filter = true\nmodule_ids = [2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := DefaultParameters()
	p.MaxCauseDepth = 3
	p.MaxNumberOfCauses = 5
	p.CollectMessageReuses = false
	if err := LoadParametersInto(path, &p); err != nil {
		t.Fatalf("LoadParametersInto: %v", err)
	}

	want := DefaultParameters()
	want.MaxCauseDepth = 3
	want.MaxNumberOfCauses = 5
	want.CollectMessageReuses = false
	want.EnableModuleFilter = true
	want.ModuleIDs = []int64{2}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("parameters (-want +got):\n%s", diff)
	}
}

func TestLoadParametersErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"not toml", "first_event_number = = 3", false},
		{"bad duration", "max_cause_collection_time = \"soon\"", false},
		{"bad expression", "module_expression = \"NOT\"", true},
		{"reversed range", "first_event_number = 9\nlast_event_number = 1", true},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".toml")
		if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadParameters(path)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if got := errors.Is(err, ErrInvalidParameters); got != tt.invalid {
			t.Errorf("%s: errors.Is(ErrInvalidParameters) = %v, want %v (%v)", tt.name, got, tt.invalid, err)
		}
	}

	if _, err := LoadParameters(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: error = %v, want os.ErrNotExist", err)
	}
}
