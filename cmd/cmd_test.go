package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/config"
	"github.com/papapumpkin/seqchart/internal/filter"
)

const pingLog = `MC id 1 c Network t net.Network n net cm 1
MC id 2 c Node t net.Node pid 1 n host
MC id 3 c Node t net.Node pid 1 n server

E # 0 t 0 m 2
BS id 1 c cPacket n ping
SH sm 2 sg 0
ES t 0.5

E # 1 t 0.5 m 3 ce 0 msg 1
BS id 2 c cPacket n pong
SH sm 3 sg 0
ES t 1

E # 2 t 1 m 2 ce 1 msg 2
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ping.elog")
	if err := os.WriteFile(path, []byte(pingLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args. Not safe for parallel tests:
// commands and viper are global.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func assertContains(t *testing.T, output string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(output, s) {
			t.Errorf("expected output to contain %q, got:\n%s", s, output)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	t.Parallel()

	want := []string{"info", "events", "deps", "trace", "ticks", "modules", "watch", "filter"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %q subcommand to be registered on rootCmd", name)
		}
	}
}

func TestFilterFlagsParameters(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Limits: config.LimitsConfig{
		MaxCauseDepth:           3,
		MaxConsequenceDepth:     4,
		MaxNumberOfCauses:       5,
		MaxNumberOfConsequences: 6,
		CollectMessageReuses:    false,
	}}

	tests := []struct {
		name       string
		flags      map[string]string
		wantActive bool
		check      func(t *testing.T, p filter.Parameters)
	}{
		{
			name:       "no flags",
			wantActive: false,
			check: func(t *testing.T, p filter.Parameters) {
				if p.MaxCauseDepth != 3 || p.MaxNumberOfConsequences != 6 || p.CollectMessageReuses {
					t.Errorf("configured limits not applied: %+v", p)
				}
			},
		},
		{
			name:       "range and exclusions",
			flags:      map[string]string{"from": "2", "to": "9", "exclude": "4,5"},
			wantActive: true,
			check: func(t *testing.T, p filter.Parameters) {
				if p.FirstEventNumber != 2 || p.LastEventNumber != 9 {
					t.Errorf("range = [%d, %d], want [2, 9]", p.FirstEventNumber, p.LastEventNumber)
				}
				if diff := cmp.Diff([]int64{4, 5}, p.ExcludedEventNumbers); diff != "" {
					t.Errorf("excluded mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:       "module criteria enable the module filter",
			flags:      map[string]string{"module-name": "net.host*", "module-id": "2"},
			wantActive: true,
			check: func(t *testing.T, p filter.Parameters) {
				if !p.EnableModuleFilter || p.EnableMessageFilter {
					t.Errorf("module = %v, message = %v; want only the module filter", p.EnableModuleFilter, p.EnableMessageFilter)
				}
				if diff := cmp.Diff([]string{"net.host*"}, p.ModuleNames); diff != "" {
					t.Errorf("module names mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:       "trace without causes",
			flags:      map[string]string{"trace": "7", "trace-causes": "false"},
			wantActive: true,
			check: func(t *testing.T, p filter.Parameters) {
				if p.TracedEventNumber != 7 || p.TraceCauses || !p.TraceConsequences {
					t.Errorf("trace = %d causes=%v consequences=%v", p.TracedEventNumber, p.TraceCauses, p.TraceConsequences)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ff filterFlags
			c := &cobra.Command{Use: "test"}
			ff.register(c)
			for k, v := range tt.flags {
				if err := c.Flags().Set(k, v); err != nil {
					t.Fatalf("Set(%s): %v", k, err)
				}
			}
			p, active, err := ff.parameters(c, cfg)
			if err != nil {
				t.Fatalf("parameters: %v", err)
			}
			if active != tt.wantActive {
				t.Errorf("active = %v, want %v", active, tt.wantActive)
			}
			tt.check(t, p)
		})
	}
}

func TestFilterFileKeepsConfiguredLimits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "modules.toml")
	if err := os.WriteFile(path, []byte("enable_module_filter = true\nmodule_ids = [2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{Limits: config.LimitsConfig{
		MaxCauseDepth:           3,
		MaxConsequenceDepth:     4,
		MaxNumberOfCauses:       5,
		MaxNumberOfConsequences: 6,
	}}

	var ff filterFlags
	c := &cobra.Command{Use: "test"}
	ff.register(c)
	for k, v := range map[string]string{"filter": path, "to": "9"} {
		if err := c.Flags().Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	p, active, err := ff.parameters(c, cfg)
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if !active {
		t.Error("a --filter file should activate filtering")
	}
	if p.MaxCauseDepth != 3 || p.MaxConsequenceDepth != 4 || p.MaxNumberOfCauses != 5 || p.MaxNumberOfConsequences != 6 {
		t.Errorf("configured limits lost: depth %d/%d, count %d/%d",
			p.MaxCauseDepth, p.MaxConsequenceDepth, p.MaxNumberOfCauses, p.MaxNumberOfConsequences)
	}
	if !p.EnableModuleFilter || len(p.ModuleIDs) != 1 || p.ModuleIDs[0] != 2 {
		t.Errorf("file criteria not applied: enabled=%v ids=%v", p.EnableModuleFilter, p.ModuleIDs)
	}
	if p.LastEventNumber != 9 {
		t.Errorf("LastEventNumber = %d, want the flag's 9", p.LastEventNumber)
	}
}

func TestFilterFlagsRejectBadExpression(t *testing.T) {
	t.Parallel()

	var ff filterFlags
	c := &cobra.Command{Use: "test"}
	ff.register(c)
	if err := c.Flags().Set("message-expr", "name =~"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ff.parameters(c, config.Config{}); err == nil {
		t.Error("expected an invalid expression to be rejected")
	}
}

func TestInfoCommand(t *testing.T) {
	path := writeLog(t)
	out, _, err := execute(t, "info", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	assertContains(t, out, "ping.elog", "#0 → #2", "0s → 1s", "parse errors")
}

func TestEventsCommandFilters(t *testing.T) {
	path := writeLog(t)
	out, _, err := execute(t, "events", path, "--module-id", "2", "--limit", "0")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	assertContains(t, out, "net.host", "2 events")
	if strings.Contains(out, "net.server") {
		t.Errorf("filtered output shows the server's event:\n%s", out)
	}
}

func TestTraceCommand(t *testing.T) {
	path := writeLog(t)
	out, _, err := execute(t, "trace", path, "--event", "0", "--causes=false")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	assertContains(t, out, "consequences of #0", "#0 → #1", "#1 → #2", "chain 0")
}

func TestTraceUnknownEvent(t *testing.T) {
	path := writeLog(t)
	if _, _, err := execute(t, "trace", path, "--event", "42"); err == nil {
		t.Error("expected an error for an event that is not in the log")
	}
}

func TestFilterSaveAndCheck(t *testing.T) {
	out := filepath.Join(t.TempDir(), "params.toml")
	if _, _, err := execute(t, "filter", "save", out, "--message-name", "ping"); err != nil {
		t.Fatalf("filter save: %v", err)
	}
	got, err := filter.LoadParameters(out)
	if err != nil {
		t.Fatalf("LoadParameters: %v", err)
	}
	want := filter.DefaultParameters()
	want.EnableMessageFilter = true
	want.MessageNames = []string{"ping"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("saved parameters mismatch (-want +got):\n%s", diff)
	}

	stdout, _, err := execute(t, "filter", "check", out)
	if err != nil {
		t.Fatalf("filter check: %v", err)
	}
	assertContains(t, stdout, "is valid")
}
