package filter

import (
	"github.com/papapumpkin/seqchart/internal/eventlog"
)

// Check is a single named criterion in the filter chain.
type Check struct {
	Name string
	Fn   func(e *eventlog.Event) bool
}

// Chain runs checks sequentially, stopping on the first rejection.
type Chain struct {
	Checks []Check
}

// Matches reports whether every check accepts e.
func (c *Chain) Matches(e *eventlog.Event) bool {
	for _, check := range c.Checks {
		if !check.Fn(e) {
			return false
		}
	}
	return true
}

// Run executes each check in sequence and records the outcomes. It stops on
// the first rejection and returns a Result with Passed=false.
func (c *Chain) Run(e *eventlog.Event) *Result {
	result := &Result{Passed: true}
	for _, check := range c.Checks {
		passed := check.Fn(e)
		result.Checks = append(result.Checks, CheckResult{Name: check.Name, Passed: passed})
		if !passed {
			result.Passed = false
			return result
		}
	}
	return result
}

// Result contains the outcome of running a chain against one event.
type Result struct {
	Passed bool          // true if all checks passed
	Checks []CheckResult // checks run, up to the first rejection
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Name   string // "range", "excluded", "module", "message", "trace"
	Passed bool
}

// FirstFailure returns the first failing check, or nil if all passed.
func (r *Result) FirstFailure() *CheckResult {
	for i := range r.Checks {
		if !r.Checks[i].Passed {
			return &r.Checks[i]
		}
	}
	return nil
}
