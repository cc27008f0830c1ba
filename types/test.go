// Package types contains the value types shared by the catalog, scheduler,
// reporter and report writers.
package types

import (
	"fmt"
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusNotRun   TestStatus = "not_run"
	TestStatusPass     TestStatus = "pass"
	TestStatusFail     TestStatus = "fail"
	TestStatusError    TestStatus = "error"
	TestStatusDisabled TestStatus = "disabled"
)

// IsTerminal reports whether the status is a final outcome of a run.
func (s TestStatus) IsTerminal() bool {
	switch s {
	case TestStatusPass, TestStatusFail, TestStatusError, TestStatusDisabled:
		return true
	default:
		return false
	}
}

// FullID identifies a test across the whole catalog.
type FullID struct {
	Suite string
	Test  string
}

// NewFullID builds a FullID from a suite name and a test id.
func NewFullID(suite, test string) FullID {
	return FullID{Suite: suite, Test: test}
}

func (id FullID) String() string {
	return id.Suite + "/" + id.Test
}

// ParseFullID parses the "suite/test" form produced by FullID.String.
// Test ids may themselves contain '/', the suite name may not.
func ParseFullID(s string) (FullID, error) {
	suite, test, ok := strings.Cut(s, "/")
	if !ok || suite == "" || test == "" {
		return FullID{}, fmt.Errorf("invalid test id %q: expected suite/test", s)
	}
	return FullID{Suite: suite, Test: test}, nil
}

// TestResult captures the outcome of a single test run
type TestResult struct {
	ID       FullID
	Status   TestStatus
	Duration time.Duration // wall time, truncated to milliseconds
	Message  string        // empty unless Status is fail or error
}

// DurationMS returns the recorded duration in whole milliseconds.
func (r TestResult) DurationMS() uint64 {
	if r.Duration <= 0 {
		return 0
	}
	return uint64(r.Duration.Milliseconds())
}
