package reporter

import (
	"time"

	"github.com/ethereum-optimism/infra/op-tester/types"
)

// Snapshot is an immutable copy of the reporter state.
type Snapshot struct {
	Total    int
	Passed   int
	Failed   int
	Errored  int
	Disabled int
	Duration time.Duration // sum of test durations, not wall clock
	Suites   []SuiteSnapshot
}

// SuiteSnapshot holds the results of one suite in registration order.
type SuiteSnapshot struct {
	Name     string
	Results  []types.TestResult
	Passed   int
	Failed   int
	Errored  int
	Disabled int
	NotRun   int
	Duration time.Duration
}

func (s *SuiteSnapshot) add(res types.TestResult) {
	s.Results = append(s.Results, res)
	s.Duration += res.Duration
	switch res.Status {
	case types.TestStatusPass:
		s.Passed++
	case types.TestStatusFail:
		s.Failed++
	case types.TestStatusError:
		s.Errored++
	case types.TestStatusDisabled:
		s.Disabled++
	default:
		s.NotRun++
	}
}

// Total returns the number of tests in the suite.
func (s SuiteSnapshot) Total() int {
	return len(s.Results)
}

// IsFailed reports whether at least one test failed or errored.
func (s *Snapshot) IsFailed() bool {
	return s.Failed != 0 || s.Errored != 0
}

// Reported returns the number of tests with a terminal status.
func (s *Snapshot) Reported() int {
	return s.Passed + s.Failed + s.Errored + s.Disabled
}

// Incomplete lists the tests still in not_run, in registration order.
func (s *Snapshot) Incomplete() []types.FullID {
	var ids []types.FullID
	for _, suite := range s.Suites {
		if suite.NotRun == 0 {
			continue
		}
		for _, res := range suite.Results {
			if res.Status == types.TestStatusNotRun {
				ids = append(ids, res.ID)
			}
		}
	}
	return ids
}

// Problems lists the failed and errored results in registration order.
func (s *Snapshot) Problems() []types.TestResult {
	var out []types.TestResult
	for _, suite := range s.Suites {
		for _, res := range suite.Results {
			if res.Status == types.TestStatusFail || res.Status == types.TestStatusError {
				out = append(out, res)
			}
		}
	}
	return out
}
