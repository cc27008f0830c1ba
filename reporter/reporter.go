// Package reporter aggregates test outcomes.
//
// A Reporter owns the result store: one slot per registered test, written
// exactly once. It is safe for concurrent use by any number of workers.
package reporter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

var (
	// ErrAlreadyReported signals a second report for the same test. It means
	// the scheduler broke its exactly-once invariant.
	ErrAlreadyReported = errors.New("test already reported")
	// ErrUnknownTest signals a report for a test that is not in the catalog.
	ErrUnknownTest = errors.New("test not in catalog")
	// ErrIncomplete signals that a finished run left tests in not_run.
	ErrIncomplete = errors.New("run incomplete")
	// ErrInvalidStatus signals an attempt to report a non-terminal status.
	ErrInvalidStatus = errors.New("invalid status")
)

// ReportError describes a rejected report call.
type ReportError struct {
	ID     types.FullID
	Status types.TestStatus
	Err    error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s as %s: %v", e.ID, e.Status, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Sink observes every accepted result. It is called outside the reporter's
// lock, from whichever goroutine reported the result.
type Sink interface {
	OnResult(result types.TestResult)
}

// Reporter is the thread-safe outcome aggregator.
type Reporter struct {
	mu      sync.Mutex
	order   []types.FullID
	results map[types.FullID]*types.TestResult
	suites  []suiteIndex

	numPassed   int
	numFailed   int
	numErrored  int
	numDisabled int

	sinks []Sink
}

type suiteIndex struct {
	name string
	ids  []types.FullID
}

// New creates a reporter with a not_run slot for every test in the catalog.
func New(cat *catalog.Catalog, sinks ...Sink) *Reporter {
	r := &Reporter{
		order:   make([]types.FullID, 0, cat.Len()),
		results: make(map[types.FullID]*types.TestResult, cat.Len()),
		suites:  make([]suiteIndex, 0, len(cat.Suites())),
		sinks:   sinks,
	}
	for _, s := range cat.Suites() {
		si := suiteIndex{name: s.Name(), ids: make([]types.FullID, 0, s.Len())}
		for _, tc := range s.Tests() {
			id := tc.FullID()
			r.order = append(r.order, id)
			r.results[id] = &types.TestResult{ID: id, Status: types.TestStatusNotRun}
			si.ids = append(si.ids, id)
		}
		r.suites = append(r.suites, si)
	}
	return r
}

// ReportPass records a passed test.
func (r *Reporter) ReportPass(id types.FullID, elapsed time.Duration) error {
	return r.report(id, types.TestStatusPass, "", elapsed)
}

// ReportFailure records a test that failed an assertion.
func (r *Reporter) ReportFailure(id types.FullID, message string, elapsed time.Duration) error {
	return r.report(id, types.TestStatusFail, message, elapsed)
}

// ReportError records a test that failed in any other way.
func (r *Reporter) ReportError(id types.FullID, message string, elapsed time.Duration) error {
	return r.report(id, types.TestStatusError, message, elapsed)
}

// ReportDisabled records a test that was not executed because it is disabled.
func (r *Reporter) ReportDisabled(id types.FullID) error {
	return r.report(id, types.TestStatusDisabled, "", 0)
}

// Report records a terminal status for id. The slot must still be not_run;
// the message is kept only for fail and error.
func (r *Reporter) Report(id types.FullID, status types.TestStatus, message string, elapsed time.Duration) error {
	return r.report(id, status, message, elapsed)
}

func (r *Reporter) report(id types.FullID, status types.TestStatus, message string, elapsed time.Duration) error {
	if !status.IsTerminal() {
		return &ReportError{ID: id, Status: status, Err: ErrInvalidStatus}
	}
	if status != types.TestStatusFail && status != types.TestStatusError {
		message = ""
	}

	r.mu.Lock()
	slot, ok := r.results[id]
	if !ok {
		r.mu.Unlock()
		return &ReportError{ID: id, Status: status, Err: ErrUnknownTest}
	}
	if slot.Status != types.TestStatusNotRun {
		prev := slot.Status
		r.mu.Unlock()
		return &ReportError{ID: id, Status: status, Err: fmt.Errorf("%w (previous status %s)", ErrAlreadyReported, prev)}
	}

	slot.Status = status
	slot.Message = message
	slot.Duration = elapsed.Truncate(time.Millisecond)
	switch status {
	case types.TestStatusPass:
		r.numPassed++
	case types.TestStatusFail:
		r.numFailed++
	case types.TestStatusError:
		r.numErrored++
	case types.TestStatusDisabled:
		r.numDisabled++
	}
	result := *slot
	r.mu.Unlock()

	for _, s := range r.sinks {
		s.OnResult(result)
	}
	return nil
}

// NumTests returns the number of registered tests.
func (r *Reporter) NumTests() int {
	return len(r.order)
}

// NumPassed returns the number of passed tests.
func (r *Reporter) NumPassed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numPassed
}

// NumFailed returns the number of tests that failed an assertion.
func (r *Reporter) NumFailed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numFailed
}

// NumErrored returns the number of errored tests.
func (r *Reporter) NumErrored() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numErrored
}

// NumDisabled returns the number of disabled tests.
func (r *Reporter) NumDisabled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numDisabled
}

// IsFailed reports whether at least one test failed or errored.
func (r *Reporter) IsFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numFailed != 0 || r.numErrored != 0
}

// Result returns the current state of one test.
func (r *Reporter) Result(id types.FullID) (types.TestResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.results[id]
	if !ok {
		return types.TestResult{}, false
	}
	return *slot, true
}

// Verify checks that every registered test reached a terminal status.
func (r *Reporter) Verify() error {
	snap := r.Snapshot()
	if pending := snap.Incomplete(); len(pending) > 0 {
		return fmt.Errorf("%w: %d of %d tests not run (first: %s)", ErrIncomplete, len(pending), snap.Total, pending[0])
	}
	return nil
}

// Snapshot copies the store and counters under the lock. The snapshot is
// consistent as of the last completed report call.
func (r *Reporter) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &Snapshot{
		Total:    len(r.order),
		Passed:   r.numPassed,
		Failed:   r.numFailed,
		Errored:  r.numErrored,
		Disabled: r.numDisabled,
		Suites:   make([]SuiteSnapshot, 0, len(r.suites)),
	}
	for _, si := range r.suites {
		ss := SuiteSnapshot{Name: si.name, Results: make([]types.TestResult, 0, len(si.ids))}
		for _, id := range si.ids {
			res := *r.results[id]
			ss.add(res)
			snap.Duration += res.Duration
		}
		snap.Suites = append(snap.Suites, ss)
	}
	return snap
}
