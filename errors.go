package tester

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-tester/exitcodes"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include registration errors, an unreadable plan, or a report that
// could not be written.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports a completed run in which at least one test failed
// or errored (exit code 1)
type TestFailureError struct {
	Failed  int
	Errored int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d failed, %d errored", e.Failed, e.Errored)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(failed, errored int) *TestFailureError {
	return &TestFailureError{Failed: failed, Errored: errored}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode maps the outcome of a run to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.TestFailure
	}
}
