// Package check provides assertion helpers for test procedures.
//
// A failed check is an assertion-kind failure: the scheduler reports the test
// as failed (rather than errored) with the check's message. Checks abort the
// procedure by panicking with a *Failure, which the scheduler recovers at the
// invocation boundary. Procedures that prefer explicit returns can use Errorf
// and return the resulting error instead.
package check

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Failure is an assertion-kind failure.
type Failure struct {
	Message string
	File    string
	Line    int
}

func (f *Failure) Error() string {
	if f.File == "" {
		return f.Message
	}
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message)
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsFailure reports whether err is or wraps a *Failure.
func IsFailure(err error) bool {
	_, ok := AsFailure(err)
	return ok
}

// newFailure records the location of the caller skip frames above it.
func newFailure(skip int, msg string) *Failure {
	f := &Failure{Message: msg}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		f.File = filepath.Base(file)
		f.Line = line
	}
	return f
}

// Errorf returns an assertion-kind failure without aborting the procedure.
func Errorf(format string, args ...any) error {
	return newFailure(1, fmt.Sprintf(format, args...))
}

// Fail aborts the procedure with an assertion-kind failure.
func Fail(msgAndArgs ...any) {
	panic(newFailure(1, joinMessage("fail", msgAndArgs)))
}

// That aborts the procedure if cond is false.
func That(cond bool, msgAndArgs ...any) {
	if !cond {
		panic(newFailure(1, joinMessage("check", msgAndArgs)))
	}
}

// NoError aborts the procedure if err is not nil.
func NoError(err error, msgAndArgs ...any) {
	if err != nil {
		panic(newFailure(1, joinMessage(fmt.Sprintf("no_error(%v)", err), msgAndArgs)))
	}
}

// Equal aborts the procedure unless a == b.
func Equal[T comparable](a, b T, msgAndArgs ...any) {
	if a != b {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_eq(%v, %v)", a, b), msgAndArgs)))
	}
}

// NotEqual aborts the procedure unless a != b.
func NotEqual[T comparable](a, b T, msgAndArgs ...any) {
	if a == b {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_ne(%v, %v)", a, b), msgAndArgs)))
	}
}

// Less aborts the procedure unless a < b.
func Less[T cmp.Ordered](a, b T, msgAndArgs ...any) {
	if !(a < b) {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_lt(%v, %v)", a, b), msgAndArgs)))
	}
}

// Greater aborts the procedure unless a > b.
func Greater[T cmp.Ordered](a, b T, msgAndArgs ...any) {
	if !(a > b) {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_gt(%v, %v)", a, b), msgAndArgs)))
	}
}

// LessOrEqual aborts the procedure unless a <= b.
func LessOrEqual[T cmp.Ordered](a, b T, msgAndArgs ...any) {
	if !(a <= b) {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_le(%v, %v)", a, b), msgAndArgs)))
	}
}

// GreaterOrEqual aborts the procedure unless a >= b.
func GreaterOrEqual[T cmp.Ordered](a, b T, msgAndArgs ...any) {
	if !(a >= b) {
		panic(newFailure(1, joinMessage(fmt.Sprintf("check_ge(%v, %v)", a, b), msgAndArgs)))
	}
}

// joinMessage appends the optional user message to the check description.
// A leading string argument is treated as a format string.
func joinMessage(base string, msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return base
	}
	var extra string
	format, ok := msgAndArgs[0].(string)
	switch {
	case ok && len(msgAndArgs) == 1:
		extra = format
	case ok:
		extra = fmt.Sprintf(format, msgAndArgs[1:]...)
	case len(msgAndArgs) == 1:
		extra = fmt.Sprintf("%+v", msgAndArgs[0])
	default:
		extra = strings.TrimSpace(fmt.Sprintln(msgAndArgs...))
	}
	if extra == "" {
		return base
	}
	return base + ": " + extra
}
