package runner

import (
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/check"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// Outcome is the classified result of one test invocation.
type Outcome struct {
	Status   types.TestStatus
	Message  string
	Duration time.Duration
}

// Invoke runs a test procedure and classifies how it ended. The procedure
// runs on its own goroutine while the caller waits, so a panic or a
// runtime.Goexit inside the test never unwinds the calling worker.
func Invoke(tc *catalog.TestCase) Outcome {
	done := make(chan Outcome, 1)
	start := time.Now()

	go func() {
		returned := false
		var out Outcome
		defer func() {
			if rec := recover(); rec != nil {
				out.Status, out.Message = classifyPanic(rec)
			} else if !returned {
				out.Status = types.TestStatusError
				out.Message = "test procedure exited without returning"
			}
			out.Duration = time.Since(start)
			done <- out
		}()

		err := tc.Run()
		returned = true
		out.Status, out.Message = classifyError(err)
	}()

	return <-done
}

// classifyError maps a returned error onto an outcome. Assertion failures
// anywhere in the chain mean fail, everything else means error.
func classifyError(err error) (types.TestStatus, string) {
	if err == nil {
		return types.TestStatusPass, ""
	}
	if check.IsFailure(err) {
		return types.TestStatusFail, err.Error()
	}
	return types.TestStatusError, err.Error()
}

func classifyPanic(rec any) (types.TestStatus, string) {
	if err, ok := rec.(error); ok {
		if f, ok := check.AsFailure(err); ok {
			return types.TestStatusFail, f.Error()
		}
	}
	return types.TestStatusError, fmt.Sprintf("panic: %v", rec)
}
