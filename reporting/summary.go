// Package reporting renders a finished run. Every writer is a pure function
// of a reporter snapshot: rendering the same snapshot twice produces the same
// bytes, and nothing here mutates reporter state.
package reporting

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// ErrRunIncomplete is returned when asked to render a snapshot that still has
// tests in not_run.
var ErrRunIncomplete = errors.New("cannot report an incomplete run")

var (
	colorPassed   = text.Colors{text.Bold, text.FgGreen}
	colorFailed   = text.Colors{text.Bold, text.FgRed}
	colorDisabled = text.Colors{text.FgYellow}
	colorTotal    = text.Colors{text.Bold, text.FgYellow}
	colorHeading  = text.Colors{text.Bold, text.FgYellow, text.Underline}
)

// SummaryOptions controls the console summary.
type SummaryOptions struct {
	Color bool
}

// checkComplete refuses snapshots that are not the end of a run.
func checkComplete(snap *reporter.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: no snapshot", ErrRunIncomplete)
	}
	if pending := snap.Incomplete(); len(pending) > 0 {
		return fmt.Errorf("%w: %d tests not run (first: %s)", ErrRunIncomplete, len(pending), pending[0])
	}
	return nil
}

// WriteSummary writes the human readable outcome of a run: one line per
// failed or errored test, the counters, and a final PASSED or FAILED verdict.
func WriteSummary(w io.Writer, snap *reporter.Snapshot, opts SummaryOptions) error {
	if err := checkComplete(snap); err != nil {
		return err
	}

	var buf bytes.Buffer
	problems := snap.Problems()
	if len(problems) > 0 {
		fmt.Fprintf(&buf, "%s\n", colorHeading.Sprint("problems"))
		for _, res := range problems {
			writeProblem(&buf, res)
		}
	}

	fmt.Fprintf(&buf, "%s test(s) discovered\n", colorTotal.Sprint(snap.Total))
	fmt.Fprintf(&buf, "%s test(s) passed\n", colorPassed.Sprint(snap.Passed))
	if snap.Disabled != 0 {
		fmt.Fprintf(&buf, "%s test(s) disabled\n", colorDisabled.Sprint(snap.Disabled))
	}
	if snap.Failed != 0 {
		fmt.Fprintf(&buf, "%s test(s) failed\n", colorFailed.Sprint(snap.Failed))
	}
	if snap.Errored != 0 {
		fmt.Fprintf(&buf, "%s test(s) errored\n", colorFailed.Sprint(snap.Errored))
	}
	if snap.IsFailed() {
		fmt.Fprintf(&buf, "\t%s\n", colorFailed.Sprint("FAILED"))
	} else {
		fmt.Fprintf(&buf, "\t%s\n", colorPassed.Sprint("PASSED"))
	}

	out := buf.String()
	if !opts.Color {
		out = stripansi.Strip(out)
	}
	_, err := io.WriteString(w, out)
	return err
}

func writeProblem(buf *bytes.Buffer, res types.TestResult) {
	label := "FAIL"
	if res.Status == types.TestStatusError {
		label = "ERROR"
	}
	fmt.Fprintf(buf, "%s %s (%ss)\n", colorFailed.Sprintf("%-5s", label), res.ID, formatSeconds(res.DurationMS()))
	for _, line := range strings.Split(res.Message, "\n") {
		fmt.Fprintf(buf, "\t%s\n", line)
	}
}

// formatSeconds renders a millisecond duration as seconds with three
// decimals.
func formatSeconds(ms uint64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
