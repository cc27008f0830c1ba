package reporting

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jstemmer/go-junit-report/v2/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

func noop() error { return nil }

// newMathReporter registers the four-test math suite plus a passing io suite.
func newMathReporter(t *testing.T) *reporter.Reporter {
	t.Helper()
	b := catalog.NewBuilder(log.NewLogger(log.DiscardHandler()))
	b.Suite("math").
		Add("add", noop).
		Add("div", noop).
		Add("crash", noop).
		AddDisabled("skip", noop)
	b.Suite("io").Add("read", noop)
	cat, err := b.Freeze()
	require.NoError(t, err)
	return reporter.New(cat)
}

// mathSnapshot is a finished run: one pass, failure, error and disabled test
// in the math suite, one pass in the io suite.
func mathSnapshot(t *testing.T) *reporter.Snapshot {
	t.Helper()
	rep := newMathReporter(t)
	require.NoError(t, rep.ReportDisabled(types.NewFullID("math", "skip")))
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 2*time.Millisecond))
	require.NoError(t, rep.ReportFailure(types.NewFullID("math", "div"), `check_eq(2, 3): "<&>"`, 1500*time.Millisecond))
	require.NoError(t, rep.ReportError(types.NewFullID("math", "crash"), "panic: boom", 7*time.Millisecond))
	require.NoError(t, rep.ReportPass(types.NewFullID("io", "read"), 1234567*time.Microsecond))
	return rep.Snapshot()
}

func passingSnapshot(t *testing.T) *reporter.Snapshot {
	t.Helper()
	b := catalog.NewBuilder(log.NewLogger(log.DiscardHandler()))
	b.Suite("ok").Add("a", noop).Add("b", noop)
	cat, err := b.Freeze()
	require.NoError(t, err)
	rep := reporter.New(cat)
	require.NoError(t, rep.ReportPass(types.NewFullID("ok", "a"), time.Millisecond))
	require.NoError(t, rep.ReportPass(types.NewFullID("ok", "b"), time.Millisecond))
	return rep.Snapshot()
}

func TestWritersRejectIncompleteRun(t *testing.T) {
	rep := newMathReporter(t)
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 0))
	snap := rep.Snapshot()

	var buf bytes.Buffer
	assert.ErrorIs(t, WriteSummary(&buf, snap, SummaryOptions{}), ErrRunIncomplete)
	assert.ErrorIs(t, WriteTable(&buf, snap, TableOptions{}), ErrRunIncomplete)
	assert.ErrorIs(t, WriteJUnit(&buf, snap), ErrRunIncomplete)
	assert.ErrorIs(t, WriteJUnit(&buf, nil), ErrRunIncomplete)
	assert.Zero(t, buf.Len(), "nothing is written for an incomplete run")
}

func TestWriteSummaryFailed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, mathSnapshot(t), SummaryOptions{Color: false}))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "uncolored output must not contain escape codes")
	assert.Contains(t, out, "5 test(s) discovered")
	assert.Contains(t, out, "2 test(s) passed")
	assert.Contains(t, out, "1 test(s) disabled")
	assert.Contains(t, out, "1 test(s) failed")
	assert.Contains(t, out, "1 test(s) errored")
	assert.Contains(t, out, "FAIL  math/div (1.500s)")
	assert.Contains(t, out, "ERROR math/crash (0.007s)")
	assert.Contains(t, out, "\tpanic: boom")
	assert.True(t, strings.HasSuffix(out, "\tFAILED\n"))
	assert.NotContains(t, out, "PASSED")
}

func TestWriteSummaryPassed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, passingSnapshot(t), SummaryOptions{Color: true}))
	out := buf.String()

	assert.Contains(t, out, "\x1b[1;32mPASSED\x1b[0m")
	assert.Contains(t, out, text.Colors{text.Bold, text.FgGreen}.Sprint(2))
	assert.Equal(t, "2 test(s) discovered\n2 test(s) passed\n\tPASSED\n", stripansi.Strip(out))
	assert.NotContains(t, out, "disabled")
	assert.NotContains(t, out, "failed")
	assert.NotContains(t, out, "problems")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, mathSnapshot(t), TableOptions{Title: "Unit Tests"}))
	out := buf.String()

	assert.Contains(t, out, "Unit Tests")
	for _, want := range []string{"math", "io", "add", "div", "crash", "skip", "read", "DISABLED", "ERROR", "FAIL", "TOTAL"} {
		assert.Contains(t, out, want)
	}
}

func TestBuildJUnit(t *testing.T) {
	doc, err := BuildJUnit(mathSnapshot(t))
	require.NoError(t, err)

	assert.Equal(t, 5, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Skipped)
	assert.Equal(t, "2.743", doc.Time)

	require.Len(t, doc.Suites, 2)
	math := doc.Suites[0]
	assert.Equal(t, "math", math.Name)
	assert.Equal(t, 4, math.Tests)
	assert.Equal(t, 1, math.Failures)
	assert.Equal(t, 1, math.Errors)
	assert.Equal(t, 1, math.Skipped)
	assert.Equal(t, "1.509", math.Time)

	assert.Equal(t, 0, math.ID)
	require.Len(t, math.Testcases, 4)
	names := make([]string, 0, len(math.Testcases))
	for _, tc := range math.Testcases {
		names = append(names, tc.Name)
		assert.Equal(t, "math", tc.Classname)
	}
	assert.Equal(t, []string{"add", "div", "crash", "skip"}, names, "registration order")

	add, div, crash, skip := math.Testcases[0], math.Testcases[1], math.Testcases[2], math.Testcases[3]
	assert.Nil(t, add.Failure)
	assert.Nil(t, add.Error)
	assert.Nil(t, add.Skipped)
	assert.Equal(t, "0.002", add.Time)

	require.NotNil(t, div.Failure)
	assert.Nil(t, div.Error)
	assert.Equal(t, "failure", div.Failure.Type)
	assert.Equal(t, `check_eq(2, 3): "<&>"`, div.Failure.Message)
	assert.Equal(t, div.Failure.Message, div.Failure.Data)

	require.NotNil(t, crash.Error)
	assert.Nil(t, crash.Failure)
	assert.Equal(t, "error", crash.Error.Type)

	require.NotNil(t, skip.Skipped)
	assert.Equal(t, "disabled", skip.Skipped.Message)
	assert.Equal(t, "0.000", skip.Time)

	io := doc.Suites[1]
	assert.Equal(t, "io", io.Name)
	assert.Equal(t, 1, io.ID)
	assert.Equal(t, "1.234", io.Time)
}

func TestWriteJUnitDeterministic(t *testing.T) {
	snap := mathSnapshot(t)

	var first, second bytes.Buffer
	require.NoError(t, WriteJUnit(&first, snap))
	require.NoError(t, WriteJUnit(&second, snap))
	assert.Equal(t, first.Bytes(), second.Bytes())

	out := first.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `<testsuites time="2.743" tests="5" errors="1" failures="1" skipped="1">`)
	assert.Contains(t, out, `<testsuite name="math" tests="4" failures="1" errors="1" id="0" skipped="1" time="1.509">`)
	assert.Contains(t, out, `<testcase name="div" classname="math" time="1.500">`)
	assert.Contains(t, out, `message="check_eq(2, 3): &#34;&lt;&amp;&gt;&#34;"`)
	assert.Contains(t, out, `<![CDATA[check_eq(2, 3): "<&>"]]>`)
	assert.Contains(t, out, `<skipped message="disabled"></skipped>`)

	// The document parses back into the same model.
	var parsed junit.Testsuites
	require.NoError(t, xml.Unmarshal(first.Bytes(), &parsed))
	assert.Equal(t, 5, parsed.Tests)
	require.Len(t, parsed.Suites, 2)
	assert.NotNil(t, parsed.Suites[0].Testcases[3].Skipped)
	assert.Equal(t, `check_eq(2, 3): "<&>"`, parsed.Suites[0].Testcases[1].Failure.Data)
}

func TestXMLText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nnext\ttab", "line\nnext\ttab"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"nul\x00bell\x07", "nul\uFFFDbell\uFFFD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, xmlText(tt.in), tt.in)
	}
}

func TestWriteJUnitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.xml")
	require.NoError(t, WriteJUnitFile(path, passingSnapshot(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<testsuite name="ok" tests="2" failures="0" errors="0" id="0" time="0.002">`)
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0.000"},
		{1, "0.001"},
		{999, "0.999"},
		{1000, "1.000"},
		{61234, "61.234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSeconds(tt.ms))
	}
}
