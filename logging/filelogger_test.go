package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

func testLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func noop() error { return nil }

// newRun builds a reporter over a small catalog with the file logger attached
// as a sink.
func newRun(t *testing.T, fl *FileLogger) *reporter.Reporter {
	t.Helper()
	b := catalog.NewBuilder(testLogger())
	b.Suite("math").
		Add("add", noop).
		Add("div[0]", noop).
		Add("crash", noop).
		AddDisabled("skip", noop)
	cat, err := b.Freeze()
	require.NoError(t, err)
	return reporter.New(cat, fl)
}

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger(testLogger(), t.TempDir(), "")
	assert.ErrorContains(t, err, "runID cannot be empty")

	_, err = NewFileLogger(testLogger(), "", "run")
	assert.ErrorContains(t, err, "baseDir cannot be empty")
}

func TestFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-123"

	fl, err := NewFileLogger(testLogger(), tmpDir, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, fl.RunID())
	assert.Equal(t, filepath.Join(tmpDir, RunDirectoryPrefix+runID), fl.RunDir())
	assert.DirExists(t, fl.RunDir())
	assert.DirExists(t, fl.FailedDir())

	rep := newRun(t, fl)
	require.NoError(t, rep.ReportDisabled(types.NewFullID("math", "skip")))
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 3*time.Millisecond))
	require.NoError(t, rep.ReportFailure(types.NewFullID("math", "div[0]"), "check_eq(2, 3)", time.Millisecond))
	require.NoError(t, rep.ReportError(types.NewFullID("math", "crash"), "panic: boom\nsecond line", 2*time.Millisecond))
	require.NoError(t, fl.Complete(rep.Snapshot()))

	allLogs, err := os.ReadFile(fl.Path(AllLogsFilename))
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "TEST: math/add")
	assert.Contains(t, string(allLogs), "  second line")

	failed, err := os.ReadDir(fl.FailedDir())
	require.NoError(t, err)
	var names []string
	for _, f := range failed {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{
		filepath.Base(fl.FailedTestPath(types.NewFullID("math", "div[0]"))),
		filepath.Base(fl.FailedTestPath(types.NewFullID("math", "crash"))),
	}, names)

	divLog, err := os.ReadFile(fl.FailedTestPath(types.NewFullID("math", "div[0]")))
	require.NoError(t, err)
	assert.Contains(t, string(divLog), "Status:   fail")
	assert.Contains(t, string(divLog), "check_eq(2, 3)")

	summary, err := os.ReadFile(fl.Path(SummaryFilename))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Run ID: "+runID)
	assert.Contains(t, string(summary), "1 test(s) failed")
	assert.Contains(t, string(summary), "FAILED")
	assert.NotContains(t, string(summary), "\x1b[")

	junit, err := os.ReadFile(fl.Path(JUnitFilename))
	require.NoError(t, err)
	assert.Contains(t, string(junit), `<testsuite name="math" tests="4" failures="1" errors="1" id="0" skipped="1"`)
}

func TestJSONLinesSink(t *testing.T) {
	fl, err := NewFileLogger(testLogger(), t.TempDir(), "jsonl")
	require.NoError(t, err)

	rep := newRun(t, fl)
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 3*time.Millisecond))
	require.NoError(t, rep.ReportError(types.NewFullID("math", "crash"), "boom", 2*time.Millisecond))
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "div[0]"), 0))
	require.NoError(t, rep.ReportDisabled(types.NewFullID("math", "skip")))
	require.NoError(t, fl.Complete(rep.Snapshot()))

	f, err := os.Open(fl.Path(JSONLinesFilename))
	require.NoError(t, err)
	defer f.Close()

	var records []ResultRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ResultRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 4)

	assert.Equal(t, "add", records[0].Test)
	assert.Equal(t, "pass", records[0].Status)
	assert.Equal(t, uint64(3), records[0].DurationMS)
	assert.Equal(t, "error", records[1].Status)
	assert.Equal(t, "boom", records[1].Message)
	assert.Empty(t, records[0].Message)
}

func TestFileLoggerConcurrentResults(t *testing.T) {
	fl, err := NewFileLogger(testLogger(), t.TempDir(), "concurrent")
	require.NoError(t, err)

	const numTests = 200
	b := catalog.NewBuilder(testLogger())
	sb := b.Suite("load")
	for i := 0; i < numTests; i++ {
		sb.Add(fmt.Sprintf("t%d", i), noop)
	}
	cat, err := b.Freeze()
	require.NoError(t, err)
	rep := reporter.New(cat, fl)

	var wg sync.WaitGroup
	for i := 0; i < numTests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := types.NewFullID("load", fmt.Sprintf("t%d", i))
			if i%10 == 0 {
				assert.NoError(t, rep.ReportFailure(id, "nope", 0))
				return
			}
			assert.NoError(t, rep.ReportPass(id, 0))
		}(i)
	}
	wg.Wait()
	require.NoError(t, fl.Complete(rep.Snapshot()))

	data, err := os.ReadFile(fl.Path(JSONLinesFilename))
	require.NoError(t, err)
	assert.Equal(t, numTests, strings.Count(string(data), "\n"))

	failed, err := os.ReadDir(fl.FailedDir())
	require.NoError(t, err)
	assert.Len(t, failed, numTests/10)
}

func TestFileLoggerRejectsIncompleteRun(t *testing.T) {
	fl, err := NewFileLogger(testLogger(), t.TempDir(), "incomplete")
	require.NoError(t, err)

	rep := newRun(t, fl)
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 0))

	err = fl.Complete(rep.Snapshot())
	require.Error(t, err)
	assert.NoFileExists(t, fl.Path(JUnitFilename))
}

func TestFileLoggerCloseWithoutComplete(t *testing.T) {
	fl, err := NewFileLogger(testLogger(), t.TempDir(), "aborted")
	require.NoError(t, err)

	rep := newRun(t, fl)
	require.NoError(t, rep.ReportPass(types.NewFullID("math", "add"), 0))
	require.NoError(t, rep.ReportFailure(types.NewFullID("math", "div[0]"), "nope", 0))
	require.NoError(t, fl.Close())

	allLogs, err := os.ReadFile(fl.Path(AllLogsFilename))
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "TEST: math/add")
	assert.Contains(t, string(allLogs), "TEST: math/div[0]")

	jsonl, err := os.ReadFile(fl.Path(JSONLinesFilename))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(jsonl), "\n"))
	assert.NoFileExists(t, fl.Path(SummaryFilename))

	require.NoError(t, fl.Close(), "closing twice is harmless")
}

func TestAsyncFileClosed(t *testing.T) {
	af, err := NewAsyncFile(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)
	require.NoError(t, af.Write([]byte("hello\n")))
	require.NoError(t, af.Close())
	assert.Error(t, af.Write([]byte("late")))
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with space", "with_space"},
		{"a/b\\c", "a_b_c"},
		{"param[12]", "param_12"},
		{`x:y*z?"<>|`, "x_y_z_____"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeFilename(tt.in), tt.in)
	}
	name := testFilename(types.NewFullID("math", "div[0]"))
	assert.True(t, strings.HasPrefix(name, "math__div_0-"), name)
	assert.True(t, strings.HasSuffix(name, ".log"), name)
	assert.Equal(t, name, testFilename(types.NewFullID("math", "div[0]")), "names are stable")
}

func TestFailedTestFilesNeverCollide(t *testing.T) {
	fl, err := NewFileLogger(testLogger(), t.TempDir(), "collide")
	require.NoError(t, err)

	ids := []types.FullID{
		types.NewFullID("s", "case[1]"),
		types.NewFullID("s", "case_1"),
		types.NewFullID("a__b", "c"),
		types.NewFullID("a", "b__c"),
	}
	b := catalog.NewBuilder(testLogger())
	for _, id := range ids {
		b.Suite(id.Suite).Add(id.Test, noop)
	}
	cat, err := b.Freeze()
	require.NoError(t, err)
	rep := reporter.New(cat, fl)

	for _, id := range ids {
		require.NoError(t, rep.ReportFailure(id, "failure of "+id.String(), 0))
	}
	require.NoError(t, fl.Complete(rep.Snapshot()))

	entries, err := os.ReadDir(fl.FailedDir())
	require.NoError(t, err)
	require.Len(t, entries, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(fl.FailedTestPath(id))
		require.NoError(t, err)
		assert.Contains(t, string(data), "failure of "+id.String())
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))

	out := truncateString("ünïcödé-ünïcödé", 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "ünïcödé...", out)
}
