// Package logging persists the results of a run under a per-run directory.
//
// Layout of <baseDir>/testrun-<runID>/:
//
//	all.log       one block per result, in completion order
//	results.jsonl one JSON object per result, in completion order
//	failed/       one file per failed or errored test
//	summary.log   console summary and results table, written on Complete
//	junit.xml     JUnit report, written on Complete
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	AllLogsFilename    = "all.log"
	JSONLinesFilename  = "results.jsonl"
	SummaryFilename    = "summary.log"
	JUnitFilename      = "junit.xml"
	FailedDirname      = "failed"
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a single test result. It may be called concurrently.
	Consume(result types.TestResult) error
	// Complete is called once with the final snapshot of the run
	Complete(snap *reporter.Snapshot) error
}

// FileLogger handles writing test output to files
type FileLogger struct {
	log          log.Logger
	baseDir      string // Base directory for logs
	logDir       string // Directory of this run
	failedDir    string // Directory for failed tests
	runID        string
	mu           sync.Mutex            // Protects asyncWriters and errs
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	errs         []error               // Consume errors seen through OnResult
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	err     error // first write error
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file %s is closed", af.file.Name())
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil && af.err == nil {
			af.err = fmt.Errorf("failed to write %s: %w", af.file.Name(), err)
		}
	}
}

// Close drains the queue, closes the file and reports the first write error.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return errors.Join(af.err, af.file.Close())
}

// NewFileLogger creates the run directory and the default sinks.
func NewFileLogger(logger log.Logger, baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if logger == nil {
		logger = log.New()
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, FailedDirname)
	for _, dir := range []string{baseDir, logDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	l := &FileLogger{
		log:          logger.New("component", "filelogger", "runID", runID),
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		runID:        runID,
		asyncWriters: make(map[string]*AsyncFile),
	}
	l.sinks = []ResultSink{
		&AllLogsFileSink{logger: l},
		&JSONLinesSink{logger: l},
		&FailedTestFileSink{logger: l},
		&SummarySink{logger: l},
		&JUnitSink{logger: l},
	}
	return l, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// closeAllWriters closes all async writers and returns their write errors.
func (l *FileLogger) closeAllWriters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, writer := range l.asyncWriters {
		errs = append(errs, writer.Close())
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return errors.Join(errs...)
}

// LogTestResult feeds a test result to all sinks.
func (l *FileLogger) LogTestResult(result types.TestResult) error {
	for _, sink := range l.sinks {
		if err := sink.Consume(result); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// OnResult lets the file logger observe a reporter directly. Errors are kept
// and returned by Complete.
func (l *FileLogger) OnResult(result types.TestResult) {
	if err := l.LogTestResult(result); err != nil {
		l.log.Error("Failed to log test result", "test", result.ID, "err", err)
		l.mu.Lock()
		l.errs = append(l.errs, err)
		l.mu.Unlock()
	}
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(snap *reporter.Snapshot) error {
	errs := l.consumeErrors()
	for _, sink := range l.sinks {
		if err := sink.Complete(snap); err != nil {
			errs = append(errs, fmt.Errorf("error completing sink: %w", err))
		}
	}
	errs = append(errs, l.closeAllWriters())

	if err := errors.Join(errs...); err != nil {
		return err
	}
	l.log.Info("Wrote run artifacts", "dir", l.logDir)
	return nil
}

// Close flushes and closes the writers of a run that never reached
// Complete. It is a no-op after Complete.
func (l *FileLogger) Close() error {
	return errors.Join(append(l.consumeErrors(), l.closeAllWriters())...)
}

func (l *FileLogger) consumeErrors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	errs := l.errs
	l.errs = nil
	return errs
}

// RunID returns the id of the run this logger writes.
func (l *FileLogger) RunID() string {
	return l.runID
}

// RunDir returns the directory of this run.
func (l *FileLogger) RunDir() string {
	return l.logDir
}

// FailedDir returns the directory containing logs for failed tests
func (l *FileLogger) FailedDir() string {
	return l.failedDir
}

// FailedTestPath returns the path of the log file written for a failed or
// errored test.
func (l *FileLogger) FailedTestPath(id types.FullID) string {
	return filepath.Join(l.failedDir, testFilename(id))
}

// Path returns the path of a file inside the run directory.
func (l *FileLogger) Path(name string) string {
	return filepath.Join(l.logDir, name)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"[", "_",
		"]", "",
	)
	return replacer.Replace(s)
}

// testFilename names the per-test log file of a result. safeFilename is
// lossy, so the name carries a digest of the exact suite and test ids.
func testFilename(id types.FullID) string {
	sum := sha256.Sum256([]byte(id.Suite + "\x00" + id.Test))
	return fmt.Sprintf("%s__%s-%s.log", safeFilename(id.Suite), safeFilename(id.Test), hex.EncodeToString(sum[:6]))
}
