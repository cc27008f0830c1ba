// Package tester runs a registered catalog of tests and reports the outcome.
//
// A test binary calls Main with a function that registers its suites. The
// run reports every disabled test, executes the rest on a worker pool plus a
// serial executor, writes the console summary and report files, and exits
// with 0 only when nothing failed or errored.
package tester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/logging"
	"github.com/ethereum-optimism/infra/op-tester/metrics"
	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/reporting"
	"github.com/ethereum-optimism/infra/op-tester/runner"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// RegisterFunc adds the suites of a test binary to the builder.
type RegisterFunc func(b *catalog.Builder) error

// Tester implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Tester{}

// Tester performs one run of a test binary.
type Tester struct {
	config   *Config
	register RegisterFunc
	runID    string

	snapshot atomic.Pointer[reporter.Snapshot]
	stopped  atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates a tester. The register function is not called until the run
// starts.
func New(config *Config, register RegisterFunc, shutdownCallback func(error)) (*Tester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if register == nil {
		return nil, errors.New("register function is required")
	}
	if config.Log == nil {
		config.Log = log.New()
	}
	if config.Out == nil {
		config.Out = io.Discard
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}
	runID := uuid.New().String()
	config.Log = config.Log.New("runID", runID)

	return &Tester{
		config:           config,
		register:         register,
		runID:            runID,
		shutdownCallback: shutdownCallback,
	}, nil
}

// RunID returns the unique id of this run.
func (t *Tester) RunID() string {
	return t.runID
}

// Snapshot returns the final snapshot once the run has completed.
func (t *Tester) Snapshot() *reporter.Snapshot {
	return t.snapshot.Load()
}

// Start runs the catalog once. It returns a TestFailureError when a test
// failed or errored and a RuntimeError when the run could not be completed.
// Start implements the cliapp.Lifecycle interface.
func (t *Tester) Start(ctx context.Context) error {
	snap, err := t.Run(ctx)
	if err != nil {
		t.config.Log.Error("Run could not be completed", "err", err)
		return err
	}
	if snap.IsFailed() {
		t.config.Log.Warn("Run completed with failures", "failed", snap.Failed, "errored", snap.Errored)
		return NewTestFailureError(snap.Failed, snap.Errored)
	}

	t.config.Log.Info("Run completed, exiting")
	go t.shutdownCallback(nil)
	return nil
}

// Stop implements the cliapp.Lifecycle interface. A run is never
// interrupted; Stop only marks the tester stopped.
func (t *Tester) Stop(ctx context.Context) error {
	t.stopped.Store(true)
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (t *Tester) Stopped() bool {
	return t.stopped.Load()
}

// Run builds the catalog, executes it and writes every report. Errors are
// RuntimeErrors; test failures are reported through the snapshot.
func (t *Tester) Run(ctx context.Context) (*reporter.Snapshot, error) {
	start := time.Now()
	cfg := t.config

	cat, err := t.buildCatalog()
	if err != nil {
		metrics.RecordErrorDetails("catalog", err)
		return nil, NewRuntimeError(err)
	}
	cfg.Log.Info("Catalog frozen", "suites", len(cat.Suites()), "tests", cat.Len())

	sinks := []reporter.Sink{metrics.NewResultSink()}
	var fileLogger *logging.FileLogger
	if cfg.LogDir != "" {
		fileLogger, err = logging.NewFileLogger(cfg.Log, cfg.LogDir, t.runID)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
		}
		sinks = append(sinks, fileLogger)
		defer func() {
			if err := fileLogger.Close(); err != nil {
				cfg.Log.Warn("Failed to close run artifacts", "err", err)
			}
		}()
	}
	rep := reporter.New(cat, sinks...)

	progress := runner.NewNoOpProgressIndicator()
	if cfg.ShowProgress {
		progress = runner.NewConsoleProgressIndicator(cfg.Log, cfg.ProgressInterval)
	}

	sched, err := runner.NewScheduler(runner.Config{
		Catalog:     cat,
		Reporter:    rep,
		Concurrency: cfg.workers(),
		Log:         cfg.Log,
		Progress:    progress,
	})
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create scheduler: %w", err))
	}

	snap, err := sched.Run(ctx)
	if err != nil {
		metrics.RecordErrorDetails("scheduler", err)
		return nil, NewRuntimeError(fmt.Errorf("run failed: %w", err))
	}
	t.snapshot.Store(snap)

	if err := t.writeReports(snap, fileLogger); err != nil {
		metrics.RecordErrorDetails("reports", err)
		return snap, NewRuntimeError(err)
	}

	metrics.RecordRun(t.runID, snap.Passed, snap.Failed, snap.Errored, snap.Disabled, time.Since(start))
	return snap, nil
}

// buildCatalog runs the registration phase and applies the plan overlay.
func (t *Tester) buildCatalog() (*catalog.Catalog, error) {
	b := catalog.NewBuilder(t.config.Log)
	if err := t.register(b); err != nil {
		return nil, fmt.Errorf("failed to register tests: %w", err)
	}
	if t.config.PlanFile != "" {
		plan, err := catalog.LoadPlan(t.config.PlanFile)
		if err != nil {
			return nil, err
		}
		if err := b.ApplyPlan(plan); err != nil {
			return nil, err
		}
	}
	return b.Freeze()
}

// writeReports prints the console report and writes the report files.
func (t *Tester) writeReports(snap *reporter.Snapshot, fileLogger *logging.FileLogger) error {
	cfg := t.config

	var out bytes.Buffer
	if cfg.ShowTable {
		if err := reporting.WriteTable(&out, snap, reporting.TableOptions{Title: "Test Results", Color: cfg.Color}); err != nil {
			return fmt.Errorf("failed to render results table: %w", err)
		}
	}
	if err := reporting.WriteSummary(&out, snap, reporting.SummaryOptions{Color: cfg.Color}); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	if _, err := cfg.Out.Write(out.Bytes()); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	var errs []error
	if cfg.JUnitFile != "" {
		if err := reporting.WriteJUnitFile(cfg.JUnitFile, snap); err != nil {
			errs = append(errs, err)
		} else {
			cfg.Log.Info("Wrote JUnit report", "path", cfg.JUnitFile)
		}
	}
	if fileLogger != nil {
		if err := fileLogger.Complete(snap); err != nil {
			errs = append(errs, fmt.Errorf("failed to write run artifacts: %w", err))
		}
	}
	return errors.Join(errs...)
}
