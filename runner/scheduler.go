package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-tester/catalog"
	"github.com/ethereum-optimism/infra/op-tester/reporter"
	"github.com/ethereum-optimism/infra/op-tester/types"
)

// ErrAlreadyRan is returned when Run is called a second time. Every result
// slot can only be written once, so a scheduler runs exactly once.
var ErrAlreadyRan = errors.New("scheduler already ran")

// ResultReporter is the part of the reporter the scheduler writes through.
type ResultReporter interface {
	Report(id types.FullID, status types.TestStatus, message string, elapsed time.Duration) error
	ReportDisabled(id types.FullID) error
	Verify() error
	Snapshot() *reporter.Snapshot
}

// Config holds configuration for creating a new scheduler
type Config struct {
	Catalog     *catalog.Catalog
	Reporter    ResultReporter
	Concurrency int // parallel workers, 0 = number of CPUs
	Log         log.Logger
	Progress    ProgressIndicator
}

// Scheduler executes every enabled test of a catalog exactly once: parallel
// tests on a worker pool, no_parallel tests one at a time in registration
// order on a dedicated executor. Both groups run at the same time.
type Scheduler struct {
	catalog     *catalog.Catalog
	reporter    ResultReporter
	concurrency int
	log         log.Logger
	progress    ProgressIndicator
	tracer      trace.Tracer
	ran         atomic.Bool
}

// NewScheduler creates a new scheduler with validation
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", cfg.Concurrency)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Progress == nil {
		cfg.Progress = NewNoOpProgressIndicator()
	}

	// Log a warning for unreasonable concurrency values
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.Concurrency,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	return &Scheduler{
		catalog:     cfg.Catalog,
		reporter:    cfg.Reporter,
		concurrency: cfg.Concurrency,
		log:         cfg.Log.New("component", "scheduler"),
		progress:    cfg.Progress,
		tracer:      otel.Tracer("op-tester/scheduler"),
	}, nil
}

// Concurrency returns the configured worker count (0 = auto).
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Run executes the catalog and returns the final snapshot. Cancelling ctx
// does not interrupt the run; tests are never abandoned half way. Run only
// stops early when the reporter rejects an outcome, which means the
// exactly-once invariant is broken, and then returns that error.
func (s *Scheduler) Run(ctx context.Context) (*reporter.Snapshot, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRan
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "run")
	defer span.End()

	s.progress.StartRun(s.catalog.Len())
	defer s.progress.CompleteRun()

	// Disabled tests are accounted for before anything executes.
	parallel, serial, err := s.partition()
	if err != nil {
		return nil, err
	}

	workers := determineConcurrency(s.concurrency, len(parallel))
	s.log.Info("Starting test execution",
		"total", s.catalog.Len(),
		"parallel", len(parallel),
		"serial", len(serial),
		"workers", workers)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))

	if len(parallel) > 0 {
		// Conservative buffer: 2x concurrency or 100, whichever is smaller
		work := make(chan *catalog.TestCase, min(workers*2, 100))
		g.Go(func() error {
			defer close(work)
			for _, tc := range parallel {
				select {
				case work <- tc:
				case <-gctx.Done():
					s.log.Debug("Run aborted while dispatching parallel tests")
					return nil
				}
			}
			return nil
		})
		for i := 0; i < workers; i++ {
			workerID := i
			g.Go(func() error {
				return s.worker(gctx, workerID, work)
			})
		}
	}

	if len(serial) > 0 {
		g.Go(func() error {
			return s.runSerial(gctx, serial)
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("Run aborted", "err", err)
		return nil, err
	}
	if err := s.reporter.Verify(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snap := s.reporter.Snapshot()
	s.log.Info("Test execution completed",
		"duration", time.Since(start),
		"passed", snap.Passed,
		"failed", snap.Failed,
		"errored", snap.Errored,
		"disabled", snap.Disabled)
	return snap, nil
}

// partition reports every disabled test and splits the rest into the
// parallel and serial groups, both in registration order.
func (s *Scheduler) partition() (parallel, serial []*catalog.TestCase, err error) {
	s.catalog.Walk(func(tc *catalog.TestCase) {
		if err != nil {
			return
		}
		switch {
		case tc.Disabled():
			if rerr := s.reporter.ReportDisabled(tc.FullID()); rerr != nil {
				err = fmt.Errorf("scheduler invariant violated: %w", rerr)
				return
			}
			s.progress.UpdateTest(tc.FullID(), types.TestStatusDisabled)
		case tc.NoParallel():
			serial = append(serial, tc)
		default:
			parallel = append(parallel, tc)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return parallel, serial, nil
}

// worker pulls parallel tests until the work channel is drained.
func (s *Scheduler) worker(ctx context.Context, workerID int, work <-chan *catalog.TestCase) error {
	s.log.Debug("Worker starting", "workerID", workerID)
	defer s.log.Debug("Worker exiting", "workerID", workerID)

	for {
		select {
		case tc, ok := <-work:
			if !ok {
				return nil
			}
			if err := s.execute(ctx, tc, workerID); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// runSerial executes no_parallel tests one after another.
func (s *Scheduler) runSerial(ctx context.Context, serial []*catalog.TestCase) error {
	s.log.Debug("Serial executor starting", "tests", len(serial))
	for _, tc := range serial {
		if ctx.Err() != nil {
			s.log.Debug("Run aborted, serial executor stopping")
			return nil
		}
		if err := s.execute(ctx, tc, -1); err != nil {
			return err
		}
	}
	return nil
}

// execute invokes one test and reports its outcome. A worker id of -1
// denotes the serial executor.
func (s *Scheduler) execute(ctx context.Context, tc *catalog.TestCase, workerID int) error {
	id := tc.FullID()
	_, span := s.tracer.Start(ctx, "test "+id.String(), trace.WithAttributes(
		attribute.String("suite", id.Suite),
		attribute.String("test", id.Test),
		attribute.Bool("no_parallel", tc.NoParallel()),
		attribute.Int("worker", workerID),
	))
	defer span.End()

	s.progress.StartTest(id)
	s.log.Debug("Running test", "test", id, "workerID", workerID)

	out := Invoke(tc)

	span.SetAttributes(attribute.String("status", string(out.Status)))
	if out.Status != types.TestStatusPass {
		span.SetStatus(codes.Error, out.Message)
	}

	if out.Status != types.TestStatusPass {
		s.log.Debug("Test did not pass", "test", id, "status", out.Status, "message", out.Message)
	}
	err := s.reporter.Report(id, out.Status, out.Message, out.Duration)
	s.progress.UpdateTest(id, out.Status)
	if err != nil {
		return fmt.Errorf("scheduler invariant violated: %w", err)
	}
	return nil
}

// determineConcurrency resolves the worker count: the requested value, or
// the number of CPUs when unset, never more than the number of parallel
// tests and never less than one.
func determineConcurrency(requested, items int) int {
	c := requested
	if c <= 0 {
		c = runtime.NumCPU()
	}
	if items > 0 && c > items {
		c = items
	}
	return max(c, 1)
}
