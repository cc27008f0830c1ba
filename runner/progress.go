package runner

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-tester/types"
	"github.com/ethereum/go-ethereum/log"
)

// ProgressIndicator interface for UI updates. Implementations must be safe
// for concurrent use: StartTest and UpdateTest are called from every worker.
type ProgressIndicator interface {
	StartRun(totalTests int)
	StartTest(id types.FullID)
	UpdateTest(id types.FullID, status types.TestStatus)
	CompleteRun()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(totalTests int)                              {}
func (n *noOpProgressIndicator) StartTest(id types.FullID)                            {}
func (n *noOpProgressIndicator) UpdateTest(id types.FullID, status types.TestStatus) {}
func (n *noOpProgressIndicator) CompleteRun()                                         {}

// consoleProgressIndicator logs periodic progress of a run
type consoleProgressIndicator struct {
	logger   log.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex

	completedTests int
	totalTests     int
	startTime      time.Time
	counts         map[types.TestStatus]int

	// Track currently running tests
	runningTests map[types.FullID]time.Time
}

// NewConsoleProgressIndicator creates a progress indicator that shows updates in the console
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval <= 0 {
		updateInterval = DefaultProgressInterval
	}
	return &consoleProgressIndicator{
		logger:       logger,
		interval:     updateInterval,
		stopCh:       make(chan struct{}),
		counts:       make(map[types.TestStatus]int),
		runningTests: make(map[types.FullID]time.Time),
	}
}

func (c *consoleProgressIndicator) StartRun(totalTests int) {
	c.mu.Lock()
	c.totalTests = totalTests
	c.completedTests = 0
	c.startTime = time.Now()
	c.mu.Unlock()

	c.logger.Info("Starting run", "totalTests", totalTests)
	go c.progressReporter()
}

// StartTest tracks when a test starts running
func (c *consoleProgressIndicator) StartTest(id types.FullID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningTests[id] = time.Now()
	c.logger.Debug("Test started", "test", id, "runningTests", len(c.runningTests))
}

func (c *consoleProgressIndicator) UpdateTest(id types.FullID, status types.TestStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var elapsed time.Duration
	if started, ok := c.runningTests[id]; ok {
		elapsed = time.Since(started)
		delete(c.runningTests, id)
	}
	c.completedTests++
	c.counts[status]++

	c.logger.Debug("Test completed", "test", id, "status", status, "duration", elapsed,
		"progress", c.completedTests, "total", c.totalTests)
}

func (c *consoleProgressIndicator) CompleteRun() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("Run completed",
		"completed", c.completedTests,
		"total", c.totalTests,
		"passed", c.counts[types.TestStatusPass],
		"failed", c.counts[types.TestStatusFail],
		"errored", c.counts[types.TestStatusError],
		"disabled", c.counts[types.TestStatusDisabled],
		"duration", time.Since(c.startTime))
}

func (c *consoleProgressIndicator) progressReporter() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.logProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) logProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()

	running := make([]string, 0, len(c.runningTests))
	var longest time.Duration
	for id, started := range c.runningTests {
		running = append(running, id.String())
		if d := time.Since(started); d > longest {
			longest = d
		}
	}
	sort.Strings(running)

	c.logger.Info("Progress update",
		"completed", c.completedTests,
		"total", c.totalTests,
		"elapsed", time.Since(c.startTime).Round(time.Second),
		"running", strings.Join(running, ", "),
		"longestRunning", longest.Round(time.Second))
}
