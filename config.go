package tester

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-tester/flags"
)

// Config holds the application configuration
type Config struct {
	Concurrency      int           // Number of parallel test workers (0 = number of CPUs)
	Serial           bool          // Run parallel tests on a single worker
	PlanFile         string        // Optional YAML plan applied before freezing the catalog
	LogDir           string        // Directory to store run artifacts, empty disables them
	JUnitFile        string        // Optional extra JUnit report path
	Color            bool          // Colorize the console summary
	ShowTable        bool          // Print the results table before the summary
	ShowProgress     bool          // Whether to show periodic progress updates during test execution
	ProgressInterval time.Duration // Interval between progress updates when ShowProgress is 'true'
	Out              io.Writer     // Destination of the console report
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	planFile, err := absPath(ctx.String(flags.Plan.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for plan: %w", err)
	}
	logDir, err := absPath(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}
	junitFile, err := absPath(ctx.String(flags.JUnit.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for junit report: %w", err)
	}

	return &Config{
		Concurrency:      ctx.Int(flags.Concurrency.Name),
		Serial:           ctx.Bool(flags.Serial.Name),
		PlanFile:         planFile,
		LogDir:           logDir,
		JUnitFile:        junitFile,
		Color:            !ctx.Bool(flags.NoColor.Name),
		ShowTable:        ctx.Bool(flags.ShowTable.Name),
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Out:              os.Stdout,
		Log:              log,
	}, nil
}

// workers returns the worker count handed to the scheduler.
func (c *Config) workers() int {
	if c.Serial {
		return 1
	}
	return c.Concurrency
}

func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}
