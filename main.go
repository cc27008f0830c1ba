package tester

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-tester/flags"
	"github.com/ethereum-optimism/infra/op-tester/service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// NewApp builds the command line application of a test binary. The register
// function only runs when the tests run, never for --help or --version.
func NewApp(name, version string, register RegisterFunc) *cli.App {
	app := cli.NewApp()
	app.Version = version
	app.Name = name
	app.Usage = "Run the registered test suites"
	app.Description = name + " runs its registered tests concurrently and reports the outcome"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		return run(ctx, closeApp, register)
	})
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), ExitCode(err)))
		}
	}
	return app
}

// Main runs a test binary and exits the process with the run's exit code.
func Main(name, version string, register RegisterFunc) {
	app := NewApp(name, version, register)

	ctx := context.Background()
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		shutdown, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithServiceName(app.Name),
			otelconfig.WithServiceVersion(app.Version),
		)
		if err != nil {
			log.Crit("Failed to setup open telemetry", "message", err)
		}
		defer shutdown()
	}

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error("Application failed", "message", err)
		os.Exit(ExitCode(err))
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc, register RegisterFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()

	cfg, err := NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	svcCfg := service.Config{HealthzAddr: ctx.String(flags.HealthzAddr.Name)}
	if metricsCfg := opmetrics.ReadCLIConfig(ctx); metricsCfg.Enabled {
		svcCfg.MetricsAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}

	t, err := New(cfg, register, closeApp)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}
	if svcCfg.HealthzAddr == "" && svcCfg.MetricsAddr == "" {
		return t, nil
	}
	return &servedTester{Tester: t, svc: service.New(logger, svcCfg)}, nil
}

// servedTester runs the metrics and health servers for the lifetime of a run.
type servedTester struct {
	*Tester
	svc *service.Service
}

func (s *servedTester) Start(ctx context.Context) error {
	s.svc.Start(ctx)
	return s.Tester.Start(ctx)
}

func (s *servedTester) Stop(ctx context.Context) error {
	s.svc.Shutdown()
	return s.Tester.Stop(ctx)
}
