package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/config"
	"github.com/fyrsmithlabs/gotestctl/internal/events"
	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/logging"
	"github.com/fyrsmithlabs/gotestctl/internal/process"
	"github.com/fyrsmithlabs/gotestctl/internal/report"
	"github.com/fyrsmithlabs/gotestctl/internal/runner"
	"github.com/fyrsmithlabs/gotestctl/internal/session"
	"github.com/fyrsmithlabs/gotestctl/internal/telemetry"
)

// runOptions are the flags of the run command.
type runOptions struct {
	strategy    string
	maxRetries  int
	noFallback  bool
	timeout     time.Duration
	natsURL     string
	json        bool
	metricsFile string
}

var runOpts = runOptions{maxRetries: -1}

// newExecutor builds the executor units run on. Tests replace it.
var newExecutor = func(logger *zap.Logger) process.Executor {
	return process.NewLocalExecutor(logger)
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.strategy, "strategy", "", "initial strategy: all_at_once, batch, directory_by_directory or file_by_file")
	f.IntVar(&runOpts.maxRetries, "max-retries", -1, "maximum fallbacks per session (-1 uses config)")
	f.BoolVar(&runOpts.noFallback, "no-fallback", false, "never degrade the strategy")
	f.DurationVar(&runOpts.timeout, "timeout", 0, "timeout for each go test invocation (0 uses config)")
	f.StringVar(&runOpts.natsURL, "nats-url", "", "publish session events to this NATS server")
	f.BoolVar(&runOpts.json, "json", false, "print the report as JSON")
	f.StringVar(&runOpts.metricsFile, "metrics-file", "", "write runner metrics in Prometheus text format to this file")
}

// runCmd runs a test session
var runCmd = &cobra.Command{
	Use:   "run [targets...]",
	Short: "Run tests with automatic strategy fallback",
	Long: `Run the tests of the module in --dir. Without arguments every package
with _test.go files is discovered; .gitignore'd, vendor and testdata
directories are skipped.

Targets:
  ./...                   all packages
  ./internal/...          a directory tree
  ./internal/runner       one directory
  runner_test.go:TestFoo  one test file, optionally narrowed to a test
  github.com/acme/tool/x  a package by import path

The process exits with the session's exit code.

Examples:
  # Run everything, letting gotestctl pick the strategy
  gotestctl run

  # Start conservatively and never degrade
  gotestctl run --strategy file_by_file --no-fallback ./internal/...

  # Publish fallback events and print JSON
  gotestctl run --nats-url nats://127.0.0.1:4222 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code, err := runSession(ctx, cmd.OutOrStdout(), projectDir, configPath, args, runOpts)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

// applyFlags lets command-line flags override loaded configuration.
func applyFlags(cfg *config.Config, opts runOptions) error {
	if opts.maxRetries >= 0 {
		cfg.Fallback.MaxRetries = opts.maxRetries
	}
	if opts.noFallback {
		cfg.Fallback.Enabled = false
	}
	if opts.timeout > 0 {
		cfg.Runner.UnitTimeout = config.Duration(opts.timeout)
	}
	if opts.natsURL != "" {
		cfg.Events.NATSURL = opts.natsURL
	}
	return cfg.Validate()
}

// runSession executes one session and writes its report to out. It returns
// the session exit code; errors are reserved for setup failures.
func runSession(ctx context.Context, out io.Writer, dir, cfgPath string, args []string, opts runOptions) (int, error) {
	cfg, err := loadConfig(dir, cfgPath)
	if err != nil {
		return 0, err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return 0, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	logger, err := newLogger(cfg, tel)
	if err != nil {
		return 0, err
	}
	defer func() { _ = logger.Sync() }()
	for _, reason := range tel.Health().Reasons {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	proj, err := resolveProject(ctx, dir, args, cfg, logger.Underlying())
	if err != nil {
		return 0, err
	}

	id := uuid.NewString()
	ctx = logging.WithSessionID(ctx, id)
	ctx = logging.WithLogger(ctx, logger)

	var publisher *events.Publisher
	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			return 0, err
		}
		defer nc.Close()
		publisher = events.NewPublisher(nc, cfg.Events.SubjectPrefix, logger.Underlying())
	}

	sessionOpts, err := sessionOptions(logger, tel, publisher, id)
	if err != nil {
		return 0, err
	}
	if opts.strategy != "" {
		st, _, err := initialStrategy(opts.strategy, proj.Metadata)
		if err != nil {
			return 0, err
		}
		sessionOpts = append(sessionOpts, session.WithInitialStrategy(st))
	}

	exec := newExecutor(logger.Underlying())
	s := session.New(exec, sessionConfig(cfg, proj.Root), sessionOpts...)

	rep, runErr := s.Run(ctx, proj.Targets, proj.Metadata)
	if rep == nil {
		return 0, runErr
	}
	if runErr != nil {
		logger.Error(ctx, "session aborted", zap.Error(runErr))
	}

	if publisher != nil {
		if err := publisher.PublishFinished(rep); err != nil {
			logger.Warn(ctx, "failed to publish session summary", zap.Error(err))
		}
		if err := publisher.Flush(); err != nil {
			logger.Warn(ctx, "failed to flush events", zap.Error(err))
		}
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, prometheus.DefaultGatherer); err != nil {
			logger.Warn(ctx, "failed to write metrics file", zap.String("path", opts.metricsFile), zap.Error(err))
		}
	}

	format := report.FormatText
	if opts.json {
		format = report.FormatJSON
	}
	if err := report.NewPrinter(out, format).Print(rep); err != nil {
		return 0, err
	}

	return rep.ExitCode, nil
}

// sessionOptions wires observers and metrics into the session. publisher
// may be nil.
func sessionOptions(logger *logging.Logger, tel *telemetry.Telemetry, publisher *events.Publisher, id string) ([]session.Option, error) {
	observers := fallback.Observers{fallback.NewLogObserver(logger.Underlying().Named("fallback"))}
	if publisher != nil {
		observers = append(observers, publisher)
	}

	sessionMetrics, err := session.NewMetrics(tel.Meter(session.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("session metrics: %w", err)
	}
	fallbackMetrics, err := fallback.NewMetrics(tel.Meter(fallback.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("fallback metrics: %w", err)
	}

	return []session.Option{
		session.WithLogger(logger.Underlying()),
		session.WithObserver(observers),
		session.WithMetrics(sessionMetrics),
		session.WithFallbackMetrics(fallbackMetrics),
		session.WithRunnerMetrics(runner.NewMetrics()),
		session.WithIDGenerator(func() string { return id }),
	}, nil
}
