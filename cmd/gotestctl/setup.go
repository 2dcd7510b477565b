package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/config"
	"github.com/fyrsmithlabs/gotestctl/internal/discovery"
	"github.com/fyrsmithlabs/gotestctl/internal/logging"
	"github.com/fyrsmithlabs/gotestctl/internal/session"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
	"github.com/fyrsmithlabs/gotestctl/internal/target"
	"github.com/fyrsmithlabs/gotestctl/internal/telemetry"
)

// loadConfig resolves configuration for dir, preferring an explicit file.
func loadConfig(dir, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadWithFile(path)
	}
	return config.Load(dir)
}

// newLogger builds the process logger. Records are bridged to OTEL only
// when telemetry export is running.
func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lcfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if tel.IsEnabled() {
		lcfg.Output.OTEL = true
		return logging.NewLogger(lcfg, global.GetLoggerProvider())
	}
	return logging.NewLogger(lcfg, nil)
}

// project is everything the session needs to know about what to run.
type project struct {
	Root     string
	Targets  []target.Target
	Metadata session.Metadata
	Modules  []string
}

// resolveProject discovers the module at dir. Explicit targets replace the
// discovered ones; discovery still supplies the selector metadata when a
// module root is found.
func resolveProject(ctx context.Context, dir string, args []string, cfg *config.Config, logger *zap.Logger) (*project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve dir %s: %w", dir, err)
	}

	p := &project{Root: root}
	if cfg.Selector.MaxConcurrency > 0 {
		p.Metadata.Resources = &strategy.ResourceConstraints{MaxConcurrency: cfg.Selector.MaxConcurrency}
	}
	p.Metadata.TimeConstraint = cfg.Selector.TimeConstraint.Duration()

	found, err := discovery.Discover(ctx, root, discovery.WithLogger(logger))
	switch {
	case err == nil:
		p.Targets = found.Targets
		p.Modules = found.Modules
		p.Metadata.TotalPackages = found.TotalPackages
		p.Metadata.HasComplexDependencies = found.HasComplexDependencies
	case errors.Is(err, discovery.ErrNoModule) && len(args) > 0:
		logger.Debug("no module root found, using explicit targets only", zap.String("dir", root))
	default:
		return nil, err
	}

	if len(args) > 0 {
		targets, err := target.ParseAll(args)
		if err != nil {
			return nil, err
		}
		p.Targets = targets
		if p.Metadata.TotalPackages == 0 {
			p.Metadata.TotalPackages = len(targets)
		}
	}

	if len(p.Targets) == 0 {
		return nil, fmt.Errorf("no test packages found under %s", root)
	}
	return p, nil
}

// initialStrategy returns the strategy named by flag, or the one the
// selector picks for meta.
func initialStrategy(name string, meta session.Metadata) (strategy.Strategy, bool, error) {
	if name != "" {
		st, err := strategy.Parse(name)
		return st, true, err
	}
	return strategy.SelectInitial(meta.Criteria()), false, nil
}

// sessionConfig maps loaded configuration onto the session.
func sessionConfig(cfg *config.Config, root string) session.Config {
	return session.Config{
		Fallback:         cfg.Fallback,
		UnitTimeout:      cfg.Runner.UnitTimeout.Duration(),
		BatchConcurrency: cfg.Runner.BatchConcurrency,
		GoBinary:         cfg.Runner.GoBinary,
		ExtraArgs:        cfg.Runner.ExtraArgs,
		Dir:              root,
	}
}
