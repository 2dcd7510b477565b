package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/session"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
)

var planStrategy string

func init() {
	planCmd.Flags().StringVar(&planStrategy, "strategy", "", "show the plan for this strategy instead of the selected one")
}

// planCmd shows what run would do
var planCmd = &cobra.Command{
	Use:   "plan [targets...]",
	Short: "Show the selected strategy, its fallback ladder and the first round",
	Long: `Discover the module and print the strategy run would start with, the
strategies it may degrade to, and the go test invocations of the first round.
Nothing is executed.

Examples:
  # Plan for the current module
  gotestctl plan

  # Plan a forced strategy for one tree
  gotestctl plan --strategy batch ./internal/...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printPlan(cmd.Context(), cmd.OutOrStdout(), projectDir, configPath, args, planStrategy)
	},
}

func printPlan(ctx context.Context, out io.Writer, dir, cfgPath string, args []string, strategyName string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(dir, cfgPath)
	if err != nil {
		return err
	}

	proj, err := resolveProject(ctx, dir, args, cfg, zap.NewNop())
	if err != nil {
		return err
	}

	initial, forced, err := initialStrategy(strategyName, proj.Metadata)
	if err != nil {
		return err
	}

	origin := "selected"
	if forced {
		origin = "requested"
	}

	fmt.Fprintf(out, "Project:  %s\n", proj.Root)
	fmt.Fprintf(out, "Packages: %d (%d targets)\n", proj.Metadata.TotalPackages, len(proj.Targets))
	if proj.Metadata.HasComplexDependencies {
		fmt.Fprintf(out, "Complex:  yes (%d nested modules)\n", len(proj.Modules))
	}
	fmt.Fprintf(out, "Strategy: %s (%s)\n", initial, origin)

	limit := 0
	if cfg.Fallback.Enabled {
		limit = cfg.Fallback.MaxRetries
	}
	fmt.Fprintln(out, "\nLadder:")
	for i, st := range strategy.Ladder(initial, limit) {
		fmt.Fprintf(out, "  %d. %s\n", i+1, st)
	}
	if limit == 0 {
		fmt.Fprintln(out, "  (no fallbacks allowed)")
	}

	fmt.Fprintln(out, "\nFirst round:")
	for _, u := range session.Plan(initial, proj.Targets) {
		fmt.Fprintf(out, "  %s\n", strings.Join(u.Args(cfg.Runner.GoBinary, cfg.Runner.ExtraArgs), " "))
	}

	return nil
}
