// Package main implements the gotestctl CLI, which runs `go test` under a
// degrading execution strategy.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is an explicit config file; empty searches the defaults
	configPath string
	// projectDir is the module root to run in
	projectDir string
	// version information
	version = "dev"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 2
}

var rootCmd = &cobra.Command{
	Use:   "gotestctl",
	Short: "Run go test with automatic strategy fallback",
	Long: `gotestctl runs the tests of a Go module and, when a run fails in a way
that suggests the strategy itself is the problem (build errors, timeouts,
killed processes), retries with a more conservative strategy.

Strategies degrade in this order:
  all_at_once -> directory_by_directory -> file_by_file
  batch       -> smaller sequential batches`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .gotestctl.yaml, then ~/.config/gotestctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "dir", ".", "module root to run in")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gotestctl version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gotestctl %s\n", version)
	},
}
