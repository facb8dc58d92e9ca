// Package commands implements the CLI commands for grel.
package commands

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "0.1.0"

// cacheDirFlag overrides the cache location for a single invocation.
var cacheDirFlag string

// configFileFlag points at an alternative pin file.
var configFileFlag string

// quiet suppresses progress and step output.
var quiet bool

func init() {
	rootCmd.PersistentFlags().StringVar(&cacheDirFlag, "cache-dir", "",
		"cache directory (default: $GREL_CACHE_DIR or the XDG cache home)")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "",
		"pin file (default: $GREL_CONFIG_DIR/pins.lua)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("grel version {{.Version}}\n")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

var rootCmd = &cobra.Command{
	Use:   "grel",
	Short: "Run GitHub release binaries without installing them",
	Long: `grel resolves an owner/repo reference to a platform-specific release
binary, caches it locally, and runs it. Repeat invocations are served from
the cache without touching the network.

References take the form owner/repo or owner/repo@version. Short names from
the pin file or from previously installed binaries also work.`,
	Example: `  # Run the latest ripgrep release
  grel run BurntSushi/ripgrep -- --version

  # Pin a version and install it without running
  grel install sharkdp/fd@v10.2.0

  # Show everything in the cache
  grel list`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// exitError carries a child process exit code through cobra's error path.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	return 1
}
