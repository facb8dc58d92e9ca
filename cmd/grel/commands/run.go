package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RosalindThackerByrne/grel/internal/resolver"
	"github.com/RosalindThackerByrne/grel/internal/runner"
)

var runCheckLatest bool

func init() {
	runCmd.Flags().BoolVar(&runCheckLatest, "check-latest", false,
		"ask the provider for the newest release even when a version is cached")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <owner/repo[@version] | name> [-- <args>...]",
	Short: "Resolve a release binary and run it",
	Long: `Resolve the reference to a cached executable, downloading it on first
use, then run it in the foreground with the given arguments. The child's
exit code becomes grel's exit code.`,
	Example: `  grel run BurntSushi/ripgrep -- --version
  grel run sharkdp/fd@v10.2.0 -- . /tmp
  grel run rg -- TODO src/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	ref, opts, err := a.resolveTarget(args[0])
	if err != nil {
		return err
	}
	opts.CheckLatest = runCheckLatest

	result, err := resolveWithProgress(ctx, a, ref, opts)
	if err != nil {
		return err
	}

	code, err := runner.New().Run(ctx, result.Path, args[1:])
	if err != nil {
		return err
	}
	if code != 0 {
		return exitError{code: code}
	}
	return nil
}

// resolveWithProgress runs a resolution with a progress bar and surfaces
// advisory warnings.
func resolveWithProgress(ctx context.Context, a *app, ref resolver.Ref, opts resolver.Options) (*resolver.Result, error) {
	logStep("resolving %s", ref.Full())

	onProgress, finish := progressReporter()
	opts.OnProgress = onProgress
	result, err := a.resolver.Resolve(ctx, ref, opts)
	finish()
	if err != nil {
		return nil, err
	}

	for _, warning := range result.Warnings {
		logWarn("%s", warning)
	}
	if !result.FromCache {
		logStep("cached %s %s for %s", ref.Full(), result.Version, a.platform)
	}
	return result, nil
}
