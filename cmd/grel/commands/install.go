package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RosalindThackerByrne/grel/internal/verify"
)

var (
	installName        string
	installAsset       string
	installVerify      string
	installKey         string
	installCheckLatest bool
)

func init() {
	installCmd.Flags().StringVar(&installName, "name", "",
		"short name to register the binary under (default: repository name)")
	installCmd.Flags().StringVar(&installAsset, "asset", "",
		"prefer assets whose name contains this substring")
	installCmd.Flags().StringVar(&installVerify, "verify", "",
		"verification policy: none, advisory, strict (default: advisory)")
	installCmd.Flags().StringVar(&installKey, "key", "",
		"GPG keyring name for signature verification")
	installCmd.Flags().BoolVar(&installCheckLatest, "check-latest", false,
		"ask the provider for the newest release even when a version is cached")
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install <owner/repo[@version] | name>",
	Short: "Resolve and cache a release binary without running it",
	Example: `  grel install BurntSushi/ripgrep --name rg
  grel install sharkdp/fd@v10.2.0
  grel install zellij-org/zellij --asset musl --verify strict`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	ref, opts, err := a.resolveTarget(args[0])
	if err != nil {
		return err
	}

	// Flags override whatever the pin file supplied.
	if installName != "" {
		opts.Name = installName
	}
	if installAsset != "" {
		opts.AssetFilter = installAsset
	}
	if installVerify != "" {
		policy, err := verify.ParsePolicy(installVerify)
		if err != nil {
			return err
		}
		opts.Policy = policy
	}
	if installKey != "" {
		opts.KeyName = installKey
	}
	opts.CheckLatest = installCheckLatest

	result, err := resolveWithProgress(ctx, a, ref, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Path)
	return nil
}
