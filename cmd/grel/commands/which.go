package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whichCmd)
}

var whichCmd = &cobra.Command{
	Use:   "which <owner/repo[@version] | name>",
	Short: "Print the cached path of a binary without touching the network",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhich,
}

func runWhich(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	ref, opts, err := a.resolveTarget(args[0])
	if err != nil {
		return err
	}

	version := ref.Version
	if version == "" {
		if entry, ok := a.registry.GetEntry(registryName(opts.Name, ref.Repo)); ok && entry.Repo == ref.Full() {
			version = entry.Version
		}
	}
	if version == "" {
		var ok bool
		version, ok = a.store.GetLatestCached(ref.Owner, ref.Repo, a.platform)
		if !ok {
			return errors.Newf("%s is not cached", ref.Full())
		}
	}

	// Listing instead of GetCachedBinary keeps usage counters untouched.
	entries, err := a.store.List()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Repo == ref.Full() && entry.Version == version && entry.Platform == a.platform {
			fmt.Fprintln(cmd.OutOrStdout(), entry.BinaryPath)
			return nil
		}
	}
	return errors.Newf("%s %s is not cached", ref.Full(), version)
}

func registryName(name, repo string) string {
	if name != "" {
		return name
	}
	return repo
}
