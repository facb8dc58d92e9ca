package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all cached binaries and their registry entries",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	size, err := a.store.Size()
	if err != nil {
		return err
	}

	if err := a.store.CleanAll(); err != nil {
		return err
	}

	// Registry entries all point at removed slots now.
	doc := a.registry.Load()
	for name := range doc.Entries {
		if err := a.registry.RemoveEntry(name); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", humanSize(size))
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
