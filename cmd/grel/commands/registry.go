package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	registryCmd.AddCommand(registryRepairCmd)
	registryCmd.AddCommand(registryRestoreCmd)
	rootCmd.AddCommand(registryCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and repair the installed-binary registry",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var registryRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Drop registry entries with missing or invalid fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		removed, err := a.registry.Repair()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d invalid entries\n", removed)
		return nil
	},
}

var registryRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the registry from its last backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		return a.registry.RestoreFromBackup()
	},
}
