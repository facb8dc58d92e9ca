package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/RosalindThackerByrne/grel/internal/cache"
	"github.com/RosalindThackerByrne/grel/internal/registry"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached release binaries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	entries, err := a.store.List()
	if err != nil {
		return err
	}
	return writeList(cmd.OutOrStdout(), entries, a.registry.Load())
}

// writeList renders cached slots as a table, newest version of each
// repository first.
func writeList(w io.Writer, entries []cache.Metadata, doc *registry.Document) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "nothing cached")
		return nil
	}

	// Name cached slots after their registry entries where one exists.
	names := make(map[string]string)
	for name, entry := range doc.Entries {
		key := entry.Repo + "@" + entry.Version + "@" + entry.Platform.Key()
		if existing, ok := names[key]; !ok || len(name) < len(existing) {
			names[key] = name
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Repo != entries[j].Repo {
			return entries[i].Repo < entries[j].Repo
		}
		return semver.Compare(canonicalVersion(entries[i].Version), canonicalVersion(entries[j].Version)) > 0
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREPOSITORY\tVERSION\tPLATFORM\tINSTALLED")
	for _, entry := range entries {
		name := names[entry.Repo+"@"+entry.Version+"@"+entry.Platform.Key()]
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			name, entry.Repo, entry.Version, entry.Platform.Key(),
			entry.InstallDate.Format("2006-01-02"))
	}
	return tw.Flush()
}

// canonicalVersion coerces release tags into semver-comparable form; tags
// without a leading v (ripgrep's "14.1.1") are common on GitHub.
func canonicalVersion(tag string) string {
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + tag
	}
	if !semver.IsValid(tag) {
		return "v0.0.0"
	}
	return tag
}
