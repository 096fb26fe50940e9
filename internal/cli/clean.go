package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	Keep    int
	Clobber bool
}

// CleanResult is the JSON payload of a successful clean.
type CleanResult struct {
	Removed []string `json:"removed"`
	Kept    int      `json:"kept"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale compiled assets",
		Long: `Remove compiled files that the manifest no longer points at.

The current digest path of every logical path is always kept, along with
the --keep most recent older versions of each. --clobber removes the
whole output directory instead.

Examples:
  assetmill clean
  assetmill clean --keep 0
  assetmill clean --clobber`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Keep, "keep", 2, "older versions to keep per logical path")
	cmd.Flags().BoolVar(&opts.Clobber, "clobber", false, "remove the entire output directory")

	return cmd
}

func runClean(opts *CleanOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Keep < 0 {
		formatter.Error(ErrCodeGeneric, "--keep must not be negative", nil)
		return NewExitError(ExitCommandError, "--keep must not be negative")
	}

	proj, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to load project", err)
	}
	m, err := proj.manifest()
	if err != nil {
		return formatter.Fail("failed to open manifest", err)
	}

	w := cmd.OutOrStdout()
	if opts.Clobber {
		if err := m.Clobber(); err != nil {
			return formatter.Fail("failed to remove output directory", err)
		}
		if opts.Format == "json" {
			return formatter.Success(CleanResult{Removed: []string{m.Dir()}})
		}
		fmt.Fprintf(w, "Removed %s\n", m.Dir())
		return nil
	}

	before := make([]string, 0, len(m.Data().Files))
	for digestPath := range m.Data().Files {
		before = append(before, digestPath)
	}
	if err := m.Clean(opts.Keep); err != nil {
		return formatter.Fail("failed to clean output directory", err)
	}
	after := m.Data().Files

	removed := []string{}
	for _, digestPath := range before {
		if _, ok := after[digestPath]; !ok {
			removed = append(removed, digestPath)
		}
	}
	slices.Sort(removed)

	if opts.Format == "json" {
		return formatter.Success(CleanResult{Removed: removed, Kept: len(after)})
	}
	for _, r := range removed {
		fmt.Fprintf(w, "✓ removed %s\n", r)
	}
	fmt.Fprintf(w, "Removed %s, kept %d\n", plural(len(removed), "file"), len(after))
	return nil
}
