package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/assetmill/internal/config"
)

// ValidateResult summarizes a valid project.
type ValidateResult struct {
	Root         string   `json:"root"`
	Paths        []string `json:"paths"`
	Digest       string   `json:"digest"`
	Cache        string   `json:"cache"`
	OutputDir    string   `json:"output_dir"`
	Manifest     string   `json:"manifest"`
	LogicalPaths int      `json:"logical_paths"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the project file and search paths",
		Long: `Load the project file, check that every search path is a directory and
that the cache backend opens, then summarize the configuration.

Examples:
  assetmill validate
  assetmill validate -c config/assetmill.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	proj, err := loadProject(opts, cmd)
	if err != nil {
		return formatter.Fail("failed to load project", err)
	}

	for _, p := range proj.cfg.SearchPaths() {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			err = fmt.Errorf("%s is not a directory", p)
		}
		if err != nil {
			formatter.Error(ErrCodeConfig, fmt.Sprintf("invalid search path: %v", err), nil)
			return WrapExitError(ExitCommandError, "invalid search path", err)
		}
		formatter.VerboseLog("search path ok: %s", p)
	}

	ctx := commandContext(cmd)
	env, closer, err := proj.environment(ctx)
	if err != nil {
		return formatter.Fail("failed to configure pipeline", err)
	}
	defer closeQuietly(closer, proj.logger)

	logicalPaths, err := env.EachLogicalPath()
	if err != nil {
		return formatter.Fail("failed to walk search paths", err)
	}

	cache := proj.cfg.Cache.Backend
	if cache == "" {
		cache = config.BackendNone
	}
	result := ValidateResult{
		Root:         proj.cfg.Root,
		Paths:        env.Paths(),
		Digest:       string(env.DigestAlgorithm()),
		Cache:        cache,
		OutputDir:    proj.cfg.Output.Dir,
		Manifest:     proj.cfg.ManifestPath(),
		LogicalPaths: len(logicalPaths),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✓ Project is valid")
	fmt.Fprintf(w, "  root:     %s\n", result.Root)
	for _, p := range result.Paths {
		fmt.Fprintf(w, "  path:     %s\n", p)
	}
	fmt.Fprintf(w, "  digest:   %s\n", result.Digest)
	fmt.Fprintf(w, "  cache:    %s\n", result.Cache)
	fmt.Fprintf(w, "  output:   %s\n", result.OutputDir)
	fmt.Fprintf(w, "  manifest: %s\n", result.Manifest)
	fmt.Fprintf(w, "  %s\n", plural(result.LogicalPaths, "logical path"))
	return nil
}
