package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/assetmill/internal/pipeline"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Bundle bool
}

// FindResult describes a located asset.
type FindResult struct {
	LogicalPath  string    `json:"logical_path"`
	Pathname     string    `json:"pathname"`
	Kind         string    `json:"kind"`
	ContentType  string    `json:"content_type"`
	Length       int64     `json:"length"`
	MTime        time.Time `json:"mtime"`
	Digest       string    `json:"digest"`
	DigestPath   string    `json:"digest_path"`
	Constituents []string  `json:"constituents,omitempty"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <logical-path>",
		Short: "Resolve a logical path and describe the asset",
		Long: `Resolve a logical path against the search paths and print where it
lives, its content type and digest path. Bundles also list the files
they concatenate, in order.

Examples:
  assetmill find application.js
  assetmill find logo.png --format json
  assetmill find application.js --bundle=false`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Bundle, "bundle", true, "build the full bundle instead of the processed file alone")

	return cmd
}

func runFind(opts *FindOptions, logicalPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	proj, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to load project", err)
	}

	ctx := commandContext(cmd)
	env, closer, err := proj.environment(ctx)
	if err != nil {
		return formatter.Fail("failed to configure pipeline", err)
	}
	defer closeQuietly(closer, proj.logger)

	asset, err := env.FindAsset(ctx, logicalPath, pipeline.FindOptions{Bundle: opts.Bundle})
	if err != nil {
		return formatter.Fail(fmt.Sprintf("failed to find %s", logicalPath), err)
	}
	if err := asset.Compile(ctx); err != nil {
		return formatter.Fail(fmt.Sprintf("failed to build %s", logicalPath), err)
	}

	result := FindResult{
		LogicalPath: asset.LogicalPath(),
		Pathname:    asset.Pathname(),
		Kind:        string(asset.Kind()),
		ContentType: asset.ContentType(),
		Length:      asset.Length(),
		MTime:       asset.MTime(),
		Digest:      asset.Digest(),
		DigestPath:  asset.DigestPath(),
	}
	if b, ok := asset.(*pipeline.BundledAsset); ok {
		parts, err := b.ToArray()
		if err != nil {
			return formatter.Fail(fmt.Sprintf("failed to build %s", logicalPath), err)
		}
		for _, p := range parts {
			result.Constituents = append(result.Constituents, p.Pathname())
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s\n", result.LogicalPath)
	fmt.Fprintf(w, "  pathname:     %s\n", result.Pathname)
	fmt.Fprintf(w, "  kind:         %s\n", result.Kind)
	fmt.Fprintf(w, "  content type: %s\n", result.ContentType)
	fmt.Fprintf(w, "  length:       %d\n", result.Length)
	fmt.Fprintf(w, "  digest path:  %s\n", result.DigestPath)
	if len(result.Constituents) > 0 {
		fmt.Fprintln(w, "  constituents:")
		for _, c := range result.Constituents {
			fmt.Fprintf(w, "    %s\n", c)
		}
	}
	return nil
}
