package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/assetmill/internal/manifest"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output OutputFlags
}

// CompileResult is the JSON payload of a successful compile.
type CompileResult struct {
	Manifest string              `json:"manifest"`
	Assets   []manifest.Compiled `json:"assets"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [logical-path...]",
		Short: "Build assets into the output directory",
		Long: `Build bundled assets and write them under their digest paths.

Each argument is a logical path, a glob such as "*.js", or a regular
expression prefixed with "regexp:" such as "regexp:^app/.*\.css$".
With no arguments the assets list from the project file is used, and
when that is empty every logical path in the search paths is compiled.
The manifest in the output directory is updated with each written file.

Examples:
  assetmill compile
  assetmill compile application.js application.css
  assetmill compile "*.js" --gzip
  assetmill compile --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	opts.Output.AddFlags(cmd.Flags())

	return cmd
}

func runCompile(opts *CompileOptions, patterns []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	proj, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to load project", err)
	}
	opts.Output.apply(cmd.Flags(), proj.cfg)

	ctx := commandContext(cmd)
	env, closer, err := proj.environment(ctx)
	if err != nil {
		return formatter.Fail("failed to configure pipeline", err)
	}
	defer closeQuietly(closer, proj.logger)

	m, err := proj.manifest()
	if err != nil {
		return formatter.Fail("failed to open manifest", err)
	}

	if len(patterns) == 0 {
		patterns = proj.cfg.Assets
	}
	formatter.VerboseLog("Compiling into %s", m.Dir())
	compiled, err := m.Compile(ctx, env, patterns...)
	if err != nil {
		return formatter.Fail("compilation failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(CompileResult{Manifest: m.Path(), Assets: compiled})
	}

	w := cmd.OutOrStdout()
	for _, c := range compiled {
		fmt.Fprintf(w, "✓ %s → %s (%d bytes)\n", c.LogicalPath, c.DigestPath, c.Size)
	}
	fmt.Fprintf(w, "Compiled %s into %s\n", plural(len(compiled), "asset"), m.Dir())
	return nil
}
