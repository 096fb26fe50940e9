package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/assetmill/internal/config"
	"github.com/roach88/assetmill/internal/manifest"
	"github.com/roach88/assetmill/internal/pipeline"
)

// OutputFlags are the output settings shared by compile and watch. Flags
// that were set override the project file.
type OutputFlags struct {
	Dir         string
	Gzip        bool
	Concurrency int
}

// AddFlags registers the output flags on flagSet.
func (o *OutputFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.Dir, "output", "o", "", "output directory (default: output.dir from the project file)")
	flagSet.BoolVar(&o.Gzip, "gzip", false, "also write .gz files for text assets")
	flagSet.IntVar(&o.Concurrency, "concurrency", 0, "parallel builds (default: GOMAXPROCS)")
}

func (o *OutputFlags) apply(flagSet *pflag.FlagSet, cfg *config.Config) {
	if flagSet.Changed("output") {
		cfg.Output.Dir = o.Dir
	}
	if flagSet.Changed("gzip") {
		cfg.Output.Gzip = o.Gzip
	}
	if flagSet.Changed("concurrency") {
		cfg.Output.Concurrency = o.Concurrency
	}
}

// project is a loaded project file with its logger.
type project struct {
	cfg    *config.Config
	logger *slog.Logger
}

// loadProject reads the project file named by --config, or the one in the
// working directory, or falls back to defaults rooted at the working
// directory.
func loadProject(opts *RootOptions, cmd *cobra.Command) (*project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path := opts.Config
	if path == "" {
		path = config.Find(wd)
	}

	cfg := config.DefaultFor(wd)
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
	if err != nil {
		return nil, err
	}
	return &project{cfg: cfg, logger: logger}, nil
}

// environment builds the pipeline for the project. The closer releases the
// cache.
func (p *project) environment(ctx context.Context, extra ...pipeline.Option) (*pipeline.Environment, io.Closer, error) {
	return config.Build(ctx, p.cfg, p.logger, extra...)
}

// manifest opens the project's manifest.
func (p *project) manifest() (*manifest.Manifest, error) {
	return manifest.Open(p.cfg.Output.Dir, p.cfg.ManifestPath(), manifest.Options{
		Gzip:        p.cfg.Output.Gzip,
		Concurrency: p.cfg.Output.Concurrency,
		Logger:      p.logger,
	})
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("error closing cache", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func plural(n int, word string) string {
	return fmt.Sprintf("%d %s(s)", n, word)
}
