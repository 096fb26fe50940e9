package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/assetmill/internal/pipeline"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Output      OutputFlags
	Debounce    time.Duration
	MetricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [logical-path...]",
		Short: "Compile, then recompile whenever a source file changes",
		Long: `Compile once, then watch every search path and recompile after each
burst of changes. Arguments select assets the same way as compile.

Only stale assets are rebuilt: the environment keeps fresh results between
rounds. Stop with Ctrl-C.

Examples:
  assetmill watch
  assetmill watch application.js --debounce 500ms
  assetmill watch --metrics-addr :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	opts.Output.AddFlags(cmd.Flags())
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period before recompiling")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runWatch(opts *WatchOptions, patterns []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	proj, err := loadProject(opts.RootOptions, cmd)
	if err != nil {
		return formatter.Fail("failed to load project", err)
	}
	opts.Output.apply(cmd.Flags(), proj.cfg)
	if len(patterns) == 0 {
		patterns = proj.cfg.Assets
	}
	logger := proj.logger

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var extra []pipeline.Option
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		extra = append(extra, pipeline.WithMetrics(pipeline.NewMetrics(reg)))
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	env, closer, err := proj.environment(ctx, extra...)
	if err != nil {
		return formatter.Fail("failed to configure pipeline", err)
	}
	defer closeQuietly(closer, logger)

	m, err := proj.manifest()
	if err != nil {
		return formatter.Fail("failed to open manifest", err)
	}

	outDir, err := filepath.Abs(m.Dir())
	if err != nil {
		return formatter.Fail("failed to resolve output directory", err)
	}
	w, err := NewWatcher(env.Paths(), []string{outDir, m.Path()}, opts.Debounce, logger)
	if err != nil {
		formatter.Error(ErrCodeWatchFailed, fmt.Sprintf("failed to watch search paths: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to watch search paths", err)
	}
	defer w.Close()

	out := cmd.OutOrStdout()
	rebuild := func(ctx context.Context) {
		start := time.Now()
		compiled, err := m.Compile(ctx, env, patterns...)
		if err != nil {
			// Keep watching; the next change may fix it
			code, _ := classify(err)
			formatter.Error(code, fmt.Sprintf("compilation failed: %v", err), nil)
			return
		}
		if opts.Format == "json" {
			formatter.Success(CompileResult{Manifest: m.Path(), Assets: compiled})
			return
		}
		fmt.Fprintf(out, "Compiled %s in %s\n", plural(len(compiled), "asset"), time.Since(start).Round(time.Millisecond))
	}

	rebuild(ctx)
	formatter.VerboseLog("Watching %v", env.Paths())
	return w.Run(ctx, rebuild)
}
