package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/assetmill/internal/cli"
)

// main is the entrypoint for the assetmill CLI.
func main() {
	// Use a minimal logger until the project file configures the real one.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// run executes the root command with args.
func run(args []string) error {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
