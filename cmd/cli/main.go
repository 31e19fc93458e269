package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/sitegridgo/internal/app"
	"github.com/vk/sitegridgo/internal/cli"
	"github.com/vk/sitegridgo/internal/hcl"
)

// main is the entrypoint for the sitegrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		exitErr := cli.AsExitError(err)
		fmt.Fprintln(os.Stderr, exitErr.Message)
		stop()
		os.Exit(exitErr.Code)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here to provide
	// a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: cli.ExitUsage, Message: fmt.Sprintf("application startup panicked: %v", r)}
		}
	}()

	sitegrid := app.NewApp(outW, inv.Config, hcl.NewLoader())
	defer sitegrid.Close()

	if inv.List {
		return sitegrid.List(outW)
	}
	return sitegrid.Run(ctx, inv.Task)
}
